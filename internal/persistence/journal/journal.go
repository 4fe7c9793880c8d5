// Package journal keeps a durable, compressed record of chunk pipeline events.
package journal

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"
)

type Kind string

const (
	KindLoaded      Kind = "loaded"
	KindBuildFailed Kind = "build_failed"
	KindMeshFailed  Kind = "mesh_failed"
	KindSaved       Kind = "saved"
	KindSaveSkipped Kind = "save_skipped"
	KindSaveFailed  Kind = "save_failed"
	KindUnloaded    Kind = "unloaded"
	KindEdit        Kind = "edit"
)

type Event struct {
	Time    time.Time `json:"time"`
	Kind    Kind      `json:"kind"`
	Chunk   [3]int32  `json:"chunk"`
	Hash    uint64    `json:"hash,omitempty"`
	Block   string    `json:"block,omitempty"`
	Attempt int       `json:"attempt,omitempty"`
	Error   string    `json:"error,omitempty"`
}

// Journal writes events under dir/events-YYYY-MM-DD-HH.jsonl.zst, starting a
// new file whenever the UTC hour of the event clock changes. Reopening an
// hour appends a fresh zstd frame to its file.
type Journal struct {
	dir string
	now func() time.Time

	mu   sync.Mutex
	hour time.Time
	seg  *segment
}

// segment is the open file for one hour.
type segment struct {
	file *os.File
	zw   *zstd.Encoder
	enc  *json.Encoder
}

func Open(dir string) *Journal {
	return &Journal{dir: dir, now: time.Now}
}

func (j *Journal) Record(e Event) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	now := j.now().UTC()
	if e.Time.IsZero() {
		e.Time = now
	}
	if hour := now.Truncate(time.Hour); j.seg == nil || !hour.Equal(j.hour) {
		if err := j.openHour(hour); err != nil {
			return err
		}
	}
	if err := j.seg.enc.Encode(e); err != nil {
		return fmt.Errorf("journal: %s event: %w", e.Kind, err)
	}
	return nil
}

// Sync pushes compressed frames of the open hour to disk.
func (j *Journal) Sync() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.seg == nil {
		return nil
	}
	if err := j.seg.zw.Flush(); err != nil {
		return err
	}
	return j.seg.file.Sync()
}

func (j *Journal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.closeSegment()
}

func (j *Journal) openHour(hour time.Time) error {
	if err := j.closeSegment(); err != nil {
		return err
	}
	if err := os.MkdirAll(j.dir, 0o755); err != nil {
		return fmt.Errorf("journal: %w", err)
	}
	name := filepath.Join(j.dir, filePrefix+hour.Format("2006-01-02-15")+fileSuffix)
	f, err := os.OpenFile(name, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("journal: %w", err)
	}
	zw, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		_ = f.Close()
		return fmt.Errorf("journal: %w", err)
	}
	j.seg = &segment{file: f, zw: zw, enc: json.NewEncoder(zw)}
	j.hour = hour
	return nil
}

func (j *Journal) closeSegment() error {
	if j.seg == nil {
		return nil
	}
	err := j.seg.zw.Close()
	if cerr := j.seg.file.Close(); err == nil {
		err = cerr
	}
	j.seg = nil
	return err
}

const (
	filePrefix = "events-"
	fileSuffix = ".jsonl.zst"
)

// Files lists journal files in dir in chronological order.
func Files(dir string) ([]string, error) {
	paths, err := filepath.Glob(filepath.Join(dir, filePrefix+"*"+fileSuffix))
	if err != nil {
		return nil, err
	}
	sort.Strings(paths)
	return paths, nil
}

// ReadFile decodes every event in one journal file.
func ReadFile(path string, fn func(Event) error) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	dec, err := zstd.NewReader(f)
	if err != nil {
		return err
	}
	defer dec.Close()

	sc := bufio.NewScanner(dec)
	sc.Buffer(make([]byte, 64*1024), 4<<20)
	line := 0
	for sc.Scan() {
		line++
		var e Event
		if err := json.Unmarshal(sc.Bytes(), &e); err != nil {
			return fmt.Errorf("%s:%d: %w", filepath.Base(path), line, err)
		}
		if err := fn(e); err != nil {
			return err
		}
	}
	return sc.Err()
}
