package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"voxelstream.ai/internal/atom"
	"voxelstream.ai/internal/config"
	"voxelstream.ai/internal/persistence/chunkdb"
	"voxelstream.ai/internal/persistence/journal"
	"voxelstream.ai/internal/voxel"
)

func main() {
	if len(os.Args) >= 2 {
		switch os.Args[1] {
		case "stat":
			statCmd(os.Args[2:])
			return
		case "dump":
			dumpCmd(os.Args[2:])
			return
		case "verify":
			verifyCmd(os.Args[2:])
			return
		case "journal":
			journalCmd(os.Args[2:])
			return
		}
	}
	fmt.Fprintln(os.Stderr, "usage: admin stat|dump|verify|journal [flags]")
	os.Exit(2)
}

func storeFlags(fs *flag.FlagSet) (backend, path *string) {
	def := config.Defaults().Storage
	backend = fs.String("backend", def.Backend, "chunk store backend: sqlite|leveldb")
	path = fs.String("store", def.Path, "chunk store path")
	return backend, path
}

func openStore(backend, path string) chunkdb.Store {
	if _, err := os.Stat(path); err != nil {
		fmt.Fprintln(os.Stderr, "open store:", err)
		os.Exit(1)
	}
	s, err := chunkdb.Open(config.Storage{Backend: backend, Path: path})
	if err != nil {
		fmt.Fprintln(os.Stderr, "open store:", err)
		os.Exit(1)
	}
	return s
}

func statCmd(args []string) {
	fs := flag.NewFlagSet("stat", flag.ExitOnError)
	backend, path := storeFlags(fs)
	_ = fs.Parse(args)

	s := openStore(*backend, *path)
	defer s.Close()
	st, err := collectStats(context.Background(), s, atom.New(0))
	if err != nil {
		fmt.Fprintln(os.Stderr, "stat:", err)
		os.Exit(1)
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(st)
}

func dumpCmd(args []string) {
	fs := flag.NewFlagSet("dump", flag.ExitOnError)
	backend, path := storeFlags(fs)
	at := fs.String("pos", "", "chunk position x,y,z (required)")
	_ = fs.Parse(args)

	pos, err := parseChunkPos(*at)
	if err != nil {
		fmt.Fprintln(os.Stderr, "bad -pos:", err)
		os.Exit(2)
	}
	s := openStore(*backend, *path)
	defer s.Close()

	raw, ok, err := chunkdb.Get(context.Background(), s, pos)
	if err != nil {
		fmt.Fprintln(os.Stderr, "read:", err)
		os.Exit(1)
	}
	if !ok {
		fmt.Fprintf(os.Stderr, "chunk %s not stored\n", pos)
		os.Exit(1)
	}
	c, err := voxel.Decode(raw, atom.New(0))
	if err != nil {
		fmt.Fprintln(os.Stderr, "decode:", err)
		os.Exit(1)
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(describe(c, len(raw)))
}

func verifyCmd(args []string) {
	fs := flag.NewFlagSet("verify", flag.ExitOnError)
	backend, path := storeFlags(fs)
	_ = fs.Parse(args)

	s := openStore(*backend, *path)
	defer s.Close()
	bad, err := verifyStore(context.Background(), s, atom.New(0), os.Stdout)
	if err != nil {
		fmt.Fprintln(os.Stderr, "verify:", err)
		os.Exit(1)
	}
	if bad > 0 {
		os.Exit(1)
	}
}

func journalCmd(args []string) {
	fs := flag.NewFlagSet("journal", flag.ExitOnError)
	dir := fs.String("dir", config.Defaults().Journal.Dir, "journal directory")
	kind := fs.String("kind", "", "only events of this kind (optional)")
	at := fs.String("chunk", "", "only events for chunk x,y,z (optional)")
	_ = fs.Parse(args)

	var filter *voxel.ChunkPos
	if strings.TrimSpace(*at) != "" {
		p, err := parseChunkPos(*at)
		if err != nil {
			fmt.Fprintln(os.Stderr, "bad -chunk:", err)
			os.Exit(2)
		}
		filter = &p
	}
	files, err := journal.Files(*dir)
	if err != nil {
		fmt.Fprintln(os.Stderr, "list journal:", err)
		os.Exit(1)
	}
	enc := json.NewEncoder(os.Stdout)
	for _, f := range files {
		err := journal.ReadFile(f, func(e journal.Event) error {
			if *kind != "" && string(e.Kind) != *kind {
				return nil
			}
			if filter != nil && e.Chunk != filter.Array() {
				return nil
			}
			return enc.Encode(e)
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "read %s: %v\n", f, err)
			os.Exit(1)
		}
	}
}

type storeStats struct {
	Chunks     int   `json:"chunks"`
	Bytes      int64 `json:"bytes"`
	AvgBytes   int64 `json:"avg_bytes"`
	Empty      int   `json:"empty"`
	Uniform    int   `json:"uniform"`
	Full       int   `json:"full"`
	MaxPalette int   `json:"max_palette"`
	Corrupt    int   `json:"corrupt"`
}

func collectStats(ctx context.Context, s chunkdb.Store, in *atom.Interner) (storeStats, error) {
	var st storeStats
	err := s.Scan(ctx, func(pos voxel.ChunkPos, raw []byte) error {
		st.Chunks++
		st.Bytes += int64(len(raw))
		c, err := voxel.Decode(raw, in)
		if err != nil {
			st.Corrupt++
			return nil
		}
		switch {
		case c.IsEmpty():
			st.Empty++
		case c.IsFull():
			st.Full++
		}
		if c.Uniform {
			st.Uniform++
		}
		st.MaxPalette = max(st.MaxPalette, c.Palette.Len())
		return nil
	})
	if st.Chunks > 0 {
		st.AvgBytes = st.Bytes / int64(st.Chunks)
	}
	return st, err
}

type chunkInfo struct {
	Pos        [3]int32       `json:"pos"`
	Hash       string         `json:"hash"`
	Bytes      int            `json:"bytes"`
	SolidCount int            `json:"solid_count"`
	Uniform    bool           `json:"uniform"`
	Palette    []string       `json:"palette"`
	Counts     map[string]int `json:"counts"`
}

func describe(c *voxel.ChunkData, size int) chunkInfo {
	info := chunkInfo{
		Pos:        c.Pos.Array(),
		Hash:       strconv.FormatUint(c.Hash, 16),
		Bytes:      size,
		SolidCount: c.SolidCount,
		Uniform:    c.Uniform,
		Counts:     make(map[string]int),
	}
	for _, id := range c.Palette.IDs() {
		info.Palette = append(info.Palette, id.String())
	}
	for i := range c.Voxels {
		info.Counts[c.IDAt(i).String()]++
	}
	return info
}

// verifyStore decodes every record and checks its key and header hash. It
// reports each bad record to w and returns how many there were.
func verifyStore(ctx context.Context, s chunkdb.Store, in *atom.Interner, w io.Writer) (int, error) {
	bad, total := 0, 0
	err := s.Scan(ctx, func(pos voxel.ChunkPos, raw []byte) error {
		total++
		c, err := voxel.Decode(raw, in)
		if err != nil {
			bad++
			fmt.Fprintf(w, "%s: %v\n", pos, err)
			return nil
		}
		if c.Pos != pos {
			bad++
			fmt.Fprintf(w, "%s: record holds chunk %s\n", pos, c.Pos)
			return nil
		}
		header, _ := voxel.ReadHeader(raw)
		if sum := c.ContentHash(); sum != header {
			bad++
			fmt.Fprintf(w, "%s: header hash %x, content hash %x\n", pos, header, sum)
		}
		return nil
	})
	if err != nil {
		return bad, err
	}
	fmt.Fprintf(w, "verified %d chunks, %d bad\n", total, bad)
	return bad, nil
}

func parseChunkPos(s string) (voxel.ChunkPos, error) {
	parts := strings.Split(strings.TrimSpace(s), ",")
	if len(parts) != 3 {
		return voxel.ChunkPos{}, fmt.Errorf("want x,y,z, got %q", s)
	}
	var v [3]int32
	for i, p := range parts {
		n, err := strconv.ParseInt(strings.TrimSpace(p), 10, 32)
		if err != nil {
			return voxel.ChunkPos{}, err
		}
		v[i] = int32(n)
	}
	return voxel.ChunkPos{X: v[0], Y: v[1], Z: v[2]}, nil
}
