package journal

import (
	"testing"
	"time"
)

func TestJournal_RecordAndRead(t *testing.T) {
	dir := t.TempDir()
	j := Open(dir)
	clock := time.Date(2024, 5, 1, 10, 59, 0, 0, time.UTC)
	j.now = func() time.Time { return clock }

	if err := j.Record(Event{Kind: KindSaved, Chunk: [3]int32{1, -2, 3}, Hash: 42}); err != nil {
		t.Fatalf("record: %v", err)
	}
	clock = clock.Add(2 * time.Minute)
	if err := j.Record(Event{Kind: KindBuildFailed, Chunk: [3]int32{0, 0, 0}, Error: "boom", Attempt: 2}); err != nil {
		t.Fatalf("record: %v", err)
	}
	if err := j.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	files, err := Files(dir)
	if err != nil {
		t.Fatalf("files: %v", err)
	}
	if len(files) != 2 {
		t.Fatalf("hour rotation: got %d files want 2", len(files))
	}

	var got []Event
	for _, f := range files {
		if err := ReadFile(f, func(e Event) error {
			got = append(got, e)
			return nil
		}); err != nil {
			t.Fatalf("read %s: %v", f, err)
		}
	}
	if len(got) != 2 {
		t.Fatalf("events: got %d want 2", len(got))
	}
	if got[0].Kind != KindSaved || got[0].Hash != 42 || got[0].Chunk != [3]int32{1, -2, 3} {
		t.Fatalf("first event: %+v", got[0])
	}
	if got[1].Kind != KindBuildFailed || got[1].Error != "boom" || !got[1].Time.Equal(clock) {
		t.Fatalf("second event: %+v", got[1])
	}
}

func TestJournal_AppendsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	clock := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	for i := 0; i < 2; i++ {
		j := Open(dir)
		j.now = func() time.Time { return clock }
		if err := j.Record(Event{Kind: KindUnloaded}); err != nil {
			t.Fatalf("record: %v", err)
		}
		_ = j.Close()
	}
	files, _ := Files(dir)
	if len(files) != 1 {
		t.Fatalf("files: got %d want 1", len(files))
	}
	n := 0
	if err := ReadFile(files[0], func(Event) error { n++; return nil }); err != nil {
		t.Fatalf("read: %v", err)
	}
	if n != 2 {
		t.Fatalf("events: got %d want 2", n)
	}
}

func TestJournal_SyncAndCloseWithoutEvents(t *testing.T) {
	dir := t.TempDir()
	j := Open(dir)
	if err := j.Sync(); err != nil {
		t.Fatalf("sync: %v", err)
	}
	if err := j.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if files, _ := Files(dir); len(files) != 0 {
		t.Fatalf("files: got %v want none", files)
	}
}
