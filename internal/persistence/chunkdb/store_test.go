package chunkdb

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"voxelstream.ai/internal/config"
	"voxelstream.ai/internal/voxel"
)

func backends(t *testing.T) map[string]Store {
	t.Helper()
	dir := t.TempDir()
	sq, err := OpenSQLite(filepath.Join(dir, "chunks.sqlite"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	lv, err := OpenLevelDB(filepath.Join(dir, "chunks.ldb"))
	if err != nil {
		t.Fatalf("open leveldb: %v", err)
	}
	out := map[string]Store{"sqlite": sq, "leveldb": lv, "memory": NewMemory()}
	t.Cleanup(func() {
		for _, s := range out {
			_ = s.Close()
		}
	})
	return out
}

func TestStore_PutGetScan(t *testing.T) {
	ctx := context.Background()
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			a := voxel.ChunkPos{X: -1, Y: 2, Z: 3}
			b := voxel.ChunkPos{X: 4, Y: -5, Z: 0}
			if _, ok, err := Get(ctx, s, a); err != nil || ok {
				t.Fatalf("empty store: ok=%v err=%v", ok, err)
			}
			if err := Put(ctx, s, b, []byte("bee")); err != nil {
				t.Fatalf("put b: %v", err)
			}
			if err := Put(ctx, s, a, []byte("one")); err != nil {
				t.Fatalf("put a: %v", err)
			}
			if err := Put(ctx, s, a, []byte("two")); err != nil {
				t.Fatalf("overwrite a: %v", err)
			}
			v, ok, err := Get(ctx, s, a)
			if err != nil || !ok || string(v) != "two" {
				t.Fatalf("get a: %q %v %v", v, ok, err)
			}

			var seen []voxel.ChunkPos
			err = s.Scan(ctx, func(p voxel.ChunkPos, v []byte) error {
				seen = append(seen, p)
				return nil
			})
			if err != nil {
				t.Fatalf("scan: %v", err)
			}
			if len(seen) != 2 || seen[0] != a || seen[1] != b {
				t.Fatalf("scan order: got %v", seen)
			}
		})
	}
}

func TestStore_UpdateRollsBackOnError(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("boom")
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			p := voxel.ChunkPos{X: 7}
			err := s.Update(ctx, func(w WriteTable) error {
				if err := w.Put(p, []byte("x")); err != nil {
					return err
				}
				if v, ok, _ := w.Get(p); !ok || string(v) != "x" {
					t.Fatalf("write not visible inside its own transaction")
				}
				return boom
			})
			if !errors.Is(err, boom) {
				t.Fatalf("update: got %v want boom", err)
			}
			if _, ok, _ := Get(ctx, s, p); ok {
				t.Fatalf("failed update must not commit")
			}
		})
	}
}

func TestStore_Delete(t *testing.T) {
	ctx := context.Background()
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			p := voxel.ChunkPos{Z: -9}
			_ = Put(ctx, s, p, []byte("x"))
			if err := s.Update(ctx, func(w WriteTable) error { return w.Delete(p) }); err != nil {
				t.Fatalf("delete: %v", err)
			}
			if _, ok, _ := Get(ctx, s, p); ok {
				t.Fatalf("record survived delete")
			}
		})
	}
}

func TestSQLite_Reopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "c.sqlite")
	s, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := Put(ctx, s, voxel.ChunkPos{X: 1}, []byte("persisted")); err != nil {
		t.Fatalf("put: %v", err)
	}
	_ = s.Close()

	s, err = OpenSQLite(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s.Close()
	v, ok, err := Get(ctx, s, voxel.ChunkPos{X: 1})
	if err != nil || !ok || string(v) != "persisted" {
		t.Fatalf("after reopen: %q %v %v", v, ok, err)
	}
}

func TestLevelDBKey_OrderAndRoundTrip(t *testing.T) {
	ps := []voxel.ChunkPos{{-2, 0, 0}, {-1, 5, 5}, {0, -1, 0}, {0, 0, -3}, {3, 0, 0}}
	for i, p := range ps {
		got, ok := parseKey(chunkKey(p))
		if !ok || got != p {
			t.Fatalf("round trip %v: got %v", p, got)
		}
		if i > 0 && string(chunkKey(ps[i-1])) >= string(chunkKey(p)) {
			t.Fatalf("key order broken between %v and %v", ps[i-1], p)
		}
	}
}

func TestOpen_SelectsBackend(t *testing.T) {
	s, err := Open(config.Storage{Backend: "memory"})
	if err != nil {
		t.Fatalf("open memory: %v", err)
	}
	if _, ok := s.(*MemoryStore); !ok {
		t.Fatalf("got %T", s)
	}
	if _, err := Open(config.Storage{Backend: "tape"}); err == nil {
		t.Fatalf("unknown backend should fail")
	}
}

func TestMemory_CountsCommittedPuts(t *testing.T) {
	ctx := context.Background()
	s := NewMemory()
	_ = Put(ctx, s, voxel.ChunkPos{}, []byte("a"))
	_ = s.Update(ctx, func(w WriteTable) error {
		_ = w.Put(voxel.ChunkPos{X: 1}, []byte("b"))
		return errors.New("abort")
	})
	if s.Puts() != 1 {
		t.Fatalf("puts: got %d want 1", s.Puts())
	}
}
