package chunkdb

import (
	"context"
	"sync"

	"go.uber.org/atomic"

	"voxelstream.ai/internal/voxel"
	"voxelstream.ai/internal/world"
)

// MemoryStore keeps records in a map. It counts committed puts so callers can
// observe write elision.
type MemoryStore struct {
	mu   sync.RWMutex
	data map[voxel.ChunkPos][]byte
	puts atomic.Int64

	// FailPut, when set, is consulted before every Put.
	FailPut func(voxel.ChunkPos) error
}

func NewMemory() *MemoryStore {
	return &MemoryStore{data: make(map[voxel.ChunkPos][]byte)}
}

type memRead struct{ s *MemoryStore }

func (t memRead) Get(pos voxel.ChunkPos) ([]byte, bool, error) {
	v, ok := t.s.data[pos]
	return v, ok, nil
}

type memWrite struct {
	s      *MemoryStore
	staged map[voxel.ChunkPos][]byte // nil value = delete
}

func (t *memWrite) Get(pos voxel.ChunkPos) ([]byte, bool, error) {
	if v, ok := t.staged[pos]; ok {
		return v, v != nil, nil
	}
	v, ok := t.s.data[pos]
	return v, ok, nil
}

func (t *memWrite) Put(pos voxel.ChunkPos, value []byte) error {
	if t.s.FailPut != nil {
		if err := t.s.FailPut(pos); err != nil {
			return err
		}
	}
	t.staged[pos] = append([]byte{}, value...)
	return nil
}

func (t *memWrite) Delete(pos voxel.ChunkPos) error {
	t.staged[pos] = nil
	return nil
}

func (s *MemoryStore) View(ctx context.Context, fn func(ReadTable) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return fn(memRead{s: s})
}

func (s *MemoryStore) Update(ctx context.Context, fn func(WriteTable) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	w := &memWrite{s: s, staged: make(map[voxel.ChunkPos][]byte)}
	if err := fn(w); err != nil {
		return err
	}
	for pos, v := range w.staged {
		if v == nil {
			delete(s.data, pos)
			continue
		}
		s.data[pos] = v
		s.puts.Inc()
	}
	return nil
}

func (s *MemoryStore) Scan(ctx context.Context, fn func(voxel.ChunkPos, []byte) error) error {
	s.mu.RLock()
	keys := make([]voxel.ChunkPos, 0, len(s.data))
	for k := range s.data {
		keys = append(keys, k)
	}
	s.mu.RUnlock()
	world.SortPositions(keys)
	for _, k := range keys {
		if err := ctx.Err(); err != nil {
			return err
		}
		s.mu.RLock()
		v, ok := s.data[k]
		s.mu.RUnlock()
		if !ok {
			continue
		}
		if err := fn(k, v); err != nil {
			return err
		}
	}
	return nil
}

func (s *MemoryStore) Close() error { return nil }

// Puts is the number of records written by committed updates.
func (s *MemoryStore) Puts() int64 { return s.puts.Load() }

func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}
