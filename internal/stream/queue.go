package stream

import (
	"sync"

	"github.com/elliotchance/orderedmap/v2"

	"voxelstream.ai/internal/voxel"
)

// loadQueue is a FIFO of chunk positions without duplicates.
type loadQueue struct {
	mu sync.Mutex
	m  *orderedmap.OrderedMap[voxel.ChunkPos, struct{}]
}

func newLoadQueue() *loadQueue {
	return &loadQueue{m: orderedmap.NewOrderedMap[voxel.ChunkPos, struct{}]()}
}

// Push appends p unless it is already queued.
func (q *loadQueue) Push(p voxel.ChunkPos) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if _, ok := q.m.Get(p); ok {
		return false
	}
	q.m.Set(p, struct{}{})
	return true
}

func (q *loadQueue) Remove(p voxel.ChunkPos) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.m.Delete(p)
}

// Snapshot returns the queued positions in FIFO order.
func (q *loadQueue) Snapshot() []voxel.ChunkPos {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]voxel.ChunkPos, 0, q.m.Len())
	for el := q.m.Front(); el != nil; el = el.Next() {
		out = append(out, el.Key)
	}
	return out
}

func (q *loadQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.m.Len()
}
