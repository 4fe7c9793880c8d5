// Package world tracks which chunks are resident and which edits are waiting
// for a chunk to arrive.
package world

import (
	"sync"

	"github.com/samber/lo"

	"voxelstream.ai/internal/voxel"
)

// Index records the residency of every chunk position. A position is in at
// most one of loading, loaded or saving.
type Index struct {
	mu      sync.RWMutex
	loaded  map[voxel.ChunkPos]*voxel.ChunkData
	loading map[voxel.ChunkPos]struct{}
	saving  map[voxel.ChunkPos]struct{}
}

func NewIndex() *Index {
	return &Index{
		loaded:  make(map[voxel.ChunkPos]*voxel.ChunkData),
		loading: make(map[voxel.ChunkPos]struct{}),
		saving:  make(map[voxel.ChunkPos]struct{}),
	}
}

// CanLoad reports whether p is absent from every set.
func (x *Index) CanLoad(p voxel.ChunkPos) bool {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return x.absentLocked(p)
}

func (x *Index) absentLocked(p voxel.ChunkPos) bool {
	if _, ok := x.loaded[p]; ok {
		return false
	}
	if _, ok := x.loading[p]; ok {
		return false
	}
	_, ok := x.saving[p]
	return !ok
}

// BeginLoad marks p as loading if it is absent everywhere. It returns false
// when a build, a resident copy or a pending save already exists.
func (x *Index) BeginLoad(p voxel.ChunkPos) bool {
	x.mu.Lock()
	defer x.mu.Unlock()
	if !x.absentLocked(p) {
		return false
	}
	x.loading[p] = struct{}{}
	return true
}

// FinishLoad moves c from loading to loaded.
func (x *Index) FinishLoad(c *voxel.ChunkData) {
	x.mu.Lock()
	defer x.mu.Unlock()
	delete(x.loading, c.Pos)
	x.loaded[c.Pos] = c
}

// AbortLoad forgets a failed build.
func (x *Index) AbortLoad(p voxel.ChunkPos) {
	x.mu.Lock()
	defer x.mu.Unlock()
	delete(x.loading, p)
}

func (x *Index) Loaded(p voxel.ChunkPos) (*voxel.ChunkData, bool) {
	x.mu.RLock()
	defer x.mu.RUnlock()
	c, ok := x.loaded[p]
	return c, ok
}

// WithLoaded runs fn on the resident chunk at p while holding the read lock.
// fn must not call back into the index.
func (x *Index) WithLoaded(p voxel.ChunkPos, fn func(*voxel.ChunkData)) bool {
	x.mu.RLock()
	defer x.mu.RUnlock()
	c, ok := x.loaded[p]
	if ok {
		fn(c)
	}
	return ok
}

// BeginSave moves p from loaded to saving and hands out the chunk.
func (x *Index) BeginSave(p voxel.ChunkPos) (*voxel.ChunkData, bool) {
	x.mu.Lock()
	defer x.mu.Unlock()
	c, ok := x.loaded[p]
	if !ok {
		return nil, false
	}
	delete(x.loaded, p)
	x.saving[p] = struct{}{}
	return c, true
}

func (x *Index) FinishSave(p voxel.ChunkPos) {
	x.mu.Lock()
	defer x.mu.Unlock()
	delete(x.saving, p)
}

func (x *Index) IsLoading(p voxel.ChunkPos) bool {
	x.mu.RLock()
	defer x.mu.RUnlock()
	_, ok := x.loading[p]
	return ok
}

func (x *Index) IsSaving(p voxel.ChunkPos) bool {
	x.mu.RLock()
	defer x.mu.RUnlock()
	_, ok := x.saving[p]
	return ok
}

func (x *Index) IsLoaded(p voxel.ChunkPos) bool {
	x.mu.RLock()
	defer x.mu.RUnlock()
	_, ok := x.loaded[p]
	return ok
}

type Counts struct {
	Loaded  int `json:"loaded"`
	Loading int `json:"loading"`
	Saving  int `json:"saving"`
}

func (x *Index) Counts() Counts {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return Counts{Loaded: len(x.loaded), Loading: len(x.loading), Saving: len(x.saving)}
}

// LoadedPositions returns a snapshot of resident positions in a stable order.
func (x *Index) LoadedPositions() []voxel.ChunkPos {
	x.mu.RLock()
	keys := lo.Keys(x.loaded)
	x.mu.RUnlock()
	SortPositions(keys)
	return keys
}

// AbortSave returns a chunk whose save failed to the loaded set.
func (x *Index) AbortSave(c *voxel.ChunkData) {
	x.mu.Lock()
	defer x.mu.Unlock()
	delete(x.saving, c.Pos)
	x.loaded[c.Pos] = c
}
