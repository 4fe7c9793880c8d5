package world

import (
	"slices"
	"sync"

	"voxelstream.ai/internal/atom"
	"voxelstream.ai/internal/voxel"
)

// Edit is a block replacement at a world position.
type Edit struct {
	Pos voxel.BlockPos
	ID  atom.Atom
}

// PendingEdits buffers edits aimed at chunks that are not resident. A later
// edit to the same position replaces the earlier one.
type PendingEdits struct {
	mu      sync.Mutex
	byPos   map[voxel.BlockPos]atom.Atom
	byChunk map[voxel.ChunkPos]map[voxel.BlockPos]struct{}
}

func NewPendingEdits() *PendingEdits {
	return &PendingEdits{
		byPos:   make(map[voxel.BlockPos]atom.Atom),
		byChunk: make(map[voxel.ChunkPos]map[voxel.BlockPos]struct{}),
	}
}

func (e *PendingEdits) Put(p voxel.BlockPos, id atom.Atom) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.byPos[p] = id
	c := voxel.ChunkOf(p)
	set := e.byChunk[c]
	if set == nil {
		set = make(map[voxel.BlockPos]struct{})
		e.byChunk[c] = set
	}
	set[p] = struct{}{}
}

// Take removes and returns the edit at p.
func (e *PendingEdits) Take(p voxel.BlockPos) (atom.Atom, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	id, ok := e.byPos[p]
	if !ok {
		return atom.Atom{}, false
	}
	e.removeLocked(p)
	return id, true
}

// Peek returns the edit at p without consuming it. Neighbours use this to fill
// their padding from edits owned by another chunk.
func (e *PendingEdits) Peek(p voxel.BlockPos) (atom.Atom, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	id, ok := e.byPos[p]
	return id, ok
}

// TakeInChunk removes every edit owned by chunk c.
func (e *PendingEdits) TakeInChunk(c voxel.ChunkPos) []Edit {
	e.mu.Lock()
	defer e.mu.Unlock()
	set := e.byChunk[c]
	if len(set) == 0 {
		return nil
	}
	out := make([]Edit, 0, len(set))
	for p := range set {
		out = append(out, Edit{Pos: p, ID: e.byPos[p]})
		delete(e.byPos, p)
	}
	delete(e.byChunk, c)
	slices.SortFunc(out, func(a, b Edit) int { return compareBlock(a.Pos, b.Pos) })
	return out
}

// HasInChunk reports whether any edit owned by c is waiting.
func (e *PendingEdits) HasInChunk(c voxel.ChunkPos) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.byChunk[c]) > 0
}

func (e *PendingEdits) Len() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.byPos)
}

func (e *PendingEdits) removeLocked(p voxel.BlockPos) {
	delete(e.byPos, p)
	c := voxel.ChunkOf(p)
	if set := e.byChunk[c]; set != nil {
		delete(set, p)
		if len(set) == 0 {
			delete(e.byChunk, c)
		}
	}
}

// Chunks lists the chunks that own at least one pending edit.
func (e *PendingEdits) Chunks() []voxel.ChunkPos {
	e.mu.Lock()
	out := make([]voxel.ChunkPos, 0, len(e.byChunk))
	for c := range e.byChunk {
		out = append(out, c)
	}
	e.mu.Unlock()
	SortPositions(out)
	return out
}
