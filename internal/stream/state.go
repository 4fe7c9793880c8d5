package stream

import (
	"voxelstream.ai/internal/mesh"
	"voxelstream.ai/internal/voxel"
)

// State is the lifecycle stage of one chunk position.
type State uint8

const (
	Unloaded State = iota
	Loading
	Loaded
	Dirty
	Remeshing
	Unloading
	Saving
	Failed
)

var stateNames = [...]string{"unloaded", "loading", "loaded", "dirty", "remeshing", "unloading", "saving", "failed"}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return "unknown"
}

type saveResult struct {
	hash    uint64
	skipped bool
}

type meshResult struct {
	mesh *mesh.Mesh
	hash uint64
}

// record is the control goroutine's view of one position.
type record struct {
	state State

	build  *Task[*voxel.ChunkData]
	remesh *Task[meshResult]
	save   *Task[saveResult]

	// chunk held between BeginSave and the save task being accepted
	unloading *voxel.ChunkData

	redirty bool
	mesh    *mesh.Mesh

	failures int
	retryAt  uint64
	lastErr  error
}
