package stream

import (
	"voxelstream.ai/internal/mesh"
	"voxelstream.ai/internal/voxel"
	"voxelstream.ai/internal/world"
)

// Mesh returns the current mesh of a resident chunk. A nil mesh with true
// means the chunk is resident but empty or not meshed yet.
func (s *Scheduler) Mesh(pos voxel.ChunkPos) (*mesh.Mesh, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec := s.records[pos]
	if rec == nil || !s.index.IsLoaded(pos) {
		return nil, false
	}
	return rec.mesh, true
}

// Chunk returns a copy of the resident chunk at pos.
func (s *Scheduler) Chunk(pos voxel.ChunkPos) (*voxel.ChunkData, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.index.Loaded(pos)
	if !ok {
		return nil, false
	}
	return c.Clone(), true
}

func (s *Scheduler) State(pos voxel.ChunkPos) State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if rec := s.records[pos]; rec != nil {
		return rec.state
	}
	return Unloaded
}

// LastError is the most recent failure recorded for pos.
func (s *Scheduler) LastError(pos voxel.ChunkPos) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if rec := s.records[pos]; rec != nil {
		return rec.lastErr
	}
	return nil
}

// Bounds returns the box around every resident chunk.
func (s *Scheduler) Bounds() Bounds {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.bounds
}

type Stats struct {
	Tick    uint64           `json:"tick"`
	Index   world.Counts     `json:"index"`
	Queued  int              `json:"queued"`
	Pending int              `json:"pending_edits"`
	States  map[string]int   `json:"states"`
	Meshes  mesh.CacheStats  `json:"mesh_cache"`
	Atoms   int              `json:"atoms"`
	Bounds  Bounds           `json:"bounds"`
	Counter map[string]int64 `json:"counters"`
}

func (s *Scheduler) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st := Stats{
		Tick:    s.tick,
		Index:   s.index.Counts(),
		Queued:  s.queue.Len(),
		Pending: s.pending.Len(),
		States:  make(map[string]int),
		Meshes:  s.meshes.Stats(),
		Atoms:   s.in.Len(),
		Bounds:  s.bounds,
		Counter: map[string]int64{
			"builds_spawned": s.counters.buildsSpawned.Load(),
			"builds_failed":  s.counters.buildsFailed.Load(),
			"installed":      s.counters.installed.Load(),
			"meshes_built":   s.counters.meshesBuilt.Load(),
			"meshes_reused":  s.counters.meshesReused.Load(),
			"mesh_failures":  s.counters.meshFailures.Load(),
			"saves":          s.counters.saves.Load(),
			"saves_skipped":  s.counters.savesSkipped.Load(),
			"save_failures":  s.counters.saveFailures.Load(),
			"edits_applied":  s.counters.editsApplied.Load(),
			"edits_deferred": s.counters.editsDeferred.Load(),
		},
	}
	for _, rec := range s.records {
		st.States[rec.state.String()]++
	}
	return st
}
