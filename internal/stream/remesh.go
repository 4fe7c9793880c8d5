package stream

import (
	"voxelstream.ai/internal/mesh"
	"voxelstream.ai/internal/persistence/journal"
)

// spawnRemesh hands a snapshot of every dirty chunk to a mesh task. Empty
// chunks and chunks whose content hash is already cached finish immediately.
func (s *Scheduler) spawnRemesh() {
	for pos, rec := range s.records {
		if rec.state != Dirty {
			continue
		}
		c, ok := s.index.Loaded(pos)
		if !ok {
			continue
		}
		if c.IsEmpty() {
			rec.mesh = nil
			rec.state = Loaded
			continue
		}
		if m := s.meshes.Get(c.Hash); m != nil {
			rec.mesh = m
			rec.state = Loaded
			s.counters.meshesReused.Inc()
			continue
		}
		snap := c.Clone()
		task, ok := Spawn(s.pool, func() (meshResult, error) {
			m, _, err := s.meshes.GetOrBuild(snap.Hash, func() (*mesh.Mesh, error) {
				return mesh.Build(snap, s.tex)
			})
			return meshResult{mesh: m, hash: snap.Hash}, err
		})
		if !ok {
			return
		}
		rec.remesh = task
		rec.redirty = false
		rec.state = Remeshing
	}
}

func (s *Scheduler) pollRemesh() {
	for pos, rec := range s.records {
		if rec.state != Remeshing || rec.remesh == nil {
			continue
		}
		res, done, err := rec.remesh.Poll()
		if !done {
			continue
		}
		rec.remesh = nil
		rec.state = Loaded
		if err != nil {
			rec.mesh = nil
			s.counters.meshFailures.Inc()
			s.logger.Printf("chunk %s: mesh failed: %v", pos, err)
			s.emit(journal.Event{Kind: journal.KindMeshFailed, Chunk: pos.Array(), Hash: res.hash, Error: err.Error()})
		} else {
			rec.mesh = res.mesh
			s.counters.meshesBuilt.Inc()
		}
		if rec.redirty {
			rec.redirty = false
			rec.state = Dirty
		}
	}
}
