package stream

import (
	"context"
	"fmt"

	"voxelstream.ai/internal/atom"
	"voxelstream.ai/internal/persistence/chunkdb"
	"voxelstream.ai/internal/persistence/journal"
	"voxelstream.ai/internal/voxel"
	"voxelstream.ai/internal/world"
)

// spawnBuilds starts build tasks for queued positions in FIFO order.
func (s *Scheduler) spawnBuilds() {
	for _, pos := range s.queue.Snapshot() {
		if s.index.IsSaving(pos) {
			// retried once the save lands
			continue
		}
		if !s.index.CanLoad(pos) {
			s.queue.Remove(pos)
			continue
		}
		if s.flushing && !s.pending.HasInChunk(pos) {
			s.queue.Remove(pos)
			continue
		}
		if rec := s.records[pos]; rec != nil && rec.state == Failed {
			if rec.failures > s.cfg.MaxRetries {
				s.queue.Remove(pos)
				continue
			}
			if !s.flushing && s.tick < rec.retryAt {
				// stays queued until the backoff elapses
				continue
			}
		}
		if !s.flushing && !s.limiter.Allow() {
			return
		}
		if !s.index.BeginLoad(pos) {
			s.queue.Remove(pos)
			continue
		}
		p := pos
		task, ok := Spawn(s.pool, func() (*voxel.ChunkData, error) {
			return s.build(context.Background(), p)
		})
		if !ok {
			s.index.AbortLoad(pos)
			return
		}
		s.queue.Remove(pos)
		rec := s.record(pos)
		rec.state = Loading
		rec.build = task
		s.counters.buildsSpawned.Inc()
	}
}

// build runs on a worker. It reads the stored chunk or starts an empty one,
// then fills every padded cell: a pending edit owned by this chunk wins (and
// is consumed), then a pending edit owned by a neighbour (left in place),
// then the generator for fresh chunks, else the stored voxel stays.
func (s *Scheduler) build(ctx context.Context, pos voxel.ChunkPos) (*voxel.ChunkData, error) {
	raw, ok, err := chunkdb.Get(ctx, s.store, pos)
	if err != nil {
		return nil, fmt.Errorf("read chunk %s: %w", pos, err)
	}
	fresh := !ok
	var c *voxel.ChunkData
	if fresh {
		c = voxel.NewChunkData(pos, s.in)
	} else {
		c, err = voxel.Decode(raw, s.in)
		if err != nil {
			return nil, fmt.Errorf("decode chunk %s: %w", pos, err)
		}
		if c.Pos != pos {
			return nil, fmt.Errorf("decode chunk %s: %w: record holds %s", pos, voxel.ErrCorrupt, c.Pos)
		}
	}

	checkEdits := s.pending.Len() > 0
	var taken []world.Edit
	restore := func() {
		for _, e := range taken {
			s.pending.Put(e.Pos, e.ID)
		}
	}

	t := voxel.NewTally(c.Palette)
	for i := range c.Voxels {
		var (
			id  atom.Atom
			set bool
		)
		if checkEdits || fresh {
			wp := voxel.WorldPos(pos, i)
			if checkEdits {
				if voxel.ChunkOf(wp) == pos {
					if id, set = s.pending.Take(wp); set {
						taken = append(taken, world.Edit{Pos: wp, ID: id})
					}
				} else {
					id, set = s.pending.Peek(wp)
				}
			}
			if !set && fresh {
				id, set = s.gen.Generate(wp), true
			}
		}
		if set {
			if err := c.SetVoxel(i, id); err != nil {
				restore()
				return nil, fmt.Errorf("build chunk %s: %w", pos, err)
			}
		}
		t.Add(c.Voxels[i])
	}
	t.Apply(c)
	return c, nil
}

func (s *Scheduler) pollBuilds() {
	for pos, rec := range s.records {
		if rec.state != Loading || rec.build == nil {
			continue
		}
		c, done, err := rec.build.Poll()
		if !done {
			continue
		}
		rec.build = nil
		if err != nil {
			s.index.AbortLoad(pos)
			rec.state = Failed
			s.fail(rec, err)
			if rec.failures <= s.cfg.MaxRetries {
				s.queue.Push(pos)
			}
			s.counters.buildsFailed.Inc()
			s.logger.Printf("chunk %s: build failed (attempt %d): %v", pos, rec.failures, err)
			s.emit(journal.Event{Kind: journal.KindBuildFailed, Chunk: pos.Array(), Attempt: rec.failures, Error: err.Error()})
			continue
		}
		s.install(c, rec)
	}
}

// install makes a built chunk resident and reconciles it with the world as it
// is now: late edits, loaded neighbours and their padding.
func (s *Scheduler) install(c *voxel.ChunkData, rec *record) {
	s.index.FinishLoad(c)
	rec.state = Dirty
	rec.failures = 0
	rec.lastErr = nil
	s.counters.installed.Inc()
	s.reconcile(c)
	s.bounds.Add(c.Pos)
	s.emit(journal.Event{Kind: journal.KindLoaded, Chunk: c.Pos.Array(), Hash: c.Hash})
}

// reconcile folds edits queued while c was not resident into its voxels and
// exchanges padding with resident neighbours.
func (s *Scheduler) reconcile(c *voxel.ChunkData) {
	for _, e := range s.pending.TakeInChunk(c.Pos) {
		_, local := voxel.ChunkVoxelPosition(e.Pos)
		if err := c.SetBlock(local, e.ID); err != nil {
			s.logger.Printf("chunk %s: edit at %s dropped: %v", c.Pos, e.Pos, err)
			continue
		}
		s.counters.editsApplied.Inc()
	}
	for _, n := range s.syncPadding(c) {
		s.markDirty(n)
	}
	c.Refresh()
}

// neighbourSlot indexes the 3×3×3 block of chunks around a chunk.
func neighbourSlot(dx, dy, dz int) int { return (dx + 1) + 3*(dy+1) + 9*(dz+1) }

func side(v int) int {
	switch v {
	case 0:
		return -1
	case voxel.PaddedSize - 1:
		return 1
	}
	return 0
}

// syncPadding makes the boundary layer shared by c and its loaded neighbours
// agree. c's padding takes the neighbours' inner cells (or a pending edit at
// that position when the owner is absent); neighbours' padding takes c's
// inner boundary cells. Neighbours whose content changed are refreshed and
// returned.
func (s *Scheduler) syncPadding(c *voxel.ChunkData) []voxel.ChunkPos {
	var neigh [27]*voxel.ChunkData
	found := false
	for dz := -1; dz <= 1; dz++ {
		for dy := -1; dy <= 1; dy++ {
			for dx := -1; dx <= 1; dx++ {
				if dx == 0 && dy == 0 && dz == 0 {
					continue
				}
				p := c.Pos.Add(voxel.ChunkPos{X: int32(dx), Y: int32(dy), Z: int32(dz)})
				if n, ok := s.index.Loaded(p); ok {
					neigh[neighbourSlot(dx, dy, dz)] = n
					found = true
				}
			}
		}
	}
	checkEdits := s.pending.Len() > 0
	if !found && !checkEdits {
		return nil
	}

	changed := map[voxel.ChunkPos]*voxel.ChunkData{}
	for i := range c.Voxels {
		x, y, z := voxel.Delinearize(i)
		if voxel.IsPadding(x, y, z) {
			wp := voxel.WorldPos(c.Pos, i)
			n := neigh[neighbourSlot(side(x), side(y), side(z))]
			if n == nil {
				if checkEdits {
					if id, ok := s.pending.Peek(wp); ok && c.IDAt(i) != id {
						s.setCell(c, i, id)
					}
				}
				continue
			}
			j, _ := voxel.PaddedIndex(n.Pos, wp)
			if id := n.IDAt(j); c.IDAt(i) != id {
				s.setCell(c, i, id)
			}
			continue
		}
		if !found || !innerBoundary(x, y, z) {
			continue
		}
		wp := voxel.WorldPos(c.Pos, i)
		id := c.IDAt(i)
		for _, dz := range around(z) {
			for _, dy := range around(y) {
				for _, dx := range around(x) {
					if dx == 0 && dy == 0 && dz == 0 {
						continue
					}
					n := neigh[neighbourSlot(dx, dy, dz)]
					if n == nil {
						continue
					}
					j, ok := voxel.PaddedIndex(n.Pos, wp)
					if !ok || n.IDAt(j) == id {
						continue
					}
					s.setCell(n, j, id)
					changed[n.Pos] = n
				}
			}
		}
	}

	out := make([]voxel.ChunkPos, 0, len(changed))
	for p, n := range changed {
		n.Refresh()
		out = append(out, p)
	}
	return out
}

func (s *Scheduler) setCell(c *voxel.ChunkData, i int, id atom.Atom) {
	if err := c.SetVoxel(i, id); err != nil {
		s.logger.Printf("chunk %s: padding cell %d not updated: %v", c.Pos, i, err)
	}
}

func innerBoundary(x, y, z int) bool {
	return x == 1 || y == 1 || z == 1 ||
		x == voxel.ChunkSize || y == voxel.ChunkSize || z == voxel.ChunkSize
}

var (
	aroundLow  = []int{0, -1}
	aroundHigh = []int{0, 1}
	aroundMid  = []int{0}
)

// around lists the neighbour offsets along one axis whose padding contains an
// inner cell at padded coordinate v.
func around(v int) []int {
	switch v {
	case 1:
		return aroundLow
	case voxel.ChunkSize:
		return aroundHigh
	}
	return aroundMid
}
