package stream

import (
	"voxelstream.ai/internal/persistence/journal"
	"voxelstream.ai/internal/voxel"
	"voxelstream.ai/internal/world"
)

// applyEdits drains the edit queue. Edits to resident chunks are written in
// place; the rest wait in the pending buffer and request a load. Every
// resident chunk whose padding covers the position is updated as well.
func (s *Scheduler) applyEdits() {
	touched := map[voxel.ChunkPos]*voxel.ChunkData{}
	for {
		var e world.Edit
		select {
		case e = <-s.edits:
		default:
			for p, c := range touched {
				c.Refresh()
				s.markDirty(p)
			}
			return
		}

		owner, local := voxel.ChunkVoxelPosition(e.Pos)
		if c, ok := s.index.Loaded(owner); ok {
			if err := c.SetBlock(local, e.ID); err != nil {
				s.logger.Printf("chunk %s: edit at %s rejected: %v", owner, e.Pos, err)
				continue
			}
			touched[owner] = c
			s.counters.editsApplied.Inc()
		} else {
			s.pending.Put(e.Pos, e.ID)
			if !s.index.IsLoading(owner) {
				s.queue.Push(owner)
			}
			s.counters.editsDeferred.Inc()
		}

		for _, dz := range around(local[2]) {
			for _, dy := range around(local[1]) {
				for _, dx := range around(local[0]) {
					if dx == 0 && dy == 0 && dz == 0 {
						continue
					}
					np := owner.Add(voxel.ChunkPos{X: int32(dx), Y: int32(dy), Z: int32(dz)})
					n, ok := s.index.Loaded(np)
					if !ok {
						continue
					}
					j, ok := voxel.PaddedIndex(np, e.Pos)
					if !ok {
						continue
					}
					s.setCell(n, j, e.ID)
					touched[np] = n
				}
			}
		}
		s.emit(journal.Event{Kind: journal.KindEdit, Chunk: owner.Array(), Block: e.ID.String()})
	}
}
