package stream

import (
	"context"
	"fmt"

	"voxelstream.ai/internal/persistence/chunkdb"
	"voxelstream.ai/internal/persistence/journal"
	"voxelstream.ai/internal/voxel"
)

// unloadBeyond evicts resident chunks farther than sqrt(radius2) from center.
// A negative radius2 evicts everything. Chunks being remeshed stay until the
// mesh task lands; chunks whose last save failed wait out their backoff.
func (s *Scheduler) unloadBeyond(center voxel.ChunkPos, radius2 int64) {
	evicted := false
	for pos, rec := range s.records {
		if rec.state != Loaded && rec.state != Dirty {
			continue
		}
		if radius2 >= 0 && pos.DistanceSquared(center) <= radius2 {
			continue
		}
		if rec.failures > 0 && !s.flushing && s.tick < rec.retryAt {
			continue
		}
		c, ok := s.index.BeginSave(pos)
		if !ok {
			continue
		}
		rec.state = Unloading
		rec.unloading = c
		rec.mesh = nil
		evicted = true
	}
	if evicted {
		s.bounds.Rebuild(s.index.LoadedPositions())
	}
}

// spawnSaves starts save tasks for evicted chunks.
func (s *Scheduler) spawnSaves() {
	for _, rec := range s.records {
		if rec.state != Unloading || rec.unloading == nil {
			continue
		}
		c := rec.unloading
		task, ok := Spawn(s.pool, func() (saveResult, error) {
			return s.save(context.Background(), c)
		})
		if !ok {
			return
		}
		rec.save = task
		rec.state = Saving
	}
}

// save writes c unless the stored record already carries the same content
// hash. The header comparison and the write share one transaction.
func (s *Scheduler) save(ctx context.Context, c *voxel.ChunkData) (saveResult, error) {
	res := saveResult{hash: c.Hash}
	err := s.store.Update(ctx, func(t chunkdb.WriteTable) error {
		raw, ok, err := t.Get(c.Pos)
		if err != nil {
			return err
		}
		if ok {
			if h, err := voxel.ReadHeader(raw); err == nil && h == c.Hash {
				res.skipped = true
				return nil
			}
		}
		b, err := voxel.Encode(c)
		if err != nil {
			return err
		}
		return t.Put(c.Pos, b)
	})
	if err != nil {
		return res, fmt.Errorf("save chunk %s: %w", c.Pos, err)
	}
	return res, nil
}

func (s *Scheduler) pollSaves() {
	for pos, rec := range s.records {
		if rec.state != Saving || rec.save == nil {
			continue
		}
		res, done, err := rec.save.Poll()
		if !done {
			continue
		}
		rec.save = nil
		c := rec.unloading
		rec.unloading = nil
		if err != nil {
			// Keep the chunk resident so the edit is not lost; eviction is
			// retried after backoff.
			s.index.AbortSave(c)
			s.reconcile(c)
			rec.state = Dirty
			s.fail(rec, err)
			s.bounds.Add(pos)
			s.counters.saveFailures.Inc()
			s.logger.Printf("chunk %s: save failed (attempt %d): %v", pos, rec.failures, err)
			s.emit(journal.Event{Kind: journal.KindSaveFailed, Chunk: pos.Array(), Hash: res.hash, Attempt: rec.failures, Error: err.Error()})
			continue
		}
		s.index.FinishSave(pos)
		if res.skipped {
			s.counters.savesSkipped.Inc()
			s.emit(journal.Event{Kind: journal.KindSaveSkipped, Chunk: pos.Array(), Hash: res.hash})
		} else {
			s.counters.saves.Inc()
			s.emit(journal.Event{Kind: journal.KindSaved, Chunk: pos.Array(), Hash: res.hash})
		}
		s.emit(journal.Event{Kind: journal.KindUnloaded, Chunk: pos.Array()})
		delete(s.records, pos)
	}
}
