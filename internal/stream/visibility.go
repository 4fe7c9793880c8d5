package stream

import "voxelstream.ai/internal/voxel"

// selectVisible queues the chunks the camera can see this tick. Rays stop at
// the first full chunk since nothing behind it is visible.
func (s *Scheduler) selectVisible(v Viewpoint) {
	r := int64(s.cfg.SpawningDistance)
	smp := sampler{
		center:   v.Chunk(),
		radius2:  r * r,
		backlog:  s.queue.Len,
		maxQueue: s.cfg.MaxSpawnPerFrame,
		visited:  make(map[voxel.ChunkPos]struct{}),
		isFull: func(p voxel.ChunkPos) bool {
			c, ok := s.index.Loaded(p)
			return ok && c.IsFull()
		},
		canLoad: s.index.CanLoad,
		enqueue: func(p voxel.ChunkPos) { s.queue.Push(p) },
	}
	smp.sample(v, s.cfg.SpawningRays, s.cfg.SpawningRayMargin, s.rng)
}
