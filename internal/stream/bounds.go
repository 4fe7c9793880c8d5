package stream

import "voxelstream.ai/internal/voxel"

// Bounds is the axis-aligned box around every resident chunk position.
type Bounds struct {
	Min   voxel.ChunkPos `json:"min"`
	Max   voxel.ChunkPos `json:"max"`
	Valid bool           `json:"valid"`
}

func (b *Bounds) Add(p voxel.ChunkPos) {
	if !b.Valid {
		b.Min, b.Max, b.Valid = p, p, true
		return
	}
	b.Min = voxel.ChunkPos{X: min(b.Min.X, p.X), Y: min(b.Min.Y, p.Y), Z: min(b.Min.Z, p.Z)}
	b.Max = voxel.ChunkPos{X: max(b.Max.X, p.X), Y: max(b.Max.Y, p.Y), Z: max(b.Max.Z, p.Z)}
}

// Rebuild recomputes the box from scratch; eviction can only shrink it.
func (b *Bounds) Rebuild(ps []voxel.ChunkPos) {
	*b = Bounds{}
	for _, p := range ps {
		b.Add(p)
	}
}

func (b Bounds) Contains(p voxel.ChunkPos) bool {
	return b.Valid &&
		p.X >= b.Min.X && p.X <= b.Max.X &&
		p.Y >= b.Min.Y && p.Y <= b.Max.Y &&
		p.Z >= b.Min.Z && p.Z <= b.Max.Z
}
