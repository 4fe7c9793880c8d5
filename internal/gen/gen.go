// Package gen holds the deterministic terrain generators used to fill fresh chunks.
package gen

import (
	"fmt"

	"voxelstream.ai/internal/atom"
	"voxelstream.ai/internal/config"
	"voxelstream.ai/internal/voxel"
)

// Generator maps a world position to a block id. Implementations must be
// deterministic and safe for concurrent use.
type Generator interface {
	Generate(p voxel.BlockPos) atom.Atom
}

func New(cfg config.Generator, in *atom.Interner) (Generator, error) {
	switch cfg.Kind {
	case "flat":
		return NewFlat(in, cfg.GroundBlock), nil
	case "noise":
		return NewNoise(in, cfg), nil
	default:
		return nil, fmt.Errorf("unknown generator kind %q", cfg.Kind)
	}
}

// Flat places one layer of ground at y == 0.
type Flat struct {
	ground atom.Atom
	air    atom.Atom
}

func NewFlat(in *atom.Interner, ground string) *Flat {
	return &Flat{ground: in.Intern(ground), air: in.Air()}
}

func (f *Flat) Generate(p voxel.BlockPos) atom.Atom {
	if p.Y == 0 {
		return f.ground
	}
	return f.air
}
