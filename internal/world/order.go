package world

import (
	"cmp"
	"slices"

	"voxelstream.ai/internal/voxel"
)

// SortPositions orders chunk positions by x, then y, then z.
func SortPositions(ps []voxel.ChunkPos) {
	slices.SortFunc(ps, func(a, b voxel.ChunkPos) int {
		if c := cmp.Compare(a.X, b.X); c != 0 {
			return c
		}
		if c := cmp.Compare(a.Y, b.Y); c != 0 {
			return c
		}
		return cmp.Compare(a.Z, b.Z)
	})
}

func compareBlock(a, b voxel.BlockPos) int {
	if c := cmp.Compare(a.X, b.X); c != 0 {
		return c
	}
	if c := cmp.Compare(a.Y, b.Y); c != 0 {
		return c
	}
	return cmp.Compare(a.Z, b.Z)
}
