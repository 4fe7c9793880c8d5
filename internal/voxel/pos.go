package voxel

import "fmt"

// ChunkPos is a position on the chunk grid.
type ChunkPos struct {
	X, Y, Z int32
}

func (p ChunkPos) Add(o ChunkPos) ChunkPos {
	return ChunkPos{X: p.X + o.X, Y: p.Y + o.Y, Z: p.Z + o.Z}
}

func (p ChunkPos) DistanceSquared(o ChunkPos) int64 {
	dx := int64(p.X - o.X)
	dy := int64(p.Y - o.Y)
	dz := int64(p.Z - o.Z)
	return dx*dx + dy*dy + dz*dz
}

func (p ChunkPos) Array() [3]int32 { return [3]int32{p.X, p.Y, p.Z} }

func (p ChunkPos) String() string { return fmt.Sprintf("(%d,%d,%d)", p.X, p.Y, p.Z) }

// Origin is the world position of the chunk's first inner cell.
func (p ChunkPos) Origin() BlockPos {
	return BlockPos{X: p.X * ChunkSize, Y: p.Y * ChunkSize, Z: p.Z * ChunkSize}
}

// BlockPos is a position in world block coordinates.
type BlockPos struct {
	X, Y, Z int32
}

func (p BlockPos) String() string { return fmt.Sprintf("[%d,%d,%d]", p.X, p.Y, p.Z) }

// ChunkOf returns the chunk whose inner region owns the block.
func ChunkOf(p BlockPos) ChunkPos {
	return ChunkPos{X: floorDiv(p.X, ChunkSize), Y: floorDiv(p.Y, ChunkSize), Z: floorDiv(p.Z, ChunkSize)}
}

// ChunkVoxelPosition returns the owning chunk and the padded-grid coordinate of
// the block inside it.
func ChunkVoxelPosition(p BlockPos) (ChunkPos, [3]int) {
	c := ChunkOf(p)
	o := c.Origin()
	return c, [3]int{int(p.X-o.X) + 1, int(p.Y-o.Y) + 1, int(p.Z-o.Z) + 1}
}

// WorldPos maps a padded voxel index of chunk c to world coordinates.
func WorldPos(c ChunkPos, i int) BlockPos {
	x, y, z := Delinearize(i)
	o := c.Origin()
	return BlockPos{X: o.X + int32(x) - 1, Y: o.Y + int32(y) - 1, Z: o.Z + int32(z) - 1}
}

// PaddedIndex returns the index of world block p inside chunk c's padded grid,
// or false when p lies outside it.
func PaddedIndex(c ChunkPos, p BlockPos) (int, bool) {
	o := c.Origin()
	x := int(p.X-o.X) + 1
	y := int(p.Y-o.Y) + 1
	z := int(p.Z-o.Z) + 1
	if x < 0 || y < 0 || z < 0 || x >= PaddedSize || y >= PaddedSize || z >= PaddedSize {
		return 0, false
	}
	return Linearize(x, y, z), true
}

func floorDiv(a, b int32) int32 {
	q := a / b
	if r := a % b; r != 0 && (r < 0) != (b < 0) {
		q--
	}
	return q
}
