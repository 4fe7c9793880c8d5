package voxel

// VoxelBlock is the per-cell storage unit: 0 is air, any other value is the
// chunk-local palette index of a solid block.
type VoxelBlock uint16

const Air VoxelBlock = 0

func Solid(idx uint16) VoxelBlock { return VoxelBlock(idx) }

func (v VoxelBlock) IsAir() bool   { return v == Air }
func (v VoxelBlock) IsSolid() bool { return v != Air }

// Index is the raw palette index (0 for air).
func (v VoxelBlock) Index() uint16 { return uint16(v) }
