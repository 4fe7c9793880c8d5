package voxel

const (
	ChunkSize    = 32
	PaddedSize   = ChunkSize + 2 // one cell of padding on every face
	PaddedVolume = PaddedSize * PaddedSize * PaddedSize
)

// Linearize maps padded-grid coordinates to a voxel index (x fastest, then y, then z).
func Linearize(x, y, z int) int {
	return x + PaddedSize*(y+PaddedSize*z)
}

func Delinearize(i int) (x, y, z int) {
	x = i % PaddedSize
	y = (i / PaddedSize) % PaddedSize
	z = i / (PaddedSize * PaddedSize)
	return x, y, z
}

// IsPadding reports whether the padded-grid coordinate lies on the boundary layer.
func IsPadding(x, y, z int) bool {
	return x == 0 || y == 0 || z == 0 ||
		x == PaddedSize-1 || y == PaddedSize-1 || z == PaddedSize-1
}
