package stream

import (
	"math/rand/v2"

	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"

	"voxelstream.ai/internal/voxel"
)

// Viewpoint is the camera the streaming radius and visibility rays are taken
// from. Width and Height are the viewport in pixels; a zero viewport disables
// ray sampling and only the surrounding chunks are requested.
type Viewpoint struct {
	Position   mgl32.Vec3
	View       mgl32.Mat4
	Projection mgl32.Mat4
	Width      int
	Height     int
}

// NewViewpoint builds a perspective camera at pos looking along dir.
func NewViewpoint(pos, dir mgl32.Vec3, fovY, aspect float32, width, height int) Viewpoint {
	if dir.Len() == 0 {
		dir = mgl32.Vec3{0, 0, -1}
	}
	up := mgl32.Vec3{0, 1, 0}
	if math32.Abs(dir.Normalize().Dot(up)) > 0.999 {
		up = mgl32.Vec3{0, 0, 1}
	}
	return Viewpoint{
		Position:   pos,
		View:       mgl32.LookAtV(pos, pos.Add(dir), up),
		Projection: mgl32.Perspective(mgl32.DegToRad(fovY), aspect, 0.1, 4096),
		Width:      width,
		Height:     height,
	}
}

// Chunk returns the chunk containing the camera.
func (v Viewpoint) Chunk() voxel.ChunkPos {
	return chunkAt(v.Position)
}

func chunkAt(p mgl32.Vec3) voxel.ChunkPos {
	return voxel.ChunkPos{
		X: int32(math32.Floor(p[0] / voxel.ChunkSize)),
		Y: int32(math32.Floor(p[1] / voxel.ChunkSize)),
		Z: int32(math32.Floor(p[2] / voxel.ChunkSize)),
	}
}

// ray returns the world-space direction through window coordinate (sx, sy).
func (v Viewpoint) ray(sx, sy float32) (mgl32.Vec3, bool) {
	far, err := mgl32.UnProject(mgl32.Vec3{sx, sy, 1}, v.View, v.Projection, 0, 0, v.Width, v.Height)
	if err != nil {
		return mgl32.Vec3{}, false
	}
	dir := far.Sub(v.Position)
	if dir.Len() == 0 {
		return mgl32.Vec3{}, false
	}
	return dir.Normalize(), true
}

// sampler collects load candidates for one tick.
type sampler struct {
	center   voxel.ChunkPos
	radius2  int64
	backlog  func() int
	maxQueue int
	visited  map[voxel.ChunkPos]struct{}
	isFull   func(voxel.ChunkPos) bool
	canLoad  func(voxel.ChunkPos) bool
	enqueue  func(voxel.ChunkPos)
}

// visit handles one candidate. It returns false when the ray should stop.
func (s *sampler) visit(p voxel.ChunkPos) bool {
	if s.maxQueue > 0 && s.backlog() >= s.maxQueue {
		return false
	}
	if p.DistanceSquared(s.center) > s.radius2 {
		return false
	}
	if _, seen := s.visited[p]; seen {
		return !s.isFull(p)
	}
	s.visited[p] = struct{}{}
	if s.canLoad(p) {
		s.enqueue(p)
	}
	return !s.isFull(p)
}

// sample enqueues the 3×3×3 block around the camera, then walks random rays
// through the viewport (widened by margin pixels) in chunk-sized steps.
func (s *sampler) sample(v Viewpoint, rays, margin int, rng *rand.Rand) {
	for dz := int32(-1); dz <= 1; dz++ {
		for dy := int32(-1); dy <= 1; dy++ {
			for dx := int32(-1); dx <= 1; dx++ {
				s.visit(s.center.Add(voxel.ChunkPos{X: dx, Y: dy, Z: dz}))
			}
		}
	}
	if v.Width <= 0 || v.Height <= 0 {
		return
	}
	steps := int(math32.Sqrt(float32(s.radius2))) + 2
	for i := 0; i < rays; i++ {
		sx := float32(rng.IntN(v.Width+2*margin) - margin)
		sy := float32(rng.IntN(v.Height+2*margin) - margin)
		dir, ok := v.ray(sx, sy)
		if !ok {
			continue
		}
		p := v.Position
		for step := 0; step < steps; step++ {
			p = p.Add(dir.Mul(voxel.ChunkSize))
			if !s.visit(chunkAt(p)) {
				break
			}
		}
		if s.maxQueue > 0 && s.backlog() >= s.maxQueue {
			return
		}
	}
}
