// Package mesh turns chunk voxels into greedy-merged quads and caches the
// result by chunk content hash.
package mesh

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl32"

	"voxelstream.ai/internal/atom"
	"voxelstream.ai/internal/registry"
	"voxelstream.ai/internal/voxel"
)

// TextureResolver maps a block face to a packed texture index.
type TextureResolver interface {
	ResolveTexture(id atom.Atom, face registry.Face) (uint32, error)
}

// Mesh is a triangle list in chunk-local coordinates: the chunk's inner
// region spans [0, ChunkSize] on every axis.
type Mesh struct {
	Positions []mgl32.Vec3
	Normals   []mgl32.Vec3
	UVs       []mgl32.Vec2
	Textures  []uint32
	Indices   []uint32
}

func (m *Mesh) Quads() int { return len(m.Positions) / 4 }

func (m *Mesh) IsEmpty() bool { return len(m.Indices) == 0 }

const n = voxel.ChunkSize

type faceKey struct {
	idx  uint16
	face registry.Face
}

type builder struct {
	c    *voxel.ChunkData
	tex  TextureResolver
	m    *Mesh
	memo map[faceKey]uint32
	mask [n * n]voxel.VoxelBlock
}

// Build meshes the inner cells of c. Padding cells are only consulted to cull
// faces hidden by a neighbouring chunk. Adjacent visible faces sharing a
// palette index are merged into one quad.
func Build(c *voxel.ChunkData, tex TextureResolver) (*Mesh, error) {
	b := &builder{c: c, tex: tex, m: &Mesh{}, memo: make(map[faceKey]uint32)}
	if c.IsEmpty() {
		return b.m, nil
	}
	for d := 0; d < 3; d++ {
		for _, positive := range [2]bool{true, false} {
			if err := b.direction(d, positive); err != nil {
				return nil, err
			}
		}
	}
	return b.m, nil
}

func (b *builder) direction(d int, positive bool) error {
	u, v := (d+1)%3, (d+2)%3
	step := -1
	if positive {
		step = 1
	}
	var p [3]int
	for s := 1; s <= n; s++ {
		p[d] = s
		for j := 0; j < n; j++ {
			p[v] = j + 1
			for i := 0; i < n; i++ {
				p[u] = i + 1
				cur := b.c.Voxels[voxel.Linearize(p[0], p[1], p[2])]
				q := p
				q[d] += step
				if cur.IsAir() || b.c.Voxels[voxel.Linearize(q[0], q[1], q[2])].IsSolid() {
					b.mask[j*n+i] = voxel.Air
					continue
				}
				b.mask[j*n+i] = cur
			}
		}
		if err := b.merge(d, u, v, s, positive); err != nil {
			return err
		}
	}
	return nil
}

func (b *builder) merge(d, u, v, s int, positive bool) error {
	for j := 0; j < n; j++ {
		for i := 0; i < n; {
			cur := b.mask[j*n+i]
			if cur.IsAir() {
				i++
				continue
			}
			w := 1
			for i+w < n && b.mask[j*n+i+w] == cur {
				w++
			}
			h := 1
		grow:
			for j+h < n {
				for k := 0; k < w; k++ {
					if b.mask[(j+h)*n+i+k] != cur {
						break grow
					}
				}
				h++
			}
			if err := b.quad(d, u, v, s, i, j, w, h, cur, positive); err != nil {
				return err
			}
			for jj := j; jj < j+h; jj++ {
				for ii := i; ii < i+w; ii++ {
					b.mask[jj*n+ii] = voxel.Air
				}
			}
			i += w
		}
	}
	return nil
}

func (b *builder) quad(d, u, v, s, i, j, w, h int, cell voxel.VoxelBlock, positive bool) error {
	face := registry.FaceFor(d, positive)
	texIdx, err := b.texture(cell.Index(), face)
	if err != nil {
		return err
	}

	var base, du, dv mgl32.Vec3
	base[d] = float32(s - 1)
	if positive {
		base[d]++
	}
	base[u] = float32(i)
	base[v] = float32(j)
	du[u] = float32(w)
	dv[v] = float32(h)

	var normal mgl32.Vec3
	normal[d] = -1
	if positive {
		normal[d] = 1
	}

	fw, fh := float32(w), float32(h)
	corners := [4]mgl32.Vec3{base, base.Add(du), base.Add(du).Add(dv), base.Add(dv)}
	uvs := [4]mgl32.Vec2{{0, 0}, {fw, 0}, {fw, fh}, {0, fh}}
	if !positive {
		corners[1], corners[3] = corners[3], corners[1]
		uvs[1], uvs[3] = uvs[3], uvs[1]
	}

	start := uint32(len(b.m.Positions))
	for k := 0; k < 4; k++ {
		b.m.Positions = append(b.m.Positions, corners[k])
		b.m.Normals = append(b.m.Normals, normal)
		b.m.UVs = append(b.m.UVs, uvs[k])
		b.m.Textures = append(b.m.Textures, texIdx)
	}
	b.m.Indices = append(b.m.Indices, start, start+1, start+2, start+2, start+3, start)
	return nil
}

func (b *builder) texture(idx uint16, face registry.Face) (uint32, error) {
	key := faceKey{idx: idx, face: face}
	if t, ok := b.memo[key]; ok {
		return t, nil
	}
	id, ok := b.c.Palette.BlockID(idx)
	if !ok {
		return 0, fmt.Errorf("chunk %s: palette index %d out of range", b.c.Pos, idx)
	}
	t, err := b.tex.ResolveTexture(id, face)
	if err != nil {
		return 0, fmt.Errorf("chunk %s: %w", b.c.Pos, err)
	}
	b.memo[key] = t
	return t, nil
}
