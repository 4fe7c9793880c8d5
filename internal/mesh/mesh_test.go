package mesh

import (
	"errors"
	"testing"

	"voxelstream.ai/internal/atom"
	"voxelstream.ai/internal/registry"
	"voxelstream.ai/internal/voxel"
)

type faceTextures struct{}

func (faceTextures) ResolveTexture(id atom.Atom, face registry.Face) (uint32, error) {
	return uint32(registry.NewTextureIndex(uint32(face), 0)), nil
}

var errNoTexture = errors.New("no texture")

type failingTextures struct{}

func (failingTextures) ResolveTexture(atom.Atom, registry.Face) (uint32, error) {
	return 0, errNoTexture
}

func chunkWith(t *testing.T, in *atom.Interner, cells map[[3]int]string) *voxel.ChunkData {
	t.Helper()
	c := voxel.NewChunkData(voxel.ChunkPos{}, in)
	for p, id := range cells {
		if err := c.SetBlock(p, in.Intern(id)); err != nil {
			t.Fatalf("SetBlock: %v", err)
		}
	}
	c.Refresh()
	return c
}

func TestBuild_EmptyChunk(t *testing.T) {
	in := atom.New(0)
	m, err := Build(voxel.NewChunkData(voxel.ChunkPos{}, in), faceTextures{})
	if err != nil || !m.IsEmpty() {
		t.Fatalf("empty chunk: %v quads=%d", err, m.Quads())
	}
}

func TestBuild_SingleBlock(t *testing.T) {
	in := atom.New(0)
	c := chunkWith(t, in, map[[3]int]string{{1, 1, 1}: "core::stone"})
	m, err := Build(c, faceTextures{})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if m.Quads() != 6 || len(m.Indices) != 36 {
		t.Fatalf("got %d quads / %d indices, want 6 / 36", m.Quads(), len(m.Indices))
	}
	for _, p := range m.Positions {
		for k := 0; k < 3; k++ {
			if p[k] < 0 || p[k] > 1 {
				t.Fatalf("vertex %v outside the unit cell", p)
			}
		}
	}
	seen := map[uint32]bool{}
	for _, tx := range m.Textures {
		seen[tx] = true
	}
	if len(seen) != 6 {
		t.Fatalf("expected one texture per face, got %d", len(seen))
	}
}

func TestBuild_WindingMatchesNormal(t *testing.T) {
	in := atom.New(0)
	c := chunkWith(t, in, map[[3]int]string{{5, 9, 20}: "core::stone"})
	m, err := Build(c, faceTextures{})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	for q := 0; q < m.Quads(); q++ {
		i0, i1, i2 := m.Indices[q*6], m.Indices[q*6+1], m.Indices[q*6+2]
		e1 := m.Positions[i1].Sub(m.Positions[i0])
		e2 := m.Positions[i2].Sub(m.Positions[i0])
		if e1.Cross(e2).Dot(m.Normals[i0]) <= 0 {
			t.Fatalf("quad %d winds against normal %v", q, m.Normals[i0])
		}
	}
}

func TestBuild_GreedyMergesSameBlock(t *testing.T) {
	in := atom.New(0)
	same := chunkWith(t, in, map[[3]int]string{{1, 1, 1}: "core::stone", {2, 1, 1}: "core::stone"})
	m, err := Build(same, faceTextures{})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if m.Quads() != 6 {
		t.Fatalf("two equal blocks: got %d quads want 6", m.Quads())
	}

	mixed := chunkWith(t, in, map[[3]int]string{{1, 1, 1}: "core::stone", {2, 1, 1}: "core::dirt"})
	m, err = Build(mixed, faceTextures{})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if m.Quads() != 10 {
		t.Fatalf("two different blocks: got %d quads want 10", m.Quads())
	}
}

func TestBuild_FullInteriorIsSixQuads(t *testing.T) {
	in := atom.New(0)
	stone := in.Intern("core::stone")
	c := voxel.NewChunkData(voxel.ChunkPos{}, in)
	for i := range c.Voxels {
		x, y, z := voxel.Delinearize(i)
		if !voxel.IsPadding(x, y, z) {
			c.SetVoxel(i, stone)
		}
	}
	c.Refresh()
	m, err := Build(c, faceTextures{})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if m.Quads() != 6 {
		t.Fatalf("got %d quads want 6", m.Quads())
	}
}

func TestBuild_PaddingCullsBoundaryFaces(t *testing.T) {
	in := atom.New(0)
	stone := in.Intern("core::stone")
	c := voxel.NewChunkData(voxel.ChunkPos{}, in)
	for i := range c.Voxels {
		c.SetVoxel(i, stone)
	}
	c.Refresh()
	m, err := Build(c, faceTextures{})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if !m.IsEmpty() {
		t.Fatalf("fully enclosed chunk should have no faces, got %d", m.Quads())
	}

	// Solid padding alone never produces geometry.
	p := voxel.NewChunkData(voxel.ChunkPos{}, in)
	p.SetBlock([3]int{0, 5, 5}, stone)
	p.Refresh()
	m, err = Build(p, faceTextures{})
	if err != nil || !m.IsEmpty() {
		t.Fatalf("padding-only chunk: %v quads=%d", err, m.Quads())
	}
}

func TestBuild_ResolverErrorFails(t *testing.T) {
	in := atom.New(0)
	c := chunkWith(t, in, map[[3]int]string{{3, 3, 3}: "core::stone"})
	if _, err := Build(c, failingTextures{}); !errors.Is(err, errNoTexture) {
		t.Fatalf("expected resolver error, got %v", err)
	}
}
