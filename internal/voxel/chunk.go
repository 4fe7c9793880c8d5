package voxel

import (
	"encoding/binary"

	"github.com/zeebo/xxh3"

	"voxelstream.ai/internal/atom"
)

// ChunkData is one padded cube of voxels plus its aggregate statistics.
// It has exactly one owner at a time and is never mutated concurrently.
type ChunkData struct {
	Pos     ChunkPos
	Voxels  []VoxelBlock // len = PaddedVolume
	Palette *Palette

	SolidCount int
	Uniform    bool // completely filled with a single non-air block
	Hash       uint64
}

func NewChunkData(pos ChunkPos, in *atom.Interner) *ChunkData {
	return &ChunkData{
		Pos:     pos,
		Voxels:  make([]VoxelBlock, PaddedVolume),
		Palette: NewPalette(in),
	}
}

// BlockIDAt returns the block id of cell i; false means air.
func (c *ChunkData) BlockIDAt(i int) (atom.Atom, bool) {
	v := c.Voxels[i]
	if v.IsAir() {
		return atom.Atom{}, false
	}
	return c.Palette.BlockID(v.Index())
}

// IDAt is BlockIDAt with air reported as the air atom.
func (c *ChunkData) IDAt(i int) atom.Atom {
	if id, ok := c.BlockIDAt(i); ok {
		return id
	}
	return c.Palette.Air()
}

// SetVoxel writes id into cell i. Statistics are stale until Refresh.
func (c *ChunkData) SetVoxel(i int, id atom.Atom) error {
	v, err := c.Palette.VoxelBlock(id)
	if err != nil {
		return err
	}
	c.Voxels[i] = v
	return nil
}

// SetBlock writes id at a padded-grid coordinate.
func (c *ChunkData) SetBlock(local [3]int, id atom.Atom) error {
	return c.SetVoxel(Linearize(local[0], local[1], local[2]), id)
}

func (c *ChunkData) IsFull() bool  { return c.SolidCount == PaddedVolume }
func (c *ChunkData) IsEmpty() bool { return c.SolidCount == 0 }

// Refresh recomputes Hash, SolidCount and Uniform from the voxel array.
func (c *ChunkData) Refresh() {
	t := NewTally(c.Palette)
	for _, v := range c.Voxels {
		t.Add(v)
	}
	t.Apply(c)
}

// ContentHash recomputes the hash without touching the cached fields.
func (c *ChunkData) ContentHash() uint64 {
	t := NewTally(c.Palette)
	for _, v := range c.Voxels {
		t.Add(v)
	}
	return t.Sum()
}

func (c *ChunkData) Clone() *ChunkData {
	out := *c
	out.Voxels = append([]VoxelBlock(nil), c.Voxels...)
	out.Palette = c.Palette.Clone()
	return &out
}

// Tally accumulates the running content hash and cell statistics in
// iteration order. Each cell contributes the content hash of its block id
// (0 for air), so equal content hashes equally whatever the palette order.
type Tally struct {
	pal   *Palette
	h     *xxh3.Hasher
	buf   [8]byte
	cells int
	solid int
	first VoxelBlock
	mixed bool
}

func NewTally(p *Palette) *Tally {
	return &Tally{pal: p, h: xxh3.New()}
}

func (t *Tally) Add(v VoxelBlock) {
	var hv uint64
	if v.IsSolid() {
		if id, ok := t.pal.BlockID(v.Index()); ok {
			hv = id.Hash()
		}
		if t.solid == 0 {
			t.first = v
		} else if v != t.first {
			t.mixed = true
		}
		t.solid++
	}
	binary.LittleEndian.PutUint64(t.buf[:], hv)
	_, _ = t.h.Write(t.buf[:])
	t.cells++
}

func (t *Tally) Sum() uint64 { return t.h.Sum64() }

func (t *Tally) Apply(c *ChunkData) {
	c.Hash = t.Sum()
	c.SolidCount = t.solid
	c.Uniform = t.solid == PaddedVolume && t.cells == PaddedVolume && !t.mixed
}
