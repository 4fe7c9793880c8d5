package voxel

import (
	"errors"
	"fmt"

	"voxelstream.ai/internal/atom"
)

// MaxPalette is the number of distinct block ids one chunk can reference.
const MaxPalette = 1 << 16

var ErrPaletteOverflow = errors.New("palette overflow")

// Palette is the per-chunk insertion-ordered mapping between block ids and
// compact indices. Index 0 is always air.
type Palette struct {
	ids   []atom.Atom
	index map[atom.Atom]uint16
}

func NewPalette(in *atom.Interner) *Palette {
	p := &Palette{
		ids:   make([]atom.Atom, 0, 8),
		index: make(map[atom.Atom]uint16, 8),
	}
	p.ids = append(p.ids, in.Air())
	p.index[in.Air()] = 0
	return p
}

// MappedIdx returns the index of id, appending it when new.
func (p *Palette) MappedIdx(id atom.Atom) (uint16, error) {
	if idx, ok := p.index[id]; ok {
		return idx, nil
	}
	if len(p.ids) >= MaxPalette {
		return 0, fmt.Errorf("%w: %d ids, cannot add %q", ErrPaletteOverflow, len(p.ids), id.String())
	}
	idx := uint16(len(p.ids))
	p.ids = append(p.ids, id)
	p.index[id] = idx
	return idx, nil
}

func (p *Palette) BlockID(idx uint16) (atom.Atom, bool) {
	if int(idx) >= len(p.ids) {
		return atom.Atom{}, false
	}
	return p.ids[idx], true
}

// VoxelBlock maps id to a cell value, registering id in the palette if needed.
func (p *Palette) VoxelBlock(id atom.Atom) (VoxelBlock, error) {
	if id == p.ids[0] {
		return Air, nil
	}
	idx, err := p.MappedIdx(id)
	if err != nil {
		return Air, err
	}
	return Solid(idx), nil
}

func (p *Palette) Air() atom.Atom { return p.ids[0] }

func (p *Palette) Len() int { return len(p.ids) }

// IDs returns the ids in index order. The slice must not be modified.
func (p *Palette) IDs() []atom.Atom { return p.ids }

func (p *Palette) Clone() *Palette {
	c := &Palette{
		ids:   append([]atom.Atom(nil), p.ids...),
		index: make(map[atom.Atom]uint16, len(p.index)),
	}
	for k, v := range p.index {
		c.index[k] = v
	}
	return c
}

// insertDecoded appends an id read back from storage; it fails on duplicates.
func (p *Palette) insertDecoded(id atom.Atom) error {
	if _, dup := p.index[id]; dup {
		return fmt.Errorf("%w: %q", ErrDuplicateBlockID, id.String())
	}
	if len(p.ids) >= MaxPalette {
		return ErrPaletteOverflow
	}
	p.index[id] = uint16(len(p.ids))
	p.ids = append(p.ids, id)
	return nil
}
