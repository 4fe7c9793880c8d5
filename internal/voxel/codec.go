package voxel

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sync"

	"github.com/klauspost/compress/zstd"

	"voxelstream.ai/internal/atom"
)

// HeaderSize is the length of the uncompressed content-hash prefix.
const HeaderSize = 8

var (
	ErrShortHeader      = errors.New("chunk record shorter than header")
	ErrCorrupt          = errors.New("corrupt chunk record")
	ErrDuplicateBlockID = errors.New("duplicate block id in palette")
)

var (
	codecOnce sync.Once
	codecErr  error
	encoder   *zstd.Encoder
	decoder   *zstd.Decoder
)

func codec() (*zstd.Encoder, *zstd.Decoder, error) {
	codecOnce.Do(func() {
		encoder, codecErr = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
		if codecErr != nil {
			codecErr = fmt.Errorf("create zstd encoder: %w", codecErr)
			return
		}
		decoder, codecErr = zstd.NewReader(nil, zstd.WithDecoderMaxMemory(64<<20))
		if codecErr != nil {
			codecErr = fmt.Errorf("create zstd decoder: %w", codecErr)
		}
	})
	return encoder, decoder, codecErr
}

// Encode serializes c as
//
//	u64 hash (LE) || zstd( i32 x,y,z | u64 n, n×(u64 len, bytes) | u64 m, m×u16 )
func Encode(c *ChunkData) ([]byte, error) {
	enc, _, err := codec()
	if err != nil {
		return nil, err
	}

	size := 12 + 8 + 8 + 2*len(c.Voxels)
	for _, id := range c.Palette.IDs() {
		size += 8 + len(id.String())
	}
	body := make([]byte, 0, size)
	body = binary.LittleEndian.AppendUint32(body, uint32(c.Pos.X))
	body = binary.LittleEndian.AppendUint32(body, uint32(c.Pos.Y))
	body = binary.LittleEndian.AppendUint32(body, uint32(c.Pos.Z))

	body = binary.LittleEndian.AppendUint64(body, uint64(c.Palette.Len()))
	for _, id := range c.Palette.IDs() {
		s := id.String()
		body = binary.LittleEndian.AppendUint64(body, uint64(len(s)))
		body = append(body, s...)
	}

	body = binary.LittleEndian.AppendUint64(body, uint64(len(c.Voxels)))
	for _, v := range c.Voxels {
		body = binary.LittleEndian.AppendUint16(body, v.Index())
	}

	out := make([]byte, HeaderSize, HeaderSize+len(body)/4)
	binary.LittleEndian.PutUint64(out, c.Hash)
	return enc.EncodeAll(body, out), nil
}

// ReadHeader extracts the stored content hash without decompressing the body.
func ReadHeader(b []byte) (uint64, error) {
	if len(b) < HeaderSize {
		return 0, fmt.Errorf("%w: %d bytes", ErrShortHeader, len(b))
	}
	return binary.LittleEndian.Uint64(b[:HeaderSize]), nil
}

// Decode reverses Encode. Block ids are interned through in; statistics are
// recomputed from the voxel array.
func Decode(b []byte, in *atom.Interner) (*ChunkData, error) {
	if _, err := ReadHeader(b); err != nil {
		return nil, err
	}
	_, dec, err := codec()
	if err != nil {
		return nil, err
	}
	body, err := dec.DecodeAll(b[HeaderSize:], nil)
	if err != nil {
		return nil, fmt.Errorf("%w: zstd: %v", ErrCorrupt, err)
	}

	r := reader{b: body}
	c := &ChunkData{}
	c.Pos.X = int32(r.u32())
	c.Pos.Y = int32(r.u32())
	c.Pos.Z = int32(r.u32())

	n := r.u64()
	if r.err != nil || n == 0 || n > MaxPalette {
		return nil, fmt.Errorf("%w: palette length %d", ErrCorrupt, n)
	}
	c.Palette = &Palette{
		ids:   make([]atom.Atom, 0, n),
		index: make(map[atom.Atom]uint16, n),
	}
	for i := uint64(0); i < n; i++ {
		s := r.str()
		if r.err != nil {
			return nil, r.err
		}
		if err := c.Palette.insertDecoded(in.Intern(s)); err != nil {
			return nil, err
		}
	}
	if c.Palette.ids[0] != in.Air() {
		return nil, fmt.Errorf("%w: palette slot 0 is %q", ErrCorrupt, c.Palette.ids[0].String())
	}

	m := r.u64()
	if r.err != nil || m != PaddedVolume {
		return nil, fmt.Errorf("%w: voxel count %d", ErrCorrupt, m)
	}
	c.Voxels = make([]VoxelBlock, m)
	for i := range c.Voxels {
		idx := r.u16()
		if int(idx) >= len(c.Palette.ids) {
			return nil, fmt.Errorf("%w: voxel %d references palette index %d", ErrCorrupt, i, idx)
		}
		c.Voxels[i] = VoxelBlock(idx)
	}
	if r.err != nil {
		return nil, r.err
	}
	if len(r.b) != 0 {
		return nil, fmt.Errorf("%w: %d trailing bytes", ErrCorrupt, len(r.b))
	}

	c.Refresh()
	return c, nil
}

type reader struct {
	b   []byte
	err error
}

func (r *reader) take(n int) []byte {
	if r.err != nil {
		return nil
	}
	if n < 0 || len(r.b) < n {
		r.err = fmt.Errorf("%w: truncated body", ErrCorrupt)
		return nil
	}
	out := r.b[:n]
	r.b = r.b[n:]
	return out
}

func (r *reader) u16() uint16 {
	if b := r.take(2); b != nil {
		return binary.LittleEndian.Uint16(b)
	}
	return 0
}

func (r *reader) u32() uint32 {
	if b := r.take(4); b != nil {
		return binary.LittleEndian.Uint32(b)
	}
	return 0
}

func (r *reader) u64() uint64 {
	if b := r.take(8); b != nil {
		return binary.LittleEndian.Uint64(b)
	}
	return 0
}

func (r *reader) str() string {
	n := r.u64()
	if r.err != nil {
		return ""
	}
	if n > uint64(len(r.b)) {
		r.err = fmt.Errorf("%w: string length %d", ErrCorrupt, n)
		return ""
	}
	return string(r.take(int(n)))
}
