package registry

// Face is one of the six axis-aligned faces of a block.
type Face uint8

const (
	Top    Face = iota // +Y
	Bottom             // -Y
	Right              // +X
	Left               // -X
	Front              // +Z
	Back               // -Z
)

var faceNames = [...]string{"top", "bottom", "right", "left", "front", "back"}

func (f Face) String() string {
	if int(f) < len(faceNames) {
		return faceNames[f]
	}
	return "unknown"
}

// FaceFor returns the face whose outward normal points along +axis (positive)
// or -axis. Axis 0 is X, 1 is Y, 2 is Z.
func FaceFor(axis int, positive bool) Face {
	switch axis {
	case 0:
		if positive {
			return Right
		}
		return Left
	case 1:
		if positive {
			return Top
		}
		return Bottom
	default:
		if positive {
			return Front
		}
		return Back
	}
}

// TextureIndex packs a texture slot (upper 28 bits) and a per-face layer
// offset (lower 4 bits) into one vertex attribute.
type TextureIndex uint32

const MaxTextureSlot = 0x0FFFFFFF

func NewTextureIndex(idx uint32, offset uint8) TextureIndex {
	return TextureIndex(idx<<4 | uint32(offset&0xF))
}

func (t TextureIndex) Idx() uint32   { return uint32(t) >> 4 }
func (t TextureIndex) Offset() uint8 { return uint8(t & 0xF) }

func (t TextureIndex) WithIdx(idx uint32) TextureIndex {
	return TextureIndex(idx<<4 | uint32(t)&0xF)
}

func (t TextureIndex) WithOffset(offset uint8) TextureIndex {
	return TextureIndex(uint32(t)&^0xF | uint32(offset&0xF))
}
