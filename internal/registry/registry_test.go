package registry

import (
	"errors"
	"testing"

	"voxelstream.ai/internal/atom"
)

func TestTextureIndex_Packing(t *testing.T) {
	idx := NewTextureIndex(114514, 15)
	if idx.Idx() != 114514 || idx.Offset() != 15 {
		t.Fatalf("got (%d,%d)", idx.Idx(), idx.Offset())
	}
	idx = idx.WithIdx(10086)
	if idx.Idx() != 10086 || idx.Offset() != 15 {
		t.Fatalf("WithIdx: got (%d,%d)", idx.Idx(), idx.Offset())
	}
	idx = idx.WithOffset(8)
	if idx.Idx() != 10086 || idx.Offset() != 8 {
		t.Fatalf("WithOffset: got (%d,%d)", idx.Idx(), idx.Offset())
	}
}

func TestBlockTextures_Fallbacks(t *testing.T) {
	tx := BlockTextures{Top: "top", Side: "side", Front: "front"}
	want := map[Face]string{Top: "top", Bottom: "top", Right: "side", Left: "side", Front: "front", Back: "side"}
	for f, w := range want {
		if got := tx.Face(f); got != w {
			t.Fatalf("%s: got %q want %q", f, got, w)
		}
	}
}

func TestLoad_BlocksJSON(t *testing.T) {
	in := atom.New(0)
	r, err := Load("../../configs/blocks.json", in)
	if err != nil {
		t.Fatalf("load blocks.json: %v", err)
	}
	if r.DefsDigest == "" || r.TexturesDigest == "" {
		t.Fatalf("digests should be set")
	}
	paths := r.TexturePaths()
	for i := 1; i < len(paths); i++ {
		if paths[i-1] >= paths[i] {
			t.Fatalf("texture paths not sorted and unique: %v", paths)
		}
	}

	grass := in.Intern("core::grass")
	top, err := r.ResolveTexture(grass, Top)
	if err != nil {
		t.Fatalf("resolve top: %v", err)
	}
	bottom, _ := r.ResolveTexture(grass, Bottom)
	side, _ := r.ResolveTexture(grass, Left)
	if top == bottom || top == side || bottom == side {
		t.Fatalf("grass faces should use distinct textures: %d %d %d", top, bottom, side)
	}
	dirt, _ := r.ResolveTexture(in.Intern("core::dirt"), Front)
	if dirt != bottom {
		t.Fatalf("grass bottom and dirt share an image: got %d want %d", bottom, dirt)
	}
	if TextureIndex(top).Offset() != 0 {
		t.Fatalf("offset should be 0")
	}
}

func TestResolveTexture_Errors(t *testing.T) {
	in := atom.New(0)
	r, err := New([]BlockDef{{ID: "core::glass"}}, in)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := r.ResolveTexture(in.Intern("core::nope"), Top); !errors.Is(err, ErrUnknownBlock) {
		t.Fatalf("unknown block: %v", err)
	}
	if _, err := r.ResolveTexture(in.Intern("core::glass"), Top); !errors.Is(err, ErrMissingTexture) {
		t.Fatalf("missing texture: %v", err)
	}
}

func TestNew_RejectsBadDefs(t *testing.T) {
	in := atom.New(0)
	cases := [][]BlockDef{
		{{ID: ""}},
		{{ID: atom.AirName}},
		{{ID: "a"}, {ID: "a"}},
	}
	for i, defs := range cases {
		if _, err := New(defs, in); err == nil {
			t.Fatalf("case %d: expected error", i)
		}
	}
}
