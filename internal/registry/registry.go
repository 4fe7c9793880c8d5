// Package registry resolves block ids to texture slots for the mesher.
package registry

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/scylladb/go-set/strset"

	"voxelstream.ai/internal/atom"
)

var (
	ErrUnknownBlock   = errors.New("unknown block id")
	ErrMissingTexture = errors.New("missing texture")
)

type BlockDef struct {
	ID       string        `json:"id"`
	Textures BlockTextures `json:"textures"`
}

// BlockTextures names one image per face. Unset faces fall back to side, and
// side falls back to top.
type BlockTextures struct {
	Top    string `json:"top"`
	Bottom string `json:"bottom,omitempty"`
	Side   string `json:"side,omitempty"`
	Front  string `json:"front,omitempty"`
	Back   string `json:"back,omitempty"`
	Left   string `json:"left,omitempty"`
	Right  string `json:"right,omitempty"`
}

func (t BlockTextures) Face(f Face) string {
	side := or(t.Side, t.Top)
	switch f {
	case Top:
		return t.Top
	case Bottom:
		return or(t.Bottom, t.Top)
	case Right:
		return or(t.Right, side)
	case Left:
		return or(t.Left, side)
	case Front:
		return or(t.Front, side)
	case Back:
		return or(t.Back, side)
	}
	return ""
}

func or(a, b string) string {
	if a != "" {
		return a
	}
	return b
}

// Registry is immutable after construction and safe for concurrent use.
type Registry struct {
	defs     map[atom.Atom]BlockDef
	textures map[string]uint32
	paths    []string

	DefsDigest     string
	TexturesDigest string
}

// Load reads a blocks.json file and interns every id through in.
func Load(path string, in *atom.Interner) (*Registry, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var defs []BlockDef
	if err := json.Unmarshal(raw, &defs); err != nil {
		return nil, fmt.Errorf("blocks.json: %w", err)
	}
	r, err := New(defs, in)
	if err != nil {
		return nil, fmt.Errorf("blocks.json: %w", err)
	}
	r.DefsDigest = sha256Hex(raw)
	return r, nil
}

// New builds a registry from definitions. Texture slots are assigned to the
// sorted set of distinct image paths.
func New(defs []BlockDef, in *atom.Interner) (*Registry, error) {
	r := &Registry{defs: make(map[atom.Atom]BlockDef, len(defs))}
	paths := strset.New()
	for _, d := range defs {
		d.ID = strings.TrimSpace(d.ID)
		if d.ID == "" {
			return nil, errors.New("empty id")
		}
		if d.ID == atom.AirName {
			return nil, fmt.Errorf("%s must not be defined", atom.AirName)
		}
		id := in.Intern(d.ID)
		if _, dup := r.defs[id]; dup {
			return nil, fmt.Errorf("duplicate id %s", d.ID)
		}
		r.defs[id] = d
		for f := Top; f <= Back; f++ {
			if p := d.Textures.Face(f); p != "" {
				paths.Add(p)
			}
		}
	}

	r.paths = paths.List()
	sort.Strings(r.paths)
	if len(r.paths) > MaxTextureSlot {
		return nil, fmt.Errorf("%d textures exceed slot range", len(r.paths))
	}
	r.textures = make(map[string]uint32, len(r.paths))
	for i, p := range r.paths {
		r.textures[p] = uint32(i)
	}
	pathsJSON, _ := json.Marshal(r.paths)
	r.TexturesDigest = sha256Hex(pathsJSON)
	return r, nil
}

// ResolveTexture returns the packed texture index for one face of a block.
func (r *Registry) ResolveTexture(id atom.Atom, face Face) (uint32, error) {
	d, ok := r.defs[id]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownBlock, id.String())
	}
	path := d.Textures.Face(face)
	slot, ok := r.textures[path]
	if !ok || path == "" {
		return 0, fmt.Errorf("%w: %s %s", ErrMissingTexture, id.String(), face)
	}
	return uint32(NewTextureIndex(slot, 0)), nil
}

func (r *Registry) Def(id atom.Atom) (BlockDef, bool) {
	d, ok := r.defs[id]
	return d, ok
}

// TexturePaths lists image paths in slot order.
func (r *Registry) TexturePaths() []string {
	return append([]string(nil), r.paths...)
}

func (r *Registry) Len() int { return len(r.defs) }

func sha256Hex(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}
