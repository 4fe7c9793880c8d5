package gen

import (
	"math"
	"sync"

	"github.com/brentp/intintmap"
	"github.com/segmentio/fasthash/fnv1a"

	"voxelstream.ai/internal/atom"
	"voxelstream.ai/internal/config"
	"voxelstream.ai/internal/voxel"
)

// Noise builds rolling terrain from layered value noise. Each column below
// the sampled height is one ground block on top, SoilDepth soil blocks, then
// stone. An empty soil or stone name falls back to the ground block.
type Noise struct {
	cfg    config.Generator
	ground atom.Atom
	soil   atom.Atom
	stone  atom.Atom
	air    atom.Atom

	mu      sync.Mutex
	heights *intintmap.Map
}

func NewNoise(in *atom.Interner, cfg config.Generator) *Noise {
	if cfg.Octaves <= 0 {
		cfg.Octaves = 1
	}
	if cfg.Scale <= 0 {
		cfg.Scale = 1
	}
	if cfg.CacheSize <= 0 {
		cfg.CacheSize = 1 << 16
	}
	n := &Noise{
		cfg:     cfg,
		ground:  in.Intern(cfg.GroundBlock),
		air:     in.Air(),
		heights: intintmap.New(cfg.CacheSize, 0.6),
	}
	n.soil, n.stone = n.ground, n.ground
	if cfg.SoilBlock != "" {
		n.soil = in.Intern(cfg.SoilBlock)
	}
	if cfg.StoneBlock != "" {
		n.stone = in.Intern(cfg.StoneBlock)
	}
	return n
}

func (n *Noise) Generate(p voxel.BlockPos) atom.Atom {
	h := n.Height(p.X, p.Z)
	y := float64(p.Y)
	switch {
	case y >= h:
		return n.air
	case y+1 >= h:
		return n.ground
	case y+1+float64(n.cfg.SoilDepth) >= h:
		return n.soil
	default:
		return n.stone
	}
}

// Height returns the terrain height of column (x, z). Samples are memoized;
// the cache is dropped wholesale once it holds CacheSize columns.
func (n *Noise) Height(x, z int32) float64 {
	key := int64(uint64(uint32(x))<<32 | uint64(uint32(z)))

	n.mu.Lock()
	if v, ok := n.heights.Get(key); ok {
		n.mu.Unlock()
		return math.Float64frombits(uint64(v))
	}
	n.mu.Unlock()

	h := n.fractal(float64(x)/n.cfg.Scale, float64(z)/n.cfg.Scale) * n.cfg.Amplitude

	n.mu.Lock()
	if n.heights.Size() >= n.cfg.CacheSize {
		n.heights = intintmap.New(n.cfg.CacheSize, 0.6)
	}
	n.heights.Put(key, int64(math.Float64bits(h)))
	n.mu.Unlock()
	return h
}

func (n *Noise) fractal(x, y float64) float64 {
	frequency := n.cfg.Frequency
	if frequency == 0 {
		frequency = 1
	}
	amplitude := 1.0
	sum := 0.0
	total := 0.0
	for i := 0; i < n.cfg.Octaves; i++ {
		sum += n.value(x*frequency, y*frequency, uint64(i)) * amplitude
		total += amplitude
		amplitude *= n.cfg.Persistence
		frequency *= n.cfg.Lacunarity
	}
	if total == 0 {
		return 0
	}
	return sum / total
}

func (n *Noise) value(x, y float64, octave uint64) float64 {
	x0 := math.Floor(x)
	y0 := math.Floor(y)
	ix, iy := int64(x0), int64(y0)

	sx := smooth(x - x0)
	sy := smooth(y - y0)

	a := lerp(n.lattice(ix, iy, octave), n.lattice(ix+1, iy, octave), sx)
	b := lerp(n.lattice(ix, iy+1, octave), n.lattice(ix+1, iy+1, octave), sx)
	return lerp(a, b, sy)
}

// lattice returns a pseudo-random value in [-1, 1) for an integer lattice point.
func (n *Noise) lattice(x, y int64, octave uint64) float64 {
	h := fnv1a.AddUint64(fnv1a.Init64, uint64(n.cfg.Seed))
	h = fnv1a.AddUint64(h, octave)
	h = fnv1a.AddUint64(h, uint64(x))
	h = fnv1a.AddUint64(h, uint64(y))
	h ^= h >> 29
	h *= 0xbf58476d1ce4e5b9
	h ^= h >> 32
	return float64(h&0xFFFF)/0x8000 - 1.0
}

func smooth(t float64) float64 { return t * t * (3 - 2*t) }

func lerp(a, b, t float64) float64 { return a + t*(b-a) }
