package gen

import (
	"math"
	"sync"
	"testing"

	"voxelstream.ai/internal/atom"
	"voxelstream.ai/internal/config"
	"voxelstream.ai/internal/voxel"
)

func TestFlat_GroundOnlyAtZero(t *testing.T) {
	in := atom.New(0)
	g := NewFlat(in, "core::grass")
	if got := g.Generate(voxel.BlockPos{X: -5, Y: 0, Z: 9}); got != in.Intern("core::grass") {
		t.Fatalf("y=0: got %q", got)
	}
	for _, y := range []int32{-1, 1, 100} {
		if got := g.Generate(voxel.BlockPos{Y: y}); got != in.Air() {
			t.Fatalf("y=%d: got %q want air", y, got)
		}
	}
}

func TestNew_UnknownKind(t *testing.T) {
	if _, err := New(config.Generator{Kind: "caves"}, atom.New(0)); err == nil {
		t.Fatalf("expected error for unknown generator")
	}
}

func noiseConfig() config.Generator {
	cfg := config.Defaults().World.Generator
	cfg.Seed = 99
	cfg.Scale = 64
	cfg.CacheSize = 128
	return cfg
}

func TestNoise_Deterministic(t *testing.T) {
	a := NewNoise(atom.New(0), noiseConfig())
	b := NewNoise(atom.New(0), noiseConfig())
	for x := int32(-40); x < 40; x += 7 {
		for z := int32(-40); z < 40; z += 5 {
			if ha, hb := a.Height(x, z), b.Height(x, z); ha != hb {
				t.Fatalf("(%d,%d): %v != %v", x, z, ha, hb)
			}
		}
	}
}

func TestNoise_CachedMatchesFresh(t *testing.T) {
	g := NewNoise(atom.New(0), noiseConfig())
	first := g.Height(12, -3)
	for i := 0; i < 500; i++ {
		g.Height(int32(i), int32(i*3))
	}
	if again := g.Height(12, -3); again != first {
		t.Fatalf("height changed after cache reset: %v != %v", again, first)
	}
}

func TestNoise_HeightBoundedByAmplitude(t *testing.T) {
	cfg := noiseConfig()
	g := NewNoise(atom.New(0), cfg)
	for x := int32(0); x < 200; x += 3 {
		h := g.Height(x, x/2)
		if h < -cfg.Amplitude || h > cfg.Amplitude {
			t.Fatalf("height %v outside ±%v", h, cfg.Amplitude)
		}
	}
}

func TestNoise_ColumnsSplitGroundAndAir(t *testing.T) {
	in := atom.New(0)
	cfg := noiseConfig()
	g := NewNoise(in, cfg)
	stone := in.Intern(cfg.StoneBlock)
	top := int32(cfg.Amplitude) + 1
	if got := g.Generate(voxel.BlockPos{X: 3, Y: top, Z: 4}); got != in.Air() {
		t.Fatalf("above amplitude should be air, got %q", got)
	}
	if got := g.Generate(voxel.BlockPos{X: 3, Y: -top - int32(cfg.SoilDepth), Z: 4}); got != stone {
		t.Fatalf("deep below the surface should be stone, got %q", got)
	}
}

func TestNoise_ColumnLayers(t *testing.T) {
	in := atom.New(0)
	cfg := noiseConfig()
	g := NewNoise(in, cfg)
	grass, dirt, stone := in.Intern(cfg.GroundBlock), in.Intern(cfg.SoilBlock), in.Intern(cfg.StoneBlock)

	for _, col := range [][2]int32{{0, 0}, {-17, 40}, {250, -3}} {
		x, z := col[0], col[1]
		top := int32(math.Ceil(g.Height(x, z))) - 1
		if got := g.Generate(voxel.BlockPos{X: x, Y: top + 1, Z: z}); got != in.Air() {
			t.Fatalf("column %v: above surface got %q want air", col, got)
		}
		if got := g.Generate(voxel.BlockPos{X: x, Y: top, Z: z}); got != grass {
			t.Fatalf("column %v: surface got %q want grass", col, got)
		}
		for d := int32(1); d <= int32(cfg.SoilDepth); d++ {
			if got := g.Generate(voxel.BlockPos{X: x, Y: top - d, Z: z}); got != dirt {
				t.Fatalf("column %v: depth %d got %q want dirt", col, d, got)
			}
		}
		if got := g.Generate(voxel.BlockPos{X: x, Y: top - int32(cfg.SoilDepth) - 1, Z: z}); got != stone {
			t.Fatalf("column %v: below soil got %q want stone", col, got)
		}
	}
}

func TestNoise_UnsetLayersFallBackToGround(t *testing.T) {
	in := atom.New(0)
	cfg := noiseConfig()
	cfg.SoilBlock, cfg.StoneBlock = "", ""
	g := NewNoise(in, cfg)
	ground := in.Intern(cfg.GroundBlock)
	if got := g.Generate(voxel.BlockPos{Y: -int32(cfg.Amplitude) - 10}); got != ground {
		t.Fatalf("got %q want ground", got)
	}
}

func TestNoise_ConcurrentUse(t *testing.T) {
	g := NewNoise(atom.New(0), noiseConfig())
	want := g.Height(5, 5)
	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 300; i++ {
				g.Height(int32(i*w), int32(i))
			}
		}(w)
	}
	wg.Wait()
	if got := g.Height(5, 5); got != want {
		t.Fatalf("concurrent use changed result: %v != %v", got, want)
	}
}
