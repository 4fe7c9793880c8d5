package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoad_StreamYAML(t *testing.T) {
	cfg, err := Load("../../configs/stream.yaml")
	if err != nil {
		t.Fatalf("load stream.yaml: %v", err)
	}
	if cfg.World.Generator.Kind != "noise" {
		t.Fatalf("generator kind: got %q want noise", cfg.World.Generator.Kind)
	}
	if cfg.World.Generator.Seed != cfg.World.Seed {
		t.Fatalf("generator seed should inherit world seed: got %d want %d", cfg.World.Generator.Seed, cfg.World.Seed)
	}
	if cfg.Streaming.UnloadDistance < cfg.Streaming.SpawningDistance {
		t.Fatalf("unload distance %d below spawning distance %d", cfg.Streaming.UnloadDistance, cfg.Streaming.SpawningDistance)
	}
	if cfg.Storage.Backend != "sqlite" {
		t.Fatalf("storage backend: got %q", cfg.Storage.Backend)
	}
	if g := cfg.World.Generator; g.SoilBlock != "core::dirt" || g.StoneBlock != "core::stone" || g.SoilDepth != 3 {
		t.Fatalf("column layers: %q %q %d", g.SoilBlock, g.StoneBlock, g.SoilDepth)
	}
}

func TestLoad_EmptyPathGivesDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}
	if cfg.Streaming.SpawningRays != 96 || cfg.Streaming.MaxSpawnPerFrame != 8192 {
		t.Fatalf("unexpected defaults: %+v", cfg.Streaming)
	}
}

func TestNormalize_FillsDerivedValues(t *testing.T) {
	cfg := Config{
		World:     World{Seed: 77, Generator: Generator{Kind: " FLAT "}},
		Streaming: Streaming{SpawningDistance: 3},
		Storage:   Storage{Backend: "Memory"},
	}
	cfg.Normalize()
	if cfg.World.Generator.Kind != "flat" || cfg.Storage.Backend != "memory" {
		t.Fatalf("names not canonicalized: %q %q", cfg.World.Generator.Kind, cfg.Storage.Backend)
	}
	if cfg.World.Generator.Seed != 77 {
		t.Fatalf("seed: got %d want 77", cfg.World.Generator.Seed)
	}
	if cfg.Streaming.UnloadDistance != 5 {
		t.Fatalf("unload distance: got %d want 5", cfg.Streaming.UnloadDistance)
	}
	if cfg.World.Generator.GroundBlock != "core::grass" {
		t.Fatalf("ground block: got %q", cfg.World.Generator.GroundBlock)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
}

func TestValidate_RejectsBadValues(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "stream.yaml")
	raw := `
world:
  generator:
    kind: caves
streaming:
  spawning_distance: 6
  unload_distance: 4
storage:
  backend: leveldb
  path: ""
`
	if err := os.WriteFile(path, []byte(raw), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	_, err := Load(path)
	if err == nil {
		t.Fatalf("expected validation error")
	}
	for _, want := range []string{"caves", "unload_distance", "storage.path"} {
		if !strings.Contains(err.Error(), want) {
			t.Fatalf("error %q should mention %q", err, want)
		}
	}
}
