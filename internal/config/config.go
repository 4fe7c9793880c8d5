package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

type Config struct {
	World     World     `yaml:"world"`
	Streaming Streaming `yaml:"streaming"`
	Storage   Storage   `yaml:"storage"`
	Interner  Interner  `yaml:"interner"`
	Journal   Journal   `yaml:"journal"`
	Registry  Registry  `yaml:"registry"`
}

type World struct {
	Seed      int64     `yaml:"seed"`
	Generator Generator `yaml:"generator"`
}

// Generator selects and parameterizes the terrain generator.
type Generator struct {
	Kind        string `yaml:"kind"` // flat | noise
	GroundBlock string `yaml:"ground_block"`
	// Noise terrain only: SoilDepth blocks of SoilBlock under the surface,
	// StoneBlock below that.
	SoilBlock  string `yaml:"soil_block"`
	StoneBlock string `yaml:"stone_block"`
	SoilDepth  int    `yaml:"soil_depth"`

	Seed        int64   `yaml:"seed"`
	Octaves     int     `yaml:"octaves"`
	Frequency   float64 `yaml:"frequency"`
	Lacunarity  float64 `yaml:"lacunarity"`
	Persistence float64 `yaml:"persistence"`
	Scale       float64 `yaml:"scale"`
	Amplitude   float64 `yaml:"amplitude"`
	CacheSize   int     `yaml:"cache_size"`
}

type Streaming struct {
	TickRateHz int `yaml:"tick_rate_hz"`

	SpawningDistance  int `yaml:"spawning_distance"`
	UnloadDistance    int `yaml:"unload_distance"`
	SpawningRays      int `yaml:"spawning_rays"`
	SpawningRayMargin int `yaml:"spawning_ray_margin"`
	MaxSpawnPerFrame  int `yaml:"max_spawn_per_frame"`

	Workers            int     `yaml:"workers"`
	TaskQueue          int     `yaml:"task_queue"`
	EditQueue          int     `yaml:"edit_queue"`
	MaxBuildsPerSecond float64 `yaml:"max_builds_per_second"`

	RetryBaseTicks int `yaml:"retry_base_ticks"`
	MaxRetries     int `yaml:"max_retries"`

	MeshCompactEveryTicks int `yaml:"mesh_compact_every_ticks"`
}

type Storage struct {
	Backend string `yaml:"backend"` // sqlite | leveldb | memory
	Path    string `yaml:"path"`
}

type Interner struct {
	Capacity int `yaml:"capacity"`
}

type Journal struct {
	Enabled bool   `yaml:"enabled"`
	Dir     string `yaml:"dir"`
}

type Registry struct {
	BlocksPath string `yaml:"blocks_path"`
}

// Load reads a stream.yaml file on top of Defaults. An empty path yields the
// defaults.
func Load(path string) (Config, error) {
	cfg := Defaults()
	if strings.TrimSpace(path) == "" {
		cfg.Normalize()
		return cfg, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return cfg, fmt.Errorf("stream.yaml: %w", err)
	}
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("stream.yaml: %w", err)
	}
	return cfg, nil
}

func Defaults() Config {
	return Config{
		World: World{
			Seed: 1234,
			Generator: Generator{
				Kind:        "noise",
				GroundBlock: "core::grass",
				SoilBlock:   "core::dirt",
				StoneBlock:  "core::stone",
				SoilDepth:   3,
				Octaves:     5,
				Frequency:   1.1,
				Lacunarity:  2.8,
				Persistence: 0.4,
				Scale:       1000,
				Amplitude:   50,
				CacheSize:   1 << 16,
			},
		},
		Streaming: Streaming{
			TickRateHz:            30,
			SpawningDistance:      8,
			UnloadDistance:        10,
			SpawningRays:          96,
			SpawningRayMargin:     24,
			MaxSpawnPerFrame:      8192,
			Workers:               0,
			TaskQueue:             1024,
			EditQueue:             4096,
			MaxBuildsPerSecond:    512,
			RetryBaseTicks:        8,
			MaxRetries:            5,
			MeshCompactEveryTicks: 300,
		},
		Storage: Storage{
			Backend: "sqlite",
			Path:    "data/chunks.sqlite",
		},
		Interner: Interner{Capacity: 1 << 16},
		Journal:  Journal{Enabled: true, Dir: "data/journal"},
		Registry: Registry{BlocksPath: "configs/blocks.json"},
	}
}

// Normalize fills zero values with defaults and canonicalizes names.
func (c *Config) Normalize() {
	if c == nil {
		return
	}
	d := Defaults()
	g := &c.World.Generator
	g.Kind = strings.ToLower(strings.TrimSpace(g.Kind))
	if g.Kind == "" {
		g.Kind = d.World.Generator.Kind
	}
	g.GroundBlock = strings.TrimSpace(g.GroundBlock)
	if g.GroundBlock == "" {
		g.GroundBlock = d.World.Generator.GroundBlock
	}
	g.SoilBlock = strings.TrimSpace(g.SoilBlock)
	g.StoneBlock = strings.TrimSpace(g.StoneBlock)
	if g.SoilDepth < 0 {
		g.SoilDepth = 0
	}
	if g.Seed == 0 {
		g.Seed = c.World.Seed
	}
	if g.Octaves <= 0 {
		g.Octaves = d.World.Generator.Octaves
	}
	if g.Scale <= 0 {
		g.Scale = d.World.Generator.Scale
	}
	if g.CacheSize <= 0 {
		g.CacheSize = d.World.Generator.CacheSize
	}

	s := &c.Streaming
	if s.TickRateHz <= 0 {
		s.TickRateHz = d.Streaming.TickRateHz
	}
	if s.UnloadDistance <= 0 {
		s.UnloadDistance = s.SpawningDistance + 2
	}
	if s.TaskQueue <= 0 {
		s.TaskQueue = d.Streaming.TaskQueue
	}
	if s.EditQueue <= 0 {
		s.EditQueue = d.Streaming.EditQueue
	}
	if s.RetryBaseTicks <= 0 {
		s.RetryBaseTicks = d.Streaming.RetryBaseTicks
	}
	if s.MeshCompactEveryTicks <= 0 {
		s.MeshCompactEveryTicks = d.Streaming.MeshCompactEveryTicks
	}

	c.Storage.Backend = strings.ToLower(strings.TrimSpace(c.Storage.Backend))
	if c.Storage.Backend == "" {
		c.Storage.Backend = d.Storage.Backend
	}
	if c.Interner.Capacity <= 0 {
		c.Interner.Capacity = d.Interner.Capacity
	}
}

func (c Config) Validate() error {
	var errs []error
	switch c.World.Generator.Kind {
	case "flat", "noise":
	default:
		errs = append(errs, fmt.Errorf("world.generator.kind: unknown %q", c.World.Generator.Kind))
	}
	if c.World.Generator.Kind == "noise" {
		if c.World.Generator.Lacunarity <= 0 || c.World.Generator.Persistence <= 0 {
			errs = append(errs, errors.New("world.generator: lacunarity and persistence must be > 0"))
		}
	}
	s := c.Streaming
	if s.SpawningDistance < 1 {
		errs = append(errs, fmt.Errorf("streaming.spawning_distance must be >= 1, got %d", s.SpawningDistance))
	}
	if s.UnloadDistance < s.SpawningDistance {
		errs = append(errs, fmt.Errorf("streaming.unload_distance (%d) must be >= spawning_distance (%d)", s.UnloadDistance, s.SpawningDistance))
	}
	if s.SpawningRays < 0 || s.SpawningRayMargin < 0 || s.MaxSpawnPerFrame < 0 {
		errs = append(errs, errors.New("streaming: ray counts and spawn caps must be non-negative"))
	}
	if s.Workers < 0 {
		errs = append(errs, fmt.Errorf("streaming.workers must be >= 0, got %d", s.Workers))
	}
	if s.MaxBuildsPerSecond < 0 {
		errs = append(errs, fmt.Errorf("streaming.max_builds_per_second must be >= 0, got %v", s.MaxBuildsPerSecond))
	}
	if s.MaxRetries < 0 {
		errs = append(errs, fmt.Errorf("streaming.max_retries must be >= 0, got %d", s.MaxRetries))
	}
	switch c.Storage.Backend {
	case "memory":
	case "sqlite", "leveldb":
		if strings.TrimSpace(c.Storage.Path) == "" {
			errs = append(errs, fmt.Errorf("storage.path is required for %s", c.Storage.Backend))
		}
	default:
		errs = append(errs, fmt.Errorf("storage.backend: unknown %q", c.Storage.Backend))
	}
	if c.Journal.Enabled && strings.TrimSpace(c.Journal.Dir) == "" {
		errs = append(errs, errors.New("journal.dir is required when journal is enabled"))
	}
	return errors.Join(errs...)
}
