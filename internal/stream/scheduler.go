// Package stream keeps the chunks around a moving viewpoint resident: it
// builds them from storage or the generator, applies edits, remeshes dirty
// chunks and saves evicted ones, all driven from one control goroutine.
package stream

import (
	"context"
	"errors"
	"io"
	"log"
	"math/rand/v2"
	"sync"
	"time"

	"go.uber.org/atomic"
	"golang.org/x/time/rate"

	"voxelstream.ai/internal/atom"
	"voxelstream.ai/internal/config"
	"voxelstream.ai/internal/gen"
	"voxelstream.ai/internal/mesh"
	"voxelstream.ai/internal/persistence/chunkdb"
	"voxelstream.ai/internal/persistence/journal"
	"voxelstream.ai/internal/voxel"
	"voxelstream.ai/internal/world"
)

var ErrEditQueueFull = errors.New("edit queue full")

// EventSink receives pipeline events. *journal.Journal implements it.
type EventSink interface {
	Record(journal.Event) error
}

type Options struct {
	Config    config.Streaming
	Interner  *atom.Interner
	Generator gen.Generator
	Store     chunkdb.Store
	Textures  mesh.TextureResolver
	Events    EventSink
	Logger    *log.Logger
	Seed      uint64
}

type Scheduler struct {
	cfg    config.Streaming
	in     *atom.Interner
	gen    gen.Generator
	store  chunkdb.Store
	tex    mesh.TextureResolver
	events EventSink
	logger *log.Logger

	index   *world.Index
	pending *world.PendingEdits
	meshes  *mesh.Cache
	pool    *Pool
	limiter *rate.Limiter
	queue   *loadQueue
	edits   chan world.Edit

	viewMu  sync.Mutex
	view    Viewpoint
	hasView bool

	// Everything below is owned by the control goroutine; mu lets other
	// goroutines read it between ticks.
	mu       sync.RWMutex
	records  map[voxel.ChunkPos]*record
	tick     uint64
	rng      *rand.Rand
	bounds   Bounds
	flushing bool

	counters counters
}

type counters struct {
	buildsSpawned atomic.Int64
	buildsFailed  atomic.Int64
	installed     atomic.Int64
	meshesBuilt   atomic.Int64
	meshesReused  atomic.Int64
	meshFailures  atomic.Int64
	saves         atomic.Int64
	savesSkipped  atomic.Int64
	saveFailures  atomic.Int64
	editsApplied  atomic.Int64
	editsDeferred atomic.Int64
}

type nopSink struct{}

func (nopSink) Record(journal.Event) error { return nil }

func New(opts Options) *Scheduler {
	cfg := opts.Config
	if cfg.TickRateHz <= 0 {
		cfg.TickRateHz = 30
	}
	if cfg.EditQueue <= 0 {
		cfg.EditQueue = 4096
	}
	if cfg.RetryBaseTicks <= 0 {
		cfg.RetryBaseTicks = 1
	}
	if cfg.UnloadDistance < cfg.SpawningDistance {
		cfg.UnloadDistance = cfg.SpawningDistance
	}
	events := opts.Events
	if events == nil {
		events = nopSink{}
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	limit := rate.Inf
	burst := 1
	if cfg.MaxBuildsPerSecond > 0 {
		limit = rate.Limit(cfg.MaxBuildsPerSecond)
		burst = max(1, int(cfg.MaxBuildsPerSecond/float64(cfg.TickRateHz))+1)
	}
	return &Scheduler{
		cfg:     cfg,
		in:      opts.Interner,
		gen:     opts.Generator,
		store:   opts.Store,
		tex:     opts.Textures,
		events:  events,
		logger:  logger,
		index:   world.NewIndex(),
		pending: world.NewPendingEdits(),
		meshes:  mesh.NewCache(),
		pool:    NewPool(cfg.Workers, cfg.TaskQueue),
		limiter: rate.NewLimiter(limit, burst),
		queue:   newLoadQueue(),
		edits:   make(chan world.Edit, cfg.EditQueue),
		records: make(map[voxel.ChunkPos]*record),
		rng:     rand.New(rand.NewPCG(opts.Seed, opts.Seed^0x9e3779b97f4a7c15)),
	}
}

// RequestLoad asks for pos to be built on a later tick. Safe for concurrent use.
func (s *Scheduler) RequestLoad(pos voxel.ChunkPos) {
	s.queue.Push(pos)
}

// SubmitEdit queues a block replacement for the next tick. Safe for
// concurrent use.
func (s *Scheduler) SubmitEdit(pos voxel.BlockPos, id atom.Atom) error {
	if id.IsZero() {
		return errors.New("empty block id")
	}
	select {
	case s.edits <- world.Edit{Pos: pos, ID: id}:
		return nil
	default:
		return ErrEditQueueFull
	}
}

// SetViewpoint replaces the camera used for load selection and eviction.
func (s *Scheduler) SetViewpoint(v Viewpoint) {
	s.viewMu.Lock()
	s.view = v
	s.hasView = true
	s.viewMu.Unlock()
}

func (s *Scheduler) viewpoint() (Viewpoint, bool) {
	s.viewMu.Lock()
	defer s.viewMu.Unlock()
	return s.view, s.hasView
}

// Tick runs one control pass. It never waits for a task.
func (s *Scheduler) Tick() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tick++

	s.applyEdits()
	if v, ok := s.viewpoint(); ok {
		s.selectVisible(v)
	}
	s.spawnBuilds()
	s.pollBuilds()
	if v, ok := s.viewpoint(); ok {
		s.unloadBeyond(v.Chunk(), int64(s.cfg.UnloadDistance)*int64(s.cfg.UnloadDistance))
	}
	s.spawnSaves()
	s.spawnRemesh()
	s.pollRemesh()
	s.pollSaves()

	if s.cfg.MeshCompactEveryTicks > 0 && s.tick%uint64(s.cfg.MeshCompactEveryTicks) == 0 {
		if n := s.meshes.Compact(); n > 0 {
			s.logger.Printf("mesh cache: compacted %d entries", n)
		}
		s.in.Sweep()
	}
}

// Run ticks at the configured rate until ctx is done.
func (s *Scheduler) Run(ctx context.Context) error {
	interval := time.Second / time.Duration(s.cfg.TickRateHz)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.Tick()
		}
	}
}

// Flush evicts and saves every resident chunk, first loading any chunk that
// still has pending edits. It returns once nothing is loading, loaded or
// saving, or when ctx is done.
func (s *Scheduler) Flush(ctx context.Context) error {
	interval := time.Second / time.Duration(s.cfg.TickRateHz)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.mu.Lock()
	s.flushing = true
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.flushing = false
		s.mu.Unlock()
	}()

	for {
		if s.flushStep() {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (s *Scheduler) flushStep() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tick++

	s.applyEdits()
	for _, p := range s.pending.Chunks() {
		if rec := s.records[p]; rec != nil && rec.state == Failed && rec.failures > s.cfg.MaxRetries {
			continue
		}
		s.queue.Push(p)
	}
	s.spawnBuilds()
	s.pollBuilds()
	s.unloadBeyond(voxel.ChunkPos{}, -1)
	s.spawnSaves()
	s.pollRemesh()
	s.pollSaves()

	for _, rec := range s.records {
		switch rec.state {
		case Loading, Loaded, Dirty, Remeshing, Unloading, Saving:
			return false
		}
	}
	return s.queue.Len() == 0 && len(s.edits) == 0
}

// Close stops the worker pool after in-flight tasks finish. Call Flush first
// to persist resident chunks.
func (s *Scheduler) Close() {
	s.pool.Close()
}

func (s *Scheduler) record(pos voxel.ChunkPos) *record {
	rec := s.records[pos]
	if rec == nil {
		rec = &record{}
		s.records[pos] = rec
	}
	return rec
}

func (s *Scheduler) markDirty(pos voxel.ChunkPos) {
	rec := s.records[pos]
	if rec == nil {
		return
	}
	switch rec.state {
	case Loaded:
		rec.state = Dirty
	case Remeshing:
		rec.redirty = true
	}
}

func (s *Scheduler) emit(e journal.Event) {
	if err := s.events.Record(e); err != nil {
		s.logger.Printf("journal: %v", err)
	}
}

func (s *Scheduler) fail(rec *record, err error) {
	rec.failures++
	rec.lastErr = err
	shift := min(rec.failures-1, 16)
	rec.retryAt = s.tick + uint64(s.cfg.RetryBaseTicks)<<shift
}
