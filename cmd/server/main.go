package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/samber/lo"
	_ "go.uber.org/automaxprocs"

	"voxelstream.ai/internal/atom"
	"voxelstream.ai/internal/config"
	"voxelstream.ai/internal/gen"
	"voxelstream.ai/internal/persistence/chunkdb"
	"voxelstream.ai/internal/persistence/journal"
	"voxelstream.ai/internal/registry"
	"voxelstream.ai/internal/stream"
	"voxelstream.ai/internal/transport/ws"
)

func main() {
	var (
		addr         = flag.String("addr", ":8080", "http listen address")
		configPath   = flag.String("config", "./configs/stream.yaml", "stream config path")
		blocksPath   = flag.String("blocks", "", "block definitions path (default: registry.blocks_path from config)")
		storePath    = flag.String("store", "", "chunk store path (default: storage.path from config)")
		backend      = flag.String("backend", "", "chunk store backend: sqlite|leveldb|memory (default: storage.backend from config)")
		journalDir   = flag.String("journal", "", "journal directory (default: journal.dir from config)")
		sentryDSN    = flag.String("sentry_dsn", "", "sentry DSN for worker panic reports (or set SENTRY_DSN)")
		flushTimeout = flag.Duration("flush_timeout", 30*time.Second, "how long shutdown waits for resident chunks to be saved")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lmicroseconds)

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatalf("load config: %v", err)
	}
	if v := strings.TrimSpace(*blocksPath); v != "" {
		cfg.Registry.BlocksPath = v
	}
	if v := strings.TrimSpace(*storePath); v != "" {
		cfg.Storage.Path = v
	}
	if v := strings.TrimSpace(*backend); v != "" {
		cfg.Storage.Backend = v
	}
	if v := strings.TrimSpace(*journalDir); v != "" {
		cfg.Journal.Dir = v
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatalf("config: %v", err)
	}

	dsn := strings.TrimSpace(*sentryDSN)
	if dsn == "" {
		dsn = os.Getenv("SENTRY_DSN")
	}
	if dsn != "" {
		if err := sentry.Init(sentry.ClientOptions{Dsn: dsn}); err != nil {
			logger.Printf("sentry disabled: %v", err)
		} else {
			defer sentry.Flush(2 * time.Second)
		}
	}

	in := atom.New(cfg.Interner.Capacity)
	reg, err := registry.Load(cfg.Registry.BlocksPath, in)
	if err != nil {
		logger.Fatalf("load blocks: %v", err)
	}
	generator, err := gen.New(cfg.World.Generator, in)
	if err != nil {
		logger.Fatalf("generator: %v", err)
	}

	if dir := filepath.Dir(cfg.Storage.Path); cfg.Storage.Backend != "memory" && dir != "" {
		_ = os.MkdirAll(dir, 0o755)
	}
	store, err := chunkdb.Open(cfg.Storage)
	if err != nil {
		logger.Fatalf("open chunk store: %v", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Printf("close chunk store: %v", err)
		}
	}()

	var events stream.EventSink
	if cfg.Journal.Enabled {
		_ = os.MkdirAll(cfg.Journal.Dir, 0o755)
		j := journal.Open(cfg.Journal.Dir)
		defer func() {
			if err := j.Close(); err != nil {
				logger.Printf("close journal: %v", err)
			}
		}()
		events = j
	}

	sched := stream.New(stream.Options{
		Config:    cfg.Streaming,
		Interner:  in,
		Generator: generator,
		Store:     store,
		Textures:  reg,
		Events:    events,
		Logger:    log.New(os.Stdout, "[stream] ", log.LstdFlags|log.Lmicroseconds),
		Seed:      uint64(cfg.World.Seed),
	})

	logger.Printf("blocks=%d textures=%d digest=%s store=%s(%s) generator=%s",
		reg.Len(), len(reg.TexturePaths()), reg.TexturesDigest, cfg.Storage.Backend, cfg.Storage.Path, cfg.World.Generator.Kind)

	ctx, cancel := signalContext()
	defer cancel()

	runDone := make(chan struct{})
	go func() {
		defer close(runDone)
		if err := sched.Run(ctx); err != nil && err != context.Canceled {
			logger.Printf("scheduler stopped: %v", err)
		}
	}()

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(200)
		_, _ = rw.Write([]byte("ok"))
	})
	mux.HandleFunc("/stats", func(rw http.ResponseWriter, r *http.Request) {
		rw.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(rw).Encode(sched.Stats())
	})
	mux.HandleFunc("/metrics", func(rw http.ResponseWriter, r *http.Request) {
		rw.Header().Set("Content-Type", "text/plain; version=0.0.4")
		writeMetrics(rw, sched.Stats())
	})
	if envBool("VS_ENABLE_PPROF_HTTP", false) {
		mux.HandleFunc("/debug/pprof/", loopbackOnly(pprof.Index))
		mux.HandleFunc("/debug/pprof/cmdline", loopbackOnly(pprof.Cmdline))
		mux.HandleFunc("/debug/pprof/profile", loopbackOnly(pprof.Profile))
		mux.HandleFunc("/debug/pprof/symbol", loopbackOnly(pprof.Symbol))
		mux.HandleFunc("/debug/pprof/trace", loopbackOnly(pprof.Trace))
	} else {
		logger.Printf("pprof endpoints disabled (VS_ENABLE_PPROF_HTTP=false)")
	}
	mux.HandleFunc("/v1/ws", ws.NewServer(ws.Options{
		Stream:         sched,
		Interner:       in,
		Blocks:         reg,
		TexturesDigest: reg.TexturesDigest,
		TextureCount:   len(reg.TexturePaths()),
		Logger:         log.New(os.Stdout, "[ws] ", log.LstdFlags|log.Lmicroseconds),
	}).Handler())

	srv := &http.Server{
		Addr:              *addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel2()
		_ = srv.Shutdown(ctx2)
	}()

	logger.Printf("listening on %s", *addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Printf("ListenAndServe: %v", err)
		cancel()
	}

	<-runDone
	flushCtx, cancelFlush := context.WithTimeout(context.Background(), *flushTimeout)
	defer cancelFlush()
	start := time.Now()
	if err := sched.Flush(flushCtx); err != nil {
		logger.Printf("flush: %v (some chunks may be unsaved)", err)
	}
	sched.Close()
	st := sched.Stats()
	logger.Printf("flushed in %s: saves=%d skipped=%d failures=%d",
		time.Since(start).Round(time.Millisecond), st.Counter["saves"], st.Counter["saves_skipped"], st.Counter["save_failures"])
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan os.Signal, 2)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-ch
		cancel()
	}()
	return ctx, cancel
}

func writeMetrics(rw http.ResponseWriter, st stream.Stats) {
	gauge := func(name, help string, v int64) {
		fmt.Fprintf(rw, "# HELP %s %s\n", name, help)
		fmt.Fprintf(rw, "# TYPE %s gauge\n", name)
		fmt.Fprintf(rw, "%s %d\n", name, v)
	}
	gauge("voxelstream_tick", "Current scheduler tick.", int64(st.Tick))
	gauge("voxelstream_chunks_loaded", "Resident chunks.", int64(st.Index.Loaded))
	gauge("voxelstream_chunks_loading", "Chunks with a build in flight.", int64(st.Index.Loading))
	gauge("voxelstream_chunks_saving", "Chunks with a save in flight.", int64(st.Index.Saving))
	gauge("voxelstream_load_queue_depth", "Positions waiting for a build.", int64(st.Queued))
	gauge("voxelstream_pending_edits", "Edits waiting for their chunk.", int64(st.Pending))
	gauge("voxelstream_mesh_cache_entries", "Live mesh cache entries.", int64(st.Meshes.Entries))
	gauge("voxelstream_atoms", "Interned block ids.", int64(st.Atoms))

	fmt.Fprintf(rw, "# HELP voxelstream_events_total Pipeline outcomes by kind.\n")
	fmt.Fprintf(rw, "# TYPE voxelstream_events_total counter\n")
	keys := lo.Keys(st.Counter)
	slices.Sort(keys)
	for _, k := range keys {
		fmt.Fprintf(rw, "voxelstream_events_total{kind=%q} %d\n", k, st.Counter[k])
	}
	fmt.Fprintf(rw, "voxelstream_events_total{kind=\"mesh_cache_hits\"} %d\n", st.Meshes.Hits)
	fmt.Fprintf(rw, "voxelstream_events_total{kind=\"mesh_cache_misses\"} %d\n", st.Meshes.Misses)
}

func loopbackOnly(h http.HandlerFunc) http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if !isLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}
		h(rw, r)
	}
}

func isLoopbackRemote(remoteAddr string) bool {
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	host = strings.TrimPrefix(host, "[")
	host = strings.TrimSuffix(host, "]")
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

func envBool(name string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(name))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}
