package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"

	"chronolog/internal/config"
	"chronolog/internal/directory"
	"chronolog/internal/logging"
	"chronolog/internal/metrics"
	"chronolog/internal/persistence"
	"chronolog/internal/pipeline"
)

// defaultChronicle and defaultStory seed a single story pipeline on
// startup so the process has something to ingest into. A real deployment
// would create chronicles and stories through an out-of-process control
// surface, which spec.md §1 places out of scope here.
const (
	defaultChronicle = "demo"
	defaultStory     = "story-1"
)

// buildMux wires the operator-facing HTTP surface: liveness and metrics
// exposition. There is no client ingestion surface here; the Ingestion API
// is library-level, not a network protocol (spec.md §1). Every request is
// wrapped with HTTPTraceMiddleware so operators can correlate a /healthz or
// /metrics probe across log lines by its trace id.
func buildMux(logger *logging.Logger, collector *metrics.Collector) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", healthzHandler)
	mux.Handle("/metrics", collector.Handler())

	traced := http.NewServeMux()
	traced.Handle("/", logging.HTTPTraceMiddleware(logger)(mux))
	return traced
}

func healthzHandler(w http.ResponseWriter, r *http.Request) {
	logging.LoggerFromContext(r.Context()).Debug("health probe answered", logging.Bool("healthy", true))
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "chronologd: config: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "chronologd: logging: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	collector := metrics.New()

	registry := directory.NewClientRegistry()
	dir := directory.New(registry, logger, collector)

	sink, err := persistence.NewSink(cfg.PersistenceDir, cfg.CodecThreshold, logger, collector)
	if err != nil {
		logger.Error("persistence sink init failed", logging.Error(err))
		os.Exit(1)
	}

	cleaner := persistence.NewCleaner(cfg.PersistenceDir, persistence.RetentionPolicy{
		MaxChunks: cfg.RetentionMax,
		MaxAge:    cfg.RetentionMaxAge,
	}, logger)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	runners := map[uint64]*pipeline.Runner{}
	engine := pipeline.NewEngine()

	if err := dir.CreateChronicle(defaultChronicle, nil); err != nil {
		logger.Error("default chronicle creation failed", logging.Error(err))
		os.Exit(1)
	}
	sid, err := dir.CreateStory(defaultChronicle, defaultStory, nil)
	if err != nil {
		logger.Error("default story creation failed", logging.Error(err))
		os.Exit(1)
	}

	queue := pipeline.NewExtractionQueue()
	demoPipeline, err := pipeline.NewStoryPipeline(sid, time.Now(), cfg.ChunkGranularity, cfg.AcceptanceWindow, queue, logger, collector)
	if err != nil {
		logger.Error("default pipeline creation failed", logging.Error(err))
		os.Exit(1)
	}
	sink.Watch(sid, queue)
	engine.Register(sid, demoPipeline)

	runner := pipeline.NewRunner(demoPipeline, cfg.CollectInterval, cfg.ExtractInterval, time.Now, logger)
	runner.Start(ctx)
	runners[sid] = runner

	clientID := uuid.NewString()
	if err := dir.AcquireStory(clientID, defaultChronicle, defaultStory); err != nil {
		logger.Error("default story acquisition failed", logging.Error(err))
	}

	if stories, err := dir.ShowStories(defaultChronicle); err == nil {
		logger.Info("chronicle stories registered", logging.Strings("stories", stories))
	}

	server := &http.Server{Addr: cfg.MetricsAddr, Handler: buildMux(logger, collector)}
	go func() {
		logger.Info("chronologd listening", logging.String("addr", cfg.MetricsAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("metrics server failed", logging.Error(err))
		}
	}()

	go sink.Run(ctx, time.Second)
	go cleaner.Run(ctx, time.Minute)

	logger.Info("chronologd started",
		logging.String("persistence_dir", cfg.PersistenceDir),
		logging.Int64("chunk_granularity_ms", cfg.ChunkGranularity.Milliseconds()),
		logging.Int64("acceptance_window_ms", cfg.AcceptanceWindow.Milliseconds()),
	)

	<-ctx.Done()
	logger.Info("chronologd shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("metrics server shutdown error", logging.Error(err))
	}

	for sid, r := range runners {
		r.Stop()
		engine.Unregister(sid)
	}
	sink.DrainAll()
}
