// SPDX-License-Identifier: MIT

// Command daemon runs the coursesmith API server and job worker in one
// process.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/coursesmith/coursesmith/internal/blob"
	"github.com/coursesmith/coursesmith/internal/config"
	httpapi "github.com/coursesmith/coursesmith/internal/control/http"
	"github.com/coursesmith/coursesmith/internal/estimate"
	"github.com/coursesmith/coursesmith/internal/generate"
	"github.com/coursesmith/coursesmith/internal/ingest"
	"github.com/coursesmith/coursesmith/internal/jobs"
	"github.com/coursesmith/coursesmith/internal/log"
	"github.com/coursesmith/coursesmith/internal/provider"
	"github.com/coursesmith/coursesmith/internal/queue"
	"github.com/coursesmith/coursesmith/internal/ratelimit"
	"github.com/coursesmith/coursesmith/internal/registry"
	"github.com/coursesmith/coursesmith/internal/router"
	"github.com/coursesmith/coursesmith/internal/store"
	"github.com/coursesmith/coursesmith/internal/worker"
)

var (
	version   = "v0.3.0"
	commit    = "none"
	buildDate = "unknown"
)

func main() {
	showVersion := flag.Bool("version", false, "print version and exit")
	configPath := flag.String("config", "", "path to config file (YAML)")
	flag.Parse()

	if *showVersion {
		fmt.Printf("%s (commit: %s, built: %s)\n", version, commit, buildDate)
		os.Exit(0)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log.Configure(log.Config{
		Level:   cfg.Logging.Level,
		Service: cfg.Logging.Service,
	})
	logger := log.WithComponent("daemon")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info().
		Str("event", "startup").
		Str("version", version).
		Str("commit", commit).
		Str("build_date", buildDate).
		Str("addr", cfg.Server.Addr).
		Msg("starting coursesmith")

	s, err := store.Open(cfg.Database.Path, cfg.Database.StoreConfig())
	if err != nil {
		logger.Fatal().Err(err).Str("event", "store.open_failed").Msg("failed to open database")
	}
	defer func() { _ = s.Close() }()

	blobs, err := blob.Open(cfg.Blobs.Path)
	if err != nil {
		logger.Fatal().Err(err).Str("event", "blob.open_failed").Msg("failed to open blob store")
	}
	defer func() { _ = blobs.Close() }()

	rdb, err := queue.NewClient(cfg.Redis.QueueConfig())
	if err != nil {
		logger.Fatal().Err(err).Str("event", "redis.connect_failed").Msg("failed to connect to redis")
	}
	defer func() { _ = rdb.Close() }()

	reg, err := registry.Load(cfg.Registry.Path)
	if err != nil {
		logger.Fatal().Err(err).Str("event", "registry.load_failed").
			Str("path", cfg.Registry.Path).Msg("failed to load model registry")
	}

	providers := buildProviders(cfg.Providers)
	rt := router.New(reg, providers, s.LLMCalls.RecordAttempt)

	window, err := cfg.WorkWindow.Window()
	if err != nil {
		logger.Fatal().Err(err).Str("event", "window.invalid").Msg("invalid work window")
	}

	jobSvc := &jobs.Service{
		Jobs:      s.Jobs,
		Materials: s.Materials,
		Queue:     queue.New(rdb),
		Estimator: &estimate.Estimator{Window: window},
	}

	orchestrator := buildIngest(cfg.Media, s, blobs)
	pipeline := generate.New(s, rt)

	handlers := &worker.Handlers{
		Jobs:            s.Jobs,
		Ingest:          orchestrator,
		Generate:        pipeline,
		Window:          window,
		DependencyRetry: cfg.Worker.DependencyRetry,
	}
	qw := queue.NewWorker(rdb,
		queue.WithConcurrency(cfg.Worker.Concurrency),
		queue.WithTaskTimeout(cfg.Worker.TaskTimeout),
	)
	handlers.Register(qw)

	srv := httpapi.NewHTTPServer(cfg.Server.Addr, &httpapi.Server{
		Store:          s,
		Blob:           blobs,
		Jobs:           jobSvc,
		Limiter:        ratelimit.New(cfg.RateLimit.Window),
		Debug:          cfg.Server.Debug,
		IPRateLimit:    cfg.Server.IPRateLimit,
		MaxUploadBytes: cfg.Server.MaxUploadBytes,
	})

	logger.Info().Msgf("→ Database: %s", cfg.Database.Path)
	logger.Info().Msgf("→ Blobs: %s", cfg.Blobs.Path)
	logger.Info().Msgf("→ Redis: %s", cfg.Redis.Addr)
	logger.Info().Msgf("→ Model registry: %s (providers: %v)", cfg.Registry.Path, providers.Names())
	if window.Enabled {
		logger.Info().Msgf("→ Work window: %s-%s %s", window.Start, window.End, cfg.WorkWindow.Timezone)
	} else {
		logger.Info().Msg("→ Work window: disabled (24/7)")
	}
	if cfg.Media.Enabled() {
		logger.Info().Msgf("→ Media service: %s", cfg.Media.BaseURL)
	} else {
		logger.Warn().Msg("→ Media service: not configured; video and presentation ingestion disabled")
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	g.Go(func() error {
		return qw.Run(gctx)
	})
	g.Go(func() error {
		jobs.NewReconciler(s.Jobs, jobSvc.Queue).Run(gctx)
		return nil
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatal().Err(err).Str("event", "daemon.failed").Msg("daemon failed")
	}
	logger.Info().Msg("server exiting")
}

// buildProviders registers every upstream that has credentials.
func buildProviders(cfg config.ProvidersConfig) *provider.Registry {
	reg := provider.NewRegistry()
	if cfg.OpenAI.Enabled() {
		reg.Register(provider.NewOpenAI(provider.OpenAIOptions{
			APIKey:       cfg.OpenAI.APIKey,
			BaseURL:      cfg.OpenAI.BaseURL,
			DefaultModel: cfg.OpenAI.DefaultModel,
			Timeout:      cfg.OpenAI.Timeout,
		}))
	}
	if cfg.Anthropic.Enabled() {
		reg.Register(provider.NewAnthropic(provider.AnthropicOptions{
			APIKey:       cfg.Anthropic.APIKey,
			BaseURL:      cfg.Anthropic.BaseURL,
			DefaultModel: cfg.Anthropic.DefaultModel,
			Timeout:      cfg.Anthropic.Timeout,
		}))
	}
	if cfg.Gemini.Enabled() {
		reg.Register(provider.NewGemini(provider.GeminiOptions{
			APIKey:       cfg.Gemini.APIKey,
			BaseURL:      cfg.Gemini.BaseURL,
			DefaultModel: cfg.Gemini.DefaultModel,
			Timeout:      cfg.Gemini.Timeout,
		}))
	}
	return reg
}

// buildIngest wires the processor registry. Video and presentation
// processors appear only when the media service is configured.
func buildIngest(media config.MediaConfig, s *store.Store, blobs *blob.Store) *ingest.Orchestrator {
	procs := ingest.NewRegistry()
	procs.Register(&ingest.TextProcessor{})
	procs.Register(&ingest.WebProcessor{})

	o := &ingest.Orchestrator{
		Materials: s.Materials,
		Blob:      blobs,
		Registry:  procs,
		Mappings:  s.Mappings,
	}
	if media.Enabled() {
		remote := ingest.NewRemoteMedia(ingest.RemoteMediaOptions{
			BaseURL: media.BaseURL,
			Timeout: media.Timeout,
		})
		procs.Register(&ingest.VideoProcessor{Transcriber: remote})
		procs.Register(&ingest.PresentationProcessor{Extractor: remote})
		o.Transcriber = remote
		o.Extractor = remote
	}
	return o
}
