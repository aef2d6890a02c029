package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"tile-orchestrator/internal/encoding"
	"tile-orchestrator/internal/orchestrator"
	"tile-orchestrator/internal/platform/config"
	"tile-orchestrator/internal/platform/logger"
	"tile-orchestrator/internal/platform/metrics"
	"tile-orchestrator/internal/tiles"
	"tile-orchestrator/internal/toolchain"

	"github.com/go-chi/chi/v5"
)

const shutdownTimeout = 10 * time.Second

func main() {
	envErr := config.Load()

	port := config.GetEnv("PORT", "8080")
	logLevel := config.GetEnv("LOG_LEVEL", "info")
	logFormat := config.GetEnv("LOG_FORMAT", "json")
	layoutsDir := config.GetEnv("TILE_LAYOUTS_DIR", "")
	watchLayouts := config.GetEnvBool("TILE_WATCH_LAYOUTS", false)
	ctbSize := config.GetEnvInt("TILE_CTB_SIZE", tiles.DefaultCTBSize)
	strategyName := config.GetEnv("TILE_STRATEGY", encoding.CBR.String())
	runRetention := config.GetEnvInt("TILE_RUN_RETENTION", orchestrator.DefaultRunRetention)

	log := logger.New(os.Stdout, logLevel, logFormat)
	if envErr != nil {
		log.Warn("ignoring .env", "error", envErr)
	}

	strategy, err := encoding.ParseStrategy(strategyName)
	if err != nil {
		log.Error("invalid strategy", "strategy", strategyName, "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var layouts orchestrator.LayoutSource = orchestrator.StaticLayouts{}
	if layoutsDir != "" {
		w, err := orchestrator.NewWatcher(layoutsDir, log, 0)
		if err != nil {
			log.Error("load layouts", "dir", layoutsDir, "error", err)
			os.Exit(1)
		}
		if watchLayouts {
			go func() {
				if err := w.Run(ctx); err != nil {
					log.Error("layout watcher stopped", "error", err)
				}
			}()
		}
		layouts = w
	}

	met := metrics.New()
	repo := orchestrator.NewInMemoryRepositoryWithStore(orchestrator.NewInMemoryStore(), runRetention)
	svc := orchestrator.NewService(repo, layouts, orchestrator.ServiceOptions{
		Alignment:   tiles.Alignment{CTBSize: ctbSize},
		Strategy:    strategy,
		Codec:       config.GetEnv("TILE_CODEC", encoding.DefaultCodec),
		OutputDir:   config.GetEnv("TILE_WORK_DIR", "tiles"),
		Parallelism: config.GetEnvInt("TILE_PARALLELISM", 4),
		Programs: toolchain.Paths{
			FFmpeg:   config.GetEnv("FFMPEG_PATH", ""),
			FFprobe:  config.GetEnv("FFPROBE_PATH", ""),
			Stitcher: config.GetEnv("STITCHER_PATH", ""),
		},
	}, log, met)
	h := orchestrator.NewHandler(svc, log)

	r := chi.NewRouter()
	r.Use(logger.RequestLogger(log))
	r.Use(metrics.RequestMiddleware(met))
	r.Method(http.MethodGet, "/metrics", met.Handler(func() { met.SetActiveRuns(svc.ActiveRunCount()) }))
	h.Routes(r)

	addr := ":" + port
	srv := &http.Server{Addr: addr, Handler: r}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	log.Info("server starting",
		"port", port,
		"layouts_dir", layoutsDir,
		"watch_layouts", watchLayouts,
		"strategy", strategy.String(),
		"run_retention", runRetention,
		"log_level", logLevel,
	)

	<-ctx.Done()

	log.Info("shutdown signal received, draining connections")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown error", "error", err)
		os.Exit(1)
	}

	log.Info("server stopped")
}
