// Command tileencode probes a video, plans its tiled encode from a layouts
// directory (or a uniform grid), runs the encoder and stitcher per segment
// and assembles the result.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/schollz/progressbar/v3"

	"tile-orchestrator/internal/encoding"
	"tile-orchestrator/internal/orchestrator"
	"tile-orchestrator/internal/platform/config"
	"tile-orchestrator/internal/platform/logger"
	"tile-orchestrator/internal/platform/metrics"
	"tile-orchestrator/internal/tiles"
	"tile-orchestrator/internal/toolchain"
)

func main() {
	envErr := config.Load()

	log := logger.New(os.Stderr, config.GetEnv("LOG_LEVEL", "info"), config.GetEnv("LOG_FORMAT", "text"))
	if envErr != nil {
		log.Warn("ignoring .env", "error", envErr)
	}

	cfg, err := loadRunConfig()
	if err != nil {
		log.Error("configuration", "error", err)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("tiled encode failed", "error", err)
		os.Exit(1)
	}
}

func loadRunConfig() (config.RunConfig, error) {
	cfg := config.DefaultRunConfig()
	if path := config.GetEnv("TILE_RUN_FILE", ""); path != "" {
		var err error
		if cfg, err = config.LoadRunFile(path); err != nil {
			return cfg, err
		}
	}
	cfg.ApplyEnv()
	if cfg.WorkDir == "" {
		cfg.WorkDir = "tiles"
	}
	if cfg.OutputName == "" && cfg.Input != "" {
		base := filepath.Base(cfg.Input)
		cfg.OutputName = strings.TrimSuffix(base, filepath.Ext(base)) + "_tiled"
	}
	return cfg, cfg.Validate()
}

func run(ctx context.Context, cfg config.RunConfig, log *slog.Logger) error {
	strategy, err := encoding.ParseStrategy(cfg.Strategy)
	if err != nil {
		return err
	}
	align := tiles.Alignment{CTBSize: cfg.CTBSize}
	paths := toolchain.Paths{FFmpeg: cfg.Tools.FFmpeg, FFprobe: cfg.Tools.FFprobe, Stitcher: cfg.Tools.Stitcher}
	met := metrics.New()
	if addr := config.GetEnv("TILE_METRICS_ADDR", ""); addr != "" {
		go serveMetrics(addr, met, log)
	}
	runner := &toolchain.ExecRunner{Log: log, Observer: met}

	prober := &toolchain.FFprobe{Runner: runner, Paths: paths, Alignment: align}
	stats, err := prober.Probe(ctx, cfg.Input)
	if err != nil {
		return fmt.Errorf("probe %s: %w", cfg.Input, err)
	}
	log.Info("probed input",
		"input", cfg.Input,
		"width", stats.Width,
		"coded_height", stats.CodedHeight,
		"bitrate_kbps", stats.BitrateKbps,
		"framerate", stats.Framerate,
		"frames", stats.NumFrames,
	)

	var layouts orchestrator.LayoutSource = orchestrator.StaticLayouts{}
	if cfg.LayoutsDir != "" {
		m, err := tiles.Load(cfg.LayoutsDir)
		if err != nil {
			return err
		}
		layouts = orchestrator.StaticLayouts{Manager: m}
	}

	svc := orchestrator.NewService(orchestrator.NewInMemoryRepository(), layouts, orchestrator.ServiceOptions{
		Alignment:   align,
		Strategy:    strategy,
		Codec:       cfg.Codec,
		OutputDir:   cfg.WorkDir,
		Parallelism: cfg.Parallelism,
		Programs:    paths,
		Tools: orchestrator.Tools{
			Encoder:  &toolchain.Encoder{Runner: runner, Paths: paths},
			Stitcher: &toolchain.Stitcher{Runner: runner, Paths: paths},
			Remuxer:  &toolchain.Remuxer{Runner: runner, Paths: paths},
		},
	}, log, met)

	req := orchestrator.PlanRequest{Input: cfg.Input, Video: stats}
	if cfg.UniformRows > 0 && cfg.UniformCols > 0 {
		req.Uniform = &orchestrator.UniformTiling{Rows: cfg.UniformRows, Cols: cfg.UniformCols}
	}
	snap, err := svc.PlanRun(ctx, req)
	if err != nil {
		return err
	}

	bar := progressbar.NewOptions(len(snap.Plans()),
		progressbar.OptionSetDescription("Encoding segments"),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionShowCount(),
		progressbar.OptionSetWidth(40),
		progressbar.OptionSetRenderBlankState(true),
	)
	res, err := svc.Execute(ctx, snap.ID, orchestrator.ExecuteOptions{
		Encode:     cfg.Encode,
		Stitch:     cfg.Stitch,
		KeepTiles:  cfg.KeepTiles,
		OutputName: cfg.OutputName,
		Progress:   func(done, _ int) { _ = bar.Set(done) },
	})
	_ = bar.Finish()
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return err
	}
	if res.Failed > 0 {
		return fmt.Errorf("%d segment(s) failed", res.Failed)
	}

	log.Info("tiled encode finished",
		"run_id", string(snap.ID),
		"segments", len(res.Stitched),
		"skipped", len(snap.Skipped),
		"bitstream", res.Bitstream,
		"container", res.Container,
	)
	return nil
}

// serveMetrics exposes the run's collectors while a long encode is in progress.
func serveMetrics(addr string, met *metrics.Metrics, log *slog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", met.Handler(nil))
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Warn("metrics listener stopped", "addr", addr, "error", err)
	}
}
