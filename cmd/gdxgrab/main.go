package main

import (
	"bytes"
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/data-power-io/gdxgrab/internal/config"
	"github.com/data-power-io/gdxgrab/internal/gdx"
	"github.com/data-power-io/gdxgrab/internal/logging"
	"github.com/data-power-io/gdxgrab/internal/metrics"
	"github.com/data-power-io/gdxgrab/internal/mirror"
)

const (
	exitSuccess           = 0
	exitFailure           = 1
	exitInvalidInvocation = 2
	exitInternalError     = 4
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	now := time.Now()

	env, err := config.LoadEnv(config.DefaultEnvFile)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitInvalidInvocation
	}

	cfg, err := config.Parse(args, env, now)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			config.Usage(os.Stderr)
			return exitSuccess
		}
		fmt.Fprintln(os.Stderr, err)
		config.Usage(os.Stderr)
		return exitInvalidInvocation
	}

	logger, err := logging.NewLogger(logging.Config{
		Level:  cfg.LogLevel,
		Format: cfg.LogFormat,
		Fields: map[string]string{
			"service": "gdxgrab",
			"run_id":  uuid.NewString(),
		},
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger, using defaults: %v\n", err)
		logger = logging.NewDefaultLogger()
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New()
	defer func() {
		if cfg.MetricsFile == "" {
			return
		}
		if err := m.WriteTextfile(cfg.MetricsFile); err != nil {
			logger.Error("Failed to write metrics", zap.String("file", cfg.MetricsFile), zap.Error(err))
		}
	}()

	var mirrorClient *mirror.Client
	if cfg.S3.Enabled() {
		mirrorClient, err = mirror.NewClient(ctx, cfg.S3, logger)
		if err != nil {
			logger.Error("Failed to create mirror client", zap.Error(err))
			return exitInternalError
		}
	}

	fetcher := gdx.NewFetcher(cfg.FetcherConfig(), m, logger)

	switch {
	case cfg.Health:
		return healthCheck(ctx, cfg, fetcher, mirrorClient, logger)
	case cfg.Download:
		return download(ctx, cfg, fetcher, mirrorClient, m, logger)
	default:
		return filelist(ctx, cfg, mirrorClient, m, logger)
	}
}

func download(ctx context.Context, cfg *config.Config, fetcher *gdx.Fetcher, mirrorClient *mirror.Client, m *metrics.RunMetrics, logger *zap.Logger) int {
	var opts []gdx.Option
	if mirrorClient != nil {
		opts = append(opts, gdx.WithMirror(mirrorClient))
	}

	grabber, err := gdx.NewGrabber(cfg.GrabberConfig(), fetcher, m, logger, opts...)
	if err != nil {
		logger.Error("Invalid download configuration", zap.Error(err))
		return exitInvalidInvocation
	}

	report, err := grabber.Run(ctx)
	m.RecordRunEnd("download", err == nil, time.Now())

	logger.Info("Download run finished",
		zap.Int("downloaded", len(report.Downloaded)),
		zap.Int("extracted", len(report.Extracted)),
		zap.Int("skipped", len(report.Skipped)))
	if err != nil {
		logger.Error("Download run completed with errors", zap.Error(err))
		return exitFailure
	}
	return exitSuccess
}

func filelist(ctx context.Context, cfg *config.Config, mirrorClient *mirror.Client, m *metrics.RunMetrics, logger *zap.Logger) int {
	dir := filepath.Join(cfg.GDXPath, gdx.ExtractDirName)
	logger = logging.WithFields(logger, map[string]any{
		"dir":   dir,
		"start": cfg.Start.Format("2006-01-02"),
		"end":   cfg.End.Format("2006-01-02"),
	})
	logging.LogStep(logger, "filelist", "Building file name list")

	names, err := gdx.BuildManifest(dir, cfg.Range(), logger)
	if err == nil {
		err = gdx.WriteManifest(cfg.ManifestPath, names)
	}
	if err == nil && mirrorClient != nil {
		err = mirrorClient.Upload(ctx, cfg.ManifestPath, gdx.ManifestFileName)
	}
	m.RecordRunEnd("filelist", err == nil, time.Now())
	if err != nil {
		logger.Error("Failed to write file name list", zap.String("file", cfg.ManifestPath), zap.Error(err))
		return exitFailure
	}

	m.RecordManifest(len(names))
	logger.Info("Wrote file name list", zap.String("file", cfg.ManifestPath), zap.Int("files", len(names)))
	return exitSuccess
}

func healthCheck(ctx context.Context, cfg *config.Config, fetcher *gdx.Fetcher, mirrorClient *mirror.Client, logger *zap.Logger) int {
	listing := gdx.BuildListingURL(cfg.Host, gdx.ModeCurrent)
	page, err := fetcher.Get(ctx, listing)
	if err != nil {
		logger.Error("Health check failed", zap.String("url", listing), zap.Error(err))
		return exitFailure
	}

	resolver, err := gdx.NewResolver(cfg.Host, logger)
	if err != nil {
		logger.Error("Health check failed", zap.Error(err))
		return exitFailure
	}
	candidates, err := resolver.Candidates(bytes.NewReader(page), gdx.ModeCurrent)
	if err != nil {
		logger.Error("Health check failed", zap.String("url", listing), zap.Error(err))
		return exitFailure
	}

	if mirrorClient != nil {
		if err := mirrorClient.Ping(ctx); err != nil {
			logger.Error("Mirror health check failed", zap.Error(err))
			return exitFailure
		}
	}

	logger.Info("Health check successful", zap.String("url", listing), zap.Int("candidates", len(candidates)))
	return exitSuccess
}
