package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/couchcryptid/covid-case-metrics/internal/adapter/census"
	"github.com/couchcryptid/covid-case-metrics/internal/adapter/console"
	"github.com/couchcryptid/covid-case-metrics/internal/adapter/csvfeed"
	httpadapter "github.com/couchcryptid/covid-case-metrics/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/covid-case-metrics/internal/adapter/kafka"
	"github.com/couchcryptid/covid-case-metrics/internal/adapter/nyt"
	"github.com/couchcryptid/covid-case-metrics/internal/adapter/xlsx"
	"github.com/couchcryptid/covid-case-metrics/internal/config"
	"github.com/couchcryptid/covid-case-metrics/internal/domain"
	"github.com/couchcryptid/covid-case-metrics/internal/observability"
	"github.com/couchcryptid/covid-case-metrics/internal/pipeline"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	reports, err := config.LoadReports(cfg.ReportsFile)
	if err != nil {
		logger.Error("failed to load reports", "error", err)
		os.Exit(1)
	}

	files := census.Files{
		StateGeocodes:    cfg.StateGeocodesPath,
		CountyGeocodes:   cfg.CountyGeocodesPath,
		StatePopulation:  cfg.StatePopulationPath,
		CountyPopulation: cfg.CountyPopulationPath,
	}
	loadRegistry := func() (*domain.Registry, error) {
		return census.LoadRegistry(files, logger)
	}

	var closers []func() error

	opener, closeFeed := newFeedOpener(cfg, metrics, logger)
	if closeFeed != nil {
		closers = append(closers, closeFeed)
	}

	writers, closeSinks := newWriters(cfg, metrics, logger)
	closers = append(closers, closeSinks...)

	p := pipeline.New(loadRegistry, opener, reports, writers, pipeline.Options{
		BatchSize: cfg.BatchSize,
		Settings: domain.Settings{
			Benchmark: cfg.CaseMinBenchmark,
			PerCapita: map[domain.Kind]float64{
				domain.KindCounty: cfg.GeographyPerCounty,
				domain.KindState:  cfg.GeographyPerState,
			},
		},
		EpidemicStart: cfg.EpidemicStart,
		WindowDays:    cfg.CaseDaysDuration,
		Interval:      cfg.RefreshInterval,
	}, logger, metrics)

	srv := httpadapter.NewServer(cfg.HTTPAddr, p, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Start HTTP server.
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	runErr := p.Run(ctx)
	if runErr != nil {
		logger.Error("pipeline error", "error", runErr)
	}
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	for _, closeFn := range closers {
		if err := closeFn(); err != nil {
			logger.Error("close error", "error", err)
		}
	}

	logger.Info("shutdown complete")
	if runErr != nil {
		os.Exit(1)
	}
}

// newFeedOpener selects how each run reads the case feed. The returned close
// function, when non-nil, releases resources shared across runs.
func newFeedOpener(cfg *config.Config, metrics *observability.Metrics, logger *slog.Logger) (pipeline.FeedOpener, func() error) {
	switch cfg.FeedSource {
	case config.FeedHTTP:
		client := nyt.NewClient(cfg.FeedURL, cfg.FeedTimeout, metrics, logger)
		return func(ctx context.Context) (pipeline.Feed, error) {
			if err := client.Download(ctx, cfg.FeedPath); err != nil {
				return nil, err
			}
			return csvfeed.Open(cfg.FeedPath)
		}, nil

	case config.FeedKafka:
		reader := kafkaadapter.NewReader(cfg, logger)
		return func(context.Context) (pipeline.Feed, error) {
			return sharedFeed{reader}, nil
		}, reader.Close

	default:
		return func(context.Context) (pipeline.Feed, error) {
			return csvfeed.Open(cfg.FeedPath)
		}, nil
	}
}

// sharedFeed keeps the consumer group connection open between runs; it is
// closed once at shutdown.
type sharedFeed struct {
	pipeline.BatchExtractor
}

func (sharedFeed) Close() error { return nil }

func newWriters(cfg *config.Config, metrics *observability.Metrics, logger *slog.Logger) ([]pipeline.ReportWriter, []func() error) {
	var writers []pipeline.ReportWriter
	var closers []func() error

	for _, sink := range cfg.ReportSinks {
		switch sink {
		case config.SinkXLSX:
			writers = append(writers, xlsx.NewWriter(cfg.OutputDir, logger))
		case config.SinkKafka:
			w := kafkaadapter.NewWriter(cfg, metrics, logger)
			writers = append(writers, w)
			closers = append(closers, w.Close)
		case config.SinkConsole:
			writers = append(writers, console.NewWriter())
		default:
			// config.Load rejects unknown sinks.
			panic(fmt.Sprintf("unknown report sink %q", sink))
		}
	}
	return writers, closers
}
