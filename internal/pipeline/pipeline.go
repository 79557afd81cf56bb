package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/couchcryptid/covid-case-metrics/internal/config"
	"github.com/couchcryptid/covid-case-metrics/internal/domain"
	"github.com/couchcryptid/covid-case-metrics/internal/observability"
	sharedretry "github.com/couchcryptid/storm-data-shared/retry"
	"github.com/jonboulle/clockwork"
)

const (
	initialBackoff     = 200 * time.Millisecond
	maxBackoff         = 5 * time.Second
	maxExtractFailures = 5
)

// BatchExtractor reads up to batchSize raw events from the feed. It returns
// io.EOF once the feed is exhausted.
type BatchExtractor interface {
	ExtractBatch(ctx context.Context, batchSize int) ([]domain.RawEvent, error)
}

// Feed is one pass over the case feed.
type Feed interface {
	BatchExtractor
	Close() error
}

// FeedOpener starts a pass over the feed, e.g. by downloading and opening it.
type FeedOpener func(ctx context.Context) (Feed, error)

// RegistryLoader builds a fresh geography registry for a run.
type RegistryLoader func() (*domain.Registry, error)

// ReportWriter delivers a built report to one sink.
type ReportWriter interface {
	Name() string
	WriteReport(ctx context.Context, report domain.Report) error
}

// Options tunes a Pipeline.
type Options struct {
	BatchSize     int
	Settings      domain.Settings
	EpidemicStart time.Time
	WindowDays    int
	// Interval repeats runs on a schedule; zero runs once.
	Interval time.Duration
	// Clock drives the schedule; nil uses the real clock.
	Clock clockwork.Clock
}

// Pipeline loads geography, ingests the case feed and delivers reports.
// Each run starts from a fresh registry so a refreshed feed is never
// double-counted.
type Pipeline struct {
	geography RegistryLoader
	feed      FeedOpener
	reports   *config.Reports
	writers   []ReportWriter
	opts      Options
	clock     clockwork.Clock
	logger    *slog.Logger
	metrics   *observability.Metrics
	ready     atomic.Bool
	last      atomic.Pointer[domain.RunSummary]
}

// New creates a Pipeline with the given stages and observability.
func New(geography RegistryLoader, feed FeedOpener, reports *config.Reports, writers []ReportWriter,
	opts Options, logger *slog.Logger, metrics *observability.Metrics) *Pipeline {
	clock := opts.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if opts.WindowDays <= 0 {
		opts.WindowDays = domain.DefaultActiveWindowDays
	}
	if opts.EpidemicStart.IsZero() {
		opts.EpidemicStart = domain.DefaultEpidemicStart
	}
	return &Pipeline{
		geography: geography,
		feed:      feed,
		reports:   reports,
		writers:   writers,
		opts:      opts,
		clock:     clock,
		logger:    logger,
		metrics:   metrics,
	}
}

// CheckReadiness returns nil once a run has completed without error.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	if !p.ready.Load() {
		return errors.New("no run has completed yet")
	}
	return nil
}

// LastRun returns the most recent run summary, if any run has finished.
func (p *Pipeline) LastRun() (domain.RunSummary, bool) {
	s := p.last.Load()
	if s == nil {
		return domain.RunSummary{}, false
	}
	return *s, true
}

// Run executes one run, or with a non-zero interval keeps running on that
// schedule until the context is cancelled. A failed scheduled run is logged
// and retried at the next tick, except ErrOutOfRange which always stops.
func (p *Pipeline) Run(ctx context.Context) error {
	p.logger.Info("pipeline started", "batch_size", p.opts.BatchSize, "interval", p.opts.Interval)
	p.metrics.PipelineRunning.Set(1)
	defer p.metrics.PipelineRunning.Set(0)

	for {
		_, err := p.RunOnce(ctx)
		switch {
		case ctx.Err() != nil:
			p.logger.Info("pipeline stopping", "reason", ctx.Err())
			return nil
		case err != nil && (p.opts.Interval == 0 || errors.Is(err, domain.ErrOutOfRange)):
			return err
		case err != nil:
			p.logger.Error("run failed", "error", err, "next_run", p.clock.Now().Add(p.opts.Interval))
		}

		if p.opts.Interval == 0 {
			return nil
		}
		select {
		case <-ctx.Done():
			p.logger.Info("pipeline stopping", "reason", ctx.Err())
			return nil
		case <-p.clock.After(p.opts.Interval):
		}
	}
}

// RunOnce loads geography, ingests the whole feed, then builds and delivers
// every planned report.
func (p *Pipeline) RunOnce(ctx context.Context) (domain.RunSummary, error) {
	summary := domain.NewRunSummary(p.clock.Now())
	err := p.run(ctx, &summary)

	summary.FinishedAt = p.clock.Now()
	if err != nil {
		summary.Error = err.Error()
	} else {
		p.ready.Store(true)
	}
	p.last.Store(&summary)

	p.logger.Info("run finished",
		"records", summary.Records,
		"parse_errors", summary.ParseErrors,
		"reports", len(summary.Reports),
		"duration", summary.FinishedAt.Sub(summary.StartedAt),
		"failed", err != nil,
	)
	return summary, err
}

func (p *Pipeline) run(ctx context.Context, summary *domain.RunSummary) error {
	registry, err := p.geography()
	if err != nil {
		return fmt.Errorf("load geography: %w", err)
	}
	if err := ValidateReports(registry, p.reports); err != nil {
		return fmt.Errorf("report definitions: %w", err)
	}

	window, err := domain.NewWindowIndex(p.opts.EpidemicStart, domain.Today(), p.opts.WindowDays)
	if err != nil {
		return fmt.Errorf("build window index: %w", err)
	}

	feed, err := p.feed(ctx)
	if err != nil {
		return fmt.Errorf("open feed: %w", err)
	}
	defer func() {
		if err := feed.Close(); err != nil {
			p.logger.Warn("close feed failed", "error", err)
		}
	}()

	ingester := NewIngester(domain.NewAggregator(registry, window, p.logger), p.logger)
	if err := p.ingest(ctx, feed, ingester, summary); err != nil {
		return err
	}
	p.logger.Info("feed ingested", "records", summary.Records, "parse_errors", summary.ParseErrors, "routes", summary.Routes)

	plans, err := PlanReports(registry, p.reports)
	if err != nil {
		return fmt.Errorf("plan reports: %w", err)
	}
	return p.deliver(ctx, plans, summary)
}

// ingest drains the feed batch by batch. Extract failures back off and are
// retried; malformed records are skipped and counted.
func (p *Pipeline) ingest(ctx context.Context, feed BatchExtractor, ingester *CaseIngester, summary *domain.RunSummary) error {
	backoff := initialBackoff
	failures := 0

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		start := time.Now()
		batch, err := feed.ExtractBatch(ctx, p.opts.BatchSize)
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			failures++
			if failures >= maxExtractFailures {
				return fmt.Errorf("extract batch: %w", err)
			}
			p.logger.Error("extract batch failed", "error", err, "attempt", failures, "backoff", backoff)
			if !sharedretry.SleepWithContext(ctx, backoff) {
				return ctx.Err()
			}
			backoff = sharedretry.NextBackoff(backoff, maxBackoff)
			continue
		}
		failures = 0
		backoff = initialBackoff

		if len(batch) == 0 {
			continue
		}
		p.metrics.RecordsConsumed.Add(float64(len(batch)))
		p.metrics.BatchSize.Observe(float64(len(batch)))

		if err := p.ingestBatch(ctx, batch, ingester, summary); err != nil {
			return err
		}
		p.metrics.BatchProcessingDuration.Observe(time.Since(start).Seconds())
	}
}

func (p *Pipeline) ingestBatch(ctx context.Context, batch []domain.RawEvent, ingester *CaseIngester, summary *domain.RunSummary) error {
	for _, raw := range batch {
		route, err := ingester.Ingest(raw)
		if errors.Is(err, domain.ErrOutOfRange) {
			return fmt.Errorf("ingest %s offset %d: %w", raw.Topic, raw.Offset, err)
		}
		if err != nil {
			p.logger.Warn("invalid record, skipping",
				"error", err,
				"topic", raw.Topic,
				"partition", raw.Partition,
				"offset", raw.Offset,
			)
			p.metrics.ParseErrors.Inc()
			summary.ParseErrors++
			p.commitOffset(ctx, raw)
			continue
		}

		p.metrics.RecordsIngested.WithLabelValues(route.String()).Inc()
		summary.Count(route)
		p.commitOffset(ctx, raw)
	}
	return nil
}

// commitOffset commits the message offset if a commit function is available.
func (p *Pipeline) commitOffset(ctx context.Context, raw domain.RawEvent) {
	if raw.Commit == nil {
		return
	}
	if err := raw.Commit(ctx); err != nil {
		p.logger.Warn("commit offset failed", "error", err,
			"topic", raw.Topic, "partition", raw.Partition, "offset", raw.Offset)
	}
}
