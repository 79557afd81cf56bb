package pipeline_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/couchcryptid/covid-case-metrics/internal/adapter/csvfeed"
	"github.com/couchcryptid/covid-case-metrics/internal/config"
	"github.com/couchcryptid/covid-case-metrics/internal/domain"
	"github.com/couchcryptid/covid-case-metrics/internal/observability"
	"github.com/couchcryptid/covid-case-metrics/internal/pipeline"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"
)

// today is the frozen "today" for window index construction.
var today = time.Date(2020, time.March, 10, 12, 0, 0, 0, time.UTC)

const feedHeader = "date,county,state,fips,cases,deaths\n"

// testFeed covers two Texas counties, one Washington county, an unknown
// Texas county, a record for an unregistered state and a malformed row.
const testFeed = feedHeader +
	"2020-03-01,Travis,Texas,48453,1,0\n" +
	"2020-03-01,Harris,Texas,48201,2,0\n" +
	"2020-03-02,Travis,Texas,48453,3,0\n" +
	"2020-03-02,Harris,Texas,48201,5,1\n" +
	"2020-03-02,King,Washington,53033,10,1\n" +
	"2020-03-03,Unknown,Texas,,4,0\n" +
	"2020-03-03,Guam,Guam,66010,7,0\n" +
	"2020-03-03,Travis,Texas,48453,not-a-number,0\n"

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func freezeToday(t *testing.T) {
	t.Helper()
	domain.SetClock(clockwork.NewFakeClockAt(today))
	t.Cleanup(func() { domain.SetClock(nil) })
}

func newRegistry() (*domain.Registry, error) {
	r := domain.NewRegistry()
	tx := r.AddState(3, 7, 48, "Texas")
	wa := r.AddState(4, 9, 53, "Washington")
	tx.SetPopulation(28995881)
	wa.SetPopulation(7614893)

	r.AddCounty(48, 453, "Travis County").SetPopulation(1273954)
	r.AddCounty(48, 201, "Harris County").SetPopulation(4713325)
	r.AddCounty(48, 1, "Anderson County").SetPopulation(57735)
	r.AddCounty(53, 33, "King County").SetPopulation(2252782)
	return r, nil
}

// trackingFeed wraps a csvfeed reader and records Close and commits.
type trackingFeed struct {
	*csvfeed.Reader
	closed  atomic.Bool
	commits *atomic.Int64
}

func (f *trackingFeed) ExtractBatch(ctx context.Context, n int) ([]domain.RawEvent, error) {
	events, err := f.Reader.ExtractBatch(ctx, n)
	for i := range events {
		events[i].Commit = func(context.Context) error {
			f.commits.Add(1)
			return nil
		}
	}
	return events, err
}

func (f *trackingFeed) Close() error {
	f.closed.Store(true)
	return f.Reader.Close()
}

// feedOpener serves csv afresh on every open and counts opens.
type feedOpener struct {
	csv     string
	opens   atomic.Int64
	commits atomic.Int64
	last    *trackingFeed
}

func (o *feedOpener) Open(_ context.Context) (pipeline.Feed, error) {
	o.opens.Add(1)
	r, err := csvfeed.NewReader(strings.NewReader(o.csv), "test-feed")
	if err != nil {
		return nil, err
	}
	o.last = &trackingFeed{Reader: r, commits: &o.commits}
	return o.last, nil
}

// recordingWriter captures every report it is handed.
type recordingWriter struct {
	name string
	err  error

	mu      sync.Mutex
	reports []domain.Report
}

func (w *recordingWriter) Name() string { return w.name }

func (w *recordingWriter) WriteReport(_ context.Context, report domain.Report) error {
	if w.err != nil {
		return w.err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.reports = append(w.reports, report)
	return nil
}

func (w *recordingWriter) byName(t *testing.T, name string) domain.Report {
	t.Helper()
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, r := range w.reports {
		if r.Name == name {
			return r
		}
	}
	require.Failf(t, "report not written", "no report named %q", name)
	return domain.Report{}
}

// flakyFeed fails its first n extracts before serving an empty feed.
type flakyFeed struct {
	failures int
	calls    int
}

func (f *flakyFeed) ExtractBatch(context.Context, int) ([]domain.RawEvent, error) {
	f.calls++
	if f.calls <= f.failures {
		return nil, errors.New("broker unavailable")
	}
	return nil, io.EOF
}

func (f *flakyFeed) Close() error { return nil }

func newPipeline(opener pipeline.FeedOpener, reports *config.Reports, writers []pipeline.ReportWriter, opts pipeline.Options) (*pipeline.Pipeline, *observability.Metrics) {
	metrics := observability.NewMetricsForTesting()
	if opts.BatchSize == 0 {
		opts.BatchSize = 3
	}
	if opts.Settings.PerCapita == nil {
		opts.Settings = domain.DefaultSettings()
	}
	opts.EpidemicStart = time.Date(2020, time.March, 1, 0, 0, 0, 0, time.UTC)
	return pipeline.New(newRegistry, opener, reports, writers, opts, discardLogger(), metrics), metrics
}
