package pipeline

import (
	"log/slog"

	"github.com/couchcryptid/covid-case-metrics/internal/domain"
)

// CaseIngester parses raw feed events and routes them through an Aggregator.
type CaseIngester struct {
	aggregator *domain.Aggregator
	logger     *slog.Logger
}

// NewIngester creates a CaseIngester over one run's aggregator.
func NewIngester(aggregator *domain.Aggregator, logger *slog.Logger) *CaseIngester {
	return &CaseIngester{aggregator: aggregator, logger: logger}
}

// Ingest parses and routes one raw event. Parse failures and records dated
// outside the window span (domain.ErrDateOutsideSpan) are skippable; only
// domain.ErrOutOfRange is fatal.
func (i *CaseIngester) Ingest(raw domain.RawEvent) (domain.Route, error) {
	rec, err := domain.ParseRawEvent(raw)
	if err != nil {
		return domain.RouteDropped, err
	}
	return i.aggregator.Ingest(rec)
}
