package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/couchcryptid/covid-case-metrics/internal/domain"
)

// deliver builds each planned report and hands it to every writer. A failing
// sink does not stop the others; all failures are returned together.
func (p *Pipeline) deliver(ctx context.Context, plans []Plan, summary *domain.RunSummary) error {
	var errs []error
	for _, plan := range plans {
		if err := ctx.Err(); err != nil {
			return err
		}

		start := time.Now()
		report := domain.BuildReport(plan.Name, plan.Geographies, p.opts.Settings)
		p.metrics.ReportBuildDuration.Observe(time.Since(start).Seconds())

		rs := domain.ReportSummary{Name: report.Name, Geographies: len(report.Header), Days: len(report.Rows)}
		for _, w := range p.writers {
			if err := w.WriteReport(ctx, report); err != nil {
				p.logger.Error("report delivery failed", "report", report.Name, "sink", w.Name(), "error", err)
				p.metrics.SinkErrors.WithLabelValues(w.Name()).Inc()
				rs.Failed = append(rs.Failed, w.Name())
				errs = append(errs, fmt.Errorf("report %s to %s: %w", report.Name, w.Name(), err))
				continue
			}
			p.metrics.ReportsWritten.WithLabelValues(w.Name()).Inc()
			rs.Sinks = append(rs.Sinks, w.Name())
		}
		summary.Reports = append(summary.Reports, rs)
	}
	return errors.Join(errs...)
}
