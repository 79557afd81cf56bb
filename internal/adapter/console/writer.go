package console

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/couchcryptid/covid-case-metrics/internal/config"
	"github.com/couchcryptid/covid-case-metrics/internal/domain"
	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Writer prints each report's snapshot as a table.
// It implements pipeline.ReportWriter.
type Writer struct {
	out     io.Writer
	printer *message.Printer
	colored bool
}

// NewWriter prints to stdout, colouring trends when stdout is a terminal.
func NewWriter() *Writer {
	return NewWriterTo(os.Stdout, !color.NoColor)
}

// NewWriterTo prints to out.
func NewWriterTo(out io.Writer, colored bool) *Writer {
	return &Writer{
		out:     out,
		printer: message.NewPrinter(language.English),
		colored: colored,
	}
}

// Name identifies the sink in logs and metrics.
func (w *Writer) Name() string { return config.SinkConsole }

// WriteReport renders the report's snapshot rows, highest weekly average first.
func (w *Writer) WriteReport(ctx context.Context, report domain.Report) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	title := fmt.Sprintf("%s (%d geographies)", report.Name, len(report.Snapshots))
	bold := color.New(color.Bold)
	w.style(bold)
	if _, err := bold.Fprintf(w.out, "\n%s\n%s\n", title, strings.Repeat("─", len(title))); err != nil {
		return err
	}

	table := tablewriter.NewTable(w.out,
		tablewriter.WithConfig(tablewriter.Config{
			Row: tw.CellConfig{
				Formatting: tw.CellFormatting{AutoWrap: tw.WrapNone},
				Alignment:  tw.CellAlignment{Global: tw.AlignRight, PerColumn: []tw.Align{tw.AlignLeft, tw.AlignLeft, tw.AlignLeft}},
			},
			Header: tw.CellConfig{
				Formatting: tw.CellFormatting{AutoFormat: tw.On},
				Alignment:  tw.CellAlignment{Global: tw.AlignLeft},
			},
		}),
		tablewriter.WithRendition(tw.Rendition{
			Borders: tw.BorderNone,
			Settings: tw.Settings{
				Separators: tw.Separators{ShowHeader: tw.Off},
			},
		}),
	)

	table.Header(w.header(report.ScaleLabel))
	rows := make([][]string, 0, len(report.Snapshots))
	for _, s := range report.Snapshots {
		rows = append(rows, w.row(s))
	}
	if err := table.Bulk(rows); err != nil {
		return fmt.Errorf("render %s table: %w", report.Name, err)
	}
	if err := table.Render(); err != nil {
		return fmt.Errorf("render %s table: %w", report.Name, err)
	}
	return nil
}

func (w *Writer) header(scale string) []string {
	return []string{
		"Name", "Region", "Date", "Cases", "New", "Active", "Daily Avg",
		"Dead", "CFR", "Cases Per " + scale, "Trend",
	}
}

func (w *Writer) row(s domain.Snapshot) []string {
	casesPer := "-"
	if s.CasesPer != nil {
		casesPer = w.printer.Sprintf("%.2f", *s.CasesPer)
	}
	return []string{
		s.Name,
		s.Parent,
		s.Date.Format(domain.DateLayout),
		w.printer.Sprintf("%d", s.Cases),
		w.printer.Sprintf("%d", s.NewCases),
		w.printer.Sprintf("%d", s.Active),
		w.printer.Sprintf("%.1f", s.WeeklyAverage),
		w.printer.Sprintf("%d", s.Deaths),
		w.printer.Sprintf("%.2f%%", s.CFR*100),
		casesPer,
		w.trend(s.Trend, s.TrendText),
	}
}

// trend colours the rendered trend by severity.
func (w *Writer) trend(t domain.Trend, text string) string {
	var c *color.Color
	switch {
	case t.Improving:
		c = color.New(color.FgGreen)
	case t.Label == domain.TrendUncontrolled, t.Label == domain.TrendDangerZone:
		c = color.New(color.FgRed)
	case t.Label == domain.TrendActiveSpread, t.Label == domain.TrendWarning:
		c = color.New(color.FgYellow)
	case t.Label == domain.TrendTrying:
		c = color.New(color.FgCyan)
	default:
		c = color.New(color.FgGreen)
	}
	w.style(c)
	return c.Sprint(text)
}

func (w *Writer) style(c *color.Color) {
	if w.colored {
		c.EnableColor()
	} else {
		c.DisableColor()
	}
}
