package xlsx

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/couchcryptid/covid-case-metrics/internal/config"
	"github.com/couchcryptid/covid-case-metrics/internal/domain"
	"github.com/xuri/excelize/v2"
)

// TodaySheet is the name of the snapshot sheet.
const TodaySheet = "today"

// Built-in excelize number formats.
const (
	numFmtComma   = 3  // #,##0
	numFmtPercent = 10 // 0.00%
)

// Writer renders reports as workbooks on disk.
// It implements pipeline.ReportWriter.
type Writer struct {
	dir    string
	logger *slog.Logger
}

// NewWriter creates a workbook writer rooted at dir.
func NewWriter(dir string, logger *slog.Logger) *Writer {
	return &Writer{dir: dir, logger: logger}
}

// Name identifies the sink in logs and metrics.
func (w *Writer) Name() string { return config.SinkXLSX }

// Path returns the workbook path for a report, e.g.
// xlsx/covid19_2020_12_17_TX_data.xlsx.
func (w *Writer) Path(report domain.Report) string {
	name := fmt.Sprintf("covid19_%s_%s_data.xlsx",
		report.GeneratedAt.Format("2006_01_02"), strings.ReplaceAll(report.Name, " ", "_"))
	return filepath.Join(w.dir, name)
}

// WriteReport renders the report to its workbook, replacing any existing file.
func (w *Writer) WriteReport(ctx context.Context, report domain.Report) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", TodaySheet); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	if err := writeToday(f, report); err != nil {
		return fmt.Errorf("write %s sheet: %w", TodaySheet, err)
	}
	for _, kind := range domain.MetricKinds {
		if err := writeMetric(f, report, kind); err != nil {
			return fmt.Errorf("write %s sheet: %w", kind, err)
		}
	}
	f.SetActiveSheet(0)

	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	path := w.Path(report)
	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("save workbook: %w", err)
	}

	w.logger.Info("workbook written", "report", report.Name, "path", path,
		"geographies", len(report.Header), "days", len(report.Rows))
	return nil
}

// SheetName is the worksheet title for a metric kind, e.g. "death per 100k".
func SheetName(kind domain.MetricKind, scale string) string {
	switch kind {
	case domain.MetricDeathPerCapita:
		return "death per " + scale
	case domain.MetricCaseFatalityRate:
		return "case fatality rate"
	case domain.MetricCasePerCapita:
		return "reported per " + scale
	case domain.MetricNewCases:
		return "actual delta"
	case domain.MetricNewDeaths:
		return "dead delta"
	case domain.MetricActive:
		return "active"
	case domain.MetricCases:
		return "actual"
	case domain.MetricDeaths:
		return "dead"
	default:
		return kind.String()
	}
}

// chartTitle is the series label used in chart and axis titles.
func chartTitle(kind domain.MetricKind, scale string) string {
	switch kind {
	case domain.MetricDeathPerCapita:
		return "Death Per " + scale
	case domain.MetricCaseFatalityRate:
		return "Case Fatality Rate"
	case domain.MetricCasePerCapita:
		return "Reported Per " + scale
	case domain.MetricNewCases:
		return "Daily Reported"
	case domain.MetricNewDeaths:
		return "Daily Dead"
	case domain.MetricActive:
		return "Active"
	case domain.MetricCases:
		return "Reported"
	case domain.MetricDeaths:
		return "Dead"
	default:
		return kind.String()
	}
}

func writeMetric(f *excelize.File, report domain.Report, kind domain.MetricKind) error {
	sheet := SheetName(kind, report.ScaleLabel)
	if _, err := f.NewSheet(sheet); err != nil {
		return err
	}

	header := make([]any, 0, len(report.Header)+1)
	header = append(header, "Day")
	for _, h := range report.Header {
		header = append(header, h)
	}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return err
	}

	for i, row := range report.Rows {
		values := make([]any, 0, len(row.Values)+1)
		values = append(values, row.Label())
		for _, v := range row.Values {
			if p := v.Get(kind); p != nil {
				values = append(values, *p)
			} else {
				values = append(values, nil)
			}
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &values); err != nil {
			return err
		}
	}

	if len(report.Rows) == 0 || len(report.Header) == 0 {
		return nil
	}
	return addChart(f, sheet, report, kind)
}

// addChart places a line chart with one series per geography to the right
// of the table.
func addChart(f *excelize.File, sheet string, report domain.Report, kind domain.MetricKind) error {
	lastRow := len(report.Rows) + 1
	ref := quoteSheet(sheet)

	series := make([]excelize.ChartSeries, 0, len(report.Header))
	for i := range report.Header {
		col, err := excelize.ColumnNumberToName(i + 2)
		if err != nil {
			return err
		}
		series = append(series, excelize.ChartSeries{
			Name:       fmt.Sprintf("%s!$%s$1", ref, col),
			Categories: fmt.Sprintf("%s!$A$2:$A$%d", ref, lastRow),
			Values:     fmt.Sprintf("%s!$%s$2:$%s$%d", ref, col, col, lastRow),
			Line:       excelize.ChartLine{Smooth: false, Width: 1.5},
		})
	}

	title := chartTitle(kind, report.ScaleLabel)
	anchor, err := excelize.CoordinatesToCellName(len(report.Header)+3, 2)
	if err != nil {
		return err
	}
	return f.AddChart(sheet, anchor, &excelize.Chart{
		Type:      excelize.Line,
		Series:    series,
		Dimension: excelize.ChartDimension{Width: 960, Height: 540},
		Legend:    excelize.ChartLegend{Position: "right"},
		Title:     []excelize.RichTextRun{{Text: title + " Covid-19 Cases"}},
		XAxis: excelize.ChartAxis{
			Title: []excelize.RichTextRun{{Text: "Days"}},
		},
		YAxis: excelize.ChartAxis{
			MajorGridLines: true,
			Title:          []excelize.RichTextRun{{Text: title + " Count"}},
		},
		ShowBlanksAs: "gap",
	})
}

func quoteSheet(name string) string {
	return "'" + strings.ReplaceAll(name, "'", "''") + "'"
}
