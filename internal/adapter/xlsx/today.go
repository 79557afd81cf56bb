package xlsx

import (
	"fmt"
	"strconv"
	"unicode/utf8"

	"github.com/couchcryptid/covid-case-metrics/internal/domain"
	"github.com/xuri/excelize/v2"
)

// Snapshot sheet columns, 1-based.
const (
	colName = iota + 1
	colParent
	colDate
	colDead
	colNewDead
	colDeadPer
	colCFR
	colCases
	colActive
	colDailyAvg
	colNewCases
	colTrend
	colActivePer
	colCasesPer
	colPopulation
	colScale
	colPer
	colCount = colPer
)

// bandFills colour the daily average from strongly falling (dark green) to
// strongly rising (red).
var bandFills = []string{"548235", "A9D08E", "C6E0B4", "FFD966", "FFCCCC", "FF7C80", "FF0000"}

// averageBand picks the bandFills index for a weekly average.
func averageBand(avg float64) int {
	v := int(avg)
	switch {
	case v < -100:
		return 0
	case v < -40:
		return 1
	case v < -5:
		return 2
	case v < 5:
		return 3
	case v < 40:
		return 4
	case v < 100:
		return 5
	default:
		return 6
	}
}

func todayHeader(scale string) []any {
	return []any{
		"Name",
		"Containing Region",
		"Case Date",
		"Dead",
		"New Dead",
		"Dead Per " + scale,
		"Case Fatality Rate",
		"Cases",
		"Active Cases",
		"Daily Avg",
		"New Cases",
		"Trend",
		"Active Per " + scale,
		"Cases Per " + scale,
		"Population",
		fmt.Sprintf("Geography Per %s Scale", scale),
		"Per " + scale,
	}
}

func todayRow(s domain.Snapshot) []any {
	return []any{
		s.Name,
		s.Parent,
		s.Date.Format(domain.DateLayout),
		s.Deaths,
		s.NewDeaths,
		optional(s.DeathsPer),
		s.CFR,
		s.Cases,
		s.Active,
		s.WeeklyAverage,
		s.NewCases,
		s.TrendText,
		optional(s.ActivePer),
		optional(s.CasesPer),
		domain.Humanize(float64(s.Population)),
		domain.Humanize(s.Scale),
		s.PopulationPer,
	}
}

func writeToday(f *excelize.File, report domain.Report) error {
	header := todayHeader(report.ScaleLabel)
	if err := f.SetSheetRow(TodaySheet, "A1", &header); err != nil {
		return err
	}

	widths := make([]int, colCount+1)
	measure(widths, header)

	for i, s := range report.Snapshots {
		row := todayRow(s)
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(TodaySheet, cell, &row); err != nil {
			return err
		}
		measure(widths, row)
	}

	if err := styleToday(f, report.Snapshots); err != nil {
		return err
	}
	if err := sizeColumns(f, widths); err != nil {
		return err
	}

	lastCol, err := excelize.ColumnNumberToName(colCount)
	if err != nil {
		return err
	}
	if err := f.AutoFilter(TodaySheet, fmt.Sprintf("A1:%s%d", lastCol, len(report.Snapshots)+1), nil); err != nil {
		return err
	}
	return f.SetPanes(TodaySheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	})
}

func styleToday(f *excelize.File, snapshots []domain.Snapshot) error {
	if len(snapshots) == 0 {
		return nil
	}
	last := len(snapshots) + 1

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return err
	}
	if err := setColumnStyle(f, 1, colCount, 1, 1, bold); err != nil {
		return err
	}

	comma, err := f.NewStyle(&excelize.Style{NumFmt: numFmtComma})
	if err != nil {
		return err
	}
	for _, col := range []int{colDead, colNewDead, colCases, colActive, colNewCases, colActivePer, colCasesPer} {
		if err := setColumnStyle(f, col, col, 2, last, comma); err != nil {
			return err
		}
	}

	percent, err := f.NewStyle(&excelize.Style{NumFmt: numFmtPercent})
	if err != nil {
		return err
	}
	if err := setColumnStyle(f, colCFR, colCFR, 2, last, percent); err != nil {
		return err
	}

	bands := make([]int, len(bandFills))
	for i, color := range bandFills {
		bands[i], err = f.NewStyle(&excelize.Style{
			NumFmt: numFmtComma,
			Fill:   excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{color}},
		})
		if err != nil {
			return err
		}
	}
	for i, s := range snapshots {
		row := i + 2
		if err := setColumnStyle(f, colDailyAvg, colDailyAvg, row, row, bands[averageBand(s.WeeklyAverage)]); err != nil {
			return err
		}
	}
	return nil
}

func setColumnStyle(f *excelize.File, fromCol, toCol, fromRow, toRow, style int) error {
	tl, err := excelize.CoordinatesToCellName(fromCol, fromRow)
	if err != nil {
		return err
	}
	br, err := excelize.CoordinatesToCellName(toCol, toRow)
	if err != nil {
		return err
	}
	return f.SetCellStyle(TodaySheet, tl, br, style)
}

// sizeColumns fits each column to its longest value. Dead and Cases gain
// room for thousands separators.
func sizeColumns(f *excelize.File, widths []int) error {
	for col := 1; col <= colCount; col++ {
		name, err := excelize.ColumnNumberToName(col)
		if err != nil {
			return err
		}
		width := float64(widths[col] + 2)
		if col == colDead || col == colCases {
			width *= 1.4
		}
		if err := f.SetColWidth(TodaySheet, name, name, width); err != nil {
			return err
		}
	}
	return nil
}

func measure(widths []int, row []any) {
	for i, v := range row {
		var s string
		switch v := v.(type) {
		case nil:
		case float64:
			s = strconv.FormatFloat(v, 'f', 2, 64)
		default:
			s = fmt.Sprint(v)
		}
		if n := utf8.RuneCountInString(s); n > widths[i+1] {
			widths[i+1] = n
		}
	}
}

func optional(v *float64) any {
	if v == nil {
		return nil
	}
	return *v
}
