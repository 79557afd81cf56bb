package console

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/couchcryptid/covid-case-metrics/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testReport() domain.Report {
	date := time.Date(2020, 6, 1, 0, 0, 0, 0, time.UTC)
	casesPer := 26.52
	return domain.Report{
		Name:       "TX",
		ScaleLabel: "100k",
		Snapshots: []domain.Snapshot{
			{
				Name: "Harris", Parent: "Texas", Date: date,
				Cases: 1250, NewCases: 90, Active: 1400, WeeklyAverage: 150, Deaths: 12, CFR: 0.0096,
				CasesPer:  &casesPer,
				Trend:     domain.Trend{Label: domain.TrendActiveSpread, Summary: "n/a"},
				TrendText: "ACTIVE SPREAD [n/a]",
			},
			{
				Name: "Unknown County", Parent: "Texas", Date: date,
				Cases: 5, Active: 5,
				Trend:     domain.Trend{Label: domain.TrendControlled, Summary: "n/a"},
				TrendText: "CONTROLLED [n/a]",
			},
		},
	}
}

func TestWriter_WriteReport(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriterTo(&buf, false)

	require.NoError(t, w.WriteReport(context.Background(), testReport()))
	out := buf.String()

	assert.Contains(t, out, "TX (2 geographies)")
	assert.Contains(t, out, "Harris")
	assert.Contains(t, out, "1,250", "grouped thousands")
	assert.Contains(t, out, "1,400")
	assert.Contains(t, out, "0.96%")
	assert.Contains(t, out, "26.52")
	assert.Contains(t, out, "ACTIVE SPREAD [n/a]")
	assert.Contains(t, out, "Unknown County")
	assert.NotContains(t, out, "\x1b[", "no escape codes when colour is off")
	assert.Less(t, bytes.Index(buf.Bytes(), []byte("Harris")), bytes.Index(buf.Bytes(), []byte("Unknown County")))
}

func TestWriter_Colored(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriterTo(&buf, true)

	require.NoError(t, w.WriteReport(context.Background(), testReport()))
	assert.Contains(t, buf.String(), "\x1b[")
}

func TestWriter_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var buf bytes.Buffer
	assert.ErrorIs(t, NewWriterTo(&buf, false).WriteReport(ctx, testReport()), context.Canceled)
	assert.Empty(t, buf.String())
	assert.Equal(t, "console", NewWriterTo(&buf, false).Name())
}
