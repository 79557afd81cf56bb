package domain

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const (
	codeTexas  = 48
	codeTravis = 48453
	codeHarris = 48201
	codeKing   = 53033
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// day returns 2020-03-01 plus n-1 days, so day(1) is March 1st.
func day(n int) time.Time {
	return time.Date(2020, time.March, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, n-1)
}

// newTestRegistry registers Texas (Travis, Harris) and Washington (King)
// with populations.
func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	r := NewRegistry()

	tx := r.AddState(3, 7, codeTexas, "Texas")
	wa := r.AddState(4, 9, 53, "Washington")
	travis := r.AddCounty(codeTexas, 453, "Travis County")
	harris := r.AddCounty(codeTexas, 201, "Harris County")
	king := r.AddCounty(53, 33, "King County")

	tx.SetPopulation(29000000)
	wa.SetPopulation(7600000)
	travis.SetPopulation(1000000)
	harris.SetPopulation(4700000)
	king.SetPopulation(2200000)

	require.Equal(t, 7, r.Len())
	return r
}

func newTestWindow(t *testing.T, days int) *WindowIndex {
	t.Helper()
	w, err := NewWindowIndex(day(1), day(60), days)
	require.NoError(t, err)
	return w
}

func countyRecord(date time.Time, fips, cases, deaths int) FeedRecord {
	return FeedRecord{
		Observation: NewObservation(date, cases, deaths),
		FIPS:        fips,
		HasFIPS:     true,
	}
}
