package domain

import (
	"fmt"
	"math"
	"sort"
	"time"
)

// MetricKind identifies one benchmark-indexed metric table.
type MetricKind int

// Metric kinds in presentation order.
const (
	MetricDeathPerCapita MetricKind = iota
	MetricCaseFatalityRate
	MetricCasePerCapita
	MetricNewCases
	MetricNewDeaths
	MetricActive
	MetricCases
	MetricDeaths
)

// MetricKinds lists every kind in presentation order.
var MetricKinds = []MetricKind{
	MetricDeathPerCapita,
	MetricCaseFatalityRate,
	MetricCasePerCapita,
	MetricNewCases,
	MetricNewDeaths,
	MetricActive,
	MetricCases,
	MetricDeaths,
}

func (k MetricKind) String() string {
	switch k {
	case MetricDeathPerCapita:
		return "death_per_capita"
	case MetricCaseFatalityRate:
		return "case_fatality_rate"
	case MetricCasePerCapita:
		return "case_per_capita"
	case MetricNewCases:
		return "new_cases"
	case MetricNewDeaths:
		return "new_deaths"
	case MetricActive:
		return "active"
	case MetricCases:
		return "cases"
	case MetricDeaths:
		return "deaths"
	default:
		return fmt.Sprintf("MetricKind(%d)", int(k))
	}
}

// Settings configures report construction.
type Settings struct {
	// Benchmark is the minimum cumulative case count for a day to be indexed.
	Benchmark int
	// PerCapita maps a geography kind to its scale, e.g. 100000 for "per 100k".
	PerCapita map[Kind]float64
}

// DefaultSettings mirrors the stock configuration: every day with at least
// one case, per 100k for both counties and states.
func DefaultSettings() Settings {
	return Settings{
		Benchmark: 1,
		PerCapita: map[Kind]float64{KindCounty: 100000, KindState: 100000},
	}
}

func (s Settings) scale(k Kind) float64 {
	if v, ok := s.PerCapita[k]; ok && v > 0 {
		return v
	}
	return 100000
}

// Values holds one geography's metrics for one benchmark day. A nil field
// means "no value" and must not be rendered as zero.
type Values struct {
	DeathPerCapita   *float64
	CaseFatalityRate *float64
	CasePerCapita    *float64
	NewCases         *float64
	NewDeaths        *float64
	Active           *float64
	Cases            *float64
	Deaths           *float64
}

// Get returns the value for kind, or nil when absent.
func (v Values) Get(kind MetricKind) *float64 {
	switch kind {
	case MetricDeathPerCapita:
		return v.DeathPerCapita
	case MetricCaseFatalityRate:
		return v.CaseFatalityRate
	case MetricCasePerCapita:
		return v.CasePerCapita
	case MetricNewCases:
		return v.NewCases
	case MetricNewDeaths:
		return v.NewDeaths
	case MetricActive:
		return v.Active
	case MetricCases:
		return v.Cases
	case MetricDeaths:
		return v.Deaths
	default:
		return nil
	}
}

// MetricsRow is one "Day N" row; Values is indexed like Report.Header.
type MetricsRow struct {
	Day    int
	Values []Values
}

// Label renders the row's day index as "Day 001".
func (r MetricsRow) Label() string {
	return fmt.Sprintf("Day %03d", r.Day)
}

// Snapshot is the current-state summary row for one geography.
type Snapshot struct {
	Name          string    `json:"name"`
	Kind          string    `json:"kind"`
	Parent        string    `json:"parent"`
	Date          time.Time `json:"date"`
	Deaths        int       `json:"deaths"`
	NewDeaths     int       `json:"new_deaths"`
	DeathsPer     *float64  `json:"deaths_per,omitempty"`
	CFR           float64   `json:"case_fatality_rate"`
	Cases         int       `json:"cases"`
	Active        int       `json:"active"`
	WeeklyAverage float64   `json:"weekly_average"`
	NewCases      int       `json:"new_cases"`
	Trend         Trend     `json:"-"`
	TrendText     string    `json:"trend"`
	ActivePer     *float64  `json:"active_per,omitempty"`
	CasesPer      *float64  `json:"cases_per,omitempty"`
	Population    int       `json:"population"`
	Scale         float64   `json:"scale"`
	PopulationPer float64   `json:"population_per"`
}

// Report is the engine output handed to renderers.
type Report struct {
	Name      string
	Header    []string
	Rows      []MetricsRow
	Snapshots []Snapshot
	Settings  Settings
	// ScaleLabel is the humanized county scale, e.g. "100k".
	ScaleLabel  string
	GeneratedAt time.Time
}

// CaseFatalityRate is deaths/cases, or 0 when there are no cases.
func CaseFatalityRate(cases, deaths int) float64 {
	if cases == 0 {
		return 0
	}
	return float64(deaths) / float64(cases)
}

// BuildReport computes the benchmark-indexed tables and snapshots for a set
// of geographies. Each geography is walked independently; rows are aligned
// on the benchmark day index, not on calendar dates.
func BuildReport(name string, geos []Geography, settings Settings) Report {
	r := Report{
		Name:        name,
		Header:      make([]string, len(geos)),
		Settings:    settings,
		ScaleLabel:  Humanize(settings.scale(KindCounty)),
		GeneratedAt: clock.Now(),
	}

	for col, g := range geos {
		r.Header[col] = g.Name()
		r.Rows = appendColumn(r.Rows, col, len(geos), g, settings)
		// A geography without observations has no current state to report.
		if g.HasData() {
			r.Snapshots = append(r.Snapshots, buildSnapshot(g, settings))
		}
	}

	sort.SliceStable(r.Snapshots, func(i, j int) bool {
		return r.Snapshots[i].WeeklyAverage > r.Snapshots[j].WeeklyAverage
	})
	return r
}

// appendColumn fills column col of rows from g's series, growing rows as needed.
func appendColumn(rows []MetricsRow, col, width int, g Geography, settings Settings) []MetricsRow {
	perCapita := 0.0
	if pop := g.Population(); pop > 0 {
		perCapita = settings.scale(g.Kind()) / float64(pop)
	}

	day := 0
	var prior *Observation
	for _, obs := range g.Observations() {
		if obs.Cases < settings.Benchmark {
			continue
		}
		day++
		for len(rows) < day {
			rows = append(rows, MetricsRow{Day: len(rows) + 1, Values: make([]Values, width)})
		}

		v := &rows[day-1].Values[col]
		if perCapita > 0 {
			v.DeathPerCapita = ptr(float64(obs.Deaths) * perCapita)
			v.CasePerCapita = ptr(float64(obs.Cases) * perCapita)
		}
		v.CaseFatalityRate = ptr(CaseFatalityRate(obs.Cases, obs.Deaths))
		v.Active = ptr(float64(obs.Active))
		v.Cases = ptr(float64(obs.Cases))
		v.Deaths = ptr(float64(obs.Deaths))
		if prior != nil {
			v.NewCases = ptr(float64(obs.Cases - prior.Cases))
			v.NewDeaths = ptr(float64(obs.Deaths - prior.Deaths))
		}

		o := obs
		prior = &o
	}
	return rows
}

func buildSnapshot(g Geography, settings Settings) Snapshot {
	cur := g.Current()
	prior := g.Prior()
	weekAgo := g.At(cur.Date.AddDate(0, 0, -7))

	newCases := cur.Cases - prior.Cases
	trend := ClassifyTrend(cur, weekAgo, newCases)

	scale := settings.scale(g.Kind())
	// Population in units of the scale, e.g. 9.5 for 950k per 100k.
	per := round2(float64(g.Population()) / scale)
	s := Snapshot{
		Name:          g.Name(),
		Kind:          g.Kind().String(),
		Parent:        g.ParentName(),
		Date:          cur.Date,
		Deaths:        cur.Deaths,
		NewDeaths:     cur.Deaths - prior.Deaths,
		CFR:           CaseFatalityRate(cur.Cases, cur.Deaths),
		Cases:         cur.Cases,
		Active:        cur.Active,
		WeeklyAverage: trend.WeeklyAverage,
		NewCases:      newCases,
		Trend:         trend,
		TrendText:     trend.String(),
		Population:    g.Population(),
		Scale:         scale,
		PopulationPer: per,
	}

	if per > 0 {
		s.DeathsPer = ptr(round2(float64(cur.Deaths) / per))
		s.ActivePer = ptr(round2(float64(cur.Active) / per))
		s.CasesPer = ptr(round2(float64(cur.Cases) / per))
	}
	return s
}

// Humanize renders n with a k/M suffix: 950 → "950", 1500 → "1.5k", 100000 → "100k".
func Humanize(n float64) string {
	const thousands, millions = 1000, 1000000
	var val, units string
	switch {
	case n < thousands:
		return trimZeros(fmt.Sprintf("%.1f", n))
	case n < millions:
		val, units = fmt.Sprintf("%.1f", n/thousands), "k"
	default:
		val, units = fmt.Sprintf("%.1f", n/millions), "M"
	}
	return trimZeros(val) + units
}

func trimZeros(s string) string {
	for len(s) > 0 && s[len(s)-1] == '0' {
		s = s[:len(s)-1]
	}
	if len(s) > 0 && s[len(s)-1] == '.' {
		s = s[:len(s)-1]
	}
	return s
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func ptr(v float64) *float64 { return &v }
