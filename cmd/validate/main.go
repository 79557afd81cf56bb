// Command validate checks the inputs of a metrics run before it is scheduled:
// the census geography files, the report definitions against that geography
// and, optionally, a case feed file. It verifies every state and county has a
// population, every report geography resolves, and every feed record parses,
// resolves and arrives in date order.
//
// Usage:
//
//	go run ./cmd/validate \
//	  -geo-dir internal/adapter/census/testdata \
//	  -reports reports.yaml \
//	  -feed covid-19-data/us-counties.csv
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/couchcryptid/covid-case-metrics/internal/adapter/census"
	"github.com/couchcryptid/covid-case-metrics/internal/adapter/csvfeed"
	"github.com/couchcryptid/covid-case-metrics/internal/config"
	"github.com/couchcryptid/covid-case-metrics/internal/domain"
	"github.com/couchcryptid/covid-case-metrics/internal/pipeline"
	"github.com/fatih/color"
)

// maxErrorsPerPhase caps the detail printed for one phase.
const maxErrorsPerPhase = 50

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
	total  int
}

func (p *phase) errorf(format string, args ...any) {
	p.total++
	if len(p.errors) < maxErrorsPerPhase {
		p.errors = append(p.errors, fmt.Sprintf(format, args...))
	}
}

func (p *phase) passed() bool { return p.total == 0 }

func main() {
	geoDir := flag.String("geo-dir", "", "directory containing the census geocode and population CSVs")
	reportsFile := flag.String("reports", "", "reports YAML file (default: the US report)")
	feedPath := flag.String("feed", "", "optional case feed CSV to check")
	flag.Parse()

	if *geoDir == "" {
		flag.Usage()
		os.Exit(1)
	}

	if code := run(*geoDir, *reportsFile, *feedPath); code != 0 {
		os.Exit(code)
	}
}

func run(geoDir, reportsFile, feedPath string) int {
	fmt.Println("=== Case Metrics Input Validation ===")
	fmt.Println()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	registry, err := census.LoadRegistry(census.Files{
		StateGeocodes:    filepath.Join(geoDir, "state-geocodes-v2018.csv"),
		CountyGeocodes:   filepath.Join(geoDir, "all-geocodes-v2018.csv"),
		StatePopulation:  filepath.Join(geoDir, "nst-est2019-01.csv"),
		CountyPopulation: filepath.Join(geoDir, "co-est2019-annres.csv"),
	}, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: load geography: %v\n", err)
		return 1
	}

	phases := []*phase{
		validateGeography(registry),
		validateReports(registry, reportsFile),
	}
	if feedPath != "" {
		phases = append(phases, validateFeed(registry, feedPath))
	}

	pass := color.New(color.FgGreen).SprintFunc()
	fail := color.New(color.FgRed).SprintfFunc()

	fmt.Println()
	allPassed := true
	for _, p := range phases {
		status := pass("PASS")
		if !p.passed() {
			status = fail("FAIL (%d errors)", p.total)
			allPassed = false
		}
		fmt.Printf("  %-42s %s\n", p.name, status)
	}

	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Printf("\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			fmt.Printf("  [%d] %s\n", i+1, e)
		}
		if p.total > len(p.errors) {
			fmt.Printf("  ... and %d more\n", p.total-len(p.errors))
		}
	}

	if allPassed {
		fmt.Println("\nAll validations passed.")
		return 0
	}
	fmt.Println("\nValidation FAILED.")
	return 1
}

// ── Phase 1: Geography ──
// Every state needs a population for per-capita metrics; counties without
// one are excluded from state detail reports.

func validateGeography(registry *domain.Registry) *phase {
	p := &phase{name: "Phase 1: Geography (census files)"}

	states := registry.States()
	if len(states) == 0 {
		p.errorf("no states loaded")
	}

	counties, missing := 0, 0
	for _, s := range states {
		if s.Population() <= 0 {
			p.errorf("state %s: no population", s.Name())
		}
		for _, c := range s.Counties() {
			if c.Name() == domain.UnknownCountyName {
				continue
			}
			counties++
			if c.Population() <= 0 {
				missing++
				p.errorf("county %s: no population", c.Location())
			}
		}
	}
	fmt.Printf("Geography: %d states, %d counties (%d without population)\n", len(states), counties, missing)
	return p
}

// ── Phase 2: Report Definitions ──

func validateReports(registry *domain.Registry, path string) *phase {
	p := &phase{name: "Phase 2: Reports (definitions)"}

	reports, err := config.LoadReports(path)
	if err != nil {
		p.errorf("%v", err)
		return p
	}
	if err := pipeline.ValidateReports(registry, reports); err != nil {
		for _, e := range unjoin(err) {
			p.errorf("%v", e)
		}
		return p
	}

	plans, err := pipeline.PlanReports(registry, reports)
	if err != nil {
		p.errorf("%v", err)
		return p
	}
	for _, plan := range plans {
		fmt.Printf("Report %s: %d geographies planned before ingest\n", plan.Name, len(plan.Geographies))
	}
	return p
}

// ── Phase 3: Feed ──
// Records must parse, resolve to a county or state, and arrive in
// non-decreasing date order no later than today.

func validateFeed(registry *domain.Registry, path string) *phase {
	p := &phase{name: "Phase 3: Feed (records)"}

	feed, err := csvfeed.Open(path)
	if err != nil {
		p.errorf("%v", err)
		return p
	}
	defer feed.Close()

	today := domain.Today()
	var last time.Time
	records, dropped := 0, 0
	for {
		batch, err := feed.ExtractBatch(context.Background(), 500)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			p.errorf("read feed: %v", err)
			return p
		}

		for _, raw := range batch {
			records++
			rec, err := domain.ParseRawEvent(raw)
			if err != nil {
				if msg := raw.Headers["error"]; msg != "" {
					err = errors.New(msg)
				}
				p.errorf("line %d: %v", raw.Offset, err)
				continue
			}

			date := rec.Observation.Date
			if date.Before(last) {
				p.errorf("line %d: date %s precedes %s", raw.Offset,
					date.Format(domain.DateLayout), last.Format(domain.DateLayout))
			} else {
				last = date
			}
			if date.After(today) {
				p.errorf("line %d: date %s is in the future", raw.Offset, date.Format(domain.DateLayout))
			}

			if !resolves(registry, rec) {
				dropped++
			}
		}
	}

	fmt.Printf("Feed: %d records, %d without a known county or state, last date %s\n",
		records, dropped, last.Format(domain.DateLayout))
	return p
}

func resolves(registry *domain.Registry, rec domain.FeedRecord) bool {
	if rec.HasFIPS {
		if _, ok := registry.ResolveCounty(rec.FIPS); ok {
			return true
		}
	}
	_, ok := registry.ResolveStateByName(rec.State)
	return ok
}

func unjoin(err error) []error {
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		return joined.Unwrap()
	}
	return []error{err}
}
