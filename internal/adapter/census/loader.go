package census

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/couchcryptid/covid-case-metrics/internal/domain"
)

// countySummaryLevel is the all-geocodes summary level for county rows.
const countySummaryLevel = 50

// populationColumn holds the most recent annual estimate (July 1, 2019) in
// both population files.
const populationColumn = 12

// Files names the four Census reference files the registry is built from.
type Files struct {
	StateGeocodes    string
	CountyGeocodes   string
	StatePopulation  string
	CountyPopulation string
}

// LoadRegistry builds the geography registry: states (with their unknown
// counties), then counties, then state and county populations.
func LoadRegistry(files Files, logger *slog.Logger) (*domain.Registry, error) {
	reg := domain.NewRegistry()

	steps := []struct {
		name  string
		path  string
		apply func(*domain.Registry, [][]string, *slog.Logger) int
	}{
		{"states", files.StateGeocodes, AddStates},
		{"counties", files.CountyGeocodes, AddCounties},
		{"state populations", files.StatePopulation, SetStatePopulations},
		{"county populations", files.CountyPopulation, SetCountyPopulations},
	}

	for _, step := range steps {
		rows, err := ReadRows(step.path)
		if err != nil {
			return nil, fmt.Errorf("load %s: %w", step.name, err)
		}
		n := step.apply(reg, rows, logger)
		if n == 0 {
			return nil, fmt.Errorf("load %s: no usable rows in %s", step.name, step.path)
		}
		logger.Info("geography loaded", "step", step.name, "rows", n, "path", step.path)
	}
	return reg, nil
}

// AddStates registers states from state-geocodes rows
// (Region, Division, State FIPS, Name). Header rows and the region and
// division summary rows (state FIPS 00) are skipped.
func AddStates(reg *domain.Registry, rows [][]string, logger *slog.Logger) int {
	n := 0
	for _, r := range rows {
		if len(r) < 4 {
			continue
		}
		region, err1 := atoi(r[0])
		division, err2 := atoi(r[1])
		code, err3 := atoi(r[2])
		if err1 != nil || err2 != nil || err3 != nil {
			continue
		}
		if code == 0 {
			continue
		}
		reg.AddState(region, division, code, strings.TrimSpace(r[3]))
		n++
	}
	return n
}

// AddCounties registers counties from all-geocodes rows
// (Summary Level, State, County, Subdivision, Place, City, Area Name).
// Only county summary rows are used.
func AddCounties(reg *domain.Registry, rows [][]string, logger *slog.Logger) int {
	n := 0
	for _, r := range rows {
		if len(r) < 7 {
			continue
		}
		level, err := atoi(r[0])
		if err != nil || level != countySummaryLevel {
			continue
		}
		stateCode, err1 := atoi(r[1])
		countyCode, err2 := atoi(r[2])
		if err1 != nil || err2 != nil {
			continue
		}

		c := reg.AddCounty(stateCode, countyCode, strings.TrimSpace(r[6]))
		if c.Parent() == nil {
			logger.Debug("county has unknown state", "county", c.Name(), "state_code", stateCode)
		}
		n++
	}
	return n
}

// SetStatePopulations applies nst-est populations; column 0 is the state name.
func SetStatePopulations(reg *domain.Registry, rows [][]string, logger *slog.Logger) int {
	n := 0
	for _, r := range rows {
		if len(r) <= populationColumn {
			continue
		}
		pop, err := parsePopulation(r[populationColumn])
		if err != nil {
			continue
		}
		name := strings.TrimSpace(strings.TrimLeft(r[0], ". "))
		state, ok := reg.ResolveStateByName(name)
		if !ok {
			logger.Debug("state population for unknown state, skipping", "state", name, "population", pop)
			continue
		}
		state.SetPopulation(pop)
		n++
	}
	return n
}

// SetCountyPopulations applies co-est populations; column 0 is
// "County Name, State Name".
func SetCountyPopulations(reg *domain.Registry, rows [][]string, logger *slog.Logger) int {
	n := 0
	for _, r := range rows {
		if len(r) <= populationColumn {
			continue
		}
		i := strings.LastIndex(r[0], ",")
		if i < 0 {
			continue
		}
		pop, err := parsePopulation(r[populationColumn])
		if err != nil {
			continue
		}

		countyName := strings.TrimSpace(strings.ReplaceAll(r[0][:i], ".", ""))
		stateName := strings.TrimSpace(r[0][i+1:])

		state, ok := reg.ResolveStateByName(stateName)
		if !ok {
			logger.Debug("county population for unknown state, skipping", "state", stateName, "county", countyName)
			continue
		}
		county, ok := reg.ResolveCountyForPopulation(state.Code(), countyName)
		if !ok {
			logger.Debug("county population for unknown county, skipping", "state", stateName, "county", countyName)
			continue
		}
		county.SetPopulation(pop)
		n++
	}
	return n
}

func atoi(s string) (int, error) {
	return strconv.Atoi(strings.TrimSpace(s))
}

// parsePopulation accepts "4903185", "4,903,185" and "4903185.0".
func parsePopulation(s string) (int, error) {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid population %q: %w", s, err)
	}
	return int(f), nil
}
