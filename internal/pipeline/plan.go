package pipeline

import (
	"errors"
	"fmt"

	"github.com/couchcryptid/covid-case-metrics/internal/config"
	"github.com/couchcryptid/covid-case-metrics/internal/domain"
)

// Plan is one report to build: a name and the geographies it covers, in
// column order.
type Plan struct {
	Name        string
	Geographies []domain.Geography
}

// ValidateReports checks every state abbreviation and custom geography in
// reports against the registry and reports all unknown names at once.
func ValidateReports(registry *domain.Registry, reports *config.Reports) error {
	var errs []error
	for _, abbr := range reports.StateDetail {
		if _, ok := registry.StateByAbbr(abbr); !ok {
			errs = append(errs, fmt.Errorf("state_detail: unknown state abbreviation %q", abbr))
		}
	}
	for _, name := range reports.CustomNames() {
		for _, entry := range reports.Custom[name] {
			if _, err := registry.ResolveGeography(entry); err != nil {
				errs = append(errs, fmt.Errorf("custom.%s: %w", name, err))
			}
		}
	}
	return errors.Join(errs...)
}

// PlanReports expands the report definitions into concrete plans once the
// feed has been ingested:
//   - "US" covers every state with data;
//   - each state_detail entry covers that state's counties with population
//     and data, named by its abbreviation;
//   - each custom report covers its listed geographies in the order given.
func PlanReports(registry *domain.Registry, reports *config.Reports) ([]Plan, error) {
	if err := ValidateReports(registry, reports); err != nil {
		return nil, err
	}

	var plans []Plan
	for _, name := range reports.CustomNames() {
		p := Plan{Name: name}
		for _, entry := range reports.Custom[name] {
			g, _ := registry.ResolveGeography(entry)
			p.Geographies = append(p.Geographies, g)
		}
		plans = append(plans, p)
	}

	if reports.US {
		plans = append(plans, Plan{Name: domain.NationName, Geographies: geographies(registry.StatesWithData())})
	}

	for _, abbr := range reports.StateDetail {
		state, _ := registry.StateByAbbr(abbr)
		plans = append(plans, Plan{Name: abbr, Geographies: geographies(registry.CountiesWithData(state))})
	}
	return plans, nil
}

func geographies(units []*domain.Unit) []domain.Geography {
	out := make([]domain.Geography, len(units))
	for i, u := range units {
		out[i] = u
	}
	return out
}
