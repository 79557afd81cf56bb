package domain

import (
	"fmt"
	"log/slog"
)

// Route reports where the Aggregator sent a record.
type Route int

const (
	// RouteCounty: a known county (and its state, if any).
	RouteCounty Route = iota
	// RouteUnknown: the state's unknown-county bucket.
	RouteUnknown
	// RouteOrphan: a known county with no resolvable state.
	RouteOrphan
	// RouteDropped: neither county nor state resolved.
	RouteDropped
)

func (r Route) String() string {
	switch r {
	case RouteCounty:
		return "county"
	case RouteUnknown:
		return "unknown"
	case RouteOrphan:
		return "orphan"
	case RouteDropped:
		return "dropped"
	default:
		return fmt.Sprintf("Route(%d)", int(r))
	}
}

// Aggregator routes county observations into county series and rolls them
// up into state series. State series only ever receive what flows through
// their counties, so a state's value for a date is the sum of its counties'.
type Aggregator struct {
	registry *Registry
	window   *WindowIndex
	logger   *slog.Logger
}

// NewAggregator creates an Aggregator over a loaded registry.
func NewAggregator(registry *Registry, window *WindowIndex, logger *slog.Logger) *Aggregator {
	return &Aggregator{registry: registry, window: window, logger: logger}
}

// Ingest routes one feed record. Unresolvable geography is not an error. A
// record dated outside the window span returns ErrDateOutsideSpan and is not
// stored; ErrOutOfRange is only returned if the span check is bypassed.
func (a *Aggregator) Ingest(rec FeedRecord) (Route, error) {
	if !a.window.Contains(rec.Observation.Date) {
		first, last := a.window.Span()
		return RouteDropped, fmt.Errorf("%w: %s not in %s..%s", ErrDateOutsideSpan,
			rec.Observation.Date.Format(DateLayout), first.Format(DateLayout), last.Format(DateLayout))
	}

	if rec.HasFIPS {
		if county, ok := a.registry.ResolveCounty(rec.FIPS); ok {
			if err := a.addToCounty(county, rec.Observation); err != nil {
				return RouteDropped, err
			}
			if county.parent == NoParent {
				a.logger.Debug("county has no state, skipping roll-up",
					"county", county.name, "fips", rec.FIPS)
				return RouteOrphan, nil
			}
			return RouteCounty, nil
		}
		a.logger.Debug("unknown county",
			"county", rec.County, "state", rec.State, "fips", rec.FIPS)
	}

	state, ok := a.registry.ResolveStateByName(rec.State)
	if !ok {
		a.logger.Debug("unknown county and state, dropping record",
			"county", rec.County, "state", rec.State, "fips", rec.FIPS, "has_fips", rec.HasFIPS)
		return RouteDropped, nil
	}
	if err := a.addToCounty(state.UnknownCounty(), rec.Observation); err != nil {
		return RouteDropped, err
	}
	return RouteUnknown, nil
}

// addToCounty stores obs on the county and forwards it to the owning state.
// When a same-date value is replaced only the change is forwarded, keeping
// the state total equal to the sum of its counties.
func (a *Aggregator) addToCounty(county *Unit, obs Observation) error {
	if county.series == nil {
		county.series = newSeries(a.window)
	}
	stored, replaced, err := county.series.addCounty(obs)
	if err != nil {
		return fmt.Errorf("add observation for %s: %w", county.Location(), err)
	}

	state := county.Parent()
	if state == nil {
		return nil
	}
	if state.series == nil {
		state.series = newSeries(a.window)
	}
	if replaced != nil {
		stored = stored.diff(*replaced)
	}
	state.series.addState(stored)
	return nil
}
