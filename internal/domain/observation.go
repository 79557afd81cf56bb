package domain

import "time"

// DateLayout is the calendar date format used by the case feed (YYYY-MM-DD).
const DateLayout = "2006-01-02"

// Observation is one day of cumulative case data for a geography.
// Active is derived by the owning Series and is not read from the feed.
type Observation struct {
	Date   time.Time `json:"date"`
	Cases  int       `json:"cases"`
	Deaths int       `json:"deaths"`
	Active int       `json:"active"`
}

// ZeroObservation stands in for "no prior data" so callers never handle nil.
var ZeroObservation = Observation{Date: time.Date(1900, time.January, 1, 0, 0, 0, 0, time.UTC)}

// NewObservation builds an observation for the given calendar day.
func NewObservation(date time.Time, cases, deaths int) Observation {
	return Observation{Date: Day(date), Cases: cases, Deaths: deaths}
}

// add sums o into obs. Used by state roll-ups.
func (obs *Observation) add(o Observation) {
	obs.Cases += o.Cases
	obs.Deaths += o.Deaths
	obs.Active += o.Active
}

// diff returns obs minus o, keeping obs's date.
func (obs Observation) diff(o Observation) Observation {
	return Observation{
		Date:   obs.Date,
		Cases:  obs.Cases - o.Cases,
		Deaths: obs.Deaths - o.Deaths,
		Active: obs.Active - o.Active,
	}
}

// Day truncates t to a UTC calendar day.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
