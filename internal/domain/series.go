package domain

import "time"

// Series is the time-ordered store of observations for one geography.
// Observations must arrive with non-decreasing dates. Not safe for concurrent
// use. A nil *Series reads as empty.
//
// Counties use addCounty, where a later observation for a date replaces the
// earlier one. States use addState, where observations for a date are summed.
type Series struct {
	window *WindowIndex

	ordered []*Observation
	byDate  map[time.Time]*Observation

	// exiting holds, keyed by the day they leave the active window, the
	// observations whose cases are no longer active from that day on.
	exiting map[time.Time]Observation

	current *Observation
	prior   *Observation
}

func newSeries(window *WindowIndex) *Series {
	return &Series{
		window:  window,
		byDate:  make(map[time.Time]*Observation),
		exiting: make(map[time.Time]Observation),
	}
}

// addCounty derives obs.Active from the window and stores obs. It returns the
// stored observation and, when a same-date value was replaced, the old value.
func (s *Series) addCounty(obs Observation) (Observation, *Observation, error) {
	obs.Date = Day(obs.Date)

	end, err := s.window.ActiveEndDate(obs.Date)
	if err != nil {
		return Observation{}, nil, err
	}
	s.exiting[end] = obs

	if gone, ok := s.exiting[obs.Date]; ok {
		obs.Active = obs.Cases - gone.Cases
	} else {
		obs.Active = obs.Cases
	}

	s.advance(obs.Date)

	var replaced *Observation
	if existing, ok := s.byDate[obs.Date]; ok {
		old := *existing
		replaced = &old
		*existing = obs
		s.current = existing
		return obs, replaced, nil
	}

	stored := obs
	s.ordered = append(s.ordered, &stored)
	s.byDate[obs.Date] = &stored
	s.current = &stored
	return obs, nil, nil
}

// addState folds a county observation into the state's running sum for its date.
func (s *Series) addState(obs Observation) {
	obs.Date = Day(obs.Date)
	s.advance(obs.Date)

	if existing, ok := s.byDate[obs.Date]; ok {
		existing.add(obs)
		s.current = existing
		return
	}

	stored := obs
	s.ordered = append(s.ordered, &stored)
	s.byDate[obs.Date] = &stored
	s.current = &stored
}

// advance moves prior forward when a genuinely new day arrives.
func (s *Series) advance(date time.Time) {
	if s.current != nil && !s.current.Date.Equal(date) {
		s.prior = s.current
	}
}

// Current returns the latest observation, or ZeroObservation when empty.
func (s *Series) Current() Observation {
	if s == nil || s.current == nil {
		return ZeroObservation
	}
	return *s.current
}

// Prior returns the observation before the current day, or ZeroObservation.
func (s *Series) Prior() Observation {
	if s == nil || s.prior == nil {
		return ZeroObservation
	}
	return *s.prior
}

// At returns the observation recorded for date, or ZeroObservation.
func (s *Series) At(date time.Time) Observation {
	if s == nil {
		return ZeroObservation
	}
	if obs, ok := s.byDate[Day(date)]; ok {
		return *obs
	}
	return ZeroObservation
}

// Len reports the number of distinct dates recorded.
func (s *Series) Len() int {
	if s == nil {
		return 0
	}
	return len(s.ordered)
}

// Observations returns a copy of the series in arrival order.
func (s *Series) Observations() []Observation {
	if s == nil {
		return nil
	}
	out := make([]Observation, len(s.ordered))
	for i, obs := range s.ordered {
		out[i] = *obs
	}
	return out
}
