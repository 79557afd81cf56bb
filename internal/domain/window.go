package domain

import (
	"errors"
	"fmt"
	"time"
)

// ErrOutOfRange is returned when a date falls outside the precomputed window
// span. Callers check Contains first, so reaching it is a programming error.
var ErrOutOfRange = errors.New("date outside window index span")

// ErrDateOutsideSpan marks a feed record dated before the epidemic start or
// after today. The record is skipped.
var ErrDateOutsideSpan = errors.New("record date outside reporting span")

// DefaultActiveWindowDays is the assumed length of an infection.
const DefaultActiveWindowDays = 28

// DefaultEpidemicStart is the first day covered by the window index.
var DefaultEpidemicStart = time.Date(2020, time.January, 1, 0, 0, 0, 0, time.UTC)

// WindowIndex maps each observation date to the date on which that
// observation's cases leave the active window. It is built once and never
// mutated, so it is safe to share.
type WindowIndex struct {
	start time.Time
	days  int
	ends  []time.Time
}

// NewWindowIndex precomputes end dates for every day in [start, today].
func NewWindowIndex(start, today time.Time, activeWindowDays int) (*WindowIndex, error) {
	start, today = Day(start), Day(today)
	if activeWindowDays <= 0 {
		return nil, fmt.Errorf("active window must be positive, got %d", activeWindowDays)
	}
	if today.Before(start) {
		return nil, fmt.Errorf("window end %s precedes start %s", today.Format(DateLayout), start.Format(DateLayout))
	}

	n := daysBetween(start, today) + 1
	w := &WindowIndex{start: start, days: activeWindowDays, ends: make([]time.Time, n)}
	for i := range w.ends {
		w.ends[i] = start.AddDate(0, 0, i+activeWindowDays)
	}
	return w, nil
}

// ActiveEndDate returns d shifted forward by the active window length.
func (w *WindowIndex) ActiveEndDate(d time.Time) (time.Time, error) {
	i := daysBetween(w.start, Day(d))
	if i < 0 || i >= len(w.ends) {
		return time.Time{}, fmt.Errorf("%w: %s", ErrOutOfRange, d.Format(DateLayout))
	}
	return w.ends[i], nil
}

// Contains reports whether d falls within the span.
func (w *WindowIndex) Contains(d time.Time) bool {
	i := daysBetween(w.start, Day(d))
	return i >= 0 && i < len(w.ends)
}

// Days returns the configured active window length.
func (w *WindowIndex) Days() int { return w.days }

// Span returns the first and last dates the index covers.
func (w *WindowIndex) Span() (time.Time, time.Time) {
	return w.start, w.start.AddDate(0, 0, len(w.ends)-1)
}

func daysBetween(from, to time.Time) int {
	// Both are UTC midnights, so the hour count is an exact multiple of 24.
	return int(to.Sub(from).Hours() / 24)
}
