package domain

import (
	"fmt"
	"math"
	"time"
)

// Trend labels, most severe first.
const (
	TrendUncontrolled = "UNCONTROLLED"
	TrendDangerZone   = "DANGER ZONE"
	TrendActiveSpread = "ACTIVE SPREAD"
	TrendWarning      = "WARNING"
	TrendTrying       = "TRYING"
	TrendControlled   = "CONTROLLED"
)

// Trend summarizes whether a geography's active cases are growing or shrinking.
//
// For a non-improving geography Label and Summary are set. For an improving
// one (weekly average below -1) Improving is true and DaysToZero/ZeroDate
// project when active cases reach zero at the current rate.
type Trend struct {
	Label   string
	Summary string

	Improving  bool
	DaysToZero int
	ZeroDate   time.Time

	WeeklyAverage  float64
	NetZero        float64
	SickPercentage float64
}

func (t Trend) String() string {
	if t.Improving {
		return fmt.Sprintf("%d days (%s)", t.DaysToZero, t.ZeroDate.Format(DateLayout))
	}
	return fmt.Sprintf("%s [%s]", t.Label, t.Summary)
}

// WeeklyAverage is the mean daily change in active cases over the last week.
func WeeklyAverage(today, weekAgo Observation) float64 {
	return float64(today.Active-weekAgo.Active) / 7
}

// ClassifyTrend labels a geography from its current observation, its active
// count a week earlier and today's new cases.
//
// Ratio bands on weeklyAverage/netZero are applied first; when the weekly
// average is at least today's new cases (new cases lag the trend) the
// absolute weekly-average bands replace them.
func ClassifyTrend(current, weekAgo Observation, newCases int) Trend {
	avg := WeeklyAverage(current, weekAgo)
	netZero := float64(newCases) - avg

	var sick float64
	switch {
	case netZero != 0:
		sick = avg / netZero
	case avg != 0:
		sick = 1.0
	default:
		sick = 0.0
	}

	t := Trend{WeeklyAverage: avg, NetZero: netZero, SickPercentage: sick}

	if avg < -1 {
		days := int(float64(current.Active) / math.Abs(avg))
		t.Improving = true
		t.DaysToZero = days
		t.ZeroDate = current.Date.AddDate(0, 0, days)
		return t
	}

	t.Label = ratioBand(sick)
	if avg >= float64(newCases) {
		t.Label = absoluteBand(avg)
	}
	t.Summary = growthSummary(netZero, sick)
	return t
}

func ratioBand(sick float64) string {
	switch {
	case sick >= 0.9:
		return TrendUncontrolled
	case sick >= 0.5:
		return TrendDangerZone
	case sick >= 0.25:
		return TrendActiveSpread
	case sick >= 0.1:
		return TrendWarning
	default:
		return TrendControlled
	}
}

func absoluteBand(avg float64) string {
	switch {
	case avg > 1000:
		return TrendUncontrolled
	case avg > 500:
		return TrendDangerZone
	case avg > 100:
		return TrendActiveSpread
	case avg > 50:
		return TrendWarning
	case avg > 10:
		return TrendTrying
	default:
		return TrendControlled
	}
}

// growthSummary expresses newly sick against recovered. With 100 new cases
// and a weekly average of 75, 25 cases replace recoveries and 75 are growth,
// i.e. a 4:1 ratio.
func growthSummary(netZero, sick float64) string {
	if netZero <= 0 {
		return "n/a"
	}
	if ratio := int(sick); ratio >= 1 {
		return fmt.Sprintf("%d:1 growth", ratio+1)
	}
	return fmt.Sprintf("+%.0f%% growth", sick*100)
}
