// Package domain computes per-geography COVID-19 case metrics from cumulative
// county counts.
//
// # Data Source
//
// Daily counts come from the New York Times us-counties.csv feed, one row per
// county per day with columns date, county, state, fips, cases, deaths. Cases
// and deaths are cumulative. Rows with an empty fips (for example "Unknown"
// or "New York City") are attributed to the state's synthetic unknown county.
//
// # Geography
//
// Counties and states live in an arena ([Registry]) addressed by [ID]. County
// codes are five-digit FIPS codes, state code × 1000 + county code. Each state
// owns exactly one "Unknown County" that shares the state's code and is only
// reachable through the state.
//
// # Active Cases
//
// Cumulative totals never fall, so active cases are estimated with a fixed
// illness window (28 days by default):
//
//	active(d) = cases(d) − cases(d − window)
//
// The [WindowIndex] precomputes d + window for every day since the epidemic
// start. Each county [Series] stores an observation under that end date and
// subtracts it when the end date arrives.
//
// # Roll-up
//
// A state series only receives what flows through its counties, so for every
// date a state's cases, deaths and active counts equal the sum of its
// counties'.
//
// # Benchmark Days
//
// Metrics tables align geographies on a benchmark day index instead of on
// calendar dates: day 1 is the first day with at least Benchmark cumulative
// cases. See [BuildReport].
//
// # Trend
//
// [ClassifyTrend] compares the weekly change in active cases to today's new
// cases:
//
//	weeklyAverage = (active_today − active_7_days_ago) / 7
//	netZero       = newCases − weeklyAverage
//	sick          = weeklyAverage / netZero
//
//	  sick ≥ 0.9 UNCONTROLLED | ≥ 0.5 DANGER ZONE | ≥ 0.25 ACTIVE SPREAD | ≥ 0.1 WARNING
//
// When weeklyAverage ≥ newCases the absolute weekly average decides instead:
//
//	  > 1000 UNCONTROLLED | > 500 DANGER ZONE | > 100 ACTIVE SPREAD | > 50 WARNING | > 10 TRYING
//
// A weekly average below −1 is reported as days until active cases reach zero.
package domain
