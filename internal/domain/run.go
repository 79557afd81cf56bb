package domain

import "time"

// RunSummary describes one pass of ingesting the feed and delivering reports.
type RunSummary struct {
	StartedAt   time.Time       `json:"started_at"`
	FinishedAt  time.Time       `json:"finished_at"`
	Records     int             `json:"records"`
	ParseErrors int             `json:"parse_errors"`
	Routes      map[string]int  `json:"routes"`
	Reports     []ReportSummary `json:"reports"`
	Error       string          `json:"error,omitempty"`
}

// ReportSummary records where one report was delivered.
type ReportSummary struct {
	Name        string   `json:"name"`
	Geographies int      `json:"geographies"`
	Days        int      `json:"days"`
	Sinks       []string `json:"sinks"`
	Failed      []string `json:"failed,omitempty"`
}

// NewRunSummary starts a summary at the given time.
func NewRunSummary(started time.Time) RunSummary {
	return RunSummary{StartedAt: started, Routes: make(map[string]int)}
}

// Count records a routed feed record.
func (s *RunSummary) Count(route Route) {
	s.Records++
	s.Routes[route.String()]++
}
