package domain

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// RawCSVRecord is one row of the county case feed as flat JSON. Column names
// follow the upstream us-counties.csv header.
type RawCSVRecord struct {
	Date   string `json:"date"`
	County string `json:"county"`
	State  string `json:"state"`
	FIPS   string `json:"fips"`
	Cases  string `json:"cases"`
	Deaths string `json:"deaths"`
}

// RawEvent is an unprocessed feed record together with its transport metadata.
type RawEvent struct {
	Key       []byte
	Value     []byte
	Headers   map[string]string
	Topic     string
	Partition int
	Offset    int64
	Timestamp time.Time
	Commit    func(ctx context.Context) error
}

// FeedRecord is a parsed feed row ready for the Aggregator.
type FeedRecord struct {
	Observation Observation
	County      string
	State       string
	FIPS        int
	HasFIPS     bool
}

// ParseRawEvent decodes a RawEvent's value into a FeedRecord. An empty fips
// routes the record to its state's unknown county; empty counts read as 0.
func ParseRawEvent(raw RawEvent) (FeedRecord, error) {
	var rec RawCSVRecord
	if err := json.Unmarshal(raw.Value, &rec); err != nil {
		return FeedRecord{}, fmt.Errorf("parse raw event: %w", err)
	}
	return ParseRecord(rec)
}

// ParseRecord validates and converts a raw feed row.
func ParseRecord(rec RawCSVRecord) (FeedRecord, error) {
	date, err := time.Parse(DateLayout, strings.TrimSpace(rec.Date))
	if err != nil {
		return FeedRecord{}, fmt.Errorf("parse date %q: %w", rec.Date, err)
	}

	cases, err := parseCount(rec.Cases)
	if err != nil {
		return FeedRecord{}, fmt.Errorf("parse cases: %w", err)
	}
	deaths, err := parseCount(rec.Deaths)
	if err != nil {
		return FeedRecord{}, fmt.Errorf("parse deaths: %w", err)
	}

	out := FeedRecord{
		Observation: NewObservation(date, cases, deaths),
		County:      strings.TrimSpace(rec.County),
		State:       strings.TrimSpace(rec.State),
	}

	if fips := strings.TrimSpace(rec.FIPS); fips != "" {
		code, err := strconv.Atoi(fips)
		if err != nil {
			return FeedRecord{}, fmt.Errorf("parse fips %q: %w", fips, err)
		}
		out.FIPS = code
		out.HasFIPS = true
	}
	return out, nil
}

// parseCount reads a non-negative cumulative count. Blank means 0.
func parseCount(s string) (int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		// Some revisions of the feed publish counts as "123.0".
		f, ferr := strconv.ParseFloat(s, 64)
		if ferr != nil || f != float64(int(f)) {
			return 0, fmt.Errorf("invalid count %q", s)
		}
		n = int(f)
	}
	if n < 0 {
		return 0, fmt.Errorf("negative count %d", n)
	}
	return n, nil
}
