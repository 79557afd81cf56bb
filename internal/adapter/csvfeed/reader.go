package csvfeed

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/couchcryptid/covid-case-metrics/internal/domain"
)

// requiredColumns is the us-counties.csv header.
var requiredColumns = []string{"date", "county", "state", "fips", "cases", "deaths"}

// Reader streams a county case CSV as raw events, one per row.
// It implements pipeline.BatchExtractor.
type Reader struct {
	source  string
	csv     *csv.Reader
	closer  io.Closer
	columns map[string]int
	line    int64
	done    bool
}

// Open opens a case feed file.
func Open(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open feed: %w", err)
	}
	r, err := NewReader(f, path)
	if err != nil {
		f.Close()
		return nil, err
	}
	r.closer = f
	return r, nil
}

// NewReader reads the header row from src. source names the feed in events
// and errors.
func NewReader(src io.Reader, source string) (*Reader, error) {
	cr := csv.NewReader(src)
	cr.FieldsPerRecord = -1
	cr.ReuseRecord = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read feed header from %s: %w", source, err)
	}

	columns := make(map[string]int, len(header))
	for i, h := range header {
		columns[strings.ToLower(strings.TrimSpace(h))] = i
	}
	for _, c := range requiredColumns {
		if _, ok := columns[c]; !ok {
			return nil, fmt.Errorf("feed %s: missing column %q", source, c)
		}
	}

	return &Reader{source: source, csv: cr, columns: columns, line: 1}, nil
}

// ExtractBatch returns up to batchSize rows as raw events. It returns io.EOF
// once the feed is exhausted and no rows remain.
func (r *Reader) ExtractBatch(ctx context.Context, batchSize int) ([]domain.RawEvent, error) {
	if r.done {
		return nil, io.EOF
	}

	events := make([]domain.RawEvent, 0, batchSize)
	for len(events) < batchSize {
		if err := ctx.Err(); err != nil {
			return events, err
		}

		row, err := r.csv.Read()
		r.line++
		if errors.Is(err, io.EOF) {
			r.done = true
			break
		}

		var parseErr *csv.ParseError
		if errors.As(err, &parseErr) {
			// Keep the row so the pipeline counts and logs it as malformed.
			events = append(events, r.event(nil, map[string]string{"error": parseErr.Error()}))
			continue
		}
		if err != nil {
			return events, fmt.Errorf("read feed %s line %d: %w", r.source, r.line, err)
		}

		value, err := json.Marshal(r.record(row))
		if err != nil {
			return events, fmt.Errorf("encode feed row %d: %w", r.line, err)
		}
		events = append(events, r.event(value, nil))
	}

	if len(events) == 0 {
		return nil, io.EOF
	}
	return events, nil
}

// Close releases the underlying file, if any.
func (r *Reader) Close() error {
	if r.closer == nil {
		return nil
	}
	return r.closer.Close()
}

func (r *Reader) record(row []string) domain.RawCSVRecord {
	col := func(name string) string {
		i := r.columns[name]
		if i >= len(row) {
			return ""
		}
		return row[i]
	}
	return domain.RawCSVRecord{
		Date:   col("date"),
		County: col("county"),
		State:  col("state"),
		FIPS:   col("fips"),
		Cases:  col("cases"),
		Deaths: col("deaths"),
	}
}

func (r *Reader) event(value []byte, headers map[string]string) domain.RawEvent {
	return domain.RawEvent{
		Key:     []byte(strconv.FormatInt(r.line, 10)),
		Value:   value,
		Headers: headers,
		Topic:   r.source,
		Offset:  r.line,
	}
}
