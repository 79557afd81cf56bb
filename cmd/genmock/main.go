// Command genmock generates a deterministic synthetic county case feed in the
// us-counties.csv layout from the census geography files. The output drives
// local runs and test fixtures without downloading the real feed, and can
// optionally be published to the raw case topic for Kafka-fed runs.
//
// Usage:
//
//	go run ./cmd/genmock \
//	  -geo-dir internal/adapter/census/testdata \
//	  -csv-out data/mock/us-counties.csv \
//	  -json-out data/mock/us-counties.json \
//	  -days 45 -seed 2020
package main

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/couchcryptid/covid-case-metrics/internal/adapter/census"
	"github.com/couchcryptid/covid-case-metrics/internal/adapter/console"
	"github.com/couchcryptid/covid-case-metrics/internal/domain"
	"github.com/jonboulle/clockwork"
	kafkago "github.com/segmentio/kafka-go"
)

var feedStart = time.Date(2020, time.March, 1, 0, 0, 0, 0, time.UTC)

// unknownEvery adds an unassigned-county row for each state every n days.
const unknownEvery = 5

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	geoDir := flag.String("geo-dir", "", "directory containing the census geocode and population CSVs")
	csvOut := flag.String("csv-out", "", "output path for the synthetic feed CSV")
	jsonOut := flag.String("json-out", "", "optional output path for a raw record JSON fixture")
	days := flag.Int("days", 45, "number of days to generate, starting 2020-03-01")
	seed := flag.Uint64("seed", 2020, "random seed")
	brokers := flag.String("brokers", "", "optional comma-separated Kafka brokers to publish the feed to")
	topic := flag.String("topic", "raw-case-counts", "Kafka topic for -brokers")
	flag.Parse()

	if *geoDir == "" || *csvOut == "" || *days < 1 {
		flag.Usage()
		return fmt.Errorf("missing required flags: -geo-dir, -csv-out")
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	registry, err := census.LoadRegistry(census.Files{
		StateGeocodes:    filepath.Join(*geoDir, "state-geocodes-v2018.csv"),
		CountyGeocodes:   filepath.Join(*geoDir, "all-geocodes-v2018.csv"),
		StatePopulation:  filepath.Join(*geoDir, "nst-est2019-01.csv"),
		CountyPopulation: filepath.Join(*geoDir, "co-est2019-annres.csv"),
	}, logger)
	if err != nil {
		return fmt.Errorf("load geography: %w", err)
	}

	last := feedStart.AddDate(0, 0, *days-1)
	// Reports are stamped with the last generated day.
	domain.SetClock(clockwork.NewFakeClockAt(last.Add(18 * time.Hour)))
	defer domain.SetClock(nil)

	records := generate(registry, *days, rand.New(rand.NewPCG(*seed, *seed)))
	log.Printf("generated %d records for %d days", len(records), *days)

	if err := writeCSV(*csvOut, records); err != nil {
		return fmt.Errorf("writing feed: %w", err)
	}
	log.Printf("wrote feed: %s", *csvOut)

	if *jsonOut != "" {
		if err := writeJSON(*jsonOut, records); err != nil {
			return fmt.Errorf("writing JSON fixture: %w", err)
		}
		log.Printf("wrote JSON fixture: %s", *jsonOut)
	}

	if *brokers != "" {
		if err := publish(context.Background(), strings.Split(*brokers, ","), *topic, records); err != nil {
			return fmt.Errorf("publishing feed: %w", err)
		}
		log.Printf("published %d records to %s", len(records), *topic)
	}

	return printSummary(registry, records, last)
}

// generate walks every county day by day. Each county starts on its own day
// with its own growth rate; cumulative counts never decrease.
func generate(registry *domain.Registry, days int, rng *rand.Rand) []domain.RawCSVRecord {
	type county struct {
		unit   *domain.Unit
		state  string
		start  int
		growth float64
		cases  int
		deaths int
	}

	var counties []*county
	unknown := make(map[string]*county)
	for _, s := range registry.States() {
		for _, c := range s.Counties() {
			cs := &county{
				unit:   c,
				state:  s.Name(),
				start:  rng.IntN(max(days/2, 1)),
				growth: 0.05 + rng.Float64()*0.2,
			}
			if c.Name() == domain.UnknownCountyName {
				unknown[s.Name()] = cs
				continue
			}
			counties = append(counties, cs)
		}
	}

	var out []domain.RawCSVRecord
	for day := range days {
		date := feedStart.AddDate(0, 0, day).Format(domain.DateLayout)
		for _, c := range counties {
			if day < c.start {
				continue
			}
			step(c.cases, &c.cases, &c.deaths, c.growth, rng)
			out = append(out, domain.RawCSVRecord{
				Date:   date,
				County: strings.TrimSuffix(c.unit.Name(), " County"),
				State:  c.state,
				FIPS:   fmt.Sprintf("%05d", c.unit.Code()),
				Cases:  strconv.Itoa(c.cases),
				Deaths: strconv.Itoa(c.deaths),
			})
		}
		if day%unknownEvery != unknownEvery-1 {
			continue
		}
		for _, s := range registry.States() {
			u := unknown[s.Name()]
			step(u.cases, &u.cases, &u.deaths, u.growth, rng)
			out = append(out, domain.RawCSVRecord{
				Date:   date,
				County: "Unknown",
				State:  u.state,
				Cases:  strconv.Itoa(u.cases),
				Deaths: strconv.Itoa(u.deaths),
			})
		}
	}
	return out
}

func step(prev int, cases, deaths *int, growth float64, rng *rand.Rand) {
	next := int(float64(prev)*(1+growth)) + 1 + rng.IntN(3)
	*cases = next
	// Roughly 1.5% of cases, never decreasing.
	*deaths = max(*deaths, next*15/1000)
}

func writeCSV(path string, records []domain.RawCSVRecord) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write([]string{"date", "county", "state", "fips", "cases", "deaths"}); err != nil {
		return err
	}
	for _, r := range records {
		if err := w.Write([]string{r.Date, r.County, r.State, r.FIPS, r.Cases, r.Deaths}); err != nil {
			return err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return err
	}
	return f.Close()
}

func writeJSON(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	return os.WriteFile(path, data, 0o600)
}

func publish(ctx context.Context, brokers []string, topic string, records []domain.RawCSVRecord) error {
	w := &kafkago.Writer{
		Addr:                   kafkago.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafkago.Hash{},
		AllowAutoTopicCreation: true,
	}
	defer w.Close()

	msgs := make([]kafkago.Message, 0, len(records))
	for _, r := range records {
		value, err := json.Marshal(r)
		if err != nil {
			return fmt.Errorf("marshal record: %w", err)
		}
		msgs = append(msgs, kafkago.Message{Key: []byte(r.FIPS), Value: value})
	}
	return w.WriteMessages(ctx, msgs...)
}

// printSummary feeds the generated records through the aggregator and prints
// the US snapshot table, for updating test assertions.
func printSummary(registry *domain.Registry, records []domain.RawCSVRecord, last time.Time) error {
	window, err := domain.NewWindowIndex(feedStart, last, domain.DefaultActiveWindowDays)
	if err != nil {
		return err
	}
	agg := domain.NewAggregator(registry, window, slog.New(slog.NewTextHandler(io.Discard, nil)))

	routes := make(map[domain.Route]int)
	for _, r := range records {
		rec, err := domain.ParseRecord(r)
		if err != nil {
			return fmt.Errorf("generated record does not parse: %w", err)
		}
		route, err := agg.Ingest(rec)
		if err != nil {
			return err
		}
		routes[route]++
	}

	fmt.Println("\n=== Stats for updating test assertions ===")
	fmt.Printf("Routes: county=%d, unknown=%d, orphan=%d, dropped=%d\n",
		routes[domain.RouteCounty], routes[domain.RouteUnknown], routes[domain.RouteOrphan], routes[domain.RouteDropped])

	var states []domain.Geography
	for _, s := range registry.StatesWithData() {
		states = append(states, s)
	}
	report := domain.BuildReport(domain.NationName, states, domain.DefaultSettings())
	fmt.Printf("US report: %d states, %d benchmark days\n\n", len(report.Header), len(report.Rows))
	return console.NewWriter().WriteReport(context.Background(), report)
}
