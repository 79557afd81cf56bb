package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
)

// Feed sources.
const (
	FeedFile  = "file"
	FeedHTTP  = "http"
	FeedKafka = "kafka"
)

// Report sinks.
const (
	SinkXLSX    = "xlsx"
	SinkKafka   = "kafka"
	SinkConsole = "console"
)

const defaultFeedURL = "https://raw.githubusercontent.com/nytimes/covid-19-data/master/us-counties.csv"

// Config holds all service settings, populated from environment variables.
type Config struct {
	// Feed acquisition.
	FeedSource      string
	FeedPath        string
	FeedURL         string
	FeedTimeout     time.Duration
	FeedIdleTimeout time.Duration
	// RefreshInterval repeats the run on a schedule; zero runs once and exits.
	RefreshInterval time.Duration

	// Census geography and population files.
	StateGeocodesPath    string
	CountyGeocodesPath   string
	StatePopulationPath  string
	CountyPopulationPath string

	// Metrics engine settings.
	CaseMinBenchmark   int
	CaseDaysDuration   int
	GeographyPerCounty float64
	GeographyPerState  float64
	EpidemicStart      time.Time

	// Report output.
	ReportsFile string
	ReportSinks []string
	OutputDir   string

	KafkaBrokers     []string
	KafkaSourceTopic string
	KafkaSinkTopic   string
	KafkaGroupID     string
	BatchSize        int
	// BatchFlushInterval bounds how long a Kafka batch waits to fill once
	// its first record has arrived.
	BatchFlushInterval time.Duration

	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	batchSize, err := sharedcfg.ParseBatchSize()
	if err != nil {
		return nil, err
	}

	flushInterval, err := sharedcfg.ParseBatchFlushInterval()
	if err != nil {
		return nil, err
	}

	feedTimeout, err := parsePositiveDuration("FEED_TIMEOUT", "60s")
	if err != nil {
		return nil, err
	}
	idleTimeout, err := parsePositiveDuration("FEED_IDLE_TIMEOUT", "10s")
	if err != nil {
		return nil, err
	}

	refresh, err := time.ParseDuration(sharedcfg.EnvOrDefault("REFRESH_INTERVAL", "0s"))
	if err != nil || refresh < 0 {
		return nil, errors.New("invalid REFRESH_INTERVAL: must be a non-negative duration")
	}

	benchmark, err := parseInt("CASE_MIN_BENCHMARK", 1, 0)
	if err != nil {
		return nil, err
	}
	days, err := parseInt("CASE_DAYS_DURATION", 28, 1)
	if err != nil {
		return nil, err
	}

	perCounty, err := parseScale("GEOGRAPHY_PER_COUNTY")
	if err != nil {
		return nil, err
	}
	perState, err := parseScale("GEOGRAPHY_PER_STATE")
	if err != nil {
		return nil, err
	}

	start, err := time.Parse("2006-01-02", sharedcfg.EnvOrDefault("EPIDEMIC_START", "2020-01-01"))
	if err != nil {
		return nil, errors.New("invalid EPIDEMIC_START: must be YYYY-MM-DD")
	}

	cfg := &Config{
		FeedSource:      strings.ToLower(sharedcfg.EnvOrDefault("FEED_SOURCE", FeedFile)),
		FeedPath:        sharedcfg.EnvOrDefault("FEED_PATH", "covid-19-data/us-counties.csv"),
		FeedURL:         sharedcfg.EnvOrDefault("FEED_URL", defaultFeedURL),
		FeedTimeout:     feedTimeout,
		FeedIdleTimeout: idleTimeout,
		RefreshInterval: refresh,

		StateGeocodesPath:    sharedcfg.EnvOrDefault("STATE_GEOCODES_PATH", "state-geocodes-v2018.csv"),
		CountyGeocodesPath:   sharedcfg.EnvOrDefault("COUNTY_GEOCODES_PATH", "all-geocodes-v2018.csv"),
		StatePopulationPath:  sharedcfg.EnvOrDefault("STATE_POPULATION_PATH", "nst-est2019-01.csv"),
		CountyPopulationPath: sharedcfg.EnvOrDefault("COUNTY_POPULATION_PATH", "co-est2019-annres.csv"),

		CaseMinBenchmark:   benchmark,
		CaseDaysDuration:   days,
		GeographyPerCounty: perCounty,
		GeographyPerState:  perState,
		EpidemicStart:      start,

		ReportsFile: sharedcfg.EnvOrDefault("REPORTS_FILE", ""),
		ReportSinks: parseList(sharedcfg.EnvOrDefault("REPORT_SINKS", SinkXLSX)),
		OutputDir:   sharedcfg.EnvOrDefault("OUTPUT_DIR", "xlsx"),

		KafkaBrokers:     sharedcfg.ParseBrokers(sharedcfg.EnvOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaSourceTopic: sharedcfg.EnvOrDefault("KAFKA_SOURCE_TOPIC", "raw-case-counts"),
		KafkaSinkTopic:   sharedcfg.EnvOrDefault("KAFKA_SINK_TOPIC", "case-metrics-snapshots"),
		KafkaGroupID:     sharedcfg.EnvOrDefault("KAFKA_GROUP_ID", "covid-case-metrics"),
		BatchSize:        batchSize,

		BatchFlushInterval: flushInterval,

		HTTPAddr:        sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// HasSink reports whether name is one of the configured report sinks.
func (c *Config) HasSink(name string) bool {
	for _, s := range c.ReportSinks {
		if s == name {
			return true
		}
	}
	return false
}

func (c *Config) validate() error {
	switch c.FeedSource {
	case FeedFile:
		if c.FeedPath == "" {
			return errors.New("FEED_PATH is required for FEED_SOURCE=file")
		}
	case FeedHTTP:
		if c.FeedURL == "" {
			return errors.New("FEED_URL is required for FEED_SOURCE=http")
		}
	case FeedKafka:
	default:
		return fmt.Errorf("invalid FEED_SOURCE %q: must be file, http or kafka", c.FeedSource)
	}

	if len(c.ReportSinks) == 0 {
		return errors.New("REPORT_SINKS is required")
	}
	for _, s := range c.ReportSinks {
		switch s {
		case SinkXLSX, SinkKafka, SinkConsole:
		default:
			return fmt.Errorf("invalid REPORT_SINKS entry %q: must be xlsx, kafka or console", s)
		}
	}

	usesKafka := c.FeedSource == FeedKafka || c.HasSink(SinkKafka)
	if usesKafka && len(c.KafkaBrokers) == 0 {
		return errors.New("KAFKA_BROKERS is required")
	}
	if c.FeedSource == FeedKafka && c.RefreshInterval > 0 {
		return errors.New("REFRESH_INTERVAL is not supported with FEED_SOURCE=kafka")
	}
	if c.FeedSource == FeedKafka && c.KafkaSourceTopic == "" {
		return errors.New("KAFKA_SOURCE_TOPIC is required")
	}
	if c.HasSink(SinkKafka) && c.KafkaSinkTopic == "" {
		return errors.New("KAFKA_SINK_TOPIC is required")
	}
	return nil
}

func parsePositiveDuration(key, fallback string) (time.Duration, error) {
	d, err := time.ParseDuration(sharedcfg.EnvOrDefault(key, fallback))
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s: must be a positive duration", key)
	}
	return d, nil
}

func parseInt(key string, fallback, lowest int) (int, error) {
	s := sharedcfg.EnvOrDefault(key, strconv.Itoa(fallback))
	n, err := strconv.Atoi(s)
	if err != nil || n < lowest {
		return 0, fmt.Errorf("invalid %s: must be an integer >= %d", key, lowest)
	}
	return n, nil
}

func parseScale(key string) (float64, error) {
	f, err := strconv.ParseFloat(sharedcfg.EnvOrDefault(key, "100000"), 64)
	if err != nil || f <= 0 {
		return 0, fmt.Errorf("invalid %s: must be a positive number", key)
	}
	return f, nil
}

// parseList splits a comma-separated list, lower-casing and trimming entries.
func parseList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if p := strings.ToLower(strings.TrimSpace(part)); p != "" {
			out = append(out, p)
		}
	}
	return out
}
