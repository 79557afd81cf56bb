//go:build integration

package integration_test

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/couchcryptid/covid-case-metrics/internal/adapter/kafka"
	"github.com/couchcryptid/covid-case-metrics/internal/config"
	"github.com/couchcryptid/covid-case-metrics/internal/domain"
	"github.com/couchcryptid/covid-case-metrics/internal/observability"
	"github.com/couchcryptid/covid-case-metrics/internal/pipeline"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testSourceTopic = "test-source"
	testSinkTopic   = "test-sink"
)

var feedRecords = []domain.RawCSVRecord{
	{Date: "2020-03-01", County: "Travis", State: "Texas", FIPS: "48453", Cases: "1", Deaths: "0"},
	{Date: "2020-03-01", County: "Harris", State: "Texas", FIPS: "48201", Cases: "2", Deaths: "0"},
	{Date: "2020-03-02", County: "Travis", State: "Texas", FIPS: "48453", Cases: "3", Deaths: "0"},
	{Date: "2020-03-02", County: "Harris", State: "Texas", FIPS: "48201", Cases: "5", Deaths: "1"},
	{Date: "2020-03-02", County: "King", State: "Washington", FIPS: "53033", Cases: "10", Deaths: "1"},
	{Date: "2020-03-03", County: "Unknown", State: "Texas", Cases: "4", Deaths: "0"},
}

// snapshotMessage holds a deserialized message read from the sink topic.
type snapshotMessage struct {
	Key     string
	Headers map[string]string
	Body    map[string]any
}

func readSnapshot(ctx context.Context, t *testing.T, consumer *kafkago.Reader) snapshotMessage {
	t.Helper()
	readCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	msg, err := consumer.ReadMessage(readCtx)
	require.NoError(t, err, "read from sink topic")

	headers := make(map[string]string, len(msg.Headers))
	for _, h := range msg.Headers {
		headers[h.Key] = string(h.Value)
	}
	var body map[string]any
	require.NoError(t, json.Unmarshal(msg.Value, &body), "unmarshal sink message")
	return snapshotMessage{Key: string(msg.Key), Headers: headers, Body: body}
}

func publishFeed(ctx context.Context, t *testing.T, broker string, extra ...kafkago.Message) {
	t.Helper()
	producer := &kafkago.Writer{Addr: kafkago.TCP(broker), Topic: testSourceTopic}
	t.Cleanup(func() { _ = producer.Close() })

	msgs := make([]kafkago.Message, 0, len(feedRecords)+len(extra))
	for _, rec := range feedRecords {
		payload, err := json.Marshal(rec)
		require.NoError(t, err)
		msgs = append(msgs, kafkago.Message{Key: []byte(rec.FIPS), Value: payload})
	}
	msgs = append(msgs, extra...)
	require.NoError(t, producer.WriteMessages(ctx, msgs...))
}

func newRegistry() (*domain.Registry, error) {
	r := domain.NewRegistry()
	r.AddState(3, 7, 48, "Texas").SetPopulation(28995881)
	r.AddState(4, 9, 53, "Washington").SetPopulation(7614893)
	r.AddCounty(48, 453, "Travis County").SetPopulation(1273954)
	r.AddCounty(48, 201, "Harris County").SetPopulation(4713325)
	r.AddCounty(53, 33, "King County").SetPopulation(2252782)
	return r, nil
}

func testConfig(broker, group string) *config.Config {
	return &config.Config{
		KafkaBrokers:       []string{broker},
		KafkaSourceTopic:   testSourceTopic,
		KafkaSinkTopic:     testSinkTopic,
		KafkaGroupID:       fmt.Sprintf("%s-%d", group, time.Now().UnixNano()),
		FeedIdleTimeout:    20 * time.Second,
		BatchFlushInterval: 2 * time.Second,
	}
}

func sinkConsumer(t *testing.T, broker string) *kafkago.Reader {
	t.Helper()
	consumer := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:     []string{broker},
		Topic:       testSinkTopic,
		GroupID:     fmt.Sprintf("test-sink-%d", time.Now().UnixNano()),
		StartOffset: kafkago.FirstOffset,
	})
	t.Cleanup(func() { _ = consumer.Close() })
	return consumer
}

// TestKafkaReaderWriter verifies the adapter layer: raw rows round-trip
// through kafka.Reader and report snapshots through kafka.Writer.
func TestKafkaReaderWriter(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 90*time.Second)
	defer cancel()

	broker := startKafka(ctx, t)
	createTopic(t, broker, testSourceTopic)
	createTopic(t, broker, testSinkTopic)

	cfg := testConfig(broker, "test-reader")
	publishFeed(ctx, t, broker)

	reader := kafka.NewReader(cfg, discardLogger())
	t.Cleanup(func() { _ = reader.Close() })

	batch, err := reader.ExtractBatch(ctx, len(feedRecords))
	require.NoError(t, err)
	require.NotEmpty(t, batch)

	raw := batch[0]
	assert.Equal(t, []byte("48453"), raw.Key)
	assert.Equal(t, testSourceTopic, raw.Topic)
	require.NotNil(t, raw.Commit, "commit callback should be set")
	require.NoError(t, raw.Commit(ctx))

	rec, err := domain.ParseRawEvent(raw)
	require.NoError(t, err)
	assert.Equal(t, 48453, rec.FIPS)
	assert.Equal(t, 1, rec.Observation.Cases)

	writer := kafka.NewWriter(cfg, observability.NewMetricsForTesting(), discardLogger())
	t.Cleanup(func() { _ = writer.Close() })

	report := domain.Report{
		Name: "US",
		Snapshots: []domain.Snapshot{{
			Name: "Texas", Kind: "state", Parent: "US",
			Date:  time.Date(2020, time.March, 3, 0, 0, 0, 0, time.UTC),
			Cases: 12, Active: 12, Deaths: 1,
		}},
	}
	require.NoError(t, writer.WriteReport(ctx, report))

	sm := readSnapshot(ctx, t, sinkConsumer(t, broker))
	assert.Equal(t, "US/US/Texas", sm.Key)
	assert.Equal(t, "US", sm.Headers["report"])
	assert.Equal(t, "state", sm.Headers["kind"])
	assert.Equal(t, "2020-03-03", sm.Headers["date"])
	assert.Equal(t, "Texas", sm.Body["name"])
	assert.InDelta(t, 12, sm.Body["cases"], 0)
}

// TestPipelineEndToEnd runs the full pipeline over a Kafka feed with a Kafka
// snapshot sink and verifies the published US report.
func TestPipelineEndToEnd(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	broker := startKafka(ctx, t)
	createTopic(t, broker, testSourceTopic)
	createTopic(t, broker, testSinkTopic)

	cfg := testConfig(broker, "test-pipeline")
	cfg.FeedIdleTimeout = 10 * time.Second
	publishFeed(ctx, t, broker, kafkago.Message{Key: []byte("bad"), Value: []byte("not-json{{{")})

	reader := kafka.NewReader(cfg, discardLogger())
	t.Cleanup(func() { _ = reader.Close() })

	metrics := observability.NewMetricsForTesting()
	writer := kafka.NewWriter(cfg, metrics, discardLogger())
	t.Cleanup(func() { _ = writer.Close() })

	opener := func(context.Context) (pipeline.Feed, error) { return nopCloseFeed{reader}, nil }
	p := pipeline.New(newRegistry, opener, config.DefaultReports(), []pipeline.ReportWriter{writer},
		pipeline.Options{
			BatchSize:     50,
			Settings:      domain.DefaultSettings(),
			EpidemicStart: time.Date(2020, time.March, 1, 0, 0, 0, 0, time.UTC),
		}, discardLogger(), metrics)

	summary, err := p.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, len(feedRecords), summary.Records)
	assert.Equal(t, 1, summary.ParseErrors, "poison pill skipped")
	require.Len(t, summary.Reports, 1)
	assert.Equal(t, []string{config.SinkKafka}, summary.Reports[0].Sinks)

	consumer := sinkConsumer(t, broker)
	byName := map[string]snapshotMessage{}
	for range 2 {
		sm := readSnapshot(ctx, t, consumer)
		byName[sm.Body["name"].(string)] = sm
	}

	require.Contains(t, byName, "Texas")
	require.Contains(t, byName, "Washington")
	assert.Equal(t, "US/US/Texas", byName["Texas"].Key)
	// The last Texas day only carries the unknown-county row.
	assert.InDelta(t, 4, byName["Texas"].Body["cases"], 0)
	assert.InDelta(t, 10, byName["Washington"].Body["cases"], 0)
}

// nopCloseFeed leaves the shared reader open for test cleanup.
type nopCloseFeed struct {
	pipeline.BatchExtractor
}

func (nopCloseFeed) Close() error { return nil }
