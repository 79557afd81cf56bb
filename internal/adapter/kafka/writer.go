package kafka

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/couchcryptid/covid-case-metrics/internal/config"
	"github.com/couchcryptid/covid-case-metrics/internal/domain"
	"github.com/couchcryptid/covid-case-metrics/internal/observability"
	kafkago "github.com/segmentio/kafka-go"
)

// messageWriter is the subset of *kafkago.Writer the Writer uses.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// Writer publishes report snapshots to a Kafka topic.
// It implements pipeline.ReportWriter.
type Writer struct {
	writer  messageWriter
	metrics *observability.Metrics
	logger  *slog.Logger
}

// NewWriter creates a Kafka producer for the configured sink topic.
func NewWriter(cfg *config.Config, metrics *observability.Metrics, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaSinkTopic,
		Balancer:     &kafkago.Hash{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &Writer{writer: w, metrics: metrics, logger: logger}
}

// Name identifies the sink in logs and metrics.
func (w *Writer) Name() string { return config.SinkKafka }

// WriteReport publishes one message per snapshot in the report.
func (w *Writer) WriteReport(ctx context.Context, report domain.Report) error {
	events := make([]domain.OutputEvent, 0, len(report.Snapshots))
	for _, s := range report.Snapshots {
		out, err := domain.SerializeSnapshot(report.Name, s)
		if err != nil {
			return err
		}
		events = append(events, out)
	}
	if err := w.LoadBatch(ctx, events); err != nil {
		return fmt.Errorf("publish report %s: %w", report.Name, err)
	}
	w.logger.Info("report snapshots published", "report", report.Name, "count", len(events))
	return nil
}

// LoadBatch publishes output events in a single WriteMessages call.
func (w *Writer) LoadBatch(ctx context.Context, events []domain.OutputEvent) error {
	if len(events) == 0 {
		return nil
	}
	msgs := make([]kafkago.Message, len(events))
	for i := range events {
		msgs[i] = toMessage(events[i])
	}
	if err := w.writer.WriteMessages(ctx, msgs...); err != nil {
		return err
	}
	w.metrics.SnapshotsPublished.Add(float64(len(msgs)))
	return nil
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

// toMessage converts an OutputEvent into a Kafka message. Headers are sorted
// by key so messages are deterministic.
func toMessage(event domain.OutputEvent) kafkago.Message {
	keys := make([]string, 0, len(event.Headers))
	for k := range event.Headers {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	headers := make([]kafkago.Header, 0, len(keys))
	for _, k := range keys {
		headers = append(headers, kafkago.Header{Key: k, Value: []byte(event.Headers[k])})
	}
	return kafkago.Message{
		Key:     event.Key,
		Value:   event.Value,
		Headers: headers,
	}
}
