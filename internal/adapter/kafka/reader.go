package kafka

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/couchcryptid/covid-case-metrics/internal/config"
	"github.com/couchcryptid/covid-case-metrics/internal/domain"
	kafkago "github.com/segmentio/kafka-go"
)

// Reader consumes raw case rows from a Kafka topic.
// It implements pipeline.BatchExtractor.
//
// The feed is a replay, not an endless stream: once no message has arrived
// for idleTimeout the reader reports io.EOF so reports can be built.
type Reader struct {
	reader        *kafkago.Reader
	idleTimeout   time.Duration
	flushInterval time.Duration
	logger        *slog.Logger
}

// NewReader creates a Kafka consumer for the configured source topic.
func NewReader(cfg *config.Config, logger *slog.Logger) *Reader {
	r := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:     cfg.KafkaBrokers,
		Topic:       cfg.KafkaSourceTopic,
		GroupID:     cfg.KafkaGroupID,
		StartOffset: kafkago.FirstOffset,
		MinBytes:    1,
		MaxBytes:    10e6,
	})
	return &Reader{
		reader:        r,
		idleTimeout:   cfg.FeedIdleTimeout,
		flushInterval: cfg.BatchFlushInterval,
		logger:        logger,
	}
}

// ExtractBatch fetches up to batchSize messages. It waits up to the idle
// timeout for the first message and then up to the flush interval for the
// batch to fill. Offsets are committed through each event's Commit func.
func (r *Reader) ExtractBatch(ctx context.Context, batchSize int) ([]domain.RawEvent, error) {
	first, err := r.fetch(ctx, r.idleTimeout)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			r.logger.Info("source topic idle, ending feed", "idle_timeout", r.idleTimeout)
			return nil, io.EOF
		}
		return nil, err
	}

	events := make([]domain.RawEvent, 0, batchSize)
	events = append(events, r.mapMessage(first))

	deadline := time.Now().Add(r.flushInterval)
	for len(events) < batchSize {
		wait := time.Until(deadline)
		if wait <= 0 {
			break
		}
		msg, err := r.fetch(ctx, wait)
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
				break
			}
			return events, err
		}
		events = append(events, r.mapMessage(msg))
	}
	return events, nil
}

func (r *Reader) fetch(ctx context.Context, wait time.Duration) (kafkago.Message, error) {
	fetchCtx, cancel := context.WithTimeout(ctx, wait)
	defer cancel()

	msg, err := r.reader.FetchMessage(fetchCtx)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("fetch message: %w", err)
	}
	return msg, nil
}

func (r *Reader) mapMessage(msg kafkago.Message) domain.RawEvent {
	raw := mapMessageToRawEvent(msg)
	raw.Commit = func(ctx context.Context) error {
		return r.reader.CommitMessages(ctx, msg)
	}
	return raw
}

// Close closes the underlying consumer and leaves its consumer group.
func (r *Reader) Close() error {
	return r.reader.Close()
}

// mapMessageToRawEvent copies a Kafka message into a RawEvent without a commit func.
func mapMessageToRawEvent(msg kafkago.Message) domain.RawEvent {
	headers := make(map[string]string, len(msg.Headers))
	for _, h := range msg.Headers {
		headers[h.Key] = string(h.Value)
	}
	return domain.RawEvent{
		Key:       msg.Key,
		Value:     msg.Value,
		Headers:   headers,
		Topic:     msg.Topic,
		Partition: msg.Partition,
		Offset:    msg.Offset,
		Timestamp: msg.Time,
	}
}
