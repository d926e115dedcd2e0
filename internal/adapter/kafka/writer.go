package kafka

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/member-locator/internal/domain"
	"github.com/goccy/go-json"
	kafkago "github.com/segmentio/kafka-go"
)

// Writer publishes enriched members to a Kafka topic, one message per member.
// It implements pipeline.Sink.
type Writer struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

// NewWriter creates a Kafka producer for topic.
func NewWriter(brokers []string, topic string, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:                   kafkago.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafkago.Hash{},
		RequiredAcks:           kafkago.RequireAll,
		AllowAutoTopicCreation: true,
	}
	return &Writer{writer: w, logger: logger}
}

func (w *Writer) Name() string { return "kafka" }

// Write publishes all members in a single WriteMessages call. Members are
// keyed by uid so a member's updates land on one partition.
func (w *Writer) Write(ctx context.Context, members []domain.EnrichedMember) error {
	if len(members) == 0 {
		return nil
	}
	msgs := make([]kafkago.Message, len(members))
	for i := range members {
		msg, err := serializeToMessage(members[i])
		if err != nil {
			return err
		}
		msgs[i] = msg
	}
	if err := w.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("publish %d members: %w", len(msgs), err)
	}
	w.logger.Info("members published", "topic", w.writer.Topic, "members", len(msgs))
	return nil
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

// serializeToMessage marshals an enriched member into a Kafka message.
func serializeToMessage(m domain.EnrichedMember) (kafkago.Message, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize member %s: %w", m.UID, err)
	}
	return kafkago.Message{
		Key:   []byte(m.UID),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "country_code", Value: []byte(m.CountryCode)},
			{Key: "processed_at", Value: []byte(m.ProcessedAt.Format(time.RFC3339))},
		},
	}, nil
}
