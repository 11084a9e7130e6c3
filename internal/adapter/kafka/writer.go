package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/couchcryptid/mrms-radar-service/internal/config"
	"github.com/couchcryptid/mrms-radar-service/internal/domain"
)

// Writer publishes product announcements to a Kafka topic so downstream
// consumers (alerting, archival) learn about each refresh without polling
// the HTTP API. It implements pipeline.Announcer.
type Writer struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

// NewWriter creates a Kafka producer for the configured announcement topic.
func NewWriter(cfg *config.Config, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaTopic,
		Balancer:     &kafkago.LeastBytes{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &Writer{writer: w, logger: logger}
}

// Announce publishes the product's metadata, keyed by its reference time.
// The writer's LeastBytes balancer chooses the partition, so the key does not
// determine which partition a message lands in.
func (w *Writer) Announce(ctx context.Context, product *domain.RadarProduct) error {
	msg, err := serializeToMessage(product)
	if err != nil {
		return err
	}
	return w.writer.WriteMessages(ctx, msg)
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

// serializeToMessage marshals a product's metadata into a Kafka message.
func serializeToMessage(product *domain.RadarProduct) (kafkago.Message, error) {
	data, err := json.Marshal(product.Metadata)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize product metadata: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(product.Metadata.Timestamp),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "product_time", Value: []byte(product.Metadata.Timestamp)},
			{Key: "processed_at", Value: []byte(product.ProcessedAt.Format(time.RFC3339))},
		},
	}, nil
}
