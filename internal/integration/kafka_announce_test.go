//go:build integration

package integration_test

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"strconv"
	"testing"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tckafka "github.com/testcontainers/testcontainers-go/modules/kafka"

	"github.com/couchcryptid/mrms-radar-service/internal/adapter/kafka"
	"github.com/couchcryptid/mrms-radar-service/internal/config"
	"github.com/couchcryptid/mrms-radar-service/internal/domain"
	"github.com/couchcryptid/mrms-radar-service/internal/gribtest"
	"github.com/couchcryptid/mrms-radar-service/internal/observability"
	"github.com/couchcryptid/mrms-radar-service/internal/pipeline"
)

const testAnnounceTopic = "test-radar-products"

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// startKafka runs a single-node Kafka container and returns its broker address.
func startKafka(ctx context.Context, t *testing.T) string {
	t.Helper()

	container, err := tckafka.Run(ctx, "confluentinc/confluent-local:7.5.0",
		tckafka.WithClusterID("radar-test-cluster"))
	require.NoError(t, err, "start kafka container")
	t.Cleanup(func() {
		if err := container.Terminate(context.Background()); err != nil {
			t.Logf("terminate kafka container: %v", err)
		}
	})

	brokers, err := container.Brokers(ctx)
	require.NoError(t, err, "resolve kafka brokers")
	require.NotEmpty(t, brokers)
	return brokers[0]
}

func createTopic(t *testing.T, broker, topic string) {
	t.Helper()

	conn, err := kafkago.Dial("tcp", broker)
	require.NoError(t, err)
	defer conn.Close()

	controller, err := conn.Controller()
	require.NoError(t, err)

	ctrlConn, err := kafkago.Dial("tcp", net.JoinHostPort(controller.Host, strconv.Itoa(controller.Port)))
	require.NoError(t, err)
	defer ctrlConn.Close()

	require.NoError(t, ctrlConn.CreateTopics(kafkago.TopicConfig{
		Topic:             topic,
		NumPartitions:     1,
		ReplicationFactor: 1,
	}))
}

// TestAnnounceEndToEnd decodes a synthetic product through the real pipeline
// and verifies the Kafka announcement round-trips with its metadata intact.
func TestAnnounceEndToEnd(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 90*time.Second)
	defer cancel()

	broker := startKafka(ctx, t)
	createTopic(t, broker, testAnnounceTopic)

	cfg := &config.Config{
		KafkaBrokers: []string{broker},
		KafkaTopic:   testAnnounceTopic,
		KafkaEnabled: true,
	}

	// Decode a product the way the refresher would.
	compressed := gribtest.BuildGzip(gribtest.Options{
		RefTime: time.Date(2024, time.April, 26, 15, 10, 0, 0, time.UTC),
		Grid: gribtest.GridOptions{
			Template: 0,
			Width:    4,
			Height:   2,
			Lat1:     55, Lon1: -130,
			Lat2: 20, Lon2: -60,
		},
		Packing: gribtest.PackingOptions{Template: 0, Reference: -33, Bits: 8},
		Data:    gribtest.PackSimple8([]float32{10, 20, 30, 40, 50, 60, 70, -999}, -33),
	})
	p := pipeline.New(discardLogger(), observability.NewMetricsForTesting())
	product, err := p.Process(ctx, compressed)
	require.NoError(t, err)

	writer := kafka.NewWriter(cfg, discardLogger())
	t.Cleanup(func() { _ = writer.Close() })
	require.NoError(t, writer.Announce(ctx, product))

	consumer := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:     []string{broker},
		Topic:       testAnnounceTopic,
		GroupID:     fmt.Sprintf("test-consumer-%d", time.Now().UnixNano()),
		StartOffset: kafkago.FirstOffset,
	})
	t.Cleanup(func() { _ = consumer.Close() })

	readCtx, readCancel := context.WithTimeout(ctx, 30*time.Second)
	defer readCancel()
	msg, err := consumer.ReadMessage(readCtx)
	require.NoError(t, err, "read announcement")

	assert.Equal(t, []byte(product.Metadata.Timestamp), msg.Key)

	var meta domain.Metadata
	require.NoError(t, json.Unmarshal(msg.Value, &meta))
	assert.Equal(t, product.Metadata, meta)
	assert.Equal(t, "2024-04-26T15:10:00.000Z", meta.Timestamp)
	assert.Equal(t, 4, meta.Width)
	assert.Equal(t, 2, meta.Height)

	headers := make(map[string]string, len(msg.Headers))
	for _, h := range msg.Headers {
		headers[h.Key] = string(h.Value)
	}
	assert.Equal(t, product.Metadata.Timestamp, headers["product_time"])
	_, err = time.Parse(time.RFC3339, headers["processed_at"])
	assert.NoError(t, err, "processed_at should be valid RFC3339")
}
