// Command radar serves the MRMS reflectivity overlay: a refresh loop fetches
// the latest RALA product, decodes it, and caches the rendered PNG; the HTTP
// layer serves the overlay and its metadata to the map frontend.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/jonboulle/clockwork"

	httpadapter "github.com/couchcryptid/mrms-radar-service/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/mrms-radar-service/internal/adapter/kafka"
	"github.com/couchcryptid/mrms-radar-service/internal/adapter/noaa"
	"github.com/couchcryptid/mrms-radar-service/internal/cache"
	"github.com/couchcryptid/mrms-radar-service/internal/config"
	"github.com/couchcryptid/mrms-radar-service/internal/observability"
	"github.com/couchcryptid/mrms-radar-service/internal/pipeline"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	// Announcements are feature-flagged via KAFKA_ENABLED / KAFKA_BROKERS.
	var announcer pipeline.Announcer
	var kafkaWriter *kafkaadapter.Writer
	if cfg.KafkaEnabled {
		kafkaWriter = kafkaadapter.NewWriter(cfg, logger)
		announcer = kafkaWriter
		logger.Info("kafka announcements enabled", "topic", cfg.KafkaTopic, "brokers", cfg.KafkaBrokers)
	} else {
		logger.Info("kafka announcements disabled")
	}

	fetcher := noaa.NewClient(cfg.MRMSURL, cfg.FetchTimeout,
		cfg.FetchMaxRetries, cfg.BreakerFailures, cfg.BreakerOpenFor, logger)
	products := cache.New()
	decoder := pipeline.New(logger, metrics)
	refresher := pipeline.NewRefresher(fetcher, decoder, products, announcer,
		logger, metrics, clockwork.NewRealClock(), cfg.FetchInterval)

	srv := httpadapter.NewServer(cfg.HTTPAddr, products, refresher, cfg.StaticDir, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Start HTTP server.
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	// Start refresh loop.
	go func() {
		if err := refresher.Run(ctx); err != nil {
			logger.Error("refresher error", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	if kafkaWriter != nil {
		if err := kafkaWriter.Close(); err != nil {
			logger.Error("kafka writer close error", "error", err)
		}
	}

	logger.Info("shutdown complete")
}
