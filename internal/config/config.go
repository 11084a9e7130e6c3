package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// DefaultMRMSURL is the NOAA MRMS "Reflectivity at Lowest Altitude" latest
// product, gzip-compressed GRIB2.
const DefaultMRMSURL = "https://mrms.ncep.noaa.gov/data/2D/ReflectivityAtLowestAltitude/MRMS_ReflectivityAtLowestAltitude.latest.grib2.gz"

// Config holds all service settings, populated from environment variables.
type Config struct {
	HTTPAddr        string
	StaticDir       string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	// Upstream fetch configuration.
	MRMSURL         string
	FetchInterval   time.Duration
	FetchTimeout    time.Duration
	FetchMaxRetries int
	BreakerFailures int
	BreakerOpenFor  time.Duration

	// Kafka announcement configuration.
	KafkaBrokers []string
	KafkaTopic   string
	KafkaEnabled bool
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := parseDuration("SHUTDOWN_TIMEOUT", "10s")
	if err != nil {
		return nil, err
	}
	fetchInterval, err := parseDuration("FETCH_INTERVAL", "2m")
	if err != nil {
		return nil, err
	}
	fetchTimeout, err := parseDuration("FETCH_TIMEOUT", "30s")
	if err != nil {
		return nil, err
	}
	breakerOpenFor, err := parseDuration("BREAKER_OPEN_FOR", "1m")
	if err != nil {
		return nil, err
	}

	brokers := parseBrokers(os.Getenv("KAFKA_BROKERS"))
	kafkaEnabled := len(brokers) > 0
	if v := os.Getenv("KAFKA_ENABLED"); v != "" {
		kafkaEnabled = v == "true"
	}

	cfg := &Config{
		HTTPAddr:        envOrDefault("HTTP_ADDR", ":8080"),
		StaticDir:       os.Getenv("STATIC_DIR"),
		LogLevel:        envOrDefault("LOG_LEVEL", "info"),
		LogFormat:       envOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,

		MRMSURL:         envOrDefault("MRMS_URL", DefaultMRMSURL),
		FetchInterval:   fetchInterval,
		FetchTimeout:    fetchTimeout,
		FetchMaxRetries: parseIntOrDefault("FETCH_MAX_RETRIES", 3),
		BreakerFailures: parseIntOrDefault("BREAKER_FAILURES", 5),
		BreakerOpenFor:  breakerOpenFor,

		KafkaBrokers: brokers,
		KafkaTopic:   envOrDefault("KAFKA_TOPIC", "radar-products"),
		KafkaEnabled: kafkaEnabled,
	}

	if cfg.MRMSURL == "" {
		return nil, errors.New("MRMS_URL is required")
	}
	if cfg.KafkaEnabled && len(cfg.KafkaBrokers) == 0 {
		return nil, errors.New("KAFKA_ENABLED is true but KAFKA_BROKERS is not set")
	}
	if cfg.KafkaEnabled && cfg.KafkaTopic == "" {
		return nil, errors.New("KAFKA_ENABLED is true but KAFKA_TOPIC is empty")
	}

	return cfg, nil
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func parseDuration(key, def string) (time.Duration, error) {
	s := envOrDefault(key, def)
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s %q", key, s)
	}
	return d, nil
}

func parseIntOrDefault(key string, def int) int {
	if s := os.Getenv(key); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 {
			return n
		}
	}
	return def
}

func parseBrokers(s string) []string {
	var brokers []string
	for _, b := range strings.Split(s, ",") {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	return brokers
}
