package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// Known data source identifiers.
const (
	SourceOpenMeteo = "open-meteo"
	SourceMock      = "mock-source"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	HTTPAddr        string        `validate:"required"`
	LogLevel        string        `validate:"oneof=debug info warn warning error"`
	LogFormat       string        `validate:"oneof=json text"`
	ShutdownTimeout time.Duration `validate:"gt=0"`

	// Dashboard configuration.
	DataSources  []string `validate:"min=1,unique,dive,oneof=open-meteo mock-source"`
	DefaultField string   `validate:"required"`
	MapCenterLat float64  `validate:"gte=-90,lte=90"`
	MapCenterLon float64  `validate:"gte=-180,lte=180"`

	// Feed configuration.
	FeedHistoryDays     int           `validate:"min=1,max=92"`
	FeedRefreshInterval time.Duration `validate:"gte=0"`
	OpenMeteoURL        string        `validate:"required,url"`
	OpenMeteoTimeout    time.Duration `validate:"gt=0"`
	FeedCacheSize       int           `validate:"gte=0"`
	FeedCacheTTL        time.Duration `validate:"gt=0"`

	// Snapshot publishing configuration.
	StreamEnabled bool
	KafkaEnabled  bool
	KafkaBrokers  []string `validate:"required_if=KafkaEnabled true"`
	KafkaTopic    string   `validate:"required_if=KafkaEnabled true"`
}

// Load reads configuration from a .env file (if present) and environment
// variables, applying defaults where unset.
func Load() (*Config, error) {
	// A missing .env file is normal outside local development.
	_ = godotenv.Load()

	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	openMeteoTimeout, err := parseDuration("OPEN_METEO_TIMEOUT", "10s")
	if err != nil {
		return nil, err
	}
	if openMeteoTimeout <= 0 {
		return nil, errors.New("invalid OPEN_METEO_TIMEOUT: must be positive")
	}

	refreshInterval, err := parseDuration("FEED_REFRESH_INTERVAL", "0s")
	if err != nil {
		return nil, err
	}
	if refreshInterval < 0 {
		return nil, errors.New("invalid FEED_REFRESH_INTERVAL: must not be negative")
	}

	historyDays, err := parseInt("FEED_HISTORY_DAYS", "15")
	if err != nil {
		return nil, err
	}

	cacheSize, err := parseInt("FEED_CACHE_SIZE", "64")
	if err != nil {
		return nil, err
	}

	cacheTTL, err := parseDuration("FEED_CACHE_TTL", "15m")
	if err != nil {
		return nil, err
	}

	centerLat, err := parseFloat("MAP_CENTER_LAT", "12.9716")
	if err != nil {
		return nil, err
	}
	centerLon, err := parseFloat("MAP_CENTER_LON", "77.5946")
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		HTTPAddr:        sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,

		DataSources:  parseList(sharedcfg.EnvOrDefault("DATA_SOURCES", SourceOpenMeteo+","+SourceMock)),
		DefaultField: sharedcfg.EnvOrDefault("DEFAULT_FIELD", "temperature_2m"),
		MapCenterLat: centerLat,
		MapCenterLon: centerLon,

		FeedHistoryDays:     historyDays,
		FeedRefreshInterval: refreshInterval,
		OpenMeteoURL:        sharedcfg.EnvOrDefault("OPEN_METEO_URL", "https://archive-api.open-meteo.com/v1/archive"),
		OpenMeteoTimeout:    openMeteoTimeout,
		FeedCacheSize:       cacheSize,
		FeedCacheTTL:        cacheTTL,

		StreamEnabled: sharedcfg.EnvOrDefault("STREAM_ENABLED", "true") == "true",
		KafkaEnabled:  os.Getenv("KAFKA_ENABLED") == "true",
		KafkaBrokers:  sharedcfg.ParseBrokers(sharedcfg.EnvOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaTopic:    sharedcfg.EnvOrDefault("KAFKA_TOPIC", "polygon-colors"),
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func parseDuration(key, fallback string) (time.Duration, error) {
	d, err := time.ParseDuration(sharedcfg.EnvOrDefault(key, fallback))
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

func parseInt(key, fallback string) (int, error) {
	n, err := strconv.Atoi(sharedcfg.EnvOrDefault(key, fallback))
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func parseFloat(key, fallback string) (float64, error) {
	v, err := strconv.ParseFloat(sharedcfg.EnvOrDefault(key, fallback), 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return v, nil
}

func parseList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
