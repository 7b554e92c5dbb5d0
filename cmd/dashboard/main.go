package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	httpadapter "github.com/couchcryptid/polygon-dashboard/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/polygon-dashboard/internal/adapter/kafka"
	"github.com/couchcryptid/polygon-dashboard/internal/adapter/openmeteo"
	"github.com/couchcryptid/polygon-dashboard/internal/adapter/stream"
	"github.com/couchcryptid/polygon-dashboard/internal/adapter/synthetic"
	"github.com/couchcryptid/polygon-dashboard/internal/config"
	"github.com/couchcryptid/polygon-dashboard/internal/dashboard"
	"github.com/couchcryptid/polygon-dashboard/internal/domain"
	"github.com/couchcryptid/polygon-dashboard/internal/observability"
)

var sourceNames = map[string]string{
	config.SourceOpenMeteo: "Open-Meteo",
	config.SourceMock:      "Mock Source",
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.LogLevel, cfg.LogFormat)
	metrics := observability.NewMetrics()

	sources := make([]dashboard.Source, 0, len(cfg.DataSources))
	for _, id := range cfg.DataSources {
		var fetcher domain.FeedFetcher
		switch id {
		case config.SourceOpenMeteo:
			fetcher = openmeteo.NewClient(cfg.OpenMeteoURL, cfg.OpenMeteoTimeout, logger)
			if cfg.FeedCacheSize > 0 {
				fetcher = openmeteo.NewCachedFetcher(fetcher, cfg.FeedCacheSize, cfg.FeedCacheTTL)
				logger.Info("open-meteo feed cache enabled", "cache_size", cfg.FeedCacheSize, "ttl", cfg.FeedCacheTTL)
			}
		case config.SourceMock:
			fetcher = synthetic.NewGenerator(logger)
		}
		sources = append(sources, dashboard.Source{
			DataSource: domain.DataSource{ID: id, Name: sourceNames[id]},
			Fetcher:    fetcher,
		})
	}

	opts := []dashboard.Option{
		dashboard.WithMapCenter(domain.Point{Lat: cfg.MapCenterLat, Lon: cfg.MapCenterLon}),
		dashboard.WithDefaultField(cfg.DefaultField),
		dashboard.WithFeedDays(cfg.FeedHistoryDays),
		dashboard.WithRefreshInterval(cfg.FeedRefreshInterval),
	}

	var srvOpts []httpadapter.ServerOption
	var hub *stream.Hub
	if cfg.StreamEnabled {
		hub = stream.NewHub(logger, metrics)
		opts = append(opts, dashboard.WithPublisher(hub))
		srvOpts = append(srvOpts, httpadapter.WithStream(hub))
		logger.Info("live stream enabled", "path", "/api/v1/stream")
	}

	// Snapshot publishing is feature-flagged via KAFKA_ENABLED.
	var writer *kafkaadapter.Writer
	if cfg.KafkaEnabled {
		writer = kafkaadapter.NewWriter(cfg, logger)
		opts = append(opts, dashboard.WithPublisher(writer))
		logger.Info("snapshot publishing enabled", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaTopic)
	} else {
		logger.Info("snapshot publishing disabled")
	}

	d, err := dashboard.New(sources, logger, metrics, opts...)
	if err != nil {
		logger.Error("failed to create dashboard", "error", err)
		os.Exit(1)
	}

	srv := httpadapter.NewServer(cfg.HTTPAddr, d, logger, srvOpts...)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Start HTTP server.
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	// Load the initial feed, then keep it fresh if an interval is set.
	go func() {
		if err := d.Run(ctx); err != nil {
			logger.Error("feed refresher error", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	// Shutdown does not track hijacked stream connections.
	if hub != nil {
		hub.Close()
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	if writer != nil {
		if err := writer.Close(); err != nil {
			logger.Error("kafka writer close error", "error", err)
		}
	}

	logger.Info("shutdown complete")
}
