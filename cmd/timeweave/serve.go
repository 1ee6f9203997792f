package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/MikeSquared-Agency/timeweave/internal/api"
	"github.com/MikeSquared-Agency/timeweave/internal/cache"
	"github.com/MikeSquared-Agency/timeweave/internal/config"
	"github.com/MikeSquared-Agency/timeweave/internal/hermes"
	"github.com/MikeSquared-Agency/timeweave/internal/metrics"
	"github.com/MikeSquared-Agency/timeweave/internal/processor"
	"github.com/MikeSquared-Agency/timeweave/internal/sink"
	"github.com/MikeSquared-Agency/timeweave/internal/store"
)

func runServe(cfg config.Config) error {
	slog.Info("timeweave starting", "port", cfg.Port)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	opts := []processor.Option{
		processor.WithCache(cache.New(cfg.CacheEntries)),
		processor.WithMetrics(metrics.NewPrometheus(prometheus.DefaultRegisterer, "timeweave")),
	}

	// Database (optional: without it runs are not persisted)
	var runs api.RunReader
	if cfg.DatabaseURL != "" {
		db, err := store.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("connect to database: %w", err)
		}
		defer db.Close()
		if err := db.EnsureSchema(ctx); err != nil {
			return err
		}
		opts = append(opts, processor.WithStore(db))
		runs = db
		slog.Info("database connected")
	} else {
		slog.Warn("DATABASE_URL not set, run history disabled")
	}

	// Kafka row sink (optional)
	if cfg.KafkaBrokers != "" {
		k := sink.NewKafka(cfg.KafkaBrokers, cfg.KafkaTopic)
		defer k.Close()
		opts = append(opts, processor.WithSink(k))
		slog.Info("kafka sink ready", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaTopic)
	}

	// NATS/Hermes (optional)
	var hermesClient *hermes.Client
	if cfg.NatsURL != "" {
		var err error
		hermesClient, err = hermes.NewClient(ctx, cfg.NatsURL, cfg.NatsToken, slog.Default())
		if err != nil {
			return fmt.Errorf("connect to NATS: %w", err)
		}
		defer hermesClient.Close()
		opts = append(opts, processor.WithPublisher(hermesClient))
		slog.Info("NATS connected", "url", cfg.NatsURL)
	}

	proc := processor.New(cfg.MergeOptions(), slog.Default(), opts...)

	if hermesClient != nil {
		if err := hermesClient.Serve(hermes.SubjectMergeRequest, proc.HandleMergeRequest); err != nil {
			return err
		}
	}

	srv := api.NewServer(cfg.Port, cfg.APIToken, proc, runs, promhttp.Handler())
	go func() {
		if err := srv.Start(); err != nil {
			slog.Error("HTTP server error", "error", err)
		}
	}()

	if hermesClient != nil {
		if err := hermesClient.Publish("swarm.agent.timeweave.registered", map[string]any{
			"timestamp": time.Now().UTC().Format(time.RFC3339),
			"port":      cfg.Port,
		}); err != nil {
			slog.Warn("failed to publish registration", "error", err)
		}
	}

	slog.Info("timeweave ready", "port", cfg.Port)

	// Graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	slog.Info("shutting down")
	cancel()
	slog.Info("timeweave stopped")
	return nil
}
