// Command fedwire runs the federation mapping worker: it consumes
// deferred relation requests from JetStream, resolves remote documents
// on demand, and exposes Prometheus metrics.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/c360/fedwire/config"
	"github.com/c360/fedwire/connector"
	"github.com/c360/fedwire/deferred"
	"github.com/c360/fedwire/mapping"
	"github.com/c360/fedwire/metric"
	"github.com/c360/fedwire/storage"
)

func main() {
	if err := run(); err != nil {
		slog.Error("fedwire exited", "error", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "", "path to YAML configuration file")
	metricsAddr := flag.String("metrics-addr", ":9090", "listen address for Prometheus metrics")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	logger := setupLogger(cfg.Log)
	logger.Info("starting fedwire", "domain", cfg.Domain, "database", cfg.Database.Path)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := storage.Open(cfg.Database.Path, storage.Options{Domain: cfg.Domain})
	if err != nil {
		return err
	}
	defer func() {
		if cerr := store.Close(); cerr != nil {
			logger.Warn("closing store", "error", cerr)
		}
	}()

	nc, err := nats.Connect(cfg.NATS.URL,
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return fmt.Errorf("connect to NATS at %s: %w", cfg.NATS.URL, err)
	}
	defer nc.Close()

	js, err := jetstream.New(nc)
	if err != nil {
		return fmt.Errorf("open JetStream context: %w", err)
	}

	streamCfg := deferred.StreamConfig{
		Stream:   cfg.NATS.Stream,
		Subject:  cfg.NATS.Subject,
		Consumer: cfg.NATS.Consumer,
	}
	if _, err := deferred.EnsureStream(ctx, js, streamCfg); err != nil {
		return err
	}

	metrics := metric.New()
	engine, err := mapping.New(mapping.Config{
		Store: store,
		Connector: connector.New(connector.Options{
			Timeout:           cfg.Fetch.Timeout,
			UserAgent:         cfg.Fetch.UserAgent,
			RequestsPerSecond: cfg.Fetch.RequestsPerSecond,
			Burst:             cfg.Fetch.Burst,
		}),
		Dispatcher:       deferred.NewDispatcher(js, streamCfg, logger),
		Metrics:          metrics,
		Logger:           logger,
		FetchParallelism: cfg.Fetch.MaxParallel,
	})
	if err != nil {
		return err
	}

	consume, err := deferred.Consume(ctx, js, streamCfg, engine, logger)
	if err != nil {
		return err
	}
	defer consume.Stop()

	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	srv := &http.Server{Addr: *metricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if serr := srv.ListenAndServe(); serr != nil && serr != http.ErrServerClosed {
			logger.Error("metrics server", "error", serr)
		}
	}()

	logger.Info("fedwire running", "metrics", *metricsAddr)
	<-ctx.Done()

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
