package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/deephaven-examples/deephaven-ib/internal/config"
	"github.com/deephaven-examples/deephaven-ib/internal/contract"
	"github.com/deephaven-examples/deephaven-ib/internal/reqid"
	"github.com/deephaven-examples/deephaven-ib/internal/session"
	"github.com/deephaven-examples/deephaven-ib/internal/sink"
	"github.com/deephaven-examples/deephaven-ib/internal/version"
)

func main() {
	configPath := flag.String("config", "configs/adapter.local.yaml", "path to config file")
	flag.Parse()

	// Set up structured logging
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))
	slog.SetDefault(logger)

	logger.Info("starting adapter",
		"version", version.Version,
		"commit", version.Commit,
		"config", *configPath,
	)

	// Load configuration
	cfg, err := config.LoadAndValidate(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger.Info("configuration loaded",
		"gateway", cfg.Gateway.Host,
		"port", cfg.Gateway.Port,
		"read_only", cfg.Session.ReadOnly,
		"sink", cfg.Sink.Backend,
	)

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	// Build the table sink
	var out sink.Sink
	var pgSink *sink.PostgresSink
	switch cfg.Sink.Backend {
	case "postgres":
		pgCfg := sink.PostgresConfig{
			Host:          cfg.Sink.Postgres.Host,
			Port:          cfg.Sink.Postgres.Port,
			Name:          cfg.Sink.Postgres.Name,
			User:          cfg.Sink.Postgres.User,
			Password:      cfg.Sink.Postgres.Password,
			SSLMode:       cfg.Sink.Postgres.SSLMode,
			MinConns:      cfg.Sink.Postgres.MinConns,
			MaxConns:      cfg.Sink.Postgres.MaxConns,
			BatchSize:     cfg.Sink.BatchSize,
			FlushInterval: cfg.Sink.FlushInterval,
			BufferSize:    cfg.Sink.BufferSize,
		}

		logger.Info("connecting to database",
			"host", pgCfg.Host,
			"port", pgCfg.Port,
			"database", pgCfg.Name,
		)
		pool, err := sink.Connect(ctx, pgCfg)
		if err != nil {
			logger.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer pool.Close()

		pgSink = sink.NewPostgresSink(pgCfg, pool, logger)
		if err := pgSink.Start(ctx); err != nil {
			logger.Error("failed to start sink writer", "error", err)
			os.Exit(1)
		}
		out = pgSink
		logger.Info("database sink started")
	default:
		out = sink.NewMemorySink(1024)
	}

	// Build and connect the session
	sessCfg := session.Config{
		Host:     cfg.Gateway.Host,
		Port:     cfg.Gateway.Port,
		ClientID: cfg.Gateway.ClientID,
		ReadOnly: cfg.Session.ReadOnly,
		IsFA:     cfg.Session.IsFA,
		OrderID: reqid.Config{
			Strategy:       reqid.Strategy(cfg.Session.OrderIDStrategy),
			AttemptTimeout: cfg.Session.AttemptTimeout,
			MaxAttempts:    cfg.Session.MaxAttempts,
		},
		Resolve: contract.Config{
			ResolveTimeout: cfg.Session.ResolveTimeout,
		},
		EventBuffer: cfg.Gateway.EventBuffer,
	}

	sess := session.New(sessCfg, out, logger)
	if err := sess.Connect(ctx); err != nil {
		logger.Error("failed to connect session", "error", err)
		os.Exit(1)
	}

	logger.Info("adapter running", "session_id", sess.ID())

	<-ctx.Done()

	logger.Info("shutting down")
	sess.Disconnect()

	if pgSink != nil {
		stopCtx, stopCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer stopCancel()
		if err := pgSink.Stop(stopCtx); err != nil {
			logger.Error("sink drain failed", "error", err)
		}
	}

	stats := sess.Stats()
	logger.Info("final stats",
		"events_received", stats.Received,
		"events_routed", stats.Routed,
		"events_dropped", stats.Dropped,
	)
}
