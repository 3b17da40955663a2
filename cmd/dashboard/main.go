package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/readysetinsure/dashboard/internal/api"
	"github.com/readysetinsure/dashboard/internal/backend"
	"github.com/readysetinsure/dashboard/internal/callwatch"
	"github.com/readysetinsure/dashboard/internal/config"
	"github.com/readysetinsure/dashboard/internal/customer"
	"github.com/readysetinsure/dashboard/internal/hermes"
	"github.com/readysetinsure/dashboard/internal/processor"
	"github.com/readysetinsure/dashboard/internal/store"
	"github.com/readysetinsure/dashboard/internal/vapi"
)

func main() {
	if err := godotenv.Load(); err != nil {
		slog.Warn(".env not loaded, using process environment", "error", err)
	}

	cfg := config.Load()
	setupLogging(cfg.LogLevel)

	slog.Info("dashboard starting", "port", cfg.Port)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Backend API is the system of record for all writes.
	be := backend.NewClient(cfg.BackendURL, slog.Default())
	var dir customer.Directory = be
	slog.Info("backend client ready", "url", cfg.BackendURL)

	// Database (optional, read-only view of the same records)
	if cfg.DatabaseURL != "" {
		db, err := store.New(ctx, cfg.DatabaseURL)
		if err != nil {
			slog.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		dir = db
		slog.Info("database connected, reads served from postgres")
	}

	templates, err := vapi.LoadTemplates(cfg.TemplatesPath)
	if err != nil {
		slog.Error("failed to load call templates", "path", cfg.TemplatesPath, "error", err)
		os.Exit(1)
	}
	slog.Info("call templates loaded", "count", len(templates))

	// Vapi (optional, no outbound calls without it)
	var caller processor.Caller
	var vapiClient *vapi.Client
	if cfg.CallsEnabled() {
		vapiClient = vapi.NewClient(cfg.VapiAPIKey, cfg.VapiBaseURL)
		caller = vapiClient
		slog.Info("vapi client ready", "url", cfg.VapiBaseURL)
	} else {
		slog.Warn("vapi not configured, outbound calls disabled")
	}

	proc := processor.New(dir, be, caller, templates, cfg.VapiPhoneNumberID, slog.Default())

	var watcher *callwatch.Watcher
	if vapiClient != nil {
		watcher = callwatch.New(vapiClient, callwatch.Options{
			Interval: cfg.PollInterval,
			Timeout:  cfg.PollTimeout,
			OnUpdate: proc.HandleUpdate,
		}, slog.Default())
		defer watcher.Close()
		proc.SetWatcher(watcher)
	}

	// NATS/Hermes (optional)
	if cfg.NatsURL != "" {
		hermesClient, err := hermes.NewClient(ctx, cfg.NatsURL, cfg.NatsToken, slog.Default())
		if err != nil {
			slog.Error("failed to connect to NATS", "error", err)
			os.Exit(1)
		}
		defer hermesClient.Close()
		proc.SetPublisher(hermesClient)
		slog.Info("NATS connected", "url", cfg.NatsURL)

		if err := hermesClient.Subscribe(hermes.SubjectCallRequested, proc.HandleCallRequested); err != nil {
			slog.Error("failed to subscribe to call requests", "error", err)
			os.Exit(1)
		}
	}

	// HTTP API
	srv := api.NewServer(cfg.Port, dir, be, slog.Default())
	var stream api.CallStream
	if watcher != nil {
		stream = watcher
	}
	srv.SetCalls(proc, stream)
	go func() {
		if err := srv.Start(); err != nil {
			slog.Error("HTTP server error", "error", err)
			cancel()
		}
	}()

	slog.Info("dashboard ready", "port", cfg.Port, "calls", proc.Enabled())

	// Graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sigCh:
	case <-ctx.Done():
	}
	slog.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Warn("HTTP shutdown incomplete", "error", err)
	}
	cancel()
	slog.Info("dashboard stopped")
}

func setupLogging(level string) {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	slog.SetDefault(slog.New(handler))
}
