package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/fieldnote/insight/internal/analyzer"
	"github.com/fieldnote/insight/internal/anthropic"
	"github.com/fieldnote/insight/internal/api"
	"github.com/fieldnote/insight/internal/config"
	"github.com/fieldnote/insight/internal/events"
	"github.com/fieldnote/insight/internal/pipeline"
	"github.com/fieldnote/insight/internal/store"
	"github.com/fieldnote/insight/internal/tokens"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	setupLogging(cfg.LogLevel)

	slog.Info("insightd starting", "port", cfg.Port)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Database
	if cfg.DatabaseURL == "" {
		slog.Error("DATABASE_URL is required")
		os.Exit(1)
	}
	db, err := store.New(ctx, cfg.DatabaseURL)
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	slog.Info("database connected")

	// Anthropic client
	if cfg.AnthropicAPIKey == "" {
		slog.Error("ANTHROPIC_API_KEY is required")
		os.Exit(1)
	}
	llm := anthropic.NewClient(cfg.AnthropicAPIKey, cfg.AnthropicModel)
	slog.Info("anthropic client ready", "model", cfg.AnthropicModel)

	// Token counter falls back to whitespace counting when the encoding
	// cannot be loaded, so this never blocks startup.
	counter := tokens.NewCounter()
	slog.Info("token counter ready", "mode", counter.Mode())

	az := analyzer.New(llm, counter, slog.Default())
	az.MaxAttempts = cfg.AnalyzerAttempts
	az.WindowTokens = cfg.PromptWindowTokens

	// NATS
	bus, err := events.NewClient(cfg.NatsURL, cfg.NatsToken, slog.Default())
	if err != nil {
		slog.Error("failed to connect to NATS", "error", err)
		os.Exit(1)
	}
	defer bus.Close()
	slog.Info("NATS connected", "url", cfg.NatsURL)

	p := pipeline.New(az, counter, db, bus, slog.Default())
	p.Concurrency = cfg.Stage2Concurrency
	p.Timeout = cfg.PipelineTimeout

	if err := bus.Subscribe(events.SubjectTranscriptUploaded, p.HandleTranscriptUploaded); err != nil {
		slog.Error("failed to subscribe to transcript events", "error", err)
		os.Exit(1)
	}

	// HTTP API
	srv := api.NewServer(cfg.Port, p, db, slog.Default())
	go func() {
		if err := srv.Start(); err != nil {
			slog.Error("HTTP server error", "error", err)
		}
	}()

	slog.Info("insightd ready", "port", cfg.Port)

	// Graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	slog.Info("shutting down")
	cancel()
	slog.Info("insightd stopped")
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
