package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"ask-insight/go-client/internal/auth"
	"ask-insight/go-client/internal/classify"
	"ask-insight/go-client/internal/config"
	"ask-insight/go-client/internal/metrics"
	"ask-insight/go-client/internal/platform/privacylog"
	"ask-insight/go-client/internal/platform/ratelimiter"
	"ask-insight/go-client/internal/session"
	"ask-insight/go-client/pkg/models"
)

var (
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

func main() {
	showVersion := flag.Bool("version", false, "print version and exit")
	configPath := flag.String("config", "", "Path to config.yaml (optional)")
	question := flag.String("question", "", "Question to ask the backend")
	seedToken := flag.String("token", "", "Seed access token (stored encrypted for later runs)")
	showData := flag.Bool("data", false, "Print result rows as JSON")
	flag.Parse()
	if *showVersion {
		fmt.Printf("askstream version=%s commit=%s build_date=%s\n", version, commit, buildDate)
		return
	}
	if *question == "" && flag.NArg() > 0 {
		q := strings.TrimSpace(strings.Join(flag.Args(), " "))
		question = &q
	}
	if strings.TrimSpace(*question) == "" {
		log.Fatal("askstream: no question given (use -question or positional args)")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := config.LoadFromPath(*configPath)
	logger := newLogger(cfg.LogLevel)

	store := auth.NewFileTokenStore(cfg.TokenPath, cfg.TokenPassphrase)
	streamMetrics := metrics.New(nil)

	manager := auth.NewManager(auth.ManagerConfig{
		RefreshURL:      cfg.RefreshURL,
		Store:           store,
		Logger:          logger,
		ExpiryThreshold: cfg.ExpiryThreshold,
		RefreshTimeout:  cfg.RefreshTimeout,
		OnRefresh:       streamMetrics.Refresh,
	})
	if *seedToken != "" {
		manager.SetCredential(*seedToken)
	}

	classifier := classify.NewClassifier(cfg.RetryPolicies, manager, logger)
	limiter := ratelimiter.New(cfg.RequestsPerSecond, cfg.Burst, 10*time.Minute)

	orchestrator := session.New(session.Config{
		AskURL:          cfg.AskURL,
		Tokens:          manager,
		Classifier:      classifier,
		Logger:          logger,
		Metrics:         streamMetrics,
		Limiter:         limiter,
		RecoveryEnabled: cfg.RecoveryEnabled,
		RecoveryDelay:   cfg.RecoveryDelay,
	})

	result, err := orchestrator.Start(ctx, models.AskRequest{Question: *question}, func(chunk models.Chunk) {
		printChunk(chunk, *showData)
	})
	if err != nil {
		var failure *session.Failure
		if errors.As(err, &failure) {
			fmt.Fprintf(os.Stderr, "\n%s\n", failure.Decision.UserMessage)
			switch failure.Decision.RequiredAction {
			case classify.ActionLogin:
				fmt.Fprintln(os.Stderr, "Sign in again, then retry with -token.")
			case classify.ActionContactSupport:
				fmt.Fprintln(os.Stderr, "If this keeps happening, contact support.")
			}
			os.Exit(1)
		}
		log.Fatalf("askstream: %v", err)
	}

	if result.HasError && result.ErrorChunk != nil {
		fmt.Fprintf(os.Stderr, "\nbackend error [%s]: %s\n", result.ErrorChunk.ErrorCode, result.ErrorChunk.Message)
		os.Exit(1)
	}
	if result.Diagnostic != "" {
		fmt.Fprintf(os.Stderr, "\nwarning: %s\n", result.Diagnostic)
	}

	stats := orchestrator.GetStats()
	logger.Info("session finished",
		"request_id", stats.RequestID,
		"trace_id", stats.TraceID,
		"chunks", stats.ChunksTotal,
		"attempts", stats.Attempts,
		"recoveries", stats.Recoveries,
		"duration_ms", stats.DurationMs)
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	base := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})
	return slog.New(privacylog.WrapHandler(base))
}

func printChunk(chunk models.Chunk, showData bool) {
	switch chunk.Type {
	case models.ChunkThinking:
		if chunk.Thinking != nil {
			fmt.Printf("· %s\n", chunk.Thinking.Content)
		}
	case models.ChunkTechnicalView:
		if chunk.TechnicalView != nil {
			fmt.Printf("\nSQL:\n%s\n", chunk.TechnicalView.SQL)
			for _, assumption := range chunk.TechnicalView.Assumptions {
				fmt.Printf("  assumes: %s\n", assumption)
			}
		}
	case models.ChunkData:
		if chunk.Data != nil {
			fmt.Printf("\n%d row(s)\n", len(chunk.Data.Rows))
			if showData {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				_ = enc.Encode(chunk.Data.Rows)
			}
		}
	case models.ChunkBusinessView:
		if chunk.BusinessView != nil {
			fmt.Printf("\n%s\n", chunk.BusinessView.Text)
		}
	case models.ChunkError:
		// Reported by the caller from the final result.
	case models.ChunkEnd:
		if chunk.End != nil && chunk.End.Message != "" {
			fmt.Printf("\n%s\n", chunk.End.Message)
		}
	}
}
