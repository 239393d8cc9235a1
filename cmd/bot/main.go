package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/orpheas/discord-voice-summary/internal/bot"
	"github.com/orpheas/discord-voice-summary/internal/config"
	"github.com/orpheas/discord-voice-summary/internal/metrics"
	"github.com/orpheas/discord-voice-summary/internal/server"
	"github.com/orpheas/discord-voice-summary/internal/session"
	"github.com/orpheas/discord-voice-summary/internal/summary"
	"github.com/orpheas/discord-voice-summary/internal/transcription"
)

const (
	defaultConfigPath = "configs/config.yaml"
	serviceName       = "discord-voice-summary"
	serviceVersion    = "1.0.0"
)

func main() {
	// Parse command line flags
	configPath := flag.String("config", defaultConfigPath, "Path to configuration file")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Load credentials from the environment
	secrets, err := config.LoadSecrets()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load credentials: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger based on configuration
	logger := initLogger(cfg.Logging)

	// Log service startup
	logger.Info("Service starting",
		slog.String("service", serviceName),
		slog.String("version", serviceVersion),
		slog.String("config_path", *configPath),
	)

	// Log configuration summary (without sensitive data)
	logger.Info("Configuration loaded",
		slog.String("command_prefix", cfg.Discord.CommandPrefix),
		slog.Int("sample_rate", cfg.Audio.SampleRate),
		slog.Int("channels", cfg.Audio.Channels),
		slog.Duration("silence_timeout", cfg.Audio.GetSilenceTimeout()),
		slog.String("transcription_model", cfg.Transcription.Model),
		slog.String("summary_model", cfg.Summary.Model),
		slog.String("log_level", cfg.Logging.Level),
	)

	// Initialize Prometheus metrics
	appMetrics := metrics.NewMetrics()
	logger.Info("Prometheus metrics initialized")

	// Initialize transcription client
	transcriber, err := transcription.NewClient(transcription.Config{
		BaseURL:      cfg.Transcription.BaseURL,
		APIKey:       secrets.OpenAIAPIKey,
		Model:        cfg.Transcription.Model,
		Timeout:      cfg.Transcription.GetTimeoutDuration(),
		MaxAttempts:  cfg.Transcription.MaxAttempts,
		RetryBackoff: time.Second,
	})
	if err != nil {
		logger.Error("Failed to create transcription client", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Initialize summarizer
	summarizer, err := summary.NewSummarizer(summary.Config{
		BaseURL:  cfg.Summary.BaseURL,
		APIKey:   secrets.OpenAIAPIKey,
		Model:    cfg.Summary.Model,
		Timeout:  cfg.Summary.GetTimeoutDuration(),
		MinWords: cfg.Summary.MinWords,
	})
	if err != nil {
		logger.Error("Failed to create summarizer", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Initialize session registry
	registry := session.NewRegistry(logger, appMetrics)

	// Initialize Discord bot
	voiceBot, err := bot.New(cfg, secrets.DiscordToken, registry, transcriber, summarizer, logger, appMetrics)
	if err != nil {
		logger.Error("Failed to create bot", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Initialize HTTP API server (if enabled)
	var httpServer *server.HTTPServer
	if cfg.HTTP.Enabled {
		httpServer = server.NewHTTPServer(cfg.HTTP, logger, cfg, registry, transcriber, appMetrics)
		logger.Info("HTTP API server initialized",
			slog.String("address", fmt.Sprintf("%s:%d", cfg.HTTP.Address, cfg.HTTP.Port)),
		)
	}

	// Start the bot
	if err := voiceBot.Start(); err != nil {
		logger.Error("Failed to start bot", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Start HTTP server (if enabled)
	if httpServer != nil {
		if err := httpServer.Start(); err != nil {
			logger.Error("Failed to start HTTP server", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}

	// Setup signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	logger.Info("Service started successfully, waiting for signals...")

	sig := <-sigChan
	logger.Info("Received shutdown signal", slog.String("signal", sig.String()))

	logger.Info("Starting graceful shutdown...")

	// Stop HTTP server first (stop accepting new requests)
	if httpServer != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()

		if err := httpServer.Stop(shutdownCtx); err != nil {
			logger.Error("Error stopping HTTP server", slog.String("error", err.Error()))
		}
	}

	// Stop the bot (tears down active sessions and the gateway connection)
	if err := voiceBot.Stop(); err != nil {
		logger.Error("Error stopping bot", slog.String("error", err.Error()))
	}

	// Log final statistics
	stats := transcriber.GetStats()
	logger.Info("Final transcription statistics",
		slog.Uint64("total_requests", stats.TotalRequests),
		slog.Uint64("success_requests", stats.SuccessRequests),
		slog.Uint64("failed_requests", stats.FailedRequests),
		slog.Uint64("total_retries", stats.TotalRetries),
	)

	logger.Info("Service stopped")
}

// initLogger creates and configures the structured logger based on configuration
func initLogger(cfg config.LoggingConfig) *slog.Logger {
	// Parse log level
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo // default fallback
	}

	// Configure handler options
	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: level == slog.LevelDebug, // Add source info for debug level
	}

	// Determine output destination
	var output *os.File
	switch cfg.Output {
	case "stderr":
		output = os.Stderr
	case "stdout", "":
		output = os.Stdout
	default:
		// Assume it's a file path
		file, err := os.OpenFile(cfg.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to open log file %s: %v, falling back to stdout\n", cfg.Output, err)
			output = os.Stdout
		} else {
			output = file
		}
	}

	// Create handler based on format
	var handler slog.Handler
	switch cfg.Format {
	case "json":
		handler = slog.NewJSONHandler(output, opts)
	case "text", "":
		handler = slog.NewTextHandler(output, opts)
	default:
		// Default to text format
		handler = slog.NewTextHandler(output, opts)
	}

	return slog.New(handler)
}
