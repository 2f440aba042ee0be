package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lakshya820/VoicetoVoice/internal/api"
	"github.com/lakshya820/VoicetoVoice/internal/assessment"
	"github.com/lakshya820/VoicetoVoice/internal/audio"
	"github.com/lakshya820/VoicetoVoice/internal/config"
	"github.com/lakshya820/VoicetoVoice/internal/gateway"
	"github.com/lakshya820/VoicetoVoice/internal/llm"
	"github.com/lakshya820/VoicetoVoice/internal/observability"
	"github.com/lakshya820/VoicetoVoice/internal/resilience"
	"github.com/lakshya820/VoicetoVoice/internal/sentiment"
	"github.com/lakshya820/VoicetoVoice/internal/store"
	"github.com/lakshya820/VoicetoVoice/internal/stt"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		// Use fmt for fatal errors before logger is initialized
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize structured logger
	observability.InitLogger(cfg.LogLevel, cfg.LogPretty)
	logger := observability.GetLogger()

	logger.Info().
		Str("port", cfg.Port).
		Str("allowed_origin", cfg.AllowedOrigin).
		Str("db_path", cfg.DBPath).
		Str("log_level", cfg.LogLevel).
		Bool("metrics_enabled", cfg.MetricsEnabled).
		Bool("transcription_enabled", cfg.TranscriptionEnabled()).
		Msg("VoicetoVoice server starting")

	db, err := store.Open(cfg.DBPath)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to open database")
	}
	if err := db.Migrate(context.Background()); err != nil {
		logger.Fatal().Err(err).Msg("Failed to migrate database")
	}

	videos, err := config.LoadVideoCatalog(cfg.VideoCatalogPath)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to load video catalog")
	}

	retry := &resilience.RetryConfig{
		MaxAttempts:       cfg.RetryMaxAttempts,
		InitialBackoff:    time.Duration(cfg.RetryInitialBackoff) * time.Millisecond,
		MaxBackoff:        5 * time.Second,
		BackoffMultiplier: 2.0,
		Jitter:            true,
	}
	breaker := func(name string) *resilience.CircuitBreaker {
		return resilience.NewCircuitBreaker(name, cfg.CircuitBreakerMaxFailures, time.Duration(cfg.CircuitBreakerResetTimeout)*time.Second)
	}

	completion := llm.NewClient(llm.Options{
		Endpoint:   cfg.AzureOpenAIEndpoint,
		APIKey:     cfg.AzureOpenAIKey,
		APIVersion: cfg.AzureOpenAIAPIVersion,
		Deployment: cfg.AzureOpenAIDeployment,
		Breaker:    breaker("completion"),
		Retry:      retry,
		Logger:     logger,
	})

	sentimentClient, err := sentiment.New(context.Background(), cfg.AWSRegion, sentiment.Options{
		Breaker: breaker("sentiment"),
		Retry:   retry,
		Logger:  logger,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to create sentiment client")
	}

	pipeline := assessment.NewPipeline(completion, assessment.PipelineOptions{
		Model:  cfg.AssessmentModel,
		Logger: logger,
	})
	aggregator := assessment.NewAggregator(sentimentClient, assessment.AggregatorOptions{
		Divisor: cfg.CSIDivisor,
		Logger:  logger,
	})

	var transcriber stt.Factory
	if cfg.TranscriptionEnabled() {
		// One breaker across sessions so a provider outage is seen by all of them.
		sttBreaker := breaker("deepgram")
		reconnect := &resilience.ReconnectConfig{
			MaxAttempts: cfg.ReconnectMaxAttempts,
			Backoff:     time.Duration(cfg.ReconnectBackoff) * time.Millisecond,
			Multiplier:  2.0,
			MaxBackoff:  30 * time.Second,
		}
		transcriber = func() stt.STTClient {
			return stt.NewDeepgramClient(stt.DeepgramOptions{
				APIKey:    cfg.DeepgramAPIKey,
				Model:     cfg.DeepgramModel,
				Language:  cfg.DeepgramLanguage,
				Breaker:   sttBreaker,
				Reconnect: reconnect,
				Logger:    logger,
			})
		}
	} else {
		logger.Warn().Msg("DEEPGRAM_API_KEY not set, streaming transcription disabled")
	}

	events := gateway.New(gateway.Dependencies{
		Assistant:  completion,
		Pipeline:   pipeline,
		Aggregator: aggregator,
		Sink:       db,
		STT:        transcriber,
	}, gateway.Options{
		AllowedOrigin:   cfg.AllowedOrigin,
		AudioBufferSize: cfg.AudioBufferSize,
		VAD: &audio.VADConfig{
			EnergyThreshold: cfg.VADEnergyThreshold,
			SilenceFrames:   cfg.VADSilenceFrames,
			FrameSize:       320,
		},
		CSIDivisor: cfg.CSIDivisor,
		Logger:     logger,
	})

	server := api.NewServer(db, videos, api.Options{
		AllowedOrigin:  cfg.AllowedOrigin,
		MetricsEnabled: cfg.MetricsEnabled,
		Checks: map[string]observability.HealthCheckFunc{
			"database":   db.Ping,
			"completion": completion.Healthy,
		},
		Events: events,
		Logger: logger,
	})
	if cfg.MetricsEnabled {
		logger.Info().Msg("Prometheus metrics enabled at /metrics")
	}

	// Create HTTP server with timeouts. No write timeout: event channel
	// sessions and video downloads are long-lived.
	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Port),
		Handler:           server.Routes(),
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		logger.Info().
			Str("port", cfg.Port).
			Str("endpoint", fmt.Sprintf("ws://localhost:%s/ws", cfg.Port)).
			Msg("Server listening")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("Server failed to start")
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Int("open_sessions", events.Hub().Count()).Msg("Shutting down server...")

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("Server forced to shutdown")
	}
	// Hijacked websocket connections are not closed by Shutdown, and their
	// sessions may still be saving scores.
	if err := events.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("Event channel sessions forced to close")
	}
	if err := db.Close(); err != nil {
		logger.Error().Err(err).Msg("Failed to close database")
	}

	logger.Info().Msg("Server exited gracefully")
}
