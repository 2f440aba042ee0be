// Command assistant is the terminal voice assistant. Each line on stdin is
// one recognized utterance: a question for the knowledge base assistant, or
// a voice command (pause, continue, repeat step 2, ...) while a reply plays.
// Replies are synthesized section by section and written to -out.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/lakshya820/VoicetoVoice/internal/assistant"
	"github.com/lakshya820/VoicetoVoice/internal/config"
	"github.com/lakshya820/VoicetoVoice/internal/events"
	"github.com/lakshya820/VoicetoVoice/internal/observability"
	"github.com/lakshya820/VoicetoVoice/internal/resilience"
	"github.com/lakshya820/VoicetoVoice/internal/tts"
)

const repeatCommand = "/repeat"

func main() {
	cfg, err := config.LoadClient()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	server := flag.String("server", cfg.ServerURL, "event channel URL of the server")
	kbPath := flag.String("kb", "", "knowledge base article the assistant answers from")
	outDir := flag.String("out", "", "directory synthesized clips are written to")
	flag.Parse()

	observability.InitLogger(cfg.LogLevel, cfg.LogPretty)
	logger := observability.WithComponent("assistant-cli")

	var article string
	if *kbPath != "" {
		data, err := os.ReadFile(*kbPath)
		if err != nil {
			logger.Fatal().Err(err).Str("path", *kbPath).Msg("Failed to read knowledge base article")
		}
		article = string(data)
	}
	if *outDir != "" {
		if err := os.MkdirAll(*outDir, 0o755); err != nil {
			logger.Fatal().Err(err).Str("dir", *outDir).Msg("Failed to create output directory")
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var client *events.Client
	dial := func(ctx context.Context) error {
		c, err := events.Dial(ctx, *server, events.ClientOptions{Logger: logger})
		if err != nil {
			return err
		}
		client = c
		return nil
	}
	if err := resilience.Reconnect(ctx, "server", dial, &resilience.ReconnectConfig{
		MaxAttempts: cfg.ReconnectMaxAttempts,
		Backoff:     time.Duration(cfg.ReconnectBackoff) * time.Millisecond,
		Multiplier:  2.0,
		MaxBackoff:  10 * time.Second,
	}); err != nil {
		logger.Fatal().Err(err).Str("server", *server).Msg("Failed to connect to server")
	}
	defer client.Close()

	synth := tts.NewAzureClient(tts.AzureOptions{
		Key:     cfg.AzureSpeechKey,
		Region:  cfg.AzureSpeechRegion,
		Voice:   cfg.AzureSpeechVoice,
		Breaker: resilience.NewCircuitBreaker("tts", cfg.CircuitBreakerMaxFailures, time.Duration(cfg.CircuitBreakerResetTimeout)*time.Second),
		Retry: &resilience.RetryConfig{
			MaxAttempts:       cfg.RetryMaxAttempts,
			InitialBackoff:    time.Duration(cfg.RetryInitialBackoff) * time.Millisecond,
			MaxBackoff:        5 * time.Second,
			BackoffMultiplier: 2.0,
			Jitter:            true,
		},
		Logger: logger,
	})

	printStatus := func(s string) { fmt.Fprintf(os.Stderr, "[%s]\n", s) }

	debounce := time.Duration(cfg.IntentDebounceMs) * time.Millisecond
	if debounce == 0 {
		debounce = assistant.NoDebounce
	}

	player := assistant.NewClockPlayer(*outDir)
	ctrl := assistant.NewPlaybackController(synth, player, assistant.ControllerOptions{
		Debounce: debounce,
		Logger:   logger,
		OnStatus: printStatus,
		OnTransition: func(t assistant.Transition) {
			logger.Debug().Stringer("from", t.From).Stringer("to", t.To).Int("section", t.Section+1).Msg("playback transition")
		},
	})
	player.Bind(ctrl)

	conv := assistant.NewConversation(ctrl, client, assistant.ConversationOptions{
		Context:  article,
		Logger:   logger,
		OnStatus: printStatus,
	})
	defer conv.Close()

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	logger.Info().Str("server", *server).Msg("Assistant ready, type a question")

	// Queries block until the reply arrives, so every line is handled on
	// its own goroutine to keep commands flowing.
	var wg sync.WaitGroup
	handle := func(line string) {
		defer wg.Done()
		var err error
		if strings.TrimSpace(line) == repeatCommand {
			err = conv.RepeatLast(ctx)
		} else {
			err = conv.Process(ctx, line)
		}
		switch {
		case err == nil:
		case errors.Is(err, assistant.ErrBusy):
			printStatus("Still answering the previous question")
		case errors.Is(err, assistant.ErrEmptyQuery), errors.Is(err, assistant.ErrClosed), errors.Is(err, context.Canceled):
		default:
			logger.Warn().Err(err).Msg("Query failed")
		}
	}

loop:
	for {
		select {
		case <-ctx.Done():
			break loop
		case <-client.Done():
			logger.Error().Err(client.Err()).Msg("Lost connection to server")
			break loop
		case line, ok := <-lines:
			if !ok {
				// EOF: let the current reply finish before leaving.
				wg.Wait()
				waitIdle(ctx, conv)
				break loop
			}
			wg.Add(1)
			go handle(line)
		}
	}

	stop()
	conv.Close()
	wg.Wait()
	logger.Info().Msg("Assistant stopped")
}

// waitIdle blocks until the conversation has nothing left to play.
func waitIdle(ctx context.Context, conv *assistant.Conversation) {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()
	for conv.Busy() {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
