package tts

import (
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/lakshya820/VoicetoVoice/internal/observability"
	"github.com/lakshya820/VoicetoVoice/internal/resilience"
)

const providerName = "tts"

// ErrEmptyAudio is returned when the service answers 200 with no audio.
var ErrEmptyAudio = errors.New("speech service returned empty audio")

// AzureOptions configures an AzureClient.
type AzureOptions struct {
	Key    string
	Region string
	Voice  string

	// Endpoint overrides the regional endpoint (tests).
	Endpoint   string
	HTTPClient *http.Client
	Breaker    *resilience.CircuitBreaker
	Retry      *resilience.RetryConfig
	Logger     zerolog.Logger
}

// AzureClient implements TTSClient using the Azure Speech REST API.
type AzureClient struct {
	key        string
	voice      string
	apiURL     string
	httpClient *http.Client
	breaker    *resilience.CircuitBreaker
	retry      *resilience.RetryConfig
	logger     zerolog.Logger
	active     atomic.Int32
}

// NewAzureClient creates a new Azure Speech TTS client
func NewAzureClient(opts AzureOptions) *AzureClient {
	apiURL := opts.Endpoint
	if apiURL == "" {
		apiURL = fmt.Sprintf("https://%s.tts.speech.microsoft.com/cognitiveservices/v1", opts.Region)
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &AzureClient{
		key:        opts.Key,
		voice:      opts.Voice,
		apiURL:     apiURL,
		httpClient: httpClient,
		breaker:    opts.Breaker,
		retry:      opts.Retry,
		logger:     opts.Logger.With().Str("component", "tts").Logger(),
	}
}

// Synthesize converts text to a single MP3 clip.
func (c *AzureClient) Synthesize(ctx context.Context, text string) ([]byte, error) {
	c.active.Add(1)
	defer c.active.Add(-1)

	start := time.Now()
	var audio []byte
	err := resilience.Guarded(ctx, c.breaker, c.retry, func(ctx context.Context) error {
		var err error
		audio, err = c.do(ctx, text)
		return err
	})
	observability.ObserveProvider(providerName, start, err == nil)
	if err != nil {
		c.logger.Error().Err(err).Int("chars", len(text)).Msg("speech synthesis failed")
		return nil, err
	}

	c.logger.Debug().Int("chars", len(text)).Int("bytes", len(audio)).Dur("took", time.Since(start)).Msg("synthesized speech")
	return audio, nil
}

// IsActive returns whether a synthesis request is in flight
func (c *AzureClient) IsActive() bool {
	return c.active.Load() > 0
}

func (c *AzureClient) do(ctx context.Context, text string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL, strings.NewReader(SSML(c.voice, text)))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Ocp-Apim-Subscription-Key", c.key)
	req.Header.Set("Content-Type", "application/ssml+xml")
	req.Header.Set("X-Microsoft-OutputFormat", OutputFormat)
	req.Header.Set("User-Agent", "voicetovoice")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read audio: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &resilience.StatusError{Provider: providerName, StatusCode: resp.StatusCode, Body: string(body)}
	}
	if len(body) == 0 {
		return nil, ErrEmptyAudio
	}
	return body, nil
}

// SSML wraps text in a speak document for voice. The text is XML-escaped.
func SSML(voice, text string) string {
	lang := "en-US"
	if parts := strings.SplitN(voice, "-", 3); len(parts) == 3 {
		lang = parts[0] + "-" + parts[1]
	}

	var escaped bytes.Buffer
	xml.EscapeText(&escaped, []byte(text))

	return fmt.Sprintf(`<speak version='1.0' xml:lang='%s'><voice xml:lang='%s' name='%s'>%s</voice></speak>`,
		lang, lang, voice, escaped.String())
}
