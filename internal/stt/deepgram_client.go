package stt

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	websocketv1api "github.com/deepgram/deepgram-go-sdk/v3/pkg/api/listen/v1/websocket"
	msginterfaces "github.com/deepgram/deepgram-go-sdk/v3/pkg/api/listen/v1/websocket/interfaces"
	interfaces "github.com/deepgram/deepgram-go-sdk/v3/pkg/client/interfaces"
	listenClient "github.com/deepgram/deepgram-go-sdk/v3/pkg/client/listen"
	"github.com/rs/zerolog"

	"github.com/lakshya820/VoicetoVoice/internal/observability"
	"github.com/lakshya820/VoicetoVoice/internal/resilience"
)

const providerName = "stt"

var (
	// ErrNotActive is returned when audio is sent before the stream is open.
	ErrNotActive = errors.New("transcription stream is not active")
	// ErrClosed is returned after Close.
	ErrClosed = errors.New("transcription client closed")

	errConnecting = errors.New("deepgram connection already in progress")
)

// liveStream is the part of the Deepgram websocket client used after connect.
type liveStream interface {
	Write(p []byte) (int, error)
	Finish()
}

// messageCallbackHandler implements the LiveMessageCallback interface
// It embeds the default handler and overrides only the methods we need to customize
type messageCallbackHandler struct {
	*websocketv1api.DefaultCallbackHandler
	handler      func(*msginterfaces.MessageResponse)
	errorHandler func(*msginterfaces.ErrorResponse) error
}

// Message forwards transcription messages to the client.
func (m *messageCallbackHandler) Message(message *msginterfaces.MessageResponse) error {
	m.handler(message)
	return nil
}

// Error overrides the default handler to use our custom error handling
func (m *messageCallbackHandler) Error(errorResponse *msginterfaces.ErrorResponse) error {
	if m.errorHandler != nil {
		return m.errorHandler(errorResponse)
	}
	return m.DefaultCallbackHandler.Error(errorResponse)
}

// DeepgramOptions configures a DeepgramClient.
type DeepgramOptions struct {
	APIKey    string
	Model     string
	Language  string
	Breaker   *resilience.CircuitBreaker
	Reconnect *resilience.ReconnectConfig
	Logger    zerolog.Logger
}

// DeepgramClient implements STTClient using Deepgram's streaming API
type DeepgramClient struct {
	opts       DeepgramOptions
	client     liveStream
	dial       func() (liveStream, error)
	transcript chan *TranscriptionResult
	mu         sync.RWMutex
	isActive   bool
	closed     bool
	ctx        context.Context
	cancel     context.CancelFunc
	logger     zerolog.Logger

	connecting   atomic.Bool
	reconnecting atomic.Bool
}

// NewDeepgramClient creates a new Deepgram streaming client
func NewDeepgramClient(opts DeepgramOptions) *DeepgramClient {
	ctx, cancel := context.WithCancel(context.Background())
	if opts.Breaker == nil {
		opts.Breaker = resilience.NewCircuitBreaker("deepgram", 5, 30*time.Second)
	}
	d := &DeepgramClient{
		opts:       opts,
		transcript: make(chan *TranscriptionResult, 100),
		ctx:        ctx,
		cancel:     cancel,
		logger:     opts.Logger.With().Str("component", "stt").Logger(),
	}
	d.dial = d.dialDeepgram
	return d
}

// Start opens a new Deepgram streaming transcription session. The stream
// lives until Close or until ctx is done.
func (d *DeepgramClient) Start(ctx context.Context) error {
	go func() {
		select {
		case <-ctx.Done():
			d.Close()
		case <-d.ctx.Done():
		}
	}()
	return d.connect()
}

// connect dials Deepgram without holding mu, so IsActive and SendAudio
// never wait on the network.
func (d *DeepgramClient) connect() error {
	if !d.connecting.CompareAndSwap(false, true) {
		return errConnecting
	}
	defer d.connecting.Store(false)

	d.mu.RLock()
	closed, active := d.closed, d.isActive
	d.mu.RUnlock()
	if closed {
		return ErrClosed
	}
	if active {
		return fmt.Errorf("deepgram client is already active")
	}

	start := time.Now()
	client, err := d.dial()
	if err != nil {
		d.recordResult(false)
		observability.ObserveProvider(providerName, start, false)
		return err
	}

	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		client.Finish()
		return ErrClosed
	}
	d.client = client
	d.isActive = true
	d.mu.Unlock()

	d.recordResult(true)
	observability.ObserveProvider(providerName, start, true)

	d.logger.Info().
		Str("model", d.opts.Model).
		Str("language", d.opts.Language).
		Msg("deepgram streaming client started")
	return nil
}

func (d *DeepgramClient) dialDeepgram() (liveStream, error) {
	tOptions := &interfaces.LiveTranscriptionOptions{
		Model:          d.opts.Model,
		Language:       d.opts.Language,
		Punctuate:      true,
		SmartFormat:    true,
		InterimResults: true,
		UtteranceEndMs: "1000",
		VadEvents:      true,
		Encoding:       Encoding,
		Channels:       Channels,
		SampleRate:     SampleRate,
	}

	callback := &messageCallbackHandler{
		DefaultCallbackHandler: websocketv1api.NewDefaultCallbackHandler(),
		handler:                d.handleDeepgramMessage,
		errorHandler:           d.handleDeepgramError,
	}

	client, err := listenClient.NewWSUsingCallback(d.ctx, d.opts.APIKey, nil, tOptions, callback)
	if err != nil {
		return nil, fmt.Errorf("failed to create Deepgram client: %w", err)
	}
	if ok := client.Connect(); !ok {
		return nil, fmt.Errorf("failed to connect to Deepgram")
	}
	return client, nil
}

func (d *DeepgramClient) handleDeepgramError(errorResponse *msginterfaces.ErrorResponse) error {
	d.logger.Error().Interface("error", errorResponse).Msg("deepgram error")
	d.recordResult(false)

	select {
	case <-d.ctx.Done():
		return nil
	default:
	}

	d.mu.Lock()
	d.isActive = false
	d.mu.Unlock()

	go d.attemptReconnect()
	return nil
}

func (d *DeepgramClient) recordResult(success bool) {
	d.opts.Breaker.RecordResult(success)
	observability.UpdateCircuitBreakerState("deepgram", int(d.opts.Breaker.GetState()))
	if !success {
		observability.IncrementCircuitBreakerFailures("deepgram")
	}
}

// handleDeepgramMessage processes messages from Deepgram
func (d *DeepgramClient) handleDeepgramMessage(msg *msginterfaces.MessageResponse) {
	result, ok := resultFromMessage(msg)
	if !ok {
		if msg != nil && msg.Type != "Results" {
			d.logger.Debug().Str("type", msg.Type).Msg("deepgram message")
		}
		return
	}
	d.deliver(result)
}

func (d *DeepgramClient) deliver(result *TranscriptionResult) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return
	}

	select {
	case d.transcript <- result:
		d.logger.Debug().Bool("final", result.IsFinal).Str("text", result.Text).Msg("transcription")
	default:
		d.logger.Warn().Msg("transcript channel full, dropping transcription")
	}
}

// resultFromMessage extracts the best alternative of a results message.
func resultFromMessage(msg *msginterfaces.MessageResponse) (*TranscriptionResult, bool) {
	if msg == nil {
		return nil, false
	}
	if msg.Type != "Results" && msg.Type != "Message" {
		return nil, false
	}
	if len(msg.Channel.Alternatives) == 0 {
		return nil, false
	}

	alt := msg.Channel.Alternatives[0]
	if alt.Transcript == "" {
		return nil, false
	}

	startTime := msg.Start
	duration := msg.Duration
	if len(alt.Words) > 0 && duration == 0 {
		startTime = alt.Words[0].Start
		duration = alt.Words[len(alt.Words)-1].End - startTime
	}

	return &TranscriptionResult{
		Text:       alt.Transcript,
		IsFinal:    msg.IsFinal,
		Confidence: alt.Confidence,
		StartTime:  startTime,
		Duration:   duration,
	}, true
}

// SendAudio sends an audio chunk to Deepgram
func (d *DeepgramClient) SendAudio(audioData []byte) error {
	err := d.opts.Breaker.Call(func() error {
		d.mu.RLock()
		active := d.isActive
		client := d.client
		d.mu.RUnlock()

		if !active || client == nil {
			return ErrNotActive
		}

		if _, err := client.Write(audioData); err != nil {
			go d.attemptReconnect()
			return fmt.Errorf("failed to send audio to Deepgram: %w", err)
		}
		return nil
	})

	observability.UpdateCircuitBreakerState("deepgram", int(d.opts.Breaker.GetState()))
	if err != nil && !errors.Is(err, ErrNotActive) {
		observability.IncrementCircuitBreakerFailures("deepgram")
	}
	return err
}

// attemptReconnect attempts to reconnect to Deepgram
func (d *DeepgramClient) attemptReconnect() {
	if !d.reconnecting.CompareAndSwap(false, true) {
		return
	}
	defer d.reconnecting.Store(false)

	if d.ctx.Err() != nil || d.IsActive() {
		return
	}

	d.mu.Lock()
	if d.client != nil {
		d.client.Finish()
		d.client = nil
	}
	d.isActive = false
	d.mu.Unlock()

	err := resilience.Reconnect(d.ctx, "deepgram", func(ctx context.Context) error {
		return d.connect()
	}, d.opts.Reconnect)
	if err != nil {
		d.logger.Error().Err(err).Msg("failed to reconnect deepgram client")
	}
}

// Transcripts returns a channel that receives transcription results
func (d *DeepgramClient) Transcripts() <-chan *TranscriptionResult {
	return d.transcript
}

// IsActive returns whether the client is currently active
func (d *DeepgramClient) IsActive() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.isActive
}

// Close finishes the stream, stops reconnection attempts and closes the
// transcript channel. It is safe to call more than once.
func (d *DeepgramClient) Close() error {
	d.cancel()

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil
	}
	d.closed = true

	if d.client != nil {
		d.client.Finish()
		d.client = nil
	}
	d.isActive = false
	close(d.transcript)

	d.logger.Info().Msg("deepgram streaming client stopped")
	return nil
}
