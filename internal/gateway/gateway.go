// Package gateway serves the event channel: one Session per websocket
// connection, dispatching events to the completion provider, the streaming
// transcriber, the assessment pipeline and the score store.
package gateway

import (
	"context"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/lakshya820/VoicetoVoice/internal/assessment"
	"github.com/lakshya820/VoicetoVoice/internal/audio"
	"github.com/lakshya820/VoicetoVoice/internal/events"
	"github.com/lakshya820/VoicetoVoice/internal/llm"
	"github.com/lakshya820/VoicetoVoice/internal/stt"
)

// Answerer replies to voice assistant queries.
type Answerer interface {
	Answer(ctx context.Context, article string, history []llm.Message, text string) (string, error)
}

// Sink persists every score kind.
type Sink interface {
	assessment.AnalysisSink
	assessment.ChatbotSink
	assessment.SpeechSink
}

// Dependencies are the collaborators shared by all sessions. A nil STT
// factory disables streaming transcription.
type Dependencies struct {
	Assistant  Answerer
	Pipeline   *assessment.Pipeline
	Aggregator *assessment.Aggregator
	Sink       Sink
	STT        stt.Factory
}

// Options tunes per-session behavior.
type Options struct {
	AllowedOrigin   string
	AudioBufferSize int
	VAD             *audio.VADConfig
	CSIDivisor      float64
	Logger          zerolog.Logger
}

// Gateway upgrades HTTP requests to event channel sessions.
type Gateway struct {
	deps     Dependencies
	opts     Options
	hub      *Hub
	upgrader websocket.Upgrader
	logger   zerolog.Logger
}

// New creates a gateway.
func New(deps Dependencies, opts Options) *Gateway {
	if opts.AudioBufferSize <= 0 {
		opts.AudioBufferSize = 64000
	}
	logger := opts.Logger.With().Str("component", "gateway").Logger()
	g := &Gateway{
		deps:   deps,
		opts:   opts,
		hub:    NewHub(opts.Logger),
		logger: logger,
	}
	g.upgrader = websocket.Upgrader{
		CheckOrigin:     g.checkOrigin,
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
	}
	return g
}

// Hub returns the set of open sessions.
func (g *Gateway) Hub() *Hub {
	return g.hub
}

// checkOrigin admits same-host requests, non-browser clients, and the
// configured UI origin.
func (g *Gateway) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || g.opts.AllowedOrigin == "*" || origin == g.opts.AllowedOrigin {
		return true
	}
	return origin == "http://"+r.Host || origin == "https://"+r.Host
}

// ServeHTTP upgrades the request and serves the session until the client
// disconnects.
func (g *Gateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error.
		g.logger.Warn().Err(err).Msg("failed to upgrade connection to websocket")
		return
	}
	g.Serve(r.Context(), events.NewConn(ws))
}

// Serve runs one session on conn and releases everything it holds on
// return.
func (g *Gateway) Serve(ctx context.Context, conn *events.Conn) {
	s := newSession(ctx, g, conn)
	g.hub.add(s)
	defer g.hub.remove(s)
	s.run()
}

// Shutdown closes every open session and waits for them to finish their
// in-flight work. Sessions that connect afterwards are closed immediately.
func (g *Gateway) Shutdown(ctx context.Context) error {
	n := g.hub.Count()
	if err := g.hub.CloseAll(ctx); err != nil {
		g.logger.Warn().Err(err).Int("open_sessions", g.hub.Count()).Msg("sessions did not close in time")
		return err
	}
	g.logger.Info().Int("closed_sessions", n).Msg("event channel sessions closed")
	return nil
}
