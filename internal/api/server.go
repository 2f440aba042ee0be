// Package api exposes the HTTP surface of the training server: video
// streaming, score submission and retrieval, health and metrics, and the
// event channel upgrade.
package api

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/lakshya820/VoicetoVoice/internal/observability"
	"github.com/lakshya820/VoicetoVoice/internal/store"
)

// ScoreStore is the persistence used by the score endpoints.
type ScoreStore interface {
	InsertAnalysis(ctx context.Context, rec store.AnalysisRecord) (int64, error)
	InsertChatbotScore(ctx context.Context, rec store.ChatbotScoreRecord) (int64, error)
	InsertSpeechScore(ctx context.Context, rec store.SpeechScoreRecord) (int64, error)
	LatestAnalysis(ctx context.Context) (*store.AnalysisRecord, error)
	LatestChatbotScore(ctx context.Context) (*store.ChatbotScoreRecord, error)
	LatestSpeechScore(ctx context.Context) (*store.SpeechScoreRecord, error)
}

// VideoCatalog resolves public video names to files on disk.
type VideoCatalog interface {
	Lookup(name string) (string, bool)
}

// Options configures the HTTP surface.
type Options struct {
	AllowedOrigin  string
	MetricsEnabled bool
	// Checks are run by /ready.
	Checks map[string]observability.HealthCheckFunc
	// Events serves /ws. Nil leaves the route unregistered.
	Events http.Handler
	Logger zerolog.Logger
}

// Server holds the dependencies shared by the HTTP handlers.
type Server struct {
	store  ScoreStore
	videos VideoCatalog
	opts   Options
	logger zerolog.Logger
}

// NewServer creates the HTTP surface.
func NewServer(scores ScoreStore, videos VideoCatalog, opts Options) *Server {
	return &Server{
		store:  scores,
		videos: videos,
		opts:   opts,
		logger: opts.Logger.With().Str("component", "api").Logger(),
	}
}

// Routes builds the gin engine.
func (s *Server) Routes() *gin.Engine {
	engine := gin.New()
	engine.Use(gin.Recovery(), observability.RequestLogger(), s.corsMiddleware())

	engine.GET("/health", observability.HealthCheckHandler())
	engine.GET("/ready", observability.ReadinessHandler(s.opts.Checks))
	if s.opts.MetricsEnabled {
		engine.GET("/metrics", gin.WrapH(promhttp.Handler()))
	}
	if s.opts.Events != nil {
		engine.GET("/ws", gin.WrapH(s.opts.Events))
	}

	engine.GET("/videos/:filename", s.handleVideo)

	scores := engine.Group("/api")
	scores.POST("/test-db", s.handleTestDB)
	scores.POST("/speech-scores", s.handleSpeechScores)
	scores.POST("/chatbot-scores", s.handleChatbotScores)
	scores.GET("/latest-analysis-result", s.handleLatestAnalysis)
	scores.GET("/latest-chatbot-score", s.handleLatestChatbotScore)
	scores.GET("/latest-speech-score", s.handleLatestSpeechScore)
	return engine
}

// corsMiddleware admits the configured browser origin.
func (s *Server) corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		if origin != "" && (s.opts.AllowedOrigin == "*" || origin == s.opts.AllowedOrigin) {
			c.Header("Access-Control-Allow-Origin", origin)
			c.Header("Vary", "Origin")
			c.Header("Access-Control-Allow-Credentials", "true")
			c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization, Range")
			c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		}
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
