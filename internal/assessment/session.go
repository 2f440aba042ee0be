package assessment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/lakshya820/VoicetoVoice/internal/store"
)

var (
	// ErrAlreadyCompleted is returned when a session's completion fires again.
	ErrAlreadyCompleted = errors.New("session already completed")
	// ErrNotReady is returned by Run before questions and answers arrived.
	ErrNotReady = errors.New("questions and answers not both received")
)

// AnalysisSink persists an assessment result.
type AnalysisSink interface {
	InsertAnalysis(ctx context.Context, rec store.AnalysisRecord) (int64, error)
}

// ChatbotSink persists a chatbot score.
type ChatbotSink interface {
	InsertChatbotScore(ctx context.Context, rec store.ChatbotScoreRecord) (int64, error)
}

// SpeechSink persists a speech assessment score.
type SpeechSink interface {
	InsertSpeechScore(ctx context.Context, rec store.SpeechScoreRecord) (int64, error)
}

// Guard lets one action happen at most once. The zero value is ready to use.
type Guard struct {
	mu   sync.Mutex
	done bool
}

// Claim reports whether the caller is the first to claim the guard.
func (g *Guard) Claim() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.done {
		return false
	}
	g.done = true
	return true
}

// Done reports whether the guard was claimed.
func (g *Guard) Done() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.done
}

// SentimentResult is what the results screen receives for the
// satisfaction index.
type SentimentResult struct {
	FinalCSI float64 `json:"final_csi"`
}

// Outcome is everything one assessment run produced.
type Outcome struct {
	Result    Result
	Sentiment SentimentResult
	RecordID  int64
	SaveErr   error
}

// SessionOptions configures a Session.
type SessionOptions struct {
	Divisor float64
	Logger  zerolog.Logger
}

// Session collects the questions, answers and sentiment of one assessment
// in any order and runs the pipeline once both questions and answers are
// known. The result is written to the sink at most once.
type Session struct {
	pipeline *Pipeline
	sink     AnalysisSink
	divisor  float64
	logger   zerolog.Logger
	guard    Guard

	mu        sync.Mutex
	questions []string
	answers   []string
	haveQ     bool
	haveA     bool
	sentiment []SentimentScore
}

// NewSession creates an assessment session.
func NewSession(pipeline *Pipeline, sink AnalysisSink, opts SessionOptions) *Session {
	divisor := opts.Divisor
	if divisor == 0 {
		divisor = DefaultCSIDivisor
	}
	return &Session{
		pipeline: pipeline,
		sink:     sink,
		divisor:  divisor,
		logger:   opts.Logger.With().Str("component", "assessment_session").Logger(),
	}
}

// SetQuestions records the questions and reports whether the session is now
// ready to run.
func (s *Session) SetQuestions(questions []string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.questions = append([]string(nil), questions...)
	s.haveQ = true
	return s.haveA
}

// SetAnswers records the answers and reports whether the session is now
// ready to run.
func (s *Session) SetAnswers(answers []string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.answers = append([]string(nil), answers...)
	s.haveA = true
	return s.haveQ
}

// SetSentiment records per-answer sentiment. It may arrive before, during
// or after the pipeline run; whatever is present when the run finishes is
// used.
func (s *Session) SetSentiment(scores []SentimentScore) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sentiment = append([]SentimentScore(nil), scores...)
}

// Sentiment returns the satisfaction index of the sentiment received so far.
func (s *Session) Sentiment() SentimentResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	return SentimentResult{FinalCSI: SatisfactionIndex(s.sentiment, s.divisor)}
}

// Completed reports whether the session already ran.
func (s *Session) Completed() bool {
	return s.guard.Done()
}

// Run scores the session and persists the result. It runs at most once;
// later calls return ErrAlreadyCompleted. A persistence failure is reported
// in Outcome.SaveErr, not as an error, since the scores are still valid.
func (s *Session) Run(ctx context.Context) (*Outcome, error) {
	s.mu.Lock()
	if !s.haveQ || !s.haveA {
		s.mu.Unlock()
		return nil, ErrNotReady
	}
	questions, answers := s.questions, s.answers
	s.mu.Unlock()

	if !s.guard.Claim() {
		return nil, ErrAlreadyCompleted
	}

	out := &Outcome{Result: s.pipeline.Run(ctx, questions, answers)}
	out.Sentiment = s.Sentiment()

	grammarJSON, err := json.Marshal(out.Result.Grammar)
	if err != nil {
		out.SaveErr = fmt.Errorf("encode grammar result: %w", err)
		return out, nil
	}
	sentimentJSON, err := json.Marshal(out.Sentiment)
	if err != nil {
		out.SaveErr = fmt.Errorf("encode sentiment: %w", err)
		return out, nil
	}

	out.RecordID, out.SaveErr = s.sink.InsertAnalysis(ctx, store.AnalysisRecord{
		GrammarResult:  string(grammarJSON),
		SWOTAnalysis:   out.Result.SWOTText,
		SentimentScore: string(sentimentJSON),
	})
	if out.SaveErr != nil {
		s.logger.Error().Err(out.SaveErr).Msg("failed to save analysis result")
	} else {
		s.logger.Info().Int64("id", out.RecordID).Msg("analysis result saved")
	}
	return out, nil
}

// ChatbotSession aggregates and persists one simulated chat at most once.
type ChatbotSession struct {
	agg   *Aggregator
	sink  ChatbotSink
	guard Guard
}

// NewChatbotSession creates a chatbot scoring session.
func NewChatbotSession(agg *Aggregator, sink ChatbotSink) *ChatbotSession {
	return &ChatbotSession{agg: agg, sink: sink}
}

// Complete aggregates turns and writes the score. Only the first call does
// any work; a failed sentiment call still consumes the session and nothing
// is written.
func (s *ChatbotSession) Complete(ctx context.Context, turns []Turn, now time.Time) (ChatbotScore, int64, error) {
	if !s.guard.Claim() {
		return ChatbotScore{}, 0, ErrAlreadyCompleted
	}

	score, err := s.agg.Aggregate(ctx, turns, now)
	if err != nil {
		return score, 0, err
	}

	id, err := s.sink.InsertChatbotScore(ctx, store.ChatbotScoreRecord{
		AverageHandleTime:   score.AverageHandleTime,
		AverageResponseTime: score.AverageResponseTime,
		AverageTypeSpeed:    score.AverageTypeSpeed,
		CSIScore:            score.CSIScore,
	})
	if err != nil {
		return score, 0, fmt.Errorf("save chatbot score: %w", err)
	}
	return score, id, nil
}

// SpeechSession averages and persists one pronunciation assessment at most
// once.
type SpeechSession struct {
	sink  SpeechSink
	guard Guard
}

// NewSpeechSession creates a speech scoring session.
func NewSpeechSession(sink SpeechSink) *SpeechSession {
	return &SpeechSession{sink: sink}
}

// Complete averages the trials and writes the score.
func (s *SpeechSession) Complete(ctx context.Context, trials []SpeechScore) (SpeechScore, int64, error) {
	avg, err := AverageSpeechScores(trials)
	if err != nil {
		return avg, 0, err
	}
	if !s.guard.Claim() {
		return avg, 0, ErrAlreadyCompleted
	}

	id, err := s.sink.InsertSpeechScore(ctx, store.SpeechScoreRecord{
		AccuracyScore:      avg.Accuracy,
		FluencyScore:       avg.Fluency,
		CompletenessScore:  avg.Completeness,
		PronunciationScore: avg.Pronunciation,
	})
	if err != nil {
		return avg, 0, fmt.Errorf("save speech score: %w", err)
	}
	return avg, id, nil
}
