package assessment

import (
	"context"
	"errors"
	"math"
	"strings"
	"sync"

	"github.com/lakshya820/VoicetoVoice/internal/llm"
	"github.com/lakshya820/VoicetoVoice/internal/store"
)

var errBoom = errors.New("boom")

// fakeChat answers each stage by looking at the system prompt.
type fakeChat struct {
	mu        sync.Mutex
	requests  []llm.ChatRequest
	grammar   func(answer string) (string, error)
	relevance func(user string) (string, error)
	swot      func(user string) (string, error)
}

func (f *fakeChat) Chat(ctx context.Context, req llm.ChatRequest) (string, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.mu.Unlock()

	system, user := req.Messages[0].Content, req.Messages[1].Content
	switch {
	case system == grammarPrompt:
		if f.grammar == nil {
			return user, nil
		}
		return f.grammar(user)
	case system == relevancePrompt:
		if f.relevance == nil {
			return "7", nil
		}
		return f.relevance(user)
	case strings.HasPrefix(system, "Based on the following parameters"):
		if f.swot == nil {
			return "Strengths: good. Weaknesses: some. Opportunities: many. Threats: few.", nil
		}
		return f.swot(user)
	}
	return "", errors.New("unexpected prompt")
}

func (f *fakeChat) Requests() []llm.ChatRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]llm.ChatRequest(nil), f.requests...)
}

type fakeSentiment struct {
	scores []SentimentScore
	err    error
	texts  []string
}

func (f *fakeSentiment) BatchSentiment(ctx context.Context, texts []string) ([]SentimentScore, error) {
	f.texts = append([]string(nil), texts...)
	if f.err != nil {
		return nil, f.err
	}
	return f.scores, nil
}

type fakeSink struct {
	mu       sync.Mutex
	analysis []store.AnalysisRecord
	chatbot  []store.ChatbotScoreRecord
	speech   []store.SpeechScoreRecord
	err      error
}

func (s *fakeSink) InsertAnalysis(ctx context.Context, rec store.AnalysisRecord) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return 0, s.err
	}
	s.analysis = append(s.analysis, rec)
	return int64(len(s.analysis)), nil
}

func (s *fakeSink) InsertChatbotScore(ctx context.Context, rec store.ChatbotScoreRecord) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return 0, s.err
	}
	s.chatbot = append(s.chatbot, rec)
	return int64(len(s.chatbot)), nil
}

func (s *fakeSink) InsertSpeechScore(ctx context.Context, rec store.SpeechScoreRecord) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return 0, s.err
	}
	s.speech = append(s.speech, rec)
	return int64(len(s.speech)), nil
}

func approx(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}
