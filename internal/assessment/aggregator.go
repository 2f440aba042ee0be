package assessment

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// DefaultCSIDivisor is the fixed divisor of the satisfaction index formula.
const DefaultCSIDivisor = 4

// SentimentScore holds per-utterance sentiment probabilities.
type SentimentScore struct {
	Positive float64 `json:"Positive"`
	Negative float64 `json:"Negative"`
	Mixed    float64 `json:"Mixed"`
	Neutral  float64 `json:"Neutral"`
}

// CSI is the satisfaction contribution of one utterance.
func (s SentimentScore) CSI() float64 {
	return s.Positive - s.Negative - 0.5*s.Mixed - 0.4*s.Neutral
}

// SatisfactionIndex is (sum of per-utterance CSI / divisor) * 5. The divisor
// does not depend on the number of utterances; zero selects the default.
func SatisfactionIndex(scores []SentimentScore, divisor float64) float64 {
	if divisor == 0 {
		divisor = DefaultCSIDivisor
	}
	var sum float64
	for _, s := range scores {
		sum += s.CSI()
	}
	return (sum / divisor) * 5
}

// SentimentProvider scores a batch of utterances, one result per text in
// order.
type SentimentProvider interface {
	BatchSentiment(ctx context.Context, texts []string) ([]SentimentScore, error)
}

// Turn is one timestamped message of a simulated chat. TypingStarted is when
// the user began typing the message; zero for assistant turns.
type Turn struct {
	Role          string
	Text          string
	At            time.Time
	TypingStarted time.Time
}

// ChatbotScore summarizes one chat session.
type ChatbotScore struct {
	AverageHandleTime   string  `json:"averageHandleTime"`
	AverageResponseTime float64 `json:"averageResponseTime"`
	AverageTypeSpeed    float64 `json:"averageTypeSpeed"`
	CSIScore            float64 `json:"csiScore"`
}

// HandleTime formats now-first as HH:MM:SS. Hours are not wrapped.
func HandleTime(first, now time.Time) string {
	d := now.Sub(first)
	if d < 0 {
		d = 0
	}
	total := int64(d / time.Second)
	return fmt.Sprintf("%02d:%02d:%02d", total/3600, (total/60)%60, total%60)
}

// AverageResponseTime averages, in seconds, the gap between each user turn
// and the latest assistant turn before it. User turns with no earlier
// assistant turn are skipped.
func AverageResponseTime(turns []Turn) float64 {
	var (
		lastAssistant time.Time
		seen          bool
		sum           float64
		n             int
	)
	for _, t := range turns {
		switch t.Role {
		case "assistant":
			lastAssistant = t.At
			seen = true
		case "user":
			if !seen {
				continue
			}
			sum += t.At.Sub(lastAssistant).Seconds()
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

// AverageTypingSpeed averages words per minute over user turns that recorded
// when typing started.
func AverageTypingSpeed(turns []Turn) float64 {
	var sum float64
	n := 0
	for _, t := range turns {
		if t.Role != "user" || t.TypingStarted.IsZero() {
			continue
		}
		minutes := t.At.Sub(t.TypingStarted).Minutes()
		words := len(strings.Fields(t.Text))
		if minutes <= 0 || words == 0 {
			continue
		}
		sum += float64(words) / minutes
		n++
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

// AggregatorOptions configures an Aggregator.
type AggregatorOptions struct {
	Divisor float64
	Logger  zerolog.Logger
}

// Aggregator turns a finished chat into a ChatbotScore.
type Aggregator struct {
	sentiment SentimentProvider
	divisor   float64
	logger    zerolog.Logger
}

// NewAggregator creates an aggregator scoring user turns with sentiment.
func NewAggregator(sentiment SentimentProvider, opts AggregatorOptions) *Aggregator {
	divisor := opts.Divisor
	if divisor == 0 {
		divisor = DefaultCSIDivisor
	}
	return &Aggregator{
		sentiment: sentiment,
		divisor:   divisor,
		logger:    opts.Logger.With().Str("component", "aggregator").Logger(),
	}
}

// Aggregate computes timing metrics and the satisfaction index for turns.
// On a sentiment failure the timing fields are still filled in and the error
// is returned.
func (a *Aggregator) Aggregate(ctx context.Context, turns []Turn, now time.Time) (ChatbotScore, error) {
	var score ChatbotScore
	if len(turns) == 0 {
		score.AverageHandleTime = HandleTime(now, now)
		return score, nil
	}

	score.AverageHandleTime = HandleTime(turns[0].At, now)
	score.AverageResponseTime = AverageResponseTime(turns)
	score.AverageTypeSpeed = AverageTypingSpeed(turns)

	var texts []string
	for _, t := range turns {
		if t.Role == "user" && strings.TrimSpace(t.Text) != "" {
			texts = append(texts, t.Text)
		}
	}
	if len(texts) == 0 {
		return score, nil
	}

	sentiments, err := a.sentiment.BatchSentiment(ctx, texts)
	if err != nil {
		a.logger.Error().Err(err).Int("utterances", len(texts)).Msg("sentiment scoring failed")
		return score, fmt.Errorf("score sentiment: %w", err)
	}
	score.CSIScore = SatisfactionIndex(sentiments, a.divisor)
	return score, nil
}
