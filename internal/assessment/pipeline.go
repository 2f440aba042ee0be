// Package assessment scores a completed question/answer session: grammar,
// relevance, SWOT synthesis, sentiment-derived satisfaction and chat timing.
package assessment

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/lakshya820/VoicetoVoice/internal/llm"
	"github.com/lakshya820/VoicetoVoice/internal/observability"
)

// Stage names, used in errors and metrics.
const (
	StageGrammar   = "grammar"
	StageRelevance = "relevance"
	StageSWOT      = "swot"
)

// DefaultModel is the deployment used for scoring prompts.
const DefaultModel = "gpt-4o-mini"

const (
	grammarPrompt = "You will be provided with statements. If a statement is already grammatically correct (e.g., 'I don't know', 'I've been eating a lot') do not change it.  Do not add any commas even if needed. Accept casual English, including abbreviations and slang. Focus on fixing major grammatical errors like verb tenses, subject-verb agreement, and sentence structure, but leave informal language as it is (e.g., 'I'm gonna', 'wanna', 'LOL')."

	relevancePrompt = "Please evaluate the correctness of the following answer on a scale of 1 to 10, where 1 is completely incorrect and 10 is completely correct. Consider the relevance of the answer in relation to the question. Return only a single number with no words."

	swotPrompt = "Based on the following parameters and their values, create a SWOT analysis with separate paragraphs for Strengths, Weaknesses, Opportunities, and Threats. Do not include a main 'SWOT Analysis' header, but start directly with each section label followed by the analysis. Any paragraph should not exceed 50 words."
)

var numberPattern = regexp.MustCompile(`\d+(?:\.\d+)?`)

// ChatCompleter is the completion provider used by every stage.
type ChatCompleter interface {
	Chat(ctx context.Context, req llm.ChatRequest) (string, error)
}

// GrammarResult is the outcome of the grammar stage. JSON names match what
// the results screen reads.
type GrammarResult struct {
	Questions []string `json:"questions"`
	Answers   []string `json:"grammarArray"`
	Corrected []string `json:"correctedGrammarArray"`
	Total     float64  `json:"total"`
	Comment   string   `json:"grammarComment"`
}

// RelevanceResult is the outcome of the relevance stage.
type RelevanceResult struct {
	Scores               []float64 `json:"scores"`
	Average              float64   `json:"average"`
	ComprehensionComment string    `json:"comprehensionComment"`
	FluencyComment       string    `json:"fluencyComment"`
}

// StageError records one failed provider call without aborting the run.
type StageError struct {
	Stage string
	Index int // answer index, -1 for whole-stage calls
	Err   error
}

func (e StageError) Error() string {
	if e.Index < 0 {
		return fmt.Sprintf("%s: %v", e.Stage, e.Err)
	}
	return fmt.Sprintf("%s[%d]: %v", e.Stage, e.Index, e.Err)
}

func (e StageError) Unwrap() error { return e.Err }

// Result is the full pipeline output. Errors lists the calls that failed;
// the rest of the result is still usable.
type Result struct {
	Grammar   GrammarResult
	Relevance RelevanceResult
	SWOTText  string
	SWOT      SWOT
	Errors    []StageError
}

// PipelineOptions configures a Pipeline.
type PipelineOptions struct {
	Model  string
	Logger zerolog.Logger
}

// Pipeline runs the grammar, relevance and SWOT stages in order, one
// provider call per answer.
type Pipeline struct {
	chat   ChatCompleter
	model  string
	logger zerolog.Logger
}

// NewPipeline creates a pipeline on top of chat.
func NewPipeline(chat ChatCompleter, opts PipelineOptions) *Pipeline {
	model := opts.Model
	if model == "" {
		model = DefaultModel
	}
	return &Pipeline{
		chat:   chat,
		model:  model,
		logger: opts.Logger.With().Str("component", "assessment").Logger(),
	}
}

// Run scores answers against questions. Each stage is guarded on its own, so
// a provider failure degrades the result instead of aborting it.
func (p *Pipeline) Run(ctx context.Context, questions, answers []string) Result {
	var res Result

	res.Grammar, res.Errors = p.grammar(ctx, questions, answers, res.Errors)
	res.Relevance, res.Errors = p.relevance(ctx, questions, answers, res.Errors)

	swot, err := p.swot(ctx, res.Grammar.Comment, res.Relevance.ComprehensionComment, res.Relevance.FluencyComment)
	observability.RecordAssessmentStage(StageSWOT, err == nil)
	if err != nil {
		p.logger.Error().Err(err).Msg("swot stage failed")
		res.Errors = append(res.Errors, StageError{Stage: StageSWOT, Index: -1, Err: err})
	}
	res.SWOTText = swot
	res.SWOT = ParseSWOT(swot)

	p.logger.Info().
		Float64("grammar_total", res.Grammar.Total).
		Float64("relevance_average", res.Relevance.Average).
		Int("errors", len(res.Errors)).
		Msg("assessment complete")

	return res
}

func (p *Pipeline) grammar(ctx context.Context, questions, answers []string, errs []StageError) (GrammarResult, []StageError) {
	res := GrammarResult{
		Questions: questions,
		Answers:   answers,
		Corrected: make([]string, len(answers)),
	}

	checked, mismatches := 0, 0
	for i, answer := range answers {
		corrected, err := p.chat.Chat(ctx, llm.ChatRequest{
			Model: p.model,
			Messages: []llm.Message{
				{Role: "system", Content: grammarPrompt},
				{Role: "user", Content: answer},
			},
			Temperature: 0,
			MaxTokens:   60,
			TopP:        1,
		})
		if err != nil {
			p.logger.Warn().Err(err).Int("answer", i).Msg("grammar correction failed")
			errs = append(errs, StageError{Stage: StageGrammar, Index: i, Err: err})
			continue
		}

		res.Corrected[i] = corrected
		checked++
		if corrected != answer {
			mismatches++
		}
	}
	observability.RecordAssessmentStage(StageGrammar, checked == len(answers))

	res.Total = GrammarTotal(mismatches, checked)
	res.Comment = "Grammar: " + GrammarComment(res.Total)
	return res, errs
}

func (p *Pipeline) relevance(ctx context.Context, questions, answers []string, errs []StageError) (RelevanceResult, []StageError) {
	var res RelevanceResult

	var sum float64
	failed := false
	for i, answer := range answers {
		question := ""
		if i < len(questions) {
			question = questions[i]
		}

		reply, err := p.chat.Chat(ctx, llm.ChatRequest{
			Model: p.model,
			Messages: []llm.Message{
				{Role: "system", Content: relevancePrompt},
				{Role: "user", Content: fmt.Sprintf("Question: %s Answer: %s", question, answer)},
			},
			Temperature: 0,
			MaxTokens:   60,
			TopP:        1,
		})
		if err == nil {
			var score float64
			score, err = ParseRelevanceScore(reply)
			if err == nil {
				res.Scores = append(res.Scores, score)
				sum += score
				continue
			}
		}

		failed = true
		p.logger.Warn().Err(err).Int("answer", i).Msg("relevance scoring failed")
		errs = append(errs, StageError{Stage: StageRelevance, Index: i, Err: err})
	}
	observability.RecordAssessmentStage(StageRelevance, !failed)

	if len(res.Scores) > 0 {
		res.Average = sum / float64(len(res.Scores))
	}
	res.ComprehensionComment, res.FluencyComment = RelevanceComments(res.Average)
	return res, errs
}

func (p *Pipeline) swot(ctx context.Context, grammar, comprehension, fluency string) (string, error) {
	return p.chat.Chat(ctx, llm.ChatRequest{
		Model: p.model,
		Messages: []llm.Message{
			{Role: "system", Content: swotPrompt},
			{Role: "user", Content: fmt.Sprintf("%s  %s %s", grammar, comprehension, fluency)},
		},
		Temperature: 0,
		TopP:        1,
	})
}

// GrammarTotal is the percentage of checked answers that needed no
// correction. No checked answers scores 0.
func GrammarTotal(mismatches, checked int) float64 {
	if checked == 0 {
		return 0
	}
	return (1 - float64(mismatches)/float64(checked)) * 100
}

// GrammarComment maps a grammar total to its tier.
func GrammarComment(total float64) string {
	switch {
	case total <= 25:
		return "Unsatisfactory"
	case total <= 50:
		return "Needs Improvement"
	default:
		return "Met Expectations"
	}
}

// RelevanceComments maps an average relevance score to the comprehension
// and fluency comments.
func RelevanceComments(average float64) (comprehension, fluency string) {
	switch {
	case average <= 3:
		return "Comprehension: Unsatisfactory", "Fluency/Thought process: Unsatisfactory"
	case average <= 6:
		return "Comprehension: Needs Improvement", "Fluency/Thought Process: Needs Improvement"
	default:
		return "Comprehension: Met expectations", "Fluency/Thought process: Met expectations"
	}
}

// ParseRelevanceScore reads the first number in reply, clamped to [1,10].
func ParseRelevanceScore(reply string) (float64, error) {
	m := numberPattern.FindString(reply)
	if m == "" {
		return 0, fmt.Errorf("no score in reply %q", strings.TrimSpace(reply))
	}
	score, err := strconv.ParseFloat(m, 64)
	if err != nil {
		return 0, fmt.Errorf("parse score %q: %w", m, err)
	}
	if score < 1 {
		score = 1
	}
	if score > 10 {
		score = 10
	}
	return score, nil
}
