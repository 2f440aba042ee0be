// Package sentiment scores utterances with AWS Comprehend.
package sentiment

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/comprehend"
	"github.com/aws/aws-sdk-go-v2/service/comprehend/types"
	"github.com/rs/zerolog"

	"github.com/lakshya820/VoicetoVoice/internal/assessment"
	"github.com/lakshya820/VoicetoVoice/internal/observability"
	"github.com/lakshya820/VoicetoVoice/internal/resilience"
)

const providerName = "sentiment"

// maxBatch is Comprehend's per-request document limit.
const maxBatch = 25

// ComprehendAPI is the part of the Comprehend client used here.
type ComprehendAPI interface {
	BatchDetectSentiment(ctx context.Context, params *comprehend.BatchDetectSentimentInput, optFns ...func(*comprehend.Options)) (*comprehend.BatchDetectSentimentOutput, error)
}

// Options configures a Client.
type Options struct {
	Breaker *resilience.CircuitBreaker
	Retry   *resilience.RetryConfig
	Logger  zerolog.Logger
}

// Client implements assessment.SentimentProvider.
type Client struct {
	api     ComprehendAPI
	breaker *resilience.CircuitBreaker
	retry   *resilience.RetryConfig
	logger  zerolog.Logger
}

// New creates a client for region using the default AWS credential chain.
func New(ctx context.Context, region string, opts Options) (*Client, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return NewWithAPI(comprehend.NewFromConfig(cfg), opts), nil
}

// NewWithAPI creates a client on top of an existing Comprehend API.
func NewWithAPI(api ComprehendAPI, opts Options) *Client {
	return &Client{
		api:     api,
		breaker: opts.Breaker,
		retry:   opts.Retry,
		logger:  opts.Logger.With().Str("component", "sentiment").Logger(),
	}
}

// BatchSentiment scores texts in order. Any per-document failure fails the
// whole batch.
func (c *Client) BatchSentiment(ctx context.Context, texts []string) ([]assessment.SentimentScore, error) {
	start := time.Now()
	scores := make([]assessment.SentimentScore, 0, len(texts))

	for off := 0; off < len(texts); off += maxBatch {
		end := off + maxBatch
		if end > len(texts) {
			end = len(texts)
		}

		var out *comprehend.BatchDetectSentimentOutput
		err := resilience.Guarded(ctx, c.breaker, c.retry, func(ctx context.Context) error {
			var err error
			out, err = c.api.BatchDetectSentiment(ctx, &comprehend.BatchDetectSentimentInput{
				LanguageCode: types.LanguageCodeEn,
				TextList:     texts[off:end],
			})
			return err
		})
		if err == nil {
			var batch []assessment.SentimentScore
			batch, err = convert(out, end-off)
			scores = append(scores, batch...)
		}
		if err != nil {
			observability.ObserveProvider(providerName, start, false)
			c.logger.Error().Err(err).Int("documents", len(texts)).Msg("batch sentiment failed")
			return nil, err
		}
	}

	observability.ObserveProvider(providerName, start, true)
	return scores, nil
}

func convert(out *comprehend.BatchDetectSentimentOutput, n int) ([]assessment.SentimentScore, error) {
	if len(out.ErrorList) > 0 {
		e := out.ErrorList[0]
		return nil, fmt.Errorf("document %d: %s: %s", aws.ToInt32(e.Index), aws.ToString(e.ErrorCode), aws.ToString(e.ErrorMessage))
	}

	scores := make([]assessment.SentimentScore, n)
	seen := make([]bool, n)
	for _, r := range out.ResultList {
		i := int(aws.ToInt32(r.Index))
		if i < 0 || i >= n {
			return nil, fmt.Errorf("result index %d out of range", i)
		}
		if s := r.SentimentScore; s != nil {
			scores[i] = assessment.SentimentScore{
				Positive: float64(aws.ToFloat32(s.Positive)),
				Negative: float64(aws.ToFloat32(s.Negative)),
				Mixed:    float64(aws.ToFloat32(s.Mixed)),
				Neutral:  float64(aws.ToFloat32(s.Neutral)),
			}
		}
		seen[i] = true
	}
	for i, ok := range seen {
		if !ok {
			return nil, fmt.Errorf("no result for document %d", i)
		}
	}
	return scores, nil
}
