// Package llm is a chat-completion client for Azure OpenAI deployments.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/lakshya820/VoicetoVoice/internal/observability"
	"github.com/lakshya820/VoicetoVoice/internal/resilience"
)

const providerName = "completion"

// ErrEmptyResponse is returned when the provider answers without content.
var ErrEmptyResponse = errors.New("empty completion response")

// Message is one chat message.
type Message struct {
	Role    string `json:"role"` // "system", "user", "assistant"
	Content string `json:"content"`
}

// ChatRequest is one completion call. Model selects the deployment; empty
// means the client's default deployment.
type ChatRequest struct {
	Model       string
	Messages    []Message
	Temperature float64
	MaxTokens   int
	TopP        float64
}

// Options configures a Client.
type Options struct {
	Endpoint   string
	APIKey     string
	APIVersion string
	Deployment string

	HTTPClient *http.Client
	Breaker    *resilience.CircuitBreaker
	Retry      *resilience.RetryConfig
	Logger     zerolog.Logger
}

// Client calls the chat completions endpoint of an Azure OpenAI resource.
type Client struct {
	endpoint   string
	apiKey     string
	apiVersion string
	deployment string
	httpClient *http.Client
	breaker    *resilience.CircuitBreaker
	retry      *resilience.RetryConfig
	logger     zerolog.Logger
}

// NewClient creates a completion client.
func NewClient(opts Options) *Client {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &Client{
		endpoint:   strings.TrimRight(opts.Endpoint, "/"),
		apiKey:     opts.APIKey,
		apiVersion: opts.APIVersion,
		deployment: opts.Deployment,
		httpClient: httpClient,
		breaker:    opts.Breaker,
		retry:      opts.Retry,
		logger:     opts.Logger.With().Str("component", "llm").Logger(),
	}
}

// Healthy reports whether the provider's breaker admits requests.
func (c *Client) Healthy(ctx context.Context) (bool, error) {
	if c.breaker != nil && !c.breaker.Healthy() {
		return false, resilience.ErrCircuitOpen
	}
	return true, nil
}

// Chat sends the messages and returns the first choice's content.
func (c *Client) Chat(ctx context.Context, req ChatRequest) (string, error) {
	start := time.Now()

	var content string
	err := resilience.Guarded(ctx, c.breaker, c.retry, func(ctx context.Context) error {
		var err error
		content, err = c.do(ctx, req)
		return err
	})
	observability.ObserveProvider(providerName, start, err == nil)
	if err != nil {
		c.logger.Error().Err(err).Str("deployment", c.deploymentFor(req)).Msg("chat completion failed")
		return "", err
	}
	return content, nil
}

func (c *Client) deploymentFor(req ChatRequest) string {
	if req.Model != "" {
		return req.Model
	}
	return c.deployment
}

func (c *Client) url(deployment string) string {
	return fmt.Sprintf("%s/openai/deployments/%s/chat/completions?api-version=%s",
		c.endpoint, url.PathEscape(deployment), url.QueryEscape(c.apiVersion))
}

func (c *Client) do(ctx context.Context, req ChatRequest) (string, error) {
	reqBody := map[string]any{
		"messages":    req.Messages,
		"temperature": req.Temperature,
	}
	if req.MaxTokens > 0 {
		reqBody["max_tokens"] = req.MaxTokens
	}
	if req.TopP > 0 {
		reqBody["top_p"] = req.TopP
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url(c.deploymentFor(req)), bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("api-key", c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", &resilience.StatusError{Provider: providerName, StatusCode: resp.StatusCode, Body: string(respBody)}
	}

	var result struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(respBody, &result); err != nil {
		return "", fmt.Errorf("unmarshal response: %w", err)
	}
	if len(result.Choices) == 0 || result.Choices[0].Message.Content == "" {
		return "", ErrEmptyResponse
	}

	return result.Choices[0].Message.Content, nil
}
