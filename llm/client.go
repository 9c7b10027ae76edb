// Package llm wraps an OpenAI-compatible chat completions API behind a client
// that supports a primary/fallback model chain, bounded retries while a model
// is still loading, and a streaming variant.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

const (
	defaultBaseURL = "https://api-inference.huggingface.co/v1"
	defaultModelID = "mistralai/Mixtral-8x7B-Instruct-v0.1"

	defaultMaxRetries   = 2
	defaultRetryCeiling = 20 * time.Second
)

// Client issues chat completion requests, trying each configured model in
// order until one of them produces an answer.
type Client struct {
	httpClient   *http.Client
	baseURL      string
	apiKey       string
	models       []string
	maxRetries   int
	retryCeiling time.Duration
}

// NewClientFromEnv constructs a Client using environment variables.
//
// Expected variables:
//   - LLM_API_KEY: required API key for the provider
//   - LLM_BASE_URL: optional override for the API base URL (defaults to defaultBaseURL)
//   - LLM_MODEL_ID: optional primary model (defaults to defaultModelID)
//   - LLM_FALLBACK_MODEL_ID: optional fallback model tried after the primary
func NewClientFromEnv() (*Client, error) {
	apiKey := strings.TrimSpace(os.Getenv("LLM_API_KEY"))
	if apiKey == "" {
		return nil, errors.New("llm: LLM_API_KEY environment variable is required")
	}

	baseURL := strings.TrimSpace(os.Getenv("LLM_BASE_URL"))
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	baseURL = strings.TrimRight(baseURL, "/")
	if !strings.HasPrefix(baseURL, "http://") && !strings.HasPrefix(baseURL, "https://") {
		return nil, fmt.Errorf("llm: invalid base URL %q", baseURL)
	}

	primary := strings.TrimSpace(os.Getenv("LLM_MODEL_ID"))
	if primary == "" {
		primary = defaultModelID
	}
	models := []string{primary}
	if fallback := strings.TrimSpace(os.Getenv("LLM_FALLBACK_MODEL_ID")); fallback != "" && fallback != primary {
		models = append(models, fallback)
	}

	return &Client{
		httpClient:   &http.Client{Timeout: 60 * time.Second},
		baseURL:      baseURL,
		apiKey:       apiKey,
		models:       models,
		maxRetries:   defaultMaxRetries,
		retryCeiling: defaultRetryCeiling,
	}, nil
}

// NewClient constructs a Client with explicit configuration. Mainly useful for
// tests; production wiring goes through NewClientFromEnv.
func NewClient(baseURL, apiKey string, models ...string) *Client {
	if len(models) == 0 {
		models = []string{defaultModelID}
	}
	return &Client{
		httpClient:   &http.Client{Timeout: 60 * time.Second},
		baseURL:      strings.TrimRight(baseURL, "/"),
		apiKey:       apiKey,
		models:       models,
		maxRetries:   defaultMaxRetries,
		retryCeiling: defaultRetryCeiling,
	}
}

// Message represents a single turn in a chat conversation payload.
type Message struct {
	Role    string
	Content string
}

// Request carries the tunable parameters for one completion call. A zero
// MaxTokens or Temperature falls back to the provider default. Model, when
// set, bypasses the configured chain and targets that model only.
type Request struct {
	Messages    []Message
	MaxTokens   int
	Temperature float64
	Model       string
}

// Result represents the content and usage information for a completion.
type Result struct {
	Content string
	Model   string
	Usage   *Usage
}

// Usage captures token usage metrics returned by the provider.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

type completionMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type completionRequest struct {
	Model       string              `json:"model"`
	Stream      bool                `json:"stream"`
	Messages    []completionMessage `json:"messages"`
	MaxTokens   int                 `json:"max_tokens,omitempty"`
	Temperature float64             `json:"temperature,omitempty"`
}

type completionResponse struct {
	Choices []struct {
		Message completionMessage `json:"message"`
	} `json:"choices"`
	Usage *Usage `json:"usage"`
}

// loadingResponse mirrors the provider's "model still loading" error body,
// which suggests how long to wait before retrying.
type loadingResponse struct {
	Error         string  `json:"error"`
	EstimatedTime float64 `json:"estimated_time"`
}

// PrimaryModel returns the first model in the configured chain.
func (c *Client) PrimaryModel() string {
	if c == nil || len(c.models) == 0 {
		return ""
	}
	return c.models[0]
}

// SecondaryModel returns the fallback model, or the primary when no fallback
// is configured.
func (c *Client) SecondaryModel() string {
	if c == nil || len(c.models) == 0 {
		return ""
	}
	return c.models[len(c.models)-1]
}

// Complete sends the request to the chat completions API. Models in the chain
// are tried in order; a model that is still loading is retried after the
// server-suggested delay (capped at the retry ceiling) before the client moves
// on to the next model.
func (c *Client) Complete(ctx context.Context, req Request) (Result, error) {
	if c == nil {
		return Result{}, errors.New("llm: client is nil")
	}

	payload, err := buildPayload(req, false)
	if err != nil {
		return Result{}, err
	}

	var lastErr error
	for _, model := range c.candidateModels(req.Model) {
		payload.Model = model
		result, err := c.completeWithRetry(ctx, payload)
		if err == nil {
			result.Model = model
			return result, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			break
		}
	}
	return Result{}, lastErr
}

func (c *Client) candidateModels(override string) []string {
	if override = strings.TrimSpace(override); override != "" {
		return []string{override}
	}
	return c.models
}

func (c *Client) completeWithRetry(ctx context.Context, payload completionRequest) (Result, error) {
	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		result, wait, err := c.completeOnce(ctx, payload)
		if err == nil {
			return result, nil
		}
		lastErr = err
		if wait <= 0 {
			return Result{}, err
		}
		if wait > c.retryCeiling {
			wait = c.retryCeiling
		}
		select {
		case <-ctx.Done():
			return Result{}, ctx.Err()
		case <-time.After(wait):
		}
	}
	return Result{}, lastErr
}

// completeOnce performs a single request. A positive wait duration marks the
// failure as transient (model loading / unavailable) and retryable.
func (c *Client) completeOnce(ctx context.Context, payload completionRequest) (Result, time.Duration, error) {
	body := &bytes.Buffer{}
	if err := json.NewEncoder(body).Encode(payload); err != nil {
		return Result{}, 0, fmt.Errorf("llm: encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", body)
	if err != nil {
		return Result{}, 0, fmt.Errorf("llm: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Result{}, 0, fmt.Errorf("llm: execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		if wait := retryDelay(resp.StatusCode, snippet); wait > 0 {
			return Result{}, wait, fmt.Errorf("llm: model %s unavailable: %s", payload.Model, strings.TrimSpace(string(snippet)))
		}
		return Result{}, 0, fmt.Errorf("llm: unexpected status %s: %s", resp.Status, strings.TrimSpace(string(snippet)))
	}

	var decoded completionResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return Result{}, 0, fmt.Errorf("llm: decode response: %w", err)
	}
	if len(decoded.Choices) == 0 {
		return Result{}, 0, errors.New("llm: response contains no choices")
	}

	return Result{
		Content: strings.TrimSpace(decoded.Choices[0].Message.Content),
		Usage:   decoded.Usage,
	}, 0, nil
}

// retryDelay inspects a failure response and returns how long to wait before
// retrying, or 0 when the failure is not transient.
func retryDelay(status int, body []byte) time.Duration {
	if status != http.StatusServiceUnavailable && status != http.StatusTooManyRequests {
		return 0
	}

	var loading loadingResponse
	if err := json.Unmarshal(body, &loading); err == nil && loading.EstimatedTime > 0 {
		return time.Duration(loading.EstimatedTime * float64(time.Second))
	}
	return 2 * time.Second
}

func buildPayload(req Request, stream bool) (completionRequest, error) {
	payload := completionRequest{
		Stream:      stream,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
		Messages:    make([]completionMessage, 0, len(req.Messages)),
	}

	for _, msg := range req.Messages {
		role := strings.TrimSpace(msg.Role)
		if role == "" {
			role = "user"
		}
		content := strings.TrimSpace(msg.Content)
		if content == "" {
			continue
		}
		payload.Messages = append(payload.Messages, completionMessage{Role: role, Content: content})
	}

	if len(payload.Messages) == 0 {
		return completionRequest{}, errors.New("llm: messages contain no content")
	}
	return payload, nil
}
