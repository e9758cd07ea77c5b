package oracle

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"math/rand"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/jamhq/jam/internal/instrumentation"
)

// ErrOracle marks failures of the classification backend. Callers treat
// it as a soft, per-email fault.
var ErrOracle = errors.New("oracle failure")

const (
	baseURL          = "https://api.anthropic.com/v1"
	apiVersion       = "2023-06-01"
	maxRetries       = 5
	initialBackoff   = 500 * time.Millisecond
	maxBackoff       = 30 * time.Second
	defaultTimeout   = 60 * time.Second
	maxIdleConns     = 100
	idleConnTimeout  = 90 * time.Second
	handshakeTimeout = 10 * time.Second
)

// Client calls the Anthropic Messages API with pooled connections,
// bounded retries and optional request pacing.
type Client struct {
	httpClient *http.Client
	apiKey     string
	model      string
	maxTokens  int
	baseURL    string
	limiter    *rate.Limiter
	metrics    *instrumentation.Metrics

	usageMu      sync.Mutex
	inputTokens  int64
	outputTokens int64
	calls        int64
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithRequestsPerMinute smooths request volume. rpm<=0 disables pacing.
func WithRequestsPerMinute(rpm int) ClientOption {
	return func(c *Client) {
		if rpm <= 0 {
			c.limiter = nil
			return
		}
		c.limiter = rate.NewLimiter(rate.Limit(float64(rpm)/60.0), 1)
	}
}

// WithMetrics attaches call and token metrics. Nil disables recording.
func WithMetrics(m *instrumentation.Metrics) ClientOption {
	return func(c *Client) { c.metrics = m }
}

// WithHTTPClient replaces the underlying HTTP client. Used in tests.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) { c.httpClient = hc }
}

// WithBaseURL points the client at a different endpoint. Used in tests.
func WithBaseURL(u string) ClientOption {
	return func(c *Client) { c.baseURL = u }
}

// NewClient creates an Anthropic Messages API client.
func NewClient(apiKey, model string, maxTokens int, opts ...ClientOption) *Client {
	transport := &http.Transport{
		MaxIdleConns:        maxIdleConns,
		MaxIdleConnsPerHost: maxIdleConns,
		IdleConnTimeout:     idleConnTimeout,
		TLSHandshakeTimeout: handshakeTimeout,
		ForceAttemptHTTP2:   true,
	}

	c := &Client{
		httpClient: &http.Client{
			Transport: transport,
			Timeout:   defaultTimeout,
		},
		apiKey:    apiKey,
		model:     model,
		maxTokens: maxTokens,
		baseURL:   baseURL,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type messagesRequest struct {
	Model     string    `json:"model"`
	MaxTokens int       `json:"max_tokens"`
	System    string    `json:"system,omitempty"`
	Messages  []message `json:"messages"`
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type messagesResponse struct {
	Content []contentBlock `json:"content"`
	Usage   *usage         `json:"usage,omitempty"`
	Error   *APIError      `json:"error,omitempty"`
}

type contentBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// APIError is an error envelope returned by the Messages API.
type APIError struct {
	StatusCode int    `json:"-"`
	Type       string `json:"type"`
	Message    string `json:"message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("anthropic API error %d (%s): %s", e.StatusCode, e.Type, e.Message)
}

// Complete sends one system+user exchange and returns the first text
// block of the reply. Retries 429 and 5xx responses with exponential
// backoff and jitter.
func (c *Client) Complete(ctx context.Context, system, user string) (string, error) {
	start := time.Now()
	text, u, err := c.complete(ctx, system, user)
	if err == nil {
		c.recordUsage(u)
	}
	if c.metrics != nil {
		status := instrumentation.StatusSuccess
		var in, out int64
		if err != nil {
			status = instrumentation.StatusError
		} else if u != nil {
			in, out = int64(u.InputTokens), int64(u.OutputTokens)
		}
		c.metrics.RecordOracleCall(ctx, status, time.Since(start), in, out)
	}
	return text, err
}

func (c *Client) complete(ctx context.Context, system, user string) (string, *usage, error) {
	reqBody := messagesRequest{
		Model:     c.model,
		MaxTokens: c.maxTokens,
		System:    system,
		Messages:  []message{{Role: "user", Content: user}},
	}
	body, err := json.Marshal(reqBody)
	if err != nil {
		return "", nil, fmt.Errorf("marshal request: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return "", nil, err
			}
		}
		if attempt > 0 {
			select {
			case <-time.After(calculateBackoff(attempt)):
			case <-ctx.Done():
				return "", nil, ctx.Err()
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/messages", bytes.NewReader(body))
		if err != nil {
			return "", nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("x-api-key", c.apiKey)
		req.Header.Set("anthropic-version", apiVersion)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = err
			continue
		}

		respBody, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = err
			continue
		}

		var result messagesResponse
		if err := json.Unmarshal(respBody, &result); err != nil {
			lastErr = fmt.Errorf("unmarshal response (status %d): %w", resp.StatusCode, err)
			if isRetryableStatus(resp.StatusCode) {
				continue
			}
			return "", nil, fmt.Errorf("%w: %w", ErrOracle, lastErr)
		}

		if resp.StatusCode != http.StatusOK {
			apiErr := result.Error
			if apiErr == nil {
				apiErr = &APIError{Type: "unknown", Message: http.StatusText(resp.StatusCode)}
			}
			apiErr.StatusCode = resp.StatusCode
			if isRetryableStatus(resp.StatusCode) {
				lastErr = apiErr
				continue
			}
			return "", nil, fmt.Errorf("%w: %w", ErrOracle, apiErr)
		}

		for _, block := range result.Content {
			if block.Type == "text" {
				return block.Text, result.Usage, nil
			}
		}
		return "", nil, fmt.Errorf("%w: reply carries no text content", ErrOracle)
	}

	return "", nil, fmt.Errorf("%w: max retries exceeded: %w", ErrOracle, lastErr)
}

func isRetryableStatus(code int) bool {
	return code == http.StatusTooManyRequests || code >= 500
}

func calculateBackoff(attempt int) time.Duration {
	backoff := float64(initialBackoff) * math.Pow(2, float64(attempt-1))
	if backoff > float64(maxBackoff) {
		backoff = float64(maxBackoff)
	}
	jitter := backoff * 0.25 * (rand.Float64()*2 - 1)
	return time.Duration(backoff + jitter)
}

// UsageStats is the accumulated token accounting for cost tracking.
type UsageStats struct {
	InputTokens  int64 `json:"input_tokens"`
	OutputTokens int64 `json:"output_tokens"`
	Calls        int64 `json:"calls"`
}

// GetUsageStats returns accumulated usage since creation or the last reset.
func (c *Client) GetUsageStats() UsageStats {
	c.usageMu.Lock()
	defer c.usageMu.Unlock()
	return UsageStats{
		InputTokens:  c.inputTokens,
		OutputTokens: c.outputTokens,
		Calls:        c.calls,
	}
}

// ResetUsageStats clears the accumulated usage counters.
func (c *Client) ResetUsageStats() {
	c.usageMu.Lock()
	defer c.usageMu.Unlock()
	c.inputTokens, c.outputTokens, c.calls = 0, 0, 0
}

func (c *Client) recordUsage(u *usage) {
	c.usageMu.Lock()
	defer c.usageMu.Unlock()
	c.calls++
	if u == nil {
		return
	}
	c.inputTokens += int64(u.InputTokens)
	c.outputTokens += int64(u.OutputTokens)
}
