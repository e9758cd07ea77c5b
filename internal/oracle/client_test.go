package oracle

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientComplete(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/messages", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("x-api-key"))
		assert.Equal(t, apiVersion, r.Header.Get("anthropic-version"))

		var req messagesRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "claude-haiku-4-5-20251001", req.Model)
		assert.Equal(t, 500, req.MaxTokens)
		require.Len(t, req.Messages, 1)
		assert.Equal(t, "user", req.Messages[0].Role)

		json.NewEncoder(w).Encode(messagesResponse{
			Content: []contentBlock{{Type: "text", Text: `{"company":"Stripe"}`}},
			Usage:   &usage{InputTokens: 120, OutputTokens: 18},
		})
	}))
	defer srv.Close()

	c := NewClient("test-key", "claude-haiku-4-5-20251001", 500, WithBaseURL(srv.URL))

	text, err := c.Complete(context.Background(), "system", "user message")
	require.NoError(t, err)
	assert.Equal(t, `{"company":"Stripe"}`, text)

	stats := c.GetUsageStats()
	assert.Equal(t, int64(120), stats.InputTokens)
	assert.Equal(t, int64(18), stats.OutputTokens)
	assert.Equal(t, int64(1), stats.Calls)
}

func TestClientRetriesOverload(t *testing.T) {
	var attempts atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if attempts.Add(1) < 3 {
			w.WriteHeader(http.StatusTooManyRequests)
			json.NewEncoder(w).Encode(messagesResponse{
				Error: &APIError{Type: "rate_limit_error", Message: "slow down"},
			})
			return
		}
		json.NewEncoder(w).Encode(messagesResponse{
			Content: []contentBlock{{Type: "text", Text: "ok"}},
		})
	}))
	defer srv.Close()

	c := NewClient("k", "m", 100, WithBaseURL(srv.URL))

	text, err := c.Complete(context.Background(), "s", "u")
	require.NoError(t, err)
	assert.Equal(t, "ok", text)
	assert.Equal(t, int64(3), attempts.Load())
}

func TestClientNonRetryableError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(messagesResponse{
			Error: &APIError{Type: "invalid_request_error", Message: "bad model"},
		})
	}))
	defer srv.Close()

	c := NewClient("k", "m", 100, WithBaseURL(srv.URL))

	_, err := c.Complete(context.Background(), "s", "u")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrOracle)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	assert.Equal(t, "invalid_request_error", apiErr.Type)
}
