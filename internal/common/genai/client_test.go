// internal/common/genai/client_test.go
package genai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rag-pipelines/internal/common/config"
	errs "rag-pipelines/internal/common/errors"
	"rag-pipelines/internal/common/logger"
)

func newTestClient(t *testing.T, maxRetries int, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	return NewClient(config.GenAIConfig{
		BaseURL:    server.URL,
		APIKey:     "test-key",
		ChatModel:  "gpt-4o-mini",
		Timeout:    5000,
		MaxRetries: maxRetries,
	}, logger.NewTestLogger(t))
}

func completionResponse(content string) string {
	payload, _ := json.Marshal(map[string]interface{}{
		"choices": []map[string]interface{}{
			{"message": map[string]string{"content": content}},
		},
	})
	return string(payload)
}

// ==========================
// Complete Tests
// ==========================

func TestComplete_Success(t *testing.T) {
	var captured chatRequest
	client := newTestClient(t, 0, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
		w.Write([]byte(completionResponse("  the answer  ")))
	})

	content, err := client.Complete(context.Background(), "system prompt", "user prompt", 0)

	require.NoError(t, err)
	assert.Equal(t, "the answer", content, "content is trimmed")

	assert.Equal(t, "gpt-4o-mini", captured.Model)
	require.Len(t, captured.Messages, 2)
	assert.Equal(t, "system", captured.Messages[0].Role)
	assert.Equal(t, "system prompt", captured.Messages[0].Content)
	assert.Equal(t, "user", captured.Messages[1].Role)
	assert.Equal(t, float64(0), captured.Temperature)
}

func TestComplete_RetriesOnServerError(t *testing.T) {
	var calls int
	client := newTestClient(t, 2, func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(completionResponse("recovered")))
	})

	content, err := client.Complete(context.Background(), "s", "u", 0)

	require.NoError(t, err)
	assert.Equal(t, "recovered", content)
	assert.Equal(t, 3, calls)
}

func TestComplete_ExhaustedRetries(t *testing.T) {
	var calls int
	client := newTestClient(t, 1, func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusBadGateway)
	})

	_, err := client.Complete(context.Background(), "s", "u", 0)

	require.Error(t, err)
	assert.True(t, errs.HasCode(err, errs.ErrCodeService))
	assert.True(t, errs.IsRetryable(err))
	assert.Equal(t, 2, calls)
}

func TestComplete_NoChoices(t *testing.T) {
	client := newTestClient(t, 0, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"choices": []}`))
	})

	_, err := client.Complete(context.Background(), "s", "u", 0)

	require.Error(t, err)
	assert.True(t, errs.HasCode(err, errs.ErrCodeGeneration))
}

func TestComplete_EmptyContent(t *testing.T) {
	client := newTestClient(t, 0, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(completionResponse("   ")))
	})

	_, err := client.Complete(context.Background(), "s", "u", 0)

	require.Error(t, err)
	assert.True(t, errs.HasCode(err, errs.ErrCodeGeneration))
}

func TestComplete_MalformedResponse(t *testing.T) {
	client := newTestClient(t, 0, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("not json"))
	})

	_, err := client.Complete(context.Background(), "s", "u", 0)

	require.Error(t, err)
	assert.True(t, errs.HasCode(err, errs.ErrCodeParse))
}

func TestComplete_CanceledContext(t *testing.T) {
	client := newTestClient(t, 2, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client.Complete(ctx, "s", "u", 0)

	require.Error(t, err)
	assert.True(t, errs.HasCode(err, errs.ErrCodeService))
}
