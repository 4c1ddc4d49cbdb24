// internal/stages/sentiment/fetch-news/handler_test.go
package fetchnews

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	errs "rag-pipelines/internal/common/errors"
	"rag-pipelines/internal/common/logger"
)

func createTestConfig(baseURL string) *Config {
	return &Config{
		BaseURL:    baseURL,
		APIKey:     "test-key",
		MaxResults: 5,
		Timeout:    5 * time.Second,
	}
}

func newsResponse(articles ...map[string]string) string {
	payload := map[string]interface{}{"articles": articles}
	data, _ := json.Marshal(payload)
	return string(data)
}

func TestHandler_Execute_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "GET", r.Method)
		assert.Equal(t, "/news", r.URL.Path)
		assert.Equal(t, "AAPL", r.URL.Query().Get("symbol"))
		assert.Equal(t, "5", r.URL.Query().Get("limit"))
		assert.Empty(t, r.URL.Query().Get("from"))
		assert.Equal(t, "test-key", r.Header.Get("X-Api-Key"))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(newsResponse(
			map[string]string{"headline": "Apple beats earnings estimates", "source": "Reuters", "timestamp": "2026-08-28T10:00:00Z"},
			map[string]string{"headline": "New product event announced", "source": "Bloomberg", "timestamp": "2026-08-27T15:30:00Z"},
		)))
	}))
	defer server.Close()

	handler := NewHandler(createTestConfig(server.URL), logger.NewTestLogger(t))

	output, err := handler.Execute(context.Background(), &Input{Ticker: "AAPL"})

	require.NoError(t, err)
	require.Len(t, output.Items, 2)
	assert.Equal(t, "Apple beats earnings estimates", output.Items[0].Headline)
	assert.Equal(t, "Reuters", output.Items[0].Source)
	assert.Equal(t, "2026-08-28T10:00:00Z", output.Items[0].Timestamp)
	assert.False(t, output.Items[0].Placeholder)
}

func TestHandler_Execute_LimitOverride(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "3", r.URL.Query().Get("limit"))
		w.Write([]byte(newsResponse(map[string]string{"headline": "Headline"})))
	}))
	defer server.Close()

	handler := NewHandler(createTestConfig(server.URL), logger.NewTestLogger(t))

	_, err := handler.Execute(context.Background(), &Input{Ticker: "AAPL", Limit: 3})
	assert.NoError(t, err)
}

func TestHandler_Execute_LookbackWindow(t *testing.T) {
	expected := time.Now().UTC().AddDate(0, 0, -7).Format("2006-01-02")

	var gotFrom string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotFrom = r.URL.Query().Get("from")
		w.Write([]byte(newsResponse(map[string]string{"headline": "Headline"})))
	}))
	defer server.Close()

	config := createTestConfig(server.URL)
	config.LookbackDays = 7
	handler := NewHandler(config, logger.NewTestLogger(t))

	_, err := handler.Execute(context.Background(), &Input{Ticker: "AAPL"})

	require.NoError(t, err)
	assert.Equal(t, expected, gotFrom)
}

func TestHandler_Execute_EmptyFeedEmitsPlaceholder(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"empty articles array", `{"articles": []}`},
		{"missing articles field", `{}`},
		{"blank headlines filtered out", newsResponse(map[string]string{"headline": "   "})},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(tt.body))
			}))
			defer server.Close()

			handler := NewHandler(createTestConfig(server.URL), logger.NewTestLogger(t))

			output, err := handler.Execute(context.Background(), &Input{Ticker: "XYZ"})

			require.NoError(t, err)
			require.Len(t, output.Items, 1)
			assert.Equal(t, "No significant news found for XYZ", output.Items[0].Headline)
			assert.Equal(t, PlaceholderSource, output.Items[0].Source)
			assert.True(t, output.Items[0].Placeholder)
		})
	}
}

func TestHandler_Execute_EmptyTicker(t *testing.T) {
	handler := NewHandler(createTestConfig("http://localhost"), logger.NewTestLogger(t))

	output, err := handler.Execute(context.Background(), &Input{Ticker: ""})

	assert.Nil(t, output)
	assert.True(t, errs.HasCode(err, errs.ErrCodeValidation))
}

func TestHandler_Execute_FeedError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	handler := NewHandler(createTestConfig(server.URL), logger.NewTestLogger(t))

	output, err := handler.Execute(context.Background(), &Input{Ticker: "AAPL"})

	assert.Nil(t, output)
	assert.True(t, errs.HasCode(err, errs.ErrCodeService))
	assert.True(t, errs.IsRetryable(err))
}

func TestHandler_Execute_MalformedFeedResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("not json {{{"))
	}))
	defer server.Close()

	handler := NewHandler(createTestConfig(server.URL), logger.NewTestLogger(t))

	output, err := handler.Execute(context.Background(), &Input{Ticker: "AAPL"})

	assert.Nil(t, output)
	assert.True(t, errs.HasCode(err, errs.ErrCodeParse))
}
