// internal/common/genai/client.go
package genai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"rag-pipelines/internal/common/config"
	errs "rag-pipelines/internal/common/errors"
	"rag-pipelines/internal/common/logger"
)

const serviceName = "genai"

// Client calls an OpenAI-compatible chat-completions endpoint. Determinism is
// assumed at temperature 0; that is a behavioral assumption, not a guarantee
// the endpoint must prove.
type Client struct {
	cfg    config.GenAIConfig
	client *http.Client
	logger logger.Logger
}

func NewClient(cfg config.GenAIConfig, log logger.Logger) *Client {
	return &Client{
		cfg: cfg,
		client: &http.Client{
			Timeout: time.Duration(cfg.Timeout) * time.Millisecond,
		},
		logger: log.With(map[string]interface{}{
			"component": serviceName,
		}),
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Complete sends one system+user prompt pair and returns the raw completion
// text. Transport failures and non-2xx statuses surface as SERVICE_ERROR
// after the configured bounded retry; retry lives here at the call boundary,
// never in orchestration logic.
func (c *Client) Complete(ctx context.Context, systemPrompt, userPrompt string, temperature float64) (string, error) {
	body, err := json.Marshal(chatRequest{
		Model: c.cfg.ChatModel,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userPrompt},
		},
		Temperature: temperature,
	})
	if err != nil {
		return "", errs.NewServiceError(serviceName, err)
	}

	var resp *http.Response
	var lastErr error

	for attempt := 0; attempt <= c.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(100*(1<<(attempt-1))) * time.Millisecond
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return "", errs.NewServiceError(serviceName, ctx.Err())
			}
		}

		req, reqErr := http.NewRequestWithContext(ctx, http.MethodPost,
			c.cfg.BaseURL+"/chat/completions", bytes.NewReader(body))
		if reqErr != nil {
			return "", errs.NewServiceError(serviceName, reqErr)
		}
		req.Header.Set("Content-Type", "application/json")
		if c.cfg.APIKey != "" {
			req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
		}

		resp, lastErr = c.client.Do(req)

		if ctx.Err() != nil {
			return "", errs.NewServiceError(serviceName, ctx.Err())
		}

		if lastErr == nil {
			if resp.StatusCode == http.StatusOK {
				break
			}
			resp.Body.Close()
			lastErr = fmt.Errorf("status %d", resp.StatusCode)
			resp = nil
		}
	}

	if lastErr != nil {
		return "", errs.NewServiceError(serviceName, lastErr)
	}
	if resp == nil {
		return "", errs.NewServiceError(serviceName, fmt.Errorf("no successful response after retries"))
	}
	defer resp.Body.Close()

	var parsed chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", errs.NewParseError("chat completion", err.Error())
	}
	if len(parsed.Choices) == 0 {
		return "", errs.NewGenerationError("completion returned no choices")
	}

	content := strings.TrimSpace(parsed.Choices[0].Message.Content)
	if content == "" {
		return "", errs.NewGenerationError("completion returned empty content")
	}

	c.logger.Debug("completion received", map[string]interface{}{
		"chars": len(content),
	})

	return content, nil
}
