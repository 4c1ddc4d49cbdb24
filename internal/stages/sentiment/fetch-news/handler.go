// internal/stages/sentiment/fetch-news/handler.go
package fetchnews

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	errs "rag-pipelines/internal/common/errors"
	"rag-pipelines/internal/common/logger"
)

const (
	StageName = "fetch-news"

	// PlaceholderSource marks the synthetic item emitted on an empty feed.
	PlaceholderSource = "placeholder"
)

type Handler struct {
	config *Config
	client *http.Client
	logger logger.Logger
}

func NewHandler(config *Config, log logger.Logger) *Handler {
	return &Handler{
		config: config,
		client: &http.Client{
			Timeout: config.Timeout,
		},
		logger: log.With(map[string]interface{}{
			"stage": StageName,
		}),
	}
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	ticker := strings.TrimSpace(input.Ticker)
	if ticker == "" {
		return nil, errs.NewValidationError("ticker must not be empty", "")
	}

	limit := input.Limit
	if limit <= 0 {
		limit = h.config.MaxResults
	}

	params := url.Values{
		"symbol": {ticker},
		"limit":  {strconv.Itoa(limit)},
	}
	if h.config.LookbackDays > 0 {
		from := time.Now().UTC().AddDate(0, 0, -h.config.LookbackDays)
		params.Set("from", from.Format("2006-01-02"))
	}
	endpoint := fmt.Sprintf("%s/news?%s", h.config.BaseURL, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, errs.NewServiceError("news", err)
	}
	if h.config.APIKey != "" {
		req.Header.Set("X-Api-Key", h.config.APIKey)
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, errs.NewServiceError("news", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errs.NewServiceError("news", fmt.Errorf("feed returned status %d", resp.StatusCode))
	}

	var parsed struct {
		Articles []struct {
			Headline  string `json:"headline"`
			Source    string `json:"source"`
			Timestamp string `json:"timestamp"`
		} `json:"articles"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, errs.NewParseError("news feed response", err.Error())
	}

	items := make([]NewsItem, 0, len(parsed.Articles))
	for _, article := range parsed.Articles {
		if strings.TrimSpace(article.Headline) == "" {
			continue
		}
		items = append(items, NewsItem{
			Headline:  article.Headline,
			Source:    article.Source,
			Timestamp: article.Timestamp,
		})
	}

	if len(items) == 0 {
		h.logger.Warn("no news coverage, emitting placeholder", map[string]interface{}{
			"ticker": ticker,
		})
		items = append(items, NewsItem{
			Headline:    fmt.Sprintf("No significant news found for %s", ticker),
			Source:      PlaceholderSource,
			Placeholder: true,
		})
	}

	h.logger.Info("fetched news", map[string]interface{}{
		"ticker": ticker,
		"items":  len(items),
	})

	return &Output{Items: items}, nil
}
