// internal/common/vectorindex/http.go
package vectorindex

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"rag-pipelines/internal/common/config"
	errs "rag-pipelines/internal/common/errors"
	"rag-pipelines/internal/common/logger"
)

const httpServiceName = "vector-index"

// HTTPStore talks to a Pinecone-style serverless index over REST.
type HTTPStore struct {
	cfg    config.HTTPIndexConfig
	client *http.Client
	logger logger.Logger
}

func NewHTTPStore(cfg config.HTTPIndexConfig, log logger.Logger) *HTTPStore {
	return &HTTPStore{
		cfg: cfg,
		client: &http.Client{
			Timeout: time.Duration(cfg.Timeout) * time.Millisecond,
		},
		logger: log.With(map[string]interface{}{
			"component": httpServiceName,
		}),
	}
}

type upsertRequest struct {
	Vectors []wireVector `json:"vectors"`
}

type wireVector struct {
	ID       string            `json:"id"`
	Values   []float32         `json:"values"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

type queryRequest struct {
	Vector          []float32 `json:"vector"`
	TopK            int       `json:"topK"`
	IncludeMetadata bool      `json:"includeMetadata"`
}

type queryResponse struct {
	Matches []struct {
		ID       string            `json:"id"`
		Score    float64           `json:"score"`
		Metadata map[string]string `json:"metadata"`
	} `json:"matches"`
}

func (s *HTTPStore) Upsert(ctx context.Context, vectors []Vector) error {
	wire := make([]wireVector, len(vectors))
	for i, v := range vectors {
		wire[i] = wireVector{ID: v.ID, Values: v.Values, Metadata: v.Metadata}
	}

	var out json.RawMessage
	if err := s.post(ctx, "/vectors/upsert", upsertRequest{Vectors: wire}, &out); err != nil {
		return err
	}

	s.logger.Info("vectors upserted", map[string]interface{}{
		"count": len(vectors),
	})
	return nil
}

func (s *HTTPStore) Query(ctx context.Context, vector []float32, k int) ([]Match, error) {
	var parsed queryResponse
	err := s.post(ctx, "/query", queryRequest{
		Vector:          vector,
		TopK:            k,
		IncludeMetadata: true,
	}, &parsed)
	if err != nil {
		return nil, err
	}

	matches := make([]Match, len(parsed.Matches))
	for i, m := range parsed.Matches {
		matches[i] = Match{ID: m.ID, Score: m.Score, Metadata: m.Metadata}
	}
	return matches, nil
}

func (s *HTTPStore) post(ctx context.Context, path string, payload interface{}, out interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return errs.NewServiceError(httpServiceName, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return errs.NewServiceError(httpServiceName, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if s.cfg.APIKey != "" {
		req.Header.Set("Api-Key", s.cfg.APIKey)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return errs.NewServiceError(httpServiceName, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return errs.NewServiceError(httpServiceName, fmt.Errorf("%s returned status %d", path, resp.StatusCode))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errs.NewParseError("index response", err.Error())
	}
	return nil
}
