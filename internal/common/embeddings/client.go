// internal/common/embeddings/client.go
package embeddings

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"

	"rag-pipelines/internal/common/config"
	errs "rag-pipelines/internal/common/errors"
	"rag-pipelines/internal/common/logger"
)

const serviceName = "embeddings"

// Client calls an OpenAI-compatible embeddings endpoint. Vectors carry the
// fixed dimensionality configured at construction time; a response of any
// other dimension is rejected.
//
// An optional Redis cache fronts the endpoint. Cache failures never abort an
// embedding call; they degrade to a direct request.
type Client struct {
	cfg    config.GenAIConfig
	client *http.Client
	cache  *redis.Client
	ttl    time.Duration
	logger logger.Logger
}

func NewClient(cfg config.GenAIConfig, cache *redis.Client, ttl time.Duration, log logger.Logger) *Client {
	return &Client{
		cfg: cfg,
		client: &http.Client{
			Timeout: time.Duration(cfg.Timeout) * time.Millisecond,
		},
		cache: cache,
		ttl:   ttl,
		logger: log.With(map[string]interface{}{
			"component": serviceName,
		}),
	}
}

type embeddingRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embeddingResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

// EmbedQuery embeds a single free-text query.
func (c *Client) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, errs.NewValidationError("empty embedding input", "")
	}

	if cached, ok := c.cacheGet(ctx, text); ok {
		return cached, nil
	}

	vectors, err := c.embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}

	c.cacheSet(ctx, text, vectors[0])
	return vectors[0], nil
}

// Embed embeds a batch of texts, preserving order. Batch calls bypass the
// cache; they only happen during one-off indexing.
func (c *Client) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, errs.NewValidationError("empty embedding batch", "")
	}
	return c.embed(ctx, texts)
}

func (c *Client) embed(ctx context.Context, texts []string) ([][]float32, error) {
	body, err := json.Marshal(embeddingRequest{
		Model: c.cfg.EmbeddingModel,
		Input: texts,
	})
	if err != nil {
		return nil, errs.NewServiceError(serviceName, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.cfg.BaseURL+"/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, errs.NewServiceError(serviceName, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, errs.NewServiceError(serviceName, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errs.NewServiceError(serviceName, fmt.Errorf("status %d", resp.StatusCode))
	}

	var parsed embeddingResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, errs.NewParseError("embedding response", err.Error())
	}
	if len(parsed.Data) != len(texts) {
		return nil, errs.NewServiceError(serviceName,
			fmt.Errorf("expected %d embeddings, got %d", len(texts), len(parsed.Data)))
	}

	out := make([][]float32, len(parsed.Data))
	for i, d := range parsed.Data {
		if len(d.Embedding) != c.cfg.EmbeddingDimension {
			return nil, errs.NewServiceError(serviceName,
				fmt.Errorf("expected embedding dimension %d, got %d", c.cfg.EmbeddingDimension, len(d.Embedding)))
		}
		out[i] = d.Embedding
	}

	return out, nil
}

func (c *Client) cacheKey(text string) string {
	sum := sha256.Sum256([]byte(text))
	return fmt.Sprintf("emb:%s:%s", c.cfg.EmbeddingModel, hex.EncodeToString(sum[:]))
}

func (c *Client) cacheGet(ctx context.Context, text string) ([]float32, bool) {
	if c.cache == nil {
		return nil, false
	}

	raw, err := c.cache.Get(ctx, c.cacheKey(text)).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.logger.Warn("embedding cache read failed", map[string]interface{}{
				"error": err.Error(),
			})
		}
		return nil, false
	}

	var vector []float32
	if err := json.Unmarshal(raw, &vector); err != nil || len(vector) != c.cfg.EmbeddingDimension {
		return nil, false
	}
	return vector, true
}

func (c *Client) cacheSet(ctx context.Context, text string, vector []float32) {
	if c.cache == nil {
		return
	}

	raw, err := json.Marshal(vector)
	if err != nil {
		return
	}
	if err := c.cache.Set(ctx, c.cacheKey(text), raw, c.ttl).Err(); err != nil {
		c.logger.Warn("embedding cache write failed", map[string]interface{}{
			"error": err.Error(),
		})
	}
}
