// internal/common/embeddings/client_test.go
package embeddings

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redismock/v9"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rag-pipelines/internal/common/config"
	errs "rag-pipelines/internal/common/errors"
	"rag-pipelines/internal/common/logger"
)

// ==========================
// Test Helpers
// ==========================

func testConfig(baseURL string) config.GenAIConfig {
	return config.GenAIConfig{
		BaseURL:            baseURL,
		APIKey:             "test-key",
		EmbeddingModel:     "text-embedding-3-small",
		EmbeddingDimension: 3,
		Timeout:            5000,
	}
}

// embeddingServer returns one fixed vector per input and counts calls.
func embeddingServer(t *testing.T, calls *int) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*calls++

		assert.Equal(t, "/embeddings", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req struct {
			Model string   `json:"model"`
			Input []string `json:"input"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "text-embedding-3-small", req.Model)

		type datum struct {
			Embedding []float32 `json:"embedding"`
		}
		data := make([]datum, len(req.Input))
		for i := range req.Input {
			data[i] = datum{Embedding: []float32{0.1, 0.2, float32(i)}}
		}
		json.NewEncoder(w).Encode(map[string]interface{}{"data": data})
	}))
}

func testCache(t *testing.T) *redis.Client {
	t.Helper()
	mr := miniredis.RunT(t)
	return redis.NewClient(&redis.Options{Addr: mr.Addr()})
}

// ==========================
// EmbedQuery Tests
// ==========================

func TestEmbedQuery_Success(t *testing.T) {
	var calls int
	server := embeddingServer(t, &calls)
	defer server.Close()

	client := NewClient(testConfig(server.URL), nil, 0, logger.NewTestLogger(t))

	vector, err := client.EmbedQuery(context.Background(), "what is caching")

	require.NoError(t, err)
	assert.Equal(t, []float32{0.1, 0.2, 0}, vector)
	assert.Equal(t, 1, calls)
}

func TestEmbedQuery_EmptyInput(t *testing.T) {
	client := NewClient(testConfig("http://unused"), nil, 0, logger.NewTestLogger(t))

	_, err := client.EmbedQuery(context.Background(), "")

	require.Error(t, err)
	assert.True(t, errs.HasCode(err, errs.ErrCodeValidation))
}

func TestEmbedQuery_CacheHitSkipsEndpoint(t *testing.T) {
	var calls int
	server := embeddingServer(t, &calls)
	defer server.Close()

	cache := testCache(t)
	client := NewClient(testConfig(server.URL), cache, time.Hour, logger.NewTestLogger(t))

	first, err := client.EmbedQuery(context.Background(), "what is caching")
	require.NoError(t, err)
	require.Equal(t, 1, calls)

	second, err := client.EmbedQuery(context.Background(), "what is caching")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, calls, "second call should be served from cache")
}

func TestEmbedQuery_CacheWriteUsesConfiguredTTL(t *testing.T) {
	var calls int
	server := embeddingServer(t, &calls)
	defer server.Close()

	db, mock := redismock.NewClientMock()
	sum := sha256.Sum256([]byte("what is caching"))
	key := "emb:text-embedding-3-small:" + hex.EncodeToString(sum[:])

	mock.ExpectGet(key).RedisNil()
	mock.ExpectSet(key, []byte("[0.1,0.2,0]"), 30*time.Minute).SetVal("OK")

	client := NewClient(testConfig(server.URL), db, 30*time.Minute, logger.NewTestLogger(t))

	_, err := client.EmbedQuery(context.Background(), "what is caching")

	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEmbedQuery_CacheFailureDegradesToDirectCall(t *testing.T) {
	var calls int
	server := embeddingServer(t, &calls)
	defer server.Close()

	mr := miniredis.RunT(t)
	cache := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	mr.Close() // cache is unreachable from here on

	client := NewClient(testConfig(server.URL), cache, time.Hour, logger.NewTestLogger(t))

	vector, err := client.EmbedQuery(context.Background(), "what is caching")

	require.NoError(t, err)
	assert.Len(t, vector, 3)
	assert.Equal(t, 1, calls)
}

func TestEmbedQuery_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	client := NewClient(testConfig(server.URL), nil, 0, logger.NewTestLogger(t))

	_, err := client.EmbedQuery(context.Background(), "what is caching")

	require.Error(t, err)
	assert.True(t, errs.HasCode(err, errs.ErrCodeService))
	assert.True(t, errs.IsRetryable(err))
}

func TestEmbedQuery_WrongDimension(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"data": []map[string]interface{}{
				{"embedding": []float32{0.1, 0.2}},
			},
		})
	}))
	defer server.Close()

	client := NewClient(testConfig(server.URL), nil, 0, logger.NewTestLogger(t))

	_, err := client.EmbedQuery(context.Background(), "what is caching")

	require.Error(t, err)
	assert.True(t, errs.HasCode(err, errs.ErrCodeService))
}

// ==========================
// Embed Batch Tests
// ==========================

func TestEmbed_Batch(t *testing.T) {
	var calls int
	server := embeddingServer(t, &calls)
	defer server.Close()

	client := NewClient(testConfig(server.URL), nil, 0, logger.NewTestLogger(t))

	vectors, err := client.Embed(context.Background(), []string{"a", "b", "c"})

	require.NoError(t, err)
	require.Len(t, vectors, 3)
	assert.Equal(t, []float32{0.1, 0.2, 2}, vectors[2])
	assert.Equal(t, 1, calls, "a batch is a single request")
}

func TestEmbed_EmptyBatch(t *testing.T) {
	client := NewClient(testConfig("http://unused"), nil, 0, logger.NewTestLogger(t))

	_, err := client.Embed(context.Background(), nil)

	require.Error(t, err)
	assert.True(t, errs.HasCode(err, errs.ErrCodeValidation))
}

func TestEmbed_CountMismatch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"data": []map[string]interface{}{
				{"embedding": []float32{0.1, 0.2, 0.3}},
			},
		})
	}))
	defer server.Close()

	client := NewClient(testConfig(server.URL), nil, 0, logger.NewTestLogger(t))

	_, err := client.Embed(context.Background(), []string{"a", "b"})

	require.Error(t, err)
	assert.True(t, errs.HasCode(err, errs.ErrCodeService))
}
