// internal/common/vectorindex/http_test.go
package vectorindex

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

func newTestHTTPStore(t *testing.T, handler http.HandlerFunc) (*HTTPStore, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	store := NewHTTPStore(config.HTTPIndexConfig{
		BaseURL: server.URL,
		APIKey:  "index-key",
		Timeout: 5000,
	}, logger.NewTestLogger(t))
	return store, server
}

// ==========================
// Upsert Tests
// ==========================

func TestHTTPStore_Upsert(t *testing.T) {
	var captured upsertRequest
	store, _ := newTestHTTPStore(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/vectors/upsert", r.URL.Path)
		assert.Equal(t, "index-key", r.Header.Get("Api-Key"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
		json.NewEncoder(w).Encode(map[string]int{"upsertedCount": 2})
	})

	err := store.Upsert(context.Background(), []Vector{
		{ID: "KB001", Values: []float32{0.1, 0.2}, Metadata: map[string]string{"question": "q1"}},
		{ID: "KB002", Values: []float32{0.3, 0.4}},
	})

	require.NoError(t, err)
	require.Len(t, captured.Vectors, 2)
	assert.Equal(t, "KB001", captured.Vectors[0].ID)
	assert.Equal(t, "q1", captured.Vectors[0].Metadata["question"])
	assert.Nil(t, captured.Vectors[1].Metadata)
}

func TestHTTPStore_UpsertServerError(t *testing.T) {
	store, _ := newTestHTTPStore(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	err := store.Upsert(context.Background(), []Vector{{ID: "KB001"}})

	require.Error(t, err)
	assert.True(t, errs.HasCode(err, errs.ErrCodeService))
	assert.True(t, errs.IsRetryable(err))
}

// ==========================
// Query Tests
// ==========================

func TestHTTPStore_Query(t *testing.T) {
	var captured queryRequest
	store, _ := newTestHTTPStore(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/query", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
		json.NewEncoder(w).Encode(map[string]interface{}{
			"matches": []map[string]interface{}{
				{"id": "KB003", "score": 0.91, "metadata": map[string]string{"question": "q3"}},
				{"id": "KB001", "score": 0.74},
			},
		})
	})

	matches, err := store.Query(context.Background(), []float32{0.5, 0.6}, 5)

	require.NoError(t, err)
	assert.Equal(t, 5, captured.TopK)
	assert.True(t, captured.IncludeMetadata)
	assert.Equal(t, []float32{0.5, 0.6}, captured.Vector)

	require.Len(t, matches, 2)
	assert.Equal(t, "KB003", matches[0].ID)
	assert.Equal(t, 0.91, matches[0].Score)
	assert.Equal(t, "q3", matches[0].Metadata["question"])
}

func TestHTTPStore_QueryMalformedResponse(t *testing.T) {
	store, _ := newTestHTTPStore(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("not json"))
	})

	_, err := store.Query(context.Background(), []float32{0.1}, 3)

	require.Error(t, err)
	assert.True(t, errs.HasCode(err, errs.ErrCodeParse))
}
