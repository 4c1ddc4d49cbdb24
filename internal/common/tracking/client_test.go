// internal/common/tracking/client_test.go
package tracking

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rag-pipelines/internal/common/config"
	errs "rag-pipelines/internal/common/errors"
	"rag-pipelines/internal/common/logger"
)

func newTestTrackingClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	return NewClient(config.TrackingConfig{
		BaseURL:      server.URL,
		ExperimentID: "42",
		Timeout:      5000,
	}, logger.NewTestLogger(t))
}

func newTestTrackingClientByName(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	return NewClient(config.TrackingConfig{
		BaseURL:        server.URL,
		ExperimentName: "agentic-rag",
		Timeout:        5000,
	}, logger.NewTestLogger(t))
}

// ==========================
// StartRun Tests
// ==========================

func TestStartRun_Success(t *testing.T) {
	var captured map[string]interface{}
	client := newTestTrackingClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/2.0/mlflow/runs/create", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
		w.Write([]byte(`{"run": {"info": {"run_id": "abc123"}}}`))
	})

	runID, err := client.StartRun(context.Background(), "agentic_rag_20260830")

	require.NoError(t, err)
	assert.Equal(t, "abc123", runID)
	assert.Equal(t, "42", captured["experiment_id"])
	assert.Equal(t, "agentic_rag_20260830", captured["run_name"])
	assert.NotZero(t, captured["start_time"])
}

func TestStartRun_GeneratesNameWhenEmpty(t *testing.T) {
	var captured map[string]interface{}
	client := newTestTrackingClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
		w.Write([]byte(`{"run": {"info": {"run_id": "abc123"}}}`))
	})

	_, err := client.StartRun(context.Background(), "")

	require.NoError(t, err)
	name, _ := captured["run_name"].(string)
	assert.True(t, strings.HasPrefix(name, "run_"), "generated name: %s", name)
}

func TestStartRun_MissingRunID(t *testing.T) {
	client := newTestTrackingClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"run": {"info": {}}}`))
	})

	_, err := client.StartRun(context.Background(), "r")

	require.Error(t, err)
	assert.True(t, errs.HasCode(err, errs.ErrCodeService))
}

func TestStartRun_ServerError(t *testing.T) {
	client := newTestTrackingClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	_, err := client.StartRun(context.Background(), "r")

	require.Error(t, err)
	assert.True(t, errs.HasCode(err, errs.ErrCodeService))
	assert.True(t, errs.IsRetryable(err))
}

// ==========================
// Experiment Resolution Tests
// ==========================

func TestStartRun_ResolvesExperimentByName(t *testing.T) {
	var getByNameCalls int
	var captured map[string]interface{}
	client := newTestTrackingClientByName(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/2.0/mlflow/experiments/get-by-name":
			getByNameCalls++
			assert.Equal(t, "agentic-rag", r.URL.Query().Get("experiment_name"))
			w.Write([]byte(`{"experiment": {"experiment_id": "7"}}`))
		case "/api/2.0/mlflow/runs/create":
			require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
			w.Write([]byte(`{"run": {"info": {"run_id": "abc123"}}}`))
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	})

	_, err := client.StartRun(context.Background(), "r1")
	require.NoError(t, err)
	assert.Equal(t, "7", captured["experiment_id"])

	// The resolved ID is reused on later runs.
	_, err = client.StartRun(context.Background(), "r2")
	require.NoError(t, err)
	assert.Equal(t, 1, getByNameCalls)
}

func TestStartRun_CreatesMissingExperiment(t *testing.T) {
	var captured map[string]interface{}
	client := newTestTrackingClientByName(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/2.0/mlflow/experiments/get-by-name":
			w.WriteHeader(http.StatusNotFound)
		case "/api/2.0/mlflow/experiments/create":
			var body map[string]interface{}
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, "agentic-rag", body["name"])
			w.Write([]byte(`{"experiment_id": "13"}`))
		case "/api/2.0/mlflow/runs/create":
			require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
			w.Write([]byte(`{"run": {"info": {"run_id": "abc123"}}}`))
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	})

	runID, err := client.StartRun(context.Background(), "r1")

	require.NoError(t, err)
	assert.Equal(t, "abc123", runID)
	assert.Equal(t, "13", captured["experiment_id"])
}

func TestStartRun_PinnedExperimentIDSkipsResolution(t *testing.T) {
	client := newTestTrackingClient(t, func(w http.ResponseWriter, r *http.Request) {
		// A configured ID must never trigger name resolution.
		assert.Equal(t, "/api/2.0/mlflow/runs/create", r.URL.Path)
		w.Write([]byte(`{"run": {"info": {"run_id": "abc123"}}}`))
	})

	_, err := client.StartRun(context.Background(), "r")
	require.NoError(t, err)
}

// ==========================
// Param / Metric / Artifact Tests
// ==========================

func TestLogParamAndMetric(t *testing.T) {
	var paths []string
	var bodies []map[string]interface{}
	client := newTestTrackingClient(t, func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.Path)
		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		bodies = append(bodies, body)
		w.Write([]byte(`{}`))
	})

	require.NoError(t, client.LogParam(context.Background(), "abc123", "query", "what is caching"))
	require.NoError(t, client.LogMetric(context.Background(), "abc123", "avg_retrieval_score", 0.84))

	require.Len(t, paths, 2)
	assert.Equal(t, "/api/2.0/mlflow/runs/log-parameter", paths[0])
	assert.Equal(t, "/api/2.0/mlflow/runs/log-metric", paths[1])

	assert.Equal(t, "abc123", bodies[0]["run_id"])
	assert.Equal(t, "query", bodies[0]["key"])
	assert.Equal(t, "what is caching", bodies[0]["value"])

	assert.Equal(t, "avg_retrieval_score", bodies[1]["key"])
	assert.Equal(t, 0.84, bodies[1]["value"])
	assert.NotZero(t, bodies[1]["timestamp"])
}

func TestLogArtifact(t *testing.T) {
	var captured []byte
	client := newTestTrackingClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "/api/2.0/mlflow-artifacts/artifacts/abc123/final_answer.txt", r.URL.Path)
		assert.Equal(t, "application/octet-stream", r.Header.Get("Content-Type"))
		captured, _ = io.ReadAll(r.Body)
	})

	err := client.LogArtifact(context.Background(), "abc123", "final_answer.txt", []byte("the answer"))

	require.NoError(t, err)
	assert.Equal(t, "the answer", string(captured))
}

func TestLogArtifact_ServerError(t *testing.T) {
	client := newTestTrackingClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	})

	err := client.LogArtifact(context.Background(), "abc123", "a.txt", []byte("x"))

	require.Error(t, err)
	assert.True(t, errs.HasCode(err, errs.ErrCodeService))
}

// ==========================
// EndRun Tests
// ==========================

func TestEndRun(t *testing.T) {
	var captured map[string]interface{}
	client := newTestTrackingClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/2.0/mlflow/runs/update", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
		w.Write([]byte(`{}`))
	})

	require.NoError(t, client.EndRun(context.Background(), "abc123", "FINISHED"))

	assert.Equal(t, "abc123", captured["run_id"])
	assert.Equal(t, "FINISHED", captured["status"])
	assert.NotZero(t, captured["end_time"])
}
