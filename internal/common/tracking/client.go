// internal/common/tracking/client.go
package tracking

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"

	"rag-pipelines/internal/common/config"
	errs "rag-pipelines/internal/common/errors"
	"rag-pipelines/internal/common/logger"
)

const serviceName = "tracking"

// Client records runs against an MLflow-compatible REST tracking server.
// Every method returns an error, but callers treat tracking as best-effort:
// run loggers swallow and Warn, never abort a pipeline.
type Client struct {
	cfg    config.TrackingConfig
	client *http.Client
	logger logger.Logger

	mu           sync.Mutex
	experimentID string
}

func NewClient(cfg config.TrackingConfig, log logger.Logger) *Client {
	return &Client{
		cfg:          cfg,
		experimentID: cfg.ExperimentID,
		client: &http.Client{
			Timeout: time.Duration(cfg.Timeout) * time.Millisecond,
		},
		logger: log.With(map[string]interface{}{
			"component": serviceName,
		}),
	}
}

// StartRun creates a run and returns its ID. When runName is empty a
// timestamped name is generated, matching the tracking UI convention.
func (c *Client) StartRun(ctx context.Context, runName string) (string, error) {
	if runName == "" {
		runName = fmt.Sprintf("run_%s_%s", time.Now().UTC().Format("20060102_150405"), uuid.NewString()[:8])
	}

	experimentID, err := c.experiment(ctx)
	if err != nil {
		return "", err
	}

	payload := map[string]interface{}{
		"experiment_id": experimentID,
		"run_name":      runName,
		"start_time":    time.Now().UnixMilli(),
	}

	var parsed struct {
		Run struct {
			Info struct {
				RunID string `json:"run_id"`
			} `json:"info"`
		} `json:"run"`
	}
	if err := c.post(ctx, "/api/2.0/mlflow/runs/create", payload, &parsed); err != nil {
		return "", err
	}
	if parsed.Run.Info.RunID == "" {
		return "", errs.NewServiceError(serviceName, fmt.Errorf("runs/create returned no run_id"))
	}

	return parsed.Run.Info.RunID, nil
}

// experiment returns the experiment ID runs are recorded under. When
// the configuration names an experiment instead of pinning an ID, the
// name is resolved against the server on first use and the experiment
// is created if it does not exist yet.
func (c *Client) experiment(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.experimentID != "" {
		return c.experimentID, nil
	}

	id, found, err := c.getExperimentByName(ctx, c.cfg.ExperimentName)
	if err != nil {
		return "", err
	}
	if !found {
		id, err = c.createExperiment(ctx, c.cfg.ExperimentName)
		if err != nil {
			return "", err
		}
	}

	c.experimentID = id
	return id, nil
}

func (c *Client) getExperimentByName(ctx context.Context, name string) (string, bool, error) {
	endpoint := fmt.Sprintf("%s/api/2.0/mlflow/experiments/get-by-name?experiment_name=%s", c.cfg.BaseURL, url.QueryEscape(name))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", false, errs.NewServiceError(serviceName, err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return "", false, errs.NewServiceError(serviceName, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return "", false, nil
	}
	if resp.StatusCode != http.StatusOK {
		return "", false, errs.NewServiceError(serviceName, fmt.Errorf("experiments/get-by-name returned status %d", resp.StatusCode))
	}

	var parsed struct {
		Experiment struct {
			ExperimentID string `json:"experiment_id"`
		} `json:"experiment"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", false, errs.NewParseError("tracking response", err.Error())
	}
	if parsed.Experiment.ExperimentID == "" {
		return "", false, errs.NewServiceError(serviceName, fmt.Errorf("experiments/get-by-name returned no experiment_id"))
	}
	return parsed.Experiment.ExperimentID, true, nil
}

func (c *Client) createExperiment(ctx context.Context, name string) (string, error) {
	var parsed struct {
		ExperimentID string `json:"experiment_id"`
	}
	if err := c.post(ctx, "/api/2.0/mlflow/experiments/create", map[string]interface{}{
		"name": name,
	}, &parsed); err != nil {
		return "", err
	}
	if parsed.ExperimentID == "" {
		return "", errs.NewServiceError(serviceName, fmt.Errorf("experiments/create returned no experiment_id"))
	}

	c.logger.Info("created tracking experiment", map[string]interface{}{
		"name":         name,
		"experimentId": parsed.ExperimentID,
	})
	return parsed.ExperimentID, nil
}

func (c *Client) LogParam(ctx context.Context, runID, key, value string) error {
	return c.post(ctx, "/api/2.0/mlflow/runs/log-parameter", map[string]interface{}{
		"run_id": runID,
		"key":    key,
		"value":  value,
	}, nil)
}

func (c *Client) LogMetric(ctx context.Context, runID, key string, value float64) error {
	return c.post(ctx, "/api/2.0/mlflow/runs/log-metric", map[string]interface{}{
		"run_id":    runID,
		"key":       key,
		"value":     value,
		"timestamp": time.Now().UnixMilli(),
	}, nil)
}

// LogArtifact uploads a named artifact through the mlflow-artifacts REST
// proxy.
func (c *Client) LogArtifact(ctx context.Context, runID, name string, payload []byte) error {
	url := fmt.Sprintf("%s/api/2.0/mlflow-artifacts/artifacts/%s/%s", c.cfg.BaseURL, runID, name)

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, url, bytes.NewReader(payload))
	if err != nil {
		return errs.NewServiceError(serviceName, err)
	}
	req.Header.Set("Content-Type", "application/octet-stream")

	resp, err := c.client.Do(req)
	if err != nil {
		return errs.NewServiceError(serviceName, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return errs.NewServiceError(serviceName, fmt.Errorf("artifact upload returned status %d", resp.StatusCode))
	}
	return nil
}

// EndRun marks the run FINISHED (or FAILED).
func (c *Client) EndRun(ctx context.Context, runID, status string) error {
	return c.post(ctx, "/api/2.0/mlflow/runs/update", map[string]interface{}{
		"run_id":   runID,
		"status":   status,
		"end_time": time.Now().UnixMilli(),
	}, nil)
}

func (c *Client) post(ctx context.Context, path string, payload interface{}, out interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return errs.NewServiceError(serviceName, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return errs.NewServiceError(serviceName, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return errs.NewServiceError(serviceName, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return errs.NewServiceError(serviceName, fmt.Errorf("%s returned status %d", path, resp.StatusCode))
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return errs.NewParseError("tracking response", err.Error())
		}
	}
	return nil
}
