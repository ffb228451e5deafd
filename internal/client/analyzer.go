package client

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/makeasinger/stemsplit/internal/config"
	"github.com/makeasinger/stemsplit/internal/model"
)

// ErrAnalyzerNotConfigured is returned when no estimator service is set.
var ErrAnalyzerNotConfigured = errors.New("analyzer not configured")

// Analyzer estimates key, tempo and duration of an audio file.
type Analyzer interface {
	Analyze(ctx context.Context, path string) (model.Analysis, error)
}

// analyzeResponse carries raw estimates; tempo folding happens client side.
type analyzeResponse struct {
	Key            string    `json:"key"`
	Scale          string    `json:"scale"`
	TempoEstimates []float64 `json:"tempo_estimates"`
	Duration       float64   `json:"duration"`
}

// AnalyzerClient implements Analyzer for the estimator microservice
type AnalyzerClient struct {
	httpClient *http.Client
	baseURL    string
}

// NewAnalyzerClient creates a new analysis client
func NewAnalyzerClient(cfg *config.AnalyzerConfig) *AnalyzerClient {
	return &AnalyzerClient{
		httpClient: &http.Client{
			Timeout: time.Duration(cfg.Timeout) * time.Second,
		},
		baseURL: cfg.ServiceURL,
	}
}

// Analyze uploads the file at path and folds the returned tempo estimates.
func (c *AnalyzerClient) Analyze(ctx context.Context, path string) (model.Analysis, error) {
	if !c.IsConfigured() {
		return model.Unavailable(), ErrAnalyzerNotConfigured
	}

	f, err := os.Open(path)
	if err != nil {
		return model.Unavailable(), fmt.Errorf("failed to open input: %w", err)
	}
	defer f.Close()

	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)
	part, err := mw.CreateFormFile("audio", filepath.Base(path))
	if err != nil {
		return model.Unavailable(), fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := io.Copy(part, f); err != nil {
		return model.Unavailable(), fmt.Errorf("failed to write form file: %w", err)
	}
	if err := mw.Close(); err != nil {
		return model.Unavailable(), fmt.Errorf("failed to finalize form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/analyze", body)
	if err != nil {
		return model.Unavailable(), fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	var result analyzeResponse
	if err := doJSON(c.httpClient, "analyzer", req, &result); err != nil {
		return model.Unavailable(), err
	}

	bpm, ok := FoldTempo(result.TempoEstimates)
	if !ok || result.Key == "" {
		return model.Unavailable(), fmt.Errorf("analyzer returned incomplete result")
	}
	key := result.Key
	if result.Scale != "" {
		key = fmt.Sprintf("%s %s", result.Key, strings.ToUpper(result.Scale))
	}
	return model.Analyzed(key, bpm, result.Duration), nil
}

// IsConfigured returns true if the client has valid configuration
func (c *AnalyzerClient) IsConfigured() bool {
	return c.baseURL != ""
}

// HealthCheck checks if the analyzer service is available
func (c *AnalyzerClient) HealthCheck(ctx context.Context) error {
	if !c.IsConfigured() {
		return ErrAnalyzerNotConfigured
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("analyzer service unhealthy: status %d", resp.StatusCode)
	}
	return nil
}
