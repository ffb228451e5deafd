package client

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"time"

	"github.com/makeasinger/stemsplit/internal/audio"
	"github.com/makeasinger/stemsplit/internal/config"
)

// Separator splits a canonical stereo waveform into named stems at the
// model's sample rate.
type Separator interface {
	Separate(ctx context.Context, w audio.Waveform, device string) (map[string]audio.Waveform, error)
	SampleRate() int
	Info(ctx context.Context) SeparatorInfo
}

// SeparatorInfo describes the loaded model.
type SeparatorInfo struct {
	ModelLoaded bool     `json:"model_loaded"`
	Model       string   `json:"model"`
	SampleRate  int      `json:"sample_rate"`
	Sources     []string `json:"sources"`
	Device      string   `json:"device"`
}

// separateResponse is the model service reply: each stem as a base64 WAV.
type separateResponse struct {
	SampleRate int               `json:"sample_rate"`
	Stems      map[string]string `json:"stems"`
}

// SeparatorClient implements Separator for the model microservice
type SeparatorClient struct {
	httpClient *http.Client
	baseURL    string
	sampleRate int
	device     string
}

// NewSeparatorClient creates a new separation model client
func NewSeparatorClient(cfg *config.SeparatorConfig) *SeparatorClient {
	return &SeparatorClient{
		httpClient: &http.Client{
			Timeout: time.Duration(cfg.Timeout) * time.Second,
		},
		baseURL:    cfg.ServiceURL,
		sampleRate: cfg.SampleRate,
		device:     cfg.Device,
	}
}

// NewSeparator returns the HTTP separator when it is configured and mocking
// is off, and the mock otherwise. mocked reports which one was chosen.
func NewSeparator(cfg *config.SeparatorConfig) (sep Separator, mocked bool) {
	if !cfg.Mock {
		if c := NewSeparatorClient(cfg); c.IsConfigured() {
			return c, false
		}
	}
	return NewMockSeparator(cfg.SampleRate, cfg.Model, cfg.Device), true
}

func (c *SeparatorClient) SampleRate() int {
	return c.sampleRate
}

// Separate uploads the waveform as WAV and decodes the returned stems.
func (c *SeparatorClient) Separate(ctx context.Context, w audio.Waveform, device string) (map[string]audio.Waveform, error) {
	if w.SampleRate != c.sampleRate {
		return nil, fmt.Errorf("separator expects %d Hz, got %d Hz", c.sampleRate, w.SampleRate)
	}
	if device == "" {
		device = c.device
	}

	wavBytes, err := audio.EncodePCM16(w)
	if err != nil {
		return nil, fmt.Errorf("failed to encode input: %w", err)
	}

	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)
	part, err := mw.CreateFormFile("audio", "input.wav")
	if err != nil {
		return nil, fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := part.Write(wavBytes); err != nil {
		return nil, fmt.Errorf("failed to write form file: %w", err)
	}
	_ = mw.WriteField("sample_rate", strconv.Itoa(w.SampleRate))
	_ = mw.WriteField("device", device)
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("failed to finalize form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/separate", body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	var result separateResponse
	if err := c.do(req, &result); err != nil {
		return nil, err
	}
	if len(result.Stems) == 0 {
		return nil, fmt.Errorf("separator returned no stems")
	}

	stems := make(map[string]audio.Waveform, len(result.Stems))
	for name, encoded := range result.Stems {
		raw, err := base64.StdEncoding.DecodeString(encoded)
		if err != nil {
			return nil, fmt.Errorf("stem %q: invalid base64: %w", name, err)
		}
		wave, err := audio.DecodeWAV(raw)
		if err != nil {
			return nil, fmt.Errorf("stem %q: %w", name, err)
		}
		stems[name] = wave
	}
	return stems, nil
}

// Info reports the model status; an unreachable service reports not loaded.
func (c *SeparatorClient) Info(ctx context.Context) SeparatorInfo {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return SeparatorInfo{Device: c.device, SampleRate: c.sampleRate}
	}
	var info SeparatorInfo
	if err := c.do(req, &info); err != nil {
		return SeparatorInfo{Device: c.device, SampleRate: c.sampleRate}
	}
	return info
}

// IsConfigured returns true if the client has valid configuration
func (c *SeparatorClient) IsConfigured() bool {
	return c.baseURL != ""
}

func (c *SeparatorClient) do(req *http.Request, result interface{}) error {
	return doJSON(c.httpClient, "separator", req, result)
}

// doJSON sends req and parses a 2xx JSON response into result.
func doJSON(hc *http.Client, service string, req *http.Request, result interface{}) error {
	resp, err := hc.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%s service error (status %d): %s", service, resp.StatusCode, string(respBody))
	}

	if err := json.Unmarshal(respBody, result); err != nil {
		return fmt.Errorf("failed to unmarshal response: %w", err)
	}
	return nil
}
