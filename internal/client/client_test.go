package client

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/makeasinger/stemsplit/internal/audio"
	"github.com/makeasinger/stemsplit/internal/config"
	"github.com/makeasinger/stemsplit/internal/model"
)

func stereo(rate, frames int, v float64) audio.Waveform {
	w := audio.NewWaveform(rate, 2, frames)
	for _, ch := range w.Channels {
		for i := range ch {
			ch[i] = v
		}
	}
	return w
}

func TestFoldTempo(t *testing.T) {
	tests := []struct {
		name      string
		estimates []float64
		expected  float64
		ok        bool
	}{
		{"agreeing estimates", []float64{120, 120}, 120, true},
		{"half-time estimate folds up", []float64{128, 64}, 128, true},
		{"single estimate keeps itself", []float64{100}, 100, true},
		{"out of range keeps first", []float64{20}, 20, true},
		{"no estimates", nil, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := FoldTempo(tt.estimates)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestMockSeparator_StemsSumToInput(t *testing.T) {
	sep := NewMockSeparator(44100, "htdemucs", "cpu")
	in := stereo(44100, 32, 0.8)

	stems, err := sep.Separate(context.Background(), in, "")
	require.NoError(t, err)
	require.Len(t, stems, 4)

	tracks := make([]audio.Track, 0, len(stems))
	for name, w := range stems {
		tracks = append(tracks, audio.Track{Name: name, Gain: 1, Wave: w})
	}
	sum, err := audio.Mix(tracks)
	require.NoError(t, err)
	assert.InDelta(t, 0.8, sum.Channels[0][10], 1e-12)

	// the input itself is untouched
	assert.Equal(t, 0.8, in.Channels[0][0])
}

func TestMockSeparator_SixStems(t *testing.T) {
	sep := NewMockSeparator(44100, "htdemucs_6s", "cpu")
	info := sep.Info(context.Background())
	assert.True(t, info.ModelLoaded)
	assert.Len(t, info.Sources, 6)
	assert.Contains(t, info.Sources, model.StemPiano)
}

func TestMockSeparator_RejectsWrongRate(t *testing.T) {
	sep := NewMockSeparator(44100, "htdemucs", "cpu")
	_, err := sep.Separate(context.Background(), stereo(48000, 8, 0.1), "")
	assert.Error(t, err)
}

func TestSeparatorClient_Separate(t *testing.T) {
	stem, err := audio.EncodePCM16(stereo(44100, 16, 0.25))
	require.NoError(t, err)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/separate", r.URL.Path)
		assert.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "44100", r.FormValue("sample_rate"))
		assert.Equal(t, "cuda", r.FormValue("device"))
		_, _, err := r.FormFile("audio")
		assert.NoError(t, err)

		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"sample_rate": 44100,
			"stems": map[string]string{
				"vocals": base64.StdEncoding.EncodeToString(stem),
				"drums":  base64.StdEncoding.EncodeToString(stem),
			},
		})
	}))
	defer srv.Close()

	c := NewSeparatorClient(&config.SeparatorConfig{ServiceURL: srv.URL, Timeout: 5, SampleRate: 44100, Device: "cpu"})
	stems, err := c.Separate(context.Background(), stereo(44100, 16, 0.5), "cuda")
	require.NoError(t, err)
	require.Len(t, stems, 2)
	assert.InDelta(t, 0.25, stems["vocals"].Channels[1][3], 1.0/32768)
}

func TestSeparatorClient_ServiceError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "out of memory", http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewSeparatorClient(&config.SeparatorConfig{ServiceURL: srv.URL, Timeout: 5, SampleRate: 44100})
	_, err := c.Separate(context.Background(), stereo(44100, 16, 0.5), "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "out of memory")
}

func TestSeparatorClient_InfoUnreachable(t *testing.T) {
	c := NewSeparatorClient(&config.SeparatorConfig{ServiceURL: "http://127.0.0.1:1", Timeout: 1, SampleRate: 44100, Device: "cpu"})
	info := c.Info(context.Background())
	assert.False(t, info.ModelLoaded)
	assert.Equal(t, "cpu", info.Device)
}

func TestNewSeparator(t *testing.T) {
	tests := []struct {
		name       string
		cfg        config.SeparatorConfig
		wantMocked bool
	}{
		{"service configured", config.SeparatorConfig{ServiceURL: "http://separator:8000"}, false},
		{"mock forced", config.SeparatorConfig{ServiceURL: "http://separator:8000", Mock: true}, true},
		{"no service url", config.SeparatorConfig{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.cfg.SampleRate = 44100
			tt.cfg.Model = "htdemucs"
			sep, mocked := NewSeparator(&tt.cfg)
			assert.Equal(t, tt.wantMocked, mocked)
			if tt.wantMocked {
				assert.IsType(t, &MockSeparator{}, sep)
			} else {
				assert.IsType(t, &SeparatorClient{}, sep)
			}
			assert.Equal(t, 44100, sep.SampleRate())
		})
	}
}

func TestAnalyzerClient_Analyze(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/analyze", r.URL.Path)
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"key":             "A",
			"scale":           "minor",
			"tempo_estimates": []float64{127.6, 63.9},
			"duration":        183.04,
		})
	}))
	defer srv.Close()

	path := filepath.Join(t.TempDir(), "in.wav")
	require.NoError(t, os.WriteFile(path, []byte("RIFF"), 0o600))

	c := NewAnalyzerClient(&config.AnalyzerConfig{ServiceURL: srv.URL, Timeout: 5})
	a, err := c.Analyze(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, model.Analyzed("A MINOR", 128, 183), a)
}

func TestAnalyzerClient_NotConfigured(t *testing.T) {
	c := NewAnalyzerClient(&config.AnalyzerConfig{})
	a, err := c.Analyze(context.Background(), "/nope")
	assert.ErrorIs(t, err, ErrAnalyzerNotConfigured)
	assert.False(t, a.Available)
}
