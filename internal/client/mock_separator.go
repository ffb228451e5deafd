package client

import (
	"context"
	"fmt"

	"github.com/makeasinger/stemsplit/internal/audio"
	"github.com/makeasinger/stemsplit/internal/model"
)

// Source sets of the supported model variants.
var (
	FourStemSources = []string{model.StemVocals, model.StemDrums, model.StemBass, model.StemOther}
	SixStemSources  = []string{model.StemVocals, model.StemDrums, model.StemBass, model.StemGuitar, model.StemPiano, model.StemOther}
)

// SourcesForModel returns the stems a model variant produces.
func SourcesForModel(name string) []string {
	if name == "htdemucs_6s" {
		return SixStemSources
	}
	return FourStemSources
}

// MockSeparator stands in for the model service in development and tests.
// It splits the input evenly across its sources, so summing the stems
// reconstructs the input.
type MockSeparator struct {
	sampleRate int
	model      string
	sources    []string
	device     string
}

func NewMockSeparator(sampleRate int, modelName, device string) *MockSeparator {
	return &MockSeparator{
		sampleRate: sampleRate,
		model:      modelName,
		sources:    SourcesForModel(modelName),
		device:     device,
	}
}

func (m *MockSeparator) SampleRate() int {
	return m.sampleRate
}

func (m *MockSeparator) Separate(ctx context.Context, w audio.Waveform, _ string) (map[string]audio.Waveform, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if w.SampleRate != m.sampleRate {
		return nil, fmt.Errorf("separator expects %d Hz, got %d Hz", m.sampleRate, w.SampleRate)
	}
	if w.NumFrames() == 0 {
		return nil, audio.ErrEmptyWaveform
	}

	share := 1 / float64(len(m.sources))
	stems := make(map[string]audio.Waveform, len(m.sources))
	for _, name := range m.sources {
		stem := w.Clone()
		stem.Scale(share)
		stems[name] = stem
	}
	return stems, nil
}

func (m *MockSeparator) Info(context.Context) SeparatorInfo {
	return SeparatorInfo{
		ModelLoaded: true,
		Model:       m.model + " (mock)",
		SampleRate:  m.sampleRate,
		Sources:     append([]string(nil), m.sources...),
		Device:      m.device,
	}
}
