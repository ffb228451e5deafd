package model

import (
	"encoding/json"
	"math"
)

// Analysis is the best-effort musical description of an upload. It is either
// analyzed, with every field set, or unavailable.
type Analysis struct {
	Available bool
	Key       string
	BPM       float64
	Duration  float64
}

// Analyzed builds an available result. BPM and duration are rounded to one
// decimal.
func Analyzed(key string, bpm, duration float64) Analysis {
	return Analysis{
		Available: true,
		Key:       key,
		BPM:       round1(bpm),
		Duration:  round1(duration),
	}
}

// Unavailable is the result when the estimator failed or is not configured.
func Unavailable() Analysis {
	return Analysis{}
}

type analysisJSON struct {
	Available bool     `json:"available"`
	Key       *string  `json:"key,omitempty"`
	Tempo     *float64 `json:"tempo,omitempty"`
	Duration  *float64 `json:"duration,omitempty"`
}

func (a Analysis) MarshalJSON() ([]byte, error) {
	out := analysisJSON{Available: a.Available}
	if a.Available {
		out.Key = &a.Key
		out.Tempo = &a.BPM
		out.Duration = &a.Duration
	}
	return json.Marshal(out)
}

func (a *Analysis) UnmarshalJSON(data []byte) error {
	var in analysisJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	*a = Analysis{Available: in.Available}
	if !in.Available {
		return nil
	}
	if in.Key != nil {
		a.Key = *in.Key
	}
	if in.Tempo != nil {
		a.BPM = *in.Tempo
	}
	if in.Duration != nil {
		a.Duration = *in.Duration
	}
	return nil
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
