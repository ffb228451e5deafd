// Package audio holds the stateless signal helpers used to canonicalize
// uploads, encode stems and rebuild mixes from them.
package audio

import (
	"errors"
	"math"
)

// Clip-guard thresholds.
const (
	// CanonicalPeak is applied to the decoded upload before separation.
	CanonicalPeak = 1.0
	// StemPeak is applied to every separated stem before it is encoded.
	StemPeak = 0.99
	// MixPeak is applied to the summed mix.
	MixPeak = 0.99
)

var (
	ErrEmptyWaveform      = errors.New("waveform has no samples")
	ErrSampleRateMismatch = errors.New("waveforms have different sample rates")
	ErrChannelMismatch    = errors.New("waveforms have different channel counts")
)

// Waveform is planar float audio: Channels[c][i] is sample i of channel c,
// nominally in [-1, 1].
type Waveform struct {
	SampleRate int
	Channels   [][]float64
}

// NewWaveform allocates a silent waveform.
func NewWaveform(sampleRate, channels, frames int) Waveform {
	w := Waveform{SampleRate: sampleRate, Channels: make([][]float64, channels)}
	for c := range w.Channels {
		w.Channels[c] = make([]float64, frames)
	}
	return w
}

// NumChannels returns the channel count.
func (w Waveform) NumChannels() int {
	return len(w.Channels)
}

// NumFrames returns the length of the longest channel.
func (w Waveform) NumFrames() int {
	n := 0
	for _, ch := range w.Channels {
		if len(ch) > n {
			n = len(ch)
		}
	}
	return n
}

// Duration returns the length in seconds.
func (w Waveform) Duration() float64 {
	if w.SampleRate <= 0 {
		return 0
	}
	return float64(w.NumFrames()) / float64(w.SampleRate)
}

// Clone returns a deep copy.
func (w Waveform) Clone() Waveform {
	out := Waveform{SampleRate: w.SampleRate, Channels: make([][]float64, len(w.Channels))}
	for c, ch := range w.Channels {
		out.Channels[c] = append([]float64(nil), ch...)
	}
	return out
}

// Peak returns the largest absolute sample value.
func (w Waveform) Peak() float64 {
	peak := 0.0
	for _, ch := range w.Channels {
		for _, s := range ch {
			if a := math.Abs(s); a > peak {
				peak = a
			}
		}
	}
	return peak
}

// Scale multiplies every sample by gain in place.
func (w Waveform) Scale(gain float64) {
	if gain == 1 {
		return
	}
	for _, ch := range w.Channels {
		for i := range ch {
			ch[i] *= gain
		}
	}
}

// ClipGuard scales the whole waveform so its peak equals threshold when the
// peak exceeds it. A waveform already at or below threshold is returned
// untouched.
func ClipGuard(w Waveform, threshold float64) Waveform {
	peak := w.Peak()
	if peak <= threshold || peak == 0 {
		return w
	}
	w.Scale(threshold / peak)
	return w
}

// ToStereo duplicates a mono waveform into two channels and keeps only the
// first two channels of anything wider.
func ToStereo(w Waveform) Waveform {
	switch len(w.Channels) {
	case 0:
		return w
	case 1:
		dup := append([]float64(nil), w.Channels[0]...)
		return Waveform{SampleRate: w.SampleRate, Channels: [][]float64{w.Channels[0], dup}}
	case 2:
		return w
	default:
		return Waveform{SampleRate: w.SampleRate, Channels: w.Channels[:2]}
	}
}
