package audio

import (
	"fmt"
	"math"
)

const (
	// zero crossings kept on each side of the sinc kernel
	resampleWidth   = 6
	resampleRolloff = 0.99
	maxCachedPhases = 1024
)

// Resample converts w to targetRate with a Hann-windowed sinc filter.
func Resample(w Waveform, targetRate int) (Waveform, error) {
	if targetRate <= 0 || w.SampleRate <= 0 {
		return Waveform{}, fmt.Errorf("resample: invalid rates %d -> %d", w.SampleRate, targetRate)
	}
	if w.SampleRate == targetRate {
		return w, nil
	}

	g := gcd(w.SampleRate, targetRate)
	orig := w.SampleRate / g
	next := targetRate / g

	k := newSincKernel(orig, next)
	out := Waveform{SampleRate: targetRate, Channels: make([][]float64, len(w.Channels))}
	for c, ch := range w.Channels {
		out.Channels[c] = k.apply(ch)
	}
	return out, nil
}

type sincKernel struct {
	orig, next int
	cutoff     float64
	half       float64
	phases     [][]float64
}

func newSincKernel(orig, next int) *sincKernel {
	cutoff := resampleRolloff
	if next < orig {
		cutoff *= float64(next) / float64(orig)
	}
	k := &sincKernel{
		orig:   orig,
		next:   next,
		cutoff: cutoff,
		half:   resampleWidth / cutoff,
	}
	if next <= maxCachedPhases {
		k.phases = make([][]float64, next)
	}
	return k
}

func (k *sincKernel) taps(phase int) []float64 {
	if k.phases != nil && k.phases[phase] != nil {
		return k.phases[phase]
	}
	frac := float64(phase) / float64(k.next)
	lo := -int(math.Ceil(k.half))
	hi := int(math.Ceil(k.half))
	taps := make([]float64, hi-lo+1)
	for j := range taps {
		d := float64(lo+j) - frac
		taps[j] = k.weight(d)
	}
	if k.phases != nil {
		k.phases[phase] = taps
	}
	return taps
}

func (k *sincKernel) weight(d float64) float64 {
	u := d / k.half
	if u <= -1 || u >= 1 {
		return 0
	}
	window := 0.5 * (1 + math.Cos(math.Pi*u))
	x := math.Pi * k.cutoff * d
	if x == 0 {
		return k.cutoff * window
	}
	return k.cutoff * math.Sin(x) / x * window
}

func (k *sincKernel) apply(in []float64) []float64 {
	n := len(in)
	outLen := int(math.Ceil(float64(n) * float64(k.next) / float64(k.orig)))
	out := make([]float64, outLen)
	lo := -int(math.Ceil(k.half))
	for i := range out {
		pos := i * k.orig
		base := pos / k.next
		phase := pos % k.next
		taps := k.taps(phase)
		sum := 0.0
		for j, t := range taps {
			idx := base + lo + j
			if idx < 0 || idx >= n || t == 0 {
				continue
			}
			sum += in[idx] * t
		}
		out[i] = sum
	}
	return out
}

func gcd(a, b int) int {
	for b != 0 {
		a, b = b, a%b
	}
	return a
}
