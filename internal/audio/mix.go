package audio

import (
	"fmt"
	"sort"

	"golang.org/x/sync/errgroup"
)

// DefaultGain applies to tracks the caller did not mention.
const DefaultGain = 1.0

// Track is one gain-weighted contributor to a mix.
type Track struct {
	Name string
	Gain float64
	Wave Waveform
}

// Mix sums gain-scaled tracks sample by sample. The first track initializes
// the buffer; shorter tracks are treated as silent past their end. All tracks
// must share sample rate and channel count. The result is not clip-guarded.
func Mix(tracks []Track) (Waveform, error) {
	if len(tracks) == 0 {
		return Waveform{}, ErrEmptyWaveform
	}

	first := tracks[0].Wave
	frames := 0
	for _, t := range tracks {
		if t.Wave.SampleRate != first.SampleRate {
			return Waveform{}, fmt.Errorf("mix %q: %w", t.Name, ErrSampleRateMismatch)
		}
		if t.Wave.NumChannels() != first.NumChannels() {
			return Waveform{}, fmt.Errorf("mix %q: %w", t.Name, ErrChannelMismatch)
		}
		if n := t.Wave.NumFrames(); n > frames {
			frames = n
		}
	}

	out := NewWaveform(first.SampleRate, first.NumChannels(), frames)
	for _, t := range tracks {
		for c, ch := range t.Wave.Channels {
			dst := out.Channels[c]
			for i, s := range ch {
				dst[i] += s * t.Gain
			}
		}
	}
	return out, nil
}

// MixWAV decodes every encoded stem, weights it by its gain (DefaultGain when
// absent from gains) and returns the clip-guarded sum. Stems are summed in
// name order so the result is deterministic.
func MixWAV(stems map[string][]byte, gains map[string]float64) (Waveform, error) {
	if len(stems) == 0 {
		return Waveform{}, ErrEmptyWaveform
	}

	names := make([]string, 0, len(stems))
	for name := range stems {
		names = append(names, name)
	}
	sort.Strings(names)

	tracks := make([]Track, len(names))
	var g errgroup.Group
	for i, name := range names {
		i, name := i, name
		g.Go(func() error {
			w, err := DecodeWAV(stems[name])
			if err != nil {
				return fmt.Errorf("decode stem %q: %w", name, err)
			}
			gain, ok := gains[name]
			if !ok {
				gain = DefaultGain
			}
			tracks[i] = Track{Name: name, Gain: gain, Wave: w}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Waveform{}, err
	}

	mixed, err := Mix(tracks)
	if err != nil {
		return Waveform{}, err
	}
	return ClipGuard(mixed, MixPeak), nil
}
