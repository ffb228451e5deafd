package audio

import (
	"bytes"
	"encoding/binary"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const quantStep = 1.0 / pcm16Scale

func constWave(rate, channels, frames int, v float64) Waveform {
	w := NewWaveform(rate, channels, frames)
	for _, ch := range w.Channels {
		for i := range ch {
			ch[i] = v
		}
	}
	return w
}

func sineWave(rate, frames int, freq, amp float64) Waveform {
	w := NewWaveform(rate, 2, frames)
	for i := 0; i < frames; i++ {
		s := amp * math.Sin(2*math.Pi*freq*float64(i)/float64(rate))
		w.Channels[0][i] = s
		w.Channels[1][i] = -s
	}
	return w
}

func TestClipGuard(t *testing.T) {
	tests := []struct {
		name     string
		peak     float64
		expected float64
	}{
		{"loud mix is scaled to threshold", 1.5, 0.99},
		{"quiet mix is untouched", 0.5, 0.5},
		{"exactly at threshold is untouched", 0.99, 0.99},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := NewWaveform(44100, 2, 4)
			w.Channels[0][1] = tt.peak
			w.Channels[1][2] = -tt.peak / 2

			out := ClipGuard(w, MixPeak)
			assert.InDelta(t, tt.expected, out.Peak(), 1e-12)
			assert.InDelta(t, -tt.expected/2, out.Channels[1][2], 1e-12)
		})
	}
}

func TestClipGuard_SilenceIsUntouched(t *testing.T) {
	w := NewWaveform(44100, 2, 8)
	out := ClipGuard(w, MixPeak)
	assert.Equal(t, 0.0, out.Peak())
}

func TestToStereo(t *testing.T) {
	mono := Waveform{SampleRate: 22050, Channels: [][]float64{{0.1, -0.2, 0.3}}}
	st := ToStereo(mono)
	require.Equal(t, 2, st.NumChannels())
	assert.Equal(t, st.Channels[0], st.Channels[1])

	// the duplicate must not alias the original channel
	st.Channels[1][0] = 0.9
	assert.Equal(t, 0.1, st.Channels[0][0])

	wide := NewWaveform(48000, 6, 10)
	assert.Equal(t, 2, ToStereo(wide).NumChannels())
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	w := sineWave(44100, 4410, 440, 0.8)

	data, err := EncodePCM16(w)
	require.NoError(t, err)
	assert.Equal(t, "RIFF", string(data[:4]))
	assert.Equal(t, "WAVE", string(data[8:12]))

	back, err := DecodeWAV(data)
	require.NoError(t, err)
	assert.Equal(t, 44100, back.SampleRate)
	require.Equal(t, 2, back.NumChannels())
	require.Equal(t, 4410, back.NumFrames())

	for c := range w.Channels {
		for i := range w.Channels[c] {
			assert.InDelta(t, w.Channels[c][i], back.Channels[c][i], quantStep)
		}
	}
}

func TestEncodePCM16_Saturates(t *testing.T) {
	w := Waveform{SampleRate: 8000, Channels: [][]float64{{2, -2, 0}}}
	data, err := EncodePCM16(w)
	require.NoError(t, err)

	back, err := DecodeWAV(data)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, back.Channels[0][0], 2*quantStep)
	assert.InDelta(t, -1.0, back.Channels[0][1], quantStep)
}

func TestEncodePCM16_Empty(t *testing.T) {
	_, err := EncodePCM16(Waveform{SampleRate: 44100})
	assert.ErrorIs(t, err, ErrEmptyWaveform)
}

func TestDecodeWAV_Garbage(t *testing.T) {
	_, err := DecodeWAV([]byte("definitely not a riff file"))
	assert.ErrorIs(t, err, ErrUnsupportedWAV)
}

// extensibleWAV builds a stereo WAVE_FORMAT_EXTENSIBLE file whose SubFormat
// GUID starts with subFormat. samples are interleaved and already encoded.
func extensibleWAV(subFormat uint16, bitDepth int, frames int, samples []byte) []byte {
	const channels, rate = 2, 8000
	blockAlign := channels * bitDepth / 8

	var fmtChunk bytes.Buffer
	le := binary.LittleEndian
	_ = binary.Write(&fmtChunk, le, uint16(0xFFFE))
	_ = binary.Write(&fmtChunk, le, uint16(channels))
	_ = binary.Write(&fmtChunk, le, uint32(rate))
	_ = binary.Write(&fmtChunk, le, uint32(rate*blockAlign))
	_ = binary.Write(&fmtChunk, le, uint16(blockAlign))
	_ = binary.Write(&fmtChunk, le, uint16(bitDepth))
	_ = binary.Write(&fmtChunk, le, uint16(22))
	_ = binary.Write(&fmtChunk, le, uint16(bitDepth))
	_ = binary.Write(&fmtChunk, le, uint32(3))
	_ = binary.Write(&fmtChunk, le, subFormat)
	fmtChunk.Write([]byte{0x00, 0x00, 0x00, 0x00, 0x10, 0x00, 0x80, 0x00, 0x00, 0xAA, 0x00, 0x38, 0x9B, 0x71})

	var out bytes.Buffer
	out.WriteString("RIFF")
	_ = binary.Write(&out, le, uint32(4+8+fmtChunk.Len()+8+len(samples)))
	out.WriteString("WAVE")
	out.WriteString("fmt ")
	_ = binary.Write(&out, le, uint32(fmtChunk.Len()))
	out.Write(fmtChunk.Bytes())
	out.WriteString("data")
	_ = binary.Write(&out, le, uint32(frames*blockAlign))
	out.Write(samples)
	return out.Bytes()
}

func TestDecodeWAV_ExtensibleFloatIsUnsupported(t *testing.T) {
	var samples bytes.Buffer
	for _, v := range []float32{0.25, -0.25, 0.5, -0.5, 0.1, -0.1} {
		_ = binary.Write(&samples, binary.LittleEndian, math.Float32bits(v))
	}

	_, err := DecodeWAV(extensibleWAV(3, 32, 3, samples.Bytes()))
	assert.ErrorIs(t, err, ErrUnsupportedWAV)
}

func TestDecodeWAV_ExtensiblePCM(t *testing.T) {
	var samples bytes.Buffer
	for _, v := range []int16{8192, -8192, 16384, -16384} {
		_ = binary.Write(&samples, binary.LittleEndian, v)
	}

	w, err := DecodeWAV(extensibleWAV(1, 16, 2, samples.Bytes()))
	require.NoError(t, err)
	require.Equal(t, 2, w.NumChannels())
	assert.InDeltaSlice(t, []float64{0.25, 0.5}, w.Channels[0], quantStep)
	assert.InDeltaSlice(t, []float64{-0.25, -0.5}, w.Channels[1], quantStep)
}

func TestResample_LengthAndLevel(t *testing.T) {
	tests := []struct {
		name     string
		from, to int
	}{
		{"down 48k to 44.1k", 48000, 44100},
		{"up 22.05k to 44.1k", 22050, 44100},
		{"up 8k to 44.1k", 8000, 44100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			frames := tt.from / 10
			w := constWave(tt.from, 2, frames, 0.5)

			out, err := Resample(w, tt.to)
			require.NoError(t, err)
			assert.Equal(t, tt.to, out.SampleRate)
			expected := int(math.Ceil(float64(frames) * float64(tt.to) / float64(tt.from)))
			assert.Equal(t, expected, out.NumFrames())

			// away from the edges a DC signal keeps its level
			mid := out.NumFrames() / 2
			assert.InDelta(t, 0.5, out.Channels[0][mid], 0.01)
			assert.InDelta(t, 0.5, out.Channels[1][mid], 0.01)
		})
	}
}

func TestResample_PreservesTone(t *testing.T) {
	w := sineWave(48000, 48000, 1000, 0.5)
	out, err := Resample(w, 44100)
	require.NoError(t, err)

	// compare against an ideal 1 kHz tone at the new rate, skipping edges
	for i := 1000; i < out.NumFrames()-1000; i += 97 {
		want := 0.5 * math.Sin(2*math.Pi*1000*float64(i)/44100)
		assert.InDelta(t, want, out.Channels[0][i], 0.02)
	}
}

func TestResample_SameRateIsNoop(t *testing.T) {
	w := constWave(44100, 2, 10, 0.25)
	out, err := Resample(w, 44100)
	require.NoError(t, err)
	assert.Equal(t, w, out)
}

func TestCanonicalize(t *testing.T) {
	mono := Waveform{SampleRate: 22050, Channels: [][]float64{make([]float64, 2205)}}
	mono.Channels[0][100] = 1.8

	out, err := Canonicalize(mono, 44100)
	require.NoError(t, err)
	assert.Equal(t, 44100, out.SampleRate)
	assert.Equal(t, 2, out.NumChannels())
	assert.LessOrEqual(t, out.Peak(), CanonicalPeak+1e-12)
}

func TestCanonicalize_KeepsQuietInputLevel(t *testing.T) {
	w := constWave(44100, 2, 100, 0.3)
	out, err := Canonicalize(w, 44100)
	require.NoError(t, err)
	assert.Equal(t, 0.3, out.Peak())
}

func TestMix(t *testing.T) {
	a := constWave(44100, 2, 4, 0.2)
	b := constWave(44100, 2, 6, 0.1)

	out, err := Mix([]Track{{Name: "a", Gain: 1, Wave: a}, {Name: "b", Gain: 0.5, Wave: b}})
	require.NoError(t, err)
	require.Equal(t, 6, out.NumFrames())
	assert.InDelta(t, 0.25, out.Channels[0][0], 1e-12)
	// past the end of the shorter track only b contributes
	assert.InDelta(t, 0.05, out.Channels[1][5], 1e-12)
}

func TestMix_Mismatch(t *testing.T) {
	a := constWave(44100, 2, 4, 0.2)

	_, err := Mix([]Track{{Name: "a", Gain: 1, Wave: a}, {Name: "b", Gain: 1, Wave: constWave(48000, 2, 4, 0.1)}})
	assert.ErrorIs(t, err, ErrSampleRateMismatch)

	_, err = Mix([]Track{{Name: "a", Gain: 1, Wave: a}, {Name: "b", Gain: 1, Wave: constWave(44100, 1, 4, 0.1)}})
	assert.ErrorIs(t, err, ErrChannelMismatch)

	_, err = Mix(nil)
	assert.ErrorIs(t, err, ErrEmptyWaveform)
}

func encodeConst(t *testing.T, v float64) []byte {
	t.Helper()
	data, err := EncodePCM16(constWave(44100, 2, 64, v))
	require.NoError(t, err)
	return data
}

func TestMixWAV_ClipGuardsLoudSum(t *testing.T) {
	stems := map[string][]byte{
		"vocals": encodeConst(t, 0.5),
		"drums":  encodeConst(t, 0.5),
		"bass":   encodeConst(t, 0.5),
	}

	out, err := MixWAV(stems, nil)
	require.NoError(t, err)
	assert.InDelta(t, MixPeak, out.Peak(), 1e-9)

	data, err := EncodePCM16(out)
	require.NoError(t, err)
	back, err := DecodeWAV(data)
	require.NoError(t, err)
	assert.InDelta(t, MixPeak, back.Peak(), quantStep)
}

func TestMixWAV_QuietSumIsUnscaled(t *testing.T) {
	stems := map[string][]byte{
		"vocals": encodeConst(t, 0.25),
		"drums":  encodeConst(t, 0.25),
	}

	out, err := MixWAV(stems, map[string]float64{"vocals": 1, "drums": 1})
	require.NoError(t, err)
	assert.InDelta(t, 0.5, out.Peak(), quantStep)
}

func TestMixWAV_Gains(t *testing.T) {
	stems := map[string][]byte{
		"vocals": encodeConst(t, 0.4),
		"drums":  encodeConst(t, 0.2),
	}

	out, err := MixWAV(stems, map[string]float64{"vocals": 0})
	require.NoError(t, err)
	// vocals muted, drums defaults to unity
	assert.InDelta(t, 0.2, out.Channels[0][10], quantStep)
}

func TestMixWAV_BadStem(t *testing.T) {
	_, err := MixWAV(map[string][]byte{"vocals": []byte("nope")}, nil)
	assert.ErrorIs(t, err, ErrUnsupportedWAV)
}
