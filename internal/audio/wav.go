package audio

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

const (
	wavFormatPCM        = 1
	wavFormatExtensible = 0xFFFE

	pcm16Scale = 32768.0
)

// ErrUnsupportedWAV is returned for RIFF files go-audio cannot decode as
// integer PCM (float or compressed WAV). Callers fall back to transcoding.
var ErrUnsupportedWAV = errors.New("unsupported wav encoding")

// DecodeWAV decodes an integer PCM WAV file into a float waveform at its
// native sample rate.
func DecodeWAV(data []byte) (Waveform, error) {
	dec := wav.NewDecoder(bytes.NewReader(data))
	if !dec.IsValidFile() {
		return Waveform{}, fmt.Errorf("decode wav: %w", ErrUnsupportedWAV)
	}
	if dec.WavAudioFormat != wavFormatPCM && dec.WavAudioFormat != wavFormatExtensible {
		return Waveform{}, fmt.Errorf("decode wav: format %d: %w", dec.WavAudioFormat, ErrUnsupportedWAV)
	}
	if dec.WavAudioFormat == wavFormatExtensible {
		// go-audio ignores the SubFormat GUID and would read float samples
		// as integers.
		sub, ok := extensibleSubFormat(data)
		if !ok || sub != wavFormatPCM {
			return Waveform{}, fmt.Errorf("decode wav: extensible subformat %d: %w", sub, ErrUnsupportedWAV)
		}
	}

	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return Waveform{}, fmt.Errorf("decode wav: %w", err)
	}
	if buf == nil || buf.Format == nil || buf.Format.NumChannels <= 0 {
		return Waveform{}, fmt.Errorf("decode wav: missing format")
	}

	channels := buf.Format.NumChannels
	frames := len(buf.Data) / channels
	if frames == 0 {
		return Waveform{}, ErrEmptyWaveform
	}

	bitDepth := int(dec.BitDepth)
	if buf.SourceBitDepth > 0 {
		bitDepth = buf.SourceBitDepth
	}
	scale := math.Ldexp(1, bitDepth-1)
	offset := 0.0
	if bitDepth == 8 {
		// 8-bit WAV is unsigned.
		offset = 128
	}

	w := NewWaveform(buf.Format.SampleRate, channels, frames)
	for i := 0; i < frames; i++ {
		for c := 0; c < channels; c++ {
			w.Channels[c][i] = (float64(buf.Data[i*channels+c]) - offset) / scale
		}
	}
	return w, nil
}

// extensibleSubFormat returns the format code at the head of the SubFormat
// GUID in a WAVE_FORMAT_EXTENSIBLE fmt chunk.
func extensibleSubFormat(data []byte) (uint16, bool) {
	if len(data) < 12 || string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return 0, false
	}
	pos := 12
	for pos+8 <= len(data) {
		id := string(data[pos : pos+4])
		size := int(binary.LittleEndian.Uint32(data[pos+4 : pos+8]))
		body := pos + 8
		if id == "fmt " {
			// 16 base bytes, cbSize, valid bits, channel mask, then the GUID.
			if size < 40 || body+26 > len(data) {
				return 0, false
			}
			return binary.LittleEndian.Uint16(data[body+24 : body+26]), true
		}
		pos = body + size + size%2
	}
	return 0, false
}

// EncodePCM16 encodes w as a 16-bit PCM WAV file. Samples outside [-1, 1)
// saturate.
func EncodePCM16(w Waveform) ([]byte, error) {
	channels := w.NumChannels()
	frames := w.NumFrames()
	if channels == 0 || frames == 0 {
		return nil, ErrEmptyWaveform
	}
	if w.SampleRate <= 0 {
		return nil, fmt.Errorf("encode wav: invalid sample rate %d", w.SampleRate)
	}

	data := make([]int, frames*channels)
	for c, ch := range w.Channels {
		for i := 0; i < frames; i++ {
			var s float64
			if i < len(ch) {
				s = ch[i]
			}
			data[i*channels+c] = quantize16(s)
		}
	}

	out := &seekBuffer{}
	enc := wav.NewEncoder(out, w.SampleRate, 16, channels, wavFormatPCM)
	buf := &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: channels, SampleRate: w.SampleRate},
		Data:           data,
		SourceBitDepth: 16,
	}
	if err := enc.Write(buf); err != nil {
		return nil, fmt.Errorf("encode wav: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("encode wav: %w", err)
	}
	return out.Bytes(), nil
}

func quantize16(s float64) int {
	v := math.Round(s * pcm16Scale)
	if v > math.MaxInt16 {
		return math.MaxInt16
	}
	if v < math.MinInt16 {
		return math.MinInt16
	}
	return int(v)
}

// seekBuffer is the in-memory io.WriteSeeker the wav encoder needs to patch
// chunk sizes after writing samples.
type seekBuffer struct {
	buf []byte
	pos int
}

func (b *seekBuffer) Write(p []byte) (int, error) {
	end := b.pos + len(p)
	if end > len(b.buf) {
		if end > cap(b.buf) {
			grown := make([]byte, end, 2*end)
			copy(grown, b.buf)
			b.buf = grown
		} else {
			b.buf = b.buf[:end]
		}
	}
	copy(b.buf[b.pos:], p)
	b.pos = end
	return len(p), nil
}

func (b *seekBuffer) Seek(offset int64, whence int) (int64, error) {
	var abs int64
	switch whence {
	case io.SeekStart:
		abs = offset
	case io.SeekCurrent:
		abs = int64(b.pos) + offset
	case io.SeekEnd:
		abs = int64(len(b.buf)) + offset
	default:
		return 0, fmt.Errorf("seek: invalid whence %d", whence)
	}
	if abs < 0 {
		return 0, fmt.Errorf("seek: negative position %d", abs)
	}
	b.pos = int(abs)
	return abs, nil
}

func (b *seekBuffer) Bytes() []byte {
	return b.buf
}
