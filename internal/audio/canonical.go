package audio

// Canonicalize prepares a decoded upload for the separation model: stereo,
// at modelRate, and clip-guarded at CanonicalPeak.
func Canonicalize(w Waveform, modelRate int) (Waveform, error) {
	if w.NumFrames() == 0 {
		return Waveform{}, ErrEmptyWaveform
	}
	w = ToStereo(w)
	if w.SampleRate != modelRate {
		var err error
		w, err = Resample(w, modelRate)
		if err != nil {
			return Waveform{}, err
		}
	}
	return ClipGuard(w, CanonicalPeak), nil
}

// EncodeStem clip-guards a separated stem at StemPeak and encodes it as
// 16-bit PCM WAV.
func EncodeStem(w Waveform) ([]byte, error) {
	return EncodePCM16(ClipGuard(w, StemPeak))
}
