package model

import "strings"

// Job status
type JobStatus string

const (
	JobStatusQueued     JobStatus = "queued"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

// IsTerminal reports whether no further transition can leave s.
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// Container formats accepted at upload and produced at export
type Format string

const (
	FormatWAV  Format = "wav"
	FormatMP3  Format = "mp3"
	FormatFLAC Format = "flac"
	FormatM4A  Format = "m4a"
	FormatOGG  Format = "ogg"
	FormatMP4  Format = "mp4"
)

var ValidFormats = []Format{
	FormatWAV, FormatMP3, FormatFLAC, FormatM4A, FormatOGG, FormatMP4,
}

// ParseFormat maps a file extension, with or without the leading dot and in
// any case, to an accepted format.
func ParseFormat(ext string) (Format, bool) {
	f := Format(strings.ToLower(strings.TrimPrefix(ext, ".")))
	for _, v := range ValidFormats {
		if v == f {
			return f, true
		}
	}
	return "", false
}

// IsVideo reports whether the container carries a video stream to remux.
func (f Format) IsVideo() bool {
	return f == FormatMP4
}

// IsRaw reports whether the container is uncompressed PCM WAV.
func (f Format) IsRaw() bool {
	return f == FormatWAV
}

// ContentType returns the media type served for a payload in this format.
func (f Format) ContentType() string {
	switch f {
	case FormatWAV:
		return "audio/wav"
	case FormatMP3:
		return "audio/mpeg"
	case FormatFLAC:
		return "audio/flac"
	case FormatM4A:
		return "audio/mp4"
	case FormatOGG:
		return "audio/ogg"
	case FormatMP4:
		return "video/mp4"
	default:
		return "application/octet-stream"
	}
}

// Stem names the separation model is known to produce
const (
	StemVocals = "vocals"
	StemDrums  = "drums"
	StemBass   = "bass"
	StemOther  = "other"
	StemGuitar = "guitar"
	StemPiano  = "piano"
)
