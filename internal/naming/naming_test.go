package naming

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFilename(t *testing.T) {
	tests := []struct {
		name     string
		gains    map[string]float64
		expected string
	}{
		{
			name:     "no gains is the full mix",
			gains:    nil,
			expected: "song.mp3",
		},
		{
			name:     "all unity is the full mix",
			gains:    map[string]float64{"vocals": 1, "drums": 1, "bass": 1, "other": 1},
			expected: "song.mp3",
		},
		{
			name:     "single audible track",
			gains:    map[string]float64{"vocals": 1, "drums": 0, "bass": 0, "other": 0},
			expected: "song [vocals].mp3",
		},
		{
			name:     "single audible track at partial gain",
			gains:    map[string]float64{"vocals": 0, "drums": 0.3},
			expected: "song [drums].mp3",
		},
		{
			name:     "muted vocals with a half gain third track",
			gains:    map[string]float64{"vocals": 0, "drums": 1, "bass": 0.5},
			expected: "song [instrumental].mp3",
		},
		{
			name:     "muted vocals with the rest at unity",
			gains:    map[string]float64{"vocals": 0, "drums": 1, "bass": 1, "other": 1},
			expected: "song [instrumental].mp3",
		},
		{
			name:     "partial gains with vocals audible",
			gains:    map[string]float64{"vocals": 0.5, "drums": 1, "bass": 0},
			expected: "song [mixed].mp3",
		},
		{
			name:     "missing vocals counts as muted",
			gains:    map[string]float64{"drums": 0.5, "bass": 0.7},
			expected: "song [instrumental].mp3",
		},
		{
			name:     "lone partial vocals is isolated",
			gains:    map[string]float64{"vocals": 0.5},
			expected: "song [vocals].mp3",
		},
		{
			name:     "everything muted",
			gains:    map[string]float64{"vocals": 0, "drums": 0},
			expected: "song [mixed].mp3",
		},
		{
			name:     "boosted single track is still not the full mix",
			gains:    map[string]float64{"vocals": 1.5},
			expected: "song [vocals].mp3",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Filename(tt.gains, "song", "mp3"))
		})
	}
}

func TestFilename_ExtensionFollowsPayload(t *testing.T) {
	gains := map[string]float64{"vocals": 0, "drums": 1}
	assert.Equal(t, "clip [drums].wav", Filename(gains, "clip", ".wav"))
}

func TestSplit(t *testing.T) {
	tests := []struct {
		in, base, ext string
	}{
		{"My Song.MP3", "My Song", "mp3"},
		{"take.2.final.wav", "take.2.final", "wav"},
		{"../../etc/track.flac", "track", "flac"},
		{`C:\music\clip.mp4`, "clip", "mp4"},
		{"noext", "noext", ""},
		{".wav", ".wav", ""},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			base, ext := Split(tt.in)
			assert.Equal(t, tt.base, base)
			assert.Equal(t, tt.ext, ext)
		})
	}
}

func TestActiveTracks(t *testing.T) {
	got := ActiveTracks(map[string]float64{"vocals": 0, "drums": 1, "bass": 0.2})
	assert.Equal(t, []string{"bass", "drums"}, got)
}
