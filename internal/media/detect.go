package media

import (
	"github.com/gabriel-vasile/mimetype"

	"github.com/makeasinger/stemsplit/internal/model"
)

var mimeFormats = []struct {
	mime   string
	format model.Format
}{
	{"audio/wav", model.FormatWAV},
	{"audio/mpeg", model.FormatMP3},
	{"audio/flac", model.FormatFLAC},
	{"audio/x-m4a", model.FormatM4A},
	{"audio/mp4", model.FormatM4A},
	{"video/mp4", model.FormatMP4},
	{"audio/ogg", model.FormatOGG},
	{"application/ogg", model.FormatOGG},
}

// DetectContainer sniffs the container from the leading bytes and reconciles
// it with the extension the client declared. Detection wins when it names an
// accepted format, except inside the ISO-BMFF family where m4a and mp4 share
// a signature and the declared extension is kept.
func DetectContainer(data []byte, declared model.Format) model.Format {
	detected, ok := sniff(data)
	if !ok {
		return declared
	}
	if isBMFF(detected) && isBMFF(declared) {
		return declared
	}
	return detected
}

func sniff(data []byte) (model.Format, bool) {
	if len(data) == 0 {
		return "", false
	}
	for m := mimetype.Detect(data); m != nil; m = m.Parent() {
		for _, mf := range mimeFormats {
			if m.Is(mf.mime) {
				return mf.format, true
			}
		}
	}
	return "", false
}

func isBMFF(f model.Format) bool {
	return f == model.FormatM4A || f == model.FormatMP4
}
