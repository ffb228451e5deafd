// Package naming derives export filenames from a mix's track gains.
package naming

import (
	"path/filepath"
	"sort"
	"strings"
)

// VocalsTrack is the stem whose absence turns a mix into an instrumental.
const VocalsTrack = "vocals"

// Suffixes for the non-isolated cases.
const (
	SuffixInstrumental = "instrumental"
	SuffixMixed        = "mixed"
)

// Suffix returns the bracketed label for the gains a caller asked for, or ""
// for the full mix.
//
// Checks run in order: every requested gain at unity is the full mix, a
// single audible track is isolated under its own name, muted vocals with
// anything else audible is instrumental, and everything else is mixed. Only
// requested gains count, so a missing vocals entry is treated as muted.
func Suffix(gains map[string]float64) string {
	if isFullMix(gains) {
		return ""
	}

	active := ActiveTracks(gains)
	if len(active) == 1 {
		return active[0]
	}

	if gains[VocalsTrack] == 0 {
		for name, g := range gains {
			if name != VocalsTrack && g > 0 {
				return SuffixInstrumental
			}
		}
	}
	return SuffixMixed
}

func isFullMix(gains map[string]float64) bool {
	for _, g := range gains {
		if g != 1 {
			return false
		}
	}
	return true
}

// Filename builds "{base}.{ext}" or "{base} [{suffix}].{ext}".
func Filename(gains map[string]float64, base, ext string) string {
	ext = strings.TrimPrefix(ext, ".")
	if s := Suffix(gains); s != "" {
		return base + " [" + s + "]." + ext
	}
	return base + "." + ext
}

// Split separates an uploaded filename into its base name and lower-cased
// extension without the dot. Directory components are dropped.
func Split(filename string) (base, ext string) {
	name := filepath.Base(strings.ReplaceAll(filename, "\\", "/"))
	if name == "." || name == "/" {
		return "", ""
	}
	e := filepath.Ext(name)
	base = strings.TrimSuffix(name, e)
	if base == "" {
		// dotfile such as ".wav" has no base
		return name, ""
	}
	return base, strings.ToLower(strings.TrimPrefix(e, "."))
}

// ActiveTracks lists the tracks with a positive gain, sorted.
func ActiveTracks(gains map[string]float64) []string {
	var out []string
	for name, g := range gains {
		if g > 0 {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}
