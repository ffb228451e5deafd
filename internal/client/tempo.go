package client

import "math"

const (
	minTempo = 60
	maxTempo = 300
)

// tempoFactors cover octave and triplet errors of beat trackers.
var tempoFactors = []float64{1, 2, 0.5, 1.5, 1 / 1.5}

// FoldTempo reconciles several raw BPM estimates. Each estimate is folded by
// the tempo factors, candidates outside [60, 300] are dropped, and the most
// common rounded candidate wins, the earliest seen on ties. Without any
// candidate in range the first estimate is returned as is.
func FoldTempo(estimates []float64) (float64, bool) {
	if len(estimates) == 0 {
		return 0, false
	}

	counts := make(map[int]int)
	var seen []int
	for _, e := range estimates {
		for _, f := range tempoFactors {
			c := e * f
			if c < minTempo || c > maxTempo {
				continue
			}
			r := int(math.Round(c))
			if counts[r] == 0 {
				seen = append(seen, r)
			}
			counts[r]++
		}
	}
	if len(seen) == 0 {
		return estimates[0], estimates[0] > 0
	}

	best := seen[0]
	for _, v := range seen[1:] {
		if counts[v] > counts[best] {
			best = v
		}
	}
	return float64(best), true
}
