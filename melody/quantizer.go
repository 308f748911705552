package melody

import (
	"math"
)

// RhythmQuantizer snaps note starts to a beat grid and lengths to canonical durations
type RhythmQuantizer struct {
	Tempo              Tempo
	GridDivision       int       // subdivisions per beat
	CanonicalDurations []float64 // beats, ascending
}

// NewRhythmQuantizer builds a quantizer from cfg
func NewRhythmQuantizer(cfg Config) RhythmQuantizer {
	return RhythmQuantizer{
		Tempo:              cfg.Tempo(),
		GridDivision:       cfg.GridDivision,
		CanonicalDurations: cfg.CanonicalDurations,
	}
}

// Quantize returns a quantized copy of notes. Quantizing twice is a no-op.
func (q RhythmQuantizer) Quantize(notes []Note) []Note {
	out := make([]Note, len(notes))
	for i, n := range notes {
		start := q.SnapStart(n.Start)
		beats := q.SnapDuration(n.DurationBeats)
		out[i] = Note{
			Start:         start,
			End:           start + q.Tempo.Seconds(beats),
			Pitch:         n.Pitch,
			DurationBeats: beats,
		}
	}
	return out
}

// SnapStart rounds t (seconds) to the nearest grid line
func (q RhythmQuantizer) SnapStart(t float64) float64 {
	grid := q.Tempo.BeatDuration() / float64(q.GridDivision)
	return math.Round(t/grid) * grid
}

// SnapDuration returns the canonical duration nearest to beats. On an exact
// tie the shorter value wins.
func (q RhythmQuantizer) SnapDuration(beats float64) float64 {
	best := q.CanonicalDurations[0]
	bestDist := math.Abs(beats - best)
	for _, d := range q.CanonicalDurations[1:] {
		if dist := math.Abs(beats - d); dist < bestDist {
			best, bestDist = d, dist
		}
	}
	return best
}
