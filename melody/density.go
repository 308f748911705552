package melody

import (
	"cmp"
	"math"
	"slices"
)

// DensitySimplifier thins passages that are too busy to play.
//
// The scan opens a window of WindowBeats at the first unprocessed note. A
// window holding more than BusyThreshold note starts is replaced by its
// strong-beat skeleton and the scan moves past it; otherwise the first note is
// emitted untouched and the scan advances by one note.
type DensitySimplifier struct {
	Tempo               Tempo
	WindowBeats         float64
	BusyThreshold       int
	StrongBeatTolerance float64 // beats
	MaxStrongNotes      int
	MinStrongNotes      int
	FallbackKeep        int
	MinNoteBeats        float64

	// OnBusy, when set, is called for every simplified window
	OnBusy func(start float64, before, after int)
}

// NewDensitySimplifier builds a simplifier from cfg
func NewDensitySimplifier(cfg Config) DensitySimplifier {
	return DensitySimplifier{
		Tempo:               cfg.Tempo(),
		WindowBeats:         cfg.DensityWindowBeats,
		BusyThreshold:       cfg.BusyThreshold,
		StrongBeatTolerance: cfg.StrongBeatTolerance,
		MaxStrongNotes:      cfg.MaxStrongNotes,
		MinStrongNotes:      cfg.MinStrongNotes,
		FallbackKeep:        cfg.FallbackKeep,
		MinNoteBeats:        cfg.MinSimplifiedBeats,
	}
}

// Simplify returns notes with every busy window reduced
func (d DensitySimplifier) Simplify(notes []Note) []Note {
	out := make([]Note, 0, len(notes))
	span := d.Tempo.Seconds(d.WindowBeats)

	for i := 0; i < len(notes); {
		windowEnd := notes[i].Start + span
		j := i
		for j < len(notes) && notes[j].Start < windowEnd {
			j++
		}

		if j-i <= d.BusyThreshold {
			out = append(out, notes[i])
			i++
			continue
		}

		bound := math.Inf(1)
		if j < len(notes) {
			bound = notes[j].Start
		}
		simplified := d.simplifySection(notes[i:j], bound)
		if d.OnBusy != nil {
			d.OnBusy(notes[i].Start, j-i, len(simplified))
		}
		out = append(out, simplified...)
		i = j
	}

	return out
}

// simplifySection keeps the strong-beat notes of a busy window. bound is the
// start of the first note after the window.
func (d DensitySimplifier) simplifySection(window []Note, bound float64) []Note {
	if len(window) <= d.FallbackKeep {
		return slices.Clone(window)
	}

	var kept []Note
	for _, n := range window {
		if d.isStrongBeat(n) {
			kept = append(kept, n)
		}
	}

	if len(kept) > d.MaxStrongNotes {
		slices.SortStableFunc(kept, longestFirst)
		kept = kept[:d.MaxStrongNotes]
	}
	if len(kept) == 0 || len(kept) < d.MinStrongNotes {
		kept = slices.Clone(window)
		slices.SortStableFunc(kept, longestFirst)
		kept = kept[:min(d.FallbackKeep, len(kept))]
	}
	slices.SortStableFunc(kept, func(a, b Note) int { return cmp.Compare(a.Start, b.Start) })

	minLength := d.Tempo.Seconds(d.MinNoteBeats)
	out := make([]Note, 0, len(kept))
	for _, n := range kept {
		if n.DurationBeats < d.MinNoteBeats {
			n = n.withLength(d.MinNoteBeats, d.Tempo)
		}
		if len(out) > 0 {
			prev := out[len(out)-1]
			if prev.End > n.Start {
				// a survivor too close to its predecessor is dropped rather
				// than cutting the predecessor below the minimum length
				if n.Start-prev.Start+beatTolerance < minLength {
					continue
				}
				out[len(out)-1] = prev.withEnd(n.Start, d.Tempo)
			}
		}
		out = append(out, n)
	}

	if len(out) == 0 {
		return out
	}
	if last := out[len(out)-1]; last.End > bound {
		out[len(out)-1] = last.withEnd(bound, d.Tempo)
	}
	return out
}

func (d DensitySimplifier) isStrongBeat(n Note) bool {
	beats := d.Tempo.Beats(n.Start)
	return math.Abs(beats-math.Round(beats)) < d.StrongBeatTolerance
}

func longestFirst(a, b Note) int {
	return cmp.Compare(b.DurationBeats, a.DurationBeats)
}
