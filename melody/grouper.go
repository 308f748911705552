package melody

import (
	"cmp"
	"slices"
)

// NoteGrouper merges consecutive same-pitch observations into notes
type NoteGrouper struct {
	Tempo            Tempo
	WindowSeconds    float64 // length credited to each observation
	LegatoGapSeconds float64 // same-pitch gaps shorter than this are bridged
	MinGroupBeats    float64 // shorter groups are discarded
}

// NewNoteGrouper builds a grouper from cfg
func NewNoteGrouper(cfg Config) NoteGrouper {
	return NoteGrouper{
		Tempo:            cfg.Tempo(),
		WindowSeconds:    cfg.WindowSeconds(),
		LegatoGapSeconds: cfg.LegatoGapSeconds,
		MinGroupBeats:    cfg.MinGroupBeats,
	}
}

// Group folds observations into notes. A group stays open while the next
// observation has the same pitch and starts less than LegatoGapSeconds after
// the group's end; its end is the last member's start plus one window.
func (g NoteGrouper) Group(observations []Observation) []Note {
	if len(observations) == 0 {
		return nil
	}

	ordered := observations
	if !slices.IsSortedFunc(ordered, compareObservations) {
		ordered = slices.Clone(observations)
		slices.SortStableFunc(ordered, compareObservations)
	}

	notes := make([]Note, 0, len(ordered))
	open := Note{
		Start: ordered[0].Start,
		End:   ordered[0].Start + g.WindowSeconds,
		Pitch: ordered[0].Note,
	}

	for _, obs := range ordered[1:] {
		if obs.Note == open.Pitch && obs.Start-open.End < g.LegatoGapSeconds {
			open.End = obs.Start + g.WindowSeconds
			continue
		}
		notes = g.close(notes, open)
		open = Note{
			Start: obs.Start,
			End:   obs.Start + g.WindowSeconds,
			Pitch: obs.Note,
		}
	}

	return g.close(notes, open)
}

func (g NoteGrouper) close(notes []Note, open Note) []Note {
	open.DurationBeats = g.Tempo.Beats(open.Duration())
	if open.DurationBeats+beatTolerance < g.MinGroupBeats {
		return notes
	}
	return append(notes, open)
}

func compareObservations(a, b Observation) int {
	return cmp.Compare(a.Start, b.Start)
}
