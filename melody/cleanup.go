package melody

import "math"

// TinyNoteCleaner removes fragments left behind by quantization and overlap
// resolution. A note shorter than TinyBeats survives only when it stands
// alone, that is when the gaps to both neighbours exceed IsolationGapBeats (a
// sequence edge counts as an infinite gap). Survivors are stretched to
// ExtendBeats.
type TinyNoteCleaner struct {
	Tempo             Tempo
	TinyBeats         float64 // 0 disables the stage
	IsolationGapBeats float64
	ExtendBeats       float64
}

// NewTinyNoteCleaner builds a cleaner from cfg
func NewTinyNoteCleaner(cfg Config) TinyNoteCleaner {
	return TinyNoteCleaner{
		Tempo:             cfg.Tempo(),
		TinyBeats:         cfg.TinyNoteBeats,
		IsolationGapBeats: cfg.IsolationGapBeats,
		ExtendBeats:       cfg.TinyNoteExtendBeats,
	}
}

// Clean returns notes with tiny fragments dropped or extended
func (c TinyNoteCleaner) Clean(notes []Note) []Note {
	out := make([]Note, 0, len(notes))
	if c.TinyBeats <= 0 {
		return append(out, notes...)
	}

	isolation := c.Tempo.Seconds(c.IsolationGapBeats)
	for i, n := range notes {
		if n.DurationBeats >= c.TinyBeats {
			out = append(out, n)
			continue
		}

		gapBefore, gapAfter := math.Inf(1), math.Inf(1)
		next := math.Inf(1)
		if i > 0 {
			gapBefore = n.Start - notes[i-1].End
		}
		if i < len(notes)-1 {
			next = notes[i+1].Start
			gapAfter = next - n.End
		}

		if gapBefore <= isolation || gapAfter <= isolation {
			continue
		}

		extended := n
		if c.ExtendBeats > n.DurationBeats {
			extended = n.withLength(c.ExtendBeats, c.Tempo)
		}
		if extended.End > next {
			extended = extended.withEnd(next, c.Tempo)
		}
		out = append(out, extended)
	}
	return out
}
