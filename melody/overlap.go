package melody

// OverlapResolver removes overlaps between consecutive notes and bridges
// short same-pitch gaps
type OverlapResolver struct {
	Tempo            Tempo
	LegatoGapSeconds float64
}

// NewOverlapResolver builds a resolver from cfg
func NewOverlapResolver(cfg Config) OverlapResolver {
	return OverlapResolver{
		Tempo:            cfg.Tempo(),
		LegatoGapSeconds: cfg.LegatoGapSeconds,
	}
}

// Resolve compares each note with the last accepted one:
//   - same pitch with a gap under LegatoGapSeconds: the previous note is extended to the current start
//   - overlap: the previous note is shortened to the current start
//
// Notes that end up with end <= start are dropped.
func (r OverlapResolver) Resolve(notes []Note) []Note {
	out := make([]Note, 0, len(notes))

	for _, n := range notes {
		if n.End <= n.Start {
			continue
		}

		// shorten overlapping predecessors, dropping any that collapse
		for len(out) > 0 {
			prev := out[len(out)-1]
			if prev.End <= n.Start {
				break
			}
			prev = prev.withEnd(n.Start, r.Tempo)
			if prev.End > prev.Start {
				out[len(out)-1] = prev
				break
			}
			out = out[:len(out)-1]
		}

		if len(out) > 0 {
			prev := out[len(out)-1]
			if gap := n.Start - prev.End; prev.Pitch == n.Pitch && gap > 0 && gap < r.LegatoGapSeconds {
				out[len(out)-1] = prev.withEnd(n.Start, r.Tempo)
			}
		}
		out = append(out, n)
	}

	return out
}
