package melody

// FlowSmoother joins same-pitch chains separated by small gaps and drops
// what is still too short afterwards
type FlowSmoother struct {
	Tempo        Tempo
	JoinGapBeats float64
	MinKeepBeats float64
}

// NewFlowSmoother builds a smoother from cfg
func NewFlowSmoother(cfg Config) FlowSmoother {
	return FlowSmoother{
		Tempo:        cfg.Tempo(),
		JoinGapBeats: cfg.JoinGapBeats,
		MinKeepBeats: cfg.MinKeepBeats,
	}
}

// Smooth returns the joined, filtered melody
func (s FlowSmoother) Smooth(notes []Note) []Note {
	out := make([]Note, 0, len(notes))
	joinGap := s.Tempo.Seconds(s.JoinGapBeats)

	for i := 0; i < len(notes); {
		cur := notes[i]
		j := i + 1
		for j < len(notes) && notes[j].Pitch == cur.Pitch && notes[j].Start-cur.End < joinGap {
			cur = cur.withEnd(notes[j].End, s.Tempo)
			j++
		}
		if cur.DurationBeats+beatTolerance >= s.MinKeepBeats {
			out = append(out, cur)
		}
		i = j
	}

	return out
}
