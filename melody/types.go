package melody

import (
	"fmt"
)

// beatTolerance absorbs float drift when comparing durations expressed in beats
const beatTolerance = 1e-9

// Tempo is the fixed tempo of a run
type Tempo struct {
	BPM float64 `json:"bpm" yaml:"bpm"`
}

// NewTempo validates bpm and returns a Tempo
func NewTempo(bpm float64) (Tempo, error) {
	if !(bpm > 0) {
		return Tempo{}, fmt.Errorf("%w: tempo must be positive, got %v", ErrConfiguration, bpm)
	}
	return Tempo{BPM: bpm}, nil
}

// BeatDuration returns the length of one beat in seconds
func (t Tempo) BeatDuration() float64 {
	return 60.0 / t.BPM
}

// Beats converts seconds to beats
func (t Tempo) Beats(seconds float64) float64 {
	return seconds / t.BeatDuration()
}

// Seconds converts beats to seconds
func (t Tempo) Seconds(beats float64) float64 {
	return beats * t.BeatDuration()
}

// Signal is a mono, fully loaded waveform
type Signal struct {
	Samples    []float64
	SampleRate int
}

// Duration returns the signal length in seconds
func (s Signal) Duration() float64 {
	if s.SampleRate <= 0 {
		return 0
	}
	return float64(len(s.Samples)) / float64(s.SampleRate)
}

// Observation is the dominant note of one analysis window
type Observation struct {
	Start      float64 `json:"start"`
	Note       int     `json:"note"`
	Confidence float64 `json:"confidence"`
}

// Note is a single melody note. End is always after Start.
type Note struct {
	Start         float64 `json:"start" yaml:"start"`
	End           float64 `json:"end" yaml:"end"`
	Pitch         int     `json:"note" yaml:"note"`
	DurationBeats float64 `json:"duration_beats" yaml:"duration_beats"`
}

// Duration returns the note length in seconds
func (n Note) Duration() float64 {
	return n.End - n.Start
}

// withEnd returns a copy of n ending at end, with DurationBeats recomputed
func (n Note) withEnd(end float64, tempo Tempo) Note {
	n.End = end
	n.DurationBeats = tempo.Beats(end - n.Start)
	return n
}

// withLength returns a copy of n lasting exactly beats
func (n Note) withLength(beats float64, tempo Tempo) Note {
	n.End = n.Start + tempo.Seconds(beats)
	n.DurationBeats = beats
	return n
}

// DurationName returns the common name of a note length in beats ("quarter", "half", ...)
func DurationName(beats float64) string {
	names := []struct {
		beats float64
		name  string
	}{
		{0.25, "16th"},
		{0.5, "8th"},
		{1.0, "quarter"},
		{1.5, "dotted quarter"},
		{2.0, "half"},
		{3.0, "dotted half"},
		{4.0, "whole"},
	}
	for _, n := range names {
		if abs(beats-n.beats) < 1e-6 {
			return n.name
		}
	}
	return fmt.Sprintf("%.2f beats", beats)
}

func abs(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}
