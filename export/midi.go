package export

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/smf"

	"github.com/RyanBlaney/sonido-melody/melody"
)

const (
	TicksPerBeat    = 480
	DefaultVelocity = 80
	TrackName       = "Main Melody"
)

// BuildMIDI renders notes as a single-track file at tempo. Each note-on is
// delayed from the previous note-off by the gap between them; each note-off
// follows its note-on by the note's quantized length.
func BuildMIDI(tempo melody.Tempo, notes []melody.Note) (*smf.SMF, error) {
	if !(tempo.BPM > 0) {
		return nil, fmt.Errorf("invalid tempo %v", tempo.BPM)
	}

	var track smf.Track
	track.Add(0, smf.MetaTrackSequenceName(TrackName))
	track.Add(0, smf.MetaTempo(tempo.BPM))

	lastEnd := 0
	for _, n := range notes {
		if n.Pitch < 0 || n.Pitch > 127 {
			return nil, fmt.Errorf("note %d outside the MIDI range", n.Pitch)
		}
		startTick := int(tempo.Beats(n.Start) * TicksPerBeat)
		durationTicks := int(n.DurationBeats * TicksPerBeat)

		track.Add(uint32(max(0, startTick-lastEnd)), midi.NoteOn(0, uint8(n.Pitch), DefaultVelocity))
		track.Add(uint32(max(0, durationTicks)), midi.NoteOff(0, uint8(n.Pitch)))

		lastEnd = startTick + durationTicks
	}
	track.Close(0)

	s := smf.New()
	s.TimeFormat = smf.MetricTicks(TicksPerBeat)
	if err := s.Add(track); err != nil {
		return nil, fmt.Errorf("failed to add track: %w", err)
	}
	return s, nil
}

// WriteMIDI writes notes to w as a standard MIDI file
func WriteMIDI(w io.Writer, tempo melody.Tempo, notes []melody.Note) error {
	s, err := BuildMIDI(tempo, notes)
	if err != nil {
		return err
	}
	if _, err := s.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write midi: %w", err)
	}
	return nil
}

// WriteMIDIFile writes notes to path
func WriteMIDIFile(path string, tempo melody.Tempo, notes []melody.Note) error {
	var buf bytes.Buffer
	if err := WriteMIDI(&buf, tempo, notes); err != nil {
		return err
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

// ReadMIDI reads a melody track back into a document. The first tempo meta
// event sets the tempo (120 bpm when absent); note start and end times are
// recovered from absolute tick positions.
func ReadMIDI(r io.Reader) (doc Document, err error) {
	// smf can panic on malformed input
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("failed to parse midi: %v", rec)
		}
	}()

	s, err := smf.ReadFrom(r)
	if err != nil {
		return Document{}, fmt.Errorf("failed to parse midi: %w", err)
	}

	ticks, ok := s.TimeFormat.(smf.MetricTicks)
	if !ok {
		return Document{}, errors.New("midi file does not use metric ticks")
	}
	resolution := float64(ticks)

	var notes []melody.Note
	pending := make(map[uint8]int64) // key -> note-on tick
	tempo := melody.Tempo{BPM: 120}
	tempoSet := false

	for _, track := range s.Tracks {
		var abs int64
		for _, ev := range track {
			abs += int64(ev.Delta)

			var channel, key, velocity uint8
			var value float64
			switch {
			case !tempoSet && ev.Message.GetMetaTempo(&value):
				tempo = melody.Tempo{BPM: value}
				tempoSet = true
			case ev.Message.GetNoteOn(&channel, &key, &velocity):
				pending[key] = abs
			case ev.Message.GetNoteOff(&channel, &key, &velocity):
				on, found := pending[key]
				if !found {
					continue
				}
				delete(pending, key)
				beats := float64(abs-on) / resolution
				start := tempo.Seconds(float64(on) / resolution)
				notes = append(notes, melody.Note{
					Start:         start,
					End:           start + tempo.Seconds(beats),
					Pitch:         int(key),
					DurationBeats: beats,
				})
			}
		}
	}

	return NewDocument(tempo, notes), nil
}
