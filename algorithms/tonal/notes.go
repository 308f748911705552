package tonal

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

var noteNames = []string{"C", "C#", "D", "D#", "E", "F", "F#", "G", "G#", "A", "A#", "B"}

var noteOffsets = map[byte]int{'C': 0, 'D': 2, 'E': 4, 'F': 5, 'G': 7, 'A': 9, 'B': 11}

// HzToMidi converts a frequency to a fractional MIDI note number (A4 = 440 Hz = 69)
func HzToMidi(frequency float64) float64 {
	if frequency <= 0 {
		return math.Inf(-1)
	}
	return 69.0 + 12.0*math.Log2(frequency/440.0)
}

// MidiToHz converts a (possibly fractional) MIDI note number to Hz
func MidiToHz(note float64) float64 {
	return 440.0 * math.Pow(2, (note-69.0)/12.0)
}

// NearestNote rounds a frequency to the nearest semitone
func NearestNote(frequency float64) int {
	return int(math.Round(HzToMidi(frequency)))
}

// NoteNameToMidi parses scientific pitch notation ("C4", "F#3", "Bb5", "A-1").
// C4 is 60.
func NoteNameToMidi(name string) (int, error) {
	s := strings.TrimSpace(name)
	if len(s) < 2 {
		return 0, fmt.Errorf("invalid note name: %q", name)
	}

	offset, ok := noteOffsets[strings.ToUpper(s[:1])[0]]
	if !ok {
		return 0, fmt.Errorf("invalid note letter in %q", name)
	}

	rest := s[1:]
	for len(rest) > 0 && (rest[0] == '#' || rest[0] == 'b') {
		if rest[0] == '#' {
			offset++
		} else {
			offset--
		}
		rest = rest[1:]
	}

	octave, err := strconv.Atoi(rest)
	if err != nil {
		return 0, fmt.Errorf("invalid octave in %q: %w", name, err)
	}

	return (octave+1)*12 + offset, nil
}

// MidiToNoteName formats a MIDI note number in scientific pitch notation using sharps
func MidiToNoteName(note int) string {
	octave := note/12 - 1
	pc := note % 12
	if pc < 0 {
		pc += 12
		octave--
	}
	return fmt.Sprintf("%s%d", noteNames[pc], octave)
}
