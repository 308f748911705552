package export

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gitlab.com/gomidi/midi/v2/smf"

	"github.com/RyanBlaney/sonido-melody/melody"
)

var tempo120 = melody.Tempo{BPM: 120}

func sampleNotes() []melody.Note {
	return []melody.Note{
		{Start: 0, End: 1, Pitch: 60, DurationBeats: 2},
		{Start: 1.5, End: 2, Pitch: 64, DurationBeats: 1},
		{Start: 2, End: 2.25, Pitch: 67, DurationBeats: 0.5},
	}
}

func TestDocumentJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewDocument(tempo120, sampleNotes()).Encode(&buf, FormatJSON))

	assert.Contains(t, buf.String(), `"tempo_bpm": 120`)
	assert.Contains(t, buf.String(), `"note_count": 3`)
	assert.Contains(t, buf.String(), `"duration_beats": 0.5`)

	doc, err := DecodeDocument(&buf, FormatJSON)
	require.NoError(t, err)
	assert.Equal(t, sampleNotes(), doc.Notes)
	assert.Equal(t, tempo120, doc.Tempo())
}

func TestDocumentYAML(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewDocument(tempo120, sampleNotes()).Encode(&buf, FormatYAML))

	assert.Contains(t, buf.String(), "tempo_bpm: 120")
	assert.Contains(t, buf.String(), "note: 64")

	doc, err := DecodeDocument(&buf, FormatYAML)
	require.NoError(t, err)
	assert.Equal(t, 3, doc.NoteCount)
	assert.Equal(t, sampleNotes(), doc.Notes)
}

func TestEmptyDocumentHasNoteList(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewDocument(tempo120, nil).Encode(&buf, FormatJSON))
	assert.Contains(t, buf.String(), `"notes": []`)
}

func TestParseFormat(t *testing.T) {
	for in, want := range map[string]Format{"": FormatJSON, "JSON": FormatJSON, "yml": FormatYAML, "yaml": FormatYAML} {
		got, err := ParseFormat(in)
		require.NoError(t, err)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseFormat("xml")
	assert.Error(t, err)

	assert.Equal(t, ".yaml", FormatYAML.Extension())
	assert.Equal(t, ".json", FormatJSON.Extension())
}

func TestWriteMIDIEvents(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteMIDI(&buf, tempo120, sampleNotes()))

	s, err := smf.ReadFrom(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	assert.Equal(t, smf.MetricTicks(TicksPerBeat), s.TimeFormat)
	require.Len(t, s.Tracks, 1)

	var (
		bpm      float64
		named    bool
		onDelta  []uint32
		offDelta []uint32
		keys     []uint8
	)
	for _, ev := range s.Tracks[0] {
		var channel, key, velocity uint8
		var value float64
		switch {
		case ev.Message.GetMetaTempo(&value):
			bpm = value
		case ev.Message.GetNoteOn(&channel, &key, &velocity):
			assert.Equal(t, uint8(DefaultVelocity), velocity)
			onDelta = append(onDelta, ev.Delta)
			keys = append(keys, key)
		case ev.Message.GetNoteOff(&channel, &key, &velocity):
			offDelta = append(offDelta, ev.Delta)
		case bytes.Contains(ev.Message, []byte(TrackName)):
			named = true
		}
	}

	assert.InDelta(t, 120.0, bpm, 1e-6)
	assert.True(t, named)
	assert.Equal(t, []uint8{60, 64, 67}, keys)
	// starts at ticks 0, 1440, 1920; lengths 960, 480, 240
	assert.Equal(t, []uint32{0, 480, 0}, onDelta)
	assert.Equal(t, []uint32{960, 480, 240}, offDelta)
}

func TestMIDIRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "main_melody.mid")
	require.NoError(t, WriteMIDIFile(path, melody.Tempo{BPM: 148}, sampleNotes()))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	doc, err := ReadMIDI(f)
	require.NoError(t, err)
	assert.InDelta(t, 148.0, doc.TempoBPM, 1e-3)
	require.Len(t, doc.Notes, 3)

	for i, want := range sampleNotes() {
		got := doc.Notes[i]
		assert.Equal(t, want.Pitch, got.Pitch)
		assert.Equal(t, want.DurationBeats, got.DurationBeats)
		// one tick at 148 bpm is under a millisecond
		assert.InDelta(t, want.Start, got.Start, 0.002)
	}
}

func TestBuildMIDIRejectsBadInput(t *testing.T) {
	_, err := BuildMIDI(melody.Tempo{}, sampleNotes())
	assert.Error(t, err)

	_, err = BuildMIDI(tempo120, []melody.Note{{Start: 0, End: 1, Pitch: 200, DurationBeats: 2}})
	assert.Error(t, err)
}

func TestReadMIDIRejectsGarbage(t *testing.T) {
	_, err := ReadMIDI(bytes.NewReader([]byte("MThd but not really")))
	assert.Error(t, err)
}

func TestScoreConverterMissingTool(t *testing.T) {
	c := &ScoreConverter{Command: "/nonexistent/mscore"}
	assert.False(t, c.Available())

	err := c.Convert(context.Background(), "in.mid", "out.musicxml")
	assert.ErrorIs(t, err, ErrScoreUnavailable)
}

func TestScoreConverterRunsTool(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("shell script tool")
	}

	dir := t.TempDir()
	tool := filepath.Join(dir, "fake-mscore")
	// invoked as: tool -o <out> <in>
	require.NoError(t, os.WriteFile(tool, []byte("#!/bin/sh\ncp \"$3\" \"$2\"\n"), 0o755))

	in := filepath.Join(dir, "in.mid")
	require.NoError(t, WriteMIDIFile(in, tempo120, sampleNotes()))
	out := filepath.Join(dir, "out.musicxml")

	c := &ScoreConverter{Command: tool}
	require.NoError(t, c.Convert(context.Background(), in, out))
	assert.FileExists(t, out)

	failing := filepath.Join(dir, "failing-mscore")
	require.NoError(t, os.WriteFile(failing, []byte("#!/bin/sh\necho boom >&2\nexit 3\n"), 0o755))
	err := (&ScoreConverter{Command: failing}).Convert(context.Background(), in, filepath.Join(dir, "x.musicxml"))
	assert.ErrorIs(t, err, ErrScoreUnavailable)
	assert.Contains(t, err.Error(), "boom")
}
