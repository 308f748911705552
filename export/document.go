package export

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/RyanBlaney/sonido-melody/melody"
)

// Format selects the note-list encoding
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// ParseFormat accepts "json", "yaml" or "yml" in any case; empty means JSON
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "json":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("unknown document format %q", s)
	}
}

// Extension returns the file extension for f, including the dot
func (f Format) Extension() string {
	if f == FormatYAML {
		return ".yaml"
	}
	return ".json"
}

// Document is the exported note list
type Document struct {
	TempoBPM  float64       `json:"tempo_bpm" yaml:"tempo_bpm"`
	NoteCount int           `json:"note_count" yaml:"note_count"`
	Notes     []melody.Note `json:"notes" yaml:"notes"`
}

// NewDocument builds a document; Notes is never nil
func NewDocument(tempo melody.Tempo, notes []melody.Note) Document {
	out := make([]melody.Note, len(notes))
	copy(out, notes)
	return Document{
		TempoBPM:  tempo.BPM,
		NoteCount: len(out),
		Notes:     out,
	}
}

// Tempo returns the document tempo
func (d Document) Tempo() melody.Tempo {
	return melody.Tempo{BPM: d.TempoBPM}
}

// Encode writes d to w in format
func (d Document) Encode(w io.Writer, format Format) error {
	switch format {
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(d); err != nil {
			return fmt.Errorf("failed to encode yaml: %w", err)
		}
		return enc.Close()
	case FormatJSON, "":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(d); err != nil {
			return fmt.Errorf("failed to encode json: %w", err)
		}
		return nil
	default:
		return fmt.Errorf("unknown document format %q", format)
	}
}

// WriteFile writes d to path in format
func (d Document) WriteFile(path string, format Format) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := d.Encode(f, format); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// DecodeDocument reads a document written by Encode
func DecodeDocument(r io.Reader, format Format) (Document, error) {
	var d Document
	var err error
	switch format {
	case FormatYAML:
		err = yaml.NewDecoder(r).Decode(&d)
	default:
		err = json.NewDecoder(r).Decode(&d)
	}
	if err != nil {
		return Document{}, fmt.Errorf("failed to decode document: %w", err)
	}
	if d.Notes == nil {
		d.Notes = []melody.Note{}
	}
	return d, nil
}
