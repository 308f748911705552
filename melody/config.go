package melody

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"slices"
	"sort"

	"gopkg.in/yaml.v3"
)

const (
	PresetEighth    = "eighth"
	PresetSixteenth = "sixteenth"
)

// FrameSampleRate is the rate FrameSize and FrameHop are expressed at
const FrameSampleRate = 22050

// Config holds every tunable of a transcription run
type Config struct {
	TempoBPM       float64 `yaml:"tempo_bpm" json:"tempo_bpm"`
	HopWindowBeats float64 `yaml:"hop_window_beats" json:"hop_window_beats"`

	// Window analysis
	SilenceThreshold   float64 `yaml:"silence_threshold" json:"silence_threshold"`
	// pitch frame lengths in samples at FrameSampleRate
	FrameSize          int     `yaml:"frame_size" json:"frame_size"`
	FrameHop           int     `yaml:"frame_hop" json:"frame_hop"`
	MinFrequency       float64 `yaml:"min_frequency" json:"min_frequency"`
	MaxFrequency       float64 `yaml:"max_frequency" json:"max_frequency"`
	YinThreshold       float64 `yaml:"yin_threshold" json:"yin_threshold"`
	MinNote            int     `yaml:"min_note" json:"min_note"`
	MaxNote            int     `yaml:"max_note" json:"max_note"`
	MinVoicedFraction  float64 `yaml:"min_voiced_fraction" json:"min_voiced_fraction"`
	StabilityThreshold float64 `yaml:"stability_threshold" json:"stability_threshold"`
	Workers            int     `yaml:"workers" json:"workers"`           // 0 = GOMAXPROCS
	DCCutoffHz         float64 `yaml:"dc_cutoff_hz" json:"dc_cutoff_hz"` // 0 disables DC removal

	// Grouping and overlap resolution
	LegatoGapSeconds float64 `yaml:"legato_gap_seconds" json:"legato_gap_seconds"`
	MinGroupBeats    float64 `yaml:"min_group_beats" json:"min_group_beats"`

	// Quantization
	GridDivision       int       `yaml:"grid_division" json:"grid_division"`
	CanonicalDurations []float64 `yaml:"canonical_durations" json:"canonical_durations"`

	// Tiny note cleanup, disabled when TinyNoteBeats is 0
	TinyNoteBeats       float64 `yaml:"tiny_note_beats" json:"tiny_note_beats"`
	IsolationGapBeats   float64 `yaml:"isolation_gap_beats" json:"isolation_gap_beats"`
	TinyNoteExtendBeats float64 `yaml:"tiny_note_extend_beats" json:"tiny_note_extend_beats"`

	// Density simplification
	DensityWindowBeats  float64 `yaml:"density_window_beats" json:"density_window_beats"`
	BusyThreshold       int     `yaml:"busy_threshold" json:"busy_threshold"`
	StrongBeatTolerance float64 `yaml:"strong_beat_tolerance" json:"strong_beat_tolerance"`
	MaxStrongNotes      int     `yaml:"max_strong_notes" json:"max_strong_notes"`
	MinStrongNotes      int     `yaml:"min_strong_notes" json:"min_strong_notes"`
	FallbackKeep        int     `yaml:"fallback_keep" json:"fallback_keep"`
	MinSimplifiedBeats  float64 `yaml:"min_simplified_beats" json:"min_simplified_beats"`

	// Flow smoothing
	JoinGapBeats float64 `yaml:"join_gap_beats" json:"join_gap_beats"`
	MinKeepBeats float64 `yaml:"min_keep_beats" json:"min_keep_beats"`
}

// DefaultConfig returns the eighth-note preset
func DefaultConfig() Config {
	return Config{
		TempoBPM:       148,
		HopWindowBeats: 1.0,

		SilenceThreshold:   0.01,
		FrameSize:          2048,
		FrameHop:           256,
		MinFrequency:       130.8128, // C3
		MaxFrequency:       1046.502, // C6
		YinThreshold:       0.15,
		MinNote:            36,
		MaxNote:            84,
		MinVoicedFraction:  0.25,
		StabilityThreshold: 0.30,

		LegatoGapSeconds: 0.2,
		MinGroupBeats:    0.5,

		GridDivision:       2,
		CanonicalDurations: []float64{0.5, 1.0, 1.5, 2.0, 3.0, 4.0},

		IsolationGapBeats:   1.0,
		TinyNoteExtendBeats: 1.0,

		DensityWindowBeats:  2.0,
		BusyThreshold:       8, // 4 notes per beat over 2 beats
		StrongBeatTolerance: 0.25,
		MaxStrongNotes:      6,
		MinStrongNotes:      3,
		FallbackKeep:        4,
		MinSimplifiedBeats:  1.0,

		JoinGapBeats: 0.25,
		MinKeepBeats: 0.5,
	}
}

// Presets returns the named presets
func Presets() map[string]Config {
	sixteenth := DefaultConfig()
	sixteenth.TempoBPM = 139
	sixteenth.GridDivision = 4
	sixteenth.CanonicalDurations = []float64{0.25, 0.5, 1.0, 1.5, 2.0, 3.0, 4.0}
	sixteenth.TinyNoteBeats = 0.25
	sixteenth.JoinGapBeats = 0.15
	sixteenth.MinKeepBeats = 0.25

	return map[string]Config{
		PresetEighth:    DefaultConfig(),
		PresetSixteenth: sixteenth,
	}
}

// PresetNames returns the preset names in sorted order
func PresetNames() []string {
	names := make([]string, 0, 2)
	for name := range Presets() {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Preset returns a copy of the named preset. An empty name selects the default.
func Preset(name string) (Config, error) {
	if name == "" {
		return DefaultConfig(), nil
	}
	cfg, ok := Presets()[name]
	if !ok {
		return Config{}, fmt.Errorf("%w: unknown preset %q (available: %v)", ErrConfiguration, name, PresetNames())
	}
	return cfg, nil
}

// FrameLengths returns FrameSize and FrameHop scaled from FrameSampleRate
// to sampleRate, so a pitch frame covers the same time at any rate.
func (c Config) FrameLengths(sampleRate int) (size, hop int) {
	scale := func(n int) int {
		return max(1, int(math.Round(float64(n)*float64(sampleRate)/FrameSampleRate)))
	}
	return scale(c.FrameSize), scale(c.FrameHop)
}

// WithPreset returns c with the rhythm settings of the named preset: tempo,
// grid, canonical durations and the tiny, join and keep lengths. Analysis
// and runtime settings keep the values from c.
func (c Config) WithPreset(name string) (Config, error) {
	p, err := Preset(name)
	if err != nil {
		return Config{}, err
	}

	c.TempoBPM = p.TempoBPM
	c.GridDivision = p.GridDivision
	c.CanonicalDurations = p.CanonicalDurations
	c.TinyNoteBeats = p.TinyNoteBeats
	c.JoinGapBeats = p.JoinGapBeats
	c.MinKeepBeats = p.MinKeepBeats
	return c, nil
}

// LoadConfig reads a YAML config file. A top-level "preset" key selects the
// base preset; all other keys override it.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", path, err)
	}
	return ParseConfig(data)
}

// ParseConfig decodes YAML config data the same way LoadConfig does
func ParseConfig(data []byte) (Config, error) {
	return ParseConfigWithPreset("", data)
}

// ParseConfigWithPreset is ParseConfig with the base preset used when the
// data does not name one
func ParseConfigWithPreset(fallback string, data []byte) (Config, error) {
	var head struct {
		Preset string `yaml:"preset"`
	}
	if err := yaml.Unmarshal(data, &head); err != nil {
		return Config{}, fmt.Errorf("%w: failed to parse config: %v", ErrConfiguration, err)
	}
	if head.Preset == "" {
		head.Preset = fallback
	}

	cfg, err := Preset(head.Preset)
	if err != nil {
		return Config{}, err
	}

	// decode over the preset; absent keys keep the preset values
	var overlay struct {
		Preset string `yaml:"preset"`
		Config `yaml:",inline"`
	}
	overlay.Config = cfg
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&overlay); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("%w: failed to parse config: %v", ErrConfiguration, err)
	}

	if err := overlay.Config.Validate(); err != nil {
		return Config{}, err
	}
	return overlay.Config, nil
}

// Tempo returns the configured tempo
func (c Config) Tempo() Tempo {
	return Tempo{BPM: c.TempoBPM}
}

// WindowSeconds returns the analysis window length in seconds
func (c Config) WindowSeconds() float64 {
	return c.Tempo().Seconds(c.HopWindowBeats)
}

// Validate checks the configuration and returns an error wrapping ErrConfiguration
func (c Config) Validate() error {
	fail := func(format string, args ...any) error {
		return fmt.Errorf("%w: "+format, append([]any{ErrConfiguration}, args...)...)
	}

	if !(c.TempoBPM > 0) {
		return fail("tempo must be positive, got %v", c.TempoBPM)
	}
	if !(c.HopWindowBeats > 0) {
		return fail("hop window must be positive, got %v beats", c.HopWindowBeats)
	}
	if c.SilenceThreshold < 0 {
		return fail("silence threshold must not be negative")
	}
	if c.FrameSize <= 0 || c.FrameHop <= 0 {
		return fail("frame size and hop must be positive, got %d/%d", c.FrameSize, c.FrameHop)
	}
	if !(c.MinFrequency > 0) || c.MaxFrequency <= c.MinFrequency {
		return fail("invalid frequency range %.2f-%.2f Hz", c.MinFrequency, c.MaxFrequency)
	}
	if c.YinThreshold <= 0 || c.YinThreshold >= 1 {
		return fail("yin threshold must be in (0, 1), got %v", c.YinThreshold)
	}
	if c.MinNote < 0 || c.MaxNote > 127 || c.MinNote > c.MaxNote {
		return fail("invalid note range [%d, %d]", c.MinNote, c.MaxNote)
	}
	if !inUnitInterval(c.MinVoicedFraction) || !inUnitInterval(c.StabilityThreshold) {
		return fail("voiced fraction and stability threshold must be in [0, 1]")
	}
	if c.Workers < 0 {
		return fail("workers must not be negative")
	}
	if c.DCCutoffHz < 0 || c.DCCutoffHz >= c.MinFrequency {
		return fail("dc cutoff must be in [0, %.2f) Hz, got %v", c.MinFrequency, c.DCCutoffHz)
	}
	if c.LegatoGapSeconds < 0 || c.MinGroupBeats < 0 {
		return fail("legato gap and minimum group length must not be negative")
	}
	if c.GridDivision <= 0 {
		return fail("grid division must be positive, got %d", c.GridDivision)
	}
	if len(c.CanonicalDurations) == 0 {
		return fail("canonical durations must not be empty")
	}
	if c.CanonicalDurations[0] <= 0 || !slices.IsSorted(c.CanonicalDurations) || hasDuplicates(c.CanonicalDurations) {
		return fail("canonical durations must be positive and strictly ascending, got %v", c.CanonicalDurations)
	}
	if c.TinyNoteBeats < 0 || c.IsolationGapBeats < 0 || c.TinyNoteExtendBeats < 0 {
		return fail("tiny note parameters must not be negative")
	}
	if c.TinyNoteBeats > 0 && c.TinyNoteExtendBeats > c.IsolationGapBeats {
		return fail("tiny note extension (%v) must not exceed the isolation gap (%v)", c.TinyNoteExtendBeats, c.IsolationGapBeats)
	}
	if !(c.DensityWindowBeats > 0) || c.BusyThreshold <= 0 {
		return fail("density window and busy threshold must be positive")
	}
	if c.StrongBeatTolerance < 0 || c.StrongBeatTolerance > 0.5 {
		return fail("strong beat tolerance must be in [0, 0.5], got %v", c.StrongBeatTolerance)
	}
	if c.MaxStrongNotes <= 0 || c.MinStrongNotes <= 0 || c.FallbackKeep <= 0 {
		return fail("strong note limits and fallback keep must be positive")
	}
	if c.MinSimplifiedBeats < 0 || c.JoinGapBeats < 0 || c.MinKeepBeats < 0 {
		return fail("simplification and smoothing lengths must not be negative")
	}
	return nil
}

func inUnitInterval(v float64) bool {
	return v >= 0 && v <= 1
}

func hasDuplicates(sorted []float64) bool {
	for i := 1; i < len(sorted); i++ {
		if sorted[i] == sorted[i-1] {
			return true
		}
	}
	return false
}
