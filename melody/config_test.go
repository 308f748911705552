package melody

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 148.0, cfg.TempoBPM)
	assert.Equal(t, 2, cfg.GridDivision)
	assert.InDelta(t, 60.0/148.0, cfg.WindowSeconds(), 1e-12)
}

func TestPresets(t *testing.T) {
	assert.Equal(t, []string{PresetEighth, PresetSixteenth}, PresetNames())

	for _, name := range PresetNames() {
		cfg, err := Preset(name)
		require.NoError(t, err)
		assert.NoError(t, cfg.Validate(), name)
	}

	sixteenth, err := Preset(PresetSixteenth)
	require.NoError(t, err)
	assert.Equal(t, 139.0, sixteenth.TempoBPM)
	assert.Equal(t, 4, sixteenth.GridDivision)
	assert.Equal(t, []float64{0.25, 0.5, 1.0, 1.5, 2.0, 3.0, 4.0}, sixteenth.CanonicalDurations)

	def, err := Preset("")
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), def)

	_, err = Preset("triplet")
	assert.ErrorIs(t, err, ErrConfiguration)
}

func TestPresetsAreIndependentCopies(t *testing.T) {
	a, _ := Preset(PresetEighth)
	a.CanonicalDurations[0] = 99

	b, _ := Preset(PresetEighth)
	assert.Equal(t, 0.5, b.CanonicalDurations[0])
}

func TestWithPresetKeepsAnalysisSettings(t *testing.T) {
	base := DefaultConfig()
	base.Workers = 3
	base.DCCutoffHz = 20
	base.YinThreshold = 0.2

	cfg, err := base.WithPreset(PresetSixteenth)
	require.NoError(t, err)
	assert.Equal(t, 139.0, cfg.TempoBPM)
	assert.Equal(t, 4, cfg.GridDivision)
	assert.Equal(t, 0.25, cfg.MinKeepBeats)
	assert.Equal(t, 3, cfg.Workers)
	assert.Equal(t, 20.0, cfg.DCCutoffHz)
	assert.Equal(t, 0.2, cfg.YinThreshold)
	require.NoError(t, cfg.Validate())

	_, err = base.WithPreset("waltz")
	assert.ErrorIs(t, err, ErrConfiguration)
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"zero tempo", func(c *Config) { c.TempoBPM = 0 }},
		{"negative tempo", func(c *Config) { c.TempoBPM = -120 }},
		{"zero window", func(c *Config) { c.HopWindowBeats = 0 }},
		{"zero grid", func(c *Config) { c.GridDivision = 0 }},
		{"no durations", func(c *Config) { c.CanonicalDurations = nil }},
		{"unsorted durations", func(c *Config) { c.CanonicalDurations = []float64{1, 0.5} }},
		{"duplicate durations", func(c *Config) { c.CanonicalDurations = []float64{0.5, 0.5, 1} }},
		{"inverted note range", func(c *Config) { c.MinNote, c.MaxNote = 84, 36 }},
		{"note above midi", func(c *Config) { c.MaxNote = 128 }},
		{"voiced fraction above one", func(c *Config) { c.MinVoicedFraction = 1.5 }},
		{"inverted frequency range", func(c *Config) { c.MinFrequency, c.MaxFrequency = 500, 100 }},
		{"yin threshold", func(c *Config) { c.YinThreshold = 1 }},
		{"busy threshold", func(c *Config) { c.BusyThreshold = 0 }},
		{"negative workers", func(c *Config) { c.Workers = -1 }},
		{"zero min strong notes", func(c *Config) { c.MinStrongNotes = 0 }},
		{"negative dc cutoff", func(c *Config) { c.DCCutoffHz = -1 }},
		{"dc cutoff inside the pitch range", func(c *Config) { c.DCCutoffHz = 200 }},
		{"extension beyond isolation", func(c *Config) {
			c.TinyNoteBeats = 0.25
			c.TinyNoteExtendBeats = 2
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			assert.ErrorIs(t, cfg.Validate(), ErrConfiguration)
		})
	}
}

func TestParseConfigOverridesPreset(t *testing.T) {
	data := []byte(`
preset: sixteenth
tempo_bpm: 100
canonical_durations: [0.5, 1, 2]
`)
	cfg, err := ParseConfig(data)
	require.NoError(t, err)

	assert.Equal(t, 100.0, cfg.TempoBPM)
	assert.Equal(t, []float64{0.5, 1, 2}, cfg.CanonicalDurations)
	// untouched keys come from the sixteenth preset
	assert.Equal(t, 4, cfg.GridDivision)
	assert.Equal(t, 0.25, cfg.TinyNoteBeats)
}

func TestParseConfigWithPresetFallback(t *testing.T) {
	cfg, err := ParseConfigWithPreset("sixteenth", []byte("tempo_bpm: 100\n"))
	require.NoError(t, err)
	assert.Equal(t, 100.0, cfg.TempoBPM)
	assert.Equal(t, 4, cfg.GridDivision)

	// a preset named in the data wins
	cfg, err = ParseConfigWithPreset("sixteenth", []byte("preset: eighth\n"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestParseConfigErrors(t *testing.T) {
	_, err := ParseConfig([]byte("tempo_bpm: -1\n"))
	assert.ErrorIs(t, err, ErrConfiguration)

	_, err = ParseConfig([]byte("tempo: 120\n"))
	assert.ErrorIs(t, err, ErrConfiguration, "unknown keys are rejected")

	_, err = ParseConfig([]byte("min_strong_notes: 0\n"))
	assert.ErrorIs(t, err, ErrConfiguration)

	_, err = ParseConfig([]byte("preset: waltz\n"))
	assert.ErrorIs(t, err, ErrConfiguration)

	_, err = ParseConfig([]byte("tempo_bpm: [1, 2\n"))
	assert.ErrorIs(t, err, ErrConfiguration)
}

func TestParseConfigEmpty(t *testing.T) {
	cfg, err := ParseConfig(nil)
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "melody.yaml")
	require.NoError(t, os.WriteFile(path, []byte("tempo_bpm: 90\nworkers: 2\n"), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 90.0, cfg.TempoBPM)
	assert.Equal(t, 2, cfg.Workers)

	_, err = LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestNewTempo(t *testing.T) {
	tempo, err := NewTempo(120)
	require.NoError(t, err)
	assert.Equal(t, 0.5, tempo.BeatDuration())
	assert.Equal(t, 4.0, tempo.Beats(2))
	assert.Equal(t, 1.5, tempo.Seconds(3))

	_, err = NewTempo(0)
	assert.ErrorIs(t, err, ErrConfiguration)
}
