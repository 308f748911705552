package melody

import (
	"context"
	"fmt"
	"time"

	"github.com/RyanBlaney/sonido-melody/algorithms/common"
	"github.com/RyanBlaney/sonido-melody/algorithms/filters"
	"github.com/RyanBlaney/sonido-melody/logging"
)

// Result is the outcome of one transcription run
type Result struct {
	Tempo        Tempo         `json:"tempo"`
	Notes        []Note        `json:"notes"`
	Observations int           `json:"observations"`
	Elapsed      time.Duration `json:"elapsed"`
}

// Empty reports whether no note survived the pipeline
func (r *Result) Empty() bool {
	return len(r.Notes) == 0
}

// Err returns ErrEmptyResult when no note survived, nil otherwise
func (r *Result) Err() error {
	if r.Empty() {
		return ErrEmptyResult
	}
	return nil
}

// Transcriber runs the full melody extraction pipeline
type Transcriber struct {
	config   Config
	observer Observer
	logger   logging.Logger
}

// Option configures a Transcriber
type Option func(*Transcriber)

// WithObserver sets the checkpoint observer
func WithObserver(observer Observer) Option {
	return func(t *Transcriber) {
		t.observer = observer
	}
}

// WithLogger sets the logger used for run-level messages
func WithLogger(logger logging.Logger) Option {
	return func(t *Transcriber) {
		t.logger = logger
	}
}

// NewTranscriber validates cfg and creates a Transcriber
func NewTranscriber(cfg Config, opts ...Option) (*Transcriber, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	t := &Transcriber{
		config:   cfg,
		observer: NopObserver{},
		logger:   &logging.NoOpLogger{},
	}
	for _, opt := range opts {
		opt(t)
	}
	return t, nil
}

// Config returns the run configuration
func (t *Transcriber) Config() Config {
	return t.config
}

// Transcribe extracts the melody of signal. An empty melody is not an error;
// see Result.Err.
func (t *Transcriber) Transcribe(ctx context.Context, signal Signal) (*Result, error) {
	started := time.Now()
	logger := t.logger.WithContext(ctx)

	if len(signal.Samples) == 0 {
		return nil, fmt.Errorf("%w: empty signal", ErrInput)
	}

	analyzer, err := NewChunkAnalyzer(t.config, signal.SampleRate)
	if err != nil {
		return nil, err
	}

	if t.config.DCCutoffHz > 0 {
		dc := filters.NewDCRemovalWithCutoff(signal.SampleRate, t.config.DCCutoffHz)
		signal = Signal{Samples: dc.ProcessBuffer(signal.Samples), SampleRate: signal.SampleRate}
	}

	logger.Debug("Analyzing signal", logging.Fields{
		"duration_s":     signal.Duration(),
		"sample_rate":    signal.SampleRate,
		"window_samples": analyzer.WindowSamples(),
		"silence_ratio":  analyzer.SilenceRatio(signal),
		"tempo_bpm":      t.config.TempoBPM,
	})

	observations, err := analyzer.Analyze(ctx, signal)
	if err != nil {
		return nil, fmt.Errorf("pitch analysis failed: %w", err)
	}
	confidence := make([]float64, len(observations))
	for i, obs := range observations {
		confidence[i] = obs.Confidence
	}
	logger.Debug("Pitch analysis finished", logging.Fields{
		"observations":    len(observations),
		"mean_confidence": common.Mean(confidence),
	})
	t.observer.StageCompleted(StageAnalysis, len(observations))

	notes, err := t.Refine(ctx, observations)
	if err != nil {
		return nil, err
	}

	result := &Result{
		Tempo:        t.config.Tempo(),
		Notes:        notes,
		Observations: len(observations),
		Elapsed:      time.Since(started),
	}
	t.observer.MelodyCompleted(result.Tempo, notes)

	if result.Empty() {
		logger.Warn("No stable melody found", logging.Fields{
			"observations": len(observations),
		})
	}
	return result, nil
}

// Refine runs every stage after pitch analysis over observations. The
// context is checked between stages.
func (t *Transcriber) Refine(ctx context.Context, observations []Observation) ([]Note, error) {
	density := NewDensitySimplifier(t.config)
	density.OnBusy = t.observer.BusySection

	stages := []struct {
		stage Stage
		run   func([]Note) []Note
	}{
		{StageQuantization, NewRhythmQuantizer(t.config).Quantize},
		{StageOverlap, NewOverlapResolver(t.config).Resolve},
		{StageCleanup, NewTinyNoteCleaner(t.config).Clean},
		{StageDensity, density.Simplify},
		{StageSmoothing, NewFlowSmoother(t.config).Smooth},
	}

	notes := NewNoteGrouper(t.config).Group(observations)
	t.observer.StageCompleted(StageGrouping, len(notes))

	for _, s := range stages {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		notes = s.run(notes)
		t.observer.StageCompleted(s.stage, len(notes))
	}
	return notes, nil
}
