package melody

import (
	"github.com/RyanBlaney/sonido-melody/algorithms/tonal"
	"github.com/RyanBlaney/sonido-melody/logging"
)

// Stage names a pipeline stage
type Stage string

const (
	StageAnalysis     Stage = "analysis"
	StageGrouping     Stage = "grouping"
	StageQuantization Stage = "quantization"
	StageOverlap      Stage = "overlap_resolution"
	StageCleanup      Stage = "tiny_note_cleanup"
	StageDensity      Stage = "density_simplification"
	StageSmoothing    Stage = "flow_smoothing"
)

// Observer receives pipeline checkpoints. Implementations must not block.
type Observer interface {
	StageCompleted(stage Stage, count int)
	BusySection(start float64, before, after int)
	MelodyCompleted(tempo Tempo, notes []Note)
}

// NopObserver discards every checkpoint
type NopObserver struct{}

func (NopObserver) StageCompleted(Stage, int) {}
func (NopObserver) BusySection(float64, int, int) {}
func (NopObserver) MelodyCompleted(Tempo, []Note) {}

// LoggingObserver writes checkpoints to a logging.Logger
type LoggingObserver struct {
	logger logging.Logger
}

// NewLoggingObserver creates an observer that logs through logger
func NewLoggingObserver(logger logging.Logger) *LoggingObserver {
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	return &LoggingObserver{logger: logger}
}

func (o *LoggingObserver) StageCompleted(stage Stage, count int) {
	o.logger.Info("Stage completed", logging.Fields{
		"stage": string(stage),
		"count": count,
	})
}

func (o *LoggingObserver) BusySection(start float64, before, after int) {
	o.logger.Debug("Simplified busy section", logging.Fields{
		"start":        start,
		"notes_before": before,
		"notes_after":  after,
	})
}

func (o *LoggingObserver) MelodyCompleted(tempo Tempo, notes []Note) {
	for i, n := range notes {
		o.logger.Debug("Melody note", logging.Fields{
			"index":    i + 1,
			"note":     tonal.MidiToNoteName(n.Pitch),
			"start":    n.Start,
			"beats":    n.DurationBeats,
			"duration": DurationName(n.DurationBeats),
		})
	}
	o.logger.Info("Melody extracted", logging.Fields{
		"tempo_bpm":  tempo.BPM,
		"note_count": len(notes),
	})
}
