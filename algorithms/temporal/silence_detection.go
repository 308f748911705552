package temporal

import (
	"github.com/RyanBlaney/sonido-melody/algorithms/common"
)

// SilenceDetection gates audio windows by peak amplitude
type SilenceDetection struct {
	threshold float64
}

// NewSilenceDetection creates a silence detector; windows whose peak absolute
// amplitude is below threshold count as silent.
func NewSilenceDetection(threshold float64) *SilenceDetection {
	return &SilenceDetection{threshold: threshold}
}

// IsSilent reports whether the window's peak amplitude is below the threshold.
// An empty window is silent.
func (sd *SilenceDetection) IsSilent(window []float64) bool {
	return common.PeakAmplitude(window) < sd.threshold
}

// ComputeSilenceRatio returns the fraction of full windows of windowSize samples that are silent
func (sd *SilenceDetection) ComputeSilenceRatio(signal []float64, windowSize int) float64 {
	frames := common.NewSlidingWindow(windowSize, windowSize).Frames(signal)
	if len(frames) == 0 {
		return 0.0
	}

	silent := 0
	for _, frame := range frames {
		if sd.IsSilent(frame) {
			silent++
		}
	}

	return common.Fraction(silent, len(frames))
}
