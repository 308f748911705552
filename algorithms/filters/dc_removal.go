package filters

import (
	"math"
)

// DCRemoval is a first-order DC blocking filter:
//
//	y[n] = x[n] - x[n-1] + R*y[n-1]
//
// See Julius O. Smith III, "Introduction to Digital Filters with Audio
// Applications", DC Blocker.
type DCRemoval struct {
	poleLocation float64 // R, 0 < R < 1

	x1 float64
	y1 float64
}

// NewDCRemoval creates a filter with the standard pole location of 0.995
func NewDCRemoval() *DCRemoval {
	return &DCRemoval{poleLocation: 0.995}
}

// NewDCRemovalWithCutoff creates a filter with a -3dB point near cutoffFreq,
// using R = 1 - 2*pi*fc/fs. R is clamped into (0, 1).
func NewDCRemovalWithCutoff(sampleRate int, cutoffFreq float64) *DCRemoval {
	if sampleRate <= 0 || cutoffFreq <= 0 {
		return NewDCRemoval()
	}

	r := 1.0 - (2.0 * math.Pi * cutoffFreq / float64(sampleRate))
	r = math.Min(math.Max(r, 0.001), 0.999)
	return &DCRemoval{poleLocation: r}
}

// Process filters a single sample
func (dc *DCRemoval) Process(input float64) float64 {
	output := input - dc.x1 + dc.poleLocation*dc.y1
	dc.x1 = input
	dc.y1 = output
	return output
}

// ProcessBuffer filters input into a new slice, carrying state across calls
func (dc *DCRemoval) ProcessBuffer(input []float64) []float64 {
	output := make([]float64, len(input))
	for i, sample := range input {
		output[i] = dc.Process(sample)
	}
	return output
}

// Reset clears the filter state
func (dc *DCRemoval) Reset() {
	dc.x1 = 0.0
	dc.y1 = 0.0
}

// PoleLocation returns R
func (dc *DCRemoval) PoleLocation() float64 {
	return dc.poleLocation
}

// CutoffFrequency returns the approximate -3dB frequency at sampleRate,
// fc = (1-R)*fs/(2*pi)
func (dc *DCRemoval) CutoffFrequency(sampleRate int) float64 {
	if sampleRate <= 0 {
		return 0.0
	}
	return (1.0 - dc.poleLocation) * float64(sampleRate) / (2.0 * math.Pi)
}
