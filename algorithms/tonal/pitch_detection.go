package tonal

import (
	"fmt"
	"math"

	"github.com/RyanBlaney/sonido-melody/algorithms/common"
	"github.com/RyanBlaney/sonido-melody/algorithms/spectral"
)

// PitchFrame is the pitch estimate for one analysis frame
type PitchFrame struct {
	Frequency  float64 `json:"frequency"`  // Hz, 0 when unvoiced
	Voiced     bool    `json:"voiced"`     // periodicity found inside the frequency range
	Confidence float64 `json:"confidence"` // 1 - aperiodicity at the chosen lag (0-1)
}

// PitchDetectionParams contains parameters for pitch detection
type PitchDetectionParams struct {
	SampleRate int `json:"sample_rate"`
	WindowSize int `json:"window_size"` // frame length in samples
	HopSize    int `json:"hop_size"`

	// Frequency range constraints
	MinFreq float64 `json:"min_freq"` // Minimum frequency (Hz)
	MaxFreq float64 `json:"max_freq"` // Maximum frequency (Hz)

	// YIN threshold on the cumulative mean normalized difference (0.1-0.5)
	YinThreshold float64 `json:"yin_threshold"`
}

// DefaultPitchDetectionParams returns singing-voice defaults: 2048-sample frames,
// 256-sample hop, C3..C6.
func DefaultPitchDetectionParams(sampleRate int) PitchDetectionParams {
	return PitchDetectionParams{
		SampleRate:   sampleRate,
		WindowSize:   2048,
		HopSize:      256,
		MinFreq:      MidiToHz(48), // C3
		MaxFreq:      MidiToHz(84), // C6
		YinThreshold: 0.15,
	}
}

// Validate checks that the parameters describe a usable detector
func (p PitchDetectionParams) Validate() error {
	if p.SampleRate <= 0 {
		return fmt.Errorf("sample rate must be positive: %d", p.SampleRate)
	}
	if p.WindowSize < 4 {
		return fmt.Errorf("window size too small: %d", p.WindowSize)
	}
	if p.HopSize <= 0 {
		return fmt.Errorf("hop size must be positive: %d", p.HopSize)
	}
	if p.MinFreq <= 0 || p.MaxFreq <= p.MinFreq {
		return fmt.Errorf("invalid frequency range: %.2f-%.2f Hz", p.MinFreq, p.MaxFreq)
	}
	if p.YinThreshold <= 0 || p.YinThreshold >= 1 {
		return fmt.Errorf("yin threshold must be in (0, 1): %.3f", p.YinThreshold)
	}
	if float64(p.SampleRate)/p.MinFreq >= float64(p.WindowSize/2) {
		return fmt.Errorf("window size %d too short for %.2f Hz at %d Hz", p.WindowSize, p.MinFreq, p.SampleRate)
	}
	return nil
}

// PitchDetector tracks the fundamental frequency of a monophonic signal with YIN.
// The difference function is computed through an FFT cross-correlation.
//
// References:
// - de Cheveigné, A., Kawahara, H. (2002). "YIN, a fundamental frequency estimator for speech and music"
//
// A PitchDetector holds no per-frame state and is safe for concurrent use.
type PitchDetector struct {
	params PitchDetectionParams
	fft    *spectral.FFT
	frames *common.SlidingWindow

	tauMin int
	tauMax int
}

// NewPitchDetector creates a new pitch detector with default parameters
func NewPitchDetector(sampleRate int) (*PitchDetector, error) {
	return NewPitchDetectorWithParams(DefaultPitchDetectionParams(sampleRate))
}

// NewPitchDetectorWithParams creates a pitch detector with custom parameters
func NewPitchDetectorWithParams(params PitchDetectionParams) (*PitchDetector, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}

	half := params.WindowSize / 2
	tauMin := max(int(math.Floor(float64(params.SampleRate)/params.MaxFreq)), 2)
	tauMax := min(int(math.Ceil(float64(params.SampleRate)/params.MinFreq)), half-2)

	return &PitchDetector{
		params: params,
		fft:    spectral.NewFFT(),
		frames: common.NewSlidingWindow(params.WindowSize, params.HopSize),
		tauMin: tauMin,
		tauMax: tauMax,
	}, nil
}

// GetParameters returns the current parameters
func (pd *PitchDetector) GetParameters() PitchDetectionParams {
	return pd.params
}

// Track runs DetectPitch over every full frame of signal
func (pd *PitchDetector) Track(signal []float64) []PitchFrame {
	frames := pd.frames.Frames(signal)
	track := make([]PitchFrame, len(frames))
	for i, frame := range frames {
		track[i] = pd.detect(frame)
	}
	return track
}

// DetectPitch detects pitch in a single audio frame
func (pd *PitchDetector) DetectPitch(audioFrame []float64) (PitchFrame, error) {
	if len(audioFrame) != pd.params.WindowSize {
		return PitchFrame{}, fmt.Errorf("audio frame size (%d) doesn't match window size (%d)", len(audioFrame), pd.params.WindowSize)
	}
	return pd.detect(audioFrame), nil
}

func (pd *PitchDetector) detect(frame []float64) PitchFrame {
	cmndf := pd.cumulativeMeanNormalizedDifference(frame)

	tau := -1
	lowest := 1.0
	for t := pd.tauMin; t <= pd.tauMax; t++ {
		lowest = math.Min(lowest, cmndf[t])
		if cmndf[t] < pd.params.YinThreshold {
			// walk down to the bottom of the dip
			for t+1 <= pd.tauMax && cmndf[t+1] < cmndf[t] {
				t++
			}
			tau = t
			break
		}
	}

	if tau < 0 {
		return PitchFrame{Confidence: clamp01(1.0 - lowest)}
	}

	period := parabolicInterpolation(cmndf, tau)
	frequency := float64(pd.params.SampleRate) / period
	confidence := clamp01(1.0 - cmndf[tau])

	if frequency < pd.params.MinFreq || frequency > pd.params.MaxFreq {
		return PitchFrame{Confidence: confidence}
	}

	return PitchFrame{
		Frequency:  frequency,
		Voiced:     true,
		Confidence: confidence,
	}
}

// cumulativeMeanNormalizedDifference returns d'(tau) for tau in [0, tauMax+1]
func (pd *PitchDetector) cumulativeMeanNormalizedDifference(frame []float64) []float64 {
	w := len(frame) / 2
	maxLag := pd.tauMax + 1

	// prefix[i] = sum of squares of frame[:i]
	prefix := make([]float64, len(frame)+1)
	for i, x := range frame {
		prefix[i+1] = prefix[i] + x*x
	}
	energy := prefix[w]

	corr := pd.fft.CrossCorrelate(frame[:w], frame, maxLag)

	cmndf := make([]float64, maxLag+1)
	cmndf[0] = 1.0

	running := 0.0
	for tau := 1; tau <= maxLag; tau++ {
		// d(tau) = sum (x[j] - x[j+tau])^2 over the integration window
		d := energy + (prefix[tau+w] - prefix[tau]) - 2*corr[tau]
		d = math.Max(d, 0)
		running += d
		if running <= 0 {
			cmndf[tau] = 1.0
			continue
		}
		cmndf[tau] = d * float64(tau) / running
	}

	return cmndf
}

// parabolicInterpolation refines a minimum/maximum location to sub-sample accuracy
func parabolicInterpolation(data []float64, peakIdx int) float64 {
	if peakIdx <= 0 || peakIdx >= len(data)-1 {
		return float64(peakIdx)
	}

	y1 := data[peakIdx-1]
	y2 := data[peakIdx]
	y3 := data[peakIdx+1]

	a := (y1 - 2*y2 + y3) / 2
	b := (y3 - y1) / 2

	if a == 0 {
		return float64(peakIdx)
	}

	xPeak := -b / (2 * a)
	if math.Abs(xPeak) >= 1 {
		return float64(peakIdx)
	}

	return float64(peakIdx) + xPeak
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
