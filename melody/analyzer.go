package melody

import (
	"context"
	"fmt"
	"iter"
	"runtime"
	"sync"

	"github.com/RyanBlaney/sonido-melody/algorithms/common"
	"github.com/RyanBlaney/sonido-melody/algorithms/temporal"
	"github.com/RyanBlaney/sonido-melody/algorithms/tonal"
)

// ChunkAnalyzer estimates one dominant note per tempo-aligned window.
//
// A window is rejected when it is silent, when too few pitch frames are voiced
// inside the note range, or when no single note dominates the valid frames.
// Rejections are not errors; the window simply yields no observation.
type ChunkAnalyzer struct {
	sampleRate    int
	windowSamples int
	windows       *common.SlidingWindow

	silence  *temporal.SilenceDetection
	detector *tonal.PitchDetector

	minNote            int
	maxNote            int
	minVoicedFraction  float64
	stabilityThreshold float64
	workers            int
}

// NewChunkAnalyzer creates an analyzer for signals sampled at sampleRate
func NewChunkAnalyzer(cfg Config, sampleRate int) (*ChunkAnalyzer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if sampleRate <= 0 {
		return nil, fmt.Errorf("%w: sample rate must be positive, got %d", ErrInput, sampleRate)
	}

	frameSize, frameHop := cfg.FrameLengths(sampleRate)
	windowSamples := int(cfg.WindowSeconds() * float64(sampleRate))
	if windowSamples < frameSize {
		return nil, fmt.Errorf("%w: analysis window of %d samples is shorter than the %d-sample pitch frame",
			ErrConfiguration, windowSamples, frameSize)
	}

	detector, err := tonal.NewPitchDetectorWithParams(tonal.PitchDetectionParams{
		SampleRate:   sampleRate,
		WindowSize:   frameSize,
		HopSize:      frameHop,
		MinFreq:      cfg.MinFrequency,
		MaxFreq:      cfg.MaxFrequency,
		YinThreshold: cfg.YinThreshold,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfiguration, err)
	}

	workers := cfg.Workers
	if workers == 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	return &ChunkAnalyzer{
		sampleRate:         sampleRate,
		windowSamples:      windowSamples,
		windows:            common.NewSlidingWindow(windowSamples, windowSamples),
		silence:            temporal.NewSilenceDetection(cfg.SilenceThreshold),
		detector:           detector,
		minNote:            cfg.MinNote,
		maxNote:            cfg.MaxNote,
		minVoicedFraction:  cfg.MinVoicedFraction,
		stabilityThreshold: cfg.StabilityThreshold,
		workers:            workers,
	}, nil
}

// WindowSamples returns the analysis window length in samples
func (a *ChunkAnalyzer) WindowSamples() int {
	return a.windowSamples
}

// SilenceRatio returns the fraction of analysis windows of signal that are silent
func (a *ChunkAnalyzer) SilenceRatio(signal Signal) float64 {
	return a.silence.ComputeSilenceRatio(signal.Samples, a.windowSamples)
}

// Observations lazily yields one observation per accepted window, in time
// order. A cancelled context yields its error once and ends the sequence.
func (a *ChunkAnalyzer) Observations(ctx context.Context, signal Signal) iter.Seq2[Observation, error] {
	return func(yield func(Observation, error) bool) {
		if err := a.checkRate(signal); err != nil {
			yield(Observation{}, err)
			return
		}
		for _, span := range a.windows.Spans(len(signal.Samples)) {
			if err := ctx.Err(); err != nil {
				yield(Observation{}, err)
				return
			}
			obs, ok := a.AnalyzeWindow(signal.Samples[span.Start:span.End], a.startTime(span))
			if !ok {
				continue
			}
			if !yield(obs, nil) {
				return
			}
		}
	}
}

// Analyze collects every observation of signal, fanning windows out over the
// configured workers. Results keep window order.
func (a *ChunkAnalyzer) Analyze(ctx context.Context, signal Signal) ([]Observation, error) {
	if err := a.checkRate(signal); err != nil {
		return nil, err
	}

	spans := a.windows.Spans(len(signal.Samples))
	if a.workers <= 1 || len(spans) < 2 {
		var observations []Observation
		for obs, err := range a.Observations(ctx, signal) {
			if err != nil {
				return nil, err
			}
			observations = append(observations, obs)
		}
		return observations, nil
	}

	type windowResult struct {
		obs Observation
		ok  bool
	}
	results := make([]windowResult, len(spans))
	jobs := make(chan int, len(spans))

	var wg sync.WaitGroup
	for range min(a.workers, len(spans)) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobs {
				if ctx.Err() != nil {
					continue
				}
				span := spans[idx]
				obs, ok := a.AnalyzeWindow(signal.Samples[span.Start:span.End], a.startTime(span))
				results[idx] = windowResult{obs: obs, ok: ok}
			}
		}()
	}

	for idx := range spans {
		jobs <- idx
	}
	close(jobs)
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	observations := make([]Observation, 0, len(spans))
	for _, r := range results {
		if r.ok {
			observations = append(observations, r.obs)
		}
	}
	return observations, nil
}

// AnalyzeWindow estimates the dominant note of a single window
func (a *ChunkAnalyzer) AnalyzeWindow(window []float64, start float64) (Observation, bool) {
	if a.silence.IsSilent(window) {
		return Observation{}, false
	}

	track := a.detector.Track(window)
	if len(track) == 0 {
		return Observation{}, false
	}

	notes := make([]int, 0, len(track))
	for _, frame := range track {
		if !frame.Voiced {
			continue
		}
		note := tonal.NearestNote(frame.Frequency)
		if note < a.minNote || note > a.maxNote {
			continue
		}
		notes = append(notes, note)
	}

	if common.Fraction(len(notes), len(track)) < a.minVoicedFraction || len(notes) == 0 {
		return Observation{}, false
	}

	mode, count := common.IntMode(notes)
	stability := common.Fraction(count, len(notes))
	if stability < a.stabilityThreshold {
		return Observation{}, false
	}

	return Observation{
		Start:      start,
		Note:       mode,
		Confidence: stability,
	}, true
}

func (a *ChunkAnalyzer) startTime(span common.Span) float64 {
	return float64(span.Start) / float64(a.sampleRate)
}

func (a *ChunkAnalyzer) checkRate(signal Signal) error {
	if signal.SampleRate != a.sampleRate {
		return fmt.Errorf("%w: signal sampled at %d Hz, analyzer expects %d Hz", ErrInput, signal.SampleRate, a.sampleRate)
	}
	return nil
}
