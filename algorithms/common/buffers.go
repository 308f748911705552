package common

// Span addresses a half-open sample range [Start, End)
type Span struct {
	Start int
	End   int
}

// Len returns the number of samples in the span
func (s Span) Len() int {
	return s.End - s.Start
}

// SlidingWindow enumerates fixed-size frames over a buffer.
// Only full frames are produced; a trailing partial frame is dropped.
type SlidingWindow struct {
	windowSize int
	hopSize    int
}

// NewSlidingWindow creates a sliding window. A hop of zero defaults to the window size.
func NewSlidingWindow(windowSize, hopSize int) *SlidingWindow {
	if hopSize <= 0 {
		hopSize = windowSize
	}
	return &SlidingWindow{
		windowSize: windowSize,
		hopSize:    hopSize,
	}
}

// Spans returns the frame boundaries for a buffer of n samples
func (sw *SlidingWindow) Spans(n int) []Span {
	if sw.windowSize <= 0 || n < sw.windowSize {
		return nil
	}

	count := (n-sw.windowSize)/sw.hopSize + 1
	spans := make([]Span, 0, count)
	for start := 0; start+sw.windowSize <= n; start += sw.hopSize {
		spans = append(spans, Span{Start: start, End: start + sw.windowSize})
	}
	return spans
}

// Frames returns sub-slices of signal, one per full frame (no copying)
func (sw *SlidingWindow) Frames(signal []float64) [][]float64 {
	spans := sw.Spans(len(signal))
	frames := make([][]float64, len(spans))
	for i, s := range spans {
		frames[i] = signal[s.Start:s.End]
	}
	return frames
}
