package melody

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RyanBlaney/sonido-melody/algorithms/tonal"
)

const testSampleRate = 22050

// toneSequence renders one sine per entry, each lasting seconds; a negative
// note renders silence
func toneSequence(notes []int, seconds float64) Signal {
	return toneSequenceAt(testSampleRate, notes, seconds)
}

func toneSequenceAt(rate int, notes []int, seconds float64) Signal {
	per := int(seconds * float64(rate))
	samples := make([]float64, 0, per*len(notes))
	for _, note := range notes {
		freq := tonal.MidiToHz(float64(note))
		for i := range per {
			if note < 0 {
				samples = append(samples, 0)
				continue
			}
			samples = append(samples, 0.5*math.Sin(2*math.Pi*freq*float64(i)/float64(rate)))
		}
	}
	return Signal{Samples: samples, SampleRate: rate}
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.TempoBPM = 120
	return cfg
}

func TestNewChunkAnalyzerErrors(t *testing.T) {
	_, err := NewChunkAnalyzer(testConfig(), 0)
	assert.ErrorIs(t, err, ErrInput)

	fast := testConfig()
	fast.TempoBPM = 1200
	_, err = NewChunkAnalyzer(fast, 8000)
	assert.ErrorIs(t, err, ErrConfiguration, "window shorter than a pitch frame")

	bad := testConfig()
	bad.TempoBPM = 0
	_, err = NewChunkAnalyzer(bad, testSampleRate)
	assert.ErrorIs(t, err, ErrConfiguration)
}

func TestAnalyzeToneAndSilence(t *testing.T) {
	a, err := NewChunkAnalyzer(testConfig(), testSampleRate)
	require.NoError(t, err)
	assert.Equal(t, 11025, a.WindowSamples())

	obs, err := a.Analyze(context.Background(), toneSequence([]int{60, 60, -1, 67}, 0.5))
	require.NoError(t, err)

	require.Len(t, obs, 3)
	assert.Equal(t, Observation{Start: 0, Note: 60, Confidence: 1}, obs[0])
	assert.Equal(t, Observation{Start: 0.5, Note: 60, Confidence: 1}, obs[1])
	assert.Equal(t, 1.5, obs[2].Start)
	assert.Equal(t, 67, obs[2].Note)
}

func TestFrameLengthsFollowSampleRate(t *testing.T) {
	cfg := testConfig()

	size, hop := cfg.FrameLengths(FrameSampleRate)
	assert.Equal(t, 2048, size)
	assert.Equal(t, 256, hop)

	size, hop = cfg.FrameLengths(44100)
	assert.Equal(t, 4096, size)
	assert.Equal(t, 512, hop)

	size, hop = cfg.FrameLengths(8000)
	assert.Equal(t, 743, size)
	assert.Equal(t, 93, hop)
}

func TestAnalyzeLowSampleRateAtFastTempo(t *testing.T) {
	cfg := testConfig()
	cfg.TempoBPM = 240

	// a quarter-second window is 2000 samples at 8 kHz, shorter than an
	// unscaled 2048-sample frame
	a, err := NewChunkAnalyzer(cfg, 8000)
	require.NoError(t, err)
	assert.Equal(t, 2000, a.WindowSamples())

	obs, err := a.Analyze(context.Background(), toneSequenceAt(8000, []int{60, 60, 67, 67}, 0.25))
	require.NoError(t, err)
	require.Len(t, obs, 4)
	for i, want := range []int{60, 60, 67, 67} {
		assert.Equal(t, want, obs[i].Note, "window %d", i)
		assert.InDelta(t, 0.25*float64(i), obs[i].Start, 1e-9)
	}
}

func TestAnalyzeDropsPartialTrailingWindow(t *testing.T) {
	a, err := NewChunkAnalyzer(testConfig(), testSampleRate)
	require.NoError(t, err)

	signal := toneSequence([]int{64, 64}, 0.5)
	signal.Samples = signal.Samples[:len(signal.Samples)-1]

	obs, err := a.Analyze(context.Background(), signal)
	require.NoError(t, err)
	assert.Len(t, obs, 1)
}

func TestAnalyzeRejectsOutOfRangePitch(t *testing.T) {
	a, err := NewChunkAnalyzer(testConfig(), testSampleRate)
	require.NoError(t, err)

	// 70 Hz sits below C3
	samples := make([]float64, 11025)
	for i := range samples {
		samples[i] = 0.5 * math.Sin(2*math.Pi*70*float64(i)/testSampleRate)
	}

	_, ok := a.AnalyzeWindow(samples, 0)
	assert.False(t, ok)
}

func TestAnalyzeRejectsQuietWindow(t *testing.T) {
	a, err := NewChunkAnalyzer(testConfig(), testSampleRate)
	require.NoError(t, err)

	signal := toneSequence([]int{60}, 0.5)
	for i := range signal.Samples {
		signal.Samples[i] *= 0.01 // peak 0.005
	}

	_, ok := a.AnalyzeWindow(signal.Samples, 0)
	assert.False(t, ok)
}

func TestAnalyzeParallelMatchesSequential(t *testing.T) {
	signal := toneSequence([]int{60, 62, 64, -1, 65, 67, 69, 71, 72, -1, 60}, 0.5)

	seqCfg := testConfig()
	seqCfg.Workers = 1
	seq, err := NewChunkAnalyzer(seqCfg, testSampleRate)
	require.NoError(t, err)

	parCfg := testConfig()
	parCfg.Workers = 4
	par, err := NewChunkAnalyzer(parCfg, testSampleRate)
	require.NoError(t, err)

	want, err := seq.Analyze(context.Background(), signal)
	require.NoError(t, err)
	got, err := par.Analyze(context.Background(), signal)
	require.NoError(t, err)

	require.Len(t, want, 9)
	assert.Equal(t, want, got)
}

func TestObservationsIsLazy(t *testing.T) {
	a, err := NewChunkAnalyzer(testConfig(), testSampleRate)
	require.NoError(t, err)

	var first []Observation
	for obs, err := range a.Observations(context.Background(), toneSequence([]int{60, 62, 64}, 0.5)) {
		require.NoError(t, err)
		first = append(first, obs)
		break
	}

	require.Len(t, first, 1)
	assert.Equal(t, 60, first[0].Note)
}

func TestAnalyzeHonoursCancellation(t *testing.T) {
	signal := toneSequence([]int{60, 62, 64}, 0.5)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	for _, workers := range []int{1, 3} {
		cfg := testConfig()
		cfg.Workers = workers
		a, err := NewChunkAnalyzer(cfg, testSampleRate)
		require.NoError(t, err)

		_, err = a.Analyze(ctx, signal)
		assert.ErrorIs(t, err, context.Canceled, "workers=%d", workers)
	}
}

func TestAnalyzeRejectsSampleRateMismatch(t *testing.T) {
	a, err := NewChunkAnalyzer(testConfig(), testSampleRate)
	require.NoError(t, err)

	_, err = a.Analyze(context.Background(), Signal{Samples: make([]float64, 44100), SampleRate: 44100})
	assert.ErrorIs(t, err, ErrInput)
}
