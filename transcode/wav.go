package transcode

import (
	"errors"
	"fmt"
	"io"
	"math"
	"time"

	"github.com/go-audio/wav"
)

const wavFormatPCM = 1

// ErrUnsupportedWAV marks a WAV file the native reader does not handle
// (8-bit, floating point, compressed); such files go through ffmpeg instead
var ErrUnsupportedWAV = errors.New("unsupported wav encoding")

// DecodeWAV reads integer PCM WAV data (16, 24 or 32 bit) at its native sample
// rate. Samples are scaled to [-1, 1) by bit depth and left interleaved.
func DecodeWAV(r io.ReadSeeker) (*AudioData, error) {
	dec := wav.NewDecoder(r)
	if !dec.IsValidFile() {
		return nil, fmt.Errorf("invalid wav file")
	}

	if dec.WavAudioFormat != wavFormatPCM {
		return nil, fmt.Errorf("%w: audio format %d", ErrUnsupportedWAV, dec.WavAudioFormat)
	}
	switch dec.BitDepth {
	case 16, 24, 32:
	default:
		return nil, fmt.Errorf("%w: %d-bit samples", ErrUnsupportedWAV, dec.BitDepth)
	}

	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to read wav samples: %w", err)
	}
	if buf.Format == nil || buf.Format.NumChannels <= 0 || buf.Format.SampleRate <= 0 {
		return nil, fmt.Errorf("wav file has no usable format chunk")
	}

	scale := math.Exp2(float64(dec.BitDepth) - 1)
	pcm := make([]float64, len(buf.Data))
	for i, v := range buf.Data {
		pcm[i] = float64(v) / scale
	}

	channels := buf.Format.NumChannels
	frames := len(pcm) / channels
	return &AudioData{
		PCM:        pcm,
		SampleRate: buf.Format.SampleRate,
		Channels:   channels,
		Duration:   time.Duration(frames) * time.Second / time.Duration(buf.Format.SampleRate),
		Metadata: &AudioMetadata{
			SampleRate: buf.Format.SampleRate,
			Channels:   channels,
			Codec:      fmt.Sprintf("pcm_s%dle", dec.BitDepth),
			Duration:   float64(frames) / float64(buf.Format.SampleRate),
			Format:     "WAV",
		},
	}, nil
}
