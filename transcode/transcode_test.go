package transcode

import (
	"context"
	"encoding/binary"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RyanBlaney/sonido-melody/melody"
)

func writeWAV(t *testing.T, path string, sampleRate, bitDepth, channels int, data []int) {
	t.Helper()

	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	enc := wav.NewEncoder(f, sampleRate, bitDepth, channels, 1)
	require.NoError(t, enc.Write(&audio.IntBuffer{
		Format:         &audio.Format{NumChannels: channels, SampleRate: sampleRate},
		Data:           data,
		SourceBitDepth: bitDepth,
	}))
	require.NoError(t, enc.Close())
}

func TestDecodeWAVStereoToMono(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stereo.wav")
	// left/right pairs
	writeWAV(t, path, 22050, 16, 2, []int{16384, 0, -16384, -16384, 32767, 32767, 0, 8192})

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	data, err := DecodeWAV(f)
	require.NoError(t, err)
	assert.Equal(t, 22050, data.SampleRate)
	assert.Equal(t, 2, data.Channels)
	require.Len(t, data.PCM, 8)
	assert.Equal(t, 0.5, data.PCM[0])

	signal := data.Signal()
	require.Len(t, signal.Samples, 4)
	assert.InDelta(t, 0.25, signal.Samples[0], 1e-9)
	assert.InDelta(t, -0.5, signal.Samples[1], 1e-9)
	assert.InDelta(t, 32767.0/32768.0, signal.Samples[2], 1e-9)
	assert.InDelta(t, 0.125, signal.Samples[3], 1e-9)
}

// newWAVOnlyLoader points the ffmpeg fallback at binaries that do not exist
func newWAVOnlyLoader(t *testing.T) *Loader {
	t.Helper()

	loader, err := NewLoader(&DecoderConfig{FFmpegPath: "/nonexistent/ffmpeg", FFprobePath: "/nonexistent/ffprobe", TargetSampleRate: 22050, TargetChannels: 1})
	require.NoError(t, err)
	return loader
}

func TestLoaderReadsWAVNatively(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tone.WAV")

	samples := make([]int, 22050)
	for i := range samples {
		samples[i] = int(16000 * math.Sin(2*math.Pi*440*float64(i)/22050))
	}
	writeWAV(t, path, 22050, 16, 1, samples)

	// a bogus ffmpeg path proves the native reader was used
	loader := newWAVOnlyLoader(t)

	signal, err := loader.Load(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, 22050, signal.SampleRate)
	assert.Len(t, signal.Samples, 22050)
	assert.InDelta(t, 1.0, signal.Duration(), 1e-9)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	fromBytes, err := loader.LoadBytes(context.Background(), "upload.wav", data)
	require.NoError(t, err)
	assert.Equal(t, signal, fromBytes)
}

func TestLoaderErrorsWrapInputError(t *testing.T) {
	dir := t.TempDir()
	loader := newWAVOnlyLoader(t)

	_, err := loader.Load(context.Background(), filepath.Join(dir, "missing.wav"))
	assert.ErrorIs(t, err, melody.ErrInput)

	txt := filepath.Join(dir, "notes.txt")
	require.NoError(t, os.WriteFile(txt, []byte("hello"), 0o644))
	_, err = loader.Load(context.Background(), txt)
	assert.ErrorIs(t, err, melody.ErrInput)

	// not a wav file and no ffmpeg to fall back on
	garbage := filepath.Join(dir, "garbage.wav")
	require.NoError(t, os.WriteFile(garbage, []byte("definitely not RIFF data"), 0o644))
	_, err = loader.Load(context.Background(), garbage)
	assert.ErrorIs(t, err, melody.ErrInput)

	_, err = loader.LoadBytes(context.Background(), "take.mp3", nil)
	assert.ErrorIs(t, err, melody.ErrInput)
}

func TestDecodeWAVRejectsEightBit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "eight.wav")
	writeWAV(t, path, 8000, 8, 1, []int{128, 130, 126, 128})

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	_, err = DecodeWAV(f)
	assert.ErrorIs(t, err, ErrUnsupportedWAV)
}

func TestSupports(t *testing.T) {
	loader, err := NewLoader(nil)
	require.NoError(t, err)
	for _, name := range []string{"a.mp3", "b.WAV", "c.m4a", "d.aac", "e.flac", "f.ogg"} {
		assert.True(t, loader.Supports(name), name)
	}
	assert.False(t, loader.Supports("song.txt"))
	assert.False(t, loader.Supports("noext"))
}

func TestParseFFprobeOutput(t *testing.T) {
	d := NewDecoder(nil)

	meta, err := d.parseFFprobeOutput([]byte(`{"streams":[{"codec_type":"audio","codec_name":"mp3","sample_rate":"44100","channels":2,"duration":"3.5","bit_rate":"128000","codec_long_name":"MP3"}]}`))
	require.NoError(t, err)
	assert.Equal(t, &AudioMetadata{SampleRate: 44100, Channels: 2, Codec: "mp3", Duration: 3.5, Bitrate: 128000, Format: "MP3"}, meta)

	_, err = d.parseFFprobeOutput([]byte(`{"streams":[]}`))
	assert.Error(t, err)

	_, err = d.parseFFprobeOutput([]byte(`{"streams":[{"codec_type":"video","channels":2}]}`))
	assert.Error(t, err)

	_, err = d.parseFFprobeOutput([]byte(`not json`))
	assert.Error(t, err)
}

func TestBuildFFmpegArgs(t *testing.T) {
	d := NewDecoder(nil)

	args := d.buildFFmpegArgs(&AudioMetadata{SampleRate: 44100})
	assert.Subset(t, args, []string{"-f", "f64le", "-ac", "1", "-ar", "22050", "-af", "aresample=resampler=soxr:precision=20"})

	args = d.buildFFmpegArgs(&AudioMetadata{SampleRate: 22050})
	assert.NotContains(t, args, "-af")
}

func TestBytesToFloat64(t *testing.T) {
	raw := make([]byte, 8*3+5) // trailing partial sample is ignored
	for i, v := range []float64{0.25, -1, 0.5} {
		binary.LittleEndian.PutUint64(raw[i*8:], math.Float64bits(v))
	}
	assert.Equal(t, []float64{0.25, -1, 0.5}, bytesToFloat64(raw))
	assert.Nil(t, bytesToFloat64(nil))
}

func TestValidateConfig(t *testing.T) {
	assert.NoError(t, NewDecoder(nil).ValidateConfig())
	assert.Error(t, NewDecoder(&DecoderConfig{TargetSampleRate: 0, TargetChannels: 1}).ValidateConfig())
	assert.Error(t, NewDecoder(&DecoderConfig{TargetSampleRate: 22050, TargetChannels: 9}).ValidateConfig())
}

func TestNewLoaderRejectsBadConfig(t *testing.T) {
	_, err := NewLoader(&DecoderConfig{TargetSampleRate: 22050, TargetChannels: 0})
	assert.ErrorIs(t, err, melody.ErrConfiguration)

	_, err = NewLoader(&DecoderConfig{TargetSampleRate: -1, TargetChannels: 1})
	assert.ErrorIs(t, err, melody.ErrConfiguration)
}

func TestLoaderCheckAvailability(t *testing.T) {
	assert.Error(t, newWAVOnlyLoader(t).CheckAvailability(context.Background()))

	dir := t.TempDir()
	tool := func(name string) string {
		path := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\nexit 0\n"), 0o755))
		return path
	}

	cfg := DefaultDecoderConfig()
	cfg.FFmpegPath = tool("ffmpeg")
	cfg.FFprobePath = tool("ffprobe")
	loader, err := NewLoader(cfg)
	require.NoError(t, err)
	assert.NoError(t, loader.CheckAvailability(context.Background()))

	cfg.FFprobePath = filepath.Join(dir, "missing")
	loader, err = NewLoader(cfg)
	require.NoError(t, err)
	assert.ErrorContains(t, loader.CheckAvailability(context.Background()), "ffprobe")
}
