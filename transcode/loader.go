package transcode

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/RyanBlaney/sonido-melody/logging"
	"github.com/RyanBlaney/sonido-melody/melody"
)

// Loader turns audio files into mono signals. WAV files are read natively;
// everything else, and WAV encodings the native reader rejects, go through
// ffmpeg. Every error wraps melody.ErrInput.
type Loader struct {
	decoder *Decoder
}

// NewLoader creates a loader backed by an ffmpeg decoder with config. An
// invalid config is reported as melody.ErrConfiguration.
func NewLoader(config *DecoderConfig) (*Loader, error) {
	decoder := NewDecoder(config)
	if err := decoder.ValidateConfig(); err != nil {
		return nil, fmt.Errorf("%w: %v", melody.ErrConfiguration, err)
	}
	return &Loader{decoder: decoder}, nil
}

// CheckAvailability reports whether the ffmpeg fallback can run. Native WAV
// decoding works without it.
func (l *Loader) CheckAvailability(ctx context.Context) error {
	return l.decoder.CheckAvailability(ctx)
}

// Supports reports whether name has an accepted audio extension
func (l *Loader) Supports(name string) bool {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(name)), ".")
	return ext != "" && slices.Contains(l.decoder.GetSupportedFormats(), ext)
}

// Load decodes the file at path
func (l *Loader) Load(ctx context.Context, path string) (melody.Signal, error) {
	if !l.Supports(path) {
		return melody.Signal{}, fmt.Errorf("%w: unsupported file type %q", melody.ErrInput, filepath.Ext(path))
	}

	if isWAV(path) {
		data, err := os.ReadFile(path)
		if err != nil {
			return melody.Signal{}, fmt.Errorf("%w: %v", melody.ErrInput, err)
		}
		if signal, ok := l.loadWAV(ctx, path, data); ok {
			return signal, nil
		}
	} else if _, err := os.Stat(path); err != nil {
		return melody.Signal{}, fmt.Errorf("%w: %v", melody.ErrInput, err)
	}

	audio, err := l.decoder.DecodeFile(ctx, path)
	if err != nil {
		return melody.Signal{}, fmt.Errorf("%w: failed to decode %s: %v", melody.ErrInput, filepath.Base(path), err)
	}
	return audio.Signal(), nil
}

// LoadBytes decodes an in-memory upload; name is only used for its extension
func (l *Loader) LoadBytes(ctx context.Context, name string, data []byte) (melody.Signal, error) {
	if !l.Supports(name) {
		return melody.Signal{}, fmt.Errorf("%w: unsupported file type %q", melody.ErrInput, filepath.Ext(name))
	}
	if len(data) == 0 {
		return melody.Signal{}, fmt.Errorf("%w: empty upload", melody.ErrInput)
	}

	if isWAV(name) {
		if signal, ok := l.loadWAV(ctx, name, data); ok {
			return signal, nil
		}
	}

	audio, err := l.decoder.DecodeBytes(ctx, data)
	if err != nil {
		return melody.Signal{}, fmt.Errorf("%w: failed to decode %s: %v", melody.ErrInput, name, err)
	}
	return audio.Signal(), nil
}

// loadWAV tries the native reader; false means fall back to ffmpeg
func (l *Loader) loadWAV(ctx context.Context, name string, data []byte) (melody.Signal, bool) {
	logger := logging.WithContext(ctx).WithFields(logging.Fields{
		"component": "audio_loader",
		"file":      filepath.Base(name),
	})

	audio, err := DecodeWAV(bytes.NewReader(data))
	if err != nil {
		if errors.Is(err, ErrUnsupportedWAV) {
			logger.Debug("Falling back to ffmpeg", logging.Fields{"reason": err.Error()})
		} else {
			logger.Warn("Native wav decode failed, falling back to ffmpeg", logging.Fields{"error": err.Error()})
		}
		return melody.Signal{}, false
	}

	logger.Debug("Decoded wav natively", logging.Fields{
		"sample_rate": audio.SampleRate,
		"channels":    audio.Channels,
		"duration_s":  audio.Duration.Seconds(),
	})
	return audio.Signal(), true
}

func isWAV(name string) bool {
	return strings.EqualFold(filepath.Ext(name), ".wav")
}
