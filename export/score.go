package export

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"
)

// ErrScoreUnavailable marks a failed or impossible score export. Callers
// treat it as a warning.
var ErrScoreUnavailable = errors.New("score export unavailable")

// ScoreConverter turns a MIDI file into MusicXML with an external notation
// program invoked as `<command> -o <out> <in>` (MuseScore's CLI)
type ScoreConverter struct {
	Command string
	Timeout time.Duration
}

// NewScoreConverter returns a converter that runs MuseScore
func NewScoreConverter() *ScoreConverter {
	return &ScoreConverter{
		Command: "mscore",
		Timeout: time.Minute,
	}
}

// Available reports whether the converter command can be found
func (c *ScoreConverter) Available() bool {
	_, err := exec.LookPath(c.Command)
	return err == nil
}

// Convert writes outPath from midiPath. Every failure wraps ErrScoreUnavailable.
func (c *ScoreConverter) Convert(ctx context.Context, midiPath, outPath string) error {
	path, err := exec.LookPath(c.Command)
	if err != nil {
		return fmt.Errorf("%w: %s not found: %v", ErrScoreUnavailable, c.Command, err)
	}

	if c.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, path, "-o", outPath, midiPath)
	var stderr strings.Builder
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%w: %s failed: %v, stderr: %s", ErrScoreUnavailable, c.Command, err, strings.TrimSpace(stderr.String()))
	}

	if info, err := os.Stat(outPath); err != nil || info.Size() == 0 {
		return fmt.Errorf("%w: %s produced no output", ErrScoreUnavailable, c.Command)
	}
	return nil
}
