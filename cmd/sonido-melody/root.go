package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/RyanBlaney/sonido-melody/logging"
	"github.com/RyanBlaney/sonido-melody/melody"
	"github.com/RyanBlaney/sonido-melody/transcode"
)

// Exit codes
const (
	exitFailure = 1
	exitEmpty   = 2
	exitInput   = 3
	exitConfig  = 4
)

var v = viper.New()

var rootCmd = &cobra.Command{
	Use:   "sonido-melody",
	Short: "Extracts the main melody of a vocal recording",
	Long: `sonido-melody turns a solo vocal recording into a quantized, monophonic
note sequence and writes it as a note list, a MIDI track and optionally a score.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return setupLogging()
	},
}

func init() {
	v.SetEnvPrefix("MELODY")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	flags := rootCmd.PersistentFlags()
	flags.Float64("tempo", 0, "tempo in bpm (default from preset)")
	flags.String("preset", "", "rhythm preset: "+strings.Join(melody.PresetNames(), ", "))
	flags.String("config", "", "YAML config file layered over the preset")
	flags.Int("workers", 0, "pitch analysis workers (0 uses every CPU)")
	flags.String("ffmpeg", "ffmpeg", "ffmpeg binary")
	flags.String("ffprobe", "ffprobe", "ffprobe binary")
	flags.String("log-level", "info", "log level: debug, info, warn, error")
	flags.String("log-format", "text", "log format: text or json")

	for _, name := range []string{"tempo", "preset", "config", "workers", "ffmpeg", "ffprobe", "log-level", "log-format"} {
		cobra.CheckErr(v.BindPFlag(name, flags.Lookup(name)))
	}
}

func setupLogging() error {
	level, err := logging.ParseLevel(v.GetString("log-level"))
	if err != nil {
		return fmt.Errorf("%w: %v", melody.ErrConfiguration, err)
	}

	format := v.GetString("log-format")
	if format != "text" && format != "json" {
		return fmt.Errorf("%w: unknown log format %q", melody.ErrConfiguration, format)
	}

	logging.SetGlobalLogger(logging.NewLogrusLoggerWithFormat(format, level))
	return nil
}

// melodyConfig layers preset < config file < env < flags
func melodyConfig() (melody.Config, error) {
	preset := v.GetString("preset")

	var cfg melody.Config
	if path := v.GetString("config"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return melody.Config{}, fmt.Errorf("%w: failed to read config %s: %v", melody.ErrConfiguration, path, err)
		}
		if cfg, err = melody.ParseConfigWithPreset(preset, data); err != nil {
			return melody.Config{}, err
		}
	} else {
		var err error
		if cfg, err = melody.Preset(preset); err != nil {
			return melody.Config{}, err
		}
	}

	if v.IsSet("tempo") {
		cfg.TempoBPM = v.GetFloat64("tempo")
	}
	if v.IsSet("workers") {
		cfg.Workers = v.GetInt("workers")
	}
	return cfg, cfg.Validate()
}

func decoderConfig() *transcode.DecoderConfig {
	cfg := transcode.DefaultDecoderConfig()
	cfg.FFmpegPath = v.GetString("ffmpeg")
	cfg.FFprobePath = v.GetString("ffprobe")
	return cfg
}

func exitCode(err error) int {
	switch {
	case errors.Is(err, melody.ErrEmptyResult):
		return exitEmpty
	case errors.Is(err, melody.ErrInput):
		return exitInput
	case errors.Is(err, melody.ErrConfiguration):
		return exitConfig
	default:
		return exitFailure
	}
}

// Execute runs the root command and exits non-zero on failure
func Execute(ctx context.Context) {
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(exitCode(err))
	}
}
