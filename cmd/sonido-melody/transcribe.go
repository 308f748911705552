package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/RyanBlaney/sonido-melody/algorithms/tonal"
	"github.com/RyanBlaney/sonido-melody/export"
	"github.com/RyanBlaney/sonido-melody/logging"
	"github.com/RyanBlaney/sonido-melody/melody"
	"github.com/RyanBlaney/sonido-melody/transcode"
)

const outputBase = "main_melody"

func init() {
	flags := transcribeCmd.Flags()
	flags.String("out-dir", ".", "directory for the output files")
	flags.String("format", "json", "note list format: json or yaml")
	flags.Bool("midi", true, "write "+outputBase+".mid")
	flags.Bool("score", true, "write "+outputBase+".musicxml when a notation tool is installed")
	flags.String("score-command", "mscore", "notation program used for score export")

	for _, name := range []string{"out-dir", "format", "midi", "score", "score-command"} {
		cobra.CheckErr(v.BindPFlag(name, flags.Lookup(name)))
	}

	rootCmd.AddCommand(transcribeCmd)
}

var transcribeCmd = &cobra.Command{
	Use:   "transcribe <audio>",
	Short: "Transcribes the melody of an audio file",
	Long: `Transcribes the melody of a solo vocal recording. WAV is read natively,
other formats are decoded with ffmpeg.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return transcribe(cmd, args[0])
	},
}

func transcribe(cmd *cobra.Command, input string) error {
	ctx := logging.ContextWithFields(cmd.Context(), logging.Fields{"run_id": uuid.NewString()})
	logger := logging.WithContext(ctx)

	cfg, err := melodyConfig()
	if err != nil {
		return err
	}
	format, err := export.ParseFormat(v.GetString("format"))
	if err != nil {
		return fmt.Errorf("%w: %v", melody.ErrConfiguration, err)
	}

	transcriber, err := melody.NewTranscriber(cfg,
		melody.WithLogger(logging.GetGlobalLogger()),
		melody.WithObserver(melody.NewLoggingObserver(logger)),
	)
	if err != nil {
		return err
	}

	loader, err := transcode.NewLoader(decoderConfig())
	if err != nil {
		return err
	}
	signal, err := loader.Load(ctx, input)
	if err != nil {
		return err
	}

	logger.Info("Transcribing", logging.Fields{
		"file":       filepath.Base(input),
		"duration_s": signal.Duration(),
		"tempo_bpm":  cfg.TempoBPM,
	})

	result, err := transcriber.Transcribe(ctx, signal)
	if err != nil {
		return err
	}
	if result.Empty() {
		logger.Warn("No melody found, nothing written")
		return result.Err()
	}

	outDir := v.GetString("out-dir")
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return fmt.Errorf("failed to create %s: %w", outDir, err)
	}

	notesPath := filepath.Join(outDir, outputBase+format.Extension())
	if err := export.NewDocument(result.Tempo, result.Notes).WriteFile(notesPath, format); err != nil {
		return err
	}
	written := []string{notesPath}

	if v.GetBool("midi") || v.GetBool("score") {
		midiPath := filepath.Join(outDir, outputBase+".mid")
		if err := export.WriteMIDIFile(midiPath, result.Tempo, result.Notes); err != nil {
			return err
		}
		written = append(written, midiPath)

		if v.GetBool("score") {
			scorePath := filepath.Join(outDir, outputBase+".musicxml")
			converter := export.NewScoreConverter()
			converter.Command = v.GetString("score-command")

			switch err := converter.Convert(ctx, midiPath, scorePath); {
			case err == nil:
				written = append(written, scorePath)
			case errors.Is(err, export.ErrScoreUnavailable):
				logger.Warn("Score export skipped", logging.Fields{"reason": err.Error()})
			default:
				return err
			}
		}
	}

	printMelody(cmd.OutOrStdout(), result)
	for _, path := range written {
		logger.Info("Wrote output", logging.Fields{"path": path})
	}
	return nil
}

func printMelody(w io.Writer, result *melody.Result) {
	fmt.Fprintf(w, "%d notes at %.0f bpm\n", len(result.Notes), result.Tempo.BPM)
	for i, n := range result.Notes {
		fmt.Fprintf(w, "%3d  %-4s %7.3fs  %s\n", i+1, tonal.MidiToNoteName(n.Pitch), n.Start, melody.DurationName(n.DurationBeats))
	}
}
