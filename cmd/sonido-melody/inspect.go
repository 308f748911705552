package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/RyanBlaney/sonido-melody/export"
	"github.com/RyanBlaney/sonido-melody/melody"
)

func init() {
	inspectCmd.Flags().String("as", "json", "output format: json or yaml")
	rootCmd.AddCommand(inspectCmd)
}

var inspectCmd = &cobra.Command{
	Use:   "inspect <file.mid>",
	Short: "Prints the notes of a melody MIDI file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		as, _ := cmd.Flags().GetString("as")
		format, err := export.ParseFormat(as)
		if err != nil {
			return fmt.Errorf("%w: %v", melody.ErrConfiguration, err)
		}

		f, err := os.Open(args[0])
		if err != nil {
			return fmt.Errorf("%w: %v", melody.ErrInput, err)
		}
		defer f.Close()

		doc, err := export.ReadMIDI(f)
		if err != nil {
			return fmt.Errorf("%w: %v", melody.ErrInput, err)
		}
		return doc.Encode(cmd.OutOrStdout(), format)
	},
}
