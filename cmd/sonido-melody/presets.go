package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/RyanBlaney/sonido-melody/melody"
)

func init() {
	rootCmd.AddCommand(presetsCmd)
}

var presetsCmd = &cobra.Command{
	Use:   "presets [name]",
	Short: "Prints the rhythm presets as YAML",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		out := make(map[string]melody.Config)
		if len(args) == 1 {
			cfg, err := melody.Preset(args[0])
			if err != nil {
				return err
			}
			out[args[0]] = cfg
		} else {
			out = melody.Presets()
		}

		enc := yaml.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent(2)
		if err := enc.Encode(out); err != nil {
			return fmt.Errorf("failed to encode presets: %w", err)
		}
		return enc.Close()
	},
}
