package main

import (
	"github.com/spf13/cobra"

	"github.com/RyanBlaney/sonido-melody/logging"
	"github.com/RyanBlaney/sonido-melody/server"
)

func init() {
	flags := serveCmd.Flags()
	flags.String("addr", ":8080", "listen address")
	flags.StringSlice("origins", []string{"*"}, "allowed CORS origins")
	flags.Int64("max-upload-mb", 50, "largest accepted upload in megabytes")

	for _, name := range []string{"addr", "origins", "max-upload-mb"} {
		cobra.CheckErr(v.BindPFlag(name, flags.Lookup(name)))
	}

	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serves the transcription HTTP API",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := melodyConfig()
		if err != nil {
			return err
		}

		s, err := server.New(server.Config{
			Addr:           v.GetString("addr"),
			AllowedOrigins: v.GetStringSlice("origins"),
			MaxUploadBytes: v.GetInt64("max-upload-mb") << 20,
			Melody:         cfg,
			Decoder:        decoderConfig(),
		}, logging.GetGlobalLogger())
		if err != nil {
			return err
		}
		return s.ListenAndServe(cmd.Context())
	},
}
