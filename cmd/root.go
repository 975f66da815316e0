package cmd

import (
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

func NewRootCmd() *cobra.Command {
	var verbose bool

	cmd := &cobra.Command{
		Use:   "photobooth",
		Short: "Self-hosted photo booth with frame strips, filters and sharing",
		Long: `Photobooth runs a browser photo booth: pick a frame, shoot a strip with a
countdown, then download, print or share the composed result.

Settings are read from PHOTOBOOTH_* environment variables or a .env file.`,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// Load .env file if present (ignore errors)
			_ = godotenv.Load()

			if verbose {
				slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug})))
			}
		},
	}

	cmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")

	// Add subcommands
	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newFramesCmd())
	cmd.AddCommand(newComposeCmd())
	cmd.AddCommand(newLedgerCmd())

	return cmd
}
