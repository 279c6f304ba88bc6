package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/spigell/cold-mailer/internal/ai/gemini"
)

// Actual version can be specified in build command.
var version = "unknown"

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Run: func(_ *cobra.Command, _ []string) {
		fmt.Printf("%s version: %s (default model: %s)\n", app, version, gemini.DefaultModel)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
