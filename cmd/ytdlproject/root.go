package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// cliFlags holds the four persistent flags every subcommand sees.
var cliFlags struct {
	workdir string
	devMode bool
	logFile bool
	logNone bool
}

var rootCmd = &cobra.Command{
	Use:   "ytdlproject",
	Short: "A personal-scale download orchestrator",
	Long: "ytdlproject accepts a source URL plus a desired output format, expands\n" +
		"it into one or more downloadable items, runs each through an external\n" +
		"downloader tool, and exposes an authenticated HTTP control surface.",
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cliFlags.workdir != "" {
			if err := os.Chdir(cliFlags.workdir); err != nil {
				return fmt.Errorf("changing to --workdir %q: %w", cliFlags.workdir, err)
			}
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cliFlags.workdir, "workdir", "", "set working directory")
	rootCmd.PersistentFlags().BoolVar(&cliFlags.devMode, "dev-mode", false, "use the current working directory for internal files and output")
	rootCmd.PersistentFlags().BoolVar(&cliFlags.logFile, "log-file", false, "log to an hourly-rotated file under the logs directory")
	rootCmd.PersistentFlags().BoolVar(&cliFlags.logNone, "log-none", false, "disable logging entirely")
	rootCmd.MarkFlagsMutuallyExclusive("log-file", "log-none")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(getTokenCmd)
	rootCmd.AddCommand(installServiceCmd)
	rootCmd.AddCommand(uninstallServiceCmd)
}
