package main

import (
	"time"

	"github.com/spf13/cobra"
)

var runServiceFlag bool

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the server",
	Long:  "Run the server in the foreground, or as a platform service with --service.",
	RunE: func(cmd *cobra.Command, args []string) error {
		return platformRun(runServiceFlag)
	},
}

func init() {
	runCmd.Flags().BoolVar(&runServiceFlag, "service", false, "run as a platform service (Windows only)")
}

// runServerLoop rebuilds the environment and serves until serveOnce
// returns with no pending config change. A config-apply request from
// POST /api/config reappears here as a non-nil return: the new config
// is already persisted to disk by configManager.RequestReload, so the
// next loadEnvironment() picks it up.
func runServerLoop(externalStop <-chan struct{}) error {
	for {
		env, err := loadEnvironment()
		if err != nil {
			return err
		}

		next, err := serveOnce(env, externalStop)
		if err != nil {
			return err
		}
		if next == nil {
			return nil
		}

		env.log.Info("config changed, waiting for the OS to free up the socket")
		time.Sleep(5 * time.Second)
	}
}
