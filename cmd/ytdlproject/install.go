package main

import "github.com/spf13/cobra"

var installVerboseFlag bool

var installServiceCmd = &cobra.Command{
	Use:   "install-service",
	Short: "Install itself as a platform service",
	RunE: func(cmd *cobra.Command, args []string) error {
		return platformInstallService(installVerboseFlag)
	},
}

var uninstallServiceCmd = &cobra.Command{
	Use:   "uninstall-service",
	Short: "Uninstall the platform service",
	RunE: func(cmd *cobra.Command, args []string) error {
		return platformUninstallService()
	},
}

func init() {
	installServiceCmd.Flags().BoolVar(&installVerboseFlag, "verbose", false, "as a service, write log files instead of discarding logs")
}
