// Command ytdlproject is the CLI entry point: component boundary
// between the process driver (this package) and everything under
// internal/, dispatched with github.com/spf13/cobra.
package main

import "os"

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
