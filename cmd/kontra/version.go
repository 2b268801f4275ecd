package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

// Version is set at build time via ldflags.
var (
	Version   = "dev"
	CommitSHA = "none"
	BuildDate = "unknown"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print kontra's version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("kontra %s (commit: %s, built: %s)\n", Version, CommitSHA, BuildDate)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
