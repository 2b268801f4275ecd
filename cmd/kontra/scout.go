package main

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/kontra-dev/kontra/internal/scoutstub"
)

// scoutCmd is a placeholder for a future contract-bootstrapping command that
// would infer candidate rules from a data sample (scoutstub.Profiler). No
// profiler implementation ships in this module.
var scoutCmd = &cobra.Command{
	Use:          "scout [data]",
	Short:        "Suggest a starting contract from a data sample (not yet implemented)",
	SilenceUsage: true,
	Args:         cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var _ scoutstub.Profiler // documents the intended collaborator interface
		return errors.New("scout: no profiler implementation is wired in this build")
	},
}

func init() {
	rootCmd.AddCommand(scoutCmd)
}
