package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/kontra-dev/kontra/internal/materialize"
	"github.com/kontra-dev/kontra/internal/orchestrator"
)

var validateCmd = &cobra.Command{
	Use:          "validate [contract.yaml]",
	Short:        "Validate a dataset against a declarative contract",
	SilenceUsage: true,
	Args:         cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		contractPath := args[0]

		opts := orchestrator.DefaultRunOptions()
		opts.DataOverride, _ = cmd.Flags().GetString("data")
		opts.Tally, _ = cmd.Flags().GetBool("tally")
		opts.ShowPlan, _ = cmd.Flags().GetBool("show-plan")
		opts.ExplainPreplan, _ = cmd.Flags().GetBool("explain-preplan")

		preplanFlag, _ := cmd.Flags().GetString("preplan")
		opts.PreplanEnabled = triStateEnabled(preplanFlag, true)

		pushdownFlag, _ := cmd.Flags().GetString("pushdown")
		opts.PushdownEnabled = triStateEnabled(pushdownFlag, true)

		csvModeFlag, _ := cmd.Flags().GetString("csv-mode")
		switch csvModeFlag {
		case "file_engine":
			opts.CsvMode = materialize.CsvModeFileEngine
		case "parquet":
			opts.CsvMode = materialize.CsvModeParquet
		default:
			opts.CsvMode = materialize.CsvModeAuto
		}

		out, status := orchestrator.Run(context.Background(), contractPath, opts)

		format := viper.GetString("output_format")
		if err := render(os.Stdout, format, out); err != nil {
			return fmt.Errorf("rendering output: %w", err)
		}

		pendingExitCode = exitCodeFor(status)
		return nil
	},
}

// triStateEnabled interprets a {on,off,auto} flag, where "auto" (or an
// empty value) falls back to def (spec.md §9's preplan/pushdown are both
// "if enabled" checks; auto is CLI sugar for "on" since both tiers already
// no-op safely when the handle doesn't qualify).
func triStateEnabled(v string, def bool) bool {
	switch v {
	case "on":
		return true
	case "off":
		return false
	default:
		return def
	}
}

func init() {
	validateCmd.Flags().String("data", "", "Dataset path/URI override (e.g. data/users.parquet or s3://bucket/key)")
	validateCmd.Flags().String("preplan", "auto", "Metadata preplan tier: on, off, auto")
	validateCmd.Flags().String("pushdown", "auto", "SQL pushdown tier: on, off, auto")
	validateCmd.Flags().String("csv-mode", "auto", "CSV handling: auto, file_engine, parquet")
	validateCmd.Flags().Bool("tally", false, "Use exact SUM(CASE...) counts instead of EXISTS lower bounds")
	validateCmd.Flags().Bool("show-plan", false, "Log the generated SQL pushdown plan")
	validateCmd.Flags().Bool("explain-preplan", false, "Log the preplan row-group manifest and decisions")
	rootCmd.AddCommand(validateCmd)
}
