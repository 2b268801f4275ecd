package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "kontra",
	Short: "Validate tabular datasets against a declarative contract",
	Long: `kontra validates Parquet, CSV, Postgres, and SQL Server datasets
against a declarative YAML contract.

It proves as much as it can from metadata alone, pushes what it can into
SQL, and falls back to an in-memory columnar pass for anything left over —
without ever loading more of the dataset than a rule actually needs.`,
}

// pendingExitCode lets a subcommand request a specific process exit code
// (spec.md §6's 0/1/2/3 status mapping) without calling os.Exit mid-RunE,
// where deferred cleanup (staged temp dirs, DB connections) would be skipped.
var pendingExitCode = exitPassed

// Execute is called by main.main().
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(int(exitRuntimeError))
	}
	os.Exit(int(pendingExitCode))
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.kontra/config.yaml)")
	rootCmd.PersistentFlags().StringP("output-format", "o", "rich", "Output format: rich, json")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose diagnostic logging")
	rootCmd.PersistentFlags().Bool("io-debug", false, "Attach materializer I/O diagnostics to run stats")

	viper.BindPFlag("output_format", rootCmd.PersistentFlags().Lookup("output-format"))
	viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
	viper.BindPFlag("io_debug", rootCmd.PersistentFlags().Lookup("io-debug"))
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			return
		}
		viper.AddConfigPath(home + "/.kontra")
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("KONTRA")
	viper.AutomaticEnv()

	// Silently ignore a missing config file — it's optional.
	_ = viper.ReadInConfig()

	if viper.GetBool("verbose") {
		os.Setenv("KONTRA_VERBOSE", "1")
	}
	if viper.GetBool("io_debug") {
		os.Setenv("KONTRA_IO_DEBUG", "1")
	}
}
