package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
)

func TestInitConfigFileNotFound(t *testing.T) {
	origHome := os.Getenv("HOME")
	defer os.Setenv("HOME", origHome)

	tmpDir := t.TempDir()
	os.Setenv("HOME", tmpDir)

	viper.Reset()
	cfgFile = ""

	initConfig()

	if viper.GetString("output_format") != "" && viper.GetString("output_format") != "rich" {
		t.Fatalf("unexpected output_format default: %q", viper.GetString("output_format"))
	}
}

func TestInitConfigWithConfigFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	content := `defaults:
  output_format: json
  csv_mode: parquet
`
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatalf("writing test config: %v", err)
	}

	viper.Reset()
	cfgFile = configPath

	initConfig()

	if viper.GetString("defaults.output_format") != "json" {
		t.Fatalf("expected defaults.output_format=json, got %q", viper.GetString("defaults.output_format"))
	}
}

func TestInitConfigSetsVerboseEnv(t *testing.T) {
	origVerbose := os.Getenv("KONTRA_VERBOSE")
	defer os.Setenv("KONTRA_VERBOSE", origVerbose)
	os.Unsetenv("KONTRA_VERBOSE")

	viper.Reset()
	cfgFile = ""
	viper.Set("verbose", true)

	initConfig()

	if os.Getenv("KONTRA_VERBOSE") != "1" {
		t.Fatal("expected initConfig to set KONTRA_VERBOSE=1 when viper verbose flag is true")
	}
}
