package cmd

import (
	"github.com/spf13/cobra"

	"districtfinder/internal/config"
)

var (
	configPath string
	dataDir    string
	backend    string
	rootCmd    = &cobra.Command{
		Use:   "districtfinder",
		Short: "District Finder - Search school districts and browse their schools",
		Long: `District Finder is a CLI/TUI application for finding US public school
districts by name and browsing the schools in each district, using NCES
Common Core of Data (CCD) lookups.

When run without commands, it launches an interactive TUI.
Use subcommands for CLI mode with JSON output.`,
		Run: func(cmd *cobra.Command, args []string) {
			// No subcommand specified - launch TUI
			cfg, err := loadConfig(cmd)
			if err != nil {
				HandleError(err, "Failed to load configuration")
			}
			LaunchTUI(cfg)
		},
	}
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "districtfinder.yaml", "Path to YAML config file")
	rootCmd.PersistentFlags().StringVarP(&dataDir, "data-dir", "d", "tmpdata/", "Directory for the cache database, logs and CSV data files")
	rootCmd.PersistentFlags().StringVarP(&backend, "backend", "b", config.BackendArcGIS, "Lookup backend: arcgis or local")
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

// loadConfig layers the config file and environment, then applies any flag
// the user set explicitly.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if flags.Changed("data-dir") {
		cfg.DataDir = dataDir
	}
	if flags.Changed("backend") {
		cfg.Backend = backend
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
