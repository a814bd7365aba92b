package commands

import (
	"fmt"
	"os"

	"github.com/simonhull/apiport/pkg/config"
	"github.com/simonhull/apiport/pkg/logger"
	"github.com/simonhull/apiport/pkg/output"
	"github.com/spf13/cobra"
)

// Version is set at build time with -ldflags "-X ...commands.Version=..."
var Version = "dev"

var (
	verbose    bool
	configPath string
)

// RootCmd is the root command for apiport
var RootCmd = &cobra.Command{
	Use:   "apiport",
	Short: "ApiPort - API portability analyzer for managed assemblies",
	Long: `ApiPort reads the metadata of managed assemblies, finds the platform APIs
they reference and reports which of them are missing or behave differently
on the requested target platforms.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		output.SetVerbose(verbose)
	},
}

// Execute runs the root command
func Execute() error {
	return RootCmd.Execute()
}

func init() {
	RootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Show detailed progress and debug logging")
	RootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to configuration file (default apiport.yml)")

	RootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "ApiPort v%s\n", Version)
		},
	})
}

// loadSettings reads the configuration and builds the logger it asks for.
// --verbose forces debug logging.
func loadSettings() (*config.Config, logger.Logger, error) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, nil, err
	}

	level, err := logger.ParseLevel(cfg.Log.Level)
	if err != nil {
		return nil, nil, fmt.Errorf("log.level: %w", err)
	}
	if verbose {
		level = logger.LevelDebug
	}

	log := logger.NewLogger(level, os.Stderr)
	logger.SetDefault(log)
	return cfg, log, nil
}
