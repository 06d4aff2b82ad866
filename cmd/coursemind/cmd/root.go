// Package cmd provides the CLI commands for CourseMind.
package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/coursemind/coursemind/internal/config"
	"github.com/coursemind/coursemind/internal/logging"
	"github.com/coursemind/coursemind/pkg/version"
)

// Global flags shared by all subcommands.
var (
	configDir      string
	debugMode      bool
	noColor        bool
	loggingCleanup func()
)

// NewRootCmd creates the root command for the coursemind CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "coursemind",
		Short: "Course-corpus retrieval and Q&A for students",
		Long: `CourseMind answers course questions by retrieving relevant excerpts
from indexed course material (lectures, FAQs, forum discussions) and
generating grounded, cited answers with a local Ollama model.

Index a corpus with 'coursemind index', then query it with
'coursemind ask' or 'coursemind search'.`,
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	cmd.SetVersionTemplate("coursemind version {{.Version}}\n")

	cmd.PersistentFlags().StringVarP(&configDir, "config-dir", "C", ".", "Directory to load .coursemind.yaml from")
	cmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "Enable debug logging")
	cmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable colored output")

	cmd.PersistentPreRunE = setupLogging
	cmd.PersistentPostRun = func(_ *cobra.Command, _ []string) {
		if loggingCleanup != nil {
			loggingCleanup()
			loggingCleanup = nil
		}
	}

	cmd.AddCommand(newAskCmd())
	cmd.AddCommand(newSearchCmd())
	cmd.AddCommand(newStatsCmd())
	cmd.AddCommand(newCompareCmd())
	cmd.AddCommand(newIndexCmd())
	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// setupLogging routes structured logs to the rotating log file. Stderr
// mirroring stays off so CLI output is not interleaved with JSON logs.
func setupLogging(_ *cobra.Command, _ []string) error {
	logCfg := logging.DefaultConfig()
	logCfg.WriteToStderr = false
	if debugMode {
		logCfg.Level = "debug"
	}

	logger, cleanup, err := logging.Setup(logCfg)
	if err != nil {
		// Logging failure must not block the command.
		fmt.Fprintf(os.Stderr, "warning: file logging disabled: %v\n", err)
		return nil
	}
	loggingCleanup = cleanup
	slog.SetDefault(logger)
	return nil
}

// loadConfig loads configuration from the configured directory.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configDir)
	if err != nil {
		return nil, fmt.Errorf("loading configuration: %w", err)
	}
	if debugMode {
		cfg.Logging.Level = "debug"
	}
	return cfg, nil
}

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().Execute()
}
