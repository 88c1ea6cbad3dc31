// Package cli provides the command-line interface for the assistant service.
package cli

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/msi-gate/assistant/internal/config"
)

var (
	// Version is set at build time.
	Version = "0.1.0"

	// Global flags
	verbose bool

	// Loaded in PersistentPreRunE, shared by subcommands.
	cfg        config.Config
	logger     *slog.Logger
	logCleanup func() error
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "assistantd",
	Short: "AI assistant service for the enterprise gateway",
	Long: `assistantd serves the AI assistant behind the enterprise API gateway.

It answers chat messages with a tool-calling model, proxies data lookups
through the gateway's allow-listed endpoints, persists conversations in
PostgreSQL, and validates new customer names against the remote gate_sso
database over dblink.`,
	Version: Version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "version" || cmd.Name() == "help" {
			return nil
		}

		// A missing .env file is fine; the real deployment sets env directly.
		_ = godotenv.Load()
		cfg = config.Load()

		level := cfg.LogLevel
		if verbose {
			level = slog.LevelDebug
		}
		logger, logCleanup = config.SetupLogger(cfg.LogFile, level)
		slog.SetDefault(logger)
		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		if logCleanup != nil {
			return logCleanup()
		}
		return nil
	},
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
}
