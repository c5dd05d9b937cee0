// Package cli provides the coursewise command-line interface.
package cli

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/markdave123-py/Coursewise/internal/config"
)

var (
	// Version is set at build time.
	Version = "0.1.0"

	logLevel string

	cfg         *config.Config
	logger      *slog.Logger
	closeLogger func() error
)

var rootCmd = &cobra.Command{
	Use:   "coursewise",
	Short: "Course material ingestion and grounded generation",
	Long: `Coursewise ingests uploaded course materials (PDF, DOCX, PPTX, images),
indexes them for semantic search and grounds quizzes, flashcards, blueprints
and chat answers in them.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: false,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "help" || cmd.Name() == "version" {
			return nil
		}
		cfg = config.LoadConfig()
		level := cfg.LogLevel
		if logLevel != "" {
			level = logLevel
		}
		logger, closeLogger = config.SetupLogger(cfg.LogFile, config.ParseLevel(level))
		slog.SetDefault(logger)
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if closeLogger != nil {
			_ = closeLogger()
		}
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override LOG_LEVEL (debug, info, warn, error)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(ingestCmd)
}
