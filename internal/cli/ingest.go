package cli

import (
	"encoding/json"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/markdave123-py/Coursewise/internal/app"
)

var ingestBatchSize int

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Process one batch of pending ingestion jobs",
	Long: `Runs a single scheduler invocation: claims up to INGEST_BATCH_SIZE pending or
retryable jobs, processes them and prints {"processed": n, "failures": [...]}.
Meant to be run from cron.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if ingestBatchSize > 0 {
			cfg.IngestBatchSize = ingestBatchSize
		}
		application, err := app.NewApp(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer application.Close()

		summary, err := application.Scheduler.RunOnce(ctx)
		if err != nil {
			return err
		}

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(summary)
	},
}

func init() {
	ingestCmd.Flags().IntVar(&ingestBatchSize, "batch-size", 0, "override INGEST_BATCH_SIZE for this run")
}
