package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/markdave123-py/Coursewise/internal/core/scheduler"
)

// IngestionRunner runs one scheduler invocation.
type IngestionRunner interface {
	RunOnce(ctx context.Context) (scheduler.Summary, error)
}

type IngestHandler struct {
	runner IngestionRunner
	logger *slog.Logger
}

func NewIngestHandler(runner IngestionRunner, logger *slog.Logger) *IngestHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &IngestHandler{runner: runner, logger: logger}
}

// Run processes one batch of ingestion jobs and reports {processed, failures}.
// A client disconnect does not cancel the batch.
func (h *IngestHandler) Run(w http.ResponseWriter, r *http.Request) {
	summary, err := h.runner.RunOnce(context.WithoutCancel(r.Context()))
	if err != nil {
		h.logger.Error("ingestion run failed", "error", err)
		writeError(w, http.StatusInternalServerError, "ingestion run failed")
		return
	}
	writeJSON(w, http.StatusOK, summary)
}
