package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/markdave123-py/Coursewise/internal/core/llm"
	"github.com/markdave123-py/Coursewise/internal/core/structured"
	"github.com/markdave123-py/Coursewise/internal/services"
)

// GenerationService is what GenerationHandler needs from services.GenerationService.
type GenerationService interface {
	Blueprint(ctx context.Context, req services.BlueprintRequest) (*services.Generated[structured.Blueprint], error)
	Quiz(ctx context.Context, req services.QuizRequest) (*services.Generated[structured.Quiz], error)
	Flashcards(ctx context.Context, req services.FlashcardsRequest) (*services.Generated[structured.Flashcards], error)
	Chat(ctx context.Context, req services.ChatRequest) (*services.Generated[structured.ChatAnswer], error)
}

type GenerationHandler struct {
	svc    GenerationService
	logger *slog.Logger
}

func NewGenerationHandler(svc GenerationService, logger *slog.Logger) *GenerationHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &GenerationHandler{svc: svc, logger: logger}
}

func (h *GenerationHandler) Blueprint(w http.ResponseWriter, r *http.Request) {
	handle(h, w, r, func(ctx context.Context, req services.BlueprintRequest, classID string) (*services.Generated[structured.Blueprint], error) {
		req.ClassID = classID
		return h.svc.Blueprint(ctx, req)
	})
}

func (h *GenerationHandler) Quiz(w http.ResponseWriter, r *http.Request) {
	handle(h, w, r, func(ctx context.Context, req services.QuizRequest, classID string) (*services.Generated[structured.Quiz], error) {
		req.ClassID = classID
		return h.svc.Quiz(ctx, req)
	})
}

func (h *GenerationHandler) Flashcards(w http.ResponseWriter, r *http.Request) {
	handle(h, w, r, func(ctx context.Context, req services.FlashcardsRequest, classID string) (*services.Generated[structured.Flashcards], error) {
		req.ClassID = classID
		return h.svc.Flashcards(ctx, req)
	})
}

func (h *GenerationHandler) Chat(w http.ResponseWriter, r *http.Request) {
	handle(h, w, r, func(ctx context.Context, req services.ChatRequest, classID string) (*services.Generated[structured.ChatAnswer], error) {
		req.ClassID = classID
		return h.svc.Chat(ctx, req)
	})
}

// handle decodes an optional JSON body, runs the use-case and maps its errors.
func handle[Req, Res any](h *GenerationHandler, w http.ResponseWriter, r *http.Request, call func(context.Context, Req, string) (*Res, error)) {
	var req Req
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	classID := chi.URLParam(r, "classID")
	out, err := call(r.Context(), req, classID)
	if err != nil {
		status := statusFor(err)
		msg := err.Error()
		if status >= http.StatusInternalServerError {
			h.logger.Error("generation failed", "class_id", classID, "path", r.URL.Path, "status", status, "error", err)
		}
		if status == http.StatusInternalServerError {
			msg = "generation failed"
		}
		writeError(w, status, msg)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func statusFor(err error) int {
	var (
		verr   *structured.ValidationError
		cfgErr *llm.ConfigurationError
	)
	switch {
	case errors.Is(err, services.ErrInvalidRequest):
		return http.StatusBadRequest
	case errors.As(err, &verr),
		errors.Is(err, structured.ErrNoJSONObject),
		errors.Is(err, structured.ErrMultipleJSONObjects):
		return http.StatusBadGateway
	case errors.As(err, &cfgErr):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}
