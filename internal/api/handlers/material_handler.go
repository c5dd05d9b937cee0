package handlers

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/markdave123-py/Coursewise/internal/models"
	"github.com/markdave123-py/Coursewise/internal/services"
)

// MaxUploadBytes bounds a single material upload.
const MaxUploadBytes = 50 << 20

// MaterialService is what MaterialHandler needs from services.MaterialService.
type MaterialService interface {
	Upload(ctx context.Context, in services.UploadInput) (*models.Material, error)
	Get(ctx context.Context, id string) (*models.Material, error)
}

type MaterialHandler struct {
	svc    MaterialService
	logger *slog.Logger
}

func NewMaterialHandler(svc MaterialService, logger *slog.Logger) *MaterialHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &MaterialHandler{svc: svc, logger: logger}
}

// Upload stores a multipart "file" for the given class_id and queues it for ingestion.
func (h *MaterialHandler) Upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, MaxUploadBytes+1<<20)
	if err := r.ParseMultipartForm(8 << 20); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}

	classID := strings.TrimSpace(r.FormValue("class_id"))
	if classID == "" {
		writeError(w, http.StatusBadRequest, "class_id is required")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid file")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, MaxUploadBytes+1))
	if err != nil {
		writeError(w, http.StatusBadRequest, "could not read file")
		return
	}
	if len(data) > MaxUploadBytes {
		writeError(w, http.StatusRequestEntityTooLarge, "file is too large")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Minute)
	defer cancel()

	material, err := h.svc.Upload(ctx, services.UploadInput{
		ClassID:     classID,
		Title:       r.FormValue("title"),
		FileName:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Data:        data,
	})
	switch {
	case errors.Is(err, services.ErrUnsupportedMaterial):
		writeError(w, http.StatusUnsupportedMediaType, err.Error())
		return
	case err != nil:
		h.logger.Error("material upload failed", "class_id", classID, "error", err)
		writeError(w, http.StatusInternalServerError, "upload failed")
		return
	}

	writeJSON(w, http.StatusCreated, material)
}

func (h *MaterialHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	material, err := h.svc.Get(r.Context(), id)
	if err != nil {
		h.logger.Error("load material failed", "material_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "could not load material")
		return
	}
	if material == nil {
		writeError(w, http.StatusNotFound, "material not found")
		return
	}
	writeJSON(w, http.StatusOK, material)
}
