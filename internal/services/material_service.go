package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"path"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"

	"github.com/markdave123-py/Coursewise/internal/core"
	"github.com/markdave123-py/Coursewise/internal/models"
)

// ErrUnsupportedMaterial is returned for files that are not PDF, DOCX, PPTX or an image.
var ErrUnsupportedMaterial = errors.New("unsupported material type")

const (
	mimePDF  = "application/pdf"
	mimeDOCX = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	mimePPTX = "application/vnd.openxmlformats-officedocument.presentationml.presentation"
)

var kindByExtension = map[string]models.MaterialKind{
	".pdf":  models.KindPDF,
	".docx": models.KindDOCX,
	".pptx": models.KindPPTX,
	".png":  models.KindImage,
	".jpg":  models.KindImage,
	".jpeg": models.KindImage,
	".webp": models.KindImage,
	".gif":  models.KindImage,
	".tif":  models.KindImage,
	".tiff": models.KindImage,
	".bmp":  models.KindImage,
}

// UploadInput is one uploaded file.
type UploadInput struct {
	ClassID     string
	Title       string
	FileName    string
	ContentType string
	Data        []byte
}

type MaterialService struct {
	store   core.MaterialStore
	storage core.ObjectClient
	bucket  string
	logger  *slog.Logger
}

func NewMaterialService(store core.MaterialStore, storage core.ObjectClient, bucket string, logger *slog.Logger) *MaterialService {
	if logger == nil {
		logger = slog.Default()
	}
	return &MaterialService{store: store, storage: storage, bucket: bucket, logger: logger}
}

// Upload stores the file and records a pending material together with its ingestion job.
func (s *MaterialService) Upload(ctx context.Context, in UploadInput) (*models.Material, error) {
	if strings.TrimSpace(in.ClassID) == "" {
		return nil, errors.New("class_id is required")
	}
	if len(in.Data) == 0 {
		return nil, errors.New("file is empty")
	}

	kind, mimeType, ok := DetectKind(in.ContentType, in.FileName, in.Data)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedMaterial, mimeType)
	}

	fileName := sanitizeFileName(in.FileName)
	title := strings.TrimSpace(in.Title)
	if title == "" {
		title = fileName
	}

	materialID := uuid.NewString()
	key := objectKey(in.ClassID, materialID, fileName)
	if _, err := s.storage.UploadFile(ctx, s.bucket, key, in.Data, mimeType); err != nil {
		return nil, err
	}

	material := &models.Material{
		ID:          materialID,
		ClassID:     in.ClassID,
		Title:       title,
		StoragePath: key,
		MimeType:    mimeType,
		Kind:        kind,
		Status:      models.MaterialPending,
		Metadata:    models.MaterialMetadata{FileName: fileName, SizeBytes: int64(len(in.Data))},
	}
	job := &models.IngestionJob{
		ID:         uuid.NewString(),
		MaterialID: materialID,
		ClassID:    in.ClassID,
		Status:     models.JobPending,
	}
	if err := s.store.CreateMaterialWithJob(ctx, material, job); err != nil {
		if delErr := s.storage.DeleteFile(ctx, s.bucket, key); delErr != nil {
			s.logger.Warn("failed to remove orphaned upload", "key", key, "error", delErr)
		}
		return nil, fmt.Errorf("store material: %w", err)
	}

	s.logger.Info("material uploaded", "material_id", materialID, "class_id", in.ClassID, "kind", kind, "bytes", len(in.Data))
	return material, nil
}

func (s *MaterialService) Get(ctx context.Context, id string) (*models.Material, error) {
	return s.store.GetMaterial(ctx, id)
}

// DetectKind resolves the material kind from the declared MIME type, then the sniffed
// content, then the file extension. It returns the MIME type it settled on.
func DetectKind(declared, fileName string, data []byte) (models.MaterialKind, string, bool) {
	if mt, _, err := mime.ParseMediaType(declared); err == nil {
		if kind, ok := kindForMIME(mt); ok {
			return kind, mt, true
		}
	}

	sniffed := mimetype.Detect(data)
	for m := sniffed; m != nil; m = m.Parent() {
		if kind, ok := kindForMIME(m.String()); ok {
			return kind, m.String(), true
		}
	}

	if kind, ok := kindByExtension[strings.ToLower(filepath.Ext(fileName))]; ok {
		mt := mime.TypeByExtension(strings.ToLower(filepath.Ext(fileName)))
		if mt == "" {
			mt = sniffed.String()
		}
		return kind, mt, true
	}
	return "", sniffed.String(), false
}

func kindForMIME(mt string) (models.MaterialKind, bool) {
	mt = strings.ToLower(mt)
	switch {
	case mt == mimePDF:
		return models.KindPDF, true
	case mt == mimeDOCX:
		return models.KindDOCX, true
	case mt == mimePPTX:
		return models.KindPPTX, true
	case strings.HasPrefix(mt, "image/"):
		return models.KindImage, true
	}
	return "", false
}

func sanitizeFileName(name string) string {
	name = filepath.Base(strings.TrimSpace(name))
	if name == "." || name == "/" || name == "" {
		return "material"
	}
	return strings.ReplaceAll(name, " ", "_")
}

// objectKey creates a consistent S3 key layout.
func objectKey(classID, materialID, fileName string) string {
	return path.Join("classes", classID, "materials", materialID, fileName)
}
