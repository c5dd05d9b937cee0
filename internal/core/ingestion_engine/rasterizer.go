package ingestion_engine

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"

	"github.com/ledongthuc/pdf"
)

// Rasterizer opens a PDF for page-by-page rendering.
type Rasterizer interface {
	Open(ctx context.Context, data []byte) (RasterDocument, error)
}

// RasterDocument renders pages of one opened PDF. RenderPage is safe for concurrent use.
type RasterDocument interface {
	PageCount() int
	RenderPage(ctx context.Context, page int) ([]byte, error)
	Close() error
}

// PopplerRasterizer renders pages to PNG with pdftoppm.
type PopplerRasterizer struct {
	Binary string
	DPI    int
}

func NewPopplerRasterizer(dpi int) *PopplerRasterizer {
	if dpi <= 0 {
		dpi = DefaultIngestConfig().RenderDPI
	}
	return &PopplerRasterizer{Binary: "pdftoppm", DPI: dpi}
}

// Open writes the PDF to a temp dir that lives until Close.
func (p *PopplerRasterizer) Open(ctx context.Context, data []byte) (RasterDocument, error) {
	if _, err := exec.LookPath(p.Binary); err != nil {
		return nil, fmt.Errorf("cannot rasterize PDF: install Poppler (%s): %w", p.Binary, err)
	}

	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("read pdf: %w", err)
	}

	dir, err := os.MkdirTemp("", "coursewise-ocr-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp dir: %w", err)
	}
	path := filepath.Join(dir, "material.pdf")
	if err := os.WriteFile(path, data, 0o600); err != nil {
		_ = os.RemoveAll(dir)
		return nil, fmt.Errorf("write temp pdf: %w", err)
	}

	return &popplerDocument{binary: p.Binary, dpi: p.DPI, dir: dir, path: path, pages: r.NumPage()}, nil
}

type popplerDocument struct {
	binary string
	dpi    int
	dir    string
	path   string
	pages  int
}

func (d *popplerDocument) PageCount() int { return d.pages }

func (d *popplerDocument) RenderPage(ctx context.Context, page int) ([]byte, error) {
	prefix := filepath.Join(d.dir, "page-"+strconv.Itoa(page))
	n := strconv.Itoa(page)
	cmd := exec.CommandContext(ctx, d.binary,
		"-png", "-r", strconv.Itoa(d.dpi), "-f", n, "-l", n, "-singlefile",
		d.path, prefix)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("pdftoppm page %d: %w: %s", page, err, stderr.String())
	}

	out := prefix + ".png"
	defer os.Remove(out)
	img, err := os.ReadFile(out)
	if err != nil {
		return nil, fmt.Errorf("read rendered page %d: %w", page, err)
	}
	return img, nil
}

func (d *popplerDocument) Close() error {
	return os.RemoveAll(d.dir)
}
