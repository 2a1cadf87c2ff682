package pdf

import (
	"bytes"
	"context"
	"fmt"
	"image/png"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"

	"github.com/dgallion1/pdfextract/internal/extraction"
	"github.com/gen2brain/go-fitz"
)

// PageRenderer rasterizes pages of one open document. Page numbers are 1-based.
type PageRenderer interface {
	NumPage() int
	Render(ctx context.Context, page int) ([]byte, error)
	Close() error
}

// Rasterizer renders whole pages to PNG with MuPDF, falling back to
// poppler's pdftoppm when MuPDF cannot open the file.
type Rasterizer struct {
	DPI              float64
	FallbackPdftoppm bool
}

func NewRasterizer(dpi float64, fallbackPdftoppm bool) *Rasterizer {
	if dpi <= 0 {
		dpi = 150
	}
	return &Rasterizer{DPI: dpi, FallbackPdftoppm: fallbackPdftoppm}
}

// Open prepares a renderer for the document at path.
func (r *Rasterizer) Open(ctx context.Context, path string) (PageRenderer, error) {
	doc, err := fitz.New(path)
	if err == nil {
		return &fitzRenderer{doc: doc, dpi: r.DPI}, nil
	}
	if !r.FallbackPdftoppm {
		return nil, fmt.Errorf("open with mupdf: %w", err)
	}
	n, countErr := PageCount(path)
	if countErr != nil {
		return nil, fmt.Errorf("open with mupdf: %w; page count: %v", err, countErr)
	}
	return &popplerRenderer{path: path, dpi: r.DPI, pages: n}, nil
}

// RenderAll rasterizes every page. A page that fails is reported and skipped.
func (r *Rasterizer) RenderAll(ctx context.Context, path string) ([]extraction.Image, []string, error) {
	pr, err := r.Open(ctx, path)
	if err != nil {
		return nil, nil, err
	}
	defer pr.Close()
	return renderPages(ctx, pr)
}

func renderPages(ctx context.Context, pr PageRenderer) ([]extraction.Image, []string, error) {
	var images []extraction.Image
	var warnings []string
	for page := 1; page <= pr.NumPage(); page++ {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}
		data, err := pr.Render(ctx, page)
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("Could not convert page %d to image: %s", page, err))
			continue
		}
		images = append(images, extraction.Image{
			Page:     page,
			Index:    0,
			Bytes:    data,
			Ext:      "png",
			Filename: extraction.PageImageName(page),
		})
	}
	return images, warnings, nil
}

type fitzRenderer struct {
	doc *fitz.Document
	dpi float64
}

func (f *fitzRenderer) NumPage() int { return f.doc.NumPage() }

func (f *fitzRenderer) Render(_ context.Context, page int) ([]byte, error) {
	img, err := f.doc.ImageDPI(page-1, f.dpi)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}

func (f *fitzRenderer) Close() error { return f.doc.Close() }

type popplerRenderer struct {
	path  string
	dpi   float64
	pages int
}

func (p *popplerRenderer) NumPage() int { return p.pages }

func (p *popplerRenderer) Render(ctx context.Context, page int) ([]byte, error) {
	dir, err := os.MkdirTemp("", "pdfextract-page-*")
	if err != nil {
		return nil, fmt.Errorf("create temp dir: %w", err)
	}
	defer os.RemoveAll(dir)

	root := filepath.Join(dir, "page")
	cmd := exec.CommandContext(ctx,
		"pdftoppm",
		"-f", strconv.Itoa(page),
		"-l", strconv.Itoa(page),
		"-r", strconv.FormatFloat(p.dpi, 'f', 0, 64),
		"-png",
		"-singlefile",
		p.path,
		root,
	)
	if out, err := cmd.CombinedOutput(); err != nil {
		return nil, fmt.Errorf("pdftoppm: %w: %s", err, bytes.TrimSpace(out))
	}
	return os.ReadFile(root + ".png")
}

func (p *popplerRenderer) Close() error { return nil }
