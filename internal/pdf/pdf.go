// Package pdf wraps the third-party PDF libraries used to pull tables,
// embedded images, and page renderings out of an uploaded document.
package pdf

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/dgallion1/pdfextract/internal/extraction"
	pdflib "github.com/ledongthuc/pdf"
)

// ImageExtractor pulls images out of a PDF on disk. Per-item failures are
// returned as warnings; err is set only when the whole pass failed.
type ImageExtractor interface {
	Extract(ctx context.Context, path string) (images []extraction.Image, warnings []string, err error)
}

// SupportedExtensions lists upload extensions this service accepts.
var SupportedExtensions = map[string]bool{
	".pdf": true,
}

// IsSupportedExtension checks if a file extension is supported.
func IsSupportedExtension(filename string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	return SupportedExtensions[ext]
}

// ForEngine returns the image extractor for an engine name.
func ForEngine(engine extraction.Engine, raster *Rasterizer) (ImageExtractor, error) {
	switch engine {
	case extraction.EngineRender, "":
		return NewRenderExtractor(raster), nil
	case extraction.EngineNative:
		return NewNativeExtractor(), nil
	default:
		return nil, fmt.Errorf("unsupported image engine: %s", engine)
	}
}

// SpoolToTemp copies r into a temp file and returns its path. The caller
// removes the file.
func SpoolToTemp(r io.Reader) (string, error) {
	tmp, err := os.CreateTemp("", "pdfextract-*.pdf")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return "", fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("close temp file: %w", err)
	}
	return tmpPath, nil
}

// PageCount returns the number of pages in the document.
func PageCount(path string) (n int, err error) {
	// ledongthuc/pdf panics on some malformed trailers.
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("read pdf: %v", r)
		}
	}()

	f, reader, err := pdflib.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()
	return reader.NumPage(), nil
}
