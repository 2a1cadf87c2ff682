package export

import (
	"archive/zip"
	"bytes"
	"fmt"

	"github.com/dgallion1/pdfextract/internal/extraction"
)

// BuildArchive writes every image's bytes into a ZIP entry named by its
// filename.
func BuildArchive(images []extraction.Image) ([]byte, error) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, img := range images {
		w, err := zw.Create(img.Filename)
		if err != nil {
			zw.Close()
			return nil, fmt.Errorf("create entry %s: %w", img.Filename, err)
		}
		if _, err := w.Write(img.Bytes); err != nil {
			zw.Close()
			return nil, fmt.Errorf("write entry %s: %w", img.Filename, err)
		}
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("close archive: %w", err)
	}
	return buf.Bytes(), nil
}
