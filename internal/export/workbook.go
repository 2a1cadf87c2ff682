// Package export assembles extraction results into downloadable files.
package export

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"math"
	"strconv"
	"strings"

	"github.com/dgallion1/pdfextract/internal/extraction"
	"github.com/xuri/excelize/v2"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

const (
	ImagesSheet      = "Extracted_Images"
	PlaceholderSheet = "No_Tables"

	maxImageWidth  = 400
	maxImageHeight = 300
	imageRowStride = 20
)

// TableSheetName returns the sheet name for the i-th table (0-based).
func TableSheetName(i int) string {
	return fmt.Sprintf("Table_%d", i+1)
}

// BuildWorkbook writes one sheet per table (or a placeholder sheet when
// there are none) and, if any images exist, an image sheet. Images that
// cannot be placed are reported as warnings and skipped.
func BuildWorkbook(tables []extraction.Table, images []extraction.Image) ([]byte, []string, error) {
	f := excelize.NewFile()
	defer f.Close()

	first := f.GetSheetName(0)
	if len(tables) == 0 {
		if err := f.SetSheetName(first, PlaceholderSheet); err != nil {
			return nil, nil, fmt.Errorf("rename sheet: %w", err)
		}
		if err := f.SetSheetRow(PlaceholderSheet, "A1", &[]any{"Message"}); err != nil {
			return nil, nil, fmt.Errorf("write placeholder: %w", err)
		}
		if err := f.SetSheetRow(PlaceholderSheet, "A2", &[]any{"No tables found in PDF"}); err != nil {
			return nil, nil, fmt.Errorf("write placeholder: %w", err)
		}
	}
	for i, t := range tables {
		name := TableSheetName(i)
		if i == 0 {
			if err := f.SetSheetName(first, name); err != nil {
				return nil, nil, fmt.Errorf("rename sheet: %w", err)
			}
		} else if _, err := f.NewSheet(name); err != nil {
			return nil, nil, fmt.Errorf("create sheet %s: %w", name, err)
		}
		if err := writeRows(f, name, t.Rows); err != nil {
			return nil, nil, fmt.Errorf("write %s: %w", name, err)
		}
	}

	var warnings []string
	if len(images) > 0 {
		if _, err := f.NewSheet(ImagesSheet); err != nil {
			return nil, nil, fmt.Errorf("create sheet %s: %w", ImagesSheet, err)
		}
		row := 1
		for _, img := range images {
			if err := placeImage(f, row, img); err != nil {
				warnings = append(warnings, fmt.Sprintf("Could not add image %s to Excel: %s", img.Filename, err))
				continue
			}
			row += imageRowStride
		}
	}

	f.SetActiveSheet(0)
	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, nil, fmt.Errorf("write workbook: %w", err)
	}
	return buf.Bytes(), warnings, nil
}

func writeRows(f *excelize.File, sheet string, rows [][]string) error {
	for r, row := range rows {
		values := make([]any, len(row))
		for c, cell := range row {
			// The header row stays text.
			if r > 0 {
				values[c] = cellValue(cell)
			} else {
				values[c] = cell
			}
		}
		axis, err := excelize.CoordinatesToCellName(1, r+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, axis, &values); err != nil {
			return err
		}
	}
	return nil
}

// cellValue stores numeric-looking text as a number.
func cellValue(s string) any {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return s
	}
	n, err := strconv.ParseFloat(trimmed, 64)
	if err != nil || math.IsNaN(n) || math.IsInf(n, 0) {
		return s
	}
	// Keep identifiers such as "007" intact.
	if len(trimmed) > 1 && trimmed[0] == '0' && trimmed[1] != '.' {
		return s
	}
	return n
}

func placeImage(f *excelize.File, row int, img extraction.Image) error {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(img.Bytes))
	if err != nil {
		return fmt.Errorf("decode image: %w", err)
	}
	scaleX, scaleY := fitScale(cfg.Width, cfg.Height)

	err = f.AddPictureFromBytes(ImagesSheet, fmt.Sprintf("A%d", row), &excelize.Picture{
		Extension: "." + img.Ext,
		File:      img.Bytes,
		Format: &excelize.GraphicOptions{
			AltText: img.Filename,
			ScaleX:  scaleX,
			ScaleY:  scaleY,
		},
	})
	if err != nil {
		return err
	}
	if err := f.SetCellValue(ImagesSheet, fmt.Sprintf("E%d", row), fmt.Sprintf("Page %d, Image %d", img.Page, img.Index+1)); err != nil {
		return err
	}
	return f.SetCellValue(ImagesSheet, fmt.Sprintf("E%d", row+1), img.Filename)
}

// fitScale caps width at 400px and height at 300px independently.
func fitScale(width, height int) (scaleX, scaleY float64) {
	scaleX, scaleY = 1, 1
	if width > maxImageWidth {
		scaleX = float64(maxImageWidth) / float64(width)
	}
	if height > maxImageHeight {
		scaleY = float64(maxImageHeight) / float64(height)
	}
	return scaleX, scaleY
}
