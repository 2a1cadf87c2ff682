package export

import (
	"bytes"
	"fmt"
	"image"

	"github.com/dgallion1/pdfextract/internal/extraction"
	"github.com/fumiama/go-docx"
)

// BuildReport writes a Word document listing every table followed by every
// image with its caption. Images the writer rejects become warnings.
func BuildReport(title string, tables []extraction.Table, images []extraction.Image) ([]byte, []string, error) {
	w := docx.New().WithDefaultTheme()

	w.AddParagraph().AddText(title).Bold().Size("36")

	if len(tables) == 0 {
		w.AddParagraph().AddText("No tables found in PDF")
	}
	for i, t := range tables {
		rows, cols := t.Shape()
		w.AddParagraph().AddText(fmt.Sprintf("Table %d (page %d)", i+1, t.Page)).Bold().Size("28")
		if rows == 0 || cols == 0 {
			continue
		}
		tbl := w.AddTable(rows, cols, 0, nil)
		for r, row := range t.Rows {
			for c := 0; c < cols; c++ {
				cell := ""
				if c < len(row) {
					cell = row[c]
				}
				run := tbl.TableRows[r].TableCells[c].AddParagraph().AddText(cell)
				if r == 0 {
					run.Bold()
				}
			}
		}
	}

	var warnings []string
	if len(images) > 0 {
		w.AddParagraph().AddText("Extracted Images").Bold().Size("28")
	}
	for _, img := range images {
		if err := addImage(w, img); err != nil {
			warnings = append(warnings, fmt.Sprintf("Could not add image %s to report: %s", img.Filename, err))
			continue
		}
		w.AddParagraph().AddText(fmt.Sprintf("Page %d, Image %d: %s", img.Page, img.Index+1, img.Filename)).Italic()
	}

	var buf bytes.Buffer
	if _, err := w.WriteTo(&buf); err != nil {
		return nil, nil, fmt.Errorf("write report: %w", err)
	}
	return buf.Bytes(), warnings, nil
}

func addImage(w *docx.Docx, img extraction.Image) error {
	if _, _, err := image.DecodeConfig(bytes.NewReader(img.Bytes)); err != nil {
		return fmt.Errorf("decode image: %w", err)
	}
	_, err := w.AddParagraph().AddInlineDrawing(img.Bytes)
	return err
}
