package pdf

import (
	"context"
	"fmt"
	"strings"

	"github.com/dgallion1/pdfextract/internal/extraction"
	"github.com/tsawler/tabula/contentstream"
	"github.com/tsawler/tabula/core"
	"github.com/tsawler/tabula/model"
	"github.com/tsawler/tabula/pages"
	"github.com/tsawler/tabula/reader"
	"github.com/tsawler/tabula/tables"
	"github.com/tsawler/tabula/text"
)

// TableConfig tunes the geometric table detector.
type TableConfig struct {
	MinRows       int
	MinCols       int
	MinConfidence float64
}

// TableExtractor finds tables on every page of a PDF.
type TableExtractor struct {
	cfg tables.Config
}

func NewTableExtractor(cfg TableConfig) *TableExtractor {
	tc := tables.DefaultConfig()
	if cfg.MinRows > 0 {
		tc.MinRows = cfg.MinRows
	}
	if cfg.MinCols > 0 {
		tc.MinCols = cfg.MinCols
	}
	if cfg.MinConfidence > 0 {
		tc.MinConfidence = cfg.MinConfidence
	}
	return &TableExtractor{cfg: tc}
}

// Extract scans all pages and returns the detected tables in page order.
// Pages that cannot be read are skipped.
func (e *TableExtractor) Extract(ctx context.Context, path string) ([]extraction.Table, error) {
	r, err := reader.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}
	defer r.Close()

	numPages, err := r.PageCount()
	if err != nil {
		return nil, fmt.Errorf("page count: %w", err)
	}

	detector := tables.NewGeometricDetector()
	if err := detector.Configure(e.cfg); err != nil {
		return nil, fmt.Errorf("configure detector: %w", err)
	}

	var out []extraction.Table
	for i := 0; i < numPages; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		page, err := r.GetPage(i)
		if err != nil {
			continue
		}
		fragments, err := r.ExtractTextFragments(page)
		if err != nil || len(fragments) == 0 {
			continue
		}
		width, _ := page.Width()
		height, _ := page.Height()

		mp := modelPage(i+1, width, height, fragments)
		mp.RawLines = pageLines(page)

		found, err := detector.Detect(mp)
		if err != nil {
			continue
		}
		idx := 0
		for _, t := range found {
			rows := tableRows(t)
			if len(rows) < e.cfg.MinRows || len(rows[0]) < e.cfg.MinCols {
				continue
			}
			out = append(out, extraction.Table{Page: i + 1, Index: idx, Rows: rows})
			idx++
		}
	}
	return out, nil
}

// modelPage converts positioned text into the page shape the detector reads.
func modelPage(number int, width, height float64, fragments []text.TextFragment) *model.Page {
	p := model.NewPage(width, height)
	p.Number = number
	for _, f := range fragments {
		if strings.TrimSpace(f.Text) == "" {
			continue
		}
		p.RawText = append(p.RawText, model.TextFragment{
			Text:     f.Text,
			BBox:     model.NewBBox(f.X, f.Y, f.Width, f.Height),
			FontSize: f.FontSize,
			FontName: f.FontName,
		})
	}
	return p
}

// pageLines collects ruled lines and rectangle edges from the page's
// content streams, in page space.
func pageLines(page *pages.Page) []model.Line {
	contents, err := page.Contents()
	if err != nil {
		return nil
	}
	var lines []model.Line
	for _, obj := range contents {
		stream, ok := obj.(*core.Stream)
		if !ok {
			continue
		}
		data, err := stream.Decode()
		if err != nil {
			continue
		}
		ops, err := contentstream.NewParser(data).Parse()
		if err != nil {
			continue
		}
		lines = append(lines, drawnLines(ops)...)
	}
	return lines
}

// drawnLines follows q/Q/cm and turns m/l segments and re rectangles
// into lines. Curves are ignored.
func drawnLines(ops []contentstream.Operation) []model.Line {
	var lines []model.Line
	ctm := model.Identity()
	var saved []model.Matrix
	var cur model.Point
	for _, op := range ops {
		switch op.Operator {
		case "q":
			saved = append(saved, ctm)
		case "Q":
			if n := len(saved); n > 0 {
				ctm = saved[n-1]
				saved = saved[:n-1]
			}
		case "cm":
			if v, ok := numbers(op.Operands, 6); ok {
				ctm = model.Matrix{v[0], v[1], v[2], v[3], v[4], v[5]}.Multiply(ctm)
			}
		case "m":
			if v, ok := numbers(op.Operands, 2); ok {
				cur = model.Point{X: v[0], Y: v[1]}
			}
		case "l":
			if v, ok := numbers(op.Operands, 2); ok {
				next := model.Point{X: v[0], Y: v[1]}
				lines = append(lines, model.Line{Start: ctm.Transform(cur), End: ctm.Transform(next)})
				cur = next
			}
		case "re":
			v, ok := numbers(op.Operands, 4)
			if !ok {
				continue
			}
			corners := []model.Point{
				{X: v[0], Y: v[1]},
				{X: v[0] + v[2], Y: v[1]},
				{X: v[0] + v[2], Y: v[1] + v[3]},
				{X: v[0], Y: v[1] + v[3]},
			}
			for k := range corners {
				lines = append(lines, model.Line{
					Start:  ctm.Transform(corners[k]),
					End:    ctm.Transform(corners[(k+1)%4]),
					IsRect: true,
				})
			}
			cur = model.Point{X: v[0], Y: v[1]}
		}
	}
	return lines
}

func numbers(operands []core.Object, n int) ([]float64, bool) {
	if len(operands) != n {
		return nil, false
	}
	out := make([]float64, n)
	for i, o := range operands {
		switch v := o.(type) {
		case core.Int:
			out[i] = float64(v)
		case core.Real:
			out[i] = float64(v)
		default:
			return nil, false
		}
	}
	return out, true
}

// tableRows flattens detected cells to text. The detector's grid includes
// the gaps between text runs, so rows and columns with no text are
// dropped. Tables with no text at all return nil.
func tableRows(t *model.Table) [][]string {
	var filled [][]string
	width := 0
	for _, row := range t.Rows {
		cells := make([]string, len(row))
		hasText := false
		for j, cell := range row {
			cells[j] = strings.TrimSpace(cell.Text)
			if cells[j] != "" {
				hasText = true
			}
		}
		if hasText {
			filled = append(filled, cells)
			width = max(width, len(cells))
		}
	}
	if len(filled) == 0 {
		return nil
	}

	used := make([]bool, width)
	for _, row := range filled {
		for j, c := range row {
			if c != "" {
				used[j] = true
			}
		}
	}
	rows := make([][]string, len(filled))
	for i, row := range filled {
		cells := make([]string, 0, len(row))
		for j, c := range row {
			if used[j] {
				cells = append(cells, c)
			}
		}
		rows[i] = cells
	}
	return rows
}
