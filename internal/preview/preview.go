// Package preview renders the upload form and the extraction results page.
package preview

import (
	"bytes"
	"embed"
	"encoding/base64"
	"fmt"
	"html/template"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"
	"io"
	"strings"

	"github.com/dgallion1/pdfextract/internal/export"
	"github.com/dgallion1/pdfextract/internal/extraction"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

//go:embed templates/*.html instructions.md
var assets embed.FS

// ThumbnailWidth is the widest thumbnail shown in the image grid.
const ThumbnailWidth = 320

// Download is a link to one of the generated files.
type Download struct {
	Label string
	Name  string
	URL   string
}

// TableBlock is one collapsible table preview.
type TableBlock struct {
	Title string
	HTML  template.HTML
}

// ImageCard is one cell of the image grid.
type ImageCard struct {
	Caption   string
	Filename  string
	URL       string
	Thumbnail template.URL
	Error     string
}

// Page is the data handed to the layout template.
type Page struct {
	Options      extraction.Options
	Engines      []extraction.Engine
	Messages     []extraction.Message
	Result       bool
	Tables       []TableBlock
	Images       []ImageCard
	Downloads    []Download
	Instructions template.HTML
}

// Renderer holds the parsed templates and markdown converter.
type Renderer struct {
	tmpl         *template.Template
	md           goldmark.Markdown
	instructions template.HTML
}

func New() (*Renderer, error) {
	tmpl, err := template.ParseFS(assets, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}
	r := &Renderer{
		tmpl: tmpl,
		md:   goldmark.New(goldmark.WithExtensions(extension.GFM)),
	}

	src, err := assets.ReadFile("instructions.md")
	if err != nil {
		return nil, fmt.Errorf("read instructions: %w", err)
	}
	html, err := r.markdown(string(src))
	if err != nil {
		return nil, fmt.Errorf("render instructions: %w", err)
	}
	r.instructions = html
	return r, nil
}

// Form renders the upload form with optional messages above it.
func (r *Renderer) Form(w io.Writer, opts extraction.Options, msgs []extraction.Message) error {
	return r.render(w, r.page(opts, msgs))
}

// Results renders the form followed by the preview of res. Links point at
// the download routes for jobID.
func (r *Renderer) Results(w io.Writer, jobID string, opts extraction.Options, res *extraction.Result) error {
	p := r.page(opts, res.Messages)
	if res.Empty() {
		return r.render(w, p)
	}
	p.Result = true

	for i, t := range res.Tables {
		rows, cols := t.DataShape()
		html, err := r.markdown(TableMarkdown(t))
		if err != nil {
			return fmt.Errorf("render table %d: %w", i+1, err)
		}
		p.Tables = append(p.Tables, TableBlock{
			Title: fmt.Sprintf("Table %d (Shape: (%d, %d))", i+1, rows, cols),
			HTML:  html,
		})
	}

	for i, img := range res.Images {
		card := ImageCard{
			Caption:  fmt.Sprintf("Page %d", img.Page),
			Filename: img.Filename,
			URL:      fmt.Sprintf("/jobs/%s/images/%d", jobID, i),
		}
		thumb, err := Thumbnail(img.Bytes, ThumbnailWidth)
		if err != nil {
			card.Error = fmt.Sprintf("Could not display image: %s", err)
		} else {
			card.Thumbnail = template.URL("data:image/png;base64," + base64.StdEncoding.EncodeToString(thumb))
		}
		p.Images = append(p.Images, card)
	}

	p.Downloads = append(p.Downloads, Download{
		Label: "Download Excel File",
		Name:  export.WorkbookName(res.Filename),
		URL:   fmt.Sprintf("/jobs/%s/workbook", jobID),
	})
	if len(res.Images) > 0 {
		p.Downloads = append(p.Downloads,
			Download{
				Label: "Download Images ZIP",
				Name:  export.ArchiveName(res.Filename),
				URL:   fmt.Sprintf("/jobs/%s/images.zip", jobID),
			},
			Download{
				Label: "Download Word Report",
				Name:  export.ReportName(res.Filename),
				URL:   fmt.Sprintf("/jobs/%s/report", jobID),
			},
		)
	}
	return r.render(w, p)
}

func (r *Renderer) page(opts extraction.Options, msgs []extraction.Message) Page {
	return Page{
		Options:      opts,
		Engines:      []extraction.Engine{extraction.EngineRender, extraction.EngineNative},
		Messages:     msgs,
		Instructions: r.instructions,
	}
}

func (r *Renderer) render(w io.Writer, p Page) error {
	var buf bytes.Buffer
	if err := r.tmpl.ExecuteTemplate(&buf, "layout", p); err != nil {
		return fmt.Errorf("execute template: %w", err)
	}
	_, err := buf.WriteTo(w)
	return err
}

func (r *Renderer) markdown(src string) (template.HTML, error) {
	var buf bytes.Buffer
	if err := r.md.Convert([]byte(src), &buf); err != nil {
		return "", err
	}
	// goldmark escapes text and drops raw HTML by default.
	return template.HTML(buf.String()), nil
}

// TableMarkdown renders t as a GFM pipe table. The first row is the header
// and short rows are padded to the widest row.
func TableMarkdown(t extraction.Table) string {
	rows, cols := t.Shape()
	if rows == 0 || cols == 0 {
		return ""
	}
	var sb strings.Builder
	writeRow := func(row []string) {
		sb.WriteString("|")
		for c := 0; c < cols; c++ {
			cell := ""
			if c < len(row) {
				cell = row[c]
			}
			sb.WriteString(" ")
			sb.WriteString(escapeCell(cell))
			sb.WriteString(" |")
		}
		sb.WriteString("\n")
	}

	writeRow(t.Rows[0])
	sb.WriteString("|")
	sb.WriteString(strings.Repeat(" --- |", cols))
	sb.WriteString("\n")
	for _, row := range t.Rows[1:] {
		writeRow(row)
	}
	return sb.String()
}

var cellEscaper = strings.NewReplacer(
	"\\", "\\\\",
	"|", "\\|",
	"`", "\\`",
	"*", "\\*",
	"_", "\\_",
	"[", "\\[",
	"]", "\\]",
	"<", "\\<",
	">", "\\>",
	"&", "\\&",
	"~", "\\~",
	"!", "\\!",
	"\r\n", " ",
	"\n", " ",
	"\r", " ",
)

func escapeCell(s string) string {
	return cellEscaper.Replace(strings.TrimSpace(s))
}

// Thumbnail decodes data and returns a PNG no wider than maxWidth.
func Thumbnail(data []byte, maxWidth int) ([]byte, error) {
	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	b := src.Bounds()
	if b.Dx() == 0 || b.Dy() == 0 {
		return nil, fmt.Errorf("empty image")
	}

	dst := image.Image(src)
	if b.Dx() > maxWidth {
		h := b.Dy() * maxWidth / b.Dx()
		if h < 1 {
			h = 1
		}
		scaled := image.NewRGBA(image.Rect(0, 0, maxWidth, h))
		draw.CatmullRom.Scale(scaled, scaled.Bounds(), src, b, draw.Over, nil)
		dst = scaled
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, dst); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
