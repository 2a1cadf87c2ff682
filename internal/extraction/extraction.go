package extraction

import "fmt"

// Table is a table detected on a PDF page.
type Table struct {
	Page  int        // Source page (1-based)
	Index int        // Ordinal among tables on the same page
	Rows  [][]string // First row is the header row
}

// Shape returns the row and column counts, where columns is the widest row.
func (t Table) Shape() (rows, cols int) {
	for _, r := range t.Rows {
		if len(r) > cols {
			cols = len(r)
		}
	}
	return len(t.Rows), cols
}

// DataShape is Shape without the header row, the way a data frame built
// from the table would report it.
func (t Table) DataShape() (rows, cols int) {
	rows, cols = t.Shape()
	if rows > 0 {
		rows--
	}
	return rows, cols
}

// Image is an image pulled out of a PDF, either embedded or rasterized.
type Image struct {
	Page     int    // Source page (1-based)
	Index    int    // Ordinal among images on the same page (0-based)
	Bytes    []byte // Raw payload
	Ext      string // File extension without the dot
	Filename string // Display and archive name
}

// EmbeddedImageName is the filename for an embedded image.
func EmbeddedImageName(page, index int, ext string) string {
	return fmt.Sprintf("image_page%d_%d.%s", page, index, ext)
}

// VisualContentName is the filename for a page rendered because it had
// drawings but no embedded images.
func VisualContentName(page int) string {
	return fmt.Sprintf("page_%d_visual_content.png", page)
}

// PageImageName is the filename for a fully rasterized page.
func PageImageName(page int) string {
	return fmt.Sprintf("page_%d.png", page)
}

// Engine selects the library used for embedded image extraction.
type Engine string

const (
	EngineRender Engine = "render" // decode to PNG, rasterize visual pages
	EngineNative Engine = "native" // native stream bytes and extension
)

// Options mirrors the extraction toggles offered in the upload form.
type Options struct {
	Tables bool
	Images bool
	Pages  bool
	Engine Engine
}

// DefaultOptions returns the initial form state.
func DefaultOptions() Options {
	return Options{Tables: true, Images: true, Engine: EngineRender}
}

// Any reports whether at least one extraction pass is enabled.
func (o Options) Any() bool {
	return o.Tables || o.Images || o.Pages
}

// Level is the severity of a user-facing message.
type Level string

const (
	LevelInfo    Level = "info"
	LevelSuccess Level = "success"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

// Message is a single line of user-facing feedback.
type Message struct {
	Level Level  `json:"level"`
	Text  string `json:"text"`
}

// Result is everything one extraction run produced.
type Result struct {
	Filename string
	Tables   []Table
	Images   []Image
	Messages []Message
}

// Empty reports whether nothing was extracted.
func (r *Result) Empty() bool {
	return len(r.Tables) == 0 && len(r.Images) == 0
}

// HasProblems reports whether any warning or error was recorded.
func (r *Result) HasProblems() bool {
	for _, m := range r.Messages {
		if m.Level == LevelWarning || m.Level == LevelError {
			return true
		}
	}
	return false
}
