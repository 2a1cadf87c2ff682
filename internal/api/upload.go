package api

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/dgallion1/pdfextract/internal/extraction"
	"github.com/dgallion1/pdfextract/internal/pdf"
)

// upload is a validated PDF upload and the options sent with it.
type upload struct {
	filename string
	data     []byte
	opts     extraction.Options
}

// requestError is an upload problem with the status code to answer with.
type requestError struct {
	msg  string
	code int
}

func (e *requestError) Error() string { return e.msg }

func (s *Server) readUpload(w http.ResponseWriter, r *http.Request) (*upload, *requestError) {
	// Limit total request size.
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes+1024*1024) // extra 1MB for form overhead

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		return nil, &requestError{"invalid multipart form: " + err.Error(), http.StatusBadRequest}
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		return nil, &requestError{"file is required: " + err.Error(), http.StatusBadRequest}
	}
	defer file.Close()

	filename := sanitizeFilename(header.Filename)
	if !pdf.IsSupportedExtension(filename) {
		return nil, &requestError{fmt.Sprintf("unsupported file type: %s", filepath.Ext(filename)), http.StatusBadRequest}
	}

	data, err := io.ReadAll(io.LimitReader(file, s.cfg.MaxUploadBytes+1))
	if err != nil {
		return nil, &requestError{"failed to read file", http.StatusInternalServerError}
	}
	if int64(len(data)) > s.cfg.MaxUploadBytes {
		return nil, &requestError{fmt.Sprintf("file exceeds max size (%d bytes)", s.cfg.MaxUploadBytes), http.StatusRequestEntityTooLarge}
	}

	opts, err := parseOptions(r, extraction.Engine(s.cfg.ImageEngine))
	if err != nil {
		return nil, &requestError{err.Error(), http.StatusBadRequest}
	}
	return &upload{filename: filename, data: data, opts: opts}, nil
}

// parseOptions reads the extraction toggles. The HTML form marks itself with
// "submitted", so an absent checkbox there means off; API clients that omit
// a toggle get the default.
func parseOptions(r *http.Request, engine extraction.Engine) (extraction.Options, error) {
	opts := extraction.DefaultOptions()
	opts.Engine = engine
	formPost := r.FormValue("submitted") != ""

	flag := func(key string, def bool) bool {
		vals, ok := r.Form[key]
		if !ok || len(vals) == 0 {
			return def && !formPost
		}
		v := strings.ToLower(strings.TrimSpace(vals[0]))
		if v == "on" {
			return true
		}
		b, err := strconv.ParseBool(v)
		return err == nil && b
	}
	opts.Tables = flag("tables", opts.Tables)
	opts.Images = flag("images", opts.Images)
	opts.Pages = flag("pages", opts.Pages)

	if v := strings.TrimSpace(r.FormValue("engine")); v != "" {
		opts.Engine = extraction.Engine(v)
	}
	switch opts.Engine {
	case extraction.EngineRender, extraction.EngineNative:
	default:
		return opts, fmt.Errorf("unsupported image engine: %s", opts.Engine)
	}
	return opts, nil
}

func jsonError(w http.ResponseWriter, msg string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

func sanitizeFilename(name string) string {
	// Browsers on Windows may send the full client path.
	name = strings.ReplaceAll(name, "\\", "/")
	// Strip path components, keep only the base name.
	name = filepath.Base(name)
	name = strings.ReplaceAll(name, "..", "_")
	if name == "" || name == "." || name == "/" {
		name = "unnamed.pdf"
	}
	return name
}
