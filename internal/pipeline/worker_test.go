package pipeline

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/dgallion1/pdfextract/internal/config"
	"github.com/dgallion1/pdfextract/internal/extraction"
	"github.com/dgallion1/pdfextract/internal/pdf"
	"github.com/dgallion1/pdfextract/internal/stats"
)

type fakeTables struct {
	tables []extraction.Table
	err    error
	path   string
}

func (f *fakeTables) Extract(_ context.Context, path string) ([]extraction.Table, error) {
	f.path = path
	return f.tables, f.err
}

type fakeImages struct {
	images   []extraction.Image
	warnings []string
	err      error
}

func (f *fakeImages) Extract(context.Context, string) ([]extraction.Image, []string, error) {
	return f.images, f.warnings, f.err
}

type fakePages struct {
	images   []extraction.Image
	warnings []string
	err      error
}

func (f *fakePages) RenderAll(context.Context, string) ([]extraction.Image, []string, error) {
	return f.images, f.warnings, f.err
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

func testExtractors(tables *fakeTables, images *fakeImages, pages *fakePages) Extractors {
	return Extractors{
		Tables:    tables,
		Images:    func(extraction.Engine) (pdf.ImageExtractor, error) { return images, nil },
		Pages:     pages,
		PageCount: func(string) (int, error) { return 4, nil },
	}
}

func messageTexts(msgs []extraction.Message) []string {
	out := make([]string, len(msgs))
	for i, m := range msgs {
		out[i] = string(m.Level) + ": " + m.Text
	}
	return out
}

func TestWorker_AllPassesInOrder(t *testing.T) {
	tables := &fakeTables{tables: []extraction.Table{{Page: 1, Rows: [][]string{{"a"}}}}}
	images := &fakeImages{images: []extraction.Image{{Page: 1, Filename: "image_page1_0.png"}}}
	pages := &fakePages{images: []extraction.Image{{Page: 1, Filename: "page_1.png"}, {Page: 2, Filename: "page_2.png"}}}
	rec := stats.NewRecorder(time.Hour)
	w := NewWorker(testExtractors(tables, images, pages), rec, testLogger())

	job := NewJob("doc.pdf", extraction.Options{Tables: true, Images: true, Pages: true}, []byte("%PDF-1.4"))
	res := w.Process(context.Background(), job)

	if len(res.Tables) != 1 {
		t.Errorf("expected 1 table, got %d", len(res.Tables))
	}
	var names []string
	for _, img := range res.Images {
		names = append(names, img.Filename)
	}
	if got := strings.Join(names, ","); got != "image_page1_0.png,page_1.png,page_2.png" {
		t.Errorf("expected page images appended after embedded ones, got %s", got)
	}

	want := []string{
		"success: PDF uploaded successfully: doc.pdf",
		"info: Extracting tables...",
		"success: Found 1 tables",
		"info: Extracting images...",
		"success: Found 1 images",
		"info: Converting pages to images...",
		"success: Converted 2 pages to images",
	}
	got := messageTexts(res.Messages)
	if strings.Join(got, "\n") != strings.Join(want, "\n") {
		t.Errorf("expected messages\n%s\ngot\n%s", strings.Join(want, "\n"), strings.Join(got, "\n"))
	}

	snap := job.Snapshot()
	if snap.Status != StatusCompleted {
		t.Errorf("expected status %q, got %q", StatusCompleted, snap.Status)
	}
	if snap.Progress.Pages != 4 {
		t.Errorf("expected 4 pages, got %d", snap.Progress.Pages)
	}
	if job.Result() != res {
		t.Error("expected result stored on job")
	}
	if job.FileData() != nil {
		t.Error("expected upload bytes released after spooling")
	}
	if _, err := os.Stat(tables.path); !os.IsNotExist(err) {
		t.Errorf("expected temp file %s removed, got %v", tables.path, err)
	}

	snapStats := rec.Snapshot()
	for _, pass := range []string{stats.PassTables, stats.PassImages, stats.PassPages, stats.PassTotal} {
		if snapStats[pass].Count != 1 {
			t.Errorf("expected one %s sample, got %d", pass, snapStats[pass].Count)
		}
	}
}

func TestWorker_TableFailureDoesNotStopImages(t *testing.T) {
	tables := &fakeTables{err: errors.New("broken xref")}
	images := &fakeImages{
		images:   []extraction.Image{{Page: 2, Filename: "image_page2_1.png"}},
		warnings: []string{"Could not extract image 0 from page 2: bad stream"},
	}
	w := NewWorker(testExtractors(tables, images, &fakePages{}), stats.NewRecorder(time.Hour), testLogger())

	job := NewJob("doc.pdf", extraction.DefaultOptions(), []byte("%PDF"))
	res := w.Process(context.Background(), job)

	if len(res.Images) != 1 {
		t.Fatalf("expected image pass to still run, got %d images", len(res.Images))
	}
	got := strings.Join(messageTexts(res.Messages), "\n")
	for _, want := range []string{
		"error: Error extracting tables: broken xref",
		"warning: No tables found",
		"warning: Could not extract image 0 from page 2: bad stream",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("expected message %q in\n%s", want, got)
		}
	}
	if !res.HasProblems() {
		t.Error("expected result to report problems")
	}
	if s := job.Snapshot().Status; s != StatusPartial {
		t.Errorf("expected status %q, got %q", StatusPartial, s)
	}
}

func TestWorker_NothingFound(t *testing.T) {
	w := NewWorker(testExtractors(&fakeTables{}, &fakeImages{}, &fakePages{err: errors.New("no renderer")}), stats.NewRecorder(time.Hour), testLogger())

	job := NewJob("empty.pdf", extraction.Options{Tables: true, Images: true, Pages: true}, []byte("%PDF"))
	res := w.Process(context.Background(), job)

	if !res.Empty() {
		t.Fatal("expected empty result")
	}
	msgs := messageTexts(res.Messages)
	if last := msgs[len(msgs)-1]; last != "error: No tables or images found in the PDF" {
		t.Errorf("unexpected final message %q", last)
	}
	got := strings.Join(msgs, "\n")
	for _, want := range []string{
		"warning: No embedded images found",
		"error: Error in alternative image extraction: no renderer",
		"warning: Could not convert pages to images",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("expected message %q in\n%s", want, got)
		}
	}
	if s := job.Snapshot().Status; s != StatusFailed {
		t.Errorf("expected status %q, got %q", StatusFailed, s)
	}
}

func TestWorker_NoOptionSelected(t *testing.T) {
	tables := &fakeTables{}
	w := NewWorker(testExtractors(tables, &fakeImages{}, &fakePages{}), stats.NewRecorder(time.Hour), testLogger())

	job := NewJob("doc.pdf", extraction.Options{}, []byte("%PDF"))
	res := w.Process(context.Background(), job)

	if len(res.Messages) != 1 || res.Messages[0].Text != "Please select at least one extraction option." {
		t.Errorf("unexpected messages %v", messageTexts(res.Messages))
	}
	if tables.path != "" {
		t.Error("expected no pass to run")
	}
	if s := job.Snapshot().Status; s != StatusFailed {
		t.Errorf("expected status %q, got %q", StatusFailed, s)
	}
}

func TestWorker_SkipsDisabledPasses(t *testing.T) {
	tables := &fakeTables{}
	images := &fakeImages{images: []extraction.Image{{Page: 1, Filename: "a.png"}}}
	w := NewWorker(testExtractors(tables, images, &fakePages{}), stats.NewRecorder(time.Hour), testLogger())

	job := NewJob("doc.pdf", extraction.Options{Images: true}, []byte("%PDF"))
	res := w.Process(context.Background(), job)

	if tables.path != "" {
		t.Error("expected table pass to be skipped")
	}
	for _, m := range res.Messages {
		if strings.Contains(m.Text, "table") {
			t.Errorf("unexpected table message %q", m.Text)
		}
	}
	if s := job.Snapshot().Status; s != StatusCompleted {
		t.Errorf("expected status %q, got %q", StatusCompleted, s)
	}
}

func TestWorker_UnknownEngine(t *testing.T) {
	ex := testExtractors(&fakeTables{}, &fakeImages{}, &fakePages{})
	ex.Images = func(engine extraction.Engine) (pdf.ImageExtractor, error) {
		return pdf.ForEngine(engine, nil)
	}
	w := NewWorker(ex, stats.NewRecorder(time.Hour), testLogger())

	job := NewJob("doc.pdf", extraction.Options{Images: true, Engine: "bogus"}, []byte("%PDF"))
	res := w.Process(context.Background(), job)

	got := strings.Join(messageTexts(res.Messages), "\n")
	if !strings.Contains(got, "error: Error extracting images: unsupported image engine: bogus") {
		t.Errorf("expected engine error, got\n%s", got)
	}
}

func TestDefaultExtractors(t *testing.T) {
	ex := DefaultExtractors(config.Config{RenderDPI: 72, TableMinRows: 3})
	if ex.Tables == nil || ex.Pages == nil || ex.PageCount == nil {
		t.Fatal("expected all passes wired")
	}
	if _, err := ex.Images(extraction.EngineNative); err != nil {
		t.Errorf("expected native engine, got %v", err)
	}
	if _, err := ex.Images(extraction.EngineRender); err != nil {
		t.Errorf("expected render engine, got %v", err)
	}
}
