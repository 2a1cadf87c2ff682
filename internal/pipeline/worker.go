package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/dgallion1/pdfextract/internal/config"
	"github.com/dgallion1/pdfextract/internal/extraction"
	"github.com/dgallion1/pdfextract/internal/pdf"
	"github.com/dgallion1/pdfextract/internal/stats"
)

// TableExtractor finds tables in a PDF on disk.
type TableExtractor interface {
	Extract(ctx context.Context, path string) ([]extraction.Table, error)
}

// PageRasterizer renders every page of a PDF on disk.
type PageRasterizer interface {
	RenderAll(ctx context.Context, path string) ([]extraction.Image, []string, error)
}

// Extractors bundles the library-backed passes a worker runs.
type Extractors struct {
	Tables    TableExtractor
	Images    func(extraction.Engine) (pdf.ImageExtractor, error)
	Pages     PageRasterizer
	PageCount func(path string) (int, error)
}

// DefaultExtractors wires the PDF libraries according to cfg.
func DefaultExtractors(cfg config.Config) Extractors {
	raster := pdf.NewRasterizer(cfg.RenderDPI, cfg.PDFFallbackPdftoppm)
	return Extractors{
		Tables: pdf.NewTableExtractor(pdf.TableConfig{
			MinRows:       cfg.TableMinRows,
			MinCols:       cfg.TableMinCols,
			MinConfidence: cfg.TableMinConfidence,
		}),
		Images: func(engine extraction.Engine) (pdf.ImageExtractor, error) {
			return pdf.ForEngine(engine, raster)
		},
		Pages:     raster,
		PageCount: pdf.PageCount,
	}
}

// Worker processes a single extraction job.
type Worker struct {
	ex    Extractors
	stats *stats.Recorder
	log   *slog.Logger
}

func NewWorker(ex Extractors, rec *stats.Recorder, log *slog.Logger) *Worker {
	return &Worker{ex: ex, stats: rec, log: log}
}

// Process runs the enabled passes in order: tables, embedded images, then
// page renderings appended to the image list. A failing pass becomes a
// message on the job and processing moves on.
func (w *Worker) Process(ctx context.Context, job *Job) *extraction.Result {
	log := w.log.With("job_id", job.ID, "filename", job.Filename)
	res := &extraction.Result{Filename: job.Filename}
	defer w.stats.Since(stats.PassTotal, time.Now())

	opts := job.Options
	if !opts.Any() {
		job.AddMessage(extraction.LevelWarning, "Please select at least one extraction option.")
		return finish(job, res, StatusFailed, "options")
	}

	path, err := pdf.SpoolToTemp(bytes.NewReader(job.FileData()))
	if err != nil {
		log.Error("spool upload failed", "error", err)
		job.AddMessage(extraction.LevelError, fmt.Sprintf("Could not read uploaded file: %s", err))
		return finish(job, res, StatusFailed, "upload")
	}
	defer os.Remove(path)
	job.SetFileData(nil)
	job.AddMessage(extraction.LevelSuccess, fmt.Sprintf("PDF uploaded successfully: %s", job.Filename))

	if n, err := w.ex.PageCount(path); err != nil {
		log.Warn("page count failed", "error", err)
	} else {
		job.SetPages(n)
	}

	if opts.Tables {
		job.SetStatus(StatusExtractingTables, "tables")
		res.Tables = w.extractTables(ctx, log, job, path)
	}
	if opts.Images {
		job.SetStatus(StatusExtractingImages, "images")
		res.Images = w.extractImages(ctx, log, job, path, opts.Engine)
	}
	if opts.Pages {
		job.SetStatus(StatusRasterizing, "pages")
		res.Images = append(res.Images, w.rasterizePages(ctx, log, job, path)...)
	}

	if res.Empty() {
		job.AddMessage(extraction.LevelError, "No tables or images found in the PDF")
		log.Info("extraction found nothing")
		return finish(job, res, StatusFailed, "done")
	}

	res.Messages = job.Snapshot().Progress.Messages
	status := StatusCompleted
	if res.HasProblems() {
		status = StatusPartial
	}
	log.Info("extraction complete", "tables", len(res.Tables), "images", len(res.Images), "status", status)
	return finish(job, res, status, "done")
}

// finish attaches the result before the terminal status is set.
func finish(job *Job, res *extraction.Result, status JobStatus, phase string) *extraction.Result {
	res.Messages = job.Snapshot().Progress.Messages
	job.SetResult(res)
	job.SetStatus(status, phase)
	return res
}

func (w *Worker) extractTables(ctx context.Context, log *slog.Logger, job *Job, path string) []extraction.Table {
	job.AddMessage(extraction.LevelInfo, "Extracting tables...")
	start := time.Now()
	tables, err := w.ex.Tables.Extract(ctx, path)
	w.stats.Since(stats.PassTables, start)
	if err != nil {
		log.Error("table extraction failed", "error", err)
		job.AddMessage(extraction.LevelError, fmt.Sprintf("Error extracting tables: %s", err))
		tables = nil
	}
	if len(tables) > 0 {
		job.AddMessage(extraction.LevelSuccess, fmt.Sprintf("Found %d tables", len(tables)))
	} else {
		job.AddMessage(extraction.LevelWarning, "No tables found")
	}
	return tables
}

func (w *Worker) extractImages(ctx context.Context, log *slog.Logger, job *Job, path string, engine extraction.Engine) []extraction.Image {
	job.AddMessage(extraction.LevelInfo, "Extracting images...")
	start := time.Now()
	defer w.stats.Since(stats.PassImages, start)

	var images []extraction.Image
	ex, err := w.ex.Images(engine)
	if err == nil {
		var warnings []string
		images, warnings, err = ex.Extract(ctx, path)
		for _, msg := range warnings {
			job.AddMessage(extraction.LevelWarning, msg)
		}
	}
	if err != nil {
		log.Error("image extraction failed", "engine", engine, "error", err)
		job.AddMessage(extraction.LevelError, fmt.Sprintf("Error extracting images: %s", err))
	}
	if len(images) > 0 {
		job.AddMessage(extraction.LevelSuccess, fmt.Sprintf("Found %d images", len(images)))
	} else {
		job.AddMessage(extraction.LevelWarning, "No embedded images found")
	}
	return images
}

func (w *Worker) rasterizePages(ctx context.Context, log *slog.Logger, job *Job, path string) []extraction.Image {
	job.AddMessage(extraction.LevelInfo, "Converting pages to images...")
	start := time.Now()
	defer w.stats.Since(stats.PassPages, start)

	pages, warnings, err := w.ex.Pages.RenderAll(ctx, path)
	for _, msg := range warnings {
		job.AddMessage(extraction.LevelWarning, msg)
	}
	if err != nil {
		log.Error("page rasterization failed", "error", err)
		job.AddMessage(extraction.LevelError, fmt.Sprintf("Error in alternative image extraction: %s", err))
	}
	if len(pages) > 0 {
		job.AddMessage(extraction.LevelSuccess, fmt.Sprintf("Converted %d pages to images", len(pages)))
	} else {
		job.AddMessage(extraction.LevelWarning, "Could not convert pages to images")
	}
	return pages
}
