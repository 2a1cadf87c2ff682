package api

import (
	"mime"
	"net/http"
	"strconv"

	"github.com/dgallion1/pdfextract/internal/export"
	"github.com/dgallion1/pdfextract/internal/extraction"
	"github.com/dgallion1/pdfextract/internal/pipeline"
	"github.com/go-chi/chi/v5"
)

const (
	xlsxType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	docxType = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
)

// Artifact cache keys.
const (
	artifactWorkbook = "workbook"
	artifactArchive  = "archive"
	artifactReport   = "report"
)

// finishedJob returns a job whose result is ready or writes an error.
func (s *Server) finishedJob(w http.ResponseWriter, r *http.Request) (*pipeline.Job, *extraction.Result) {
	job := s.lookupJob(w, r)
	if job == nil {
		return nil, nil
	}
	res := job.Result()
	if res == nil {
		jsonError(w, "job not finished", http.StatusConflict)
		return nil, nil
	}
	return job, res
}

// artifact returns the cached download or builds and caches it. Warnings
// from a fresh build are returned so callers can surface them.
func (s *Server) artifact(job *pipeline.Job, name string, build func() ([]byte, []string, error)) ([]byte, []string, error) {
	if data, ok := job.Artifact(name); ok {
		return data, nil, nil
	}
	data, warnings, err := build()
	if err != nil {
		return nil, nil, err
	}
	for _, msg := range warnings {
		s.log.Warn("export warning", "job_id", job.ID, "artifact", name, "warning", msg)
	}
	job.SetArtifact(name, data)
	return data, warnings, nil
}

func (s *Server) workbook(job *pipeline.Job, res *extraction.Result) ([]byte, []string, error) {
	return s.artifact(job, artifactWorkbook, func() ([]byte, []string, error) {
		return export.BuildWorkbook(res.Tables, res.Images)
	})
}

func (s *Server) archive(job *pipeline.Job, res *extraction.Result) ([]byte, []string, error) {
	return s.artifact(job, artifactArchive, func() ([]byte, []string, error) {
		data, err := export.BuildArchive(res.Images)
		return data, nil, err
	})
}

func (s *Server) report(job *pipeline.Job, res *extraction.Result) ([]byte, []string, error) {
	return s.artifact(job, artifactReport, func() ([]byte, []string, error) {
		return export.BuildReport(export.Stem(res.Filename), res.Tables, res.Images)
	})
}

func (s *Server) handleWorkbook(w http.ResponseWriter, r *http.Request) {
	job, res := s.finishedJob(w, r)
	if res == nil {
		return
	}
	if res.Empty() {
		jsonError(w, "nothing was extracted", http.StatusNotFound)
		return
	}
	data, _, err := s.workbook(job, res)
	if err != nil {
		s.log.Error("build workbook failed", "job_id", job.ID, "error", err)
		jsonError(w, "failed to build workbook", http.StatusInternalServerError)
		return
	}
	sendFile(w, xlsxType, export.WorkbookName(res.Filename), data)
}

func (s *Server) handleArchive(w http.ResponseWriter, r *http.Request) {
	job, res := s.finishedJob(w, r)
	if res == nil {
		return
	}
	if len(res.Images) == 0 {
		jsonError(w, "no images were extracted", http.StatusNotFound)
		return
	}
	data, _, err := s.archive(job, res)
	if err != nil {
		s.log.Error("build archive failed", "job_id", job.ID, "error", err)
		jsonError(w, "failed to build archive", http.StatusInternalServerError)
		return
	}
	sendFile(w, "application/zip", export.ArchiveName(res.Filename), data)
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	job, res := s.finishedJob(w, r)
	if res == nil {
		return
	}
	if res.Empty() {
		jsonError(w, "nothing was extracted", http.StatusNotFound)
		return
	}
	data, _, err := s.report(job, res)
	if err != nil {
		s.log.Error("build report failed", "job_id", job.ID, "error", err)
		jsonError(w, "failed to build report", http.StatusInternalServerError)
		return
	}
	sendFile(w, docxType, export.ReportName(res.Filename), data)
}

func (s *Server) handleImage(w http.ResponseWriter, r *http.Request) {
	_, res := s.finishedJob(w, r)
	if res == nil {
		return
	}
	n, err := strconv.Atoi(chi.URLParam(r, "n"))
	if err != nil || n < 0 || n >= len(res.Images) {
		jsonError(w, "image not found", http.StatusNotFound)
		return
	}
	img := res.Images[n]

	ctype := mime.TypeByExtension("." + img.Ext)
	if ctype == "" {
		ctype = http.DetectContentType(img.Bytes)
	}
	w.Header().Set("Content-Type", ctype)
	w.Header().Set("Content-Length", strconv.Itoa(len(img.Bytes)))
	w.Write(img.Bytes)
}

func sendFile(w http.ResponseWriter, ctype, name string, data []byte) {
	w.Header().Set("Content-Type", ctype)
	w.Header().Set("Content-Disposition", export.ContentDisposition(name))
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.Write(data)
}
