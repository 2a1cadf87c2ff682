package api

import (
	"fmt"
	"net/http"

	"github.com/dgallion1/pdfextract/internal/extraction"
	"github.com/dgallion1/pdfextract/internal/pipeline"
)

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	opts := extraction.DefaultOptions()
	opts.Engine = extraction.Engine(s.cfg.ImageEngine)
	s.renderForm(w, http.StatusOK, opts, nil)
}

// handleExtractPage runs the extraction inside the request and renders the
// preview.
func (s *Server) handleExtractPage(w http.ResponseWriter, r *http.Request) {
	up, rerr := s.readUpload(w, r)
	if r.MultipartForm != nil {
		defer r.MultipartForm.RemoveAll()
	}
	if rerr != nil {
		opts := extraction.DefaultOptions()
		opts.Engine = extraction.Engine(s.cfg.ImageEngine)
		s.renderForm(w, rerr.code, opts, []extraction.Message{{Level: extraction.LevelError, Text: rerr.msg}})
		return
	}

	if !up.opts.Any() {
		s.renderForm(w, http.StatusOK, up.opts, []extraction.Message{
			{Level: extraction.LevelWarning, Text: "Please select at least one extraction option."},
		})
		return
	}

	job := pipeline.NewJob(up.filename, up.opts, up.data)
	res, err := s.orchestrator.Run(r.Context(), job)
	if err != nil {
		s.log.Warn("extraction not run", "job_id", job.ID, "error", err)
		s.renderForm(w, http.StatusServiceUnavailable, up.opts, []extraction.Message{
			{Level: extraction.LevelError, Text: "Extraction cancelled"},
		})
		return
	}

	view := *res
	view.Messages = append([]extraction.Message(nil), res.Messages...)
	if !res.Empty() {
		view.Messages = append(view.Messages, s.prepareDownloads(job, res)...)
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.preview.Results(w, job.ID, up.opts, &view); err != nil {
		s.log.Error("render results failed", "job_id", job.ID, "error", err)
		http.Error(w, "failed to render results", http.StatusInternalServerError)
	}
}

func (s *Server) renderForm(w http.ResponseWriter, code int, opts extraction.Options, msgs []extraction.Message) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(code)
	if err := s.preview.Form(w, opts, msgs); err != nil {
		s.log.Error("render form failed", "error", err)
	}
}

// prepareDownloads builds the workbook, and the archive when there are
// images, so export warnings can be shown next to the preview.
func (s *Server) prepareDownloads(job *pipeline.Job, res *extraction.Result) []extraction.Message {
	msgs := []extraction.Message{{Level: extraction.LevelInfo, Text: "Creating Excel file with tables and images..."}}
	_, warnings, err := s.workbook(job, res)
	if err != nil {
		s.log.Error("build workbook failed", "job_id", job.ID, "error", err)
		msgs = append(msgs, extraction.Message{Level: extraction.LevelError, Text: fmt.Sprintf("Could not create Excel file: %s", err)})
	}
	for _, msg := range warnings {
		msgs = append(msgs, extraction.Message{Level: extraction.LevelWarning, Text: msg})
	}

	if len(res.Images) > 0 {
		msgs = append(msgs, extraction.Message{Level: extraction.LevelInfo, Text: "Creating ZIP file with images..."})
		if _, _, err := s.archive(job, res); err != nil {
			s.log.Error("build archive failed", "job_id", job.ID, "error", err)
			msgs = append(msgs, extraction.Message{Level: extraction.LevelError, Text: fmt.Sprintf("Could not create ZIP file: %s", err)})
		}
	}
	return msgs
}
