package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/dgallion1/pdfextract/internal/export"
	"github.com/dgallion1/pdfextract/internal/extraction"
	"github.com/dgallion1/pdfextract/internal/pipeline"
	"github.com/go-chi/chi/v5"
)

func (s *Server) handleExtract(w http.ResponseWriter, r *http.Request) {
	up, rerr := s.readUpload(w, r)
	if r.MultipartForm != nil {
		defer r.MultipartForm.RemoveAll()
	}
	if rerr != nil {
		jsonError(w, rerr.msg, rerr.code)
		return
	}
	if !up.opts.Any() {
		jsonError(w, "at least one of tables, images, pages must be enabled", http.StatusBadRequest)
		return
	}

	job := pipeline.NewJob(up.filename, up.opts, up.data)
	if err := s.orchestrator.Submit(job); err != nil {
		jsonError(w, err.Error(), http.StatusServiceUnavailable)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(map[string]any{
		"job_id":     job.ID,
		"status":     pipeline.StatusQueued,
		"poll_url":   fmt.Sprintf("/api/extract/%s/status", job.ID),
		"result_url": fmt.Sprintf("/api/extract/%s/result", job.ID),
	})
}

func (s *Server) handleExtractStatus(w http.ResponseWriter, r *http.Request) {
	job := s.lookupJob(w, r)
	if job == nil {
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(job.Snapshot())
}

type tableSummary struct {
	Index int        `json:"index"`
	Page  int        `json:"page"`
	Sheet string     `json:"sheet"`
	Rows  int        `json:"rows"`
	Cols  int        `json:"cols"`
	Data  [][]string `json:"data"`
}

type imageSummary struct {
	Index    int    `json:"index"`
	Page     int    `json:"page"`
	Filename string `json:"filename"`
	Format   string `json:"format"`
	Size     int    `json:"size"`
	URL      string `json:"url"`
}

type resultSummary struct {
	JobID     string               `json:"job_id"`
	Status    pipeline.JobStatus   `json:"status"`
	Filename  string               `json:"filename"`
	Tables    []tableSummary       `json:"tables"`
	Images    []imageSummary       `json:"images"`
	Messages  []extraction.Message `json:"messages"`
	Downloads map[string]string    `json:"downloads"`
}

func (s *Server) handleExtractResult(w http.ResponseWriter, r *http.Request) {
	job := s.lookupJob(w, r)
	if job == nil {
		return
	}
	snap := job.Snapshot()
	res := job.Result()
	if !snap.Status.Done() || res == nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusConflict)
		json.NewEncoder(w).Encode(map[string]any{
			"error":  "job not finished",
			"status": snap.Status,
		})
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(summarize(job.ID, snap.Status, res))
}

func summarize(jobID string, status pipeline.JobStatus, res *extraction.Result) resultSummary {
	out := resultSummary{
		JobID:     jobID,
		Status:    status,
		Filename:  res.Filename,
		Tables:    []tableSummary{},
		Images:    []imageSummary{},
		Messages:  res.Messages,
		Downloads: map[string]string{},
	}
	if out.Messages == nil {
		out.Messages = []extraction.Message{}
	}
	for i, t := range res.Tables {
		rows, cols := t.Shape()
		out.Tables = append(out.Tables, tableSummary{
			Index: i,
			Page:  t.Page,
			Sheet: export.TableSheetName(i),
			Rows:  rows,
			Cols:  cols,
			Data:  t.Rows,
		})
	}
	for i, img := range res.Images {
		out.Images = append(out.Images, imageSummary{
			Index:    i,
			Page:     img.Page,
			Filename: img.Filename,
			Format:   img.Ext,
			Size:     len(img.Bytes),
			URL:      fmt.Sprintf("/jobs/%s/images/%d", jobID, i),
		})
	}
	if !res.Empty() {
		out.Downloads["workbook"] = fmt.Sprintf("/jobs/%s/workbook", jobID)
		out.Downloads["report"] = fmt.Sprintf("/jobs/%s/report", jobID)
	}
	if len(res.Images) > 0 {
		out.Downloads["images_zip"] = fmt.Sprintf("/jobs/%s/images.zip", jobID)
	}
	return out
}

// lookupJob resolves {jobID} or writes an error and returns nil.
func (s *Server) lookupJob(w http.ResponseWriter, r *http.Request) *pipeline.Job {
	jobID := chi.URLParam(r, "jobID")
	if !pipeline.ValidJobID(jobID) {
		jsonError(w, "job not found", http.StatusNotFound)
		return nil
	}
	job := s.orchestrator.GetJob(jobID)
	if job == nil {
		jsonError(w, "job not found", http.StatusNotFound)
		return nil
	}
	return job
}
