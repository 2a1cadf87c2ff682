package pipeline

import (
	"sync"
	"time"

	"github.com/dgallion1/pdfextract/internal/extraction"
)

// JobStatus represents the state of an extraction job.
type JobStatus string

const (
	StatusQueued           JobStatus = "queued"
	StatusExtractingTables JobStatus = "extracting_tables"
	StatusExtractingImages JobStatus = "extracting_images"
	StatusRasterizing      JobStatus = "rasterizing_pages"
	StatusCompleted        JobStatus = "completed"
	StatusPartial          JobStatus = "partial"
	StatusFailed           JobStatus = "failed"
)

// Done reports whether the status is terminal.
func (s JobStatus) Done() bool {
	return s == StatusCompleted || s == StatusPartial || s == StatusFailed
}

// Job tracks the state of a single PDF extraction.
type Job struct {
	mu sync.Mutex

	ID       string             `json:"job_id"`
	Status   JobStatus          `json:"status"`
	Phase    string             `json:"phase"`
	Filename string             `json:"filename"`
	Options  extraction.Options `json:"-"`

	Progress Progress `json:"progress"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Internal: not serialized.
	fileData  []byte
	result    *extraction.Result
	artifacts map[string][]byte
}

// Progress tracks processing progress.
type Progress struct {
	Pages    int                  `json:"pages"`
	Tables   int                  `json:"tables"`
	Images   int                  `json:"images"`
	Messages []extraction.Message `json:"messages"`
}

// NewJob creates a queued job for an uploaded file.
func NewJob(filename string, opts extraction.Options, data []byte) *Job {
	now := time.Now()
	return &Job{
		ID:        generateULID(),
		Status:    StatusQueued,
		Phase:     "queued",
		Filename:  filename,
		Options:   opts,
		CreatedAt: now,
		UpdatedAt: now,
		fileData:  data,
	}
}

// JobStore is a thread-safe in-memory job registry with TTL eviction.
type JobStore struct {
	mu   sync.Mutex
	jobs map[string]*Job
	ttl  time.Duration
}

func NewJobStore(ttl time.Duration) *JobStore {
	return &JobStore{
		jobs: make(map[string]*Job),
		ttl:  ttl,
	}
}

func (s *JobStore) Put(job *Job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.ID] = job
}

func (s *JobStore) Get(id string) *Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.jobs[id]
}

// Len returns the number of stored jobs.
func (s *JobStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.jobs)
}

// Cleanup removes expired jobs.
func (s *JobStore) Cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	for id, job := range s.jobs {
		job.mu.Lock()
		updated := job.UpdatedAt
		job.mu.Unlock()
		if now.Sub(updated) > s.ttl {
			delete(s.jobs, id)
		}
	}
}

// SetStatus updates job status atomically.
func (j *Job) SetStatus(status JobStatus, phase string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Status = status
	j.Phase = phase
	j.UpdatedAt = time.Now()
}

// AddMessage records a user-facing message.
func (j *Job) AddMessage(level extraction.Level, text string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Progress.Messages = append(j.Progress.Messages, extraction.Message{Level: level, Text: text})
	j.UpdatedAt = time.Now()
}

// SetPages records the document page count.
func (j *Job) SetPages(n int) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Progress.Pages = n
	j.UpdatedAt = time.Now()
}

// SetResult stores the finished result and its counts.
func (j *Job) SetResult(res *extraction.Result) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.result = res
	j.Progress.Tables = len(res.Tables)
	j.Progress.Images = len(res.Images)
	j.UpdatedAt = time.Now()
}

// Result returns the finished result, or nil while the job is running.
func (j *Job) Result() *extraction.Result {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.result
}

// SetArtifact caches a generated download under name.
func (j *Job) SetArtifact(name string, data []byte) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.artifacts == nil {
		j.artifacts = make(map[string][]byte)
	}
	j.artifacts[name] = data
	j.UpdatedAt = time.Now()
}

// Artifact returns a cached download.
func (j *Job) Artifact(name string) ([]byte, bool) {
	j.mu.Lock()
	defer j.mu.Unlock()
	data, ok := j.artifacts[name]
	return data, ok
}

// SetFileData sets the raw file bytes for processing.
func (j *Job) SetFileData(data []byte) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.fileData = data
}

// FileData returns the raw file bytes.
func (j *Job) FileData() []byte {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.fileData
}

// JobSnapshot is a read-only, JSON-safe copy of job state.
type JobSnapshot struct {
	ID        string    `json:"job_id"`
	Status    JobStatus `json:"status"`
	Phase     string    `json:"phase"`
	Filename  string    `json:"filename"`
	Progress  Progress  `json:"progress"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Snapshot returns a JSON-safe copy of the job state.
func (j *Job) Snapshot() JobSnapshot {
	j.mu.Lock()
	defer j.mu.Unlock()
	msgs := make([]extraction.Message, len(j.Progress.Messages))
	copy(msgs, j.Progress.Messages)
	return JobSnapshot{
		ID:       j.ID,
		Status:   j.Status,
		Phase:    j.Phase,
		Filename: j.Filename,
		Progress: Progress{
			Pages:    j.Progress.Pages,
			Tables:   j.Progress.Tables,
			Images:   j.Progress.Images,
			Messages: msgs,
		},
		CreatedAt: j.CreatedAt,
		UpdatedAt: j.UpdatedAt,
	}
}
