package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dgallion1/pdfextract/internal/config"
	"github.com/dgallion1/pdfextract/internal/extraction"
	"github.com/dgallion1/pdfextract/internal/stats"
	"golang.org/x/sync/semaphore"
)

// Orchestrator runs extraction jobs, either queued for the worker pool or
// synchronously for the HTML flow. Both paths share one concurrency bound.
type Orchestrator struct {
	jobs   *JobStore
	queue  chan *Job
	worker *Worker
	sem    *semaphore.Weighted
	stats  *stats.Recorder
	log    *slog.Logger
	cfg    config.Config

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewOrchestrator creates the pipeline. Call Start to launch workers.
func NewOrchestrator(cfg config.Config, ex Extractors, rec *stats.Recorder, log *slog.Logger) *Orchestrator {
	return &Orchestrator{
		jobs:   NewJobStore(cfg.JobTTL),
		queue:  make(chan *Job, cfg.MaxQueueSize),
		worker: NewWorker(ex, rec, log),
		sem:    semaphore.NewWeighted(int64(cfg.MaxConcurrentExtract)),
		stats:  rec,
		log:    log,
		cfg:    cfg,
	}
}

// Start launches worker goroutines.
func (o *Orchestrator) Start(ctx context.Context) {
	workerCtx, cancel := context.WithCancel(ctx)
	o.cancel = cancel

	for range o.cfg.WorkerCount {
		o.wg.Add(1)
		go func() {
			defer o.wg.Done()
			for {
				select {
				case <-workerCtx.Done():
					return
				case job, ok := <-o.queue:
					if !ok {
						return
					}
					if _, err := o.process(workerCtx, job); err != nil {
						o.log.Warn("job abandoned", "job_id", job.ID, "error", err)
					}
				}
			}
		}()
	}

	// Start job store cleanup.
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		ticker := time.NewTicker(cleanupInterval(o.cfg.JobTTL))
		defer ticker.Stop()
		for {
			select {
			case <-workerCtx.Done():
				return
			case <-ticker.C:
				o.jobs.Cleanup()
			}
		}
	}()
}

// Stop gracefully shuts down the pipeline.
func (o *Orchestrator) Stop() {
	if o.cancel != nil {
		o.cancel()
	}
	close(o.queue)
	o.wg.Wait()
}

// Submit queues a new job for processing.
func (o *Orchestrator) Submit(job *Job) error {
	o.jobs.Put(job)
	select {
	case o.queue <- job:
		return nil
	default:
		job.AddMessage(extraction.LevelError, "Server is busy, try again later")
		job.SetStatus(StatusFailed, "queue_full")
		return fmt.Errorf("job queue is full (%d)", o.cfg.MaxQueueSize)
	}
}

// Run processes job in the caller's goroutine and keeps it in the store so
// its downloads stay available until the TTL expires.
func (o *Orchestrator) Run(ctx context.Context, job *Job) (*extraction.Result, error) {
	o.jobs.Put(job)
	return o.process(ctx, job)
}

func (o *Orchestrator) process(ctx context.Context, job *Job) (*extraction.Result, error) {
	if err := o.sem.Acquire(ctx, 1); err != nil {
		job.AddMessage(extraction.LevelError, "Extraction cancelled")
		job.SetStatus(StatusFailed, "cancelled")
		return nil, err
	}
	defer o.sem.Release(1)
	return o.worker.Process(ctx, job), nil
}

// GetJob returns a job by ID.
func (o *Orchestrator) GetJob(id string) *Job {
	return o.jobs.Get(id)
}

// QueueDepth returns current queue depth.
func (o *Orchestrator) QueueDepth() int {
	return len(o.queue)
}

// StoredJobs returns how many jobs are held for download.
func (o *Orchestrator) StoredJobs() int {
	return o.jobs.Len()
}

// Stats returns the latency recorder shared by all workers.
func (o *Orchestrator) Stats() *stats.Recorder {
	return o.stats
}

func cleanupInterval(ttl time.Duration) time.Duration {
	if ttl <= 0 || ttl > 5*time.Minute {
		return 5 * time.Minute
	}
	return ttl
}
