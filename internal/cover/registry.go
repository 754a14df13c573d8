// Package cover turns a YouTube link into an AI voice cover through an external conversion service.
package cover

import (
	"sync"
	"time"
)

type Status string

const (
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusTimedOut   Status = "timed_out"
)

// Terminal reports whether no further transitions are expected.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusTimedOut
}

type Job struct {
	ID          string
	Requester   string
	ChannelID   string
	Model       string
	Status      Status
	CreatedAt   time.Time
	DownloadURL string
}

// Registry holds submitted jobs keyed by the conversion service's job id.
type Registry struct {
	mu        sync.Mutex
	jobs      map[string]Job
	retention time.Duration
}

func NewRegistry(retention time.Duration) *Registry {
	return &Registry{jobs: make(map[string]Job), retention: retention}
}

func (r *Registry) Put(job Job) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.jobs[job.ID] = job
}

func (r *Registry) Get(id string) (Job, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[id]
	return job, ok
}

// Update applies fn to the stored job. It returns false when the job is unknown.
func (r *Registry) Update(id string, fn func(*Job)) (Job, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[id]
	if !ok {
		return Job{}, false
	}
	fn(&job)
	r.jobs[id] = job
	return job, true
}

// Sweep drops jobs created more than the retention period ago.
func (r *Registry) Sweep(now time.Time) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	removed := 0
	for id, job := range r.jobs {
		if now.Sub(job.CreatedAt) > r.retention {
			delete(r.jobs, id)
			removed++
		}
	}
	return removed
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.jobs)
}
