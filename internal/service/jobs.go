package service

import (
	"sync"
	"time"

	"github.com/arturoeanton/go-git-mirror/internal/domain"
)

// Job is the state of one webhook processing run.
type Job struct {
	ID          string               `json:"id"`
	EventID     string               `json:"event_id"`
	Repo        string               `json:"repo"`
	Status      string               `json:"status"` // queued, running, complete, skipped, error
	Message     string               `json:"message,omitempty"`
	Error       string               `json:"error,omitempty"`
	ErrorCode   string               `json:"error_code,omitempty"`
	Report      *domain.ChangeReport `json:"report,omitempty"`
	CreatedAt   time.Time            `json:"created_at"`
	StartedAt   time.Time            `json:"started_at,omitempty"`
	CompletedAt time.Time            `json:"completed_at,omitempty"`
}

// Done reports whether the job reached a terminal status.
func (j Job) Done() bool {
	switch j.Status {
	case domain.JobStatusComplete, domain.JobStatusSkipped, domain.JobStatusError:
		return true
	}
	return false
}

// JobTracker keeps webhook jobs in memory and fans status changes out to
// subscribers.
type JobTracker struct {
	mu   sync.RWMutex
	jobs map[string]*Job
	subs map[string][]chan Job
}

// NewJobTracker creates an empty tracker.
func NewJobTracker() *JobTracker {
	return &JobTracker{
		jobs: make(map[string]*Job),
		subs: make(map[string][]chan Job),
	}
}

// Create registers a queued job.
func (t *JobTracker) Create(id, eventID, repo string) Job {
	t.mu.Lock()
	defer t.mu.Unlock()
	job := &Job{
		ID:        id,
		EventID:   eventID,
		Repo:      repo,
		Status:    domain.JobStatusQueued,
		CreatedAt: time.Now(),
	}
	t.jobs[id] = job
	return *job
}

// Update applies fn to the job and notifies subscribers with the result.
// Terminal updates stamp CompletedAt.
func (t *JobTracker) Update(id string, fn func(*Job)) {
	t.mu.Lock()
	job, ok := t.jobs[id]
	if !ok {
		t.mu.Unlock()
		return
	}
	fn(job)
	if job.Status == domain.JobStatusRunning && job.StartedAt.IsZero() {
		job.StartedAt = time.Now()
	}
	if job.Done() && job.CompletedAt.IsZero() {
		job.CompletedAt = time.Now()
	}
	snapshot := *job
	subs := append([]chan Job(nil), t.subs[id]...)
	t.mu.Unlock()

	for _, ch := range subs {
		select {
		case ch <- snapshot:
		default:
		}
	}
}

// Get returns a copy of the job.
func (t *JobTracker) Get(id string) (Job, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	job, ok := t.jobs[id]
	if !ok {
		return Job{}, false
	}
	return *job, true
}

// Subscribe returns a channel receiving updates for job id.
func (t *JobTracker) Subscribe(id string) chan Job {
	t.mu.Lock()
	defer t.mu.Unlock()
	ch := make(chan Job, 10)
	t.subs[id] = append(t.subs[id], ch)
	return ch
}

// Unsubscribe removes and closes ch.
func (t *JobTracker) Unsubscribe(id string, ch chan Job) {
	t.mu.Lock()
	defer t.mu.Unlock()
	subs := t.subs[id]
	for i, s := range subs {
		if s == ch {
			t.subs[id] = append(subs[:i], subs[i+1:]...)
			close(ch)
			break
		}
	}
	if len(t.subs[id]) == 0 {
		delete(t.subs, id)
	}
}

// Prune drops finished jobs completed more than retention ago and returns
// how many were removed.
func (t *JobTracker) Prune(retention time.Duration) int {
	cutoff := time.Now().Add(-retention)
	t.mu.Lock()
	defer t.mu.Unlock()
	n := 0
	for id, job := range t.jobs {
		if job.Done() && job.CompletedAt.Before(cutoff) {
			delete(t.jobs, id)
			n++
		}
	}
	return n
}
