package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/arturoeanton/go-git-mirror/internal/domain"
	"github.com/arturoeanton/go-git-mirror/internal/logger"
	"github.com/arturoeanton/go-git-mirror/internal/port"
)

// WebhookOptions configures the webhook worker pool.
type WebhookOptions struct {
	Workers   int
	AutoClone bool          // clone absent mirrors from the payload clone URL
	Retention time.Duration // how long finished jobs stay queryable
}

type queuedEvent struct {
	jobID string
	event *domain.WebhookEvent
}

// WebhookProcessor runs normalized push events through the mirror and diff
// services on a bounded pool of workers, tracking each run as a Job and
// recording its outcome as a Delivery.
type WebhookProcessor struct {
	mirrors    *MirrorService
	diffs      *DiffService
	deliveries port.DeliveryRecorder
	jobs       *JobTracker
	opts       WebhookOptions
	queue      chan queuedEvent
	log        *logger.Logger
	wg         sync.WaitGroup
}

// NewWebhookProcessor creates a processor. Call Start before Submit.
func NewWebhookProcessor(mirrors *MirrorService, diffs *DiffService, deliveries port.DeliveryRecorder, jobs *JobTracker, opts WebhookOptions, log *logger.Logger) *WebhookProcessor {
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	if opts.Retention <= 0 {
		opts.Retention = time.Hour
	}
	return &WebhookProcessor{
		mirrors:    mirrors,
		diffs:      diffs,
		deliveries: deliveries,
		jobs:       jobs,
		opts:       opts,
		queue:      make(chan queuedEvent, opts.Workers*16),
		log:        log,
	}
}

// Jobs returns the tracker holding this processor's jobs.
func (p *WebhookProcessor) Jobs() *JobTracker {
	return p.jobs
}

// Start launches the workers and the job pruner. They stop when ctx is done.
func (p *WebhookProcessor) Start(ctx context.Context) {
	for i := 0; i < p.opts.Workers; i++ {
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case q := <-p.queue:
					p.process(ctx, q)
				}
			}
		}()
	}

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		ticker := time.NewTicker(pruneInterval(p.opts.Retention))
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n := p.jobs.Prune(p.opts.Retention); n > 0 {
					p.log.Debugf("pruned %d finished jobs", n)
				}
			}
		}
	}()
	p.log.Infof("webhook processor started with %d workers", p.opts.Workers)
}

// Wait blocks until every worker started by Start has returned.
func (p *WebhookProcessor) Wait() {
	p.wg.Wait()
}

// Submit queues evt and returns its job. A full queue yields
// port.ErrQueueFull and the job is marked as failed.
func (p *WebhookProcessor) Submit(evt *domain.WebhookEvent) (Job, error) {
	job := p.jobs.Create(uuid.NewString(), evt.ID, evt.RepoURL)
	select {
	case p.queue <- queuedEvent{jobID: job.ID, event: evt}:
		return job, nil
	default:
		p.jobs.Update(job.ID, func(j *Job) {
			j.Status = domain.JobStatusError
			j.Error = port.ErrQueueFull.Error()
			j.ErrorCode = port.Kind(port.ErrQueueFull)
		})
		return Job{}, fmt.Errorf("event %s: %w", evt.ID, port.ErrQueueFull)
	}
}

// Process handles evt synchronously: null-commit pushes are skipped, absent
// mirrors are cloned when auto-clone is on, and the change report between
// before and after is computed. It returns the final status and the report.
func (p *WebhookProcessor) Process(ctx context.Context, evt *domain.WebhookEvent) (string, *domain.ChangeReport, error) {
	if domain.IsNullCommit(evt.Before) || domain.IsNullCommit(evt.After) {
		return domain.JobStatusSkipped, nil, nil
	}

	if p.opts.AutoClone && evt.CloneURL != "" && !p.mirrors.Exists(evt.RepoURL) {
		m, err := p.mirrors.EnsureCloned(ctx, evt.CloneURL)
		if err != nil {
			return domain.JobStatusError, nil, err
		}
		if m.Identity != evt.Identity {
			p.log.With("repo", evt.RepoURL).Warnf("clone url resolved to %s", m.Path)
		}
	}

	report, err := p.diffs.ChangesBetween(ctx, evt.RepoURL, evt.Before, evt.After)
	if err != nil {
		return domain.JobStatusError, nil, err
	}
	return domain.JobStatusComplete, report, nil
}

func (p *WebhookProcessor) process(ctx context.Context, q queuedEvent) {
	evt := q.event
	log := p.log.With("event", evt.ID).With("repo", evt.RepoURL)
	p.jobs.Update(q.jobID, func(j *Job) { j.Status = domain.JobStatusRunning })

	status, report, err := p.Process(ctx, evt)

	delivery := domain.Delivery{
		EventID:    evt.ID,
		Platform:   evt.Platform,
		Repo:       evt.RepoURL,
		Before:     evt.Before,
		After:      evt.After,
		Status:     status,
		ReceivedAt: evt.ReceivedAt,
	}
	if report != nil {
		delivery.FilesChanged = len(report.FilesChanged)
		delivery.TotalAdditions = report.TotalAdditions
		delivery.TotalDeletions = report.TotalDeletions
	}
	if err != nil {
		delivery.ErrorCode = port.Kind(err)
		log.Error("webhook processing failed", err)
	}

	p.jobs.Update(q.jobID, func(j *Job) {
		j.Status = status
		j.Report = report
		if status == domain.JobStatusSkipped {
			j.Message = "branch created or deleted, nothing to compare"
		}
		if err != nil {
			j.Error = err.Error()
			j.ErrorCode = delivery.ErrorCode
		}
	})

	now := time.Now().UTC()
	delivery.CompletedAt = &now
	if err := p.deliveries.RecordDelivery(context.WithoutCancel(ctx), delivery); err != nil {
		log.Error("record delivery", err)
	}
	log.Infof("webhook processed: %s", status)
}

func pruneInterval(retention time.Duration) time.Duration {
	if retention < time.Minute {
		return retention
	}
	return time.Minute
}
