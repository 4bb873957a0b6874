package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/arturoeanton/go-git-mirror/internal/domain"
	"github.com/arturoeanton/go-git-mirror/internal/logger"
	"github.com/arturoeanton/go-git-mirror/internal/port"
)

type memDeliveries struct {
	mu   sync.Mutex
	recs []domain.Delivery
}

func (m *memDeliveries) RecordDelivery(ctx context.Context, d domain.Delivery) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recs = append(m.recs, d)
	return nil
}

func (m *memDeliveries) ListDeliveries(ctx context.Context, repo string, limit int) ([]domain.Delivery, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.Delivery(nil), m.recs...), nil
}

func newTestProcessor(t *testing.T, fake *fakeVCS, opts WebhookOptions) (*WebhookProcessor, *memDeliveries, string) {
	t.Helper()
	mirrors, root := newTestMirrors(t, fake)
	diffs := NewDiffService(mirrors, fake, time.Minute, logger.Nop())
	rec := &memDeliveries{}
	return NewWebhookProcessor(mirrors, diffs, rec, NewJobTracker(), opts, logger.Nop()), rec, root
}

func pushEvent(before, after string) *domain.WebhookEvent {
	return &domain.WebhookEvent{
		ID:         "evt-1",
		Platform:   domain.PlatformGitHub,
		RepoURL:    "github.com/o/n",
		Identity:   testRepo,
		CloneURL:   "https://github.com/o/n.git",
		Before:     before,
		After:      after,
		ReceivedAt: time.Now(),
	}
}

func TestProcessSkipsNullCommits(t *testing.T) {
	fake := &fakeVCS{}
	p, _, _ := newTestProcessor(t, fake, WebhookOptions{AutoClone: true})

	for _, evt := range []*domain.WebhookEvent{
		pushEvent("0000000000000000000000000000000000000000", "abc"),
		pushEvent("abc", "0000000000000000000000000000000000000000"),
	} {
		status, report, err := p.Process(context.Background(), evt)
		if status != domain.JobStatusSkipped || report != nil || err != nil {
			t.Errorf("Process(%s..%s) = %s, %v, %v; want skipped", evt.Before, evt.After, status, report, err)
		}
	}
	if calls := fake.Calls(); len(calls) != 0 {
		t.Errorf("vcs calls = %v, want none", calls)
	}
}

func TestProcessAutoClone(t *testing.T) {
	fake := &fakeVCS{
		commits:    map[string]string{"b": "1111111111", "a": "2222222222"},
		nameStatus: "A\tnew.txt\n",
		files:      map[string]string{"new.txt": "--- /dev/null\n+++ b/new.txt\n@@ -0,0 +1 @@\n+hi\n"},
	}
	p, _, _ := newTestProcessor(t, fake, WebhookOptions{AutoClone: true})

	status, report, err := p.Process(context.Background(), pushEvent("b", "a"))
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if status != domain.JobStatusComplete {
		t.Errorf("status = %s, want complete", status)
	}
	if fake.count("clone") != 1 {
		t.Errorf("clone calls = %d, want 1", fake.count("clone"))
	}
	if report.TotalAdditions != 1 || report.FilesChanged[0].ChangeType != domain.ChangeAdded {
		t.Errorf("report = %+v", report)
	}
}

func TestProcessWithoutAutoClone(t *testing.T) {
	fake := &fakeVCS{}
	p, _, _ := newTestProcessor(t, fake, WebhookOptions{AutoClone: false})

	status, _, err := p.Process(context.Background(), pushEvent("b", "a"))
	if status != domain.JobStatusError || !errors.Is(err, port.ErrMirrorAbsent) {
		t.Errorf("Process = %s, %v; want error, ErrMirrorAbsent", status, err)
	}
	if fake.count("clone") != 0 {
		t.Error("cloned with auto-clone disabled")
	}
}

func TestSubmitRecordsDelivery(t *testing.T) {
	fake := &fakeVCS{commits: map[string]string{"b": "1111111111"}}
	p, rec, root := newTestProcessor(t, fake, WebhookOptions{Workers: 2})
	makeMirror(t, root, testRepo)

	ctx, cancel := context.WithCancel(context.Background())
	p.Start(ctx)
	defer func() {
		cancel()
		p.Wait()
	}()

	job, err := p.Submit(pushEvent("b", "missing"))
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if job.Status != domain.JobStatusQueued || job.EventID != "evt-1" {
		t.Errorf("job = %+v", job)
	}

	waitFor(t, func() bool {
		j, _ := p.Jobs().Get(job.ID)
		return j.Done()
	})
	j, _ := p.Jobs().Get(job.ID)
	if j.Status != domain.JobStatusError || j.ErrorCode != "COMMIT_NOT_FOUND" {
		t.Errorf("job = %+v, want error COMMIT_NOT_FOUND", j)
	}

	waitFor(t, func() bool {
		d, _ := rec.ListDeliveries(ctx, "", 0)
		return len(d) == 1
	})
	d, _ := rec.ListDeliveries(ctx, "", 0)
	if d[0].EventID != "evt-1" || d[0].Status != domain.JobStatusError || d[0].ErrorCode != "COMMIT_NOT_FOUND" || d[0].CompletedAt == nil {
		t.Errorf("delivery = %+v", d[0])
	}
}

func TestSubmitQueueFull(t *testing.T) {
	p, _, _ := newTestProcessor(t, &fakeVCS{}, WebhookOptions{Workers: 1})

	// Not started: nothing drains the queue.
	capacity := cap(p.queue)
	for i := 0; i < capacity; i++ {
		if _, err := p.Submit(pushEvent("b", "a")); err != nil {
			t.Fatalf("Submit #%d: %v", i, err)
		}
	}
	if _, err := p.Submit(pushEvent("b", "a")); !errors.Is(err, port.ErrQueueFull) {
		t.Fatalf("error = %v, want ErrQueueFull", err)
	}
}

func TestJobTracker(t *testing.T) {
	tr := NewJobTracker()
	tr.Create("j1", "e1", "github.com/o/n")

	ch := tr.Subscribe("j1")
	tr.Update("j1", func(j *Job) { j.Status = domain.JobStatusRunning })

	select {
	case got := <-ch:
		if got.Status != domain.JobStatusRunning || got.StartedAt.IsZero() {
			t.Errorf("update = %+v", got)
		}
	case <-time.After(time.Second):
		t.Fatal("no update received")
	}
	tr.Unsubscribe("j1", ch)
	if _, open := <-ch; open {
		t.Error("channel still open after Unsubscribe")
	}

	tr.Update("j1", func(j *Job) { j.Status = domain.JobStatusComplete })
	j, ok := tr.Get("j1")
	if !ok || !j.Done() || j.CompletedAt.IsZero() {
		t.Errorf("job = %+v, %v", j, ok)
	}

	tr.Create("j2", "e2", "github.com/o/n")
	if n := tr.Prune(-time.Second); n != 1 {
		t.Errorf("Prune removed %d, want 1", n)
	}
	if _, ok := tr.Get("j1"); ok {
		t.Error("finished job survived prune")
	}
	if _, ok := tr.Get("j2"); !ok {
		t.Error("queued job pruned")
	}
}
