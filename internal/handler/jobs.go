package handler

import (
	"bufio"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v3"

	"github.com/arturoeanton/go-git-mirror/internal/logger"
	"github.com/arturoeanton/go-git-mirror/internal/port"
	"github.com/arturoeanton/go-git-mirror/internal/service"
)

// JobsHandler handles webhook job endpoints.
type JobsHandler struct {
	tracker       *service.JobTracker
	streamTimeout time.Duration
	log           *logger.Logger
}

// NewJobsHandler creates a new jobs handler.
func NewJobsHandler(tracker *service.JobTracker, log *logger.Logger) *JobsHandler {
	return &JobsHandler{tracker: tracker, streamTimeout: 5 * time.Minute, log: log}
}

// Register sets up job routes.
func (h *JobsHandler) Register(router fiber.Router) {
	jobs := router.Group("/jobs")
	jobs.Get("/:id", h.GetStatus)
	jobs.Get("/:id/stream", h.StreamSSE)
}

// GetStatus returns the current job state.
func (h *JobsHandler) GetStatus(c fiber.Ctx) error {
	job, ok := h.tracker.Get(c.Params("id"))
	if !ok {
		return respondError(c, fmt.Errorf("job %s: %w", c.Params("id"), port.ErrJobNotFound))
	}
	return c.JSON(job)
}

// StreamSSE streams job updates until the job finishes.
func (h *JobsHandler) StreamSSE(c fiber.Ctx) error {
	id := c.Params("id")
	job, ok := h.tracker.Get(id)
	if !ok {
		return respondError(c, fmt.Errorf("job %s: %w", id, port.ErrJobNotFound))
	}

	c.Set("Content-Type", "text/event-stream")
	c.Set("Cache-Control", "no-cache")
	c.Set("Connection", "keep-alive")

	if job.Done() {
		data, _ := json.Marshal(job)
		return c.SendString(fmt.Sprintf("event: %s\ndata: %s\n\n", job.Status, data))
	}

	ch := h.tracker.Subscribe(id)

	return c.SendStreamWriter(func(w *bufio.Writer) {
		defer h.tracker.Unsubscribe(id, ch)

		// Re-read after subscribing so a transition in between is not lost.
		current, _ := h.tracker.Get(id)
		if writeJobEvent(w, current) || current.Done() {
			return
		}

		timeout := time.After(h.streamTimeout)
		for {
			select {
			case update, ok := <-ch:
				if !ok {
					return
				}
				if writeJobEvent(w, update) || update.Done() {
					return
				}
			case <-timeout:
				h.log.Warnf("SSE timeout for job %s", id)
				return
			}
		}
	})
}

// writeJobEvent writes one SSE frame and reports whether the client is gone.
func writeJobEvent(w *bufio.Writer, job service.Job) bool {
	event := "progress"
	if job.Done() {
		event = job.Status
	}
	data, _ := json.Marshal(job)
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data)
	return w.Flush() != nil
}
