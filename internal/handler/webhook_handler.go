package handler

import (
	"github.com/go-playground/webhooks/v6/github"
	"github.com/gofiber/fiber/v3"

	"github.com/arturoeanton/go-git-mirror/internal/domain"
	"github.com/arturoeanton/go-git-mirror/internal/logger"
	"github.com/arturoeanton/go-git-mirror/internal/middleware"
	"github.com/arturoeanton/go-git-mirror/internal/service"
)

const (
	githubEventHeader = "X-GitHub-Event"
	giteeEventHeader  = "X-Gitee-Event"
	giteePushEvent    = "Push Hook"
)

// WebhookHandler accepts push notifications and queues them for processing.
type WebhookHandler struct {
	processor *service.WebhookProcessor
	log       *logger.Logger
}

// NewWebhookHandler creates a new webhook handler.
func NewWebhookHandler(processor *service.WebhookProcessor, log *logger.Logger) *WebhookHandler {
	return &WebhookHandler{processor: processor, log: log}
}

// Register sets up webhook routes.
func (h *WebhookHandler) Register(router fiber.Router) {
	hooks := router.Group("/webhook")
	hooks.Post("/github", h.GitHub)
	hooks.Post("/gitee", h.Gitee)
}

// GitHub handles GitHub deliveries. Pings are answered, non-push events
// are acknowledged and dropped.
func (h *WebhookHandler) GitHub(c fiber.Ctx) error {
	switch github.Event(c.Get(githubEventHeader)) {
	case github.PingEvent:
		return c.JSON(fiber.Map{"message": "pong"})
	case github.PushEvent, "":
		return h.accept(c, domain.PlatformGitHub)
	default:
		return h.ignore(c, c.Get(githubEventHeader))
	}
}

// Gitee handles Gitee deliveries.
func (h *WebhookHandler) Gitee(c fiber.Ctx) error {
	switch ev := c.Get(giteeEventHeader); ev {
	case giteePushEvent, "":
		return h.accept(c, domain.PlatformGitee)
	default:
		return h.ignore(c, ev)
	}
}

func (h *WebhookHandler) accept(c fiber.Ctx, platform domain.Platform) error {
	evt, err := service.Normalize(platform, c.Body())
	if err != nil {
		h.log.With("platform", platform).Warnf("rejected webhook: %v", err)
		return respondError(c, err)
	}
	middleware.SetAuditResource(c, evt.RepoURL)

	job, err := h.processor.Submit(evt)
	if err != nil {
		return respondError(c, err)
	}

	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"message":  "webhook accepted",
		"job_id":   job.ID,
		"event_id": evt.ID,
		"repo":     evt.RepoURL,
		"status":   job.Status,
	})
}

func (h *WebhookHandler) ignore(c fiber.Ctx, event string) error {
	h.log.Debugf("ignoring webhook event %q", event)
	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"message": "event ignored",
		"event":   event,
	})
}
