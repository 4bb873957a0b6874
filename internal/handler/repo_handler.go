package handler

import (
	"bufio"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v3"

	"github.com/arturoeanton/go-git-mirror/internal/logger"
	"github.com/arturoeanton/go-git-mirror/internal/middleware"
	"github.com/arturoeanton/go-git-mirror/internal/service"
)

// RepoHandler exposes the mirror store: clone, update, list and a stream
// of mirror events.
type RepoHandler struct {
	mirrors *service.MirrorService
	events  *service.MirrorEventBus
	log     *logger.Logger
}

// NewRepoHandler creates a new repo handler.
func NewRepoHandler(mirrors *service.MirrorService, events *service.MirrorEventBus, log *logger.Logger) *RepoHandler {
	return &RepoHandler{mirrors: mirrors, events: events, log: log}
}

// Register sets up repository routes.
func (h *RepoHandler) Register(api fiber.Router) {
	api.Post("/repository/clone", h.Clone)
	api.Post("/repository/update", h.Update)
	api.Get("/repositories", h.List)
	api.Get("/repositories/events", h.StreamEvents)
}

type repositoryRequest struct {
	GitURL string `json:"git_url"`
	URL    string `json:"url"`
}

func (r repositoryRequest) target() string {
	if r.GitURL != "" {
		return strings.TrimSpace(r.GitURL)
	}
	return strings.TrimSpace(r.URL)
}

// Clone clones the repository unless its mirror already exists.
func (h *RepoHandler) Clone(c fiber.Ctx) error {
	var body repositoryRequest
	if err := c.Bind().JSON(&body); err != nil || body.target() == "" {
		return badRequest(c, "git_url is required")
	}

	m, err := h.mirrors.EnsureCloned(c.Context(), body.target())
	if err != nil {
		return respondError(c, err)
	}
	middleware.SetAuditResource(c, m.Path)

	return c.JSON(fiber.Map{
		"message":    "repository cloned",
		"status":     "success",
		"repository": m,
	})
}

// Update pulls an existing mirror. It never clones.
func (h *RepoHandler) Update(c fiber.Ctx) error {
	var body repositoryRequest
	if err := c.Bind().JSON(&body); err != nil || body.target() == "" {
		return badRequest(c, "git_url is required")
	}

	m, err := h.mirrors.Update(c.Context(), body.target())
	if err != nil {
		return respondError(c, err)
	}
	middleware.SetAuditResource(c, m.Path)

	return c.JSON(fiber.Map{
		"message":    "repository updated",
		"status":     "success",
		"repository": m,
	})
}

// List returns every mirror under the store root.
func (h *RepoHandler) List(c fiber.Ctx) error {
	repos, err := h.mirrors.List(c.Context())
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"repositories": repos, "count": len(repos)})
}

// StreamEvents streams mirror events via SSE.
func (h *RepoHandler) StreamEvents(c fiber.Ctx) error {
	c.Set("Content-Type", "text/event-stream")
	c.Set("Cache-Control", "no-cache")
	c.Set("Connection", "keep-alive")

	ch := h.events.Subscribe()

	return c.SendStreamWriter(func(w *bufio.Writer) {
		defer h.events.Unsubscribe(ch)

		fmt.Fprintf(w, ": connected\n\n")
		if err := w.Flush(); err != nil {
			return
		}

		for evt := range ch {
			data, _ := json.Marshal(evt)
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", evt.Kind, data)
			if err := w.Flush(); err != nil {
				h.log.Debug("SSE client disconnected")
				return
			}
		}
	})
}
