package handler

import (
	"strings"

	"github.com/gofiber/fiber/v3"

	"github.com/arturoeanton/go-git-mirror/internal/middleware"
	"github.com/arturoeanton/go-git-mirror/internal/service"
)

// ChangesHandler serves synchronous change reports.
type ChangesHandler struct {
	diffs *service.DiffService
}

// NewChangesHandler creates a new changes handler.
func NewChangesHandler(diffs *service.DiffService) *ChangesHandler {
	return &ChangesHandler{diffs: diffs}
}

// Register sets up change report routes.
func (h *ChangesHandler) Register(api fiber.Router) {
	api.Get("/changes", h.Get)
}

// Get computes the report for ?repo=&before=&after=. repo is a remote URL
// or a canonical host/owner/name path.
func (h *ChangesHandler) Get(c fiber.Ctx) error {
	repo := strings.TrimSpace(c.Query("repo"))
	before := strings.TrimSpace(c.Query("before"))
	after := strings.TrimSpace(c.Query("after"))
	if repo == "" || before == "" || after == "" {
		return badRequest(c, "repo, before and after are required")
	}
	middleware.SetAuditResource(c, repo)

	report, err := h.diffs.ChangesBetween(c.Context(), repo, before, after)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(report)
}
