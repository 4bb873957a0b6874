package handler

import (
	"strconv"

	"github.com/gofiber/fiber/v3"

	"github.com/arturoeanton/go-git-mirror/internal/port"
)

// AuditHandler serves audit logs and webhook delivery history.
type AuditHandler struct {
	audit      port.AuditReader
	deliveries port.DeliveryRecorder
}

// NewAuditHandler creates a new audit handler.
func NewAuditHandler(audit port.AuditReader, deliveries port.DeliveryRecorder) *AuditHandler {
	return &AuditHandler{audit: audit, deliveries: deliveries}
}

// Register sets up audit routes.
func (h *AuditHandler) Register(router fiber.Router) {
	router.Get("/audit/logs", h.ListLogs)
	router.Get("/deliveries", h.ListDeliveries)
}

// ListLogs returns audit logs with optional filtering.
func (h *AuditHandler) ListLogs(c fiber.Ctx) error {
	limit := queryInt(c, "limit", 100)
	action := c.Query("action", "")

	logs, err := h.audit.ListAuditLogs(c.Context(), limit, action)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(fiber.Map{
		"logs":  logs,
		"count": len(logs),
	})
}

// ListDeliveries returns recent webhook deliveries, optionally for ?repo=.
func (h *AuditHandler) ListDeliveries(c fiber.Ctx) error {
	limit := queryInt(c, "limit", 50)

	deliveries, err := h.deliveries.ListDeliveries(c.Context(), c.Query("repo"), limit)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(fiber.Map{
		"deliveries": deliveries,
		"count":      len(deliveries),
	})
}

// queryInt reads an integer query param with a default value.
func queryInt(c fiber.Ctx, key string, defaultVal int) int {
	v := c.Query(key)
	if v == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return defaultVal
	}
	return n
}
