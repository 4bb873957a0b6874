package handler

import (
	"errors"

	"github.com/gofiber/fiber/v3"

	"github.com/arturoeanton/go-git-mirror/internal/port"
)

// statusFor maps an error kind to its HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, port.ErrNotAGitURL),
		errors.Is(err, port.ErrMalformedPayload),
		errors.Is(err, port.ErrEmptyPayload):
		return fiber.StatusBadRequest
	case errors.Is(err, port.ErrMirrorAbsent),
		errors.Is(err, port.ErrJobNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, port.ErrCommitNotFound):
		return fiber.StatusUnprocessableEntity
	case errors.Is(err, port.ErrCloneFailed),
		errors.Is(err, port.ErrSyncFailed):
		return fiber.StatusBadGateway
	case errors.Is(err, port.ErrStoreDisabled),
		errors.Is(err, port.ErrQueueFull):
		return fiber.StatusServiceUnavailable
	default:
		return fiber.StatusInternalServerError
	}
}

// respondError writes {"error", "code"} with the status matching err.
func respondError(c fiber.Ctx, err error) error {
	return c.Status(statusFor(err)).JSON(fiber.Map{
		"error": err.Error(),
		"code":  port.Kind(err),
	})
}

func badRequest(c fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": msg, "code": "BAD_REQUEST"})
}
