package middleware

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/requestid"

	"github.com/arturoeanton/go-git-mirror/internal/logger"
)

// RequestLogger logs each completed request. It must run after the
// requestid middleware so the id is available.
func RequestLogger(log *logger.Logger) fiber.Handler {
	return func(c fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		status := c.Response().StatusCode()
		var fe *fiber.Error
		if errors.As(err, &fe) {
			status = fe.Code
		}

		entry := log.With("method", c.Method()).
			With("path", c.Path()).
			With("status", status).
			With("duration", time.Since(start).String()).
			With("request_id", requestid.FromContext(c))
		if status >= fiber.StatusInternalServerError {
			entry.Warn("HTTP request failed")
		} else {
			entry.Debug("HTTP request completed")
		}
		return err
	}
}
