package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v3"

	"github.com/arturoeanton/go-git-mirror/internal/domain"
	"github.com/arturoeanton/go-git-mirror/internal/logger"
	"github.com/arturoeanton/go-git-mirror/internal/port"
)

const auditResourceKey = "audit_resource"

// SetAuditResource names the repository or job a request acted on. id is
// copied since it usually comes from the request buffer.
func SetAuditResource(c fiber.Ctx, id string) {
	c.Locals(auditResourceKey, strings.Clone(id))
}

// AuditMiddleware records every request through writer.
func AuditMiddleware(writer port.AuditWriter, log *logger.Logger) fiber.Handler {
	return func(c fiber.Ctx) error {
		start := time.Now()

		// Fiber reuses request buffers; copy before the handler runs.
		method := strings.Clone(c.Method())
		path := strings.Clone(c.Path())
		ip := strings.Clone(c.IP())
		userAgent := strings.Clone(c.Get("User-Agent"))

		err := c.Next()

		status := c.Response().StatusCode()
		if err != nil {
			var fe *fiber.Error
			if errors.As(err, &fe) {
				status = fe.Code
			}
		}
		resourceID, _ := c.Locals(auditResourceKey).(string)

		details, _ := json.Marshal(map[string]any{
			"method":      method,
			"status":      status,
			"duration_ms": time.Since(start).Milliseconds(),
		})

		entry := domain.AuditLog{
			Action:     auditAction(path),
			Resource:   path,
			ResourceID: resourceID,
			Details:    string(details),
			IP:         ip,
			UserAgent:  userAgent,
			CreatedAt:  start.UTC(),
		}

		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if writeErr := writer.WriteAudit(ctx, entry); writeErr != nil {
				log.Error("failed to write audit log", writeErr)
			}
		}()

		return err
	}
}

func auditAction(path string) string {
	switch {
	case strings.HasSuffix(path, "/repository/clone"):
		return domain.AuditActionRepoClone
	case strings.HasSuffix(path, "/repository/update"):
		return domain.AuditActionRepoUpdate
	case strings.HasPrefix(path, "/webhook/"):
		return domain.AuditActionWebhook
	case strings.HasSuffix(path, "/changes"):
		return domain.AuditActionChangeReport
	default:
		return domain.AuditActionHTTPRequest
	}
}
