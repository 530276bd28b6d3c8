package middleware

import (
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"github.com/gofiber/fiber/v3"

	"github.com/arturoeanton/familyhub-auth/internal/domain"
	"github.com/arturoeanton/familyhub-auth/internal/session"
)

// AuditWriter defines how audit records are persisted.
type AuditWriter interface {
	WriteAudit(userID, action, resource, resourceID, details, ip, userAgent string) error
}

// auditActions maps route suffixes to audit actions; everything else is
// recorded as a plain request.
var auditActions = []struct {
	suffix string
	action string
}{
	{"/auth/login", domain.AuditActionLogin},
	{"/auth/logout", domain.AuditActionLogout},
	{"/auth/register", domain.AuditActionRegister},
	{"/auth/refresh", domain.AuditActionRefresh},
}

func auditAction(path string) string {
	for _, a := range auditActions {
		if strings.HasSuffix(path, a.suffix) {
			return a.action
		}
	}
	switch {
	case strings.Contains(path, "/password-reset"):
		return domain.AuditActionPasswordReset
	case strings.Contains(path, "/invitations"):
		return domain.AuditActionInvitation
	}
	return domain.AuditActionRequest
}

// AuditMiddleware records every request together with the user who was
// logged in once the handler returned.
func AuditMiddleware(writer AuditWriter, sessions *session.Store) fiber.Handler {
	return func(c fiber.Ctx) error {
		start := time.Now()

		// Capture request data BEFORE handler execution (Fiber reuses context objects)
		method := c.Method()
		path := c.Path()
		ip := c.IP()
		userAgent := c.Get("User-Agent")
		before := sessions.State().User

		err := c.Next()

		userID := "anonymous"
		if u := sessions.State().User; u != nil {
			userID = u.ID
		} else if before != nil {
			// Logout clears the store before we get here.
			userID = before.ID
		}

		statusCode := c.Response().StatusCode()
		details := map[string]interface{}{
			"method":      method,
			"path":        path,
			"status":      statusCode,
			"duration_ms": time.Since(start).Milliseconds(),
		}
		detailsJSON, _ := json.Marshal(details)
		action := auditAction(path)

		// All values are captured above, safe to use in the goroutine.
		go func() {
			if writeErr := writer.WriteAudit(
				userID,
				action,
				"api",
				path,
				string(detailsJSON),
				ip,
				userAgent,
			); writeErr != nil {
				slog.Error("failed to write audit log", "error", writeErr)
			}
		}()

		return err
	}
}
