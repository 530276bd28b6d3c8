package handler

import (
	"errors"

	"github.com/gofiber/fiber/v3"

	"github.com/arturoeanton/familyhub-auth/internal/port"
)

var kindStatus = map[port.ErrorKind]int{
	port.KindUnauthenticated: fiber.StatusUnauthorized,
	port.KindCredentials:     fiber.StatusUnauthorized,
	port.KindLockout:         fiber.StatusLocked,
	port.KindNetwork:         fiber.StatusBadGateway,
	port.KindValidation:      fiber.StatusBadRequest,
	port.KindNotFound:        fiber.StatusNotFound,
	port.KindConflict:        fiber.StatusConflict,
}

// statusFor maps a service error to the HTTP status the UI sees.
func statusFor(err error) int {
	switch {
	case errors.Is(err, port.ErrWizardNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, port.ErrWizardClosed), errors.Is(err, port.ErrInvalidTransition):
		return fiber.StatusConflict
	case errors.Is(err, port.ErrNoSession):
		return fiber.StatusUnauthorized
	case errors.Is(err, port.ErrPasswordCompromised),
		errors.Is(err, port.ErrPasswordTooWeak),
		errors.Is(err, port.ErrPasswordMismatch),
		errors.Is(err, port.ErrTokenMissing),
		errors.Is(err, port.ErrQRNotRequested),
		errors.Is(err, port.ErrPreviewUnavailable):
		return fiber.StatusUnprocessableEntity
	}
	if s, ok := kindStatus[port.KindOf(err)]; ok {
		return s
	}
	return fiber.StatusInternalServerError
}

// writeError answers with exactly one user-facing error string. A lockout
// also carries the structured lockout status.
func writeError(c fiber.Ctx, err error) error {
	body := fiber.Map{"error": port.UserMessage(err)}
	var ae *port.AuthError
	if errors.As(err, &ae) {
		body["kind"] = ae.Kind.String()
		if ae.Lockout != nil {
			body["lockout"] = ae.Lockout
		}
	}
	return c.Status(statusFor(err)).JSON(body)
}

func badRequest(c fiber.Ctx) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request"})
}
