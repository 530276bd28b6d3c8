package handler

import (
	"bufio"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/gofiber/fiber/v3"

	"github.com/arturoeanton/familyhub-auth/internal/domain"
	"github.com/arturoeanton/familyhub-auth/internal/service"
	"github.com/arturoeanton/familyhub-auth/internal/session"
)

// streamTimeout bounds one SSE connection; clients reconnect.
const streamTimeout = 5 * time.Minute

// AuthHandler handles login, registration and session endpoints.
type AuthHandler struct {
	flow        *service.AuthFlow
	strength    *service.StrengthChecker
	store       *session.Store
	frontendURL string
}

// NewAuthHandler creates a new auth handler.
func NewAuthHandler(flow *service.AuthFlow, strength *service.StrengthChecker, store *session.Store, frontendURL string) *AuthHandler {
	return &AuthHandler{flow: flow, strength: strength, store: store, frontendURL: strings.TrimRight(frontendURL, "/")}
}

// Register sets up auth routes. guard protects the routes that need a
// logged-in user.
func (h *AuthHandler) Register(router fiber.Router, guard fiber.Handler) {
	auth := router.Group("/auth")
	auth.Post("/login", h.Login)
	auth.Post("/register", h.SignUp)
	auth.Post("/logout", h.Logout)
	auth.Post("/refresh", h.Refresh)
	auth.Patch("/profile", guard, h.UpdateProfile)
	auth.Post("/change-password", guard, h.ChangePassword)

	router.Get("/session", h.Session)
	router.Get("/session/stream", h.StreamSession)
	router.Post("/password/strength", h.CheckStrength)
}

// Login authenticates against the Auth API.
func (h *AuthHandler) Login(c fiber.Ctx) error {
	var creds domain.Credentials
	if err := c.Bind().JSON(&creds); err != nil {
		return badRequest(c)
	}
	if strings.TrimSpace(creds.Email) == "" || creds.Password == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "email and password are required"})
	}

	out, err := h.flow.Login(c.Context(), creds)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(fiber.Map{
		"user":    out.User,
		"device":  out.Device,
		"session": h.store.State(),
	})
}

// SignUp creates an account and logs it in.
func (h *AuthHandler) SignUp(c fiber.Ctx) error {
	var reg domain.Registration
	if err := c.Bind().JSON(&reg); err != nil {
		return badRequest(c)
	}
	if strings.TrimSpace(reg.Email) == "" || reg.Password == "" || strings.TrimSpace(reg.Name) == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "email, password and name are required"})
	}

	out, err := h.flow.Register(c.Context(), reg)
	if err != nil {
		return writeError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"user":    out.User,
		"session": h.store.State(),
	})
}

// Logout always succeeds and tells the UI where to go next.
func (h *AuthHandler) Logout(c fiber.Ctx) error {
	h.flow.Logout(c.Context())
	return c.JSON(fiber.Map{
		"ok":       true,
		"redirect": h.frontendURL + "/",
	})
}

// Refresh renews the session silently.
func (h *AuthHandler) Refresh(c fiber.Ctx) error {
	ok := h.flow.RefreshAccessToken(c.Context())
	return c.JSON(fiber.Map{
		"refreshed": ok,
		"session":   h.store.State(),
	})
}

// Session returns the current session state.
func (h *AuthHandler) Session(c fiber.Ctx) error {
	return c.JSON(h.store.State())
}

// UpdateProfile saves profile edits.
func (h *AuthHandler) UpdateProfile(c fiber.Ctx) error {
	var patch domain.UserPatch
	if err := c.Bind().JSON(&patch); err != nil {
		return badRequest(c)
	}
	// The family-admin flag is not user-editable.
	patch.IsFamilyAdmin = nil

	user, err := h.flow.UpdateProfile(c.Context(), patch)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(fiber.Map{"user": user})
}

// ChangePassword changes the logged-in user's password.
func (h *AuthHandler) ChangePassword(c fiber.Ctx) error {
	var change domain.PasswordChange
	if err := c.Bind().JSON(&change); err != nil {
		return badRequest(c)
	}
	if change.CurrentPassword == "" || change.NewPassword == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "current and new password are required"})
	}
	if err := h.strength.Acceptable(c.Context(), change.NewPassword); err != nil {
		return writeError(c, err)
	}
	if err := h.flow.ChangePassword(c.Context(), change); err != nil {
		return writeError(c, err)
	}
	return c.JSON(fiber.Map{"ok": true})
}

// CheckStrength scores a candidate password for the registration form.
func (h *AuthHandler) CheckStrength(c fiber.Ctx) error {
	var body struct {
		Password string `json:"password"`
	}
	if err := c.Bind().JSON(&body); err != nil {
		return badRequest(c)
	}
	res, stale, err := h.strength.Check(c.Context(), body.Password)
	if err != nil {
		if stale {
			return c.JSON(fiber.Map{"stale": true})
		}
		return writeError(c, err)
	}
	return c.JSON(fiber.Map{
		"strength":  res,
		"min_score": h.strength.MinScore(),
		"stale":     stale,
	})
}

// StreamSession streams session changes via Server-Sent Events.
func (h *AuthHandler) StreamSession(c fiber.Ctx) error {
	ch, unsubscribe := h.store.Subscribe()
	initial := h.store.State()

	c.Set("Content-Type", "text/event-stream")
	c.Set("Cache-Control", "no-cache")
	c.Set("Connection", "keep-alive")

	return c.SendStreamWriter(func(w *bufio.Writer) {
		defer unsubscribe()

		if !writeEvent(w, "session", initial) {
			return
		}

		timeout := time.After(streamTimeout)
		for {
			select {
			case update, ok := <-ch:
				if !ok {
					return
				}
				if !writeEvent(w, "session", update) {
					return
				}
			case <-timeout:
				slog.Debug("session stream timeout")
				return
			}
		}
	})
}

// writeEvent reports false once the client has gone away.
func writeEvent(w *bufio.Writer, event string, v any) bool {
	data, err := json.Marshal(v)
	if err != nil {
		slog.Error("encode SSE event", "error", err)
		return false
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, string(data))
	return w.Flush() == nil
}
