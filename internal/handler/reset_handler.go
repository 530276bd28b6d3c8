package handler

import (
	"github.com/gofiber/fiber/v3"

	"github.com/arturoeanton/familyhub-auth/internal/domain"
	"github.com/arturoeanton/familyhub-auth/internal/port"
	"github.com/arturoeanton/familyhub-auth/internal/service"
)

// PasswordResetHandler exposes password-reset wizards. Each POST to the
// collection starts an independent wizard.
type PasswordResetHandler struct {
	wizards   *WizardRegistry[*service.PasswordResetWizard]
	newWizard func() *service.PasswordResetWizard
}

// NewPasswordResetHandler creates a new password-reset handler.
func NewPasswordResetHandler(wizards *WizardRegistry[*service.PasswordResetWizard], newWizard func() *service.PasswordResetWizard) *PasswordResetHandler {
	return &PasswordResetHandler{wizards: wizards, newWizard: newWizard}
}

// Register sets up password-reset routes.
func (h *PasswordResetHandler) Register(router fiber.Router) {
	reset := router.Group("/password-reset")
	reset.Post("/", h.Create)
	reset.Get("/:id", h.Get)
	reset.Delete("/:id", h.Delete)
	reset.Get("/:id/security-question", h.SecurityQuestion)
	reset.Post("/:id/request", h.Request)
	reset.Post("/:id/resend", h.Resend)
	reset.Post("/:id/token", h.Token)
	reset.Post("/:id/password", h.Password)
	reset.Post("/:id/strength", h.Strength)
	reset.Post("/:id/back", h.Back)
}

func (h *PasswordResetHandler) wizard(c fiber.Ctx) (*service.PasswordResetWizard, error) {
	w, ok := h.wizards.Get(c.Params("id"))
	if !ok {
		return nil, port.ErrWizardNotFound
	}
	return w, nil
}

// respond answers with the wizard state, or the error of the last step.
func (h *PasswordResetHandler) respond(c fiber.Ctx, w *service.PasswordResetWizard, err error) error {
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(fiber.Map{"id": c.Params("id"), "state": w.State()})
}

// Create starts a new wizard on the request step. A token in the body
// (from an emailed link) skips straight to the reset step.
func (h *PasswordResetHandler) Create(c fiber.Ctx) error {
	var body struct {
		Token string `json:"token"`
	}
	if len(c.Body()) > 0 {
		if err := c.Bind().JSON(&body); err != nil {
			return badRequest(c)
		}
	}

	w := h.newWizard()
	if body.Token != "" {
		if err := w.ProvideToken(body.Token); err != nil {
			return writeError(c, err)
		}
	}
	id := h.wizards.Add(w)
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"id": id, "state": w.State()})
}

// Get returns the wizard state.
func (h *PasswordResetHandler) Get(c fiber.Ctx) error {
	w, err := h.wizard(c)
	return h.respond(c, w, err)
}

// Delete discards the wizard.
func (h *PasswordResetHandler) Delete(c fiber.Ctx) error {
	if !h.wizards.Remove(c.Params("id")) {
		return writeError(c, port.ErrWizardNotFound)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// SecurityQuestion loads the optional challenge for ?email=.
func (h *PasswordResetHandler) SecurityQuestion(c fiber.Ctx) error {
	w, err := h.wizard(c)
	if err != nil {
		return writeError(c, err)
	}
	q := w.LoadSecurityQuestion(c.Context(), c.Query("email"))
	return c.JSON(fiber.Map{"security_question": q})
}

// Request submits the email (and answer) and moves to verification.
func (h *PasswordResetHandler) Request(c fiber.Ctx) error {
	w, err := h.wizard(c)
	if err != nil {
		return writeError(c, err)
	}
	var body domain.PasswordResetRequest
	if err := c.Bind().JSON(&body); err != nil {
		return badRequest(c)
	}
	return h.respond(c, w, w.SubmitRequest(c.Context(), body.Email, body.SecurityAnswer))
}

// Resend asks for another email.
func (h *PasswordResetHandler) Resend(c fiber.Ctx) error {
	w, err := h.wizard(c)
	if err != nil {
		return writeError(c, err)
	}
	return h.respond(c, w, w.Resend(c.Context()))
}

// Token enters the token from the emailed link.
func (h *PasswordResetHandler) Token(c fiber.Ctx) error {
	w, err := h.wizard(c)
	if err != nil {
		return writeError(c, err)
	}
	var body struct {
		Token string `json:"token"`
	}
	if err := c.Bind().JSON(&body); err != nil {
		return badRequest(c)
	}
	return h.respond(c, w, w.ProvideToken(body.Token))
}

// Password submits the new password.
func (h *PasswordResetHandler) Password(c fiber.Ctx) error {
	w, err := h.wizard(c)
	if err != nil {
		return writeError(c, err)
	}
	var body struct {
		Password        string `json:"password"`
		ConfirmPassword string `json:"confirm_password"`
	}
	if err := c.Bind().JSON(&body); err != nil {
		return badRequest(c)
	}
	return h.respond(c, w, w.SubmitNewPassword(c.Context(), body.Password, body.ConfirmPassword))
}

// Strength scores a candidate password as the user types.
func (h *PasswordResetHandler) Strength(c fiber.Ctx) error {
	w, err := h.wizard(c)
	if err != nil {
		return writeError(c, err)
	}
	var body struct {
		Password string `json:"password"`
	}
	if err := c.Bind().JSON(&body); err != nil {
		return badRequest(c)
	}
	res, stale, err := w.CheckStrength(c.Context(), body.Password)
	if stale {
		return c.JSON(fiber.Map{"stale": true})
	}
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(fiber.Map{"strength": res, "stale": false})
}

// Back returns to the previous step.
func (h *PasswordResetHandler) Back(c fiber.Ctx) error {
	w, err := h.wizard(c)
	if err != nil {
		return writeError(c, err)
	}
	return h.respond(c, w, w.Back())
}
