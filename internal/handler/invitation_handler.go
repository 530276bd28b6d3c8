package handler

import (
	"github.com/gofiber/fiber/v3"

	"github.com/arturoeanton/familyhub-auth/internal/domain"
	"github.com/arturoeanton/familyhub-auth/internal/port"
	"github.com/arturoeanton/familyhub-auth/internal/service"
)

// InvitationHandler exposes invitation wizards.
type InvitationHandler struct {
	wizards   *WizardRegistry[*service.InvitationWizard]
	newWizard func() *service.InvitationWizard
}

// NewInvitationHandler creates a new invitation handler.
func NewInvitationHandler(wizards *WizardRegistry[*service.InvitationWizard], newWizard func() *service.InvitationWizard) *InvitationHandler {
	return &InvitationHandler{wizards: wizards, newWizard: newWizard}
}

// Register sets up invitation routes behind guard.
func (h *InvitationHandler) Register(router fiber.Router, guard fiber.Handler) {
	inv := router.Group("/invitations", guard)
	inv.Post("/", h.Create)
	inv.Get("/:id", h.Get)
	inv.Delete("/:id", h.Close)
	inv.Put("/:id/basic", h.UpdateBasic)
	inv.Put("/:id/role", h.SelectRole)
	inv.Put("/:id/options", h.SetOptions)
	inv.Post("/:id/next", h.Next)
	inv.Post("/:id/back", h.Back)
	inv.Post("/:id/qr", h.GenerateQR)
	inv.Post("/:id/send", h.Send)
}

func (h *InvitationHandler) wizard(c fiber.Ctx) (*service.InvitationWizard, error) {
	w, ok := h.wizards.Get(c.Params("id"))
	if !ok {
		return nil, port.ErrWizardNotFound
	}
	return w, nil
}

func (h *InvitationHandler) respond(c fiber.Ctx, w *service.InvitationWizard, err error) error {
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(fiber.Map{"id": c.Params("id"), "state": w.State()})
}

// Create starts a new wizard on the basic step.
func (h *InvitationHandler) Create(c fiber.Ctx) error {
	w := h.newWizard()
	id := h.wizards.Add(w)
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"id": id, "state": w.State()})
}

// Get returns the wizard state. The UI polls it while a preview loads.
func (h *InvitationHandler) Get(c fiber.Ctx) error {
	w, err := h.wizard(c)
	return h.respond(c, w, err)
}

// Close ends the wizard.
func (h *InvitationHandler) Close(c fiber.Ctx) error {
	if !h.wizards.Remove(c.Params("id")) {
		return writeError(c, port.ErrWizardNotFound)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// UpdateBasic records the invitee's details.
func (h *InvitationHandler) UpdateBasic(c fiber.Ctx) error {
	w, err := h.wizard(c)
	if err != nil {
		return writeError(c, err)
	}
	var body domain.InviteBasicInfo
	if err := c.Bind().JSON(&body); err != nil {
		return badRequest(c)
	}
	return h.respond(c, w, w.UpdateBasicInfo(body))
}

// SelectRole overrides the recommended role.
func (h *InvitationHandler) SelectRole(c fiber.Ctx) error {
	w, err := h.wizard(c)
	if err != nil {
		return writeError(c, err)
	}
	var body struct {
		Role string `json:"role"`
	}
	if err := c.Bind().JSON(&body); err != nil {
		return badRequest(c)
	}
	return h.respond(c, w, w.SelectRole(body.Role))
}

// SetOptions replaces the sending options.
func (h *InvitationHandler) SetOptions(c fiber.Ctx) error {
	w, err := h.wizard(c)
	if err != nil {
		return writeError(c, err)
	}
	var body domain.SendOptions
	if err := c.Bind().JSON(&body); err != nil {
		return badRequest(c)
	}
	return h.respond(c, w, w.SetOptions(body))
}

// Next moves forward one step.
func (h *InvitationHandler) Next(c fiber.Ctx) error {
	w, err := h.wizard(c)
	if err != nil {
		return writeError(c, err)
	}
	return h.respond(c, w, w.Next())
}

// Back moves back one step.
func (h *InvitationHandler) Back(c fiber.Ctx) error {
	w, err := h.wizard(c)
	if err != nil {
		return writeError(c, err)
	}
	return h.respond(c, w, w.Back())
}

// GenerateQR fetches the QR code for the invitation link.
func (h *InvitationHandler) GenerateQR(c fiber.Ctx) error {
	w, err := h.wizard(c)
	if err != nil {
		return writeError(c, err)
	}
	qr, err := w.GenerateQR(c.Context())
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(fiber.Map{"qr_code": qr})
}

// Send finalizes the invitation.
func (h *InvitationHandler) Send(c fiber.Ctx) error {
	w, err := h.wizard(c)
	if err != nil {
		return writeError(c, err)
	}
	res, err := w.Send(c.Context())
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(fiber.Map{"id": c.Params("id"), "result": res, "state": w.State()})
}
