package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/arturoeanton/familyhub-auth/internal/domain"
	"github.com/arturoeanton/familyhub-auth/internal/effect"
	"github.com/arturoeanton/familyhub-auth/internal/port"
)

// InviteStep is a step of the invitation wizard.
type InviteStep int

const (
	InviteStepBasic InviteStep = iota
	InviteStepRelationship
	InviteStepPermissions
	InviteStepPreview
	InviteStepSuccess
)

// InviteTotalSteps is the number of wizard steps, success included.
const InviteTotalSteps = 5

// DefaultPreviewDebounce is how long basic info must stay unchanged before
// the preview is fetched.
const DefaultPreviewDebounce = 500 * time.Millisecond

func (s InviteStep) String() string {
	switch s {
	case InviteStepRelationship:
		return "relationship"
	case InviteStepPermissions:
		return "permissions"
	case InviteStepPreview:
		return "preview"
	case InviteStepSuccess:
		return "success"
	default:
		return "basic"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (s InviteStep) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// InvitationState is a snapshot of one invitation wizard.
type InvitationState struct {
	Step           InviteStep                `json:"step"`
	CurrentStep    int                       `json:"current_step"`
	TotalSteps     int                       `json:"total_steps"`
	CanGoBack      bool                      `json:"can_go_back"`
	CanProceed     bool                      `json:"can_proceed"`
	Basic          domain.InviteBasicInfo    `json:"basic"`
	Preview        *domain.InvitationPreview `json:"preview,omitempty"`
	PreviewLoading bool                      `json:"preview_loading"`
	Role           string                    `json:"role,omitempty"`
	Options        domain.SendOptions        `json:"options"`
	QRCode         *domain.QRCode            `json:"qr_code,omitempty"`
	Result         *domain.InvitationResult  `json:"result,omitempty"`
	Error          string                    `json:"error,omitempty"`
	IsLoading      bool                      `json:"is_loading"`
	Closed         bool                      `json:"closed"`
}

// InvitationDeps wires an InvitationWizard.
type InvitationDeps struct {
	Service  port.InvitationService
	Debounce time.Duration // 0 = DefaultPreviewDebounce
	Timeout  time.Duration
}

// InvitationWizard drives one "invite a family member" flow:
// basic -> relationship -> permissions -> preview -> success.
type InvitationWizard struct {
	svc       port.InvitationService
	timeout   time.Duration
	debouncer *effect.Debouncer

	mu sync.Mutex
	// gen is bumped on every basic-info change; a preview response is
	// applied only if gen did not move while it was in flight.
	gen            uint64
	step           InviteStep
	basic          domain.InviteBasicInfo
	preview        *domain.InvitationPreview
	previewLoading bool
	role           string
	options        domain.SendOptions
	qr             *domain.QRCode
	result         *domain.InvitationResult
	errMsg         string
	loading        bool
	closed         bool
}

// NewInvitationWizard creates a wizard on the basic step.
func NewInvitationWizard(d InvitationDeps) *InvitationWizard {
	wait := d.Debounce
	if wait <= 0 {
		wait = DefaultPreviewDebounce
	}
	timeout := d.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &InvitationWizard{
		svc:       d.Service,
		timeout:   timeout,
		debouncer: effect.NewDebouncer(wait),
		options:   domain.DefaultSendOptions(),
	}
}

// State returns a snapshot of the wizard.
func (w *InvitationWizard) State() InvitationState {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.stateLocked()
}

func (w *InvitationWizard) stateLocked() InvitationState {
	st := InvitationState{
		Step:           w.step,
		CurrentStep:    int(w.step) + 1,
		TotalSteps:     InviteTotalSteps,
		CanGoBack:      w.canGoBackLocked(),
		CanProceed:     w.canProceedLocked(),
		Basic:          w.basic,
		PreviewLoading: w.previewLoading,
		Role:           w.role,
		Options:        w.options,
		Error:          w.errMsg,
		IsLoading:      w.loading,
		Closed:         w.closed,
	}
	if w.preview != nil {
		p := *w.preview
		st.Preview = &p
	}
	if w.qr != nil {
		q := *w.qr
		st.QRCode = &q
	}
	if w.result != nil {
		r := *w.result
		st.Result = &r
	}
	return st
}

func (w *InvitationWizard) canGoBackLocked() bool {
	if w.closed || w.loading {
		return false
	}
	return w.step > InviteStepBasic && w.step < InviteStepSuccess
}

func (w *InvitationWizard) canProceedLocked() bool {
	if w.closed || w.loading {
		return false
	}
	switch w.step {
	case InviteStepBasic, InviteStepRelationship:
		return w.preview != nil && !w.previewLoading
	case InviteStepPermissions:
		return true
	default:
		// The preview step leaves through Send; success is terminal.
		return false
	}
}

// UpdateBasicInfo records the invitee's details. The cached preview is
// dropped, and a fresh one is fetched once the input settles with every
// field present.
func (w *InvitationWizard) UpdateBasicInfo(info domain.InviteBasicInfo) error {
	info.Email = strings.TrimSpace(info.Email)
	info.Name = strings.TrimSpace(info.Name)

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return port.ErrWizardClosed
	}
	if w.step != InviteStepBasic && w.step != InviteStepRelationship {
		return fmt.Errorf("%w: %s", port.ErrInvalidTransition, w.step)
	}
	if info.Relationship != "" && !info.Relationship.Valid() {
		return &port.AuthError{Kind: port.KindValidation, Message: fmt.Sprintf("Unknown relationship %q.", info.Relationship)}
	}

	w.gen++
	w.basic = info
	w.preview = nil
	w.role = ""
	w.qr = nil
	w.errMsg = ""

	if !info.Complete() {
		w.previewLoading = false
		w.debouncer.Cancel()
		return nil
	}

	w.previewLoading = true
	gen := w.gen
	w.debouncer.Trigger(context.Background(), func(ctx context.Context) {
		w.fetchPreview(ctx, gen, info)
	})
	return nil
}

func (w *InvitationWizard) fetchPreview(ctx context.Context, gen uint64, info domain.InviteBasicInfo) {
	ctx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()

	preview, err := w.svc.PreviewInvitation(ctx, info)

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed || w.gen != gen {
		return
	}
	w.previewLoading = false
	if err != nil {
		slog.Warn("invitation preview failed", "error", err)
		w.errMsg = port.UserMessage(err)
		return
	}
	w.preview = preview
	if w.role == "" {
		w.role = preview.RecommendedRole
	}
}

// Next moves one step forward.
func (w *InvitationWizard) Next() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return port.ErrWizardClosed
	}
	if !w.canProceedLocked() {
		if w.step <= InviteStepRelationship {
			return port.ErrPreviewUnavailable
		}
		return fmt.Errorf("%w: %s", port.ErrInvalidTransition, w.step)
	}
	w.step++
	w.errMsg = ""
	return nil
}

// Back moves one step backward.
func (w *InvitationWizard) Back() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return port.ErrWizardClosed
	}
	if !w.canGoBackLocked() {
		return fmt.Errorf("%w: %s", port.ErrInvalidTransition, w.step)
	}
	w.step--
	w.errMsg = ""
	return nil
}

// SelectRole overrides the recommended role on the permissions step. An
// empty role restores the recommendation.
func (w *InvitationWizard) SelectRole(role string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return port.ErrWizardClosed
	}
	if w.step != InviteStepPermissions {
		return fmt.Errorf("%w: %s", port.ErrInvalidTransition, w.step)
	}
	role = strings.TrimSpace(role)
	if role == "" && w.preview != nil {
		role = w.preview.RecommendedRole
	}
	w.role = role
	return nil
}

// SetOptions replaces the sending options. Zero expiration means the
// default; anything outside 1..30 days is rejected.
func (w *InvitationWizard) SetOptions(opts domain.SendOptions) error {
	if opts.ExpirationDays == 0 {
		opts.ExpirationDays = domain.DefaultInviteExpirationDays
	}
	if opts.ExpirationDays < domain.MinInviteExpirationDays || opts.ExpirationDays > domain.MaxInviteExpirationDays {
		return &port.AuthError{
			Kind: port.KindValidation,
			Message: fmt.Sprintf("Expiration must be between %d and %d days.",
				domain.MinInviteExpirationDays, domain.MaxInviteExpirationDays),
		}
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return port.ErrWizardClosed
	}
	if w.step == InviteStepSuccess {
		return fmt.Errorf("%w: %s", port.ErrInvalidTransition, w.step)
	}
	if !opts.IncludeQR || opts.ExpirationDays != w.options.ExpirationDays {
		w.qr = nil
	}
	w.options = opts
	return nil
}

// GenerateQR fetches a QR code for the invitation link. It is only
// available once the QR checkbox is on.
func (w *InvitationWizard) GenerateQR(ctx context.Context) (*domain.QRCode, error) {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil, port.ErrWizardClosed
	}
	if !w.options.IncludeQR {
		w.mu.Unlock()
		return nil, port.ErrQRNotRequested
	}
	if !w.basic.Complete() || w.loading {
		w.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", port.ErrInvalidTransition, w.step)
	}
	basic, days, gen := w.basic, w.options.ExpirationDays, w.gen
	w.loading = true
	w.errMsg = ""
	w.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()
	qr, err := w.svc.GenerateInvitationQR(ctx, basic, days)

	w.mu.Lock()
	defer w.mu.Unlock()
	w.loading = false
	if err != nil {
		w.errMsg = port.UserMessage(err)
		return nil, err
	}
	if w.gen == gen && w.options.IncludeQR {
		w.qr = qr
	}
	c := *qr
	return &c, nil
}

// Send finalizes the invitation from the preview step.
func (w *InvitationWizard) Send(ctx context.Context) (*domain.InvitationResult, error) {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil, port.ErrWizardClosed
	}
	if w.step != InviteStepPreview || w.loading {
		w.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", port.ErrInvalidTransition, w.step)
	}
	if w.preview == nil {
		w.mu.Unlock()
		return nil, port.ErrPreviewUnavailable
	}
	req := domain.InvitationRequest{
		Basic: w.basic,
		Relationship: domain.RelationshipData{
			Relationship: w.basic.Relationship,
			Role:         w.role,
			Permissions:  append([]string(nil), w.preview.Permissions...),
		},
		Options: w.options,
	}
	w.loading = true
	w.errMsg = ""
	w.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()
	res, err := w.svc.SendInvitation(ctx, req)

	w.mu.Lock()
	defer w.mu.Unlock()
	w.loading = false
	if err != nil {
		slog.Info("invitation send failed", "kind", port.KindOf(err).String())
		w.errMsg = port.UserMessage(err)
		return nil, err
	}
	w.result = res
	w.step = InviteStepSuccess
	slog.Info("invitation sent", "invitation_id", res.ID)
	c := *res
	return &c, nil
}

// Close ends the wizard and cancels a pending or running preview fetch.
func (w *InvitationWizard) Close() {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	w.closed = true
	w.gen++
	w.previewLoading = false
	w.mu.Unlock()

	// The preview callback takes w.mu, so wait for it unlocked.
	w.debouncer.Close()
}
