package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/arturoeanton/familyhub-auth/internal/domain"
	"github.com/arturoeanton/familyhub-auth/internal/port"
)

// ResetStep is a step of the password-reset wizard.
type ResetStep int

const (
	ResetStepRequest ResetStep = iota
	ResetStepVerification
	ResetStepReset
	ResetStepSuccess
)

func (s ResetStep) String() string {
	switch s {
	case ResetStepVerification:
		return "verification"
	case ResetStepReset:
		return "reset"
	case ResetStepSuccess:
		return "success"
	default:
		return "request"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (s ResetStep) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// StepProgress is the display percentage for step.
func StepProgress(step ResetStep) int {
	switch step {
	case ResetStepVerification:
		return 50
	case ResetStepReset:
		return 75
	case ResetStepSuccess:
		return 100
	default:
		return 25
	}
}

// ResetState is a snapshot of one password-reset wizard. The token itself
// never leaves the wizard.
type ResetState struct {
	Step              ResetStep                `json:"step"`
	Progress          int                      `json:"progress"`
	Email             string                   `json:"email,omitempty"`
	HasToken          bool                     `json:"has_token"`
	AttemptsRemaining int                      `json:"attempts_remaining"`
	LinkExpiresAt     time.Time                `json:"link_expires_at,omitzero"`
	Error             string                   `json:"error,omitempty"`
	IsLoading         bool                     `json:"is_loading"`
	SecurityQuestion  *domain.SecurityQuestion `json:"security_question,omitempty"`
	Strength          *domain.StrengthResult   `json:"strength,omitempty"`
}

// ResetDeps wires a PasswordResetWizard.
type ResetDeps struct {
	Gateway   port.PasswordResetGateway
	Questions port.SecurityQuestions // optional
	Security  port.PasswordSecurity
	MinScore  int
	Timeout   time.Duration
}

// PasswordResetWizard drives one "forgot password" flow:
// request -> verification -> reset -> success.
type PasswordResetWizard struct {
	gateway   port.PasswordResetGateway
	questions port.SecurityQuestions
	strength  *StrengthChecker
	timeout   time.Duration

	mu     sync.Mutex
	step   ResetStep
	email  string
	answer *domain.SecurityAnswer
	token  string

	attempts  int
	expiresAt time.Time
	errMsg    string
	loading   bool
	question  *domain.SecurityQuestion
}

// NewPasswordResetWizard creates a wizard on the request step.
func NewPasswordResetWizard(d ResetDeps) *PasswordResetWizard {
	timeout := d.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &PasswordResetWizard{
		gateway:   d.Gateway,
		questions: d.Questions,
		strength:  NewStrengthChecker(d.Security, d.MinScore),
		timeout:   timeout,
	}
}

// State returns a snapshot of the wizard.
func (w *PasswordResetWizard) State() ResetState {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.stateLocked()
}

func (w *PasswordResetWizard) stateLocked() ResetState {
	st := ResetState{
		Step:              w.step,
		Progress:          StepProgress(w.step),
		Email:             w.email,
		HasToken:          w.token != "",
		AttemptsRemaining: w.attempts,
		LinkExpiresAt:     w.expiresAt,
		Error:             w.errMsg,
		IsLoading:         w.loading,
	}
	if w.question != nil {
		q := *w.question
		st.SecurityQuestion = &q
	}
	st.Strength = w.strength.Last()
	return st
}

// begin starts an attempt from one of the allowed steps: the previous
// error is cleared and the wizard is marked loading.
func (w *PasswordResetWizard) begin(allowed ...ResetStep) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.loading {
		return port.ErrInvalidTransition
	}
	ok := false
	for _, s := range allowed {
		if w.step == s {
			ok = true
			break
		}
	}
	if !ok {
		return fmt.Errorf("%w: %s", port.ErrInvalidTransition, w.step)
	}
	w.errMsg = ""
	w.loading = true
	return nil
}

// fail records the single user-facing message for err and stops loading.
func (w *PasswordResetWizard) fail(err error) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.loading = false
	w.errMsg = port.UserMessage(err)
	return err
}

// SubmitRequest asks the Auth API to email a reset link and moves to the
// verification step.
func (w *PasswordResetWizard) SubmitRequest(ctx context.Context, email string, answer *domain.SecurityAnswer) error {
	if err := w.begin(ResetStepRequest); err != nil {
		return err
	}
	email = strings.TrimSpace(email)
	if email == "" {
		return w.fail(&port.AuthError{Kind: port.KindValidation, Message: "Please enter your email address."})
	}

	receipt, err := w.request(ctx, domain.PasswordResetRequest{Email: email, SecurityAnswer: answer})
	if err != nil {
		slog.Info("password reset request failed", "kind", port.KindOf(err).String())
		return w.fail(err)
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	w.loading = false
	w.email = email
	w.answer = answer
	w.applyReceiptLocked(receipt)
	w.step = ResetStepVerification
	return nil
}

// Resend repeats the request for the same email. The step does not change.
func (w *PasswordResetWizard) Resend(ctx context.Context) error {
	if err := w.begin(ResetStepVerification); err != nil {
		return err
	}
	w.mu.Lock()
	req := domain.PasswordResetRequest{Email: w.email, SecurityAnswer: w.answer}
	w.mu.Unlock()

	receipt, err := w.request(ctx, req)
	if err != nil {
		return w.fail(err)
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	w.loading = false
	w.applyReceiptLocked(receipt)
	return nil
}

func (w *PasswordResetWizard) request(ctx context.Context, req domain.PasswordResetRequest) (*domain.PasswordResetReceipt, error) {
	ctx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()
	return w.gateway.RequestPasswordReset(ctx, req)
}

func (w *PasswordResetWizard) applyReceiptLocked(r *domain.PasswordResetReceipt) {
	if r == nil {
		return
	}
	w.attempts = r.AttemptsRemaining
	w.expiresAt = r.ExpiresAt
}

// ProvideToken enters the token carried by the emailed link. The link may
// be opened without going through the request step first.
func (w *PasswordResetWizard) ProvideToken(token string) error {
	token = strings.TrimSpace(token)
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.loading || (w.step != ResetStepRequest && w.step != ResetStepVerification) {
		return fmt.Errorf("%w: %s", port.ErrInvalidTransition, w.step)
	}
	if token == "" {
		w.errMsg = port.UserMessage(port.ErrTokenMissing)
		return port.ErrTokenMissing
	}
	w.errMsg = ""
	w.token = token
	w.step = ResetStepReset
	return nil
}

// SubmitNewPassword completes the reset. The password must match its
// confirmation, must not be breached and must reach the minimum score.
func (w *PasswordResetWizard) SubmitNewPassword(ctx context.Context, password, confirm string) error {
	if err := w.begin(ResetStepReset); err != nil {
		return err
	}
	if password != confirm {
		return w.fail(port.ErrPasswordMismatch)
	}

	ctx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()

	if err := w.strength.Acceptable(ctx, password); err != nil {
		slog.Info("new password rejected", "error", err)
		return w.fail(err)
	}

	w.mu.Lock()
	token := w.token
	w.mu.Unlock()

	if err := w.gateway.ResetPassword(ctx, token, password); err != nil {
		return w.fail(err)
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	w.loading = false
	w.step = ResetStepSuccess
	w.strength.Reset()
	slog.Info("password reset completed")
	return nil
}

// Back returns to the previous step. Leaving the reset step drops the token.
func (w *PasswordResetWizard) Back() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.loading {
		return port.ErrInvalidTransition
	}
	switch w.step {
	case ResetStepVerification:
		w.step = ResetStepRequest
	case ResetStepReset:
		w.token = ""
		w.strength.Reset()
		w.step = ResetStepVerification
	default:
		return fmt.Errorf("%w: %s", port.ErrInvalidTransition, w.step)
	}
	w.errMsg = ""
	return nil
}

// LoadSecurityQuestion fetches the optional challenge for email. Failures
// are logged and leave the question unset.
func (w *PasswordResetWizard) LoadSecurityQuestion(ctx context.Context, email string) *domain.SecurityQuestion {
	if w.questions == nil || strings.TrimSpace(email) == "" {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()

	q, err := w.questions.SecurityQuestion(ctx, strings.TrimSpace(email))
	if err != nil {
		slog.Warn("security question lookup failed", "error", err)
		return nil
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	w.question = q
	return q
}

// CheckStrength scores a candidate password while the user types. Only
// the newest candidate's result is kept; stale reports that a newer
// check superseded this one.
func (w *PasswordResetWizard) CheckStrength(ctx context.Context, password string) (res *domain.StrengthResult, stale bool, err error) {
	ctx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()
	return w.strength.Check(ctx, password)
}
