package port

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/arturoeanton/familyhub-auth/internal/domain"
)

// Sentinel errors used across ports.
var (
	ErrNoSession           = errors.New("no persisted session")
	ErrPasswordCompromised = errors.New("this password has appeared in a data breach, please choose another")
	ErrPasswordTooWeak     = errors.New("password is too weak")
	ErrPasswordMismatch    = errors.New("passwords do not match")
	ErrInvalidTransition   = errors.New("action not allowed at this step")
	ErrWizardClosed        = errors.New("wizard is closed")
	ErrWizardNotFound      = errors.New("wizard not found")
	ErrQRNotRequested      = errors.New("QR code was not requested")
	ErrPreviewUnavailable  = errors.New("invitation preview is not available yet")
	ErrTokenMissing        = errors.New("reset token missing")
)

// Messages shown for failures whose remote text is not meant for users.
const (
	MsgNetwork = "Unable to reach the server. Please check your connection and try again."
	MsgUnknown = "Something went wrong. Please try again."
)

// ErrorKind classifies gateway failures independently of transport.
type ErrorKind int

const (
	KindUnknown ErrorKind = iota
	KindUnauthenticated
	KindCredentials
	KindLockout
	KindNetwork
	KindValidation
	KindNotFound
	KindConflict
)

// String returns the snake_case name used on the wire.
func (k ErrorKind) String() string {
	switch k {
	case KindUnauthenticated:
		return "unauthenticated"
	case KindCredentials:
		return "credentials"
	case KindLockout:
		return "lockout"
	case KindNetwork:
		return "network"
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	default:
		return "unknown"
	}
}

// AuthError is the typed error every gateway operation returns.
type AuthError struct {
	Kind    ErrorKind
	Status  int
	Message string
	Lockout *domain.AccountLockoutStatus
	Err     error
}

func (e *AuthError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return MsgUnknown
}

func (e *AuthError) Unwrap() error { return e.Err }

// NetworkError wraps a transport or deadline failure.
func NetworkError(err error) *AuthError {
	return &AuthError{Kind: KindNetwork, Message: MsgNetwork, Err: err}
}

// KindOf returns the kind carried by err, KindNetwork for context
// deadlines and cancellations, and KindUnknown otherwise.
func KindOf(err error) ErrorKind {
	var ae *AuthError
	if errors.As(err, &ae) {
		return ae.Kind
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return KindNetwork
	}
	return KindUnknown
}

// IsUnauthenticated reports whether err is the expected "no session" answer.
func IsUnauthenticated(err error) bool {
	return KindOf(err) == KindUnauthenticated
}

// KindForStatus maps an HTTP status returned by the Auth API to a kind.
func KindForStatus(status int) ErrorKind {
	switch {
	case status == http.StatusUnauthorized:
		return KindUnauthenticated
	case status == http.StatusLocked, status == http.StatusTooManyRequests:
		return KindLockout
	case status == http.StatusNotFound:
		return KindNotFound
	case status == http.StatusConflict:
		return KindConflict
	case status == http.StatusBadRequest, status == http.StatusUnprocessableEntity:
		return KindValidation
	case status == http.StatusBadGateway, status == http.StatusServiceUnavailable, status == http.StatusGatewayTimeout:
		return KindNetwork
	default:
		return KindUnknown
	}
}

// ClassifyLoginError refines a login failure. A structured lockout wins;
// a 401 on login means bad credentials; the message heuristic is only
// consulted when the Auth API sent no lockout object.
func ClassifyLoginError(err error) error {
	var ae *AuthError
	if !errors.As(err, &ae) {
		if KindOf(err) == KindNetwork {
			return NetworkError(err)
		}
		return err
	}
	out := *ae
	switch {
	case out.Lockout != nil && out.Lockout.Locked:
		out.Kind = KindLockout
	case out.Kind == KindNetwork || out.Kind == KindLockout:
	case LegacyLockoutFromMessage(out.Message):
		out.Kind = KindLockout
	case out.Kind == KindUnauthenticated || out.Kind == KindValidation:
		out.Kind = KindCredentials
	}
	return &out
}

// LegacyLockoutFromMessage infers a lockout from the error text of Auth API
// versions that do not send a lockout object.
//
// Deprecated: rely on AuthError.Lockout; this remains for old servers.
func LegacyLockoutFromMessage(msg string) bool {
	m := strings.ToLower(msg)
	for _, needle := range []string{"locked", "multiple failed", "too many attempts", "too many failed"} {
		if strings.Contains(m, needle) {
			return true
		}
	}
	return false
}

// UserMessage returns the single string a form should display for err.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	var ae *AuthError
	if errors.As(err, &ae) {
		if ae.Kind == KindNetwork {
			return MsgNetwork
		}
		if ae.Message != "" {
			return ae.Message
		}
		return MsgUnknown
	}
	if KindOf(err) == KindNetwork {
		return MsgNetwork
	}
	return err.Error()
}
