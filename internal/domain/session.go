package domain

import (
	"strings"
	"time"
)

// SessionMode says where the session credential lives.
type SessionMode int

const (
	// SessionNone means no session is established.
	SessionNone SessionMode = iota
	// SessionCookieManaged means the credential is an HTTP-only cookie the
	// client carries but never reads.
	SessionCookieManaged
)

// String returns the wire name of the mode.
func (m SessionMode) String() string {
	switch m {
	case SessionCookieManaged:
		return "cookie"
	default:
		return "none"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (m SessionMode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (m *SessionMode) UnmarshalText(b []byte) error {
	switch strings.ToLower(string(b)) {
	case "cookie", "cookie_managed":
		*m = SessionCookieManaged
	default:
		*m = SessionNone
	}
	return nil
}

// TokenInfo describes the active session without exposing its secret.
type TokenInfo struct {
	Mode      SessionMode `json:"mode"`
	ExpiresAt time.Time   `json:"expires_at,omitzero"`
}

// CookieSession is the TokenInfo for a cookie-managed session.
func CookieSession(expiresAt time.Time) TokenInfo {
	return TokenInfo{Mode: SessionCookieManaged, ExpiresAt: expiresAt}
}

// Active reports whether t refers to an established session.
func (t TokenInfo) Active() bool {
	return t.Mode != SessionNone
}

// StoredCookie is a cookie as persisted between process restarts.
type StoredCookie struct {
	Name     string    `json:"name"`
	Value    string    `json:"value"`
	Path     string    `json:"path,omitempty"`
	Domain   string    `json:"domain,omitempty"`
	Expires  time.Time `json:"expires,omitzero"`
	Secure   bool      `json:"secure,omitempty"`
	HTTPOnly bool      `json:"http_only,omitempty"`
}

// PersistedSession is the session indicator that survives restarts: the
// opaque cookies issued by the Auth API plus their expiry.
type PersistedSession struct {
	Key       string         `json:"key"`
	Cookies   []StoredCookie `json:"cookies"`
	ExpiresAt time.Time      `json:"expires_at,omitzero"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// Empty reports whether the persisted session carries no credential.
func (p *PersistedSession) Empty() bool {
	return p == nil || len(p.Cookies) == 0
}
