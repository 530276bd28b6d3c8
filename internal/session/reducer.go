// Package session holds the process-wide record of who is logged in.
//
// State changes only through Reduce, a pure transition function over the
// closed Action set below. Persistence and network calls live in the
// service layer, never here.
package session

import "github.com/arturoeanton/familyhub-auth/internal/domain"

// State is a snapshot of the session.
type State struct {
	User            *domain.User     `json:"user"`
	IsAuthenticated bool             `json:"is_authenticated"`
	IsLoading       bool             `json:"is_loading"`
	Session         domain.TokenInfo `json:"session"`
}

// Initial is the state at process start: loading, nobody logged in.
func Initial() State {
	return State{IsLoading: true}
}

// Clone returns a deep copy of s.
func (s State) Clone() State {
	s.User = s.User.Clone()
	return s
}

// Equal compares two states by value.
func (s State) Equal(o State) bool {
	if s.IsAuthenticated != o.IsAuthenticated || s.IsLoading != o.IsLoading || s.Session != o.Session {
		return false
	}
	if s.User == nil || o.User == nil {
		return s.User == nil && o.User == nil
	}
	return *s.User == *o.User
}

// Action is a state transition request.
type Action interface {
	action()
}

// SetUser replaces the principal and marks the session authenticated.
type SetUser struct {
	User   domain.User
	Tokens domain.TokenInfo
}

// UpdateUser merges a profile patch into the current principal.
type UpdateUser struct {
	Patch domain.UserPatch
}

// UpdateTokens records a renewed session for the same principal.
type UpdateTokens struct {
	Tokens domain.TokenInfo
}

// ClearAuth resets to Initial.
type ClearAuth struct{}

// SetLoading toggles the in-flight flag.
type SetLoading struct {
	Loading bool
}

func (SetUser) action()      {}
func (UpdateUser) action()   {}
func (UpdateTokens) action() {}
func (ClearAuth) action()    {}
func (SetLoading) action()   {}

// Reduce applies a to s and returns the new state. It never mutates s.
func Reduce(s State, a Action) State {
	next := s.Clone()
	switch a := a.(type) {
	case SetUser:
		u := a.User
		next.User = &u
		next.Session = a.Tokens
		next.IsLoading = false
	case UpdateUser:
		// Updating before SetUser is a caller bug; ignore it.
		if next.User == nil {
			return next
		}
		u := a.Patch.Apply(*next.User)
		next.User = &u
	case UpdateTokens:
		next.Session = a.Tokens
	case ClearAuth:
		return Initial()
	case SetLoading:
		next.IsLoading = a.Loading
	}
	next.IsAuthenticated = next.User != nil
	return next
}
