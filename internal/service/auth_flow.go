package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/arturoeanton/familyhub-auth/internal/domain"
	"github.com/arturoeanton/familyhub-auth/internal/port"
	"github.com/arturoeanton/familyhub-auth/internal/session"
)

// AuthFlowDeps wires the collaborators of the AuthFlow.
type AuthFlowDeps struct {
	Gateway     port.AuthGateway
	Carrier     port.SessionCarrier
	Persistence port.SessionPersistence
	FamilyAdmin port.FamilyAdminLookup
	Devices     port.DeviceRecognizer // optional
	Identity    port.DeviceIdentity   // optional
	Store       *session.Store

	SessionKey     string
	RequestTimeout time.Duration // per gateway call, 0 = 10s
}

// LoginOutcome is what a successful login reports back to the UI.
type LoginOutcome struct {
	User   domain.User               `json:"user"`
	Device *domain.DeviceRecognition `json:"device,omitempty"`
}

// AuthFlow orchestrates login, registration, logout and refresh against the
// Auth API and keeps the session store consistent with the outcome.
type AuthFlow struct {
	gateway     port.AuthGateway
	carrier     port.SessionCarrier
	persistence port.SessionPersistence
	familyAdmin port.FamilyAdminLookup
	devices     port.DeviceRecognizer
	identity    port.DeviceIdentity
	store       *session.Store

	sessionKey string
	timeout    time.Duration
	refresh    singleflight.Group
}

// NewAuthFlow creates the flow controller.
func NewAuthFlow(d AuthFlowDeps) *AuthFlow {
	timeout := d.RequestTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &AuthFlow{
		gateway:     d.Gateway,
		carrier:     d.Carrier,
		persistence: d.Persistence,
		familyAdmin: d.FamilyAdmin,
		devices:     d.Devices,
		identity:    d.Identity,
		store:       d.Store,
		sessionKey:  d.SessionKey,
		timeout:     timeout,
	}
}

// State returns the current session snapshot.
func (f *AuthFlow) State() session.State {
	return f.store.State()
}

// call runs fn under the per-call timeout.
func (f *AuthFlow) call(ctx context.Context, fn func(ctx context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()
	err := fn(ctx)
	if err != nil && port.KindOf(err) == port.KindNetwork {
		var ae *port.AuthError
		if !errors.As(err, &ae) {
			return port.NetworkError(err)
		}
	}
	return err
}

// Login authenticates with the Auth API and commits the session.
func (f *AuthFlow) Login(ctx context.Context, creds domain.Credentials) (*LoginOutcome, error) {
	f.store.SetLoading(true)

	if creds.DeviceFingerprint == "" && f.identity != nil {
		if fp, err := f.identity.Fingerprint(); err == nil {
			creds.DeviceFingerprint = fp
		} else {
			slog.Warn("device fingerprint unavailable", "error", err)
		}
	}

	var res *domain.AuthResult
	err := f.call(ctx, func(ctx context.Context) error {
		var err error
		res, err = f.gateway.Login(ctx, creds)
		return err
	})
	if err != nil {
		f.resetLocal(ctx)
		err = port.ClassifyLoginError(err)
		slog.Info("login failed", "kind", port.KindOf(err).String())
		return nil, err
	}

	// The session must be committed before any call that relies on it.
	tokens := res.Session
	if !tokens.Active() {
		tokens = domain.CookieSession(tokens.ExpiresAt)
	}
	f.persist(ctx)

	out := &LoginOutcome{User: res.User}
	if f.devices != nil && creds.DeviceFingerprint != "" {
		out.Device = f.recognizeDevice(ctx, creds.DeviceFingerprint)
	}
	out.User.IsFamilyAdmin = f.lookupFamilyAdmin(ctx)

	f.store.SetUser(out.User, tokens)
	slog.Info("user logged in", "user_id", out.User.ID, "family_admin", out.User.IsFamilyAdmin)
	return out, nil
}

// Register creates the account and then logs in with the same
// credentials. A failed registration never attempts the login.
func (f *AuthFlow) Register(ctx context.Context, reg domain.Registration) (*LoginOutcome, error) {
	f.store.SetLoading(true)
	err := f.call(ctx, func(ctx context.Context) error {
		_, err := f.gateway.Register(ctx, reg)
		return err
	})
	if err != nil {
		f.store.SetLoading(false)
		slog.Info("registration failed", "kind", port.KindOf(err).String())
		return nil, err
	}

	out, err := f.Login(ctx, domain.Credentials{Email: reg.Email, Password: reg.Password})
	if err != nil {
		slog.Warn("auto-login after registration failed", "error", err)
		return nil, err
	}
	return out, nil
}

// Logout tells the Auth API on a best-effort basis and always clears the
// local session.
func (f *AuthFlow) Logout(ctx context.Context) {
	err := f.call(ctx, func(ctx context.Context) error {
		return f.gateway.Logout(ctx)
	})
	if err != nil {
		slog.Warn("remote logout failed", "error", err)
	}
	f.resetLocal(ctx)
	slog.Info("user logged out")
}

// RefreshAccessToken renews the session silently. It reports success
// instead of failing; on failure the session is cleared entirely.
// Concurrent callers share one refresh, which outlives the caller that
// started it and is bounded by the per-call timeout only.
func (f *AuthFlow) RefreshAccessToken(ctx context.Context) bool {
	shared := context.WithoutCancel(ctx)
	v, _, _ := f.refresh.Do("refresh", func() (interface{}, error) {
		return f.refreshOnce(shared), nil
	})
	return v.(bool)
}

func (f *AuthFlow) refreshOnce(ctx context.Context) bool {
	if _, err := f.persistence.LoadSession(ctx, f.sessionKey); err != nil {
		if !errors.Is(err, port.ErrNoSession) {
			slog.Warn("load persisted session failed", "error", err)
		}
		f.resetLocal(ctx)
		return false
	}

	wasLoading := f.store.State().IsLoading
	f.store.SetLoading(true)
	var tokens *domain.TokenInfo
	err := f.call(ctx, func(ctx context.Context) error {
		var err error
		tokens, err = f.gateway.RefreshToken(ctx)
		return err
	})
	if err != nil {
		slog.Warn("token refresh failed", "error", err)
		f.resetLocal(ctx)
		return false
	}

	f.persist(ctx)
	f.store.UpdateTokens(*tokens)
	// Initialize refreshes mid-restore and stays loading until it is done.
	f.store.SetLoading(wasLoading)
	return true
}

// Initialize restores a persisted session at process start.
func (f *AuthFlow) Initialize(ctx context.Context) {
	f.store.SetLoading(true)

	persisted, err := f.persistence.LoadSession(ctx, f.sessionKey)
	if err != nil {
		if !errors.Is(err, port.ErrNoSession) {
			slog.Warn("load persisted session failed", "error", err)
		}
		f.markLoggedOut()
		return
	}
	f.carrier.Restore(*persisted)

	user, err := f.currentUser(ctx)
	if err != nil {
		if port.IsUnauthenticated(err) {
			slog.Info("persisted session no longer valid")
			f.resetLocal(ctx)
			return
		}
		slog.Warn("profile fetch failed, trying refresh", "error", err)
		if !f.RefreshAccessToken(ctx) {
			return
		}
		if user, err = f.currentUser(ctx); err != nil {
			slog.Warn("profile fetch failed after refresh", "error", err)
			f.resetLocal(ctx)
			return
		}
	}

	user.IsFamilyAdmin = f.lookupFamilyAdmin(ctx)
	tokens := domain.CookieSession(persisted.ExpiresAt)
	if cur := f.store.State().Session; cur.Active() {
		tokens = cur
	}
	f.store.SetUser(*user, tokens)
	slog.Info("session restored", "user_id", user.ID)
}

// UpdateProfile saves profile edits and merges the result into the store.
func (f *AuthFlow) UpdateProfile(ctx context.Context, patch domain.UserPatch) (*domain.User, error) {
	var user *domain.User
	err := f.call(ctx, func(ctx context.Context) error {
		var err error
		user, err = f.gateway.UpdateProfile(ctx, patch)
		return err
	})
	if err != nil {
		return nil, err
	}
	// The Auth API does not know the family-admin flag; keep ours.
	full := domain.FullPatch(*user)
	full.IsFamilyAdmin = nil
	state := f.store.UpdateUser(full)
	return state.User, nil
}

// ChangePassword changes the password of the logged-in user.
func (f *AuthFlow) ChangePassword(ctx context.Context, change domain.PasswordChange) error {
	return f.call(ctx, func(ctx context.Context) error {
		return f.gateway.ChangePassword(ctx, change)
	})
}

func (f *AuthFlow) currentUser(ctx context.Context) (*domain.User, error) {
	var user *domain.User
	err := f.call(ctx, func(ctx context.Context) error {
		var err error
		user, err = f.gateway.CurrentUser(ctx)
		return err
	})
	return user, err
}

// lookupFamilyAdmin is best-effort: any failure means "not an admin".
func (f *AuthFlow) lookupFamilyAdmin(ctx context.Context) bool {
	if f.familyAdmin == nil {
		return false
	}
	var isAdmin bool
	err := f.call(ctx, func(ctx context.Context) error {
		var err error
		isAdmin, err = f.familyAdmin.IsUserFamilyAdmin(ctx)
		return err
	})
	if err != nil {
		slog.Warn("family admin lookup failed", "error", err)
		return false
	}
	return isAdmin
}

// recognizeDevice is best-effort.
func (f *AuthFlow) recognizeDevice(ctx context.Context, fingerprint string) *domain.DeviceRecognition {
	var rec *domain.DeviceRecognition
	err := f.call(ctx, func(ctx context.Context) error {
		var err error
		rec, err = f.devices.RecognizeDevice(ctx, fingerprint)
		return err
	})
	if err != nil {
		slog.Warn("device recognition failed", "error", err)
		return nil
	}
	if !rec.Recognized {
		slog.Info("login from unrecognized device", "risk_score", rec.RiskScore)
	}
	return rec
}

// persist commits the carrier's credential. A failure is logged: the live
// session keeps working, it just will not survive a restart.
func (f *AuthFlow) persist(ctx context.Context) {
	snap := f.carrier.Snapshot()
	snap.Key = f.sessionKey
	if err := f.persistence.SaveSession(ctx, snap); err != nil {
		slog.Warn("persist session failed", "error", err)
	}
}

// resetLocal forgets the credential everywhere and leaves the store
// logged out and idle.
func (f *AuthFlow) resetLocal(ctx context.Context) {
	f.carrier.Reset()
	if err := f.persistence.ClearSession(ctx, f.sessionKey); err != nil {
		slog.Warn("clear persisted session failed", "error", err)
	}
	f.markLoggedOut()
}

func (f *AuthFlow) markLoggedOut() {
	f.store.ClearAuth()
	f.store.SetLoading(false)
}
