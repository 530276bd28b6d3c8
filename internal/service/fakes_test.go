package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/arturoeanton/familyhub-auth/internal/domain"
	"github.com/arturoeanton/familyhub-auth/internal/port"
)

// fakeCarrier stands in for the gateway's cookie jar.
type fakeCarrier struct {
	mu    sync.Mutex
	value string
}

func (c *fakeCarrier) set(v string) {
	c.mu.Lock()
	c.value = v
	c.mu.Unlock()
}

func (c *fakeCarrier) get() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.value
}

func (c *fakeCarrier) Snapshot() domain.PersistedSession {
	v := c.get()
	if v == "" {
		return domain.PersistedSession{}
	}
	return domain.PersistedSession{Cookies: []domain.StoredCookie{{Name: "fh_session", Value: v}}}
}

func (c *fakeCarrier) Restore(s domain.PersistedSession) {
	if len(s.Cookies) > 0 {
		c.set(s.Cookies[0].Value)
	}
}

func (c *fakeCarrier) Reset() { c.set("") }

// fakeGateway scripts the Auth API.
type fakeGateway struct {
	carrier *fakeCarrier

	mu           sync.Mutex
	loginErr     error
	registerErr  error
	logoutErr    error
	refreshErr   error
	meErrs       []error // consumed in order, nil when exhausted
	refreshGate  chan struct{}
	registerGate chan struct{}
	user         domain.User
	lastCreds    domain.Credentials
	loginCalls   int
	logoutCalls  int
	refreshCalls int
	meCalls      int
}

func newFakeGateway(c *fakeCarrier) *fakeGateway {
	return &fakeGateway{
		carrier: c,
		user:    domain.User{ID: "u1", Email: "jo@example.com", Name: "Jo"},
	}
}

func (g *fakeGateway) Login(_ context.Context, creds domain.Credentials) (*domain.AuthResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.loginCalls++
	g.lastCreds = creds
	if g.loginErr != nil {
		return nil, g.loginErr
	}
	g.carrier.set("s1")
	return &domain.AuthResult{
		User:    g.user,
		Session: domain.CookieSession(time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)),
	}, nil
}

func (g *fakeGateway) Register(ctx context.Context, reg domain.Registration) (*domain.User, error) {
	g.mu.Lock()
	gate := g.registerGate
	g.mu.Unlock()
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if g.registerErr != nil {
		return nil, g.registerErr
	}
	u := g.user
	u.Email = reg.Email
	return &u, nil
}

func (g *fakeGateway) Logout(context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.logoutCalls++
	return g.logoutErr
}

func (g *fakeGateway) RefreshToken(ctx context.Context) (*domain.TokenInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	g.mu.Lock()
	g.refreshCalls++
	gate, err := g.refreshGate, g.refreshErr
	g.mu.Unlock()
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}
	t := domain.CookieSession(time.Date(2031, 1, 1, 0, 0, 0, 0, time.UTC))
	return &t, nil
}

func (g *fakeGateway) CurrentUser(context.Context) (*domain.User, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.meCalls++
	if len(g.meErrs) > 0 {
		err := g.meErrs[0]
		g.meErrs = g.meErrs[1:]
		if err != nil {
			return nil, err
		}
	}
	u := g.user
	return &u, nil
}

func (g *fakeGateway) UpdateProfile(_ context.Context, patch domain.UserPatch) (*domain.User, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.user = patch.Apply(g.user)
	u := g.user
	return &u, nil
}

func (g *fakeGateway) ChangePassword(context.Context, domain.PasswordChange) error {
	return nil
}

func (g *fakeGateway) counts() (login, logout, refresh, me int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.loginCalls, g.logoutCalls, g.refreshCalls, g.meCalls
}

// fakeFamily answers the admin lookup, optionally hanging until the
// context expires.
type fakeFamily struct {
	isAdmin bool
	err     error
	hang    bool
	// seen is called with the lookup context before answering.
	seen func(ctx context.Context)
}

func (f *fakeFamily) IsUserFamilyAdmin(ctx context.Context) (bool, error) {
	if f.seen != nil {
		f.seen(ctx)
	}
	if f.hang {
		<-ctx.Done()
		return false, ctx.Err()
	}
	return f.isAdmin, f.err
}

type fakeIdentity struct{ fp string }

func (f fakeIdentity) Fingerprint() (string, error) {
	if f.fp == "" {
		return "", errors.New("no identifiers")
	}
	return f.fp, nil
}

type fakeDevices struct {
	mu   sync.Mutex
	seen []string
}

func (f *fakeDevices) RecognizeDevice(_ context.Context, fp string) (*domain.DeviceRecognition, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seen = append(f.seen, fp)
	return &domain.DeviceRecognition{Recognized: false, RiskScore: 0.7}, nil
}

// fakeSecurity scores passwords by length and flags a fixed breach list.
type fakeSecurity struct {
	mu        sync.Mutex
	breached  map[string]bool
	breachErr error
	// delays lets a test hold back a specific password's score.
	delays      map[string]chan struct{}
	breachCalls int
	scoreCalls  int
}

func (f *fakeSecurity) CheckBreach(_ context.Context, password string) (*domain.BreachResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.breachCalls++
	if f.breachErr != nil {
		return nil, f.breachErr
	}
	if f.breached[password] {
		return &domain.BreachResult{Compromised: true, Occurrences: 42}, nil
	}
	return &domain.BreachResult{}, nil
}

func (f *fakeSecurity) ScoreStrength(ctx context.Context, password string) (*domain.StrengthResult, error) {
	f.mu.Lock()
	f.scoreCalls++
	gate := f.delays[password]
	f.mu.Unlock()
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	score := len(password) / 3
	if score > 4 {
		score = 4
	}
	return &domain.StrengthResult{Password: password, Score: score}, nil
}

// fakeReset records reset requests.
type fakeReset struct {
	mu         sync.Mutex
	requestErr error
	resetErr   error
	requests   []domain.PasswordResetRequest
	resets     []string
	attempts   int
}

func (f *fakeReset) RequestPasswordReset(_ context.Context, req domain.PasswordResetRequest) (*domain.PasswordResetReceipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	if f.requestErr != nil {
		return nil, f.requestErr
	}
	if f.attempts == 0 {
		f.attempts = 3
	} else {
		f.attempts--
	}
	return &domain.PasswordResetReceipt{AttemptsRemaining: f.attempts}, nil
}

func (f *fakeReset) ResetPassword(_ context.Context, token, password string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resets = append(f.resets, token+":"+password)
	return f.resetErr
}

type fakeQuestions struct {
	q   *domain.SecurityQuestion
	err error
}

func (f fakeQuestions) SecurityQuestion(context.Context, string) (*domain.SecurityQuestion, error) {
	return f.q, f.err
}

// fakeInvitations scripts the invitation endpoints.
type fakeInvitations struct {
	mu         sync.Mutex
	previewErr error
	sendErr    error
	previews   []domain.InviteBasicInfo
	sent       []domain.InvitationRequest
	qrCalls    int
	// previewGate, when set, holds every preview until closed.
	previewGate chan struct{}
}

func (f *fakeInvitations) PreviewInvitation(ctx context.Context, basic domain.InviteBasicInfo) (*domain.InvitationPreview, error) {
	f.mu.Lock()
	f.previews = append(f.previews, basic)
	gate, err := f.previewGate, f.previewErr
	f.mu.Unlock()
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}
	return &domain.InvitationPreview{
		Impact:          domain.FamilyImpact{CurrentMembers: 3, ProjectedMembers: 4},
		RecommendedRole: "parent_admin",
		Permissions:     []string{"tasks:write", "calendar:read"},
	}, nil
}

func (f *fakeInvitations) SendInvitation(_ context.Context, req domain.InvitationRequest) (*domain.InvitationResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, req)
	if f.sendErr != nil {
		return nil, f.sendErr
	}
	return &domain.InvitationResult{ID: "inv-1", Email: req.Basic.Email, Status: "pending"}, nil
}

func (f *fakeInvitations) GenerateInvitationQR(_ context.Context, basic domain.InviteBasicInfo, days int) (*domain.QRCode, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.qrCalls++
	return &domain.QRCode{ImageDataURL: "data:image/png;base64,AAAA", InviteURL: "https://fh.example/i/" + basic.Email}, nil
}

func (f *fakeInvitations) previewCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.previews)
}

var (
	_ port.AuthGateway          = (*fakeGateway)(nil)
	_ port.SessionCarrier       = (*fakeCarrier)(nil)
	_ port.FamilyAdminLookup    = (*fakeFamily)(nil)
	_ port.PasswordSecurity     = (*fakeSecurity)(nil)
	_ port.PasswordResetGateway = (*fakeReset)(nil)
	_ port.InvitationService    = (*fakeInvitations)(nil)
)
