package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/arturoeanton/familyhub-auth/internal/adapter/store"
	"github.com/arturoeanton/familyhub-auth/internal/domain"
	"github.com/arturoeanton/familyhub-auth/internal/port"
	"github.com/arturoeanton/familyhub-auth/internal/session"
)

const testKey = "kiosk"

type flowFixture struct {
	flow    *AuthFlow
	gateway *fakeGateway
	carrier *fakeCarrier
	persist *store.MemoryStore
	store   *session.Store
	devices *fakeDevices
}

func newFlowFixture(family *fakeFamily, timeout time.Duration) *flowFixture {
	carrier := &fakeCarrier{}
	fx := &flowFixture{
		gateway: newFakeGateway(carrier),
		carrier: carrier,
		persist: store.NewMemoryStore(10),
		store:   session.NewStore(),
		devices: &fakeDevices{},
	}
	if family == nil {
		family = &fakeFamily{}
	}
	fx.flow = NewAuthFlow(AuthFlowDeps{
		Gateway:        fx.gateway,
		Carrier:        carrier,
		Persistence:    fx.persist,
		FamilyAdmin:    family,
		Devices:        fx.devices,
		Identity:       fakeIdentity{fp: "fp-1"},
		Store:          fx.store,
		SessionKey:     testKey,
		RequestTimeout: timeout,
	})
	return fx
}

func (fx *flowFixture) seedSession(t *testing.T) {
	t.Helper()
	err := fx.persist.SaveSession(context.Background(), domain.PersistedSession{
		Key:     testKey,
		Cookies: []domain.StoredCookie{{Name: "fh_session", Value: "s1"}},
	})
	if err != nil {
		t.Fatalf("seed session: %v", err)
	}
}

func (fx *flowFixture) hasPersisted() bool {
	_, err := fx.persist.LoadSession(context.Background(), testKey)
	return err == nil
}

func TestLoginCommitsSessionBeforeAdminLookup(t *testing.T) {
	var persistedAtLookup bool
	var fx *flowFixture
	family := &fakeFamily{isAdmin: true, seen: func(context.Context) {
		persistedAtLookup = fx.hasPersisted()
	}}
	fx = newFlowFixture(family, time.Second)

	out, err := fx.flow.Login(context.Background(), domain.Credentials{Email: "jo@example.com", Password: "pw"})
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if !persistedAtLookup {
		t.Fatal("admin lookup ran before the session was persisted")
	}
	if !out.User.IsFamilyAdmin {
		t.Fatal("expected family admin flag")
	}
	if out.Device == nil || out.Device.Recognized {
		t.Fatalf("expected unrecognized device verdict, got %+v", out.Device)
	}

	st := fx.store.State()
	if !st.IsAuthenticated || st.IsLoading || st.User == nil || !st.User.IsFamilyAdmin {
		t.Fatalf("unexpected state: %+v", st)
	}
	if st.Session.Mode != domain.SessionCookieManaged {
		t.Fatalf("expected cookie session, got %v", st.Session.Mode)
	}
	if fx.gateway.lastCreds.DeviceFingerprint != "fp-1" {
		t.Fatalf("fingerprint not attached: %+v", fx.gateway.lastCreds)
	}
}

func TestLoginAdminLookupTimeoutIsNotAdmin(t *testing.T) {
	fx := newFlowFixture(&fakeFamily{hang: true}, 30*time.Millisecond)

	out, err := fx.flow.Login(context.Background(), domain.Credentials{Email: "jo@example.com", Password: "pw"})
	if err != nil {
		t.Fatalf("login must not fail on admin lookup timeout: %v", err)
	}
	if out.User.IsFamilyAdmin {
		t.Fatal("expected admin=false after timeout")
	}
	st := fx.store.State()
	if !st.IsAuthenticated || st.User.IsFamilyAdmin {
		t.Fatalf("unexpected state: %+v", st)
	}
}

func TestLoginAdminLookupErrorIsNotAdmin(t *testing.T) {
	fx := newFlowFixture(&fakeFamily{err: errors.New("boom")}, time.Second)
	out, err := fx.flow.Login(context.Background(), domain.Credentials{Email: "a", Password: "b"})
	if err != nil || out.User.IsFamilyAdmin {
		t.Fatalf("expected login without admin flag, got %+v %v", out, err)
	}
}

func TestLoginFailureClassification(t *testing.T) {
	tests := []struct {
		name string
		err  error
		kind port.ErrorKind
		msg  string
	}{
		{
			name: "bad credentials",
			err:  &port.AuthError{Kind: port.KindUnauthenticated, Status: 401, Message: "Invalid email or password"},
			kind: port.KindCredentials,
			msg:  "Invalid email or password",
		},
		{
			name: "structured lockout",
			err: &port.AuthError{Kind: port.KindUnauthenticated, Status: 401, Message: "Try again later",
				Lockout: &domain.AccountLockoutStatus{Locked: true}},
			kind: port.KindLockout,
			msg:  "Try again later",
		},
		{
			name: "legacy lockout message",
			err:  &port.AuthError{Kind: port.KindUnauthenticated, Status: 401, Message: "Account locked after multiple failed attempts"},
			kind: port.KindLockout,
			msg:  "Account locked after multiple failed attempts",
		},
		{
			name: "network",
			err:  context.DeadlineExceeded,
			kind: port.KindNetwork,
			msg:  port.MsgNetwork,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fx := newFlowFixture(nil, time.Second)
			fx.gateway.loginErr = tt.err

			_, err := fx.flow.Login(context.Background(), domain.Credentials{Email: "a", Password: "b"})
			if err == nil {
				t.Fatal("expected error")
			}
			if got := port.KindOf(err); got != tt.kind {
				t.Fatalf("kind = %v, want %v", got, tt.kind)
			}
			if got := port.UserMessage(err); got != tt.msg {
				t.Fatalf("message = %q, want %q", got, tt.msg)
			}
			st := fx.store.State()
			if st.IsAuthenticated || st.IsLoading {
				t.Fatalf("expected unauthenticated idle state, got %+v", st)
			}
		})
	}
}

func TestRegisterFailureNeverLogsIn(t *testing.T) {
	fx := newFlowFixture(nil, time.Second)
	fx.gateway.registerErr = &port.AuthError{Kind: port.KindConflict, Status: 409, Message: "Email already registered"}

	_, err := fx.flow.Register(context.Background(), domain.Registration{Email: "jo@example.com", Password: "pw", Name: "Jo"})
	if port.UserMessage(err) != "Email already registered" {
		t.Fatalf("unexpected error: %v", err)
	}
	if login, _, _, _ := fx.gateway.counts(); login != 0 {
		t.Fatalf("login attempted %d times after failed registration", login)
	}
	if fx.store.State().IsLoading {
		t.Fatal("failed registration left the store loading")
	}
}

func TestRegisterThenAutoLoginFailure(t *testing.T) {
	fx := newFlowFixture(nil, time.Second)
	fx.gateway.loginErr = &port.AuthError{Kind: port.KindUnauthenticated, Status: 401, Message: "Invalid credentials"}

	_, err := fx.flow.Register(context.Background(), domain.Registration{Email: "jo@example.com", Password: "pw", Name: "Jo"})
	if port.UserMessage(err) != "Invalid credentials" {
		t.Fatalf("expected login error message, got %v", err)
	}
	if st := fx.store.State(); st.User != nil || st.IsAuthenticated {
		t.Fatalf("expected no user, got %+v", st)
	}
}

func TestRegisterAutoLogin(t *testing.T) {
	fx := newFlowFixture(nil, time.Second)
	out, err := fx.flow.Register(context.Background(), domain.Registration{Email: "new@example.com", Password: "pw", Name: "New"})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if fx.gateway.lastCreds.Email != "new@example.com" || fx.gateway.lastCreds.Password != "pw" {
		t.Fatalf("auto-login used wrong credentials: %+v", fx.gateway.lastCreds)
	}
	if out.User.ID == "" || !fx.store.State().IsAuthenticated {
		t.Fatal("expected authenticated session after registration")
	}
}

func TestLogoutClearsEvenWhenRemoteFails(t *testing.T) {
	fx := newFlowFixture(nil, time.Second)
	if _, err := fx.flow.Login(context.Background(), domain.Credentials{Email: "a", Password: "b"}); err != nil {
		t.Fatalf("login: %v", err)
	}
	fx.gateway.logoutErr = port.NetworkError(errors.New("connection refused"))

	fx.flow.Logout(context.Background())

	st := fx.store.State()
	if st.IsAuthenticated || st.User != nil || st.IsLoading {
		t.Fatalf("expected logged-out state, got %+v", st)
	}
	if fx.carrier.get() != "" {
		t.Fatal("cookie jar not reset")
	}
	if fx.hasPersisted() {
		t.Fatal("persisted session not cleared")
	}
}

func TestRefreshWithoutPersistedSession(t *testing.T) {
	fx := newFlowFixture(nil, time.Second)
	if fx.flow.RefreshAccessToken(context.Background()) {
		t.Fatal("expected refresh to fail")
	}
	if _, _, refresh, _ := fx.gateway.counts(); refresh != 0 {
		t.Fatalf("gateway refresh called %d times", refresh)
	}
	if st := fx.store.State(); st.IsAuthenticated || st.IsLoading {
		t.Fatalf("unexpected state: %+v", st)
	}
}

func TestRefreshFailureClearsAuth(t *testing.T) {
	fx := newFlowFixture(nil, time.Second)
	if _, err := fx.flow.Login(context.Background(), domain.Credentials{Email: "a", Password: "b"}); err != nil {
		t.Fatalf("login: %v", err)
	}
	fx.gateway.refreshErr = &port.AuthError{Kind: port.KindUnauthenticated, Status: 401}

	if fx.flow.RefreshAccessToken(context.Background()) {
		t.Fatal("expected refresh failure")
	}
	st := fx.store.State()
	if st.IsAuthenticated || st.Session.Active() {
		t.Fatalf("expected no partial session, got %+v", st)
	}
	if fx.hasPersisted() {
		t.Fatal("persisted session should be cleared")
	}
}

func TestRefreshUpdatesTokensKeepsUser(t *testing.T) {
	fx := newFlowFixture(nil, time.Second)
	if _, err := fx.flow.Login(context.Background(), domain.Credentials{Email: "a", Password: "b"}); err != nil {
		t.Fatalf("login: %v", err)
	}
	if !fx.flow.RefreshAccessToken(context.Background()) {
		t.Fatal("expected refresh to succeed")
	}
	st := fx.store.State()
	if st.User == nil || st.User.ID != "u1" {
		t.Fatalf("identity changed: %+v", st.User)
	}
	if st.Session.ExpiresAt.Year() != 2031 {
		t.Fatalf("tokens not updated: %+v", st.Session)
	}
}

func TestConcurrentRefreshesCoalesce(t *testing.T) {
	fx := newFlowFixture(nil, time.Second)
	fx.seedSession(t)
	gate := make(chan struct{})
	fx.gateway.refreshGate = gate

	const n = 5
	var wg sync.WaitGroup
	results := make([]bool, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = fx.flow.RefreshAccessToken(context.Background())
		}(i)
	}

	deadline := time.Now().Add(time.Second)
	for {
		if _, _, refresh, _ := fx.gateway.counts(); refresh > 0 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("refresh never reached the gateway")
		}
		time.Sleep(time.Millisecond)
	}
	time.Sleep(50 * time.Millisecond)
	close(gate)
	wg.Wait()

	if _, _, refresh, _ := fx.gateway.counts(); refresh != 1 {
		t.Fatalf("expected 1 gateway refresh, got %d", refresh)
	}
	for i, ok := range results {
		if !ok {
			t.Fatalf("caller %d did not see the shared success", i)
		}
	}
}

func TestInitialize(t *testing.T) {
	t.Run("no persisted session", func(t *testing.T) {
		fx := newFlowFixture(nil, time.Second)
		fx.flow.Initialize(context.Background())
		st := fx.store.State()
		if st.IsAuthenticated || st.IsLoading {
			t.Fatalf("unexpected state: %+v", st)
		}
		if _, _, _, me := fx.gateway.counts(); me != 0 {
			t.Fatal("profile fetched without a session")
		}
	})

	t.Run("unauthenticated resolves silently", func(t *testing.T) {
		fx := newFlowFixture(nil, time.Second)
		fx.seedSession(t)
		fx.gateway.meErrs = []error{&port.AuthError{Kind: port.KindUnauthenticated, Status: 401}}

		fx.flow.Initialize(context.Background())

		if st := fx.store.State(); st.IsAuthenticated || st.IsLoading {
			t.Fatalf("unexpected state: %+v", st)
		}
		if _, _, refresh, _ := fx.gateway.counts(); refresh != 0 {
			t.Fatal("401 must not trigger a refresh")
		}
		if fx.hasPersisted() {
			t.Fatal("stale session should be cleared")
		}
	})

	t.Run("other failure refreshes once then retries", func(t *testing.T) {
		fx := newFlowFixture(&fakeFamily{isAdmin: true}, time.Second)
		fx.seedSession(t)
		fx.gateway.meErrs = []error{&port.AuthError{Kind: port.KindUnknown, Status: 500}}

		fx.flow.Initialize(context.Background())

		st := fx.store.State()
		if !st.IsAuthenticated || st.IsLoading || !st.User.IsFamilyAdmin {
			t.Fatalf("expected restored admin session, got %+v", st)
		}
		if _, _, refresh, me := fx.gateway.counts(); refresh != 1 || me != 2 {
			t.Fatalf("expected 1 refresh and 2 profile fetches, got %d and %d", refresh, me)
		}
		if fx.carrier.get() != "s1" {
			t.Fatal("cookie jar not restored")
		}
	})

	t.Run("refresh failure gives up", func(t *testing.T) {
		fx := newFlowFixture(nil, time.Second)
		fx.seedSession(t)
		fx.gateway.meErrs = []error{&port.AuthError{Kind: port.KindNetwork}}
		fx.gateway.refreshErr = &port.AuthError{Kind: port.KindUnauthenticated, Status: 401}

		fx.flow.Initialize(context.Background())

		if st := fx.store.State(); st.IsAuthenticated || st.IsLoading {
			t.Fatalf("unexpected state: %+v", st)
		}
	})
}

func TestUpdateProfileKeepsAdminFlag(t *testing.T) {
	fx := newFlowFixture(&fakeFamily{isAdmin: true}, time.Second)
	if _, err := fx.flow.Login(context.Background(), domain.Credentials{Email: "a", Password: "b"}); err != nil {
		t.Fatalf("login: %v", err)
	}
	name := "Joanna"
	user, err := fx.flow.UpdateProfile(context.Background(), domain.UserPatch{Name: &name})
	if err != nil {
		t.Fatalf("update profile: %v", err)
	}
	if user.Name != "Joanna" || !user.IsFamilyAdmin {
		t.Fatalf("unexpected user: %+v", user)
	}
	if st := fx.store.State(); !st.IsAuthenticated || st.User.Name != "Joanna" {
		t.Fatalf("store not updated: %+v", st)
	}
}

func TestRefreshIsLoadingWhileInFlight(t *testing.T) {
	fx := newFlowFixture(nil, time.Second)
	if _, err := fx.flow.Login(context.Background(), domain.Credentials{Email: "a", Password: "b"}); err != nil {
		t.Fatalf("login: %v", err)
	}
	gate := make(chan struct{})
	fx.gateway.refreshGate = gate

	done := make(chan bool)
	go func() { done <- fx.flow.RefreshAccessToken(context.Background()) }()

	waitFor(t, "gateway refresh", func() bool {
		_, _, refresh, _ := fx.gateway.counts()
		return refresh > 0
	})
	if !fx.store.State().IsLoading {
		t.Fatal("store should be loading during refresh")
	}

	close(gate)
	if !<-done {
		t.Fatal("expected refresh to succeed")
	}
	if st := fx.store.State(); st.IsLoading || !st.IsAuthenticated {
		t.Fatalf("unexpected state after refresh: %+v", st)
	}
}

func TestRegisterIsLoadingWhileInFlight(t *testing.T) {
	fx := newFlowFixture(nil, time.Second)
	fx.store.SetLoading(false)
	gate := make(chan struct{})
	fx.gateway.registerGate = gate

	done := make(chan error)
	go func() {
		_, err := fx.flow.Register(context.Background(), domain.Registration{Email: "new@example.com", Password: "pw", Name: "New"})
		done <- err
	}()

	waitFor(t, "loading", func() bool { return fx.store.State().IsLoading })
	if login, _, _, _ := fx.gateway.counts(); login != 0 {
		t.Fatal("login started before registration finished")
	}

	close(gate)
	if err := <-done; err != nil {
		t.Fatalf("register: %v", err)
	}
	if st := fx.store.State(); st.IsLoading || !st.IsAuthenticated {
		t.Fatalf("unexpected state after registration: %+v", st)
	}
}

func TestRefreshIgnoresCallerCancellation(t *testing.T) {
	fx := newFlowFixture(nil, time.Second)
	if _, err := fx.flow.Login(context.Background(), domain.Credentials{Email: "a", Password: "b"}); err != nil {
		t.Fatalf("login: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if !fx.flow.RefreshAccessToken(ctx) {
		t.Fatal("a cancelled caller must not fail the shared refresh")
	}
	if st := fx.store.State(); !st.IsAuthenticated {
		t.Fatalf("session wiped: %+v", st)
	}
	if !fx.hasPersisted() {
		t.Fatal("persisted session should survive")
	}
}
