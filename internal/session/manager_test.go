package session

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/eco-green-group4/evmarket-web/internal/auth"
	"github.com/eco-green-group4/evmarket-web/internal/authclient"
	"github.com/eco-green-group4/evmarket-web/internal/credstore"
	"github.com/eco-green-group4/evmarket-web/internal/infrastructure/config"
	"github.com/eco-green-group4/evmarket-web/internal/infrastructure/logging"
)

// fakeService is an in-memory Service. Zero values behave like an empty store.
type fakeService struct {
	mu sync.Mutex

	token   string
	refresh string
	expiry  time.Time

	loginSess  *authclient.Session
	loginErr   error
	meUser     *auth.User
	meErr      error
	meGate     chan struct{} // when set, CurrentUser blocks until it is closed
	profile    *auth.User
	profileErr error
	refreshOK  bool

	logouts      int
	meCalls      int
	profileCalls int
	refreshCalls int
}

func (f *fakeService) Login(_ context.Context, _, _ string) (*authclient.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.loginErr != nil {
		return nil, f.loginErr
	}
	f.token = f.loginSess.Token
	return f.loginSess, nil
}

func (f *fakeService) Register(ctx context.Context, req authclient.RegisterRequest) (*authclient.Session, error) {
	return f.Login(ctx, req.Email, req.Password)
}

func (f *fakeService) Logout() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.logouts++
	f.token = ""
	f.refresh = ""
}

func (f *fakeService) CurrentUser(ctx context.Context) (*auth.User, error) {
	f.mu.Lock()
	f.meCalls++
	gate := f.meGate
	f.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	return f.meUser, f.meErr
}

func (f *fakeService) UpdateProfile(_ context.Context, _ authclient.ProfileUpdate) (*auth.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.profileCalls++
	return f.profile, f.profileErr
}

func (f *fakeService) RefreshToken(_ context.Context) (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refreshCalls++
	if !f.refreshOK {
		f.token = ""
		return "", false
	}
	f.token = "refreshed"
	return f.token, true
}

func (f *fakeService) IsAuthenticated() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.token != ""
}

func (f *fakeService) TokenExpiry() (time.Time, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.expiry, !f.expiry.IsZero() && f.token != ""
}

func (f *fakeService) counts() (logouts, me, profile, refresh int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.logouts, f.meCalls, f.profileCalls, f.refreshCalls
}

func newTestManager(svc Service) *Manager {
	return NewManager(svc, auth.DefaultClassifier(), logging.Discard())
}

// recorder collects delivered snapshots.
type recorder struct {
	mu    sync.Mutex
	snaps []Snapshot
}

func (r *recorder) record(s Snapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.snaps = append(r.snaps, s)
}

func (r *recorder) states() []State {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]State, len(r.snaps))
	for i, s := range r.snaps {
		out[i] = s.State
	}
	return out
}

var memberUser = &auth.User{ID: auth.NumericID(7), Email: "a@b.com", RoleID: auth.NumericID(3)}
var adminUser = &auth.User{ID: auth.NumericID(1), Email: "boss@evmarket.com", RoleID: auth.NumericID(1)}

func TestNewManager_InitialSnapshot(t *testing.T) {
	m := newTestManager(&fakeService{})
	snap := m.Snapshot()

	if snap.State != StateUninitialized {
		t.Errorf("State = %v, want uninitialized", snap.State)
	}
	if !snap.Loading {
		t.Error("Loading = false before Init")
	}
	if snap.IsAuthenticated || snap.User != nil {
		t.Error("fresh manager must not be authenticated")
	}
	if snap.Role != auth.RoleAnonymous {
		t.Errorf("Role = %q, want anonymous", snap.Role)
	}
}

func TestInit_NoToken(t *testing.T) {
	svc := &fakeService{}
	m := newTestManager(svc)
	rec := &recorder{}
	m.Subscribe(rec.record)

	if err := m.Init(context.Background()); err != nil {
		t.Fatalf("Init() error = %v", err)
	}

	snap := m.Snapshot()
	if snap.State != StateAnonymous || snap.Loading {
		t.Errorf("snapshot = %+v, want settled anonymous", snap)
	}
	if _, me, _, _ := svc.counts(); me != 0 {
		t.Errorf("CurrentUser called %d times, want 0", me)
	}
	if got := rec.states(); len(got) != 2 || got[0] != StateLoading || got[1] != StateAnonymous {
		t.Errorf("delivered states = %v, want [loading anonymous]", got)
	}
}

func TestInit_ValidToken(t *testing.T) {
	svc := &fakeService{token: "t", meUser: adminUser}
	m := newTestManager(svc)

	if err := m.Init(context.Background()); err != nil {
		t.Fatalf("Init() error = %v", err)
	}

	snap := m.Snapshot()
	if snap.State != StateAuthenticated || !snap.IsAuthenticated || snap.Loading {
		t.Errorf("snapshot = %+v, want authenticated", snap)
	}
	if snap.Role != auth.RoleAdmin {
		t.Errorf("Role = %q, want admin", snap.Role)
	}
	if snap.User == adminUser {
		t.Error("snapshot should hold a copy of the user")
	}
}

func TestInit_RejectedToken(t *testing.T) {
	svc := &fakeService{token: "t", meErr: &authclient.APIError{Op: "me", Status: 401, Kind: authclient.ErrUnauthenticated}}
	m := newTestManager(svc)

	if err := m.Init(context.Background()); err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	if snap := m.Snapshot(); snap.State != StateAnonymous || snap.IsAuthenticated {
		t.Errorf("snapshot = %+v, want anonymous", snap)
	}
}

func TestInit_NilUser(t *testing.T) {
	m := newTestManager(&fakeService{token: "t"})

	if err := m.Init(context.Background()); err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	if snap := m.Snapshot(); snap.State != StateAnonymous {
		t.Errorf("State = %v, want anonymous", snap.State)
	}
}

func TestInit_RunsOnce(t *testing.T) {
	svc := &fakeService{token: "t", meUser: memberUser}
	m := newTestManager(svc)

	if err := m.Init(context.Background()); err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	if err := m.Init(context.Background()); !errors.Is(err, ErrAlreadyInitialized) {
		t.Errorf("second Init() error = %v, want ErrAlreadyInitialized", err)
	}
	if _, me, _, _ := svc.counts(); me != 1 {
		t.Errorf("CurrentUser called %d times, want 1", me)
	}
}

func TestInit_StaleResultDiscardedAfterLogin(t *testing.T) {
	gate := make(chan struct{})
	svc := &fakeService{
		token:     "old",
		meUser:    memberUser,
		meGate:    gate,
		loginSess: &authclient.Session{Token: "new", User: adminUser},
	}
	m := newTestManager(svc)

	done := make(chan error, 1)
	go func() { done <- m.Init(context.Background()) }()

	waitFor(t, func() bool { return m.Snapshot().State == StateLoading })

	if _, err := m.Login(context.Background(), "boss@evmarket.com", "pw"); err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	close(gate)

	if err := <-done; err != nil {
		t.Fatalf("Init() error = %v", err)
	}

	snap := m.Snapshot()
	if snap.Role != auth.RoleAdmin || snap.User.Email != adminUser.Email {
		t.Errorf("snapshot = %+v, want the login result to win", snap)
	}
}

func TestInit_StaleResultDiscardedAfterLogout(t *testing.T) {
	gate := make(chan struct{})
	svc := &fakeService{token: "t", meUser: memberUser, meGate: gate}
	m := newTestManager(svc)

	done := make(chan error, 1)
	go func() { done <- m.Init(context.Background()) }()
	waitFor(t, func() bool { return m.Snapshot().State == StateLoading })

	m.Logout()
	close(gate)
	<-done

	if snap := m.Snapshot(); snap.State != StateAnonymous {
		t.Errorf("State = %v, want anonymous", snap.State)
	}
}

func TestInit_AfterLoginKeepsSession(t *testing.T) {
	svc := &fakeService{loginSess: &authclient.Session{Token: "t", User: memberUser}}
	m := newTestManager(svc)

	if _, err := m.Login(context.Background(), "a@b.com", "pw"); err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	if err := m.Init(context.Background()); err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	if snap := m.Snapshot(); snap.State != StateAuthenticated {
		t.Errorf("State = %v, want authenticated", snap.State)
	}
	if _, me, _, _ := svc.counts(); me != 0 {
		t.Errorf("CurrentUser called %d times, want 0", me)
	}
}

func TestLogin(t *testing.T) {
	svc := &fakeService{loginSess: &authclient.Session{Token: "t", User: memberUser}}
	m := newTestManager(svc)
	_ = m.Init(context.Background()) //nolint:errcheck // settles anonymous

	snap, err := m.Login(context.Background(), "a@b.com", "pw")
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	if snap.State != StateAuthenticated || snap.Role != auth.RoleUser || snap.Loading {
		t.Errorf("snapshot = %+v, want authenticated user", snap)
	}
}

func TestLogin_FailureLeavesStateUnchanged(t *testing.T) {
	loginErr := &authclient.APIError{Op: "login", Status: 401, Message: "bad creds", Kind: authclient.ErrInvalidCredentials}
	svc := &fakeService{loginErr: loginErr}
	m := newTestManager(svc)
	_ = m.Init(context.Background()) //nolint:errcheck // settles anonymous
	before := m.Snapshot()

	_, err := m.Login(context.Background(), "a@b.com", "wrong")
	if err == nil || err.Error() != "bad creds" {
		t.Fatalf("Login() error = %v, want bad creds", err)
	}
	if !errors.Is(err, authclient.ErrInvalidCredentials) {
		t.Errorf("Login() error kind = %v", err)
	}
	if after := m.Snapshot(); after.Version != before.Version || after.State != before.State {
		t.Errorf("snapshot changed: before %+v after %+v", before, after)
	}
}

func TestRegister(t *testing.T) {
	svc := &fakeService{loginSess: &authclient.Session{Token: "t", User: memberUser}}
	m := newTestManager(svc)

	snap, err := m.Register(context.Background(), authclient.RegisterRequest{Email: "a@b.com", Password: "pw"})
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if snap.State != StateAuthenticated {
		t.Errorf("State = %v, want authenticated", snap.State)
	}
}

func TestLogout(t *testing.T) {
	svc := &fakeService{token: "t", meUser: memberUser}
	m := newTestManager(svc)
	_ = m.Init(context.Background()) //nolint:errcheck // settles authenticated

	snap := m.Logout()
	if snap.State != StateAnonymous || snap.IsAuthenticated || snap.User != nil {
		t.Errorf("snapshot = %+v, want anonymous", snap)
	}
	if svc.IsAuthenticated() {
		t.Error("service still holds a token")
	}
	if logouts, _, _, _ := svc.counts(); logouts != 1 {
		t.Errorf("service Logout called %d times, want 1", logouts)
	}
}

func TestUpdateProfile(t *testing.T) {
	updated := memberUser.Clone()
	updated.FullName = "X"
	svc := &fakeService{token: "t", meUser: memberUser, profile: updated}
	m := newTestManager(svc)
	_ = m.Init(context.Background()) //nolint:errcheck // settles authenticated
	before := m.Snapshot()

	snap, err := m.UpdateProfile(context.Background(), authclient.ProfileUpdate{"fullName": "X"})
	if err != nil {
		t.Fatalf("UpdateProfile() error = %v", err)
	}
	if snap.User.FullName != "X" {
		t.Errorf("FullName = %q, want X", snap.User.FullName)
	}
	if !snap.IsAuthenticated || snap.State != StateAuthenticated || snap.Role != before.Role {
		t.Errorf("snapshot = %+v, want unchanged authentication", snap)
	}
	if snap.Version <= before.Version {
		t.Error("Version did not advance")
	}
}

func TestUpdateProfile_RequiresAuthentication(t *testing.T) {
	svc := &fakeService{}
	m := newTestManager(svc)
	_ = m.Init(context.Background()) //nolint:errcheck // settles anonymous

	if _, err := m.UpdateProfile(context.Background(), authclient.ProfileUpdate{"fullName": "X"}); !errors.Is(err, ErrNotAuthenticated) {
		t.Errorf("UpdateProfile() error = %v, want ErrNotAuthenticated", err)
	}
	if _, _, profile, _ := svc.counts(); profile != 0 {
		t.Errorf("service UpdateProfile called %d times, want 0", profile)
	}
}

func TestUpdateProfile_FailureLeavesStateUnchanged(t *testing.T) {
	svc := &fakeService{token: "t", meUser: memberUser, profileErr: &authclient.APIError{Kind: authclient.ErrValidation, Message: "phone is invalid"}}
	m := newTestManager(svc)
	_ = m.Init(context.Background()) //nolint:errcheck // settles authenticated
	before := m.Snapshot()

	if _, err := m.UpdateProfile(context.Background(), authclient.ProfileUpdate{"phone": "x"}); err == nil {
		t.Fatal("UpdateProfile() expected error")
	}
	if after := m.Snapshot(); after.Version != before.Version {
		t.Error("snapshot changed after failed update")
	}
}

func TestRefresh(t *testing.T) {
	t.Run("success keeps session", func(t *testing.T) {
		svc := &fakeService{token: "t", meUser: memberUser, refreshOK: true}
		m := newTestManager(svc)
		_ = m.Init(context.Background()) //nolint:errcheck // settles authenticated

		if !m.Refresh(context.Background()) {
			t.Fatal("Refresh() = false, want true")
		}
		if m.Snapshot().State != StateAuthenticated {
			t.Error("session lost after successful refresh")
		}
	})

	t.Run("failure logs out", func(t *testing.T) {
		svc := &fakeService{token: "t", meUser: memberUser}
		m := newTestManager(svc)
		_ = m.Init(context.Background()) //nolint:errcheck // settles authenticated

		if m.Refresh(context.Background()) {
			t.Fatal("Refresh() = true, want false")
		}
		if m.Snapshot().State != StateAnonymous {
			t.Error("session still authenticated after failed refresh")
		}
	})

	t.Run("anonymous skips service", func(t *testing.T) {
		svc := &fakeService{}
		m := newTestManager(svc)
		_ = m.Init(context.Background()) //nolint:errcheck // settles anonymous

		if m.Refresh(context.Background()) {
			t.Error("Refresh() = true while anonymous")
		}
		if _, _, _, refresh := svc.counts(); refresh != 0 {
			t.Errorf("RefreshToken called %d times, want 0", refresh)
		}
	})
}

func TestSubscribe_Cancel(t *testing.T) {
	m := newTestManager(&fakeService{})
	rec := &recorder{}
	cancel := m.Subscribe(rec.record)
	cancel()

	_ = m.Init(context.Background()) //nolint:errcheck // settles anonymous
	if got := rec.states(); len(got) != 0 {
		t.Errorf("cancelled subscriber received %v", got)
	}
}

func TestSubscriber_DropsOlderSnapshots(t *testing.T) {
	rec := &recorder{}
	s := &subscriber{fn: rec.record}

	s.deliver(Snapshot{Version: 2, State: StateAnonymous})
	s.deliver(Snapshot{Version: 1, State: StateLoading})
	s.deliver(Snapshot{Version: 2, State: StateAnonymous})

	if got := rec.states(); len(got) != 1 || got[0] != StateAnonymous {
		t.Errorf("delivered = %v, want only version 2", got)
	}
}

func TestClose_DiscardsLateResults(t *testing.T) {
	gate := make(chan struct{})
	svc := &fakeService{token: "t", meUser: memberUser, meGate: gate}
	m := newTestManager(svc)
	rec := &recorder{}
	m.Subscribe(rec.record)

	done := make(chan error, 1)
	go func() { done <- m.Init(context.Background()) }()
	waitFor(t, func() bool { return m.Snapshot().State == StateLoading })

	m.Close()
	close(gate)
	<-done

	if snap := m.Snapshot(); snap.State != StateLoading {
		t.Errorf("State = %v, want loading (late result discarded)", snap.State)
	}
	if got := rec.states(); len(got) != 1 {
		t.Errorf("delivered after close: %v", got)
	}
	if err := m.Init(context.Background()); !errors.Is(err, ErrClosed) {
		t.Errorf("Init() after Close error = %v, want ErrClosed", err)
	}
}

// TestInit_UnauthorizedWithRealClient runs the manager against the real
// auth client and a backend that rejects the stored token.
func TestInit_UnauthorizedWithRealClient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/auth/me" {
			http.NotFound(w, r)
			return
		}
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"message":"token expired"}`)) //nolint:errcheck // test server
	}))
	defer srv.Close()

	store := credstore.NewMemoryStore()
	_ = store.Set(credstore.KeyToken, "stale-token")
	_ = store.Set(credstore.KeyRefreshToken, "stale-refresh")
	_ = store.Set(credstore.KeyUser, `{"id":7}`)

	client, err := authclient.New(config.BackendConfig{BaseURL: srv.URL, Timeout: 5}, store, logging.Discard())
	if err != nil {
		t.Fatalf("authclient.New() error = %v", err)
	}
	m := NewManager(client, auth.DefaultClassifier(), logging.Discard())

	if err := m.Init(context.Background()); err != nil {
		t.Fatalf("Init() error = %v", err)
	}

	if snap := m.Snapshot(); snap.State != StateAnonymous || snap.IsAuthenticated {
		t.Errorf("snapshot = %+v, want anonymous", snap)
	}
	for _, k := range credstore.CredentialKeys {
		if _, ok := store.Get(k); ok {
			t.Errorf("store still holds %s", k)
		}
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met within 2s")
		}
		time.Sleep(time.Millisecond)
	}
}

// TestRefresh_FailureAfterNewLoginKeepsNewSession signs in twice while a
// refresh of the first session is in flight. The late rejection must not
// touch the second session's credentials.
func TestRefresh_FailureAfterNewLoginKeepsNewSession(t *testing.T) {
	var mu sync.Mutex
	logins := 0
	refreshArrived := make(chan struct{})
	releaseRefresh := make(chan struct{})

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/auth/login":
			mu.Lock()
			logins++
			n := strconv.Itoa(logins)
			mu.Unlock()
			_, _ = w.Write([]byte(`{"token":"access-` + n + `","refreshToken":"refresh-` + n + `","user":{"id":7,"email":"a@b.com","roleId":3}}`)) //nolint:errcheck // test server
		case "/auth/refresh":
			close(refreshArrived)
			<-releaseRefresh
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"message":"refresh expired"}`)) //nolint:errcheck // test server
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	store := credstore.NewMemoryStore()
	client, err := authclient.New(config.BackendConfig{BaseURL: srv.URL, Timeout: 5}, store, logging.Discard())
	if err != nil {
		t.Fatalf("authclient.New() error = %v", err)
	}
	m := NewManager(client, auth.DefaultClassifier(), logging.Discard())

	if _, err := m.Login(context.Background(), "a@b.com", "pw"); err != nil {
		t.Fatalf("first Login() error = %v", err)
	}

	done := make(chan bool, 1)
	go func() { done <- m.Refresh(context.Background()) }()
	<-refreshArrived

	if _, err := m.Login(context.Background(), "a@b.com", "pw"); err != nil {
		t.Fatalf("second Login() error = %v", err)
	}
	close(releaseRefresh)

	if ok := <-done; ok {
		t.Error("Refresh() = true for a rejected refresh")
	}

	snap := m.Snapshot()
	if snap.State != StateAuthenticated || !snap.IsAuthenticated {
		t.Errorf("snapshot = %+v, want authenticated", snap)
	}
	if !client.IsAuthenticated() {
		t.Error("client lost the second session's token")
	}
	if v, _ := store.Get(credstore.KeyToken); v != "access-2" {
		t.Errorf("stored token = %q, want access-2", v)
	}
	if v, _ := store.Get(credstore.KeyRefreshToken); v != "refresh-2" {
		t.Errorf("stored refresh token = %q, want refresh-2", v)
	}
}

// TestRefresh_StrandedSessionLogsOut covers a session whose token vanished
// while a refresh was in flight and a later login had already settled.
func TestRefresh_StrandedSessionLogsOut(t *testing.T) {
	svc := &fakeService{loginSess: &authclient.Session{Token: "t1", User: memberUser}}
	m := newTestManager(svc)
	if _, err := m.Login(context.Background(), "a@b.com", "pw"); err != nil {
		t.Fatalf("Login() error = %v", err)
	}

	gate := make(chan struct{})
	arrived := make(chan struct{})
	stranding := &strandingService{fakeService: svc, arrived: arrived, gate: gate}
	m.svc = stranding

	done := make(chan bool, 1)
	go func() { done <- m.Refresh(context.Background()) }()
	<-arrived
	if _, err := m.Login(context.Background(), "a@b.com", "pw"); err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	close(gate)
	<-done

	if snap := m.Snapshot(); snap.State != StateAnonymous {
		t.Errorf("State = %v, want anonymous once the token is gone", snap.State)
	}
}

// strandingService blocks RefreshToken and then wipes the token, as a
// credential store that ignores later logins would.
type strandingService struct {
	*fakeService
	arrived chan struct{}
	gate    chan struct{}
}

func (s *strandingService) RefreshToken(ctx context.Context) (string, bool) {
	close(s.arrived)
	<-s.gate
	return s.fakeService.RefreshToken(ctx)
}

// TestInit_NetworkFailureKeepsToken checks that an unreachable backend
// settles the session anonymous without deleting the stored credentials.
func TestInit_NetworkFailureKeepsToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	store := credstore.NewMemoryStore()
	_ = store.Set(credstore.KeyToken, "kept-token")
	_ = store.Set(credstore.KeyRefreshToken, "kept-refresh")

	client, err := authclient.New(config.BackendConfig{BaseURL: srv.URL, Timeout: 5}, store, logging.Discard())
	if err != nil {
		t.Fatalf("authclient.New() error = %v", err)
	}
	m := NewManager(client, auth.DefaultClassifier(), logging.Discard())

	if err := m.Init(context.Background()); err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	if snap := m.Snapshot(); snap.State != StateAnonymous || snap.IsAuthenticated {
		t.Errorf("snapshot = %+v, want anonymous", snap)
	}
	if !client.IsAuthenticated() {
		t.Error("IsAuthenticated() = false, want the token kept after a network failure")
	}
	if v, _ := store.Get(credstore.KeyToken); v != "kept-token" {
		t.Errorf("stored token = %q, want kept-token", v)
	}
	if v, _ := store.Get(credstore.KeyRefreshToken); v != "kept-refresh" {
		t.Errorf("stored refresh token = %q, want kept-refresh", v)
	}
}
