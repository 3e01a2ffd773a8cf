package web

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/eco-green-group4/evmarket-web/internal/auth"
	"github.com/eco-green-group4/evmarket-web/internal/authclient"
	"github.com/eco-green-group4/evmarket-web/internal/credstore"
	"github.com/eco-green-group4/evmarket-web/internal/gate"
	"github.com/eco-green-group4/evmarket-web/internal/infrastructure/config"
	"github.com/eco-green-group4/evmarket-web/internal/infrastructure/logging"
	"github.com/eco-green-group4/evmarket-web/internal/session"
)

// fakeSessions is a Sessions whose snapshot the test controls.
type fakeSessions struct {
	mu        sync.Mutex
	snap      session.Snapshot
	loginErr  error
	loginSnap session.Snapshot
	updateErr error
	subs      map[int]func(session.Snapshot)
	nextSub   int
	logouts   int
}

func newFakeSessions(snap session.Snapshot) *fakeSessions {
	return &fakeSessions{snap: snap, subs: make(map[int]func(session.Snapshot))}
}

func (f *fakeSessions) Snapshot() session.Snapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.snap
}

func (f *fakeSessions) Subscribe(fn func(session.Snapshot)) func() {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := f.nextSub
	f.nextSub++
	f.subs[id] = fn
	return func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		delete(f.subs, id)
	}
}

// set installs snap and notifies subscribers.
func (f *fakeSessions) set(snap session.Snapshot) {
	f.mu.Lock()
	f.snap = snap
	subs := make([]func(session.Snapshot), 0, len(f.subs))
	for _, fn := range f.subs {
		subs = append(subs, fn)
	}
	f.mu.Unlock()
	for _, fn := range subs {
		fn(snap)
	}
}

func (f *fakeSessions) Login(_ context.Context, _, _ string) (session.Snapshot, error) {
	if f.loginErr != nil {
		return f.Snapshot(), f.loginErr
	}
	f.set(f.loginSnap)
	return f.loginSnap, nil
}

func (f *fakeSessions) Register(ctx context.Context, req authclient.RegisterRequest) (session.Snapshot, error) {
	return f.Login(ctx, req.Email, req.Password)
}

func (f *fakeSessions) Logout() session.Snapshot {
	f.mu.Lock()
	f.logouts++
	v := f.snap.Version + 1
	f.mu.Unlock()
	snap := snapshotFor(auth.RoleAnonymous)
	snap.Version = v
	f.set(snap)
	return snap
}

func (f *fakeSessions) UpdateProfile(_ context.Context, update authclient.ProfileUpdate) (session.Snapshot, error) {
	if f.updateErr != nil {
		return f.Snapshot(), f.updateErr
	}
	snap := f.Snapshot()
	if name, ok := update["fullName"].(string); ok && snap.User != nil {
		u := snap.User.Clone()
		u.FullName = name
		snap.User = u
	}
	snap.Version++
	f.set(snap)
	return snap, nil
}

func snapshotFor(role auth.Role) session.Snapshot {
	snap := session.Snapshot{State: session.StateAnonymous, Role: role, Version: 2, At: time.Now()}
	if role != auth.RoleAnonymous {
		snap.State = session.StateAuthenticated
		snap.IsAuthenticated = true
		snap.User = &auth.User{ID: auth.NumericID(7), Email: "someone@example.com", FullName: "Some One"}
	}
	return snap
}

func loadingSnapshot() session.Snapshot {
	return session.Snapshot{State: session.StateLoading, Loading: true, Role: auth.RoleAnonymous, Version: 1}
}

type redirectLog struct {
	mu    sync.Mutex
	rules []gate.Rule
}

func (l *redirectLog) record(d gate.Decision, _ string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.rules = append(l.rules, d.Rule)
}

func (l *redirectLog) all() []gate.Rule {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]gate.Rule(nil), l.rules...)
}

func testWebConfig() config.WebConfig {
	return config.WebConfig{
		Host: "127.0.0.1",
		Port: 0,
		LoginRateLimit: config.LoginRateLimitConfig{
			Enabled:  true,
			Requests: 3,
			Window:   60,
		},
	}
}

func testTable() gate.Table {
	t := gate.DefaultTable()
	t.RequireLoginForUserOnly = true
	return t
}

func newTestServer(t *testing.T, sessions Sessions) (*Server, credstore.Store, *redirectLog) {
	t.Helper()
	store := credstore.NewMemoryStore()
	log := &redirectLog{}
	srv, err := New(Deps{
		Config:     testWebConfig(),
		WS:         config.WebSocketConfig{Path: "/ws"},
		Logger:     logging.Discard(),
		Sessions:   sessions,
		Gate:       testTable(),
		Store:      store,
		OnRedirect: log.record,
		Version:    "test",
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return srv, store, log
}

func doRequest(t *testing.T, h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decoding body %q: %v", rec.Body.String(), err)
	}
	return v
}

func TestNew_Validation(t *testing.T) {
	base := Deps{
		Logger:   logging.Discard(),
		Sessions: newFakeSessions(loadingSnapshot()),
		Gate:     testTable(),
		Store:    credstore.NewMemoryStore(),
	}

	tests := []struct {
		name   string
		mutate func(*Deps)
	}{
		{"missing logger", func(d *Deps) { d.Logger = nil }},
		{"missing sessions", func(d *Deps) { d.Sessions = nil }},
		{"missing store", func(d *Deps) { d.Store = nil }},
		{"looping table", func(d *Deps) { d.Gate.AdminHome = "/profile" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := base
			d.Gate.UserOnly = append([]string(nil), base.Gate.UserOnly...)
			tt.mutate(&d)
			if _, err := New(d); err == nil {
				t.Error("New() error = nil, want error")
			}
		})
	}

	t.Run("valid", func(t *testing.T) {
		if _, err := New(base); err != nil {
			t.Errorf("New() error = %v", err)
		}
	})
}

func TestPages_Gate(t *testing.T) {
	tests := []struct {
		name       string
		snap       session.Snapshot
		path       string
		wantStatus int
		wantTarget string
		wantRule   gate.Rule
	}{
		{"admin on user-only page", snapshotFor(auth.RoleAdmin), "/profile", http.StatusSeeOther, "/admin", gate.RuleAdminUserOnly},
		{"admin on home", snapshotFor(auth.RoleAdmin), "/", http.StatusSeeOther, "/admin", gate.RuleAdminHome},
		{"admin on dashboard", snapshotFor(auth.RoleAdmin), "/admin/users", http.StatusOK, "", ""},
		{"user on admin page", snapshotFor(auth.RoleUser), "/admin/users", http.StatusSeeOther, "/unauthorized", gate.RuleAdminOnly},
		{"user on staff page", snapshotFor(auth.RoleUser), "/staff/queue", http.StatusSeeOther, "/unauthorized", gate.RuleStaffOnly},
		{"staff on staff page", snapshotFor(auth.RoleStaff), "/staff/queue", http.StatusOK, "", ""},
		{"user on profile", snapshotFor(auth.RoleUser), "/profile", http.StatusOK, "", ""},
		{"anonymous on cart", snapshotFor(auth.RoleAnonymous), "/cart", http.StatusSeeOther, "/login", gate.RuleLoginRequired},
		{"anonymous on home", snapshotFor(auth.RoleAnonymous), "/", http.StatusOK, "", ""},
		{"loading on profile", loadingSnapshot(), "/profile", http.StatusOK, "", ""},
		{"loading on admin", loadingSnapshot(), "/admin", http.StatusOK, "", ""},
		{"user on unauthorized", snapshotFor(auth.RoleUser), "/unauthorized", http.StatusForbidden, "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, _, log := newTestServer(t, newFakeSessions(tt.snap))
			rec := doRequest(t, srv.Handler(), http.MethodGet, tt.path, "")

			if rec.Code != tt.wantStatus {
				t.Fatalf("GET %s status = %d, want %d", tt.path, rec.Code, tt.wantStatus)
			}
			if got := rec.Header().Get("Location"); got != tt.wantTarget {
				t.Errorf("Location = %q, want %q", got, tt.wantTarget)
			}
			rules := log.all()
			if tt.wantRule == "" {
				if len(rules) != 0 {
					t.Errorf("redirects = %v, want none", rules)
				}
				return
			}
			if len(rules) != 1 || rules[0] != tt.wantRule {
				t.Errorf("redirects = %v, want [%s]", rules, tt.wantRule)
			}
		})
	}
}

func TestPages_LoadingModel(t *testing.T) {
	srv, _, _ := newTestServer(t, newFakeSessions(loadingSnapshot()))
	rec := doRequest(t, srv.Handler(), http.MethodGet, "/profile", "")

	page := decodeBody[pageView](t, rec)
	if !page.Loading {
		t.Error("loading = false, want true")
	}
	if page.Path != "/profile" {
		t.Errorf("path = %q, want /profile", page.Path)
	}
	if len(page.Session.Capabilities) != 0 {
		t.Errorf("capabilities = %v, want none while loading", page.Session.Capabilities)
	}
}

func TestGetSession(t *testing.T) {
	srv, _, _ := newTestServer(t, newFakeSessions(snapshotFor(auth.RoleUser)))
	rec := doRequest(t, srv.Handler(), http.MethodGet, "/api/session/", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	view := decodeBody[SessionView](t, rec)
	if !view.IsAuthenticated || view.State != "authenticated" {
		t.Errorf("view = %+v, want authenticated", view)
	}
	if view.Role != auth.RoleUser {
		t.Errorf("role = %q, want user", view.Role)
	}
	if view.User == nil || view.User.Email != "someone@example.com" {
		t.Errorf("user = %+v", view.User)
	}
	found := false
	for _, p := range view.Capabilities {
		if p == auth.PermCartUse {
			found = true
		}
	}
	if !found {
		t.Errorf("capabilities = %v, want %s", view.Capabilities, auth.PermCartUse)
	}
}

func TestLogin_ErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"invalid credentials", &authclient.APIError{Op: "login", Status: 401, Message: "Wrong password", Kind: authclient.ErrInvalidCredentials}, http.StatusUnauthorized, ErrCodeUnauthorized},
		{"validation", &authclient.APIError{Op: "login", Status: 422, Message: "Email is invalid", Kind: authclient.ErrValidation}, http.StatusBadRequest, ErrCodeValidation},
		{"network", &authclient.APIError{Op: "login", Kind: authclient.ErrNetwork, Err: errors.New("connection refused")}, http.StatusBadGateway, ErrCodeBadGateway},
		{"malformed", &authclient.APIError{Op: "login", Kind: authclient.ErrMalformedResponse, Err: errors.New("eof")}, http.StatusBadGateway, ErrCodeBadGateway},
		{"unexpected", errors.New("boom"), http.StatusInternalServerError, ErrCodeInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sessions := newFakeSessions(snapshotFor(auth.RoleAnonymous))
			sessions.loginErr = tt.err
			srv, _, _ := newTestServer(t, sessions)

			rec := doRequest(t, srv.Handler(), http.MethodPost, "/api/session/login", `{"email":"a@b.c","password":"pw"}`)
			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			body := decodeBody[Error](t, rec)
			if body.Code != tt.wantCode {
				t.Errorf("code = %q, want %q", body.Code, tt.wantCode)
			}
			var apiErr *authclient.APIError
			if errors.As(tt.err, &apiErr) && apiErr.Message != "" && body.Message != apiErr.Message {
				t.Errorf("message = %q, want backend message %q", body.Message, apiErr.Message)
			}
		})
	}
}

func TestLogin_RequestValidation(t *testing.T) {
	srv, _, _ := newTestServer(t, newFakeSessions(snapshotFor(auth.RoleAnonymous)))
	h := srv.Handler()

	for _, body := range []string{`not json`, `{"email":"","password":"x"}`, `{"email":"a@b.c"}`} {
		rec := doRequest(t, h, http.MethodPost, "/api/session/login", body)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("login %s status = %d, want 400", body, rec.Code)
		}
	}
}

func TestLogin_RateLimited(t *testing.T) {
	sessions := newFakeSessions(snapshotFor(auth.RoleAnonymous))
	sessions.loginErr = &authclient.APIError{Op: "login", Status: 401, Message: "nope", Kind: authclient.ErrInvalidCredentials}
	srv, _, _ := newTestServer(t, sessions)
	h := srv.Handler()

	var last int
	for range 4 {
		last = doRequest(t, h, http.MethodPost, "/api/session/login", `{"email":"a@b.c","password":"pw"}`).Code
	}
	if last != http.StatusTooManyRequests {
		t.Errorf("fourth login status = %d, want 429", last)
	}
}

func TestLogoutAndProfile(t *testing.T) {
	sessions := newFakeSessions(snapshotFor(auth.RoleUser))
	srv, _, _ := newTestServer(t, sessions)
	h := srv.Handler()

	rec := doRequest(t, h, http.MethodPut, "/api/session/profile", `{"fullName":"New Name"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("profile status = %d, want 200", rec.Code)
	}
	if view := decodeBody[SessionView](t, rec); view.User == nil || view.User.FullName != "New Name" {
		t.Errorf("profile user = %+v, want New Name", view.User)
	}

	if rec := doRequest(t, h, http.MethodPut, "/api/session/profile", `{}`); rec.Code != http.StatusBadRequest {
		t.Errorf("empty profile status = %d, want 400", rec.Code)
	}

	rec = doRequest(t, h, http.MethodPost, "/api/session/logout", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("logout status = %d, want 200", rec.Code)
	}
	if view := decodeBody[SessionView](t, rec); view.IsAuthenticated {
		t.Error("isAuthenticated = true after logout")
	}
	if sessions.logouts != 1 {
		t.Errorf("logouts = %d, want 1", sessions.logouts)
	}

	sessions.updateErr = session.ErrNotAuthenticated
	if rec := doRequest(t, h, http.MethodPut, "/api/session/profile", `{"fullName":"x"}`); rec.Code != http.StatusUnauthorized {
		t.Errorf("profile after logout status = %d, want 401", rec.Code)
	}
}

func TestUpdateProfile_RequiresProfilePermission(t *testing.T) {
	tests := []struct {
		role auth.Role
		want int
	}{
		{auth.RoleUser, http.StatusOK},
		{auth.RoleStaff, http.StatusOK},
		{auth.RoleAdmin, http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(string(tt.role), func(t *testing.T) {
			srv, _, _ := newTestServer(t, newFakeSessions(snapshotFor(tt.role)))
			rec := doRequest(t, srv.Handler(), http.MethodPut, "/api/session/profile", `{"fullName":"New Name"}`)
			if rec.Code != tt.want {
				t.Fatalf("status = %d, want %d", rec.Code, tt.want)
			}
			if tt.want == http.StatusForbidden {
				if body := decodeBody[Error](t, rec); body.Code != ErrCodeForbidden {
					t.Errorf("code = %q, want %q", body.Code, ErrCodeForbidden)
				}
			}
		})
	}
}

func TestTheme(t *testing.T) {
	srv, store, _ := newTestServer(t, newFakeSessions(snapshotFor(auth.RoleUser)))
	h := srv.Handler()

	rec := doRequest(t, h, http.MethodGet, "/api/preferences/theme", "")
	if got := decodeBody[themeRequest](t, rec).Theme; got != ThemeLight {
		t.Errorf("default theme = %q, want light", got)
	}

	if rec := doRequest(t, h, http.MethodPut, "/api/preferences/theme", `{"theme":"dark"}`); rec.Code != http.StatusOK {
		t.Fatalf("set theme status = %d, want 200", rec.Code)
	}
	if v, _ := store.Get(credstore.KeyTheme); v != ThemeDark {
		t.Errorf("stored theme = %q, want dark", v)
	}

	if rec := doRequest(t, h, http.MethodPut, "/api/preferences/theme", `{"theme":"blue"}`); rec.Code != http.StatusBadRequest {
		t.Errorf("invalid theme status = %d, want 400", rec.Code)
	}
}

func TestHealthAndNotFound(t *testing.T) {
	srv, _, _ := newTestServer(t, newFakeSessions(snapshotFor(auth.RoleAnonymous)))
	h := srv.Handler()

	rec := doRequest(t, h, http.MethodGet, "/healthz", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("healthz status = %d, want 200", rec.Code)
	}
	body := decodeBody[map[string]any](t, rec)
	if body["session"] != "anonymous" {
		t.Errorf("session = %v, want anonymous", body["session"])
	}
	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("X-Request-ID header missing")
	}

	if rec := doRequest(t, h, http.MethodGet, "/api/nope", ""); rec.Code != http.StatusNotFound {
		t.Errorf("unknown api status = %d, want 404", rec.Code)
	}
}

// End to end through the backend client and the session manager.
func TestLogin_ThroughBackend(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct{ Email, Password string }
		//nolint:errcheck // test backend
		json.NewDecoder(r.Body).Decode(&req)
		w.Header().Set("Content-Type", "application/json")
		if req.Password != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"message":"Email or password is incorrect"}`)) //nolint:errcheck // test backend
			return
		}
		w.Write([]byte(`{"token":"t1","user":{"id":1,"email":"admin@evmarket.com","roleId":1}}`)) //nolint:errcheck // test backend
	}))
	defer backend.Close()

	store := credstore.NewMemoryStore()
	client, err := authclient.New(config.BackendConfig{BaseURL: backend.URL + "/api", Timeout: 5}, store, logging.Discard())
	if err != nil {
		t.Fatalf("authclient.New() error = %v", err)
	}
	mgr := session.NewManager(client, auth.DefaultClassifier(), logging.Discard())
	if err := mgr.Init(context.Background()); err != nil {
		t.Fatalf("Init() error = %v", err)
	}

	srv, err := New(Deps{
		Config:   config.WebConfig{},
		Logger:   logging.Discard(),
		Sessions: mgr,
		Gate:     testTable(),
		Store:    store,
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	h := srv.Handler()

	rec := doRequest(t, h, http.MethodPost, "/api/session/login", `{"email":"admin@evmarket.com","password":"wrong"}`)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("bad login status = %d, want 401", rec.Code)
	}
	if msg := decodeBody[Error](t, rec).Message; msg != "Email or password is incorrect" {
		t.Errorf("message = %q, want backend message", msg)
	}

	rec = doRequest(t, h, http.MethodPost, "/api/session/login", `{"email":"admin@evmarket.com","password":"secret"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("login status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	if view := decodeBody[SessionView](t, rec); view.Role != auth.RoleAdmin {
		t.Errorf("role = %q, want admin", view.Role)
	}

	rec = doRequest(t, h, http.MethodGet, "/profile", "")
	if rec.Code != http.StatusSeeOther || rec.Header().Get("Location") != "/admin" {
		t.Errorf("GET /profile = %d %q, want 303 /admin", rec.Code, rec.Header().Get("Location"))
	}
}
