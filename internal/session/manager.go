package session

import (
	"context"
	"sync"
	"time"

	"github.com/eco-green-group4/evmarket-web/internal/auth"
	"github.com/eco-green-group4/evmarket-web/internal/authclient"
	"github.com/eco-green-group4/evmarket-web/internal/infrastructure/logging"
)

// Service is the backend session service the Manager drives.
// *authclient.Client satisfies it.
type Service interface {
	Login(ctx context.Context, email, password string) (*authclient.Session, error)
	Register(ctx context.Context, req authclient.RegisterRequest) (*authclient.Session, error)
	Logout()
	CurrentUser(ctx context.Context) (*auth.User, error)
	UpdateProfile(ctx context.Context, update authclient.ProfileUpdate) (*auth.User, error)
	RefreshToken(ctx context.Context) (string, bool)
	IsAuthenticated() bool
	TokenExpiry() (time.Time, bool)
}

// defaultMinRefreshDelay is the shortest wait between two refresh attempts.
const defaultMinRefreshDelay = 5 * time.Second

// Manager owns the session state.
//
// Thread Safety:
//   - All methods are safe for concurrent use.
//   - Observers run outside the state lock. An observer must not call a
//     Manager transition synchronously; Snapshot is fine.
type Manager struct {
	svc        Service
	classifier *auth.Classifier
	logger     *logging.Logger
	now        func() time.Time

	minRefreshDelay time.Duration

	mu          sync.Mutex
	snap        Snapshot
	epoch       uint64
	initStarted bool
	closed      bool
	subs        map[int]*subscriber
	nextSub     int
}

type subscriber struct {
	mu   sync.Mutex
	last uint64
	fn   func(Snapshot)
}

// deliver calls fn unless a newer snapshot was already delivered.
func (s *subscriber) deliver(snap Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if snap.Version <= s.last {
		return
	}
	s.last = snap.Version
	s.fn(snap)
}

// NewManager creates a Manager in StateUninitialized.
func NewManager(svc Service, classifier *auth.Classifier, logger *logging.Logger) *Manager {
	m := &Manager{
		svc:             svc,
		classifier:      classifier,
		logger:          logger,
		now:             time.Now,
		minRefreshDelay: defaultMinRefreshDelay,
		subs:            make(map[int]*subscriber),
	}
	m.snap = m.build(StateUninitialized, nil, 0)
	return m
}

// Snapshot returns the current session.
func (m *Manager) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snap
}

// Subscribe registers fn for every later snapshot. The returned func
// unregisters it.
func (m *Manager) Subscribe(fn func(Snapshot)) (cancel func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return func() {}
	}

	id := m.nextSub
	m.nextSub++
	m.subs[id] = &subscriber{fn: fn, last: m.snap.Version}

	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.subs, id)
	}
}

// Init performs the initial session check. It runs at most once.
//
// Without a stored token the session settles Anonymous with no network call.
// Otherwise the current user is fetched: success settles Authenticated, any
// failure settles Anonymous. If a Login or Logout completes first, the result
// of the check is discarded.
func (m *Manager) Init(ctx context.Context) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrClosed
	}
	if m.initStarted {
		m.mu.Unlock()
		return ErrAlreadyInitialized
	}
	m.initStarted = true

	if m.snap.State != StateUninitialized {
		// A login already settled the session.
		m.mu.Unlock()
		return nil
	}
	epoch := m.epoch
	snap, subs := m.transitionLocked(StateLoading, nil)
	m.mu.Unlock()
	m.notify(snap, subs)

	var user *auth.User
	if m.svc.IsAuthenticated() {
		u, err := m.svc.CurrentUser(ctx)
		if err != nil {
			m.logger.Info("stored session rejected", "error", err, "kind", authclient.KindName(err))
		}
		user = u
	}

	m.mu.Lock()
	if m.closed || m.epoch != epoch {
		m.mu.Unlock()
		m.logger.Debug("discarding stale initial session check")
		return nil
	}
	if user != nil {
		snap, subs = m.transitionLocked(StateAuthenticated, user)
	} else {
		snap, subs = m.transitionLocked(StateAnonymous, nil)
	}
	m.mu.Unlock()
	m.notify(snap, subs)
	return nil
}

// Login authenticates and, on success, moves to Authenticated.
// On failure the state is unchanged and the service error is returned.
func (m *Manager) Login(ctx context.Context, email, password string) (Snapshot, error) {
	sess, err := m.svc.Login(ctx, email, password)
	if err != nil {
		return m.Snapshot(), err
	}
	return m.establish(sess)
}

// Register creates an account and follows the same transition rule as Login.
func (m *Manager) Register(ctx context.Context, req authclient.RegisterRequest) (Snapshot, error) {
	sess, err := m.svc.Register(ctx, req)
	if err != nil {
		return m.Snapshot(), err
	}
	return m.establish(sess)
}

func (m *Manager) establish(sess *authclient.Session) (Snapshot, error) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return Snapshot{}, ErrClosed
	}
	m.epoch++
	snap, subs := m.transitionLocked(StateAuthenticated, sess.User)
	m.mu.Unlock()
	m.notify(snap, subs)
	return snap, nil
}

// Logout clears the credentials and moves to Anonymous.
func (m *Manager) Logout() Snapshot {
	m.svc.Logout()

	m.mu.Lock()
	if m.closed {
		defer m.mu.Unlock()
		return m.snap
	}
	m.epoch++
	snap, subs := m.transitionLocked(StateAnonymous, nil)
	m.mu.Unlock()
	m.notify(snap, subs)
	return snap
}

// UpdateProfile replaces the user in place. It requires Authenticated and
// never calls the service otherwise.
func (m *Manager) UpdateProfile(ctx context.Context, update authclient.ProfileUpdate) (Snapshot, error) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return Snapshot{}, ErrClosed
	}
	if m.snap.State != StateAuthenticated {
		defer m.mu.Unlock()
		return m.snap, ErrNotAuthenticated
	}
	epoch := m.epoch
	m.mu.Unlock()

	user, err := m.svc.UpdateProfile(ctx, update)
	if err != nil {
		return m.Snapshot(), err
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return Snapshot{}, ErrClosed
	}
	if m.epoch != epoch {
		defer m.mu.Unlock()
		return m.snap, ErrSessionChanged
	}
	snap, subs := m.transitionLocked(StateAuthenticated, user)
	m.mu.Unlock()
	m.notify(snap, subs)
	return snap, nil
}

// Refresh renews the access token of an authenticated session. On failure
// the session is logged out.
func (m *Manager) Refresh(ctx context.Context) bool {
	m.mu.Lock()
	if m.closed || m.snap.State != StateAuthenticated {
		m.mu.Unlock()
		return false
	}
	epoch := m.epoch
	m.mu.Unlock()

	if _, ok := m.svc.RefreshToken(ctx); ok {
		return true
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return false
	}
	if m.epoch != epoch {
		// A later login or logout owns the session. It must still hold a token.
		stranded := m.snap.State == StateAuthenticated && !m.svc.IsAuthenticated()
		m.mu.Unlock()
		if stranded {
			m.logger.Warn("authenticated session lost its token, signing out")
			m.Logout()
		}
		return false
	}
	m.mu.Unlock()

	m.logger.Info("token refresh failed, signing out")
	m.Logout()
	return false
}

// Close stops delivering snapshots. Calls that complete afterwards leave
// the state untouched.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	clear(m.subs)
}

// transitionLocked installs a new snapshot and returns it with the current
// subscribers. m.mu must be held.
func (m *Manager) transitionLocked(state State, user *auth.User) (Snapshot, []*subscriber) {
	prev := m.snap
	m.snap = m.build(state, user.Clone(), prev.Version+1)

	m.logger.Debug("session transition",
		"from", prev.State.String(),
		"to", state.String(),
		"role", string(m.snap.Role),
		"version", m.snap.Version,
	)

	subs := make([]*subscriber, 0, len(m.subs))
	for _, s := range m.subs {
		subs = append(subs, s)
	}
	return m.snap, subs
}

func (m *Manager) build(state State, user *auth.User, version uint64) Snapshot {
	if state != StateAuthenticated {
		user = nil
	}
	return Snapshot{
		State:           state,
		User:            user,
		IsAuthenticated: state == StateAuthenticated,
		Loading:         state == StateUninitialized || state == StateLoading,
		Role:            m.classifier.Classify(user),
		Version:         version,
		At:              m.now(),
	}
}

func (m *Manager) notify(snap Snapshot, subs []*subscriber) {
	for _, s := range subs {
		s.deliver(snap)
	}
}
