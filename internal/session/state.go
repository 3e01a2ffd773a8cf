package session

import (
	"errors"
	"time"

	"github.com/eco-green-group4/evmarket-web/internal/auth"
)

// State is the lifecycle position of the session.
type State int

const (
	StateUninitialized State = iota
	StateLoading
	StateAuthenticated
	StateAnonymous
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateLoading:
		return "loading"
	case StateAuthenticated:
		return "authenticated"
	case StateAnonymous:
		return "anonymous"
	default:
		return "unknown"
	}
}

// Snapshot is the observable session at one Version. It must not be modified.
type Snapshot struct {
	State           State
	User            *auth.User
	IsAuthenticated bool

	// Loading is true until the initial check settles. No access decision
	// may be made while it is set.
	Loading bool

	Role    auth.Role
	Version uint64
	At      time.Time
}

// Errors returned by Manager.
var (
	ErrAlreadyInitialized = errors.New("session already initialised")
	ErrClosed             = errors.New("session manager closed")
	ErrNotAuthenticated   = errors.New("not authenticated")
	ErrSessionChanged     = errors.New("session changed while the request was in flight")
)
