package web

import (
	"time"

	"github.com/eco-green-group4/evmarket-web/internal/auth"
	"github.com/eco-green-group4/evmarket-web/internal/session"
)

// SessionView is the JSON form of a session snapshot.
type SessionView struct {
	State           string            `json:"state"`
	IsAuthenticated bool              `json:"isAuthenticated"`
	Loading         bool              `json:"loading"`
	Role            auth.Role         `json:"role"`
	User            *auth.User        `json:"user"`
	Capabilities    []auth.Permission `json:"capabilities"`
	Version         uint64            `json:"version"`
	UpdatedAt       time.Time         `json:"updatedAt"`
}

// NewSessionView converts snap. Capabilities are empty while loading.
func NewSessionView(snap session.Snapshot) SessionView {
	caps := []auth.Permission{}
	if !snap.Loading {
		if p := auth.PermissionsForRole(snap.Role); p != nil {
			caps = p
		}
	}
	return SessionView{
		State:           snap.State.String(),
		IsAuthenticated: snap.IsAuthenticated,
		Loading:         snap.Loading,
		Role:            snap.Role,
		User:            snap.User,
		Capabilities:    caps,
		Version:         snap.Version,
		UpdatedAt:       snap.At.UTC(),
	}
}

// pageView is the model a page route renders.
type pageView struct {
	Path    string      `json:"path"`
	Loading bool        `json:"loading"`
	Theme   string      `json:"theme"`
	Session SessionView `json:"session"`
}
