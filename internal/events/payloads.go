package events

import (
	"time"

	"github.com/eco-green-group4/evmarket-web/internal/gate"
	"github.com/eco-green-group4/evmarket-web/internal/session"
)

// SessionState is the retained {prefix}/session/state payload.
type SessionState struct {
	EventID         string    `json:"event_id"`
	DeviceID        string    `json:"device_id"`
	State           string    `json:"state"`
	Role            string    `json:"role"`
	IsAuthenticated bool      `json:"is_authenticated"`
	Loading         bool      `json:"loading"`
	UserID          string    `json:"user_id,omitempty"`
	Version         uint64    `json:"version"`
	Timestamp       time.Time `json:"timestamp"`
}

// GateRedirect is the {prefix}/gate/redirect payload.
type GateRedirect struct {
	EventID   string    `json:"event_id"`
	DeviceID  string    `json:"device_id"`
	Rule      string    `json:"rule"`
	From      string    `json:"from"`
	To        string    `json:"to"`
	Replace   bool      `json:"replace"`
	Timestamp time.Time `json:"timestamp"`
}

// LogoutCommand is the {prefix}/session/command/logout payload. An empty
// DeviceID addresses every device.
type LogoutCommand struct {
	DeviceID string `json:"device_id,omitempty"`
	Reason   string `json:"reason,omitempty"`
}

func newSessionState(id, deviceID string, snap session.Snapshot) SessionState {
	p := SessionState{
		EventID:         id,
		DeviceID:        deviceID,
		State:           snap.State.String(),
		Role:            string(snap.Role),
		IsAuthenticated: snap.IsAuthenticated,
		Loading:         snap.Loading,
		Version:         snap.Version,
		Timestamp:       snap.At.UTC(),
	}
	if snap.User != nil {
		p.UserID = snap.User.ID.String()
	}
	return p
}

func newGateRedirect(id, deviceID string, d gate.Decision, from string, at time.Time) GateRedirect {
	return GateRedirect{
		EventID:   id,
		DeviceID:  deviceID,
		Rule:      string(d.Rule),
		From:      from,
		To:        d.Target,
		Replace:   d.Replace,
		Timestamp: at.UTC(),
	}
}
