package session

import (
	"context"
	"time"
)

// RunRefresher renews the access token leeway before its exp claim while the
// session is authenticated. Tokens without a readable exp are never
// refreshed proactively. It returns when ctx is done.
func (m *Manager) RunRefresher(ctx context.Context, leeway time.Duration) {
	changed := make(chan struct{}, 1)
	cancel := m.Subscribe(func(Snapshot) {
		select {
		case changed <- struct{}{}:
		default:
		}
	})
	defer cancel()

	for {
		var timer *time.Timer
		var fire <-chan time.Time

		if d, ok := m.nextRefresh(leeway); ok {
			timer = time.NewTimer(d)
			fire = timer.C
		}

		select {
		case <-ctx.Done():
			stopTimer(timer)
			return
		case <-changed:
			stopTimer(timer)
		case <-fire:
			m.logger.Debug("refreshing access token")
			m.Refresh(ctx)
		}
	}
}

// nextRefresh returns how long to wait before the next refresh.
func (m *Manager) nextRefresh(leeway time.Duration) (time.Duration, bool) {
	if m.Snapshot().State != StateAuthenticated {
		return 0, false
	}
	exp, ok := m.svc.TokenExpiry()
	if !ok {
		return 0, false
	}
	return max(exp.Sub(m.now())-leeway, m.minRefreshDelay), true
}

func stopTimer(t *time.Timer) {
	if t != nil {
		t.Stop()
	}
}
