package gate

import (
	"sync"

	"github.com/eco-green-group4/evmarket-web/internal/session"
)

// Observer evaluates the table for one view and suppresses navigations that
// were already issued for the same session version and path.
type Observer struct {
	table Table

	mu      sync.Mutex
	version uint64
	path    string
	seen    bool
	last    Decision
}

// NewObserver returns an Observer over t.
func NewObserver(t Table) *Observer {
	return &Observer{table: t}
}

// Check returns the navigation to perform, if any. Repeated checks with an
// unchanged (Version, path) pair never navigate twice, and a check on the
// target of the last navigation does not re-trigger the rule that sent the
// client there.
func (o *Observer) Check(snap session.Snapshot, p string) Decision {
	o.mu.Lock()
	defer o.mu.Unlock()

	p = clean(p)
	if o.seen && o.version == snap.Version && o.path == p {
		return Decision{Rule: o.last.Rule}
	}

	d := o.table.Evaluate(snap, p)
	if d.Loading() {
		// Nothing is remembered until the session settles.
		return d
	}

	if o.seen && o.last.Navigate && o.version == snap.Version && clean(o.last.Target) == p && d.Rule == o.last.Rule {
		d = Decision{Rule: d.Rule}
	}

	o.version, o.path, o.seen, o.last = snap.Version, p, true, d
	return d
}
