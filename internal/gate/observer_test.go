package gate

import (
	"testing"

	"github.com/eco-green-group4/evmarket-web/internal/auth"
	"github.com/eco-green-group4/evmarket-web/internal/session"
)

func TestObserver_AdminOnProfileRedirectsOnce(t *testing.T) {
	o := NewObserver(DefaultTable())
	snap := settled(auth.RoleAdmin, 3)

	first := o.Check(snap, "/profile")
	if !first.Navigate || first.Target != "/admin" || !first.Replace {
		t.Fatalf("first Check() = %+v, want replace-redirect to /admin", first)
	}

	for i := 0; i < 3; i++ {
		if d := o.Check(snap, "/profile"); d.Navigate {
			t.Fatalf("repeat Check() #%d navigated again: %+v", i, d)
		}
	}

	if d := o.Check(snap, "/admin"); d.Navigate {
		t.Errorf("Check() on the redirect target navigated: %+v", d)
	}
}

func TestObserver_NewVersionReevaluates(t *testing.T) {
	o := NewObserver(DefaultTable())

	if d := o.Check(settled(auth.RoleUser, 1), "/profile"); d.Navigate {
		t.Fatalf("user on /profile navigated: %+v", d)
	}

	// Same path, but the session is now an admin.
	if d := o.Check(settled(auth.RoleAdmin, 2), "/profile"); !d.Navigate || d.Target != "/admin" {
		t.Errorf("admin on /profile = %+v, want redirect", d)
	}
}

func TestObserver_LoadingIsNotRemembered(t *testing.T) {
	o := NewObserver(DefaultTable())

	loading := session.Snapshot{State: session.StateLoading, Loading: true, Version: 1}
	if d := o.Check(loading, "/admin"); d.Navigate {
		t.Fatalf("Check() while loading navigated: %+v", d)
	}

	if d := o.Check(settled(auth.RoleUser, 2), "/admin"); !d.Navigate || d.Target != "/unauthorized" {
		t.Errorf("Check() after settle = %+v, want redirect to /unauthorized", d)
	}
}

func TestObserver_PathChangeReevaluates(t *testing.T) {
	o := NewObserver(DefaultTable())
	snap := settled(auth.RoleAdmin, 5)

	if d := o.Check(snap, "/cart"); !d.Navigate {
		t.Fatal("admin on /cart should redirect")
	}
	if d := o.Check(snap, "/favorites"); !d.Navigate {
		t.Error("admin on /favorites should redirect")
	}
}
