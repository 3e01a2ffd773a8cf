package gate

import (
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/eco-green-group4/evmarket-web/internal/infrastructure/config"
)

// Table is the route restriction table.
type Table struct {
	Home         string
	Login        string
	Unauthorized string

	// AdminPrefix is reserved to admins; AdminHome is where admins land.
	AdminPrefix string
	AdminHome   string

	// StaffPrefix is reserved to staff and admins.
	StaffPrefix string

	// UserOnly are member pages an admin is sent away from.
	UserOnly []string

	// RequireLoginForUserOnly sends anonymous visitors of UserOnly pages to Login.
	RequireLoginForUserOnly bool
}

// NewTable builds a Table from the routes configuration section.
func NewTable(cfg config.RoutesConfig) Table {
	return Table{
		Home:                    cfg.Home,
		Login:                   cfg.Login,
		Unauthorized:            cfg.Unauthorized,
		AdminPrefix:             cfg.AdminPrefix,
		AdminHome:               cfg.AdminHome,
		StaffPrefix:             cfg.StaffPrefix,
		UserOnly:                append([]string(nil), cfg.UserOnly...),
		RequireLoginForUserOnly: cfg.RequireLoginForUserOnly,
	}
}

// DefaultTable returns the marketplace's standard route table.
func DefaultTable() Table {
	return Table{
		Home:         "/",
		Login:        "/login",
		Unauthorized: "/unauthorized",
		AdminPrefix:  "/admin",
		AdminHome:    "/admin",
		StaffPrefix:  "/staff",
		UserOnly: []string{
			"/profile", "/create-post", "/cart", "/vehicles", "/batteries",
			"/membership", "/favorites", "/history", "/waiting-approval", "/payment",
		},
	}
}

// ErrRedirectLoop is wrapped by every Validate failure.
var ErrRedirectLoop = errors.New("redirect target is itself restricted")

// Validate checks that no redirect target is restricted for the role sent
// there, so the gate can never bounce a client between two rules.
func (t Table) Validate() error {
	var errs []string

	for _, target := range []struct{ name, path string }{
		{"home", t.Home},
		{"login", t.Login},
		{"unauthorized", t.Unauthorized},
		{"admin_home", t.AdminHome},
	} {
		if !strings.HasPrefix(target.path, "/") {
			errs = append(errs, fmt.Sprintf("%s path %q must start with /", target.name, target.path))
		}
	}
	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}

	// Admins are sent to AdminHome.
	if t.isUserOnly(t.AdminHome) {
		errs = append(errs, fmt.Sprintf("admin home %q is a user-only path", t.AdminHome))
	}
	if clean(t.AdminHome) == clean(t.Home) {
		errs = append(errs, fmt.Sprintf("admin home %q equals home", t.AdminHome))
	}

	// Non-admins (and non-staff) are sent to Unauthorized.
	if under(t.Unauthorized, t.AdminPrefix) {
		errs = append(errs, fmt.Sprintf("unauthorized page %q is under the admin prefix", t.Unauthorized))
	}
	if under(t.Unauthorized, t.StaffPrefix) {
		errs = append(errs, fmt.Sprintf("unauthorized page %q is under the staff prefix", t.Unauthorized))
	}
	if t.isUserOnly(t.Unauthorized) {
		errs = append(errs, fmt.Sprintf("unauthorized page %q is a user-only path", t.Unauthorized))
	}

	// Anonymous visitors are sent to Login.
	if t.RequireLoginForUserOnly && t.isUserOnly(t.Login) {
		errs = append(errs, fmt.Sprintf("login page %q is a user-only path", t.Login))
	}
	if under(t.Login, t.AdminPrefix) || under(t.Login, t.StaffPrefix) {
		errs = append(errs, fmt.Sprintf("login page %q is under a restricted prefix", t.Login))
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %s", ErrRedirectLoop, strings.Join(errs, "; "))
	}
	return nil
}

func (t Table) isUserOnly(p string) bool {
	for _, entry := range t.UserOnly {
		if under(p, entry) {
			return true
		}
	}
	return false
}

// clean normalises a request path. The empty path is "/".
func clean(p string) string {
	if p == "" {
		return "/"
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return path.Clean(p)
}

// under reports whether p equals prefix or lies beneath it on a segment
// boundary: "/cart" covers "/cart/42" but not "/cartography". An empty
// prefix covers nothing.
func under(p, prefix string) bool {
	if prefix == "" {
		return false
	}
	p, prefix = clean(p), clean(prefix)
	if prefix == "/" {
		return p == "/"
	}
	return p == prefix || strings.HasPrefix(p, prefix+"/")
}
