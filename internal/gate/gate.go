package gate

import (
	"github.com/eco-green-group4/evmarket-web/internal/auth"
	"github.com/eco-green-group4/evmarket-web/internal/session"
)

// Rule names the restriction that produced a Decision.
type Rule string

const (
	RuleNone          Rule = ""
	RuleLoading       Rule = "loading"
	RuleAdminUserOnly Rule = "admin_user_only"
	RuleAdminHome     Rule = "admin_home"
	RuleAdminOnly     Rule = "admin_only"
	RuleStaffOnly     Rule = "staff_only"
	RuleLoginRequired Rule = "login_required"
)

// Decision is the outcome of one evaluation.
type Decision struct {
	// Navigate is true when the client must leave the path.
	Navigate bool
	Target   string

	// Replace means the forbidden path must not stay in history.
	Replace bool
	Rule    Rule
}

// Evaluate applies the table to snap and path.
func (t Table) Evaluate(snap session.Snapshot, p string) Decision {
	if snap.Loading {
		return Decision{Rule: RuleLoading}
	}

	role := snap.Role
	switch {
	case role == auth.RoleAdmin && t.isUserOnly(p):
		return t.redirect(t.AdminHome, RuleAdminUserOnly)
	case role == auth.RoleAdmin && clean(p) == clean(t.Home):
		return t.redirect(t.AdminHome, RuleAdminHome)
	case role != auth.RoleAdmin && under(p, t.AdminPrefix):
		return t.redirect(t.Unauthorized, RuleAdminOnly)
	case role != auth.RoleAdmin && role != auth.RoleStaff && under(p, t.StaffPrefix):
		return t.redirect(t.Unauthorized, RuleStaffOnly)
	case role == auth.RoleAnonymous && t.RequireLoginForUserOnly && t.isUserOnly(p):
		return t.redirect(t.Login, RuleLoginRequired)
	}
	return Decision{}
}

// Loading reports whether the decision was deferred because the session is loading.
func (d Decision) Loading() bool {
	return d.Rule == RuleLoading
}

func (t Table) redirect(target string, rule Rule) Decision {
	return Decision{Navigate: true, Target: target, Replace: true, Rule: rule}
}
