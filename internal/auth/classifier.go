package auth

import (
	"strings"

	"github.com/eco-green-group4/evmarket-web/internal/infrastructure/config"
)

// Default role sentinels used by the marketplace backend.
const (
	DefaultAdminRoleID = "1"
	DefaultStaffRoleID = "2"
	DefaultAdminEmail  = "admin@evmarket.com"
)

// Classifier maps a user record to a Role.
//
// An empty sentinel never matches, so a user without a roleId cannot be
// classified by identifier alone.
type Classifier struct {
	AdminRoleID string
	StaffRoleID string

	// AdminEmails are accounts treated as admin regardless of role fields.
	// This is the legacy hard-coded administrator fallback.
	AdminEmails []string
}

// NewClassifier builds a Classifier from the roles configuration section.
func NewClassifier(cfg config.RolesConfig) *Classifier {
	return &Classifier{
		AdminRoleID: cfg.AdminRoleID,
		StaffRoleID: cfg.StaffRoleID,
		AdminEmails: append([]string(nil), cfg.AdminEmails...),
	}
}

// DefaultClassifier uses the backend's default sentinels.
func DefaultClassifier() *Classifier {
	return &Classifier{
		AdminRoleID: DefaultAdminRoleID,
		StaffRoleID: DefaultStaffRoleID,
		AdminEmails: []string{DefaultAdminEmail},
	}
}

// Classify returns the role of u. Checks run in order: anonymous, admin, staff, user.
func (c *Classifier) Classify(u *User) Role {
	switch {
	case u == nil:
		return RoleAnonymous
	case c.isAdmin(u):
		return RoleAdmin
	case c.isStaff(u):
		return RoleStaff
	default:
		return RoleUser
	}
}

func (c *Classifier) isAdmin(u *User) bool {
	if matchesSentinel(u.RoleID, c.AdminRoleID) {
		return true
	}
	if strings.EqualFold(strings.TrimSpace(u.RoleName), string(RoleAdmin)) {
		return true
	}
	for _, email := range c.AdminEmails {
		if email != "" && u.Email == email {
			return true
		}
	}
	return false
}

func (c *Classifier) isStaff(u *User) bool {
	if matchesSentinel(u.RoleID, c.StaffRoleID) {
		return true
	}
	return strings.EqualFold(strings.TrimSpace(u.Role), string(RoleStaff)) ||
		strings.EqualFold(strings.TrimSpace(u.RoleName), string(RoleStaff))
}

func matchesSentinel(id ID, sentinel string) bool {
	return sentinel != "" && !id.IsZero() && strings.TrimSpace(id.String()) == sentinel
}
