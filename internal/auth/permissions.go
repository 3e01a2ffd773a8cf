package auth

import "slices"

// Permission represents a named capability exposed to the view layer.
type Permission string

// Permission constants.
const (
	PermListingBrowse   Permission = "listing:browse"
	PermListingCreate   Permission = "listing:create"
	PermCartUse         Permission = "cart:use"
	PermFavoritesUse    Permission = "favorites:use"
	PermMembershipBuy   Permission = "membership:buy"
	PermPaymentMake     Permission = "payment:make"
	PermProfileEdit     Permission = "profile:edit"
	PermListingModerate Permission = "listing:moderate"
	PermStaffDashboard  Permission = "dashboard:staff"
	PermUserManage      Permission = "user:manage"
	PermAdminDashboard  Permission = "dashboard:admin"
)

// rolePermissions maps each role to its granted permissions.
// Admins do not get the member shopping capabilities: the admin account
// only operates the dashboard.
var rolePermissions = map[Role][]Permission{
	RoleAnonymous: {
		PermListingBrowse,
	},
	RoleUser: {
		PermListingBrowse,
		PermListingCreate,
		PermCartUse,
		PermFavoritesUse,
		PermMembershipBuy,
		PermPaymentMake,
		PermProfileEdit,
	},
	RoleStaff: {
		PermListingBrowse,
		PermProfileEdit,
		PermListingModerate,
		PermStaffDashboard,
	},
	RoleAdmin: {
		PermListingBrowse,
		PermListingModerate,
		PermStaffDashboard,
		PermUserManage,
		PermAdminDashboard,
	},
}

// HasPermission returns true if the given role has the specified permission.
func HasPermission(role Role, perm Permission) bool {
	return slices.Contains(rolePermissions[role], perm)
}

// PermissionsForRole returns a copy of the permissions granted to a role.
// Returns nil for unknown roles.
func PermissionsForRole(role Role) []Permission {
	perms := rolePermissions[role]
	if perms == nil {
		return nil
	}
	return slices.Clone(perms)
}
