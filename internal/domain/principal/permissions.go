package principal

// Permission names checked by route guards and UI feature toggles.
const (
	// PermissionAll is the wildcard granted to super admins.
	PermissionAll = "*"

	PermManageEvents       = "manage_events"
	PermManageBooks        = "manage_books"
	PermManageVideos       = "manage_videos"
	PermManagePhotos       = "manage_photos"
	PermManageTestimonials = "manage_testimonials"
	PermManageUsers        = "manage_users"
	PermViewDashboard      = "view_dashboard"
)

// rolePermissions is the static role -> permission table.
// super_admin is handled separately via the wildcard.
var rolePermissions = map[Role][]string{
	RoleAdmin: {
		PermManageEvents,
		PermManageBooks,
		PermManageVideos,
		PermManagePhotos,
		PermManageTestimonials,
		PermViewDashboard,
	},
	RoleModerator: {
		PermManageEvents,
		PermManageTestimonials,
		PermViewDashboard,
	},
	RoleReadOnly: {
		PermViewDashboard,
	},
}

// HasPermission reports whether the principal's role covers the permission.
// Super admins hold the wildcard and pass every check.
func (p *Principal) HasPermission(permission string) bool {
	if p.Role == RoleSuperAdmin {
		return true
	}
	for _, granted := range rolePermissions[p.Role] {
		if granted == permission || granted == PermissionAll {
			return true
		}
	}
	return false
}

// Permissions returns the permission set granted to a role.
// Super admins return the wildcard only.
func Permissions(role Role) []string {
	if role == RoleSuperAdmin {
		return []string{PermissionAll}
	}
	perms := rolePermissions[role]
	result := make([]string, len(perms))
	copy(result, perms)
	return result
}
