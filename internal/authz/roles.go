package authz

// Role names. Roles are fixed per deployment; tenants assign them but do not
// define new ones.
const (
	RolePlatformOwner = "platform_owner"
	RolePrincipal     = "principal"
	RoleRegistrar     = "registrar"
	RoleAccountant    = "accountant"
	RoleTeacher       = "teacher"
	RoleStudent       = "student"
)

// ElevatedRoles are staff roles allowed to act on records they do not own.
var ElevatedRoles = []string{RolePrincipal, RoleRegistrar, RoleAccountant, RoleTeacher}

// Grant is the resolved authorization state of a user within a tenant.
type Grant struct {
	Roles       []string
	Permissions []string
}

// HasRole reports whether the grant includes the role.
func (g *Grant) HasRole(role string) bool {
	for _, r := range g.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// HasAnyRole reports whether the grant includes at least one of the roles.
func (g *Grant) HasAnyRole(roles ...string) bool {
	for _, role := range roles {
		if g.HasRole(role) {
			return true
		}
	}
	return false
}
