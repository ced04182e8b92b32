package rbac

// Role names. Keep these stable; they are part of auth contracts with the
// external admin layer.
const (
	RoleOwner      = "owner"
	RoleOperator   = "operator"
	RoleAnalyst    = "analyst"
	RoleSuperAdmin = "super_admin"
)

func IsSuperAdmin(role string) bool { return role == RoleSuperAdmin }
