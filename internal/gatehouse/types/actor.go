package types

type Role string

const (
	RoleResident     Role = "resident"
	RoleGuard        Role = "guard"
	RoleSocietyAdmin Role = "society_admin"
	RoleSystem       Role = "system"
)

func (r Role) Valid() bool {
	switch r {
	case RoleResident, RoleGuard, RoleSocietyAdmin, RoleSystem:
		return true
	}
	return false
}

// Actor is an already-authenticated caller.
type Actor struct {
	ID   string
	Role Role
}

// SystemActor decides on behalf of the timeout scheduler.
var SystemActor = Actor{ID: "system", Role: RoleSystem}

func (a Actor) IsSystem() bool { return a.Role == RoleSystem }

// IsStaff reports guard or admin.
func (a Actor) IsStaff() bool {
	return a.Role == RoleGuard || a.Role == RoleSocietyAdmin
}
