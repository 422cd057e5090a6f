package enums

import "fmt"

// ActorRole is the role carried by an authenticated caller.
type ActorRole string

const (
	ActorRoleStudent    ActorRole = "student"
	ActorRoleFaculty    ActorRole = "faculty"
	ActorRoleSuperAdmin ActorRole = "super_admin"
	ActorRoleIncharge   ActorRole = "incharge"
	ActorRoleAssistant  ActorRole = "assistant"
)

var validActorRoles = []ActorRole{
	ActorRoleStudent,
	ActorRoleFaculty,
	ActorRoleSuperAdmin,
	ActorRoleIncharge,
	ActorRoleAssistant,
}

// String implements fmt.Stringer.
func (r ActorRole) String() string {
	return string(r)
}

// IsValid reports whether the value is a known ActorRole.
func (r ActorRole) IsValid() bool {
	for _, candidate := range validActorRoles {
		if candidate == r {
			return true
		}
	}
	return false
}

// IsStaff reports whether the role belongs to lab staff.
func (r ActorRole) IsStaff() bool {
	return r == ActorRoleSuperAdmin || r == ActorRoleIncharge || r == ActorRoleAssistant
}

// ParseActorRole converts raw input into an ActorRole.
func ParseActorRole(value string) (ActorRole, error) {
	for _, candidate := range validActorRoles {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid actor role %q", value)
}
