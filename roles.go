package auth

// Role is the single tagged role a user holds
type Role string

const (
	// RoleParticipant is a bootcamp or masterclass learner
	RoleParticipant Role = "participant"
	// RoleLecturer teaches courses
	RoleLecturer Role = "lecturer"
	// RoleDepartmentHead owns a program
	RoleDepartmentHead Role = "department_head"
	// RoleAdministrator is the superuser
	RoleAdministrator Role = "administrator"
	// RoleGuardian follows a participant
	RoleGuardian Role = "guardian"
)

// IsValid checks if the role is one of the predefined valid roles
func (r Role) IsValid() bool {
	switch r {
	case RoleParticipant, RoleLecturer, RoleDepartmentHead, RoleAdministrator, RoleGuardian:
		return true
	default:
		return false
	}
}

// Label is the human readable role name
func (r Role) Label() string {
	switch r {
	case RoleParticipant:
		return "Student"
	case RoleLecturer:
		return "Lecturer"
	case RoleDepartmentHead:
		return "Department Head"
	case RoleAdministrator:
		return "Admin"
	case RoleGuardian:
		return "Parent"
	default:
		return ""
	}
}

// IsStaff matches the admin site notion of staff
func (r Role) IsStaff() bool {
	return r == RoleAdministrator
}

// GetAllRoles returns all predefined roles
func GetAllRoles() []Role {
	return []Role{
		RoleParticipant,
		RoleLecturer,
		RoleDepartmentHead,
		RoleAdministrator,
		RoleGuardian,
	}
}

// ParseRole safely parses a string into a Role
func ParseRole(roleStr string) (Role, bool) {
	role := Role(roleStr)
	return role, role.IsValid()
}

// ExpectedRole lists the roles a login surface accepts.
// An empty ExpectedRole accepts any role.
type ExpectedRole []Role

var (
	// ParticipantLogin is used by the student login page
	ParticipantLogin = ExpectedRole{RoleParticipant}
	// LecturerLogin is used by the lecturer login page
	LecturerLogin = ExpectedRole{RoleLecturer, RoleDepartmentHead}
	// AdministratorLogin is used by the admin login page
	AdministratorLogin = ExpectedRole{RoleAdministrator}
)

// Allows reports whether role may sign in through this surface
func (e ExpectedRole) Allows(role Role) bool {
	if len(e) == 0 {
		return true
	}
	for _, r := range e {
		if r == role {
			return true
		}
	}
	return false
}
