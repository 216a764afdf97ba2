package model

// Role is the access profile of a user.
type Role string

// Roles known to the system.
const (
	RoleBroker        Role = "broker"
	RoleAnalyst       Role = "analyst"
	RoleAdministrator Role = "administrator"
	RoleAuditor       Role = "auditor"
	RoleManager       Role = "manager"
)

// RoleDefinition describes a seeded role.
type RoleDefinition struct {
	Name        Role   `json:"name"`
	Description string `json:"description"`
}

// DefaultRoles is the role catalog seeded into every database.
var DefaultRoles = []RoleDefinition{
	{Name: RoleBroker, Description: "Uploads tax files and views qualified records."},
	{Name: RoleAnalyst, Description: "Validates tax rules and creates qualified records."},
	{Name: RoleAdministrator, Description: "Full control over the system."},
	{Name: RoleAuditor, Description: "Reads the audit log and reports."},
	{Name: RoleManager, Description: "Views the dashboard and indicators."},
}

// ParseRole returns the role named by s.
func ParseRole(s string) (Role, bool) {
	for _, def := range DefaultRoles {
		if string(def.Name) == s {
			return def.Name, true
		}
	}
	return "", false
}

// User is an authenticated actor. Authentication itself happens outside
// this application; users here only carry identity and role.
type User struct {
	Username    string `json:"username"`
	DisplayName string `json:"display_name"`
	Role        Role   `json:"role"`
	ID          int64  `json:"id"`
	IsSuperuser bool   `json:"is_superuser"`
}

// HasAnyRole reports whether the user may act under one of roles. Superusers
// always may; users without a role never may.
func (u *User) HasAnyRole(roles ...Role) bool {
	if u == nil {
		return false
	}
	if u.IsSuperuser {
		return true
	}
	if u.Role == "" {
		return false
	}
	for _, r := range roles {
		if u.Role == r {
			return true
		}
	}
	return false
}
