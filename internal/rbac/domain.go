package rbac

import "net/http"

// Role is a caller's resolved role.
type Role string

const (
	// RoleAdministrator may read and mutate everything.
	RoleAdministrator Role = "administrator"
	// RoleAuditor may read everything and mutate only resources
	// explicitly opened to auditors.
	RoleAuditor Role = "auditor"
	// RoleNone marks an unauthenticated caller.
	RoleNone Role = ""
)

// ResourceAdmin names the operational surface (jobs, backups). Unlike
// the data resources it is not readable by auditors.
const ResourceAdmin = "admin"

// ParseRole normalizes a stored role string.
func ParseRole(raw string) Role {
	switch Role(raw) {
	case RoleAdministrator:
		return RoleAdministrator
	case RoleAuditor:
		return RoleAuditor
	default:
		return RoleNone
	}
}

// IsWrite reports whether the HTTP verb mutates state.
func IsWrite(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return false
	default:
		return true
	}
}
