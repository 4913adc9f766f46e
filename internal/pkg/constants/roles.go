package constants

const (
	Superadmin = "superadmin"
	Admin      = "admin"
	Business   = "business"
	Bidder     = "bidder"
)

// ValidRoles is the set of allowed values for Users.role.
var ValidRoles = []string{Bidder, Business, Admin, Superadmin}

// IsValidRole returns true if role is one of the allowed values.
func IsValidRole(role string) bool {
	for _, r := range ValidRoles {
		if r == role {
			return true
		}
	}
	return false
}
