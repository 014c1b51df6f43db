package authcore

import "fmt"

// Role is the account role assigned at signup. The set is closed; anything
// outside it is rejected at validation time.
type Role string

const (
	RoleClient     Role = "CLIENT"
	RoleHomeOwner  Role = "HOME_OWNER"
	RoleAdmin      Role = "ADMIN"
	RoleOperations Role = "OPERATIONS"
	RoleFinance    Role = "FINANCE"
	RoleSupport    Role = "SUPPORT"
)

var allRoles = []Role{
	RoleClient, RoleHomeOwner, RoleAdmin, RoleOperations, RoleFinance, RoleSupport,
}

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	for _, known := range allRoles {
		if r == known {
			return true
		}
	}
	return false
}

func (r Role) String() string { return string(r) }

// ParseRole maps a wire value to a Role. Empty defaults to CLIENT.
func ParseRole(value string) (Role, error) {
	if value == "" {
		return RoleClient, nil
	}
	role := Role(value)
	if !role.Valid() {
		return "", fmt.Errorf("%w: unknown role %q", ErrValidation, value)
	}
	return role, nil
}

// dashboardPath is the per-role landing path appended to the frontend URL
// when no explicit dashboard URL is configured.
var dashboardPath = map[Role]string{
	RoleClient:     "/dashboard/client",
	RoleHomeOwner:  "/dashboard/home-owner",
	RoleAdmin:      "/dashboard/admin",
	RoleOperations: "/dashboard/operations",
	RoleFinance:    "/dashboard/finance",
	RoleSupport:    "/dashboard/support",
}
