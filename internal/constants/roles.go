package constants

// Roles. ADMIN runs the back office, AGENT staffs the physical store
// (scans), USER buys and sells.
const (
	Admin = "ADMIN"
	Agent = "AGENT"
	User  = "USER"
)

// Permissions guarding back-office and store routes.
const (
	ModerateListings = "moderate_listings"
	ScanCodes        = "scan_codes"
	ProcessPayouts   = "process_payouts"
	ViewTransactions = "view_transactions"
)

// PermissionRoles maps each permission to the roles allowed to perform it.
var PermissionRoles = map[string][]string{
	ModerateListings: {Admin},
	ScanCodes:        {Admin, Agent},
	ProcessPayouts:   {Admin},
	ViewTransactions: {Admin},
}

// AllowedRole returns true if role is in the list of allowed roles for the permission.
func AllowedRole(permission, role string) bool {
	roles, ok := PermissionRoles[permission]
	if !ok {
		return false
	}
	for _, r := range roles {
		if r == role {
			return true
		}
	}
	return false
}
