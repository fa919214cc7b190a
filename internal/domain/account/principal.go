package account

// Principal is the authenticated account a request acts as.
type Principal struct {
	CompanyID string
	AccountID string
	Email     string
	Role      string
}

// IsAdmin reports whether the principal has the admin role.
func (p Principal) IsAdmin() bool {
	return p.Role == RoleAdmin
}

// CanSee reports whether the principal may read or change a record owned by ownerID.
// Admins see every record of their company; employees only their own.
func (p Principal) CanSee(ownerID string) bool {
	return p.IsAdmin() || (ownerID != "" && ownerID == p.AccountID)
}

// ScopeOwner returns the owner filter a list query must apply: empty for
// admins (no narrowing), the principal's own ID for employees.
func (p Principal) ScopeOwner(requested string) string {
	if p.IsAdmin() {
		return requested
	}
	return p.AccountID
}
