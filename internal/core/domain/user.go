package domain

const (
	RoleAdmin = "admin"
	RoleHost  = "host"
)

// Identity is the authenticated caller as resolved from the bearer token.
// Users and companies are managed elsewhere; only these claims are consumed.
type Identity struct {
	UserID    string
	Username  string
	Role      string
	CompanyID string
}
