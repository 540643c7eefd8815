package domain

import "strings"

const (
	RoleAdmin    = "ADMIN"
	RoleSales    = "SALES"
	RoleCustomer = "CUSTOMER"
)

// AuthContext is the trusted caller identity handed to every operation.
type AuthContext struct {
	UserID     int64
	Privileged bool
}

// NewAuthContext marks admins and sales staff as privileged.
func NewAuthContext(userID int64, roles ...string) AuthContext {
	auth := AuthContext{UserID: userID}
	for _, role := range roles {
		switch strings.ToUpper(strings.TrimSpace(role)) {
		case RoleAdmin, RoleSales:
			auth.Privileged = true
		}
	}
	return auth
}

// CanView reports whether the caller may read an order owned by ownerID.
func (a AuthContext) CanView(ownerID int64) bool {
	return a.Privileged || a.UserID == ownerID
}
