package models

import "github.com/golang-jwt/jwt/v5"

// UserRole is the role tag attached to an authenticated principal by the
// external auth layer. The engine trusts it and does not re-derive it.
type UserRole string

const (
	RoleAdmin        UserRole = "ADMIN"
	RoleTeacher      UserRole = "TEACHER"
	RoleStudent      UserRole = "STUDENT"
	RoleDriver       UserRole = "DRIVER"
	RoleBusAttendant UserRole = "BUS_ATTENDANT"
)

// Valid reports whether the role is one the system knows about.
func (r UserRole) Valid() bool {
	switch r {
	case RoleAdmin, RoleTeacher, RoleStudent, RoleDriver, RoleBusAttendant:
		return true
	default:
		return false
	}
}

// TransportRole reports whether the role scans on behalf of a bus.
func (r UserRole) TransportRole() bool {
	return r == RoleDriver || r == RoleBusAttendant
}

// JWTClaims represents the access token payload issued by the auth layer.
type JWTClaims struct {
	UserID   string   `json:"user_id"`
	Role     UserRole `json:"role"`
	FullName string   `json:"full_name"`
	jwt.RegisteredClaims
}
