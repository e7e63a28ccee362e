package models

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// EmployeeRole represents the available roles for the RBAC system.
type EmployeeRole string

const (
	RoleAdmin       EmployeeRole = "ADMIN"
	RoleResponsible EmployeeRole = "RESPONSIBLE"
	RoleOperator    EmployeeRole = "OPERATOR"
)

// Employee is a staff member who acts on turns.
type Employee struct {
	ID           string       `db:"id" json:"id"`
	Email        string       `db:"email" json:"email"`
	PasswordHash string       `db:"password_hash" json:"-"`
	FullName     string       `db:"full_name" json:"full_name"`
	Role         EmployeeRole `db:"role" json:"role"`
	DepartmentID *string      `db:"department_id" json:"department_id,omitempty"`
	Active       bool         `db:"active" json:"active"`
	LastLogin    *time.Time   `db:"last_login" json:"last_login,omitempty"`
	CreatedAt    time.Time    `db:"created_at" json:"created_at"`
}

// CanActOn reports whether the employee may operate on a department's queue:
// admins anywhere, members of the department, or its designated responsible.
func (e Employee) CanActOn(dept Department) bool {
	if e.Role == RoleAdmin {
		return true
	}
	if e.DepartmentID != nil && *e.DepartmentID == dept.ID {
		return true
	}
	if dept.ResponsibleEmployeeID != nil && *dept.ResponsibleEmployeeID == e.ID {
		return true
	}
	return false
}

// JWTClaims carries the authenticated employee identity.
type JWTClaims struct {
	EmployeeID   string       `json:"employee_id"`
	Email        string       `json:"email"`
	Role         EmployeeRole `json:"role"`
	DepartmentID string       `json:"department_id,omitempty"`
	jwt.RegisteredClaims
}

// RefreshToken persists a rotating refresh token.
type RefreshToken struct {
	ID         string     `db:"id" json:"id"`
	EmployeeID string     `db:"employee_id" json:"employee_id"`
	Token      string     `db:"token" json:"token"`
	ExpiresAt  time.Time  `db:"expires_at" json:"expires_at"`
	CreatedAt  time.Time  `db:"created_at" json:"created_at"`
	Revoked    bool       `db:"revoked" json:"revoked"`
	RevokedAt  *time.Time `db:"revoked_at" json:"revoked_at,omitempty"`
}

// LoginRequest holds credentials for authenticating an employee.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// LoginResponse returns the issued tokens and employee info.
type LoginResponse struct {
	AccessToken  string       `json:"access_token"`
	RefreshToken string       `json:"refresh_token"`
	ExpiresIn    int64        `json:"expires_in"`
	IssuedAt     time.Time    `json:"issued_at"`
	Employee     EmployeeInfo `json:"employee"`
}

// RefreshTokenRequest exchanges a refresh token for a new access token.
type RefreshTokenRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

// RefreshTokenResponse returns a rotated token pair.
type RefreshTokenResponse struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresIn    int64     `json:"expires_in"`
	IssuedAt     time.Time `json:"issued_at"`
}

// EmployeeInfo describes the authenticated employee in responses.
type EmployeeInfo struct {
	ID           string       `json:"id"`
	Email        string       `json:"email"`
	FullName     string       `json:"full_name"`
	Role         EmployeeRole `json:"role"`
	DepartmentID string       `json:"department_id,omitempty"`
}
