package models

import "time"

// UserRole represents the available roles for the RBAC system.
type UserRole string

const (
	RoleStudent UserRole = "STUDENT"
	RoleStaff   UserRole = "STAFF"
	RoleChair   UserRole = "CHAIR"
	RoleAdmin   UserRole = "ADMIN"
)

// Valid reports whether the role is one of the known enumeration values.
func (r UserRole) Valid() bool {
	switch r {
	case RoleStudent, RoleStaff, RoleChair, RoleAdmin:
		return true
	}
	return false
}

// ReviewerRoles lists the roles allowed to act on submitted requests.
func ReviewerRoles() []UserRole {
	return []UserRole{RoleStaff, RoleChair, RoleAdmin}
}

// User represents an application user stored in the users table.
type User struct {
	ID           string     `db:"id" json:"id"`
	Email        string     `db:"email" json:"email"`
	PasswordHash string     `db:"password_hash" json:"-"`
	Role         UserRole   `db:"role" json:"role"`
	Active       bool       `db:"active" json:"active"`
	LastLogin    *time.Time `db:"last_login" json:"last_login,omitempty"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at" json:"updated_at"`
}

// StudentProfile holds the registrar-owned identity of a student account.
// The workflow core only reads these fields.
type StudentProfile struct {
	ID        string    `db:"id" json:"id"`
	UserID    string    `db:"user_id" json:"user_id"`
	StudentNo string    `db:"student_no" json:"student_no"`
	FirstName string    `db:"first_name" json:"first_name"`
	LastName  string    `db:"last_name" json:"last_name"`
	Phone     *string   `db:"phone" json:"phone,omitempty"`
	Section   *string   `db:"section" json:"section,omitempty"`
	YearLevel *int      `db:"year_level" json:"year_level,omitempty"`
	Course    *string   `db:"course" json:"course,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}
