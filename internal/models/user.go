package models

// UserRole represents the available roles for the RBAC system.
type UserRole string

const (
	RoleAdmin   UserRole = "ADMIN"
	RoleTeacher UserRole = "TEACHER"
	RoleStudent UserRole = "STUDENT"
)

// User is an account from the seeded user directory.
type User struct {
	ID           string   `json:"id"`
	Email        string   `json:"email"`
	PasswordHash string   `json:"-"`
	Name         string   `json:"name"`
	Role         UserRole `json:"role"`
	TeacherID    *int64   `json:"teacherId,omitempty"`
	Department   string   `json:"department,omitempty"`
}

// Actor is the authenticated caller of a lifecycle operation.
type Actor struct {
	UserID     string
	Name       string
	Role       UserRole
	TeacherID  *int64
	Department string
}

// IsAdmin reports whether the actor administers substitutions.
func (a *Actor) IsAdmin() bool {
	return a != nil && a.Role == RoleAdmin
}

// IsTeacher reports whether the actor is the teacher with the given id.
func (a *Actor) IsTeacher(teacherID int64) bool {
	return a != nil && a.Role == RoleTeacher && a.TeacherID != nil && *a.TeacherID == teacherID
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}
