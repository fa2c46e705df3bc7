package model

import "time"

// UserRole determines the quota a user is allowed.
type UserRole string

const (
	UserRoleUser  UserRole = "USER"
	UserRoleAdmin UserRole = "ADMIN"
)

// Limit caps how many records a user may own.
type Limit struct {
	MaxProjects int `json:"maxProjects"`
	MaxDigests  int `json:"maxDigests"`
}

// Limits holds the quota for every role.
var Limits = map[UserRole]Limit{
	UserRoleUser:  {MaxProjects: 3, MaxDigests: 10},
	UserRoleAdmin: {MaxProjects: 99, MaxDigests: 9999},
}

// LimitFor returns the quota of a role. Unknown roles get the USER quota.
func LimitFor(role UserRole) Limit {
	if l, ok := Limits[role]; ok {
		return l
	}
	return Limits[UserRoleUser]
}

// User owns projects.
type User struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email,omitempty"`
	Role      UserRole  `json:"role"`
	CreatedAt time.Time `json:"createdAt"`
}

// Project is a repository tracked by a user.
type Project struct {
	ID          string    `json:"id"`
	UserID      string    `json:"userId"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	RepoURL     string    `json:"repoUrl"`
	Subdomain   string    `json:"subdomain"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Post is a user-authored article attached to a project.
type Post struct {
	ID          string    `json:"id"`
	ProjectID   string    `json:"projectId"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Content     string    `json:"content,omitempty"`
	Slug        string    `json:"slug"`
	Published   bool      `json:"published"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Digest is a generated summary of a project's issues.
// The active digest of a project is the one created most recently.
type Digest struct {
	ID        string    `json:"id"`
	ProjectID string    `json:"projectId"`
	Content   string    `json:"content"`
	Published bool      `json:"published"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}
