package store

import (
	"context"
	"fmt"

	"github.com/issueradar/issueradar/internal/model"
)

// EnsureUser creates the user or refreshes its name, email and role.
func (s *Store) EnsureUser(ctx context.Context, u model.User) (*model.User, error) {
	if u.ID == "" {
		return nil, fmt.Errorf("ensuring user: empty id")
	}
	if u.Role == "" {
		u.Role = model.UserRoleUser
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (id, name, email, role, created_at) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET name = excluded.name, email = excluded.email, role = excluded.role`,
		u.ID, u.Name, u.Email, string(u.Role), s.timestamp(),
	)
	if err != nil {
		return nil, fmt.Errorf("upserting user: %w", err)
	}
	return s.GetUser(ctx, u.ID)
}

// GetUser returns a user by id.
func (s *Store) GetUser(ctx context.Context, id string) (*model.User, error) {
	return getUser(ctx, s.db, id)
}

func getUser(ctx context.Context, q queryer, id string) (*model.User, error) {
	u := &model.User{}
	var role, createdAt string
	err := q.QueryRowContext(ctx,
		`SELECT id, name, email, role, created_at FROM users WHERE id = ?`, id,
	).Scan(&u.ID, &u.Name, &u.Email, &role, &createdAt)
	if err != nil {
		return nil, notFound(err, "user")
	}
	u.Role = model.UserRole(role)
	u.CreatedAt = parseTime(createdAt)
	return u, nil
}
