package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/issueradar/issueradar/internal/model"
	"github.com/issueradar/issueradar/internal/repourl"
)

const projectColumns = `id, user_id, name, description, repo_url, subdomain, created_at, updated_at`

// ProjectUpdate holds the fields to change. Nil fields are left as they are.
type ProjectUpdate struct {
	ID          string
	Name        *string
	Description *string
	RepoURL     *string
	// Subdomain is sanitised; an empty result keeps the current subdomain.
	Subdomain *string
}

func scanProject(scan func(dest ...any) error) (*model.Project, error) {
	p := &model.Project{}
	var createdAt, updatedAt string
	if err := scan(&p.ID, &p.UserID, &p.Name, &p.Description, &p.RepoURL, &p.Subdomain, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	p.CreatedAt = parseTime(createdAt)
	p.UpdatedAt = parseTime(updatedAt)
	return p, nil
}

// CreateProject stores a new project for userID. It fails with ErrLimitExceeded
// when the user already owns the maximum number of projects for their role.
func (s *Store) CreateProject(ctx context.Context, userID string, p model.Project) (*model.Project, error) {
	p.ID = newID()
	p.UserID = userID
	p.Subdomain = repourl.SanitizeSubdomain(p.Subdomain)
	now := s.timestamp()

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		user, err := getUser(ctx, tx, userID)
		if err != nil {
			return err
		}

		var count int
		if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM projects WHERE user_id = ?`, userID).Scan(&count); err != nil {
			return fmt.Errorf("counting projects: %w", err)
		}
		if limit := model.LimitFor(user.Role).MaxProjects; count >= limit {
			return fmt.Errorf("%w: %s accounts can have at most %d projects", ErrLimitExceeded, user.Role, limit)
		}

		_, err = tx.ExecContext(ctx,
			`INSERT INTO projects (`+projectColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			p.ID, p.UserID, p.Name, p.Description, p.RepoURL, p.Subdomain, now, now,
		)
		if err != nil {
			return fmt.Errorf("creating project: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.GetProject(ctx, userID, p.ID)
}

// GetProject returns a project owned by userID.
func (s *Store) GetProject(ctx context.Context, userID, id string) (*model.Project, error) {
	return getProject(ctx, s.db, userID, id)
}

func getProject(ctx context.Context, q queryer, userID, id string) (*model.Project, error) {
	row := q.QueryRowContext(ctx,
		`SELECT `+projectColumns+` FROM projects WHERE id = ? AND user_id = ?`, id, userID)
	p, err := scanProject(row.Scan)
	if err != nil {
		return nil, notFound(err, "project")
	}
	return p, nil
}

// ListProjects returns the user's projects, newest first.
func (s *Store) ListProjects(ctx context.Context, userID string) ([]model.Project, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+projectColumns+` FROM projects WHERE user_id = ? ORDER BY created_at DESC, rowid DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("listing projects: %w", err)
	}
	defer rows.Close()

	results := []model.Project{}
	for rows.Next() {
		p, err := scanProject(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scanning project: %w", err)
		}
		results = append(results, *p)
	}
	return results, rows.Err()
}

// UpdateProject applies u to a project owned by userID.
func (s *Store) UpdateProject(ctx context.Context, userID string, u ProjectUpdate) (*model.Project, error) {
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		current, err := getProject(ctx, tx, userID, u.ID)
		if err != nil {
			return err
		}

		next := *current
		if u.Name != nil {
			next.Name = *u.Name
		}
		if u.Description != nil {
			next.Description = *u.Description
		}
		if u.RepoURL != nil {
			next.RepoURL = strings.TrimSpace(*u.RepoURL)
		}
		if u.Subdomain != nil {
			if sub := repourl.SanitizeSubdomain(*u.Subdomain); sub != "" {
				next.Subdomain = sub
			}
		}

		_, err = tx.ExecContext(ctx,
			`UPDATE projects SET name = ?, description = ?, repo_url = ?, subdomain = ?, updated_at = ?
			 WHERE id = ? AND user_id = ?`,
			next.Name, next.Description, next.RepoURL, next.Subdomain, s.timestamp(), u.ID, userID,
		)
		if err != nil {
			return fmt.Errorf("updating project: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.GetProject(ctx, userID, u.ID)
}

// DeleteProject removes a project together with its posts and digests.
func (s *Store) DeleteProject(ctx context.Context, userID, id string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := getProject(ctx, tx, userID, id); err != nil {
			return err
		}
		for _, stmt := range []string{
			`DELETE FROM posts WHERE project_id = ?`,
			`DELETE FROM digests WHERE project_id = ?`,
			`DELETE FROM projects WHERE id = ?`,
		} {
			if _, err := tx.ExecContext(ctx, stmt, id); err != nil {
				return fmt.Errorf("deleting project: %w", err)
			}
		}
		return nil
	})
}
