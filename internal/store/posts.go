package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/issueradar/issueradar/internal/model"
)

const postColumns = `p.id, p.project_id, p.title, p.description, p.content, p.slug, p.published, p.created_at, p.updated_at`

func scanPost(scan func(dest ...any) error) (*model.Post, error) {
	p := &model.Post{}
	var createdAt, updatedAt string
	if err := scan(&p.ID, &p.ProjectID, &p.Title, &p.Description, &p.Content, &p.Slug, &p.Published, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	p.CreatedAt = parseTime(createdAt)
	p.UpdatedAt = parseTime(updatedAt)
	return p, nil
}

// CreatePost adds a post to a project owned by userID. An empty slug is derived
// from the post id.
func (s *Store) CreatePost(ctx context.Context, userID, projectID string, p model.Post) (*model.Post, error) {
	p.ID = newID()
	p.ProjectID = projectID
	if strings.TrimSpace(p.Slug) == "" {
		p.Slug = p.ID[:8]
	}
	now := s.timestamp()

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := getProject(ctx, tx, userID, projectID); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx,
			`INSERT INTO posts (id, project_id, title, description, content, slug, published, created_at, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			p.ID, p.ProjectID, p.Title, p.Description, p.Content, p.Slug, p.Published, now, now,
		)
		if err != nil {
			return fmt.Errorf("creating post: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.GetPost(ctx, userID, p.ID)
}

// GetPost returns a post whose project is owned by userID.
func (s *Store) GetPost(ctx context.Context, userID, id string) (*model.Post, error) {
	return getPost(ctx, s.db, userID, id)
}

func getPost(ctx context.Context, q queryer, userID, id string) (*model.Post, error) {
	row := q.QueryRowContext(ctx,
		`SELECT `+postColumns+` FROM posts p JOIN projects pr ON pr.id = p.project_id
		 WHERE p.id = ? AND pr.user_id = ?`, id, userID)
	p, err := scanPost(row.Scan)
	if err != nil {
		return nil, notFound(err, "post")
	}
	return p, nil
}

// ListPosts returns the posts of a project filtered by published state, newest first.
func (s *Store) ListPosts(ctx context.Context, userID, projectID string, published bool) ([]model.Post, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+postColumns+` FROM posts p JOIN projects pr ON pr.id = p.project_id
		 WHERE p.project_id = ? AND pr.user_id = ? AND p.published = ?
		 ORDER BY p.created_at DESC, p.rowid DESC`, projectID, userID, published)
	if err != nil {
		return nil, fmt.Errorf("listing posts: %w", err)
	}
	defer rows.Close()

	results := []model.Post{}
	for rows.Next() {
		p, err := scanPost(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scanning post: %w", err)
		}
		results = append(results, *p)
	}
	return results, rows.Err()
}

// UpdatePost replaces the editable fields of a post.
func (s *Store) UpdatePost(ctx context.Context, userID string, p model.Post) (*model.Post, error) {
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		current, err := getPost(ctx, tx, userID, p.ID)
		if err != nil {
			return err
		}
		slug := strings.TrimSpace(p.Slug)
		if slug == "" {
			slug = current.Slug
		}
		_, err = tx.ExecContext(ctx,
			`UPDATE posts SET title = ?, description = ?, content = ?, slug = ?, published = ?, updated_at = ?
			 WHERE id = ?`,
			p.Title, p.Description, p.Content, slug, p.Published, s.timestamp(), p.ID,
		)
		if err != nil {
			return fmt.Errorf("updating post: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.GetPost(ctx, userID, p.ID)
}

// DeletePost removes a post whose project is owned by userID.
func (s *Store) DeletePost(ctx context.Context, userID, id string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := getPost(ctx, tx, userID, id); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM posts WHERE id = ?`, id); err != nil {
			return fmt.Errorf("deleting post: %w", err)
		}
		return nil
	})
}
