package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/issueradar/issueradar/internal/model"
)

const digestColumns = `d.id, d.project_id, d.content, d.published, d.created_at, d.updated_at`

// DigestUpdate holds the fields to change. Nil fields are left as they are.
type DigestUpdate struct {
	ID        string
	Content   *string
	Published *bool
}

func scanDigest(scan func(dest ...any) error) (*model.Digest, error) {
	d := &model.Digest{}
	var createdAt, updatedAt string
	if err := scan(&d.ID, &d.ProjectID, &d.Content, &d.Published, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	d.CreatedAt = parseTime(createdAt)
	d.UpdatedAt = parseTime(updatedAt)
	return d, nil
}

// CreateDigest stores a digest for a project owned by userID. It is idempotent:
// when d.ID is set and already stored, the existing digest is returned unchanged,
// so a retried write never creates a duplicate. An empty d.ID gets a new id.
// The per-project quota of the owner's role is enforced for new digests only.
func (s *Store) CreateDigest(ctx context.Context, userID string, d model.Digest) (*model.Digest, error) {
	if d.ID == "" {
		d.ID = newID()
	}

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := getProject(ctx, tx, userID, d.ProjectID); err != nil {
			return err
		}

		if existing, err := getDigest(ctx, tx, userID, d.ID); err == nil {
			if existing.ProjectID != d.ProjectID {
				return fmt.Errorf("digest %s belongs to another project: %w", d.ID, ErrNotFound)
			}
			return nil
		} else if !errors.Is(err, ErrNotFound) {
			return err
		}

		user, err := getUser(ctx, tx, userID)
		if err != nil {
			return err
		}
		var count int
		if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM digests WHERE project_id = ?`, d.ProjectID).Scan(&count); err != nil {
			return fmt.Errorf("counting digests: %w", err)
		}
		if limit := model.LimitFor(user.Role).MaxDigests; count >= limit {
			return fmt.Errorf("%w: %s accounts can keep at most %d digests per project", ErrLimitExceeded, user.Role, limit)
		}

		now := s.timestamp()
		_, err = tx.ExecContext(ctx,
			`INSERT INTO digests (id, project_id, content, published, created_at, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?)
			 ON CONFLICT(id) DO NOTHING`,
			d.ID, d.ProjectID, d.Content, d.Published, now, now,
		)
		if err != nil {
			return fmt.Errorf("creating digest: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.GetDigest(ctx, userID, d.ID)
}

// CanCreateDigest reports ErrLimitExceeded when the project is at its digest quota.
func (s *Store) CanCreateDigest(ctx context.Context, userID, projectID string) error {
	user, err := s.GetUser(ctx, userID)
	if err != nil {
		return err
	}
	count, err := s.CountDigests(ctx, userID, projectID)
	if err != nil {
		return err
	}
	if limit := model.LimitFor(user.Role).MaxDigests; count >= limit {
		return fmt.Errorf("%w: %s accounts can keep at most %d digests per project", ErrLimitExceeded, user.Role, limit)
	}
	return nil
}

// GetDigest returns a digest whose project is owned by userID.
func (s *Store) GetDigest(ctx context.Context, userID, id string) (*model.Digest, error) {
	return getDigest(ctx, s.db, userID, id)
}

func getDigest(ctx context.Context, q queryer, userID, id string) (*model.Digest, error) {
	row := q.QueryRowContext(ctx,
		`SELECT `+digestColumns+` FROM digests d JOIN projects pr ON pr.id = d.project_id
		 WHERE d.id = ? AND pr.user_id = ?`, id, userID)
	d, err := scanDigest(row.Scan)
	if err != nil {
		return nil, notFound(err, "digest")
	}
	return d, nil
}

// LatestDigest returns the active digest of a project and the project's digest count.
// A project without digests yields a nil digest and a zero count.
func (s *Store) LatestDigest(ctx context.Context, userID, projectID string) (*model.Digest, int, error) {
	if _, err := s.GetProject(ctx, userID, projectID); err != nil {
		return nil, 0, err
	}

	count, err := s.CountDigests(ctx, userID, projectID)
	if err != nil {
		return nil, 0, err
	}
	if count == 0 {
		return nil, 0, nil
	}

	row := s.db.QueryRowContext(ctx,
		`SELECT `+digestColumns+` FROM digests d WHERE d.project_id = ?
		 ORDER BY d.created_at DESC, d.rowid DESC LIMIT 1`, projectID)
	d, err := scanDigest(row.Scan)
	if err != nil {
		return nil, 0, notFound(err, "digest")
	}
	return d, count, nil
}

// CountDigests returns how many digests a project has.
func (s *Store) CountDigests(ctx context.Context, userID, projectID string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM digests d JOIN projects pr ON pr.id = d.project_id
		 WHERE d.project_id = ? AND pr.user_id = ?`, projectID, userID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting digests: %w", err)
	}
	return count, nil
}

// ListDigests returns all digests of a project, newest first.
func (s *Store) ListDigests(ctx context.Context, userID, projectID string) ([]model.Digest, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+digestColumns+` FROM digests d JOIN projects pr ON pr.id = d.project_id
		 WHERE d.project_id = ? AND pr.user_id = ?
		 ORDER BY d.created_at DESC, d.rowid DESC`, projectID, userID)
	if err != nil {
		return nil, fmt.Errorf("listing digests: %w", err)
	}
	defer rows.Close()

	results := []model.Digest{}
	for rows.Next() {
		d, err := scanDigest(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scanning digest: %w", err)
		}
		results = append(results, *d)
	}
	return results, rows.Err()
}

// UpdateDigest applies u to a digest whose project is owned by userID.
func (s *Store) UpdateDigest(ctx context.Context, userID string, u DigestUpdate) (*model.Digest, error) {
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		current, err := getDigest(ctx, tx, userID, u.ID)
		if err != nil {
			return err
		}
		if u.Content != nil {
			current.Content = *u.Content
		}
		if u.Published != nil {
			current.Published = *u.Published
		}
		_, err = tx.ExecContext(ctx,
			`UPDATE digests SET content = ?, published = ?, updated_at = ? WHERE id = ?`,
			current.Content, current.Published, s.timestamp(), u.ID,
		)
		if err != nil {
			return fmt.Errorf("updating digest: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.GetDigest(ctx, userID, u.ID)
}

// DeleteDigest removes a digest whose project is owned by userID.
func (s *Store) DeleteDigest(ctx context.Context, userID, id string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := getDigest(ctx, tx, userID, id); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM digests WHERE id = ?`, id); err != nil {
			return fmt.Errorf("deleting digest: %w", err)
		}
		return nil
	})
}
