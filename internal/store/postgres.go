package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) DB() *sql.DB {
	return s.db
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *PostgresStore) CreateUser(ctx context.Context, displayName, email, passwordHash string) (User, error) {
	var user User
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO users (display_name, email, password_hash)
		VALUES ($1, LOWER($2), $3)
		RETURNING id, display_name, email, password_hash, created_at, updated_at
	`, displayName, email, passwordHash).Scan(
		&user.ID, &user.DisplayName, &user.Email, &user.PasswordHash, &user.CreatedAt, &user.UpdatedAt,
	)
	if err != nil {
		return User{}, fmt.Errorf("insert user: %w", err)
	}
	return user, nil
}

func (s *PostgresStore) GetUserByEmail(ctx context.Context, email string) (User, error) {
	var user User
	err := s.db.QueryRowContext(ctx, `
		SELECT id, display_name, email, password_hash, created_at, updated_at
		FROM users
		WHERE email = LOWER($1)
	`, email).Scan(&user.ID, &user.DisplayName, &user.Email, &user.PasswordHash, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		return User{}, err
	}
	return user, nil
}

func (s *PostgresStore) GetUserByID(ctx context.Context, userID string) (User, error) {
	var user User
	err := s.db.QueryRowContext(ctx, `
		SELECT id, display_name, email, password_hash, created_at, updated_at
		FROM users
		WHERE id = $1
	`, userID).Scan(&user.ID, &user.DisplayName, &user.Email, &user.PasswordHash, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		return User{}, err
	}
	return user, nil
}

func (s *PostgresStore) SaveRefreshSession(ctx context.Context, tokenHash, userID string, expiresAt time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO refresh_sessions (token_hash, user_id, expires_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (token_hash) DO UPDATE SET user_id=EXCLUDED.user_id, expires_at=EXCLUDED.expires_at, revoked_at=NULL
	`, tokenHash, userID, expiresAt)
	if err != nil {
		return fmt.Errorf("save refresh session: %w", err)
	}
	return nil
}

func (s *PostgresStore) RevokeRefreshSession(ctx context.Context, tokenHash string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE refresh_sessions SET revoked_at=NOW() WHERE token_hash=$1`, tokenHash)
	if err != nil {
		return fmt.Errorf("revoke refresh session: %w", err)
	}
	return nil
}

func (s *PostgresStore) LookupRefreshSession(ctx context.Context, tokenHash string) (User, error) {
	const query = `
		SELECT u.id, u.display_name, u.email, u.password_hash, u.created_at, u.updated_at
		FROM refresh_sessions rs
		JOIN users u ON u.id = rs.user_id
		WHERE rs.token_hash = $1
			AND rs.revoked_at IS NULL
			AND rs.expires_at > NOW()
	`
	var user User
	err := s.db.QueryRowContext(ctx, query, tokenHash).Scan(
		&user.ID, &user.DisplayName, &user.Email, &user.PasswordHash, &user.CreatedAt, &user.UpdatedAt,
	)
	if err != nil {
		return User{}, err
	}
	return user, nil
}

func (s *PostgresStore) ListStories(ctx context.Context, ownerID string) ([]StorySummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, title, COALESCE(document->'genre', '[]'::jsonb), COALESCE(document->'progress', '{}'::jsonb), updated_at
		FROM stories
		WHERE owner_id = $1
		ORDER BY updated_at DESC
	`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list stories: %w", err)
	}
	defer rows.Close()

	items := make([]StorySummary, 0)
	for rows.Next() {
		var item StorySummary
		var genre, progress []byte
		if err := rows.Scan(&item.ID, &item.Title, &genre, &progress, &item.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan story: %w", err)
		}
		if err := json.Unmarshal(genre, &item.Genre); err != nil {
			return nil, fmt.Errorf("decode story genre: %w", err)
		}
		if err := json.Unmarshal(progress, &item.Progress); err != nil {
			return nil, fmt.Errorf("decode story progress: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate stories: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) GetStory(ctx context.Context, ownerID, storyID string) (Story, error) {
	var item Story
	err := s.db.QueryRowContext(ctx, `
		SELECT id, owner_id, title, document, created_at, updated_at
		FROM stories
		WHERE id = $1 AND owner_id = $2
	`, storyID, ownerID).Scan(&item.ID, &item.OwnerID, &item.Title, &item.Document, &item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		return Story{}, err
	}
	return item, nil
}

func (s *PostgresStore) InsertStory(ctx context.Context, item Story) (Story, error) {
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO stories (id, owner_id, title, document)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at, updated_at
	`, item.ID, item.OwnerID, item.Title, item.Document).Scan(&item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		return Story{}, fmt.Errorf("insert story: %w", err)
	}
	return item, nil
}

// MergeStoryDocument applies a partial save. The JSONB merge replaces each
// top-level section the payload carries and leaves the rest untouched,
// which is exactly the autosave contract: last write wins per section.
func (s *PostgresStore) MergeStoryDocument(ctx context.Context, ownerID, storyID string, patch json.RawMessage) (Story, error) {
	var item Story
	err := s.db.QueryRowContext(ctx, `
		UPDATE stories
		SET document = document || $3::jsonb,
			title = COALESCE(NULLIF(($3::jsonb)->>'title', ''), title),
			updated_at = NOW()
		WHERE id = $1 AND owner_id = $2
		RETURNING id, owner_id, title, document, created_at, updated_at
	`, storyID, ownerID, patch).Scan(&item.ID, &item.OwnerID, &item.Title, &item.Document, &item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		return Story{}, err
	}
	return item, nil
}

func (s *PostgresStore) DeleteStory(ctx context.Context, ownerID, storyID string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM stories WHERE id=$1 AND owner_id=$2`, storyID, ownerID)
	if err != nil {
		return fmt.Errorf("delete story: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete story: %w", err)
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// IsUniqueViolation reports whether err is a unique-constraint failure,
// used to map duplicate signups to a conflict response.
func IsUniqueViolation(err error) bool {
	type coder interface{ SQLState() string }
	var c coder
	if errors.As(err, &c) {
		return c.SQLState() == "23505"
	}
	return false
}
