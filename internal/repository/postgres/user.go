package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/lalith-99/parley/internal/errs"
	"github.com/lalith-99/parley/internal/models"
)

type UserStore struct {
	pool PgxPool
}

func NewUserStore(pool PgxPool) *UserStore {
	return &UserStore{pool: pool}
}

// Ensure upserts the principal named by a token.
//
// Why on every request instead of at signup?
//   - Signup happens in the identity service, which never touches this
//     database. The first request carrying a new token is the first time we
//     hear about the user.
//   - The WHERE on the update turns the common case (row exists, same name)
//     into a no-op, so steady-state traffic does not rewrite the row.
func (s *UserStore) Ensure(ctx context.Context, userID uuid.UUID, username string) error {
	query := `
		INSERT INTO users (id, username)
		VALUES ($1, $2)
		ON CONFLICT (id) DO UPDATE SET username = EXCLUDED.username
		WHERE users.username IS DISTINCT FROM EXCLUDED.username`

	if _, err := s.pool.Exec(ctx, query, userID, username); err != nil {
		if isUniqueViolation(err) {
			return errs.Field(errs.ErrAlreadyExists, "username is taken by another account", "username")
		}
		return fmt.Errorf("ensure user: %w", err)
	}
	return nil
}

func (s *UserStore) GetByID(ctx context.Context, userID uuid.UUID) (*models.User, error) {
	query := `
		SELECT id, username, public_key, created_at
		FROM users
		WHERE id = $1`

	var u models.User
	err := s.pool.QueryRow(ctx, query, userID).Scan(
		&u.ID,
		&u.Username,
		&u.PublicKey,
		&u.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	return &u, nil
}

func (s *UserStore) Usernames(ctx context.Context, userIDs []uuid.UUID) (map[uuid.UUID]string, error) {
	return s.lookup(ctx, `SELECT id, username FROM users WHERE id = ANY($1::uuid[])`, userIDs)
}

func (s *UserStore) SetPublicKey(ctx context.Context, userID uuid.UUID, publicKey string) (bool, error) {
	tag, err := s.pool.Exec(ctx, `UPDATE users SET public_key = $2 WHERE id = $1`, userID, publicKey)
	if err != nil {
		return false, fmt.Errorf("set public key: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (s *UserStore) PublicKeys(ctx context.Context, userIDs []uuid.UUID) (map[uuid.UUID]string, error) {
	return s.lookup(ctx, `SELECT id, public_key FROM users WHERE id = ANY($1::uuid[]) AND public_key <> ''`, userIDs)
}

func (s *UserStore) lookup(ctx context.Context, query string, userIDs []uuid.UUID) (map[uuid.UUID]string, error) {
	out := make(map[uuid.UUID]string, len(userIDs))
	if len(userIDs) == 0 {
		return out, nil
	}

	rows, err := s.pool.Query(ctx, query, userIDs)
	if err != nil {
		return nil, fmt.Errorf("lookup users: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			id  uuid.UUID
			val string
		)
		if err := rows.Scan(&id, &val); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		out[id] = val
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate users: %w", err)
	}
	return out, nil
}
