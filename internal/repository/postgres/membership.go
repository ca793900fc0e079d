package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/lalith-99/parley/internal/models"
)

type MembershipStore struct {
	pool PgxPool
}

func NewMembershipStore(pool PgxPool) *MembershipStore {
	return &MembershipStore{pool: pool}
}

// Add is idempotent: a second join hits the primary key and reports false.
func (s *MembershipStore) Add(ctx context.Context, groupID, userID uuid.UUID, isAdmin bool) (bool, error) {
	query := `
		INSERT INTO group_members (group_id, user_id, is_admin)
		VALUES ($1, $2, $3)
		ON CONFLICT (group_id, user_id) DO NOTHING`

	tag, err := s.pool.Exec(ctx, query, groupID, userID, isAdmin)
	if err != nil {
		return false, fmt.Errorf("add member: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// Remove never deletes the creator's row, whoever asks.
func (s *MembershipStore) Remove(ctx context.Context, groupID, userID uuid.UUID) (bool, error) {
	query := `
		DELETE FROM group_members gm
		USING groups g
		WHERE gm.group_id = $1 AND gm.user_id = $2
			AND g.id = gm.group_id AND g.created_by <> gm.user_id`

	tag, err := s.pool.Exec(ctx, query, groupID, userID)
	if err != nil {
		return false, fmt.Errorf("remove member: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (s *MembershipStore) Get(ctx context.Context, groupID, userID uuid.UUID) (*models.GroupMember, error) {
	query := `
		SELECT gm.group_id, gm.user_id, u.username, gm.is_admin, gm.joined_at
		FROM group_members gm
		JOIN users u ON u.id = gm.user_id
		WHERE gm.group_id = $1 AND gm.user_id = $2`

	var m models.GroupMember
	err := s.pool.QueryRow(ctx, query, groupID, userID).Scan(
		&m.GroupID,
		&m.UserID,
		&m.Username,
		&m.IsAdmin,
		&m.JoinedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get member: %w", err)
	}
	return &m, nil
}

func (s *MembershipStore) IsMember(ctx context.Context, groupID, userID uuid.UUID) (bool, error) {
	// EXISTS stops at the first match; this runs on every send and read.
	query := `
		SELECT EXISTS (
			SELECT 1 FROM group_members
			WHERE group_id = $1 AND user_id = $2
		)`

	var exists bool
	if err := s.pool.QueryRow(ctx, query, groupID, userID).Scan(&exists); err != nil {
		return false, fmt.Errorf("check membership: %w", err)
	}
	return exists, nil
}

func (s *MembershipStore) List(ctx context.Context, groupID uuid.UUID, f models.MemberFilter) ([]models.GroupMember, error) {
	var b strings.Builder
	args := []any{groupID}
	b.WriteString(`
		SELECT gm.group_id, gm.user_id, u.username, gm.is_admin, gm.joined_at
		FROM group_members gm
		JOIN users u ON u.id = gm.user_id
		WHERE gm.group_id = $1`)
	if f.Username != "" {
		// Plain substring match; % and _ in the filter are literal.
		args = append(args, f.Username)
		fmt.Fprintf(&b, ` AND strpos(lower(u.username), lower($%d)) > 0`, len(args))
	}
	if f.IsAdmin != nil {
		args = append(args, *f.IsAdmin)
		fmt.Fprintf(&b, ` AND gm.is_admin = $%d`, len(args))
	}
	b.WriteString(` ORDER BY gm.joined_at, gm.user_id`)

	rows, err := s.pool.Query(ctx, b.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	defer rows.Close()

	members := make([]models.GroupMember, 0)
	for rows.Next() {
		var m models.GroupMember
		if err := rows.Scan(&m.GroupID, &m.UserID, &m.Username, &m.IsAdmin, &m.JoinedAt); err != nil {
			return nil, fmt.Errorf("scan member: %w", err)
		}
		members = append(members, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate members: %w", err)
	}
	return members, nil
}

func (s *MembershipStore) MemberIDs(ctx context.Context, groupID uuid.UUID) ([]uuid.UUID, error) {
	rows, err := s.pool.Query(ctx, `SELECT user_id FROM group_members WHERE group_id = $1`, groupID)
	if err != nil {
		return nil, fmt.Errorf("list member ids: %w", err)
	}
	defer rows.Close()

	ids := make([]uuid.UUID, 0)
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan member id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate member ids: %w", err)
	}
	return ids, nil
}

func (s *MembershipStore) Promote(ctx context.Context, groupID, userID uuid.UUID) (bool, error) {
	query := `
		UPDATE group_members SET is_admin = true
		WHERE group_id = $1 AND user_id = $2 AND NOT is_admin`

	tag, err := s.pool.Exec(ctx, query, groupID, userID)
	if err != nil {
		return false, fmt.Errorf("promote member: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}
