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

type GroupStore struct {
	pool PgxPool
}

func NewGroupStore(pool PgxPool) *GroupStore {
	return &GroupStore{pool: pool}
}

// Create inserts the group and the creator's admin row together. The
// unique index on lower(name) rejects case-insensitive duplicates.
func (s *GroupStore) Create(ctx context.Context, name, description string, creatorID uuid.UUID) (*models.Group, error) {
	const insGroup = `
		INSERT INTO groups (id, name, description, created_by)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at`
	const insAdmin = `
		INSERT INTO group_members (group_id, user_id, is_admin)
		VALUES ($1, $2, true)`

	g := models.Group{
		ID:          uuid.New(),
		Name:        name,
		Description: description,
		CreatedBy:   creatorID,
	}
	err := inTx(ctx, s.pool, func(tx pgx.Tx) error {
		if err := tx.QueryRow(ctx, insGroup, g.ID, g.Name, g.Description, g.CreatedBy).Scan(&g.CreatedAt); err != nil {
			if isUniqueViolation(err) {
				return errs.Field(errs.ErrAlreadyExists, "a group with this name already exists", "name")
			}
			return fmt.Errorf("insert group: %w", err)
		}
		if _, err := tx.Exec(ctx, insAdmin, g.ID, creatorID); err != nil {
			return fmt.Errorf("insert creator membership: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &g, nil
}

func (s *GroupStore) GetByID(ctx context.Context, groupID uuid.UUID) (*models.Group, error) {
	query := `
		SELECT id, name, description, created_by, created_at
		FROM groups
		WHERE id = $1`

	var g models.Group
	err := s.pool.QueryRow(ctx, query, groupID).Scan(
		&g.ID,
		&g.Name,
		&g.Description,
		&g.CreatedBy,
		&g.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get group: %w", err)
	}
	return &g, nil
}

func (s *GroupStore) List(ctx context.Context, viewerID uuid.UUID) ([]models.GroupSummary, error) {
	query := `
		SELECT g.id, g.name, g.description, g.created_by, g.created_at,
			(SELECT COUNT(*) FROM group_members c WHERE c.group_id = g.id),
			gm.user_id IS NOT NULL,
			COALESCE(gm.is_admin, false)
		FROM groups g
		LEFT JOIN group_members gm ON gm.group_id = g.id AND gm.user_id = $1
		ORDER BY g.created_at DESC, g.id`

	rows, err := s.pool.Query(ctx, query, viewerID)
	if err != nil {
		return nil, fmt.Errorf("list groups: %w", err)
	}
	defer rows.Close()

	groups := make([]models.GroupSummary, 0)
	for rows.Next() {
		var (
			g     models.GroupSummary
			count int64
		)
		if err := rows.Scan(
			&g.ID,
			&g.Name,
			&g.Description,
			&g.CreatedBy,
			&g.CreatedAt,
			&count,
			&g.IsMember,
			&g.IsAdmin,
		); err != nil {
			return nil, fmt.Errorf("scan group: %w", err)
		}
		g.MemberCount = int(count)
		groups = append(groups, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate groups: %w", err)
	}
	return groups, nil
}

func (s *GroupStore) Update(ctx context.Context, groupID uuid.UUID, name, description string) (*models.Group, error) {
	query := `
		UPDATE groups SET name = $2, description = $3
		WHERE id = $1
		RETURNING id, name, description, created_by, created_at`

	var g models.Group
	err := s.pool.QueryRow(ctx, query, groupID, name, description).Scan(
		&g.ID,
		&g.Name,
		&g.Description,
		&g.CreatedBy,
		&g.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		if isUniqueViolation(err) {
			return nil, errs.Field(errs.ErrAlreadyExists, "a group with this name already exists", "name")
		}
		return nil, fmt.Errorf("update group: %w", err)
	}
	return &g, nil
}

func (s *GroupStore) Delete(ctx context.Context, groupID uuid.UUID) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM groups WHERE id = $1`, groupID); err != nil {
		return fmt.Errorf("delete group: %w", err)
	}
	return nil
}
