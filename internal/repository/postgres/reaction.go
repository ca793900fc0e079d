package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/lalith-99/parley/internal/models"
)

type ReactionStore struct {
	pool PgxPool
}

func NewReactionStore(pool PgxPool) *ReactionStore {
	return &ReactionStore{pool: pool}
}

// Toggle removes the (message, user, emoji) row if it exists and inserts it
// otherwise. A racing insert of the same triple lands on the primary key and
// is reported as added.
func (s *ReactionStore) Toggle(ctx context.Context, messageID, userID uuid.UUID, emoji string) (models.ReactionAction, error) {
	const del = `DELETE FROM message_reactions WHERE message_id = $1 AND user_id = $2 AND emoji = $3`
	const ins = `
		INSERT INTO message_reactions (message_id, user_id, emoji)
		VALUES ($1, $2, $3)
		ON CONFLICT (message_id, user_id, emoji) DO NOTHING`

	var action models.ReactionAction
	err := inTx(ctx, s.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, del, messageID, userID, emoji)
		if err != nil {
			return fmt.Errorf("delete reaction: %w", err)
		}
		if tag.RowsAffected() > 0 {
			action = models.ReactionRemoved
			return nil
		}
		if _, err := tx.Exec(ctx, ins, messageID, userID, emoji); err != nil {
			return fmt.Errorf("insert reaction: %w", err)
		}
		action = models.ReactionAdded
		return nil
	})
	if err != nil {
		return "", err
	}
	return action, nil
}

func (s *ReactionStore) ListForMessages(ctx context.Context, messageIDs []uuid.UUID) ([]models.Reaction, error) {
	query := `
		SELECT r.message_id, r.user_id, u.username, r.emoji, r.created_at
		FROM message_reactions r
		JOIN users u ON u.id = r.user_id
		WHERE r.message_id = ANY($1::uuid[])
		ORDER BY r.created_at, r.user_id, r.emoji`

	rows, err := s.pool.Query(ctx, query, messageIDs)
	if err != nil {
		return nil, fmt.Errorf("list reactions: %w", err)
	}
	defer rows.Close()

	reactions := make([]models.Reaction, 0)
	for rows.Next() {
		var r models.Reaction
		if err := rows.Scan(&r.MessageID, &r.UserID, &r.Username, &r.Emoji, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan reaction: %w", err)
		}
		reactions = append(reactions, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate reactions: %w", err)
	}
	return reactions, nil
}
