package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/lalith-99/parley/internal/models"
)

type ReceiptStore struct {
	pool PgxPool
}

func NewReceiptStore(pool PgxPool) *ReceiptStore {
	return &ReceiptStore{pool: pool}
}

// MarkRead inserts receipts in one statement. The access filter drops
// messages the user cannot read; ON CONFLICT drops ones already read, so
// RETURNING yields exactly the receipts created by this call. Concurrent
// duplicate calls are resolved by the primary key.
func (s *ReceiptStore) MarkRead(ctx context.Context, userID uuid.UUID, messageIDs []uuid.UUID) ([]models.ReadReceipt, error) {
	if len(messageIDs) == 0 {
		return []models.ReadReceipt{}, nil
	}

	query := `
		INSERT INTO message_read_receipts (message_id, user_id)
		SELECT m.id, $1
		FROM messages m
		WHERE m.id = ANY($2::uuid[]) AND ` + accessFilter + `
		ON CONFLICT (message_id, user_id) DO NOTHING
		RETURNING message_id, user_id, read_at`

	// Why INSERT ... SELECT ... ON CONFLICT ... RETURNING in one statement?
	//   - Select-then-insert is two round trips, and two concurrent calls can
	//     both see "not read yet" and both report a new receipt.
	//   - ON CONFLICT DO NOTHING lets the primary key pick one winner; the
	//     loser's row is skipped and never appears in RETURNING.
	//   - RETURNING is then exactly what this call created, so the caller
	//     broadcasts message_read once per receipt, never twice.

	rows, err := s.pool.Query(ctx, query, userID, messageIDs)
	if err != nil {
		return nil, fmt.Errorf("mark read: %w", err)
	}
	defer rows.Close()

	created := make([]models.ReadReceipt, 0, len(messageIDs))
	for rows.Next() {
		var r models.ReadReceipt
		if err := rows.Scan(&r.MessageID, &r.UserID, &r.ReadAt); err != nil {
			return nil, fmt.Errorf("scan receipt: %w", err)
		}
		created = append(created, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate receipts: %w", err)
	}
	return created, nil
}

func (s *ReceiptStore) ListForMessages(ctx context.Context, messageIDs []uuid.UUID) ([]models.ReadReceipt, error) {
	query := `
		SELECT r.message_id, r.user_id, u.username, r.read_at
		FROM message_read_receipts r
		JOIN users u ON u.id = r.user_id
		WHERE r.message_id = ANY($1::uuid[])
		ORDER BY r.read_at, r.user_id`

	rows, err := s.pool.Query(ctx, query, messageIDs)
	if err != nil {
		return nil, fmt.Errorf("list receipts: %w", err)
	}
	defer rows.Close()

	receipts := make([]models.ReadReceipt, 0)
	for rows.Next() {
		var r models.ReadReceipt
		if err := rows.Scan(&r.MessageID, &r.UserID, &r.Username, &r.ReadAt); err != nil {
			return nil, fmt.Errorf("scan receipt: %w", err)
		}
		receipts = append(receipts, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate receipts: %w", err)
	}
	return receipts, nil
}
