package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/lalith-99/parley/internal/errs"
	"github.com/lalith-99/parley/internal/models"
)

type MessageStore struct {
	pool PgxPool
}

func NewMessageStore(pool PgxPool) *MessageStore {
	return &MessageStore{pool: pool}
}

const messageColumns = `m.id, m.message_type, m.group_id, m.sender_id, m.recipient_id,
		m.content, m.is_encrypted, m.encrypted_content, m.encrypted_key,
		m.encrypted_key_self, m.encrypted_keys, m.iv, m.parent_id, m.created_at`

const insertMessage = `
	INSERT INTO messages (id, message_type, group_id, sender_id, recipient_id,
		content, is_encrypted, encrypted_content, encrypted_key,
		encrypted_key_self, encrypted_keys, iv, parent_id)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	RETURNING created_at`

func scanMessage(row pgx.Row) (*models.Message, error) {
	var (
		m    models.Message
		kind string
		keys []byte
	)
	if err := row.Scan(
		&m.ID,
		&kind,
		&m.GroupID,
		&m.SenderID,
		&m.RecipientID,
		&m.Content,
		&m.Encrypted,
		&m.EncryptedContent,
		&m.EncryptedKey,
		&m.EncryptedKeySelf,
		&keys,
		&m.IV,
		&m.ParentID,
		&m.CreatedAt,
	); err != nil {
		return nil, err
	}
	m.Kind = models.MessageKind(kind)
	if len(keys) > 0 {
		if err := json.Unmarshal(keys, &m.EncryptedKeys); err != nil {
			return nil, fmt.Errorf("decode encrypted_keys: %w", err)
		}
	}
	return &m, nil
}

func messageArgs(m *models.Message) ([]any, error) {
	var keys []byte
	if len(m.EncryptedKeys) > 0 {
		b, err := json.Marshal(m.EncryptedKeys)
		if err != nil {
			return nil, fmt.Errorf("encode encrypted_keys: %w", err)
		}
		keys = b
	}
	return []any{
		m.ID, string(m.Kind), m.GroupID, m.SenderID, m.RecipientID,
		m.Content, m.Encrypted, m.EncryptedContent, m.EncryptedKey,
		m.EncryptedKeySelf, keys, m.IV, m.ParentID,
	}, nil
}

// Create writes msg. Group messages take a share lock on the sender's
// membership row inside the transaction, so a concurrent leave either
// finishes before (and the send fails) or waits until the insert commits.
func (s *MessageStore) Create(ctx context.Context, msg *models.Message) (*models.Message, error) {
	args, err := messageArgs(msg)
	if err != nil {
		return nil, err
	}

	out := *msg
	if msg.Kind != models.KindGroup {
		if err := s.pool.QueryRow(ctx, insertMessage, args...).Scan(&out.CreatedAt); err != nil {
			return nil, fmt.Errorf("insert message: %w", err)
		}
		return &out, nil
	}

	// Why FOR SHARE on the membership row instead of a plain EXISTS check?
	//   - A plain read sees the row, then a concurrent leave deletes it and
	//     commits before our INSERT. The message lands from a non-member.
	//   - FOR SHARE blocks the DELETE until this tx commits, but does not
	//     block other senders taking the same share lock.
	//   - FOR UPDATE would also work, but it serializes every send from the
	//     same user into the same group for no gain.
	const lockMember = `
		SELECT 1 FROM group_members
		WHERE group_id = $1 AND user_id = $2
		FOR SHARE`

	err = inTx(ctx, s.pool, func(tx pgx.Tx) error {
		var one int
		if err := tx.QueryRow(ctx, lockMember, msg.GroupID, msg.SenderID).Scan(&one); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return errs.ErrNotAGroupMember
			}
			return fmt.Errorf("lock membership: %w", err)
		}
		if err := tx.QueryRow(ctx, insertMessage, args...).Scan(&out.CreatedAt); err != nil {
			return fmt.Errorf("insert message: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *MessageStore) GetByID(ctx context.Context, messageID uuid.UUID) (*models.Message, error) {
	query := `SELECT ` + messageColumns + ` FROM messages m WHERE m.id = $1`

	m, err := scanMessage(s.pool.QueryRow(ctx, query, messageID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get message: %w", err)
	}
	return m, nil
}

// List returns the messages viewer can read, filtered and paginated.
// The access filter is always the first WHERE clause; $1 is the viewer.
func (s *MessageStore) List(ctx context.Context, viewerID uuid.UUID, f models.MessageFilter) ([]models.Message, error) {
	var b strings.Builder
	args := []any{viewerID}
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	b.WriteString(`SELECT ` + messageColumns + ` FROM messages m WHERE ` + accessFilter)
	if f.GroupID != nil {
		b.WriteString(` AND m.group_id = ` + arg(*f.GroupID))
	}
	if f.Kind != "" {
		b.WriteString(` AND m.message_type = ` + arg(string(f.Kind)))
	}
	if f.Kind == models.KindPrivate && f.Counterpart != nil {
		p := arg(*f.Counterpart)
		b.WriteString(` AND (m.sender_id = ` + p + ` OR m.recipient_id = ` + p + `)`)
	}
	if f.Since != nil {
		b.WriteString(` AND m.created_at >= ` + arg(*f.Since))
	}
	b.WriteString(` ORDER BY m.created_at DESC, m.id DESC`)
	if f.Limit > 0 {
		b.WriteString(` LIMIT ` + arg(f.Limit))
	}
	if f.Offset > 0 {
		b.WriteString(` OFFSET ` + arg(f.Offset))
	}

	rows, err := s.pool.Query(ctx, b.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	messages := make([]models.Message, 0)
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		messages = append(messages, *m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate messages: %w", err)
	}
	return messages, nil
}

func (s *MessageStore) Delete(ctx context.Context, messageID uuid.UUID) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM messages WHERE id = $1`, messageID); err != nil {
		return fmt.Errorf("delete message: %w", err)
	}
	return nil
}

// unreadRowsQuery encodes chat.Eligible in SQL: the sender clause, the
// group membership EXISTS and the private recipient match.
const unreadRowsQuery = `
	SELECT m.message_type,
		CASE WHEN m.message_type = 'group' THEN m.group_id ELSE m.sender_id END AS chat_key,
		COUNT(*)
	FROM messages m
	WHERE m.sender_id <> $1
		AND (
			(m.message_type = 'group' AND EXISTS (
				SELECT 1 FROM group_members gm
				WHERE gm.group_id = m.group_id AND gm.user_id = $1))
			OR (m.message_type = 'private' AND m.recipient_id = $1)
		)
		AND NOT EXISTS (
			SELECT 1 FROM message_read_receipts r
			WHERE r.message_id = m.id AND r.user_id = $1)
	GROUP BY 1, 2`

// UnreadRows counts unread messages per chat. Group rows are keyed by group,
// private rows by sender. Messages the user sent are never counted.
func (s *MessageStore) UnreadRows(ctx context.Context, userID uuid.UUID) ([]models.UnreadRow, error) {

	rows, err := s.pool.Query(ctx, unreadRowsQuery, userID)
	if err != nil {
		return nil, fmt.Errorf("count unread: %w", err)
	}
	defer rows.Close()

	out := make([]models.UnreadRow, 0)
	for rows.Next() {
		var (
			kind  string
			key   uuid.UUID
			count int64
		)
		if err := rows.Scan(&kind, &key, &count); err != nil {
			return nil, fmt.Errorf("scan unread row: %w", err)
		}
		out = append(out, models.UnreadRow{Kind: models.MessageKind(kind), Key: key, Count: int(count)})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate unread rows: %w", err)
	}
	return out, nil
}

func (s *MessageStore) LastGroupMessages(ctx context.Context, userID uuid.UUID) ([]models.ChatEntry, error) {
	query := `
		SELECT DISTINCT ON (m.group_id)
			m.group_id, g.name, m.content, m.is_encrypted, m.sender_id, u.username, m.created_at
		FROM messages m
		JOIN group_members gm ON gm.group_id = m.group_id AND gm.user_id = $1
		JOIN groups g ON g.id = m.group_id
		JOIN users u ON u.id = m.sender_id
		WHERE m.message_type = 'group'
		ORDER BY m.group_id, m.created_at DESC, m.id DESC`

	return s.lastMessages(ctx, models.KindGroup, query, userID)
}

func (s *MessageStore) LastPrivateMessages(ctx context.Context, userID uuid.UUID) ([]models.ChatEntry, error) {
	query := `
		SELECT DISTINCT ON (pm.peer)
			pm.peer, pu.username, pm.content, pm.is_encrypted, pm.sender_id, su.username, pm.created_at
		FROM (
			SELECT m.*, CASE WHEN m.sender_id = $1 THEN m.recipient_id ELSE m.sender_id END AS peer
			FROM messages m
			WHERE m.message_type = 'private' AND (m.sender_id = $1 OR m.recipient_id = $1)
		) pm
		JOIN users pu ON pu.id = pm.peer
		JOIN users su ON su.id = pm.sender_id
		ORDER BY pm.peer, pm.created_at DESC, pm.id DESC`

	return s.lastMessages(ctx, models.KindPrivate, query, userID)
}

func (s *MessageStore) lastMessages(ctx context.Context, kind models.MessageKind, query string, userID uuid.UUID) ([]models.ChatEntry, error) {
	rows, err := s.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("list last %s messages: %w", kind, err)
	}
	defer rows.Close()

	entries := make([]models.ChatEntry, 0)
	for rows.Next() {
		e := models.ChatEntry{Kind: kind}
		var at time.Time
		if err := rows.Scan(&e.ID, &e.Name, &e.LastMessage, &e.LastEncrypted, &e.LastSenderID, &e.LastSender, &at); err != nil {
			return nil, fmt.Errorf("scan chat entry: %w", err)
		}
		if !at.IsZero() {
			e.LastAt = &at
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate chat entries: %w", err)
	}
	return entries, nil
}
