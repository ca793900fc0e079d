package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/lalith-99/parley/internal/models"
)

// Single-row reads return nil, nil when the row does not exist. The service
// layer turns that into errs.ErrNotFound.
//
// Uniqueness of (user, group), (message, user) and (message, user, emoji) is
// enforced by the database. Concurrent duplicates are resolved through the
// constraint, not through application locks.

// GroupRepository handles group rows.
type GroupRepository interface {
	// Create inserts the group and the creator's admin membership in one
	// transaction. Returns errs.ErrAlreadyExists if the name is taken
	// (case-insensitive).
	Create(ctx context.Context, name, description string, creatorID uuid.UUID) (*models.Group, error)

	GetByID(ctx context.Context, groupID uuid.UUID) (*models.Group, error)

	// List returns every group with member count and the viewer's membership flags.
	List(ctx context.Context, viewerID uuid.UUID) ([]models.GroupSummary, error)

	// Update changes name and description. Returns errs.ErrAlreadyExists on a name clash.
	Update(ctx context.Context, groupID uuid.UUID, name, description string) (*models.Group, error)

	// Delete removes the group; members, messages, receipts and reactions cascade.
	Delete(ctx context.Context, groupID uuid.UUID) error
}

// MembershipRepository handles who belongs to which group.
type MembershipRepository interface {
	// Add inserts a membership. Reports false if the row already existed.
	Add(ctx context.Context, groupID, userID uuid.UUID, isAdmin bool) (bool, error)

	// Remove deletes a membership. Reports false if there was no row. The
	// creator's row is never deleted.
	Remove(ctx context.Context, groupID, userID uuid.UUID) (bool, error)

	Get(ctx context.Context, groupID, userID uuid.UUID) (*models.GroupMember, error)

	// IsMember is the hot-path membership predicate.
	IsMember(ctx context.Context, groupID, userID uuid.UUID) (bool, error)

	List(ctx context.Context, groupID uuid.UUID, filter models.MemberFilter) ([]models.GroupMember, error)

	MemberIDs(ctx context.Context, groupID uuid.UUID) ([]uuid.UUID, error)

	// Promote sets the admin flag. Reports false if the member was already an admin.
	Promote(ctx context.Context, groupID, userID uuid.UUID) (bool, error)
}

// MessageRepository handles message persistence and the derived read paths.
type MessageRepository interface {
	// Create persists a validated message. For group messages the insert
	// re-checks membership in the same statement, so a concurrent leave
	// cannot slip between check and write; on failure it returns
	// errs.ErrNotAGroupMember and nothing is written.
	Create(ctx context.Context, msg *models.Message) (*models.Message, error)

	GetByID(ctx context.Context, messageID uuid.UUID) (*models.Message, error)

	// List applies the viewer's access filter before any other filter, then
	// orders newest first with id as tie-breaker.
	List(ctx context.Context, viewerID uuid.UUID, filter models.MessageFilter) ([]models.Message, error)

	// Delete removes the message; receipts and reactions cascade.
	Delete(ctx context.Context, messageID uuid.UUID) error

	// UnreadRows groups the user's unread messages: group messages by group
	// id, private messages by sender id. Self-authored messages are excluded.
	UnreadRows(ctx context.Context, userID uuid.UUID) ([]models.UnreadRow, error)

	// LastGroupMessages returns one entry per group the user belongs to that
	// has at least one message.
	LastGroupMessages(ctx context.Context, userID uuid.UUID) ([]models.ChatEntry, error)

	// LastPrivateMessages returns one entry per counterpart the user has
	// exchanged at least one private message with.
	LastPrivateMessages(ctx context.Context, userID uuid.UUID) ([]models.ChatEntry, error)
}

// ReceiptRepository is the append-only read-receipt ledger.
type ReceiptRepository interface {
	// MarkRead inserts receipts for the messages the user can read and has
	// not read yet. Inaccessible ids are dropped. Only newly created
	// receipts are returned.
	MarkRead(ctx context.Context, userID uuid.UUID, messageIDs []uuid.UUID) ([]models.ReadReceipt, error)

	ListForMessages(ctx context.Context, messageIDs []uuid.UUID) ([]models.ReadReceipt, error)
}

// ReactionRepository stores (message, user, emoji) triples.
type ReactionRepository interface {
	// Toggle deletes the triple if present, otherwise inserts it.
	Toggle(ctx context.Context, messageID, userID uuid.UUID, emoji string) (models.ReactionAction, error)

	ListForMessages(ctx context.Context, messageIDs []uuid.UUID) ([]models.Reaction, error)
}

// UserRepository reads accounts and stores public keys.
type UserRepository interface {
	// Ensure creates the user row for an authenticated principal, or
	// refreshes its username. Accounts live in the identity service; this
	// row is the local copy the foreign keys point at.
	Ensure(ctx context.Context, userID uuid.UUID, username string) error

	GetByID(ctx context.Context, userID uuid.UUID) (*models.User, error)

	// Usernames resolves display names; unknown ids are absent from the map.
	Usernames(ctx context.Context, userIDs []uuid.UUID) (map[uuid.UUID]string, error)

	// SetPublicKey reports false if the user does not exist.
	SetPublicKey(ctx context.Context, userID uuid.UUID, publicKey string) (bool, error)

	// PublicKeys returns keys for the given users, skipping users without one.
	PublicKeys(ctx context.Context, userIDs []uuid.UUID) (map[uuid.UUID]string, error)
}
