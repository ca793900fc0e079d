package models

import (
	"time"

	"github.com/google/uuid"
)

// User is the slice of an account this service reads. Accounts are owned by
// the identity service; we only need a display name and the optional public
// key used to bootstrap end-to-end encryption.
type User struct {
	ID        uuid.UUID `json:"id"`
	Username  string    `json:"username"`
	PublicKey string    `json:"-"`
	CreatedAt time.Time `json:"created_at"`
}

// HasEncryption reports whether the user uploaded a public key.
func (u *User) HasEncryption() bool { return u.PublicKey != "" }

// Group is a named conversation with members. Name is unique case-insensitively.
type Group struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	CreatedBy   uuid.UUID `json:"created_by"`
	CreatedAt   time.Time `json:"created_at"`
}

// GroupSummary is a Group as seen by one viewer.
type GroupSummary struct {
	Group
	MemberCount int  `json:"member_count"`
	IsMember    bool `json:"is_member"`
	IsAdmin     bool `json:"is_admin"`
}

// GroupMember is one (user, group) row. The creator's row always has IsAdmin set.
type GroupMember struct {
	GroupID  uuid.UUID `json:"group_id"`
	UserID   uuid.UUID `json:"user_id"`
	Username string    `json:"username"`
	IsAdmin  bool      `json:"is_admin"`
	JoinedAt time.Time `json:"joined_at"`
}

// MemberFilter narrows ListMembers.
type MemberFilter struct {
	Username string
	IsAdmin  *bool
}

// ReadReceipt records that UserID read MessageID. Append-only.
type ReadReceipt struct {
	MessageID uuid.UUID `json:"message_id"`
	UserID    uuid.UUID `json:"user_id"`
	Username  string    `json:"username"`
	ReadAt    time.Time `json:"read_at"`
}

// Reaction is one (message, user, emoji) triple.
type Reaction struct {
	MessageID uuid.UUID `json:"message_id"`
	UserID    uuid.UUID `json:"user_id"`
	Username  string    `json:"username"`
	Emoji     string    `json:"emoji"`
	CreatedAt time.Time `json:"created_at"`
}

// ReactionAction is the outcome of a reaction toggle.
type ReactionAction string

const (
	ReactionAdded   ReactionAction = "added"
	ReactionRemoved ReactionAction = "removed"
)
