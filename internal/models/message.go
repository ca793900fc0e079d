package models

import (
	"time"

	"github.com/google/uuid"
)

// MessageKind tags the two message shapes. Code that branches on the shape
// switches on Kind rather than on which optional reference happens to be set.
type MessageKind string

const (
	KindGroup   MessageKind = "group"
	KindPrivate MessageKind = "private"
)

// Valid reports whether k is one of the known kinds.
func (k MessageKind) Valid() bool {
	return k == KindGroup || k == KindPrivate
}

// Envelope carries an end-to-end encrypted payload. The server treats every
// field as an opaque string produced by clients.
//
// Group messages use EncryptedKeys (member id -> wrapped key); private
// messages use EncryptedKey for the recipient and EncryptedKeySelf for the
// sender's own later retrieval.
type Envelope struct {
	EncryptedContent string            `json:"encrypted_content,omitempty"`
	EncryptedKey     string            `json:"encrypted_key,omitempty"`
	EncryptedKeySelf string            `json:"encrypted_key_self,omitempty"`
	EncryptedKeys    map[string]string `json:"encrypted_keys,omitempty"`
	IV               string            `json:"iv,omitempty"`
}

// MessageDraft is an unvalidated send request.
type MessageDraft struct {
	Kind        MessageKind `json:"message_type"`
	GroupID     *uuid.UUID  `json:"group"`
	RecipientID *uuid.UUID  `json:"recipient_id"`
	Content     string      `json:"content"`
	Encrypted   bool        `json:"is_encrypted"`
	Envelope
	ParentID *uuid.UUID `json:"parent_message_id"`
}

// Message is a persisted chat message.
//
// Kind = group  => GroupID set, RecipientID nil.
// Kind = private => RecipientID set, GroupID nil, RecipientID != SenderID.
type Message struct {
	ID          uuid.UUID   `json:"id"`
	Kind        MessageKind `json:"message_type"`
	GroupID     *uuid.UUID  `json:"group,omitempty"`
	SenderID    uuid.UUID   `json:"sender_id"`
	RecipientID *uuid.UUID  `json:"recipient_id,omitempty"`
	Content     string      `json:"content"`
	Encrypted   bool        `json:"is_encrypted"`
	Envelope
	ParentID  *uuid.UUID `json:"parent_message_id,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

// Counterpart returns the other party of a private message as seen by user.
func (m *Message) Counterpart(user uuid.UUID) uuid.UUID {
	if m.RecipientID == nil {
		return uuid.Nil
	}
	if m.SenderID == user {
		return *m.RecipientID
	}
	return m.SenderID
}

// MessageSummary is the trimmed view of a parent message attached to replies.
type MessageSummary struct {
	ID        uuid.UUID   `json:"id"`
	Kind      MessageKind `json:"message_type"`
	SenderID  uuid.UUID   `json:"sender_id"`
	Sender    string      `json:"sender_username"`
	Content   string      `json:"content"`
	Encrypted bool        `json:"is_encrypted"`
	CreatedAt time.Time   `json:"created_at"`
}

// Summarize builds a MessageSummary.
func (m *Message) Summarize(senderName string) *MessageSummary {
	return &MessageSummary{
		ID:        m.ID,
		Kind:      m.Kind,
		SenderID:  m.SenderID,
		Sender:    senderName,
		Content:   m.Content,
		Encrypted: m.Encrypted,
		CreatedAt: m.CreatedAt,
	}
}

// MessageView is a message enriched for one viewer.
type MessageView struct {
	Message
	SenderUsername    string          `json:"sender_username"`
	GroupName         string          `json:"group_name,omitempty"`
	Parent            *MessageSummary `json:"parent_message,omitempty"`
	Reactions         []Reaction      `json:"reactions"`
	ReadBy            []ReadReceipt   `json:"read_by"`
	ReadByCurrentUser bool            `json:"read_by_current_user"`
}

// MessageFilter narrows ListMessages. Counterpart only applies with Kind = private.
type MessageFilter struct {
	GroupID     *uuid.UUID
	Kind        MessageKind
	Counterpart *uuid.UUID
	Since       *time.Time
	Limit       int
	Offset      int
}
