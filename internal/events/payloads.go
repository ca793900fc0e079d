package events

import (
	"time"

	"github.com/google/uuid"
	"github.com/lalith-99/parley/internal/models"
)

// Timestamp formats t as RFC 3339 with nanoseconds in UTC.
func Timestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// EncryptedFields is embedded into message payloads when the message is
// encrypted; all fields are omitted for plaintext messages.
type EncryptedFields struct {
	IsEncrypted      bool              `json:"is_encrypted"`
	EncryptedContent string            `json:"encrypted_content,omitempty"`
	EncryptedKey     string            `json:"encrypted_key,omitempty"`
	EncryptedKeySelf string            `json:"encrypted_key_self,omitempty"`
	EncryptedKeys    map[string]string `json:"encrypted_keys,omitempty"`
	IV               string            `json:"iv,omitempty"`
}

func encryptedFields(m *models.Message) EncryptedFields {
	if !m.Encrypted {
		return EncryptedFields{}
	}
	return EncryptedFields{
		IsEncrypted:      true,
		EncryptedContent: m.EncryptedContent,
		EncryptedKey:     m.EncryptedKey,
		EncryptedKeySelf: m.EncryptedKeySelf,
		EncryptedKeys:    m.EncryptedKeys,
		IV:               m.IV,
	}
}

// ParentSummary describes the message a reply points at.
type ParentSummary struct {
	MessageID      string `json:"message_id"`
	SenderID       string `json:"sender_id"`
	SenderUsername string `json:"sender_username"`
	Content        string `json:"content"`
	IsEncrypted    bool   `json:"is_encrypted"`
	Timestamp      string `json:"timestamp"`
}

func parentSummary(p *models.MessageSummary) *ParentSummary {
	if p == nil {
		return nil
	}
	return &ParentSummary{
		MessageID:      p.ID.String(),
		SenderID:       p.SenderID.String(),
		SenderUsername: p.Sender,
		Content:        p.Content,
		IsEncrypted:    p.Encrypted,
		Timestamp:      Timestamp(p.CreatedAt),
	}
}

// GroupMessagePayload is the data of a group_message event.
type GroupMessagePayload struct {
	MessageID      string `json:"message_id"`
	SenderID       string `json:"sender_id"`
	SenderUsername string `json:"sender_username"`
	Content        string `json:"content"`
	Timestamp      string `json:"timestamp"`
	MessageType    string `json:"message_type"`
	GroupID        string `json:"group_id"`
	GroupName      string `json:"group_name"`
	EncryptedFields
	ParentMessage *ParentSummary `json:"parent_message,omitempty"`
}

// NewGroupMessage builds the payload for a freshly written group message.
func NewGroupMessage(m *models.Message, senderName, groupName string, parent *models.MessageSummary) GroupMessagePayload {
	return GroupMessagePayload{
		MessageID:       m.ID.String(),
		SenderID:        m.SenderID.String(),
		SenderUsername:  senderName,
		Content:         m.Content,
		Timestamp:       Timestamp(m.CreatedAt),
		MessageType:     string(models.KindGroup),
		GroupID:         m.GroupID.String(),
		GroupName:       groupName,
		EncryptedFields: encryptedFields(m),
		ParentMessage:   parentSummary(parent),
	}
}

// PrivateMessagePayload is the data of a private_message_handler event.
type PrivateMessagePayload struct {
	MessageID         string `json:"message_id"`
	SenderID          string `json:"sender_id"`
	SenderUsername    string `json:"sender_username"`
	RecipientID       string `json:"recipient_id"`
	RecipientUsername string `json:"recipient_username"`
	Content           string `json:"content"`
	Timestamp         string `json:"timestamp"`
	MessageType       string `json:"message_type"`
	EncryptedFields
	ParentMessage *ParentSummary `json:"parent_message,omitempty"`
}

// NewPrivateMessage builds the payload for a freshly written private message.
func NewPrivateMessage(m *models.Message, senderName, recipientName string, parent *models.MessageSummary) PrivateMessagePayload {
	return PrivateMessagePayload{
		MessageID:         m.ID.String(),
		SenderID:          m.SenderID.String(),
		SenderUsername:    senderName,
		RecipientID:       m.RecipientID.String(),
		RecipientUsername: recipientName,
		Content:           m.Content,
		Timestamp:         Timestamp(m.CreatedAt),
		MessageType:       string(models.KindPrivate),
		EncryptedFields:   encryptedFields(m),
		ParentMessage:     parentSummary(parent),
	}
}

// MessageDeletedPayload carries enough identity for clients to purge the
// message: the group for group messages, both parties for private ones.
type MessageDeletedPayload struct {
	MessageID   string `json:"message_id"`
	MessageType string `json:"message_type"`
	GroupID     string `json:"group_id,omitempty"`
	SenderID    string `json:"sender_id,omitempty"`
	RecipientID string `json:"recipient_id,omitempty"`
	DeletedBy   string `json:"deleted_by"`
	Timestamp   string `json:"timestamp"`
}

func NewMessageDeleted(m *models.Message, deletedBy uuid.UUID, at time.Time) MessageDeletedPayload {
	p := MessageDeletedPayload{
		MessageID:   m.ID.String(),
		MessageType: string(m.Kind),
		DeletedBy:   deletedBy.String(),
		Timestamp:   Timestamp(at),
	}
	switch m.Kind {
	case models.KindGroup:
		p.GroupID = m.GroupID.String()
	case models.KindPrivate:
		p.SenderID = m.SenderID.String()
		p.RecipientID = m.RecipientID.String()
	}
	return p
}

// MessageReadPayload is published once per newly created receipt.
type MessageReadPayload struct {
	MessageID      string `json:"message_id"`
	ReadBy         string `json:"read_by"`
	ReadByUsername string `json:"read_by_username"`
	Timestamp      string `json:"timestamp"`
}

func NewMessageRead(r models.ReadReceipt) MessageReadPayload {
	return MessageReadPayload{
		MessageID:      r.MessageID.String(),
		ReadBy:         r.UserID.String(),
		ReadByUsername: r.Username,
		Timestamp:      Timestamp(r.ReadAt),
	}
}

// ReactionPayload is published for every toggle with the resulting action.
type ReactionPayload struct {
	MessageID   string `json:"message_id"`
	MessageType string `json:"message_type"`
	GroupID     string `json:"group_id,omitempty"`
	SenderID    string `json:"sender_id,omitempty"`
	RecipientID string `json:"recipient_id,omitempty"`
	UserID      string `json:"user_id"`
	Username    string `json:"username"`
	Emoji       string `json:"emoji"`
	Action      string `json:"action"`
	Timestamp   string `json:"timestamp"`
}

func NewReaction(m *models.Message, user uuid.UUID, username, emoji string, action models.ReactionAction, at time.Time) ReactionPayload {
	p := ReactionPayload{
		MessageID:   m.ID.String(),
		MessageType: string(m.Kind),
		UserID:      user.String(),
		Username:    username,
		Emoji:       emoji,
		Action:      string(action),
		Timestamp:   Timestamp(at),
	}
	switch m.Kind {
	case models.KindGroup:
		p.GroupID = m.GroupID.String()
	case models.KindPrivate:
		p.SenderID = m.SenderID.String()
		p.RecipientID = m.RecipientID.String()
	}
	return p
}

// UnreadCountPayload carries the full recomputed breakdown for one user.
type UnreadCountPayload struct {
	UserID    string         `json:"user_id"`
	Total     int            `json:"total"`
	Groups    map[string]int `json:"groups"`
	Users     map[string]int `json:"users"`
	Timestamp string         `json:"timestamp"`
}

func NewUnreadCount(user uuid.UUID, c models.UnreadCounts, at time.Time) UnreadCountPayload {
	p := UnreadCountPayload{
		UserID:    user.String(),
		Total:     c.Total,
		Groups:    make(map[string]int, len(c.Groups)),
		Users:     make(map[string]int, len(c.Users)),
		Timestamp: Timestamp(at),
	}
	for id, n := range c.Groups {
		p.Groups[id.String()] = n
	}
	for id, n := range c.Users {
		p.Users[id.String()] = n
	}
	return p
}

// MembershipPayload is the data of user_joined, user_left, user_removed and
// member_promoted. Actor fields are set for removals and promotions.
type MembershipPayload struct {
	UserID         string `json:"user_id"`
	Username       string `json:"username"`
	GroupID        string `json:"group_id"`
	GroupName      string `json:"group_name"`
	IsAdmin        bool   `json:"is_admin"`
	RemovedBy      string `json:"removed_by,omitempty"`
	RemovedByName  string `json:"removed_by_username,omitempty"`
	PromotedBy     string `json:"promoted_by,omitempty"`
	PromotedByName string `json:"promoted_by_username,omitempty"`
	Timestamp      string `json:"timestamp"`
}

// TypingPayload relays a typing indicator to exactly one target.
type TypingPayload struct {
	UserID      string `json:"user_id"`
	Username    string `json:"username"`
	GroupID     string `json:"group_id,omitempty"`
	RecipientID string `json:"recipient_id,omitempty"`
	IsTyping    bool   `json:"is_typing"`
	Timestamp   string `json:"timestamp"`
}
