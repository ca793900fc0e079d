package models

import (
	"time"

	"github.com/google/uuid"
)

// UnreadRow is one grouping produced by the store: for group messages Key is
// the group id, for private messages Key is the sender id.
type UnreadRow struct {
	Kind  MessageKind
	Key   uuid.UUID
	Count int
}

// UnreadCounts is the breakdown of a user's unread messages. Only non-zero
// groupings appear; Total is always the sum of both maps.
type UnreadCounts struct {
	Total  int               `json:"total"`
	Groups map[uuid.UUID]int `json:"groups"`
	Users  map[uuid.UUID]int `json:"users"`
}

// ChatEntry is one row of the chat list: either a group or a private
// counterpart, with its most recent message.
type ChatEntry struct {
	Kind          MessageKind `json:"type"`
	ID            uuid.UUID   `json:"id"`
	Name          string      `json:"name"`
	LastMessage   string      `json:"last_message"`
	LastEncrypted bool        `json:"last_message_encrypted"`
	LastSenderID  uuid.UUID   `json:"last_sender_id"`
	LastSender    string      `json:"last_sender_username"`
	LastAt        *time.Time  `json:"last_message_time"`
	UnreadCount   int         `json:"unread_count"`
}
