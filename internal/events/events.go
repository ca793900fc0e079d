// Package events defines the envelope published for the real-time delivery
// tier and the broadcaster that publishes it.
//
// Every published message is a UTF-8 JSON object {"type": ..., "data": ...}
// on one shared channel. Consumers must ignore types they do not know.
package events

import (
	"encoding/json"
	"fmt"
)

// Type is the "type" field of the envelope.
type Type string

const (
	GroupMessage   Type = "group_message"
	PrivateMessage Type = "private_message_handler"
	MessageDeleted Type = "message_deleted"
	MessageRead    Type = "message_read"
	Reaction       Type = "message_reaction"
	UnreadCount    Type = "unread_count_update"
	UserJoined     Type = "user_joined"
	UserLeft       Type = "user_left"
	UserRemoved    Type = "user_removed"
	MemberPromoted Type = "member_promoted"
	Typing         Type = "typing_indicator"
)

// DefaultChannel is the pub/sub channel the delivery tier subscribes to.
const DefaultChannel = "messaging_events"

// Envelope is the wire shape of every event.
type Envelope struct {
	Type Type `json:"type"`
	Data any  `json:"data"`
}

// RawEnvelope is the consumer-side view of an event; Data is left undecoded
// so unknown types pass through untouched.
type RawEnvelope struct {
	Type Type            `json:"type"`
	Data json.RawMessage `json:"data"`
}

// Known reports whether t is a type this package publishes.
func (t Type) Known() bool {
	switch t {
	case GroupMessage, PrivateMessage, MessageDeleted, MessageRead, Reaction,
		UnreadCount, UserJoined, UserLeft, UserRemoved, MemberPromoted, Typing:
		return true
	}
	return false
}

// Decode parses a published payload. Unknown types are not an error.
func Decode(payload []byte) (RawEnvelope, error) {
	var env RawEnvelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return RawEnvelope{}, fmt.Errorf("decode event: %w", err)
	}
	if env.Type == "" {
		return RawEnvelope{}, fmt.Errorf("decode event: missing type")
	}
	return env, nil
}
