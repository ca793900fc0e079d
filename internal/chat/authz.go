// Package chat holds the message rules that do not depend on storage:
// write validation, the read-access predicate, envelope checks, unread
// tallying and chat list ranking.
package chat

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/lalith-99/parley/internal/errs"
	"github.com/lalith-99/parley/internal/models"
)

// MembershipOracle answers whether a user currently belongs to a group.
// It is evaluated per call and never cached.
type MembershipOracle interface {
	IsMember(ctx context.Context, groupID uuid.UUID, userID uuid.UUID) (bool, error)
}

// Authorizer validates message drafts and decides read access.
type Authorizer struct {
	members MembershipOracle
}

func NewAuthorizer(members MembershipOracle) *Authorizer {
	return &Authorizer{members: members}
}

// ValidateDraft checks d on behalf of sender and returns the record to
// persist. Nothing is written here.
//
// Order of checks: shape, membership, conflicting fields, self-message,
// envelope, plaintext. The envelope runs before the plaintext check so an
// encrypted message is never rejected for empty content.
func (a *Authorizer) ValidateDraft(ctx context.Context, sender uuid.UUID, d models.MessageDraft) (*models.Message, error) {
	msg := &models.Message{
		ID:       uuid.New(),
		Kind:     d.Kind,
		SenderID: sender,
		ParentID: d.ParentID,
	}

	switch d.Kind {
	case models.KindGroup:
		if d.GroupID == nil || *d.GroupID == uuid.Nil {
			return nil, errs.Field(errs.ErrInvalidMessageShape, "group message must have a group", "group")
		}
		ok, err := a.members.IsMember(ctx, *d.GroupID, sender)
		if err != nil {
			return nil, fmt.Errorf("check membership: %w", err)
		}
		if !ok {
			return nil, errs.Field(errs.ErrNotAGroupMember, "you must be a member of this group to send messages", "group")
		}
		if d.RecipientID != nil {
			return nil, errs.Field(errs.ErrConflictingFields, "group messages cannot have a recipient", "recipient_id")
		}
		gid := *d.GroupID
		msg.GroupID = &gid

	case models.KindPrivate:
		if d.RecipientID == nil || *d.RecipientID == uuid.Nil {
			return nil, errs.Field(errs.ErrInvalidMessageShape, "private messages must have a recipient", "recipient_id")
		}
		if d.GroupID != nil {
			return nil, errs.Field(errs.ErrConflictingFields, "private messages cannot belong to a group", "group")
		}
		if *d.RecipientID == sender {
			return nil, errs.Field(errs.ErrSelfMessage, "cannot send private message to yourself", "recipient_id")
		}
		rid := *d.RecipientID
		msg.RecipientID = &rid

	default:
		return nil, errs.Field(errs.ErrInvalidMessageShape, "message_type must be group or private", "message_type")
	}

	if err := ValidateEnvelope(d.Kind, d.Encrypted, d.Envelope); err != nil {
		return nil, err
	}

	if d.Encrypted {
		msg.Encrypted = true
		msg.Envelope = d.Envelope
		msg.Content = d.Content
		return msg, nil
	}

	if d.Content == "" {
		return nil, errs.Field(errs.ErrEmptyPlaintext, "content is required for non-encrypted messages", "content")
	}
	msg.Content = d.Content
	return msg, nil
}

// CanRead is the single read-access predicate, shared by retrieval,
// deletion, reactions and read receipts.
//
// group:   viewer is a member of the group right now.
// private: viewer is the sender or the recipient.
func (a *Authorizer) CanRead(ctx context.Context, viewer uuid.UUID, m *models.Message) (bool, error) {
	switch m.Kind {
	case models.KindGroup:
		if m.GroupID == nil {
			return false, nil
		}
		ok, err := a.members.IsMember(ctx, *m.GroupID, viewer)
		if err != nil {
			return false, fmt.Errorf("check membership: %w", err)
		}
		return ok, nil
	case models.KindPrivate:
		return viewer == m.SenderID || (m.RecipientID != nil && viewer == *m.RecipientID), nil
	default:
		return false, nil
	}
}

// RequireRead is CanRead returning errs.ErrAccessDenied on refusal.
func (a *Authorizer) RequireRead(ctx context.Context, viewer uuid.UUID, m *models.Message) error {
	ok, err := a.CanRead(ctx, viewer, m)
	if err != nil {
		return err
	}
	if !ok {
		return errs.ErrAccessDenied
	}
	return nil
}

// RequireDelete allows only the sender, and only while they can still read
// the message.
func (a *Authorizer) RequireDelete(ctx context.Context, actor uuid.UUID, m *models.Message) error {
	if err := a.RequireRead(ctx, actor, m); err != nil {
		return err
	}
	if m.SenderID != actor {
		return errs.Field(errs.ErrAccessDenied, "you can only delete your own messages")
	}
	return nil
}
