package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/lalith-99/parley/internal/chat"
	"github.com/lalith-99/parley/internal/errs"
	"github.com/lalith-99/parley/internal/events"
	"github.com/lalith-99/parley/internal/models"
	"go.uber.org/zap"
)

const (
	DefaultPageSize = 50
	MaxPageSize     = 100
	maxEmojiLen     = 16
	maxMarkReadIDs  = 500
)

// MessageService owns sending, reading, receipts, reactions, unread counts
// and the chat list.
type MessageService struct {
	stores Stores
	authz  *chat.Authorizer
	unread *unread
	events Emitter
	logger *zap.Logger
	now    func() time.Time
}

func NewMessageService(stores Stores, emitter Emitter, logger *zap.Logger) *MessageService {
	now := time.Now
	return &MessageService{
		stores: stores,
		authz:  chat.NewAuthorizer(stores.Members),
		unread: &unread{messages: stores.Messages, events: emitter, logger: logger, now: now},
		events: emitter,
		logger: logger,
		now:    now,
	}
}

// Send validates the draft, persists it, publishes the message event and
// pushes fresh unread counts to every recipient.
func (s *MessageService) Send(ctx context.Context, sender uuid.UUID, d models.MessageDraft) (*models.MessageView, error) {
	msg, err := s.authz.ValidateDraft(ctx, sender, d)
	if err != nil {
		return nil, err
	}

	if msg.Kind == models.KindPrivate {
		recipient, err := s.stores.Users.GetByID(ctx, *msg.RecipientID)
		if err != nil {
			return nil, fmt.Errorf("get recipient: %w", err)
		}
		if recipient == nil {
			return nil, errs.Field(errs.ErrNotFound, "recipient not found", "recipient_id")
		}
	}

	var parent *models.Message
	if msg.ParentID != nil {
		parent, err = s.stores.Messages.GetByID(ctx, *msg.ParentID)
		if err != nil {
			return nil, fmt.Errorf("get parent message: %w", err)
		}
		if parent == nil {
			return nil, errs.Field(errs.ErrNotFound, "parent message not found", "parent_message_id")
		}
		if err := s.authz.RequireRead(ctx, sender, parent); err != nil {
			if errors.Is(err, errs.ErrAccessDenied) {
				return nil, errs.Field(errs.ErrAccessDenied, "you cannot reply to a message you cannot read", "parent_message_id")
			}
			return nil, err
		}
	}

	created, err := s.stores.Messages.Create(ctx, msg)
	if err != nil {
		if errors.Is(err, errs.ErrNotAGroupMember) {
			return nil, errs.Field(errs.ErrNotAGroupMember, "you must be a member of this group to send messages", "group")
		}
		return nil, err
	}

	ids := []uuid.UUID{sender}
	if created.RecipientID != nil {
		ids = append(ids, *created.RecipientID)
	}
	if parent != nil {
		ids = append(ids, parent.SenderID)
	}
	names := usernames(ctx, s.stores.Users, s.logger, ids...)

	view := &models.MessageView{
		Message:        *created,
		SenderUsername: names[sender],
		Reactions:      []models.Reaction{},
		ReadBy:         []models.ReadReceipt{},
	}
	if parent != nil {
		view.Parent = parent.Summarize(names[parent.SenderID])
	}

	fctx, done := s.events.Batch(ctx)
	defer done()

	switch created.Kind {
	case models.KindGroup:
		view.GroupName = s.groupName(ctx, *created.GroupID)
		members, err := s.stores.Members.MemberIDs(ctx, *created.GroupID)
		if err != nil {
			s.logger.Error("list group members for unread update", zap.Error(err))
		}

		s.events.Emit(fctx, events.GroupMessage,
			events.NewGroupMessage(created, view.SenderUsername, view.GroupName, view.Parent))
		s.unread.notify(fctx, without(members, sender)...)

	case models.KindPrivate:
		s.events.Emit(fctx, events.PrivateMessage,
			events.NewPrivateMessage(created, view.SenderUsername, names[*created.RecipientID], view.Parent))
		s.unread.notify(fctx, *created.RecipientID)
	}

	return view, nil
}

// Get returns one message as seen by viewer.
func (s *MessageService) Get(ctx context.Context, viewer, messageID uuid.UUID) (*models.MessageView, error) {
	msg, err := s.readable(ctx, viewer, messageID)
	if err != nil {
		return nil, err
	}
	views, err := s.views(ctx, viewer, []models.Message{*msg})
	if err != nil {
		return nil, err
	}
	return &views[0], nil
}

// List returns the messages viewer can read, newest first.
func (s *MessageService) List(ctx context.Context, viewer uuid.UUID, f models.MessageFilter) ([]models.MessageView, error) {
	if f.Kind != "" && !f.Kind.Valid() {
		return nil, errs.Field(errs.ErrInvalidInput, "message_type must be group or private", "message_type")
	}
	if f.Offset < 0 {
		return nil, errs.Field(errs.ErrInvalidInput, "offset must not be negative", "offset")
	}
	switch {
	case f.Limit <= 0:
		f.Limit = DefaultPageSize
	case f.Limit > MaxPageSize:
		f.Limit = MaxPageSize
	}

	msgs, err := s.stores.Messages.List(ctx, viewer, f)
	if err != nil {
		return nil, err
	}
	return s.views(ctx, viewer, msgs)
}

// Receipts returns who read a message. For private messages only the
// sender sees the list.
func (s *MessageService) Receipts(ctx context.Context, viewer, messageID uuid.UUID) ([]models.ReadReceipt, error) {
	msg, err := s.readable(ctx, viewer, messageID)
	if err != nil {
		return nil, err
	}
	if msg.Kind == models.KindPrivate && msg.SenderID != viewer {
		return []models.ReadReceipt{}, nil
	}
	return s.stores.Receipts.ListForMessages(ctx, []uuid.UUID{messageID})
}

// Delete removes a message the actor sent. message_deleted is published
// before the row goes away so consumers still know its identity.
func (s *MessageService) Delete(ctx context.Context, actor, messageID uuid.UUID) error {
	msg, err := s.stores.Messages.GetByID(ctx, messageID)
	if err != nil {
		return err
	}
	if msg == nil {
		return errs.ErrNotFound
	}
	if err := s.authz.RequireDelete(ctx, actor, msg); err != nil {
		return err
	}

	var affected []uuid.UUID
	switch msg.Kind {
	case models.KindGroup:
		members, err := s.stores.Members.MemberIDs(ctx, *msg.GroupID)
		if err != nil {
			return err
		}
		affected = without(members, actor)
	case models.KindPrivate:
		affected = []uuid.UUID{msg.Counterpart(actor)}
	}

	fctx, done := s.events.Batch(ctx)
	defer done()
	s.events.Emit(fctx, events.MessageDeleted, events.NewMessageDeleted(msg, actor, s.now()))

	if err := s.stores.Messages.Delete(ctx, messageID); err != nil {
		return err
	}
	s.unread.notify(fctx, affected...)
	return nil
}

// MarkRead records receipts for the given messages. Ids the user cannot
// read, and ids already read, are skipped without error. The returned
// receipts are the ones created by this call.
func (s *MessageService) MarkRead(ctx context.Context, user uuid.UUID, messageIDs []uuid.UUID) ([]models.ReadReceipt, error) {
	ids := dedupe(messageIDs)
	if len(ids) == 0 {
		return nil, errs.Field(errs.ErrInvalidInput, "message_ids is required", "message_ids")
	}
	if len(ids) > maxMarkReadIDs {
		return nil, errs.Field(errs.ErrInvalidInput, fmt.Sprintf("at most %d message_ids per call", maxMarkReadIDs), "message_ids")
	}

	created, err := s.stores.Receipts.MarkRead(ctx, user, ids)
	if err != nil {
		return nil, err
	}
	if len(created) == 0 {
		return created, nil
	}

	name := usernames(ctx, s.stores.Users, s.logger, user)[user]
	fctx, done := s.events.Batch(ctx)
	defer done()
	for i := range created {
		created[i].Username = name
		s.events.Emit(fctx, events.MessageRead, events.NewMessageRead(created[i]))
	}
	s.unread.notify(fctx, user)
	return created, nil
}

// React toggles emoji on a message the user can read.
func (s *MessageService) React(ctx context.Context, user, messageID uuid.UUID, emoji string) (models.ReactionAction, error) {
	emoji = strings.TrimSpace(emoji)
	if emoji == "" {
		return "", errs.Field(errs.ErrInvalidInput, "emoji is required", "emoji")
	}
	if utf8.RuneCountInString(emoji) > maxEmojiLen {
		return "", errs.Field(errs.ErrInvalidInput, "emoji is too long", "emoji")
	}

	msg, err := s.readable(ctx, user, messageID)
	if err != nil {
		return "", err
	}

	action, err := s.stores.Reactions.Toggle(ctx, messageID, user, emoji)
	if err != nil {
		return "", err
	}

	name := usernames(ctx, s.stores.Users, s.logger, user)[user]
	s.events.Emit(ctx, events.Reaction, events.NewReaction(msg, user, name, emoji, action, s.now()))
	return action, nil
}

// Typing relays a typing indicator to exactly one target. Nothing is stored.
func (s *MessageService) Typing(ctx context.Context, user uuid.UUID, groupID, recipientID *uuid.UUID, isTyping bool) error {
	if (groupID == nil) == (recipientID == nil) {
		return errs.Field(errs.ErrInvalidInput, "provide exactly one of group_id or recipient_id", "group_id", "recipient_id")
	}

	p := events.TypingPayload{
		UserID:    user.String(),
		IsTyping:  isTyping,
		Timestamp: events.Timestamp(s.now()),
	}
	if groupID != nil {
		ok, err := s.stores.Members.IsMember(ctx, *groupID, user)
		if err != nil {
			return err
		}
		if !ok {
			return errs.Field(errs.ErrNotAGroupMember, "you must be a member of this group", "group_id")
		}
		p.GroupID = groupID.String()
	} else {
		if *recipientID == user {
			return errs.Field(errs.ErrSelfMessage, "cannot send typing indicator to yourself", "recipient_id")
		}
		p.RecipientID = recipientID.String()
	}

	p.Username = usernames(ctx, s.stores.Users, s.logger, user)[user]
	s.events.Emit(ctx, events.Typing, p)
	return nil
}

// UnreadCounts computes the user's breakdown from the ledger.
func (s *MessageService) UnreadCounts(ctx context.Context, user uuid.UUID) (models.UnreadCounts, error) {
	return s.unread.counts(ctx, user)
}

// ChatList merges group and private conversations into one ranked list.
func (s *MessageService) ChatList(ctx context.Context, user uuid.UUID) ([]models.ChatEntry, error) {
	groups, err := s.stores.Messages.LastGroupMessages(ctx, user)
	if err != nil {
		return nil, err
	}
	private, err := s.stores.Messages.LastPrivateMessages(ctx, user)
	if err != nil {
		return nil, err
	}
	counts, err := s.unread.counts(ctx, user)
	if err != nil {
		return nil, err
	}
	return chat.RankChats(append(groups, private...), counts), nil
}

func (s *MessageService) readable(ctx context.Context, viewer, messageID uuid.UUID) (*models.Message, error) {
	msg, err := s.stores.Messages.GetByID(ctx, messageID)
	if err != nil {
		return nil, err
	}
	if msg == nil {
		return nil, errs.ErrNotFound
	}
	if err := s.authz.RequireRead(ctx, viewer, msg); err != nil {
		return nil, err
	}
	return msg, nil
}

// views enriches msgs for viewer with names, reactions, receipts and the
// parent summary. A parent the viewer can no longer read is left out.
func (s *MessageService) views(ctx context.Context, viewer uuid.UUID, msgs []models.Message) ([]models.MessageView, error) {
	out := make([]models.MessageView, len(msgs))
	if len(msgs) == 0 {
		return out, nil
	}

	ids := make([]uuid.UUID, len(msgs))
	for i := range msgs {
		ids[i] = msgs[i].ID
	}
	reactions, err := s.stores.Reactions.ListForMessages(ctx, ids)
	if err != nil {
		return nil, err
	}
	receipts, err := s.stores.Receipts.ListForMessages(ctx, ids)
	if err != nil {
		return nil, err
	}
	reactionsBy := make(map[uuid.UUID][]models.Reaction)
	for _, r := range reactions {
		reactionsBy[r.MessageID] = append(reactionsBy[r.MessageID], r)
	}
	receiptsBy := make(map[uuid.UUID][]models.ReadReceipt)
	for _, r := range receipts {
		receiptsBy[r.MessageID] = append(receiptsBy[r.MessageID], r)
	}

	parents := make(map[uuid.UUID]*models.Message)
	people := make([]uuid.UUID, 0, len(msgs))
	for i := range msgs {
		people = append(people, msgs[i].SenderID)
		pid := msgs[i].ParentID
		if pid == nil {
			continue
		}
		if _, done := parents[*pid]; done {
			continue
		}
		p, err := s.stores.Messages.GetByID(ctx, *pid)
		if err != nil {
			return nil, err
		}
		if p != nil {
			ok, err := s.authz.CanRead(ctx, viewer, p)
			if err != nil {
				return nil, err
			}
			if !ok {
				p = nil
			}
		}
		parents[*pid] = p
		if p != nil {
			people = append(people, p.SenderID)
		}
	}
	names := usernames(ctx, s.stores.Users, s.logger, people...)
	groupNames := make(map[uuid.UUID]string)

	for i := range msgs {
		m := msgs[i]
		v := models.MessageView{
			Message:        m,
			SenderUsername: names[m.SenderID],
			Reactions:      nonNil(reactionsBy[m.ID]),
			ReadBy:         []models.ReadReceipt{},
		}
		for _, r := range receiptsBy[m.ID] {
			if r.UserID == viewer {
				v.ReadByCurrentUser = true
			}
		}
		if m.Kind == models.KindGroup || m.SenderID == viewer {
			v.ReadBy = nonNil(receiptsBy[m.ID])
		}
		if m.Kind == models.KindGroup {
			name, ok := groupNames[*m.GroupID]
			if !ok {
				name = s.groupName(ctx, *m.GroupID)
				groupNames[*m.GroupID] = name
			}
			v.GroupName = name
		}
		if m.ParentID != nil {
			if p := parents[*m.ParentID]; p != nil {
				v.Parent = p.Summarize(names[p.SenderID])
			}
		}
		out[i] = v
	}
	return out, nil
}

func (s *MessageService) groupName(ctx context.Context, groupID uuid.UUID) string {
	g, err := s.stores.Groups.GetByID(ctx, groupID)
	if err != nil {
		s.logger.Warn("resolve group name", zap.String("group_id", groupID.String()), zap.Error(err))
		return ""
	}
	if g == nil {
		return ""
	}
	return g.Name
}

func dedupe(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if id == uuid.Nil {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
