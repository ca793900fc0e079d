package api

import (
	"context"

	"github.com/google/uuid"
	"github.com/lalith-99/parley/internal/models"
	"github.com/lalith-99/parley/internal/service"
)

// The handlers depend on these interfaces; the structs in package service
// implement them.

type MessageService interface {
	Send(ctx context.Context, sender uuid.UUID, d models.MessageDraft) (*models.MessageView, error)
	Get(ctx context.Context, viewer, messageID uuid.UUID) (*models.MessageView, error)
	List(ctx context.Context, viewer uuid.UUID, f models.MessageFilter) ([]models.MessageView, error)
	Receipts(ctx context.Context, viewer, messageID uuid.UUID) ([]models.ReadReceipt, error)
	Delete(ctx context.Context, actor, messageID uuid.UUID) error
	MarkRead(ctx context.Context, user uuid.UUID, messageIDs []uuid.UUID) ([]models.ReadReceipt, error)
	React(ctx context.Context, user, messageID uuid.UUID, emoji string) (models.ReactionAction, error)
	Typing(ctx context.Context, user uuid.UUID, groupID, recipientID *uuid.UUID, isTyping bool) error
	UnreadCounts(ctx context.Context, user uuid.UUID) (models.UnreadCounts, error)
	ChatList(ctx context.Context, user uuid.UUID) ([]models.ChatEntry, error)
}

type GroupService interface {
	Create(ctx context.Context, creator uuid.UUID, name, description string) (*models.GroupSummary, error)
	Get(ctx context.Context, viewer, groupID uuid.UUID) (*models.GroupSummary, error)
	List(ctx context.Context, viewer uuid.UUID) ([]models.GroupSummary, error)
	Update(ctx context.Context, actor, groupID uuid.UUID, u service.GroupUpdate) (*models.Group, error)
	Delete(ctx context.Context, actor, groupID uuid.UUID) error
	Join(ctx context.Context, user, groupID uuid.UUID) (bool, error)
	Leave(ctx context.Context, user, groupID uuid.UUID) error
	Members(ctx context.Context, viewer, groupID uuid.UUID, f models.MemberFilter) ([]models.GroupMember, error)
	Promote(ctx context.Context, actor, groupID, target uuid.UUID) (bool, error)
	Remove(ctx context.Context, actor, groupID, target uuid.UUID) error
}

type KeyService interface {
	Set(ctx context.Context, user uuid.UUID, publicKey string) error
	Get(ctx context.Context, user uuid.UUID) (*models.User, error)
	Bulk(ctx context.Context, userIDs []uuid.UUID) (map[uuid.UUID]string, error)
}

var (
	_ MessageService = (*service.MessageService)(nil)
	_ GroupService   = (*service.GroupService)(nil)
	_ KeyService     = (*service.KeyService)(nil)
)
