package service

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/lalith-99/parley/internal/errs"
	"github.com/lalith-99/parley/internal/events"
	"github.com/lalith-99/parley/internal/models"
	"go.uber.org/zap"
)

const maxGroupNameLen = 100

// GroupService owns group lifecycle and membership.
type GroupService struct {
	stores Stores
	unread *unread
	events Emitter
	logger *zap.Logger
	now    func() time.Time
}

func NewGroupService(stores Stores, emitter Emitter, logger *zap.Logger) *GroupService {
	now := time.Now
	return &GroupService{
		stores: stores,
		unread: &unread{messages: stores.Messages, events: emitter, logger: logger, now: now},
		events: emitter,
		logger: logger,
		now:    now,
	}
}

// GroupUpdate holds the optional fields of an update request.
type GroupUpdate struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
}

func normalizeName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", errs.Field(errs.ErrInvalidInput, "name is required", "name")
	}
	if utf8.RuneCountInString(name) > maxGroupNameLen {
		return "", errs.Field(errs.ErrInvalidInput, "name is too long", "name")
	}
	return name, nil
}

// Create makes a group with the creator as its first admin.
func (s *GroupService) Create(ctx context.Context, creator uuid.UUID, name, description string) (*models.GroupSummary, error) {
	name, err := normalizeName(name)
	if err != nil {
		return nil, err
	}
	g, err := s.stores.Groups.Create(ctx, name, strings.TrimSpace(description), creator)
	if err != nil {
		return nil, err
	}
	return &models.GroupSummary{Group: *g, MemberCount: 1, IsMember: true, IsAdmin: true}, nil
}

func (s *GroupService) Get(ctx context.Context, viewer, groupID uuid.UUID) (*models.GroupSummary, error) {
	g, err := s.group(ctx, groupID)
	if err != nil {
		return nil, err
	}
	ids, err := s.stores.Members.MemberIDs(ctx, groupID)
	if err != nil {
		return nil, err
	}
	m, err := s.stores.Members.Get(ctx, groupID, viewer)
	if err != nil {
		return nil, err
	}
	return &models.GroupSummary{
		Group:       *g,
		MemberCount: len(ids),
		IsMember:    m != nil,
		IsAdmin:     m != nil && m.IsAdmin,
	}, nil
}

func (s *GroupService) List(ctx context.Context, viewer uuid.UUID) ([]models.GroupSummary, error) {
	return s.stores.Groups.List(ctx, viewer)
}

// Update changes name and/or description. Admins only.
func (s *GroupService) Update(ctx context.Context, actor, groupID uuid.UUID, u GroupUpdate) (*models.Group, error) {
	g, err := s.group(ctx, groupID)
	if err != nil {
		return nil, err
	}
	if err := s.requireAdmin(ctx, groupID, actor); err != nil {
		return nil, err
	}

	name, description := g.Name, g.Description
	if u.Name != nil {
		if name, err = normalizeName(*u.Name); err != nil {
			return nil, err
		}
	}
	if u.Description != nil {
		description = strings.TrimSpace(*u.Description)
	}

	updated, err := s.stores.Groups.Update(ctx, groupID, name, description)
	if err != nil {
		return nil, err
	}
	if updated == nil {
		return nil, errs.ErrNotFound
	}
	return updated, nil
}

// Delete removes the group and everything in it. Creator only.
func (s *GroupService) Delete(ctx context.Context, actor, groupID uuid.UUID) error {
	g, err := s.group(ctx, groupID)
	if err != nil {
		return err
	}
	if g.CreatedBy != actor {
		return errs.Field(errs.ErrAccessDenied, "only the group creator can delete the group")
	}
	return s.stores.Groups.Delete(ctx, groupID)
}

// Join adds user to the group. Joining twice is a no-op and reports false.
func (s *GroupService) Join(ctx context.Context, user, groupID uuid.UUID) (bool, error) {
	g, err := s.group(ctx, groupID)
	if err != nil {
		return false, err
	}
	created, err := s.stores.Members.Add(ctx, groupID, user, false)
	if err != nil {
		return false, err
	}
	if !created {
		return false, nil
	}

	p := s.membership(ctx, g, user, false)
	fctx, done := s.events.Batch(ctx)
	defer done()
	s.events.Emit(fctx, events.UserJoined, p)
	s.unread.notify(fctx, user)
	return true, nil
}

// Leave removes user from the group. The creator cannot leave.
func (s *GroupService) Leave(ctx context.Context, user, groupID uuid.UUID) error {
	g, err := s.group(ctx, groupID)
	if err != nil {
		return err
	}
	if g.CreatedBy == user {
		return errs.Field(errs.ErrCreatorCannotLeave, "group creator cannot leave the group. Delete the group instead.")
	}
	removed, err := s.stores.Members.Remove(ctx, groupID, user)
	if err != nil {
		return err
	}
	if !removed {
		return errs.Field(errs.ErrNotAGroupMember, "you are not a member of this group")
	}

	p := s.membership(ctx, g, user, false)
	fctx, done := s.events.Batch(ctx)
	defer done()
	s.events.Emit(fctx, events.UserLeft, p)
	s.unread.notify(fctx, user)
	return nil
}

// Members lists a group's members. Only members may look.
func (s *GroupService) Members(ctx context.Context, viewer, groupID uuid.UUID, f models.MemberFilter) ([]models.GroupMember, error) {
	if _, err := s.group(ctx, groupID); err != nil {
		return nil, err
	}
	ok, err := s.stores.Members.IsMember(ctx, groupID, viewer)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errs.Field(errs.ErrAccessDenied, "only group members can view the member list")
	}
	f.Username = strings.TrimSpace(f.Username)
	return s.stores.Members.List(ctx, groupID, f)
}

// Promote makes target an admin. Promoting an admin reports false.
func (s *GroupService) Promote(ctx context.Context, actor, groupID, target uuid.UUID) (bool, error) {
	g, err := s.group(ctx, groupID)
	if err != nil {
		return false, err
	}
	if err := s.requireAdmin(ctx, groupID, actor); err != nil {
		return false, err
	}
	m, err := s.stores.Members.Get(ctx, groupID, target)
	if err != nil {
		return false, err
	}
	if m == nil {
		return false, errs.Field(errs.ErrNotAGroupMember, "user is not a member of this group", "user_id")
	}
	promoted, err := s.stores.Members.Promote(ctx, groupID, target)
	if err != nil {
		return false, err
	}
	if !promoted {
		return false, nil
	}

	p := s.membership(ctx, g, target, true)
	p.PromotedBy = actor.String()
	p.PromotedByName = usernames(ctx, s.stores.Users, s.logger, actor)[actor]
	s.events.Emit(ctx, events.MemberPromoted, p)
	return true, nil
}

// Remove takes target out of the group. Admins only; never the creator.
func (s *GroupService) Remove(ctx context.Context, actor, groupID, target uuid.UUID) error {
	g, err := s.group(ctx, groupID)
	if err != nil {
		return err
	}
	if err := s.requireAdmin(ctx, groupID, actor); err != nil {
		return err
	}
	if target == g.CreatedBy {
		return errs.Field(errs.ErrCannotRemoveCreator, "cannot remove the group creator", "user_id")
	}
	removed, err := s.stores.Members.Remove(ctx, groupID, target)
	if err != nil {
		return err
	}
	if !removed {
		return errs.Field(errs.ErrNotAGroupMember, "user is not a member of this group", "user_id")
	}

	p := s.membership(ctx, g, target, false)
	p.RemovedBy = actor.String()
	p.RemovedByName = usernames(ctx, s.stores.Users, s.logger, actor)[actor]
	fctx, done := s.events.Batch(ctx)
	defer done()
	s.events.Emit(fctx, events.UserRemoved, p)
	s.unread.notify(fctx, target)
	return nil
}

func (s *GroupService) group(ctx context.Context, groupID uuid.UUID) (*models.Group, error) {
	g, err := s.stores.Groups.GetByID(ctx, groupID)
	if err != nil {
		return nil, err
	}
	if g == nil {
		return nil, errs.ErrNotFound
	}
	return g, nil
}

func (s *GroupService) requireAdmin(ctx context.Context, groupID, userID uuid.UUID) error {
	m, err := s.stores.Members.Get(ctx, groupID, userID)
	if err != nil {
		return err
	}
	if m == nil || !m.IsAdmin {
		return errs.Field(errs.ErrAccessDenied, "only group admins can do this")
	}
	return nil
}

func (s *GroupService) membership(ctx context.Context, g *models.Group, user uuid.UUID, isAdmin bool) events.MembershipPayload {
	return events.MembershipPayload{
		UserID:    user.String(),
		Username:  usernames(ctx, s.stores.Users, s.logger, user)[user],
		GroupID:   g.ID.String(),
		GroupName: g.Name,
		IsAdmin:   isAdmin,
		Timestamp: events.Timestamp(s.now()),
	}
}
