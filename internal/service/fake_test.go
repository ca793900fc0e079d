package service

import (
	"context"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/lalith-99/parley/internal/chat"
	"github.com/lalith-99/parley/internal/errs"
	"github.com/lalith-99/parley/internal/events"
	"github.com/lalith-99/parley/internal/models"
	"github.com/lalith-99/parley/internal/repository"
	"go.uber.org/zap/zaptest"
)

// ledger is an in-memory store with the same semantics as the Postgres
// stores: unique keys, cascade on delete, access filter on list and mark-read.
type ledger struct {
	mu        sync.Mutex
	clock     time.Time
	users     map[uuid.UUID]*models.User
	groups    map[uuid.UUID]*models.Group
	members   map[uuid.UUID]map[uuid.UUID]*models.GroupMember
	messages  []*models.Message
	receipts  map[uuid.UUID]map[uuid.UUID]time.Time
	reactions map[reactionKey]time.Time
}

type reactionKey struct {
	msg, user uuid.UUID
	emoji     string
}

func newLedger() *ledger {
	return &ledger{
		clock:     time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC),
		users:     map[uuid.UUID]*models.User{},
		groups:    map[uuid.UUID]*models.Group{},
		members:   map[uuid.UUID]map[uuid.UUID]*models.GroupMember{},
		receipts:  map[uuid.UUID]map[uuid.UUID]time.Time{},
		reactions: map[reactionKey]time.Time{},
	}
}

func (l *ledger) tick() time.Time {
	l.clock = l.clock.Add(time.Second)
	return l.clock
}

func (l *ledger) addUser(name string) uuid.UUID {
	l.mu.Lock()
	defer l.mu.Unlock()
	id := uuid.New()
	l.users[id] = &models.User{ID: id, Username: name, CreatedAt: l.tick()}
	return id
}

func (l *ledger) stores() Stores {
	return Stores{
		Messages:  fakeMessages{l},
		Receipts:  fakeReceipts{l},
		Reactions: fakeReactions{l},
		Groups:    fakeGroups{l},
		Members:   fakeMembers{l},
		Users:     fakeUsers{l},
	}
}

func (l *ledger) isMember(g, u uuid.UUID) bool {
	_, ok := l.members[g][u]
	return ok
}

func (l *ledger) canRead(viewer uuid.UUID, m *models.Message) bool {
	if m.Kind == models.KindGroup {
		return l.isMember(*m.GroupID, viewer)
	}
	return m.SenderID == viewer || *m.RecipientID == viewer
}

func (l *ledger) message(id uuid.UUID) *models.Message {
	for _, m := range l.messages {
		if m.ID == id {
			return m
		}
	}
	return nil
}

func (l *ledger) messageCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.messages)
}

func (l *ledger) receiptCount(msg uuid.UUID) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.receipts[msg])
}

func (l *ledger) hasReaction(msg, user uuid.UUID, emoji string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.reactions[reactionKey{msg, user, emoji}]
	return ok
}

type fakeMessages struct{ l *ledger }

var _ repository.MessageRepository = fakeMessages{}

func (f fakeMessages) Create(_ context.Context, msg *models.Message) (*models.Message, error) {
	f.l.mu.Lock()
	defer f.l.mu.Unlock()
	if msg.Kind == models.KindGroup && !f.l.isMember(*msg.GroupID, msg.SenderID) {
		return nil, errs.ErrNotAGroupMember
	}
	m := *msg
	m.CreatedAt = f.l.tick()
	f.l.messages = append(f.l.messages, &m)
	out := m
	return &out, nil
}

func (f fakeMessages) GetByID(_ context.Context, id uuid.UUID) (*models.Message, error) {
	f.l.mu.Lock()
	defer f.l.mu.Unlock()
	m := f.l.message(id)
	if m == nil {
		return nil, nil
	}
	out := *m
	return &out, nil
}

func (f fakeMessages) List(_ context.Context, viewer uuid.UUID, flt models.MessageFilter) ([]models.Message, error) {
	f.l.mu.Lock()
	defer f.l.mu.Unlock()
	out := make([]models.Message, 0)
	for _, m := range f.l.messages {
		if !f.l.canRead(viewer, m) {
			continue
		}
		if flt.GroupID != nil && (m.GroupID == nil || *m.GroupID != *flt.GroupID) {
			continue
		}
		if flt.Kind != "" && m.Kind != flt.Kind {
			continue
		}
		if flt.Kind == models.KindPrivate && flt.Counterpart != nil &&
			m.SenderID != *flt.Counterpart && *m.RecipientID != *flt.Counterpart {
			continue
		}
		if flt.Since != nil && m.CreatedAt.Before(*flt.Since) {
			continue
		}
		out = append(out, *m)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID.String() > out[j].ID.String()
	})
	if flt.Offset >= len(out) {
		return []models.Message{}, nil
	}
	out = out[flt.Offset:]
	if flt.Limit > 0 && len(out) > flt.Limit {
		out = out[:flt.Limit]
	}
	return out, nil
}

func (f fakeMessages) Delete(_ context.Context, id uuid.UUID) error {
	f.l.mu.Lock()
	defer f.l.mu.Unlock()
	f.l.deleteMessage(id)
	return nil
}

func (l *ledger) deleteMessage(id uuid.UUID) {
	kept := l.messages[:0]
	for _, m := range l.messages {
		if m.ID == id {
			continue
		}
		if m.ParentID != nil && *m.ParentID == id {
			m.ParentID = nil
		}
		kept = append(kept, m)
	}
	l.messages = kept
	delete(l.receipts, id)
	for k := range l.reactions {
		if k.msg == id {
			delete(l.reactions, k)
		}
	}
}

func (f fakeMessages) UnreadRows(_ context.Context, user uuid.UUID) ([]models.UnreadRow, error) {
	f.l.mu.Lock()
	defer f.l.mu.Unlock()
	counts := map[models.UnreadRow]int{}
	for _, m := range f.l.messages {
		isMember := m.Kind == models.KindGroup && f.l.isMember(*m.GroupID, user)
		if !chat.Eligible(user, m, isMember) {
			continue
		}
		if _, read := f.l.receipts[m.ID][user]; read {
			continue
		}
		if m.Kind == models.KindGroup {
			counts[models.UnreadRow{Kind: models.KindGroup, Key: *m.GroupID}]++
		} else {
			counts[models.UnreadRow{Kind: models.KindPrivate, Key: m.SenderID}]++
		}
	}
	out := make([]models.UnreadRow, 0, len(counts))
	for k, n := range counts {
		k.Count = n
		out = append(out, k)
	}
	return out, nil
}

func (f fakeMessages) LastGroupMessages(_ context.Context, user uuid.UUID) ([]models.ChatEntry, error) {
	f.l.mu.Lock()
	defer f.l.mu.Unlock()
	last := map[uuid.UUID]*models.Message{}
	for _, m := range f.l.messages {
		if m.Kind == models.KindGroup && f.l.isMember(*m.GroupID, user) {
			last[*m.GroupID] = m
		}
	}
	out := make([]models.ChatEntry, 0, len(last))
	for gid, m := range last {
		at := m.CreatedAt
		out = append(out, models.ChatEntry{
			Kind: models.KindGroup, ID: gid, Name: f.l.groups[gid].Name,
			LastMessage: m.Content, LastEncrypted: m.Encrypted, LastSenderID: m.SenderID,
			LastSender: f.l.users[m.SenderID].Username, LastAt: &at,
		})
	}
	return out, nil
}

func (f fakeMessages) LastPrivateMessages(_ context.Context, user uuid.UUID) ([]models.ChatEntry, error) {
	f.l.mu.Lock()
	defer f.l.mu.Unlock()
	last := map[uuid.UUID]*models.Message{}
	for _, m := range f.l.messages {
		if m.Kind == models.KindPrivate && (m.SenderID == user || *m.RecipientID == user) {
			last[m.Counterpart(user)] = m
		}
	}
	out := make([]models.ChatEntry, 0, len(last))
	for peer, m := range last {
		at := m.CreatedAt
		out = append(out, models.ChatEntry{
			Kind: models.KindPrivate, ID: peer, Name: f.l.users[peer].Username,
			LastMessage: m.Content, LastEncrypted: m.Encrypted, LastSenderID: m.SenderID,
			LastSender: f.l.users[m.SenderID].Username, LastAt: &at,
		})
	}
	return out, nil
}

type fakeReceipts struct{ l *ledger }

var _ repository.ReceiptRepository = fakeReceipts{}

func (f fakeReceipts) MarkRead(_ context.Context, user uuid.UUID, ids []uuid.UUID) ([]models.ReadReceipt, error) {
	f.l.mu.Lock()
	defer f.l.mu.Unlock()
	out := make([]models.ReadReceipt, 0)
	for _, id := range ids {
		m := f.l.message(id)
		if m == nil || !f.l.canRead(user, m) {
			continue
		}
		if _, ok := f.l.receipts[id][user]; ok {
			continue
		}
		if f.l.receipts[id] == nil {
			f.l.receipts[id] = map[uuid.UUID]time.Time{}
		}
		at := f.l.tick()
		f.l.receipts[id][user] = at
		out = append(out, models.ReadReceipt{MessageID: id, UserID: user, ReadAt: at})
	}
	return out, nil
}

func (f fakeReceipts) ListForMessages(_ context.Context, ids []uuid.UUID) ([]models.ReadReceipt, error) {
	f.l.mu.Lock()
	defer f.l.mu.Unlock()
	out := make([]models.ReadReceipt, 0)
	for _, id := range ids {
		for u, at := range f.l.receipts[id] {
			out = append(out, models.ReadReceipt{MessageID: id, UserID: u, Username: f.l.users[u].Username, ReadAt: at})
		}
	}
	return out, nil
}

type fakeReactions struct{ l *ledger }

var _ repository.ReactionRepository = fakeReactions{}

func (f fakeReactions) Toggle(_ context.Context, msg, user uuid.UUID, emoji string) (models.ReactionAction, error) {
	f.l.mu.Lock()
	defer f.l.mu.Unlock()
	k := reactionKey{msg, user, emoji}
	if _, ok := f.l.reactions[k]; ok {
		delete(f.l.reactions, k)
		return models.ReactionRemoved, nil
	}
	f.l.reactions[k] = f.l.tick()
	return models.ReactionAdded, nil
}

func (f fakeReactions) ListForMessages(_ context.Context, ids []uuid.UUID) ([]models.Reaction, error) {
	f.l.mu.Lock()
	defer f.l.mu.Unlock()
	want := map[uuid.UUID]bool{}
	for _, id := range ids {
		want[id] = true
	}
	out := make([]models.Reaction, 0)
	for k, at := range f.l.reactions {
		if want[k.msg] {
			out = append(out, models.Reaction{MessageID: k.msg, UserID: k.user, Username: f.l.users[k.user].Username, Emoji: k.emoji, CreatedAt: at})
		}
	}
	return out, nil
}

type fakeGroups struct{ l *ledger }

var _ repository.GroupRepository = fakeGroups{}

func (f fakeGroups) nameTaken(name string, except uuid.UUID) bool {
	for id, g := range f.l.groups {
		if id != except && strings.EqualFold(g.Name, name) {
			return true
		}
	}
	return false
}

func (f fakeGroups) Create(_ context.Context, name, description string, creator uuid.UUID) (*models.Group, error) {
	f.l.mu.Lock()
	defer f.l.mu.Unlock()
	if f.nameTaken(name, uuid.Nil) {
		return nil, errs.Field(errs.ErrAlreadyExists, "a group with this name already exists", "name")
	}
	g := &models.Group{ID: uuid.New(), Name: name, Description: description, CreatedBy: creator, CreatedAt: f.l.tick()}
	f.l.groups[g.ID] = g
	f.l.members[g.ID] = map[uuid.UUID]*models.GroupMember{
		creator: {GroupID: g.ID, UserID: creator, Username: f.l.users[creator].Username, IsAdmin: true, JoinedAt: g.CreatedAt},
	}
	out := *g
	return &out, nil
}

func (f fakeGroups) GetByID(_ context.Context, id uuid.UUID) (*models.Group, error) {
	f.l.mu.Lock()
	defer f.l.mu.Unlock()
	g, ok := f.l.groups[id]
	if !ok {
		return nil, nil
	}
	out := *g
	return &out, nil
}

func (f fakeGroups) List(_ context.Context, viewer uuid.UUID) ([]models.GroupSummary, error) {
	f.l.mu.Lock()
	defer f.l.mu.Unlock()
	out := make([]models.GroupSummary, 0, len(f.l.groups))
	for id, g := range f.l.groups {
		m := f.l.members[id][viewer]
		out = append(out, models.GroupSummary{Group: *g, MemberCount: len(f.l.members[id]), IsMember: m != nil, IsAdmin: m != nil && m.IsAdmin})
	}
	return out, nil
}

func (f fakeGroups) Update(_ context.Context, id uuid.UUID, name, description string) (*models.Group, error) {
	f.l.mu.Lock()
	defer f.l.mu.Unlock()
	g, ok := f.l.groups[id]
	if !ok {
		return nil, nil
	}
	if f.nameTaken(name, id) {
		return nil, errs.Field(errs.ErrAlreadyExists, "a group with this name already exists", "name")
	}
	g.Name, g.Description = name, description
	out := *g
	return &out, nil
}

func (f fakeGroups) Delete(_ context.Context, id uuid.UUID) error {
	f.l.mu.Lock()
	defer f.l.mu.Unlock()
	delete(f.l.groups, id)
	delete(f.l.members, id)
	for _, m := range append([]*models.Message(nil), f.l.messages...) {
		if m.GroupID != nil && *m.GroupID == id {
			f.l.deleteMessage(m.ID)
		}
	}
	return nil
}

type fakeMembers struct{ l *ledger }

var _ repository.MembershipRepository = fakeMembers{}

func (f fakeMembers) Add(_ context.Context, g, u uuid.UUID, isAdmin bool) (bool, error) {
	f.l.mu.Lock()
	defer f.l.mu.Unlock()
	if f.l.isMember(g, u) {
		return false, nil
	}
	if f.l.members[g] == nil {
		f.l.members[g] = map[uuid.UUID]*models.GroupMember{}
	}
	f.l.members[g][u] = &models.GroupMember{GroupID: g, UserID: u, Username: f.l.users[u].Username, IsAdmin: isAdmin, JoinedAt: f.l.tick()}
	return true, nil
}

func (f fakeMembers) Remove(_ context.Context, g, u uuid.UUID) (bool, error) {
	f.l.mu.Lock()
	defer f.l.mu.Unlock()
	if !f.l.isMember(g, u) || f.l.groups[g].CreatedBy == u {
		return false, nil
	}
	delete(f.l.members[g], u)
	return true, nil
}

func (f fakeMembers) Get(_ context.Context, g, u uuid.UUID) (*models.GroupMember, error) {
	f.l.mu.Lock()
	defer f.l.mu.Unlock()
	m, ok := f.l.members[g][u]
	if !ok {
		return nil, nil
	}
	out := *m
	return &out, nil
}

func (f fakeMembers) IsMember(_ context.Context, g, u uuid.UUID) (bool, error) {
	f.l.mu.Lock()
	defer f.l.mu.Unlock()
	return f.l.isMember(g, u), nil
}

func (f fakeMembers) List(_ context.Context, g uuid.UUID, flt models.MemberFilter) ([]models.GroupMember, error) {
	f.l.mu.Lock()
	defer f.l.mu.Unlock()
	out := make([]models.GroupMember, 0)
	for _, m := range f.l.members[g] {
		if flt.Username != "" && !strings.Contains(strings.ToLower(m.Username), strings.ToLower(flt.Username)) {
			continue
		}
		if flt.IsAdmin != nil && m.IsAdmin != *flt.IsAdmin {
			continue
		}
		out = append(out, *m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].JoinedAt.Before(out[j].JoinedAt) })
	return out, nil
}

func (f fakeMembers) MemberIDs(_ context.Context, g uuid.UUID) ([]uuid.UUID, error) {
	f.l.mu.Lock()
	defer f.l.mu.Unlock()
	out := make([]uuid.UUID, 0, len(f.l.members[g]))
	for id := range f.l.members[g] {
		out = append(out, id)
	}
	return out, nil
}

func (f fakeMembers) Promote(_ context.Context, g, u uuid.UUID) (bool, error) {
	f.l.mu.Lock()
	defer f.l.mu.Unlock()
	m, ok := f.l.members[g][u]
	if !ok || m.IsAdmin {
		return false, nil
	}
	m.IsAdmin = true
	return true, nil
}

type fakeUsers struct{ l *ledger }

var _ repository.UserRepository = fakeUsers{}

func (f fakeUsers) Ensure(_ context.Context, id uuid.UUID, name string) error {
	f.l.mu.Lock()
	defer f.l.mu.Unlock()
	if u, ok := f.l.users[id]; ok {
		u.Username = name
		return nil
	}
	f.l.users[id] = &models.User{ID: id, Username: name, CreatedAt: f.l.tick()}
	return nil
}

func (f fakeUsers) GetByID(_ context.Context, id uuid.UUID) (*models.User, error) {
	f.l.mu.Lock()
	defer f.l.mu.Unlock()
	u, ok := f.l.users[id]
	if !ok {
		return nil, nil
	}
	out := *u
	return &out, nil
}

func (f fakeUsers) Usernames(_ context.Context, ids []uuid.UUID) (map[uuid.UUID]string, error) {
	f.l.mu.Lock()
	defer f.l.mu.Unlock()
	out := map[uuid.UUID]string{}
	for _, id := range ids {
		if u, ok := f.l.users[id]; ok {
			out[id] = u.Username
		}
	}
	return out, nil
}

func (f fakeUsers) SetPublicKey(_ context.Context, id uuid.UUID, key string) (bool, error) {
	f.l.mu.Lock()
	defer f.l.mu.Unlock()
	u, ok := f.l.users[id]
	if !ok {
		return false, nil
	}
	u.PublicKey = key
	return true, nil
}

func (f fakeUsers) PublicKeys(_ context.Context, ids []uuid.UUID) (map[uuid.UUID]string, error) {
	f.l.mu.Lock()
	defer f.l.mu.Unlock()
	out := map[uuid.UUID]string{}
	for _, id := range ids {
		if u, ok := f.l.users[id]; ok && u.PublicKey != "" {
			out[id] = u.PublicKey
		}
	}
	return out, nil
}

type emitted struct {
	Type events.Type
	Data any
}

type recorder struct {
	mu     sync.Mutex
	events []emitted
}

func (r *recorder) Emit(_ context.Context, t events.Type, data any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, emitted{Type: t, Data: data})
}

func (r *recorder) Batch(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithCancel(context.WithoutCancel(ctx))
}

func (r *recorder) of(t events.Type) []any {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []any
	for _, e := range r.events {
		if e.Type == t {
			out = append(out, e.Data)
		}
	}
	return out
}

func (r *recorder) types() []events.Type {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]events.Type, len(r.events))
	for i, e := range r.events {
		out[i] = e.Type
	}
	return out
}

func (r *recorder) reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = nil
}

// unreadFor returns the last unread_count_update published for user.
func (r *recorder) unreadFor(user uuid.UUID) (events.UnreadCountPayload, bool) {
	var last events.UnreadCountPayload
	found := false
	for _, d := range r.of(events.UnreadCount) {
		p := d.(events.UnreadCountPayload)
		if p.UserID == user.String() {
			last, found = p, true
		}
	}
	return last, found
}

type fixture struct {
	l        *ledger
	rec      *recorder
	messages *MessageService
	groups   *GroupService
	keys     *KeyService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	l := newLedger()
	rec := &recorder{}
	logger := zaptest.NewLogger(t)
	return &fixture{
		l:        l,
		rec:      rec,
		messages: NewMessageService(l.stores(), rec, logger),
		groups:   NewGroupService(l.stores(), rec, logger),
		keys:     NewKeyService(l.stores().Users),
	}
}

func ptr[T any](v T) *T { return &v }
