// Package service implements the chat operations on top of the stores: it
// runs the authorization rules, persists, then recomputes unread counts and
// publishes events.
package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/lalith-99/parley/internal/chat"
	"github.com/lalith-99/parley/internal/events"
	"github.com/lalith-99/parley/internal/models"
	"github.com/lalith-99/parley/internal/repository"
	"go.uber.org/zap"
)

// Emitter publishes events. Implementations must not fail the caller;
// *events.Broadcaster logs and swallows publish errors.
//
// Batch scopes every event a request publishes after its write: the
// returned context carries one deadline for the whole fan-out, so a group
// send to N members waits at most one publish timeout, not N of them.
type Emitter interface {
	Emit(ctx context.Context, t events.Type, data any)
	Batch(ctx context.Context) (context.Context, context.CancelFunc)
}

// Stores bundles the repositories the services read and write.
type Stores struct {
	Messages  repository.MessageRepository
	Receipts  repository.ReceiptRepository
	Reactions repository.ReactionRepository
	Groups    repository.GroupRepository
	Members   repository.MembershipRepository
	Users     repository.UserRepository
}

// unread recomputes a user's breakdown from the ledger and publishes it.
// There is no cache: every call reads current state.
type unread struct {
	messages repository.MessageRepository
	events   Emitter
	logger   *zap.Logger
	now      func() time.Time
}

func (u *unread) counts(ctx context.Context, userID uuid.UUID) (models.UnreadCounts, error) {
	rows, err := u.messages.UnreadRows(ctx, userID)
	if err != nil {
		return models.UnreadCounts{}, err
	}
	return chat.Tally(rows), nil
}

// notify sends one unread_count_update per user. It runs after the write
// has committed, so failures are logged and never returned. ctx is expected
// to be a batch context; once it expires the remaining users are skipped.
func (u *unread) notify(ctx context.Context, userIDs ...uuid.UUID) {
	seen := make(map[uuid.UUID]struct{}, len(userIDs))
	for i, id := range userIDs {
		if err := ctx.Err(); err != nil {
			u.logger.Warn("unread updates cut short",
				zap.Int("skipped", len(userIDs)-i),
				zap.Error(err),
			)
			return
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}

		c, err := u.counts(ctx, id)
		if err != nil {
			u.logger.Error("recompute unread counts",
				zap.String("user_id", id.String()),
				zap.Error(err),
			)
			continue
		}
		u.events.Emit(ctx, events.UnreadCount, events.NewUnreadCount(id, c, u.now()))
	}
}

// usernames resolves display names for event payloads and views. A lookup
// failure after a committed write degrades to empty names.
func usernames(ctx context.Context, users repository.UserRepository, logger *zap.Logger, ids ...uuid.UUID) map[uuid.UUID]string {
	names, err := users.Usernames(ctx, ids)
	if err != nil {
		logger.Warn("resolve usernames", zap.Error(err))
		return map[uuid.UUID]string{}
	}
	return names
}

func without(ids []uuid.UUID, skip uuid.UUID) []uuid.UUID {
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if id != skip {
			out = append(out, id)
		}
	}
	return out
}
