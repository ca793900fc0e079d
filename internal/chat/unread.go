package chat

import (
	"github.com/google/uuid"
	"github.com/lalith-99/parley/internal/models"
)

// Eligible reports whether m can ever count as unread for user.
// Self-authored messages never do. isMember is the user's current
// membership in m's group and is ignored for private messages.
func Eligible(user uuid.UUID, m *models.Message, isMember bool) bool {
	if m.SenderID == user {
		return false
	}
	switch m.Kind {
	case models.KindGroup:
		return isMember
	case models.KindPrivate:
		return m.RecipientID != nil && *m.RecipientID == user
	default:
		return false
	}
}

// Tally folds store groupings into UnreadCounts. Group rows are keyed by
// group id, private rows by sender id. Zero and negative counts are dropped
// so only non-zero groupings are emitted.
func Tally(rows []models.UnreadRow) models.UnreadCounts {
	out := models.UnreadCounts{
		Groups: make(map[uuid.UUID]int),
		Users:  make(map[uuid.UUID]int),
	}
	for _, r := range rows {
		if r.Count <= 0 {
			continue
		}
		switch r.Kind {
		case models.KindGroup:
			out.Groups[r.Key] += r.Count
		case models.KindPrivate:
			out.Users[r.Key] += r.Count
		default:
			continue
		}
		out.Total += r.Count
	}
	return out
}
