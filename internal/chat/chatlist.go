package chat

import (
	"sort"

	"github.com/lalith-99/parley/internal/models"
)

// RankChats attaches per-chat unread counts and orders entries by last
// message time, newest first. Entries without a timestamp go last.
func RankChats(entries []models.ChatEntry, counts models.UnreadCounts) []models.ChatEntry {
	out := make([]models.ChatEntry, len(entries))
	copy(out, entries)

	for i := range out {
		switch out[i].Kind {
		case models.KindGroup:
			out[i].UnreadCount = counts.Groups[out[i].ID]
		case models.KindPrivate:
			out[i].UnreadCount = counts.Users[out[i].ID]
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i].LastAt, out[j].LastAt
		switch {
		case a == nil && b == nil:
			return out[i].ID.String() < out[j].ID.String()
		case a == nil:
			return false
		case b == nil:
			return true
		case a.Equal(*b):
			return out[i].ID.String() < out[j].ID.String()
		default:
			return a.After(*b)
		}
	})
	return out
}
