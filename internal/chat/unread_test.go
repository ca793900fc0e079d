package chat

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/lalith-99/parley/internal/models"
	"github.com/stretchr/testify/require"
)

func TestEligible(t *testing.T) {
	me, other, group := uuid.New(), uuid.New(), uuid.New()

	groupMsg := &models.Message{Kind: models.KindGroup, GroupID: ptr(group), SenderID: other}
	ownGroupMsg := &models.Message{Kind: models.KindGroup, GroupID: ptr(group), SenderID: me}
	toMe := &models.Message{Kind: models.KindPrivate, SenderID: other, RecipientID: ptr(me)}
	fromMe := &models.Message{Kind: models.KindPrivate, SenderID: me, RecipientID: ptr(other)}

	require.True(t, Eligible(me, groupMsg, true))
	require.False(t, Eligible(me, groupMsg, false))
	require.False(t, Eligible(me, ownGroupMsg, true))
	require.True(t, Eligible(me, toMe, false))
	require.False(t, Eligible(me, fromMe, false))
}

func TestTally(t *testing.T) {
	g1, g2, u1 := uuid.New(), uuid.New(), uuid.New()

	got := Tally([]models.UnreadRow{
		{Kind: models.KindGroup, Key: g1, Count: 3},
		{Kind: models.KindGroup, Key: g2, Count: 0},
		{Kind: models.KindPrivate, Key: u1, Count: 2},
		{Kind: models.KindGroup, Key: g1, Count: 1},
		{Kind: "other", Key: uuid.New(), Count: 9},
	})

	require.Equal(t, map[uuid.UUID]int{g1: 4}, got.Groups)
	require.Equal(t, map[uuid.UUID]int{u1: 2}, got.Users)
	require.Equal(t, 6, got.Total)

	sum := 0
	for _, n := range got.Groups {
		sum += n
	}
	for _, n := range got.Users {
		sum += n
	}
	require.Equal(t, got.Total, sum)
}

func TestTally_Empty(t *testing.T) {
	got := Tally(nil)
	require.Zero(t, got.Total)
	require.NotNil(t, got.Groups)
	require.NotNil(t, got.Users)
}

func TestRankChats(t *testing.T) {
	now := time.Now()
	older := now.Add(-time.Hour)
	g, u, stale := uuid.New(), uuid.New(), uuid.New()

	entries := []models.ChatEntry{
		{Kind: models.KindGroup, ID: stale},
		{Kind: models.KindGroup, ID: g, LastAt: &older},
		{Kind: models.KindPrivate, ID: u, LastAt: &now},
	}
	counts := models.UnreadCounts{
		Total:  5,
		Groups: map[uuid.UUID]int{g: 2},
		Users:  map[uuid.UUID]int{u: 3},
	}

	got := RankChats(entries, counts)
	require.Len(t, got, 3)
	require.Equal(t, u, got[0].ID)
	require.Equal(t, 3, got[0].UnreadCount)
	require.Equal(t, g, got[1].ID)
	require.Equal(t, 2, got[1].UnreadCount)
	require.Equal(t, stale, got[2].ID)
	require.Zero(t, got[2].UnreadCount)

	require.Zero(t, entries[1].UnreadCount, "input must not be mutated")
}
