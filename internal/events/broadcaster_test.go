package events

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/lalith-99/parley/internal/models"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"
)

type recordingPublisher struct {
	mu       sync.Mutex
	channels []string
	payloads [][]byte
	err      error
	block    bool
}

func (p *recordingPublisher) Publish(ctx context.Context, channel string, payload []byte) error {
	if p.block {
		<-ctx.Done()
		return ctx.Err()
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.channels = append(p.channels, channel)
	p.payloads = append(p.payloads, payload)
	return p.err
}

func TestBroadcaster_EmitsEnvelope(t *testing.T) {
	pub := &recordingPublisher{}
	b := NewBroadcaster(pub, "", 0, zaptest.NewLogger(t))
	require.Equal(t, DefaultChannel, b.Channel())

	b.Emit(context.Background(), Typing, TypingPayload{UserID: "u1", IsTyping: true})

	require.Len(t, pub.payloads, 1)
	require.Equal(t, DefaultChannel, pub.channels[0])

	var got struct {
		Type string         `json:"type"`
		Data map[string]any `json:"data"`
	}
	require.NoError(t, json.Unmarshal(pub.payloads[0], &got))
	require.Equal(t, "typing_indicator", got.Type)
	require.Equal(t, "u1", got.Data["user_id"])
	require.Equal(t, true, got.Data["is_typing"])
}

func TestBroadcaster_FailureIsLoggedAndSwallowed(t *testing.T) {
	core, logs := observer.New(zap.ErrorLevel)
	pub := &recordingPublisher{err: errors.New("connection refused")}
	b := NewBroadcaster(pub, "events", time.Second, zap.New(core))

	require.NotPanics(t, func() {
		b.Emit(context.Background(), MessageRead, MessageReadPayload{MessageID: "m"})
	})

	entries := logs.FilterMessage("broadcast failed").All()
	require.Len(t, entries, 1)
	require.Equal(t, "message_read", entries[0].ContextMap()["event_type"])
}

func TestBroadcaster_TimeoutBoundsPublish(t *testing.T) {
	core, logs := observer.New(zap.ErrorLevel)
	pub := &recordingPublisher{block: true}
	b := NewBroadcaster(pub, "events", 20*time.Millisecond, zap.New(core))

	start := time.Now()
	b.Emit(context.Background(), UserLeft, MembershipPayload{})
	require.Less(t, time.Since(start), time.Second)
	require.Equal(t, 1, logs.FilterMessage("broadcast failed").Len())
}

func TestBroadcaster_CancelledCallerStillPublishes(t *testing.T) {
	pub := &recordingPublisher{}
	b := NewBroadcaster(pub, "events", time.Second, zaptest.NewLogger(t))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	b.Emit(ctx, UserJoined, MembershipPayload{UserID: "u"})
	require.Len(t, pub.payloads, 1)
}

func TestBroadcaster_BatchSharesOneDeadline(t *testing.T) {
	core, logs := observer.New(zap.ErrorLevel)
	pub := &recordingPublisher{block: true}
	timeout := 30 * time.Millisecond
	b := NewBroadcaster(pub, "events", timeout, zap.New(core))

	ctx, cancel := b.Batch(context.Background())
	defer cancel()

	start := time.Now()
	for i := 0; i < 10; i++ {
		b.Emit(ctx, UnreadCount, UnreadCountPayload{})
	}
	require.Less(t, time.Since(start), 5*timeout)
	require.Equal(t, 10, logs.FilterMessage("broadcast failed").Len())
}

func TestBroadcaster_BatchIgnoresCallerCancellation(t *testing.T) {
	pub := &recordingPublisher{}
	b := NewBroadcaster(pub, "events", time.Second, zaptest.NewLogger(t))

	reqCtx, cancelReq := context.WithCancel(context.Background())
	ctx, cancel := b.Batch(reqCtx)
	defer cancel()
	cancelReq()

	b.Emit(ctx, UserJoined, MembershipPayload{UserID: "u"})
	b.Emit(ctx, UnreadCount, UnreadCountPayload{})
	require.Len(t, pub.payloads, 2)
}

func TestBroadcaster_NilPublisher(t *testing.T) {
	core, logs := observer.New(zap.ErrorLevel)
	b := NewBroadcaster(nil, "events", time.Second, zap.New(core))
	b.Emit(context.Background(), UserJoined, MembershipPayload{})
	require.Equal(t, 1, logs.Len())
}

func TestPayloads_EncryptedGroupMessageCarriesEnvelopeVerbatim(t *testing.T) {
	gid := uuid.New()
	m := &models.Message{
		ID:        uuid.New(),
		Kind:      models.KindGroup,
		GroupID:   &gid,
		SenderID:  uuid.New(),
		Encrypted: true,
		Envelope: models.Envelope{
			EncryptedContent: "ct",
			EncryptedKeys:    map[string]string{"a": "wa", "b": "wb"},
			IV:               "iv",
		},
		CreatedAt: time.Now(),
	}
	raw, err := json.Marshal(NewGroupMessage(m, "alice", "team", nil))
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, json.Unmarshal(raw, &got))
	require.Equal(t, true, got["is_encrypted"])
	require.Equal(t, "ct", got["encrypted_content"])
	require.Equal(t, "iv", got["iv"])
	require.Equal(t, map[string]any{"a": "wa", "b": "wb"}, got["encrypted_keys"])
	require.Equal(t, gid.String(), got["group_id"])
	require.NotContains(t, got, "parent_message")
}

func TestPayloads_PlaintextPrivateOmitsEnvelope(t *testing.T) {
	rid := uuid.New()
	parent := &models.MessageSummary{ID: uuid.New(), SenderID: rid, Sender: "bob", Content: "orig"}
	m := &models.Message{
		ID:          uuid.New(),
		Kind:        models.KindPrivate,
		SenderID:    uuid.New(),
		RecipientID: &rid,
		Content:     "hello",
	}
	raw, err := json.Marshal(NewPrivateMessage(m, "alice", "bob", parent))
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, json.Unmarshal(raw, &got))
	require.Equal(t, "hello", got["content"])
	require.Equal(t, false, got["is_encrypted"])
	require.NotContains(t, got, "iv")
	require.NotContains(t, got, "encrypted_key")
	require.Equal(t, "orig", got["parent_message"].(map[string]any)["content"])
}

func TestPayloads_UnreadCountUsesStringKeys(t *testing.T) {
	g, u := uuid.New(), uuid.New()
	p := NewUnreadCount(uuid.New(), models.UnreadCounts{
		Total:  3,
		Groups: map[uuid.UUID]int{g: 1},
		Users:  map[uuid.UUID]int{u: 2},
	}, time.Now())
	require.Equal(t, 3, p.Total)
	require.Equal(t, 1, p.Groups[g.String()])
	require.Equal(t, 2, p.Users[u.String()])
}

func TestDecode(t *testing.T) {
	env, err := Decode([]byte(`{"type":"future_thing","data":{"x":1}}`))
	require.NoError(t, err)
	require.Equal(t, Type("future_thing"), env.Type)
	require.False(t, env.Type.Known())
	require.JSONEq(t, `{"x":1}`, string(env.Data))

	env, err = Decode([]byte(`{"type":"message_read","data":{}}`))
	require.NoError(t, err)
	require.True(t, env.Type.Known())

	_, err = Decode([]byte(`{"data":{}}`))
	require.Error(t, err)
	_, err = Decode([]byte(`not json`))
	require.Error(t, err)
}
