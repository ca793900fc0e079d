package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lalith-99/parley/internal/errs"
	"go.uber.org/zap"
)

// Publisher is the pub/sub capability the broadcaster writes to. It owns its
// own connection lifecycle; the broadcaster only calls Publish.
type Publisher interface {
	Publish(ctx context.Context, channel string, payload []byte) error
}

// DefaultTimeout bounds a single publish call, and every publish made under
// one Batch context together.
const DefaultTimeout = 2 * time.Second

type batchKey struct{}

// Broadcaster serializes events and publishes them on one channel.
//
// Delivery is at-most-once. A failed publish is logged and dropped; it never
// reaches the caller, whose write has already been committed.
type Broadcaster struct {
	pub     Publisher
	channel string
	timeout time.Duration
	logger  *zap.Logger
}

func NewBroadcaster(pub Publisher, channel string, timeout time.Duration, logger *zap.Logger) *Broadcaster {
	if channel == "" {
		channel = DefaultChannel
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Broadcaster{
		pub:     pub,
		channel: channel,
		timeout: timeout,
		logger:  logger,
	}
}

// Channel returns the channel events are published on.
func (b *Broadcaster) Channel() string { return b.channel }

// Emit publishes {type, data}. It returns once the publish finished or the
// timeout elapsed. Cancellation of ctx does not abort the publish: the
// originating write already succeeded and the event should still go out.
func (b *Broadcaster) Emit(ctx context.Context, t Type, data any) {
	if err := b.publish(ctx, t, data); err != nil {
		b.logger.Error("broadcast failed",
			zap.String("event_type", string(t)),
			zap.String("channel", b.channel),
			zap.Error(err),
		)
		return
	}
	b.logger.Debug("broadcast", zap.String("event_type", string(t)))
}

// Batch returns the context for every event one request publishes after its
// write. It is detached from ctx's cancellation and expires after one
// publish timeout, so a hanging Redis costs the request that long once, not
// once per event. Emits made after the batch expired fail immediately.
func (b *Broadcaster) Batch(ctx context.Context) (context.Context, context.CancelFunc) {
	bctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), b.timeout)
	return context.WithValue(bctx, batchKey{}, struct{}{}), cancel
}

func (b *Broadcaster) publish(ctx context.Context, t Type, data any) error {
	payload, err := json.Marshal(Envelope{Type: t, Data: data})
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if b.pub == nil {
		return errs.ErrBroadcastUnavailable
	}

	// Outside a batch the caller's cancellation is ignored: the write it
	// made is already committed. Inside one, the batch deadline applies.
	base := ctx
	if ctx.Value(batchKey{}) == nil {
		base = context.WithoutCancel(ctx)
	}
	if err := base.Err(); err != nil {
		return fmt.Errorf("%w: %w", errs.ErrBroadcastUnavailable, err)
	}

	pctx, cancel := context.WithTimeout(base, b.timeout)
	defer cancel()

	if err := b.pub.Publish(pctx, b.channel, payload); err != nil {
		return fmt.Errorf("%w: %w", errs.ErrBroadcastUnavailable, err)
	}
	return nil
}
