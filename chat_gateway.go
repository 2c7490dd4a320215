package livechat

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/coregx/livechat/model"
)

// Push content and timing defaults.
const (
	// DefaultPushTimeout bounds one background push fan-out.
	DefaultPushTimeout = 30 * time.Second

	// MaxPushBodyLength is the number of runes of message text put in a push body.
	MaxPushBodyLength = 100
)

// PushNotifier sends a notification to every registered device.
// PushFanoutService implements this interface.
type PushNotifier interface {
	NotifyAllWithData(ctx context.Context, n Notification) (FanoutSummary, error)
}

// Feed is a live stream of newly posted messages.
// Close stops delivery; it is idempotent. The Messages channel is closed
// once the feed is closed and any queued messages have been drained.
type Feed interface {
	ID() string
	Messages() <-chan model.Message
	Close()
}

// LiveFeed is the Feed returned by ChatGateway.OpenLiveFeed.
// It unsubscribes exactly once: on Close or when the opening context is done,
// whichever happens first. Its watcher also exits when the hub drops the
// subscription on shutdown.
type LiveFeed struct {
	sub  *Subscription
	once sync.Once
	done chan struct{}
}

func newLiveFeed(ctx context.Context, sub *Subscription) *LiveFeed {
	f := &LiveFeed{sub: sub, done: make(chan struct{})}
	go func() {
		select {
		case <-ctx.Done():
			f.Close()
		case <-f.done:
		case <-sub.Done():
		}
	}()
	return f
}

// ID returns the subscription id behind the feed.
func (f *LiveFeed) ID() string {
	return f.sub.ID()
}

// Messages returns the delivery channel.
func (f *LiveFeed) Messages() <-chan model.Message {
	return f.sub.Messages()
}

// Dropped returns how many messages this feed lost to queue overflow.
func (f *LiveFeed) Dropped() uint64 {
	return f.sub.Dropped()
}

// Close unsubscribes the feed. Safe to call multiple times.
func (f *LiveFeed) Close() {
	f.once.Do(func() {
		f.sub.Close()
		close(f.done)
	})
}

// ChatGateway is the entry point for posting and reading chat messages.
// It orchestrates the store, the live hub and the optional push fan-out.
//
// PostMessage flow:
//  1. MessageStore.Append (validation and durable write)
//  2. SubscriptionHub.Broadcast, only after a successful append
//  3. Push fan-out on a background goroutine, detached from the caller
//
// Appends and broadcasts share one lock, so live subscribers see messages in
// the same order as they were stored.
//
// Thread safety: Safe for concurrent use.
type ChatGateway struct {
	store       *MessageStore
	hub         *SubscriptionHub
	push        PushNotifier
	pushTimeout time.Duration
	logger      Logger

	publishMu sync.Mutex
	closed    bool // guarded by publishMu; no push jobs start once set
	inflight  sync.WaitGroup
}

// NewChatGateway creates a new gateway with the provided options.
//
// Required options:
//   - WithStore: message store
//   - WithHub: live subscription hub
//
// Optional options:
//   - WithPushNotifier: push fan-out (default: disabled)
//   - WithPushTimeout: bound for one background fan-out (default: 30s)
//   - WithGatewayLogger: logger instance (default: NoopLogger)
//
// Example:
//
//	gateway, err := livechat.NewChatGateway(
//	    livechat.WithStore(store),
//	    livechat.WithHub(hub),
//	    livechat.WithPushNotifier(push),
//	    livechat.WithGatewayLogger(logger),
//	)
func NewChatGateway(opts ...GatewayOption) (*ChatGateway, error) {
	g := &ChatGateway{
		pushTimeout: DefaultPushTimeout,
		logger:      &NoopLogger{},
	}

	for _, opt := range opts {
		if err := opt(g); err != nil {
			return nil, NewErrorWithCause(ErrCodeConfiguration, "failed to apply gateway option", err)
		}
	}

	if g.store == nil {
		return nil, NewError(ErrCodeConfiguration, "MessageStore is required (use WithStore)")
	}
	if g.hub == nil {
		return nil, NewError(ErrCodeConfiguration, "SubscriptionHub is required (use WithHub)")
	}

	g.logger = WithComponent(g.logger, "gateway")
	return g, nil
}

// PostMessage stores a new message and fans it out.
//
// Returns the stored message once it is durable and has been handed to every
// live subscriber. Push delivery happens afterwards and never affects the
// result. Validation and persistence errors are returned unchanged; on error
// nothing is broadcast or pushed. After Close, messages are still stored and
// broadcast but no push is sent.
func (g *ChatGateway) PostMessage(ctx context.Context, nickname, text string) (model.Message, error) {
	g.publishMu.Lock()
	msg, err := g.store.Append(ctx, nickname, text)
	if err != nil {
		g.publishMu.Unlock()
		return model.Message{}, err
	}
	delivered := g.hub.Broadcast(msg)
	push := g.push != nil && !g.closed
	if push {
		g.inflight.Add(1)
	}
	skipped := g.push != nil && g.closed
	g.publishMu.Unlock()

	g.logger.Infof("Message posted: id=%d, live_subscribers=%d", msg.ID, delivered)

	switch {
	case push:
		g.startPush(ctx, msg)
	case skipped:
		g.logger.Warnf("Push fan-out for message %d skipped: gateway closed", msg.ID)
	}
	return msg, nil
}

// startPush runs the push fan-out for msg in the background. The job keeps
// the caller's values but not its cancellation. The caller must have added
// the job to inflight.
func (g *ChatGateway) startPush(ctx context.Context, msg model.Message) {
	go func() {
		defer g.inflight.Done()

		pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), g.pushTimeout)
		defer cancel()

		summary, err := g.push.NotifyAllWithData(pctx, pushNotification(msg))
		switch {
		case err != nil:
			g.logger.Errorf("Push fan-out for message %d failed: %v", msg.ID, err)
		case summary.NoDevices:
			g.logger.Debugf("Push fan-out for message %d skipped: no devices", msg.ID)
		case summary.FailureCount > 0:
			g.logger.Warnf("Push fan-out for message %d: %v", msg.ID, summary.Err())
		default:
			g.logger.Debugf("Push fan-out for message %d delivered to %d devices", msg.ID, summary.SuccessCount)
		}
	}()
}

// pushNotification builds the push content for a chat message.
func pushNotification(msg model.Message) Notification {
	body := []rune(msg.Text)
	if len(body) > MaxPushBodyLength {
		body = append(body[:MaxPushBodyLength-1], '…')
	}
	return Notification{
		Title: msg.Nickname,
		Body:  string(body),
		Data: map[string]string{
			"message_id": strconv.FormatInt(msg.ID, 10),
			"nickname":   msg.Nickname,
		},
	}
}

// ListRecent returns the newest limit messages, oldest first.
// See MessageStore.ListRecent.
func (g *ChatGateway) ListRecent(ctx context.Context, limit int) ([]model.Message, error) {
	return g.store.ListRecent(ctx, limit)
}

// OpenLiveFeed subscribes to newly posted messages. The feed is closed when
// ctx is done or when the caller closes it.
// Returns a CLOSED error once the hub has been shut down.
func (g *ChatGateway) OpenLiveFeed(ctx context.Context) (Feed, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	sub, err := g.hub.Subscribe()
	if err != nil {
		return nil, err
	}
	return newLiveFeed(ctx, sub), nil
}

// Close stops new push jobs and waits for in-flight ones to finish or for
// ctx to be done. It does not stop the hub; the owner of the hub closes it.
func (g *ChatGateway) Close(ctx context.Context) error {
	g.publishMu.Lock()
	g.closed = true
	g.publishMu.Unlock()

	done := make(chan struct{})
	go func() {
		g.inflight.Wait()
		close(done)
	}()

	select {
	case <-done:
		g.logger.Infof("Gateway closed, all push jobs finished")
		return nil
	case <-ctx.Done():
		g.logger.Warnf("Gateway close timed out waiting for push jobs: %v", ctx.Err())
		return ctx.Err()
	}
}
