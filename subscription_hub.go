package livechat

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/coregx/livechat/model"
	"github.com/google/uuid"
)

// DefaultQueueSize is the per-subscriber queue capacity.
const DefaultQueueSize = 256

// Subscription is one open live feed registered with a SubscriptionHub.
// Messages broadcast after Subscribe returns are delivered on Messages() in
// broadcast order, each at most once. The channel is closed when the
// subscription is removed; messages queued before removal can still be drained.
type Subscription struct {
	id      string
	ch      chan model.Message
	done    chan struct{} // closed together with ch
	hub     *SubscriptionHub
	dropped atomic.Uint64
}

// ID returns the ephemeral handle of the subscription.
func (s *Subscription) ID() string {
	return s.id
}

// Messages returns the delivery channel.
func (s *Subscription) Messages() <-chan model.Message {
	return s.ch
}

// Done returns a channel that is closed once the subscription has been
// removed, either by Unsubscribe or by closing the hub.
func (s *Subscription) Done() <-chan struct{} {
	return s.done
}

// Dropped returns how many messages were discarded because this subscriber
// fell more than a full queue behind.
func (s *Subscription) Dropped() uint64 {
	return s.dropped.Load()
}

// Close removes the subscription from its hub. It is idempotent.
func (s *Subscription) Close() {
	s.hub.Unsubscribe(s)
}

// release closes the delivery and done channels. The caller must hold the
// hub write lock and must already have removed s from the registry.
func (s *Subscription) release() {
	close(s.ch)
	close(s.done)
}

// enqueue adds msg to the queue without blocking. When the queue is full the
// oldest pending message is discarded (drop-oldest) and dropped is true.
// The caller must hold the hub read lock and the publish lock, which makes
// the hub the only producer for this channel.
func (s *Subscription) enqueue(msg model.Message) (delivered, dropped bool) {
	select {
	case s.ch <- msg:
		return true, false
	default:
	}

	select {
	case <-s.ch:
		s.dropped.Add(1)
		dropped = true
	default:
	}

	select {
	case s.ch <- msg:
		return true, dropped
	default:
		// Unreachable with a single producer; count the new message as lost.
		s.dropped.Add(1)
		return false, true
	}
}

// HubStats is a point-in-time view of hub activity.
type HubStats struct {
	Subscribers int    `json:"subscribers"` // Currently registered subscriptions
	Delivered   uint64 `json:"delivered"`   // Messages enqueued since start
	Dropped     uint64 `json:"dropped"`     // Messages discarded by drop-oldest
}

// SubscriptionHub is the in-memory registry of live subscriptions. It fans
// every broadcast message out to each registered subscription's own queue.
//
// Guarantees:
//   - Broadcast order equals call order for every subscription
//   - A subscription registered before Broadcast starts receives the message once
//   - A subscription registered after Broadcast starts never receives it
//   - No message is queued for a subscription after Unsubscribe returns
//   - A slow subscriber never blocks the publisher or other subscribers:
//     queues are bounded and overflow drops the oldest pending message
//
// Thread safety: Safe for concurrent use.
type SubscriptionHub struct {
	mu     sync.RWMutex
	subs   map[string]*Subscription
	closed bool

	// publishMu serializes broadcasts so every queue sees the same order.
	publishMu sync.Mutex

	queueSize int
	logger    Logger
	observer  EventObserver

	delivered atomic.Uint64
	dropped   atomic.Uint64
}

// HubOption configures a SubscriptionHub.
type HubOption func(*SubscriptionHub) error

// NewSubscriptionHub creates a new hub with the provided options.
//
// Optional options:
//   - WithQueueSize: per-subscriber queue capacity (default: 256)
//   - WithHubLogger: logger instance (default: NoopLogger)
//   - WithHubObserver: event observer (default: NoOpEventObserver)
func NewSubscriptionHub(opts ...HubOption) (*SubscriptionHub, error) {
	h := &SubscriptionHub{
		subs:      make(map[string]*Subscription),
		queueSize: DefaultQueueSize,
		logger:    &NoopLogger{},
		observer:  &NoOpEventObserver{},
	}

	for _, opt := range opts {
		if err := opt(h); err != nil {
			return nil, NewErrorWithCause(ErrCodeConfiguration, "failed to apply hub option", err)
		}
	}

	h.logger = WithComponent(h.logger, "hub")
	return h, nil
}

// WithQueueSize sets the per-subscriber queue capacity. Must be > 0.
func WithQueueSize(size int) HubOption {
	return func(h *SubscriptionHub) error {
		if size <= 0 {
			return fmt.Errorf("queue size must be > 0, got %d", size)
		}
		h.queueSize = size
		return nil
	}
}

// WithHubLogger sets the logger instance for the hub.
func WithHubLogger(logger Logger) HubOption {
	return func(h *SubscriptionHub) error {
		if logger == nil {
			return fmt.Errorf("logger cannot be nil")
		}
		h.logger = logger
		return nil
	}
}

// WithHubObserver sets the event observer for subscriber churn and lag.
func WithHubObserver(observer EventObserver) HubOption {
	return func(h *SubscriptionHub) error {
		if observer == nil {
			return fmt.Errorf("observer cannot be nil")
		}
		h.observer = observer
		return nil
	}
}

// Subscribe registers a new subscription.
// Returns ErrHubClosed after Close.
func (h *SubscriptionHub) Subscribe() (*Subscription, error) {
	sub := &Subscription{
		id:   uuid.NewString(),
		ch:   make(chan model.Message, h.queueSize),
		done: make(chan struct{}),
		hub:  h,
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil, ErrHubClosed
	}
	h.subs[sub.id] = sub
	count := len(h.subs)
	h.mu.Unlock()

	h.logger.Infof("Subscription registered: id=%s, total=%d", sub.id, count)
	if err := h.observer.NotifySubscriberJoined(context.Background(), sub.id); err != nil {
		h.logger.Warnf("Failed to send subscriber joined notification: %v", err)
	}
	return sub, nil
}

// Unsubscribe removes the subscription and closes its channel.
// Calling it again, or with a subscription from another hub, is a no-op.
func (h *SubscriptionHub) Unsubscribe(sub *Subscription) {
	if sub == nil {
		return
	}

	h.mu.Lock()
	existing, ok := h.subs[sub.id]
	if !ok || existing != sub {
		h.mu.Unlock()
		return
	}
	delete(h.subs, sub.id)
	sub.release()
	count := len(h.subs)
	h.mu.Unlock()

	h.logger.Infof("Subscription removed: id=%s, total=%d", sub.id, count)
	if err := h.observer.NotifySubscriberLeft(context.Background(), sub.id); err != nil {
		h.logger.Warnf("Failed to send subscriber left notification: %v", err)
	}
}

// Broadcast enqueues msg for every registered subscription and returns the
// number of queues it was delivered to. It never blocks on consumers.
func (h *SubscriptionHub) Broadcast(msg model.Message) int {
	h.publishMu.Lock()
	defer h.publishMu.Unlock()

	var lagging []*Subscription
	delivered := 0

	h.mu.RLock()
	for _, sub := range h.subs {
		ok, dropped := sub.enqueue(msg)
		if ok {
			delivered++
		}
		if dropped {
			lagging = append(lagging, sub)
		}
	}
	h.mu.RUnlock()

	h.delivered.Add(uint64(delivered))
	h.dropped.Add(uint64(len(lagging)))

	for _, sub := range lagging {
		total := sub.Dropped()
		h.logger.Warnf("Subscriber queue full, dropped oldest message: id=%s, dropped_total=%d", sub.id, total)
		if err := h.observer.NotifySubscriberLagging(context.Background(), sub.id, total); err != nil {
			h.logger.Warnf("Failed to send subscriber lagging notification: %v", err)
		}
	}

	h.logger.Debugf("Broadcast message %d to %d subscribers", msg.ID, delivered)
	return delivered
}

// Stats returns current hub counters.
func (h *SubscriptionHub) Stats() HubStats {
	h.mu.RLock()
	count := len(h.subs)
	h.mu.RUnlock()

	return HubStats{
		Subscribers: count,
		Delivered:   h.delivered.Load(),
		Dropped:     h.dropped.Load(),
	}
}

// Close removes every subscription and rejects new ones.
// Consumers see their channels closed after draining queued messages.
func (h *SubscriptionHub) Close() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true
	subs := h.subs
	h.subs = make(map[string]*Subscription)
	for _, sub := range subs {
		sub.release()
	}
	h.mu.Unlock()

	h.logger.Infof("Hub closed, removed %d subscriptions", len(subs))
}
