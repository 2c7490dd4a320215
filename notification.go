package livechat

import "context"

// EventObserver defines an optional interface for observing fan-out events
// (push failures, lagging subscribers, subscriber churn).
//
// Implementations might page an operator, export metrics or write audit logs.
// Observer errors are logged and otherwise ignored: observation never affects
// message delivery.
type EventObserver interface {
	// NotifyFanoutPartialFailure is called when a push fan-out finished with
	// at least one failed device delivery.
	NotifyFanoutPartialFailure(ctx context.Context, summary FanoutSummary) error

	// NotifySubscriberLagging is called when a subscriber queue overflowed and
	// its oldest pending message was dropped.
	NotifySubscriberLagging(ctx context.Context, subscriptionID string, dropped uint64) error

	// NotifySubscriberJoined is called after a live subscription is registered.
	NotifySubscriberJoined(ctx context.Context, subscriptionID string) error

	// NotifySubscriberLeft is called after a live subscription is removed.
	NotifySubscriberLeft(ctx context.Context, subscriptionID string) error
}

// NoOpEventObserver is a no-op implementation of EventObserver.
// Use this when observation is not needed.
type NoOpEventObserver struct{}

// NotifyFanoutPartialFailure does nothing.
func (n *NoOpEventObserver) NotifyFanoutPartialFailure(_ context.Context, _ FanoutSummary) error {
	return nil
}

// NotifySubscriberLagging does nothing.
func (n *NoOpEventObserver) NotifySubscriberLagging(_ context.Context, _ string, _ uint64) error {
	return nil
}

// NotifySubscriberJoined does nothing.
func (n *NoOpEventObserver) NotifySubscriberJoined(_ context.Context, _ string) error {
	return nil
}

// NotifySubscriberLeft does nothing.
func (n *NoOpEventObserver) NotifySubscriberLeft(_ context.Context, _ string) error {
	return nil
}

// LoggingEventObserver is a simple implementation that logs every event.
type LoggingEventObserver struct {
	logger Logger
}

// NewLoggingEventObserver creates a new LoggingEventObserver.
func NewLoggingEventObserver(logger Logger) *LoggingEventObserver {
	return &LoggingEventObserver{logger: WithComponent(logger, "observer")}
}

// NotifyFanoutPartialFailure logs the failed deliveries of a push fan-out.
func (n *LoggingEventObserver) NotifyFanoutPartialFailure(_ context.Context, summary FanoutSummary) error {
	n.logger.Warnf("⚠️ Push fan-out partially failed: success=%d, failure=%d",
		summary.SuccessCount, summary.FailureCount)
	for _, f := range summary.Failures {
		n.logger.Debugf("push failure: token=%s, attempts=%d, error=%v", maskToken(f.Token), f.Attempts, f.Err)
	}
	return nil
}

// NotifySubscriberLagging logs a dropped message.
func (n *LoggingEventObserver) NotifySubscriberLagging(_ context.Context, subscriptionID string, dropped uint64) error {
	n.logger.Warnf("🐢 Subscriber lagging: id=%s, dropped_total=%d", subscriptionID, dropped)
	return nil
}

// NotifySubscriberJoined logs a new subscription.
func (n *LoggingEventObserver) NotifySubscriberJoined(_ context.Context, subscriptionID string) error {
	n.logger.Infof("✅ Subscriber joined: id=%s", subscriptionID)
	return nil
}

// NotifySubscriberLeft logs a removed subscription.
func (n *LoggingEventObserver) NotifySubscriberLeft(_ context.Context, subscriptionID string) error {
	n.logger.Infof("🔴 Subscriber left: id=%s", subscriptionID)
	return nil
}

// maskToken keeps device tokens out of logs.
func maskToken(token string) string {
	if len(token) <= 8 {
		return "****"
	}
	return token[:8] + "…"
}
