package livechat

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/coregx/livechat/retry"
	"golang.org/x/sync/errgroup"
)

// DefaultPushConcurrency is the number of device deliveries run in parallel.
const DefaultPushConcurrency = 8

// Notification is the content of one push notification.
type Notification struct {
	Title string
	Body  string
	Data  map[string]string
}

// PushProvider delivers a notification to a single device token.
//
// Implementations wrap an external push service (see adapters/fcm). Errors
// wrapped with Permanent are not retried, everything else is treated as
// transient.
type PushProvider interface {
	Send(ctx context.Context, token string, n Notification) error
}

// ProviderFactory creates the process-wide PushProvider.
// It is called at most once per successful initialization.
type ProviderFactory func(ctx context.Context) (PushProvider, error)

// TokenSource lists the device tokens a fan-out is sent to.
// MessageStore implements this interface.
type TokenSource interface {
	ListDeviceTokens(ctx context.Context) ([]string, error)
}

// TokenFailure describes a device delivery that failed after all attempts.
type TokenFailure struct {
	Token    string
	Attempts int
	Err      error
}

// FanoutSummary is the outcome of one NotifyAll call.
type FanoutSummary struct {
	SuccessCount int            `json:"successCount"`
	FailureCount int            `json:"failureCount"`
	NoDevices    bool           `json:"noDevices"` // No tokens registered, nothing was sent
	Failures     []TokenFailure `json:"-"`
}

// Err returns a FANOUT_PARTIAL_FAILURE error if any delivery failed, nil otherwise.
// The error is informational: per-device failures are never returned by NotifyAll.
func (s FanoutSummary) Err() error {
	if s.FailureCount == 0 {
		return nil
	}
	var cause error
	if len(s.Failures) > 0 {
		cause = s.Failures[0].Err
	}
	return NewErrorWithCause(ErrCodeFanoutPartial,
		fmt.Sprintf("push delivery failed for %d of %d devices",
			s.FailureCount, s.SuccessCount+s.FailureCount), cause)
}

// providerHandle holds the process-wide push provider.
// It is set at most once and never torn down. A failed initialization leaves
// it unset so that a later construction can try again.
type providerHandle struct {
	mu       sync.Mutex
	provider atomic.Pointer[providerBox]
}

type providerBox struct {
	PushProvider
}

var sharedProvider providerHandle

// get returns the initialized provider, calling factory only if none exists.
func (h *providerHandle) get(ctx context.Context, factory ProviderFactory) (PushProvider, bool, error) {
	if box := h.provider.Load(); box != nil {
		return box.PushProvider, false, nil
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if box := h.provider.Load(); box != nil {
		return box.PushProvider, false, nil
	}

	p, err := factory(ctx)
	if err != nil {
		return nil, false, err
	}
	if p == nil {
		return nil, false, fmt.Errorf("provider factory returned nil provider")
	}
	h.provider.Store(&providerBox{PushProvider: p})
	return p, true, nil
}

// PushFanoutService sends a push notification to every registered device.
//
// The underlying provider client is shared by all services in the process and
// initialized exactly once, by the first successful NewPushFanoutService call.
//
// Thread safety: Safe for concurrent use.
type PushFanoutService struct {
	tokens      TokenSource
	factory     ProviderFactory
	provider    PushProvider
	strategy    retry.Strategy
	concurrency int
	logger      Logger
	observer    EventObserver
}

// NewPushFanoutService creates a push fan-out service and initializes the
// process-wide push provider if it has not been initialized yet.
//
// Required options:
//   - WithTokenSource: where device tokens are read from
//   - WithProviderFactory: creates the push provider on first use
//
// Optional options:
//   - WithPushLogger: logger instance (default: NoopLogger)
//   - WithPushObserver: partial failure observer (default: NoOpEventObserver)
//   - WithPushRetryStrategy: per-device retries (default: retry.DefaultStrategy())
//   - WithPushConcurrency: parallel deliveries (default: 8)
//
// Returns a PROVIDER_INIT_ERROR if the factory fails. The failure is not
// cached: the next construction calls its factory again.
func NewPushFanoutService(ctx context.Context, opts ...PushOption) (*PushFanoutService, error) {
	p := &PushFanoutService{
		strategy:    retry.DefaultStrategy(),
		concurrency: DefaultPushConcurrency,
		logger:      &NoopLogger{},
		observer:    &NoOpEventObserver{},
	}

	for _, opt := range opts {
		if err := opt(p); err != nil {
			return nil, NewErrorWithCause(ErrCodeConfiguration, "failed to apply push option", err)
		}
	}

	if p.tokens == nil {
		return nil, NewError(ErrCodeConfiguration, "TokenSource is required (use WithTokenSource)")
	}
	if p.factory == nil {
		return nil, NewError(ErrCodeConfiguration, "ProviderFactory is required (use WithProviderFactory)")
	}

	p.logger = WithComponent(p.logger, "push")

	provider, created, err := sharedProvider.get(ctx, p.factory)
	if err != nil {
		p.logger.Errorf("Push provider initialization failed: %v", err)
		return nil, NewErrorWithCause(ErrCodeProviderInit, "failed to initialize push provider", err)
	}
	if created {
		p.logger.Infof("Push provider initialized")
	}
	p.provider = provider

	return p, nil
}

// NotifyAll sends a notification with the given title and body to every
// registered device.
func (p *PushFanoutService) NotifyAll(ctx context.Context, title, body string) (FanoutSummary, error) {
	return p.NotifyAllWithData(ctx, Notification{Title: title, Body: body})
}

// NotifyAllWithData sends n to every registered device.
//
// The process:
//  1. Read the current token set (an empty set returns NoDevices without any send)
//  2. Send to each token with bounded concurrency and per-token retry
//  3. Tally successes and failures
//
// Only a token-listing failure is returned as an error. Per-device failures
// are reported in the summary, logged and passed to the observer.
func (p *PushFanoutService) NotifyAllWithData(ctx context.Context, n Notification) (FanoutSummary, error) {
	tokens, err := p.tokens.ListDeviceTokens(ctx)
	if err != nil {
		return FanoutSummary{}, fmt.Errorf("failed to list device tokens: %w", err)
	}
	if len(tokens) == 0 {
		p.logger.Debugf("No devices registered, skipping push")
		return FanoutSummary{NoDevices: true}, nil
	}

	results := make([]TokenFailure, len(tokens))
	failed := make([]bool, len(tokens))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.concurrency)
	for i, token := range tokens {
		g.Go(func() error {
			attempts, err := p.strategy.Do(gctx, isRetryablePushError, func(ctx context.Context) error {
				return p.provider.Send(ctx, token, n)
			})
			if err != nil {
				results[i] = TokenFailure{Token: token, Attempts: attempts, Err: err}
				failed[i] = true
			}
			// Never fail the group: one bad token must not cancel the others.
			return nil
		})
	}
	_ = g.Wait()

	summary := FanoutSummary{}
	for i := range tokens {
		if failed[i] {
			summary.FailureCount++
			summary.Failures = append(summary.Failures, results[i])
			continue
		}
		summary.SuccessCount++
	}

	if summary.FailureCount > 0 {
		p.logger.Warnf("Push fan-out finished with failures: success=%d, failure=%d",
			summary.SuccessCount, summary.FailureCount)
		if err := p.observer.NotifyFanoutPartialFailure(ctx, summary); err != nil {
			p.logger.Warnf("Failed to send partial failure notification: %v", err)
		}
	} else {
		p.logger.Debugf("Push fan-out delivered to %d devices", summary.SuccessCount)
	}

	return summary, nil
}

func isRetryablePushError(err error) bool {
	return !IsPermanent(err)
}
