package livechat

import (
	"fmt"
	"time"

	"github.com/coregx/livechat/model"
	"github.com/coregx/livechat/retry"
)

// StoreOption is a function that configures a MessageStore.
//
// Example:
//
//	store, err := livechat.NewMessageStore(
//	    livechat.WithMessageRepository(repos.Message),
//	    livechat.WithDeviceTokenRepository(repos.DeviceToken),
//	    livechat.WithStoreLogger(logger),
//	)
type StoreOption func(*MessageStore) error

// WithMessageRepository sets the message persistence for the store.
//
// This is a required option for NewMessageStore.
func WithMessageRepository(repo MessageRepository) StoreOption {
	return func(s *MessageStore) error {
		if repo == nil {
			return fmt.Errorf("message repository cannot be nil")
		}
		s.messages = repo
		return nil
	}
}

// WithDeviceTokenRepository sets the device-token persistence for the store.
//
// This is a required option for NewMessageStore.
func WithDeviceTokenRepository(repo DeviceTokenRepository) StoreOption {
	return func(s *MessageStore) error {
		if repo == nil {
			return fmt.Errorf("device token repository cannot be nil")
		}
		s.devices = repo
		return nil
	}
}

// WithStoreLogger sets the logger instance for the store.
func WithStoreLogger(logger Logger) StoreOption {
	return func(s *MessageStore) error {
		if logger == nil {
			return fmt.Errorf("logger cannot be nil")
		}
		s.logger = logger
		return nil
	}
}

// WithLimits overrides the nickname and text length limits enforced by Append.
// Both limits must be > 0.
func WithLimits(limits model.Limits) StoreOption {
	return func(s *MessageStore) error {
		if limits.MaxNicknameLength <= 0 || limits.MaxTextLength <= 0 {
			return fmt.Errorf("limits must be > 0, got nickname=%d text=%d",
				limits.MaxNicknameLength, limits.MaxTextLength)
		}
		s.limits = limits
		return nil
	}
}

// WithClock sets the time source used to stamp new messages.
// Intended for tests; production code uses time.Now.
func WithClock(now func() time.Time) StoreOption {
	return func(s *MessageStore) error {
		if now == nil {
			return fmt.Errorf("clock cannot be nil")
		}
		s.now = now
		return nil
	}
}

// PushOption is a function that configures a PushFanoutService.
//
// Example:
//
//	push, err := livechat.NewPushFanoutService(ctx,
//	    livechat.WithTokenSource(store),
//	    livechat.WithProviderFactory(fcm.NewProviderFactory(credentialsFile, logger)),
//	    livechat.WithPushLogger(logger),
//	)
type PushOption func(*PushFanoutService) error

// WithTokenSource sets where the service reads device tokens from.
// A MessageStore satisfies TokenSource.
//
// This is a required option for NewPushFanoutService.
func WithTokenSource(source TokenSource) PushOption {
	return func(p *PushFanoutService) error {
		if source == nil {
			return fmt.Errorf("token source cannot be nil")
		}
		p.tokens = source
		return nil
	}
}

// WithProviderFactory sets the factory used to create the process-wide push
// provider. The factory is only called if no provider has been initialized yet.
//
// This is a required option for NewPushFanoutService.
func WithProviderFactory(factory ProviderFactory) PushOption {
	return func(p *PushFanoutService) error {
		if factory == nil {
			return fmt.Errorf("provider factory cannot be nil")
		}
		p.factory = factory
		return nil
	}
}

// WithPushLogger sets the logger instance for the push service.
func WithPushLogger(logger Logger) PushOption {
	return func(p *PushFanoutService) error {
		if logger == nil {
			return fmt.Errorf("logger cannot be nil")
		}
		p.logger = logger
		return nil
	}
}

// WithPushObserver sets the observer that receives partial fan-out failures.
// Default: NoOpEventObserver.
func WithPushObserver(observer EventObserver) PushOption {
	return func(p *PushFanoutService) error {
		if observer == nil {
			return fmt.Errorf("observer cannot be nil")
		}
		p.observer = observer
		return nil
	}
}

// WithPushRetryStrategy sets the per-device retry strategy.
// Default: retry.DefaultStrategy() (3 attempts, 250ms → 2s backoff).
// Use retry.NoRetry() to attempt every device exactly once.
func WithPushRetryStrategy(strategy retry.Strategy) PushOption {
	return func(p *PushFanoutService) error {
		if strategy.MaxAttempts <= 0 {
			return fmt.Errorf("max attempts must be > 0, got %d", strategy.MaxAttempts)
		}
		p.strategy = strategy
		return nil
	}
}

// WithPushConcurrency sets how many device deliveries run in parallel.
// Must be > 0. Default: 8.
func WithPushConcurrency(n int) PushOption {
	return func(p *PushFanoutService) error {
		if n <= 0 {
			return fmt.Errorf("concurrency must be > 0, got %d", n)
		}
		p.concurrency = n
		return nil
	}
}

// GatewayOption is a function that configures a ChatGateway.
type GatewayOption func(*ChatGateway) error

// WithStore sets the message store behind the gateway.
//
// This is a required option for NewChatGateway.
func WithStore(store *MessageStore) GatewayOption {
	return func(g *ChatGateway) error {
		if store == nil {
			return fmt.Errorf("store cannot be nil")
		}
		g.store = store
		return nil
	}
}

// WithHub sets the subscription hub that live messages are broadcast on.
//
// This is a required option for NewChatGateway.
func WithHub(hub *SubscriptionHub) GatewayOption {
	return func(g *ChatGateway) error {
		if hub == nil {
			return fmt.Errorf("hub cannot be nil")
		}
		g.hub = hub
		return nil
	}
}

// WithPushNotifier enables push fan-out for posted messages.
// Without it the gateway only broadcasts to live subscribers.
func WithPushNotifier(notifier PushNotifier) GatewayOption {
	return func(g *ChatGateway) error {
		if notifier == nil {
			return fmt.Errorf("push notifier cannot be nil")
		}
		g.push = notifier
		return nil
	}
}

// WithPushTimeout bounds each background push fan-out. Default: 30s.
func WithPushTimeout(timeout time.Duration) GatewayOption {
	return func(g *ChatGateway) error {
		if timeout <= 0 {
			return fmt.Errorf("push timeout must be > 0, got %v", timeout)
		}
		g.pushTimeout = timeout
		return nil
	}
}

// WithGatewayLogger sets the logger instance for the gateway.
func WithGatewayLogger(logger Logger) GatewayOption {
	return func(g *ChatGateway) error {
		if logger == nil {
			return fmt.Errorf("logger cannot be nil")
		}
		g.logger = logger
		return nil
	}
}

// WithBackfillLimit sets how many recent messages Initialize loads.
// Must be > 0. Default: DefaultRecentLimit.
func WithBackfillLimit(limit int) SessionOption {
	return func(s *ClientSession) error {
		if limit <= 0 {
			return fmt.Errorf("backfill limit must be > 0, got %d", limit)
		}
		s.backfillLimit = limit
		return nil
	}
}

// WithUpdatesBuffer sets the capacity of the session Updates channel.
// Zero makes Updates unbuffered, so notifications are only sent to a reader
// that is already waiting.
func WithUpdatesBuffer(size int) SessionOption {
	return func(s *ClientSession) error {
		if size < 0 {
			return fmt.Errorf("updates buffer must be >= 0, got %d", size)
		}
		s.updatesBuffer = size
		return nil
	}
}

// WithSessionLogger sets the logger instance for the session.
func WithSessionLogger(logger Logger) SessionOption {
	return func(s *ClientSession) error {
		if logger == nil {
			return fmt.Errorf("logger cannot be nil")
		}
		s.logger = logger
		return nil
	}
}
