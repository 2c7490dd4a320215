package livechat

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/coregx/livechat/model"
	"github.com/samber/lo"
)

// Recent-history limits.
const (
	// DefaultRecentLimit is the backfill size used when a caller does not ask
	// for a specific number of messages.
	DefaultRecentLimit = 50

	// MaxRecentLimit caps ListRecent; larger requests are clamped.
	MaxRecentLimit = 500
)

// MessageStore is the durable, append-only storage of chat messages and the
// read side of device-token storage.
//
// Append is the single synchronization point of the core: creation
// timestamps are assigned under a mutex so that concurrent appends never
// produce a CreatedUTC that goes backwards relative to ID order.
//
// Thread safety: Safe for concurrent use.
type MessageStore struct {
	messages MessageRepository
	devices  DeviceTokenRepository
	logger   Logger
	limits   model.Limits
	now      func() time.Time

	mu     sync.Mutex
	last   time.Time
	seeded bool
}

// NewMessageStore creates a new MessageStore with the provided options.
//
// Required options:
//   - WithMessageRepository: message persistence
//   - WithDeviceTokenRepository: device-token persistence
//
// Optional options:
//   - WithStoreLogger: logger instance (default: NoopLogger)
//   - WithLimits: nickname/text length limits (default: model.DefaultLimits())
//   - WithClock: time source (default: time.Now)
//
// Example:
//
//	store, err := livechat.NewMessageStore(
//	    livechat.WithMessageRepository(repos.Message),
//	    livechat.WithDeviceTokenRepository(repos.DeviceToken),
//	    livechat.WithStoreLogger(logger),
//	)
func NewMessageStore(opts ...StoreOption) (*MessageStore, error) {
	s := &MessageStore{
		logger: &NoopLogger{},
		limits: model.DefaultLimits(),
		now:    time.Now,
	}

	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, NewErrorWithCause(ErrCodeConfiguration, "failed to apply store option", err)
		}
	}

	if s.messages == nil {
		return nil, NewError(ErrCodeConfiguration, "MessageRepository is required (use WithMessageRepository)")
	}
	if s.devices == nil {
		return nil, NewError(ErrCodeConfiguration, "DeviceTokenRepository is required (use WithDeviceTokenRepository)")
	}

	s.logger = WithComponent(s.logger, "store")
	return s, nil
}

// Append validates and durably stores a new message.
//
// The process:
//  1. Trim and validate nickname and text against the content limits
//  2. Assign CreatedUTC (never earlier than the last assigned timestamp)
//  3. Insert through the repository, which assigns the ID
//
// Returns a ValidationError for empty or oversized input and a
// PersistenceError if the write fails. Nothing is stored on error.
func (s *MessageStore) Append(ctx context.Context, nickname, text string) (model.Message, error) {
	msg := model.NewMessage(nickname, text)
	if err := msg.ValidateContent(s.limits); err != nil {
		return model.Message{}, NewErrorWithCause(ErrCodeValidation, "invalid message", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.seedClock(ctx); err != nil {
		return model.Message{}, err
	}

	msg.CreatedUTC = s.nextTimestamp()
	saved, err := s.messages.Insert(ctx, msg)
	if err != nil {
		return model.Message{}, NewErrorWithCause(ErrCodeDatabase, "failed to store message", err)
	}
	s.last = saved.CreatedUTC

	s.logger.Debugf("Message stored: id=%d, nickname=%s", saved.ID, saved.Nickname)
	return saved, nil
}

// seedClock loads the newest persisted timestamp once so that ordering
// survives restarts. Must be called with s.mu held.
func (s *MessageStore) seedClock(ctx context.Context) error {
	if s.seeded {
		return nil
	}

	latest, err := s.messages.FindLatest(ctx)
	if err != nil && !IsNoData(err) {
		return NewErrorWithCause(ErrCodeDatabase, "failed to load latest message", err)
	}
	if err == nil {
		s.last = latest.CreatedUTC.UTC()
	}
	s.seeded = true
	return nil
}

// nextTimestamp returns the creation time for the next message.
// Microsecond precision matches what SQL backends keep. Must be called with s.mu held.
func (s *MessageStore) nextTimestamp() time.Time {
	now := s.now().UTC().Truncate(time.Microsecond)
	if now.Before(s.last) {
		return s.last
	}
	return now
}

// ListRecent returns the newest limit messages ordered oldest-to-newest, so
// a client can append live updates directly after them.
//
// Returns a ValidationError if limit <= 0. Limits above MaxRecentLimit are
// clamped. An empty store yields an empty slice.
func (s *MessageStore) ListRecent(ctx context.Context, limit int) ([]model.Message, error) {
	if limit <= 0 {
		return nil, NewError(ErrCodeValidation, fmt.Sprintf("limit must be > 0, got %d", limit))
	}
	if limit > MaxRecentLimit {
		limit = MaxRecentLimit
	}

	messages, err := s.messages.FindRecent(ctx, limit)
	if err != nil {
		if IsNoData(err) {
			return []model.Message{}, nil
		}
		return nil, NewErrorWithCause(ErrCodeDatabase, "failed to load recent messages", err)
	}
	if messages == nil {
		messages = []model.Message{}
	}
	return messages, nil
}

// ListDeviceTokens returns the set of currently registered push tokens.
// The result has no duplicates and no ordering guarantee.
func (s *MessageStore) ListDeviceTokens(ctx context.Context) ([]string, error) {
	devices, err := s.devices.FindAll(ctx)
	if err != nil {
		if IsNoData(err) {
			return []string{}, nil
		}
		return nil, NewErrorWithCause(ErrCodeDatabase, "failed to load device tokens", err)
	}

	tokens := lo.Uniq(lo.Compact(lo.Map(devices, func(d model.DeviceToken, _ int) string {
		return d.Token
	})))
	return tokens, nil
}

// RegisterDevice stores a push token for the registration surface.
// Registering a known token is not an error.
func (s *MessageStore) RegisterDevice(ctx context.Context, token, platform string) (model.DeviceToken, error) {
	device := model.NewDeviceToken(token, platform)
	if err := device.Validate(); err != nil {
		return model.DeviceToken{}, NewErrorWithCause(ErrCodeValidation, "invalid device token", err)
	}

	saved, err := s.devices.Register(ctx, device)
	if err != nil {
		return model.DeviceToken{}, NewErrorWithCause(ErrCodeDatabase, "failed to register device", err)
	}

	s.logger.Infof("Device registered: id=%d, platform=%s", saved.ID, saved.Platform)
	return saved, nil
}

// Limits returns the content limits enforced by Append.
func (s *MessageStore) Limits() model.Limits {
	return s.limits
}
