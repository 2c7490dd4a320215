package livechat

import (
	"context"
	"sort"
	"sync"

	"github.com/coregx/livechat/model"
)

// DefaultUpdatesBuffer is the capacity of ClientSession.Updates.
const DefaultUpdatesBuffer = 64

// SessionState is the lifecycle state of a ClientSession.
type SessionState int

// Session states.
const (
	SessionIdle SessionState = iota
	SessionBackfilling
	SessionLive
	SessionClosed
)

// String returns the state name.
func (s SessionState) String() string {
	switch s {
	case SessionIdle:
		return "idle"
	case SessionBackfilling:
		return "backfilling"
	case SessionLive:
		return "live"
	case SessionClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// ChatBackend is what a ClientSession talks to. ChatGateway implements it
// in-process and client.Client implements it over HTTP and WebSocket.
type ChatBackend interface {
	PostMessage(ctx context.Context, nickname, text string) (model.Message, error)
	ListRecent(ctx context.Context, limit int) ([]model.Message, error)
	OpenLiveFeed(ctx context.Context) (Feed, error)
}

// ClientSession keeps a local, ordered view of the conversation: recent
// history loaded once, followed by live messages as they are posted.
//
// The view holds each message once (by ID) ordered oldest to newest, no
// matter whether it arrived via backfill or the live feed. Sent messages are
// not added locally; they appear when the live feed delivers them.
//
// Lifecycle: Idle → Backfilling → Live → Closed.
//
// Thread safety: Safe for concurrent use.
type ClientSession struct {
	backend       ChatBackend
	backfillLimit int
	updatesBuffer int
	logger        Logger

	mu       sync.RWMutex
	state    SessionState
	messages []model.Message
	seen     map[int64]struct{}
	feed     Feed
	cancel   context.CancelFunc
	loopDone chan struct{}

	updates     chan model.Message
	updatesOnce sync.Once
}

// SessionOption is a function that configures a ClientSession.
type SessionOption func(*ClientSession) error

// NewClientSession creates an idle session on top of backend.
//
// Optional options:
//   - WithBackfillLimit: number of history messages to load (default: 50)
//   - WithUpdatesBuffer: capacity of the Updates channel (default: 64)
//   - WithSessionLogger: logger instance (default: NoopLogger)
func NewClientSession(backend ChatBackend, opts ...SessionOption) (*ClientSession, error) {
	if backend == nil {
		return nil, NewError(ErrCodeConfiguration, "ChatBackend is required")
	}

	s := &ClientSession{
		backend:       backend,
		backfillLimit: DefaultRecentLimit,
		updatesBuffer: DefaultUpdatesBuffer,
		logger:        &NoopLogger{},
		seen:          make(map[int64]struct{}),
	}

	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, NewErrorWithCause(ErrCodeConfiguration, "failed to apply session option", err)
		}
	}
	s.updates = make(chan model.Message, s.updatesBuffer)

	s.logger = WithComponent(s.logger, "session")
	return s, nil
}

// Initialize loads recent history and starts following the live feed.
//
// The live feed is opened before history is loaded so that nothing posted in
// between is missed; duplicates from the overlap are discarded by ID.
// On failure the session ends up Closed and Cleanup remains safe to call.
func (s *ClientSession) Initialize(ctx context.Context) error {
	s.mu.Lock()
	switch s.state {
	case SessionClosed:
		s.mu.Unlock()
		return NewError(ErrCodeClosed, "session is closed")
	case SessionBackfilling, SessionLive:
		s.mu.Unlock()
		return NewError(ErrCodeConfiguration, "session already initialized")
	}
	s.state = SessionBackfilling
	s.mu.Unlock()

	feedCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	feed, err := s.backend.OpenLiveFeed(feedCtx)
	if err != nil {
		cancel()
		s.fail()
		return err
	}

	history, err := s.backend.ListRecent(ctx, s.backfillLimit)
	if err != nil {
		feed.Close()
		cancel()
		s.fail()
		return err
	}

	s.mu.Lock()
	if s.state == SessionClosed {
		// Cleanup ran while we were backfilling.
		s.mu.Unlock()
		feed.Close()
		cancel()
		return NewError(ErrCodeClosed, "session closed during initialization")
	}
	for _, msg := range history {
		s.insertLocked(msg)
	}
	s.feed = feed
	s.cancel = cancel
	s.loopDone = make(chan struct{})
	s.state = SessionLive
	count := len(s.messages)
	s.mu.Unlock()

	go s.receive(feed, s.loopDone)

	s.logger.Infof("Session live: backfilled=%d, feed=%s", count, feed.ID())
	return nil
}

func (s *ClientSession) fail() {
	s.mu.Lock()
	s.state = SessionClosed
	s.mu.Unlock()
}

// receive merges live messages until the feed channel is closed.
func (s *ClientSession) receive(feed Feed, done chan struct{}) {
	defer close(done)

	for msg := range feed.Messages() {
		s.mu.Lock()
		inserted := s.insertLocked(msg)
		s.mu.Unlock()

		if !inserted {
			continue
		}
		select {
		case s.updates <- msg:
		default:
			s.logger.Debugf("Updates reader lagging, skipped notification for message %d", msg.ID)
		}
	}

	s.mu.Lock()
	if s.state != SessionClosed {
		s.logger.Warnf("Live feed ended unexpectedly, session closed")
		s.state = SessionClosed
	}
	s.mu.Unlock()
}

// insertLocked adds msg to the view unless its ID is already present.
// Must be called with s.mu held.
func (s *ClientSession) insertLocked(msg model.Message) bool {
	if _, ok := s.seen[msg.ID]; ok {
		return false
	}
	s.seen[msg.ID] = struct{}{}

	i := sort.Search(len(s.messages), func(i int) bool {
		return msg.Before(s.messages[i])
	})
	s.messages = append(s.messages, model.Message{})
	copy(s.messages[i+1:], s.messages[i:])
	s.messages[i] = msg
	return true
}

// Cleanup stops the live feed and waits for the receive loop to exit.
// It is idempotent and safe to call whether or not Initialize succeeded.
// Updates is closed once Cleanup returns.
func (s *ClientSession) Cleanup() {
	s.mu.Lock()
	s.state = SessionClosed
	feed, cancel, done := s.feed, s.cancel, s.loopDone
	s.feed, s.cancel = nil, nil
	s.mu.Unlock()

	if feed != nil {
		feed.Close()
	}
	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}

	s.updatesOnce.Do(func() {
		close(s.updates)
	})
}

// SendMessage posts a message through the backend. The message is not added
// to the local view here; it arrives through the live feed.
func (s *ClientSession) SendMessage(ctx context.Context, nickname, text string) (model.Message, error) {
	if s.State() == SessionClosed {
		return model.Message{}, NewError(ErrCodeClosed, "session is closed")
	}
	return s.backend.PostMessage(ctx, nickname, text)
}

// Messages returns a snapshot of the local view, oldest first.
func (s *ClientSession) Messages() []model.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.Message, len(s.messages))
	copy(out, s.messages)
	return out
}

// State returns the current lifecycle state.
func (s *ClientSession) State() SessionState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Updates delivers each live message newly added to the view. Sends never
// block: if the reader lags, notifications are skipped (Messages stays complete).
func (s *ClientSession) Updates() <-chan model.Message {
	return s.updates
}
