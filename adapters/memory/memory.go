// Package memory provides in-memory implementations of the livechat
// repositories. Data lives for the lifetime of the process only, which makes
// it suitable for tests, demos and single-node deployments without durability
// requirements.
package memory

import (
	"context"
	"sync"

	"github.com/coregx/livechat"
	"github.com/coregx/livechat/model"
)

// Repositories holds all repository implementations.
type Repositories struct {
	Message     *MessageRepository
	DeviceToken *DeviceTokenRepository
}

// NewRepositories creates empty in-memory repositories.
func NewRepositories() *Repositories {
	return &Repositories{
		Message:     NewMessageRepository(),
		DeviceToken: NewDeviceTokenRepository(),
	}
}

// MessageRepository implements livechat.MessageRepository in memory.
type MessageRepository struct {
	mu       sync.RWMutex
	messages []model.Message
	nextID   int64
}

// NewMessageRepository creates an empty MessageRepository.
func NewMessageRepository() *MessageRepository {
	return &MessageRepository{}
}

// Insert stores a new message and assigns the next ID.
func (r *MessageRepository) Insert(ctx context.Context, m model.Message) (model.Message, error) {
	if err := ctx.Err(); err != nil {
		return m, livechat.NewErrorWithCause(livechat.ErrCodeDatabase, "failed to insert message", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextID++
	m.ID = r.nextID
	r.messages = append(r.messages, m)
	return m, nil
}

// FindRecent returns up to limit of the newest messages, oldest first.
func (r *MessageRepository) FindRecent(_ context.Context, limit int) ([]model.Message, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	start := len(r.messages) - limit
	if start < 0 {
		start = 0
	}
	out := make([]model.Message, len(r.messages)-start)
	copy(out, r.messages[start:])
	return out, nil
}

// FindLatest returns the newest message.
func (r *MessageRepository) FindLatest(_ context.Context) (model.Message, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if len(r.messages) == 0 {
		return model.Message{}, livechat.ErrNoData
	}
	return r.messages[len(r.messages)-1], nil
}

// Len returns the number of stored messages.
func (r *MessageRepository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.messages)
}

// DeviceTokenRepository implements livechat.DeviceTokenRepository in memory.
type DeviceTokenRepository struct {
	mu      sync.RWMutex
	tokens  []model.DeviceToken
	byToken map[string]int
	nextID  int64
}

// NewDeviceTokenRepository creates an empty DeviceTokenRepository.
func NewDeviceTokenRepository() *DeviceTokenRepository {
	return &DeviceTokenRepository{byToken: make(map[string]int)}
}

// Register stores a device token, returning the existing record for a known token.
func (r *DeviceTokenRepository) Register(_ context.Context, t model.DeviceToken) (model.DeviceToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if i, ok := r.byToken[t.Token]; ok {
		return r.tokens[i], nil
	}
	r.nextID++
	t.ID = r.nextID
	r.byToken[t.Token] = len(r.tokens)
	r.tokens = append(r.tokens, t)
	return t, nil
}

// FindAll returns every registered device token, oldest registration first.
func (r *DeviceTokenRepository) FindAll(_ context.Context) ([]model.DeviceToken, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]model.DeviceToken, len(r.tokens))
	copy(out, r.tokens)
	return out, nil
}

var (
	_ livechat.MessageRepository     = (*MessageRepository)(nil)
	_ livechat.DeviceTokenRepository = (*DeviceTokenRepository)(nil)
)
