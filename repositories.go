package livechat

import (
	"context"

	"github.com/coregx/livechat/model"
)

// MessageRepository defines the persistence interface for chat messages.
// Messages are append-only: the core never updates or deletes them.
//
// Implementations must be safe for concurrent use. Insert must be durable
// (committed) before it returns.
type MessageRepository interface {
	// Insert stores a new message and returns it with ID populated.
	// IDs must be strictly increasing in insertion order.
	Insert(ctx context.Context, m model.Message) (model.Message, error)

	// FindRecent returns up to limit of the newest messages,
	// ordered oldest-to-newest. Returns an empty slice if there are none.
	FindRecent(ctx context.Context, limit int) ([]model.Message, error)

	// FindLatest returns the newest message.
	// Returns ErrNoData if the store is empty.
	FindLatest(ctx context.Context) (model.Message, error)
}

// DeviceTokenRepository defines the persistence interface for push device tokens.
// The core only reads tokens; Register exists for the registration surface.
type DeviceTokenRepository interface {
	// Register stores a device token. Registering an existing token
	// returns the stored record without error.
	Register(ctx context.Context, t model.DeviceToken) (model.DeviceToken, error)

	// FindAll returns every registered device token.
	// Returns an empty slice if none are registered.
	FindAll(ctx context.Context) ([]model.DeviceToken, error)
}
