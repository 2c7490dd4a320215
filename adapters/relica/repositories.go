package relica

import (
	"database/sql"

	"github.com/coregx/livechat"
)

// DefaultTablePrefix matches the table names created by livechat.ApplyMigrations.
const DefaultTablePrefix = "livechat_"

// Repositories bundles the relica-backed storage for a MessageStore.
type Repositories struct {
	Message     livechat.MessageRepository
	DeviceToken livechat.DeviceTokenRepository
}

// NewRepositories wraps db for the livechat_ tables created by
// livechat.ApplyMigrations. driverName is the database/sql driver the
// connection was opened with (one of livechat.SupportedDrivers).
func NewRepositories(db *sql.DB, driverName string) *Repositories {
	return NewRepositoriesWithPrefix(db, driverName, DefaultTablePrefix)
}

// NewRepositoriesWithPrefix is NewRepositories for tables named <prefix>message
// and <prefix>device_token.
func NewRepositoriesWithPrefix(db *sql.DB, driverName, prefix string) *Repositories {
	return &Repositories{
		Message:     NewMessageRepositoryWithPrefix(db, driverName, prefix),
		DeviceToken: NewDeviceTokenRepositoryWithPrefix(db, driverName, prefix),
	}
}
