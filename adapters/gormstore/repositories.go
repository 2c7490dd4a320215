package gormstore

import (
	"fmt"
	"time"

	"github.com/coregx/livechat"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// DefaultTablePrefix matches the table names created by livechat.ApplyMigrations.
const DefaultTablePrefix = "livechat_"

// Repositories holds all repository implementations.
type Repositories struct {
	Message     *MessageRepository
	DeviceToken *DeviceTokenRepository
}

// messageRecord is the GORM row shape of a chat message.
type messageRecord struct {
	ID         int64     `gorm:"column:id;primaryKey;autoIncrement"`
	Nickname   string    `gorm:"column:nickname;not null"`
	Text       string    `gorm:"column:text;not null"`
	CreatedUTC time.Time `gorm:"column:created_utc;not null"`
}

// deviceTokenRecord is the GORM row shape of a device registration.
type deviceTokenRecord struct {
	ID        int64     `gorm:"column:id;primaryKey;autoIncrement"`
	Token     string    `gorm:"column:token;not null;uniqueIndex"`
	Platform  string    `gorm:"column:platform;not null"`
	CreatedAt time.Time `gorm:"column:created_at;not null"`
}

// OpenPostgres opens a GORM connection to PostgreSQL with SQL logging disabled.
func OpenPostgres(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, livechat.NewErrorWithCause(livechat.ErrCodeDatabase, "failed to connect to postgres", err)
	}
	return db, nil
}

// NewRepositories migrates the schema and creates all repositories with the
// default table prefix.
func NewRepositories(db *gorm.DB) (*Repositories, error) {
	return NewRepositoriesWithPrefix(db, DefaultTablePrefix)
}

// NewRepositoriesWithPrefix migrates the schema and creates all repositories
// with a custom table prefix.
func NewRepositoriesWithPrefix(db *gorm.DB, prefix string) (*Repositories, error) {
	messages := &MessageRepository{db: db, table: prefix + "message"}
	devices := &DeviceTokenRepository{db: db, table: prefix + "device_token"}

	if err := db.Table(messages.table).AutoMigrate(&messageRecord{}); err != nil {
		return nil, livechat.NewErrorWithCause(livechat.ErrCodeDatabase,
			fmt.Sprintf("failed to migrate %s", messages.table), err)
	}
	if err := db.Table(devices.table).AutoMigrate(&deviceTokenRecord{}); err != nil {
		return nil, livechat.NewErrorWithCause(livechat.ErrCodeDatabase,
			fmt.Sprintf("failed to migrate %s", devices.table), err)
	}

	return &Repositories{Message: messages, DeviceToken: devices}, nil
}
