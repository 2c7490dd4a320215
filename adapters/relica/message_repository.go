package relica

import (
	"context"
	"database/sql"
	"errors"

	"github.com/coregx/livechat"
	"github.com/coregx/livechat/model"
	"github.com/coregx/relica"
	"github.com/samber/lo"
)

// MessageRepository implements livechat.MessageRepository using Relica.
type MessageRepository struct {
	db          *relica.DB
	tablePrefix string
}

// NewMessageRepository creates a new MessageRepository with default table prefix.
func NewMessageRepository(sqlDB *sql.DB, driverName string) *MessageRepository {
	return NewMessageRepositoryWithPrefix(sqlDB, driverName, DefaultTablePrefix)
}

// NewMessageRepositoryWithPrefix creates a new MessageRepository with custom table prefix.
func NewMessageRepositoryWithPrefix(sqlDB *sql.DB, driverName, prefix string) *MessageRepository {
	return &MessageRepository{db: relica.WrapDB(sqlDB, driverName), tablePrefix: prefix}
}

func (r *MessageRepository) tableName() string {
	return r.tablePrefix + "message"
}

// Insert stores a new message. The ID is assigned by the database.
func (r *MessageRepository) Insert(ctx context.Context, m model.Message) (model.Message, error) {
	m.ID = 0
	// m.ID is auto-populated by Model().Insert()
	err := r.db.WithContext(ctx).Model(&m).Table(r.tableName()).Insert()
	if err != nil {
		return m, livechat.NewErrorWithCause(livechat.ErrCodeDatabase, "failed to insert message", err)
	}
	m.CreatedUTC = m.CreatedUTC.UTC()
	return m, nil
}

// FindRecent returns up to limit of the newest messages, oldest first.
func (r *MessageRepository) FindRecent(ctx context.Context, limit int) ([]model.Message, error) {
	var messages []model.Message
	err := r.db.WithContext(ctx).Select("*").
		From(r.tableName()).
		OrderBy("id DESC").
		Limit(int64(limit)).
		All(&messages)
	if err != nil {
		return nil, livechat.NewErrorWithCause(livechat.ErrCodeDatabase, "failed to find recent messages", err)
	}

	// Newest-first from the query; callers expect oldest-first.
	messages = lo.Reverse(messages)
	for i := range messages {
		messages[i].CreatedUTC = messages[i].CreatedUTC.UTC()
	}
	return messages, nil
}

// FindLatest returns the newest message.
func (r *MessageRepository) FindLatest(ctx context.Context) (model.Message, error) {
	var msg model.Message
	err := r.db.WithContext(ctx).Select("*").
		From(r.tableName()).
		OrderBy("id DESC").
		Limit(1).
		One(&msg)
	if errors.Is(err, sql.ErrNoRows) {
		return msg, livechat.ErrNoData
	}
	if err != nil {
		return msg, livechat.NewErrorWithCause(livechat.ErrCodeDatabase, "failed to find latest message", err)
	}
	msg.CreatedUTC = msg.CreatedUTC.UTC()
	return msg, nil
}
