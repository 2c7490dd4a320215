package gormstore

import (
	"context"
	"errors"

	"github.com/coregx/livechat"
	"github.com/coregx/livechat/model"
	"github.com/samber/lo"
	"gorm.io/gorm"
)

// MessageRepository implements livechat.MessageRepository using GORM.
type MessageRepository struct {
	db    *gorm.DB
	table string
}

// Insert stores a new message. The ID is assigned by the database.
func (r *MessageRepository) Insert(ctx context.Context, m model.Message) (model.Message, error) {
	rec := messageRecord{Nickname: m.Nickname, Text: m.Text, CreatedUTC: m.CreatedUTC}
	if err := r.db.WithContext(ctx).Table(r.table).Create(&rec).Error; err != nil {
		return m, livechat.NewErrorWithCause(livechat.ErrCodeDatabase, "failed to insert message", err)
	}
	return toMessage(rec), nil
}

// FindRecent returns up to limit of the newest messages, oldest first.
func (r *MessageRepository) FindRecent(ctx context.Context, limit int) ([]model.Message, error) {
	var recs []messageRecord
	err := r.db.WithContext(ctx).Table(r.table).Order("id DESC").Limit(limit).Find(&recs).Error
	if err != nil {
		return nil, livechat.NewErrorWithCause(livechat.ErrCodeDatabase, "failed to find recent messages", err)
	}

	messages := lo.Map(recs, func(rec messageRecord, _ int) model.Message {
		return toMessage(rec)
	})
	return lo.Reverse(messages), nil
}

// FindLatest returns the newest message.
func (r *MessageRepository) FindLatest(ctx context.Context) (model.Message, error) {
	var rec messageRecord
	err := r.db.WithContext(ctx).Table(r.table).Order("id DESC").First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.Message{}, livechat.ErrNoData
	}
	if err != nil {
		return model.Message{}, livechat.NewErrorWithCause(livechat.ErrCodeDatabase, "failed to find latest message", err)
	}
	return toMessage(rec), nil
}

func toMessage(rec messageRecord) model.Message {
	return model.Message{
		ID:         rec.ID,
		Nickname:   rec.Nickname,
		Text:       rec.Text,
		CreatedUTC: rec.CreatedUTC.UTC(),
	}
}
