package gormstore

import (
	"context"

	"github.com/coregx/livechat"
	"github.com/coregx/livechat/model"
	"github.com/samber/lo"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// DeviceTokenRepository implements livechat.DeviceTokenRepository using GORM.
type DeviceTokenRepository struct {
	db    *gorm.DB
	table string
}

// Register stores a device token. A token that is already registered is
// left untouched and the stored record is returned.
func (r *DeviceTokenRepository) Register(ctx context.Context, t model.DeviceToken) (model.DeviceToken, error) {
	rec := deviceTokenRecord{Token: t.Token, Platform: t.Platform, CreatedAt: t.CreatedAt}

	// INSERT ... ON CONFLICT (token) DO NOTHING
	err := r.db.WithContext(ctx).Table(r.table).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "token"}},
		DoNothing: true,
	}).Create(&rec).Error
	if err != nil {
		return t, livechat.NewErrorWithCause(livechat.ErrCodeDatabase, "failed to register device token", err)
	}
	if rec.ID != 0 {
		return toDeviceToken(rec), nil
	}

	var existing deviceTokenRecord
	if err := r.db.WithContext(ctx).Table(r.table).Where("token = ?", t.Token).First(&existing).Error; err != nil {
		return t, livechat.NewErrorWithCause(livechat.ErrCodeDatabase, "failed to load device token", err)
	}
	return toDeviceToken(existing), nil
}

// FindAll returns every registered device token, oldest registration first.
func (r *DeviceTokenRepository) FindAll(ctx context.Context) ([]model.DeviceToken, error) {
	var recs []deviceTokenRecord
	if err := r.db.WithContext(ctx).Table(r.table).Order("id ASC").Find(&recs).Error; err != nil {
		return nil, livechat.NewErrorWithCause(livechat.ErrCodeDatabase, "failed to find device tokens", err)
	}
	return lo.Map(recs, func(rec deviceTokenRecord, _ int) model.DeviceToken {
		return toDeviceToken(rec)
	}), nil
}

func toDeviceToken(rec deviceTokenRecord) model.DeviceToken {
	return model.DeviceToken{
		ID:        rec.ID,
		Token:     rec.Token,
		Platform:  rec.Platform,
		CreatedAt: rec.CreatedAt.UTC(),
	}
}

var (
	_ livechat.DeviceTokenRepository = (*DeviceTokenRepository)(nil)
	_ livechat.MessageRepository     = (*MessageRepository)(nil)
)
