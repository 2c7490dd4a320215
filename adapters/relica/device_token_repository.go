package relica

import (
	"context"
	"database/sql"
	"errors"

	"github.com/coregx/livechat"
	"github.com/coregx/livechat/model"
	"github.com/coregx/relica"
)

// DeviceTokenRepository implements livechat.DeviceTokenRepository using Relica.
type DeviceTokenRepository struct {
	db          *relica.DB
	tablePrefix string
}

// NewDeviceTokenRepository creates a new DeviceTokenRepository with default table prefix.
func NewDeviceTokenRepository(sqlDB *sql.DB, driverName string) *DeviceTokenRepository {
	return NewDeviceTokenRepositoryWithPrefix(sqlDB, driverName, DefaultTablePrefix)
}

// NewDeviceTokenRepositoryWithPrefix creates a new DeviceTokenRepository with custom table prefix.
func NewDeviceTokenRepositoryWithPrefix(sqlDB *sql.DB, driverName, prefix string) *DeviceTokenRepository {
	return &DeviceTokenRepository{db: relica.WrapDB(sqlDB, driverName), tablePrefix: prefix}
}

func (r *DeviceTokenRepository) tableName() string {
	return r.tablePrefix + "device_token"
}

// Register stores a device token, returning the existing record if the
// token is already registered.
func (r *DeviceTokenRepository) Register(ctx context.Context, t model.DeviceToken) (model.DeviceToken, error) {
	existing, err := r.findByToken(ctx, t.Token)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, livechat.ErrNoData) {
		return t, err
	}

	t.ID = 0
	if err := r.db.WithContext(ctx).Model(&t).Table(r.tableName()).Insert(); err != nil {
		// Lost a race against a concurrent registration of the same token.
		if existing, findErr := r.findByToken(ctx, t.Token); findErr == nil {
			return existing, nil
		}
		return t, livechat.NewErrorWithCause(livechat.ErrCodeDatabase, "failed to insert device token", err)
	}
	return t, nil
}

func (r *DeviceTokenRepository) findByToken(ctx context.Context, token string) (model.DeviceToken, error) {
	var t model.DeviceToken
	err := r.db.WithContext(ctx).Select("*").From(r.tableName()).Where("token = ?", token).One(&t)
	if errors.Is(err, sql.ErrNoRows) {
		return t, livechat.ErrNoData
	}
	if err != nil {
		return t, livechat.NewErrorWithCause(livechat.ErrCodeDatabase, "failed to find device token", err)
	}
	return t, nil
}

// FindAll returns every registered device token, oldest registration first.
func (r *DeviceTokenRepository) FindAll(ctx context.Context) ([]model.DeviceToken, error) {
	var tokens []model.DeviceToken
	err := r.db.WithContext(ctx).Select("*").
		From(r.tableName()).
		OrderBy("id ASC").
		All(&tokens)
	if err != nil {
		return nil, livechat.NewErrorWithCause(livechat.ErrCodeDatabase, "failed to find device tokens", err)
	}
	if tokens == nil {
		tokens = []model.DeviceToken{}
	}
	return tokens, nil
}
