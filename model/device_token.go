package model

import (
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Platform constants for registered devices.
const (
	PlatformIOS     = "ios"
	PlatformAndroid = "android"
	PlatformWeb     = "web"
)

// maxTokenLength matches the width of the token column.
const maxTokenLength = 4096

// DeviceToken is a push-capable device registration.
// Tokens are opaque to the core; they are created by the registration
// surface and only read by the push fan-out.
type DeviceToken struct {
	ID        int64     `json:"id" db:"id"`                 // Unique registration ID
	Token     string    `json:"-" db:"token"`               // Provider token, never exposed in JSON
	Platform  string    `json:"platform" db:"platform"`     // Optional platform hint
	CreatedAt time.Time `json:"createdAt" db:"created_at"` // Registration time
}

// TableName returns the database table name for DeviceToken.
func (t DeviceToken) TableName() string {
	return tablePrefix + "device_token"
}

// NewDeviceToken creates a new unsaved device registration.
func NewDeviceToken(token, platform string) DeviceToken {
	return DeviceToken{
		Token:     strings.TrimSpace(token),
		Platform:  strings.ToLower(strings.TrimSpace(platform)),
		CreatedAt: time.Now().UTC(),
	}
}

// Validate checks the token is present and the platform, if any, is known.
func (t DeviceToken) Validate() error {
	return validation.ValidateStruct(&t,
		validation.Field(&t.Token, validation.Required, validation.Length(1, maxTokenLength)),
		validation.Field(&t.Platform, validation.In(PlatformIOS, PlatformAndroid, PlatformWeb)),
	)
}
