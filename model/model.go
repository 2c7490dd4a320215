// Package model contains the domain models of the livechat core: chat
// messages and push device tokens.
package model

// tablePrefix is the default table prefix used by TableName methods.
// Repository adapters accept a custom prefix and do not rely on it.
const tablePrefix = "livechat_"

// Content limits applied when a store is created without explicit limits.
const (
	DefaultMaxNicknameLength = 32
	DefaultMaxTextLength     = 500
)
