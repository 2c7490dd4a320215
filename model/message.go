package model

import (
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Message is a short chat message posted by a nickname.
// Messages are immutable once stored: ID and CreatedUTC are assigned by the
// store at write time and the record is never updated or deleted by the core.
//
// Ordering: ID is strictly increasing in append order and CreatedUTC is
// non-decreasing with ID, so either can be used as the ordering key.
type Message struct {
	ID         int64     `json:"id" db:"id"`                  // Unique, increasing message ID
	Nickname   string    `json:"nickname" db:"nickname"`      // Display name supplied by the sender
	Text       string    `json:"text" db:"text"`              // Message body
	CreatedUTC time.Time `json:"createdUtc" db:"created_utc"` // Store-assigned creation time (UTC)
}

// TableName returns the database table name for Message.
func (m Message) TableName() string {
	return tablePrefix + "message"
}

// NewMessage creates an unsaved message with surrounding whitespace removed.
// ID and CreatedUTC are left zero for the store to assign.
func NewMessage(nickname, text string) Message {
	return Message{
		Nickname: strings.TrimSpace(nickname),
		Text:     strings.TrimSpace(text),
	}
}

// Limits bounds the content of a message.
type Limits struct {
	MaxNicknameLength int // Maximum nickname length in runes
	MaxTextLength     int // Maximum text length in runes
}

// DefaultLimits returns the content limits used when none are configured.
func DefaultLimits() Limits {
	return Limits{
		MaxNicknameLength: DefaultMaxNicknameLength,
		MaxTextLength:     DefaultMaxTextLength,
	}
}

// ValidateContent checks the nickname and text against the limits.
// Both fields are required; length is measured in runes.
func (m Message) ValidateContent(limits Limits) error {
	return validation.ValidateStruct(&m,
		validation.Field(&m.Nickname, validation.Required, validation.RuneLength(1, limits.MaxNicknameLength)),
		validation.Field(&m.Text, validation.Required, validation.RuneLength(1, limits.MaxTextLength)),
	)
}

// Before reports whether m sorts before other in delivery order.
func (m Message) Before(other Message) bool {
	if m.CreatedUTC.Equal(other.CreatedUTC) {
		return m.ID < other.ID
	}
	return m.CreatedUTC.Before(other.CreatedUTC)
}
