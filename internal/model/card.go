package model

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"bankcards/internal/cardnumber"
	"bankcards/internal/errors"
)

// CardStatus is the stored lifecycle state of a card.
type CardStatus string

const (
	CardStatusActive  CardStatus = "ACTIVE"
	CardStatusBlocked CardStatus = "BLOCKED"
)

// StatusExpired is the display status of a card past its expiry date. It is never stored.
const StatusExpired = "EXPIRED"

// Valid reports whether s is a storable status.
func (s CardStatus) Valid() bool {
	return s == CardStatusActive || s == CardStatusBlocked
}

// Card represents a payment card owned by a user.
type Card struct {
	ID                int64           `json:"id" gorm:"primaryKey;autoIncrement"`
	NumberCiphertext  string          `json:"-" gorm:"size:255;not null"`
	NumberFingerprint string          `json:"-" gorm:"size:64;not null;uniqueIndex"`
	ExpiryDate        time.Time       `json:"expiry_date" gorm:"type:date;not null;index"`
	Status            CardStatus      `json:"status" gorm:"type:varchar(16);not null;default:'ACTIVE';index"`
	Balance           decimal.Decimal `json:"balance" gorm:"type:decimal(19,2);not null;default:0"`
	OwnerID           int64           `json:"owner_id" gorm:"not null;index"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
	DeletedAt         gorm.DeletedAt  `json:"-" gorm:"index"`
}

// Number returns the protected card number.
func (c *Card) Number() cardnumber.Protected {
	return cardnumber.NewProtected(c.NumberCiphertext)
}

// Block moves an active card to BLOCKED.
func (c *Card) Block() error {
	if c.Status != CardStatusActive {
		return errors.ErrInvalidCardState
	}
	c.Status = CardStatusBlocked
	return nil
}

// Activate moves a blocked card back to ACTIVE.
func (c *Card) Activate() error {
	if c.Status != CardStatusBlocked {
		return errors.ErrInvalidCardState
	}
	c.Status = CardStatusActive
	return nil
}

// IsExpired reports whether the expiry date is strictly before the date of now.
// A card is still usable on its expiry date.
func (c *Card) IsExpired(now time.Time) bool {
	return Date(c.ExpiryDate).Before(Date(now))
}

// DisplayStatus returns the status shown to clients, with EXPIRED taking precedence.
func (c *Card) DisplayStatus(now time.Time) string {
	if c.IsExpired(now) {
		return StatusExpired
	}
	return string(c.Status)
}

// Date truncates t to midnight UTC of its calendar date.
func Date(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
