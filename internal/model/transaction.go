package model

import (
	stderrors "errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// TransactionStatus represents the outcome recorded for a transfer.
type TransactionStatus string

const (
	TransactionStatusSuccess TransactionStatus = "SUCCESS"
	// TransactionStatusFailed is reserved for reporting; the transfer engine never writes it.
	TransactionStatusFailed TransactionStatus = "FAILED"
)

// ErrImmutableTransaction is returned by the ledger hooks on update or delete.
var ErrImmutableTransaction = stderrors.New("ledger transactions are immutable")

// Transaction is an append-only ledger entry for a completed card-to-card transfer.
type Transaction struct {
	ID         uuid.UUID         `json:"id" gorm:"type:char(36);primaryKey"`
	FromCardID int64             `json:"from_card_id" gorm:"not null;index"`
	ToCardID   int64             `json:"to_card_id" gorm:"not null;index"`
	Amount     decimal.Decimal   `json:"amount" gorm:"type:decimal(19,2);not null"`
	Timestamp  time.Time         `json:"timestamp" gorm:"not null;index"`
	Status     TransactionStatus `json:"status" gorm:"type:varchar(16);not null;index"`
}

// BeforeCreate sets UUID and timestamp before creating the record.
func (t *Transaction) BeforeCreate(tx *gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	if t.Timestamp.IsZero() {
		t.Timestamp = time.Now().UTC()
	}
	return nil
}

// BeforeUpdate rejects any modification of a ledger row.
func (t *Transaction) BeforeUpdate(tx *gorm.DB) error {
	return ErrImmutableTransaction
}

// BeforeDelete rejects removal of a ledger row.
func (t *Transaction) BeforeDelete(tx *gorm.DB) error {
	return ErrImmutableTransaction
}
