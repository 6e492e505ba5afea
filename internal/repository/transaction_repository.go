package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"bankcards/internal/errors"
	"bankcards/internal/model"
)

// TransactionRepository is the append-only transfer ledger.
type TransactionRepository interface {
	Append(ctx context.Context, txn *model.Transaction) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Transaction, error)
}

type transactionRepository struct {
	db *gorm.DB
}

// NewTransactionRepository creates a new ledger repository.
func NewTransactionRepository(db *gorm.DB) TransactionRepository {
	return &transactionRepository{db: db}
}

// Append inserts a ledger row.
func (r *transactionRepository) Append(ctx context.Context, txn *model.Transaction) error {
	return normalize(r.db.WithContext(ctx).Create(txn).Error, nil)
}

// FindByID finds a ledger row by ID.
func (r *transactionRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.Transaction, error) {
	var txn model.Transaction
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&txn).Error; err != nil {
		return nil, normalize(err, errors.ErrTransactionNotFound)
	}
	return &txn, nil
}
