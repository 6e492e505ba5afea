package service

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"bankcards/internal/cache"
	"bankcards/internal/errors"
	"bankcards/internal/model"
	"bankcards/internal/repository"
)

// MaxTransferAmount is the largest amount a single transfer may move.
var MaxTransferAmount = decimal.RequireFromString("1000000.00")

// Clock returns the current time. Expiry checks use its calendar date.
type Clock func() time.Time

// TransferService handles card-to-card transfer operations.
type TransferService interface {
	TransferBetweenCards(ctx context.Context, fromCardID, toCardID, requesterID int64, amount decimal.Decimal) (*model.Transaction, error)
}

type transferService struct {
	store repository.Store
	cache *cache.Client
	log   logrus.FieldLogger
	now   Clock
}

// NewTransferService creates a new transfer service. A nil clock uses time.Now.
func NewTransferService(store repository.Store, cache *cache.Client, log logrus.FieldLogger, clock Clock) TransferService {
	if clock == nil {
		clock = time.Now
	}
	return &transferService{
		store: store,
		cache: cache,
		log:   log,
		now:   clock,
	}
}

// TransferBetweenCards moves amount from one of the requester's cards to another.
// Both balance writes and the ledger row commit together or not at all.
func (s *transferService) TransferBetweenCards(ctx context.Context, fromCardID, toCardID, requesterID int64, amount decimal.Decimal) (*model.Transaction, error) {
	log := s.log.WithFields(logrus.Fields{
		"from_card_id": fromCardID,
		"to_card_id":   toCardID,
		"requester_id": requesterID,
		"amount":       amount.String(),
	})

	txn, err := s.transfer(ctx, fromCardID, toCardID, requesterID, amount)
	if err != nil {
		log.WithError(err).WithField("code", errors.Code(err)).Warn("transfer rejected")
		return nil, err
	}

	_ = s.cache.Delete(ctx, cardCacheKey(fromCardID), cardCacheKey(toCardID))

	log.WithField("transaction_id", txn.ID.String()).Info("transfer completed")
	return txn, nil
}

func (s *transferService) transfer(ctx context.Context, fromCardID, toCardID, requesterID int64, amount decimal.Decimal) (*model.Transaction, error) {
	if !validAmount(amount) || !amount.IsPositive() {
		return nil, errors.ErrInvalidAmount
	}

	// Same-card transfers never reach the store.
	if fromCardID == toCardID {
		return nil, errors.ErrSameCardTransfer
	}

	var txn *model.Transaction
	err := s.store.WithTransaction(ctx, func(ctx context.Context, tx repository.Store) error {
		// Lock in ascending id order regardless of direction.
		firstID, secondID := fromCardID, toCardID
		if secondID < firstID {
			firstID, secondID = secondID, firstID
		}

		first, err := tx.Cards().FindByIDForUpdate(ctx, firstID)
		if err != nil {
			return err
		}
		second, err := tx.Cards().FindByIDForUpdate(ctx, secondID)
		if err != nil {
			return err
		}

		from, to := first, second
		if from.ID != fromCardID {
			from, to = second, first
		}

		if from.OwnerID != requesterID || to.OwnerID != requesterID {
			return errors.ErrNotOwner
		}
		if from.Status != model.CardStatusActive || to.Status != model.CardStatusActive {
			return errors.ErrCardNotActive
		}
		now := s.now()
		if from.IsExpired(now) || to.IsExpired(now) {
			return errors.ErrCardExpired
		}
		if from.Balance.LessThan(amount) {
			return errors.ErrInsufficientFunds
		}
		if amount.GreaterThan(MaxTransferAmount) {
			return errors.ErrAmountExceedsLimit
		}

		from.Balance = from.Balance.Sub(amount)
		to.Balance = to.Balance.Add(amount)

		if err := tx.Cards().Update(ctx, from); err != nil {
			return fmt.Errorf("update source card: %w", err)
		}
		if err := tx.Cards().Update(ctx, to); err != nil {
			return fmt.Errorf("update destination card: %w", err)
		}

		record := &model.Transaction{
			FromCardID: from.ID,
			ToCardID:   to.ID,
			Amount:     amount,
			Timestamp:  now.UTC(),
			Status:     model.TransactionStatusSuccess,
		}
		if err := tx.Transactions().Append(ctx, record); err != nil {
			return fmt.Errorf("append ledger entry: %w", err)
		}
		txn = record
		return nil
	})
	if err != nil {
		return nil, err
	}
	return txn, nil
}

// validAmount reports whether d has at most two fractional digits.
func validAmount(d decimal.Decimal) bool {
	return d.Equal(d.Round(2))
}

func cardCacheKey(id int64) string {
	return fmt.Sprintf("card:%d", id)
}
