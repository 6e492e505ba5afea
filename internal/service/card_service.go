package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"bankcards/internal/cache"
	"bankcards/internal/cardnumber"
	"bankcards/internal/errors"
	"bankcards/internal/model"
	"bankcards/internal/repository"
)

const cardCacheTTL = 5 * time.Minute

// CreateCardInput carries the data for issuing a card.
type CreateCardInput struct {
	Number     string
	ExpiryDate time.Time
	Status     model.CardStatus
	Balance    decimal.Decimal
	OwnerID    int64
}

// CardService handles card lifecycle operations.
type CardService interface {
	CreateCard(ctx context.Context, in CreateCardInput) (*model.Card, error)
	GetCard(ctx context.Context, id int64) (*model.Card, error)
	GetUserCard(ctx context.Context, cardID, requesterID int64) (*model.Card, error)
	ListCards(ctx context.Context, status model.CardStatus) ([]model.Card, error)
	ListUserCards(ctx context.Context, ownerID int64) ([]model.Card, error)
	ListExpiringBefore(ctx context.Context, date time.Time) ([]model.Card, error)
	BlockCard(ctx context.Context, id int64) (*model.Card, error)
	ActivateCard(ctx context.Context, id int64) (*model.Card, error)
	DeleteCard(ctx context.Context, id int64) error
	GetBalance(ctx context.Context, cardID, requesterID int64) (decimal.Decimal, error)
	RequestBlock(ctx context.Context, cardID, requesterID int64) (*model.BlockRequest, error)
	ListPendingBlockRequests(ctx context.Context) ([]model.BlockRequest, error)
}

type cardService struct {
	store  repository.Store
	cipher cardnumber.Cipher
	cache  *cache.Client
	log    logrus.FieldLogger
	now    Clock
	group  singleflight.Group
}

// NewCardService creates a new card service. A nil clock uses time.Now.
func NewCardService(store repository.Store, cipher cardnumber.Cipher, cache *cache.Client, log logrus.FieldLogger, clock Clock) CardService {
	if clock == nil {
		clock = time.Now
	}
	return &cardService{
		store:  store,
		cipher: cipher,
		cache:  cache,
		log:    log,
		now:    clock,
	}
}

// cardCacheEntry keeps the ciphertext that model.Card hides from JSON.
type cardCacheEntry struct {
	model.Card
	Ciphertext string `json:"number_ciphertext"`
}

// CreateCard validates, encrypts and stores a new card.
func (s *cardService) CreateCard(ctx context.Context, in CreateCardInput) (*model.Card, error) {
	if _, err := s.store.Users().FindByID(ctx, in.OwnerID); err != nil {
		return nil, err
	}

	number, err := cardnumber.Seal(s.cipher, in.Number)
	if err != nil {
		return nil, err
	}

	status := in.Status
	if status == "" {
		status = model.CardStatusActive
	}
	if !status.Valid() {
		return nil, fmt.Errorf("%w: initial status %q", errors.ErrInvalidCardState, status)
	}

	if in.Balance.IsNegative() || !validAmount(in.Balance) {
		return nil, errors.ErrInvalidAmount
	}

	fingerprint := s.cipher.Fingerprint(in.Number)
	exists, err := s.store.Cards().ExistsByFingerprint(ctx, fingerprint)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, errors.ErrDuplicateCard
	}

	card := &model.Card{
		NumberCiphertext:  number.Ciphertext(),
		NumberFingerprint: fingerprint,
		ExpiryDate:        model.Date(in.ExpiryDate),
		Status:            status,
		Balance:           in.Balance,
		OwnerID:           in.OwnerID,
	}
	if err := s.store.Cards().Create(ctx, card); err != nil {
		return nil, err
	}

	s.log.WithFields(logrus.Fields{
		"card_id":  card.ID,
		"owner_id": card.OwnerID,
		"status":   card.Status,
	}).Info("card created")
	return card, nil
}

// GetCard retrieves a card by ID with caching. Concurrent misses for the same card share one lookup.
func (s *cardService) GetCard(ctx context.Context, id int64) (*model.Card, error) {
	key := cardCacheKey(id)

	// Try cache first
	if data, _ := s.cache.Get(ctx, key); data != nil {
		var cached cardCacheEntry
		if err := json.Unmarshal(data, &cached); err == nil {
			card := cached.Card
			card.NumberCiphertext = cached.Ciphertext
			return &card, nil
		}
	}

	v, err, _ := s.group.Do(key, func() (interface{}, error) {
		card, err := s.store.Cards().FindByID(ctx, id)
		if err != nil {
			return nil, err
		}
		if s.cache == nil {
			return card, nil
		}

		if payload, err := json.Marshal(cardCacheEntry{Card: *card, Ciphertext: card.NumberCiphertext}); err == nil {
			_ = s.cache.Set(ctx, key, payload, cardCacheTTL)
		}

		// A commit between the read and the Set may already have run its Delete.
		current, err := s.store.Cards().FindByID(ctx, id)
		if err != nil {
			_ = s.cache.Delete(ctx, key)
			return nil, err
		}
		if !sameCardState(card, current) {
			_ = s.cache.Delete(ctx, key)
		}
		return current, nil
	})
	if err != nil {
		return nil, err
	}

	card := *v.(*model.Card)
	return &card, nil
}

func sameCardState(a, b *model.Card) bool {
	return a.Balance.Equal(b.Balance) && a.Status == b.Status && a.UpdatedAt.Equal(b.UpdatedAt)
}

// GetUserCard returns one of the requester's cards.
func (s *cardService) GetUserCard(ctx context.Context, cardID, requesterID int64) (*model.Card, error) {
	card, err := s.GetCard(ctx, cardID)
	if err != nil {
		return nil, err
	}
	if card.OwnerID != requesterID {
		return nil, errors.ErrNotOwner
	}
	return card, nil
}

func (s *cardService) ListCards(ctx context.Context, status model.CardStatus) ([]model.Card, error) {
	return s.store.Cards().List(ctx, status)
}

func (s *cardService) ListUserCards(ctx context.Context, ownerID int64) ([]model.Card, error) {
	return s.store.Cards().FindByOwner(ctx, ownerID)
}

func (s *cardService) ListExpiringBefore(ctx context.Context, date time.Time) ([]model.Card, error) {
	return s.store.Cards().ListExpiringBefore(ctx, date)
}

// BlockCard blocks an active card and completes any pending block requests for it.
func (s *cardService) BlockCard(ctx context.Context, id int64) (*model.Card, error) {
	var resolved int64
	card, err := s.mutate(ctx, id, func(ctx context.Context, tx repository.Store, card *model.Card) error {
		if err := card.Block(); err != nil {
			return err
		}
		if err := tx.Cards().Update(ctx, card); err != nil {
			return err
		}
		n, err := tx.BlockRequests().ResolvePending(ctx, card.ID)
		resolved = n
		return err
	})
	if err != nil {
		return nil, err
	}

	s.log.WithFields(logrus.Fields{"card_id": id, "resolved_requests": resolved}).Info("card blocked")
	return card, nil
}

// ActivateCard re-activates a blocked card.
func (s *cardService) ActivateCard(ctx context.Context, id int64) (*model.Card, error) {
	card, err := s.mutate(ctx, id, func(ctx context.Context, tx repository.Store, card *model.Card) error {
		if err := card.Activate(); err != nil {
			return err
		}
		return tx.Cards().Update(ctx, card)
	})
	if err != nil {
		return nil, err
	}

	s.log.WithField("card_id", id).Info("card activated")
	return card, nil
}

// DeleteCard removes a card whose balance is zero, whatever its status.
func (s *cardService) DeleteCard(ctx context.Context, id int64) error {
	_, err := s.mutate(ctx, id, func(ctx context.Context, tx repository.Store, card *model.Card) error {
		return tx.Cards().Delete(ctx, card)
	})
	if err != nil {
		return err
	}

	s.log.WithField("card_id", id).Info("card deleted")
	return nil
}

// mutate runs fn on the locked card inside a unit of work and drops the cached copy afterwards.
func (s *cardService) mutate(ctx context.Context, id int64, fn func(ctx context.Context, tx repository.Store, card *model.Card) error) (*model.Card, error) {
	var result *model.Card
	err := s.store.WithTransaction(ctx, func(ctx context.Context, tx repository.Store) error {
		card, err := tx.Cards().FindByIDForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if err := fn(ctx, tx, card); err != nil {
			return err
		}
		result = card
		return nil
	})
	if err != nil {
		return nil, err
	}

	_ = s.cache.Delete(ctx, cardCacheKey(id))
	return result, nil
}

// GetBalance returns the balance of a usable card owned by the requester.
func (s *cardService) GetBalance(ctx context.Context, cardID, requesterID int64) (decimal.Decimal, error) {
	card, err := s.store.Cards().FindByID(ctx, cardID)
	if err != nil {
		return decimal.Zero, err
	}
	if card.OwnerID != requesterID {
		return decimal.Zero, errors.ErrNotOwner
	}
	if card.Status != model.CardStatusActive {
		return decimal.Zero, errors.ErrCardNotActive
	}
	if card.IsExpired(s.now()) {
		return decimal.Zero, errors.ErrCardExpired
	}
	return card.Balance, nil
}

// RequestBlock files a pending block request for one of the requester's active cards.
func (s *cardService) RequestBlock(ctx context.Context, cardID, requesterID int64) (*model.BlockRequest, error) {
	card, err := s.store.Cards().FindByID(ctx, cardID)
	if err != nil {
		return nil, err
	}
	if card.OwnerID != requesterID {
		return nil, errors.ErrNotOwner
	}
	if card.Status != model.CardStatusActive {
		return nil, errors.ErrInvalidCardState
	}

	req := &model.BlockRequest{
		CardID:      cardID,
		UserID:      requesterID,
		RequestedAt: s.now().UTC(),
		Status:      model.BlockRequestPending,
	}
	if err := s.store.BlockRequests().Create(ctx, req); err != nil {
		return nil, err
	}

	s.log.WithFields(logrus.Fields{"card_id": cardID, "user_id": requesterID, "request_id": req.ID}).Info("block requested")
	return req, nil
}

func (s *cardService) ListPendingBlockRequests(ctx context.Context) ([]model.BlockRequest, error) {
	return s.store.BlockRequests().ListPending(ctx)
}
