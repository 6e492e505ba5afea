package repository

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"bankcards/internal/errors"
	"bankcards/internal/model"
)

// CardRepository defines card persistence operations.
type CardRepository interface {
	Create(ctx context.Context, card *model.Card) error
	FindByID(ctx context.Context, id int64) (*model.Card, error)
	// FindByIDForUpdate reads a card and takes its exclusive lock for the rest of the unit of work.
	FindByIDForUpdate(ctx context.Context, id int64) (*model.Card, error)
	FindByOwner(ctx context.Context, ownerID int64) ([]model.Card, error)
	// List returns all cards, or only those with the given status when it is not empty.
	List(ctx context.Context, status model.CardStatus) ([]model.Card, error)
	ListExpiringBefore(ctx context.Context, date time.Time) ([]model.Card, error)
	ExistsByFingerprint(ctx context.Context, fingerprint string) (bool, error)
	// Update persists balance and status.
	Update(ctx context.Context, card *model.Card) error
	// Delete removes a card whose balance is zero.
	Delete(ctx context.Context, card *model.Card) error
}

type cardRepository struct {
	db *gorm.DB
}

// NewCardRepository creates a new card repository.
func NewCardRepository(db *gorm.DB) CardRepository {
	return &cardRepository{db: db}
}

// Create creates a new card.
func (r *cardRepository) Create(ctx context.Context, card *model.Card) error {
	err := r.db.WithContext(ctx).Create(card).Error
	if stderrors.Is(err, gorm.ErrDuplicatedKey) {
		return errors.ErrDuplicateCard
	}
	return normalize(err, nil)
}

// FindByID finds a card by ID.
func (r *cardRepository) FindByID(ctx context.Context, id int64) (*model.Card, error) {
	var card model.Card
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&card).Error; err != nil {
		return nil, normalize(err, errors.ErrCardNotFound)
	}
	return &card, nil
}

// FindByIDForUpdate finds a card by ID with row-level lock for update.
func (r *cardRepository) FindByIDForUpdate(ctx context.Context, id int64) (*model.Card, error) {
	var card model.Card
	if err := r.db.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).First(&card).Error; err != nil {
		return nil, normalize(err, errors.ErrCardNotFound)
	}
	return &card, nil
}

// FindByOwner finds all cards for a user.
func (r *cardRepository) FindByOwner(ctx context.Context, ownerID int64) ([]model.Card, error) {
	var cards []model.Card
	if err := r.db.WithContext(ctx).Where("owner_id = ?", ownerID).Order("id").Find(&cards).Error; err != nil {
		return nil, normalize(err, nil)
	}
	return cards, nil
}

// List finds all cards, optionally filtered by status.
func (r *cardRepository) List(ctx context.Context, status model.CardStatus) ([]model.Card, error) {
	q := r.db.WithContext(ctx).Order("id")
	if status != "" {
		q = q.Where("status = ?", status)
	}

	var cards []model.Card
	if err := q.Find(&cards).Error; err != nil {
		return nil, normalize(err, nil)
	}
	return cards, nil
}

// ListExpiringBefore finds cards whose expiry date is strictly before date.
func (r *cardRepository) ListExpiringBefore(ctx context.Context, date time.Time) ([]model.Card, error) {
	var cards []model.Card
	if err := r.db.WithContext(ctx).Where("expiry_date < ?", model.Date(date)).
		Order("expiry_date, id").Find(&cards).Error; err != nil {
		return nil, normalize(err, nil)
	}
	return cards, nil
}

// ExistsByFingerprint reports whether any card, including deleted ones, has the fingerprint.
func (r *cardRepository) ExistsByFingerprint(ctx context.Context, fingerprint string) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).Unscoped().Model(&model.Card{}).
		Where("number_fingerprint = ?", fingerprint).Count(&count).Error; err != nil {
		return false, normalize(err, nil)
	}
	return count > 0, nil
}

// Update updates the mutable fields of an existing card.
func (r *cardRepository) Update(ctx context.Context, card *model.Card) error {
	err := r.db.WithContext(ctx).Model(card).
		Select("balance", "status", "updated_at").
		Updates(card).Error
	return normalize(err, nil)
}

// Delete soft-deletes a card with zero balance.
func (r *cardRepository) Delete(ctx context.Context, card *model.Card) error {
	if !card.Balance.IsZero() {
		return errors.ErrNonZeroBalance
	}

	res := r.db.WithContext(ctx).Where("id = ? AND balance = 0", card.ID).Delete(&model.Card{})
	if res.Error != nil {
		return normalize(res.Error, nil)
	}
	if res.RowsAffected == 0 {
		if _, err := r.FindByID(ctx, card.ID); err != nil {
			return err
		}
		return fmt.Errorf("%w: stored balance is not zero", errors.ErrNonZeroBalance)
	}
	return nil
}
