package repository

import (
	"context"

	"gorm.io/gorm"

	"bankcards/internal/errors"
	"bankcards/internal/model"
)

// BlockRequestRepository stores card holders' block requests.
type BlockRequestRepository interface {
	Create(ctx context.Context, req *model.BlockRequest) error
	FindByID(ctx context.Context, id int64) (*model.BlockRequest, error)
	ListPending(ctx context.Context) ([]model.BlockRequest, error)
	// ResolvePending marks every pending request for the card as completed and returns how many changed.
	ResolvePending(ctx context.Context, cardID int64) (int64, error)
}

type blockRequestRepository struct {
	db *gorm.DB
}

// NewBlockRequestRepository creates a new block request repository.
func NewBlockRequestRepository(db *gorm.DB) BlockRequestRepository {
	return &blockRequestRepository{db: db}
}

func (r *blockRequestRepository) Create(ctx context.Context, req *model.BlockRequest) error {
	return normalize(r.db.WithContext(ctx).Create(req).Error, nil)
}

func (r *blockRequestRepository) FindByID(ctx context.Context, id int64) (*model.BlockRequest, error) {
	var req model.BlockRequest
	if err := r.db.WithContext(ctx).First(&req, id).Error; err != nil {
		return nil, normalize(err, errors.ErrBlockRequestNotFound)
	}
	return &req, nil
}

func (r *blockRequestRepository) ListPending(ctx context.Context) ([]model.BlockRequest, error) {
	var reqs []model.BlockRequest
	if err := r.db.WithContext(ctx).Where("status = ?", model.BlockRequestPending).
		Order("requested_at, id").Find(&reqs).Error; err != nil {
		return nil, normalize(err, nil)
	}
	return reqs, nil
}

func (r *blockRequestRepository) ResolvePending(ctx context.Context, cardID int64) (int64, error) {
	res := r.db.WithContext(ctx).Model(&model.BlockRequest{}).
		Where("card_id = ? AND status = ?", cardID, model.BlockRequestPending).
		Update("status", model.BlockRequestCompleted)
	if res.Error != nil {
		return 0, normalize(res.Error, nil)
	}
	return res.RowsAffected, nil
}
