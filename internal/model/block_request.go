package model

import "time"

// BlockRequestStatus tracks whether an administrator has acted on a request.
type BlockRequestStatus string

const (
	BlockRequestPending   BlockRequestStatus = "PENDING"
	BlockRequestCompleted BlockRequestStatus = "COMPLETED"
)

// BlockRequest is a card holder's request to have one of their cards blocked.
type BlockRequest struct {
	ID          int64              `json:"id" gorm:"primaryKey;autoIncrement"`
	CardID      int64              `json:"card_id" gorm:"not null;index"`
	UserID      int64              `json:"user_id" gorm:"not null;index"`
	RequestedAt time.Time          `json:"requested_at" gorm:"not null"`
	Status      BlockRequestStatus `json:"status" gorm:"type:varchar(16);not null;default:'PENDING';index"`
}
