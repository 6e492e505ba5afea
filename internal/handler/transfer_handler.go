package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"

	"bankcards/internal/auth"
	"bankcards/internal/service"
)

// TransferHandler handles transfer endpoints.
type TransferHandler struct {
	transferService service.TransferService
}

// NewTransferHandler creates a new transfer handler.
func NewTransferHandler(transferService service.TransferService) *TransferHandler {
	return &TransferHandler{transferService: transferService}
}

// TransferRequest represents a transfer request.
type TransferRequest struct {
	FromCardID int64  `json:"from_card_id" validate:"required,gt=0"`
	ToCardID   int64  `json:"to_card_id" validate:"required,gt=0"`
	Amount     string `json:"amount" validate:"required,numeric" example:"25.50"`
}

// TransferResponse represents a completed transfer.
type TransferResponse struct {
	TransactionID string `json:"transaction_id"`
	FromCardID    int64  `json:"from_card_id"`
	ToCardID      int64  `json:"to_card_id"`
	Amount        string `json:"amount"`
	Timestamp     string `json:"timestamp"`
	Status        string `json:"status" example:"SUCCESS"`
}

// Transfer godoc
// @Summary Transfer money between two of the caller's cards
// @Tags transfers
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param Idempotency-Key header string false "Replays the stored response for a repeated key"
// @Param request body TransferRequest true "Transfer data"
// @Success 201 {object} TransferResponse
// @Failure 400 {object} errors.ErrorResponse
// @Failure 401 {object} errors.ErrorResponse
// @Failure 403 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Failure 409 {object} errors.ErrorResponse
// @Failure 422 {object} errors.ErrorResponse
// @Failure 503 {object} errors.ErrorResponse
// @Router /user/cards/transfer [post]
func (h *TransferHandler) Transfer(c echo.Context) error {
	claims, err := auth.ClaimsFrom(c)
	if err != nil {
		return err
	}

	var req TransferRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		return badRequest("invalid amount", "INVALID_AMOUNT")
	}

	txn, err := h.transferService.TransferBetweenCards(
		c.Request().Context(),
		req.FromCardID,
		req.ToCardID,
		claims.UserID,
		amount,
	)
	if err != nil {
		return domainError(err)
	}

	return c.JSON(http.StatusCreated, TransferResponse{
		TransactionID: txn.ID.String(),
		FromCardID:    txn.FromCardID,
		ToCardID:      txn.ToCardID,
		Amount:        txn.Amount.StringFixed(2),
		Timestamp:     txn.Timestamp.UTC().Format(time.RFC3339),
		Status:        string(txn.Status),
	})
}
