package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"bankcards/internal/auth"
	"bankcards/internal/cardnumber"
	"bankcards/internal/model"
	"bankcards/internal/service"
)

// CardHandler serves the card holder's own cards.
type CardHandler struct {
	cards     service.CardService
	presenter cardPresenter
}

// NewCardHandler creates a new card handler. A nil clock uses time.Now.
func NewCardHandler(cards service.CardService, cipher cardnumber.Cipher, clock service.Clock) *CardHandler {
	if clock == nil {
		clock = time.Now
	}
	return &CardHandler{cards: cards, presenter: cardPresenter{cipher: cipher, now: clock}}
}

// BalanceResponse represents a card balance response.
type BalanceResponse struct {
	CardID  int64  `json:"card_id"`
	Balance string `json:"balance" example:"100.00"`
}

// BlockRequestResponse represents a filed block request.
type BlockRequestResponse struct {
	ID          int64                    `json:"id"`
	CardID      int64                    `json:"card_id"`
	UserID      int64                    `json:"user_id"`
	RequestedAt time.Time                `json:"requested_at"`
	Status      model.BlockRequestStatus `json:"status" example:"PENDING"`
}

func toBlockRequestResponse(req *model.BlockRequest) BlockRequestResponse {
	return BlockRequestResponse{
		ID:          req.ID,
		CardID:      req.CardID,
		UserID:      req.UserID,
		RequestedAt: req.RequestedAt,
		Status:      req.Status,
	}
}

// ListMyCards godoc
// @Summary List the caller's cards
// @Tags cards
// @Produce json
// @Security BearerAuth
// @Success 200 {array} CardResponse
// @Failure 401 {object} errors.ErrorResponse
// @Failure 500 {object} errors.ErrorResponse
// @Router /user/cards [get]
func (h *CardHandler) ListMyCards(c echo.Context) error {
	claims, err := auth.ClaimsFrom(c)
	if err != nil {
		return err
	}

	cards, err := h.cards.ListUserCards(c.Request().Context(), claims.UserID)
	if err != nil {
		return domainError(err)
	}
	return c.JSON(http.StatusOK, h.presenter.cards(cards))
}

// GetMyCard godoc
// @Summary Get one of the caller's cards
// @Tags cards
// @Produce json
// @Security BearerAuth
// @Param id path int true "Card ID"
// @Success 200 {object} CardResponse
// @Failure 400 {object} errors.ErrorResponse
// @Failure 403 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Router /user/cards/{id} [get]
func (h *CardHandler) GetMyCard(c echo.Context) error {
	claims, err := auth.ClaimsFrom(c)
	if err != nil {
		return err
	}
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}

	card, err := h.cards.GetUserCard(c.Request().Context(), id, claims.UserID)
	if err != nil {
		return domainError(err)
	}
	return c.JSON(http.StatusOK, h.presenter.card(card))
}

// GetBalance godoc
// @Summary Get card balance
// @Tags cards
// @Produce json
// @Security BearerAuth
// @Param id path int true "Card ID"
// @Success 200 {object} BalanceResponse
// @Failure 400 {object} errors.ErrorResponse
// @Failure 403 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Failure 422 {object} errors.ErrorResponse
// @Router /user/cards/{id}/balance [get]
func (h *CardHandler) GetBalance(c echo.Context) error {
	claims, err := auth.ClaimsFrom(c)
	if err != nil {
		return err
	}
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}

	balance, err := h.cards.GetBalance(c.Request().Context(), id, claims.UserID)
	if err != nil {
		return domainError(err)
	}
	return c.JSON(http.StatusOK, BalanceResponse{CardID: id, Balance: balance.StringFixed(2)})
}

// RequestBlock godoc
// @Summary Ask an administrator to block one of the caller's cards
// @Tags cards
// @Produce json
// @Security BearerAuth
// @Param id path int true "Card ID"
// @Success 201 {object} BlockRequestResponse
// @Failure 400 {object} errors.ErrorResponse
// @Failure 403 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Failure 409 {object} errors.ErrorResponse
// @Router /user/cards/{id}/block-request [post]
func (h *CardHandler) RequestBlock(c echo.Context) error {
	claims, err := auth.ClaimsFrom(c)
	if err != nil {
		return err
	}
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}

	req, err := h.cards.RequestBlock(c.Request().Context(), id, claims.UserID)
	if err != nil {
		return domainError(err)
	}
	return c.JSON(http.StatusCreated, toBlockRequestResponse(req))
}
