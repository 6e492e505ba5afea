package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"

	"bankcards/internal/cardnumber"
	"bankcards/internal/model"
	"bankcards/internal/service"
)

// AdminHandler serves card administration endpoints.
type AdminHandler struct {
	cards     service.CardService
	presenter cardPresenter
}

// NewAdminHandler creates a new admin handler. A nil clock uses time.Now.
func NewAdminHandler(cards service.CardService, cipher cardnumber.Cipher, clock service.Clock) *AdminHandler {
	if clock == nil {
		clock = time.Now
	}
	return &AdminHandler{cards: cards, presenter: cardPresenter{cipher: cipher, now: clock}}
}

// CreateCardRequest represents a card issuing request.
type CreateCardRequest struct {
	Number     string `json:"number" validate:"required" example:"4111 1111 1111 1111"`
	ExpiryDate string `json:"expiry_date" validate:"required,datetime=2006-01-02" example:"2030-01-31"`
	Status     string `json:"status" validate:"omitempty,oneof=ACTIVE BLOCKED" example:"ACTIVE"`
	Balance    string `json:"balance" validate:"omitempty,numeric" example:"0.00"`
	OwnerID    int64  `json:"owner_id" validate:"required,gt=0"`
}

// CreateCard godoc
// @Summary Issue a card to a user
// @Tags admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body CreateCardRequest true "Card data"
// @Success 201 {object} CardResponse
// @Failure 400 {object} errors.ErrorResponse
// @Failure 403 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Failure 409 {object} errors.ErrorResponse
// @Router /admin/cards [post]
func (h *AdminHandler) CreateCard(c echo.Context) error {
	var req CreateCardRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	expiry, err := time.Parse(time.DateOnly, req.ExpiryDate)
	if err != nil {
		return badRequest("invalid expiry_date", "INVALID_DATE")
	}
	balance := decimal.Zero
	if req.Balance != "" {
		if balance, err = decimal.NewFromString(req.Balance); err != nil {
			return badRequest("invalid balance", "INVALID_AMOUNT")
		}
	}

	card, err := h.cards.CreateCard(c.Request().Context(), service.CreateCardInput{
		Number:     req.Number,
		ExpiryDate: expiry,
		Status:     model.CardStatus(req.Status),
		Balance:    balance,
		OwnerID:    req.OwnerID,
	})
	if err != nil {
		return domainError(err)
	}
	return c.JSON(http.StatusCreated, h.presenter.card(card))
}

// ListCards godoc
// @Summary List all cards
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Param status query string false "ACTIVE, BLOCKED or EXPIRED"
// @Success 200 {array} CardResponse
// @Failure 400 {object} errors.ErrorResponse
// @Failure 403 {object} errors.ErrorResponse
// @Router /admin/cards [get]
func (h *AdminHandler) ListCards(c echo.Context) error {
	ctx := c.Request().Context()
	status := strings.ToUpper(c.QueryParam("status"))

	var (
		cards []model.Card
		err   error
	)
	switch {
	case status == model.StatusExpired:
		cards, err = h.cards.ListExpiringBefore(ctx, h.presenter.now())
	case status == "" || model.CardStatus(status).Valid():
		cards, err = h.cards.ListCards(ctx, model.CardStatus(status))
	default:
		return badRequest("invalid status", "INVALID_STATUS")
	}
	if err != nil {
		return domainError(err)
	}
	return c.JSON(http.StatusOK, h.presenter.cards(cards))
}

// ListExpiring godoc
// @Summary List cards expiring before a date
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Param date query string true "Exclusive bound, YYYY-MM-DD"
// @Success 200 {array} CardResponse
// @Failure 400 {object} errors.ErrorResponse
// @Failure 403 {object} errors.ErrorResponse
// @Router /admin/cards/expiring [get]
func (h *AdminHandler) ListExpiring(c echo.Context) error {
	date, err := time.Parse(time.DateOnly, c.QueryParam("date"))
	if err != nil {
		return badRequest("date must be YYYY-MM-DD", "INVALID_DATE")
	}

	cards, err := h.cards.ListExpiringBefore(c.Request().Context(), date)
	if err != nil {
		return domainError(err)
	}
	return c.JSON(http.StatusOK, h.presenter.cards(cards))
}

// BlockCard godoc
// @Summary Block a card
// @Description Completes any pending block requests for the card.
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Param id path int true "Card ID"
// @Success 200 {object} CardResponse
// @Failure 404 {object} errors.ErrorResponse
// @Failure 409 {object} errors.ErrorResponse
// @Failure 503 {object} errors.ErrorResponse
// @Router /admin/cards/{id}/block [post]
func (h *AdminHandler) BlockCard(c echo.Context) error {
	return h.withCard(c, h.cards.BlockCard)
}

// GetCard godoc
// @Summary Get any card
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Param id path int true "Card ID"
// @Success 200 {object} CardResponse
// @Failure 400 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Router /admin/cards/{id} [get]
func (h *AdminHandler) GetCard(c echo.Context) error {
	return h.withCard(c, h.cards.GetCard)
}

// ActivateCard godoc
// @Summary Activate a blocked card
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Param id path int true "Card ID"
// @Success 200 {object} CardResponse
// @Failure 404 {object} errors.ErrorResponse
// @Failure 409 {object} errors.ErrorResponse
// @Failure 503 {object} errors.ErrorResponse
// @Router /admin/cards/{id}/activate [patch]
func (h *AdminHandler) ActivateCard(c echo.Context) error {
	return h.withCard(c, h.cards.ActivateCard)
}

// withCard renders the card fn returns for the path id.
func (h *AdminHandler) withCard(c echo.Context, fn func(ctx context.Context, id int64) (*model.Card, error)) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}

	card, err := fn(c.Request().Context(), id)
	if err != nil {
		return domainError(err)
	}
	return c.JSON(http.StatusOK, h.presenter.card(card))
}

// DeleteCard godoc
// @Summary Delete a card with zero balance
// @Tags admin
// @Security BearerAuth
// @Param id path int true "Card ID"
// @Success 204
// @Failure 404 {object} errors.ErrorResponse
// @Failure 409 {object} errors.ErrorResponse
// @Router /admin/cards/{id} [delete]
func (h *AdminHandler) DeleteCard(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}

	if err := h.cards.DeleteCard(c.Request().Context(), id); err != nil {
		return domainError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

// ListBlockRequests godoc
// @Summary List pending block requests
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Success 200 {array} BlockRequestResponse
// @Failure 403 {object} errors.ErrorResponse
// @Router /admin/block-requests [get]
func (h *AdminHandler) ListBlockRequests(c echo.Context) error {
	requests, err := h.cards.ListPendingBlockRequests(c.Request().Context())
	if err != nil {
		return domainError(err)
	}

	out := make([]BlockRequestResponse, 0, len(requests))
	for i := range requests {
		out = append(out, toBlockRequestResponse(&requests[i]))
	}
	return c.JSON(http.StatusOK, out)
}
