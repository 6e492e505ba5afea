package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"bankcards/internal/cardnumber"
	"bankcards/internal/errors"
	"bankcards/internal/model"
)

// CardResponse is the client view of a card. The number is always masked.
type CardResponse struct {
	ID         int64  `json:"id"`
	Number     string `json:"number" example:"**** **** **** 1111"`
	ExpiryDate string `json:"expiry_date" example:"2030-01-31"`
	Status     string `json:"status" example:"ACTIVE"`
	Balance    string `json:"balance" example:"100.00"`
	OwnerID    int64  `json:"owner_id"`
}

// cardPresenter renders cards for responses.
type cardPresenter struct {
	cipher cardnumber.Cipher
	now    func() time.Time
}

func (p cardPresenter) card(card *model.Card) CardResponse {
	return CardResponse{
		ID:         card.ID,
		Number:     card.Number().Masked(p.cipher),
		ExpiryDate: card.ExpiryDate.Format(time.DateOnly),
		Status:     card.DisplayStatus(p.now()),
		Balance:    card.Balance.StringFixed(2),
		OwnerID:    card.OwnerID,
	}
}

func (p cardPresenter) cards(cards []model.Card) []CardResponse {
	out := make([]CardResponse, 0, len(cards))
	for i := range cards {
		out = append(out, p.card(&cards[i]))
	}
	return out
}

// domainError converts a service error into an echo HTTP error with the stable code.
func domainError(err error) error {
	httpErr := errors.MapErrorToHTTP(err)
	return echo.NewHTTPError(httpErr.StatusCode, httpErr.ToErrorResponse())
}

func badRequest(msg, code string) error {
	return echo.NewHTTPError(http.StatusBadRequest, errors.ErrorResponse{Error: msg, Code: code})
}

// bindAndValidate decodes the request body into req and runs the struct validator.
func bindAndValidate(c echo.Context, req interface{}) error {
	if err := c.Bind(req); err != nil {
		return badRequest("invalid request body", "INVALID_REQUEST")
	}
	if err := c.Validate(req); err != nil {
		return badRequest(err.Error(), "VALIDATION_ERROR")
	}
	return nil
}

func pathID(c echo.Context, name string) (int64, error) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, badRequest("invalid "+name, "INVALID_ID")
	}
	return id, nil
}
