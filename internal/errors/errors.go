package errors

import (
	"errors"
	"net/http"
)

var (
	// ErrInvalidAmount is returned when an amount is not positive or has more than two fractional digits.
	ErrInvalidAmount = errors.New("invalid amount")
	// ErrSameCardTransfer is returned when source and destination card are the same.
	ErrSameCardTransfer = errors.New("cannot transfer to the same card")
	// ErrCardNotFound is returned when a card does not exist.
	ErrCardNotFound = errors.New("card not found")
	// ErrNotOwner is returned when a card does not belong to the requesting user.
	ErrNotOwner = errors.New("card does not belong to user")
	// ErrCardNotActive is returned when a card is blocked.
	ErrCardNotActive = errors.New("card is not active")
	// ErrCardExpired is returned when a card's expiry date has passed.
	ErrCardExpired = errors.New("card has expired")
	// ErrInsufficientFunds is returned when the source card balance is lower than the amount.
	ErrInsufficientFunds = errors.New("insufficient funds")
	// ErrAmountExceedsLimit is returned when the amount is above the transfer ceiling.
	ErrAmountExceedsLimit = errors.New("transfer amount exceeds maximum limit")
	// ErrConcurrencyTimeout is returned when a card lock could not be acquired in time.
	ErrConcurrencyTimeout = errors.New("timed out waiting for card lock")
	// ErrPersistenceFailure is returned when the store fails for a reason other than lock contention.
	ErrPersistenceFailure = errors.New("persistence failure")

	// ErrInvalidCardState is returned for a lifecycle transition from the wrong state.
	ErrInvalidCardState = errors.New("invalid card state for this operation")
	// ErrNonZeroBalance is returned when deleting a card that still holds funds.
	ErrNonZeroBalance = errors.New("cannot delete card with non-zero balance")
	// ErrInvalidCardNumber is returned when a card number fails format or Luhn validation.
	ErrInvalidCardNumber = errors.New("invalid card number")
	// ErrDuplicateCard is returned when a card with the same number already exists.
	ErrDuplicateCard = errors.New("card with this number already exists")
	// ErrDuplicateUser is returned when the username or email is already taken.
	ErrDuplicateUser = errors.New("user with this username or email already exists")
	// ErrUserHasActiveCards is returned when deleting a user who still owns an active card.
	ErrUserHasActiveCards = errors.New("cannot delete user with active cards")
	// ErrUserNotFound is returned when a user does not exist.
	ErrUserNotFound = errors.New("user not found")
	// ErrBlockRequestNotFound is returned when a block request does not exist.
	ErrBlockRequestNotFound = errors.New("block request not found")
	// ErrTransactionNotFound is returned when a ledger entry does not exist.
	ErrTransactionNotFound = errors.New("transaction not found")
)

// IsRetryable reports whether a caller may reasonably retry the operation that returned err.
// Every other error is permanent for the given input.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrConcurrencyTimeout) || errors.Is(err, ErrPersistenceFailure)
}

// ErrorResponse represents a standardized error response.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// HTTPError represents an HTTP error with status code.
type HTTPError struct {
	StatusCode int
	Message    string
	Code       string
}

func (e *HTTPError) Error() string {
	return e.Message
}

// NewHTTPError creates a new HTTP error.
func NewHTTPError(statusCode int, message, code string) *HTTPError {
	return &HTTPError{
		StatusCode: statusCode,
		Message:    message,
		Code:       code,
	}
}

// ToErrorResponse converts an HTTPError to ErrorResponse.
func (e *HTTPError) ToErrorResponse() ErrorResponse {
	return ErrorResponse{
		Error: e.Message,
		Code:  e.Code,
	}
}

var httpMappings = []struct {
	err    error
	status int
	code   string
}{
	{ErrInvalidAmount, http.StatusBadRequest, "INVALID_AMOUNT"},
	{ErrSameCardTransfer, http.StatusBadRequest, "SAME_CARD_TRANSFER"},
	{ErrInvalidCardNumber, http.StatusBadRequest, "INVALID_CARD_NUMBER"},
	{ErrCardNotFound, http.StatusNotFound, "CARD_NOT_FOUND"},
	{ErrUserNotFound, http.StatusNotFound, "USER_NOT_FOUND"},
	{ErrBlockRequestNotFound, http.StatusNotFound, "BLOCK_REQUEST_NOT_FOUND"},
	{ErrTransactionNotFound, http.StatusNotFound, "TRANSACTION_NOT_FOUND"},
	{ErrNotOwner, http.StatusForbidden, "NOT_OWNER"},
	{ErrCardNotActive, http.StatusUnprocessableEntity, "CARD_NOT_ACTIVE"},
	{ErrCardExpired, http.StatusUnprocessableEntity, "CARD_EXPIRED"},
	{ErrInsufficientFunds, http.StatusUnprocessableEntity, "INSUFFICIENT_FUNDS"},
	{ErrAmountExceedsLimit, http.StatusUnprocessableEntity, "AMOUNT_EXCEEDS_LIMIT"},
	{ErrInvalidCardState, http.StatusConflict, "INVALID_CARD_STATE"},
	{ErrNonZeroBalance, http.StatusConflict, "NON_ZERO_BALANCE"},
	{ErrDuplicateCard, http.StatusConflict, "DUPLICATE_CARD"},
	{ErrDuplicateUser, http.StatusConflict, "DUPLICATE_USER"},
	{ErrUserHasActiveCards, http.StatusConflict, "USER_HAS_ACTIVE_CARDS"},
	{ErrConcurrencyTimeout, http.StatusServiceUnavailable, "CONCURRENCY_TIMEOUT"},
}

// MapErrorToHTTP maps domain errors to HTTP errors.
// The message of a mapped error is the sentinel's text, never the wrapped detail.
func MapErrorToHTTP(err error) *HTTPError {
	for _, m := range httpMappings {
		if errors.Is(err, m.err) {
			return NewHTTPError(m.status, m.err.Error(), m.code)
		}
	}
	if errors.Is(err, ErrPersistenceFailure) {
		return NewHTTPError(http.StatusInternalServerError, "persistence failure", "PERSISTENCE_FAILURE")
	}
	return NewHTTPError(http.StatusInternalServerError, "internal server error", "INTERNAL_ERROR")
}

// Code returns the stable machine-readable code for err.
func Code(err error) string {
	return MapErrorToHTTP(err).Code
}
