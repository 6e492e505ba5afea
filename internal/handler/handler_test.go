package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"bankcards/internal/auth"
	"bankcards/internal/cardnumber"
	"bankcards/internal/errors"
	"bankcards/internal/model"
	"bankcards/internal/service"
)

const testSecret = "test-secret"

var testNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

type testValidator struct{ v *validator.Validate }

func (tv testValidator) Validate(i interface{}) error { return tv.v.Struct(i) }

type fixture struct {
	e         *echo.Echo
	cipher    *cardnumber.AESCipher
	cards     *MockCardService
	transfers *MockTransferService
	users     *MockUserService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	cipher, err := cardnumber.NewAESCipher("0123456789abcdef0123456789abcdef")
	require.NoError(t, err)

	f := &fixture{
		e:         echo.New(),
		cipher:    cipher,
		cards:     new(MockCardService),
		transfers: new(MockTransferService),
		users:     new(MockUserService),
	}
	f.e.Validator = testValidator{v: validator.New()}

	clock := func() time.Time { return testNow }
	cardHandler := NewCardHandler(f.cards, cipher, clock)
	adminHandler := NewAdminHandler(f.cards, cipher, clock)
	transferHandler := NewTransferHandler(f.transfers)
	userHandler := NewUserHandler(f.users)

	api := f.e.Group("/api", auth.Middleware(testSecret))
	api.GET("/user/cards", cardHandler.ListMyCards)
	api.GET("/user/cards/:id", cardHandler.GetMyCard)
	api.GET("/user/cards/:id/balance", cardHandler.GetBalance)
	api.POST("/user/cards/:id/block-request", cardHandler.RequestBlock)
	api.POST("/user/cards/transfer", transferHandler.Transfer)
	api.POST("/admin/cards", adminHandler.CreateCard)
	api.GET("/admin/cards", adminHandler.ListCards)
	api.GET("/admin/cards/expiring", adminHandler.ListExpiring)
	api.GET("/admin/cards/:id", adminHandler.GetCard)
	api.POST("/admin/cards/:id/block", adminHandler.BlockCard)
	api.PATCH("/admin/cards/:id/activate", adminHandler.ActivateCard)
	api.DELETE("/admin/cards/:id", adminHandler.DeleteCard)
	api.GET("/admin/block-requests", adminHandler.ListBlockRequests)
	api.POST("/admin/users", userHandler.CreateUser)
	api.GET("/admin/users/:id", userHandler.GetUser)
	api.PUT("/admin/users/:id", userHandler.UpdateUser)
	api.DELETE("/admin/users/:id", userHandler.DeleteUser)
	return f
}

func (f *fixture) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	token, err := auth.NewJWTService(testSecret, time.Minute).GenerateAccessToken(7, model.RoleUser)
	require.NoError(t, err)

	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	rec := httptest.NewRecorder()
	f.e.ServeHTTP(rec, req)
	return rec
}

func (f *fixture) card(t *testing.T, id int64, number string, expiry time.Time) model.Card {
	t.Helper()
	ct, err := f.cipher.Encrypt(number)
	require.NoError(t, err)
	return model.Card{
		ID:               id,
		NumberCiphertext: ct,
		ExpiryDate:       expiry,
		Status:           model.CardStatusActive,
		Balance:          decimal.RequireFromString("12.5"),
		OwnerID:          7,
	}
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errors.ErrorResponse {
	t.Helper()
	var body errors.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestTransfer_Success(t *testing.T) {
	f := newFixture(t)
	txn := &model.Transaction{
		ID:         uuid.New(),
		FromCardID: 1,
		ToCardID:   2,
		Amount:     decimal.RequireFromString("25.5"),
		Timestamp:  testNow,
		Status:     model.TransactionStatusSuccess,
	}
	f.transfers.On("TransferBetweenCards", mock.Anything, int64(1), int64(2), int64(7),
		mock.MatchedBy(func(d decimal.Decimal) bool { return d.Equal(decimal.RequireFromString("25.50")) }),
	).Return(txn, nil).Once()

	rec := f.do(t, http.MethodPost, "/api/user/cards/transfer", `{"from_card_id":1,"to_card_id":2,"amount":"25.50"}`)

	require.Equal(t, http.StatusCreated, rec.Code)
	var resp TransferResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, txn.ID.String(), resp.TransactionID)
	assert.Equal(t, "25.50", resp.Amount)
	assert.Equal(t, "SUCCESS", resp.Status)
	f.transfers.AssertExpectations(t)
}

func TestTransfer_RejectsBadRequests(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		wantCode string
	}{
		{"malformed json", `{"from_card_id":`, "INVALID_REQUEST"},
		{"missing amount", `{"from_card_id":1,"to_card_id":2}`, "VALIDATION_ERROR"},
		{"non numeric amount", `{"from_card_id":1,"to_card_id":2,"amount":"ten"}`, "VALIDATION_ERROR"},
		{"missing card", `{"from_card_id":1,"amount":"10"}`, "VALIDATION_ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			rec := f.do(t, http.MethodPost, "/api/user/cards/transfer", tt.body)

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, tt.wantCode, decodeError(t, rec).Code)
			f.transfers.AssertNotCalled(t, "TransferBetweenCards", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
		})
	}
}

func TestTransfer_MapsDomainErrors(t *testing.T) {
	tests := []struct {
		err        error
		wantStatus int
		wantCode   string
	}{
		{errors.ErrInvalidAmount, http.StatusBadRequest, "INVALID_AMOUNT"},
		{errors.ErrSameCardTransfer, http.StatusBadRequest, "SAME_CARD_TRANSFER"},
		{errors.ErrCardNotFound, http.StatusNotFound, "CARD_NOT_FOUND"},
		{errors.ErrNotOwner, http.StatusForbidden, "NOT_OWNER"},
		{errors.ErrCardExpired, http.StatusUnprocessableEntity, "CARD_EXPIRED"},
		{errors.ErrInsufficientFunds, http.StatusUnprocessableEntity, "INSUFFICIENT_FUNDS"},
		{errors.ErrConcurrencyTimeout, http.StatusServiceUnavailable, "CONCURRENCY_TIMEOUT"},
		{errors.ErrPersistenceFailure, http.StatusInternalServerError, "PERSISTENCE_FAILURE"},
	}

	for _, tt := range tests {
		t.Run(tt.wantCode, func(t *testing.T) {
			f := newFixture(t)
			f.transfers.On("TransferBetweenCards", mock.Anything, int64(1), int64(2), int64(7), mock.Anything).
				Return(nil, tt.err).Once()

			rec := f.do(t, http.MethodPost, "/api/user/cards/transfer", `{"from_card_id":1,"to_card_id":2,"amount":"10"}`)

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.wantCode, decodeError(t, rec).Code)
		})
	}
}

func TestCardHandler_ListMyCardsMasksNumbers(t *testing.T) {
	f := newFixture(t)
	cards := []model.Card{
		f.card(t, 1, "4111111111111111", time.Date(2030, 1, 31, 0, 0, 0, 0, time.UTC)),
		f.card(t, 2, "4242424242424242", time.Date(2025, 5, 31, 0, 0, 0, 0, time.UTC)),
	}
	f.cards.On("ListUserCards", mock.Anything, int64(7)).Return(cards, nil).Once()

	rec := f.do(t, http.MethodGet, "/api/user/cards", "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), "4111111111111111")
	assert.NotContains(t, rec.Body.String(), cards[0].NumberCiphertext)

	var resp []CardResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp, 2)
	assert.Equal(t, "**** **** **** 1111", resp[0].Number)
	assert.Equal(t, "ACTIVE", resp[0].Status)
	assert.Equal(t, "2030-01-31", resp[0].ExpiryDate)
	assert.Equal(t, "12.50", resp[0].Balance)
	assert.Equal(t, "**** **** **** 4242", resp[1].Number)
	assert.Equal(t, model.StatusExpired, resp[1].Status)
}

func TestCardHandler_GetMyCard(t *testing.T) {
	f := newFixture(t)
	card := f.card(t, 3, "4111111111111111", time.Date(2030, 1, 31, 0, 0, 0, 0, time.UTC))
	f.cards.On("GetUserCard", mock.Anything, int64(3), int64(7)).Return(&card, nil).Once()
	f.cards.On("GetUserCard", mock.Anything, int64(4), int64(7)).Return(nil, errors.ErrNotOwner).Once()

	rec := f.do(t, http.MethodGet, "/api/user/cards/3", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), "4111111111111111")

	var resp CardResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "**** **** **** 1111", resp.Number)
	assert.Equal(t, "12.50", resp.Balance)

	rec = f.do(t, http.MethodGet, "/api/user/cards/4", "")
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "NOT_OWNER", decodeError(t, rec).Code)
	f.cards.AssertExpectations(t)
}

func TestCardHandler_GetBalance(t *testing.T) {
	f := newFixture(t)
	f.cards.On("GetBalance", mock.Anything, int64(3), int64(7)).Return(decimal.RequireFromString("42"), nil).Once()

	rec := f.do(t, http.MethodGet, "/api/user/cards/3/balance", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"card_id":3,"balance":"42.00"}`, rec.Body.String())

	rec = f.do(t, http.MethodGet, "/api/user/cards/abc/balance", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "INVALID_ID", decodeError(t, rec).Code)
	f.cards.AssertExpectations(t)
}

func TestCardHandler_RequestBlock(t *testing.T) {
	f := newFixture(t)
	f.cards.On("RequestBlock", mock.Anything, int64(3), int64(7)).Return(&model.BlockRequest{
		ID: 1, CardID: 3, UserID: 7, RequestedAt: testNow, Status: model.BlockRequestPending,
	}, nil).Once()
	f.cards.On("RequestBlock", mock.Anything, int64(4), int64(7)).Return(nil, errors.ErrNotOwner).Once()

	rec := f.do(t, http.MethodPost, "/api/user/cards/3/block-request", "")
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"PENDING"`)

	rec = f.do(t, http.MethodPost, "/api/user/cards/4/block-request", "")
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestAdminHandler_CreateCard(t *testing.T) {
	f := newFixture(t)
	created := f.card(t, 9, "4111111111111111", time.Date(2030, 1, 31, 0, 0, 0, 0, time.UTC))
	f.cards.On("CreateCard", mock.Anything, mock.MatchedBy(func(in service.CreateCardInput) bool {
		return in.Number == "4111 1111 1111 1111" &&
			in.ExpiryDate.Equal(time.Date(2030, 1, 31, 0, 0, 0, 0, time.UTC)) &&
			in.Status == model.CardStatusBlocked &&
			in.Balance.Equal(decimal.RequireFromString("12.5")) &&
			in.OwnerID == 7
	})).Return(&created, nil).Once()

	rec := f.do(t, http.MethodPost, "/api/admin/cards",
		`{"number":"4111 1111 1111 1111","expiry_date":"2030-01-31","status":"BLOCKED","balance":"12.50","owner_id":7}`)

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Contains(t, rec.Body.String(), `"number":"**** **** **** 1111"`)
	f.cards.AssertExpectations(t)
}

func TestAdminHandler_CreateCardValidation(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"bad date", `{"number":"4111111111111111","expiry_date":"31/01/2030","owner_id":7}`},
		{"expired status", `{"number":"4111111111111111","expiry_date":"2030-01-31","status":"EXPIRED","owner_id":7}`},
		{"missing owner", `{"number":"4111111111111111","expiry_date":"2030-01-31"}`},
		{"bad balance", `{"number":"4111111111111111","expiry_date":"2030-01-31","balance":"lots","owner_id":7}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			rec := f.do(t, http.MethodPost, "/api/admin/cards", tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			f.cards.AssertNotCalled(t, "CreateCard", mock.Anything, mock.Anything)
		})
	}
}

func TestAdminHandler_ListCards(t *testing.T) {
	tests := []struct {
		name       string
		query      string
		setup      func(m *MockCardService)
		wantStatus int
	}{
		{
			name:       "all",
			setup:      func(m *MockCardService) { m.On("ListCards", mock.Anything, model.CardStatus("")).Return([]model.Card{}, nil).Once() },
			wantStatus: http.StatusOK,
		},
		{
			name:       "blocked",
			query:      "?status=blocked",
			setup:      func(m *MockCardService) { m.On("ListCards", mock.Anything, model.CardStatusBlocked).Return([]model.Card{}, nil).Once() },
			wantStatus: http.StatusOK,
		},
		{
			name:  "expired",
			query: "?status=EXPIRED",
			setup: func(m *MockCardService) {
				m.On("ListExpiringBefore", mock.Anything, testNow).Return([]model.Card{}, nil).Once()
			},
			wantStatus: http.StatusOK,
		},
		{
			name:       "unknown",
			query:      "?status=LOST",
			setup:      func(*MockCardService) {},
			wantStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			tt.setup(f.cards)

			rec := f.do(t, http.MethodGet, "/api/admin/cards"+tt.query, "")

			assert.Equal(t, tt.wantStatus, rec.Code)
			f.cards.AssertExpectations(t)
		})
	}
}

func TestAdminHandler_ListExpiring(t *testing.T) {
	f := newFixture(t)
	bound := time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)
	f.cards.On("ListExpiringBefore", mock.Anything, bound).Return([]model.Card{}, nil).Once()

	rec := f.do(t, http.MethodGet, "/api/admin/cards/expiring?date=2025-07-01", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())

	rec = f.do(t, http.MethodGet, "/api/admin/cards/expiring", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "INVALID_DATE", decodeError(t, rec).Code)
	f.cards.AssertExpectations(t)
}

func TestAdminHandler_GetCard(t *testing.T) {
	f := newFixture(t)
	card := f.card(t, 5, "4242424242424242", time.Date(2030, 1, 31, 0, 0, 0, 0, time.UTC))
	card.OwnerID = 99
	f.cards.On("GetCard", mock.Anything, int64(5)).Return(&card, nil).Once()
	f.cards.On("GetCard", mock.Anything, int64(6)).Return(nil, errors.ErrCardNotFound).Once()

	rec := f.do(t, http.MethodGet, "/api/admin/cards/5", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"owner_id":99`)

	rec = f.do(t, http.MethodGet, "/api/admin/cards/6", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	f.cards.AssertExpectations(t)
}

func TestAdminHandler_Transitions(t *testing.T) {
	f := newFixture(t)
	blocked := f.card(t, 5, "4111111111111111", time.Date(2030, 1, 31, 0, 0, 0, 0, time.UTC))
	blocked.Status = model.CardStatusBlocked
	f.cards.On("BlockCard", mock.Anything, int64(5)).Return(&blocked, nil).Once()
	f.cards.On("ActivateCard", mock.Anything, int64(5)).Return(nil, errors.ErrInvalidCardState).Once()
	f.cards.On("DeleteCard", mock.Anything, int64(5)).Return(nil).Once()
	f.cards.On("DeleteCard", mock.Anything, int64(6)).Return(errors.ErrNonZeroBalance).Once()

	rec := f.do(t, http.MethodPost, "/api/admin/cards/5/block", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"BLOCKED"`)

	rec = f.do(t, http.MethodPatch, "/api/admin/cards/5/activate", "")
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "INVALID_CARD_STATE", decodeError(t, rec).Code)

	rec = f.do(t, http.MethodDelete, "/api/admin/cards/5", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = f.do(t, http.MethodDelete, "/api/admin/cards/6", "")
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "NON_ZERO_BALANCE", decodeError(t, rec).Code)
	f.cards.AssertExpectations(t)
}

func TestAdminHandler_ListBlockRequests(t *testing.T) {
	f := newFixture(t)
	f.cards.On("ListPendingBlockRequests", mock.Anything).Return([]model.BlockRequest{
		{ID: 1, CardID: 3, UserID: 7, RequestedAt: testNow, Status: model.BlockRequestPending},
	}, nil).Once()

	rec := f.do(t, http.MethodGet, "/api/admin/block-requests", "")

	require.Equal(t, http.StatusOK, rec.Code)
	var resp []BlockRequestResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp, 1)
	assert.Equal(t, int64(3), resp[0].CardID)
}

func TestUserHandler(t *testing.T) {
	f := newFixture(t)
	f.users.On("CreateUser", mock.Anything, mock.MatchedBy(func(u *model.User) bool {
		return u.Username == "bob" && u.Email == "bob@example.com" && u.Role == model.RoleAdmin
	})).Return(&model.User{ID: 2, Username: "bob", Email: "bob@example.com", Role: model.RoleAdmin}, nil).Once()
	f.users.On("GetUser", mock.Anything, int64(99)).Return(nil, errors.ErrUserNotFound).Once()

	rec := f.do(t, http.MethodPost, "/api/admin/users", `{"username":"bob","email":"bob@example.com","role":"ADMIN"}`)
	assert.Equal(t, http.StatusCreated, rec.Code)

	rec = f.do(t, http.MethodPost, "/api/admin/users", `{"username":"bob","email":"not-an-email"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodGet, "/api/admin/users/99", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "USER_NOT_FOUND", decodeError(t, rec).Code)
	f.users.AssertExpectations(t)
}

func TestUserHandler_UpdateAndDelete(t *testing.T) {
	f := newFixture(t)
	f.users.On("UpdateUser", mock.Anything, int64(2), mock.MatchedBy(func(in service.UpdateUserInput) bool {
		return in.Username == nil && in.Email != nil && *in.Email == "new@example.com"
	})).Return(&model.User{ID: 2, Username: "bob", Email: "new@example.com", Role: model.RoleUser}, nil).Once()
	f.users.On("DeleteUser", mock.Anything, int64(2)).Return(errors.ErrUserHasActiveCards).Once()
	f.users.On("DeleteUser", mock.Anything, int64(3)).Return(nil).Once()

	rec := f.do(t, http.MethodPut, "/api/admin/users/2", `{"email":"new@example.com"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"email":"new@example.com"`)

	rec = f.do(t, http.MethodPut, "/api/admin/users/2", `{"username":"x"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "VALIDATION_ERROR", decodeError(t, rec).Code)

	rec = f.do(t, http.MethodDelete, "/api/admin/users/2", "")
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "USER_HAS_ACTIVE_CARDS", decodeError(t, rec).Code)

	rec = f.do(t, http.MethodDelete, "/api/admin/users/3", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	f.users.AssertExpectations(t)
}
