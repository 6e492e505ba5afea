package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bankcards/internal/model"
)

func TestJWTService_GenerateAndValidate(t *testing.T) {
	svc := NewJWTService("test-secret", time.Minute)

	token, err := svc.GenerateAccessToken(7, model.RoleUser)
	require.NoError(t, err)

	claims, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, int64(7), claims.UserID)
	assert.Equal(t, model.RoleUser, claims.Role)
	assert.False(t, claims.IsAdmin())
}

func TestJWTService_Rejects(t *testing.T) {
	svc := NewJWTService("test-secret", time.Minute)
	other := NewJWTService("other-secret", time.Minute)

	foreign, err := other.GenerateAccessToken(7, model.RoleUser)
	require.NoError(t, err)
	_, err = svc.ValidateToken(foreign)
	assert.Error(t, err)

	expiredSvc := NewJWTService("test-secret", time.Minute)
	expiredSvc.now = func() time.Time { return time.Now().Add(-time.Hour) }
	expired, err := expiredSvc.GenerateAccessToken(7, model.RoleUser)
	require.NoError(t, err)
	_, err = svc.ValidateToken(expired)
	assert.Error(t, err)

	_, err = svc.ValidateToken("not-a-token")
	assert.Error(t, err)
}

func TestMiddleware(t *testing.T) {
	const secret = "test-secret"
	svc := NewJWTService(secret, time.Minute)
	userToken, err := svc.GenerateAccessToken(7, model.RoleUser)
	require.NoError(t, err)
	adminToken, err := svc.GenerateAccessToken(1, model.RoleAdmin)
	require.NoError(t, err)

	e := echo.New()
	api := e.Group("/api", Middleware(secret))
	api.GET("/me", func(c echo.Context) error {
		claims, err := ClaimsFrom(c)
		if err != nil {
			return err
		}
		return c.JSON(http.StatusOK, echo.Map{"user_id": claims.UserID})
	})
	api.GET("/admin", func(c echo.Context) error { return c.NoContent(http.StatusNoContent) }, RequireAdmin)

	tests := []struct {
		name   string
		path   string
		token  string
		status int
	}{
		{"missing token", "/api/me", "", http.StatusUnauthorized},
		{"garbage token", "/api/me", "garbage", http.StatusUnauthorized},
		{"user token", "/api/me", userToken, http.StatusOK},
		{"user on admin route", "/api/admin", userToken, http.StatusForbidden},
		{"admin on admin route", "/api/admin", adminToken, http.StatusNoContent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.token != "" {
				req.Header.Set(echo.HeaderAuthorization, "Bearer "+tt.token)
			}
			rec := httptest.NewRecorder()
			e.ServeHTTP(rec, req)
			assert.Equal(t, tt.status, rec.Code)
		})
	}
}
