package middleware

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"bankcards/internal/auth"
	"bankcards/internal/cache"
	apperrors "bankcards/internal/errors"
)

const (
	// IdempotencyHeader carries the client-chosen key.
	IdempotencyHeader = "Idempotency-Key"
	// ReplayHeader is set on responses served from the idempotency cache.
	ReplayHeader = "X-Idempotency-Replayed"

	responseTTL = 24 * time.Hour
	lockTTL     = 10 * time.Second
)

// storedResponse is what gets cached for a completed request.
type storedResponse struct {
	Status      int             `json:"status"`
	ContentType string          `json:"content_type"`
	Body        json.RawMessage `json:"body"`
}

// bodyRecorder tees the response body so it can be cached after the handler returns.
type bodyRecorder struct {
	http.ResponseWriter
	body bytes.Buffer
}

func (r *bodyRecorder) Write(b []byte) (int, error) {
	r.body.Write(b)
	return r.ResponseWriter.Write(b)
}

// Idempotency replays the stored 2xx response for a repeated Idempotency-Key and rejects
// a duplicate that arrives while the first request is still running. Keys are scoped to the
// authenticated user, so it must run after auth.Middleware. Requests without the header pass through.
// When redis is unavailable the cache client fails open and every request is processed.
func Idempotency(c *cache.Client, log logrus.FieldLogger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ec echo.Context) error {
			key := ec.Request().Header.Get(IdempotencyHeader)
			if key == "" {
				return next(ec)
			}

			claims, err := auth.ClaimsFrom(ec)
			if err != nil {
				return err
			}

			ctx := ec.Request().Context()
			cacheKey := fmt.Sprintf("idempotency:%d:%s", claims.UserID, key)
			lockKey := cacheKey + ":lock"
			entry := log.WithFields(logrus.Fields{"user_id": claims.UserID, "idempotency_key": key})

			if data, _ := c.Get(ctx, cacheKey); data != nil {
				var stored storedResponse
				if err := json.Unmarshal(data, &stored); err == nil {
					entry.Debug("idempotent replay")
					ec.Response().Header().Set(ReplayHeader, "true")
					return ec.Blob(stored.Status, stored.ContentType, stored.Body)
				}
			}

			acquired, _ := c.SetNX(ctx, lockKey, []byte("processing"), lockTTL)
			if !acquired {
				entry.Warn("concurrent request with the same idempotency key")
				return echo.NewHTTPError(http.StatusConflict, apperrors.ErrorResponse{
					Error: "a request with this idempotency key is being processed",
					Code:  "IDEMPOTENCY_CONFLICT",
				})
			}
			defer func() { _ = c.Delete(ctx, lockKey) }()

			res := ec.Response()
			rec := &bodyRecorder{ResponseWriter: res.Writer}
			res.Writer = rec
			err = next(ec)
			res.Writer = rec.ResponseWriter
			if err != nil {
				return err
			}

			if res.Status < 200 || res.Status >= 300 || !json.Valid(rec.body.Bytes()) {
				return nil
			}
			payload, err := json.Marshal(storedResponse{
				Status:      res.Status,
				ContentType: res.Header().Get(echo.HeaderContentType),
				Body:        rec.body.Bytes(),
			})
			if err == nil {
				_ = c.Set(ctx, cacheKey, payload, responseTTL)
			}
			return nil
		}
	}
}
