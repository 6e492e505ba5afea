package router

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/sirupsen/logrus"
	echoSwagger "github.com/swaggo/echo-swagger"

	"bankcards/internal/auth"
	"bankcards/internal/cache"
	"bankcards/internal/config"
	"bankcards/internal/handler"
	appmiddleware "bankcards/internal/middleware"
)

// Handlers groups the HTTP handlers mounted by Register.
type Handlers struct {
	Cards     *handler.CardHandler
	Transfers *handler.TransferHandler
	Admin     *handler.AdminHandler
	Users     *handler.UserHandler
}

// Register wires routes and middleware.
func Register(e *echo.Echo, cfg *config.Config, log logrus.FieldLogger, cacheClient *cache.Client, h Handlers) {
	e.Use(middleware.RequestID())
	e.Use(requestLogger(log))
	e.Use(middleware.Recover())

	e.Validator = &CustomValidator{validator: validator.New()}

	e.GET("/healthz", func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})

	e.GET("/swagger/*", echoSwagger.WrapHandler)

	api := e.Group("/api", auth.Middleware(cfg.JWTSecret))

	user := api.Group("/user")
	user.GET("/cards", h.Cards.ListMyCards)
	user.GET("/cards/:id", h.Cards.GetMyCard)
	user.GET("/cards/:id/balance", h.Cards.GetBalance)
	user.POST("/cards/:id/block-request", h.Cards.RequestBlock)
	user.POST("/cards/transfer", h.Transfers.Transfer, appmiddleware.Idempotency(cacheClient, log))

	admin := api.Group("/admin", auth.RequireAdmin)
	admin.POST("/cards", h.Admin.CreateCard)
	admin.GET("/cards", h.Admin.ListCards)
	admin.GET("/cards/expiring", h.Admin.ListExpiring)
	admin.GET("/cards/:id", h.Admin.GetCard)
	admin.POST("/cards/:id/block", h.Admin.BlockCard)
	admin.PATCH("/cards/:id/activate", h.Admin.ActivateCard)
	admin.DELETE("/cards/:id", h.Admin.DeleteCard)
	admin.GET("/block-requests", h.Admin.ListBlockRequests)

	admin.GET("/users", h.Users.ListUsers)
	admin.GET("/users/:id", h.Users.GetUser)
	admin.POST("/users", h.Users.CreateUser)
	admin.PUT("/users/:id", h.Users.UpdateUser)
	admin.DELETE("/users/:id", h.Users.DeleteUser)
}

// requestLogger writes one structured entry per request.
func requestLogger(log logrus.FieldLogger) echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:    true,
		LogURI:       true,
		LogStatus:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogError:     true,
		HandleError:  true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			entry := log.WithFields(logrus.Fields{
				"method":     v.Method,
				"uri":        v.URI,
				"status":     v.Status,
				"latency_ms": v.Latency.Milliseconds(),
				"request_id": v.RequestID,
			})
			switch {
			case v.Status >= http.StatusInternalServerError:
				entry.WithError(v.Error).Error("request failed")
			case v.Error != nil:
				entry.WithError(v.Error).Warn("request rejected")
			default:
				entry.Info("request")
			}
			return nil
		},
	})
}

// CustomValidator wraps validator for Echo.
type CustomValidator struct {
	validator *validator.Validate
}

// Validate implements echo.Validator interface.
func (cv *CustomValidator) Validate(i interface{}) error {
	return cv.validator.Struct(i)
}
