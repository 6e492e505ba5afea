package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"

	"bankcards/docs"
	"bankcards/internal/app"
	"bankcards/internal/cache"
	"bankcards/internal/cardnumber"
	"bankcards/internal/config"
	"bankcards/internal/handler"
	"bankcards/internal/jobs"
	"bankcards/internal/router"
	"bankcards/internal/service"
)

// @title Bank Cards API
// @version 1.0
// @description Bank card management with card-to-card transfers between a user's own cards.
// @host localhost:8080
// @BasePath /api
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.
func main() {
	cfg, err := config.Load()
	if err != nil {
		app.NewLogger("info").Fatalf("Failed to load config: %v", err)
	}
	logger := app.NewLogger(cfg.LogLevel)

	cipher, err := cardnumber.NewAESCipher(cfg.CardEncryptionKey)
	if err != nil {
		logger.Fatalf("Card cipher init: %v", err)
	}

	store, closeStore, err := app.OpenStore(cfg, logger)
	if err != nil {
		logger.Fatalf("Store init: %v", err)
	}
	defer closeStore()

	cacheClient := cache.New(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)
	defer cacheClient.Close()
	if err := cacheClient.Ping(context.Background()); err != nil {
		logger.WithError(err).Warn("redis unavailable, continuing without cache")
	}

	// Initialize services
	userService := service.NewUserService(store, cacheClient)
	cardService := service.NewCardService(store, cipher, cacheClient, logger, time.Now)
	transferService := service.NewTransferService(store, cacheClient, logger, time.Now)

	e := echo.New()
	e.HideBanner = true
	router.Register(e, cfg, logger, cacheClient, router.Handlers{
		Cards:     handler.NewCardHandler(cardService, cipher, time.Now),
		Transfers: handler.NewTransferHandler(transferService),
		Admin:     handler.NewAdminHandler(cardService, cipher, time.Now),
		Users:     handler.NewUserHandler(userService),
	})

	scheduler := jobs.NewCron(logger)
	report := jobs.NewExpiryReport(cardService, logger, time.Now, cfg.ExpiryReportWindowDays)
	if _, err := jobs.Schedule(scheduler, cfg.ExpiryReportSchedule, report); err != nil {
		logger.Fatalf("Cron init: %v", err)
	}
	scheduler.Start()

	logger.Infof("Swagger documentation available at: %s", configureSwagger(cfg.SwaggerHost, cfg.ServerPort))

	go func() {
		addr := ":" + cfg.ServerPort
		logger.Infof("Starting server on %s", addr)
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("Server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down")

	<-scheduler.Stop().Done()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(ctx); err != nil {
		logger.WithError(err).Error("graceful shutdown failed")
	}
}

// configureSwagger points the generated docs at SWAGGER_HOST when set and returns the UI address.
func configureSwagger(host, port string) string {
	if host == "" {
		return "http://localhost:" + port + "/swagger/index.html"
	}
	bare := strings.TrimPrefix(strings.TrimPrefix(host, "https://"), "http://")
	docs.SwaggerInfo.Host = bare
	if strings.HasPrefix(host, "http://") || strings.HasPrefix(host, "https://") {
		return host + "/swagger/index.html"
	}
	return "http://" + host + "/swagger/index.html"
}
