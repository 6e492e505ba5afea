// Package app builds the shared runtime pieces used by the server and seed commands.
package app

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"

	"bankcards/internal/config"
	"bankcards/internal/db"
	"bankcards/internal/repository"
	"bankcards/internal/repository/memory"
)

// NewLogger returns a JSON logger at the configured level, falling back to info.
func NewLogger(level string) *logrus.Logger {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetOutput(os.Stdout)
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	logger.SetLevel(lvl)
	return logger
}

// OpenStore opens the configured store, resetting and migrating SQL schemas first.
// The returned close function releases the database pool.
func OpenStore(cfg *config.Config, log logrus.FieldLogger) (repository.Store, func() error, error) {
	if cfg.DBDriver == "memory" {
		log.Warn("using in-memory store; data is lost on exit")
		return memory.New(cfg.LockTimeout), func() error { return nil }, nil
	}

	gormDB, err := db.Open(cfg.DBDriver, cfg.DBDSN, cfg.LockTimeout, log)
	if err != nil {
		return nil, nil, fmt.Errorf("database init: %w", err)
	}

	if cfg.ResetDB {
		log.Warn("RESET_DB=true detected, dropping all tables")
		db.Reset(gormDB, log)
	}
	if err := db.Migrate(gormDB); err != nil {
		return nil, nil, fmt.Errorf("auto-migrate: %w", err)
	}

	sqlDB, err := gormDB.DB()
	if err != nil {
		return nil, nil, fmt.Errorf("database handle: %w", err)
	}
	return repository.NewStore(gormDB, cfg.LockTimeout), sqlDB.Close, nil
}
