package db

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"bankcards/internal/model"
)

// Open returns a connected GORM DB instance for driver ("mysql", "postgres" or "sqlite").
// lockTimeout becomes the sqlite busy timeout; the other drivers take it per transaction.
func Open(driver, dsn string, lockTimeout time.Duration, log logrus.FieldLogger) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch driver {
	case "mysql":
		dialector = mysql.Open(dsn)
	case "postgres":
		dialector = postgres.Open(dsn)
	case "sqlite":
		dialector = sqlite.Open(SQLiteDSN(dsn, lockTimeout))
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		TranslateError: true,
		NowFunc:        func() time.Time { return time.Now().UTC() },
		Logger: logger.New(log, logger.Config{
			SlowThreshold:             200 * time.Millisecond,
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
		}),
	})
	if err != nil {
		return nil, fmt.Errorf("connect %s: %w", driver, err)
	}

	if driver == "sqlite" && sqliteInMemory(dsn) {
		// Shared-cache table locks fail fast instead of waiting, so in-memory
		// databases get a single connection and callers queue on the pool.
		sqlDB, err := db.DB()
		if err != nil {
			return nil, fmt.Errorf("connect %s: %w", driver, err)
		}
		sqlDB.SetMaxOpenConns(1)
	}
	return db, nil
}

// SQLiteDSN makes every transaction take the write lock at BEGIN and wait up to
// lockTimeout for it. sqlite has no row locks, so this is what serializes two
// transfers touching the same cards. Parameters already present in dsn win.
func SQLiteDSN(dsn string, lockTimeout time.Duration) string {
	path, rawQuery, _ := strings.Cut(dsn, "?")
	q, err := url.ParseQuery(rawQuery)
	if err != nil {
		return dsn
	}

	if q.Get("_txlock") == "" {
		q.Set("_txlock", "immediate")
	}
	if lockTimeout > 0 && q.Get("_busy_timeout") == "" && q.Get("_timeout") == "" {
		q.Set("_busy_timeout", strconv.FormatInt(lockTimeout.Milliseconds(), 10))
	}
	return path + "?" + q.Encode()
}

func sqliteInMemory(dsn string) bool {
	path, rawQuery, _ := strings.Cut(dsn, "?")
	if path == "" || strings.Contains(path, ":memory:") {
		return true
	}
	q, err := url.ParseQuery(rawQuery)
	return err == nil && q.Get("mode") == "memory"
}

// Models lists every persisted model in dependency order.
func Models() []interface{} {
	return []interface{}{
		&model.User{},
		&model.Card{},
		&model.Transaction{},
		&model.BlockRequest{},
	}
}

// Migrate creates or updates the schema.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(Models()...); err != nil {
		return fmt.Errorf("auto-migrate: %w", err)
	}
	return nil
}

// Reset drops every table so the next Migrate starts clean.
func Reset(db *gorm.DB, log logrus.FieldLogger) {
	models := Models()
	for i := len(models) - 1; i >= 0; i-- {
		if err := db.Migrator().DropTable(models[i]); err != nil {
			log.WithError(err).Warn("failed to drop table (may not exist)")
		}
	}
	log.Info("tables dropped")
}
