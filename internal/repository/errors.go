package repository

import (
	"context"
	stderrors "errors"
	"fmt"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/mattn/go-sqlite3"
	"gorm.io/gorm"

	"bankcards/internal/errors"
)

// normalize maps a GORM or driver error onto the domain taxonomy.
// notFound is returned for gorm.ErrRecordNotFound when set.
func normalize(err error, notFound error) error {
	if err == nil {
		return nil
	}
	if notFound != nil && stderrors.Is(err, gorm.ErrRecordNotFound) {
		return notFound
	}
	if isLockTimeout(err) {
		return fmt.Errorf("%w: %v", errors.ErrConcurrencyTimeout, err)
	}
	return fmt.Errorf("%w: %v", errors.ErrPersistenceFailure, err)
}

// isLockTimeout reports whether err means a lock could not be acquired in time.
func isLockTimeout(err error) bool {
	if stderrors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var mysqlErr *mysql.MySQLError
	if stderrors.As(err, &mysqlErr) {
		// 1205 lock wait timeout, 1213 deadlock victim
		return mysqlErr.Number == 1205 || mysqlErr.Number == 1213
	}

	var pgErr *pgconn.PgError
	if stderrors.As(err, &pgErr) {
		switch pgErr.Code {
		case "55P03", "40P01", "57014":
			return true
		}
		return false
	}

	var sqliteErr sqlite3.Error
	if stderrors.As(err, &sqliteErr) {
		return sqliteErr.Code == sqlite3.ErrBusy || sqliteErr.Code == sqlite3.ErrLocked
	}

	return false
}
