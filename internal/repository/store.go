package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"gorm.io/gorm"
)

// Store groups the repositories that take part in one unit of work.
type Store interface {
	Cards() CardRepository
	Transactions() TransactionRepository
	Users() UserRepository
	BlockRequests() BlockRequestRepository
	// WithTransaction runs fn in a single unit of work. If fn returns an error every write made
	// through tx is rolled back and the error is returned unchanged. Card locks taken through
	// tx.Cards().FindByIDForUpdate are held until the unit of work ends.
	WithTransaction(ctx context.Context, fn func(ctx context.Context, tx Store) error) error
}

type gormStore struct {
	db          *gorm.DB
	lockTimeout time.Duration
}

// NewStore creates a GORM-backed store. lockTimeout bounds the wait for a row lock; zero keeps
// the database default.
func NewStore(db *gorm.DB, lockTimeout time.Duration) Store {
	return &gormStore{db: db, lockTimeout: lockTimeout}
}

func (s *gormStore) Cards() CardRepository {
	return NewCardRepository(s.db)
}

func (s *gormStore) Transactions() TransactionRepository {
	return NewTransactionRepository(s.db)
}

func (s *gormStore) Users() UserRepository {
	return NewUserRepository(s.db)
}

func (s *gormStore) BlockRequests() BlockRequestRepository {
	return NewBlockRequestRepository(s.db)
}

// WithTransaction executes fn within a READ COMMITTED database transaction.
func (s *gormStore) WithTransaction(ctx context.Context, fn func(ctx context.Context, tx Store) error) error {
	var fnErr error
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.applyLockTimeout(tx); err != nil {
			return err
		}
		fnErr = fn(ctx, &gormStore{db: tx, lockTimeout: s.lockTimeout})
		return fnErr
	}, s.txOptions())

	if fnErr != nil {
		return fnErr
	}
	return normalize(err, nil)
}

func (s *gormStore) txOptions() *sql.TxOptions {
	if s.db.Dialector.Name() == "sqlite" {
		return nil
	}
	return &sql.TxOptions{Isolation: sql.LevelReadCommitted}
}

func (s *gormStore) applyLockTimeout(tx *gorm.DB) error {
	if s.lockTimeout <= 0 {
		return nil
	}

	switch tx.Dialector.Name() {
	case "postgres":
		return tx.Exec(fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", s.lockTimeout.Milliseconds())).Error
	case "mysql":
		secs := int64(s.lockTimeout / time.Second)
		if secs < 1 {
			secs = 1
		}
		return tx.Exec(fmt.Sprintf("SET SESSION innodb_lock_wait_timeout = %d", secs)).Error
	default:
		// sqlite takes the database write lock at BEGIN and waits up to the busy timeout set by db.Open
		return nil
	}
}
