// Package memory is an in-process implementation of repository.Store.
//
// Each card has a permit: a channel of capacity one held by at most one unit of work.
// Writes made inside a unit of work are staged and become visible to other callers only
// when the unit of work commits, all at once.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"bankcards/internal/errors"
	"bankcards/internal/model"
	"bankcards/internal/repository"
)

// Store keeps all entities in memory.
type Store struct {
	mu            sync.Mutex
	cards         map[int64]model.Card
	fingerprints  map[string]int64
	transactions  []model.Transaction
	users         map[int64]model.User
	blockRequests map[int64]model.BlockRequest
	nextCardID    int64
	nextUserID    int64
	nextRequestID int64

	permits     sync.Map
	lockTimeout time.Duration
}

var _ repository.Store = (*Store)(nil)

// New creates an empty store. lockTimeout bounds the wait for a card permit; zero waits
// until the context is done.
func New(lockTimeout time.Duration) *Store {
	return &Store{
		cards:         make(map[int64]model.Card),
		fingerprints:  make(map[string]int64),
		users:         make(map[int64]model.User),
		blockRequests: make(map[int64]model.BlockRequest),
		lockTimeout:   lockTimeout,
	}
}

func (s *Store) Cards() repository.CardRepository {
	return &cardRepository{s: s}
}

func (s *Store) Transactions() repository.TransactionRepository {
	return &transactionRepository{s: s}
}

func (s *Store) Users() repository.UserRepository {
	return &userRepository{s: s}
}

func (s *Store) BlockRequests() repository.BlockRequestRepository {
	return &blockRequestRepository{s: s}
}

// WithTransaction runs fn in a new unit of work and commits its staged writes if fn succeeds.
func (s *Store) WithTransaction(ctx context.Context, fn func(ctx context.Context, tx repository.Store) error) error {
	u := newUnitOfWork(s)
	defer u.release()

	if err := fn(ctx, &txStore{uow: u}); err != nil {
		return err
	}
	return u.commit()
}

// Ledger returns a snapshot of committed ledger rows in append order.
func (s *Store) Ledger() []model.Transaction {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Transaction, len(s.transactions))
	copy(out, s.transactions)
	return out
}

// autocommit runs a single write in its own unit of work.
func (s *Store) autocommit(ctx context.Context, fn func(u *unitOfWork) error) error {
	return s.WithTransaction(ctx, func(ctx context.Context, tx repository.Store) error {
		return fn(tx.(*txStore).uow)
	})
}

func (s *Store) permit(id int64) chan struct{} {
	p, _ := s.permits.LoadOrStore(id, make(chan struct{}, 1))
	return p.(chan struct{})
}

func (s *Store) committedCard(id int64) (model.Card, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.cards[id]
	return c, ok
}

func (s *Store) allocCardID() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextCardID++
	return s.nextCardID
}

func (s *Store) allocUserID() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextUserID++
	return s.nextUserID
}

func (s *Store) allocRequestID() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextRequestID++
	return s.nextRequestID
}

func sortCards(cards []model.Card) {
	sort.Slice(cards, func(i, j int) bool { return cards[i].ID < cards[j].ID })
}

// txStore is the view of the store handed to a unit of work.
type txStore struct {
	uow *unitOfWork
}

func (t *txStore) Cards() repository.CardRepository {
	return &cardRepository{s: t.uow.s, uow: t.uow}
}

func (t *txStore) Transactions() repository.TransactionRepository {
	return &transactionRepository{s: t.uow.s, uow: t.uow}
}

func (t *txStore) Users() repository.UserRepository {
	return &userRepository{s: t.uow.s, uow: t.uow}
}

func (t *txStore) BlockRequests() repository.BlockRequestRepository {
	return &blockRequestRepository{s: t.uow.s, uow: t.uow}
}

// WithTransaction joins the enclosing unit of work.
func (t *txStore) WithTransaction(ctx context.Context, fn func(ctx context.Context, tx repository.Store) error) error {
	return fn(ctx, t)
}

// op is one staged write: check runs for every op before any apply runs.
type op struct {
	check func() error
	apply func()
}

type unitOfWork struct {
	s       *Store
	held    map[int64]chan struct{}
	staged  map[int64]model.Card
	created map[int64]bool
	deleted map[int64]bool
	ops     []op
}

func newUnitOfWork(s *Store) *unitOfWork {
	return &unitOfWork{
		s:       s,
		held:    make(map[int64]chan struct{}),
		staged:  make(map[int64]model.Card),
		created: make(map[int64]bool),
		deleted: make(map[int64]bool),
	}
}

// lock acquires the card's permit, waiting at most the store's lock timeout.
func (u *unitOfWork) lock(ctx context.Context, id int64) error {
	if _, ok := u.held[id]; ok {
		return nil
	}

	// Permits exist only for cards that exist.
	if _, ok := u.card(id); !ok {
		return errors.ErrCardNotFound
	}

	p := u.s.permit(id)
	var timeout <-chan time.Time
	if u.s.lockTimeout > 0 {
		t := time.NewTimer(u.s.lockTimeout)
		defer t.Stop()
		timeout = t.C
	}

	select {
	case p <- struct{}{}:
		if _, ok := u.card(id); !ok {
			<-p
			u.s.permits.CompareAndDelete(id, p)
			return errors.ErrCardNotFound
		}
		u.held[id] = p
		return nil
	case <-timeout:
		return fmt.Errorf("%w: card %d", errors.ErrConcurrencyTimeout, id)
	case <-ctx.Done():
		return fmt.Errorf("%w: card %d: %w", errors.ErrConcurrencyTimeout, id, ctx.Err())
	}
}

func (u *unitOfWork) holds(id int64) bool {
	_, ok := u.held[id]
	return ok
}

// card returns the unit of work's view of a card.
func (u *unitOfWork) card(id int64) (model.Card, bool) {
	if u.deleted[id] {
		return model.Card{}, false
	}
	if c, ok := u.staged[id]; ok {
		return c, true
	}
	return u.s.committedCard(id)
}

func (u *unitOfWork) stage(o op) {
	u.ops = append(u.ops, o)
}

func (u *unitOfWork) commit() error {
	u.s.mu.Lock()
	defer u.s.mu.Unlock()

	for _, o := range u.ops {
		if o.check == nil {
			continue
		}
		if err := o.check(); err != nil {
			return err
		}
	}
	for _, o := range u.ops {
		o.apply()
	}
	return nil
}

func (u *unitOfWork) release() {
	for id, p := range u.held {
		<-p
		delete(u.held, id)
	}
}
