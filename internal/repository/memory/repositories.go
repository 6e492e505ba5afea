package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"bankcards/internal/errors"
	"bankcards/internal/model"
)

type cardRepository struct {
	s   *Store
	uow *unitOfWork
}

func (r *cardRepository) in(u *unitOfWork) *cardRepository {
	return &cardRepository{s: r.s, uow: u}
}

func (r *cardRepository) Create(ctx context.Context, card *model.Card) error {
	if r.uow == nil {
		return r.s.autocommit(ctx, func(u *unitOfWork) error { return r.in(u).Create(ctx, card) })
	}

	taken, err := r.ExistsByFingerprint(ctx, card.NumberFingerprint)
	if err != nil {
		return err
	}
	if taken {
		return errors.ErrDuplicateCard
	}

	now := time.Now().UTC()
	card.ID = r.s.allocCardID()
	card.CreatedAt = now
	card.UpdatedAt = now
	c := *card

	u := r.uow
	u.staged[c.ID] = c
	u.created[c.ID] = true
	u.stage(op{
		check: func() error {
			if _, dup := r.s.fingerprints[c.NumberFingerprint]; dup {
				return errors.ErrDuplicateCard
			}
			return nil
		},
		apply: func() {
			r.s.cards[c.ID] = c
			r.s.fingerprints[c.NumberFingerprint] = c.ID
		},
	})
	return nil
}

func (r *cardRepository) FindByID(ctx context.Context, id int64) (*model.Card, error) {
	var (
		c  model.Card
		ok bool
	)
	if r.uow == nil {
		c, ok = r.s.committedCard(id)
	} else {
		c, ok = r.uow.card(id)
	}
	if !ok {
		return nil, errors.ErrCardNotFound
	}
	return &c, nil
}

func (r *cardRepository) FindByIDForUpdate(ctx context.Context, id int64) (*model.Card, error) {
	if r.uow == nil {
		return r.FindByID(ctx, id)
	}
	if err := r.uow.lock(ctx, id); err != nil {
		return nil, err
	}
	return r.FindByID(ctx, id)
}

// snapshot returns every card visible to this repository, ordered by id.
func (r *cardRepository) snapshot() []model.Card {
	r.s.mu.Lock()
	visible := make(map[int64]model.Card, len(r.s.cards))
	for id, c := range r.s.cards {
		visible[id] = c
	}
	r.s.mu.Unlock()

	if r.uow != nil {
		for id, c := range r.uow.staged {
			visible[id] = c
		}
		for id := range r.uow.deleted {
			delete(visible, id)
		}
	}

	cards := make([]model.Card, 0, len(visible))
	for _, c := range visible {
		cards = append(cards, c)
	}
	sortCards(cards)
	return cards
}

func (r *cardRepository) FindByOwner(ctx context.Context, ownerID int64) ([]model.Card, error) {
	var out []model.Card
	for _, c := range r.snapshot() {
		if c.OwnerID == ownerID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (r *cardRepository) List(ctx context.Context, status model.CardStatus) ([]model.Card, error) {
	var out []model.Card
	for _, c := range r.snapshot() {
		if status == "" || c.Status == status {
			out = append(out, c)
		}
	}
	return out, nil
}

func (r *cardRepository) ListExpiringBefore(ctx context.Context, date time.Time) ([]model.Card, error) {
	cutoff := model.Date(date)
	var out []model.Card
	for _, c := range r.snapshot() {
		if model.Date(c.ExpiryDate).Before(cutoff) {
			out = append(out, c)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].ExpiryDate.Before(out[j].ExpiryDate) })
	return out, nil
}

func (r *cardRepository) ExistsByFingerprint(ctx context.Context, fingerprint string) (bool, error) {
	r.s.mu.Lock()
	_, ok := r.s.fingerprints[fingerprint]
	r.s.mu.Unlock()
	if ok || r.uow == nil {
		return ok, nil
	}

	for _, c := range r.uow.staged {
		if c.NumberFingerprint == fingerprint {
			return true, nil
		}
	}
	return false, nil
}

func (r *cardRepository) Update(ctx context.Context, card *model.Card) error {
	if r.uow == nil {
		return r.s.autocommit(ctx, func(u *unitOfWork) error {
			if err := u.lock(ctx, card.ID); err != nil {
				return err
			}
			return r.in(u).Update(ctx, card)
		})
	}

	u := r.uow
	if !u.holds(card.ID) && !u.created[card.ID] {
		return fmt.Errorf("%w: card %d is not locked by this unit of work", errors.ErrPersistenceFailure, card.ID)
	}
	cur, ok := u.card(card.ID)
	if !ok {
		return errors.ErrCardNotFound
	}

	cur.Balance = card.Balance
	cur.Status = card.Status
	cur.UpdatedAt = time.Now().UTC()
	card.UpdatedAt = cur.UpdatedAt
	u.staged[cur.ID] = cur

	u.stage(op{
		check: r.existsAtCommit(cur.ID),
		apply: func() { r.s.cards[cur.ID] = cur },
	})
	return nil
}

func (r *cardRepository) Delete(ctx context.Context, card *model.Card) error {
	if r.uow == nil {
		return r.s.autocommit(ctx, func(u *unitOfWork) error {
			if err := u.lock(ctx, card.ID); err != nil {
				return err
			}
			return r.in(u).Delete(ctx, card)
		})
	}

	u := r.uow
	if !u.holds(card.ID) {
		return fmt.Errorf("%w: card %d is not locked by this unit of work", errors.ErrPersistenceFailure, card.ID)
	}
	cur, ok := u.card(card.ID)
	if !ok {
		return errors.ErrCardNotFound
	}
	if !cur.Balance.IsZero() {
		return errors.ErrNonZeroBalance
	}

	id := cur.ID
	delete(u.staged, id)
	u.deleted[id] = true
	u.stage(op{
		check: r.existsAtCommit(id),
		apply: func() {
			delete(r.s.cards, id)
			r.s.permits.Delete(id)
		},
	})
	return nil
}

// existsAtCommit must run with the store mutex held.
func (r *cardRepository) existsAtCommit(id int64) func() error {
	u := r.uow
	return func() error {
		if _, ok := r.s.cards[id]; ok || u.created[id] {
			return nil
		}
		return errors.ErrCardNotFound
	}
}

type transactionRepository struct {
	s   *Store
	uow *unitOfWork
}

func (r *transactionRepository) Append(ctx context.Context, txn *model.Transaction) error {
	if r.uow == nil {
		return r.s.autocommit(ctx, func(u *unitOfWork) error {
			return (&transactionRepository{s: r.s, uow: u}).Append(ctx, txn)
		})
	}

	if txn.ID == uuid.Nil {
		txn.ID = uuid.New()
	}
	if txn.Timestamp.IsZero() {
		txn.Timestamp = time.Now().UTC()
	}
	t := *txn
	r.uow.stage(op{apply: func() { r.s.transactions = append(r.s.transactions, t) }})
	return nil
}

func (r *transactionRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.Transaction, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, t := range r.s.transactions {
		if t.ID == id {
			found := t
			return &found, nil
		}
	}
	return nil, errors.ErrTransactionNotFound
}

type userRepository struct {
	s   *Store
	uow *unitOfWork
}

func (r *userRepository) Create(ctx context.Context, user *model.User) error {
	if r.uow == nil {
		return r.s.autocommit(ctx, func(u *unitOfWork) error {
			return (&userRepository{s: r.s, uow: u}).Create(ctx, user)
		})
	}

	if user.Role == "" {
		user.Role = model.RoleUser
	}
	now := time.Now().UTC()
	user.ID = r.s.allocUserID()
	user.CreatedAt = now
	user.UpdatedAt = now
	c := *user

	r.uow.stage(op{
		check: func() error {
			for _, existing := range r.s.users {
				if existing.Username == c.Username || existing.Email == c.Email {
					return errors.ErrDuplicateUser
				}
			}
			return nil
		},
		apply: func() { r.s.users[c.ID] = c },
	})
	return nil
}

func (r *userRepository) Update(ctx context.Context, user *model.User) error {
	if r.uow == nil {
		return r.s.autocommit(ctx, func(u *unitOfWork) error {
			return (&userRepository{s: r.s, uow: u}).Update(ctx, user)
		})
	}

	user.UpdatedAt = time.Now().UTC()
	c := *user
	r.uow.stage(op{
		check: func() error {
			existing, ok := r.s.users[c.ID]
			if !ok {
				return errors.ErrUserNotFound
			}
			for id, other := range r.s.users {
				if id != c.ID && (other.Username == c.Username || other.Email == c.Email) {
					return errors.ErrDuplicateUser
				}
			}
			c.CreatedAt = existing.CreatedAt
			c.Role = existing.Role
			return nil
		},
		apply: func() { r.s.users[c.ID] = c },
	})
	return nil
}

func (r *userRepository) Delete(ctx context.Context, id int64) error {
	if r.uow == nil {
		return r.s.autocommit(ctx, func(u *unitOfWork) error {
			return (&userRepository{s: r.s, uow: u}).Delete(ctx, id)
		})
	}

	r.uow.stage(op{
		check: func() error {
			if _, ok := r.s.users[id]; !ok {
				return errors.ErrUserNotFound
			}
			return nil
		},
		apply: func() { delete(r.s.users, id) },
	})
	return nil
}

func (r *userRepository) FindByID(ctx context.Context, id int64) (*model.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.users[id]
	if !ok {
		return nil, errors.ErrUserNotFound
	}
	return &u, nil
}

func (r *userRepository) FindByUsername(ctx context.Context, username string) (*model.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, u := range r.s.users {
		if u.Username == username {
			found := u
			return &found, nil
		}
	}
	return nil, errors.ErrUserNotFound
}

func (r *userRepository) List(ctx context.Context) ([]model.User, error) {
	r.s.mu.Lock()
	users := make([]model.User, 0, len(r.s.users))
	for _, u := range r.s.users {
		users = append(users, u)
	}
	r.s.mu.Unlock()

	sort.Slice(users, func(i, j int) bool { return users[i].ID < users[j].ID })
	return users, nil
}

type blockRequestRepository struct {
	s   *Store
	uow *unitOfWork
}

func (r *blockRequestRepository) in(u *unitOfWork) *blockRequestRepository {
	return &blockRequestRepository{s: r.s, uow: u}
}

func (r *blockRequestRepository) Create(ctx context.Context, req *model.BlockRequest) error {
	if r.uow == nil {
		return r.s.autocommit(ctx, func(u *unitOfWork) error { return r.in(u).Create(ctx, req) })
	}

	req.ID = r.s.allocRequestID()
	if req.Status == "" {
		req.Status = model.BlockRequestPending
	}
	c := *req
	r.uow.stage(op{apply: func() { r.s.blockRequests[c.ID] = c }})
	return nil
}

func (r *blockRequestRepository) FindByID(ctx context.Context, id int64) (*model.BlockRequest, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	req, ok := r.s.blockRequests[id]
	if !ok {
		return nil, errors.ErrBlockRequestNotFound
	}
	return &req, nil
}

func (r *blockRequestRepository) ListPending(ctx context.Context) ([]model.BlockRequest, error) {
	r.s.mu.Lock()
	var out []model.BlockRequest
	for _, req := range r.s.blockRequests {
		if req.Status == model.BlockRequestPending {
			out = append(out, req)
		}
	}
	r.s.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].RequestedAt.Equal(out[j].RequestedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].RequestedAt.Before(out[j].RequestedAt)
	})
	return out, nil
}

func (r *blockRequestRepository) ResolvePending(ctx context.Context, cardID int64) (int64, error) {
	if r.uow == nil {
		var n int64
		err := r.s.autocommit(ctx, func(u *unitOfWork) error {
			var err error
			n, err = r.in(u).ResolvePending(ctx, cardID)
			return err
		})
		return n, err
	}

	var n int64
	r.s.mu.Lock()
	for _, req := range r.s.blockRequests {
		if req.CardID == cardID && req.Status == model.BlockRequestPending {
			n++
		}
	}
	r.s.mu.Unlock()

	r.uow.stage(op{apply: func() {
		for id, req := range r.s.blockRequests {
			if req.CardID == cardID && req.Status == model.BlockRequestPending {
				req.Status = model.BlockRequestCompleted
				r.s.blockRequests[id] = req
			}
		}
	}})
	return n, nil
}
