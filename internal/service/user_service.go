package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"bankcards/internal/cache"
	"bankcards/internal/errors"
	"bankcards/internal/model"
	"bankcards/internal/repository"
)

const userCacheTTL = 5 * time.Minute

// UserService exposes user operations needed to issue cards.
type UserService interface {
	CreateUser(ctx context.Context, user *model.User) (*model.User, error)
	GetUser(ctx context.Context, id int64) (*model.User, error)
	FindByUsername(ctx context.Context, username string) (*model.User, error)
	ListUsers(ctx context.Context) ([]model.User, error)
	UpdateUser(ctx context.Context, id int64, in UpdateUserInput) (*model.User, error)
	DeleteUser(ctx context.Context, id int64) error
}

// UpdateUserInput carries the fields an administrator may change. Nil fields stay as they are.
type UpdateUserInput struct {
	Username *string
	Email    *string
}

type userService struct {
	repo  repository.UserRepository
	cards repository.CardRepository
	cache *cache.Client
}

// NewUserService builds a UserService over the store's users and cards.
func NewUserService(store repository.Store, cache *cache.Client) UserService {
	return &userService{repo: store.Users(), cards: store.Cards(), cache: cache}
}

func (s *userService) cacheKey(id int64) string {
	return fmt.Sprintf("user:%d", id)
}

func (s *userService) CreateUser(ctx context.Context, user *model.User) (*model.User, error) {
	user.Username = strings.TrimSpace(user.Username)
	user.Email = strings.ToLower(strings.TrimSpace(user.Email))
	if user.Role == "" {
		user.Role = model.RoleUser
	}
	if user.Role != model.RoleUser && user.Role != model.RoleAdmin {
		return nil, fmt.Errorf("unknown role %q", user.Role)
	}

	if err := s.repo.Create(ctx, user); err != nil {
		return nil, err
	}
	_ = s.cache.Delete(ctx, s.cacheKey(user.ID))
	return user, nil
}

func (s *userService) GetUser(ctx context.Context, id int64) (*model.User, error) {
	if data, _ := s.cache.Get(ctx, s.cacheKey(id)); data != nil {
		var cached model.User
		if err := json.Unmarshal(data, &cached); err == nil {
			return &cached, nil
		}
	}

	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if payload, err := json.Marshal(user); err == nil {
		_ = s.cache.Set(ctx, s.cacheKey(id), payload, userCacheTTL)
	}
	return user, nil
}

func (s *userService) FindByUsername(ctx context.Context, username string) (*model.User, error) {
	return s.repo.FindByUsername(ctx, strings.TrimSpace(username))
}

func (s *userService) ListUsers(ctx context.Context) ([]model.User, error) {
	return s.repo.List(ctx)
}

func (s *userService) UpdateUser(ctx context.Context, id int64, in UpdateUserInput) (*model.User, error) {
	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if in.Username != nil {
		user.Username = strings.TrimSpace(*in.Username)
	}
	if in.Email != nil {
		user.Email = strings.ToLower(strings.TrimSpace(*in.Email))
	}

	if err := s.repo.Update(ctx, user); err != nil {
		return nil, err
	}
	_ = s.cache.Delete(ctx, s.cacheKey(id))
	return user, nil
}

// DeleteUser removes a user unless they still own an active card.
func (s *userService) DeleteUser(ctx context.Context, id int64) error {
	if _, err := s.repo.FindByID(ctx, id); err != nil {
		return err
	}

	cards, err := s.cards.FindByOwner(ctx, id)
	if err != nil {
		return err
	}
	for _, c := range cards {
		if c.Status == model.CardStatusActive {
			return errors.ErrUserHasActiveCards
		}
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	_ = s.cache.Delete(ctx, s.cacheKey(id))
	return nil
}
