package service

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bankcards/internal/cache"
	"bankcards/internal/errors"
	"bankcards/internal/model"
	"bankcards/internal/repository"
	"bankcards/internal/repository/memory"
)

func TestUserService_CreateUser(t *testing.T) {
	ctx := context.Background()
	svc := NewUserService(memory.New(time.Second), nil)

	user, err := svc.CreateUser(ctx, &model.User{Username: "  alice ", Email: " Alice@Example.COM"})
	require.NoError(t, err)
	assert.NotZero(t, user.ID)
	assert.Equal(t, "alice", user.Username)
	assert.Equal(t, "alice@example.com", user.Email)
	assert.Equal(t, model.RoleUser, user.Role)

	found, err := svc.FindByUsername(ctx, "alice ")
	require.NoError(t, err)
	assert.Equal(t, user.ID, found.ID)

	_, err = svc.CreateUser(ctx, &model.User{Username: "alice", Email: "other@example.com"})
	assert.ErrorIs(t, err, errors.ErrDuplicateUser)

	_, err = svc.CreateUser(ctx, &model.User{Username: "mallory", Email: "m@example.com", Role: "ROOT"})
	assert.Error(t, err)

	users, err := svc.ListUsers(ctx)
	require.NoError(t, err)
	assert.Len(t, users, 1)
}

func TestUserService_GetUserUsesCache(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	svc := NewUserService(memory.New(time.Second), cache.New(mr.Addr(), "", 0))

	admin, err := svc.CreateUser(ctx, &model.User{Username: "root", Email: "root@example.com", Role: model.RoleAdmin})
	require.NoError(t, err)

	got, err := svc.GetUser(ctx, admin.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RoleAdmin, got.Role)
	assert.True(t, mr.Exists("user:1"))

	cached, err := svc.GetUser(ctx, admin.ID)
	require.NoError(t, err)
	assert.Equal(t, "root", cached.Username)

	_, err = svc.GetUser(ctx, 99)
	assert.ErrorIs(t, err, errors.ErrUserNotFound)
}

func TestUserService_UpdateUser(t *testing.T) {
	ctx := context.Background()
	svc := NewUserService(memory.New(time.Second), nil)
	alice, err := svc.CreateUser(ctx, &model.User{Username: "alice", Email: "alice@example.com"})
	require.NoError(t, err)
	_, err = svc.CreateUser(ctx, &model.User{Username: "bob", Email: "bob@example.com"})
	require.NoError(t, err)

	email := " Alice@New.example "
	updated, err := svc.UpdateUser(ctx, alice.ID, UpdateUserInput{Email: &email})
	require.NoError(t, err)
	assert.Equal(t, "alice", updated.Username)
	assert.Equal(t, "alice@new.example", updated.Email)

	taken := "bob"
	_, err = svc.UpdateUser(ctx, alice.ID, UpdateUserInput{Username: &taken})
	assert.ErrorIs(t, err, errors.ErrDuplicateUser)

	stored, err := svc.GetUser(ctx, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice", stored.Username)
	assert.Equal(t, model.RoleUser, stored.Role)

	_, err = svc.UpdateUser(ctx, 99, UpdateUserInput{Username: &taken})
	assert.ErrorIs(t, err, errors.ErrUserNotFound)
}

func TestUserService_DeleteUser(t *testing.T) {
	ctx := context.Background()
	store := memory.New(time.Second)
	svc := NewUserService(store, nil)
	alice, err := svc.CreateUser(ctx, &model.User{Username: "alice", Email: "alice@example.com"})
	require.NoError(t, err)

	card := &model.Card{
		NumberCiphertext:  "ct",
		NumberFingerprint: "fp-1",
		ExpiryDate:        time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC),
		Status:            model.CardStatusActive,
		OwnerID:           alice.ID,
	}
	require.NoError(t, store.Cards().Create(ctx, card))

	assert.ErrorIs(t, svc.DeleteUser(ctx, alice.ID), errors.ErrUserHasActiveCards)

	require.NoError(t, store.WithTransaction(ctx, func(ctx context.Context, tx repository.Store) error {
		locked, err := tx.Cards().FindByIDForUpdate(ctx, card.ID)
		if err != nil {
			return err
		}
		if err := locked.Block(); err != nil {
			return err
		}
		return tx.Cards().Update(ctx, locked)
	}))

	require.NoError(t, svc.DeleteUser(ctx, alice.ID), "blocked cards do not prevent deletion")
	_, err = svc.GetUser(ctx, alice.ID)
	assert.ErrorIs(t, err, errors.ErrUserNotFound)
	assert.ErrorIs(t, svc.DeleteUser(ctx, alice.ID), errors.ErrUserNotFound)
}
