package app

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bankcards/internal/config"
	"bankcards/internal/model"
	"bankcards/internal/repository/memory"
)

func TestNewLogger(t *testing.T) {
	assert.Equal(t, logrus.DebugLevel, NewLogger("debug").GetLevel())
	assert.Equal(t, logrus.InfoLevel, NewLogger("loud").GetLevel())
}

func TestOpenStore(t *testing.T) {
	log, _ := logtest.NewNullLogger()

	t.Run("memory", func(t *testing.T) {
		store, closeFn, err := OpenStore(&config.Config{DBDriver: "memory", LockTimeout: time.Second}, log)
		require.NoError(t, err)
		assert.IsType(t, &memory.Store{}, store)
		assert.NoError(t, closeFn())
	})

	t.Run("sqlite migrates and survives reset", func(t *testing.T) {
		cfg := &config.Config{
			DBDriver:    "sqlite",
			DBDSN:       filepath.Join(t.TempDir(), "cards.db"),
			LockTimeout: time.Second,
		}
		store, closeFn, err := OpenStore(cfg, log)
		require.NoError(t, err)
		require.NoError(t, store.Users().Create(context.Background(), &model.User{Username: "alice", Email: "a@example.com"}))
		require.NoError(t, closeFn())

		cfg.ResetDB = true
		store, closeFn, err = OpenStore(cfg, log)
		require.NoError(t, err)
		defer closeFn()

		users, err := store.Users().List(context.Background())
		require.NoError(t, err)
		assert.Empty(t, users)
	})

	t.Run("unknown driver", func(t *testing.T) {
		_, _, err := OpenStore(&config.Config{DBDriver: "oracle"}, log)
		assert.Error(t, err)
	})
}
