package storage

import (
	"context"
	"fmt"
	"net/url"
	"path/filepath"
	"testing"

	"github.com/atinyakov/CredKeeper/internal/config"
	"github.com/atinyakov/CredKeeper/internal/keychain"
	"github.com/atinyakov/CredKeeper/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zalando/go-keyring"
	"go.uber.org/zap"
)

func sqliteOptions(t *testing.T, store string) *config.Options {
	opts := config.Default()
	opts.Store = store
	opts.DatabaseDSN = fmt.Sprintf("file:%s?mode=memory&cache=shared", url.PathEscape(t.Name()))
	opts.PrefsFile = filepath.Join(t.TempDir(), "prefs.toml")
	return opts
}

func TestOpen_Memory(t *testing.T) {
	opts := config.Default()
	opts.Store = config.StoreMemory

	s, err := Open(context.Background(), opts, zap.NewNop())
	require.NoError(t, err)
	defer s.Close()
	assert.False(t, s.Locked())
	require.NoError(t, s.Secure.Put(context.Background(), "k", "v", true))
}

func TestOpen_UnknownStore(t *testing.T) {
	opts := config.Default()
	opts.Store = "cloud"

	_, err := Open(context.Background(), opts, zap.NewNop())
	assert.ErrorIs(t, err, models.ErrInvalidArgument)
}

func TestOpen_FilePrefsWithLockedSecureStore(t *testing.T) {
	keyring.MockInit()
	ctx := context.Background()
	opts := sqliteOptions(t, config.StoreFile)

	s, err := Open(context.Background(), opts, zap.NewNop())
	require.NoError(t, err)
	defer s.Close()

	assert.True(t, s.Locked())
	err = s.Secure.Node("example").Put(ctx, "pass", "secret", true)
	assert.ErrorIs(t, err, models.ErrNoPassword)

	require.NoError(t, s.Unlock(ctx, "master"))
	require.NoError(t, s.Secure.Node("example").Put(ctx, "pass", "secret", true))

	require.NoError(t, s.Prefs.Node("example").Put(ctx, "id", "example", false))
	require.NoError(t, s.Prefs.Flush(ctx))
	assert.FileExists(t, opts.PrefsFile)
}

func TestOpen_SQLUsesKeychainPassword(t *testing.T) {
	keyring.MockInit()
	require.NoError(t, keychain.SetMasterPassword(keychain.Service, keychain.Account, "from-keychain"))
	ctx := context.Background()

	s, err := Open(ctx, sqliteOptions(t, config.StoreSQL), zap.NewNop())
	require.NoError(t, err)
	defer s.Close()

	assert.False(t, s.Locked())
	require.NoError(t, s.Secure.Put(ctx, "pass", "secret", true))
	v, err := s.Secure.Get(ctx, "pass", "")
	require.NoError(t, err)
	assert.Equal(t, "secret", v)
}

func TestOpen_WrongPasswordStaysLocked(t *testing.T) {
	keyring.MockInit()
	ctx := context.Background()
	opts := sqliteOptions(t, config.StoreSQL)
	opts.MasterPassword = "right"

	first, err := Open(ctx, opts, zap.NewNop())
	require.NoError(t, err)
	defer first.Close()
	require.False(t, first.Locked())
	require.NoError(t, first.Secure.Node("example").Put(ctx, "pass", "secret", true))

	opts.MasterPassword = "wrong"
	second, err := Open(ctx, opts, zap.NewNop())
	require.NoError(t, err)
	defer second.Close()
	assert.True(t, second.Locked())

	err = second.Secure.Node("example").Put(ctx, "pass", "other", true)
	assert.ErrorIs(t, err, models.ErrNoPassword)
	assert.ErrorIs(t, second.Unlock(ctx, "still-wrong"), models.ErrWrongPassword)
	assert.True(t, second.Locked())

	require.NoError(t, second.Unlock(ctx, "right"))
	v, err := second.Secure.Node("example").Get(ctx, "pass", "")
	require.NoError(t, err)
	assert.Equal(t, "secret", v)
}

func TestMasterPassword_PrefersOptions(t *testing.T) {
	keyring.MockInit()
	require.NoError(t, keychain.SetMasterPassword(keychain.Service, keychain.Account, "from-keychain"))

	opts := config.Default()
	opts.MasterPassword = "from-flag"
	assert.Equal(t, "from-flag", MasterPassword(opts, zap.NewNop()))

	opts.MasterPassword = ""
	assert.Equal(t, "from-keychain", MasterPassword(opts, zap.NewNop()))
}
