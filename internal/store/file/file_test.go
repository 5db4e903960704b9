package file

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/atinyakov/CredKeeper/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpen_MissingFileIsEmpty(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "prefs.toml"))
	require.NoError(t, err)

	children, err := s.Root().ChildrenNames(context.Background())
	require.NoError(t, err)
	assert.Empty(t, children)
}

func TestFlush_RoundTrip(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "prefs.toml")

	s, err := Open(path)
	require.NoError(t, err)
	d := s.Root().Node("credentials").Node("jboss-org")
	require.NoError(t, d.Put(ctx, "id", "jboss-org", false))
	require.NoError(t, store.PutBool(ctx, d, "removable", false))
	require.NoError(t, d.Put(ctx, "user.list", "alice;usernamePassword\nbob;token", false))
	require.NoError(t, s.Root().Flush(ctx))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	reopened, err := Open(path)
	require.NoError(t, err)
	rd := reopened.Root().Node("credentials").Node("jboss-org")

	v, err := rd.Get(ctx, "user.list", "")
	require.NoError(t, err)
	assert.Equal(t, "alice;usernamePassword\nbob;token", v)

	removable, err := store.GetBool(ctx, rd, "removable", true)
	require.NoError(t, err)
	assert.False(t, removable)
}

func TestOpen_InvalidDocument(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prefs.toml")
	require.NoError(t, os.WriteFile(path, []byte("not = [valid"), 0o600))

	_, err := Open(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parsing preferences")
}
