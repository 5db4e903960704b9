package memory

import (
	"context"
	"testing"

	"github.com/atinyakov/CredKeeper/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNode_PutGetKeysChildren(t *testing.T) {
	ctx := context.Background()
	root := New().Root()

	d := root.Node("creds").Node("example")
	require.NoError(t, d.Put(ctx, "id", "example", false))
	require.NoError(t, store.PutBool(ctx, d, "removable", false))
	require.NoError(t, d.Node("alice;usernamePassword").Put(ctx, "pass", "s", true))

	v, err := d.Get(ctx, "id", "")
	require.NoError(t, err)
	assert.Equal(t, "example", v)

	b, err := store.GetBool(ctx, d, "removable", true)
	require.NoError(t, err)
	assert.False(t, b)

	v, err = d.Get(ctx, "missing", "def")
	require.NoError(t, err)
	assert.Equal(t, "def", v)

	keys, err := d.Keys(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"id", "removable"}, keys)

	children, err := d.ChildrenNames(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"alice;usernamePassword"}, children)

	assert.Equal(t, "/creds/example/alice%3BusernamePassword", d.Node("alice;usernamePassword").Path())
}

func TestNode_RemoveNodeAndPrune(t *testing.T) {
	ctx := context.Background()
	root := New().Root()
	base := root.Node("base")

	require.NoError(t, base.Node("a").Put(ctx, "k", "v", false))
	require.NoError(t, base.Node("b").Node("deep").Put(ctx, "k", "v", false))

	require.NoError(t, base.Node("b").RemoveNode(ctx))
	children, err := base.ChildrenNames(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, children)

	// Removing the last key drops the now empty node.
	require.NoError(t, base.Node("a").Remove(ctx, "k"))
	children, err = root.ChildrenNames(ctx)
	require.NoError(t, err)
	assert.Empty(t, children)
}

func TestStore_Locked(t *testing.T) {
	ctx := context.Background()
	s := New()
	n := s.Root().Node("x")
	require.NoError(t, n.Put(ctx, "pass", "secret", true))

	s.SetLocked(true)
	_, err := n.Get(ctx, "pass", "")
	assert.ErrorIs(t, err, store.ErrNoPassword)
	assert.ErrorIs(t, n.Put(ctx, "pass", "other", true), store.ErrNoPassword)
	assert.NoError(t, n.Put(ctx, "plain", "ok", false))

	s.SetLocked(false)
	v, err := n.Get(ctx, "pass", "")
	require.NoError(t, err)
	assert.Equal(t, "secret", v)
}

func TestStore_ObserverAndSnapshot(t *testing.T) {
	ctx := context.Background()
	var got []Notification
	s := New(WithObserver(func(n Notification) { got = append(got, n) }))
	n := s.Root().Node("d")

	require.NoError(t, n.Put(ctx, "k", "v", false))
	_, _ = n.Get(ctx, "other", "")
	require.NoError(t, n.RemoveNode(ctx))

	require.Len(t, got, 3)
	assert.Equal(t, Put, got[0].Kind)
	assert.Equal(t, Accessed, got[1].Kind)
	assert.Equal(t, "other", got[1].Key)
	assert.Equal(t, Removed, got[2].Kind)

	require.NoError(t, s.Root().Node("a").Node("b").Put(ctx, "k", "v", false))
	snap := s.Snapshot()

	restored := New()
	restored.Restore(snap)
	v, err := restored.Root().Node("a").Node("b").Get(ctx, "k", "")
	require.NoError(t, err)
	assert.Equal(t, "v", v)
}
