package credtype

import (
	"testing"

	"github.com/atinyakov/CredKeeper/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type namedType struct {
	id  string
	tag string
}

func (n *namedType) ID() string { return n.id }

func (n *namedType) ResolveCredentials(_ models.DomainInfo, _ string, props map[string]string) models.CredentialResult {
	return NewStringPasswordResult(n, props)
}

func TestRegistry_DuplicateIDKeepsFirst(t *testing.T) {
	r := NewRegistry(zap.NewNop())
	first := &namedType{id: "dup", tag: "first"}
	second := &namedType{id: "dup", tag: "second"}

	r.Register(first, false)
	r.Register(second, false)

	got, ok := r.Get("dup")
	require.True(t, ok)
	assert.Same(t, first, got)
	require.Len(t, r.Warnings(), 1)
	assert.Contains(t, r.Warnings()[0], "competing implementations for credential type dup")
}

func TestRegistry_SecondDefaultLosesDefaultStatus(t *testing.T) {
	r := NewRegistry(nil)
	r.Register(UserPassword{}, true)
	r.Register(Token{}, true)

	def, ok := r.Default()
	require.True(t, ok)
	assert.Equal(t, UserPasswordID, def.ID())

	// The loser is still registered, only without default status.
	tok, ok := r.Get(TokenID)
	require.True(t, ok)
	assert.Equal(t, TokenID, tok.ID())
	assert.Len(t, r.Warnings(), 1)
}

func TestRegistry_InvalidRegistrations(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	r := NewRegistry(zap.New(core))

	r.Register(nil, false)
	r.Register(&namedType{}, true)
	r.Register(UserPassword{}, false)

	assert.Len(t, r.List(), 1)
	_, ok := r.Default()
	assert.False(t, ok)
	assert.Len(t, r.Warnings(), 2)

	// The whole batch is logged once.
	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "errors while loading credential types", logs.All()[0].Message)
}

func TestRegistry_ListSortedAndLateRegistration(t *testing.T) {
	r := NewRegistry(nil)
	r.Register(UserPassword{}, true)
	r.Register(Token{}, false)

	ids := func() []string {
		var out []string
		for _, ct := range r.List() {
			out = append(out, ct.ID())
		}
		return out
	}
	assert.Equal(t, []string{TokenID, UserPasswordID}, ids())

	r.Register(&namedType{id: "aaa"}, false)
	assert.Equal(t, []string{"aaa", TokenID, UserPasswordID}, ids())

	r.Register(&namedType{id: "aaa"}, false)
	assert.Len(t, r.Warnings(), 1)
}

func TestRegistry_Clear(t *testing.T) {
	r := NewRegistry(nil)
	r.Register(UserPassword{}, true)
	_, ok := r.Default()
	require.True(t, ok)

	r.Clear()

	_, ok = r.Default()
	assert.False(t, ok)
	assert.Empty(t, r.List())
	assert.Empty(t, r.Warnings())
}

func TestResults(t *testing.T) {
	props := map[string]string{PropertyPass: "secret1"}
	res := UserPassword{}.ResolveCredentials(nil, "alice", props)

	v, err := res.StringValue()
	require.NoError(t, err)
	assert.Equal(t, "secret1", v)
	assert.Equal(t, UserPasswordID, res.Type().ID())

	// Results own a copy of the properties.
	props[PropertyPass] = "changed"
	m := res.ToMap()
	assert.Equal(t, "secret1", m[PropertyPass])
	m[PropertyPass] = "mutated"
	v, _ = res.StringValue()
	assert.Equal(t, "secret1", v)

	tok := Token{}.ResolveCredentials(nil, "bob", map[string]string{PropertyToken: "t", PropertyRefreshToken: "r"})
	_, err = tok.StringValue()
	assert.ErrorIs(t, err, models.ErrUnsupported)
	assert.Equal(t, map[string]string{PropertyToken: "t", PropertyRefreshToken: "r"}, tok.ToMap())

	field, ok := tok.(*MultiFieldResult).Field(PropertyRefreshToken)
	assert.True(t, ok)
	assert.Equal(t, "r", field)
}
