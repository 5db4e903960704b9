package prompt

import (
	"bytes"
	"context"
	"os"
	"testing"

	"github.com/atinyakov/CredKeeper/internal/credtype"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeDomain struct{}

func (fakeDomain) ID() string   { return "example" }
func (fakeDomain) Name() string { return "Example" }

// pipeInput returns a reader already holding input, like redirected stdin.
func pipeInput(t *testing.T, input string) *os.File {
	t.Helper()
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatal(err)
	}
	_, _ = w.WriteString(input)
	w.Close()
	t.Cleanup(func() { r.Close() })
	return r
}

func TestTerminal(t *testing.T) {
	cases := []struct {
		name          string
		input         string
		user          string
		canChangeUser bool
		wantUser      string
		wantSecret    string
		wantSave      bool
	}{
		{"changed user", "bob2\nsecret\ny\n", "bob", true, "bob2", "secret", true},
		{"default user kept", "\nsecret\n\n", "bob", true, "bob", "secret", false},
		{"restricted", "secret\nyes\n", "bob", false, "bob", "secret", true},
		{"no user entered", "\n", "", true, "", "", false},
		{"end of input", "", "bob", true, "", "", false},
		{"empty secret", "\n\n", "bob", true, "", "", false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var out bytes.Buffer
			p := NewTerminal(pipeInput(t, tc.input), &out)
			p.Init(fakeDomain{}, credtype.UserPassword{}, tc.user, tc.canChangeUser)

			require.NoError(t, p.Prompt(context.Background()))
			assert.Equal(t, tc.wantUser, p.Username())
			assert.Equal(t, tc.wantSave, p.SaveChanges())
			if tc.wantUser == "" {
				assert.Nil(t, p.Password())
				return
			}
			v, err := p.Password().StringValue()
			require.NoError(t, err)
			assert.Equal(t, tc.wantSecret, v)
			assert.Contains(t, out.String(), "Credentials for Example")
		})
	}
}

func TestTerminal_TokenType(t *testing.T) {
	var out bytes.Buffer
	p := NewTerminal(pipeInput(t, "tok\nn\n"), &out)
	p.Init(fakeDomain{}, credtype.Token{}, "svc", false)

	require.NoError(t, p.Prompt(context.Background()))
	assert.Equal(t, map[string]string{"token": "tok"}, p.Password().ToMap())
	assert.Contains(t, out.String(), "token: ")
}

func TestTerminal_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := NewTerminal(pipeInput(t, "x\n"), &bytes.Buffer{})
	p.Init(fakeDomain{}, credtype.UserPassword{}, "bob", true)
	assert.ErrorIs(t, p.Prompt(ctx), context.Canceled)
}

func TestScripted(t *testing.T) {
	s := NewScripted(Answer{Secret: "one"}, Answer{User: "carol", Secret: "two", Save: true})
	ctx := context.Background()

	s.Init(fakeDomain{}, credtype.UserPassword{}, "bob", true)
	require.NoError(t, s.Prompt(ctx))
	assert.Equal(t, "bob", s.Username())
	v, err := s.Password().StringValue()
	require.NoError(t, err)
	assert.Equal(t, "one", v)
	assert.False(t, s.SaveChanges())

	s.Init(fakeDomain{}, credtype.UserPassword{}, "bob", false)
	require.NoError(t, s.Prompt(ctx))
	assert.Equal(t, "carol", s.Username())
	assert.True(t, s.SaveChanges())

	s.Init(fakeDomain{}, credtype.UserPassword{}, "bob", true)
	require.NoError(t, s.Prompt(ctx))
	assert.Empty(t, s.Username())
	assert.Nil(t, s.Password())

	assert.Equal(t, []Call{
		{DomainID: "example", TypeID: credtype.UserPasswordID, User: "bob", CanChangeUser: true},
		{DomainID: "example", TypeID: credtype.UserPasswordID, User: "bob", CanChangeUser: false},
		{DomainID: "example", TypeID: credtype.UserPasswordID, User: "bob", CanChangeUser: true},
	}, s.Calls())
}

func TestDisabled(t *testing.T) {
	s := Disabled()
	s.Init(fakeDomain{}, credtype.UserPassword{}, "bob", true)
	require.NoError(t, s.Prompt(context.Background()))
	assert.Empty(t, s.Username())
	assert.Nil(t, s.Password())
	assert.False(t, s.SaveChanges())
}
