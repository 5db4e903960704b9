package main

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/atinyakov/CredKeeper/internal/models"
	"github.com/atinyakov/CredKeeper/internal/prompt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeConsole answers ReadLine and ReadSecret from a fixed list of lines.
type fakeConsole struct {
	lines []string
}

func (c *fakeConsole) ReadLine(string) (string, bool, error) {
	if len(c.lines) == 0 {
		return "", false, nil
	}
	line := c.lines[0]
	c.lines = c.lines[1:]
	return line, true, nil
}

func (c *fakeConsole) ReadSecret(label string) (string, bool, error) {
	return c.ReadLine(label)
}

func newTestApp(t *testing.T, lines []string, answers ...prompt.Answer) *app {
	t.Helper()
	a := newApp(&bytes.Buffer{})
	a.console = &fakeConsole{lines: lines}
	a.prompters = prompt.NewScripted(answers...).Factory()
	t.Cleanup(func() { _ = a.close() })
	return a
}

// run executes one command line against a and returns its output.
func run(t *testing.T, a *app, args ...string) (string, error) {
	t.Helper()
	var buf bytes.Buffer
	a.out = &buf
	root := newRootCmd(a)
	root.SetArgs(append([]string{
		"--store", "memory",
		"--config", filepath.Join(t.TempDir(), "absent.json"),
	}, args...))
	err := root.Execute()
	return buf.String(), err
}

func TestDomainAndCredentials(t *testing.T) {
	a := newTestApp(t, nil)

	_, err := run(t, a, "domain", "add", "example", "Example Site")
	require.NoError(t, err)
	_, err = run(t, a, "add", "example", "alice", "--prop", "pass=secret")
	require.NoError(t, err)

	out, err := run(t, a, "get", "example")
	require.NoError(t, err)
	assert.Contains(t, out, "user: alice")
	assert.Contains(t, out, "pass: secret")

	out, err = run(t, a, "domains")
	require.NoError(t, err)
	assert.Contains(t, out, "Example Site (example)")
	assert.Contains(t, out, "* alice [usernamePassword]")
	assert.Contains(t, out, "(jboss-org) [system]")
}

func TestAdd_ReadsSecretFromConsole(t *testing.T) {
	a := newTestApp(t, []string{"tok-123", ""})

	_, err := run(t, a, "domain", "add", "example")
	require.NoError(t, err)
	_, err = run(t, a, "add", "example", "bob", "--type", "token")
	require.NoError(t, err)

	out, err := run(t, a, "get", "example", "bob", "-t", "token")
	require.NoError(t, err)
	assert.Contains(t, out, "token: tok-123")

	_, err = run(t, a, "add", "example", "carol")
	assert.ErrorIs(t, err, errCancelled)
}

func TestRemoveAndDefault(t *testing.T) {
	a := newTestApp(t, nil)

	_, err := run(t, a, "domain", "add", "example")
	require.NoError(t, err)
	_, err = run(t, a, "add", "example", "alice", "--prop", "pass=a")
	require.NoError(t, err)
	_, err = run(t, a, "add", "example", "bob", "--prop", "pass=b")
	require.NoError(t, err)

	_, err = run(t, a, "default", "example", "bob")
	require.NoError(t, err)
	out, err := run(t, a, "get", "example")
	require.NoError(t, err)
	assert.Contains(t, out, "user: bob")

	_, err = run(t, a, "default", "example", "nobody")
	assert.ErrorIs(t, err, models.ErrInvalidArgument)

	_, err = run(t, a, "rm", "example", "alice")
	require.NoError(t, err)
	_, err = run(t, a, "rm", "example", "alice")
	assert.ErrorIs(t, err, errNotFound)
}

func TestDomainErrors(t *testing.T) {
	a := newTestApp(t, nil)

	_, err := run(t, a, "domain", "add", "example")
	require.NoError(t, err)
	_, err = run(t, a, "domain", "add", "example")
	assert.ErrorContains(t, err, "already exists")

	_, err = run(t, a, "get", "missing")
	assert.ErrorIs(t, err, models.ErrDomainNotFound)

	_, err = run(t, a, "domain", "rm", "jboss-org")
	assert.ErrorContains(t, err, "cannot be removed")

	_, err = run(t, a, "add", "example", "alice", "--type", "nope", "--prop", "pass=x")
	assert.ErrorIs(t, err, models.ErrUnknownType)

	_, err = run(t, a, "domain", "rm", "example")
	require.NoError(t, err)
	_, err = run(t, a, "get", "example")
	assert.ErrorIs(t, err, models.ErrDomainNotFound)
}

func TestGet_PromptedUsernameChanged(t *testing.T) {
	a := newTestApp(t, nil, prompt.Answer{User: "bob2", Secret: "pw"})

	_, err := run(t, a, "domain", "add", "example")
	require.NoError(t, err)
	_, err = run(t, a, "add", "example", "bob", "--prompted")
	require.NoError(t, err)

	out, err := run(t, a, "get", "example", "bob")
	require.NoError(t, err)
	assert.Contains(t, out, `username changed from "bob" to "bob2"`)
	assert.Contains(t, out, "pass: pw")

	// no answers left, the prompt is cancelled
	_, err = run(t, a, "get", "example", "bob")
	assert.ErrorIs(t, err, errNotFound)
}

func TestTypes(t *testing.T) {
	a := newTestApp(t, nil)

	out, err := run(t, a, "types")
	require.NoError(t, err)
	assert.Contains(t, out, "usernamePassword (default)")
	assert.Contains(t, out, "token\n")
}

func TestShell(t *testing.T) {
	a := newTestApp(t, []string{
		"help",
		"",
		"domain add ex",
		"add ex carol --prop pass=x",
		"get ex",
		"bogus",
		"exit",
		"types",
	})

	out, err := run(t, a, "shell")
	require.NoError(t, err)
	assert.Contains(t, out, shellHelp)
	assert.Contains(t, out, "user: carol")
	assert.Contains(t, out, "pass: x")
	assert.Contains(t, out, "Error: unknown command")
	assert.Contains(t, out, "Bye")
	assert.NotContains(t, out, "(default)")
}

func TestShell_EndOfInput(t *testing.T) {
	a := newTestApp(t, []string{"types"})

	out, err := run(t, a, "shell")
	require.NoError(t, err)
	assert.Contains(t, out, "usernamePassword (default)")
}
