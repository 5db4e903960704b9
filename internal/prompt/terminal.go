// Package prompt provides models.Prompter implementations: an interactive
// terminal prompter and a scripted one for tests and non-interactive runs.
package prompt

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/atinyakov/CredKeeper/internal/credtype"
	"github.com/atinyakov/CredKeeper/internal/models"
	"golang.org/x/term"
)

// Terminal asks for credentials on a terminal. Input that is not a terminal
// is read line by line, so answers can be piped in. A Terminal serves one
// prompt at a time; Init resets it.
type Terminal struct {
	in     *os.File
	reader *bufio.Reader
	out    io.Writer

	domain        models.DomainInfo
	credType      models.CredentialType
	user          string
	canChangeUser bool

	answeredUser string
	result       models.CredentialResult
	save         bool
}

// NewTerminal creates a prompter reading from in and writing prompts to out.
func NewTerminal(in *os.File, out io.Writer) *Terminal {
	return &Terminal{in: in, reader: bufio.NewReader(in), out: out}
}

// Factory returns a prompter factory handing out t for every type.
func (t *Terminal) Factory() func(models.CredentialType) models.Prompter {
	return func(models.CredentialType) models.Prompter { return t }
}

// Init implements models.Prompter.
func (t *Terminal) Init(domain models.DomainInfo, credType models.CredentialType, user string, canChangeUser bool) {
	t.domain = domain
	t.credType = credType
	t.user = user
	t.canChangeUser = canChangeUser
	t.answeredUser = ""
	t.result = nil
	t.save = false
}

// Prompt implements models.Prompter. End of input cancels the prompt.
func (t *Terminal) Prompt(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	fmt.Fprintf(t.out, "Credentials for %s\n", t.domain.Name())

	user := t.user
	if t.canChangeUser {
		label := "Username: "
		if user != "" {
			label = fmt.Sprintf("Username [%s]: ", user)
		}
		answer, ok, err := t.ReadLine(label)
		if err != nil || !ok {
			return err
		}
		if answer != "" {
			user = answer
		}
	} else {
		fmt.Fprintf(t.out, "Username: %s\n", user)
	}
	if user == "" {
		return nil
	}

	property := secretProperty(t.credType)
	secret, ok, err := t.ReadSecret(fmt.Sprintf("%s: ", property))
	if err != nil || !ok || secret == "" {
		return err
	}

	answer, _, err := t.ReadLine("Save credentials? [y/N]: ")
	if err != nil {
		return err
	}

	t.answeredUser = user
	t.result = t.credType.ResolveCredentials(t.domain, user, map[string]string{property: secret})
	t.save = strings.EqualFold(answer, "y") || strings.EqualFold(answer, "yes")
	return nil
}

// Username implements models.Prompter.
func (t *Terminal) Username() string { return t.answeredUser }

// Password implements models.Prompter.
func (t *Terminal) Password() models.CredentialResult { return t.result }

// SaveChanges implements models.Prompter.
func (t *Terminal) SaveChanges() bool { return t.save }

// ReadLine prints label and reads one line. ok is false at end of input.
func (t *Terminal) ReadLine(label string) (string, bool, error) {
	fmt.Fprint(t.out, label)
	line, err := t.reader.ReadString('\n')
	if errors.Is(err, io.EOF) {
		if line == "" {
			return "", false, nil
		}
		err = nil
	}
	if err != nil {
		return "", false, fmt.Errorf("reading input: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), true, nil
}

// ReadSecret prints label and reads without echo on a terminal, and a plain line otherwise.
func (t *Terminal) ReadSecret(label string) (string, bool, error) {
	if !term.IsTerminal(int(t.in.Fd())) {
		return t.ReadLine(label)
	}

	fmt.Fprint(t.out, label)
	secret, err := term.ReadPassword(int(t.in.Fd()))
	fmt.Fprintln(t.out)
	if err != nil {
		return "", false, fmt.Errorf("reading secret: %w", err)
	}
	return string(secret), true, nil
}

func secretProperty(credType models.CredentialType) string {
	if credType != nil && credType.ID() == credtype.TokenID {
		return credtype.PropertyToken
	}
	return credtype.PropertyPass
}
