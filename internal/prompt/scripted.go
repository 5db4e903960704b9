package prompt

import (
	"context"
	"sync"

	"github.com/atinyakov/CredKeeper/internal/models"
)

// Answer is one scripted reply. An empty User answers for the requested user.
type Answer struct {
	User   string
	Secret string
	Save   bool
}

// Call records the arguments of one Init.
type Call struct {
	DomainID      string
	TypeID        string
	User          string
	CanChangeUser bool
}

// Scripted replays a fixed list of answers, one per prompt. Once the list is
// exhausted every prompt is cancelled.
type Scripted struct {
	mu      sync.Mutex
	answers []Answer
	calls   []Call

	credType models.CredentialType
	domain   models.DomainInfo
	user     string
	current  *Answer
}

// NewScripted creates a prompter replaying answers in order.
func NewScripted(answers ...Answer) *Scripted {
	return &Scripted{answers: answers}
}

// Disabled returns a prompter that cancels every prompt.
func Disabled() *Scripted {
	return NewScripted()
}

// Factory returns a prompter factory handing out s for every type.
func (s *Scripted) Factory() func(models.CredentialType) models.Prompter {
	return func(models.CredentialType) models.Prompter { return s }
}

// Calls returns the recorded Init calls.
func (s *Scripted) Calls() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Call(nil), s.calls...)
}

// Init implements models.Prompter.
func (s *Scripted) Init(domain models.DomainInfo, credType models.CredentialType, user string, canChangeUser bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.calls = append(s.calls, Call{DomainID: domain.ID(), TypeID: credType.ID(), User: user, CanChangeUser: canChangeUser})
	s.domain = domain
	s.credType = credType
	s.user = user
	s.current = nil
}

// Prompt implements models.Prompter.
func (s *Scripted) Prompt(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.answers) == 0 {
		return nil
	}
	a := s.answers[0]
	s.answers = s.answers[1:]
	if a.User == "" {
		a.User = s.user
	}
	s.current = &a
	return nil
}

// Username implements models.Prompter.
func (s *Scripted) Username() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return ""
	}
	return s.current.User
}

// Password implements models.Prompter.
func (s *Scripted) Password() models.CredentialResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil || s.current.User == "" {
		return nil
	}
	property := secretProperty(s.credType)
	return s.credType.ResolveCredentials(s.domain, s.current.User, map[string]string{property: s.current.Secret})
}

// SaveChanges implements models.Prompter.
func (s *Scripted) SaveChanges() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current != nil && s.current.Save
}
