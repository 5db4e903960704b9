package service

import (
	"context"
	"fmt"

	"github.com/atinyakov/CredKeeper/internal/domain"
	"github.com/atinyakov/CredKeeper/internal/models"
	"go.uber.org/zap"
)

// Credentials returns the credentials of (user, type), prompting when they
// are not persisted. The prompt may answer for another user, reported as
// OutcomeUsernameChanged. A nil credType means the default type.
func (m *CredentialsModel) Credentials(ctx context.Context, d *domain.Domain, credType models.CredentialType, user string) (models.Outcome, error) {
	credType, ok := m.typeOrDefault(credType)
	if !ok || d == nil {
		return models.Unavailable(), nil
	}
	return d.Credentials(ctx, user, credType, true, m.prompt)
}

// Password returns the default-type secret of user. The user may not be
// changed by a prompt. An empty string with a nil error means unavailable.
func (m *CredentialsModel) Password(ctx context.Context, d *domain.Domain, user string) (string, error) {
	credType, ok := m.typeOrDefault(nil)
	if !ok || d == nil {
		return "", nil
	}
	out, err := d.Credentials(ctx, user, credType, false, m.prompt)
	if err != nil || !out.Available() {
		return "", err
	}
	return out.Result.StringValue()
}

// prompt runs the prompter of credType. A dismissed prompt yields
// Unavailable. Answers the user chose to keep are stored and saved.
func (m *CredentialsModel) prompt(ctx context.Context, d *domain.Domain, credType models.CredentialType, user string, canChangeUser bool) (models.Outcome, error) {
	var p models.Prompter
	if m.prompters != nil {
		p = m.prompters(credType)
	}
	if p == nil {
		m.log.Warn("no prompter available for credential type",
			zap.String("domain", d.ID()), zap.String("type", credType.ID()))
		return models.Unavailable(), nil
	}

	p.Init(d, credType, user, canChangeUser)
	if err := p.Prompt(ctx); err != nil {
		return models.Unavailable(), fmt.Errorf("prompt for %s credentials: %w", d.ID(), err)
	}

	got, res := p.Username(), p.Password()
	if got == "" || res == nil {
		return models.Unavailable(), nil
	}

	// A restricted lookup still answers for the requested user; the answer
	// is kept under the name that was typed.
	owner := got
	if !canChangeUser && got != user {
		m.log.Warn("prompter changed a username it was not allowed to change",
			zap.String("domain", d.ID()), zap.String("requested", user), zap.String("returned", got))
		owner = user
	}

	saved := false
	if p.SaveChanges() {
		m.AddCredentials(d, credType, got, res.ToMap())
		saved = m.Save(ctx)
	}

	if canChangeUser && user != "" && owner != user {
		return models.UsernameChanged(user, owner, res, saved), nil
	}
	out := models.Resolved(owner, res)
	out.Saved = saved
	return out, nil
}
