package models

// OutcomeKind tags the result of a credential lookup.
type OutcomeKind int

const (
	// OutcomeUnavailable means no credential could be obtained, including a
	// prompt dismissed by the user.
	OutcomeUnavailable OutcomeKind = iota
	// OutcomeResolved means Result belongs to the requested user.
	OutcomeResolved
	// OutcomeUsernameChanged means the prompter answered for another user.
	OutcomeUsernameChanged
)

// Outcome is the result of asking a domain for credentials.
type Outcome struct {
	Kind OutcomeKind
	// User owns Result. For OutcomeUsernameChanged it is the new username.
	User string
	// PreviousUser is the requested username when the prompter changed it.
	PreviousUser string
	// Result is nil for OutcomeUnavailable.
	Result CredentialResult
	// Saved reports whether prompted credentials were persisted.
	Saved bool
}

// Resolved builds an outcome carrying the credentials of user.
func Resolved(user string, result CredentialResult) Outcome {
	return Outcome{Kind: OutcomeResolved, User: user, Result: result}
}

// UsernameChanged builds an outcome for a prompt answered as newUser instead
// of oldUser.
func UsernameChanged(oldUser, newUser string, result CredentialResult, saved bool) Outcome {
	return Outcome{
		Kind:         OutcomeUsernameChanged,
		User:         newUser,
		PreviousUser: oldUser,
		Result:       result,
		Saved:        saved,
	}
}

// Unavailable builds an empty outcome.
func Unavailable() Outcome {
	return Outcome{Kind: OutcomeUnavailable}
}

// Available reports whether the outcome carries a result.
func (o Outcome) Available() bool {
	return o.Kind != OutcomeUnavailable && o.Result != nil
}
