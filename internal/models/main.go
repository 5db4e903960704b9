// Package models defines the core data structures shared by the credential
// registry, domains, the credentials model and its collaborators.
package models

import (
	"context"
	"strings"
)

// DomainInfo is the read-only view of a credential domain handed to credential
// types and prompters.
type DomainInfo interface {
	// ID is the unique identifier of the domain.
	ID() string
	// Name is the user-visible name of the domain. Never empty when ID is set.
	Name() string
}

// CredentialType is a pluggable kind of credential (user/password, token, ...).
type CredentialType interface {
	// ID identifies the type. Two types with the same ID are the same type.
	ID() string
	// ResolveCredentials turns the stored properties of a user into a result.
	ResolveCredentials(domain DomainInfo, user string, props map[string]string) CredentialResult
}

// CredentialResult is resolved secret material produced by a CredentialType.
type CredentialResult interface {
	// StringValue returns the single secret value. Results made of several
	// fields return ErrUnsupported.
	StringValue() (string, error)
	// ToMap returns a copy of the properties to persist in the secure store.
	ToMap() map[string]string
	// Type returns the type that produced the result.
	Type() CredentialType
}

// Prompter obtains credentials from a human. Prompt blocks until the user
// answers or dismisses the prompt; a dismissed prompt leaves Username empty.
type Prompter interface {
	Init(domain DomainInfo, credType CredentialType, user string, canChangeUser bool)
	Prompt(ctx context.Context) error
	Username() string
	Password() CredentialResult
	SaveChanges() bool
}

// UserKey identifies a credential entry inside a domain. The same user may
// hold independent entries under different credential types.
type UserKey struct {
	// User is the username.
	User string
	// TypeID is the ID of the credential type.
	TypeID string
}

// NewUserKey builds the key of user for credType.
func NewUserKey(user string, credType CredentialType) UserKey {
	return UserKey{User: user, TypeID: credType.ID()}
}

// NodeName renders the key as "user;typeId", the format used for store node
// names and the persisted user lists.
func (k UserKey) NodeName() string {
	return k.User + ";" + k.TypeID
}

// ParseUserKey parses a "user;typeId" record. Records without a type part
// belong to defaultTypeID. The last ';' separates the type so usernames may
// contain semicolons.
func ParseUserKey(name, defaultTypeID string) UserKey {
	i := strings.LastIndex(name, ";")
	if i < 0 || i == len(name)-1 {
		return UserKey{User: strings.TrimSuffix(name, ";"), TypeID: defaultTypeID}
	}
	return UserKey{User: name[:i], TypeID: name[i+1:]}
}
