package credtype

import (
	"maps"

	"github.com/atinyakov/CredKeeper/internal/models"
)

const (
	// UserPasswordID is the id of the built-in username/password type.
	UserPasswordID = "usernamePassword"
	// TokenID is the id of the built-in access/refresh token type.
	TokenID = "token"

	// PropertyPass holds the password of a UserPassword entry.
	PropertyPass = "pass"
	// PropertyToken holds the access token of a Token entry.
	PropertyToken = "token"
	// PropertyRefreshToken holds the optional refresh token of a Token entry.
	PropertyRefreshToken = "refresh"
)

// UserPassword is the plain username/password credential type.
type UserPassword struct{}

// ID implements models.CredentialType.
func (UserPassword) ID() string { return UserPasswordID }

// ResolveCredentials implements models.CredentialType.
func (t UserPassword) ResolveCredentials(_ models.DomainInfo, _ string, props map[string]string) models.CredentialResult {
	return NewStringPasswordResult(t, props)
}

// Token is a multi-field credential type holding an access token and an
// optional refresh token.
type Token struct{}

// ID implements models.CredentialType.
func (Token) ID() string { return TokenID }

// ResolveCredentials implements models.CredentialType.
func (t Token) ResolveCredentials(_ models.DomainInfo, _ string, props map[string]string) models.CredentialResult {
	return NewMultiFieldResult(t, props)
}

// Unresolved stands in for a type id found in persisted data that no
// registered type claims. It keeps the entry's properties intact so they are
// written back unchanged on the next save.
type Unresolved struct {
	TypeID string
}

// ID implements models.CredentialType.
func (u Unresolved) ID() string { return u.TypeID }

// ResolveCredentials implements models.CredentialType.
func (u Unresolved) ResolveCredentials(_ models.DomainInfo, _ string, props map[string]string) models.CredentialResult {
	return NewMultiFieldResult(u, props)
}

// StringPasswordResult is a result whose single value is the "pass" property.
type StringPasswordResult struct {
	credType models.CredentialType
	props    map[string]string
}

// NewStringPasswordResult wraps a copy of props.
func NewStringPasswordResult(credType models.CredentialType, props map[string]string) *StringPasswordResult {
	return &StringPasswordResult{credType: credType, props: cloneProps(props)}
}

// StringValue returns the password.
func (r *StringPasswordResult) StringValue() (string, error) {
	return r.props[PropertyPass], nil
}

// ToMap implements models.CredentialResult.
func (r *StringPasswordResult) ToMap() map[string]string {
	return cloneProps(r.props)
}

// Type implements models.CredentialResult.
func (r *StringPasswordResult) Type() models.CredentialType {
	return r.credType
}

// MultiFieldResult is a result made of several fields; it has no single
// string value.
type MultiFieldResult struct {
	credType models.CredentialType
	props    map[string]string
}

// NewMultiFieldResult wraps a copy of props.
func NewMultiFieldResult(credType models.CredentialType, props map[string]string) *MultiFieldResult {
	return &MultiFieldResult{credType: credType, props: cloneProps(props)}
}

// StringValue always fails with models.ErrUnsupported.
func (r *MultiFieldResult) StringValue() (string, error) {
	return "", models.ErrUnsupported
}

// Field returns a single property.
func (r *MultiFieldResult) Field(name string) (string, bool) {
	v, ok := r.props[name]
	return v, ok
}

// ToMap implements models.CredentialResult.
func (r *MultiFieldResult) ToMap() map[string]string {
	return cloneProps(r.props)
}

// Type implements models.CredentialResult.
func (r *MultiFieldResult) Type() models.CredentialType {
	return r.credType
}

func cloneProps(props map[string]string) map[string]string {
	if props == nil {
		return map[string]string{}
	}
	return maps.Clone(props)
}
