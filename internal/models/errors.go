package models

import "errors"

var (
	// ErrNoPassword is returned by the secure store when no master password
	// was supplied. It is the only recoverable save failure.
	ErrNoPassword = errors.New("secure store: no master password")
	// ErrWrongPassword is returned when a master password does not open the
	// secure store it was given to.
	ErrWrongPassword = errors.New("secure store: wrong master password")
	// ErrUnsupported is returned when a multi-field result is asked for a
	// single string value.
	ErrUnsupported = errors.New("operation not supported by this credential result")
	// ErrInvalidArgument marks requests that reference users or types that do
	// not exist in a domain.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrDomainNotFound is returned when a domain id is unknown.
	ErrDomainNotFound = errors.New("domain not found")
	// ErrUnknownType is returned when a credential type id is not registered.
	ErrUnknownType = errors.New("unknown credential type")
)
