package models

// EventKind is the kind of change reported to listeners.
type EventKind int

const (
	// DomainAdded is fired after a domain is registered.
	DomainAdded EventKind = iota + 1
	// DomainRemoved is fired after a domain is removed.
	DomainRemoved
	// CredentialAdded is fired when a new (user, type) entry appears.
	CredentialAdded
	// CredentialRemoved is fired when a (user, type) entry is removed.
	CredentialRemoved
	// CredentialChanged is fired when an existing entry is replaced or edited.
	CredentialChanged
	// DefaultCredentialChanged is fired when the default user or type changes.
	DefaultCredentialChanged
)

func (k EventKind) String() string {
	switch k {
	case DomainAdded:
		return "domain_added"
	case DomainRemoved:
		return "domain_removed"
	case CredentialAdded:
		return "credential_added"
	case CredentialRemoved:
		return "credential_removed"
	case CredentialChanged:
		return "credential_changed"
	case DefaultCredentialChanged:
		return "default_credential_changed"
	default:
		return "unknown"
	}
}

// Event describes one change of the credentials model.
type Event struct {
	// ID is unique per event.
	ID string `json:"id"`
	// Kind is the kind of change.
	Kind EventKind `json:"kind"`
	// DomainID is the domain the change happened in.
	DomainID string `json:"domain"`
	// User is empty for domain events.
	User string `json:"user,omitempty"`
	// TypeID is empty for domain events.
	TypeID string `json:"type,omitempty"`
}

// Listener receives model events synchronously, in registration order.
type Listener interface {
	HandleEvent(Event)
}

// ListenerFunc adapts a function to the Listener interface.
type ListenerFunc func(Event)

// HandleEvent calls f(e).
func (f ListenerFunc) HandleEvent(e Event) { f(e) }
