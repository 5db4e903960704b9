// Package credtype holds the registry of credential types and the built-in
// types shipped with CredKeeper.
package credtype

import (
	"fmt"
	"sort"
	"sync"

	"github.com/atinyakov/CredKeeper/internal/models"
	"go.uber.org/zap"
)

type registration struct {
	credType  models.CredentialType
	isDefault bool
}

// Registry resolves credential type ids to types. Registrations are queued
// until the first lookup, which builds the table once and logs every
// configuration problem as one batch. Later registrations are applied to the
// table directly.
//
// Configuration problems never fail a registration outright: the first type
// registered under an id keeps it, and the first default keeps the default slot.
type Registry struct {
	mu        sync.Mutex
	log       *zap.Logger
	pending   []registration
	types     map[string]models.CredentialType
	defaultID string
	warnings  []string
}

// NewRegistry creates an empty registry. A nil logger discards warnings.
func NewRegistry(log *zap.Logger) *Registry {
	if log == nil {
		log = zap.NewNop()
	}
	return &Registry{log: log}
}

// Register adds credType to the registry, optionally as the default type.
func (r *Registry) Register(credType models.CredentialType, isDefault bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	reg := registration{credType: credType, isDefault: isDefault}
	if r.types == nil {
		r.pending = append(r.pending, reg)
		return
	}
	if msg := r.apply(reg); msg != "" {
		r.warnings = append(r.warnings, msg)
		r.log.Warn("credential type registration", zap.String("problem", msg))
	}
}

// Get returns the type registered under id.
func (r *Registry) Get(id string) (models.CredentialType, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ensureLoaded()

	t, ok := r.types[id]
	return t, ok
}

// Default returns the default credential type, if one was registered.
func (r *Registry) Default() (models.CredentialType, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ensureLoaded()

	if r.defaultID == "" {
		return nil, false
	}
	return r.types[r.defaultID], true
}

// List returns every registered type ordered by id.
func (r *Registry) List() []models.CredentialType {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ensureLoaded()

	out := make([]models.CredentialType, 0, len(r.types))
	for _, t := range r.types {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })
	return out
}

// Warnings returns the configuration problems collected so far.
func (r *Registry) Warnings() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ensureLoaded()

	return append([]string(nil), r.warnings...)
}

// Clear forgets every registration, the lookup table and the warnings.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.pending = nil
	r.types = nil
	r.defaultID = ""
	r.warnings = nil
}

func (r *Registry) ensureLoaded() {
	if r.types != nil {
		return
	}
	r.types = make(map[string]models.CredentialType, len(r.pending))
	var batch []string
	for _, reg := range r.pending {
		if msg := r.apply(reg); msg != "" {
			batch = append(batch, msg)
		}
	}
	r.pending = nil
	if len(batch) > 0 {
		r.warnings = append(r.warnings, batch...)
		r.log.Warn("errors while loading credential types", zap.Strings("problems", batch))
	}
}

// apply inserts reg into the table and returns a problem description, or ""
// when the registration was clean.
func (r *Registry) apply(reg registration) string {
	switch {
	case reg.credType == nil:
		return "null credential type"
	case reg.credType.ID() == "":
		return fmt.Sprintf("incomplete credential type %T: missing id", reg.credType)
	}

	id := reg.credType.ID()
	if _, exists := r.types[id]; exists {
		return fmt.Sprintf("competing implementations for credential type %s", id)
	}

	r.types[id] = reg.credType
	if !reg.isDefault {
		return ""
	}
	if r.defaultID != "" {
		return fmt.Sprintf("more than one credential type marked as default; default status removed from %s", id)
	}
	r.defaultID = id
	return ""
}
