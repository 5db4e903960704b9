// Package domain implements a credential domain: the credentials kept for one
// logical target (a service, a site, a product), keyed by user and credential
// type, together with the domain's default user.
package domain

import (
	"context"
	"fmt"
	"maps"
	"sort"
	"sync"

	"github.com/atinyakov/CredKeeper/internal/models"
	"github.com/atinyakov/CredKeeper/internal/store"
	"go.uber.org/zap"
)

type entryState int

const (
	// stateNotLoaded marks a persisted entry whose properties still live only
	// in the secure store.
	stateNotLoaded entryState = iota
	stateLoaded
	// statePrompted marks an entry without persisted secret; it is asked for
	// on every access.
	statePrompted
)

type entry struct {
	state    entryState
	credType models.CredentialType
	props    map[string]string
}

func (e *entry) persisted() bool {
	return e.state != statePrompted
}

// PromptFunc obtains credentials interactively on behalf of a domain.
type PromptFunc func(ctx context.Context, d *Domain, credType models.CredentialType, user string, canChangeUser bool) (models.Outcome, error)

// Domain is a named bucket of credentials. A (user, type) pair is either
// persisted or prompted, never both. Domain is safe for concurrent use.
type Domain struct {
	mu          sync.RWMutex
	id          string
	name        string
	removable   bool
	defaultUser string
	defaultType models.CredentialType
	entries     map[models.UserKey]*entry

	// secure is the secure-store node of the domain, read when a NotLoaded
	// entry is first accessed. It may be nil for unsaved domains.
	secure store.Node
	log    *zap.Logger
}

// Option configures a Domain.
type Option func(*Domain)

// WithSecureNode sets the secure-store node entries are lazily loaded from.
func WithSecureNode(n store.Node) Option {
	return func(d *Domain) { d.secure = n }
}

// WithLogger sets the logger.
func WithLogger(log *zap.Logger) Option {
	return func(d *Domain) {
		if log != nil {
			d.log = log
		}
	}
}

// New creates an empty domain. id must not be empty.
func New(id, name string, removable bool, opts ...Option) (*Domain, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: domain id cannot be empty", models.ErrInvalidArgument)
	}
	d := &Domain{
		id:        id,
		name:      name,
		removable: removable,
		entries:   make(map[models.UserKey]*entry),
		log:       zap.NewNop(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// ID returns the domain id.
func (d *Domain) ID() string { return d.id }

// Name returns the display name, falling back to the id.
func (d *Domain) Name() string {
	if d.name != "" {
		return d.name
	}
	return d.id
}

// Removable reports whether users may delete the domain.
func (d *Domain) Removable() bool { return d.removable }

// DefaultUsername returns the default user, or "" when the domain is empty.
func (d *Domain) DefaultUsername() string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.defaultUser
}

// DefaultType returns the type explicitly chosen with SetDefaultUsername, if any.
func (d *Domain) DefaultType() models.CredentialType {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.defaultType
}

// UserExists reports whether user holds an entry of any type.
func (d *Domain) UserExists(user string) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.userExists(user)
}

func (d *Domain) userExists(user string) bool {
	for k := range d.entries {
		if k.User == user {
			return true
		}
	}
	return false
}

// UserTypeExists reports whether the exact (user, type) entry exists.
func (d *Domain) UserTypeExists(user string, credType models.CredentialType) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	_, ok := d.entries[models.NewUserKey(user, credType)]
	return ok
}

// Usernames returns every user of the domain, deduplicated and sorted.
func (d *Domain) Usernames() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.usernames()
}

func (d *Domain) usernames() []string {
	seen := make(map[string]struct{}, len(d.entries))
	out := make([]string, 0, len(d.entries))
	for k := range d.entries {
		if _, ok := seen[k.User]; ok {
			continue
		}
		seen[k.User] = struct{}{}
		out = append(out, k.User)
	}
	sort.Strings(out)
	return out
}

// CredentialTypes returns the distinct types user holds, ordered by id.
func (d *Domain) CredentialTypes(user string) []models.CredentialType {
	d.mu.RLock()
	defer d.mu.RUnlock()

	var out []models.CredentialType
	for k, e := range d.entries {
		if k.User == user {
			out = append(out, e.credType)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })
	return out
}

// RequiresPrompt reports whether the (user, type) entry is prompted.
func (d *Domain) RequiresPrompt(user string, credType models.CredentialType) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	e, ok := d.entries[models.NewUserKey(user, credType)]
	return ok && e.state == statePrompted
}

// AddCredentials stores props for (user, type), replacing a prompted entry.
func (d *Domain) AddCredentials(user string, credType models.CredentialType, props map[string]string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.defaultUser == "" {
		d.defaultUser = user
	}
	d.entries[models.NewUserKey(user, credType)] = &entry{
		state:    stateLoaded,
		credType: credType,
		props:    cloneProps(props),
	}
}

// AddPromptedCredentials marks (user, type) as prompted, dropping any
// persisted properties.
func (d *Domain) AddPromptedCredentials(user string, credType models.CredentialType) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.defaultUser == "" {
		d.defaultUser = user
	}
	d.entries[models.NewUserKey(user, credType)] = &entry{state: statePrompted, credType: credType}
}

// RemoveCredential deletes (user, type). When user was the default and no
// longer holds any entry, another user becomes the default.
func (d *Domain) RemoveCredential(user string, credType models.CredentialType) {
	d.mu.Lock()
	defer d.mu.Unlock()

	delete(d.entries, models.NewUserKey(user, credType))
	if user != d.defaultUser {
		return
	}
	if d.defaultType != nil && d.defaultType.ID() == credType.ID() {
		d.defaultType = nil
	}
	if d.userExists(user) {
		return
	}
	d.defaultType = nil
	if users := d.usernames(); len(users) > 0 {
		d.defaultUser = users[0]
	} else {
		d.defaultUser = ""
	}
}

// SetDefaultUsername makes (user, type) the default of the domain.
func (d *Domain) SetDefaultUsername(user string, credType models.CredentialType) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.userExists(user) {
		return fmt.Errorf("%w: user %s does not exist for this domain", models.ErrInvalidArgument, user)
	}
	if credType == nil {
		return fmt.Errorf("%w: credential type is required", models.ErrInvalidArgument)
	}
	if _, ok := d.entries[models.NewUserKey(user, credType)]; !ok {
		return fmt.Errorf("%w: user %s of type %s does not exist for this domain",
			models.ErrInvalidArgument, user, credType.ID())
	}
	d.defaultUser = user
	d.defaultType = credType
	return nil
}

// SetCredentialProperties replaces the properties of an existing persisted
// entry. It returns false, after logging, when there is no such entry.
func (d *Domain) SetCredentialProperties(user string, credType models.CredentialType, props map[string]string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	e, ok := d.entries[models.NewUserKey(user, credType)]
	if !ok || !e.persisted() {
		d.log.Warn("cannot set properties of unknown credential",
			zap.String("domain", d.id), zap.String("user", user), zap.String("type", credType.ID()))
		return false
	}
	e.state = stateLoaded
	e.props = cloneProps(props)
	return true
}

// SetCredentialProperty sets one property of an existing persisted entry,
// loading the entry first when needed. It returns false, after logging, when
// there is no such entry.
func (d *Domain) SetCredentialProperty(ctx context.Context, user string, credType models.CredentialType, key, value string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	k := models.NewUserKey(user, credType)
	e, ok := d.entries[k]
	if !ok || !e.persisted() {
		d.log.Warn("cannot set property of unknown credential",
			zap.String("domain", d.id), zap.String("user", user), zap.String("type", credType.ID()),
			zap.String("key", key))
		return false, nil
	}
	props, err := d.properties(ctx, k, e)
	if err != nil {
		return false, err
	}
	props[key] = value
	return true, nil
}

// Credentials returns the credentials of (user, type). Persisted entries are
// resolved directly; everything else goes to prompt. When canChangeUser is
// false the prompt may not pick another user, and without a user nothing is
// prompted at all.
func (d *Domain) Credentials(ctx context.Context, user string, credType models.CredentialType, canChangeUser bool, prompt PromptFunc) (models.Outcome, error) {
	if res, ok, err := d.resolvePersisted(ctx, user, credType); err != nil || ok {
		if err != nil {
			return models.Unavailable(), err
		}
		return models.Resolved(user, res), nil
	}

	if prompt == nil || (!canChangeUser && user == "") {
		return models.Unavailable(), nil
	}
	return prompt(ctx, d, credType, user, canChangeUser)
}

func (d *Domain) resolvePersisted(ctx context.Context, user string, credType models.CredentialType) (models.CredentialResult, bool, error) {
	if user == "" || credType == nil {
		return nil, false, nil
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	k := models.NewUserKey(user, credType)
	e, ok := d.entries[k]
	if !ok || !e.persisted() {
		return nil, false, nil
	}
	props, err := d.properties(ctx, k, e)
	if err != nil {
		return nil, false, err
	}
	return e.credType.ResolveCredentials(d, user, props), true, nil
}

// properties returns the property map of a persisted entry, reading it from
// the secure store on first access. Callers hold d.mu.
func (d *Domain) properties(ctx context.Context, k models.UserKey, e *entry) (map[string]string, error) {
	if e.state == stateLoaded {
		return e.props, nil
	}

	props := map[string]string{}
	if d.secure != nil {
		n := d.secure.Node(k.NodeName())
		keys, err := n.Keys(ctx)
		if err != nil {
			return nil, fmt.Errorf("load credential %s: %w", k.NodeName(), err)
		}
		for _, key := range keys {
			v, err := n.Get(ctx, key, "")
			if err != nil {
				return nil, fmt.Errorf("load credential %s: %w", k.NodeName(), err)
			}
			props[key] = v
		}
	}
	e.state = stateLoaded
	e.props = props
	return props, nil
}

func cloneProps(props map[string]string) map[string]string {
	if props == nil {
		return map[string]string{}
	}
	return maps.Clone(props)
}
