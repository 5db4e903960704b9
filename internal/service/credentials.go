// Package service provides the credentials model: the registry of credential
// domains, its persistence, change notification and interactive prompting.
package service

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/atinyakov/CredKeeper/internal/credtype"
	"github.com/atinyakov/CredKeeper/internal/domain"
	"github.com/atinyakov/CredKeeper/internal/models"
	"github.com/atinyakov/CredKeeper/internal/store"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	// BaseKey is the node, under both store roots, holding one child per domain.
	BaseKey = "credentials"

	// RedHatAccess is a system domain that always exists.
	RedHatAccess = "redhat-access"
	// JBossOrg is a system domain that always exists.
	JBossOrg = "jboss-org"
)

// TypeRegistry resolves credential types.
type TypeRegistry interface {
	Get(id string) (models.CredentialType, bool)
	Default() (models.CredentialType, bool)
	List() []models.CredentialType
}

// PrompterFactory returns a fresh prompter for credType, or nil when the type
// cannot be prompted for.
type PrompterFactory func(credType models.CredentialType) models.Prompter

type listenerEntry struct {
	id       string
	listener models.Listener
}

// CredentialsModel owns every credential domain. Mutations are serialised by
// a single mutex; listeners run after it is released.
type CredentialsModel struct {
	mu        sync.Mutex
	types     TypeRegistry
	prefs     store.Node
	secure    store.Node
	prompters PrompterFactory
	domains   map[string]*domain.Domain
	listeners []listenerEntry
	dirty     bool
	log       *zap.Logger
}

// NewCredentialsModel creates an empty model persisting to the BaseKey node of
// prefsRoot and secureRoot. Call Load to read saved domains.
func NewCredentialsModel(types TypeRegistry, prefsRoot, secureRoot store.Node, prompters PrompterFactory, log *zap.Logger) *CredentialsModel {
	if log == nil {
		log = zap.NewNop()
	}
	return &CredentialsModel{
		types:     types,
		prefs:     prefsRoot.Node(BaseKey),
		secure:    secureRoot.Node(BaseKey),
		prompters: prompters,
		domains:   make(map[string]*domain.Domain),
		log:       log,
	}
}

// Load replaces the in-memory domains with the saved ones. A domain that
// fails to load is logged and skipped. The system domains are created when
// missing.
func (m *CredentialsModel) Load(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.domains = make(map[string]*domain.Domain)
	names, err := m.prefs.ChildrenNames(ctx)
	if err != nil {
		m.log.Error("error loading saved credential data", zap.Error(err))
	}
	for _, name := range names {
		d, derr := domain.Load(ctx, name, m.prefs.Node(name), m.secure.Node(name), m.types, m.log)
		if derr != nil {
			m.log.Error("error loading credential domain", zap.String("domain", name), zap.Error(derr))
			continue
		}
		m.domains[d.ID()] = d
	}

	for _, id := range []string{RedHatAccess, JBossOrg} {
		if _, ok := m.domains[id]; !ok {
			m.domains[id] = m.newDomain(id, id, false)
			m.dirty = true
		}
	}
	return err
}

func (m *CredentialsModel) newDomain(id, name string, removable bool) *domain.Domain {
	d, err := domain.New(id, name, removable, domain.WithSecureNode(m.secure.Node(id)), domain.WithLogger(m.log))
	if err != nil {
		// Only reachable with an empty id, which callers reject first.
		panic(err)
	}
	return d
}

// AddDomain creates and registers a domain. It returns nil when id is empty
// or already taken.
func (m *CredentialsModel) AddDomain(id, name string, removable bool) *domain.Domain {
	if id == "" {
		m.log.Warn("refusing to add a domain without id")
		return nil
	}

	m.mu.Lock()
	if _, ok := m.domains[id]; ok {
		m.mu.Unlock()
		return nil
	}
	d := m.newDomain(id, name, removable)
	m.domains[id] = d
	m.dirty = true
	m.mu.Unlock()

	m.fire(models.Event{Kind: models.DomainAdded, DomainID: id})
	return d
}

// Domains returns every domain ordered by display name, then id.
func (m *CredentialsModel) Domains() []*domain.Domain {
	m.mu.Lock()
	out := make([]*domain.Domain, 0, len(m.domains))
	for _, d := range m.domains {
		out = append(out, d)
	}
	m.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Name() != out[j].Name() {
			return out[i].Name() < out[j].Name()
		}
		return out[i].ID() < out[j].ID()
	})
	return out
}

// Domain returns the domain with id, or nil.
func (m *CredentialsModel) Domain(id string) *domain.Domain {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.domains[id]
}

// RemoveDomain unregisters d. Its saved data is pruned by the next Save.
func (m *CredentialsModel) RemoveDomain(d *domain.Domain) bool {
	if d == nil {
		return false
	}

	m.mu.Lock()
	if cur, ok := m.domains[d.ID()]; !ok || cur != d {
		m.mu.Unlock()
		return false
	}
	delete(m.domains, d.ID())
	m.dirty = true
	m.mu.Unlock()

	m.fire(models.Event{Kind: models.DomainRemoved, DomainID: d.ID()})
	return true
}

// DefaultCredentialType returns the registry's default type.
func (m *CredentialsModel) DefaultCredentialType() (models.CredentialType, bool) {
	return m.types.Default()
}

// CredentialTypes returns every registered type.
func (m *CredentialsModel) CredentialTypes() []models.CredentialType {
	return m.types.List()
}

// CredentialType returns the type registered under id.
func (m *CredentialsModel) CredentialType(id string) (models.CredentialType, bool) {
	return m.types.Get(id)
}

// typeOrDefault substitutes the default type for a nil credType.
func (m *CredentialsModel) typeOrDefault(credType models.CredentialType) (models.CredentialType, bool) {
	if credType != nil {
		return credType, true
	}
	def, ok := m.types.Default()
	if !ok {
		m.log.Error("no default credential type registered")
	}
	return def, ok
}

// AddCredentials stores props for user. A nil credType means the default type.
func (m *CredentialsModel) AddCredentials(d *domain.Domain, credType models.CredentialType, user string, props map[string]string) {
	m.addCredentials(d, credType, user, false, props)
}

// AddPasswordCredentials stores a password for user under the default type.
func (m *CredentialsModel) AddPasswordCredentials(d *domain.Domain, user, pass string) {
	m.addCredentials(d, nil, user, false, map[string]string{credtype.PropertyPass: pass})
}

// AddPromptedCredentials registers user as prompted on every access. A nil
// credType means the default type.
func (m *CredentialsModel) AddPromptedCredentials(d *domain.Domain, credType models.CredentialType, user string) {
	m.addCredentials(d, credType, user, true, nil)
}

// AddDefaultPromptedCredentials registers user as prompted under the default type.
func (m *CredentialsModel) AddDefaultPromptedCredentials(d *domain.Domain, user string) {
	m.AddPromptedCredentials(d, nil, user)
}

// RemoveDefaultCredentials deletes the default-type entry of user.
func (m *CredentialsModel) RemoveDefaultCredentials(d *domain.Domain, user string) {
	m.RemoveCredentials(d, nil, user)
}

func (m *CredentialsModel) addCredentials(d *domain.Domain, credType models.CredentialType, user string, prompted bool, props map[string]string) {
	credType, ok := m.typeOrDefault(credType)
	if !ok || d == nil {
		return
	}

	m.mu.Lock()
	existed := d.UserTypeExists(user, credType)
	preUser, preType := defaultOf(d)
	if prompted {
		d.AddPromptedCredentials(user, credType)
	} else {
		d.AddCredentials(user, credType, props)
	}
	postUser, postType := defaultOf(d)
	m.dirty = true
	m.mu.Unlock()

	kind := models.CredentialAdded
	if existed {
		kind = models.CredentialChanged
	}
	events := []models.Event{{Kind: kind, DomainID: d.ID(), User: user, TypeID: credType.ID()}}
	if preUser != postUser || preType != postType {
		events = append(events, models.Event{
			Kind: models.DefaultCredentialChanged, DomainID: d.ID(), User: postUser, TypeID: postType,
		})
	}
	m.fire(events...)
}

// RemoveCredentials deletes the (user, type) entry. A nil credType means the
// default type.
func (m *CredentialsModel) RemoveCredentials(d *domain.Domain, credType models.CredentialType, user string) {
	credType, ok := m.typeOrDefault(credType)
	if !ok || d == nil {
		return
	}

	m.mu.Lock()
	preUser, preType := defaultOf(d)
	d.RemoveCredential(user, credType)
	postUser, postType := defaultOf(d)
	m.dirty = true
	m.mu.Unlock()

	events := []models.Event{{Kind: models.CredentialRemoved, DomainID: d.ID(), User: user, TypeID: credType.ID()}}
	if preUser != postUser || preType != postType {
		events = append(events, models.Event{
			Kind: models.DefaultCredentialChanged, DomainID: d.ID(), User: postUser, TypeID: postType,
		})
	}
	m.fire(events...)
}

// SetDefaultCredential makes (user, type) the domain default. Nothing happens
// when it already is.
func (m *CredentialsModel) SetDefaultCredential(d *domain.Domain, credType models.CredentialType, user string) error {
	credType, ok := m.typeOrDefault(credType)
	if !ok {
		return models.ErrUnknownType
	}
	if d == nil {
		return models.ErrDomainNotFound
	}

	m.mu.Lock()
	curUser, curType := defaultOf(d)
	if curUser == user && curType == credType.ID() {
		m.mu.Unlock()
		return nil
	}
	if err := d.SetDefaultUsername(user, credType); err != nil {
		m.mu.Unlock()
		return err
	}
	m.dirty = true
	m.mu.Unlock()

	m.fire(models.Event{Kind: models.DefaultCredentialChanged, DomainID: d.ID(), User: user, TypeID: credType.ID()})
	return nil
}

// CredentialRequiresPrompt reports whether (user, type) is prompted on every access.
func (m *CredentialsModel) CredentialRequiresPrompt(d *domain.Domain, credType models.CredentialType, user string) bool {
	credType, ok := m.typeOrDefault(credType)
	if !ok || d == nil {
		return false
	}
	return d.RequiresPrompt(user, credType)
}

// SetCredentialProperty changes one property of a persisted entry and, when
// save is set, saves the model.
func (m *CredentialsModel) SetCredentialProperty(ctx context.Context, d *domain.Domain, credType models.CredentialType, user, key, value string, save bool) error {
	credType, ok := m.typeOrDefault(credType)
	if !ok || d == nil {
		return nil
	}

	m.mu.Lock()
	applied, err := d.SetCredentialProperty(ctx, user, credType, key, value)
	if applied {
		m.dirty = true
	}
	m.mu.Unlock()
	if err != nil {
		return err
	}

	if applied {
		m.fire(models.Event{Kind: models.CredentialChanged, DomainID: d.ID(), User: user, TypeID: credType.ID()})
	}
	if save {
		m.Save(ctx)
	}
	return nil
}

// SetCredentialProperties replaces the properties of a persisted entry and,
// when save is set, saves the model.
func (m *CredentialsModel) SetCredentialProperties(ctx context.Context, d *domain.Domain, credType models.CredentialType, user string, props map[string]string, save bool) {
	credType, ok := m.typeOrDefault(credType)
	if !ok || d == nil {
		return
	}

	m.mu.Lock()
	applied := d.SetCredentialProperties(user, credType, props)
	if applied {
		m.dirty = true
	}
	m.mu.Unlock()

	if applied {
		m.fire(models.Event{Kind: models.CredentialChanged, DomainID: d.ID(), User: user, TypeID: credType.ID()})
	}
	if save {
		m.Save(ctx)
	}
}

// AddListener registers l and returns the id to remove it with.
func (m *CredentialsModel) AddListener(l models.Listener) string {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := uuid.NewString()
	m.listeners = append(m.listeners, listenerEntry{id: id, listener: l})
	return id
}

// RemoveListener unregisters the listener added under id.
func (m *CredentialsModel) RemoveListener(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i, le := range m.listeners {
		if le.id == id {
			m.listeners = append(m.listeners[:i:i], m.listeners[i+1:]...)
			return true
		}
	}
	return false
}

// fire delivers events to a snapshot of the listeners. A panicking listener
// is logged and does not stop delivery to the others.
func (m *CredentialsModel) fire(events ...models.Event) {
	m.mu.Lock()
	listeners := append([]listenerEntry(nil), m.listeners...)
	m.mu.Unlock()

	for _, e := range events {
		e.ID = uuid.NewString()
		for _, le := range listeners {
			m.deliver(le, e)
		}
	}
}

func (m *CredentialsModel) deliver(le listenerEntry, e models.Event) {
	defer func() {
		if r := recover(); r != nil {
			m.log.Error("credential listener panicked",
				zap.String("listener", le.id), zap.Stringer("event", e.Kind), zap.Any("panic", r))
		}
	}()
	le.listener.HandleEvent(e)
}

func defaultOf(d *domain.Domain) (string, string) {
	user := d.DefaultUsername()
	if t := d.DefaultType(); t != nil {
		return user, t.ID()
	}
	return user, ""
}

// isNoPassword reports whether err is the secure store's missing master
// password failure.
func isNoPassword(err error) bool {
	return errors.Is(err, models.ErrNoPassword)
}
