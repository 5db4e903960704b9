package domain

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/atinyakov/CredKeeper/internal/credtype"
	"github.com/atinyakov/CredKeeper/internal/models"
	"github.com/atinyakov/CredKeeper/internal/store"
	"go.uber.org/zap"
)

// Preference keys of a domain node.
const (
	PropertyID               = "id"
	PropertyName             = "name"
	PropertyRemovable        = "removable"
	PropertyDefaultUser      = "default.user"
	PropertyDefaultType      = "default.type"
	PropertyUserList         = "user.list"
	PropertyPromptedUserList = "user.list.prompted"
)

// TypeResolver looks up credential types by id.
type TypeResolver interface {
	Get(id string) (models.CredentialType, bool)
	Default() (models.CredentialType, bool)
}

// Save writes the domain metadata to prefs and every loaded credential to
// secure. Secure child nodes of entries that are gone are removed; nodes that
// are kept are read once so the secure store reports them as touched.
func (d *Domain) Save(ctx context.Context, prefs, secure store.Node) error {
	d.mu.RLock()
	defer d.mu.RUnlock()

	persisted := make(map[string]*entry)
	var users, prompted []string
	for k, e := range d.entries {
		if e.persisted() {
			persisted[k.NodeName()] = e
			users = append(users, k.NodeName())
		} else {
			prompted = append(prompted, k.NodeName())
		}
	}
	sort.Strings(users)
	sort.Strings(prompted)

	if err := d.saveSecure(ctx, secure, persisted, users); err != nil {
		return err
	}

	if err := prefs.Put(ctx, PropertyID, d.id, false); err != nil {
		return fmt.Errorf("save domain %s: %w", d.id, err)
	}
	if err := prefs.Put(ctx, PropertyName, d.Name(), false); err != nil {
		return fmt.Errorf("save domain %s: %w", d.id, err)
	}
	if err := store.PutBool(ctx, prefs, PropertyRemovable, d.removable); err != nil {
		return fmt.Errorf("save domain %s: %w", d.id, err)
	}
	if err := putOrRemove(ctx, prefs, PropertyDefaultUser, d.defaultUser); err != nil {
		return fmt.Errorf("save domain %s: %w", d.id, err)
	}
	defaultType := ""
	if d.defaultType != nil {
		defaultType = d.defaultType.ID()
	}
	if err := putOrRemove(ctx, prefs, PropertyDefaultType, defaultType); err != nil {
		return fmt.Errorf("save domain %s: %w", d.id, err)
	}
	if err := prefs.Put(ctx, PropertyUserList, strings.Join(users, "\n"), false); err != nil {
		return fmt.Errorf("save domain %s: %w", d.id, err)
	}
	if err := prefs.Put(ctx, PropertyPromptedUserList, strings.Join(prompted, "\n"), false); err != nil {
		return fmt.Errorf("save domain %s: %w", d.id, err)
	}
	return nil
}

// saveSecure writes loaded entries and touches kept nodes before pruning, so
// a locked secure store fails before anything is removed.
func (d *Domain) saveSecure(ctx context.Context, secure store.Node, persisted map[string]*entry, users []string) error {
	for _, name := range users {
		e := persisted[name]
		if e.state != stateLoaded {
			continue
		}
		n := secure.Node(name)
		keys := make([]string, 0, len(e.props))
		for k := range e.props {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			if err := n.Put(ctx, k, e.props[k], true); err != nil {
				return fmt.Errorf("save credential %s: %w", name, err)
			}
		}
		stale, err := n.Keys(ctx)
		if err != nil {
			return fmt.Errorf("save credential %s: %w", name, err)
		}
		for _, k := range stale {
			if _, keep := e.props[k]; keep {
				continue
			}
			if err := n.Remove(ctx, k); err != nil {
				return fmt.Errorf("save credential %s: %w", name, err)
			}
		}
	}

	children, err := secure.ChildrenNames(ctx)
	if err != nil {
		return fmt.Errorf("save domain %s: %w", d.id, err)
	}
	var gone []string
	for _, child := range children {
		if _, ok := persisted[child]; !ok {
			gone = append(gone, child)
			continue
		}
		if _, err := secure.Node(child).Get(ctx, credtype.PropertyPass, ""); err != nil {
			return fmt.Errorf("touch credential %s: %w", child, err)
		}
	}
	for _, child := range gone {
		if err := secure.Node(child).RemoveNode(ctx); err != nil {
			return fmt.Errorf("prune credential %s: %w", child, err)
		}
	}
	return nil
}

func putOrRemove(ctx context.Context, n store.Node, key, value string) error {
	if value == "" {
		return n.Remove(ctx, key)
	}
	return n.Put(ctx, key, value, false)
}

// Load rebuilds a domain from its preferences node. name is the node name,
// used as id when the node has none. Entries start out NotLoaded and are read
// from secure on first access.
func Load(ctx context.Context, name string, prefs, secure store.Node, types TypeResolver, log *zap.Logger) (*Domain, error) {
	if log == nil {
		log = zap.NewNop()
	}

	id, err := prefs.Get(ctx, PropertyID, name)
	if err != nil {
		return nil, fmt.Errorf("load domain %s: %w", name, err)
	}
	if id == "" {
		id = name
	}
	displayName, err := prefs.Get(ctx, PropertyName, "")
	if err != nil {
		return nil, fmt.Errorf("load domain %s: %w", id, err)
	}
	removable, err := store.GetBool(ctx, prefs, PropertyRemovable, true)
	if err != nil {
		return nil, fmt.Errorf("load domain %s: %w", id, err)
	}

	d, err := New(id, displayName, removable, WithSecureNode(secure), WithLogger(log))
	if err != nil {
		return nil, err
	}

	defaultTypeID := ""
	if def, ok := types.Default(); ok {
		defaultTypeID = def.ID()
	}
	resolve := func(typeID string) models.CredentialType {
		if t, ok := types.Get(typeID); ok {
			return t
		}
		log.Warn("unknown credential type in saved domain",
			zap.String("domain", id), zap.String("type", typeID))
		return credtype.Unresolved{TypeID: typeID}
	}

	lists := []struct {
		key   string
		state entryState
	}{
		{PropertyUserList, stateNotLoaded},
		{PropertyPromptedUserList, statePrompted},
	}
	for _, l := range lists {
		raw, err := prefs.Get(ctx, l.key, "")
		if err != nil {
			return nil, fmt.Errorf("load domain %s: %w", id, err)
		}
		for _, line := range strings.Split(raw, "\n") {
			line = strings.TrimSpace(line)
			if line == "" {
				continue
			}
			k := models.ParseUserKey(line, defaultTypeID)
			if k.TypeID == "" {
				log.Warn("saved credential without type and no default type registered",
					zap.String("domain", id), zap.String("record", line))
				continue
			}
			d.entries[k] = &entry{state: l.state, credType: resolve(k.TypeID)}
		}
	}

	defaultUser, err := prefs.Get(ctx, PropertyDefaultUser, "")
	if err != nil {
		return nil, fmt.Errorf("load domain %s: %w", id, err)
	}
	defaultType, err := prefs.Get(ctx, PropertyDefaultType, "")
	if err != nil {
		return nil, fmt.Errorf("load domain %s: %w", id, err)
	}

	d.defaultUser = defaultUser
	if defaultUser == "" || !d.userExists(defaultUser) {
		d.defaultUser = ""
		if users := d.usernames(); len(users) > 0 {
			d.defaultUser = users[0]
		}
	}
	if defaultType != "" && d.defaultUser != "" {
		if e, ok := d.entries[models.UserKey{User: d.defaultUser, TypeID: defaultType}]; ok {
			d.defaultType = e.credType
		}
	}
	return d, nil
}
