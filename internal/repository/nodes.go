// Package repository provides a store.Node tree kept in the nodes table of a
// Postgres or SQLite database. One table holds both the preferences store and
// the secure store, told apart by the store column.
package repository

import (
	"context"
	"crypto/cipher"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/atinyakov/CredKeeper/internal/store"
)

// Store column values. StoreMasterKey holds the key check record of the
// secure store; it is not part of any node tree.
const (
	StorePreferences = "preferences"
	StoreSecure      = "secure"
	StoreMasterKey   = "masterkey"
)

const keyCheckName = "check"

// Dialect selects the placeholder syntax of queries.
type Dialect string

// Supported dialects.
const (
	Postgres Dialect = "postgres"
	SQLite   Dialect = "sqlite"
)

// NodeRepository implements a store.Node tree over the nodes table.
type NodeRepository struct {
	// DB is the database handle for executing queries.
	DB      *sql.DB
	dialect Dialect
	store   string
	secure  bool

	mu sync.RWMutex
	// aead is nil for the preferences store and for a locked secure store.
	aead cipher.AEAD
}

// NewPreferencesRepository returns the plain preferences store. Values are
// never encrypted.
func NewPreferencesRepository(db *sql.DB, dialect Dialect) *NodeRepository {
	return &NodeRepository{DB: db, dialect: dialect, store: StorePreferences}
}

// NewSecureRepository returns a locked secure store. Every encrypted read or
// write fails with store.ErrNoPassword until Unlock succeeds.
func NewSecureRepository(db *sql.DB, dialect Dialect) *NodeRepository {
	return &NodeRepository{DB: db, dialect: dialect, store: StoreSecure, secure: true}
}

// Unlock sets the master password of a secure store. The first password ever
// given creates the key check record; later ones must match it or Unlock
// fails with store.ErrWrongPassword and leaves the store locked. An empty
// password locks the store.
func (r *NodeRepository) Unlock(ctx context.Context, masterPassword string) error {
	if !r.secure {
		return nil
	}
	var aead cipher.AEAD
	if masterPassword != "" {
		var err error
		if aead, err = r.verifyPassword(ctx, masterPassword); err != nil {
			r.setCipher(nil)
			return err
		}
	}
	r.setCipher(aead)
	return nil
}

func (r *NodeRepository) verifyPassword(ctx context.Context, password string) (cipher.AEAD, error) {
	check := &node{r: &NodeRepository{DB: r.DB, dialect: r.dialect, store: StoreMasterKey}}

	record, err := check.Get(ctx, keyCheckName, "")
	if err != nil {
		return nil, fmt.Errorf("read key check: %w", err)
	}
	if record == "" {
		fresh, aead, err := newKeyCheck(password)
		if err != nil {
			return nil, err
		}
		created, err := check.putIfAbsent(ctx, keyCheckName, fresh)
		if err != nil {
			return nil, fmt.Errorf("write key check: %w", err)
		}
		if created {
			return aead, nil
		}
		// another process created it first
		if record, err = check.Get(ctx, keyCheckName, ""); err != nil {
			return nil, fmt.Errorf("read key check: %w", err)
		}
	}
	return openKeyCheck(record, password)
}

func (r *NodeRepository) setCipher(aead cipher.AEAD) {
	r.mu.Lock()
	r.aead = aead
	r.mu.Unlock()
}

// Locked reports whether a secure store has no master password.
func (r *NodeRepository) Locked() bool {
	return r.secure && r.cipher() == nil
}

func (r *NodeRepository) cipher() cipher.AEAD {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.aead
}

// Root returns the root node.
func (r *NodeRepository) Root() store.Node {
	return &node{r: r}
}

// rebind rewrites $N placeholders for SQLite, which takes ?N.
func (r *NodeRepository) rebind(query string) string {
	if r.dialect == SQLite {
		return strings.ReplaceAll(query, "$", "?")
	}
	return query
}

type node struct {
	r    *NodeRepository
	path string
}

func (n *node) Path() string { return n.path }

func (n *node) Node(name string) store.Node {
	return &node{r: n.r, path: store.JoinPath(n.path, name)}
}

func (n *node) Get(ctx context.Context, key, def string) (string, error) {
	var (
		value     string
		encrypted bool
	)
	err := n.r.DB.QueryRowContext(ctx, n.r.rebind(`
		SELECT value, encrypted FROM nodes WHERE store = $1 AND path = $2 AND name = $3
	`), n.r.store, n.path, key).Scan(&value, &encrypted)
	if errors.Is(err, sql.ErrNoRows) {
		return def, nil
	}
	if err != nil {
		return "", fmt.Errorf("get %s/%s: %w", n.path, key, err)
	}
	if !encrypted {
		return value, nil
	}
	aead := n.r.cipher()
	if aead == nil {
		return "", store.ErrNoPassword
	}
	plain, err := open(aead, value)
	if err != nil {
		return "", fmt.Errorf("get %s/%s: %w", n.path, key, err)
	}
	return plain, nil
}

func (n *node) Put(ctx context.Context, key, value string, encrypt bool) error {
	encrypt = encrypt && n.r.secure
	if encrypt {
		aead := n.r.cipher()
		if aead == nil {
			return store.ErrNoPassword
		}
		sealed, err := seal(aead, value)
		if err != nil {
			return fmt.Errorf("put %s/%s: %w", n.path, key, err)
		}
		value = sealed
	}

	_, err := n.r.DB.ExecContext(ctx, n.r.rebind(`
		INSERT INTO nodes (store, path, name, value, encrypted)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (store, path, name) DO UPDATE SET
			value = EXCLUDED.value,
			encrypted = EXCLUDED.encrypted
	`), n.r.store, n.path, key, value, encrypt)
	if err != nil {
		return fmt.Errorf("put %s/%s: %w", n.path, key, err)
	}
	return nil
}

// putIfAbsent stores a plain value unless key already exists and reports
// whether it did.
func (n *node) putIfAbsent(ctx context.Context, key, value string) (bool, error) {
	res, err := n.r.DB.ExecContext(ctx, n.r.rebind(`
		INSERT INTO nodes (store, path, name, value, encrypted)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (store, path, name) DO NOTHING
	`), n.r.store, n.path, key, value, false)
	if err != nil {
		return false, err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows > 0, nil
}

func (n *node) Remove(ctx context.Context, key string) error {
	_, err := n.r.DB.ExecContext(ctx, n.r.rebind(`
		DELETE FROM nodes WHERE store = $1 AND path = $2 AND name = $3
	`), n.r.store, n.path, key)
	if err != nil {
		return fmt.Errorf("remove %s/%s: %w", n.path, key, err)
	}
	return nil
}

func (n *node) Keys(ctx context.Context) ([]string, error) {
	rows, err := n.r.DB.QueryContext(ctx, n.r.rebind(`
		SELECT name FROM nodes WHERE store = $1 AND path = $2 ORDER BY name
	`), n.r.store, n.path)
	if err != nil {
		return nil, fmt.Errorf("keys %s: %w", n.path, err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

// ChildrenNames derives the children from the paths of descendant rows.
func (n *node) ChildrenNames(ctx context.Context) ([]string, error) {
	prefix := n.path + "/"
	rows, err := n.r.DB.QueryContext(ctx, n.r.rebind(`
		SELECT DISTINCT path FROM nodes WHERE store = $1 AND substr(path, 1, $2) = $3
	`), n.r.store, len(prefix), prefix)
	if err != nil {
		return nil, fmt.Errorf("children %s: %w", n.path, err)
	}
	defer rows.Close()

	seen := make(map[string]struct{})
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		segment, _, _ := strings.Cut(strings.TrimPrefix(p, prefix), "/")
		if segment == "" {
			continue
		}
		seen[segment] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("children %s: %w", n.path, err)
	}

	names := make([]string, 0, len(seen))
	for segment := range seen {
		names = append(names, store.SplitPath(segment)[0])
	}
	sort.Strings(names)
	return names, nil
}

func (n *node) RemoveNode(ctx context.Context) error {
	prefix := n.path + "/"
	_, err := n.r.DB.ExecContext(ctx, n.r.rebind(`
		DELETE FROM nodes WHERE store = $1 AND (path = $2 OR substr(path, 1, $3) = $4)
	`), n.r.store, n.path, len(prefix), prefix)
	if err != nil {
		return fmt.Errorf("remove node %s: %w", n.path, err)
	}
	return nil
}

// Flush checks the connection; writes are applied immediately.
func (n *node) Flush(ctx context.Context) error {
	if err := n.r.DB.PingContext(ctx); err != nil {
		return fmt.Errorf("flush: %w", err)
	}
	return nil
}
