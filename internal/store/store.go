// Package store defines the hierarchical key/value node contract shared by the
// preferences store (plain metadata) and the secure store (encrypted secrets).
package store

import (
	"context"
	"net/url"
	"strconv"
	"strings"

	"github.com/atinyakov/CredKeeper/internal/models"
)

// ErrNoPassword is returned when an encrypted value is read or written while
// the secure store has no master password.
var ErrNoPassword = models.ErrNoPassword

// ErrWrongPassword is returned when the master password does not match the
// one the secure store was created with.
var ErrWrongPassword = models.ErrWrongPassword

// Node is one node of a hierarchical store. Nodes are created implicitly by
// writing a key into them; ChildrenNames only reports nodes holding data.
type Node interface {
	// Path is the escaped absolute path of the node.
	Path() string
	// Node returns the child called name. The child does not need to exist.
	Node(name string) Node
	// Get returns the value of key, or def when the key is absent.
	Get(ctx context.Context, key, def string) (string, error)
	// Put stores value under key; encrypt asks the store to encrypt it at rest.
	Put(ctx context.Context, key, value string, encrypt bool) error
	// Remove deletes key from the node.
	Remove(ctx context.Context, key string) error
	// Keys lists the keys of the node in ascending order.
	Keys(ctx context.Context) ([]string, error)
	// ChildrenNames lists the unescaped names of child nodes in ascending order.
	ChildrenNames(ctx context.Context) ([]string, error)
	// RemoveNode deletes the node with all its keys and descendants.
	RemoveNode(ctx context.Context) error
	// Flush persists pending changes of the whole store.
	Flush(ctx context.Context) error
}

// GetBool reads a boolean key. Missing or malformed values yield def.
func GetBool(ctx context.Context, n Node, key string, def bool) (bool, error) {
	raw, err := n.Get(ctx, key, "")
	if err != nil {
		return def, err
	}
	if raw == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return def, nil
	}
	return b, nil
}

// PutBool writes a boolean key unencrypted.
func PutBool(ctx context.Context, n Node, key string, value bool) error {
	return n.Put(ctx, key, strconv.FormatBool(value), false)
}

// JoinPath appends the escaped name to parent.
func JoinPath(parent, name string) string {
	return parent + "/" + url.PathEscape(name)
}

// SplitPath returns the unescaped segments of an escaped path.
func SplitPath(path string) []string {
	var out []string
	for _, seg := range strings.Split(strings.TrimPrefix(path, "/"), "/") {
		if seg == "" {
			continue
		}
		name, err := url.PathUnescape(seg)
		if err != nil {
			name = seg
		}
		out = append(out, name)
	}
	return out
}
