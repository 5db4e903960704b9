// Package memory implements store.Node as an in-process tree. It backs tests
// and ephemeral runs, and is the working copy behind the file store.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/atinyakov/CredKeeper/internal/store"
)

// NotificationKind tells observers what happened to a node.
type NotificationKind int

const (
	// Put is sent after a key is written.
	Put NotificationKind = iota + 1
	// Removed is sent after a key or a node is removed.
	Removed
	// Accessed is sent after a key of an existing node is read.
	Accessed
)

// Notification is delivered to the observer of a Store.
type Notification struct {
	Kind NotificationKind
	Path string
	Key  string
}

type value struct {
	data      string
	encrypted bool
}

type tree struct {
	values   map[string]value
	children map[string]*tree
}

func newTree() *tree {
	return &tree{values: map[string]value{}, children: map[string]*tree{}}
}

func (t *tree) empty() bool {
	return len(t.values) == 0 && len(t.children) == 0
}

// Store is an in-memory hierarchical store.
type Store struct {
	mu       sync.Mutex
	root     *tree
	locked   bool
	observer func(Notification)
	flush    func(ctx context.Context) error
}

// Option configures a Store.
type Option func(*Store)

// WithLocked makes the store behave like a secure store without a master
// password: encrypted reads and writes fail with store.ErrNoPassword.
func WithLocked() Option {
	return func(s *Store) { s.locked = true }
}

// WithObserver registers fn to receive change notifications. fn runs without
// the store lock held.
func WithObserver(fn func(Notification)) Option {
	return func(s *Store) { s.observer = fn }
}

// WithFlushHook makes Flush call fn.
func WithFlushHook(fn func(ctx context.Context) error) Option {
	return func(s *Store) { s.flush = fn }
}

// New creates an empty store.
func New(opts ...Option) *Store {
	s := &Store{root: newTree()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Root returns the root node.
func (s *Store) Root() store.Node {
	return &node{s: s}
}

// SetLocked switches the locked mode on or off.
func (s *Store) SetLocked(locked bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.locked = locked
}

// Snapshot returns a deep copy of the tree, without encryption flags.
func (s *Store) Snapshot() *store.Section {
	s.mu.Lock()
	defer s.mu.Unlock()
	return toSection(s.root)
}

// Restore replaces the tree with sec. Restored values are unencrypted.
func (s *Store) Restore(sec *store.Section) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.root = fromSection(sec)
}

func (s *Store) notify(n Notification) {
	if s.observer != nil {
		s.observer(n)
	}
}

// lookup walks to the node at path. With create, missing nodes are added.
func (s *Store) lookup(path []string, create bool) *tree {
	t := s.root
	for _, name := range path {
		child, ok := t.children[name]
		if !ok {
			if !create {
				return nil
			}
			child = newTree()
			t.children[name] = child
		}
		t = child
	}
	return t
}

// prune drops empty nodes along path so ChildrenNames only reports data.
func (s *Store) prune(path []string) {
	for i := len(path); i > 0; i-- {
		parent := s.lookup(path[:i-1], false)
		if parent == nil {
			return
		}
		child, ok := parent.children[path[i-1]]
		if !ok || !child.empty() {
			return
		}
		delete(parent.children, path[i-1])
	}
}

type node struct {
	s    *Store
	path []string
}

func (n *node) Path() string {
	p := ""
	for _, name := range n.path {
		p = store.JoinPath(p, name)
	}
	return p
}

func (n *node) Node(name string) store.Node {
	path := make([]string, len(n.path), len(n.path)+1)
	copy(path, n.path)
	return &node{s: n.s, path: append(path, name)}
}

func (n *node) Get(_ context.Context, key, def string) (string, error) {
	n.s.mu.Lock()
	t := n.s.lookup(n.path, false)
	if t == nil {
		n.s.mu.Unlock()
		return def, nil
	}
	v, ok := t.values[key]
	locked := n.s.locked
	n.s.mu.Unlock()

	n.s.notify(Notification{Kind: Accessed, Path: n.Path(), Key: key})
	if !ok {
		return def, nil
	}
	if v.encrypted && locked {
		return "", store.ErrNoPassword
	}
	return v.data, nil
}

func (n *node) Put(_ context.Context, key, val string, encrypt bool) error {
	n.s.mu.Lock()
	if encrypt && n.s.locked {
		n.s.mu.Unlock()
		return store.ErrNoPassword
	}
	t := n.s.lookup(n.path, true)
	t.values[key] = value{data: val, encrypted: encrypt}
	n.s.mu.Unlock()

	n.s.notify(Notification{Kind: Put, Path: n.Path(), Key: key})
	return nil
}

func (n *node) Remove(_ context.Context, key string) error {
	n.s.mu.Lock()
	t := n.s.lookup(n.path, false)
	if t == nil {
		n.s.mu.Unlock()
		return nil
	}
	_, existed := t.values[key]
	delete(t.values, key)
	n.s.prune(n.path)
	n.s.mu.Unlock()

	if existed {
		n.s.notify(Notification{Kind: Removed, Path: n.Path(), Key: key})
	}
	return nil
}

func (n *node) Keys(_ context.Context) ([]string, error) {
	n.s.mu.Lock()
	defer n.s.mu.Unlock()

	t := n.s.lookup(n.path, false)
	if t == nil {
		return nil, nil
	}
	keys := make([]string, 0, len(t.values))
	for k := range t.values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}

func (n *node) ChildrenNames(_ context.Context) ([]string, error) {
	n.s.mu.Lock()
	defer n.s.mu.Unlock()

	t := n.s.lookup(n.path, false)
	if t == nil {
		return nil, nil
	}
	names := make([]string, 0, len(t.children))
	for name := range t.children {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

func (n *node) RemoveNode(_ context.Context) error {
	n.s.mu.Lock()
	if len(n.path) == 0 {
		n.s.root = newTree()
	} else if parent := n.s.lookup(n.path[:len(n.path)-1], false); parent != nil {
		delete(parent.children, n.path[len(n.path)-1])
		n.s.prune(n.path[:len(n.path)-1])
	}
	n.s.mu.Unlock()

	n.s.notify(Notification{Kind: Removed, Path: n.Path()})
	return nil
}

func (n *node) Flush(ctx context.Context) error {
	if n.s.flush == nil {
		return nil
	}
	return n.s.flush(ctx)
}

func toSection(t *tree) *store.Section {
	sec := &store.Section{}
	if len(t.values) > 0 {
		sec.Values = make(map[string]string, len(t.values))
		for k, v := range t.values {
			sec.Values[k] = v.data
		}
	}
	if len(t.children) > 0 {
		sec.Children = make(map[string]*store.Section, len(t.children))
		for name, child := range t.children {
			sec.Children[name] = toSection(child)
		}
	}
	return sec
}

func fromSection(sec *store.Section) *tree {
	t := newTree()
	if sec == nil {
		return t
	}
	for k, v := range sec.Values {
		t.values[k] = value{data: v}
	}
	for name, child := range sec.Children {
		ct := fromSection(child)
		if !ct.empty() {
			t.children[name] = ct
		}
	}
	return t
}
