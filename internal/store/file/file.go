// Package file implements a preferences store persisted as a TOML document.
// Values are kept in memory and written to disk on Flush; the file is not
// encrypted, so the store is meant for metadata only.
package file

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"

	"github.com/atinyakov/CredKeeper/internal/store"
	"github.com/atinyakov/CredKeeper/internal/store/memory"
)

const currentVersion = 1

type document struct {
	Version int            `toml:"version"`
	Root    *store.Section `toml:"root"`
}

// Store is a TOML-backed preferences store.
type Store struct {
	path string
	mem  *memory.Store
}

// Open loads the document at path. A missing file yields an empty store; the
// file and its directory are created on the first Flush.
func Open(path string) (*Store, error) {
	s := &Store{path: path}
	s.mem = memory.New(memory.WithFlushHook(s.write))

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return s, nil
		}
		return nil, fmt.Errorf("reading preferences: %w", err)
	}

	var doc document
	if err := toml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing preferences: %w", err)
	}
	s.mem.Restore(doc.Root)
	return s, nil
}

// Root returns the root node.
func (s *Store) Root() store.Node {
	return s.mem.Root()
}

// Path returns the location of the document.
func (s *Store) Path() string {
	return s.path
}

func (s *Store) write(_ context.Context) error {
	doc := document{Version: currentVersion, Root: s.mem.Snapshot()}

	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(doc); err != nil {
		return fmt.Errorf("encoding preferences: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("creating preferences dir: %w", err)
	}
	if err := os.WriteFile(s.path, buf.Bytes(), 0o600); err != nil {
		return fmt.Errorf("writing preferences: %w", err)
	}
	return nil
}
