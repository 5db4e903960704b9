// Package storage assembles the preferences and secure stores selected by
// the configuration.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/atinyakov/CredKeeper/internal/config"
	"github.com/atinyakov/CredKeeper/internal/db"
	"github.com/atinyakov/CredKeeper/internal/keychain"
	"github.com/atinyakov/CredKeeper/internal/models"
	"github.com/atinyakov/CredKeeper/internal/repository"
	"github.com/atinyakov/CredKeeper/internal/store"
	"github.com/atinyakov/CredKeeper/internal/store/file"
	"github.com/atinyakov/CredKeeper/internal/store/memory"
	"go.uber.org/zap"
)

// Stores holds the two store roots handed to the credentials model.
type Stores struct {
	Prefs  store.Node
	Secure store.Node

	conn   *sql.DB
	secure *repository.NodeRepository
}

// Open builds the stores described by opts. The master password comes from
// opts or, failing that, the OS keychain; without one, or with one that does
// not match the store, the secure store stays locked.
func Open(ctx context.Context, opts *config.Options, log *zap.Logger) (*Stores, error) {
	if log == nil {
		log = zap.NewNop()
	}

	switch opts.Store {
	case config.StoreMemory:
		return &Stores{Prefs: memory.New().Root(), Secure: memory.New().Root()}, nil
	case config.StoreSQL, config.StoreFile:
	default:
		return nil, fmt.Errorf("%w: unknown store %q", models.ErrInvalidArgument, opts.Store)
	}

	conn, err := db.Open(opts.Driver, opts.DatabaseDSN)
	if err != nil {
		return nil, err
	}
	dialect := repository.Dialect(opts.Driver)

	secure := repository.NewSecureRepository(conn, dialect)
	if err := secure.Unlock(ctx, MasterPassword(opts, log)); err != nil {
		if !errors.Is(err, models.ErrWrongPassword) {
			conn.Close()
			return nil, err
		}
		log.Warn("master password rejected, secure storage stays locked")
	}
	s := &Stores{Secure: secure.Root(), conn: conn, secure: secure}

	if opts.Store == config.StoreSQL {
		s.Prefs = repository.NewPreferencesRepository(conn, dialect).Root()
		return s, nil
	}

	path := opts.PrefsFile
	if path == "" {
		if path, err = DefaultPrefsFile(); err != nil {
			conn.Close()
			return nil, err
		}
	}
	prefs, err := file.Open(path)
	if err != nil {
		conn.Close()
		return nil, err
	}
	s.Prefs = prefs.Root()
	return s, nil
}

// MasterPassword returns the configured master password, or the one kept in
// the OS keychain, or "".
func MasterPassword(opts *config.Options, log *zap.Logger) string {
	if opts.MasterPassword != "" {
		return opts.MasterPassword
	}
	pw, err := keychain.MasterPassword(keychain.Service, keychain.Account)
	if err != nil {
		if !errors.Is(err, models.ErrNoPassword) {
			log.Warn("keychain unavailable", zap.Error(err))
		}
		return ""
	}
	return pw
}

// DefaultPrefsFile is the preferences file under the user config directory.
func DefaultPrefsFile() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("locate config dir: %w", err)
	}
	return filepath.Join(dir, "credkeeper", "preferences.toml"), nil
}

// Unlock sets the master password of the secure store. A password that does
// not match the store fails with models.ErrWrongPassword.
func (s *Stores) Unlock(ctx context.Context, password string) error {
	if s.secure == nil {
		return nil
	}
	return s.secure.Unlock(ctx, password)
}

// Locked reports whether the secure store lacks a master password.
func (s *Stores) Locked() bool {
	return s.secure != nil && s.secure.Locked()
}

// Close releases the database connection.
func (s *Stores) Close() error {
	if s.conn == nil {
		return nil
	}
	return s.conn.Close()
}
