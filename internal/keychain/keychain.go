// Package keychain keeps the master password of the secure store in the OS
// keychain.
package keychain

import (
	"errors"
	"fmt"

	"github.com/atinyakov/CredKeeper/internal/models"
	"github.com/zalando/go-keyring"
)

// Default keychain coordinates of the master password.
const (
	Service = "credkeeper"
	Account = "master-password"
)

// MasterPassword reads the master password stored for (service, account).
// A missing entry is reported as models.ErrNoPassword.
func MasterPassword(service, account string) (string, error) {
	password, err := keyring.Get(service, account)
	if errors.Is(err, keyring.ErrNotFound) {
		return "", models.ErrNoPassword
	}
	if err != nil {
		return "", fmt.Errorf("read keychain: %w", err)
	}
	return password, nil
}

// SetMasterPassword stores password for (service, account). An empty password
// deletes the entry.
func SetMasterPassword(service, account, password string) error {
	if password == "" {
		err := keyring.Delete(service, account)
		if err != nil && !errors.Is(err, keyring.ErrNotFound) {
			return fmt.Errorf("delete keychain entry: %w", err)
		}
		return nil
	}
	if err := keyring.Set(service, account, password); err != nil {
		return fmt.Errorf("write keychain: %w", err)
	}
	return nil
}
