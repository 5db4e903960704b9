package repository

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/atinyakov/CredKeeper/internal/store"
	"golang.org/x/crypto/argon2"
)

// argon2id parameters for the master password key.
const (
	argonTime    = 1
	argonMemory  = 64 * 1024
	argonThreads = 4
	keySize      = 32
	saltSize     = 16
)

const (
	keyCheckVersion = "argon2id"
	keyCheckValue   = "credkeeper"
)

// NewAEAD derives an AES-256-GCM cipher from the master password and salt
// with argon2id.
func NewAEAD(password string, salt []byte) (cipher.AEAD, error) {
	key := argon2.IDKey([]byte(password), salt, argonTime, argonMemory, argonThreads, keySize)
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("create AEAD: %w", err)
	}
	return aead, nil
}

// newKeyCheck picks a fresh salt for password and returns the key check
// record "argon2id$base64(salt)$sealed(check)" with the derived cipher.
func newKeyCheck(password string) (string, cipher.AEAD, error) {
	salt := make([]byte, saltSize)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return "", nil, fmt.Errorf("rand salt: %w", err)
	}
	aead, err := NewAEAD(password, salt)
	if err != nil {
		return "", nil, err
	}
	sealed, err := seal(aead, keyCheckValue)
	if err != nil {
		return "", nil, err
	}
	record := strings.Join([]string{keyCheckVersion, base64.StdEncoding.EncodeToString(salt), sealed}, "$")
	return record, aead, nil
}

// openKeyCheck derives the cipher of password from record and verifies it.
// A password that does not open the record yields store.ErrWrongPassword.
func openKeyCheck(record, password string) (cipher.AEAD, error) {
	parts := strings.Split(record, "$")
	if len(parts) != 3 || parts[0] != keyCheckVersion {
		return nil, errors.New("malformed key check record")
	}
	salt, err := base64.StdEncoding.DecodeString(parts[1])
	if err != nil {
		return nil, fmt.Errorf("key check salt: %w", err)
	}
	aead, err := NewAEAD(password, salt)
	if err != nil {
		return nil, err
	}
	plain, err := open(aead, parts[2])
	if err != nil || subtle.ConstantTimeCompare([]byte(plain), []byte(keyCheckValue)) != 1 {
		return nil, store.ErrWrongPassword
	}
	return aead, nil
}

// seal encrypts plaintext and returns base64(nonce || ciphertext || tag).
func seal(aead cipher.AEAD, plaintext string) (string, error) {
	nonce := make([]byte, aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("rand nonce: %w", err)
	}
	ciphertext := aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(ciphertext), nil
}

// open reverses seal.
func open(aead cipher.AEAD, encoded string) (string, error) {
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", fmt.Errorf("base64 decode: %w", err)
	}
	if len(data) < aead.NonceSize() {
		return "", errors.New("ciphertext too short")
	}
	nonce, ciphertext := data[:aead.NonceSize()], data[aead.NonceSize():]
	plaintext, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", fmt.Errorf("decrypt: %w", err)
	}
	return string(plaintext), nil
}
