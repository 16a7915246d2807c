// Package tokenstore persists the backend session token, encrypted at rest
// in the local state database. The store holds at most one token.
package tokenstore

import (
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"time"

	"gorm.io/gorm"

	"github.com/smolnikov/adminpanel/internal/crypto"
)

// derivationSalt keeps passphrase-derived keys stable across restarts.
const derivationSalt = "adminpanel.tokenstore.v1"

const tokenRowID = 1

// Config controls how the encryption key is resolved, in priority order:
// an explicit base64 key, a passphrase to derive one from, then a key file
// (generated on first use when absent).
type Config struct {
	EncryptionKey string
	Passphrase    string
	KeyFilePath   string
}

// Store reads and writes the single encrypted session token.
type Store struct {
	db        *gorm.DB
	encryptor *crypto.Encryptor
}

type sessionToken struct {
	ID        uint `gorm:"primaryKey"`
	Token     string
	UpdatedAt time.Time
}

func (sessionToken) TableName() string {
	return "session_token"
}

// New creates a Store backed by the given database, migrating its table and
// resolving the encryption key per cfg.
func New(db *gorm.DB, cfg Config) (*Store, error) {
	if err := db.AutoMigrate(&sessionToken{}); err != nil {
		return nil, fmt.Errorf("failed to migrate token table: %w", err)
	}

	key, err := resolveKey(cfg)
	if err != nil {
		return nil, err
	}

	encryptor, err := crypto.NewEncryptor(key)
	if err != nil {
		return nil, err
	}

	return &Store{db: db, encryptor: encryptor}, nil
}

// Get returns the stored token, or empty when none is stored.
func (s *Store) Get() (string, error) {
	var row sessionToken
	err := s.db.First(&row, tokenRowID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read token: %w", err)
	}

	token, err := s.encryptor.Decrypt(row.Token)
	if err != nil {
		return "", fmt.Errorf("failed to decrypt token: %w", err)
	}
	return token, nil
}

// Set stores the token, replacing any previous one.
func (s *Store) Set(token string) error {
	encrypted, err := s.encryptor.Encrypt(token)
	if err != nil {
		return fmt.Errorf("failed to encrypt token: %w", err)
	}

	row := sessionToken{ID: tokenRowID, Token: encrypted}
	if err := s.db.Save(&row).Error; err != nil {
		return fmt.Errorf("failed to store token: %w", err)
	}
	return nil
}

// Clear removes the stored token. Clearing an empty store is not an error.
func (s *Store) Clear() error {
	if err := s.db.Delete(&sessionToken{}, tokenRowID).Error; err != nil {
		return fmt.Errorf("failed to clear token: %w", err)
	}
	return nil
}

func resolveKey(cfg Config) ([]byte, error) {
	if cfg.EncryptionKey != "" {
		key, err := base64.StdEncoding.DecodeString(cfg.EncryptionKey)
		if err != nil {
			return nil, fmt.Errorf("failed to decode encryption key: %w", err)
		}
		return key, nil
	}

	if cfg.Passphrase != "" {
		return crypto.DeriveKey(cfg.Passphrase, []byte(derivationSalt))
	}

	if cfg.KeyFilePath == "" {
		return nil, errors.New("no encryption key, passphrase, or key file configured")
	}
	return keyFromFile(cfg.KeyFilePath)
}

func keyFromFile(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err == nil {
		key, decodeErr := base64.StdEncoding.DecodeString(string(data))
		if decodeErr != nil {
			return nil, fmt.Errorf("failed to decode key file %s: %w", path, decodeErr)
		}
		return key, nil
	}
	if !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read key file %s: %w", path, err)
	}

	encoded, err := crypto.GenerateKey()
	if err != nil {
		return nil, err
	}
	if err := os.WriteFile(path, []byte(encoded), 0o600); err != nil {
		return nil, fmt.Errorf("failed to write key file %s: %w", path, err)
	}
	return base64.StdEncoding.DecodeString(encoded)
}
