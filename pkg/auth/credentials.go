// Package auth stores the Apify API token used by the upstream adapter.
//
// Tokens are looked up in order from the system keyring, an encrypted file in
// the user config directory and finally the environment. Writes go to the
// first store that accepts them.
package auth

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"time"
)

// DefaultName is the token slot used when the caller does not name one
const DefaultName = "default"

const (
	appDir = "instalytics"
	// TokenFile is the encrypted token file inside ConfigDir
	TokenFile = "token.enc"
)

// Token is a named Apify API token
type Token struct {
	Name         string    `json:"name"`
	Value        string    `json:"value"`
	LastModified time.Time `json:"last_modified"`
}

// Source names the kind of store a token was read from
type Source string

const (
	SourceKeyring     Source = "keyring"
	SourceFile        Source = "encrypted_file"
	SourceEnvironment Source = "environment"
	SourceMemory      Source = "memory"
)

// TokenStore is the interface for storing and retrieving tokens
type TokenStore interface {
	// Store saves a token under its name
	Store(token *Token) error

	// Retrieve gets the token stored under name
	Retrieve(name string) (*Token, error)

	// List returns all stored tokens
	List() ([]*Token, error)

	// Delete removes the token stored under name
	Delete(name string) error

	// Exists checks if a token is stored under name
	Exists(name string) bool

	// Source reports where the store keeps its tokens
	Source() Source
}

// Manager handles token storage with fallback mechanisms
type Manager struct {
	stores []TokenStore
}

// NewManager creates a token manager with keyring, encrypted file and
// environment stores
func NewManager() (*Manager, error) {
	var stores []TokenStore

	if keyringStore, err := NewKeyringStore(); err == nil {
		stores = append(stores, keyringStore)
	}

	configDir, err := ConfigDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get config directory: %w", err)
	}

	encryptedStore, err := NewEncryptedFileStore(filepath.Join(configDir, TokenFile))
	if err != nil {
		return nil, fmt.Errorf("failed to create encrypted store: %w", err)
	}
	stores = append(stores, encryptedStore)

	stores = append(stores, NewEnvironmentStore())

	return &Manager{stores: stores}, nil
}

// NewManagerWithStores creates a Manager over the given stores, tried in order
func NewManagerWithStores(stores ...TokenStore) *Manager {
	return &Manager{stores: stores}
}

// Store validates and saves a token using the first store that accepts it
func (m *Manager) Store(token *Token) (Source, error) {
	if token.Name == "" {
		token.Name = DefaultName
	}
	if err := ValidateToken(token.Value); err != nil {
		return "", err
	}

	token.LastModified = time.Now()

	var lastErr error
	for _, store := range m.stores {
		err := store.Store(token)
		if err == nil {
			return store.Source(), nil
		}
		lastErr = err
	}

	if lastErr != nil {
		return "", fmt.Errorf("failed to store token: %w", lastErr)
	}
	return "", ErrStoreUnavailable
}

// Retrieve gets the named token from the first store that has it
func (m *Manager) Retrieve(name string) (*Token, Source, error) {
	if name == "" {
		name = DefaultName
	}
	for _, store := range m.stores {
		if token, err := store.Retrieve(name); err == nil && token != nil {
			return token, store.Source(), nil
		}
	}
	return nil, "", fmt.Errorf("%w: %s", ErrTokenNotFound, name)
}

// Resolve returns the value of the default token, or an empty string when no
// store holds one
func (m *Manager) Resolve() string {
	token, _, err := m.Retrieve(DefaultName)
	if err != nil {
		return ""
	}
	return token.Value
}

// List returns every stored token, newest version per name, sorted by name
func (m *Manager) List() ([]*Token, error) {
	byName := make(map[string]*Token)

	for _, store := range m.stores {
		tokens, err := store.List()
		if err != nil {
			continue
		}
		for _, token := range tokens {
			if existing, ok := byName[token.Name]; !ok || token.LastModified.After(existing.LastModified) {
				byName[token.Name] = token
			}
		}
	}

	result := make([]*Token, 0, len(byName))
	for _, token := range byName {
		result = append(result, token)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })

	return result, nil
}

// Delete removes the named token from every writable store
func (m *Manager) Delete(name string) error {
	if name == "" {
		name = DefaultName
	}

	var deleted bool
	var lastErr error
	for _, store := range m.stores {
		if err := store.Delete(name); err == nil {
			deleted = true
		} else if !errors.Is(err, ErrTokenNotFound) && !errors.Is(err, ErrStoreUnavailable) {
			lastErr = err
		}
	}

	if !deleted && lastErr != nil {
		return fmt.Errorf("failed to delete token: %w", lastErr)
	}
	if !deleted {
		return fmt.Errorf("%w: %s", ErrTokenNotFound, name)
	}
	return nil
}

// ValidateToken rejects values that cannot be an API token
func ValidateToken(value string) error {
	if value == "" {
		return fmt.Errorf("%w: token is empty", ErrInvalidToken)
	}
	if strings.ContainsAny(value, " \t\r\n") {
		return fmt.Errorf("%w: token contains whitespace", ErrInvalidToken)
	}
	return nil
}

// ConfigDir returns the per-user configuration directory, creating it if needed
func ConfigDir() (string, error) {
	var configDir string

	switch runtime.GOOS {
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		configDir = filepath.Join(home, "Library", "Application Support", appDir)
	case "windows":
		configDir = filepath.Join(os.Getenv("APPDATA"), appDir)
	default:
		if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
			configDir = filepath.Join(xdgConfig, appDir)
		} else {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", err
			}
			configDir = filepath.Join(home, ".config", appDir)
		}
	}

	if err := os.MkdirAll(configDir, 0700); err != nil {
		return "", fmt.Errorf("failed to create config directory: %w", err)
	}

	return configDir, nil
}

// Mask hides all but the first 4 and last 4 characters of a secret
func Mask(s string) string {
	if len(s) <= 8 {
		return "********"
	}
	return s[:4] + "..." + s[len(s)-4:]
}

var (
	ErrTokenNotFound    = errors.New("token not found")
	ErrInvalidToken     = errors.New("invalid token")
	ErrStoreUnavailable = errors.New("token store unavailable")
)
