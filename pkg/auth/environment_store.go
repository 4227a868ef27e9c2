package auth

import (
	"os"
	"time"
)

// Environment variables consulted for the token, highest precedence first
var tokenEnvVars = []string{"INSTALYTICS_APIFY_TOKEN", "APIFY_API_TOKEN"}

// EnvironmentStore implements TokenStore over environment variables. It is
// read-only and only ever holds the default token.
type EnvironmentStore struct {
	getenv func(string) string
}

// NewEnvironmentStore creates a new environment-based token store
func NewEnvironmentStore() *EnvironmentStore {
	return &EnvironmentStore{getenv: os.Getenv}
}

// Store is not supported for environment variables
func (e *EnvironmentStore) Store(token *Token) error {
	return ErrStoreUnavailable
}

// Retrieve returns the token from the environment for the default name
func (e *EnvironmentStore) Retrieve(name string) (*Token, error) {
	if name != "" && name != DefaultName {
		return nil, ErrTokenNotFound
	}

	for _, key := range tokenEnvVars {
		if value := e.getenv(key); value != "" {
			return &Token{
				Name:         DefaultName,
				Value:        value,
				LastModified: time.Now(),
			}, nil
		}
	}
	return nil, ErrTokenNotFound
}

// List returns the default token if the environment carries one
func (e *EnvironmentStore) List() ([]*Token, error) {
	token, err := e.Retrieve(DefaultName)
	if err != nil {
		return []*Token{}, nil
	}
	return []*Token{token}, nil
}

// Delete is not supported for environment variables
func (e *EnvironmentStore) Delete(name string) error {
	return ErrStoreUnavailable
}

// Exists checks if the environment carries a token
func (e *EnvironmentStore) Exists(name string) bool {
	_, err := e.Retrieve(name)
	return err == nil
}

// Source reports SourceEnvironment
func (e *EnvironmentStore) Source() Source {
	return SourceEnvironment
}
