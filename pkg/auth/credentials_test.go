package auth

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenManager(t *testing.T) {
	manager, store := NewMemoryManager()

	source, err := manager.Store(&Token{Value: "apify_api_test_token_12345"})
	if err != nil {
		t.Fatalf("Failed to store token: %v", err)
	}
	if source != SourceMemory {
		t.Errorf("Source mismatch: got %s, want %s", source, SourceMemory)
	}

	retrieved, from, err := manager.Retrieve("")
	if err != nil {
		t.Fatalf("Failed to retrieve token: %v", err)
	}
	if retrieved.Name != DefaultName {
		t.Errorf("Name mismatch: got %s, want %s", retrieved.Name, DefaultName)
	}
	if retrieved.Value != "apify_api_test_token_12345" {
		t.Errorf("Value mismatch: got %s", retrieved.Value)
	}
	if from != SourceMemory {
		t.Errorf("Source mismatch: got %s", from)
	}
	if retrieved.LastModified.IsZero() {
		t.Error("LastModified should be stamped on store")
	}

	if got := manager.Resolve(); got != "apify_api_test_token_12345" {
		t.Errorf("Resolve mismatch: got %s", got)
	}

	tokens, err := manager.List()
	if err != nil {
		t.Errorf("Failed to list tokens: %v", err)
	}
	if len(tokens) != 1 {
		t.Errorf("Expected 1 token in list, got %d", len(tokens))
	}

	if err := manager.Delete(""); err != nil {
		t.Errorf("Failed to delete token: %v", err)
	}
	if _, _, err := manager.Retrieve(""); !errors.Is(err, ErrTokenNotFound) {
		t.Errorf("Expected ErrTokenNotFound after delete, got %v", err)
	}
	if store.Count() != 0 {
		t.Errorf("Expected 0 tokens after deletion, got %d", store.Count())
	}
	if manager.Resolve() != "" {
		t.Error("Resolve should be empty once the token is gone")
	}
}

func TestManagerRejectsInvalidTokens(t *testing.T) {
	manager, store := NewMemoryManager()

	for _, value := range []string{"", "has space", "line\nbreak"} {
		_, err := manager.Store(&Token{Value: value})
		assert.ErrorIs(t, err, ErrInvalidToken, "value %q", value)
	}
	assert.Equal(t, 0, store.Count())
}

func TestManagerFallsBackToNextStore(t *testing.T) {
	broken := NewMemoryStore()
	broken.StoreError = errors.New("keychain locked")
	working := NewMemoryStore()
	manager := NewManagerWithStores(broken, working)

	source, err := manager.Store(&Token{Name: "ci", Value: "apify_api_ci"})
	require.NoError(t, err)
	assert.Equal(t, SourceMemory, source)
	assert.Equal(t, 0, broken.Count())
	assert.Equal(t, 1, working.Count())

	token, _, err := manager.Retrieve("ci")
	require.NoError(t, err)
	assert.Equal(t, "apify_api_ci", token.Value)
}

func TestManagerStoreFailsWhenEveryStoreFails(t *testing.T) {
	manager := NewManagerWithStores(NewEnvironmentStore())

	_, err := manager.Store(&Token{Value: "apify_api_x"})
	assert.ErrorIs(t, err, ErrStoreUnavailable)
}

func TestManagerListKeepsNewestVersion(t *testing.T) {
	older := NewMemoryStore()
	newer := NewMemoryStore()
	now := time.Now()
	require.NoError(t, older.Store(&Token{Name: DefaultName, Value: "old", LastModified: now.Add(-time.Hour)}))
	require.NoError(t, newer.Store(&Token{Name: DefaultName, Value: "new", LastModified: now}))
	require.NoError(t, newer.Store(&Token{Name: "alt", Value: "alt", LastModified: now}))

	manager := NewManagerWithStores(older, newer)
	tokens, err := manager.List()
	require.NoError(t, err)
	require.Len(t, tokens, 2)
	assert.Equal(t, "alt", tokens[0].Name)
	assert.Equal(t, DefaultName, tokens[1].Name)
	assert.Equal(t, "new", tokens[1].Value)
}

func TestManagerDeleteMissing(t *testing.T) {
	manager, _ := NewMemoryManager()
	assert.ErrorIs(t, manager.Delete("nope"), ErrTokenNotFound)
}

func TestManagerDeleteSurfacesStoreErrors(t *testing.T) {
	store := NewMemoryStore()
	store.DeleteError = errors.New("disk full")
	manager := NewManagerWithStores(store)

	err := manager.Delete(DefaultName)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
}

func TestEncryptedFileStore(t *testing.T) {
	t.Setenv(PassphraseEnv, "test_passphrase_123")
	path := filepath.Join(t.TempDir(), "token.enc")

	store, err := NewEncryptedFileStore(path)
	if err != nil {
		t.Fatalf("Failed to create encrypted store: %v", err)
	}

	token := &Token{Name: DefaultName, Value: "apify_api_encrypted_secret"}
	if err := store.Store(token); err != nil {
		t.Fatalf("Failed to store in encrypted file: %v", err)
	}

	retrieved, err := store.Retrieve(DefaultName)
	if err != nil {
		t.Fatalf("Failed to retrieve from encrypted file: %v", err)
	}
	if retrieved.Value != token.Value {
		t.Errorf("Value mismatch after encryption/decryption")
	}

	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if bytes.Contains(content, []byte("apify_api_encrypted_secret")) {
		t.Error("File contains plaintext token")
	}

	reopened, err := NewEncryptedFileStore(path)
	require.NoError(t, err)
	assert.True(t, reopened.Exists(DefaultName))

	require.NoError(t, reopened.Delete(DefaultName))
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err), "file should be removed with its last token")
	assert.ErrorIs(t, reopened.Delete(DefaultName), ErrTokenNotFound)
}

func TestEncryptedFileStoreWrongPassphrase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token.enc")

	t.Setenv(PassphraseEnv, "first")
	store, err := NewEncryptedFileStore(path)
	require.NoError(t, err)
	require.NoError(t, store.Store(&Token{Name: DefaultName, Value: "apify_api_x"}))

	t.Setenv(PassphraseEnv, "second")
	other, err := NewEncryptedFileStore(path)
	require.NoError(t, err)

	_, err = other.Retrieve(DefaultName)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrTokenNotFound)
}

func TestEncryptedFileStoreGeneratesPassphrase(t *testing.T) {
	t.Setenv(PassphraseEnv, "")
	dir := t.TempDir()

	store, err := NewEncryptedFileStore(filepath.Join(dir, "token.enc"))
	require.NoError(t, err)
	require.NoError(t, store.Store(&Token{Name: DefaultName, Value: "apify_api_generated"}))

	info, err := os.Stat(filepath.Join(dir, ".passphrase"))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	again, err := NewEncryptedFileStore(filepath.Join(dir, "token.enc"))
	require.NoError(t, err)
	token, err := again.Retrieve(DefaultName)
	require.NoError(t, err)
	assert.Equal(t, "apify_api_generated", token.Value)
}

func TestEnvironmentStore(t *testing.T) {
	t.Setenv("INSTALYTICS_APIFY_TOKEN", "")
	t.Setenv("APIFY_API_TOKEN", "apify_api_env")

	store := NewEnvironmentStore()

	token, err := store.Retrieve("")
	if err != nil {
		t.Fatalf("Failed to retrieve from environment: %v", err)
	}
	if token.Value != "apify_api_env" {
		t.Errorf("Value mismatch: got %s, want apify_api_env", token.Value)
	}

	t.Setenv("INSTALYTICS_APIFY_TOKEN", "apify_api_preferred")
	token, err = store.Retrieve(DefaultName)
	require.NoError(t, err)
	assert.Equal(t, "apify_api_preferred", token.Value)

	if _, err := store.Retrieve("other"); !errors.Is(err, ErrTokenNotFound) {
		t.Errorf("Expected ErrTokenNotFound for a named token, got %v", err)
	}
	if err := store.Store(&Token{}); err != ErrStoreUnavailable {
		t.Error("Expected ErrStoreUnavailable for environment store")
	}
	if err := store.Delete(DefaultName); err != ErrStoreUnavailable {
		t.Error("Expected ErrStoreUnavailable for environment store")
	}
}

func TestEnvironmentStoreEmpty(t *testing.T) {
	store := &EnvironmentStore{getenv: func(string) string { return "" }}

	assert.False(t, store.Exists(DefaultName))
	tokens, err := store.List()
	require.NoError(t, err)
	assert.Empty(t, tokens)
}

func TestManagerPrefersEarlierStore(t *testing.T) {
	t.Setenv(PassphraseEnv, "test_passphrase_real_manager")
	t.Setenv("INSTALYTICS_APIFY_TOKEN", "apify_api_from_env")

	fileStore, err := NewEncryptedFileStore(filepath.Join(t.TempDir(), "token.enc"))
	require.NoError(t, err)
	manager := NewManagerWithStores(fileStore, NewEnvironmentStore())

	token, source, err := manager.Retrieve(DefaultName)
	require.NoError(t, err)
	assert.Equal(t, SourceEnvironment, source)
	assert.Equal(t, "apify_api_from_env", token.Value)

	source, err = manager.Store(&Token{Value: "apify_api_from_file"})
	require.NoError(t, err)
	assert.Equal(t, SourceFile, source)

	token, source, err = manager.Retrieve(DefaultName)
	require.NoError(t, err)
	assert.Equal(t, SourceFile, source)
	assert.Equal(t, "apify_api_from_file", token.Value)

	require.NoError(t, manager.Delete(DefaultName))
	_, source, err = manager.Retrieve(DefaultName)
	require.NoError(t, err)
	assert.Equal(t, SourceEnvironment, source)
}

func TestMemoryStoreErrorInjection(t *testing.T) {
	store := NewMemoryStore()

	tokens, err := store.List()
	require.NoError(t, err)
	assert.Empty(t, tokens)

	require.NoError(t, store.Store(&Token{Name: "a", Value: "v"}))
	assert.True(t, store.Exists("a"))
	assert.Equal(t, 1, store.Count())

	store.ListError = errors.New("injected error")
	_, err = store.List()
	assert.EqualError(t, err, "injected error")
}

func TestMask(t *testing.T) {
	assert.Equal(t, "********", Mask("short"))
	assert.Equal(t, "apif...wxyz", Mask("apify_api_abcdefwxyz"))
}

func TestConfigDirHonoursXDG(t *testing.T) {
	if runtime.GOOS != "linux" {
		t.Skip("XDG_CONFIG_HOME is only consulted on linux")
	}
	base := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", base)

	dir, err := ConfigDir()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(base, "instalytics"), dir)
	assert.DirExists(t, dir)
}
