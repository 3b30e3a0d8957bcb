// Package settings stores provider API keys for autoi18n.
//
// Keys live in $XDG_DATA_HOME/autoi18n/auth.json (default
// ~/.local/share/autoi18n/auth.json), a JSON object keyed by provider ID.
// The file is written with 0600 permissions.
//
// Key lookup order used by the CLI:
//  1. --api-key flag
//  2. AUTOI18N_API_KEY
//  3. the provider's own variable (OPENAI_API_KEY, GEMINI_API_KEY, ...)
//  4. this store
package settings

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/minios-linux/autoi18n/fileio"
)

const (
	dataDirName = "autoi18n"
	fileName    = "auth.json"
)

// Info is the entry stored per provider.
type Info struct {
	Key string `json:"key"`
	// BaseURL is kept for endpoints configured at login (custom-openai).
	BaseURL string `json:"baseUrl,omitempty"`
}

// Store holds credentials keyed by provider ID.
type Store map[string]*Info

// ---------------------------------------------------------------------------
// File path
// ---------------------------------------------------------------------------

// DataDir returns the autoi18n data directory, honoring $XDG_DATA_HOME.
func DataDir() (string, error) {
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, dataDirName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(home, ".local", "share", dataDirName), nil
}

func filePath() (string, error) {
	dir, err := DataDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, fileName), nil
}

// FilePath returns the auth.json path for display.
func FilePath() string {
	p, err := filePath()
	if err != nil {
		return ""
	}
	return p
}

// ---------------------------------------------------------------------------
// Load / Save
// ---------------------------------------------------------------------------

// Load reads the store. A missing or unreadable file yields an empty store.
func Load() Store {
	path, err := filePath()
	if err != nil {
		return make(Store)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return make(Store)
	}
	var store Store
	if err := json.Unmarshal(data, &store); err != nil || store == nil {
		return make(Store)
	}
	return store
}

// Save writes the store with 0600 permissions.
func Save(store Store) error {
	path, err := filePath()
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(store, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling credentials: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}
	if err := fileio.WriteAtomic(path, append(data, '\n'), 0600); err != nil {
		return fmt.Errorf("writing auth file: %w", err)
	}
	return os.Chmod(path, 0600)
}

// ---------------------------------------------------------------------------
// Accessors
// ---------------------------------------------------------------------------

// SetAPIKey stores key (and an optional base URL) for a provider.
func SetAPIKey(providerID, key, baseURL string) error {
	store := Load()
	store[providerID] = &Info{Key: key, BaseURL: baseURL}
	return Save(store)
}

// GetAPIKey returns the stored key for a provider, or "".
func GetAPIKey(providerID string) string {
	if info := Load()[providerID]; info != nil {
		return info.Key
	}
	return ""
}

// GetBaseURL returns the stored base URL for a provider, or "".
func GetBaseURL(providerID string) string {
	if info := Load()[providerID]; info != nil {
		return info.BaseURL
	}
	return ""
}

// Remove deletes the entry for a provider.
func Remove(providerID string) error {
	store := Load()
	if _, ok := store[providerID]; !ok {
		return nil
	}
	delete(store, providerID)
	return Save(store)
}

// RemoveAll deletes the auth file.
func RemoveAll() error {
	path, err := filePath()
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing auth file: %w", err)
	}
	return nil
}

// Providers returns the IDs with stored keys, sorted.
func (s Store) Providers() []string {
	ids := make([]string, 0, len(s))
	for id := range s {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// MaskKey returns a key shortened for display.
func MaskKey(key string) string {
	if len(key) <= 8 {
		return "****"
	}
	return key[:4] + "..." + key[len(key)-4:]
}
