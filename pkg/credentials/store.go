package credentials

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/mcu-template/taskboot/pkg/netjoin"
)

// FileVersion is the current version of the credentials file format.
const FileVersion = 1

// Credentials are the stored settings for one network.
type Credentials struct {
	// Version is the file format version.
	Version int `json:"version"`

	// SavedAt is when the credentials were last saved.
	SavedAt time.Time `json:"saved_at"`

	SSID       string `json:"ssid"`
	Passphrase string `json:"passphrase,omitempty"`

	// PSK is the derived pre-shared key, hex encoded. Empty for open networks.
	PSK string `json:"psk,omitempty"`

	// MinAuth is the weakest auth mode accepted for this network.
	MinAuth netjoin.AuthMode `json:"min_auth"`
}

// New builds validated credentials and derives the PSK.
func New(ssid, passphrase string, minAuth netjoin.AuthMode) (*Credentials, error) {
	c := &Credentials{
		SSID:       ssid,
		Passphrase: passphrase,
		MinAuth:    minAuth,
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	if passphrase != "" {
		c.PSK = DerivePSKHex(passphrase, ssid)
	}
	return c, nil
}

// JoinConfig converts the credentials into a join configuration with the
// given retry budget.
func (c *Credentials) JoinConfig(maxRetries int) netjoin.JoinConfig {
	cfg := netjoin.DefaultJoinConfig(c.SSID, c.Passphrase)
	cfg.MaxRetries = maxRetries
	cfg.MinAuth = c.MinAuth
	return cfg
}

// Store loads and saves credentials.
type Store interface {
	Save(c *Credentials) error
	Load() (*Credentials, error)
	Clear() error
}

// FileStore manages credentials in a JSON file.
type FileStore struct {
	mu   sync.Mutex
	path string
}

// NewFileStore creates a store backed by the file at path.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Path returns the backing file path.
func (s *FileStore) Path() string {
	return s.path
}

// Save validates and persists the credentials.
func (s *FileStore) Save(c *Credentials) error {
	if err := c.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return err
	}

	c.Version = FileVersion
	if c.SavedAt.IsZero() {
		c.SavedAt = time.Now()
	}
	if c.PSK == "" && c.Passphrase != "" {
		c.PSK = DerivePSKHex(c.Passphrase, c.SSID)
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(s.path, data, 0600)
}

// Load reads the credentials from disk.
// Returns nil, nil if the file doesn't exist.
func (s *FileStore) Load() (*Credentials, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	c := &Credentials{}
	if err := json.Unmarshal(data, c); err != nil {
		return nil, fmt.Errorf("parse %s: %w", s.path, err)
	}
	if c.Version > FileVersion {
		return nil, fmt.Errorf("credentials file version %d not supported", c.Version)
	}
	return c, nil
}

// Clear removes the credentials file.
func (s *FileStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := os.Remove(s.path)
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

var _ Store = (*FileStore)(nil)
