// Package auth maps bearer API keys to agenda owners.
package auth

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// keys.yaml:
//
//	default_policy:
//	  allow_localhost_without_auth: true
//	owners:
//	  ana:
//	    keys: [k1, k2]
type keysFile struct {
	DefaultPolicy struct {
		AllowLocalhostWithoutAuth *bool `yaml:"allow_localhost_without_auth"`
	} `yaml:"default_policy"`
	Owners map[string]ownerKeys `yaml:"owners"`
}

type ownerKeys struct {
	Keys []string `yaml:"keys"`
}

type Keyring struct {
	AllowLocalhostWithoutAuth bool
	keyToOwner                map[string]string
}

// ResolveKeysPath prefers SETORES_KEYS_FILE over fallback.
func ResolveKeysPath(fallback string) string {
	if v := strings.TrimSpace(os.Getenv("SETORES_KEYS_FILE")); v != "" {
		return v
	}
	return fallback
}

// LoadKeyring reads the keys file at path, bootstrapping one with a dev key
// when it does not exist yet. An empty path yields a localhost-only keyring.
func LoadKeyring(path string) (*Keyring, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return defaultKeyring(), nil
	}
	cfg, err := readKeysFile(path)
	if errors.Is(err, os.ErrNotExist) {
		if _, err := BootstrapDevKey(path, DevOwner); err != nil {
			return nil, fmt.Errorf("bootstrap dev key: %w", err)
		}
		cfg, err = readKeysFile(path)
	}
	if err != nil {
		return nil, err
	}
	ring := defaultKeyring()
	if cfg.DefaultPolicy.AllowLocalhostWithoutAuth != nil {
		ring.AllowLocalhostWithoutAuth = *cfg.DefaultPolicy.AllowLocalhostWithoutAuth
	}
	for owner, keys := range cfg.Owners {
		for _, key := range keys.Keys {
			key = strings.TrimSpace(key)
			if key == "" {
				continue
			}
			if existing, ok := ring.keyToOwner[key]; ok && existing != owner {
				return nil, fmt.Errorf("key reused across owners: %q", key)
			}
			ring.keyToOwner[key] = owner
		}
	}
	return ring, nil
}

func readKeysFile(path string) (keysFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return keysFile{}, fmt.Errorf("read keys file: %w", err)
	}
	var cfg keysFile
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return keysFile{}, fmt.Errorf("parse keys file: %w", err)
	}
	return cfg, nil
}

// writeKeysFile turns the localhost bypass on unless cfg says otherwise.
func writeKeysFile(path string, cfg keysFile) error {
	if cfg.DefaultPolicy.AllowLocalhostWithoutAuth == nil {
		allow := true
		cfg.DefaultPolicy.AllowLocalhostWithoutAuth = &allow
	}
	data, err := yaml.Marshal(&cfg)
	if err != nil {
		return fmt.Errorf("marshal keys file: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("create keys dir: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("write keys file: %w", err)
	}
	return nil
}

func defaultKeyring() *Keyring {
	return &Keyring{AllowLocalhostWithoutAuth: true, keyToOwner: make(map[string]string)}
}

func NewKeyring(allowLocalhost bool, keyToOwner map[string]string) *Keyring {
	clone := make(map[string]string, len(keyToOwner))
	for k, v := range keyToOwner {
		clone[k] = v
	}
	return &Keyring{AllowLocalhostWithoutAuth: allowLocalhost, keyToOwner: clone}
}

func (k *Keyring) OwnerForKey(key string) (string, bool) {
	if k == nil {
		return "", false
	}
	owner, ok := k.keyToOwner[key]
	return owner, ok
}

// Len returns the number of configured keys.
func (k *Keyring) Len() int {
	if k == nil {
		return 0
	}
	return len(k.keyToOwner)
}
