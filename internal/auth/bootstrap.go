package auth

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"strings"
)

// DevOwner owns the key written when no keys file exists.
const DevOwner = "dev"

type BootstrapResult struct {
	KeysFile string
	Owner    string
	Key      string
	Created  bool
}

// BootstrapDevKey writes a keys file holding one fresh key for owner unless
// the file already exists.
func BootstrapDevKey(keysPath, owner string) (*BootstrapResult, error) {
	if keysPath == "" {
		return nil, fmt.Errorf("keys path required")
	}
	if owner == "" {
		owner = DevOwner
	}

	if _, err := os.Stat(keysPath); err == nil {
		return &BootstrapResult{KeysFile: keysPath, Created: false}, nil
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("check keys file: %w", err)
	}

	key, err := GenerateKey()
	if err != nil {
		return nil, err
	}
	cfg := keysFile{Owners: map[string]ownerKeys{owner: {Keys: []string{key}}}}
	if err := writeKeysFile(keysPath, cfg); err != nil {
		return nil, err
	}
	return &BootstrapResult{KeysFile: keysPath, Owner: owner, Key: key, Created: true}, nil
}

// AddKey appends a fresh key for owner to the keys file at path, creating
// the file when needed, and returns the key. Other owners and the policy
// already in the file are kept.
func AddKey(path, owner string) (string, error) {
	path = strings.TrimSpace(path)
	owner = strings.TrimSpace(owner)
	if path == "" {
		return "", fmt.Errorf("keys file path required")
	}
	if owner == "" {
		return "", fmt.Errorf("owner required")
	}

	cfg, err := readKeysFile(path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return "", err
	}
	if cfg.Owners == nil {
		cfg.Owners = make(map[string]ownerKeys)
	}
	key, err := GenerateKey()
	if err != nil {
		return "", err
	}
	keys := cfg.Owners[owner]
	keys.Keys = append(keys.Keys, key)
	cfg.Owners[owner] = keys
	if err := writeKeysFile(path, cfg); err != nil {
		return "", err
	}
	return key, nil
}

// GenerateKey returns 32 random bytes, base64url encoded.
func GenerateKey() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate key: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
