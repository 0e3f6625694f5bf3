// Package filestore keeps each agenda slot in its own file under a base
// directory using diskv.
package filestore

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io/fs"

	"github.com/peterbourgon/diskv/v3"

	"github.com/mistakeknot/setores/internal/storage"
)

var _ storage.Slot = (*Store)(nil)

type Store struct {
	d        *diskv.Diskv
	basePath string
}

// New returns a Store rooted at basePath. The directory is created on the
// first write.
func New(basePath string) (*Store, error) {
	if basePath == "" {
		return nil, fmt.Errorf("base path required")
	}
	return &Store{d: diskv.New(diskv.Options{
		BasePath:          basePath,
		AdvancedTransform: keyToPath,
		InverseTransform:  pathToKey,
		CacheSizeMax:      1024 * 1024, // 1MB
	}), basePath: basePath}, nil
}

func (s *Store) BasePath() string {
	return s.basePath
}

func (s *Store) Read(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := s.d.Read(key)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, storage.ErrSlotNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read slot %s: %w", key, err)
	}
	return data, nil
}

func (s *Store) Write(ctx context.Context, key string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.d.Write(key, data); err != nil {
		return fmt.Errorf("write slot %s: %w", key, err)
	}
	return nil
}

// Keys lists every slot on disk.
func (s *Store) Keys(ctx context.Context) []string {
	var out []string
	for k := range s.d.Keys(ctx.Done()) {
		out = append(out, k)
	}
	return out
}

// Slot keys carry owner names, so they are encoded into safe file names.
func keyToPath(key string) *diskv.PathKey {
	return &diskv.PathKey{
		Path:     []string{},
		FileName: base64.RawURLEncoding.EncodeToString([]byte(key)) + ".json",
	}
}

func pathToKey(pk *diskv.PathKey) string {
	name := pk.FileName
	if len(name) > len(".json") {
		name = name[:len(name)-len(".json")]
	}
	raw, err := base64.RawURLEncoding.DecodeString(name)
	if err != nil {
		return pk.FileName
	}
	return string(raw)
}
