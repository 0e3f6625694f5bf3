// Package config loads service and CLI settings from .setores.yaml and
// SETORES_* environment variables.
package config

import (
	"fmt"
	"os"
	"strings"

	homedir "github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"
)

// Storage backends.
const (
	BackendSQLite   = "sqlite"
	BackendFile     = "file"
	BackendPostgres = "postgres"
	BackendMemory   = "memory"
)

type Storage struct {
	Backend string
	Path    string
	DSN     string
}

type Config struct {
	Addr      string
	Socket    string
	Data      string
	KeysFile  string
	Timezone  string
	Storage   Storage
	ServerURL string
	APIKey    string
	Owner     string
}

// Load reads .setores.yaml from SETORES_CONFIG_PATH (when set), the working
// directory and the home directory. A missing file is not an error.
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetConfigName(".setores") // .yaml is implicit
	v.SetEnvPrefix("SETORES")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if override := os.Getenv("SETORES_CONFIG_PATH"); override != "" {
		v.AddConfigPath(override)
	}
	v.AddConfigPath("./")
	if home, err := homedir.Dir(); err == nil {
		v.AddConfigPath(home)
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}
	return fromViper(v)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("addr", "127.0.0.1:7340")
	v.SetDefault("socket", "")
	v.SetDefault("data", "setores.json")
	v.SetDefault("keys_file", "~/.setores/keys.yaml")
	v.SetDefault("timezone", "America/Sao_Paulo")
	v.SetDefault("storage.backend", BackendSQLite)
	v.SetDefault("storage.path", "~/.setores/agenda.db")
	v.SetDefault("storage.dsn", "")
	v.SetDefault("server", "")
	v.SetDefault("api_key", "")
	v.SetDefault("owner", "")
}

func fromViper(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		Addr:      v.GetString("addr"),
		Socket:    v.GetString("socket"),
		Timezone:  v.GetString("timezone"),
		ServerURL: v.GetString("server"),
		APIKey:    v.GetString("api_key"),
		Owner:     v.GetString("owner"),
		Storage: Storage{
			Backend: strings.ToLower(v.GetString("storage.backend")),
			DSN:     v.GetString("storage.dsn"),
		},
	}
	var err error
	if cfg.Data, err = homedir.Expand(v.GetString("data")); err != nil {
		return nil, fmt.Errorf("expand data path: %w", err)
	}
	if cfg.KeysFile, err = homedir.Expand(v.GetString("keys_file")); err != nil {
		return nil, fmt.Errorf("expand keys path: %w", err)
	}
	if cfg.Socket, err = homedir.Expand(cfg.Socket); err != nil {
		return nil, fmt.Errorf("expand socket path: %w", err)
	}
	if cfg.Storage.Path, err = homedir.Expand(v.GetString("storage.path")); err != nil {
		return nil, fmt.Errorf("expand storage path: %w", err)
	}
	switch cfg.Storage.Backend {
	case BackendSQLite, BackendFile, BackendPostgres, BackendMemory:
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}
	if cfg.Storage.Backend == BackendPostgres && cfg.Storage.DSN == "" {
		return nil, fmt.Errorf("storage.dsn required for postgres backend")
	}
	return cfg, nil
}
