// Package commands builds the setores command line.
package commands

import (
	"context"
	"fmt"
	"strings"
	"time"
	_ "time/tzdata"

	base "github.com/n3wscott/cli-base/pkg/commands/options"
	"github.com/spf13/cobra"

	"github.com/mistakeknot/setores/internal/config"
	"github.com/mistakeknot/setores/internal/storage"
	"github.com/mistakeknot/setores/internal/storage/filestore"
	"github.com/mistakeknot/setores/internal/storage/postgres"
	"github.com/mistakeknot/setores/internal/storage/sqlite"
)

func New() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "setores",
		Short: base.Wrap80("Department directory and personal agenda on the command line."),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
		SilenceUsage: true,
	}
	cmd.PersistentFlags().String("server", "", "Base URL of a setores server. Local files are used when empty.")
	cmd.PersistentFlags().String("owner", "", "Agenda owner.")
	cmd.PersistentFlags().String("api-key", "", "API key sent to the server.")
	cmd.PersistentFlags().String("data", "", "Path to the setores JSON file.")

	AddCommands(cmd)
	return cmd
}

func AddCommands(topLevel *cobra.Command) {
	addServe(topLevel)
	addInit(topLevel)
	addLookup(topLevel)
	addShow(topLevel)
	addStats(topLevel)
	addAgenda(topLevel)
	addVersion(topLevel)
}

// settings loads the config file and environment, then applies any flag the
// user set explicitly.
func settings(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	override := func(name string, dst *string) {
		f := cmd.Flags().Lookup(name)
		if f != nil && f.Changed {
			*dst = strings.TrimSpace(f.Value.String())
		}
	}
	override("server", &cfg.ServerURL)
	override("owner", &cfg.Owner)
	override("api-key", &cfg.APIKey)
	override("data", &cfg.Data)
	override("addr", &cfg.Addr)
	override("socket", &cfg.Socket)
	override("keys-file", &cfg.KeysFile)
	override("storage", &cfg.Storage.Backend)
	override("storage-path", &cfg.Storage.Path)
	return cfg, nil
}

// clock returns a time source in the configured time zone.
func clock(cfg *config.Config) (func() time.Time, error) {
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", cfg.Timezone, err)
	}
	return func() time.Time { return time.Now().In(loc) }, nil
}

// openSlot opens the configured agenda storage backend.
func openSlot(ctx context.Context, cfg *config.Config) (storage.Slot, func() error, error) {
	noop := func() error { return nil }
	switch cfg.Storage.Backend {
	case config.BackendSQLite:
		st, err := sqlite.New(cfg.Storage.Path)
		if err != nil {
			return nil, nil, err
		}
		rs := sqlite.NewResilient(st)
		return rs, rs.Close, nil
	case config.BackendFile:
		st, err := filestore.New(cfg.Storage.Path)
		if err != nil {
			return nil, nil, err
		}
		return st, noop, nil
	case config.BackendPostgres:
		st, err := postgres.Open(ctx, cfg.Storage.DSN)
		if err != nil {
			return nil, nil, err
		}
		return st, st.Close, nil
	case config.BackendMemory:
		return storage.NewInMemory(), noop, nil
	default:
		return nil, nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}
}
