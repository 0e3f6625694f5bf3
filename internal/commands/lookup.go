package commands

import (
	"context"
	"errors"
	"fmt"
	"strings"

	base "github.com/n3wscott/cli-base/pkg/commands/options"
	"github.com/spf13/cobra"

	"github.com/mistakeknot/setores/client"
	"github.com/mistakeknot/setores/internal/config"
	"github.com/mistakeknot/setores/internal/core"
	"github.com/mistakeknot/setores/internal/directory"
	"github.com/mistakeknot/setores/internal/printers"
)

// directorySource answers directory queries from the local data file or a
// remote server.
type directorySource interface {
	Search(ctx context.Context, f core.SearchFilters) ([]core.Setor, error)
	Lookup(ctx context.Context, key string) (core.Setor, error)
	Statistics(ctx context.Context) (core.Statistics, error)
}

type localDirectory struct {
	dir *directory.Directory
}

func (l localDirectory) Search(_ context.Context, f core.SearchFilters) ([]core.Setor, error) {
	return l.dir.Search(f), nil
}

func (l localDirectory) Lookup(_ context.Context, key string) (core.Setor, error) {
	return l.dir.Lookup(key)
}

func (l localDirectory) Statistics(_ context.Context) (core.Statistics, error) {
	return l.dir.Statistics(), nil
}

type remoteDirectory struct {
	c *client.Client
}

func (r remoteDirectory) Search(ctx context.Context, f core.SearchFilters) ([]core.Setor, error) {
	return r.c.Search(ctx, f)
}

func (r remoteDirectory) Lookup(ctx context.Context, key string) (core.Setor, error) {
	s, err := r.c.Setor(ctx, key)
	if errors.Is(err, client.ErrNotFound) {
		return core.Setor{}, core.ErrNotFound
	}
	return s, err
}

func (r remoteDirectory) Statistics(ctx context.Context) (core.Statistics, error) {
	return r.c.Statistics(ctx)
}

func openDirectory(cfg *config.Config) (directorySource, error) {
	if cfg.ServerURL != "" {
		return remoteDirectory{c: newClient(cfg)}, nil
	}
	dir, err := directory.Load(cfg.Data)
	if err != nil {
		return nil, err
	}
	return localDirectory{dir: dir}, nil
}

func newClient(cfg *config.Config) *client.Client {
	return client.New(cfg.ServerURL, client.WithAPIKey(cfg.APIKey), client.WithOwner(cfg.Owner))
}

func addLookup(topLevel *cobra.Command) {
	output := &base.OutputOptions{}
	f := core.SearchFilters{}

	cmd := &cobra.Command{
		Use:   "lookup [query]",
		Short: base.Wrap80("Search setores by name, sigla, location, email or responsável."),
		Example: `
setores lookup tecnologia
setores lookup --bloco A --andar "2º andar"
setores lookup rh --server http://127.0.0.1:7340
`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := settings(cmd)
			if err != nil {
				return output.HandleError(err)
			}
			src, err := openDirectory(cfg)
			if err != nil {
				return output.HandleError(err)
			}
			f.Query = strings.Join(args, " ")
			list, err := src.Search(cmd.Context(), f)
			if err != nil {
				return output.HandleError(err)
			}
			p := printers.New(cmd.OutOrStdout())
			if output.JSON {
				return p.JSON(list)
			}
			p.Setores(list)
			return nil
		},
	}
	cmd.Flags().StringVar(&f.Bloco, "bloco", "", "Only setores in this bloco.")
	cmd.Flags().StringVar(&f.Andar, "andar", "", "Only setores on this andar.")
	base.AddOutputArg(cmd, output)

	topLevel.AddCommand(cmd)
}

func addShow(topLevel *cobra.Command) {
	output := &base.OutputOptions{}

	cmd := &cobra.Command{
		Use:   "show <slug|id>",
		Short: base.Wrap80("Show the contact card of one setor."),
		Example: `
setores show dti
setores show 12
`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := settings(cmd)
			if err != nil {
				return output.HandleError(err)
			}
			src, err := openDirectory(cfg)
			if err != nil {
				return output.HandleError(err)
			}
			s, err := src.Lookup(cmd.Context(), args[0])
			if errors.Is(err, core.ErrNotFound) {
				return output.HandleError(fmt.Errorf("setor %q not found", args[0]))
			}
			if err != nil {
				return output.HandleError(err)
			}
			p := printers.New(cmd.OutOrStdout())
			if output.JSON {
				return p.JSON(s)
			}
			p.Setor(s)
			return nil
		},
	}
	base.AddOutputArg(cmd, output)

	topLevel.AddCommand(cmd)
}

func addStats(topLevel *cobra.Command) {
	output := &base.OutputOptions{}

	cmd := &cobra.Command{
		Use:   "stats",
		Short: base.Wrap80("Count setores, blocos, andares and ramais."),
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := settings(cmd)
			if err != nil {
				return output.HandleError(err)
			}
			src, err := openDirectory(cfg)
			if err != nil {
				return output.HandleError(err)
			}
			st, err := src.Statistics(cmd.Context())
			if err != nil {
				return output.HandleError(err)
			}
			p := printers.New(cmd.OutOrStdout())
			if output.JSON {
				return p.JSON(st)
			}
			p.Statistics(st)
			return nil
		},
	}
	base.AddOutputArg(cmd, output)

	topLevel.AddCommand(cmd)
}
