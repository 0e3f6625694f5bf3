package commands

import (
	"fmt"

	base "github.com/n3wscott/cli-base/pkg/commands/options"
	"github.com/spf13/cobra"

	"github.com/mistakeknot/setores/internal/auth"
	"github.com/mistakeknot/setores/internal/config"
)

func addInit(topLevel *cobra.Command) {
	cmd := &cobra.Command{
		Use:   "init",
		Short: base.Wrap80("Create an API key for an agenda owner."),
		Example: `
setores init --owner ana
setores init --owner ana --keys-file ./keys.yaml
`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := settings(cmd)
			if err != nil {
				return err
			}
			path := keysPath(cmd, cfg)
			key, err := auth.AddKey(path, cfg.Owner)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "owner: %s\nkey: %s\nkeys file: %s\n", cfg.Owner, key, path)
			return nil
		},
	}
	cmd.Flags().String("keys-file", "", "API keys file.")

	topLevel.AddCommand(cmd)
}

// keysPath prefers --keys-file, then SETORES_KEYS_FILE, then the config.
func keysPath(cmd *cobra.Command, cfg *config.Config) string {
	if f := cmd.Flags().Lookup("keys-file"); f != nil && f.Changed {
		return cfg.KeysFile
	}
	return auth.ResolveKeysPath(cfg.KeysFile)
}
