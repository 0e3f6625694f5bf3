package commands

import (
	"log"
	"os"
	"os/signal"
	"syscall"

	base "github.com/n3wscott/cli-base/pkg/commands/options"
	"github.com/spf13/cobra"

	"github.com/mistakeknot/setores/internal/agenda"
	"github.com/mistakeknot/setores/internal/auth"
	"github.com/mistakeknot/setores/internal/directory"
	httpapi "github.com/mistakeknot/setores/internal/http"
	"github.com/mistakeknot/setores/internal/server"
	"github.com/mistakeknot/setores/internal/ws"
)

func addServe(topLevel *cobra.Command) {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: base.Wrap80("Serve the directory and agendas over HTTP."),
		Example: `
setores serve
setores serve --addr :7340 --storage file --storage-path ~/.setores/slots
`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := settings(cmd)
			if err != nil {
				return err
			}
			now, err := clock(cfg)
			if err != nil {
				return err
			}
			dir, err := directory.Load(cfg.Data)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			slot, closeSlot, err := openSlot(ctx, cfg)
			if err != nil {
				return err
			}
			defer closeSlot()

			ring, err := auth.LoadKeyring(keysPath(cmd, cfg))
			if err != nil {
				return err
			}
			hub := ws.NewHub()
			agendas := agenda.NewRegistry(slot, now).WithBroadcaster(hub)
			svc := httpapi.NewService(dir, agendas).WithClock(now)
			router := httpapi.NewRouter(svc, hub.Handler(), auth.Middleware(ring))

			srv, err := server.New(server.Config{Addr: cfg.Addr, SocketPath: cfg.Socket, Handler: router})
			if err != nil {
				return err
			}
			log.Printf("setores: listening on %s (storage %s)", srv.Addr(), cfg.Storage.Backend)
			if srv.SocketPath() != "" {
				log.Printf("setores: unix socket %s", srv.SocketPath())
			}
			return srv.Run(ctx)
		},
	}
	cmd.Flags().String("addr", "", "TCP address to listen on.")
	cmd.Flags().String("socket", "", "Unix socket path to also listen on.")
	cmd.Flags().String("keys-file", "", "API keys file.")
	cmd.Flags().String("storage", "", "Agenda storage backend: sqlite, file, postgres or memory.")
	cmd.Flags().String("storage-path", "", "Database file (sqlite) or directory (file).")

	topLevel.AddCommand(cmd)
}
