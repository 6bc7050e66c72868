package cli

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/hupe1980/vecspace"
	"github.com/hupe1980/vecspace/internal/config"
)

func newServeCommand() *cobra.Command {
	var addr string

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server",
		Long: `Run the HTTP server until SIGINT or SIGTERM.

On start the latest snapshot is restored and the change log is replayed on top
of it. On shutdown a final snapshot is taken when snapshot.save_on_shutdown is
set.`,
		Example: `  # Serve with the default config search paths
  vecspaced serve

  # Serve on another port with snapshots in ./data
  VECSPACE_SNAPSHOT_BACKEND=local vecspaced serve --addr :9090`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.Server.Addr = addr
			}
			logger, err := newLogger(cfg.Log)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return runServer(ctx, cfg, logger)
		},
	}

	serveCmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides server.addr)")

	return serveCmd
}

// runServer serves until ctx is done.
func runServer(ctx context.Context, cfg *config.Config, logger *vecspace.Logger) (err error) {
	d, err := newDaemon(ctx, cfg, logger)
	if err != nil {
		return err
	}
	// A daemon that failed to restore must not overwrite the last snapshot.
	started := false
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.Server.ShutdownTimeout)
		defer cancel()
		err = errors.Join(err, d.close(closeCtx, started && cfg.Snapshot.SaveOnShutdown))
	}()

	if err := d.start(ctx); err != nil {
		return err
	}
	started = true

	ln, err := net.Listen("tcp", cfg.Server.Addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", cfg.Server.Addr, err)
	}
	return d.serve(ctx, ln)
}
