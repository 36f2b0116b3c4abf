package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/eleven-am/katas/internal/logger"
	"github.com/eleven-am/katas/internal/session"
	"github.com/eleven-am/katas/internal/web"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

func newServeCmd() *cobra.Command {
	var (
		host string
		port int
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the web server",
		Long: `Migrates the database if needed and serves the site until interrupted.
On SIGINT or SIGTERM in-flight requests are given the configured shutdown
timeout to finish.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if host != "" {
				appConfig.Server.Host = host
			}
			if port != 0 {
				appConfig.Server.Port = port
			}
			return runServe(cmd.Context())
		},
	}

	cmd.Flags().StringVar(&host, "host", "", "listen host (overrides config)")
	cmd.Flags().IntVar(&port, "port", 0, "listen port (overrides config)")
	return cmd
}

func runServe(parent context.Context) error {
	log := logger.CLI()

	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	generated, err := appConfig.EnsureSessionSecret()
	if err != nil {
		return err
	}
	if generated {
		log.Warn("no session secret configured, generated a temporary one; sessions will not survive a restart")
	}

	st, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer st.Close()

	if err := st.Migrate(ctx); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}

	srv, err := web.NewServer(appConfig.Server, web.Deps{
		Store:    st,
		Sessions: session.NewManager(appConfig.Session),
		Logger:   logger.HTTP(),
	})
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(srv.Start)
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), appConfig.Server.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	err = g.Wait()
	log.Info("server stopped")
	return err
}
