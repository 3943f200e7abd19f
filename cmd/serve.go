package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/naka-gawa/pr-stats/internal/domain"
	"github.com/naka-gawa/pr-stats/internal/server"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serves the analysis as a JSON HTTP API",
	Run: func(cmd *cobra.Command, args []string) {
		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		a, err := newApp(cmd)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer func() { _ = a.logger.Sync() }()

		runners := make(map[domain.Provider]server.Runner, len(domain.Providers))
		for _, p := range domain.Providers {
			result := a.authenticate(ctx, p)
			a.logger.Infow("Authentication", "provider", p, "ok", result.OK, "message", result.Message)
			runners[p] = a.aggregator(p)
		}

		srv := &http.Server{
			Addr:    a.cfg.ServerAddr(),
			Handler: server.NewRouter(runners, a.logger),
		}

		go func() {
			a.logger.Infow("Server starting", "addr", srv.Addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				a.logger.Errorw("failed to start server", "error", err)
				stop()
			}
		}()

		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			a.logger.Warnw("server shutdown timeout", "timeout", a.cfg.Server.ShutdownTimeout, "error", err)
		}
		a.logger.Infow("Server exited")
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
