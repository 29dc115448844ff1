package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/mklimuk/vault-recur/pkg/api"
	"github.com/mklimuk/vault-recur/pkg/lock"
)

func newServeCmd(flags *rootFlags) *cobra.Command {
	var addr string
	var withWatch bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP command API",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(flags)
			if err != nil {
				return err
			}
			defer a.Close()

			if addr == "" {
				addr = a.settings.HTTP.Addr
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			var runs api.RunLister
			if a.repo != nil {
				runs = a.repo
			}
			srv := &http.Server{
				Addr:              addr,
				Handler:           api.NewRouter(a.engine, runs, a.logger),
				ReadHeaderTimeout: 10 * time.Second,
			}

			errCh := make(chan error, 1)
			go func() {
				a.logger.Info("serve: listening", "addr", addr)
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errCh <- err
				}
				close(errCh)
			}()

			if withWatch {
				go func() {
					if err := a.runWatcher(ctx); err != nil {
						a.logger.Error("serve: watcher failed", "err", err)
						stop()
					}
				}()
			} else {
				sweeper := lock.NewSweeper(a.locks, lock.SweepInterval, a.logger)
				sweeper.Start()
				defer sweeper.Stop()
				a.loader.Watch()
			}

			select {
			case err := <-errCh:
				if err != nil {
					return err
				}
			case <-ctx.Done():
			}

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			a.logger.Info("serve: shutting down")
			return srv.Shutdown(shutdownCtx)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "Listen address; overrides http.addr.")
	cmd.Flags().BoolVar(&withWatch, "watch", false, "Also watch the vault for changes.")
	return cmd
}
