package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/mklimuk/vault-recur/pkg/config"
	"github.com/mklimuk/vault-recur/pkg/lock"
	"github.com/mklimuk/vault-recur/pkg/task"
	"github.com/mklimuk/vault-recur/pkg/watch"
)

func newWatchCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Watch the vault and process completed recurring tasks",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(flags)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return a.runWatcher(ctx)
		},
	}
}

// runWatcher blocks until ctx is done.
func (a *app) runWatcher(ctx context.Context) error {
	sweeper := lock.NewSweeper(a.locks, lock.SweepInterval, a.logger)
	sweeper.Start()
	defer sweeper.Stop()

	w, err := watch.New(a.settings.VaultPath, watch.Options{
		Delay:         a.settings.DebounceDelay,
		MaxConcurrent: a.settings.MaxConcurrentProcessing,
	}, a.handleChange, a.logger)
	if err != nil {
		return err
	}
	w.Start()
	defer w.Stop()

	a.loader.OnChange(func(s config.Settings) { w.SetDelay(s.DebounceDelay) })
	a.loader.Watch()

	a.logger.Info("watch: started", "vault", a.settings.VaultPath, "debounce", a.settings.DebounceDelay, "max_concurrent", a.settings.MaxConcurrentProcessing)
	<-ctx.Done()
	a.logger.Info("watch: stopping")
	return nil
}

func (a *app) handleChange(path string) {
	res, err := a.engine.HandleChange(path)
	if err != nil {
		// Already reported through the notifier.
		return
	}
	if res.Status != task.StatusSkipped {
		a.logger.Debug("watch: handled change", "path", path, "status", res.Status)
	}
}
