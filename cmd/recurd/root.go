package main

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/mklimuk/vault-recur/pkg/config"
	"github.com/mklimuk/vault-recur/pkg/db"
	"github.com/mklimuk/vault-recur/pkg/lock"
	"github.com/mklimuk/vault-recur/pkg/logging"
	"github.com/mklimuk/vault-recur/pkg/notify"
	"github.com/mklimuk/vault-recur/pkg/sync"
	"github.com/mklimuk/vault-recur/pkg/task"
	"github.com/mklimuk/vault-recur/pkg/vault"
)

type rootFlags struct {
	configPath string
	vaultPath  string
	logLevel   string
	dbPath     string
}

func newRootCmd() *cobra.Command {
	flags := &rootFlags{}
	cmd := &cobra.Command{
		Use:           "recurd",
		Short:         "Recurring task automation for a Markdown vault",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	cmd.PersistentFlags().StringVar(&flags.configPath, "config", "", "Config file path (optional).")
	cmd.PersistentFlags().StringVar(&flags.vaultPath, "vault", "", "Vault root; overrides vault_path.")
	cmd.PersistentFlags().StringVar(&flags.logLevel, "log-level", "", "Logging level: debug|info|warn|error.")
	cmd.PersistentFlags().StringVar(&flags.dbPath, "db", "", "Run history database; overrides db.path.")

	cmd.AddCommand(newWatchCmd(flags))
	cmd.AddCommand(newServeCmd(flags))
	cmd.AddCommand(newProcessCmd(flags))
	cmd.AddCommand(newArchiveCmd(flags))
	cmd.AddCommand(newRulesCmd(flags))
	cmd.AddCommand(newRunsCmd(flags))
	return cmd
}

// app is the wired service shared by the subcommands.
type app struct {
	loader   *config.Loader
	settings config.Settings
	logger   *slog.Logger
	locks    *lock.Registry
	engine   *task.Engine
	repo     *db.Repository

	closers []func() error
}

func newApp(flags *rootFlags, opts ...task.Option) (*app, error) {
	bootLogger, err := logging.New(logging.Options{Level: flags.logLevel, Prefix: "recurd"})
	if err != nil {
		return nil, err
	}
	loader := config.NewLoader(flags.configPath, bootLogger)
	settings, err := loader.Load()
	if err != nil {
		return nil, err
	}
	if flags.vaultPath != "" {
		settings.VaultPath = flags.vaultPath
	}
	if flags.logLevel != "" {
		settings.Logging.Level = flags.logLevel
	}
	if flags.dbPath != "" {
		settings.DB.Path = flags.dbPath
	}
	if settings.VaultPath == "" {
		return nil, errors.New("vault path is required (--vault or vault_path)")
	}

	logger, err := logging.New(logging.Options{
		Level:  settings.Logging.Level,
		Format: settings.Logging.Format,
		Prefix: "recurd",
	})
	if err != nil {
		return nil, err
	}

	a := &app{
		loader:   loader,
		settings: settings,
		logger:   logger,
		locks:    lock.NewRegistry(),
	}

	sink, err := a.buildNotifier()
	if err != nil {
		a.Close()
		return nil, err
	}

	taskOpts := []task.Option{
		task.WithLocks(a.locks),
		task.WithNotifier(sink),
		task.WithLogger(logger),
	}

	if settings.DB.Path != "" {
		database, err := db.NewDB(settings.DB.Path)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.closers = append(a.closers, database.Close)
		if err := database.InitSchema(); err != nil {
			a.Close()
			return nil, err
		}
		a.repo = db.NewRepository(database)
		taskOpts = append(taskOpts, task.WithRecorder(a.repo))
		if settings.DB.Retention > 0 {
			a.pruneRuns(settings.DB.Retention)
		}
	}

	if settings.Git.Enabled {
		g := sync.NewGitManager(settings.VaultPath)
		g.Push = settings.Git.Push
		g.SSHKeyPath = settings.Git.SSHKeyPath
		g.Logger = logger
		if settings.Git.AuthorName != "" {
			g.AuthorName = settings.Git.AuthorName
		}
		if settings.Git.AuthorEmail != "" {
			g.AuthorEmail = settings.Git.AuthorEmail
		}
		taskOpts = append(taskOpts, task.WithSyncer(g))
	}

	a.engine = task.NewEngine(vault.NewOSStorage(settings.VaultPath), settings, append(taskOpts, opts...)...)
	loader.OnChange(func(s config.Settings) {
		// Flag overrides survive reloads.
		s.VaultPath = a.settings.VaultPath
		s.DB = a.settings.DB
		if flags.logLevel != "" {
			s.Logging.Level = flags.logLevel
		}
		a.engine.UpdateSettings(s)
	})
	return a, nil
}

// buildNotifier always logs and adds chat sinks for configured tokens.
func (a *app) buildNotifier() (notify.Sink, error) {
	n := a.settings.Notify
	sinks := notify.Multi{notify.LogSink{Logger: a.logger}}
	minSeverity := notify.Severity(n.MinSeverity)
	if minSeverity == "" {
		minSeverity = notify.Info
	}

	if n.TelegramToken != "" {
		tg, err := notify.NewTelegramSink(n.TelegramToken, n.TelegramChatID, a.logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create telegram sink: %w", err)
		}
		sinks = append(sinks, notify.MinSeverity{Min: minSeverity, Next: tg})
		a.logger.Info("notify: telegram enabled", "chat_id", n.TelegramChatID)
	}
	if n.DiscordToken != "" {
		dc, err := notify.NewDiscordSink(n.DiscordToken, n.DiscordChannelID, a.logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create discord sink: %w", err)
		}
		a.closers = append(a.closers, dc.Close)
		sinks = append(sinks, notify.MinSeverity{Min: minSeverity, Next: dc})
		a.logger.Info("notify: discord enabled", "channel_id", n.DiscordChannelID)
	}
	return sinks, nil
}

// pruneRuns drops run history older than retention. Failures are logged.
func (a *app) pruneRuns(retention time.Duration) int64 {
	n, err := a.repo.PruneBefore(time.Now().Add(-retention))
	if err != nil {
		a.logger.Warn("db: prune failed", "err", err)
		return 0
	}
	if n > 0 {
		a.logger.Info("db: pruned run history", "removed", n, "retention", retention)
	}
	return n
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.logger.Warn("shutdown: close failed", "err", err)
		}
	}
	a.closers = nil
}
