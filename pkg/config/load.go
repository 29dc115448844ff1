package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"

	"github.com/mklimuk/vault-recur/pkg/recurrence"
)

// EnvPrefix prefixes environment overrides, e.g. RECURD_ARCHIVE_FOLDER.
const EnvPrefix = "RECURD"

var validate = validator.New()

// Loader reads settings from an optional YAML file, environment variables
// and defaults, in that order of precedence after env.
type Loader struct {
	v      *viper.Viper
	logger *slog.Logger

	mu       sync.Mutex
	onChange []func(Settings)
}

// NewLoader prepares a loader for path. An empty path uses defaults and
// environment variables only.
func NewLoader(path string, logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	v := viper.New()
	setDefaults(v, Default())
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
	}
	return &Loader{v: v, logger: logger}
}

func setDefaults(v *viper.Viper, d Settings) {
	v.SetDefault("vault_path", d.VaultPath)
	v.SetDefault("archive_folder", d.ArchiveFolder)
	v.SetDefault("use_dated_archive_folders", d.UseDatedArchiveFolders)
	v.SetDefault("dated_archive_format", d.DatedArchiveFormat)
	v.SetDefault("confirm_on_recur", d.ConfirmOnRecur)
	v.SetDefault("copy_subtasks", d.CopySubtasks)
	v.SetDefault("fields.completed", d.Fields.Completed)
	v.SetDefault("fields.archived", d.Fields.Archived)
	v.SetDefault("fields.due_date", d.Fields.DueDate)
	v.SetDefault("fields.recurrence", d.Fields.Recurrence)
	v.SetDefault("fields.created", d.Fields.Created)
	v.SetDefault("date_format", d.DateFormat)
	v.SetDefault("max_concurrent_processing", d.MaxConcurrentProcessing)
	v.SetDefault("debounce_delay", d.DebounceDelay)
	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("logging.format", d.Logging.Format)
	v.SetDefault("notify.telegram_token", "")
	v.SetDefault("notify.telegram_chat_id", 0)
	v.SetDefault("notify.discord_token", "")
	v.SetDefault("notify.discord_channel_id", "")
	v.SetDefault("notify.min_severity", "info")
	v.SetDefault("git.enabled", d.Git.Enabled)
	v.SetDefault("git.push", d.Git.Push)
	v.SetDefault("git.author_name", d.Git.AuthorName)
	v.SetDefault("git.author_email", d.Git.AuthorEmail)
	v.SetDefault("git.ssh_key_path", "")
	v.SetDefault("db.path", "")
	v.SetDefault("db.retention", d.DB.Retention)
	v.SetDefault("http.addr", d.HTTP.Addr)
}

// Load reads and validates the settings.
func (l *Loader) Load() (Settings, error) {
	if l.v.ConfigFileUsed() != "" {
		if err := l.v.ReadInConfig(); err != nil {
			return Settings{}, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var s Settings
	if err := l.v.Unmarshal(&s); err != nil {
		return Settings{}, fmt.Errorf("failed to decode config: %w", err)
	}
	if len(s.RecurrenceRules) == 0 {
		s.RecurrenceRules = recurrence.DefaultRules()
	}
	if err := Validate(s); err != nil {
		return Settings{}, err
	}
	return s, nil
}

// OnChange registers fn to run with freshly loaded settings whenever the
// config file changes. Invalid edits are logged and ignored.
func (l *Loader) OnChange(fn func(Settings)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.onChange = append(l.onChange, fn)
}

// Watch starts watching the config file. It is a no-op without a file.
func (l *Loader) Watch() {
	if l.v.ConfigFileUsed() == "" {
		return
	}
	l.v.OnConfigChange(func(e fsnotify.Event) {
		s, err := l.Load()
		if err != nil {
			l.logger.Error("config: reload failed, keeping previous settings", "file", e.Name, "err", err)
			return
		}
		l.logger.Info("config: reloaded", "file", e.Name)
		l.mu.Lock()
		callbacks := append([]func(Settings){}, l.onChange...)
		l.mu.Unlock()
		for _, fn := range callbacks {
			fn(s)
		}
	})
	l.v.WatchConfig()
}

// Validate checks struct constraints and the rule set.
func Validate(s Settings) error {
	if err := validate.Struct(s); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s: failed %q", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("invalid settings: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("invalid settings: %w", err)
	}

	seen := make(map[string]bool, len(s.RecurrenceRules))
	for _, r := range s.RecurrenceRules {
		key := recurrence.Normalize(r.Key)
		if seen[key] {
			return fmt.Errorf("invalid settings: duplicate recurrence rule key %q", r.Key)
		}
		seen[key] = true
		if !r.IsNone() && r.Amount <= 0 {
			return fmt.Errorf("invalid settings: rule %q needs a positive amount", r.Key)
		}
	}
	return nil
}
