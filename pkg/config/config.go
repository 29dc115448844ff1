// Package config holds the settings record shared by every component.
package config

import (
	"time"

	"github.com/mklimuk/vault-recur/pkg/recurrence"
)

// Settings is the full configuration record. It is passed to components at
// construction and replaced wholesale on reload.
type Settings struct {
	VaultPath string `mapstructure:"vault_path" yaml:"vault_path"`

	ArchiveFolder          string `mapstructure:"archive_folder" yaml:"archive_folder" validate:"required"`
	UseDatedArchiveFolders bool   `mapstructure:"use_dated_archive_folders" yaml:"use_dated_archive_folders"`
	DatedArchiveFormat     string `mapstructure:"dated_archive_format" yaml:"dated_archive_format" validate:"required_if=UseDatedArchiveFolders true"`

	ConfirmOnRecur bool `mapstructure:"confirm_on_recur" yaml:"confirm_on_recur"`
	CopySubtasks   bool `mapstructure:"copy_subtasks" yaml:"copy_subtasks"`

	Fields     FieldNames `mapstructure:"fields" yaml:"fields"`
	DateFormat string     `mapstructure:"date_format" yaml:"date_format" validate:"required"`

	RecurrenceRules []recurrence.Rule `mapstructure:"recurrence_rules" yaml:"recurrence_rules" validate:"min=1,dive"`

	MaxConcurrentProcessing int           `mapstructure:"max_concurrent_processing" yaml:"max_concurrent_processing" validate:"gt=0"`
	DebounceDelay           time.Duration `mapstructure:"debounce_delay" yaml:"debounce_delay" validate:"gte=0"`

	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`
	Notify  NotifyConfig  `mapstructure:"notify" yaml:"notify"`
	Git     GitConfig     `mapstructure:"git" yaml:"git"`
	DB      DBConfig      `mapstructure:"db" yaml:"db"`
	HTTP    HTTPConfig    `mapstructure:"http" yaml:"http"`
}

// FieldNames are the frontmatter keys the engine reads and writes.
type FieldNames struct {
	Completed  string `mapstructure:"completed" yaml:"completed" validate:"required"`
	Archived   string `mapstructure:"archived" yaml:"archived" validate:"required"`
	DueDate    string `mapstructure:"due_date" yaml:"due_date" validate:"required"`
	Recurrence string `mapstructure:"recurrence" yaml:"recurrence" validate:"required"`
	Created    string `mapstructure:"created" yaml:"created" validate:"required"`
}

// LoggingConfig selects log level and output format.
type LoggingConfig struct {
	Level  string `mapstructure:"level" yaml:"level" validate:"omitempty,oneof=debug info warn error"`
	Format string `mapstructure:"format" yaml:"format" validate:"omitempty,oneof=text json logfmt"`
}

// NotifyConfig enables chat notification sinks. Empty tokens disable a sink.
type NotifyConfig struct {
	TelegramToken    string `mapstructure:"telegram_token" yaml:"telegram_token"`
	TelegramChatID   int64  `mapstructure:"telegram_chat_id" yaml:"telegram_chat_id" validate:"required_with=TelegramToken"`
	DiscordToken     string `mapstructure:"discord_token" yaml:"discord_token"`
	DiscordChannelID string `mapstructure:"discord_channel_id" yaml:"discord_channel_id" validate:"required_with=DiscordToken"`
	// MinSeverity limits chat sinks; the log sink always gets everything.
	MinSeverity string `mapstructure:"min_severity" yaml:"min_severity" validate:"omitempty,oneof=info warn error"`
}

// GitConfig controls committing the vault after each successful operation.
type GitConfig struct {
	Enabled     bool   `mapstructure:"enabled" yaml:"enabled"`
	Push        bool   `mapstructure:"push" yaml:"push"`
	AuthorName  string `mapstructure:"author_name" yaml:"author_name"`
	AuthorEmail string `mapstructure:"author_email" yaml:"author_email"`
	SSHKeyPath  string `mapstructure:"ssh_key_path" yaml:"ssh_key_path"`
}

// DBConfig points at the run history database. An empty path disables it.
// Runs older than Retention are pruned on startup; zero keeps everything.
type DBConfig struct {
	Path      string        `mapstructure:"path" yaml:"path"`
	Retention time.Duration `mapstructure:"retention" yaml:"retention" validate:"gte=0"`
}

// HTTPConfig configures the command API.
type HTTPConfig struct {
	Addr string `mapstructure:"addr" yaml:"addr"`
}

// Default returns the settings used when nothing is configured.
func Default() Settings {
	return Settings{
		ArchiveFolder:          "Archive/Tasks",
		UseDatedArchiveFolders: true,
		DatedArchiveFormat:     "YYYY/MM",
		ConfirmOnRecur:         true,
		CopySubtasks:           true,
		Fields: FieldNames{
			Completed:  "completed",
			Archived:   "archived",
			DueDate:    "due",
			Recurrence: "recurrence",
			Created:    "created",
		},
		DateFormat:              "YYYY-MM-DD",
		RecurrenceRules:         recurrence.DefaultRules(),
		MaxConcurrentProcessing: 3,
		DebounceDelay:           time.Second,
		Logging:                 LoggingConfig{Level: "info", Format: "text"},
		Git:                     GitConfig{AuthorName: "Vault Recur", AuthorEmail: "recur@vault.local"},
		HTTP:                    HTTPConfig{Addr: ":8080"},
	}
}

// Clone returns a copy that shares no slices with s.
func (s Settings) Clone() Settings {
	s.RecurrenceRules = append([]recurrence.Rule(nil), s.RecurrenceRules...)
	return s
}
