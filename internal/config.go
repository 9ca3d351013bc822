package internal

import (
	"fmt"
	"log/slog"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/notesync/internal/notes"
	"github.com/starford/notesync/internal/syncops"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

// Config represents the application configuration.
type Config struct {
	App       ApplicationConfig `yaml:"app"`
	Remote    RemoteConfig      `yaml:"remote"`
	Workspace WorkspaceConfig   `yaml:"workspace"`
	Sync      SyncConfig        `yaml:"sync"`
	Editor    EditorConfig      `yaml:"editor"`
	Auth      AuthConfig        `yaml:"auth"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return err
	}
	if err := c.Remote.Validate(); err != nil {
		return err
	}
	if err := c.Workspace.Validate(); err != nil {
		return err
	}
	if err := c.Sync.Validate(); err != nil {
		return err
	}
	if err := c.Editor.Validate(); err != nil {
		return err
	}
	return c.Auth.Validate()
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel slog.Level `yaml:"log_level"`
	HTTP     HTTPConfig `yaml:"http"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	return c.HTTP.Validate()
}

// HTTPConfig holds HTTP server configuration.
type HTTPConfig struct {
	Port int `yaml:"port"`
}

// Address returns HTTP server address.
func (c *HTTPConfig) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Validate validates the HTTP configuration.
func (c *HTTPConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
	)
}

// RemoteConfig points at the SQLite file backing the remote note store.
type RemoteConfig struct {
	Path string `yaml:"path"`
}

// Validate validates the remote configuration.
func (c *RemoteConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// WorkspaceConfig holds the directory opened notes are written to.
type WorkspaceConfig struct {
	Path string `yaml:"path"`
}

// Validate validates the workspace configuration.
func (c *WorkspaceConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// SyncConfig controls the periodic sync and the operation queue.
// Durations are in seconds unless the name says otherwise.
type SyncConfig struct {
	SyncEvery        int `yaml:"sync_every"`
	Concurrency      int `yaml:"concurrency"`
	PollIntervalMS   int `yaml:"poll_interval_ms"`
	OperationTimeout int `yaml:"operation_timeout"`
}

// Validate validates the sync configuration.
func (c *SyncConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.SyncEvery, validation.Min(0)),
		validation.Field(&c.Concurrency, validation.Required, validation.Min(1), validation.Max(64)),
		validation.Field(&c.PollIntervalMS, validation.Required, validation.Min(1)),
		validation.Field(&c.OperationTimeout, validation.Min(0)),
	)
}

// Interval returns the periodic sync interval; zero disables it.
func (c *SyncConfig) Interval() time.Duration {
	return time.Duration(c.SyncEvery) * time.Second
}

// PollInterval returns the scheduler poll interval.
func (c *SyncConfig) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalMS) * time.Millisecond
}

// Timeout returns the per-operation timeout; zero means none.
func (c *SyncConfig) Timeout() time.Duration {
	return time.Duration(c.OperationTimeout) * time.Second
}

// EditorConfig holds settings for materialized note files.
type EditorConfig struct {
	AutosaveDebounceTime float64               `yaml:"autosave_debounce_time"`
	TitleExtensionMap    []notes.ExtensionRule `yaml:"title_extension_map"`

	rules notes.Rules
}

// Validate validates the editor configuration and compiles the title rules.
func (c *EditorConfig) Validate() error {
	if err := validation.ValidateStruct(c,
		validation.Field(&c.AutosaveDebounceTime, validation.Min(0.0)),
		validation.Field(&c.TitleExtensionMap, validation.Each(validation.By(validateRule))),
	); err != nil {
		return err
	}
	rules, err := notes.CompileRules(c.TitleExtensionMap)
	if err != nil {
		return fmt.Errorf("editor: %w", err)
	}
	c.rules = rules
	return nil
}

func validateRule(v any) error {
	r, _ := v.(notes.ExtensionRule)
	return validation.ValidateStruct(&r,
		validation.Field(&r.TitleRegex, validation.Required),
		validation.Field(&r.Extension, validation.Required),
	)
}

// Rules returns the compiled title extension rules. Validate must have run.
func (c *EditorConfig) Rules() notes.Rules {
	return c.rules
}

// Debounce returns the autosave debounce; zero disables pushing edits.
func (c *EditorConfig) Debounce() time.Duration {
	return time.Duration(c.AutosaveDebounceTime * float64(time.Second))
}

// AuthConfig holds authentication configuration.
//
// Mode controls how authentication is enforced:
//   - "disabled" (default): no authentication required, suitable for local dev.
//   - "token": Bearer token authentication; Token must be non-empty.
type AuthConfig struct {
	Mode  string `yaml:"mode"`
	Token string `yaml:"token"`
}

// Validate validates the auth configuration.
func (c *AuthConfig) Validate() error {
	if c.Mode == "" {
		c.Mode = AuthModeDisabled
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Mode, validation.Required, validation.In(AuthModeDisabled, AuthModeToken)),
	); err != nil {
		return err
	}
	if c.Mode == AuthModeToken && c.Token == "" {
		return fmt.Errorf("auth: mode is %q but token is empty", AuthModeToken)
	}
	return nil
}

// AuthEnabled returns true when authentication is active.
func (c *AuthConfig) AuthEnabled() bool {
	return c.Mode == AuthModeToken
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
			HTTP: HTTPConfig{
				Port: 8080,
			},
		},
		Remote: RemoteConfig{
			Path: "./notesync.db",
		},
		Workspace: WorkspaceConfig{
			Path: "./workspace",
		},
		Sync: SyncConfig{
			SyncEvery:      30,
			Concurrency:    syncops.DefaultConcurrency,
			PollIntervalMS: 1000,
		},
		Editor: EditorConfig{
			AutosaveDebounceTime: 1,
		},
		Auth: AuthConfig{
			Mode: AuthModeDisabled,
		},
	}
}
