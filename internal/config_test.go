package internal

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/starford/notesync/internal/notes"
	pkgconfig "github.com/starford/notesync/pkg/config"
)

func TestAuthConfig_DisabledMode(t *testing.T) {
	cfg := AuthConfig{Mode: "disabled", Token: ""}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("disabled mode should pass: %v", err)
	}
	if cfg.AuthEnabled() {
		t.Error("disabled mode should not be enabled")
	}
}

func TestAuthConfig_EmptyModeDefaultsDisabled(t *testing.T) {
	cfg := AuthConfig{Mode: "", Token: ""}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("empty mode should default to disabled: %v", err)
	}
	if cfg.Mode != AuthModeDisabled {
		t.Errorf("mode = %q, want %q", cfg.Mode, AuthModeDisabled)
	}
}

func TestAuthConfig_TokenModeValid(t *testing.T) {
	cfg := AuthConfig{Mode: "token", Token: "mysecret"}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("token mode with token should pass: %v", err)
	}
	if !cfg.AuthEnabled() {
		t.Error("token mode should be enabled")
	}
}

func TestAuthConfig_TokenModeEmptyToken(t *testing.T) {
	cfg := AuthConfig{Mode: "token", Token: ""}
	err := cfg.Validate()
	if err == nil {
		t.Fatal("token mode with empty token should fail")
	}
	if !strings.Contains(err.Error(), "token is empty") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestAuthConfig_InvalidMode(t *testing.T) {
	cfg := AuthConfig{Mode: "magic", Token: "x"}
	err := cfg.Validate()
	if err == nil {
		t.Fatal("invalid mode should fail validation")
	}
}

func TestFullConfig_AuthValidationCalled(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Auth.Mode = "token"
	cfg.Auth.Token = ""
	err := cfg.Validate()
	if err == nil {
		t.Fatal("full config validate should catch auth error")
	}
}

func TestDefaultConfigValid(t *testing.T) {
	cfg := NewDefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should be valid: %v", err)
	}
	if cfg.Sync.Interval() != 30*time.Second {
		t.Errorf("interval = %v", cfg.Sync.Interval())
	}
	if cfg.Sync.PollInterval() != time.Second {
		t.Errorf("poll interval = %v", cfg.Sync.PollInterval())
	}
	if cfg.Sync.Timeout() != 0 {
		t.Errorf("timeout = %v, want none", cfg.Sync.Timeout())
	}
}

func TestSyncConfig_Invalid(t *testing.T) {
	for _, c := range []SyncConfig{
		{SyncEvery: -1, Concurrency: 4, PollIntervalMS: 10},
		{Concurrency: 0, PollIntervalMS: 10},
		{Concurrency: 4, PollIntervalMS: 0},
		{Concurrency: 4, PollIntervalMS: 10, OperationTimeout: -5},
	} {
		if err := c.Validate(); err == nil {
			t.Errorf("%+v: expected validation error", c)
		}
	}
}

func TestEditorConfig_CompilesRules(t *testing.T) {
	cfg := EditorConfig{
		AutosaveDebounceTime: 0.5,
		TitleExtensionMap: []notes.ExtensionRule{
			{TitleRegex: "^#", Extension: "md"},
			{TitleRegex: "todo", Extension: "todo"},
		},
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
	if got := cfg.Rules().Extension("# notes"); got != ".md" {
		t.Errorf("extension = %q, want .md", got)
	}
	if got := cfg.Rules().Extension("my todo"); got != ".todo" {
		t.Errorf("extension = %q, want .todo", got)
	}
	if cfg.Debounce() != 500*time.Millisecond {
		t.Errorf("debounce = %v", cfg.Debounce())
	}
}

func TestEditorConfig_BadRegex(t *testing.T) {
	cfg := EditorConfig{TitleExtensionMap: []notes.ExtensionRule{{TitleRegex: "([", Extension: "md"}}}
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for invalid regex")
	}
}

func TestEditorConfig_MissingExtension(t *testing.T) {
	cfg := EditorConfig{TitleExtensionMap: []notes.ExtensionRule{{TitleRegex: "^#"}}}
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for empty extension")
	}
}

func TestLoadConfigFile(t *testing.T) {
	t.Setenv("NOTESYNC_TEST_TOKEN", "s3cret")
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := `
app:
  log_level: debug
  http:
    port: 9090
remote:
  path: /tmp/remote.db
workspace:
  path: /tmp/ws
sync:
  sync_every: 0
  concurrency: 2
  poll_interval_ms: 50
editor:
  autosave_debounce_time: 2
  title_extension_map:
    - title_regex: "^#"
      extension: md
auth:
  mode: token
  token: ${NOTESYNC_TEST_TOKEN}
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg := NewDefaultConfig()
	if err := pkgconfig.Load(path, cfg); err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.App.LogLevel != slog.LevelDebug || cfg.App.HTTP.Port != 9090 {
		t.Errorf("app = %+v", cfg.App)
	}
	if cfg.Auth.Token != "s3cret" || !cfg.Auth.AuthEnabled() {
		t.Errorf("auth = %+v", cfg.Auth)
	}
	if cfg.Sync.Interval() != 0 || cfg.Sync.Concurrency != 2 {
		t.Errorf("sync = %+v", cfg.Sync)
	}
	if cfg.Editor.Rules().Extension("# x") != ".md" {
		t.Error("rules not compiled by Load")
	}
}
