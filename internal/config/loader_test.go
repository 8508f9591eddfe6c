package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// chdir moves into dir for the duration of the test.
func chdir(t *testing.T, dir string) {
	t.Helper()
	oldWd, _ := os.Getwd()
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("chdir failed: %v", err)
	}
	t.Cleanup(func() { _ = os.Chdir(oldWd) })
}

func TestLoadConfig_Defaults(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	cfg, err := LoadConfig(viper.New())
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if cfg.Executor.UnitTimeout != 120*time.Second {
		t.Errorf("Executor.UnitTimeout = %v, want 120s", cfg.Executor.UnitTimeout)
	}
	if cfg.Connection.Timeout != 60*time.Second {
		t.Errorf("Connection.Timeout = %v, want 60s", cfg.Connection.Timeout)
	}
	if cfg.Notebook.MaxRestarts != 3 {
		t.Errorf("Notebook.MaxRestarts = %d, want 3", cfg.Notebook.MaxRestarts)
	}
}

func TestLoadConfig_ProjectFile(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	if err := os.MkdirAll(ProjectConfigDir, 0755); err != nil {
		t.Fatalf("mkdir failed: %v", err)
	}
	configContent := `
notebook:
  url: https://notebook.example/abc
  max_restarts: 5
  on_failure: halt
executor:
  poll_interval: 1s
  unit_timeout: 10m
artifact:
  hook: ["notify-send", "cellpilot"]
`
	configPath := filepath.Join(ProjectConfigDir, ProjectConfigFile)
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("write config failed: %v", err)
	}

	cfg, err := LoadConfig(viper.New())
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if cfg.Notebook.URL != "https://notebook.example/abc" {
		t.Errorf("Notebook.URL = %q", cfg.Notebook.URL)
	}
	if cfg.Notebook.MaxRestarts != 5 {
		t.Errorf("Notebook.MaxRestarts = %d, want 5", cfg.Notebook.MaxRestarts)
	}
	if cfg.Notebook.OnFailure != OnFailureHalt {
		t.Errorf("Notebook.OnFailure = %q, want halt", cfg.Notebook.OnFailure)
	}
	if cfg.Executor.PollInterval != time.Second {
		t.Errorf("Executor.PollInterval = %v, want 1s", cfg.Executor.PollInterval)
	}
	if cfg.Executor.UnitTimeout != 10*time.Minute {
		t.Errorf("Executor.UnitTimeout = %v, want 10m", cfg.Executor.UnitTimeout)
	}
	if len(cfg.Artifact.Hook) != 2 || cfg.Artifact.Hook[0] != "notify-send" {
		t.Errorf("Artifact.Hook = %v", cfg.Artifact.Hook)
	}
	// Untouched sections keep defaults.
	if cfg.Executor.SettleDelay != 2*time.Second {
		t.Errorf("Executor.SettleDelay = %v, want default 2s", cfg.Executor.SettleDelay)
	}
}

func TestLoadConfig_GlobalThenProject(t *testing.T) {
	chdir(t, t.TempDir())
	xdg := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", xdg)

	globalDir := filepath.Join(xdg, GlobalConfigDir)
	if err := os.MkdirAll(globalDir, 0755); err != nil {
		t.Fatal(err)
	}
	global := "notebook:\n  max_restarts: 7\nbrowser:\n  headless: true\n"
	if err := os.WriteFile(filepath.Join(globalDir, GlobalConfigFile), []byte(global), 0644); err != nil {
		t.Fatal(err)
	}

	if err := os.MkdirAll(ProjectConfigDir, 0755); err != nil {
		t.Fatal(err)
	}
	project := "notebook:\n  max_restarts: 2\n"
	if err := os.WriteFile(filepath.Join(ProjectConfigDir, ProjectConfigFile), []byte(project), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfig(viper.New())
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Notebook.MaxRestarts != 2 {
		t.Errorf("Notebook.MaxRestarts = %d, want project value 2", cfg.Notebook.MaxRestarts)
	}
	if !cfg.Browser.Headless {
		t.Error("Browser.Headless = false, want global value true")
	}
}

func TestLoadConfig_ExplicitFile(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "custom-config.yaml")
	configContent := "browser:\n  control_url: ws://127.0.0.1:9222/devtools/browser/abc\n"
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("write config failed: %v", err)
	}

	v := viper.New()
	v.Set("config", configPath)

	cfg, err := LoadConfig(v)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Browser.ControlURL != "ws://127.0.0.1:9222/devtools/browser/abc" {
		t.Errorf("Browser.ControlURL = %q", cfg.Browser.ControlURL)
	}
}

func TestLoadConfig_ExplicitFileMissing(t *testing.T) {
	v := viper.New()
	v.Set("config", "/nonexistent/path/config.yaml")

	if _, err := LoadConfig(v); err == nil {
		t.Error("LoadConfig should fail for missing explicit config")
	}
}

func TestLoadConfig_OverrideBeatsFile(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	if err := os.MkdirAll(ProjectConfigDir, 0755); err != nil {
		t.Fatalf("mkdir failed: %v", err)
	}
	configPath := filepath.Join(ProjectConfigDir, ProjectConfigFile)
	if err := os.WriteFile(configPath, []byte("artifact:\n  marker: from-file\n"), 0644); err != nil {
		t.Fatalf("write config failed: %v", err)
	}

	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()
	// Flags and env land in viper as overrides.
	v.Set("artifact.marker", "from-flag")

	cfg, err := LoadConfig(v)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Artifact.Marker != "from-flag" {
		t.Errorf("Artifact.Marker = %q, want %q", cfg.Artifact.Marker, "from-flag")
	}
}

func TestLoadConfig_DurationParsing(t *testing.T) {
	tmpDir := t.TempDir()

	tests := []struct {
		name    string
		yaml    string
		wantDur time.Duration
		get     func(*Config) time.Duration
	}{
		{"seconds", "executor:\n  unit_timeout: 30s", 30 * time.Second, func(c *Config) time.Duration { return c.Executor.UnitTimeout }},
		{"minutes", "connection:\n  timeout: 5m", 5 * time.Minute, func(c *Config) time.Duration { return c.Connection.Timeout }},
		{"millis", "browser:\n  dialog_wait: 250ms", 250 * time.Millisecond, func(c *Config) time.Duration { return c.Browser.DialogWait }},
		{"combined", "executor:\n  unit_timeout: 1h30m", 90 * time.Minute, func(c *Config) time.Duration { return c.Executor.UnitTimeout }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			configPath := filepath.Join(tmpDir, tt.name+".yaml")
			if err := os.WriteFile(configPath, []byte(tt.yaml), 0644); err != nil {
				t.Fatalf("write config failed: %v", err)
			}

			v := viper.New()
			v.Set("config", configPath)

			cfg, err := LoadConfig(v)
			if err != nil {
				t.Fatalf("LoadConfig failed: %v", err)
			}
			if got := tt.get(cfg); got != tt.wantDur {
				t.Errorf("got %v, want %v", got, tt.wantDur)
			}
		})
	}
}

func TestLoadConfig_InvalidRejected(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(configPath, []byte("notebook:\n  on_failure: retry\n"), 0644); err != nil {
		t.Fatal(err)
	}

	v := viper.New()
	v.Set("config", configPath)

	_, err := LoadConfig(v)
	if err == nil || !strings.Contains(err.Error(), "on_failure") {
		t.Errorf("LoadConfig error = %v, want on_failure validation error", err)
	}
}

func TestRender(t *testing.T) {
	cfg := Default()
	cfg.Notebook.URL = "https://notebook.example/abc"

	data, err := Render(cfg)
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}

	text := string(data)
	for _, want := range []string{"url: https://notebook.example/abc", "unit_timeout: 2m0s", "max_restarts: 3"} {
		if !strings.Contains(text, want) {
			t.Errorf("rendered config missing %q:\n%s", want, text)
		}
	}

	// The rendered form reads back through the loader.
	var back Config
	if err := yaml.Unmarshal(data, &back); err != nil {
		t.Fatalf("yaml.Unmarshal: %v", err)
	}
	if back.Notebook.URL != cfg.Notebook.URL {
		t.Errorf("round-trip URL = %q", back.Notebook.URL)
	}
}

func TestGlobalConfigPath(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	if path := globalConfigPath(); path != "" {
		t.Errorf("globalConfigPath() = %q, want empty for missing file", path)
	}
}

func TestProjectConfigPath(t *testing.T) {
	chdir(t, t.TempDir())
	if path := projectConfigPath(); path != "" {
		t.Errorf("projectConfigPath() = %q, want empty", path)
	}
}
