package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/issueradar/issueradar/internal/constants"
	"github.com/issueradar/issueradar/internal/model"
)

func ptr[T any](v T) *T { return &v }

func TestGetFetchSettings(t *testing.T) {
	t.Run("returns defaults when no overrides", func(t *testing.T) {
		cfg := &Config{}
		s := cfg.GetFetchSettings()

		if s.State != model.StateAll {
			t.Errorf("State = %q, want %q", s.State, model.StateAll)
		}
		if s.PerPage != constants.DefaultPerPage {
			t.Errorf("PerPage = %d, want %d", s.PerPage, constants.DefaultPerPage)
		}
		if s.Rate != constants.DefaultRequestsPerSecond {
			t.Errorf("Rate = %v, want %v", s.Rate, constants.DefaultRequestsPerSecond)
		}
		if s.Retry.MaxAttempts != 3 {
			t.Errorf("Retry.MaxAttempts = %d, want 3", s.Retry.MaxAttempts)
		}
	})

	t.Run("applies overrides", func(t *testing.T) {
		cfg := &Config{
			Fetch: &FetchOverrides{
				State:    ptr("open"),
				PerPage:  ptr(500),
				MaxPages: ptr(4),
				Rate:     ptr(0.5),
				CacheTTL: ptr(time.Minute),
				Retry:    &RetryOverrides{MaxAttempts: ptr(6)},
			},
		}
		s := cfg.GetFetchSettings()

		if s.State != model.StateOpen {
			t.Errorf("State = %q, want open", s.State)
		}
		if s.PerPage != constants.MaxPerPage {
			t.Errorf("PerPage = %d, want clamp to %d", s.PerPage, constants.MaxPerPage)
		}
		if s.MaxPages != 4 {
			t.Errorf("MaxPages = %d, want 4", s.MaxPages)
		}
		if s.Rate != 0.5 {
			t.Errorf("Rate = %v, want 0.5", s.Rate)
		}
		if s.CacheTTL != time.Minute {
			t.Errorf("CacheTTL = %v, want 1m", s.CacheTTL)
		}
		if s.Retry.MaxAttempts != 6 {
			t.Errorf("Retry.MaxAttempts = %d, want 6", s.Retry.MaxAttempts)
		}
		if s.Retry.InitialDelay != 500*time.Millisecond {
			t.Errorf("Retry.InitialDelay = %v, want default 500ms", s.Retry.InitialDelay)
		}
	})

	t.Run("ignores invalid values", func(t *testing.T) {
		cfg := &Config{Fetch: &FetchOverrides{State: ptr("merged"), Rate: ptr(-1.0)}}
		s := cfg.GetFetchSettings()
		if s.State != model.StateAll {
			t.Errorf("State = %q, want all", s.State)
		}
		if s.Rate != constants.DefaultRequestsPerSecond {
			t.Errorf("Rate = %v, want default", s.Rate)
		}
	})
}

func TestGetLLMSettings(t *testing.T) {
	tests := []struct {
		name      string
		cfg       *Config
		wantProv  string
		wantModel string
	}{
		{"default", &Config{}, ProviderAnthropic, constants.DefaultAnthropicModel},
		{"gemini default model", &Config{LLM: &LLMOverrides{Provider: ptr("Gemini")}}, ProviderGemini, constants.DefaultGeminiModel},
		{"explicit model", &Config{LLM: &LLMOverrides{Model: ptr("claude-haiku-4-5")}}, ProviderAnthropic, "claude-haiku-4-5"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := tt.cfg.GetLLMSettings()
			if s.Provider != tt.wantProv {
				t.Errorf("Provider = %q, want %q", s.Provider, tt.wantProv)
			}
			if s.Model != tt.wantModel {
				t.Errorf("Model = %q, want %q", s.Model, tt.wantModel)
			}
			if s.MaxTokens != constants.DefaultMaxTokens {
				t.Errorf("MaxTokens = %d, want %d", s.MaxTokens, constants.DefaultMaxTokens)
			}
		})
	}
}

func TestGetDigestSettings(t *testing.T) {
	cfg := &Config{
		Fetch:  &FetchOverrides{MaxPages: ptr(3)},
		Digest: &DigestOverrides{Instruction: ptr("be brief")},
	}
	s := cfg.GetDigestSettings()
	if s.MaxPages != 3 {
		t.Errorf("MaxPages = %d, want fetch max pages 3", s.MaxPages)
	}
	if s.Instruction != "be brief" {
		t.Errorf("Instruction = %q", s.Instruction)
	}
}

func TestGetUserSettings(t *testing.T) {
	t.Setenv("USER", "octocat")

	s := (&Config{}).GetUserSettings()
	if s.ID != "local" || s.Name != "octocat" || s.Role != model.UserRoleUser {
		t.Errorf("GetUserSettings() = %+v", s)
	}

	s = (&Config{User: &UserOverrides{Role: ptr("admin")}}).GetUserSettings()
	if s.Role != model.UserRoleAdmin {
		t.Errorf("Role = %q, want ADMIN", s.Role)
	}
}

func TestGetStorePath(t *testing.T) {
	t.Setenv(EnvDatabase, "")
	cfg := &Config{Store: &StoreOverrides{Path: ptr("/tmp/x.db")}}
	if got := cfg.GetStorePath(); got != "/tmp/x.db" {
		t.Errorf("GetStorePath() = %q, want /tmp/x.db", got)
	}

	t.Setenv(EnvDatabase, "/tmp/env.db")
	if got := cfg.GetStorePath(); got != "/tmp/env.db" {
		t.Errorf("GetStorePath() = %q, want env override", got)
	}
}

func TestMergeConfig(t *testing.T) {
	global := &Config{
		DefaultFormat: "json",
		Fetch:         &FetchOverrides{State: ptr("open"), Rate: ptr(1.0)},
		LLM:           &LLMOverrides{Provider: ptr("gemini")},
	}
	local := &Config{
		Fetch:  &FetchOverrides{Rate: ptr(4.0)},
		Server: &ServerOverrides{Addr: ptr(":9000")},
	}

	merged := mergeConfig(global, local)

	if merged.DefaultFormat != "json" {
		t.Errorf("DefaultFormat = %q, want global json", merged.DefaultFormat)
	}
	if *merged.Fetch.State != "open" {
		t.Errorf("Fetch.State = %q, want global open", *merged.Fetch.State)
	}
	if *merged.Fetch.Rate != 4.0 {
		t.Errorf("Fetch.Rate = %v, want local 4", *merged.Fetch.Rate)
	}
	if *merged.LLM.Provider != "gemini" {
		t.Errorf("LLM.Provider = %q, want gemini", *merged.LLM.Provider)
	}
	if merged.GetServerAddr() != ":9000" {
		t.Errorf("Server addr = %q, want :9000", merged.GetServerAddr())
	}
}

func TestLoad(t *testing.T) {
	configHome := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", configHome)
	t.Chdir(t.TempDir())

	global := "default_format: markdown\nfetch:\n  state: closed\n  cache_ttl: 2m\n"
	if err := SaveTo(filepath.Join(configHome, "issueradar", "config.yaml"), global); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(".issueradar.yaml", []byte("llm:\n  provider: gemini\n"), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.DefaultFormat != "markdown" {
		t.Errorf("DefaultFormat = %q, want markdown", cfg.DefaultFormat)
	}
	fs := cfg.GetFetchSettings()
	if fs.State != model.StateClosed {
		t.Errorf("State = %q, want closed", fs.State)
	}
	if fs.CacheTTL != 2*time.Minute {
		t.Errorf("CacheTTL = %v, want 2m", fs.CacheTTL)
	}
	if cfg.GetLLMSettings().Provider != ProviderGemini {
		t.Errorf("Provider = %q, want gemini", cfg.GetLLMSettings().Provider)
	}

	paths := GetConfigPaths()
	if !paths.GlobalExists || !paths.LocalExists {
		t.Errorf("GetConfigPaths() = %+v, want both present", paths)
	}
}

func TestLoadInvalidYAML(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Chdir(t.TempDir())
	if err := os.WriteFile(".issueradar.yaml", []byte("fetch: [oops"), 0600); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(); err == nil {
		t.Error("Load() expected error for invalid yaml")
	}
}

func TestSet(t *testing.T) {
	cfg := &Config{}

	if err := cfg.Set("llm.provider", "GEMINI"); err != nil {
		t.Fatalf("Set(llm.provider) error = %v", err)
	}
	if err := cfg.Set("fetch.rate", "0.25"); err != nil {
		t.Fatalf("Set(fetch.rate) error = %v", err)
	}
	if err := cfg.Set("user.role", "admin"); err != nil {
		t.Fatalf("Set(user.role) error = %v", err)
	}
	if cfg.GetLLMSettings().Provider != ProviderGemini {
		t.Error("provider not applied")
	}
	if cfg.GetFetchSettings().Rate != 0.25 {
		t.Error("rate not applied")
	}
	if cfg.GetUserSettings().Role != model.UserRoleAdmin {
		t.Error("role not applied")
	}

	for _, bad := range [][2]string{
		{"format", "xml"},
		{"fetch.rate", "fast"},
		{"llm.provider", "openai"},
		{"token", "ghp_x"},
		{"nope", "x"},
	} {
		if err := cfg.Set(bad[0], bad[1]); err == nil {
			t.Errorf("Set(%q, %q) expected error", bad[0], bad[1])
		}
	}
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	if err := os.WriteFile(path, []byte("ISSUERADAR_TEST_KEY=from-file\n"), 0600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("ISSUERADAR_TEST_KEY", "")
	os.Unsetenv("ISSUERADAR_TEST_KEY")

	if err := LoadDotEnv(path, filepath.Join(dir, "missing.env")); err != nil {
		t.Fatalf("LoadDotEnv() error = %v", err)
	}
	if got := os.Getenv("ISSUERADAR_TEST_KEY"); got != "from-file" {
		t.Errorf("ISSUERADAR_TEST_KEY = %q, want from-file", got)
	}
}

func TestDefaultConfigRoundTrip(t *testing.T) {
	out, err := DefaultConfig().ToYAML()
	if err != nil {
		t.Fatalf("ToYAML() error = %v", err)
	}
	for _, want := range []string{"default_format: table", "provider: anthropic", "cache_ttl: 15m0s"} {
		if !strings.Contains(out, want) {
			t.Errorf("ToYAML() missing %q:\n%s", want, out)
		}
	}
	if !strings.Contains(MinimalConfig(), "default_format: table") {
		t.Error("MinimalConfig() missing default_format")
	}
}
