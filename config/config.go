package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/issueradar/issueradar/internal/constants"
	"github.com/issueradar/issueradar/internal/model"
	"github.com/issueradar/issueradar/internal/retry"
)

// Environment variables read by issueradar. Secrets are never stored in config files.
const (
	EnvGitHubToken  = "GITHUB_TOKEN"
	EnvAnthropicKey = "ANTHROPIC_API_KEY"
	EnvGeminiKey    = "GEMINI_API_KEY"
	EnvDatabase     = "ISSUERADAR_DB"
)

// LLM providers
const (
	ProviderAnthropic = "anthropic"
	ProviderGemini    = "gemini"
)

// Config represents the application configuration
type Config struct {
	DefaultFormat string `yaml:"default_format,omitempty" json:"default_format,omitempty"`

	Fetch  *FetchOverrides  `yaml:"fetch,omitempty" json:"fetch,omitempty"`
	LLM    *LLMOverrides    `yaml:"llm,omitempty" json:"llm,omitempty"`
	Digest *DigestOverrides `yaml:"digest,omitempty" json:"digest,omitempty"`
	Store  *StoreOverrides  `yaml:"store,omitempty" json:"store,omitempty"`
	Server *ServerOverrides `yaml:"server,omitempty" json:"server,omitempty"`
	User   *UserOverrides   `yaml:"user,omitempty" json:"user,omitempty"`
}

// FetchOverrides controls how issues are read from GitHub.
type FetchOverrides struct {
	State    *string         `yaml:"state,omitempty" json:"state,omitempty"`
	PerPage  *int            `yaml:"per_page,omitempty" json:"per_page,omitempty"`
	MaxPages *int            `yaml:"max_pages,omitempty" json:"max_pages,omitempty"`
	Rate     *float64        `yaml:"rate,omitempty" json:"rate,omitempty"`
	Burst    *int            `yaml:"burst,omitempty" json:"burst,omitempty"`
	CacheTTL *time.Duration  `yaml:"cache_ttl,omitempty" json:"cache_ttl,omitempty"`
	Retry    *RetryOverrides `yaml:"retry,omitempty" json:"retry,omitempty"`
}

// RetryOverrides controls exponential backoff.
type RetryOverrides struct {
	MaxAttempts  *int           `yaml:"max_attempts,omitempty" json:"max_attempts,omitempty"`
	InitialDelay *time.Duration `yaml:"initial_delay,omitempty" json:"initial_delay,omitempty"`
	MaxDelay     *time.Duration `yaml:"max_delay,omitempty" json:"max_delay,omitempty"`
}

// LLMOverrides selects and tunes the chat-completion backend.
type LLMOverrides struct {
	Provider    *string  `yaml:"provider,omitempty" json:"provider,omitempty"`
	Model       *string  `yaml:"model,omitempty" json:"model,omitempty"`
	MaxTokens   *int     `yaml:"max_tokens,omitempty" json:"max_tokens,omitempty"`
	Temperature *float64 `yaml:"temperature,omitempty" json:"temperature,omitempty"`
}

// DigestOverrides tunes digest generation.
type DigestOverrides struct {
	Instruction *string         `yaml:"instruction,omitempty" json:"instruction,omitempty"`
	MaxPages    *int            `yaml:"max_pages,omitempty" json:"max_pages,omitempty"`
	SaveRetry   *RetryOverrides `yaml:"save_retry,omitempty" json:"save_retry,omitempty"`
}

// StoreOverrides locates the database.
type StoreOverrides struct {
	Path *string `yaml:"path,omitempty" json:"path,omitempty"`
}

// ServerOverrides configures `issueradar serve`.
type ServerOverrides struct {
	Addr *string `yaml:"addr,omitempty" json:"addr,omitempty"`
}

// UserOverrides describes the local user that owns projects.
type UserOverrides struct {
	ID    *string `yaml:"id,omitempty" json:"id,omitempty"`
	Name  *string `yaml:"name,omitempty" json:"name,omitempty"`
	Email *string `yaml:"email,omitempty" json:"email,omitempty"`
	Role  *string `yaml:"role,omitempty" json:"role,omitempty"`
}

// FetchSettings are the resolved fetch options.
type FetchSettings struct {
	State    model.IssueState
	PerPage  int
	MaxPages int
	Rate     float64
	Burst    int
	CacheTTL time.Duration
	Retry    retry.Config
}

// LLMSettings are the resolved chat-completion options.
type LLMSettings struct {
	Provider    string
	Model       string
	MaxTokens   int
	Temperature float64
}

// DigestSettings are the resolved digest options.
type DigestSettings struct {
	Instruction string
	MaxPages    int
	SaveRetry   retry.Config
}

// UserSettings is the resolved local user.
type UserSettings struct {
	ID    string
	Name  string
	Email string
	Role  model.UserRole
}

// GetFetchSettings returns fetch settings with user overrides merged with defaults
func (c *Config) GetFetchSettings() FetchSettings {
	s := FetchSettings{
		State:    model.StateAll,
		PerPage:  constants.DefaultPerPage,
		MaxPages: constants.DefaultMaxPages,
		Rate:     constants.DefaultRequestsPerSecond,
		Burst:    constants.DefaultBurst,
		CacheTTL: constants.IssuePageCacheTTL,
		Retry:    retry.DefaultConfig(),
	}
	f := c.Fetch
	if f == nil {
		return s
	}
	if f.State != nil {
		if st, err := model.ParseIssueState(*f.State); err == nil {
			s.State = st
		}
	}
	if f.PerPage != nil && *f.PerPage > 0 {
		s.PerPage = min(*f.PerPage, constants.MaxPerPage)
	}
	if f.MaxPages != nil && *f.MaxPages > 0 {
		s.MaxPages = *f.MaxPages
	}
	if f.Rate != nil && *f.Rate > 0 {
		s.Rate = *f.Rate
	}
	if f.Burst != nil && *f.Burst > 0 {
		s.Burst = *f.Burst
	}
	if f.CacheTTL != nil {
		s.CacheTTL = *f.CacheTTL
	}
	s.Retry = resolveRetry(s.Retry, f.Retry)
	return s
}

// GetLLMSettings returns LLM settings with user overrides merged with defaults
func (c *Config) GetLLMSettings() LLMSettings {
	s := LLMSettings{
		Provider:    ProviderAnthropic,
		MaxTokens:   constants.DefaultMaxTokens,
		Temperature: constants.DefaultTemperature,
	}
	if l := c.LLM; l != nil {
		if l.Provider != nil && *l.Provider != "" {
			s.Provider = strings.ToLower(*l.Provider)
		}
		if l.Model != nil {
			s.Model = *l.Model
		}
		if l.MaxTokens != nil && *l.MaxTokens > 0 {
			s.MaxTokens = *l.MaxTokens
		}
		if l.Temperature != nil {
			s.Temperature = *l.Temperature
		}
	}
	if s.Model == "" {
		switch s.Provider {
		case ProviderGemini:
			s.Model = constants.DefaultGeminiModel
		default:
			s.Model = constants.DefaultAnthropicModel
		}
	}
	return s
}

// GetDigestSettings returns digest settings with user overrides merged with defaults
func (c *Config) GetDigestSettings() DigestSettings {
	s := DigestSettings{
		MaxPages:  c.GetFetchSettings().MaxPages,
		SaveRetry: retry.DefaultConfig(),
	}
	if d := c.Digest; d != nil {
		if d.Instruction != nil {
			s.Instruction = *d.Instruction
		}
		if d.MaxPages != nil && *d.MaxPages > 0 {
			s.MaxPages = *d.MaxPages
		}
		s.SaveRetry = resolveRetry(s.SaveRetry, d.SaveRetry)
	}
	return s
}

// GetUserSettings returns the local user, defaulting to the login name.
func (c *Config) GetUserSettings() UserSettings {
	name := os.Getenv("USER")
	if name == "" {
		name = "local"
	}
	s := UserSettings{ID: "local", Name: name, Role: model.UserRoleUser}
	if u := c.User; u != nil {
		if u.ID != nil && *u.ID != "" {
			s.ID = *u.ID
		}
		if u.Name != nil && *u.Name != "" {
			s.Name = *u.Name
		}
		if u.Email != nil {
			s.Email = *u.Email
		}
		if u.Role != nil && strings.EqualFold(*u.Role, string(model.UserRoleAdmin)) {
			s.Role = model.UserRoleAdmin
		}
	}
	return s
}

// GetServerAddr returns the listen address of the API server.
func (c *Config) GetServerAddr() string {
	if c.Server != nil && c.Server.Addr != nil && *c.Server.Addr != "" {
		return *c.Server.Addr
	}
	return constants.DefaultServerAddr
}

// GetStorePath returns the database path. ISSUERADAR_DB wins over the config file.
func (c *Config) GetStorePath() string {
	if p := os.Getenv(EnvDatabase); p != "" {
		return p
	}
	if c.Store != nil && c.Store.Path != nil && *c.Store.Path != "" {
		return *c.Store.Path
	}
	return filepath.Join(DefaultDataDir(), "issueradar.db")
}

func resolveRetry(base retry.Config, o *RetryOverrides) retry.Config {
	if o == nil {
		return base
	}
	if o.MaxAttempts != nil && *o.MaxAttempts > 0 {
		base.MaxAttempts = *o.MaxAttempts
	}
	if o.InitialDelay != nil {
		base.InitialDelay = *o.InitialDelay
	}
	if o.MaxDelay != nil {
		base.MaxDelay = *o.MaxDelay
	}
	return base
}

// DefaultConfigDir returns the default config directory
func DefaultConfigDir() string {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return ".issueradar"
	}
	return filepath.Join(configDir, "issueradar")
}

// DefaultDataDir returns the directory holding the database.
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".issueradar"
	}
	return filepath.Join(home, ".issueradar")
}

// ConfigPath returns the path to the config file
func ConfigPath() string {
	return filepath.Join(DefaultConfigDir(), "config.yaml")
}

// LocalConfigPath returns the path to the local config file in the current directory
func LocalConfigPath() string {
	return ".issueradar.yaml"
}

// LoadDotEnv loads KEY=VALUE pairs from the given files (default ".env") into the
// environment. Missing files are ignored and variables already set are kept.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	var existing []string
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			existing = append(existing, p)
		}
	}
	if len(existing) == 0 {
		return nil
	}
	if err := godotenv.Load(existing...); err != nil {
		return fmt.Errorf("failed to load env file: %w", err)
	}
	return nil
}

// Load loads the configuration from disk.
// It first loads the global config from the user config directory, then merges
// any local .issueradar.yaml config on top (local values take precedence).
func Load() (*Config, error) {
	cfg := &Config{
		DefaultFormat: "table",
	}

	globalPath := ConfigPath()
	if _, err := os.Stat(globalPath); err == nil {
		data, err := os.ReadFile(globalPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read global config file: %w", err)
		}

		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse global config file: %w", err)
		}
	}

	localPath := LocalConfigPath()
	if _, err := os.Stat(localPath); err == nil {
		data, err := os.ReadFile(localPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read local config file: %w", err)
		}

		var localCfg Config
		if err := yaml.Unmarshal(data, &localCfg); err != nil {
			return nil, fmt.Errorf("failed to parse local config file: %w", err)
		}

		cfg = mergeConfig(cfg, &localCfg)
	}

	if cfg.DefaultFormat == "" {
		cfg.DefaultFormat = "table"
	}

	return cfg, nil
}

// override returns local when set, otherwise global.
func override[T any](global, local *T) *T {
	if local != nil {
		return local
	}
	return global
}

// mergeConfig merges local config on top of global config.
// Local values take precedence; unset local values preserve global values.
func mergeConfig(global, local *Config) *Config {
	result := &Config{
		DefaultFormat: global.DefaultFormat,
	}
	if local.DefaultFormat != "" {
		result.DefaultFormat = local.DefaultFormat
	}

	result.Fetch = mergeFetch(global.Fetch, local.Fetch)
	result.LLM = mergeLLM(global.LLM, local.LLM)
	result.Digest = mergeDigest(global.Digest, local.Digest)
	result.Store = mergeStore(global.Store, local.Store)
	result.Server = mergeServer(global.Server, local.Server)
	result.User = mergeUser(global.User, local.User)

	return result
}

func mergeFetch(global, local *FetchOverrides) *FetchOverrides {
	if global == nil || local == nil {
		return override(global, local)
	}
	return &FetchOverrides{
		State:    override(global.State, local.State),
		PerPage:  override(global.PerPage, local.PerPage),
		MaxPages: override(global.MaxPages, local.MaxPages),
		Rate:     override(global.Rate, local.Rate),
		Burst:    override(global.Burst, local.Burst),
		CacheTTL: override(global.CacheTTL, local.CacheTTL),
		Retry:    mergeRetry(global.Retry, local.Retry),
	}
}

func mergeRetry(global, local *RetryOverrides) *RetryOverrides {
	if global == nil || local == nil {
		return override(global, local)
	}
	return &RetryOverrides{
		MaxAttempts:  override(global.MaxAttempts, local.MaxAttempts),
		InitialDelay: override(global.InitialDelay, local.InitialDelay),
		MaxDelay:     override(global.MaxDelay, local.MaxDelay),
	}
}

func mergeLLM(global, local *LLMOverrides) *LLMOverrides {
	if global == nil || local == nil {
		return override(global, local)
	}
	return &LLMOverrides{
		Provider:    override(global.Provider, local.Provider),
		Model:       override(global.Model, local.Model),
		MaxTokens:   override(global.MaxTokens, local.MaxTokens),
		Temperature: override(global.Temperature, local.Temperature),
	}
}

func mergeDigest(global, local *DigestOverrides) *DigestOverrides {
	if global == nil || local == nil {
		return override(global, local)
	}
	return &DigestOverrides{
		Instruction: override(global.Instruction, local.Instruction),
		MaxPages:    override(global.MaxPages, local.MaxPages),
		SaveRetry:   mergeRetry(global.SaveRetry, local.SaveRetry),
	}
}

func mergeStore(global, local *StoreOverrides) *StoreOverrides {
	if global == nil || local == nil {
		return override(global, local)
	}
	return &StoreOverrides{Path: override(global.Path, local.Path)}
}

func mergeServer(global, local *ServerOverrides) *ServerOverrides {
	if global == nil || local == nil {
		return override(global, local)
	}
	return &ServerOverrides{Addr: override(global.Addr, local.Addr)}
}

func mergeUser(global, local *UserOverrides) *UserOverrides {
	if global == nil || local == nil {
		return override(global, local)
	}
	return &UserOverrides{
		ID:    override(global.ID, local.ID),
		Name:  override(global.Name, local.Name),
		Email: override(global.Email, local.Email),
		Role:  override(global.Role, local.Role),
	}
}

// Save saves the configuration to the global config file
func (c *Config) Save() error {
	configDir := DefaultConfigDir()

	if err := os.MkdirAll(configDir, 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(ConfigPath(), data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// GetGitHubToken returns the GitHub token from the GITHUB_TOKEN environment variable.
// An empty token means anonymous access with the lower rate limit.
func (c *Config) GetGitHubToken() string {
	return os.Getenv(EnvGitHubToken)
}

// GetLLMAPIKey returns the API key of the configured LLM provider.
func (c *Config) GetLLMAPIKey() string {
	if c.GetLLMSettings().Provider == ProviderGemini {
		return os.Getenv(EnvGeminiKey)
	}
	return os.Getenv(EnvAnthropicKey)
}

// ErrUnknownKey is returned by Set for keys that cannot be configured.
var ErrUnknownKey = errors.New("unknown config key")

// SettableKeys lists the keys accepted by Set.
func SettableKeys() []string {
	return []string{
		"format", "fetch.state", "fetch.rate", "fetch.max_pages",
		"llm.provider", "llm.model", "digest.instruction",
		"store.path", "server.addr", "user.name", "user.role",
	}
}

// Set assigns a single value by dotted key. It does not save.
func (c *Config) Set(key, value string) error {
	switch key {
	case "token", "github_token", "api_key":
		return fmt.Errorf("secrets cannot be stored in config files. Set %s, %s or %s instead",
			EnvGitHubToken, EnvAnthropicKey, EnvGeminiKey)
	case "format":
		if value != "table" && value != "json" && value != "markdown" {
			return fmt.Errorf("invalid format: %s (must be table, json or markdown)", value)
		}
		c.DefaultFormat = value
	case "fetch.state":
		st, err := model.ParseIssueState(value)
		if err != nil {
			return err
		}
		s := string(st)
		c.fetch().State = &s
	case "fetch.rate":
		r, err := strconv.ParseFloat(value, 64)
		if err != nil || r <= 0 {
			return fmt.Errorf("invalid rate %q: must be a positive number of requests per second", value)
		}
		c.fetch().Rate = &r
	case "fetch.max_pages":
		n, err := strconv.Atoi(value)
		if err != nil || n <= 0 {
			return fmt.Errorf("invalid max_pages %q: must be a positive integer", value)
		}
		c.fetch().MaxPages = &n
	case "llm.provider":
		p := strings.ToLower(value)
		if p != ProviderAnthropic && p != ProviderGemini {
			return fmt.Errorf("invalid provider: %s (must be %s or %s)", value, ProviderAnthropic, ProviderGemini)
		}
		c.llm().Provider = &p
	case "llm.model":
		c.llm().Model = &value
	case "digest.instruction":
		if c.Digest == nil {
			c.Digest = &DigestOverrides{}
		}
		c.Digest.Instruction = &value
	case "store.path":
		c.Store = &StoreOverrides{Path: &value}
	case "server.addr":
		c.Server = &ServerOverrides{Addr: &value}
	case "user.name":
		c.user().Name = &value
	case "user.role":
		role := strings.ToUpper(value)
		if role != string(model.UserRoleUser) && role != string(model.UserRoleAdmin) {
			return fmt.Errorf("invalid role: %s (must be USER or ADMIN)", value)
		}
		c.user().Role = &role
	default:
		return fmt.Errorf("%w: %s", ErrUnknownKey, key)
	}
	return nil
}

func (c *Config) fetch() *FetchOverrides {
	if c.Fetch == nil {
		c.Fetch = &FetchOverrides{}
	}
	return c.Fetch
}

func (c *Config) llm() *LLMOverrides {
	if c.LLM == nil {
		c.LLM = &LLMOverrides{}
	}
	return c.LLM
}

func (c *Config) user() *UserOverrides {
	if c.User == nil {
		c.User = &UserOverrides{}
	}
	return c.User
}

// DefaultConfig returns a fully populated config with all default values.
// This is useful for generating a complete config file template.
func DefaultConfig() *Config {
	fetch := (&Config{}).GetFetchSettings()
	llm := (&Config{}).GetLLMSettings()
	digest := (&Config{}).GetDigestSettings()
	state := string(fetch.State)
	addr := constants.DefaultServerAddr
	storePath := filepath.Join(DefaultDataDir(), "issueradar.db")
	role := string(model.UserRoleUser)

	return &Config{
		DefaultFormat: "table",
		Fetch: &FetchOverrides{
			State:    &state,
			PerPage:  &fetch.PerPage,
			MaxPages: &fetch.MaxPages,
			Rate:     &fetch.Rate,
			Burst:    &fetch.Burst,
			CacheTTL: &fetch.CacheTTL,
			Retry:    retryOverrides(fetch.Retry),
		},
		LLM: &LLMOverrides{
			Provider:    &llm.Provider,
			Model:       &llm.Model,
			MaxTokens:   &llm.MaxTokens,
			Temperature: &llm.Temperature,
		},
		Digest: &DigestOverrides{
			Instruction: &digest.Instruction,
			MaxPages:    &digest.MaxPages,
			SaveRetry:   retryOverrides(digest.SaveRetry),
		},
		Store:  &StoreOverrides{Path: &storePath},
		Server: &ServerOverrides{Addr: &addr},
		User:   &UserOverrides{Role: &role},
	}
}

func retryOverrides(r retry.Config) *RetryOverrides {
	return &RetryOverrides{
		MaxAttempts:  &r.MaxAttempts,
		InitialDelay: &r.InitialDelay,
		MaxDelay:     &r.MaxDelay,
	}
}

// ToYAML returns the config as a YAML string
func (c *Config) ToYAML() (string, error) {
	data, err := yaml.Marshal(c)
	if err != nil {
		return "", fmt.Errorf("failed to marshal config: %w", err)
	}
	return string(data), nil
}

// ConfigPathInfo contains information about config file paths
type ConfigPathInfo struct {
	GlobalPath   string
	GlobalExists bool
	LocalPath    string
	LocalExists  bool
}

// GetConfigPaths returns path info for both global and local configs
func GetConfigPaths() ConfigPathInfo {
	globalPath := ConfigPath()
	localPath := LocalConfigPath()

	absLocalPath, err := filepath.Abs(localPath)
	if err != nil {
		absLocalPath = localPath
	}

	_, globalErr := os.Stat(globalPath)
	_, localErr := os.Stat(localPath)

	return ConfigPathInfo{
		GlobalPath:   globalPath,
		GlobalExists: globalErr == nil,
		LocalPath:    absLocalPath,
		LocalExists:  localErr == nil,
	}
}

// MinimalConfig returns a minimal config template with comments
func MinimalConfig() string {
	return `# issueradar configuration file
# See: issueradar config defaults  (for all available options)

# Output format: table, json or markdown
default_format: table

# How issues are read from GitHub
fetch:
  state: all        # open, closed or all
  max_pages: 1
  rate: 2           # pages per second

# Chat-completion backend (anthropic or gemini)
# Keys come from ANTHROPIC_API_KEY or GEMINI_API_KEY
llm:
  provider: anthropic

# Extra instruction appended to every digest prompt (optional)
# digest:
#   instruction: Group the issues by component and list open bugs first.
`
}

// SaveTo writes content to a specific path, creating directories as needed
func SaveTo(path string, content string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		return fmt.Errorf("failed to write file %s: %w", path, err)
	}

	return nil
}
