package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"dario.cat/mergo"
	"github.com/aschepis/backscratcher/lifelog/llm"
	"github.com/aschepis/backscratcher/lifelog/locale"
	"gopkg.in/yaml.v3"
)

// GeminiConfig represents configuration for the first-party Gemini backend.
type GeminiConfig struct {
	APIKey  string `yaml:"api_key,omitempty"`  // Default credential for Google models
	BaseURL string `yaml:"base_url,omitempty"` // Optional endpoint override
}

// AnthropicConfig represents configuration for the Anthropic backend.
type AnthropicConfig struct {
	MaxTokens int64 `yaml:"max_tokens,omitempty"` // Default max tokens per request
}

// OllamaConfig represents configuration for the Ollama backend.
type OllamaConfig struct {
	Host string `yaml:"host,omitempty"` // Ollama host; overrides the catalog default
}

// OpenAIConfig represents configuration for OpenAI-compatible backends.
type OpenAIConfig struct {
	Organization string `yaml:"organization,omitempty"` // Organization ID (OpenAI only)
}

// SimulationConfig controls the latency of simulated results for generic models.
type SimulationConfig struct {
	AnalysisDelay time.Duration `yaml:"analysis_delay,omitempty"`
	ChatDelay     time.Duration `yaml:"chat_delay,omitempty"`
}

// RetryConfig is the optional caller-side retry policy for native transports.
type RetryConfig struct {
	MaxAttempts     int           `yaml:"max_attempts,omitempty"` // 0 or 1 disables retrying
	InitialInterval time.Duration `yaml:"initial_interval,omitempty"`
	MaxInterval     time.Duration `yaml:"max_interval,omitempty"`
}

// Policy converts the config into an llm.RetryPolicy.
func (r RetryConfig) Policy() llm.RetryPolicy {
	return llm.RetryPolicy{
		MaxAttempts:     r.MaxAttempts,
		InitialInterval: r.InitialInterval,
		MaxInterval:     r.MaxInterval,
	}
}

// LayoutConfig holds graph layout parameters.
type LayoutConfig struct {
	Width  float64 `yaml:"width,omitempty"`
	Height float64 `yaml:"height,omitempty"`
	Radius float64 `yaml:"radius,omitempty"`
}

// AutoAnalyzeConfig configures the background analysis sweep.
type AutoAnalyzeConfig struct {
	Enabled   bool   `yaml:"enabled,omitempty"`
	Schedule  string `yaml:"schedule,omitempty"`   // e.g., "10m", "@hourly", "0 */15 * * * *" (cron)
	Model     string `yaml:"model,omitempty"`      // Defaults to default_model
	Locale    string `yaml:"locale,omitempty"`     // Defaults to locale
	BatchSize int    `yaml:"batch_size,omitempty"` // Memories per sweep
}

// MinioConfig configures the S3-compatible media store.
type MinioConfig struct {
	Endpoint  string `yaml:"endpoint,omitempty"`
	AccessKey string `yaml:"access_key,omitempty"`
	SecretKey string `yaml:"secret_key,omitempty"`
	Bucket    string `yaml:"bucket,omitempty"`
	Secure    bool   `yaml:"secure,omitempty"`
}

// MediaConfig selects where media payloads are stored.
type MediaConfig struct {
	Backend string      `yaml:"backend,omitempty"` // "sqlite" (default) or "minio"
	Minio   MinioConfig `yaml:"minio,omitempty"`
}

// ServerConfig represents server-side configuration for the lifelogd daemon.
type ServerConfig struct {
	// Server settings
	Server struct {
		Addr           string   `yaml:"addr,omitempty"` // HTTP listen address (default: localhost:8420)
		AllowedOrigins []string `yaml:"allowed_origins,omitempty"`
	} `yaml:"server,omitempty"`

	Database struct {
		Path       string `yaml:"path,omitempty"`       // SQLite file (default: ~/.lifelog/lifelog.db)
		Migrations string `yaml:"migrations,omitempty"` // Migrations directory; empty uses the embedded schema
	} `yaml:"database,omitempty"`

	// Analysis defaults
	Locale       string `yaml:"locale,omitempty"`        // "zh" or "en"
	DefaultModel string `yaml:"default_model,omitempty"` // Model used when a request names none

	// LLM backend configurations
	LLMBackends  []string              `yaml:"llm_backends,omitempty"` // Backends with a wired transport
	Gemini       GeminiConfig          `yaml:"gemini,omitempty"`
	Anthropic    AnthropicConfig       `yaml:"anthropic,omitempty"`
	Ollama       OllamaConfig          `yaml:"ollama,omitempty"`
	OpenAI       OpenAIConfig          `yaml:"openai,omitempty"`
	ModelConfigs []llm.UserModelConfig `yaml:"model_configs,omitempty"` // Seeded into the store at startup

	Simulation  SimulationConfig  `yaml:"simulation,omitempty"`
	Retry       RetryConfig       `yaml:"retry,omitempty"`
	Layout      LayoutConfig      `yaml:"layout,omitempty"`
	AutoAnalyze AutoAnalyzeConfig `yaml:"auto_analyze,omitempty"`
	Media       MediaConfig       `yaml:"media,omitempty"`
}

// ClientConfig represents client-side configuration for the lifelog CLI.
type ClientConfig struct {
	ServerURL string `yaml:"server_url,omitempty"` // Daemon base URL (default: http://localhost:8420)
	Model     string `yaml:"model,omitempty"`      // Model id sent with requests; empty uses the daemon default
	Locale    string `yaml:"locale,omitempty"`
	Timeout   int    `yaml:"timeout,omitempty"` // Timeout in seconds for requests (default: 120)
}

// DefaultServerConfig returns the built-in server defaults.
func DefaultServerConfig() ServerConfig {
	cfg := ServerConfig{
		Locale:       "zh",
		DefaultModel: "gemini-2.5-flash",
		LLMBackends:  []string{llm.BackendGemini},
		Anthropic: AnthropicConfig{
			MaxTokens: 2048,
		},
		Simulation: SimulationConfig{
			AnalysisDelay: 1500 * time.Millisecond,
			ChatDelay:     1000 * time.Millisecond,
		},
		Layout: LayoutConfig{
			Width:  300,
			Height: 300,
			Radius: 100,
		},
		AutoAnalyze: AutoAnalyzeConfig{
			Schedule:  "15m",
			BatchSize: 10,
		},
		Media: MediaConfig{
			Backend: "sqlite",
			Minio: MinioConfig{
				Bucket: "lifelog-media",
			},
		},
	}
	cfg.Server.Addr = "localhost:8420"
	cfg.Server.AllowedOrigins = []string{"http://localhost:*"}
	cfg.Database.Path = "~/.lifelog/lifelog.db"
	return cfg
}

// GetServerConfigPath returns the default server config file path.
// Can be overridden via LIFELOG_CONFIG_PATH environment variable.
func GetServerConfigPath() string {
	if envPath := os.Getenv("LIFELOG_CONFIG_PATH"); envPath != "" {
		return expandPath(envPath)
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "./.lifelog/config.yaml"
	}
	return filepath.Join(homeDir, ".lifelog", "config.yaml")
}

// GetClientConfigPath returns the default client config file path.
// Can be overridden via LIFELOG_CLIENT_CONFIG_PATH environment variable.
func GetClientConfigPath() string {
	if envPath := os.Getenv("LIFELOG_CLIENT_CONFIG_PATH"); envPath != "" {
		return expandPath(envPath)
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "./.lifelog/cli.yaml"
	}
	return filepath.Join(homeDir, ".lifelog", "cli.yaml")
}

// ExpandPath expands ~ to the user's home directory.
func ExpandPath(path string) string {
	return expandPath(path)
}

// expandPath expands ~ to the user's home directory.
func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(homeDir, path[2:])
	}
	return path
}

// SaveClientConfig saves the client configuration to the specified path.
func SaveClientConfig(cfg *ClientConfig, path string) error {
	return saveYAML(cfg, path)
}

func saveYAML(v any, path string) error {
	expandedPath := expandPath(path)

	// Ensure directory exists
	dir := filepath.Dir(expandedPath)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	// Config may hold API keys
	if err := os.WriteFile(expandedPath, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// LoadServerConfig loads server-side configuration.
// Defaults are merged with the config file (if it exists), then environment
// overrides are applied.
func LoadServerConfig(path string) (*ServerConfig, error) {
	defaults := DefaultServerConfig()

	expandedPath := expandPath(path)
	if _, err := os.Stat(expandedPath); err == nil {
		data, err := os.ReadFile(expandedPath) //#nosec 304 -- intentional file read for config
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %q: %w", expandedPath, err)
		}

		var userConfig ServerConfig
		if err := yaml.Unmarshal(data, &userConfig); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}

		if err := mergo.Merge(&defaults, userConfig, mergo.WithOverride); err != nil {
			return nil, fmt.Errorf("failed to merge config: %w", err)
		}
	}

	applyServerEnv(&defaults)
	defaults.Database.Path = expandPath(defaults.Database.Path)

	if err := defaults.Validate(); err != nil {
		return nil, err
	}
	return &defaults, nil
}

// applyServerEnv applies environment variable overrides.
func applyServerEnv(cfg *ServerConfig) {
	if key := getGeminiAPIKeyFromEnv(); key != "" {
		cfg.Gemini.APIKey = key
	}
	if host := getOllamaHostFromEnv(); host != "" {
		cfg.Ollama.Host = host
	}
	if org := getOpenAIOrgFromEnv(); org != "" {
		cfg.OpenAI.Organization = org
	}
	if addr := os.Getenv("LIFELOG_ADDR"); addr != "" {
		cfg.Server.Addr = addr
	}
	if db := os.Getenv("LIFELOG_DB_PATH"); db != "" {
		cfg.Database.Path = db
	}
	if loc := os.Getenv("LIFELOG_LOCALE"); loc != "" {
		cfg.Locale = loc
	}
}

// Validate checks values that cannot be defaulted.
func (c *ServerConfig) Validate() error {
	if _, err := locale.Parse(c.Locale); err != nil {
		return fmt.Errorf("invalid locale: %w", err)
	}
	if c.AutoAnalyze.Locale != "" {
		if _, err := locale.Parse(c.AutoAnalyze.Locale); err != nil {
			return fmt.Errorf("invalid auto_analyze locale: %w", err)
		}
	}
	for _, b := range c.LLMBackends {
		switch b {
		case llm.BackendGemini, llm.BackendOpenAI, llm.BackendAnthropic, llm.BackendOllama:
		default:
			return fmt.Errorf("unknown llm backend %q", b)
		}
	}
	switch c.Media.Backend {
	case "sqlite":
	case "minio":
		if c.Media.Minio.Endpoint == "" {
			return fmt.Errorf("media backend minio requires media.minio.endpoint")
		}
	default:
		return fmt.Errorf("unknown media backend %q", c.Media.Backend)
	}
	if c.Layout.Width <= 0 || c.Layout.Height <= 0 || c.Layout.Radius <= 0 {
		return fmt.Errorf("layout width, height and radius must be positive")
	}
	return nil
}

// LoadClientConfig loads client-side configuration.
// Returns defaults if config file doesn't exist.
func LoadClientConfig(path string) (*ClientConfig, error) {
	defaults := ClientConfig{
		ServerURL: "http://localhost:8420",
		Timeout:   120,
	}

	expandedPath := expandPath(path)
	if _, err := os.Stat(expandedPath); os.IsNotExist(err) {
		applyClientEnv(&defaults)
		return &defaults, nil
	}

	data, err := os.ReadFile(expandedPath) //#nosec 304 -- intentional file read for config
	if err != nil {
		return nil, fmt.Errorf("failed to read client config file %q: %w", expandedPath, err)
	}

	var userConfig ClientConfig
	if err := yaml.Unmarshal(data, &userConfig); err != nil {
		return nil, fmt.Errorf("failed to parse client config: %w", err)
	}

	if err := mergo.Merge(&defaults, userConfig, mergo.WithOverride); err != nil {
		return nil, fmt.Errorf("failed to merge client config: %w", err)
	}

	applyClientEnv(&defaults)
	return &defaults, nil
}

func applyClientEnv(cfg *ClientConfig) {
	if url := os.Getenv("LIFELOG_SERVER_URL"); url != "" {
		cfg.ServerURL = url
	}
}
