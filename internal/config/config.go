package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	DefaultPort            = 8000
	DefaultAPIBaseURL      = "https://api.elevenlabs.io/v1"
	DefaultProviderTimeout = 30 * time.Second
	DefaultMaxMessageSize  = 10 * 1024 * 1024 // base64 audio clips are large
	DefaultLogLevel        = "info"
)

// Config holds all server configuration. It is built once at startup and
// treated as read-only afterwards.
type Config struct {
	Port           int      `yaml:"port"`
	LogLevel       string   `yaml:"log_level"`
	AllowedOrigins []string `yaml:"allowed_origins"`
	MaxMessageSize int64    `yaml:"max_message_size"`

	ElevenLabs ElevenLabsConfig `yaml:"elevenlabs"`
}

// ElevenLabsConfig holds provider settings. APIKey and AgentID are only read
// from the environment so they never end up in a checked-in tuning file.
type ElevenLabsConfig struct {
	APIKey     string        `yaml:"-"`
	AgentID    string        `yaml:"-"`
	APIBaseURL string        `yaml:"api_base_url"`
	Timeout    time.Duration `yaml:"timeout"`
}

// Enabled reports whether voice features can reach the provider.
func (c ElevenLabsConfig) Enabled() bool {
	return c.APIKey != ""
}

// Loader loads configuration from a .env file, an optional YAML file and
// environment variables. Tests can override Lookup to inject deterministic maps.
type Loader struct {
	Lookup   func(string) (string, bool)
	DotEnv   bool
	ReadFile func(string) ([]byte, error)
}

// Load is a shortcut for the production loader.
func Load() (*Config, error) {
	return Loader{DotEnv: true}.Load()
}

// Load builds the configuration. Precedence: defaults, CONFIG_FILE, environment.
func (l Loader) Load() (*Config, error) {
	if l.DotEnv {
		// Load .env file if it exists (doesn't error if missing)
		_ = godotenv.Load()
	}
	if l.Lookup == nil {
		l.Lookup = os.LookupEnv
	}
	if l.ReadFile == nil {
		l.ReadFile = os.ReadFile
	}

	cfg := &Config{
		Port:           DefaultPort,
		LogLevel:       DefaultLogLevel,
		AllowedOrigins: []string{"*"},
		MaxMessageSize: DefaultMaxMessageSize,
		ElevenLabs: ElevenLabsConfig{
			APIBaseURL: DefaultAPIBaseURL,
			Timeout:    DefaultProviderTimeout,
		},
	}

	if path, ok := l.lookup("CONFIG_FILE"); ok {
		data, err := l.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	if err := l.applyEnv(cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

func (l Loader) applyEnv(cfg *Config) error {
	if v, ok := l.lookup("ELEVENLABS_API_KEY"); ok {
		cfg.ElevenLabs.APIKey = v
	}
	if v, ok := l.lookup("ELEVENLABS_AGENT_ID"); ok {
		cfg.ElevenLabs.AgentID = v
	}
	if v, ok := l.lookup("ELEVENLABS_API_BASE_URL"); ok {
		cfg.ElevenLabs.APIBaseURL = strings.TrimRight(v, "/")
	}
	if v, ok := l.lookup("LOG_LEVEL"); ok {
		cfg.LogLevel = strings.ToLower(v)
	}

	if v, ok := l.lookup("PORT"); ok {
		p, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid PORT: %w", err)
		}
		cfg.Port = p
	}

	// PROVIDER_TIMEOUT accepts a Go duration ("45s") or plain seconds ("45")
	if v, ok := l.lookup("PROVIDER_TIMEOUT"); ok {
		d, err := parseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid PROVIDER_TIMEOUT: %w", err)
		}
		cfg.ElevenLabs.Timeout = d
	}

	if v, ok := l.lookup("MAX_MESSAGE_SIZE"); ok {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid MAX_MESSAGE_SIZE: %w", err)
		}
		cfg.MaxMessageSize = n
	}

	// Optional: ALLOWED_ORIGINS (comma-separated)
	if v, ok := l.lookup("ALLOWED_ORIGINS"); ok {
		var origins []string
		for _, o := range strings.Split(v, ",") {
			if o = strings.TrimSpace(o); o != "" {
				origins = append(origins, o)
			}
		}
		cfg.AllowedOrigins = origins
	}
	return nil
}

// lookup ignores variables that are set but blank.
func (l Loader) lookup(key string) (string, bool) {
	v, ok := l.Lookup(key)
	if !ok {
		return "", false
	}
	v = strings.TrimSpace(v)
	return v, v != ""
}

func parseDuration(raw string) (time.Duration, error) {
	if secs, err := strconv.Atoi(raw); err == nil {
		return time.Duration(secs) * time.Second, nil
	}
	return time.ParseDuration(raw)
}

// Validate checks ranges. Missing provider credentials are not an error:
// the relay runs degraded and reports failures per message.
func (c *Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", c.Port)
	}
	if c.MaxMessageSize < 1024 {
		return fmt.Errorf("max_message_size must be at least 1024 bytes, got %d", c.MaxMessageSize)
	}
	if c.ElevenLabs.Timeout <= 0 {
		return fmt.Errorf("provider timeout must be positive, got %s", c.ElevenLabs.Timeout)
	}
	if c.ElevenLabs.APIBaseURL == "" {
		return fmt.Errorf("elevenlabs api_base_url cannot be empty")
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log_level must be one of debug, info, warn, error, got %q", c.LogLevel)
	}
	if len(c.AllowedOrigins) == 0 {
		return fmt.Errorf("allowed_origins cannot be empty")
	}
	return nil
}

// Addr returns the listen address for the HTTP server.
func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}
