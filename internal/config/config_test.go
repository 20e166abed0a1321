package config

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func mapLookup(env map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	}
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Loader{Lookup: mapLookup(nil)}.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Port != DefaultPort {
		t.Errorf("Port = %d, want %d", cfg.Port, DefaultPort)
	}
	if cfg.ElevenLabs.APIBaseURL != DefaultAPIBaseURL {
		t.Errorf("APIBaseURL = %q, want %q", cfg.ElevenLabs.APIBaseURL, DefaultAPIBaseURL)
	}
	if cfg.ElevenLabs.Timeout != DefaultProviderTimeout {
		t.Errorf("Timeout = %s, want %s", cfg.ElevenLabs.Timeout, DefaultProviderTimeout)
	}
	if cfg.ElevenLabs.Enabled() {
		t.Error("voice should be disabled without an API key")
	}
	if len(cfg.AllowedOrigins) != 1 || cfg.AllowedOrigins[0] != "*" {
		t.Errorf("AllowedOrigins = %v, want [*]", cfg.AllowedOrigins)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	cfg, err := Loader{Lookup: mapLookup(map[string]string{
		"ELEVENLABS_API_KEY":      "key",
		"ELEVENLABS_AGENT_ID":     "agent",
		"ELEVENLABS_API_BASE_URL": "http://localhost:9999/v1/",
		"PORT":                    "9000",
		"LOG_LEVEL":               "DEBUG",
		"PROVIDER_TIMEOUT":        "5",
		"MAX_MESSAGE_SIZE":        "2048",
		"ALLOWED_ORIGINS":         "http://a.test, http://b.test,",
	})}.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.ElevenLabs.APIKey != "key" || cfg.ElevenLabs.AgentID != "agent" {
		t.Errorf("credentials = %q/%q", cfg.ElevenLabs.APIKey, cfg.ElevenLabs.AgentID)
	}
	if cfg.ElevenLabs.APIBaseURL != "http://localhost:9999/v1" {
		t.Errorf("APIBaseURL = %q", cfg.ElevenLabs.APIBaseURL)
	}
	if cfg.Port != 9000 {
		t.Errorf("Port = %d, want 9000", cfg.Port)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %q, want debug", cfg.LogLevel)
	}
	if cfg.ElevenLabs.Timeout != 5*time.Second {
		t.Errorf("Timeout = %s, want 5s", cfg.ElevenLabs.Timeout)
	}
	if cfg.MaxMessageSize != 2048 {
		t.Errorf("MaxMessageSize = %d, want 2048", cfg.MaxMessageSize)
	}
	if strings.Join(cfg.AllowedOrigins, "|") != "http://a.test|http://b.test" {
		t.Errorf("AllowedOrigins = %v", cfg.AllowedOrigins)
	}
	if cfg.Addr() != ":9000" {
		t.Errorf("Addr() = %q", cfg.Addr())
	}
}

func TestLoadBlankValuesIgnored(t *testing.T) {
	cfg, err := Loader{Lookup: mapLookup(map[string]string{
		"PORT":               "   ",
		"ELEVENLABS_API_KEY": "",
	})}.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Port != DefaultPort {
		t.Errorf("Port = %d, want default", cfg.Port)
	}
	if cfg.ElevenLabs.Enabled() {
		t.Error("blank API key should leave voice disabled")
	}
}

func TestLoadYAMLFile(t *testing.T) {
	file := `
port: 8100
log_level: warn
allowed_origins: ["https://truthlens.test"]
elevenlabs:
  api_base_url: http://provider.test/v1
  timeout: 12s
`
	loader := Loader{
		Lookup: mapLookup(map[string]string{
			"CONFIG_FILE": "relay.yaml",
			"PORT":        "8200",
		}),
		ReadFile: func(path string) ([]byte, error) {
			if path != "relay.yaml" {
				t.Errorf("ReadFile(%q)", path)
			}
			return []byte(file), nil
		},
	}

	cfg, err := loader.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	// environment wins over the file
	if cfg.Port != 8200 {
		t.Errorf("Port = %d, want 8200", cfg.Port)
	}
	if cfg.LogLevel != "warn" {
		t.Errorf("LogLevel = %q, want warn", cfg.LogLevel)
	}
	if cfg.ElevenLabs.APIBaseURL != "http://provider.test/v1" {
		t.Errorf("APIBaseURL = %q", cfg.ElevenLabs.APIBaseURL)
	}
	if cfg.ElevenLabs.Timeout != 12*time.Second {
		t.Errorf("Timeout = %s, want 12s", cfg.ElevenLabs.Timeout)
	}
	if len(cfg.AllowedOrigins) != 1 || cfg.AllowedOrigins[0] != "https://truthlens.test" {
		t.Errorf("AllowedOrigins = %v", cfg.AllowedOrigins)
	}
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		read func(string) ([]byte, error)
	}{
		{name: "bad port", env: map[string]string{"PORT": "http"}},
		{name: "port out of range", env: map[string]string{"PORT": "70000"}},
		{name: "bad timeout", env: map[string]string{"PROVIDER_TIMEOUT": "soon"}},
		{name: "zero timeout", env: map[string]string{"PROVIDER_TIMEOUT": "0"}},
		{name: "bad message size", env: map[string]string{"MAX_MESSAGE_SIZE": "big"}},
		{name: "tiny message size", env: map[string]string{"MAX_MESSAGE_SIZE": "10"}},
		{name: "bad log level", env: map[string]string{"LOG_LEVEL": "chatty"}},
		{name: "empty origins", env: map[string]string{"ALLOWED_ORIGINS": " , "}},
		{
			name: "missing config file",
			env:  map[string]string{"CONFIG_FILE": "nope.yaml"},
			read: func(string) ([]byte, error) { return nil, errors.New("no such file") },
		},
		{
			name: "malformed config file",
			env:  map[string]string{"CONFIG_FILE": "bad.yaml"},
			read: func(string) ([]byte, error) { return []byte("port: [1"), nil },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Loader{Lookup: mapLookup(tt.env), ReadFile: tt.read}.Load()
			if err == nil {
				t.Error("Load() expected error, got nil")
			}
		})
	}
}
