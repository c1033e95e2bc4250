package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	toml "github.com/pelletier/go-toml/v2"
	yaml "gopkg.in/yaml.v2"
)

// Config file constants (searched in this order)
var (
	// SupportedConfigFiles lists all supported chatwidget config file names
	SupportedConfigFiles = []string{
		"chatwidget.yaml",
		"chatwidget.yml",
		"chatwidget.toml",
		"chatwidget.json",
	}
)

const (
	DefaultServerURL    = "http://127.0.0.1:5000"
	DefaultEndpointPath = "/chat"
	DefaultMaxRetries   = 10
	MaxRetriesLimit     = 30
	DefaultPlaceholder  = "Type a message..."
	DefaultErrorMessage = "Sorry, there was an error processing your message."
)

// ErrNoConfigFile is returned by FindConfigFile when the directory has none.
var ErrNoConfigFile = errors.New("no chatwidget config file (yaml/toml/json) found")

// Default returns the built-in configuration.
func Default() *ChatWidgetConfig {
	return &ChatWidgetConfig{
		ServerURL:    DefaultServerURL,
		EndpointPath: DefaultEndpointPath,
		MaxRetries:   DefaultMaxRetries,
		BaseDelay:    Duration(time.Second),
		ErrorMessage: DefaultErrorMessage,
		Placeholder:  DefaultPlaceholder,
	}
}

// LoadConfigFile parses a config file over the defaults, choosing the decoder
// by extension. Keys missing from the file keep their default values.
func LoadConfigFile(filePath string) (*ChatWidgetConfig, error) {
	cfg := Default()
	if err := decodeFile(filePath, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func decodeFile(filePath string, cfg *ChatWidgetConfig) error {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", filePath, err)
	}

	fileExt := strings.ToLower(filepath.Ext(filePath))
	switch fileExt {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return fmt.Errorf("failed to parse YAML config file %s: %w", filePath, err)
		}
	case ".toml":
		if err := toml.Unmarshal(data, cfg); err != nil {
			return fmt.Errorf("failed to parse TOML config file %s: %w", filePath, err)
		}
	case ".json":
		if err := json.Unmarshal(data, cfg); err != nil {
			return fmt.Errorf("failed to parse JSON config file %s: %w", filePath, err)
		}
	default:
		return fmt.Errorf("unsupported config file extension: %s", fileExt)
	}
	return nil
}

// FindConfigFile searches for chatwidget config files (yaml/toml/json) in the specified directory
func FindConfigFile(searchPath string) (string, error) {
	if searchPath == "" {
		return "", fmt.Errorf("search path is required")
	}

	for _, configFile := range SupportedConfigFiles {
		fullPath := filepath.Join(searchPath, configFile)
		if _, err := os.Stat(fullPath); err == nil {
			return fullPath, nil
		}
	}
	return "", fmt.Errorf("%w in %s", ErrNoConfigFile, searchPath)
}

// IsConfigFile checks if the given file path is a chatwidget config file
func IsConfigFile(filePath string) bool {
	baseName := filepath.Base(filePath)

	for _, configFile := range SupportedConfigFiles {
		if baseName == configFile {
			return true
		}
	}
	return false
}

// Resolve builds the effective configuration for dir: defaults, then the
// config file (explicitPath, or the first supported file in dir), then
// dir/.env, then CW_* environment variables. The returned path is the file
// that was read, or "" when none was found.
func Resolve(dir, explicitPath string) (*ChatWidgetConfig, string, error) {
	cfg := Default()

	path := explicitPath
	if path == "" {
		found, err := FindConfigFile(dir)
		if err != nil && !errors.Is(err, ErrNoConfigFile) {
			return nil, "", err
		}
		path = found
	}
	if path != "" {
		if err := decodeFile(path, cfg); err != nil {
			return nil, "", err
		}
	}

	environ, err := mergedEnvironment(filepath.Join(dir, ".env"))
	if err != nil {
		return nil, "", err
	}
	if err := env.ParseWithOptions(cfg, env.Options{Environment: environ}); err != nil {
		return nil, "", fmt.Errorf("failed to read environment overrides: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

// mergedEnvironment returns the process environment with dotenvPath's entries
// filling keys the process does not set. The file is re-read on every call and
// never written into the process environment, so edits show up on reload.
func mergedEnvironment(dotenvPath string) (map[string]string, error) {
	environ := make(map[string]string)
	for _, kv := range os.Environ() {
		if k, v, ok := strings.Cut(kv, "="); ok {
			environ[k] = v
		}
	}

	fromFile, err := godotenv.Read(dotenvPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return environ, nil
		}
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}
	for k, v := range fromFile {
		if _, set := environ[k]; !set {
			environ[k] = v
		}
	}
	return environ, nil
}

// Validate checks the invariants the send pipeline depends on.
func (c *ChatWidgetConfig) Validate() error {
	u, err := url.Parse(strings.TrimSpace(c.ServerURL))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("server_url must be an absolute http(s) URL, got %q", c.ServerURL)
	}
	if c.MaxRetries < 0 || c.MaxRetries > MaxRetriesLimit {
		return fmt.Errorf("max_retries must be between 0 and %d, got %d", MaxRetriesLimit, c.MaxRetries)
	}
	if c.BaseDelay <= 0 {
		return fmt.Errorf("base_delay must be > 0, got %s", c.BaseDelay)
	}
	if c.RequestTimeout < 0 {
		return fmt.Errorf("request_timeout must be >= 0, got %s", c.RequestTimeout)
	}
	return nil
}

// EndpointURL joins ServerURL and EndpointPath with exactly one slash.
func (c *ChatWidgetConfig) EndpointURL() string {
	base := strings.TrimRight(strings.TrimSpace(c.ServerURL), "/")
	path := strings.TrimSpace(c.EndpointPath)
	if path == "" {
		path = DefaultEndpointPath
	}
	return base + "/" + strings.TrimLeft(path, "/")
}

// SaveConfig writes cfg as YAML, creating the parent directory if needed.
func SaveConfig(cfg *ChatWidgetConfig, configPath string) error {
	if configPath == "" {
		configPath = "chatwidget.yaml"
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if dir := filepath.Dir(configPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}
