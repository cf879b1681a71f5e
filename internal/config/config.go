package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ConfigPath is the default config file location.
const ConfigPath = "config.yaml"

const (
	defaultPort                     = "5000"
	defaultLogLevel                 = "info"
	defaultProvider                 = "gemini"
	defaultGenerationTimeoutSeconds = 120
	defaultMaxRequestBytes          = 1 << 20
	defaultFailureAlertThreshold    = 10
	defaultFailureAlertWindow       = 300
)

// FileConfig represents configuration loaded from YAML.
type FileConfig struct {
	Port               string `yaml:"port"`
	LogLevel           string `yaml:"logLevel"`
	GenerationProvider string `yaml:"generationProvider"`
	GenerationModel    string `yaml:"generationModel"`
	GenerationBaseURL  string `yaml:"generationBaseURL"`
	// GeminiAPIKey is never validated here; a missing key shows up as
	// an upstream authentication failure on the first request.
	GeminiAPIKey     string `yaml:"geminiAPIKey"`
	GenerationAPIKey string `yaml:"generationAPIKey"`
	// GenerationTimeoutSeconds bounds one upstream call; 0 disables the bound.
	GenerationTimeoutSeconds *int   `yaml:"generationTimeoutSeconds"`
	MaxRequestBytes          int64  `yaml:"maxRequestBytes"`
	RedisAddr                string `yaml:"redisAddr"`
	RedisPassword            string `yaml:"redisPassword"`
	FailureAlertThreshold    int    `yaml:"failureAlertThreshold"`
	FailureAlertWindowSecs   int    `yaml:"failureAlertWindowSeconds"`
}

// Load reads config from path (defaults to config.yaml). A missing file is
// not an error: defaults and environment variables apply.
func Load(path string) (FileConfig, error) {
	cfg := FileConfig{}
	if path == "" {
		path = ConfigPath
	}
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return cfg, fmt.Errorf("read config: %w", err)
	default:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config: %w", err)
		}
	}
	applyEnv(&cfg)
	applyDefaults(&cfg)
	if err := validateConfig(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyEnv(cfg *FileConfig) {
	if v := os.Getenv("PORT"); v != "" {
		cfg.Port = strings.TrimSpace(v)
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("GENERATION_PROVIDER"); v != "" {
		cfg.GenerationProvider = v
	}
	if v := os.Getenv("GENERATION_MODEL"); v != "" {
		cfg.GenerationModel = v
	}
	if v := os.Getenv("GENERATION_BASE_URL"); v != "" {
		cfg.GenerationBaseURL = v
	}
	if v := os.Getenv("GEMINI_API_KEY"); v != "" {
		cfg.GeminiAPIKey = v
	}
	if v := os.Getenv("GENERATION_API_KEY"); v != "" {
		cfg.GenerationAPIKey = v
	}
	if v := os.Getenv("GENERATION_TIMEOUT_SECONDS"); v != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			cfg.GenerationTimeoutSeconds = &n
		}
	}
	if v := os.Getenv("MAX_REQUEST_BYTES"); v != "" {
		if n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64); err == nil {
			cfg.MaxRequestBytes = n
		}
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.RedisAddr = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		cfg.RedisPassword = v
	}
}

func applyDefaults(cfg *FileConfig) {
	if cfg.Port == "" {
		cfg.Port = defaultPort
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = defaultLogLevel
	}
	cfg.GenerationProvider = strings.ToLower(strings.TrimSpace(cfg.GenerationProvider))
	if cfg.GenerationProvider == "" {
		cfg.GenerationProvider = defaultProvider
	}
	if cfg.GenerationTimeoutSeconds == nil {
		n := defaultGenerationTimeoutSeconds
		cfg.GenerationTimeoutSeconds = &n
	}
	if cfg.MaxRequestBytes == 0 {
		cfg.MaxRequestBytes = defaultMaxRequestBytes
	}
	if cfg.FailureAlertThreshold == 0 {
		cfg.FailureAlertThreshold = defaultFailureAlertThreshold
	}
	if cfg.FailureAlertWindowSecs == 0 {
		cfg.FailureAlertWindowSecs = defaultFailureAlertWindow
	}
}

func validateConfig(cfg FileConfig) error {
	if cfg.Port == "" {
		return errors.New("config: port is required")
	}
	if n, err := strconv.Atoi(cfg.Port); err != nil || n <= 0 || n > 65535 {
		return fmt.Errorf("config: invalid port %q", cfg.Port)
	}
	switch cfg.GenerationProvider {
	case "gemini", "ollama":
	case "openai", "openai-compat":
		if strings.TrimSpace(cfg.GenerationBaseURL) == "" {
			return errors.New("config: generationBaseURL is required for openai provider (set in config.yaml or GENERATION_BASE_URL)")
		}
		if strings.TrimSpace(cfg.GenerationModel) == "" {
			return errors.New("config: generationModel is required for openai provider")
		}
	default:
		return fmt.Errorf("config: unknown generationProvider %q", cfg.GenerationProvider)
	}
	if cfg.GenerationProvider == "ollama" && strings.TrimSpace(cfg.GenerationModel) == "" {
		return errors.New("config: generationModel is required for ollama provider")
	}
	if cfg.GenerationTimeoutSeconds != nil && *cfg.GenerationTimeoutSeconds < 0 {
		return errors.New("config: generationTimeoutSeconds must be >= 0")
	}
	if cfg.MaxRequestBytes < 0 {
		return errors.New("config: maxRequestBytes must be >= 0")
	}
	if cfg.FailureAlertThreshold < 0 || cfg.FailureAlertWindowSecs < 0 {
		return errors.New("config: failure alert settings must be >= 0")
	}
	return nil
}

// GenerationTimeout returns the configured upstream timeout; zero means none.
func (c FileConfig) GenerationTimeout() time.Duration {
	if c.GenerationTimeoutSeconds == nil {
		return 0
	}
	return time.Duration(*c.GenerationTimeoutSeconds) * time.Second
}

// FailureAlertWindow returns the failure alert window.
func (c FileConfig) FailureAlertWindow() time.Duration {
	return time.Duration(c.FailureAlertWindowSecs) * time.Second
}

// ProviderAPIKey returns the credential for the selected provider.
func (c FileConfig) ProviderAPIKey() string {
	if c.GenerationProvider == "gemini" {
		return c.GeminiAPIKey
	}
	return c.GenerationAPIKey
}
