package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	EnvConfigPath   = "CONFIG_PATH"
	EnvDBConnection = "DB_CONNECTION"
	EnvJWTSecret    = "JWT_SECRET"
	EnvJWTExpiry    = "JWT_EXPIRY"
	EnvCSRFSecret   = "CSRF_SECRET"
)

// AppConfig holds resolved application configuration values.
type AppConfig struct {
	ConfigPath string
}

// LoadFromEnv loads app config from environment variables.
func LoadFromEnv() (AppConfig, error) {
	return AppConfig{ConfigPath: ResolveConfigPath(os.Getenv(EnvConfigPath))}, nil
}

// ResolveConfigPath normalizes the config path and applies defaults.
func ResolveConfigPath(p string) string {
	trimmed := strings.TrimSpace(p)
	if trimmed == "" {
		trimmed = "./config.yaml"
	}
	if abs, err := filepath.Abs(trimmed); err == nil {
		return abs
	}
	return trimmed
}

// ErrMissingDatabaseDSN indicates no database DSN is present in the config file.
var ErrMissingDatabaseDSN = errors.New("missing database dsn (set `database-dsn` or `database.dsn` in config file)")

// JWTConfig holds JWT secret and expiry settings.
type JWTConfig struct {
	Secret string        `yaml:"secret"`
	Expiry time.Duration `yaml:"expiry"`
}

// LoadDatabaseDSN reads the database DSN from the YAML config file.
func LoadDatabaseDSN(configPath string) (string, error) {
	if dsn := strings.TrimSpace(os.Getenv(EnvDBConnection)); dsn != "" {
		return dsn, nil
	}

	// fileConfig maps the YAML fields needed for DSN resolution.
	type fileConfig struct {
		DatabaseDSN string `yaml:"database-dsn"`
		Database    struct {
			DSN string `yaml:"dsn"`
		} `yaml:"database"`
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return "", fmt.Errorf("read config file: %w", err)
	}

	var cfg fileConfig
	if errUnmarshal := yaml.Unmarshal(data, &cfg); errUnmarshal != nil {
		return "", fmt.Errorf("parse config file: %w", errUnmarshal)
	}

	if dsn := strings.TrimSpace(cfg.DatabaseDSN); dsn != "" {
		return dsn, nil
	}
	if dsn := strings.TrimSpace(cfg.Database.DSN); dsn != "" {
		return dsn, nil
	}
	return "", ErrMissingDatabaseDSN
}

// defaultJWTExpiry is used when the config omits or invalidates JWT expiry.
const defaultJWTExpiry = 24 * time.Hour

// LoadJWTConfig loads JWT settings from the YAML config file.
func LoadJWTConfig(configPath string) (JWTConfig, error) {
	// fileConfig maps the YAML fields needed for JWT settings.
	type fileConfig struct {
		JWT JWTConfig `yaml:"jwt"`
	}

	result := JWTConfig{Expiry: defaultJWTExpiry}

	data, errRead := os.ReadFile(configPath)
	if errRead == nil {
		var cfg fileConfig
		if errUnmarshal := yaml.Unmarshal(data, &cfg); errUnmarshal == nil {
			result = cfg.JWT
		}
	}

	if secret := strings.TrimSpace(os.Getenv(EnvJWTSecret)); secret != "" {
		result.Secret = secret
	}
	if expiryRaw := strings.TrimSpace(os.Getenv(EnvJWTExpiry)); expiryRaw != "" {
		if expiry, errParse := time.ParseDuration(expiryRaw); errParse == nil && expiry > 0 {
			result.Expiry = expiry
		}
	}

	if result.Expiry <= 0 {
		result.Expiry = defaultJWTExpiry
	}
	return result, nil
}

// PolicyEntry describes one quota policy row in the config file.
type PolicyEntry struct {
	RouteClass  string        `yaml:"route-class"`
	Tier        string        `yaml:"tier"`
	Window      time.Duration `yaml:"window"`
	MaxRequests int           `yaml:"max-requests"`
	Message     string        `yaml:"message"`
}

// OverrideEntry describes a per-exact-path quota override.
type OverrideEntry struct {
	Path        string        `yaml:"path"`
	Window      time.Duration `yaml:"window"`
	MaxRequests int           `yaml:"max-requests"`
	Message     string        `yaml:"message"`
}

// AdmissionConfig holds the admission pipeline configuration surface.
type AdmissionConfig struct {
	CSRFSecret      string          `yaml:"csrf-secret"`
	CounterMaxKeys  int             `yaml:"counter-max-keys"`
	CounterIdleTTL  time.Duration   `yaml:"counter-idle-ttl"`
	ExemptPaths     []string        `yaml:"exempt-paths"`
	CSRFExemptPaths []string        `yaml:"csrf-exempt-paths"`
	AIPaths         []string        `yaml:"ai-paths"`
	Policies        []PolicyEntry   `yaml:"policies"`
	AIPolicies      []PolicyEntry   `yaml:"ai-policies"`
	Overrides       []OverrideEntry `yaml:"overrides"`
}

const (
	// defaultCounterMaxKeys bounds distinct keys held by the in-memory counter store.
	defaultCounterMaxKeys = 100000
	// defaultCounterIdleTTL must outlast the largest configured window so idle
	// counters expire without cutting a live window short.
	defaultCounterIdleTTL = 2 * time.Hour
)

// LoadAdmissionConfig loads admission settings from the YAML config file.
// A missing file yields the built-in defaults.
func LoadAdmissionConfig(configPath string) (AdmissionConfig, error) {
	// fileConfig maps the YAML fields needed for admission settings.
	type fileConfig struct {
		Admission AdmissionConfig `yaml:"admission"`
	}

	var result AdmissionConfig

	data, errRead := os.ReadFile(configPath)
	if errRead == nil {
		var cfg fileConfig
		if errUnmarshal := yaml.Unmarshal(data, &cfg); errUnmarshal != nil {
			return AdmissionConfig{}, fmt.Errorf("parse config file: %w", errUnmarshal)
		}
		result = cfg.Admission
	}

	if secret := strings.TrimSpace(os.Getenv(EnvCSRFSecret)); secret != "" {
		result.CSRFSecret = secret
	}
	if result.CounterMaxKeys <= 0 {
		result.CounterMaxKeys = defaultCounterMaxKeys
	}
	if result.CounterIdleTTL <= 0 {
		result.CounterIdleTTL = defaultCounterIdleTTL
	}
	return result, nil
}
