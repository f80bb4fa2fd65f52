// Package config loads the admin server configuration from YAML.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the admin server configuration. Durations are YAML strings such as "10s".
type Config struct {
	HTTP      HTTPConfig      `yaml:"http"`
	Database  DatabaseConfig  `yaml:"database"`
	Cache     CacheConfig     `yaml:"cache"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Auth      AuthConfig      `yaml:"auth"`
	Index     IndexConfig     `yaml:"index"`
	Logging   LoggingConfig   `yaml:"logging"`
}

type HTTPConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

type DatabaseConfig struct {
	URI              string        `yaml:"uri"`
	Name             string        `yaml:"name"`
	AppName          string        `yaml:"app_name"`
	ConnectTimeout   time.Duration `yaml:"connect_timeout"`
	ReadinessTimeout time.Duration `yaml:"readiness_timeout"`
}

// CacheConfig points at the optional Redis used for embeddings and budget counters.
type CacheConfig struct {
	Addrs     []string `yaml:"addrs"`
	Password  string   `yaml:"password"`
	KeyPrefix string   `yaml:"key_prefix"`
}

// Enabled reports whether a cache is configured.
func (c CacheConfig) Enabled() bool { return len(c.Addrs) > 0 }

type IndexConfig struct {
	FailFast    bool `yaml:"fail_fast"`
	Concurrency int  `yaml:"concurrency"`
	// SkipSearch disables Atlas search index administration, for plain mongod deployments.
	SkipSearch bool `yaml:"skip_search"`
}

type EmbeddingConfig struct {
	Provider         string                    `yaml:"provider"` // key into Providers; empty disables embedding
	Model            string                    `yaml:"model"`
	Dimensions       int                       `yaml:"dimensions"`
	QueryInstruction string                    `yaml:"query_instruction"`
	CacheTTL         time.Duration             `yaml:"cache_ttl"`
	Providers        map[string]ProviderConfig `yaml:"providers"`
}

// Enabled reports whether an embedding provider is selected.
func (c EmbeddingConfig) Enabled() bool { return c.Provider != "" }

type ProviderConfig struct {
	APIKey  string       `yaml:"api_key"`
	BaseURL string       `yaml:"base_url"`
	Budget  BudgetConfig `yaml:"budget"`
}

// BudgetConfig caps provider token spend. Zero limits are unlimited.
type BudgetConfig struct {
	DailyTokenLimit   int64  `yaml:"daily_token_limit"`
	MonthlyTokenLimit int64  `yaml:"monthly_token_limit"`
	Action            string `yaml:"action"` // warn (default) or reject
}

type AuthConfig struct {
	APIKeys []string `yaml:"api_keys"`
}

type LoggingConfig struct {
	Level string `yaml:"level"` // overrides the environment default when set
}

// Load finds <env>.yaml in the config search path and parses it.
func Load(env string) (Config, error) {
	path, err := locate(env + ".yaml")
	if err != nil {
		return Config{}, err
	}
	return LoadFile(path)
}

// LoadFile parses the YAML file at path.
func LoadFile(path string) (Config, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Parse interpolates environment references, decodes YAML, applies defaults and validates.
func Parse(data []byte) (Config, error) {
	data, err := interpolate(data, os.LookupEnv)
	if err != nil {
		return Config{}, err
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// GetEnv returns MONGOMAP_ENV, then ENV, then "local".
func GetEnv() string {
	for _, k := range []string{"MONGOMAP_ENV", "ENV"} {
		if v := os.Getenv(k); v != "" {
			return v
		}
	}
	return "local"
}

// ApplyDefaults fills unset fields.
func (c *Config) ApplyDefaults() {
	setDefault(&c.HTTP.ReadTimeout, 10*time.Second)
	setDefault(&c.HTTP.WriteTimeout, 10*time.Second)
	setDefault(&c.HTTP.ShutdownTimeout, 10*time.Second)
	setDefault(&c.Database.ConnectTimeout, 10*time.Second)
	setDefault(&c.Database.ReadinessTimeout, 10*time.Second)
	setDefault(&c.Embedding.CacheTTL, 24*time.Hour)
	setDefault(&c.Index.Concurrency, 4)
	if c.Database.AppName == "" {
		c.Database.AppName = "mongomap"
	}
	if c.Cache.KeyPrefix == "" {
		c.Cache.KeyPrefix = "mongomap:"
	}
}

func setDefault[T time.Duration | int](field *T, v T) {
	if *field <= 0 {
		*field = v
	}
}

// Validate reports every problem at once.
func (c *Config) Validate() error {
	var errs []error
	if c.HTTP.Port < 1 || c.HTTP.Port > 65535 {
		errs = append(errs, fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port))
	}
	if c.Database.URI == "" {
		errs = append(errs, errors.New("database.uri is required"))
	}
	if c.Database.Name == "" {
		errs = append(errs, errors.New("database.name is required"))
	}
	if c.Embedding.Enabled() {
		if _, ok := c.Embedding.Providers[c.Embedding.Provider]; !ok {
			errs = append(errs, fmt.Errorf("embedding.provider %q has no entry in embedding.providers", c.Embedding.Provider))
		}
		if c.Embedding.Model == "" {
			errs = append(errs, errors.New("embedding.model is required when embedding.provider is set"))
		}
		if c.Embedding.Dimensions < 0 {
			errs = append(errs, fmt.Errorf("embedding.dimensions must not be negative, got %d", c.Embedding.Dimensions))
		}
	}
	for name, p := range c.Embedding.Providers {
		if a := p.Budget.Action; a != "" && a != "warn" && a != "reject" {
			errs = append(errs, fmt.Errorf(`embedding.providers.%s.budget.action must be "warn" or "reject", got %q`, name, a))
		}
		if p.Budget.DailyTokenLimit < 0 || p.Budget.MonthlyTokenLimit < 0 {
			errs = append(errs, fmt.Errorf("embedding.providers.%s.budget limits must not be negative", name))
		}
	}
	return errors.Join(errs...)
}

// locate searches $MONGOMAP_CONFIG_DIR, ./config and /etc/mongomap for name.
func locate(name string) (string, error) {
	dirs := []string{"config", "/etc/mongomap"}
	if d := os.Getenv("MONGOMAP_CONFIG_DIR"); d != "" {
		dirs = append([]string{d}, dirs...)
	}
	for _, d := range dirs {
		p := filepath.Join(d, name)
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}
	return "", fmt.Errorf("config %s not found in %v", name, dirs)
}
