// Package config loads the soulcore configuration. Values come from, in
// increasing precedence: built-in defaults, the YAML config file, the soul's
// .env file and the process environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/entrhq/soulcore/pkg/embedding"
	"github.com/entrhq/soulcore/pkg/lang"
	"github.com/entrhq/soulcore/pkg/router"
	"github.com/entrhq/soulcore/pkg/verify"
)

// ErrInvalid is returned when a configuration fails validation.
var ErrInvalid = errors.New("config: invalid configuration")

// FileName is the config file looked up in the soul directory.
const FileName = "soulcore.yaml"

// StateFile is the default SQLite state file inside the soul directory.
const StateFile = ".soul-state.db"

// Config is the full soulcore configuration.
type Config struct {
	SoulPath  string          `yaml:"soul_path" json:"soul_path" validate:"required"`
	Language  string          `yaml:"language" json:"language" validate:"oneof=de en"`
	Embedding EmbeddingConfig `yaml:"embedding" json:"embedding"`
	Verifier  VerifierConfig  `yaml:"verifier" json:"verifier"`
	Router    RouterConfig    `yaml:"router" json:"router"`
	State     StateConfig     `yaml:"state" json:"state"`
	Server    ServerConfig    `yaml:"server" json:"server"`
	Logging   LoggingConfig   `yaml:"logging" json:"logging"`
}

// EmbeddingConfig selects and configures the embedding backend.
type EmbeddingConfig struct {
	OpenAIAPIKey      string        `yaml:"openai_api_key" json:"-"`
	OpenAIBaseURL     string        `yaml:"openai_base_url" json:"openai_base_url"`
	OpenAIModel       string        `yaml:"openai_model" json:"openai_model"`
	GeminiAPIKey      string        `yaml:"gemini_api_key" json:"-"`
	GeminiModel       string        `yaml:"gemini_model" json:"gemini_model"`
	OfflineDimensions int           `yaml:"offline_dimensions" json:"offline_dimensions" validate:"gt=0"`
	RequestTimeout    time.Duration `yaml:"request_timeout" json:"request_timeout" validate:"gte=0"`
}

// VerifierConfig configures claim verification.
type VerifierConfig struct {
	Enabled     bool          `yaml:"enabled" json:"enabled"`
	Budget      time.Duration `yaml:"budget" json:"budget" validate:"gt=0"`
	TagLimit    int           `yaml:"tag_limit" json:"tag_limit" validate:"gt=0"`
	EntityLimit int           `yaml:"entity_limit" json:"entity_limit" validate:"gt=0"`
}

// RouterConfig configures knowledge routing.
type RouterConfig struct {
	InterestThrottle time.Duration    `yaml:"interest_throttle" json:"interest_throttle" validate:"gte=0"`
	PersonalThrottle time.Duration    `yaml:"personal_throttle" json:"personal_throttle" validate:"gte=0"`
	DailyPersonalCap int              `yaml:"daily_personal_cap" json:"daily_personal_cap" validate:"gte=0"`
	MaxFactLength    int              `yaml:"max_fact_length" json:"max_fact_length" validate:"gt=0"`
	RouteLogCapacity int              `yaml:"route_log_capacity" json:"route_log_capacity" validate:"gt=0"`
	DedupPrefix      int              `yaml:"dedup_prefix" json:"dedup_prefix" validate:"gt=0"`
	Clusters         []router.Cluster `yaml:"clusters" json:"clusters,omitempty" validate:"dive"`
}

// State backends.
const (
	BackendMemory = "memory"
	BackendSQLite = "sqlite"
)

// StateConfig selects where throttle and quota state is kept.
type StateConfig struct {
	Backend string `yaml:"backend" json:"backend" validate:"oneof=memory sqlite"`
	Path    string `yaml:"path" json:"path"`
}

// ServerConfig configures the HTTP surface.
type ServerConfig struct {
	Addr           string   `yaml:"addr" json:"addr" validate:"required,hostname_port"`
	AllowedOrigins []string `yaml:"allowed_origins" json:"allowed_origins"`
}

// LoggingConfig configures the session logger.
type LoggingConfig struct {
	Dir   string `yaml:"dir" json:"dir"`
	Level string `yaml:"level" json:"level" validate:"oneof=debug info warn error"`
}

// Default returns the built-in configuration. SoulPath is left empty.
func Default() *Config {
	emb := embedding.DefaultConfig()
	return &Config{
		Language: string(lang.Default),
		Embedding: EmbeddingConfig{
			OpenAIModel:       emb.OpenAIModel,
			GeminiModel:       emb.GeminiModel,
			OfflineDimensions: emb.OfflineDimensions,
			RequestTimeout:    emb.RequestTimeout,
		},
		Verifier: VerifierConfig{
			Enabled:     true,
			Budget:      verify.DefaultBudget,
			TagLimit:    verify.DefaultTagLimit,
			EntityLimit: verify.DefaultEntityLimit,
		},
		Router: RouterConfig{
			InterestThrottle: router.DefaultInterestThrottle,
			PersonalThrottle: router.DefaultPersonalThrottle,
			DailyPersonalCap: router.DefaultDailyCap,
			MaxFactLength:    router.DefaultMaxFactLength,
			RouteLogCapacity: router.DefaultRouteLogCapacity,
			DedupPrefix:      router.DefaultDedupPrefix,
		},
		State: StateConfig{
			Backend: BackendMemory,
		},
		Server: ServerConfig{
			Addr:           "127.0.0.1:7717",
			AllowedOrigins: []string{"tauri://localhost", "http://localhost:1420"},
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// LoadOptions controls where Load looks for configuration.
type LoadOptions struct {
	// ConfigFile is an explicit YAML file. When empty, FileName inside the
	// soul directory is used if it exists.
	ConfigFile string
	// SoulPath overrides every other source of the soul directory.
	SoulPath string
	// Environ replaces os.Environ, mainly for tests.
	Environ []string
	// SoulOptional allows loading without a soul directory, for commands
	// that only embed text.
	SoulOptional bool
}

// Load builds and validates the configuration.
func Load(opts LoadOptions) (*Config, error) {
	env := opts.Environ
	if env == nil {
		env = os.Environ()
	}
	procEnv := environMap(env)

	cfg := Default()

	soul := opts.SoulPath
	if soul == "" {
		soul = procEnv["SOUL_PATH"]
	}

	file := opts.ConfigFile
	if file == "" && soul != "" {
		candidate := filepath.Join(soul, FileName)
		if _, err := os.Stat(candidate); err == nil {
			file = candidate
		}
	}
	if file != "" {
		if err := loadFile(file, cfg); err != nil {
			return nil, err
		}
	}

	if soul != "" {
		cfg.SoulPath = soul
	}

	if cfg.SoulPath != "" {
		dotenv, err := ReadDotEnv(filepath.Join(cfg.SoulPath, ".env"))
		if err != nil {
			return nil, err
		}
		if err := cfg.applyEnv(dotenv); err != nil {
			return nil, err
		}
	}
	if err := cfg.applyEnv(procEnv); err != nil {
		return nil, err
	}
	if opts.SoulPath != "" {
		cfg.SoulPath = opts.SoulPath
	}

	if cfg.State.Path == "" && cfg.SoulPath != "" {
		cfg.State.Path = filepath.Join(cfg.SoulPath, StateFile)
	}

	if opts.SoulOptional && cfg.SoulPath == "" {
		if err := validate.StructExcept(cfg, "SoulPath"); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
		}
		return cfg, nil
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadFile reads a YAML config file over cfg.
func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks the configuration.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if c.State.Backend == BackendSQLite && c.State.Path == "" {
		return fmt.Errorf("%w: state.path is required for the sqlite backend", ErrInvalid)
	}
	return nil
}

// Lang returns the configured language.
func (c *Config) Lang() lang.Language {
	l, err := lang.Parse(c.Language)
	if err != nil {
		return lang.Default
	}
	return l
}

// EmbeddingSettings converts the embedding section for embedding.NewProvider.
func (c *Config) EmbeddingSettings() embedding.Config {
	return embedding.Config{
		OpenAIAPIKey:      c.Embedding.OpenAIAPIKey,
		OpenAIBaseURL:     c.Embedding.OpenAIBaseURL,
		OpenAIModel:       c.Embedding.OpenAIModel,
		GeminiAPIKey:      c.Embedding.GeminiAPIKey,
		GeminiModel:       c.Embedding.GeminiModel,
		OfflineDimensions: c.Embedding.OfflineDimensions,
		RequestTimeout:    c.Embedding.RequestTimeout,
	}
}
