package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. WORKBENCH_SERVER_PORT.
const EnvPrefix = "WORKBENCH"

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Executor ExecutorConfig `mapstructure:"executor"`
	Schema   SchemaConfig   `mapstructure:"schema"`
	History  HistoryConfig  `mapstructure:"history"`
	Secrets  SecretsConfig  `mapstructure:"secrets"`
	MCP      MCPConfig      `mapstructure:"mcp"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port" validate:"min=1,max=65535"`
	Mode string `mapstructure:"mode" validate:"oneof=debug release test"`
}

// Addr returns host:port.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

type StorageConfig struct {
	Driver string `mapstructure:"driver" validate:"oneof=sqlite memory"`
	// Path of the SQLite file. Empty means ~/.local/share/sql-workbench/workbench.db.
	Path string `mapstructure:"path"`
}

type ExecutorConfig struct {
	Mode    string        `mapstructure:"mode" validate:"oneof=simulated live"`
	MaxRows int           `mapstructure:"max_rows" validate:"min=0"`
	Timeout time.Duration `mapstructure:"timeout" validate:"min=0"`
}

type SchemaConfig struct {
	Cache      string        `mapstructure:"cache" validate:"oneof=memory redis"`
	TTL        time.Duration `mapstructure:"ttl" validate:"min=0"`
	WatchFiles bool          `mapstructure:"watch_files"`
	Redis      RedisConfig   `mapstructure:"redis"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db" validate:"min=0"`
}

type HistoryConfig struct {
	RetentionDays int    `mapstructure:"retention_days" validate:"min=0"`
	PruneSchedule string `mapstructure:"prune_schedule"`
	AllowClear    bool   `mapstructure:"allow_clear"`
}

type SecretsConfig struct {
	Backend string `mapstructure:"backend" validate:"oneof=record keyring"`
	Service string `mapstructure:"service"`
}

type MCPConfig struct {
	AllowWrites bool `mapstructure:"allow_writes"`
}

type LoggingConfig struct {
	Level string `mapstructure:"level" validate:"oneof=debug info warn error"`
}

// Debug reports whether SQL text should be logged.
func (l LoggingConfig) Debug() bool { return l.Level == "debug" }

// Load reads configuration from defaults, an optional YAML file and WORKBENCH_*
// environment variables, in increasing priority. A .env file in the working
// directory is loaded into the environment first. An empty path searches
// ./configs and . for config.yaml.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("[Config] ignoring .env: %v", err)
	}

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		log.Printf("[Config] no config file found, using defaults and environment")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	if cfg.Storage.Path == "" {
		cfg.Storage.Path = DefaultStoragePath()
	}
	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns the configuration Load produces with no file and no environment.
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	var cfg Config
	_ = v.Unmarshal(&cfg)
	cfg.Storage.Path = DefaultStoragePath()
	return &cfg
}

// DefaultStoragePath is the SQLite file used when storage.path is empty.
func DefaultStoragePath() string {
	homeDir, _ := os.UserHomeDir()
	return filepath.Join(homeDir, ".local", "share", "sql-workbench", "workbench.db")
}

// Validate checks enumerated and ranged settings.
func Validate(cfg *Config) error {
	if err := validator.New().Struct(cfg); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			fe := fieldErrs[0]
			return fmt.Errorf("invalid config: %s=%v fails %q", fe.Namespace(), fe.Value(), fe.Tag())
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	if cfg.Schema.Cache == "redis" && cfg.Schema.Redis.Addr == "" {
		return fmt.Errorf("invalid config: schema.redis.addr is required when schema.cache is redis")
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "127.0.0.1")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "release")

	// Storage defaults
	v.SetDefault("storage.driver", "sqlite")
	v.SetDefault("storage.path", "")

	// Executor defaults
	v.SetDefault("executor.mode", "simulated")
	v.SetDefault("executor.max_rows", 10000)
	v.SetDefault("executor.timeout", "30s")

	// Schema defaults
	v.SetDefault("schema.cache", "memory")
	v.SetDefault("schema.ttl", "10m")
	v.SetDefault("schema.watch_files", true)
	v.SetDefault("schema.redis.addr", "")
	v.SetDefault("schema.redis.password", "")
	v.SetDefault("schema.redis.db", 0)

	// History defaults
	v.SetDefault("history.retention_days", 90)
	v.SetDefault("history.prune_schedule", "@daily")
	v.SetDefault("history.allow_clear", true)

	// Secrets defaults
	v.SetDefault("secrets.backend", "record")
	v.SetDefault("secrets.service", "sql-workbench")

	// MCP defaults
	v.SetDefault("mcp.allow_writes", false)

	// Logging defaults
	v.SetDefault("logging.level", "info")
}
