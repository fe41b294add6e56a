package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Artifact sources.
const (
	SourceFile     = "file"
	SourceDatabase = "database"
)

// Database drivers for the artifact source.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Prediction cache backends.
const (
	CacheNone  = "none"
	CacheLRU   = "lru"
	CacheRedis = "redis"
)

// EnvPrefix prefixes every environment override, e.g. CARDIO_SERVER_ADDRESS.
const EnvPrefix = "CARDIO"

// Config is the complete service configuration.
type Config struct {
	Logger    LoggerConfig    `mapstructure:"logger"`
	Server    ServerConfig    `mapstructure:"server"`
	Artifacts ArtifactsConfig `mapstructure:"artifacts"`
	Cache     CacheConfig     `mapstructure:"cache"`
}

// LoggerConfig defines logging settings. File is optional; when set, logs are
// also written there with rotation.
type LoggerConfig struct {
	Level      string `mapstructure:"level"`
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
}

// ServerConfig holds the listen addresses. An empty GRPCAddress disables the
// gRPC endpoint.
type ServerConfig struct {
	Address         string        `mapstructure:"address"`
	GRPCAddress     string        `mapstructure:"grpc_address"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// ArtifactsConfig says where the fitted scaler and classifier come from.
type ArtifactsConfig struct {
	Source     string         `mapstructure:"source"`
	ScalerPath string         `mapstructure:"scaler_path"`
	ModelPath  string         `mapstructure:"model_path"`
	Database   DatabaseConfig `mapstructure:"database"`
}

// DatabaseConfig locates artifacts stored in a database.
type DatabaseConfig struct {
	Driver     string `mapstructure:"driver"`
	DSN        string `mapstructure:"dsn"`
	ScalerName string `mapstructure:"scaler_name"`
	ModelName  string `mapstructure:"model_name"`
}

// CacheConfig configures the prediction cache.
type CacheConfig struct {
	Type      string        `mapstructure:"type"`
	Size      int           `mapstructure:"size"`
	TTL       time.Duration `mapstructure:"ttl"`
	RedisAddr string        `mapstructure:"redis_addr"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.file", "")
	v.SetDefault("logger.max_size_mb", 100)
	v.SetDefault("logger.max_backups", 5)
	v.SetDefault("logger.max_age_days", 28)

	v.SetDefault("server.address", ":8080")
	v.SetDefault("server.grpc_address", "")
	v.SetDefault("server.shutdown_timeout", 15*time.Second)

	v.SetDefault("artifacts.source", SourceFile)
	v.SetDefault("artifacts.scaler_path", "scaler.json")
	v.SetDefault("artifacts.model_path", "model.json")
	v.SetDefault("artifacts.database.driver", DriverPostgres)
	v.SetDefault("artifacts.database.dsn", "")
	v.SetDefault("artifacts.database.scaler_name", "heart-scaler")
	v.SetDefault("artifacts.database.model_name", "heart-model")

	v.SetDefault("cache.type", CacheLRU)
	v.SetDefault("cache.size", 1024)
	v.SetDefault("cache.ttl", 5*time.Minute)
	v.SetDefault("cache.redis_addr", "redis:6379")
}

// Load reads the YAML file at path, if any, and applies CARDIO_* environment
// overrides on top of the defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

// Validate checks every section and returns the first problem found.
func (c *Config) Validate() error {
	if err := c.Logger.Validate(); err != nil {
		return err
	}
	if err := c.Server.Validate(); err != nil {
		return err
	}
	if err := c.Artifacts.Validate(); err != nil {
		return err
	}
	return c.Cache.Validate()
}

func (l *LoggerConfig) Validate() error {
	valid := map[string]bool{"debug": true, "info": true, "warn": true, "warning": true, "error": true}
	if !valid[strings.ToLower(l.Level)] {
		return fmt.Errorf("logger.level: unsupported level '%s'", l.Level)
	}
	if l.File != "" && l.MaxSizeMB <= 0 {
		return errors.New("logger.max_size_mb: must be positive when logger.file is set")
	}
	return nil
}

func (s *ServerConfig) Validate() error {
	if s.Address == "" {
		return errors.New("server.address: must be specified")
	}
	if s.GRPCAddress != "" && s.GRPCAddress == s.Address {
		return errors.New("server.grpc_address: must differ from server.address")
	}
	if s.ShutdownTimeout <= 0 {
		return errors.New("server.shutdown_timeout: must be positive")
	}
	return nil
}

func (a *ArtifactsConfig) Validate() error {
	switch a.Source {
	case SourceFile:
		if a.ScalerPath == "" || a.ModelPath == "" {
			return errors.New("artifacts: scaler_path and model_path must be specified")
		}
	case SourceDatabase:
		if a.Database.Driver != DriverPostgres && a.Database.Driver != DriverSQLite {
			return fmt.Errorf("artifacts.database.driver: unsupported driver '%s'", a.Database.Driver)
		}
		if a.Database.DSN == "" {
			return errors.New("artifacts.database.dsn: must be specified")
		}
		if a.Database.ScalerName == "" || a.Database.ModelName == "" {
			return errors.New("artifacts.database: scaler_name and model_name must be specified")
		}
	default:
		return fmt.Errorf("artifacts.source: unsupported source '%s'", a.Source)
	}
	return nil
}

func (c *CacheConfig) Validate() error {
	switch c.Type {
	case CacheNone:
		return nil
	case CacheLRU:
		if c.Size <= 0 {
			return errors.New("cache.size: must be positive")
		}
	case CacheRedis:
		if c.RedisAddr == "" {
			return errors.New("cache.redis_addr: must be specified")
		}
	default:
		return fmt.Errorf("cache.type: unsupported type '%s'", c.Type)
	}
	if c.TTL <= 0 {
		return errors.New("cache.ttl: must be positive")
	}
	return nil
}
