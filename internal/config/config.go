package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"library-lending/library"
)

// Config is the full runtime configuration.
type Config struct {
	Database DatabaseConfig `mapstructure:"database"`
	Logger   LoggerConfig   `mapstructure:"logger"`
}

// DatabaseConfig tunes the SQLite store.
type DatabaseConfig struct {
	Path         string        `mapstructure:"path"`
	BusyTimeout  time.Duration `mapstructure:"busy_timeout"`
	TxTimeout    time.Duration `mapstructure:"tx_timeout"`
	MaxRetries   int           `mapstructure:"max_retries"`
	RetryBackoff time.Duration `mapstructure:"retry_backoff"`
}

// LoggerConfig selects level, format ("console" or "json") and destination.
type LoggerConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	OutputPath string `mapstructure:"output_path"`
}

// StoreConfig converts the database section into the store's settings.
func (c DatabaseConfig) StoreConfig() library.StoreConfig {
	return library.StoreConfig{
		Path:         c.Path,
		BusyTimeout:  c.BusyTimeout,
		TxTimeout:    c.TxTimeout,
		MaxRetries:   c.MaxRetries,
		RetryBackoff: c.RetryBackoff,
	}
}

// Load reads configuration from an optional config file, a .env file and
// LENDING_* environment variables, in increasing order of precedence. An
// empty configFile searches config.yaml in ./configs and the working directory.
func Load(configFile string) (*Config, error) {
	// A missing .env is normal outside development.
	_ = godotenv.Load()

	v := viper.New()
	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("LENDING")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if strings.TrimSpace(c.Database.Path) == "" {
		return errors.New("database.path must not be empty")
	}
	if c.Database.MaxRetries < 0 {
		return errors.New("database.max_retries must not be negative")
	}
	switch strings.ToLower(c.Logger.Format) {
	case "console", "json":
	default:
		return fmt.Errorf("logger.format must be console or json, got %q", c.Logger.Format)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	// Database defaults
	v.SetDefault("database.path", "data/library.db")
	v.SetDefault("database.busy_timeout", 5*time.Second)
	v.SetDefault("database.tx_timeout", 10*time.Second)
	v.SetDefault("database.max_retries", 3)
	v.SetDefault("database.retry_backoff", 20*time.Millisecond)

	// Logger defaults
	v.SetDefault("logger.level", "warn")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.output_path", "stderr")
}
