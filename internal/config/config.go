package config

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/Veraticus/nuam/internal/common"
	"github.com/Veraticus/nuam/internal/storage"
)

// Config is the typed application configuration.
type Config struct {
	Database DatabaseConfig
	Uploads  UploadsConfig
	Logging  LoggingConfig
	Server   ServerConfig
}

// DatabaseConfig selects the storage backend.
type DatabaseConfig struct {
	Driver string
	Path   string
	URL    string
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	ListenAddr  string
	MaxUploadMB int64
}

// UploadsConfig says where uploaded files are kept.
type UploadsConfig struct {
	Dir string
}

// LoggingConfig configures the default logger.
type LoggingConfig struct {
	Level  string
	Format string
}

// SetDefaults registers the default value of every key on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("database.driver", storage.DriverSQLite)
	v.SetDefault("database.path", "~/.local/share/nuam/nuam.db")
	v.SetDefault("server.listen_addr", ":8080")
	v.SetDefault("server.max_upload_mb", 20)
	v.SetDefault("uploads.dir", "~/.local/share/nuam/uploads")
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
}

// LoadDotEnv loads variables from a .env file into the environment without
// overriding what is already set. A missing file is not an error.
func LoadDotEnv(path string) error {
	if path == "" {
		path = ".env"
	}
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

// Load reads the configuration from the global viper instance.
func Load() (*Config, error) {
	return LoadFrom(viper.GetViper())
}

// LoadFrom reads and validates the configuration held by v. Paths are
// expanded.
func LoadFrom(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		Database: DatabaseConfig{
			Driver: v.GetString("database.driver"),
			Path:   ExpandPath(v.GetString("database.path")),
			URL:    v.GetString("database.url"),
		},
		Server: ServerConfig{
			ListenAddr:  v.GetString("server.listen_addr"),
			MaxUploadMB: v.GetInt64("server.max_upload_mb"),
		},
		Uploads: UploadsConfig{
			Dir: ExpandPath(v.GetString("uploads.dir")),
		},
		Logging: LoggingConfig{
			Level:  v.GetString("logging.level"),
			Format: v.GetString("logging.format"),
		},
	}
	if cfg.Uploads.Dir != "" {
		cfg.Uploads.Dir = filepath.Clean(cfg.Uploads.Dir)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects unknown drivers, missing DSNs and bad limits.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case storage.DriverSQLite:
		if c.Database.Path == "" {
			return fmt.Errorf("%w: database.path is required for sqlite", common.ErrMissingConfig)
		}
	case storage.DriverPostgres:
		if c.Database.URL == "" {
			return fmt.Errorf("%w: database.url is required for postgres", common.ErrMissingConfig)
		}
	default:
		return fmt.Errorf("%w: unknown database driver %q", common.ErrInvalidConfig, c.Database.Driver)
	}

	if c.Uploads.Dir == "" {
		return fmt.Errorf("%w: uploads.dir is required", common.ErrMissingConfig)
	}
	if c.Server.MaxUploadMB <= 0 {
		return fmt.Errorf("%w: server.max_upload_mb must be positive", common.ErrInvalidConfig)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("%w: invalid log level %q", common.ErrInvalidConfig, c.Logging.Level)
	}
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("%w: invalid log format %q", common.ErrInvalidConfig, c.Logging.Format)
	}
	return nil
}

// DSN returns the data source for the configured driver.
func (c *Config) DSN() string {
	if c.Database.Driver == storage.DriverPostgres {
		return c.Database.URL
	}
	return c.Database.Path
}
