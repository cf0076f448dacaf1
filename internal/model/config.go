package model

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// MailmanConfig holds the connection settings for the Mailman REST API.
type MailmanConfig struct {
	// APIURL is the root of the REST API, without the version segment
	// (e.g., http://localhost:8001).
	APIURL string `mapstructure:"api_url" yaml:"api_url"`

	APIUser string `mapstructure:"api_user" yaml:"api_user"`

	// APIPass may be left empty, in which case the password is read from
	// the system keyring.
	APIPass string `mapstructure:"api_pass" yaml:"api_pass"`

	// TimeoutSec bounds every REST call.
	TimeoutSec int `mapstructure:"timeout_sec" yaml:"timeout_sec"`
}

// DatabaseConfig holds local storage settings.
type DatabaseConfig struct {
	Path string `mapstructure:"path" yaml:"path"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	// Level is a logrus level name (debug, info, warn, error).
	Level string `mapstructure:"level" yaml:"level"`

	// Format is "text" or "json".
	Format string `mapstructure:"format" yaml:"format"`

	// File receives log output while the console dashboard owns the
	// terminal. Empty means discard.
	File string `mapstructure:"file" yaml:"file"`
}

// ViewerConfig identifies who is using the dashboard.
type ViewerConfig struct {
	Email     string `mapstructure:"email" yaml:"email"`
	Superuser bool   `mapstructure:"superuser" yaml:"superuser"`
}

// AppConfig is the top-level application configuration.
type AppConfig struct {
	Mailman  MailmanConfig  `mapstructure:"mailman" yaml:"mailman"`
	Database DatabaseConfig `mapstructure:"database" yaml:"database"`
	Log      LogConfig      `mapstructure:"log" yaml:"log"`
	Viewer   ViewerConfig   `mapstructure:"viewer" yaml:"viewer"`
}

// User returns the dashboard viewer described by the configuration.
func (c *AppConfig) User() User {
	return User{Email: c.Viewer.Email, Superuser: c.Viewer.Superuser}
}

// DefaultConfigPath returns the default path for the configuration file,
// located at ~/.config/listadmin/config.yaml.
func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", "config.yaml")
	}
	return filepath.Join(home, ".config", "listadmin", "config.yaml")
}

// DefaultDatabasePath returns the default location of the SQLite file.
func DefaultDatabasePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", "listadmin.db")
	}
	return filepath.Join(home, ".local", "share", "listadmin", "listadmin.db")
}

// defaultAppConfig returns a sensible default configuration.
func defaultAppConfig() *AppConfig {
	return &AppConfig{
		Mailman: MailmanConfig{
			APIURL:     "http://localhost:8001",
			APIUser:    "restadmin",
			TimeoutSec: 30,
		},
		Database: DatabaseConfig{
			Path: DefaultDatabasePath(),
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// LoadConfig reads configuration from the given YAML file path using Viper.
// Environment variables prefixed with LISTADMIN_ override file values
// (e.g., LISTADMIN_MAILMAN_API_PASS). If the file does not exist, the
// defaults plus environment overrides are returned.
func LoadConfig(path string) (*AppConfig, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix("listadmin")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	def := defaultAppConfig()
	v.SetDefault("mailman.api_url", def.Mailman.APIURL)
	v.SetDefault("mailman.api_user", def.Mailman.APIUser)
	v.SetDefault("mailman.api_pass", "")
	v.SetDefault("mailman.timeout_sec", def.Mailman.TimeoutSec)
	v.SetDefault("database.path", def.Database.Path)
	v.SetDefault("log.level", def.Log.Level)
	v.SetDefault("log.format", def.Log.Format)
	v.SetDefault("log.file", "")
	v.SetDefault("viewer.email", "")
	v.SetDefault("viewer.superuser", false)

	if err := v.ReadInConfig(); err != nil {
		_, missingFile := err.(*os.PathError)
		_, notFound := err.(viper.ConfigFileNotFoundError)
		if !missingFile && !notFound {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	}

	cfg := defaultAppConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	if cfg.Mailman.TimeoutSec <= 0 {
		cfg.Mailman.TimeoutSec = def.Mailman.TimeoutSec
	}
	cfg.Mailman.APIURL = strings.TrimRight(cfg.Mailman.APIURL, "/")

	return cfg, nil
}

// SaveConfig writes the given configuration to a YAML file at path,
// creating parent directories if needed. The REST password is never
// written; it belongs in the keyring.
func SaveConfig(path string, cfg *AppConfig) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config directory %s: %w", dir, err)
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	mailman := cfg.Mailman
	mailman.APIPass = ""

	v.Set("mailman", mailman)
	v.Set("database", cfg.Database)
	v.Set("log", cfg.Log)
	v.Set("viewer", cfg.Viewer)

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}

	return nil
}
