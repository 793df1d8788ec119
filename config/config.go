// Package config implements centralized configuration loading for the
// emberweb daemon: YAML file, environment variable, and default-value
// sources merged by viper, following the teacher's 12-Factor-style
// precedence (env overrides file overrides defaults).
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the root configuration structure for cmd/emberwebd.
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Limits  LimitsConfig  `mapstructure:"limits"`
	Storage StorageConfig `mapstructure:"storage"`
	Auth    AuthConfig    `mapstructure:"auth"`
	Admin   AdminConfig   `mapstructure:"admin"`
}

// ServerConfig encapsulates listener and connection lifecycle settings.
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	RequestDeadline time.Duration `mapstructure:"request_deadline"`
}

// LimitsConfig bounds the request parser (spec.md §4.E).
type LimitsConfig struct {
	MaxContentLength int64 `mapstructure:"max_content_length"`
	MaxHeaderLine    int   `mapstructure:"max_header_line"`
	MaxHeaderCount   int   `mapstructure:"max_header_count"`
}

// StorageConfig points at the document root and the combined auth/route
// directive file (spec.md §6).
type StorageConfig struct {
	DocRoot  string `mapstructure:"doc_root"`
	AuthFile string `mapstructure:"auth_file"`
	ReadOnly bool   `mapstructure:"read_only"`
}

// AuthConfig enables the optional auth protocols and, when Postgres is set,
// the supplemented Postgres-backed AuthStore (SPEC_FULL.md §10) instead of
// the default file store.
type AuthConfig struct {
	BasicRealm     string        `mapstructure:"basic_realm"`
	DigestRealm    string        `mapstructure:"digest_realm"`
	FormLoginPage  string        `mapstructure:"form_login_page"`
	BearerSecret   string        `mapstructure:"bearer_secret"`
	BearerIssuer   string        `mapstructure:"bearer_issuer"`
	BearerLifetime time.Duration `mapstructure:"bearer_lifetime"`
	PostgresDSN    string        `mapstructure:"postgres_dsn"`
}

// AdminConfig configures the supplemented read-only admin API.
type AdminConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Addr    string `mapstructure:"addr"`
}

// Load reads configuration from (in ascending precedence) built-in
// defaults, a YAML file at path (if non-empty and present), and
// EMBERWEB_-prefixed environment variables.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("EMBERWEB")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok && !errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("config: reading %s: %w", path, err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshaling: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.idle_timeout", 90*time.Second)
	v.SetDefault("server.request_deadline", 30*time.Second)

	v.SetDefault("limits.max_content_length", int64(1<<20))
	v.SetDefault("limits.max_header_line", 8<<10)
	v.SetDefault("limits.max_header_count", 100)

	v.SetDefault("storage.doc_root", "./www")
	v.SetDefault("storage.auth_file", "./emberweb.conf")
	v.SetDefault("storage.read_only", false)

	v.SetDefault("auth.bearer_lifetime", time.Hour)

	v.SetDefault("admin.enabled", false)
	v.SetDefault("admin.addr", "127.0.0.1:8081")
}

// Addr formats the server bind address.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}
