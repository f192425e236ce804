// Package config loads the server settings from defaults, an optional YAML
// file and the environment, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Port                string        `mapstructure:"port"`
	DBPath              string        `mapstructure:"db_path"`
	DBEncryptionKey     string        `mapstructure:"db_encryption_key"`
	AllowedOrigins      string        `mapstructure:"allowed_origins"`
	DisableRegistration bool          `mapstructure:"disable_registration"`
	RunMigrations       bool          `mapstructure:"run_migrations"`
	EnableWorkers       bool          `mapstructure:"enable_workers"`
	WorkerInterval      time.Duration `mapstructure:"worker_interval"`

	JWTSecret           string `mapstructure:"jwt_secret"`
	JWTRefreshSecret    string `mapstructure:"jwt_refresh_secret"`
	AccessTokenMinutes  int    `mapstructure:"access_token_minutes"`
	RefreshTokenDays    int    `mapstructure:"refresh_token_days"`
	RememberRefreshDays int    `mapstructure:"remember_refresh_days"`
	CookieSecure        bool   `mapstructure:"cookie_secure"`

	SMTPHost   string `mapstructure:"smtp_host"`
	SMTPPort   int    `mapstructure:"smtp_port"`
	SMTPUser   string `mapstructure:"smtp_user"`
	SMTPPass   string `mapstructure:"smtp_pass"`
	SMTPFrom   string `mapstructure:"smtp_from"`
	SMTPUseTLS bool   `mapstructure:"smtp_use_tls"`
	AppURL     string `mapstructure:"app_url"`

	LogLevel  string `mapstructure:"log_level"`
	LogFormat string `mapstructure:"log_format"`
}

// EnvConfigPath names the variable that points at an optional config file.
const EnvConfigPath = "EVENTLY_CONFIG"

func setDefaults(v *viper.Viper) {
	v.SetDefault("port", "3000")
	v.SetDefault("db_path", "./data/evently.db")
	v.SetDefault("db_encryption_key", "")
	v.SetDefault("allowed_origins", "")
	v.SetDefault("disable_registration", false)
	v.SetDefault("run_migrations", false)
	v.SetDefault("enable_workers", true)
	v.SetDefault("worker_interval", time.Hour)

	v.SetDefault("jwt_secret", "")
	v.SetDefault("jwt_refresh_secret", "")
	v.SetDefault("access_token_minutes", 15)
	v.SetDefault("refresh_token_days", 7)
	v.SetDefault("remember_refresh_days", 30)
	v.SetDefault("cookie_secure", true)

	v.SetDefault("smtp_host", "")
	v.SetDefault("smtp_port", 587)
	v.SetDefault("smtp_user", "")
	v.SetDefault("smtp_pass", "")
	v.SetDefault("smtp_from", "noreply@evently.app")
	v.SetDefault("smtp_use_tls", true)
	v.SetDefault("app_url", "http://localhost:5173")

	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "text")
}

// Load reads the configuration. path may be empty, in which case the file
// named by EVENTLY_CONFIG is used if set.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path == "" {
		path = os.Getenv(EnvConfigPath)
	}
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := c.validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *Config) validate() error {
	if c.JWTSecret == "" {
		return errors.New("JWT_SECRET is required and must not be empty")
	}
	if len(c.JWTSecret) < 32 {
		return errors.New("JWT_SECRET must be at least 32 characters long")
	}
	if c.JWTRefreshSecret == "" {
		c.JWTRefreshSecret = c.JWTSecret + "-refresh"
	}
	if c.WorkerInterval <= 0 {
		c.WorkerInterval = time.Hour
	}
	return nil
}

// SMTPConfigured reports whether outgoing mail can be sent.
func (c *Config) SMTPConfigured() bool {
	return c.SMTPHost != ""
}

// Origins splits ALLOWED_ORIGINS into trimmed entries without trailing
// slashes.
func (c *Config) Origins() []string {
	var out []string
	for _, o := range strings.Split(c.AllowedOrigins, ",") {
		o = strings.TrimRight(strings.TrimSpace(o), "/")
		if o != "" {
			out = append(out, o)
		}
	}
	return out
}
