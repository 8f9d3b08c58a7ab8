// Package config loads the service settings from defaults, an optional
// config file, .env files and the environment, in increasing priority.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Environments
const (
	EnvDevelopment = "development"
	EnvTest        = "test"
	EnvProduction  = "production"
)

// Session store backends
const (
	SessionStoreSQL   = "sql"
	SessionStoreRedis = "redis"
)

// MinSecretKeyLength is enforced on the signing secret in production
const MinSecretKeyLength = 32

// DefaultDatabaseURL is the local sqlite database used outside production
const DefaultDatabaseURL = "file:lms.db?cache=shared"

const devSecretKey = "insecure-development-key-change-me-before-deploying"

type Config struct {
	Env       string          `mapstructure:"env"`
	Debug     bool            `mapstructure:"debug"`
	SecretKey string          `mapstructure:"secret_key"`
	Site      SiteConfig      `mapstructure:"site"`
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Session   SessionConfig   `mapstructure:"session"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Mail      MailConfig      `mapstructure:"mail"`
	Media     MediaConfig     `mapstructure:"media"`
	Log       LogConfig       `mapstructure:"log"`
	Superuser SuperuserConfig `mapstructure:"superuser"`
}

// SiteConfig is the public origin used to build links sent by email
type SiteConfig struct {
	URL string `mapstructure:"url"`
}

type ServerConfig struct {
	Addr string `mapstructure:"addr"`
}

type DatabaseConfig struct {
	URL string `mapstructure:"url"`
}

type RedisConfig struct {
	URL string `mapstructure:"url"`
}

type SessionConfig struct {
	Store       string        `mapstructure:"store"`
	TTL         time.Duration `mapstructure:"ttl"`
	RememberTTL time.Duration `mapstructure:"remember_ttl"`
	CookieName  string        `mapstructure:"cookie_name"`
	Secure      bool          `mapstructure:"secure"`
	SameSite    string        `mapstructure:"same_site"`
	Domain      string        `mapstructure:"domain"`
}

type AuthConfig struct {
	PhoneRegion        string        `mapstructure:"phone_region"`
	CollapseNotFound   bool          `mapstructure:"collapse_not_found"`
	BcryptCost         int           `mapstructure:"bcrypt_cost"`
	ResetTimeout       time.Duration `mapstructure:"reset_timeout"`
	MaxLoginAttempts   int           `mapstructure:"max_login_attempts"`
	LoginCoolDown      time.Duration `mapstructure:"login_cool_down"`
	MaxUsernameRetries int           `mapstructure:"max_username_retries"`
}

type MailConfig struct {
	SendgridAPIKey string `mapstructure:"sendgrid_api_key"`
	From           string `mapstructure:"from"`
	FromName       string `mapstructure:"from_name"`
}

type MediaConfig struct {
	Root      string `mapstructure:"root"`
	URL       string `mapstructure:"url"`
	StaticURL string `mapstructure:"static_url"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type SuperuserConfig struct {
	Username string `mapstructure:"username"`
	Email    string `mapstructure:"email"`
	Password string `mapstructure:"password"`
}

// IsProduction reports whether the production checks apply
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Env, EnvProduction)
}

// UsesPostgres reports whether the database url points at postgres
func (c *Config) UsesPostgres() bool {
	return strings.HasPrefix(c.Database.URL, "postgres://") || strings.HasPrefix(c.Database.URL, "postgresql://")
}

// flat environment names bound to nested keys
var envBindings = map[string][]string{
	"env":                     {"ENV", "APP_ENV"},
	"debug":                   {"DEBUG"},
	"secret_key":              {"SECRET_KEY"},
	"site.url":                {"SITE_URL"},
	"server.addr":             {"HTTP_ADDR"},
	"database.url":            {"DATABASE_URL"},
	"redis.url":               {"REDIS_URL"},
	"session.store":           {"SESSION_STORE"},
	"auth.phone_region":       {"PHONE_REGION"},
	"auth.collapse_not_found": {"AUTH_COLLAPSE_NOT_FOUND"},
	"mail.sendgrid_api_key":   {"SENDGRID_API_KEY"},
	"mail.from":               {"DEFAULT_FROM_EMAIL"},
	"media.root":              {"MEDIA_ROOT"},
	"media.url":               {"MEDIA_URL"},
	"media.static_url":        {"STATIC_URL"},
	"log.level":               {"LOG_LEVEL"},
	"superuser.username":      {"SUPERUSER_USERNAME"},
	"superuser.email":         {"SUPERUSER_EMAIL"},
	"superuser.password":      {"SUPERUSER_PASSWORD"},
}

// Load reads the configuration. path may name a config file, when empty
// a config.yaml in ./config or the working directory is used if found.
func Load(path string) (*Config, error) {
	loadDotEnv()

	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./config")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("LMS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for key, names := range envBindings {
		if err := v.BindEnv(append([]string{key}, names...)...); err != nil {
			return nil, fmt.Errorf("config: bind %s: %w", key, err)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("config: read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("env", EnvDevelopment)
	v.SetDefault("debug", false)
	v.SetDefault("secret_key", "")

	v.SetDefault("site.url", "http://localhost:8000")
	v.SetDefault("server.addr", ":8000")

	v.SetDefault("database.url", DefaultDatabaseURL)
	v.SetDefault("redis.url", "")

	v.SetDefault("session.store", SessionStoreSQL)
	v.SetDefault("session.ttl", "24h")
	v.SetDefault("session.remember_ttl", "336h")
	v.SetDefault("session.cookie_name", "lms_session")
	v.SetDefault("session.secure", false)
	v.SetDefault("session.same_site", "Lax")
	v.SetDefault("session.domain", "")

	v.SetDefault("auth.phone_region", "IN")
	v.SetDefault("auth.collapse_not_found", false)
	v.SetDefault("auth.bcrypt_cost", 12)
	v.SetDefault("auth.reset_timeout", "72h")
	v.SetDefault("auth.max_login_attempts", 5)
	v.SetDefault("auth.login_cool_down", "24h")
	v.SetDefault("auth.max_username_retries", 20)

	v.SetDefault("mail.sendgrid_api_key", "")
	v.SetDefault("mail.from", "noreply@localhost")
	v.SetDefault("mail.from_name", "LMS")

	v.SetDefault("media.root", "media")
	v.SetDefault("media.url", "/media/")
	v.SetDefault("media.static_url", "/static/")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
}

// loadDotEnv loads .env and .env.<env> when present. Variables already
// set in the process environment win.
func loadDotEnv() {
	env := strings.ToLower(firstEnv("ENV", "APP_ENV"))
	if env == "" {
		env = EnvDevelopment
	}

	for _, name := range []string{".env." + env, ".env"} {
		if _, err := os.Stat(name); err == nil {
			_ = godotenv.Load(name)
		}
	}
}

func firstEnv(names ...string) string {
	for _, n := range names {
		if v := os.Getenv(n); v != "" {
			return v
		}
	}
	return ""
}

// Validate checks the settings the service can not run without
func (c *Config) Validate() error {
	c.Env = strings.ToLower(strings.TrimSpace(c.Env))

	if c.IsProduction() {
		if c.SecretKey == "" {
			return errors.New("config: SECRET_KEY is required in production")
		}
		if len(c.SecretKey) < MinSecretKeyLength {
			return fmt.Errorf("config: SECRET_KEY must be at least %d characters", MinSecretKeyLength)
		}
		if c.Database.URL == DefaultDatabaseURL {
			return errors.New("config: DATABASE_URL is required in production")
		}
	} else if c.SecretKey == "" {
		c.SecretKey = devSecretKey
	}

	if c.Database.URL == "" {
		return errors.New("config: database url can not be empty")
	}

	c.Site.URL = strings.TrimRight(strings.TrimSpace(c.Site.URL), "/")
	site, err := url.Parse(c.Site.URL)
	if err != nil || (site.Scheme != "http" && site.Scheme != "https") || site.Host == "" {
		return fmt.Errorf("config: SITE_URL %q must be an absolute http(s) url", c.Site.URL)
	}

	switch c.Session.Store {
	case SessionStoreSQL:
	case SessionStoreRedis:
		if c.Redis.URL == "" {
			return errors.New("config: REDIS_URL is required for the redis session store")
		}
	default:
		return fmt.Errorf("config: unknown session store %q", c.Session.Store)
	}

	if c.Session.TTL <= 0 || c.Session.RememberTTL <= 0 {
		return errors.New("config: session lifetimes must be positive")
	}

	if c.Auth.BcryptCost < 4 || c.Auth.BcryptCost > 31 {
		return fmt.Errorf("config: bcrypt cost %d out of range", c.Auth.BcryptCost)
	}

	if c.Auth.ResetTimeout <= 0 {
		return errors.New("config: reset timeout must be positive")
	}

	return nil
}
