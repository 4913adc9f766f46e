package config

import (
	"fmt"
	"strings"
	"time"

	"autolot-backend/internal/infrastructure/realtime"
	"autolot-backend/internal/pkg/clock"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config holds application configuration (flags + env + optional .env, via Viper).
type Config struct {
	Env                 string
	Port                string
	SessionSecret       string
	DatabaseURL         string
	RedisURL            string
	FrontendURLEndsWith string
	DevPassword         string
	AllowCrossSiteDev   bool
	HealthAdminKey      string

	DisplayUTCOffsetHours int
	StatusSweepInterval   time.Duration
	ChangeDebounce        time.Duration
	ChangeChannel         string
	RequestTimeout        time.Duration
}

func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

type option struct {
	key   string
	def   interface{}
	usage string
}

// Keys use the env spelling in lower case; the flag is the same name with dashes.
var options = []option{
	{"port", "8080", "HTTP listen port"},
	{"app_env", "development", "development, test or production"},
	{"database_url_dev", "", "Postgres DSN used outside production and test"},
	{"database_url_prod", "", "Postgres DSN used in production"},
	{"database_url_test", "", "Postgres DSN used in test"},
	{"redis_url", "", "Redis URL for sessions, health counters and the change feed"},
	{"session_secret", "", "session signing secret"},
	{"frontend_url_ends_with", "", "allowed CORS origin suffix"},
	{"dev_password", "", "dev-password CORS header value and dev login password (login disabled in production)"},
	{"allow_cross_site_dev", false, "SameSite=None session cookies"},
	{"health_admin_key", "", "key required by /reset"},
	{"display_utc_offset_hours", clock.DefaultOffsetHours, "fixed UTC offset of operator-facing times"},
	{"status_sweep_interval", time.Minute, "period of the status consistency sweep"},
	{"change_debounce", 3 * time.Second, "quiet period before a changed lot is refreshed"},
	{"change_channel", realtime.DefaultChannel, "Redis pub/sub channel for lot changes"},
	{"request_timeout", 10 * time.Second, "per-request context deadline"},
}

func flagName(key string) string {
	return strings.ReplaceAll(key, "_", "-")
}

// Load reads config from command-line args, the environment and an optional
// .env file, in that order of precedence.
func Load(args []string) (*Config, error) {
	fs := pflag.NewFlagSet("autolot", pflag.ContinueOnError)
	fs.ParseErrorsWhitelist.UnknownFlags = true
	v := viper.New()

	for _, o := range options {
		switch d := o.def.(type) {
		case string:
			fs.String(flagName(o.key), d, o.usage)
		case bool:
			fs.Bool(flagName(o.key), d, o.usage)
		case int:
			fs.Int(flagName(o.key), d, o.usage)
		case time.Duration:
			fs.Duration(flagName(o.key), d, o.usage)
		}
		v.SetDefault(o.key, o.def)
	}
	if err := fs.Parse(args); err != nil {
		return nil, fmt.Errorf("parse flags: %w", err)
	}
	for _, o := range options {
		if err := v.BindPFlag(o.key, fs.Lookup(flagName(o.key))); err != nil {
			return nil, err
		}
	}

	v.SetConfigFile(".env")
	_ = v.ReadInConfig()
	v.AutomaticEnv()

	env := v.GetString("app_env")
	if env == "" {
		env = "development"
	}
	dbURL := v.GetString("database_url_dev")
	switch env {
	case "production":
		dbURL = v.GetString("database_url_prod")
	case "test":
		dbURL = v.GetString("database_url_test")
	}

	cfg := &Config{
		Env:                   env,
		Port:                  v.GetString("port"),
		SessionSecret:         v.GetString("session_secret"),
		DatabaseURL:           dbURL,
		RedisURL:              v.GetString("redis_url"),
		FrontendURLEndsWith:   v.GetString("frontend_url_ends_with"),
		DevPassword:           v.GetString("dev_password"),
		AllowCrossSiteDev:     v.GetBool("allow_cross_site_dev"),
		HealthAdminKey:        v.GetString("health_admin_key"),
		DisplayUTCOffsetHours: v.GetInt("display_utc_offset_hours"),
		StatusSweepInterval:   v.GetDuration("status_sweep_interval"),
		ChangeDebounce:        v.GetDuration("change_debounce"),
		ChangeChannel:         v.GetString("change_channel"),
		RequestTimeout:        v.GetDuration("request_timeout"),
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.DisplayUTCOffsetHours < -12 || c.DisplayUTCOffsetHours > 14 {
		return fmt.Errorf("DISPLAY_UTC_OFFSET_HOURS out of range: %d", c.DisplayUTCOffsetHours)
	}
	if c.StatusSweepInterval <= 0 {
		return fmt.Errorf("STATUS_SWEEP_INTERVAL must be positive")
	}
	if c.ChangeDebounce < 0 {
		return fmt.Errorf("CHANGE_DEBOUNCE must not be negative")
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("REQUEST_TIMEOUT must be positive")
	}
	if c.ChangeChannel == "" {
		c.ChangeChannel = realtime.DefaultChannel
	}
	if c.Port == "" {
		c.Port = "8080"
	}
	return nil
}
