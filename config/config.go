package config

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Auth      AuthConfig      `mapstructure:"auth"`
	OTP       OTPConfig       `mapstructure:"otp"`
	Email     EmailConfig     `mapstructure:"email"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Log       LogConfig       `mapstructure:"log"`
}

type AppConfig struct {
	Name string `mapstructure:"name"`
	Env  string `mapstructure:"env"`
}

type ServerConfig struct {
	Addr              string        `mapstructure:"addr"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout"`
}

type DatabaseConfig struct {
	Driver       string `mapstructure:"driver"` // postgres / sqlite
	DSN          string `mapstructure:"dsn"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
	MaxIdleConns int    `mapstructure:"max_idle_conns"`
}

type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Prefix   string `mapstructure:"prefix"`
}

type AuthConfig struct {
	JWTSecret    string        `mapstructure:"jwt_secret"`
	JWTIssuer    string        `mapstructure:"jwt_issuer"`
	SessionTTL   time.Duration `mapstructure:"session_ttl"`
	BcryptCost   int           `mapstructure:"bcrypt_cost"`
	CookieName   string        `mapstructure:"cookie_name"`
	CookieDomain string        `mapstructure:"cookie_domain"`
	CookieSecure bool          `mapstructure:"cookie_secure"`
}

type OTPConfig struct {
	TTL             time.Duration `mapstructure:"ttl"`
	ResendCooldown  time.Duration `mapstructure:"resend_cooldown"`
	CleanupInterval time.Duration `mapstructure:"cleanup_interval"`

	// Zero keeps audit rows forever.
	SecurityLogRetention time.Duration `mapstructure:"security_log_retention"`
}

type EmailConfig struct {
	ResendAPIKey string `mapstructure:"resend_api_key"`
	From         string `mapstructure:"from"`
}

type RateLimitConfig struct {
	Window         time.Duration `mapstructure:"window"`
	AuthRequests   int           `mapstructure:"auth_requests"`
	SignInRequests int           `mapstructure:"sign_in_requests"`
}

type LogConfig struct {
	Level      string `mapstructure:"level"`
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	Compress   bool   `mapstructure:"compress"`
}

// Load reads .env, then config.yml (optional), then the environment.
// Nested keys map to env names with "." replaced by "_", e.g. OTP_TTL.
func Load(paths ...string) (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Printf("no .env loaded: %s", err)
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	if len(paths) == 0 {
		paths = []string{".", "./config", "../"}
	}
	for _, path := range paths {
		v.AddConfigPath(path)
	}

	setDefaults(v)

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindLegacyEnv(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "serenity")
	v.SetDefault("app.env", "development")
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.read_header_timeout", 5*time.Second)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)
	v.SetDefault("database.driver", "postgres")
	v.SetDefault("database.dsn", "")
	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.addr", "127.0.0.1:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.prefix", "serenity")
	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.jwt_issuer", "serenity")
	v.SetDefault("auth.session_ttl", 30*24*time.Hour)
	v.SetDefault("auth.bcrypt_cost", 10)
	v.SetDefault("auth.cookie_name", "session_token")
	v.SetDefault("auth.cookie_domain", "")
	v.SetDefault("auth.cookie_secure", true)
	v.SetDefault("otp.ttl", 10*time.Minute)
	v.SetDefault("otp.resend_cooldown", 60*time.Second)
	v.SetDefault("otp.cleanup_interval", 15*time.Minute)
	v.SetDefault("otp.security_log_retention", time.Duration(0))
	v.SetDefault("email.resend_api_key", "")
	v.SetDefault("email.from", "onboarding@resend.dev")
	v.SetDefault("rate_limit.window", time.Minute)
	v.SetDefault("rate_limit.auth_requests", 10)
	v.SetDefault("rate_limit.sign_in_requests", 5)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.file", "")
	v.SetDefault("log.max_size_mb", 100)
	v.SetDefault("log.max_backups", 7)
	v.SetDefault("log.max_age_days", 30)
	v.SetDefault("log.compress", true)
}

// bindLegacyEnv keeps the flat variable names deployments already set.
func bindLegacyEnv(v *viper.Viper) {
	_ = v.BindEnv("database.dsn", "DATABASE_DSN", "DATABASE_URL")
	_ = v.BindEnv("email.resend_api_key", "EMAIL_RESEND_API_KEY", "RESEND_API_KEY")
	_ = v.BindEnv("email.from", "EMAIL_FROM", "FROM_EMAIL")
	_ = v.BindEnv("auth.jwt_secret", "AUTH_JWT_SECRET", "JWT_SECRET")
	_ = v.BindEnv("auth.jwt_issuer", "AUTH_JWT_ISSUER", "JWT_ISSUER")
	_ = v.BindEnv("server.addr", "SERVER_ADDR", "HTTP_ADDR")
}

func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("unsupported database driver %q", c.Database.Driver)
	}
	if strings.TrimSpace(c.Database.DSN) == "" {
		return errors.New("database dsn is required (DATABASE_URL)")
	}
	if strings.TrimSpace(c.Auth.JWTSecret) == "" {
		return errors.New("jwt secret is required (JWT_SECRET)")
	}
	if c.OTP.TTL <= 0 || c.OTP.ResendCooldown <= 0 {
		return errors.New("otp ttl and resend cooldown must be positive")
	}
	return nil
}
