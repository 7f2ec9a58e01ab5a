package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

type Config struct {
	Debug bool `env:"DEBUG" envDefault:"false"`

	Server struct {
		Port            int           `env:"PORT" envDefault:"8080"`
		Origin          string        `env:"ORIGIN" envDefault:"http://localhost:3000"`
		AllowedOrigins  []string      `env:"CORS_ALLOWED_ORIGINS" envSeparator:","`
		ReadTimeout     time.Duration `env:"HTTP_READ_TIMEOUT" envDefault:"15s"`
		WriteTimeout    time.Duration `env:"HTTP_WRITE_TIMEOUT" envDefault:"15s"`
		IdleTimeout     time.Duration `env:"HTTP_IDLE_TIMEOUT" envDefault:"60s"`
		ShutdownTimeout time.Duration `env:"HTTP_SHUTDOWN_TIMEOUT" envDefault:"30s"`
	}

	Postgres struct {
		// URL, when set, wins over the discrete fields below.
		URL             string        `env:"DATABASE_URL"`
		Host            string        `env:"POSTGRES_HOST" envDefault:"localhost"`
		Port            int           `env:"POSTGRES_PORT" envDefault:"5432"`
		User            string        `env:"POSTGRES_USER" envDefault:"luna"`
		Password        string        `env:"POSTGRES_PASSWORD" envDefault:"luna"`
		Database        string        `env:"POSTGRES_DB" envDefault:"lunaexecutor"`
		SSLMode         string        `env:"POSTGRES_SSLMODE" envDefault:"disable"`
		MaxOpenConns    int           `env:"POSTGRES_MAX_OPEN_CONNS" envDefault:"25"`
		MaxIdleConns    int           `env:"POSTGRES_MAX_IDLE_CONNS" envDefault:"5"`
		ConnMaxLifetime time.Duration `env:"POSTGRES_CONN_MAX_LIFETIME" envDefault:"5m"`
		AutoMigrate     bool          `env:"DB_AUTO_MIGRATE" envDefault:"true"`
	}

	Redis struct {
		Host     string `env:"REDIS_HOST" envDefault:"localhost"`
		Port     int    `env:"REDIS_PORT" envDefault:"6379"`
		Password string `env:"REDIS_PASSWORD" envDefault:""`
		DB       int    `env:"REDIS_DB" envDefault:"0"`
	}

	Session struct {
		CookieName string        `env:"SESSION_COOKIE_NAME" envDefault:"luna_sid"`
		TTL        time.Duration `env:"SESSION_TTL" envDefault:"24h"`
		Secure     bool          `env:"SESSION_SECURE" envDefault:"false"`
		Domain     string        `env:"SESSION_DOMAIN" envDefault:""`
	}

	Chat struct {
		AllowAnonymous  bool          `env:"CHAT_ALLOW_ANONYMOUS" envDefault:"true"`
		HistoryLimit    int           `env:"CHAT_HISTORY_LIMIT" envDefault:"50"`
		MaxMessageBytes int64         `env:"CHAT_MAX_MESSAGE_BYTES" envDefault:"4096"`
		MaxContentRunes int           `env:"CHAT_MAX_CONTENT_RUNES" envDefault:"2000"`
		SendBuffer      int           `env:"CHAT_SEND_BUFFER" envDefault:"64"`
		WriteWait       time.Duration `env:"CHAT_WRITE_WAIT" envDefault:"10s"`
		PongWait        time.Duration `env:"CHAT_PONG_WAIT" envDefault:"60s"`
		PingPeriod      time.Duration `env:"CHAT_PING_PERIOD" envDefault:"54s"`
		PersistTimeout  time.Duration `env:"CHAT_PERSIST_TIMEOUT" envDefault:"5s"`

		// Fan-out through a Redis stream so several API instances share one conversation.
		FanoutEnabled bool   `env:"CHAT_FANOUT_ENABLED" envDefault:"false"`
		FanoutStream  string `env:"CHAT_FANOUT_STREAM" envDefault:"chat:messages"`
		FanoutMaxLen  int64  `env:"CHAT_FANOUT_MAXLEN" envDefault:"1000"`
	}

	Cache struct {
		ProductsTTL  time.Duration `env:"CACHE_PRODUCTS_TTL" envDefault:"5m"`
		UserStatsTTL time.Duration `env:"CACHE_USER_STATS_TTL" envDefault:"1m"`
	}

	Swagger struct {
		Enabled bool   `env:"SWAGGER_ENABLED" envDefault:"false"`
		Host    string `env:"SWAGGER_HOST" envDefault:""`
	}

	// Users promoted to admin at startup. This is the only path that sets is_admin.
	AdminUsernames []string `env:"ADMIN_USERNAMES" envSeparator:","`
}

// Load reads .env (when present) and the process environment into Config.
func Load() (*Config, error) {
	// .env is optional; production sets variables directly
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Chat.HistoryLimit <= 0 {
		return fmt.Errorf("CHAT_HISTORY_LIMIT must be positive, got %d", c.Chat.HistoryLimit)
	}
	if c.Chat.SendBuffer <= 0 {
		return fmt.Errorf("CHAT_SEND_BUFFER must be positive, got %d", c.Chat.SendBuffer)
	}
	if c.Chat.PingPeriod >= c.Chat.PongWait {
		return fmt.Errorf("CHAT_PING_PERIOD (%s) must be shorter than CHAT_PONG_WAIT (%s)", c.Chat.PingPeriod, c.Chat.PongWait)
	}
	if c.Session.TTL <= 0 {
		return fmt.Errorf("SESSION_TTL must be positive")
	}
	return nil
}

// PostgresDSN returns DATABASE_URL or a DSN assembled from the POSTGRES_* fields.
func (c *Config) PostgresDSN() string {
	if c.Postgres.URL != "" {
		return c.Postgres.URL
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.Postgres.User, c.Postgres.Password, c.Postgres.Host, c.Postgres.Port,
		c.Postgres.Database, c.Postgres.SSLMode)
}

func (c *Config) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Redis.Host, c.Redis.Port)
}

// CORSOrigins falls back to ORIGIN when CORS_ALLOWED_ORIGINS is empty.
func (c *Config) CORSOrigins() []string {
	origins := make([]string, 0, len(c.Server.AllowedOrigins)+1)
	for _, o := range c.Server.AllowedOrigins {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	if len(origins) == 0 && c.Server.Origin != "" {
		origins = append(origins, c.Server.Origin)
	}
	return origins
}

// IsAdminUsername reports whether username is listed in ADMIN_USERNAMES.
func (c *Config) IsAdminUsername(username string) bool {
	for _, name := range c.AdminUsernames {
		if strings.EqualFold(strings.TrimSpace(name), username) {
			return true
		}
	}
	return false
}
