package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

type ServerConfig struct {
	Port        string        `env:"PORT" envDefault:"8080"`
	Host        string        `env:"HOST" envDefault:"0.0.0.0"`
	Env         string        `env:"APP_ENV" envDefault:"development"`
	DatabaseURL string        `env:"DATABASE_URL" envDefault:"web_chat_users.db"`
	AuthKey     string        `env:"AUTH_KEY"`
	TokenTTL    time.Duration `env:"AUTH_TOKEN_TTL" envDefault:"24h"`
}

type ClientConfig struct {
	ServerURL  string        `env:"CHAT_SERVER_URL" envDefault:"http://localhost:8080"`
	TypingIdle time.Duration `env:"CHAT_TYPING_IDLE" envDefault:"700ms"`
	LogFile    string        `env:"CHAT_LOG_FILE" envDefault:"chat-client.log"`
}

// dotEnvLoaded records whether a .env file was found, for the startup summary.
var dotEnvLoaded bool

func loadDotEnv() {
	dotEnvLoaded = godotenv.Load() == nil
}

func parse(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

func LoadServer() (*ServerConfig, error) {
	loadDotEnv()

	cfg := &ServerConfig{}
	if err := parse(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *ServerConfig) Validate() error {
	if strings.TrimSpace(c.DatabaseURL) == "" {
		return errors.New("DATABASE_URL is empty")
	}
	if c.Port == "" {
		return errors.New("PORT is empty")
	}
	if c.TokenTTL <= 0 {
		return fmt.Errorf("AUTH_TOKEN_TTL must be positive, got %s", c.TokenTTL)
	}
	return nil
}

func (c *ServerConfig) Addr() string {
	return c.Host + ":" + c.Port
}

// LogSummary reports the effective configuration without leaking secrets.
func (c *ServerConfig) LogSummary(logger *zap.Logger) {
	logger = logger.Named("config")
	if dotEnvLoaded {
		logger.Info("loaded .env file")
	} else {
		logger.Info("no .env file found, relying on system environment variables")
	}
	logger.Info("configuration initialized",
		zap.String("environment", c.Env),
		zap.String("addr", c.Addr()),
		zap.String("database", maskDBSource(c.DatabaseURL)),
	)
	if c.AuthKey == "" {
		logger.Warn("AUTH_KEY is empty, session tokens are disabled and join is unauthenticated")
	}
}

func LoadClient() (*ClientConfig, error) {
	loadDotEnv()

	cfg := &ClientConfig{}
	if err := parse(cfg); err != nil {
		return nil, err
	}
	if cfg.TypingIdle <= 0 {
		return nil, fmt.Errorf("CHAT_TYPING_IDLE must be positive, got %s", cfg.TypingIdle)
	}
	return cfg, nil
}

// maskDBSource hides credentials in a postgres DSN. SQLite paths are returned as is.
func maskDBSource(dsn string) string {
	if !strings.HasPrefix(dsn, "postgres://") && !strings.HasPrefix(dsn, "postgresql://") {
		return dsn
	}
	parts := strings.Split(dsn, "@")
	if len(parts) < 2 {
		return "invalid-dsn-format"
	}
	return "postgres://****:****@" + parts[len(parts)-1]
}
