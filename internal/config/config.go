package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Server   ServerConfig
	Logger   LoggerConfig
	Postgres PostgresConfig
	JWT      JWTConfig
	Redis    RedisConfig
	Stock    StockConfig
}

type ServerConfig struct {
	Port        string
	GinMode     string
	CORSOrigins []string
}

type LoggerConfig struct {
	Level       string
	Encoding    string
	Development bool
}

type PostgresConfig struct {
	Host         string
	Port         string
	User         string
	Password     string
	DBName       string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

type JWTConfig struct {
	Secret string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type StockConfig struct {
	HeldCartTTL         time.Duration
	HeldCountCacheTTL   time.Duration
	StrictMovementTypes []string
}

func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Port:        getEnv("PORT", "8080"),
			GinMode:     getEnv("GIN_MODE", "debug"),
			CORSOrigins: getEnvSlice("CORS_ALLOWED_ORIGINS", []string{"http://localhost:5173", "http://127.0.0.1:5173"}),
		},
		Logger: LoggerConfig{
			Level:       getEnv("LOGGER_LEVEL", "info"),
			Encoding:    getEnv("LOGGER_ENCODING", "json"),
			Development: getEnvBool("LOGGER_DEVELOPMENT", false),
		},
		Postgres: PostgresConfig{
			Host:         getEnv("DB_HOST", "localhost"),
			Port:         getEnv("DB_PORT", "5432"),
			User:         getEnv("DB_USER", "postgres"),
			Password:     getEnv("DB_PASSWORD", "postgres"),
			DBName:       getEnv("DB_NAME", "retailpos"),
			SSLMode:      getEnv("DB_SSLMODE", "disable"),
			MaxOpenConns: getEnvInt("DB_MAX_OPEN_CONNS", 20),
			MaxIdleConns: getEnvInt("DB_MAX_IDLE_CONNS", 5),
		},
		JWT: JWTConfig{
			Secret: strings.TrimSpace(getEnv("JWT_SECRET", "")),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		Stock: StockConfig{
			HeldCartTTL:         time.Duration(getEnvInt("HELD_CART_TTL_HOURS", 168)) * time.Hour,
			HeldCountCacheTTL:   time.Duration(getEnvInt("HELD_COUNT_CACHE_TTL_SECONDS", 30)) * time.Second,
			StrictMovementTypes: getEnvSlice("STRICT_MOVEMENT_TYPES", []string{"sale", "transfer"}),
		},
	}
}

// DSN builds the postgres connection string in URL form.
func (p PostgresConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s", p.User, p.Password, p.Host, p.Port, p.DBName, p.SSLMode)
}

func (s ServerConfig) Address() string {
	return ":" + s.Port
}

// Validate rejects settings the process must not start with.
func (c *Config) Validate() error {
	if c.Server.GinMode == "release" && len(c.JWT.Secret) < 32 {
		return fmt.Errorf("JWT_SECRET must be set and at least 32 characters in release mode")
	}
	if c.Stock.HeldCartTTL <= 0 {
		return fmt.Errorf("HELD_CART_TTL_HOURS must be positive")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value, ok := os.LookupEnv(key); ok {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvSlice(key string, fallback []string) []string {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
