package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application.
type Config struct {
	Server   ServerConfig
	Postgres PostgresConfig
	Redis    RedisConfig
	Upstream UpstreamConfig
	Engine   EngineConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host         string        `mapstructure:"SERVER_HOST"`
	Port         int           `mapstructure:"SERVER_PORT"`
	ReadTimeout  time.Duration `mapstructure:"SERVER_READ_TIMEOUT"`
	WriteTimeout time.Duration `mapstructure:"SERVER_WRITE_TIMEOUT"`
	IdleTimeout  time.Duration `mapstructure:"SERVER_IDLE_TIMEOUT"`
}

// PostgresConfig holds PostgreSQL connection settings.
type PostgresConfig struct {
	Host     string `mapstructure:"POSTGRES_HOST"`
	Port     int    `mapstructure:"POSTGRES_PORT"`
	User     string `mapstructure:"POSTGRES_USER"`
	Password string `mapstructure:"POSTGRES_PASSWORD"`
	DBName   string `mapstructure:"POSTGRES_DB"`
	SSLMode  string `mapstructure:"POSTGRES_SSLMODE"`
	MaxConns int32  `mapstructure:"POSTGRES_MAX_CONNS"`
	MinConns int32  `mapstructure:"POSTGRES_MIN_CONNS"`
}

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	Host     string `mapstructure:"REDIS_HOST"`
	Port     int    `mapstructure:"REDIS_PORT"`
	Password string `mapstructure:"REDIS_PASSWORD"`
	DB       int    `mapstructure:"REDIS_DB"`
	PoolSize int    `mapstructure:"REDIS_POOL_SIZE"`
}

// UpstreamConfig holds the external collaborator endpoints.
type UpstreamConfig struct {
	RouteBaseURL        string        `mapstructure:"ROUTE_BASE_URL"`
	AvailabilityBaseURL string        `mapstructure:"AVAILABILITY_BASE_URL"`
	RequestTimeout      time.Duration `mapstructure:"UPSTREAM_REQUEST_TIMEOUT"`
	FetchConcurrency    int           `mapstructure:"AVAILABILITY_CONCURRENCY"`
}

// EngineConfig holds composition-engine tunables.
type EngineConfig struct {
	CacheTTL               time.Duration `mapstructure:"CACHE_TTL"`
	ReliabilityTTL         time.Duration `mapstructure:"RELIABILITY_TTL"`
	ParallelRouteThreshold int           `mapstructure:"PARALLEL_ROUTE_THRESHOLD"`
	OptimizeRouteGroups    bool          `mapstructure:"OPTIMIZE_ROUTE_GROUPS"`
	TargetResponseOffers   int           `mapstructure:"TARGET_RESPONSE_OFFERS"`
	CityGroupsPath         string        `mapstructure:"CITY_GROUPS_PATH"`
}

// DSN returns the PostgreSQL connection string.
func (p *PostgresConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		p.User, p.Password, p.Host, p.Port, p.DBName, p.SSLMode,
	)
}

// Addr returns the Redis address in host:port format.
func (r *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// ServerAddr returns the HTTP listen address in host:port format.
func (s *ServerConfig) ServerAddr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// Load reads configuration from environment variables and .env file.
func Load() (*Config, error) {
	viper.SetConfigName(".env")
	viper.SetConfigType("env")
	viper.AddConfigPath(".")
	viper.AutomaticEnv()

	// ── Defaults ────────────────────────────────────────
	viper.SetDefault("SERVER_HOST", "0.0.0.0")
	viper.SetDefault("SERVER_PORT", 8080)
	viper.SetDefault("SERVER_READ_TIMEOUT", "10s")
	viper.SetDefault("SERVER_WRITE_TIMEOUT", "60s")
	viper.SetDefault("SERVER_IDLE_TIMEOUT", "120s")

	viper.SetDefault("POSTGRES_HOST", "localhost")
	viper.SetDefault("POSTGRES_PORT", 5432)
	viper.SetDefault("POSTGRES_USER", "awardengine")
	viper.SetDefault("POSTGRES_PASSWORD", "awardengine_secret")
	viper.SetDefault("POSTGRES_DB", "awardengine_db")
	viper.SetDefault("POSTGRES_SSLMODE", "disable")
	viper.SetDefault("POSTGRES_MAX_CONNS", 50)
	viper.SetDefault("POSTGRES_MIN_CONNS", 10)

	viper.SetDefault("REDIS_HOST", "localhost")
	viper.SetDefault("REDIS_PORT", 6379)
	viper.SetDefault("REDIS_PASSWORD", "")
	viper.SetDefault("REDIS_DB", 0)
	viper.SetDefault("REDIS_POOL_SIZE", 100)

	viper.SetDefault("ROUTE_BASE_URL", "http://localhost:9100")
	viper.SetDefault("AVAILABILITY_BASE_URL", "http://localhost:9200")
	viper.SetDefault("UPSTREAM_REQUEST_TIMEOUT", "30s")
	viper.SetDefault("AVAILABILITY_CONCURRENCY", 12)

	viper.SetDefault("CACHE_TTL", "30m")
	viper.SetDefault("RELIABILITY_TTL", "5m")
	viper.SetDefault("PARALLEL_ROUTE_THRESHOLD", 16)
	viper.SetDefault("OPTIMIZE_ROUTE_GROUPS", true)
	viper.SetDefault("TARGET_RESPONSE_OFFERS", 1000)
	viper.SetDefault("CITY_GROUPS_PATH", "citygroups.yaml")

	// Try to read .env file. If it doesn't exist (e.g., inside Docker),
	// env vars injected by docker-compose env_file are used instead.
	_ = viper.ReadInConfig()

	cfg := &Config{}

	// ── Server ──────────────────────────────────────────
	cfg.Server = ServerConfig{
		Host:         viper.GetString("SERVER_HOST"),
		Port:         viper.GetInt("SERVER_PORT"),
		ReadTimeout:  viper.GetDuration("SERVER_READ_TIMEOUT"),
		WriteTimeout: viper.GetDuration("SERVER_WRITE_TIMEOUT"),
		IdleTimeout:  viper.GetDuration("SERVER_IDLE_TIMEOUT"),
	}

	// ── Postgres ────────────────────────────────────────
	cfg.Postgres = PostgresConfig{
		Host:     viper.GetString("POSTGRES_HOST"),
		Port:     viper.GetInt("POSTGRES_PORT"),
		User:     viper.GetString("POSTGRES_USER"),
		Password: viper.GetString("POSTGRES_PASSWORD"),
		DBName:   viper.GetString("POSTGRES_DB"),
		SSLMode:  viper.GetString("POSTGRES_SSLMODE"),
		MaxConns: viper.GetInt32("POSTGRES_MAX_CONNS"),
		MinConns: viper.GetInt32("POSTGRES_MIN_CONNS"),
	}

	// ── Redis ───────────────────────────────────────────
	cfg.Redis = RedisConfig{
		Host:     viper.GetString("REDIS_HOST"),
		Port:     viper.GetInt("REDIS_PORT"),
		Password: viper.GetString("REDIS_PASSWORD"),
		DB:       viper.GetInt("REDIS_DB"),
		PoolSize: viper.GetInt("REDIS_POOL_SIZE"),
	}

	// ── Upstream collaborators ──────────────────────────
	cfg.Upstream = UpstreamConfig{
		RouteBaseURL:        viper.GetString("ROUTE_BASE_URL"),
		AvailabilityBaseURL: viper.GetString("AVAILABILITY_BASE_URL"),
		RequestTimeout:      viper.GetDuration("UPSTREAM_REQUEST_TIMEOUT"),
		FetchConcurrency:    viper.GetInt("AVAILABILITY_CONCURRENCY"),
	}

	// ── Engine ──────────────────────────────────────────
	cfg.Engine = EngineConfig{
		CacheTTL:               viper.GetDuration("CACHE_TTL"),
		ReliabilityTTL:         viper.GetDuration("RELIABILITY_TTL"),
		ParallelRouteThreshold: viper.GetInt("PARALLEL_ROUTE_THRESHOLD"),
		OptimizeRouteGroups:    viper.GetBool("OPTIMIZE_ROUTE_GROUPS"),
		TargetResponseOffers:   viper.GetInt("TARGET_RESPONSE_OFFERS"),
		CityGroupsPath:         viper.GetString("CITY_GROUPS_PATH"),
	}

	return cfg, nil
}
