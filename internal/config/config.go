package config

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application settings.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	JWT      JWTConfig
	Engine   EngineConfig
	Email    EmailConfig
}

// ServerConfig holds the HTTP server settings.
type ServerConfig struct {
	Port         string
	ReadTimeout  int
	WriteTimeout int
}

// DatabaseConfig holds the PostgreSQL connection settings.
type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// RedisConfig holds the unified Redis connection settings.
// Supported modes: single, sentinel, cluster.
type RedisConfig struct {
	// Mode selects the Redis topology ("single", "sentinel", "cluster").
	// Defaults to "single".
	Mode string `mapstructure:"mode"`

	// Addrs lists Redis addresses (host:port), used by all modes. In single
	// mode the first address wins when both Addrs and Addr are set.
	Addrs []string `mapstructure:"addrs"`

	// Addr is the single-mode address, kept for compatibility.
	Addr string `mapstructure:"addr"`

	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`

	// MasterName is the sentinel master name (sentinel mode only).
	MasterName string `mapstructure:"master_name"`

	MaxRetries      int `mapstructure:"max_retries"`
	MinRetryBackoff int `mapstructure:"min_retry_backoff"`
	MaxRetryBackoff int `mapstructure:"max_retry_backoff"`
}

// JWTConfig holds the token verification settings.
type JWTConfig struct {
	Secret        string `mapstructure:"secret"`
	ExpirationHrs int    `mapstructure:"expirationHrs"`
}

// EngineConfig holds the scheduler and cache settings of the competition
// engine. Zero values fall back to the engine defaults.
type EngineConfig struct {
	SweepInterval   time.Duration `mapstructure:"sweep_interval"`
	RefreshInterval time.Duration `mapstructure:"refresh_interval"`
	CacheTTL        time.Duration `mapstructure:"cache_ttl"`
}

// EmailConfig holds the notification delivery settings. When disabled, the
// engine logs notifications instead of sending them. The engine has no user
// store, so the address directory maps user ids to addresses directly.
type EmailConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	APIKey  string `mapstructure:"api_key"`
	From    string `mapstructure:"from"`

	// Directory maps user id (as string) to email address.
	Directory map[string]string `mapstructure:"directory"`
}

// PostgresConnectionString builds the PostgreSQL connection string.
func (d *DatabaseConfig) PostgresConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.DBName, d.SSLMode,
	)
}

// Load reads the configuration file and overlays environment variables.
// The file may be absent; explicitly bound env vars are enough to run.
func Load(configPath string) (*Config, error) {
	vip := viper.New()

	vip.BindEnv("database.host", "DATABASE_HOST")
	vip.BindEnv("database.port", "DATABASE_PORT")
	vip.BindEnv("database.user", "DATABASE_USER")
	vip.BindEnv("database.password", "DATABASE_PASSWORD")
	vip.BindEnv("database.dbname", "DATABASE_DBNAME")
	vip.BindEnv("database.sslmode", "DATABASE_SSLMODE")

	vip.BindEnv("redis.mode", "REDIS_MODE")
	vip.BindEnv("redis.addrs", "REDIS_ADDRS")
	vip.BindEnv("redis.addr", "REDIS_ADDR")
	vip.BindEnv("redis.password", "REDIS_PASSWORD")
	vip.BindEnv("redis.db", "REDIS_DB")
	vip.BindEnv("redis.master_name", "REDIS_MASTER_NAME")

	vip.BindEnv("jwt.secret", "JWT_SECRET")
	vip.BindEnv("jwt.expirationHrs", "JWT_EXPIRATIONHRS")

	vip.BindEnv("engine.sweep_interval", "ENGINE_SWEEP_INTERVAL")
	vip.BindEnv("engine.refresh_interval", "ENGINE_REFRESH_INTERVAL")
	vip.BindEnv("engine.cache_ttl", "ENGINE_CACHE_TTL")

	vip.BindEnv("email.enabled", "EMAIL_ENABLED")
	vip.BindEnv("email.api_key", "RESEND_API_KEY")
	vip.BindEnv("email.from", "EMAIL_FROM")

	vip.BindEnv("server.port", "SERVER_PORT")

	if configPath != "" {
		vip.SetConfigFile(configPath)
		if err := vip.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); ok {
				log.Printf("Config file %q not found, relying on environment variables", configPath)
			} else {
				log.Printf("Warning: failed to read config file %q: %v", configPath, err)
			}
		}
	}

	var cfg Config
	if err := vip.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if os.Getenv("GIN_MODE") != "release" {
		log.Printf("--- Loaded configuration ---")
		log.Printf("Database Host: %s", cfg.Database.Host)
		log.Printf("Database Name: %s", cfg.Database.DBName)
		log.Printf("Redis Mode: %s", cfg.Redis.Mode)
		log.Printf("Redis Addr: %s", cfg.Redis.Addr)
		log.Printf("Server Port: %s", cfg.Server.Port)
		log.Printf("Engine Sweep Interval: %v", cfg.Engine.SweepInterval)
		log.Printf("Engine Refresh Interval: %v", cfg.Engine.RefreshInterval)
		log.Printf("Email Enabled: %t", cfg.Email.Enabled)
		log.Printf("----------------------------")
	}

	if cfg.Database.Host == "" || cfg.Database.DBName == "" || cfg.Database.User == "" {
		return nil, fmt.Errorf("database configuration (host, dbname, user) is incomplete (check DATABASE_HOST, DATABASE_DBNAME, DATABASE_USER env vars)")
	}
	if cfg.JWT.Secret == "" {
		return nil, fmt.Errorf("JWT secret is required (check JWT_SECRET env var)")
	}
	if cfg.Email.Enabled && cfg.Email.APIKey == "" {
		return nil, fmt.Errorf("email is enabled but no API key is set (check RESEND_API_KEY env var)")
	}
	if os.Getenv("GIN_MODE") != "debug" && cfg.Database.Password == "" {
		return nil, fmt.Errorf("database password is required outside debug mode (check DATABASE_PASSWORD env var)")
	}

	return &cfg, nil
}
