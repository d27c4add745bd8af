package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server      ServerConfig
	Database    DatabaseConfig
	JWT         JWTConfig
	Admin       AdminConfig
	Storage     StorageConfig
	Tracing     TracingConfig `mapstructure:"tracing"`
	Redis       RedisConfig
	AI          AIConfig
	Cache       CacheConfig       `mapstructure:"cache"`
	Quota       QuotaConfig       `mapstructure:"quota"`
	Leaderboard LeaderboardConfig `mapstructure:"leaderboard"`
	CORS        CORSConfig        `mapstructure:"cors"`
	RateLimit   RateLimitConfig   `mapstructure:"rate_limit"`

	// 运行时标志（非配置文件，通过命令行参数设置）
	ForceMigrate bool   `mapstructure:"-"`
	MigrateOnly  bool   `mapstructure:"-"`
	ConfigFile   string `mapstructure:"-"`
}

type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// RateLimitConfig 全局限流，与出题配额无关
type RateLimitConfig struct {
	MaxRequests   int `mapstructure:"max_requests"`
	WindowMinutes int `mapstructure:"window_minutes"`
}

type AIConfig struct {
	BaseURL        string `mapstructure:"base_url"`
	APIKey         string `mapstructure:"api_key"`
	Model          string `mapstructure:"model"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

func (c AIConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

type CacheConfig struct {
	Enabled             bool    `mapstructure:"enabled"`
	Probability         float64 `mapstructure:"probability"`
	MaxPerKey           int64   `mapstructure:"max_per_key"`
	WriteTimeoutSeconds int     `mapstructure:"write_timeout_seconds"`
}

type QuotaConfig struct {
	// memory（默认，单实例）或 redis（多实例共享计数）
	Store             string   `mapstructure:"store"`
	OwnerIPs          []string `mapstructure:"owner_ips"`
	MaxRequests       int      `mapstructure:"max_requests"`
	WindowHours       int      `mapstructure:"window_hours"`
	MinSpacingSeconds int      `mapstructure:"min_spacing_seconds"`
}

func (c QuotaConfig) Window() time.Duration {
	return time.Duration(c.WindowHours) * time.Hour
}

func (c QuotaConfig) MinSpacing() time.Duration {
	return time.Duration(c.MinSpacingSeconds) * time.Second
}

type LeaderboardConfig struct {
	MaxScores       map[string]int `mapstructure:"max_scores"`
	DefaultMaxScore int            `mapstructure:"default_max_score"`
	TopLimit        int            `mapstructure:"top_limit"`
}

type ServerConfig struct {
	Port           string
	Mode           string
	TrustedProxies []string `mapstructure:"trusted_proxies"`
}

type DatabaseConfig struct {
	Host                   string
	Port                   int
	User                   string
	Password               string
	DBName                 string
	Charset                string
	ParseTime              bool
	MaxOpenConns           int `mapstructure:"max_open_conns"`
	MaxIdleConns           int `mapstructure:"max_idle_conns"`
	ConnMaxLifetimeMinutes int `mapstructure:"conn_max_lifetime_minutes"`
}

type JWTConfig struct {
	Secret     string        `mapstructure:"secret"`
	ExpireTime time.Duration `mapstructure:"expire_hours"`
}

type AdminConfig struct {
	PasswordHash string `mapstructure:"password_hash"`
}

type StorageConfig struct {
	Type          string `mapstructure:"type"`
	LocalPath     string `mapstructure:"local_path"`
	MinioEndpoint string `mapstructure:"minio_endpoint"`
	MinioAccessID string `mapstructure:"minio_access_key"`
	MinioSecret   string `mapstructure:"minio_secret_key"`
	MinioBucket   string `mapstructure:"minio_bucket"`
	OSSEndpoint   string `mapstructure:"oss_endpoint"`
	OSSAccessKey  string `mapstructure:"oss_access_key"`
	OSSSecretKey  string `mapstructure:"oss_secret_key"`
	OSSBucket     string `mapstructure:"oss_bucket"`
}

type TracingConfig struct {
	Enabled           bool   `mapstructure:"enabled"`
	CollectorEndpoint string `mapstructure:"collector_endpoint"`
}

type RedisConfig struct {
	Host               string
	Port               int
	Password           string
	DB                 int
	PoolSize           int `mapstructure:"pool_size"`
	PoolTimeoutSeconds int `mapstructure:"pool_timeout_seconds"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.mode", "debug")

	v.SetDefault("database.charset", "utf8mb4")
	v.SetDefault("database.parsetime", true)
	v.SetDefault("database.max_open_conns", 20)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime_minutes", 30)

	v.SetDefault("redis.pool_size", 50)
	v.SetDefault("redis.pool_timeout_seconds", 3)

	v.SetDefault("jwt.expire_hours", 12)

	v.SetDefault("ai.timeout_seconds", 30)

	v.SetDefault("cache.enabled", true)
	v.SetDefault("cache.probability", 0.25)
	v.SetDefault("cache.max_per_key", 500)
	v.SetDefault("cache.write_timeout_seconds", 5)

	v.SetDefault("quota.store", "memory")
	v.SetDefault("quota.max_requests", 10)
	v.SetDefault("quota.window_hours", 8)
	v.SetDefault("quota.min_spacing_seconds", 60)

	v.SetDefault("leaderboard.max_scores", map[string]int{"easy": 5, "medium": 10, "hard": 20})
	v.SetDefault("leaderboard.default_max_score", 100)
	v.SetDefault("leaderboard.top_limit", 100)

	v.SetDefault("rate_limit.max_requests", 600)
	v.SetDefault("rate_limit.window_minutes", 1)

	v.SetDefault("storage.type", "local")
	v.SetDefault("storage.local_path", "uploads")
}

func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	v.AddConfigPath(path)
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	v.SetEnvPrefix("MATH_ARENA")
	v.AutomaticEnv()

	setDefaults(v)

	// Database
	v.BindEnv("database.host", "DATABASE_HOST")
	v.BindEnv("database.port", "DATABASE_PORT")
	v.BindEnv("database.user", "DATABASE_USER")
	v.BindEnv("database.password", "DATABASE_PASSWORD")
	v.BindEnv("database.dbname", "DATABASE_NAME")

	// JWT / Admin
	v.BindEnv("jwt.secret", "JWT_SECRET")
	v.BindEnv("admin.password_hash", "ADMIN_PASSWORD_HASH")

	// Redis
	v.BindEnv("redis.host", "REDIS_HOST")
	v.BindEnv("redis.port", "REDIS_PORT")
	v.BindEnv("redis.password", "REDIS_PASSWORD")

	// Server
	v.BindEnv("server.mode", "SERVER_MODE")
	v.BindEnv("server.port", "PORT")

	// AI
	v.BindEnv("ai.base_url", "AI_BASE_URL")
	v.BindEnv("ai.api_key", "AI_API_KEY")
	v.BindEnv("ai.model", "AI_MODEL")

	// Storage
	v.BindEnv("storage.type", "STORAGE_TYPE")
	v.BindEnv("storage.oss_endpoint", "OSS_ENDPOINT")
	v.BindEnv("storage.oss_access_key", "OSS_ACCESS_KEY")
	v.BindEnv("storage.oss_secret_key", "OSS_SECRET_KEY")
	v.BindEnv("storage.oss_bucket", "OSS_BUCKET")
	v.BindEnv("storage.minio_endpoint", "MINIO_ENDPOINT")
	v.BindEnv("storage.minio_access_key", "MINIO_ACCESS_KEY")
	v.BindEnv("storage.minio_secret_key", "MINIO_SECRET_KEY")
	v.BindEnv("storage.minio_bucket", "MINIO_BUCKET")

	// Tracing
	v.BindEnv("tracing.enabled", "TRACING_ENABLED")
	v.BindEnv("tracing.collector_endpoint", "TRACING_COLLECTOR_ENDPOINT")

	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	cfg.ConfigFile = v.ConfigFileUsed()
	cfg.JWT.ExpireTime = cfg.JWT.ExpireTime * time.Hour

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	if cfg.Storage.Type == "local" {
		if _, err := os.Stat(cfg.Storage.LocalPath); os.IsNotExist(err) {
			os.MkdirAll(cfg.Storage.LocalPath, 0755)
		}
	}

	return &cfg, nil
}

func (c *Config) validate() error {
	// 生产环境校验 JWT Secret 强度
	if c.Server.Mode == "release" && len(c.JWT.Secret) < 32 {
		return fmt.Errorf("JWT secret is too short (%d chars), must be at least 32 characters in release mode", len(c.JWT.Secret))
	}
	if c.Cache.Probability < 0 || c.Cache.Probability > 1 {
		return fmt.Errorf("cache.probability must be within [0, 1], got %v", c.Cache.Probability)
	}
	if c.Quota.Store != "memory" && c.Quota.Store != "redis" {
		return fmt.Errorf("quota.store must be memory or redis, got %q", c.Quota.Store)
	}
	if c.Quota.MaxRequests <= 0 || c.Quota.WindowHours <= 0 {
		return fmt.Errorf("quota.max_requests and quota.window_hours must be positive")
	}
	return nil
}
