package config

import (
	"errors"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

// Lock backends supported for week serialization.
const (
	LockBackendMemory = "memory"
	LockBackendRedis  = "redis"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database  DatabaseConfig
	Redis     RedisConfig
	JWT       JWTConfig
	CORS      CORSConfig
	Log       LogConfig
	Timetable TimetableConfig
	Scheduler SchedulerConfig
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
}

type JWTConfig struct {
	Secret   string
	Issuer   string
	Audience string
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// TimetableConfig governs entry editing, locking and caching of week grids.
type TimetableConfig struct {
	DefaultPeriodsPerDay int
	DefaultMaxLoadPerDay int
	LockBackend          string
	WeekLockTTL          time.Duration
	WeekLockWait         time.Duration
	CacheTTL             time.Duration
	CacheEnabled         bool
	LockOnPublish        bool
}

// SchedulerConfig tunes the timetable generator and its job queue.
type SchedulerConfig struct {
	ProposalTTL      time.Duration
	Workers          int
	QueueBuffer      int
	RepairIterations int
	JobRetention     time.Duration
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		// SetConfigFile surfaces a missing .env as a path error instead.
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}

	return fromViper(v), nil
}

func fromViper(v *viper.Viper) *Config {
	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.Database = DatabaseConfig{
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
	}

	cfg.Redis = RedisConfig{
		Enabled:  v.GetBool("REDIS_ENABLED"),
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.JWT = JWTConfig{
		Secret:   v.GetString("JWT_SECRET"),
		Issuer:   v.GetString("JWT_ISSUER"),
		Audience: v.GetString("JWT_AUDIENCE"),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	backend := strings.ToLower(strings.TrimSpace(v.GetString("LOCK_BACKEND")))
	if backend != LockBackendRedis {
		backend = LockBackendMemory
	}
	cfg.Timetable = TimetableConfig{
		DefaultPeriodsPerDay: positiveOr(v.GetInt("DEFAULT_PERIODS_PER_DAY"), 8),
		DefaultMaxLoadPerDay: positiveOr(v.GetInt("DEFAULT_MAX_LOAD_PER_DAY"), 6),
		LockBackend:          backend,
		WeekLockTTL:          parseDuration(v.GetString("WEEK_LOCK_TTL"), 30*time.Second),
		WeekLockWait:         parseDuration(v.GetString("WEEK_LOCK_WAIT"), 5*time.Second),
		CacheTTL:             parseDuration(v.GetString("TIMETABLE_CACHE_TTL"), 5*time.Minute),
		CacheEnabled:         v.GetBool("ENABLE_TIMETABLE_CACHE"),
		LockOnPublish:        v.GetBool("LOCK_ON_PUBLISH"),
	}

	cfg.Scheduler = SchedulerConfig{
		ProposalTTL:      parseDuration(v.GetString("SCHEDULER_PROPOSAL_TTL"), 30*time.Minute),
		Workers:          positiveOr(v.GetInt("SCHEDULER_WORKERS"), 2),
		QueueBuffer:      positiveOr(v.GetInt("SCHEDULER_QUEUE_BUFFER"), 16),
		RepairIterations: positiveOr(v.GetInt("SCHEDULER_REPAIR_ITERATIONS"), 12),
		JobRetention:     parseDuration(v.GetString("SCHEDULER_JOB_RETENTION"), time.Hour),
	}

	return cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "sma_timetable")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_ENABLED", false)
	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_ISSUER", "")
	v.SetDefault("JWT_AUDIENCE", "")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("DEFAULT_PERIODS_PER_DAY", 8)
	v.SetDefault("DEFAULT_MAX_LOAD_PER_DAY", 6)
	v.SetDefault("LOCK_BACKEND", LockBackendMemory)
	v.SetDefault("WEEK_LOCK_TTL", "30s")
	v.SetDefault("WEEK_LOCK_WAIT", "5s")
	v.SetDefault("TIMETABLE_CACHE_TTL", "5m")
	v.SetDefault("ENABLE_TIMETABLE_CACHE", false)
	v.SetDefault("LOCK_ON_PUBLISH", false)

	v.SetDefault("SCHEDULER_PROPOSAL_TTL", "30m")
	v.SetDefault("SCHEDULER_WORKERS", 2)
	v.SetDefault("SCHEDULER_QUEUE_BUFFER", 16)
	v.SetDefault("SCHEDULER_REPAIR_ITERATIONS", 12)
	v.SetDefault("SCHEDULER_JOB_RETENTION", "1h")
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

func positiveOr(value, fallback int) int {
	if value <= 0 {
		return fallback
	}
	return value
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}
