package config

import (
	"errors"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database  DatabaseConfig
	Redis     RedisConfig
	Auth      AuthConfig
	CORS      CORSConfig
	Log       LogConfig
	Scheduler SchedulerConfig
	Cache     CacheConfig
	Exports   ExportsConfig
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
	Host     string
	Port     int
	Password string
	DB       int
}

// AuthConfig gates the admin guard on mutating endpoints. Credentials are
// deployment configuration, not database state.
type AuthConfig struct {
	Enabled           bool
	JWTSecret         string
	Expiration        time.Duration
	RefreshExpiration time.Duration
	AdminUsername     string
	AdminPasswordHash string
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// SchedulerConfig exposes the soft-constraint weights of the timetable
// engine. Lower scores win; the defaults keep back-to-back avoidance
// dominant over the spread terms.
type SchedulerConfig struct {
	WeightSubjectSpread float64
	WeightTeacherSpread float64
	WeightConsecutive   float64
	WeightPeriodRepeat  float64
}

// CacheConfig tunes read-through caching of the heavy GET endpoints.
type CacheConfig struct {
	TimetableTTL time.Duration
	AnalyticsTTL time.Duration
}

// ExportsConfig configures asynchronous timetable export generation.
type ExportsConfig struct {
	StorageDir        string
	SignedURLSecret   string
	SignedURLTTL      time.Duration
	CleanupInterval   time.Duration
	Retention         time.Duration
	WorkerConcurrency int
	WorkerRetries     int
	QueueSize         int
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
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

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
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.Auth = AuthConfig{
		Enabled:           v.GetBool("AUTH_ENABLED"),
		JWTSecret:         v.GetString("JWT_SECRET"),
		Expiration:        parseDuration(v.GetString("JWT_EXPIRATION"), 24*time.Hour),
		RefreshExpiration: parseDuration(v.GetString("REFRESH_TOKEN_EXPIRATION"), 7*24*time.Hour),
		AdminUsername:     v.GetString("ADMIN_USERNAME"),
		AdminPasswordHash: v.GetString("ADMIN_PASSWORD_HASH"),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Scheduler = SchedulerConfig{
		WeightSubjectSpread: v.GetFloat64("SCHEDULER_WEIGHT_SUBJECT_SPREAD"),
		WeightTeacherSpread: v.GetFloat64("SCHEDULER_WEIGHT_TEACHER_SPREAD"),
		WeightConsecutive:   v.GetFloat64("SCHEDULER_WEIGHT_CONSECUTIVE"),
		WeightPeriodRepeat:  v.GetFloat64("SCHEDULER_WEIGHT_PERIOD_REPEAT"),
	}

	cfg.Cache = CacheConfig{
		TimetableTTL: parseDuration(v.GetString("TIMETABLE_CACHE_TTL"), 5*time.Minute),
		AnalyticsTTL: parseDuration(v.GetString("ANALYTICS_CACHE_TTL"), 10*time.Minute),
	}

	cfg.Exports = ExportsConfig{
		StorageDir:        v.GetString("EXPORTS_STORAGE_DIR"),
		SignedURLSecret:   v.GetString("EXPORTS_SIGNED_URL_SECRET"),
		SignedURLTTL:      parseDuration(v.GetString("EXPORTS_SIGNED_URL_TTL"), 24*time.Hour),
		CleanupInterval:   parseDuration(v.GetString("EXPORTS_CLEANUP_INTERVAL"), time.Hour),
		Retention:         parseDuration(v.GetString("EXPORTS_RETENTION"), 72*time.Hour),
		WorkerConcurrency: v.GetInt("EXPORTS_WORKER_CONCURRENCY"),
		WorkerRetries:     v.GetInt("EXPORTS_WORKER_RETRIES"),
		QueueSize:         v.GetInt("EXPORTS_QUEUE_SIZE"),
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "amdraipt_timetable")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("AUTH_ENABLED", false)
	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_EXPIRATION", "24h")
	v.SetDefault("REFRESH_TOKEN_EXPIRATION", "168h")
	v.SetDefault("ADMIN_USERNAME", "admin")
	v.SetDefault("ADMIN_PASSWORD_HASH", "")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("SCHEDULER_WEIGHT_SUBJECT_SPREAD", 5.0)
	v.SetDefault("SCHEDULER_WEIGHT_TEACHER_SPREAD", 3.0)
	v.SetDefault("SCHEDULER_WEIGHT_CONSECUTIVE", 20.0)
	v.SetDefault("SCHEDULER_WEIGHT_PERIOD_REPEAT", 6.0)

	v.SetDefault("TIMETABLE_CACHE_TTL", "5m")
	v.SetDefault("ANALYTICS_CACHE_TTL", "10m")

	v.SetDefault("EXPORTS_STORAGE_DIR", "./exports")
	v.SetDefault("EXPORTS_SIGNED_URL_SECRET", "dev_exports_secret")
	v.SetDefault("EXPORTS_SIGNED_URL_TTL", "24h")
	v.SetDefault("EXPORTS_CLEANUP_INTERVAL", "1h")
	v.SetDefault("EXPORTS_RETENTION", "72h")
	v.SetDefault("EXPORTS_WORKER_CONCURRENCY", 2)
	v.SetDefault("EXPORTS_WORKER_RETRIES", 3)
	v.SetDefault("EXPORTS_QUEUE_SIZE", 64)
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
