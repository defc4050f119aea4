package app

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/yungbote/asset-registry/internal/platform/envutil"
	"github.com/yungbote/asset-registry/internal/platform/logger"
)

// Config is read from CONFIG_FILE (YAML) when set, then overridden by the
// environment.
type Config struct {
	LogMode string `yaml:"log_mode"`
	Port    string `yaml:"port"`

	DBDriver         string `yaml:"db_driver"`
	PostgresHost     string `yaml:"postgres_host"`
	PostgresPort     string `yaml:"postgres_port"`
	PostgresUser     string `yaml:"postgres_user"`
	PostgresPassword string `yaml:"postgres_password"`
	PostgresName     string `yaml:"postgres_name"`
	SQLitePath       string `yaml:"sqlite_path"`

	RedisAddr     string `yaml:"redis_addr"`
	RedisPassword string `yaml:"redis_password"`
	RedisDB       int    `yaml:"redis_db"`

	MutexTTL            time.Duration `yaml:"mutex_ttl"`
	MutexWait           time.Duration `yaml:"mutex_wait"`
	LockPreparedTimeout time.Duration `yaml:"lock_prepared_timeout"`
	OpPreparedTimeout   time.Duration `yaml:"op_prepared_timeout"`

	ServiceJWTSecret string        `yaml:"service_jwt_secret"`
	ShutdownGrace    time.Duration `yaml:"shutdown_grace"`
	CORSOrigins      []string      `yaml:"cors_origins"`

	MetricsAddr string `yaml:"metrics_addr"`
	Environment string `yaml:"environment"`
	Version     string `yaml:"version"`
}

func defaultConfig() Config {
	return Config{
		LogMode:             "development",
		Port:                "8080",
		DBDriver:            "postgres",
		PostgresHost:        "localhost",
		PostgresPort:        "5432",
		PostgresUser:        "postgres",
		PostgresName:        "registry",
		MutexTTL:            10 * time.Second,
		MutexWait:           3 * time.Second,
		LockPreparedTimeout: 5 * time.Minute,
		OpPreparedTimeout:   5 * time.Minute,
		ShutdownGrace:       10 * time.Second,
		Environment:         "development",
	}
}

// LoadConfig never fails on a missing variable. An unreadable or malformed
// CONFIG_FILE is an error.
func LoadConfig(log *logger.Logger) (Config, error) {
	cfg := defaultConfig()
	if path := strings.TrimSpace(os.Getenv("CONFIG_FILE")); path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config file %s: %w", path, err)
		}
		if log != nil {
			log.Info("config file loaded", "path", path)
		}
	}
	applyEnv(&cfg)
	if cfg.ServiceJWTSecret == "" && log != nil {
		log.Warn("SERVICE_JWT_SECRET is empty; authenticated routes will reject every token")
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	cfg.LogMode = envutil.String("LOG_MODE", cfg.LogMode)
	cfg.Port = envutil.String("PORT", cfg.Port)

	cfg.DBDriver = envutil.String("DB_DRIVER", cfg.DBDriver)
	cfg.PostgresHost = envutil.String("POSTGRES_HOST", cfg.PostgresHost)
	cfg.PostgresPort = envutil.String("POSTGRES_PORT", cfg.PostgresPort)
	cfg.PostgresUser = envutil.String("POSTGRES_USER", cfg.PostgresUser)
	cfg.PostgresPassword = envutil.String("POSTGRES_PASSWORD", cfg.PostgresPassword)
	cfg.PostgresName = envutil.String("POSTGRES_NAME", cfg.PostgresName)
	cfg.SQLitePath = envutil.String("SQLITE_PATH", cfg.SQLitePath)

	cfg.RedisAddr = envutil.String("REDIS_ADDR", cfg.RedisAddr)
	cfg.RedisPassword = envutil.String("REDIS_PASSWORD", cfg.RedisPassword)
	cfg.RedisDB = envutil.Int("REDIS_DB", cfg.RedisDB)

	cfg.MutexTTL = envutil.Duration("MUTEX_TTL", cfg.MutexTTL)
	cfg.MutexWait = envutil.Duration("MUTEX_WAIT", cfg.MutexWait)
	cfg.LockPreparedTimeout = envutil.Duration("LOCK_PREPARED_TIMEOUT", cfg.LockPreparedTimeout)
	cfg.OpPreparedTimeout = envutil.Duration("OP_PREPARED_TIMEOUT", cfg.OpPreparedTimeout)

	cfg.ServiceJWTSecret = envutil.String("SERVICE_JWT_SECRET", cfg.ServiceJWTSecret)
	cfg.ShutdownGrace = envutil.Duration("SHUTDOWN_GRACE", cfg.ShutdownGrace)
	if v := envutil.String("CORS_ORIGINS", ""); v != "" {
		cfg.CORSOrigins = splitList(v)
	}

	cfg.MetricsAddr = envutil.String("METRICS_ADDR", cfg.MetricsAddr)
	cfg.Environment = envutil.String("ENVIRONMENT", cfg.Environment)
	cfg.Version = envutil.String("VERSION", cfg.Version)
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
