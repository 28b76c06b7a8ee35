package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/fjod/go_cart/order-core/internal/repository"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/sirupsen/logrus"
)

type Config struct {
	HTTPPort        string        `envconfig:"HTTP_PORT"        default:"8080"`
	RequestTimeout  time.Duration `envconfig:"REQUEST_TIMEOUT"  default:"30s"`
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"10s"`
	LogLevel        string        `envconfig:"LOG_LEVEL"        default:"info"`

	DBHost         string `envconfig:"DB_HOST"         default:"localhost"`
	DBPort         int    `envconfig:"DB_PORT"         default:"5432"`
	DBUser         string `envconfig:"DB_USER"         required:"true"`
	DBPassword     string `envconfig:"DB_PASSWORD"     required:"true"`
	DBName         string `envconfig:"DB_NAME"         required:"true"`
	MigrationsPath string `envconfig:"MIGRATIONS_PATH" default:"./internal/repository/migrations"`

	RedisAddr      string        `envconfig:"REDIS_ADDR"      default:"localhost:6379"`
	RedisPassword  string        `envconfig:"REDIS_PASSWORD"`
	IdempotencyTTL time.Duration `envconfig:"IDEMPOTENCY_TTL" default:"24h"`

	// Empty disables the outbox publisher.
	KafkaBrokers []string `envconfig:"KAFKA_BROKERS"`
	OutboxTopic  string   `envconfig:"OUTBOX_TOPIC" default:"order-events"`
}

// Load reads an optional .env file from the working directory and then the
// process environment. Values already set in the environment win.
func Load(logger logrus.FieldLogger) (*Config, error) {
	err := godotenv.Load()
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		logger.Warnf("Error loading .env file (but continuing): %v", err)
	} else if err == nil {
		logger.Info("Loaded configuration from .env file")
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("process configuration: %w", err)
	}

	logger.WithFields(logrus.Fields{
		"http_port":       cfg.HTTPPort,
		"db_host":         cfg.DBHost,
		"redis_addr":      cfg.RedisAddr,
		"kafka_brokers":   cfg.KafkaBrokers,
		"outbox_topic":    cfg.OutboxTopic,
		"idempotency_ttl": cfg.IdempotencyTTL.String(),
	}).Info("configuration loaded")
	return &cfg, nil
}

func (c *Config) Credentials() *repository.Credentials {
	return &repository.Credentials{
		Host:              c.DBHost,
		Port:              c.DBPort,
		User:              c.DBUser,
		Password:          c.DBPassword,
		DBName:            c.DBName,
		MigrationsDirPath: c.MigrationsPath,
	}
}

func (c *Config) PublishingEnabled() bool {
	return len(c.KafkaBrokers) > 0
}
