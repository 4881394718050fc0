package config

import (
	"fmt"
	"time"

	pkgconfig "github.com/mertkaradayi/bookcart/pkg/config"
)

// Config holds the cart service configuration, loaded from environment
// variables.
type Config struct {
	ServiceName string `env:"SERVICE_NAME" envDefault:"cart-service"`
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`

	HTTP    HTTPConfig
	Redis   RedisConfig
	Kafka   KafkaConfig
	Cart    CartConfig
	Tracing TracingConfig
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int           `env:"HTTP_PORT" envDefault:"8003"`
	ReadTimeout     time.Duration `env:"HTTP_READ_TIMEOUT" envDefault:"10s"`
	WriteTimeout    time.Duration `env:"HTTP_WRITE_TIMEOUT" envDefault:"10s"`
	IdleTimeout     time.Duration `env:"HTTP_IDLE_TIMEOUT" envDefault:"60s"`
	ShutdownTimeout time.Duration `env:"HTTP_SHUTDOWN_TIMEOUT" envDefault:"15s"`
}

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	Addr     string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	Password string `env:"REDIS_PASSWORD" envDefault:""`
	DB       int    `env:"REDIS_DB" envDefault:"0"`
}

// KafkaConfig holds Kafka producer settings.
type KafkaConfig struct {
	Brokers []string `env:"KAFKA_BROKERS" envSeparator:"," envDefault:"localhost:9092"`
}

// CartConfig holds cart domain settings.
type CartConfig struct {
	TTL time.Duration `env:"CART_TTL" envDefault:"168h"`
}

// TracingConfig holds OpenTelemetry settings.
type TracingConfig struct {
	Enabled      bool    `env:"TRACING_ENABLED" envDefault:"false"`
	OTLPEndpoint string  `env:"OTLP_ENDPOINT" envDefault:"localhost:4318"`
	SampleRate   float64 `env:"TRACING_SAMPLE_RATE" envDefault:"1.0"`
}

// Load reads configuration from the environment.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := pkgconfig.Load(cfg); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.HTTP.Port < 1 || c.HTTP.Port > 65535 {
		return fmt.Errorf("invalid HTTP_PORT: %d", c.HTTP.Port)
	}
	if c.Cart.TTL <= 0 {
		return fmt.Errorf("CART_TTL must be positive, got %s", c.Cart.TTL)
	}
	if len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("KAFKA_BROKERS must not be empty")
	}
	return nil
}
