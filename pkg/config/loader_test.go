package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testConfig struct {
	Port     int      `env:"TEST_LOADER_PORT" envDefault:"8080"`
	LogLevel string   `env:"TEST_LOADER_LOG_LEVEL" envDefault:"info"`
	Brokers  []string `env:"TEST_LOADER_BROKERS" envDefault:"localhost:9092" envSeparator:","`
}

func TestLoad_Defaults(t *testing.T) {
	var cfg testConfig
	require.NoError(t, Load(&cfg))

	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, []string{"localhost:9092"}, cfg.Brokers)
}

func TestLoad_FromEnvironment(t *testing.T) {
	t.Setenv("TEST_LOADER_PORT", "9000")
	t.Setenv("TEST_LOADER_BROKERS", "k1:9092,k2:9092")

	var cfg testConfig
	require.NoError(t, Load(&cfg))

	assert.Equal(t, 9000, cfg.Port)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Brokers)
}

func TestLoad_InvalidValue(t *testing.T) {
	t.Setenv("TEST_LOADER_PORT", "not-a-number")

	var cfg testConfig
	err := Load(&cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse config")
}
