package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/redraftlabs/redraft/pkg/config"
)

type serverConfig struct {
	Addr         string        `env:"TEST_SERVER_ADDR" envDefault:":8080"`
	ReadTimeout  time.Duration `env:"TEST_SERVER_READ_TIMEOUT" envDefault:"10s"`
	Environment  string        `env:"TEST_SERVER_ENV" envDefault:"development"`
	WebhookToken string        `env:"TEST_SERVER_WEBHOOK_TOKEN,required,notEmpty"`
}

func TestLoad(t *testing.T) {
	t.Setenv("TEST_SERVER_ADDR", ":9090")
	t.Setenv("TEST_SERVER_WEBHOOK_TOKEN", "secret")

	var cfg serverConfig
	require.NoError(t, config.Load(&cfg))

	assert.Equal(t, ":9090", cfg.Addr)
	assert.Equal(t, 10*time.Second, cfg.ReadTimeout)
	assert.Equal(t, "development", cfg.Environment)
	assert.Equal(t, "secret", cfg.WebhookToken)
}

func TestLoadMissingRequired(t *testing.T) {
	t.Setenv("TEST_SERVER_WEBHOOK_TOKEN", "")

	var cfg serverConfig
	err := config.Load(&cfg)
	assert.ErrorIs(t, err, config.ErrParsingConfig)
}

func TestLoadNilPointer(t *testing.T) {
	t.Parallel()

	err := config.Load[serverConfig](nil)
	assert.ErrorIs(t, err, config.ErrNilPointer)
}
