package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/notifykit/pkg/config"
)

type testConfig struct {
	Addr    string        `env:"TEST_CFG_ADDR" envDefault:":8080"`
	Timeout time.Duration `env:"TEST_CFG_TIMEOUT" envDefault:"5s"`
	Token   string        `env:"TEST_CFG_TOKEN"`
}

type requiredConfig struct {
	Secret string `env:"TEST_CFG_REQUIRED_SECRET,required"`
}

func TestLoad(t *testing.T) {
	t.Run("defaults applied", func(t *testing.T) {
		var cfg testConfig
		require.NoError(t, config.Load(&cfg))
		assert.Equal(t, ":8080", cfg.Addr)
		assert.Equal(t, 5*time.Second, cfg.Timeout)
		assert.Empty(t, cfg.Token)
	})

	t.Run("environment overrides defaults", func(t *testing.T) {
		t.Setenv("TEST_CFG_ADDR", ":9000")
		t.Setenv("TEST_CFG_TIMEOUT", "1m")

		var cfg testConfig
		require.NoError(t, config.Load(&cfg))
		assert.Equal(t, ":9000", cfg.Addr)
		assert.Equal(t, time.Minute, cfg.Timeout)
	})

	t.Run("nil destination", func(t *testing.T) {
		err := config.Load[testConfig](nil)
		assert.ErrorIs(t, err, config.ErrNilPointer)
	})

	t.Run("missing required variable", func(t *testing.T) {
		var cfg requiredConfig
		err := config.Load(&cfg)
		assert.ErrorIs(t, err, config.ErrParsingConfig)
	})
}

func TestMustLoad(t *testing.T) {
	t.Run("panics on missing required variable", func(t *testing.T) {
		assert.Panics(t, func() {
			var cfg requiredConfig
			config.MustLoad(&cfg)
		})
	})

	t.Run("returns loaded config", func(t *testing.T) {
		t.Setenv("TEST_CFG_REQUIRED_SECRET", "s3cret")

		var cfg requiredConfig
		assert.NotPanics(t, func() { config.MustLoad(&cfg) })
		assert.Equal(t, "s3cret", cfg.Secret)
	})
}
