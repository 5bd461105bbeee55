// File: config/fallback_test.go
package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fallbackConfig struct {
	Token   string `config:"token" fallback:"LEGACY_API_TOKEN"`
	Retries int    `config:"retries"`
}

func TestEnvFallback(t *testing.T) {
	newSchema := func(t *testing.T) *ConfigSchema {
		schema := NewSchema()
		schema.MustInsert(MustDescribe(fallbackConfig{Retries: 3}), "")
		return schema
	}

	t.Run("fills an absent param", func(t *testing.T) {
		t.Setenv("LEGACY_API_TOKEN", "from_legacy")

		repo := NewRepository(newSchema(t))
		var cfg fallbackConfig
		require.NoError(t, repo.Scan(&cfg))
		assert.Equal(t, "from_legacy", cfg.Token)

		node := repo.Merged().Get("token")
		require.NotNil(t, node)
		assert.Equal(t, "fallback: env var 'LEGACY_API_TOKEN'", node.Origin.String())
	})

	t.Run("loses to any real source", func(t *testing.T) {
		t.Setenv("LEGACY_API_TOKEN", "from_legacy")

		repo := NewRepository(newSchema(t)).
			With(mustJSON(t, `{"token": "from_file"}`))

		var cfg fallbackConfig
		require.NoError(t, repo.Scan(&cfg))
		assert.Equal(t, "from_file", cfg.Token)
	})

	t.Run("unset variable contributes nothing", func(t *testing.T) {
		repo := NewRepository(newSchema(t)).
			With(mustJSON(t, `{}`))

		var cfg fallbackConfig
		err := repo.Scan(&cfg)
		require.Error(t, err, "token has no default and no fallback value")
		var errs *ParseErrors
		require.ErrorAs(t, err, &errs)
		require.Equal(t, 1, errs.Len())
		assert.Equal(t, CategoryMissingField, errs.First().Category)
	})
}

func TestCustomFallback(t *testing.T) {
	provided := CustomFallback(func() (*WithOrigin, bool) {
		origin := &FallbackOrigin{Description: "instance metadata"}
		return NewWithOrigin(PlainString("eu-west-1"), origin), true
	})
	value, ok := provided.ProvideValue()
	require.True(t, ok)
	str, isString := value.Value.(String)
	require.True(t, isString)
	assert.Equal(t, "eu-west-1", str.Expose())
	assert.Equal(t, "fallback: instance metadata", value.Origin.String())
}
