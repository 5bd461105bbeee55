// File: config/validate_test.go
package config

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type validatedLimits struct {
	MaxConns int `config:"max_conns" validate:"min=1"`
}

type validatedServer struct {
	Port   uint16          `config:"port" validate:"min=1024"`
	Host   string          `config:"host" validate:"required"`
	Limits validatedLimits `config:"limits"`
}

func TestValidateTags(t *testing.T) {
	schema := NewSchema()
	schema.MustInsert(MustDescribe(validatedServer{Limits: validatedLimits{MaxConns: 10}}), "server")

	t.Run("passing values produce no errors", func(t *testing.T) {
		repo := NewRepository(schema).
			With(mustJSON(t, `{"server": {"port": 8080, "host": "localhost"}}`))

		var cfg validatedServer
		require.NoError(t, repo.Scan(&cfg))
	})

	t.Run("failures map back to config paths", func(t *testing.T) {
		repo := NewRepository(schema).
			With(mustJSON(t, `{"server": {"port": 80, "host": "x", "limits": {"max_conns": 0}}}`))

		var cfg validatedServer
		err := repo.Scan(&cfg)
		require.Error(t, err)

		var errs *ParseErrors
		require.ErrorAs(t, err, &errs)
		require.Equal(t, 2, errs.Len())

		sorted := errs.Sorted()
		assert.Equal(t, "server.limits.max_conns", sorted[0].Path)
		assert.Equal(t, CategoryValidation, sorted[0].Category)
		assert.Equal(t, "server.port", sorted[1].Path)
		assert.Contains(t, sorted[1].Error(), `failed validation rule "min" (1024)`)
		require.NotNil(t, sorted[1].Param)
		assert.Equal(t, "port", sorted[1].Param.Name)
	})

	t.Run("deserialization errors suppress tag validation", func(t *testing.T) {
		repo := NewRepository(schema).
			With(mustJSON(t, `{"server": {"port": "junk", "host": "x"}}`))

		var cfg validatedServer
		err := repo.Scan(&cfg)
		require.Error(t, err)

		var errs *ParseErrors
		require.ErrorAs(t, err, &errs)
		for _, parseErr := range errs.All() {
			assert.NotEqual(t, CategoryValidation, parseErr.Category)
		}
	})
}

type replicationConfig struct {
	Primary string `config:"primary"`
	Standby string `config:"standby"`
}

var errSameNode = errors.New("primary and standby must differ")

func (c *replicationConfig) Validate() error {
	if c.Primary == c.Standby {
		return errSameNode
	}
	return nil
}

func TestValidatableHook(t *testing.T) {
	schema := NewSchema()
	schema.MustInsert(MustDescribe(replicationConfig{}), "repl")

	t.Run("cross-field check runs after a clean parse", func(t *testing.T) {
		repo := NewRepository(schema).
			With(mustJSON(t, `{"repl": {"primary": "a", "standby": "a"}}`))

		var cfg replicationConfig
		err := repo.Scan(&cfg)
		require.Error(t, err)

		var errs *ParseErrors
		require.ErrorAs(t, err, &errs)
		require.Equal(t, 1, errs.Len())
		first := errs.First()
		assert.Equal(t, CategoryValidation, first.Category)
		assert.Equal(t, "repl", first.Path)
		assert.ErrorIs(t, first, errSameNode)
	})

	t.Run("distinct nodes pass", func(t *testing.T) {
		repo := NewRepository(schema).
			With(mustJSON(t, `{"repl": {"primary": "a", "standby": "b"}}`))

		var cfg replicationConfig
		require.NoError(t, repo.Scan(&cfg))
	})
}
