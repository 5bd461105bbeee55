// File: config/builder_test.go
package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type appConfig struct {
	Host    string   `config:"host"`
	Port    uint16   `config:"port"`
	Workers int      `config:"workers"`
	Tags    []string `config:"tags,delim=;"`
}

func TestBuilderLayering(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "app.json")
	require.NoError(t, os.WriteFile(file, []byte(`{"app": {"host": "file-host", "port": 9090}}`), 0o644))

	var cfg appConfig
	err := NewBuilder().
		WithDefaults(appConfig{Host: "localhost", Port: 8080, Workers: 4}).
		WithPrefix("app").
		WithFile(file).
		WithEnvVars("MYAPP_", map[string]string{
			"MYAPP_APP_PORT": "7070",
			"MYAPP_APP_TAGS": "a;b",
		}).
		BuildAndScan(&cfg)
	require.NoError(t, err)

	assert.Equal(t, "file-host", cfg.Host, "file overrides the default")
	assert.Equal(t, uint16(7070), cfg.Port, "env overrides the file")
	assert.Equal(t, 4, cfg.Workers, "untouched params keep their defaults")
	assert.Equal(t, []string{"a", "b"}, cfg.Tags)
}

func TestBuilderAlias(t *testing.T) {
	var cfg aliasedDB
	err := NewBuilder().
		WithDefaults(aliasedDB{}).
		WithPrefix("db").
		WithAlias("postgres").
		WithSource(mustJSON(t, `{"postgres": {"url": "postgres://aliased"}}`)).
		BuildAndScan(&cfg)
	require.NoError(t, err)
	assert.Equal(t, "postgres://aliased", cfg.URL)
}

func TestBuilderErrors(t *testing.T) {
	t.Run("nil schema", func(t *testing.T) {
		_, err := NewBuilder().WithSchema(nil).Build()
		assert.Error(t, err)
	})

	t.Run("invalid defaults", func(t *testing.T) {
		_, err := NewBuilder().WithDefaults(42).Build()
		assert.Error(t, err)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := NewBuilder().
			WithDefaults(appConfig{}).
			WithFile(filepath.Join(t.TempDir(), "absent.yaml")).
			Build()
		assert.Error(t, err)
	})

	t.Run("mount conflict", func(t *testing.T) {
		schema := NewSchema()
		schema.MustInsert(MustDescribe(basicServer{}), "app")
		_, err := NewBuilder().
			WithSchema(schema).
			WithDefaults(appConfig{}).
			WithPrefix("app.port").
			Build()
		assert.ErrorIs(t, err, ErrMountConflict)
	})
}

func TestQuick(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "app.yaml")
	require.NoError(t, os.WriteFile(file, []byte("host: yaml-host\n"), 0o644))

	t.Setenv("QUICK_PORT", "6060")

	cfg := appConfig{Host: "localhost", Port: 8080, Workers: 2, Tags: []string{"web"}}
	require.NoError(t, Quick(&cfg, "QUICK_", file))

	assert.Equal(t, "yaml-host", cfg.Host)
	assert.Equal(t, uint16(6060), cfg.Port)
	assert.Equal(t, 2, cfg.Workers)
	assert.Equal(t, []string{"web"}, cfg.Tags)
}

func TestQuickWithoutFile(t *testing.T) {
	cfg := appConfig{Host: "localhost", Port: 8080, Workers: 1, Tags: []string{"web"}}
	require.NoError(t, Quick(&cfg, "NOSUCHPREFIX_", ""))
	assert.Equal(t, "localhost", cfg.Host)
}
