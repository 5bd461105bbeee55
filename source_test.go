// File: config/source_test.go
package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnvironmentSource(t *testing.T) {
	env := NewEnvironment("MYAPP_", map[string]string{
		"MYAPP_SERVER_PORT": "8080",
		"MYAPP_DEBUG":       "true",
		"OTHER_VAR":         "ignored",
		"MYAPP_":            "ignored",
	})
	contents := env.SourceContents()
	require.NotNil(t, contents.Flat)

	require.Len(t, contents.Flat, 2)
	entry := contents.Flat["server_port"]
	assert.Equal(t, "8080", entry.Value)
	assert.Equal(t, "env variable 'MYAPP_SERVER_PORT'", entry.Origin.String())
	assert.Equal(t, "env variables", contents.Origin.String())
}

func TestParseJSONKeepsNumbersTextual(t *testing.T) {
	tree, err := ParseJSON("app.json", []byte(`{"big": 9007199254740993, "nested": {"x": 1.5}}`))
	require.NoError(t, err)

	big, ok := tree.root["big"].Value.(Number)
	require.True(t, ok)
	assert.Equal(t, "9007199254740993", string(big))
	assert.True(t, big.IsInteger())

	nested, ok := tree.root["nested"].Value.(Object)
	require.True(t, ok)
	x, ok := nested["x"].Value.(Number)
	require.True(t, ok)
	assert.False(t, x.IsInteger())
	assert.Equal(t, "JSON file 'app.json' -> path 'nested.x'", nested["x"].Origin.String())
}

func TestParseYAML(t *testing.T) {
	raw := []byte("server:\n  host: localhost\n  port: 8080\nflags:\n  - a\n  - b\n")
	tree, err := ParseYAML("app.yaml", raw)
	require.NoError(t, err)

	server, ok := tree.root["server"].Value.(Object)
	require.True(t, ok)
	host, ok := server["host"].Value.(String)
	require.True(t, ok)
	assert.Equal(t, "localhost", host.Expose())
	port, ok := server["port"].Value.(Number)
	require.True(t, ok)
	assert.Equal(t, "8080", string(port))

	flags, ok := tree.root["flags"].Value.(Array)
	require.True(t, ok)
	require.Len(t, flags, 2)
	assert.Equal(t, "YAML file 'app.yaml' -> path 'flags.1'", flags[1].Origin.String())
}

func TestParseTOML(t *testing.T) {
	raw := []byte("[server]\nhost = \"localhost\"\nport = 8080\nratio = 0.25\n")
	tree, err := ParseTOML("app.toml", raw)
	require.NoError(t, err)

	server, ok := tree.root["server"].Value.(Object)
	require.True(t, ok)
	port, ok := server["port"].Value.(Number)
	require.True(t, ok)
	assert.Equal(t, "8080", string(port))
	ratio, ok := server["ratio"].Value.(Number)
	require.True(t, ok)
	assert.False(t, ratio.IsInteger())
}

func TestLoadFileFormatDetection(t *testing.T) {
	dir := t.TempDir()

	write := func(name, contents string) string {
		path := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
		return path
	}

	t.Run("by extension", func(t *testing.T) {
		tree, err := LoadFile(write("a.json", `{"x": 1}`))
		require.NoError(t, err)
		assert.NotNil(t, tree.root["x"])

		tree, err = LoadFile(write("b.yml", "x: 1\n"))
		require.NoError(t, err)
		assert.NotNil(t, tree.root["x"])

		tree, err = LoadFile(write("c.toml", "x = 1\n"))
		require.NoError(t, err)
		assert.NotNil(t, tree.root["x"])
	})

	t.Run("by content", func(t *testing.T) {
		tree, err := LoadFile(write("no_ext_json", `{"x": 1}`))
		require.NoError(t, err)
		assert.NotNil(t, tree.root["x"])

		tree, err = LoadFile(write("no_ext_toml", "x = 1\n"))
		require.NoError(t, err)
		assert.NotNil(t, tree.root["x"])
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := LoadFile(filepath.Join(dir, "absent.yaml"))
		assert.Error(t, err)
	})
}

func TestPrefixedSource(t *testing.T) {
	inner, err := ParseJSON("db.json", []byte(`{"url": "postgres://x"}`))
	require.NoError(t, err)

	schema := NewSchema()
	schema.MustInsert(MustDescribe(aliasedDB{}), "db")

	repo := NewRepository(schema).With(Prefixed(inner, "db"))
	var cfg aliasedDB
	require.NoError(t, repo.Scan(&cfg))
	assert.Equal(t, "postgres://x", cfg.URL)

	// Leaf origins survive the wrapping.
	node := repo.Merged().Get("db.url")
	require.NotNil(t, node)
	assert.Equal(t, "JSON file 'db.json' -> path 'url'", node.Origin.String())
}
