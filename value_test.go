// File: config/value_test.go
package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPointerHelpers(t *testing.T) {
	t.Run("segments", func(t *testing.T) {
		assert.Nil(t, Pointer("").Segments())
		assert.Equal(t, []string{"a"}, Pointer("a").Segments())
		assert.Equal(t, []string{"a", "b", "c"}, Pointer("a.b.c").Segments())
	})

	t.Run("join", func(t *testing.T) {
		assert.Equal(t, Pointer("a"), Pointer("").Join("a"))
		assert.Equal(t, Pointer("a.b"), Pointer("a").Join("b"))
		assert.Equal(t, Pointer("a"), Pointer("a").Join(""))
	})

	t.Run("split last", func(t *testing.T) {
		parent, last, ok := Pointer("a.b.c").SplitLast()
		require.True(t, ok)
		assert.Equal(t, Pointer("a.b"), parent)
		assert.Equal(t, "c", last)

		parent, last, ok = Pointer("a").SplitLast()
		require.True(t, ok)
		assert.Equal(t, Pointer(""), parent)
		assert.Equal(t, "a", last)

		_, _, ok = Pointer("").SplitLast()
		assert.False(t, ok)
	})

	t.Run("ancestors", func(t *testing.T) {
		assert.Empty(t, Pointer("").Ancestors())
		assert.Equal(t, []Pointer{""}, Pointer("a").Ancestors())
		assert.Equal(t, []Pointer{"", "a", "a.b"}, Pointer("a.b.c").Ancestors())
	})
}

func TestValueTreeAccess(t *testing.T) {
	tree := NewWithOrigin(Object{
		"server": NewWithOrigin(Object{
			"port": NewWithOrigin(Number("8080"), nil),
		}, nil),
		"flags": NewWithOrigin(Array{
			NewWithOrigin(Bool(true), nil),
		}, nil),
	}, nil)

	assert.NotNil(t, tree.Get("server.port"))
	assert.NotNil(t, tree.Get("flags.0"))
	assert.Nil(t, tree.Get("flags.1"))
	assert.Nil(t, tree.Get("server.host"))
	assert.Nil(t, tree.Get("server.port.deeper"))
	assert.Same(t, tree, tree.Get(""))
}

func TestValueClone(t *testing.T) {
	original := NewWithOrigin(Object{
		"list": NewWithOrigin(Array{NewWithOrigin(PlainString("x"), nil)}, nil),
	}, nil)
	clone := original.Clone()

	obj := clone.Value.(Object)
	obj["list"].Value.(Array)[0].Value = PlainString("mutated")

	got := original.Get("list.0").Value.(String)
	assert.Equal(t, "x", got.Expose(), "clones must not share nodes")
}

func TestEnsureObject(t *testing.T) {
	root := NewWithOrigin(Object{}, nil)
	obj := root.ensureObject("a.b", func(p Pointer) Origin {
		return &SyntheticOrigin{Source: UnknownOrigin{}, Transform: string(p)}
	})
	obj["leaf"] = NewWithOrigin(Bool(true), nil)

	assert.NotNil(t, root.Get("a.b.leaf"))
	created := root.Get("a.b")
	require.NotNil(t, created)
	synth, ok := created.Origin.(*SyntheticOrigin)
	require.True(t, ok)
	assert.Equal(t, "a.b", synth.Transform)
}

func TestSecretStringRendering(t *testing.T) {
	plain := PlainString("visible")
	assert.Equal(t, "visible", plain.String())

	secret := SecretString("hunter2")
	assert.Equal(t, "[REDACTED]", secret.String())
	assert.Equal(t, "hunter2", secret.Expose())
	assert.True(t, secret.IsSecret())
}

func TestValueSupports(t *testing.T) {
	assert.True(t, valueSupports(PlainString("x"), TypeString))
	assert.True(t, valueSupports(PlainString("5"), TypeInteger))
	assert.True(t, valueSupports(Number("5"), TypeInteger|TypeFloat))
	assert.True(t, valueSupports(Number("5"), TypeFloat))
	assert.False(t, valueSupports(Number("5.5"), TypeInteger))
	assert.False(t, valueSupports(PlainString("x"), TypeArray))
	assert.True(t, valueSupports(Null{}, TypeBool))
	assert.True(t, valueSupports(Object{}, TypeObject))
	assert.False(t, valueSupports(Array{}, TypeObject))
}

func TestOriginRendering(t *testing.T) {
	file := &FileOrigin{Name: "app.yaml", Format: "YAML"}
	assert.Equal(t, "YAML file 'app.yaml'", file.String())

	path := &PathOrigin{Source: file, Path: "server.port"}
	assert.Equal(t, "YAML file 'app.yaml' -> path 'server.port'", path.String())

	synth := &SyntheticOrigin{Source: path, Transform: "copy to 'db' per aliasing rules"}
	assert.Equal(t,
		"YAML file 'app.yaml' -> path 'server.port' -> copy to 'db' per aliasing rules",
		synth.String())

	assert.Equal(t, "unknown", UnknownOrigin{}.String())
	assert.Equal(t, "fallback: env var 'X'", (&FallbackOrigin{Description: "env var 'X'"}).String())
}
