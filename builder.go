// File: config/builder.go
package config

import "fmt"

// Builder provides a fluent API for assembling a schema and a repository
// from common sources. Errors are deferred to Build, so calls chain
// without intermediate checks.
type Builder struct {
	schema   *ConfigSchema
	defaults any
	prefix   string
	aliases  []string
	sources  []func() (Source, error)
	err      error
}

// NewBuilder creates a builder with an empty schema.
func NewBuilder() *Builder {
	return &Builder{schema: NewSchema()}
}

// WithSchema replaces the builder's schema, allowing configs registered
// elsewhere to participate.
func (b *Builder) WithSchema(schema *ConfigSchema) *Builder {
	if schema == nil {
		b.fail(fmt.Errorf("schema cannot be nil"))
		return b
	}
	b.schema = schema
	return b
}

// WithDefaults registers an annotated struct; its non-zero field values
// become defaults.
func (b *Builder) WithDefaults(defaults any) *Builder {
	b.defaults = defaults
	return b
}

// WithPrefix mounts the defaults struct at a dotted prefix instead of the
// root.
func (b *Builder) WithPrefix(prefix string) *Builder {
	b.prefix = prefix
	return b
}

// WithAlias mounts the defaults struct under an additional prefix; values
// found there are copied to the canonical location.
func (b *Builder) WithAlias(alias string) *Builder {
	b.aliases = append(b.aliases, alias)
	return b
}

// WithFile loads a config file when Build runs. Sources added later
// override earlier ones.
func (b *Builder) WithFile(path string) *Builder {
	b.sources = append(b.sources, func() (Source, error) {
		return LoadFile(path)
	})
	return b
}

// WithEnv merges process environment variables with the given prefix.
func (b *Builder) WithEnv(prefix string) *Builder {
	b.sources = append(b.sources, func() (Source, error) {
		return OSEnvironment(prefix), nil
	})
	return b
}

// WithEnvVars merges an explicit variable map; useful for tests.
func (b *Builder) WithEnvVars(prefix string, vars map[string]string) *Builder {
	b.sources = append(b.sources, func() (Source, error) {
		return NewEnvironment(prefix, vars), nil
	})
	return b
}

// WithSource merges an arbitrary source.
func (b *Builder) WithSource(source Source) *Builder {
	b.sources = append(b.sources, func() (Source, error) {
		return source, nil
	})
	return b
}

func (b *Builder) fail(err error) {
	if b.err == nil {
		b.err = err
	}
}

// Build registers the defaults, merges every source in order and returns
// the repository.
func (b *Builder) Build() (*Repository, error) {
	if b.err != nil {
		return nil, fmt.Errorf("builder configuration error: %w", b.err)
	}
	if b.defaults != nil {
		meta, err := Describe(b.defaults)
		if err != nil {
			return nil, err
		}
		handle, err := b.schema.Insert(meta, b.prefix)
		if err != nil {
			return nil, err
		}
		for _, alias := range b.aliases {
			if err := handle.PushAlias(alias); err != nil {
				return nil, err
			}
		}
	}
	repo := NewRepository(b.schema)
	for _, load := range b.sources {
		source, err := load()
		if err != nil {
			return nil, err
		}
		repo.With(source)
	}
	return repo, nil
}

// MustBuild is Build, panicking on error.
func (b *Builder) MustBuild() *Repository {
	repo, err := b.Build()
	if err != nil {
		panic(err)
	}
	return repo
}

// BuildAndScan builds the repository and deserializes into the target in
// one call.
func (b *Builder) BuildAndScan(target any) error {
	repo, err := b.Build()
	if err != nil {
		return err
	}
	return repo.Scan(target)
}

// Quick is the one-call path for simple applications: the target's
// current field values act as defaults, an optional config file and
// prefixed env vars override them, and the result lands back in the
// target.
func Quick(target any, envPrefix, configFile string) error {
	b := NewBuilder().WithDefaults(target)
	if configFile != "" {
		b = b.WithFile(configFile)
	}
	if envPrefix != "" {
		b = b.WithEnv(envPrefix)
	}
	return b.BuildAndScan(target)
}
