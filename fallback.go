// File: config/fallback.go
package config

import (
	"fmt"
	"os"
)

// FallbackSource supplies a param value used when no configuration source
// provides one. Fallbacks sit below every source, including defaults'
// priority competitors; a param default still loses to a fallback since
// defaults only apply to absent values.
type FallbackSource interface {
	ProvideValue() (*WithOrigin, bool)
}

// EnvFallback reads a fallback value from the named process environment
// variable at repository construction time.
type EnvFallback string

func (e EnvFallback) ProvideValue() (*WithOrigin, bool) {
	raw, ok := os.LookupEnv(string(e))
	if !ok {
		return nil, false
	}
	origin := &FallbackOrigin{Description: fmt.Sprintf("env var '%s'", string(e))}
	return NewWithOrigin(PlainString(raw), origin), true
}

// CustomFallback adapts a closure into a FallbackSource.
type CustomFallback func() (*WithOrigin, bool)

func (f CustomFallback) ProvideValue() (*WithOrigin, bool) { return f() }

// fallbackLayer is the synthetic source seeded from param fallbacks.
type fallbackLayer struct {
	root Object
}

func (f *fallbackLayer) SourceContents() *SourceContents {
	return &SourceContents{Origin: &FallbackOrigin{}, Tree: f.root}
}

// collectFallbacks gathers fallback values for every param that declares
// one; returns nil when nothing was provided.
func collectFallbacks(schema *ConfigSchema) Source {
	root := NewWithOrigin(Object{}, &FallbackOrigin{})
	count := 0
	for _, entry := range schema.entries {
		for _, param := range entry.data.meta.Params {
			if param.Fallback == nil {
				continue
			}
			value, ok := param.Fallback.ProvideValue()
			if !ok {
				continue
			}
			obj := root.ensureObject(entry.prefix, func(Pointer) Origin { return &FallbackOrigin{} })
			obj[param.Name] = value
			count++
		}
	}
	if count == 0 {
		return nil
	}
	return &fallbackLayer{root: root.Value.(Object)}
}
