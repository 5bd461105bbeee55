// File: config/origin.go
package config

import "fmt"

// Origin describes where a configuration value came from. Origins form
// chains (e.g. a path inside a file, or a synthetic copy of an env var)
// and are attached to every node of a value tree.
//
// The set of origins is closed; external code inspects origins via type
// switches or the rendered String() form.
type Origin interface {
	fmt.Stringer
	isOrigin()
}

// UnknownOrigin is the zero origin used when provenance is not known.
type UnknownOrigin struct{}

func (UnknownOrigin) isOrigin()      {}
func (UnknownOrigin) String() string { return "unknown" }

// EnvVarsOrigin marks values sourced from environment variables as a group.
// Individual variables are wrapped in a PathOrigin referencing this origin.
type EnvVarsOrigin struct{}

func (EnvVarsOrigin) isOrigin()      {}
func (EnvVarsOrigin) String() string { return "env variables" }

// FileOrigin marks values sourced from a configuration file.
type FileOrigin struct {
	Name   string
	Format string
}

func (o *FileOrigin) isOrigin() {}

func (o *FileOrigin) String() string {
	return fmt.Sprintf("%s file '%s'", o.Format, o.Name)
}

// FallbackOrigin marks values produced by a parameter fallback.
type FallbackOrigin struct {
	// Description names the fallback, e.g. "env var 'APP_PORT'".
	Description string
}

func (o *FallbackOrigin) isOrigin() {}

func (o *FallbackOrigin) String() string {
	if o.Description == "" {
		return "fallback"
	}
	return "fallback: " + o.Description
}

// PathOrigin drills down into a structured source: a dotted path within a
// file, or a variable name within the environment.
type PathOrigin struct {
	Source Origin
	Path   string
}

func (o *PathOrigin) isOrigin() {}

func (o *PathOrigin) String() string {
	if _, isEnv := o.Source.(EnvVarsOrigin); isEnv {
		return fmt.Sprintf("env variable '%s'", o.Path)
	}
	return fmt.Sprintf("%s -> path '%s'", o.Source, o.Path)
}

// SyntheticOrigin marks values derived from another value by an engine
// transform (alias copying, key nesting, string-to-JSON coercion etc.).
type SyntheticOrigin struct {
	Source    Origin
	Transform string
}

func (o *SyntheticOrigin) isOrigin() {}

func (o *SyntheticOrigin) String() string {
	return fmt.Sprintf("%s -> %s", o.Source, o.Transform)
}

// originOrUnknown normalizes nil origins so that rendering never panics.
func originOrUnknown(o Origin) Origin {
	if o == nil {
		return UnknownOrigin{}
	}
	return o
}
