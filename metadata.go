// File: config/metadata.go
package config

import (
	"fmt"
	"reflect"
	"strings"
)

// BasicTypes is a bitmask of structural value types a parameter can accept.
type BasicTypes uint8

const (
	TypeBool BasicTypes = 1 << iota
	TypeInteger
	TypeFloat
	TypeString
	TypeArray
	TypeObject

	// TypeAny accepts every structural type.
	TypeAny = TypeBool | TypeInteger | TypeFloat | TypeString | TypeArray | TypeObject
)

// Contains reports whether every type in other is accepted.
func (t BasicTypes) Contains(other BasicTypes) bool { return t&other == other }

// Intersect narrows to the types accepted by both masks.
func (t BasicTypes) Intersect(other BasicTypes) BasicTypes { return t & other }

func (t BasicTypes) String() string {
	if t == 0 {
		return "none"
	}
	var parts []string
	for _, entry := range []struct {
		flag BasicTypes
		name string
	}{
		{TypeBool, "boolean"},
		{TypeInteger, "integer"},
		{TypeFloat, "float"},
		{TypeString, "string"},
		{TypeArray, "array"},
		{TypeObject, "object"},
	} {
		if t&entry.flag != 0 {
			parts = append(parts, entry.name)
		}
	}
	return strings.Join(parts, " | ")
}

// Alias is an alternative name for a parameter or nested config. Deprecated
// aliases still resolve but are meant to be phased out.
type Alias struct {
	Name       string
	Deprecated bool
}

// ParamMetadata describes a single configuration parameter.
type ParamMetadata struct {
	// Name is the canonical name within the enclosing config.
	Name    string
	Aliases []Alias
	Help    string

	// FieldName and FieldIndex locate the backing struct field.
	FieldName  string
	FieldIndex int

	// Expecting is the set of structural types the deserializer accepts.
	Expecting BasicTypes
	// Deserializer converts a raw value into the field's Go value.
	Deserializer DeserializeParam
	// Default produces the default value; nil means the param is required.
	Default func() any
	// Optional params resolve to the zero value when absent and defaultless.
	Optional bool
	// Secret params only accept string input and mark their values secret.
	Secret bool
	// Fallback supplies a lowest-priority value when no source provides one.
	Fallback FallbackSource
	// TagVariant restricts the param to one variant of a tagged config.
	TagVariant string
}

// DefaultValue returns the default, or nil when the param is required.
func (p *ParamMetadata) DefaultValue() any {
	if p.Default == nil {
		return nil
	}
	return p.Default()
}

// NestedConfigMetadata describes a config embedded in another config. An
// empty Name means the nested params are flattened into the parent
// namespace.
type NestedConfigMetadata struct {
	Name       string
	Aliases    []Alias
	Meta       *ConfigMetadata
	FieldName  string
	FieldIndex int
	TagVariant string
}

// ConfigTag describes the discriminant of a tagged config: the param
// holding the variant name plus the known variants.
type ConfigTag struct {
	Param          *ParamMetadata
	Variants       []string
	DefaultVariant string
}

// ConfigMetadata describes a configuration struct: its params and nested
// configs, keyed by the Go type that produced it.
type ConfigMetadata struct {
	// Type identifies the config; one schema mounts a type at most once.
	Type          reflect.Type
	Help          string
	Params        []*ParamMetadata
	NestedConfigs []*NestedConfigMetadata
	// Tag is non-nil for tagged (variant-switched) configs.
	Tag *ConfigTag
}

// TypeName renders the config's Go type for error messages.
func (c *ConfigMetadata) TypeName() string {
	if c.Type == nil {
		return "<unknown>"
	}
	return c.Type.Name()
}

func (c *ConfigMetadata) paramByName(name string) *ParamMetadata {
	for _, param := range c.Params {
		if param.Name == name {
			return param
		}
	}
	return nil
}

// validateName checks a param/config name or alias at registration time.
// Names are non-empty ASCII snake_case segments without dots: dots are path
// separators, and underscores must stay unambiguous for flat-key matching.
func validateName(name string) error {
	if name == "" {
		return fmt.Errorf("name must not be empty")
	}
	for i := 0; i < len(name); i++ {
		c := name[i]
		isLower := c >= 'a' && c <= 'z'
		isDigit := c >= '0' && c <= '9'
		if !isLower && !isDigit && c != '_' {
			return fmt.Errorf("name %q contains invalid char %q; use lowercase ASCII letters, digits and underscores", name, c)
		}
	}
	if name[0] >= '0' && name[0] <= '9' {
		return fmt.Errorf("name %q must not start with a digit", name)
	}
	return nil
}

// validatePrefix checks a dotted mount prefix; the empty prefix mounts at
// the root.
func validatePrefix(prefix string) error {
	if prefix == "" {
		return nil
	}
	for _, segment := range strings.Split(prefix, ".") {
		if err := validateName(segment); err != nil {
			return fmt.Errorf("invalid prefix %q: %w", prefix, err)
		}
	}
	return nil
}
