// File: config/errors.go
package config

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Registration-time sentinel errors.
var (
	// ErrMountConflict signals that a path is claimed both as a param and
	// as a config prefix, or by params with incompatible expected types.
	ErrMountConflict = errors.New("mounting point conflict")
	// ErrNotRegistered signals that no config matches a Scan target.
	ErrNotRegistered = errors.New("config type not registered in schema")
)

// ErrorCategory classifies a parse error.
type ErrorCategory int

const (
	// CategoryInvalidValue covers type mismatches and unparseable values.
	CategoryInvalidValue ErrorCategory = iota
	// CategoryMissingField covers required params with no value.
	CategoryMissingField
	// CategoryAggregate marks container errors whose element errors are
	// reported individually.
	CategoryAggregate
	// CategoryValidation covers post-parse constraint failures.
	CategoryValidation
)

// ParseError is a single deserialization failure with full context: the
// absolute path, the value origin, and the config/param the failure
// concerns.
type ParseError struct {
	Inner    error
	Path     string
	Origin   Origin
	Category ErrorCategory

	Config *ConfigMetadata
	Param  *ParamMetadata
	Nested *NestedConfigMetadata
}

func (e *ParseError) Error() string {
	var sb strings.Builder
	sb.WriteString("error parsing ")
	switch {
	case e.Param != nil:
		fmt.Fprintf(&sb, "param `%s`", e.Param.Name)
	case e.Nested != nil:
		fmt.Fprintf(&sb, "nested config `%s`", e.Nested.Meta.TypeName())
	default:
		sb.WriteString("value")
	}
	if e.Config != nil {
		fmt.Fprintf(&sb, " in `%s`", e.Config.TypeName())
	}
	if e.Path != "" || e.Config != nil {
		fmt.Fprintf(&sb, " at `%s`", e.Path)
	}
	if e.Origin != nil {
		fmt.Fprintf(&sb, " [origin: %s]", e.Origin)
	}
	fmt.Fprintf(&sb, ": %s", e.Inner)
	return sb.String()
}

func (e *ParseError) Unwrap() error { return e.Inner }

func (e *ParseError) withOrigin(origin Origin) *ParseError {
	if e.Origin == nil {
		e.Origin = origin
	}
	return e
}

func (e *ParseError) withPath(path Pointer) *ParseError {
	if e.Path == "" {
		e.Path = string(path)
	}
	return e
}

// ParseErrors collects every failure from a scan. The reported order is
// unspecified; use Sorted for deterministic display.
type ParseErrors struct {
	errors []*ParseError
}

func (e *ParseErrors) push(err *ParseError) {
	e.errors = append(e.errors, err)
}

// Len returns the number of collected errors; never zero when returned.
func (e *ParseErrors) Len() int { return len(e.errors) }

// All returns the collected errors in insertion order.
func (e *ParseErrors) All() []*ParseError { return e.errors }

// First returns the first collected error.
func (e *ParseErrors) First() *ParseError { return e.errors[0] }

// Sorted returns the errors ordered by path, then message.
func (e *ParseErrors) Sorted() []*ParseError {
	sorted := make([]*ParseError, len(e.errors))
	copy(sorted, e.errors)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Path != sorted[j].Path {
			return sorted[i].Path < sorted[j].Path
		}
		return sorted[i].Inner.Error() < sorted[j].Inner.Error()
	})
	return sorted
}

func (e *ParseErrors) Error() string {
	var sb strings.Builder
	for i, err := range e.errors {
		if i > 0 {
			sb.WriteByte('\n')
		}
		sb.WriteString(err.Error())
	}
	return sb.String()
}

// errorWithOrigin is an internal deserializer failure carrying the origin
// of the offending value; the walker upgrades it to a ParseError.
type errorWithOrigin struct {
	err      error
	origin   Origin
	category ErrorCategory
}

func (e *errorWithOrigin) Error() string { return e.err.Error() }
func (e *errorWithOrigin) Unwrap() error { return e.err }

func (e *errorWithOrigin) withOriginOf(node *WithOrigin) *errorWithOrigin {
	if e.origin == nil && node != nil {
		e.origin = node.Origin
	}
	return e
}

func newTypeError(v Value, expected string) *errorWithOrigin {
	return &errorWithOrigin{
		err: fmt.Errorf("invalid type: %s, expected %s", typeName(v), expected),
	}
}

func missingFieldError(name string) *errorWithOrigin {
	return &errorWithOrigin{
		err:      fmt.Errorf("missing field `%s`", name),
		category: CategoryMissingField,
	}
}
