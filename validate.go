// File: config/validate.go
package config

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

var structValidator = validator.New(validator.WithRequiredStructEnabled())

// Validatable configs run cross-field checks after their fields
// deserialize cleanly. Returned errors surface as validation failures in
// the scan's error bag.
type Validatable interface {
	Validate() error
}

// validateConfig runs the Validatable hook of a single config.
func validateConfig(ctx *deserializeContext, meta *ConfigMetadata, rv reflect.Value) {
	if !rv.CanAddr() {
		return
	}
	v, ok := rv.Addr().Interface().(Validatable)
	if !ok {
		return
	}
	if err := v.Validate(); err != nil {
		ctx.errors.push(&ParseError{
			Inner:    err,
			Path:     string(ctx.path),
			Config:   meta,
			Category: CategoryValidation,
		})
	}
}

// validateTags runs `validate` struct-tag constraints over the whole
// scanned struct, including nested configs, and maps each failure back to
// its config path.
func validateTags(ctx *deserializeContext, meta *ConfigMetadata, rv reflect.Value) {
	err := structValidator.Struct(rv.Interface())
	if err == nil {
		return
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		ctx.errors.push(&ParseError{
			Inner:    err,
			Path:     string(ctx.path),
			Config:   meta,
			Category: CategoryValidation,
		})
		return
	}
	for _, fieldErr := range fieldErrs {
		path, config, param := resolveFieldPath(ctx.path, meta, fieldErr.StructNamespace())
		inner := fmt.Errorf("failed validation rule %q", fieldErr.Tag())
		if fieldErr.Param() != "" {
			inner = fmt.Errorf("failed validation rule %q (%s)", fieldErr.Tag(), fieldErr.Param())
		}
		ctx.errors.push(&ParseError{
			Inner:    inner,
			Path:     string(path),
			Config:   config,
			Param:    param,
			Category: CategoryValidation,
		})
	}
}

// resolveFieldPath maps a validator struct namespace like
// "ServerConfig.Limits.MaxConns" to the config path of the failing param.
func resolveFieldPath(base Pointer, meta *ConfigMetadata, namespace string) (Pointer, *ConfigMetadata, *ParamMetadata) {
	segments := strings.Split(namespace, ".")
	if len(segments) > 0 {
		segments = segments[1:] // drop the root struct name
	}
	path := base
	config := meta
	for i, segment := range segments {
		var matched bool
		for _, param := range config.Params {
			if param.FieldName == segment {
				return path.Join(param.Name), config, param
			}
		}
		for _, nested := range config.NestedConfigs {
			if nested.FieldName == segment {
				path = path.Join(nested.Name)
				config = nested.Meta
				matched = true
				break
			}
		}
		if !matched {
			// Escape-hatch sub-fields and unknown segments keep their
			// struct spelling.
			for _, rest := range segments[i:] {
				path = path.Join(strings.ToLower(rest))
			}
			return path, config, nil
		}
	}
	return path, config, nil
}
