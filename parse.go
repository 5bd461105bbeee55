// File: config/parse.go
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"
)

// deserializeContext tracks where in the merged tree and in which config a
// deserializer is operating, and collects every failure instead of
// stopping at the first one.
type deserializeContext struct {
	root   *WithOrigin
	path   Pointer
	config *ConfigMetadata
	errors *ParseErrors
}

func (ctx *deserializeContext) at(path Pointer, config *ConfigMetadata) *deserializeContext {
	return &deserializeContext{root: ctx.root, path: path, config: config, errors: ctx.errors}
}

// pushRawError records a failure, upgrading internal origin-carrying
// errors to full ParseErrors.
func (ctx *deserializeContext) pushRawError(err error, path Pointer, origin Origin, param *ParamMetadata) {
	parseErr := &ParseError{
		Inner:  err,
		Path:   string(path),
		Origin: origin,
		Config: ctx.config,
		Param:  param,
	}
	var inner *errorWithOrigin
	if errors.As(err, &inner) {
		parseErr.Inner = inner.err
		parseErr.Category = inner.category
		if inner.origin != nil {
			parseErr.Origin = inner.origin
		}
	}
	ctx.errors.push(parseErr)
}

func (ctx *deserializeContext) pushNestedError(err error, path Pointer, nested *NestedConfigMetadata) {
	ctx.errors.push(&ParseError{
		Inner:  err,
		Path:   string(path),
		Config: ctx.config,
		Nested: nested,
	})
}

// Scan deserializes the config registered for the target's type. The
// target must be a non-nil struct pointer whose type is mounted exactly
// once in the schema.
func (r *Repository) Scan(target any) error {
	rv, typ, err := checkTarget(target)
	if err != nil {
		return err
	}
	entries := r.schema.entriesForType(typ)
	switch len(entries) {
	case 0:
		return fmt.Errorf("%w: %s", ErrNotRegistered, typ)
	case 1:
		return r.scanEntry(entries[0], rv)
	default:
		return fmt.Errorf("config type %s is mounted at %d locations; use ScanAt", typ, len(entries))
	}
}

// ScanAt deserializes the config mounted at the given canonical prefix
// into the target.
func (r *Repository) ScanAt(prefix string, target any) error {
	rv, typ, err := checkTarget(target)
	if err != nil {
		return err
	}
	for _, data := range r.schema.configsAt(Pointer(prefix)) {
		if data.meta.Type == typ {
			return r.scanEntry(schemaEntry{prefix: Pointer(prefix), data: data}, rv)
		}
	}
	return fmt.Errorf("%w: %s at prefix %q", ErrNotRegistered, typ, prefix)
}

func checkTarget(target any) (reflect.Value, reflect.Type, error) {
	rv := reflect.ValueOf(target)
	if rv.Kind() != reflect.Pointer || rv.IsNil() || rv.Elem().Kind() != reflect.Struct {
		return reflect.Value{}, nil, fmt.Errorf("scan target must be a non-nil struct pointer, got %T", target)
	}
	return rv.Elem(), rv.Elem().Type(), nil
}

func (r *Repository) scanEntry(entry schemaEntry, rv reflect.Value) error {
	errs := &ParseErrors{}
	ctx := &deserializeContext{
		root:   r.merged,
		path:   entry.prefix,
		config: entry.data.meta,
		errors: errs,
	}
	deserializeConfig(ctx, entry.data.meta, rv)
	if errs.Len() == 0 {
		validateTags(ctx, entry.data.meta, rv)
	}
	if errs.Len() > 0 {
		return errs
	}
	return nil
}

// deserializeConfig fills a struct from the subtree at ctx.path. Every
// param is attempted even after failures so that all problems surface in
// one run.
func deserializeConfig(ctx *deserializeContext, meta *ConfigMetadata, rv reflect.Value) {
	node := ctx.root.Get(ctx.path)
	if node != nil {
		switch node.Value.(type) {
		case Object, Null:
		default:
			ctx.errors.push(&ParseError{
				Inner:  fmt.Errorf("invalid type: %s, expected an object", typeName(node.Value)),
				Path:   string(ctx.path),
				Origin: node.Origin,
				Config: meta,
			})
			return
		}
	}

	activeVariant := ""
	if meta.Tag != nil {
		variant, ok := resolveTag(ctx, meta)
		if !ok {
			return
		}
		activeVariant = variant
		rv.Field(meta.Tag.Param.FieldIndex).SetString(variant)
	}

	before := ctx.errors.Len()
	for _, param := range meta.Params {
		if meta.Tag != nil && param == meta.Tag.Param {
			continue
		}
		if param.TagVariant != "" && param.TagVariant != activeVariant {
			continue
		}
		deserializeParamInto(ctx, param, rv.Field(param.FieldIndex))
	}
	for _, nested := range meta.NestedConfigs {
		if nested.TagVariant != "" && nested.TagVariant != activeVariant {
			continue
		}
		field := rv.Field(nested.FieldIndex)
		if field.Kind() == reflect.Pointer {
			if field.IsNil() {
				field.Set(reflect.New(field.Type().Elem()))
			}
			field = field.Elem()
		}
		childPath := ctx.path.Join(nested.Name)
		deserializeConfig(ctx.at(childPath, nested.Meta), nested.Meta, field)
	}

	if ctx.errors.Len() == before {
		validateConfig(ctx, meta, rv)
	}
}

// resolveTag determines the active variant of a tagged config. An
// unresolvable tag produces a single error; variant params are skipped.
func resolveTag(ctx *deserializeContext, meta *ConfigMetadata) (string, bool) {
	tag := meta.Tag
	tagPath := ctx.path.Join(tag.Param.Name)
	node := ctx.root.Get(tagPath)

	var raw string
	switch {
	case node == nil:
		if tag.DefaultVariant == "" {
			ctx.pushRawError(missingFieldError(tag.Param.Name), tagPath, nil, tag.Param)
			return "", false
		}
		raw = tag.DefaultVariant
	default:
		v, isStr := node.Value.(String)
		if !isStr || v.IsSecret() {
			ctx.pushRawError(newTypeError(node.Value, "a plain variant string"), tagPath, node.Origin, tag.Param)
			return "", false
		}
		raw = v.Expose()
	}

	for _, variant := range tag.Variants {
		if variant == raw {
			return raw, true
		}
	}
	var origin Origin
	if node != nil {
		origin = node.Origin
	}
	ctx.pushRawError(
		fmt.Errorf("unknown variant %q, expected one of: %s", raw, strings.Join(tag.Variants, ", ")),
		tagPath, origin, tag.Param,
	)
	return "", false
}

func deserializeParamInto(ctx *deserializeContext, param *ParamMetadata, field reflect.Value) {
	childPath := ctx.path.Join(param.Name)
	node := ctx.root.Get(childPath)
	if node != nil {
		if _, isNull := node.Value.(Null); isNull {
			node = nil
		}
	}

	if node == nil {
		switch {
		case param.Default != nil:
			assignField(field, reflect.ValueOf(param.Default()))
		case param.Optional:
			// Leave the zero value.
		default:
			ctx.pushRawError(missingFieldError(param.Name), childPath, nil, param)
		}
		return
	}

	if coerced := coerceValue(node, param.Deserializer.Expecting()); coerced != nil {
		node = coerced
	}

	result, err := param.Deserializer.Deserialize(ctx.at(childPath, ctx.config), node, param)
	if err != nil {
		ctx.pushRawError(err, childPath, node.Origin, param)
		return
	}
	assignField(field, reflect.ValueOf(result))
}

func assignField(field reflect.Value, result reflect.Value) {
	if field.Kind() == reflect.Pointer && result.Kind() != reflect.Pointer {
		ptr := reflect.New(field.Type().Elem())
		assignField(ptr.Elem(), result)
		field.Set(ptr)
		return
	}
	if result.Type() != field.Type() && result.Type().ConvertibleTo(field.Type()) {
		result = result.Convert(field.Type())
	}
	field.Set(result)
}

// coerceValue applies the string coercion policy: a plain string may stand
// in for a scalar or (via a tentative JSON parse) for an array / object,
// but only when the expected types call for it. Returns nil when no
// coercion applies.
func coerceValue(node *WithOrigin, expecting BasicTypes) *WithOrigin {
	v, isStr := node.Value.(String)
	if !isStr || v.IsSecret() || expecting&TypeString != 0 {
		return nil
	}
	raw := v.Expose()

	if expecting&TypeBool != 0 && (raw == "true" || raw == "false") {
		return NewWithOrigin(Bool(raw == "true"), node.Origin)
	}
	if expecting&(TypeInteger|TypeFloat) != 0 {
		if _, err := strconv.ParseFloat(raw, 64); err == nil {
			return NewWithOrigin(Number(raw), node.Origin)
		}
	}
	if expecting&(TypeArray|TypeObject) != 0 {
		trimmed := strings.TrimSpace(raw)
		if strings.HasPrefix(trimmed, "[") || strings.HasPrefix(trimmed, "{") {
			decoder := json.NewDecoder(strings.NewReader(raw))
			decoder.UseNumber()
			var parsed any
			if err := decoder.Decode(&parsed); err == nil && !decoder.More() {
				origin := &SyntheticOrigin{
					Source:    originOrUnknown(node.Origin),
					Transform: "parsed JSON string",
				}
				converted := convertTree(parsed, func(Pointer) Origin { return origin }, "")
				if t := valueType(converted.Value); t&(TypeArray|TypeObject) != 0 && expecting&t != 0 {
					return converted
				}
			}
		}
	}
	return nil
}
