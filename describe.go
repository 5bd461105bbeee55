// File: config/describe.go
package config

import (
	"encoding"
	"fmt"
	"reflect"
	"strings"
	"time"
	"unicode"
)

var (
	durationType        = reflect.TypeOf(time.Duration(0))
	byteSizeType        = reflect.TypeOf(ByteSize(0))
	secretType          = reflect.TypeOf(Secret{})
	textUnmarshalerType = reflect.TypeOf((*encoding.TextUnmarshaler)(nil)).Elem()
)

// Describe builds config metadata by reflecting over an annotated struct.
// Non-zero field values become param defaults.
//
// Supported tags:
//   - `config:"name[,opt...]"` sets the canonical name (default: the
//     snake_cased field name). Options: `secret`, `flatten`, `tag`,
//     `variant=NAME`, `default=NAME` (default variant, on the tag field),
//     `delim=C` (split strings into slices), `unit=U` (fixed unit for
//     durations/sizes), `raw` (decode the subtree as-is), `-` (skip).
//   - `alias:"a,b"` declares aliases; `deprecated:"old"` declares aliases
//     flagged as deprecated.
//   - `fallback:"ENV_VAR"` reads a lowest-priority value from the process
//     environment.
//   - `help:"..."` attaches a description.
//   - `validate:"..."` constraints run via go-playground/validator after a
//     successful scan.
func Describe(defaults any) (*ConfigMetadata, error) {
	rv := reflect.ValueOf(defaults)
	for rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			rv = reflect.New(rv.Type().Elem()).Elem()
		} else {
			rv = rv.Elem()
		}
	}
	if rv.Kind() != reflect.Struct {
		return nil, fmt.Errorf("config defaults must be a struct or struct pointer, got %T", defaults)
	}
	return describeStruct(rv)
}

// MustDescribe is Describe, panicking on malformed structs.
func MustDescribe(defaults any) *ConfigMetadata {
	meta, err := Describe(defaults)
	if err != nil {
		panic(err)
	}
	return meta
}

type fieldTag struct {
	name     string
	skip     bool
	secret   bool
	flatten  bool
	isTag    bool
	raw      bool
	variant  string
	defVar   string
	delim    string
	unit     string
	explicit bool
}

func parseFieldTag(field reflect.StructField) (fieldTag, error) {
	var parsed fieldTag
	raw, ok := field.Tag.Lookup("config")
	if !ok {
		parsed.name = snakeCase(field.Name)
		return parsed, nil
	}
	parsed.explicit = true
	parts := strings.Split(raw, ",")
	parsed.name = parts[0]
	if parsed.name == "-" && len(parts) == 1 {
		parsed.skip = true
		return parsed, nil
	}
	if parsed.name == "" {
		parsed.name = snakeCase(field.Name)
	}
	for _, opt := range parts[1:] {
		switch {
		case opt == "secret":
			parsed.secret = true
		case opt == "flatten":
			parsed.flatten = true
		case opt == "tag":
			parsed.isTag = true
		case opt == "raw":
			parsed.raw = true
		case strings.HasPrefix(opt, "variant="):
			parsed.variant = strings.TrimPrefix(opt, "variant=")
		case strings.HasPrefix(opt, "default="):
			parsed.defVar = strings.TrimPrefix(opt, "default=")
		case strings.HasPrefix(opt, "delim="):
			parsed.delim = strings.TrimPrefix(opt, "delim=")
		case strings.HasPrefix(opt, "unit="):
			parsed.unit = strings.TrimPrefix(opt, "unit=")
		case opt == "":
		default:
			return parsed, fmt.Errorf("field %s: unknown config tag option %q", field.Name, opt)
		}
	}
	return parsed, nil
}

func parseAliases(field reflect.StructField) []Alias {
	var aliases []Alias
	if raw, ok := field.Tag.Lookup("alias"); ok && raw != "" {
		for _, name := range strings.Split(raw, ",") {
			aliases = append(aliases, Alias{Name: strings.TrimSpace(name)})
		}
	}
	if raw, ok := field.Tag.Lookup("deprecated"); ok && raw != "" {
		for _, name := range strings.Split(raw, ",") {
			aliases = append(aliases, Alias{Name: strings.TrimSpace(name), Deprecated: true})
		}
	}
	return aliases
}

func describeStruct(rv reflect.Value) (*ConfigMetadata, error) {
	typ := rv.Type()
	meta := &ConfigMetadata{Type: typ}
	names := map[string]string{}
	var tagParam *ParamMetadata
	var defaultVariant string

	for i := 0; i < typ.NumField(); i++ {
		field := typ.Field(i)
		if !field.IsExported() {
			continue
		}
		tag, err := parseFieldTag(field)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", typ, err)
		}
		if tag.skip {
			continue
		}
		if field.Anonymous && !tag.explicit {
			tag.flatten = true
		}
		if !tag.flatten {
			if err := validateName(tag.name); err != nil {
				return nil, fmt.Errorf("%s.%s: %w", typ.Name(), field.Name, err)
			}
			if prev, dup := names[tag.name]; dup {
				return nil, fmt.Errorf("%s: fields %s and %s both map to name %q", typ, prev, field.Name, tag.name)
			}
			names[tag.name] = field.Name
		}
		aliases := parseAliases(field)
		for _, alias := range aliases {
			if err := validateName(alias.Name); err != nil {
				return nil, fmt.Errorf("%s.%s: invalid alias: %w", typ.Name(), field.Name, err)
			}
		}

		fieldType := field.Type
		optional := false
		if fieldType.Kind() == reflect.Pointer {
			optional = true
			fieldType = fieldType.Elem()
		}

		if isNestedConfig(fieldType, tag) {
			fieldValue := rv.Field(i)
			if fieldValue.Kind() == reflect.Pointer {
				if fieldValue.IsNil() {
					fieldValue = reflect.New(fieldType).Elem()
				} else {
					fieldValue = fieldValue.Elem()
				}
			}
			nestedMeta, err := describeStruct(fieldValue)
			if err != nil {
				return nil, err
			}
			name := tag.name
			if tag.flatten {
				name = ""
			}
			meta.NestedConfigs = append(meta.NestedConfigs, &NestedConfigMetadata{
				Name:       name,
				Aliases:    aliases,
				Meta:       nestedMeta,
				FieldName:  field.Name,
				FieldIndex: i,
				TagVariant: tag.variant,
			})
			continue
		}

		deserializer, expecting, secret, err := deserializerFor(fieldType, tag)
		if err != nil {
			return nil, fmt.Errorf("%s.%s: %w", typ.Name(), field.Name, err)
		}
		param := &ParamMetadata{
			Name:         tag.name,
			Aliases:      aliases,
			Help:         field.Tag.Get("help"),
			FieldName:    field.Name,
			FieldIndex:   i,
			Expecting:    expecting,
			Deserializer: deserializer,
			Optional:     optional,
			Secret:       secret,
			TagVariant:   tag.variant,
		}
		if fb, ok := field.Tag.Lookup("fallback"); ok && fb != "" {
			param.Fallback = EnvFallback(fb)
		}
		if fieldValue := rv.Field(i); !fieldValue.IsZero() {
			captured := fieldValue.Interface()
			param.Default = func() any { return captured }
		}
		if tag.isTag {
			if fieldType.Kind() != reflect.String {
				return nil, fmt.Errorf("%s.%s: tag param must be a string", typ.Name(), field.Name)
			}
			if tagParam != nil {
				return nil, fmt.Errorf("%s: multiple tag params (%s, %s)", typ, tagParam.FieldName, field.Name)
			}
			tagParam = param
			defaultVariant = tag.defVar
			if defaultVariant == "" && param.Default != nil {
				defaultVariant, _ = param.Default().(string)
			}
		}
		meta.Params = append(meta.Params, param)
	}

	if tagParam != nil {
		variants := collectVariants(meta)
		meta.Tag = &ConfigTag{
			Param:          tagParam,
			Variants:       variants,
			DefaultVariant: defaultVariant,
		}
		if defaultVariant != "" && !containsString(variants, defaultVariant) {
			return nil, fmt.Errorf("%s: default variant %q is not declared by any field", typ, defaultVariant)
		}
	} else {
		for _, param := range meta.Params {
			if param.TagVariant != "" {
				return nil, fmt.Errorf("%s.%s: variant option requires a tag param", typ.Name(), param.FieldName)
			}
		}
	}
	return meta, nil
}

func collectVariants(meta *ConfigMetadata) []string {
	var variants []string
	add := func(name string) {
		if name != "" && !containsString(variants, name) {
			variants = append(variants, name)
		}
	}
	for _, param := range meta.Params {
		add(param.TagVariant)
	}
	for _, nested := range meta.NestedConfigs {
		add(nested.TagVariant)
	}
	return variants
}

func containsString(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}

// isNestedConfig decides between a nested config and a param for a struct
// field: structs nest unless they deserialize as a unit (text-unmarshaling
// types like time.Time, or an explicit `raw` option).
func isNestedConfig(typ reflect.Type, tag fieldTag) bool {
	if typ.Kind() != reflect.Struct || tag.raw {
		return false
	}
	switch typ {
	case secretType:
		return false
	}
	if reflect.PointerTo(typ).Implements(textUnmarshalerType) {
		return false
	}
	return true
}

func deserializerFor(typ reflect.Type, tag fieldTag) (DeserializeParam, BasicTypes, bool, error) {
	switch typ {
	case durationType:
		d := durationDeserializer{}
		if tag.unit != "" {
			unit, ok := timeUnitNames[strings.ToLower(tag.unit)]
			if !ok {
				return nil, 0, false, fmt.Errorf("unknown duration unit %q", tag.unit)
			}
			d = durationDeserializer{fixed: unit, hasFixed: true}
		}
		return d, d.Expecting(), false, nil
	case byteSizeType:
		d := sizeDeserializer{}
		if tag.unit != "" {
			unit, ok := sizeUnitNames[strings.ToLower(tag.unit)]
			if !ok {
				return nil, 0, false, fmt.Errorf("unknown byte size unit %q", tag.unit)
			}
			d = sizeDeserializer{fixed: unit, hasFixed: true}
		}
		return d, d.Expecting(), false, nil
	case secretType:
		return secretDeserializer{}, TypeString, true, nil
	}
	if tag.secret {
		return nil, 0, false, fmt.Errorf("params marked secret must use the Secret type, not %s", typ)
	}
	if tag.raw || (typ.Kind() == reflect.Struct && !reflect.PointerTo(typ).Implements(textUnmarshalerType)) {
		d := structDeserializer{typ: typ}
		return d, d.Expecting(), false, nil
	}
	if reflect.PointerTo(typ).Implements(textUnmarshalerType) && typ.Kind() != reflect.String {
		d := textDeserializer{typ: typ}
		return d, d.Expecting(), false, nil
	}

	switch typ.Kind() {
	case reflect.Bool,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64, reflect.String:
		d := primitiveDeserializer{typ: typ}
		return d, d.Expecting(), false, nil

	case reflect.Slice, reflect.Array:
		elem, _, _, err := deserializerFor(typ.Elem(), fieldTag{})
		if err != nil {
			return nil, 0, false, fmt.Errorf("unsupported element type: %w", err)
		}
		d := sliceDeserializer{typ: typ, elem: elem, delim: tag.delim}
		return d, d.Expecting(), false, nil

	case reflect.Map:
		if typ.Key().Kind() != reflect.String {
			return nil, 0, false, fmt.Errorf("map params require string keys, got %s", typ.Key())
		}
		elem, _, _, err := deserializerFor(typ.Elem(), fieldTag{})
		if err != nil {
			return nil, 0, false, fmt.Errorf("unsupported element type: %w", err)
		}
		d := mapDeserializer{typ: typ, elem: elem}
		return d, d.Expecting(), false, nil

	default:
		return nil, 0, false, fmt.Errorf("unsupported param type %s", typ)
	}
}

// snakeCase converts a Go field name to its canonical config spelling,
// e.g. MaxRetries -> max_retries, HTTPPort -> http_port.
func snakeCase(name string) string {
	var sb strings.Builder
	runes := []rune(name)
	for i, r := range runes {
		if unicode.IsUpper(r) {
			prevLower := i > 0 && (unicode.IsLower(runes[i-1]) || unicode.IsDigit(runes[i-1]))
			nextLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
			if i > 0 && (prevLower || nextLower) {
				sb.WriteByte('_')
			}
			sb.WriteRune(unicode.ToLower(r))
		} else {
			sb.WriteRune(r)
		}
	}
	return sb.String()
}
