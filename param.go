// File: config/param.go
package config

import (
	"encoding"
	"fmt"
	"reflect"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
)

// Secret is a string whose contents never appear in rendered output.
// Params of this type only deserialize from string values.
type Secret struct {
	value string
}

// NewSecret wraps a sensitive string.
func NewSecret(value string) Secret { return Secret{value: value} }

// Expose returns the underlying sensitive string.
func (s Secret) Expose() string { return s.value }

func (s Secret) String() string   { return "[REDACTED]" }
func (s Secret) GoString() string { return "[REDACTED]" }

// DeserializeParam converts a raw configuration value into a Go value
// assignable to the param's struct field. Implementations declare the
// structural types they accept via Expecting; the engine uses that both
// for flat-key nesting and for string coercion.
type DeserializeParam interface {
	Expecting() BasicTypes
	Deserialize(ctx *deserializeContext, value *WithOrigin, param *ParamMetadata) (any, error)
}

// exposePlain unwraps a string value, rejecting secrets for params that
// are not marked secret themselves.
func exposePlain(v String) (string, error) {
	if v.IsSecret() {
		return "", fmt.Errorf("refusing to use secret value for a non-secret param")
	}
	return v.Expose(), nil
}

// primitiveDeserializer handles bool, integer, float and string targets.
// Strings parse leniently into scalar targets.
type primitiveDeserializer struct {
	typ reflect.Type
}

func (d primitiveDeserializer) Expecting() BasicTypes {
	switch d.typ.Kind() {
	case reflect.Bool:
		return TypeBool
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return TypeInteger
	case reflect.Float32, reflect.Float64:
		return TypeFloat | TypeInteger
	default:
		return TypeString
	}
}

func (d primitiveDeserializer) Deserialize(ctx *deserializeContext, value *WithOrigin, param *ParamMetadata) (any, error) {
	switch d.typ.Kind() {
	case reflect.Bool:
		switch v := value.Value.(type) {
		case Bool:
			return d.convert(bool(v)), nil
		case String:
			raw, err := exposePlain(v)
			if err != nil {
				return nil, err
			}
			parsed, err := strconv.ParseBool(raw)
			if err != nil {
				return nil, fmt.Errorf("invalid boolean %q", raw)
			}
			return d.convert(parsed), nil
		default:
			return nil, newTypeError(v, "a boolean")
		}

	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		raw, err := d.rawNumber(value.Value)
		if err != nil {
			return nil, err
		}
		parsed, err := strconv.ParseInt(raw, 10, d.typ.Bits())
		if err != nil {
			return nil, fmt.Errorf("invalid integer %q for %s: %w", raw, d.typ, err)
		}
		return d.convert(parsed), nil

	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		raw, err := d.rawNumber(value.Value)
		if err != nil {
			return nil, err
		}
		parsed, err := strconv.ParseUint(raw, 10, d.typ.Bits())
		if err != nil {
			return nil, fmt.Errorf("invalid integer %q for %s: %w", raw, d.typ, err)
		}
		return d.convert(parsed), nil

	case reflect.Float32, reflect.Float64:
		raw, err := d.rawNumber(value.Value)
		if err != nil {
			return nil, err
		}
		parsed, err := strconv.ParseFloat(raw, d.typ.Bits())
		if err != nil {
			return nil, fmt.Errorf("invalid float %q: %w", raw, err)
		}
		return d.convert(parsed), nil

	default:
		v, isStr := value.Value.(String)
		if !isStr {
			return nil, newTypeError(value.Value, "a string")
		}
		raw, err := exposePlain(v)
		if err != nil {
			return nil, err
		}
		return d.convert(raw), nil
	}
}

func (d primitiveDeserializer) rawNumber(v Value) (string, error) {
	switch v := v.(type) {
	case Number:
		return string(v), nil
	case String:
		return exposePlain(v)
	default:
		return "", newTypeError(v, "a number")
	}
}

func (d primitiveDeserializer) convert(v any) any {
	return reflect.ValueOf(v).Convert(d.typ).Interface()
}

// sliceDeserializer handles slices and fixed-length arrays. With a
// delimiter it also accepts delimited strings (e.g. PATH-like lists).
type sliceDeserializer struct {
	typ   reflect.Type
	elem  DeserializeParam
	delim string
}

func (d sliceDeserializer) Expecting() BasicTypes {
	if d.delim != "" {
		return TypeArray | TypeString
	}
	return TypeArray
}

func (d sliceDeserializer) Deserialize(ctx *deserializeContext, value *WithOrigin, param *ParamMetadata) (any, error) {
	items, err := d.items(value)
	if err != nil {
		return nil, err
	}
	if d.typ.Kind() == reflect.Array && len(items) != d.typ.Len() {
		return nil, fmt.Errorf("invalid length %d, expected %d", len(items), d.typ.Len())
	}

	out := reflect.New(d.typ).Elem()
	if d.typ.Kind() == reflect.Slice {
		out = reflect.MakeSlice(d.typ, len(items), len(items))
	}
	errCount := 0
	for i, item := range items {
		elemValue, err := d.elem.Deserialize(ctx, item, param)
		if err != nil {
			ctx.pushRawError(err, ctx.path.Join(strconv.Itoa(i)), item.Origin, param)
			errCount++
			continue
		}
		out.Index(i).Set(reflect.ValueOf(elemValue))
	}
	if errCount > 0 {
		return nil, &errorWithOrigin{
			err:      fmt.Errorf("%d element(s) failed to deserialize", errCount),
			category: CategoryAggregate,
		}
	}
	return out.Interface(), nil
}

func (d sliceDeserializer) items(value *WithOrigin) ([]*WithOrigin, error) {
	switch v := value.Value.(type) {
	case Array:
		return v, nil
	case String:
		if d.delim == "" {
			return nil, newTypeError(v, "an array")
		}
		raw, err := exposePlain(v)
		if err != nil {
			return nil, err
		}
		origin := &SyntheticOrigin{
			Source:    originOrUnknown(value.Origin),
			Transform: fmt.Sprintf("split by %q", d.delim),
		}
		var items []*WithOrigin
		if raw != "" {
			for _, part := range strings.Split(raw, d.delim) {
				items = append(items, NewWithOrigin(PlainString(part), origin))
			}
		}
		return items, nil
	default:
		return nil, newTypeError(v, "an array")
	}
}

// mapDeserializer handles string-keyed maps.
type mapDeserializer struct {
	typ  reflect.Type
	elem DeserializeParam
}

func (d mapDeserializer) Expecting() BasicTypes { return TypeObject }

func (d mapDeserializer) Deserialize(ctx *deserializeContext, value *WithOrigin, param *ParamMetadata) (any, error) {
	obj, isObj := value.Value.(Object)
	if !isObj {
		return nil, newTypeError(value.Value, "an object")
	}
	keys := make([]string, 0, len(obj))
	for key := range obj {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	out := reflect.MakeMapWithSize(d.typ, len(obj))
	errCount := 0
	for _, key := range keys {
		item := obj[key]
		elemValue, err := d.elem.Deserialize(ctx, item, param)
		if err != nil {
			ctx.pushRawError(err, ctx.path.Join(key), item.Origin, param)
			errCount++
			continue
		}
		out.SetMapIndex(reflect.ValueOf(key).Convert(d.typ.Key()), reflect.ValueOf(elemValue))
	}
	if errCount > 0 {
		return nil, &errorWithOrigin{
			err:      fmt.Errorf("%d entry(ies) failed to deserialize", errCount),
			category: CategoryAggregate,
		}
	}
	return out.Interface(), nil
}

// secretDeserializer handles Secret params; only string input is accepted.
type secretDeserializer struct{}

func (secretDeserializer) Expecting() BasicTypes { return TypeString }

func (secretDeserializer) Deserialize(ctx *deserializeContext, value *WithOrigin, param *ParamMetadata) (any, error) {
	v, isStr := value.Value.(String)
	if !isStr {
		return nil, newTypeError(value.Value, "a string")
	}
	return NewSecret(v.Expose()), nil
}

// textDeserializer handles types implementing encoding.TextUnmarshaler,
// e.g. time.Time, net.IP and url.URL.
type textDeserializer struct {
	typ reflect.Type
}

func (d textDeserializer) Expecting() BasicTypes { return TypeString }

func (d textDeserializer) Deserialize(ctx *deserializeContext, value *WithOrigin, param *ParamMetadata) (any, error) {
	v, isStr := value.Value.(String)
	if !isStr {
		return nil, newTypeError(value.Value, "a string")
	}
	raw, err := exposePlain(v)
	if err != nil {
		return nil, err
	}
	target := reflect.New(d.typ)
	unmarshaler := target.Interface().(encoding.TextUnmarshaler)
	if err := unmarshaler.UnmarshalText([]byte(raw)); err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", d.typ, raw, err)
	}
	return target.Elem().Interface(), nil
}

// structDeserializer is the escape hatch for arbitrary types: the value
// subtree is stripped of origins and decoded with mapstructure.
type structDeserializer struct {
	typ reflect.Type
}

func (d structDeserializer) Expecting() BasicTypes { return TypeObject | TypeString }

func (d structDeserializer) Deserialize(ctx *deserializeContext, value *WithOrigin, param *ParamMetadata) (any, error) {
	target := reflect.New(d.typ)
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           target.Interface(),
		TagName:          "config",
		WeaklyTypedInput: true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToTimeHookFunc(time.RFC3339),
			mapstructure.StringToIPHookFunc(),
			mapstructure.StringToIPNetHookFunc(),
			stringToByteSizeHookFunc(),
		),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to construct decoder: %w", err)
	}
	if err := decoder.Decode(plainValue(value)); err != nil {
		return nil, err
	}
	return target.Elem().Interface(), nil
}

// stringToByteSizeHookFunc decodes strings like "128 MiB" into ByteSize
// fields of escape-hatch structs.
func stringToByteSizeHookFunc() mapstructure.DecodeHookFunc {
	return func(from reflect.Type, to reflect.Type, data any) (any, error) {
		if from.Kind() != reflect.String || to != reflect.TypeOf(ByteSize(0)) {
			return data, nil
		}
		return parseSizeString(data.(string))
	}
}

// plainValue strips origins and secrecy, producing the plain Go tree that
// mapstructure understands.
func plainValue(node *WithOrigin) any {
	switch v := node.Value.(type) {
	case Null:
		return nil
	case Bool:
		return bool(v)
	case Number:
		if v.IsInteger() {
			if parsed, err := v.Int64(); err == nil {
				return parsed
			}
		}
		parsed, _ := v.Float64()
		return parsed
	case String:
		return v.Expose()
	case Array:
		items := make([]any, len(v))
		for i, item := range v {
			items[i] = plainValue(item)
		}
		return items
	case Object:
		fields := make(map[string]any, len(v))
		for key, field := range v {
			fields[key] = plainValue(field)
		}
		return fields
	default:
		return nil
	}
}
