// File: config/units.go
package config

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// ByteSize is an amount of bytes. All multiple-byte units are binary, i.e.
// "kb" and "kib" both mean 1,024 bytes.
type ByteSize uint64

const (
	Kibibyte ByteSize = 1 << 10
	Mebibyte ByteSize = 1 << 20
	Gibibyte ByteSize = 1 << 30
)

func (b ByteSize) String() string {
	switch {
	case b != 0 && b%Gibibyte == 0:
		return fmt.Sprintf("%d GiB", uint64(b/Gibibyte))
	case b != 0 && b%Mebibyte == 0:
		return fmt.Sprintf("%d MiB", uint64(b/Mebibyte))
	case b != 0 && b%Kibibyte == 0:
		return fmt.Sprintf("%d KiB", uint64(b/Kibibyte))
	default:
		return fmt.Sprintf("%d B", uint64(b))
	}
}

// TimeUnit is a duration unit accepted in suffixed strings, single-key
// objects and suffixed param names.
type TimeUnit int

const (
	Milliseconds TimeUnit = iota
	Seconds
	Minutes
	Hours
	Days
	Weeks
)

func (u TimeUnit) nanos() uint64 {
	switch u {
	case Milliseconds:
		return uint64(time.Millisecond)
	case Seconds:
		return uint64(time.Second)
	case Minutes:
		return uint64(time.Minute)
	case Hours:
		return uint64(time.Hour)
	case Days:
		return uint64(24 * time.Hour)
	default:
		return uint64(7 * 24 * time.Hour)
	}
}

func (u TimeUnit) String() string {
	switch u {
	case Milliseconds:
		return "milliseconds"
	case Seconds:
		return "seconds"
	case Minutes:
		return "minutes"
	case Hours:
		return "hours"
	case Days:
		return "days"
	default:
		return "weeks"
	}
}

var timeUnitNames = map[string]TimeUnit{
	"milliseconds": Milliseconds, "millis": Milliseconds, "ms": Milliseconds,
	"seconds": Seconds, "second": Seconds, "secs": Seconds, "sec": Seconds, "s": Seconds,
	"minutes": Minutes, "minute": Minutes, "mins": Minutes, "min": Minutes, "m": Minutes,
	"hours": Hours, "hour": Hours, "hr": Hours, "h": Hours,
	"days": Days, "day": Days, "d": Days,
	"weeks": Weeks, "week": Weeks, "w": Weeks,
}

// SizeUnit is a byte-size unit. Decimal spellings are treated as binary
// multiples.
type SizeUnit int

const (
	Bytes SizeUnit = iota
	KiB
	MiB
	GiB
)

func (u SizeUnit) multiplier() uint64 {
	switch u {
	case Bytes:
		return 1
	case KiB:
		return uint64(Kibibyte)
	case MiB:
		return uint64(Mebibyte)
	default:
		return uint64(Gibibyte)
	}
}

func (u SizeUnit) String() string {
	switch u {
	case Bytes:
		return "bytes"
	case KiB:
		return "KiB"
	case MiB:
		return "MiB"
	default:
		return "GiB"
	}
}

var sizeUnitNames = map[string]SizeUnit{
	"bytes": Bytes, "b": Bytes,
	"kilobytes": KiB, "kb": KiB, "kib": KiB,
	"megabytes": MiB, "mb": MiB, "mib": MiB,
	"gigabytes": GiB, "gb": GiB, "gib": GiB,
}

// splitUnitSuffix splits "128 MiB" into the raw magnitude and the unit
// word. Underscore digit separators are allowed in the magnitude.
func splitUnitSuffix(raw string) (uint64, string, error) {
	raw = strings.TrimSpace(raw)
	boundary := len(raw)
	for i := 0; i < len(raw); i++ {
		c := raw[i]
		if (c < '0' || c > '9') && c != '_' {
			boundary = i
			break
		}
	}
	digits := strings.ReplaceAll(raw[:boundary], "_", "")
	unit := strings.TrimSpace(raw[boundary:])
	if digits == "" || unit == "" {
		return 0, "", fmt.Errorf("expected a value with a unit suffix, like \"30 secs\"; got %q", raw)
	}
	value, err := strconv.ParseUint(digits, 10, 64)
	if err != nil {
		return 0, "", fmt.Errorf("invalid magnitude in %q: %w", raw, err)
	}
	return value, unit, nil
}

// unitKeyName normalizes an object key naming a unit; an "in_" prefix is
// allowed, as in {"in_ms": 500}.
func unitKeyName(key string) string {
	return strings.TrimPrefix(key, "in_")
}

func durationFromUnit(raw uint64, unit TimeUnit) (time.Duration, error) {
	nanos := unit.nanos()
	if raw > math.MaxInt64/nanos {
		return 0, fmt.Errorf("duration of %d %s overflows", raw, unit)
	}
	return time.Duration(raw * nanos), nil
}

func sizeFromUnit(raw uint64, unit SizeUnit) (ByteSize, error) {
	mult := unit.multiplier()
	if raw > math.MaxUint64/mult {
		return 0, fmt.Errorf("size of %d %s overflows", raw, unit)
	}
	return ByteSize(raw * mult), nil
}

func parseDurationString(raw string) (time.Duration, error) {
	value, unitName, err := splitUnitSuffix(raw)
	if err != nil {
		return 0, err
	}
	unit, ok := timeUnitNames[strings.ToLower(unitName)]
	if !ok {
		return 0, fmt.Errorf("unknown duration unit %q", unitName)
	}
	return durationFromUnit(value, unit)
}

func parseSizeString(raw string) (ByteSize, error) {
	value, unitName, err := splitUnitSuffix(raw)
	if err != nil {
		return 0, err
	}
	unit, ok := sizeUnitNames[strings.ToLower(unitName)]
	if !ok {
		return 0, fmt.Errorf("unknown byte size unit %q", unitName)
	}
	return sizeFromUnit(value, unit)
}

// singleUnitEntry unwraps the {"unit": magnitude} object form.
func singleUnitEntry(obj Object) (string, uint64, error) {
	if len(obj) != 1 {
		return "", 0, fmt.Errorf("expected an object with a single unit key, got %d keys", len(obj))
	}
	for key, node := range obj {
		var digits string
		switch v := node.Value.(type) {
		case Number:
			if !v.IsInteger() {
				return "", 0, newTypeError(v, "a non-negative integer").withOriginOf(node)
			}
			digits = string(v)
		case String:
			if v.IsSecret() {
				return "", 0, newTypeError(v, "a non-negative integer").withOriginOf(node)
			}
			digits = v.Expose()
		default:
			return "", 0, newTypeError(v, "a non-negative integer").withOriginOf(node)
		}
		raw, err := strconv.ParseUint(digits, 10, 64)
		if err != nil {
			return "", 0, fmt.Errorf("invalid magnitude for unit %q: %w", key, err)
		}
		return unitKeyName(key), raw, nil
	}
	panic("unreachable")
}

// durationDeserializer deserializes time.Duration params. Without a fixed
// unit it accepts suffixed strings and single-key objects; with one it
// accepts raw integers.
type durationDeserializer struct {
	fixed    TimeUnit
	hasFixed bool
}

func (d durationDeserializer) Expecting() BasicTypes {
	if d.hasFixed {
		return TypeInteger
	}
	return TypeString | TypeObject
}

func (d durationDeserializer) Deserialize(ctx *deserializeContext, value *WithOrigin, param *ParamMetadata) (any, error) {
	switch v := value.Value.(type) {
	case Number:
		if !d.hasFixed {
			return nil, newTypeError(v, "a duration string like \"30 secs\" or an object like {\"hours\": 3}")
		}
		if !v.IsInteger() {
			return nil, newTypeError(v, "a non-negative integer")
		}
		raw, err := v.Uint64()
		if err != nil {
			return nil, fmt.Errorf("invalid duration magnitude: %w", err)
		}
		return durationFromUnit(raw, d.fixed)
	case String:
		if v.IsSecret() {
			return nil, fmt.Errorf("durations cannot be deserialized from secret strings")
		}
		return parseDurationString(v.Expose())
	case Object:
		unitName, raw, err := singleUnitEntry(v)
		if err != nil {
			return nil, err
		}
		unit, ok := timeUnitNames[strings.ToLower(unitName)]
		if !ok {
			return nil, fmt.Errorf("unknown duration unit %q", unitName)
		}
		return durationFromUnit(raw, unit)
	default:
		return nil, newTypeError(v, "a duration")
	}
}

// sizeDeserializer deserializes ByteSize params, mirroring
// durationDeserializer.
type sizeDeserializer struct {
	fixed    SizeUnit
	hasFixed bool
}

func (d sizeDeserializer) Expecting() BasicTypes {
	if d.hasFixed {
		return TypeInteger
	}
	return TypeString | TypeObject
}

func (d sizeDeserializer) Deserialize(ctx *deserializeContext, value *WithOrigin, param *ParamMetadata) (any, error) {
	switch v := value.Value.(type) {
	case Number:
		if !d.hasFixed {
			return nil, newTypeError(v, "a size string like \"128 MiB\" or an object like {\"mb\": 128}")
		}
		if !v.IsInteger() {
			return nil, newTypeError(v, "a non-negative integer")
		}
		raw, err := v.Uint64()
		if err != nil {
			return nil, fmt.Errorf("invalid size magnitude: %w", err)
		}
		return sizeFromUnit(raw, d.fixed)
	case String:
		if v.IsSecret() {
			return nil, fmt.Errorf("byte sizes cannot be deserialized from secret strings")
		}
		return parseSizeString(v.Expose())
	case Object:
		unitName, raw, err := singleUnitEntry(v)
		if err != nil {
			return nil, err
		}
		unit, ok := sizeUnitNames[strings.ToLower(unitName)]
		if !ok {
			return nil, fmt.Errorf("unknown byte size unit %q", unitName)
		}
		return sizeFromUnit(raw, unit)
	default:
		return nil, newTypeError(v, "a byte size")
	}
}
