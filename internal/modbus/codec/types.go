package codec

// Register data types and value dispatch.

import (
	"fmt"
	"math"
	"strings"
)

// Type names the interpretation of one or more registers (or one coil).
type Type string

const (
	TypeBit    Type = "bit"
	TypeByte   Type = "byte"
	TypeInt16  Type = "int16"
	TypeUint16 Type = "uint16"
	TypeInt32  Type = "int32"
	TypeUint32 Type = "uint32"
	TypeInt64  Type = "int64"
	TypeUint64 Type = "uint64"
	TypeFloat  Type = "float"
	TypeDouble Type = "double"
	TypeString Type = "string"
)

// ParseType accepts the canonical names plus the float32/float64 spellings.
func ParseType(s string) (Type, error) {
	switch t := Type(strings.ToLower(strings.TrimSpace(s))); t {
	case TypeBit, TypeByte, TypeInt16, TypeUint16, TypeInt32, TypeUint32,
		TypeInt64, TypeUint64, TypeFloat, TypeDouble, TypeString:
		return t, nil
	case "float32", "real":
		return TypeFloat, nil
	case "float64":
		return TypeDouble, nil
	case "bool", "coil":
		return TypeBit, nil
	default:
		return "", fmt.Errorf("unknown data type %q", s)
	}
}

// Registers returns the number of registers a value of type t occupies.
// Strings are variable length and report 0; see StringRegisters.
func (t Type) Registers() int {
	switch t {
	case TypeBit, TypeByte, TypeInt16, TypeUint16:
		return 1
	case TypeInt32, TypeUint32, TypeFloat:
		return 2
	case TypeInt64, TypeUint64, TypeDouble:
		return 4
	default:
		return 0
	}
}

// StringRegisters returns ceil(byteLength/2), never less than one.
func StringRegisters(byteLength int) int {
	n := (byteLength + 1) / 2
	if n < 1 {
		return 1
	}
	return n
}

// Encode converts value to the wire bytes of numeric type t.
// Bit, byte and string types are not register-encodable scalars and fail.
func Encode(value any, t Type, e Endianness) ([]byte, error) {
	buf := make([]byte, 2*t.Registers())
	switch t {
	case TypeInt16:
		v, err := toInt64(value, math.MinInt16, math.MaxInt16)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", t, err)
		}
		PutInt16(buf, int16(v), e)
	case TypeUint16:
		v, err := toUint64(value, math.MaxUint16)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", t, err)
		}
		PutUint16(buf, uint16(v), e)
	case TypeInt32:
		v, err := toInt64(value, math.MinInt32, math.MaxInt32)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", t, err)
		}
		PutInt32(buf, int32(v), e)
	case TypeUint32:
		v, err := toUint64(value, math.MaxUint32)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", t, err)
		}
		PutUint32(buf, uint32(v), e)
	case TypeInt64:
		v, err := toInt64(value, math.MinInt64, math.MaxInt64)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", t, err)
		}
		PutInt64(buf, v, e)
	case TypeUint64:
		v, err := toUint64(value, math.MaxUint64)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", t, err)
		}
		PutUint64(buf, v, e)
	case TypeFloat:
		v, err := toFloat64(value)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", t, err)
		}
		if !math.IsInf(v, 0) && !math.IsNaN(v) && math.Abs(v) > math.MaxFloat32 {
			return nil, fmt.Errorf("%s: value %v out of range", t, v)
		}
		PutFloat32(buf, float32(v), e)
	case TypeDouble:
		v, err := toFloat64(value)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", t, err)
		}
		PutFloat64(buf, v, e)
	default:
		return nil, fmt.Errorf("type %q cannot be encoded as a register value", t)
	}
	return buf, nil
}

// Decode converts the leading bytes of b into the Go value for numeric type t.
func Decode(b []byte, t Type, e Endianness) (any, error) {
	switch t {
	case TypeInt16:
		return Int16(b, e)
	case TypeUint16:
		return Uint16(b, e)
	case TypeInt32:
		return Int32(b, e)
	case TypeUint32:
		return Uint32(b, e)
	case TypeInt64:
		return Int64(b, e)
	case TypeUint64:
		return Uint64(b, e)
	case TypeFloat:
		return Float32(b, e)
	case TypeDouble:
		return Float64(b, e)
	default:
		return nil, fmt.Errorf("type %q cannot be decoded as a register value", t)
	}
}

func toInt64(value any, lo, hi int64) (int64, error) {
	var v int64
	switch n := value.(type) {
	case int:
		v = int64(n)
	case int8:
		v = int64(n)
	case int16:
		v = int64(n)
	case int32:
		v = int64(n)
	case int64:
		v = n
	case uint:
		if uint64(n) > math.MaxInt64 {
			return 0, fmt.Errorf("value %d out of range [%d, %d]", n, lo, hi)
		}
		v = int64(n)
	case uint8:
		v = int64(n)
	case uint16:
		v = int64(n)
	case uint32:
		v = int64(n)
	case uint64:
		if n > math.MaxInt64 {
			return 0, fmt.Errorf("value %d out of range [%d, %d]", n, lo, hi)
		}
		v = int64(n)
	case float32:
		return toInt64(float64(n), lo, hi)
	case float64:
		if n != math.Trunc(n) || n < math.MinInt64 || n >= math.MaxInt64 {
			return 0, fmt.Errorf("value %v is not an integer", n)
		}
		v = int64(n)
	default:
		return 0, fmt.Errorf("unsupported value type %T", value)
	}
	if v < lo || v > hi {
		return 0, fmt.Errorf("value %d out of range [%d, %d]", v, lo, hi)
	}
	return v, nil
}

func toUint64(value any, hi uint64) (uint64, error) {
	var v uint64
	switch n := value.(type) {
	case uint:
		v = uint64(n)
	case uint8:
		v = uint64(n)
	case uint16:
		v = uint64(n)
	case uint32:
		v = uint64(n)
	case uint64:
		v = n
	case float32:
		return toUint64(float64(n), hi)
	case float64:
		if n != math.Trunc(n) || n < 0 || n >= math.MaxUint64 {
			return 0, fmt.Errorf("value %v is not an unsigned integer", n)
		}
		v = uint64(n)
	default:
		s, err := toInt64(value, 0, math.MaxInt64)
		if err != nil {
			return 0, err
		}
		v = uint64(s)
	}
	if v > hi {
		return 0, fmt.Errorf("value %d out of range [0, %d]", v, hi)
	}
	return v, nil
}

func toFloat64(value any) (float64, error) {
	switch n := value.(type) {
	case float32:
		return float64(n), nil
	case float64:
		return n, nil
	default:
		v, err := toInt64(value, math.MinInt64, math.MaxInt64)
		if err != nil {
			return 0, err
		}
		return float64(v), nil
	}
}
