// Package codec converts between Go values and the PostgreSQL wire
// representation of the types this client supports.
//
// Parameters are always sent in binary format. Results are decoded from
// binary format, or from text format when the server answered a
// simple-protocol command.
//
// Supported Go types and their server types:
//
//	int16        int2
//	int32        int4
//	int64, int   int8
//	float32      float4
//	float64      float8
//	bool         bool
//	byte         "char"
//	string       text (decodes from text, varchar, bpchar, name, unknown, json)
//	[]byte       bytea
//	Date         date
//	Timestamp    timestamp
//	TimestampTZ  timestamptz
//	Time         time
//	TimeTZ       timetz
//	Interval     interval
//
// Numeric values travel in network byte order, floats in IEEE-754 layout and
// booleans as a single byte. Text and bytea are the raw bytes with no framing
// and no transcoding.
package codec

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/lib/pq/oid"
)

// Format codes as used by the extended query protocol.
const (
	TextFormat   int16 = 0
	BinaryFormat int16 = 1
)

// ErrNull is returned when decoding a NULL cell into a non-nullable type.
var ErrNull = errors.New("codec: cannot decode NULL")

// Value lists the Go types Decode can produce.
type Value interface {
	int16 | int32 | int64 | int | float32 | float64 | bool | byte | string | []byte |
		Date | Timestamp | TimestampTZ | Time | TimeTZ | Interval
}

// TypeMismatchError reports a Go type that has no mapping to the server type
// at hand, or a malformed cell for that mapping.
type TypeMismatchError struct {
	OID    oid.Oid
	GoType string
	Reason string
}

func (e *TypeMismatchError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("type mismatch: %s (oid %d) as %s: %s", TypeName(e.OID), uint32(e.OID), e.GoType, e.Reason)
	}
	return fmt.Sprintf("type mismatch: cannot decode %s (oid %d) into %s", TypeName(e.OID), uint32(e.OID), e.GoType)
}

// TypeName returns the lower case server name of a type OID.
func TypeName(typ oid.Oid) string {
	if name, ok := oid.TypeName[typ]; ok {
		return strings.ToLower(name)
	}
	return strconv.FormatUint(uint64(typ), 10)
}

// toInt narrows an int8 cell to int. On 32-bit platforms values outside the
// int range are a TypeMismatchError rather than being truncated.
func toInt(n int64) (int, error) {
	if int64(int(n)) != n {
		return 0, &TypeMismatchError{
			OID:    oid.T_int8,
			GoType: "int",
			Reason: fmt.Sprintf("%d overflows a %d-bit int", n, strconv.IntSize),
		}
	}
	return int(n), nil
}

var textOIDs = []oid.Oid{oid.T_text, oid.T_varchar, oid.T_bpchar, oid.T_name, oid.T_unknown, oid.T_json}

// accepts reports whether a cell of type typ may be decoded into want.
func accepts(want any, typ oid.Oid) bool {
	switch want.(type) {
	case int16:
		return typ == oid.T_int2
	case int32:
		return typ == oid.T_int4
	case int64, int:
		return typ == oid.T_int8
	case float32:
		return typ == oid.T_float4
	case float64:
		return typ == oid.T_float8
	case bool:
		return typ == oid.T_bool
	case byte:
		return typ == oid.T_char
	case string:
		for _, t := range textOIDs {
			if typ == t {
				return true
			}
		}
		return false
	case []byte:
		return typ == oid.T_bytea
	case Date:
		return typ == oid.T_date
	case Timestamp:
		return typ == oid.T_timestamp
	case TimestampTZ:
		return typ == oid.T_timestamptz
	case Time:
		return typ == oid.T_time
	case TimeTZ:
		return typ == oid.T_timetz
	case Interval:
		return typ == oid.T_interval
	}
	return false
}

// Decode converts a result cell into T. src is nil for SQL NULL.
func Decode[T Value](typ oid.Oid, format int16, src []byte) (T, error) {
	var zero T
	if !accepts(any(zero), typ) {
		return zero, &TypeMismatchError{OID: typ, GoType: fmt.Sprintf("%T", zero)}
	}
	if src == nil {
		return zero, ErrNull
	}

	var (
		v   any
		err error
	)
	if format == TextFormat {
		v, err = decodeText(any(zero), typ, src)
	} else {
		v, err = decodeBinary(any(zero), src)
	}
	if err != nil {
		return zero, withOID(err, typ)
	}
	return v.(T), nil
}

func withOID(err error, typ oid.Oid) error {
	var tm *TypeMismatchError
	if errors.As(err, &tm) && tm.OID == 0 {
		tm.OID = typ
	}
	return err
}

// DecodeAny decodes a cell into the natural Go type for its server type.
// Unknown types come back as string in text format and []byte in binary.
func DecodeAny(typ oid.Oid, format int16, src []byte) (any, error) {
	if src == nil {
		return nil, nil
	}
	var want any
	switch typ {
	case oid.T_int2:
		want = int16(0)
	case oid.T_int4:
		want = int32(0)
	case oid.T_int8:
		want = int64(0)
	case oid.T_float4:
		want = float32(0)
	case oid.T_float8:
		want = float64(0)
	case oid.T_bool:
		want = false
	case oid.T_char:
		want = byte(0)
	case oid.T_bytea:
		want = []byte(nil)
	case oid.T_date:
		want = Date{}
	case oid.T_timestamp:
		want = Timestamp{}
	case oid.T_timestamptz:
		want = TimestampTZ{}
	case oid.T_time:
		want = Time{}
	case oid.T_timetz:
		want = TimeTZ{}
	case oid.T_interval:
		want = Interval{}
	default:
		if format == TextFormat || accepts("", typ) {
			return string(src), nil
		}
		return append([]byte(nil), src...), nil
	}
	var (
		v   any
		err error
	)
	if format == TextFormat {
		v, err = decodeText(want, typ, src)
	} else {
		v, err = decodeBinary(want, src)
	}
	if err != nil {
		return nil, withOID(err, typ)
	}
	return v, nil
}
