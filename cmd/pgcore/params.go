package main

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/oriys/pgcore/postgres/codec"
)

const timestampLayout = "2006-01-02 15:04:05.999999"

// parseParam turns a "type:value" flag into a bindable Go value. A bare
// value without a known type prefix is bound as text.
func parseParam(s string) (any, error) {
	if strings.EqualFold(s, "null") {
		return nil, nil
	}
	typ, val, ok := strings.Cut(s, ":")
	if !ok {
		return s, nil
	}

	switch strings.ToLower(typ) {
	case "null":
		return nil, nil
	case "text":
		return val, nil
	case "int2", "smallint":
		n, err := strconv.ParseInt(val, 10, 16)
		return int16(n), wrapParam(typ, val, err)
	case "int4", "int", "integer":
		n, err := strconv.ParseInt(val, 10, 32)
		return int32(n), wrapParam(typ, val, err)
	case "int8", "bigint":
		n, err := strconv.ParseInt(val, 10, 64)
		return n, wrapParam(typ, val, err)
	case "float4", "real":
		f, err := strconv.ParseFloat(val, 32)
		return float32(f), wrapParam(typ, val, err)
	case "float8", "double":
		f, err := strconv.ParseFloat(val, 64)
		return f, wrapParam(typ, val, err)
	case "bool":
		b, err := strconv.ParseBool(val)
		return b, wrapParam(typ, val, err)
	case "char":
		if len(val) != 1 {
			return nil, fmt.Errorf("param %s: want exactly one byte, got %q", typ, val)
		}
		return val[0], nil
	case "bytea":
		b, err := hex.DecodeString(strings.TrimPrefix(strings.TrimPrefix(val, `\x`), "0x"))
		return b, wrapParam(typ, val, err)
	case "date":
		t, err := time.Parse(time.DateOnly, val)
		return codec.DateOf(t), wrapParam(typ, val, err)
	case "timestamp":
		t, err := time.Parse(timestampLayout, val)
		return codec.TimestampOf(t), wrapParam(typ, val, err)
	case "timestamptz":
		t, err := time.Parse(time.RFC3339Nano, val)
		return codec.TimestampTZOf(t), wrapParam(typ, val, err)
	case "time":
		t, err := time.Parse("15:04:05.999999", val)
		if err != nil {
			return nil, wrapParam(typ, val, err)
		}
		midnight := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
		return codec.NewTime(t.Sub(midnight).Microseconds()), nil
	case "interval":
		d, err := time.ParseDuration(val)
		return codec.NewInterval(d.Microseconds(), 0, 0), wrapParam(typ, val, err)
	default:
		return s, nil
	}
}

func wrapParam(typ, val string, err error) error {
	if err != nil {
		return fmt.Errorf("param %s:%q: %w", typ, val, err)
	}
	return nil
}

// formatValue renders a decoded cell for terminal output.
func formatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return "NULL"
	case []byte:
		return `\x` + hex.EncodeToString(x)
	case byte:
		return string(rune(x))
	default:
		return fmt.Sprint(x)
	}
}
