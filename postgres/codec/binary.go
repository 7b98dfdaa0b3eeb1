package codec

import (
	"encoding/binary"
	"fmt"
	"math"
	"time"

	"github.com/lib/pq/oid"
)

// Encode returns the server type and binary encoding of v. A nil v is SQL
// NULL with an unspecified type, left for the server to infer.
func Encode(v any) (oid.Oid, []byte, error) {
	switch v := v.(type) {
	case nil:
		return 0, nil, nil
	case int16:
		return oid.T_int2, binary.BigEndian.AppendUint16(nil, uint16(v)), nil
	case int32:
		return oid.T_int4, binary.BigEndian.AppendUint32(nil, uint32(v)), nil
	case int64:
		return oid.T_int8, binary.BigEndian.AppendUint64(nil, uint64(v)), nil
	case int:
		return oid.T_int8, binary.BigEndian.AppendUint64(nil, uint64(int64(v))), nil
	case float32:
		return oid.T_float4, binary.BigEndian.AppendUint32(nil, math.Float32bits(v)), nil
	case float64:
		return oid.T_float8, binary.BigEndian.AppendUint64(nil, math.Float64bits(v)), nil
	case bool:
		if v {
			return oid.T_bool, []byte{1}, nil
		}
		return oid.T_bool, []byte{0}, nil
	case byte:
		return oid.T_char, []byte{v}, nil
	case string:
		return oid.T_text, []byte(v), nil
	case []byte:
		if v == nil {
			return oid.T_bytea, nil, nil
		}
		return oid.T_bytea, v, nil
	case Date:
		return oid.T_date, binary.BigEndian.AppendUint32(nil, uint32(dateToWire(v.days))), nil
	case Timestamp:
		return oid.T_timestamp, binary.BigEndian.AppendUint64(nil, uint64(microsToWire(v.micros))), nil
	case TimestampTZ:
		return oid.T_timestamptz, binary.BigEndian.AppendUint64(nil, uint64(microsToWire(v.micros))), nil
	case time.Time:
		return oid.T_timestamptz, binary.BigEndian.AppendUint64(nil, uint64(microsToWire(v.UnixMicro()))), nil
	case Time:
		return oid.T_time, binary.BigEndian.AppendUint64(nil, uint64(v.micros)), nil
	case TimeTZ:
		buf := binary.BigEndian.AppendUint64(make([]byte, 0, 12), uint64(v.micros))
		// The wire zone counts seconds west of Greenwich.
		return oid.T_timetz, binary.BigEndian.AppendUint32(buf, uint32(-v.offset)), nil
	case Interval:
		buf := binary.BigEndian.AppendUint64(make([]byte, 0, 16), uint64(v.micros))
		buf = binary.BigEndian.AppendUint32(buf, uint32(v.days))
		return oid.T_interval, binary.BigEndian.AppendUint32(buf, uint32(v.months)), nil
	}
	return 0, nil, &TypeMismatchError{GoType: fmt.Sprintf("%T", v), Reason: "unsupported parameter type"}
}

func dateToWire(days int32) int32 {
	if days == math.MaxInt32 || days == math.MinInt32 {
		return days
	}
	return days - DaysUnixToJ2000Epoch
}

func dateFromWire(days int32) int32 {
	if days == math.MaxInt32 || days == math.MinInt32 {
		return days
	}
	return days + DaysUnixToJ2000Epoch
}

func microsToWire(us int64) int64 {
	if us == math.MaxInt64 || us == math.MinInt64 {
		return us
	}
	return us - MicrosecUnixToJ2000Epoch
}

func microsFromWire(us int64) int64 {
	if us == math.MaxInt64 || us == math.MinInt64 {
		return us
	}
	return us + MicrosecUnixToJ2000Epoch
}

func decodeBinary(want any, src []byte) (any, error) {
	switch want.(type) {
	case int16:
		if err := needLen(want, src, 2); err != nil {
			return nil, err
		}
		return int16(binary.BigEndian.Uint16(src)), nil
	case int32:
		if err := needLen(want, src, 4); err != nil {
			return nil, err
		}
		return int32(binary.BigEndian.Uint32(src)), nil
	case int64:
		if err := needLen(want, src, 8); err != nil {
			return nil, err
		}
		return int64(binary.BigEndian.Uint64(src)), nil
	case int:
		if err := needLen(want, src, 8); err != nil {
			return nil, err
		}
		return toInt(int64(binary.BigEndian.Uint64(src)))
	case float32:
		if err := needLen(want, src, 4); err != nil {
			return nil, err
		}
		return math.Float32frombits(binary.BigEndian.Uint32(src)), nil
	case float64:
		if err := needLen(want, src, 8); err != nil {
			return nil, err
		}
		return math.Float64frombits(binary.BigEndian.Uint64(src)), nil
	case bool:
		if err := needLen(want, src, 1); err != nil {
			return nil, err
		}
		return src[0] != 0, nil
	case byte:
		// "char" holding '\0' is sent as zero bytes.
		if len(src) == 0 {
			return byte(0), nil
		}
		return src[0], nil
	case string:
		return string(src), nil
	case []byte:
		return append(make([]byte, 0, len(src)), src...), nil
	case Date:
		if err := needLen(want, src, 4); err != nil {
			return nil, err
		}
		return Date{days: dateFromWire(int32(binary.BigEndian.Uint32(src)))}, nil
	case Timestamp:
		if err := needLen(want, src, 8); err != nil {
			return nil, err
		}
		return Timestamp{micros: microsFromWire(int64(binary.BigEndian.Uint64(src)))}, nil
	case TimestampTZ:
		if err := needLen(want, src, 8); err != nil {
			return nil, err
		}
		return TimestampTZ{micros: microsFromWire(int64(binary.BigEndian.Uint64(src)))}, nil
	case Time:
		if err := needLen(want, src, 8); err != nil {
			return nil, err
		}
		return Time{micros: int64(binary.BigEndian.Uint64(src))}, nil
	case TimeTZ:
		if err := needLen(want, src, 12); err != nil {
			return nil, err
		}
		return TimeTZ{
			micros: int64(binary.BigEndian.Uint64(src)),
			offset: -int32(binary.BigEndian.Uint32(src[8:])),
		}, nil
	case Interval:
		if err := needLen(want, src, 16); err != nil {
			return nil, err
		}
		return Interval{
			micros: int64(binary.BigEndian.Uint64(src)),
			days:   int32(binary.BigEndian.Uint32(src[8:])),
			months: int32(binary.BigEndian.Uint32(src[12:])),
		}, nil
	}
	return nil, &TypeMismatchError{GoType: fmt.Sprintf("%T", want), Reason: "no binary decoder"}
}

func needLen(want any, src []byte, n int) error {
	if len(src) != n {
		return &TypeMismatchError{
			GoType: fmt.Sprintf("%T", want),
			Reason: fmt.Sprintf("expected %d bytes, got %d", n, len(src)),
		}
	}
	return nil
}
