package codec

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"sync"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/lib/pq/oid"
)

// pgtype.Map caches scan plans and is not safe for concurrent use.
var typeMaps = sync.Pool{New: func() any { return pgtype.NewMap() }}

func scanText(typ oid.Oid, src []byte, dst any) error {
	m := typeMaps.Get().(*pgtype.Map)
	defer typeMaps.Put(m)
	return m.Scan(uint32(typ), pgtype.TextFormatCode, src, dst)
}

func decodeText(want any, typ oid.Oid, src []byte) (any, error) {
	var (
		v   any
		err error
	)
	switch want.(type) {
	case string:
		return string(src), nil
	case int16:
		var n int16
		err = scanText(typ, src, &n)
		v = n
	case int32:
		var n int32
		err = scanText(typ, src, &n)
		v = n
	case int64:
		var n int64
		err = scanText(typ, src, &n)
		v = n
	case int:
		var n int64
		if err = scanText(typ, src, &n); err == nil {
			return toInt(n)
		}
	case float32:
		var f float32
		err = scanText(typ, src, &f)
		v = f
	case float64:
		var f float64
		err = scanText(typ, src, &f)
		v = f
	case bool:
		var b bool
		err = scanText(typ, src, &b)
		v = b
	case byte:
		var c byte
		err = scanText(typ, src, &c)
		v = c
	case []byte:
		var b []byte
		err = scanText(typ, src, &b)
		v = b
	case Date:
		var d pgtype.Date
		if err = scanText(typ, src, &d); err == nil {
			v = dateFromPgtype(d)
		}
	case Timestamp:
		var ts pgtype.Timestamp
		if err = scanText(typ, src, &ts); err == nil {
			v = Timestamp{micros: micros(ts.Time.UnixMicro(), ts.InfinityModifier)}
		}
	case TimestampTZ:
		var ts pgtype.Timestamptz
		if err = scanText(typ, src, &ts); err == nil {
			v = TimestampTZ{micros: micros(ts.Time.UnixMicro(), ts.InfinityModifier)}
		}
	case Time:
		var t pgtype.Time
		if err = scanText(typ, src, &t); err == nil {
			v = Time{micros: t.Microseconds}
		}
	case TimeTZ:
		v, err = parseTimeTZ(string(src))
	case Interval:
		var iv pgtype.Interval
		if err = scanText(typ, src, &iv); err == nil {
			v = Interval{micros: iv.Microseconds, days: iv.Days, months: iv.Months}
		}
	default:
		return nil, &TypeMismatchError{OID: typ, GoType: fmt.Sprintf("%T", want), Reason: "no text decoder"}
	}
	if err != nil {
		return nil, &TypeMismatchError{OID: typ, GoType: fmt.Sprintf("%T", want), Reason: err.Error()}
	}
	return v, nil
}

func dateFromPgtype(d pgtype.Date) Date {
	switch d.InfinityModifier {
	case pgtype.Infinity:
		return DateInfinity
	case pgtype.NegativeInfinity:
		return DateNegativeInfinity
	}
	return DateOf(d.Time)
}

func micros(us int64, mod pgtype.InfinityModifier) int64 {
	switch mod {
	case pgtype.Infinity:
		return math.MaxInt64
	case pgtype.NegativeInfinity:
		return math.MinInt64
	}
	return us
}

var errBadTimeTZ = errors.New("invalid timetz")

// parseTimeTZ parses the server's text output for timetz, for example
// "13:45:10.5+05:30" or "00:14:20-07".
func parseTimeTZ(s string) (TimeTZ, error) {
	i := strings.LastIndexAny(s, "+-")
	if i <= 0 {
		return TimeTZ{}, errBadTimeTZ
	}
	us, err := parseClock(s[:i])
	if err != nil {
		return TimeTZ{}, err
	}

	parts := strings.Split(s[i+1:], ":")
	if len(parts) > 3 {
		return TimeTZ{}, errBadTimeTZ
	}
	var off int64
	scale := int64(3600)
	for _, p := range parts {
		n, err := strconv.ParseInt(p, 10, 32)
		if err != nil {
			return TimeTZ{}, errBadTimeTZ
		}
		off += n * scale
		scale /= 60
	}
	if s[i] == '-' {
		off = -off
	}
	return TimeTZ{micros: us, offset: int32(off)}, nil
}

func parseClock(s string) (int64, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 3 {
		return 0, errBadTimeTZ
	}
	h, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return 0, errBadTimeTZ
	}
	m, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return 0, errBadTimeTZ
	}

	secPart, fracPart, _ := strings.Cut(parts[2], ".")
	sec, err := strconv.ParseInt(secPart, 10, 64)
	if err != nil {
		return 0, errBadTimeTZ
	}
	var frac int64
	if fracPart != "" {
		if len(fracPart) > 6 {
			fracPart = fracPart[:6]
		}
		frac, err = strconv.ParseInt(fracPart+strings.Repeat("0", 6-len(fracPart)), 10, 64)
		if err != nil {
			return 0, errBadTimeTZ
		}
	}
	return h*microsPerHour + m*microsPerMinute + sec*microsPerSecond + frac, nil
}
