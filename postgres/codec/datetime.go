package codec

import (
	"fmt"
	"math"
	"time"
)

// The server stores dates and timestamps relative to 2000-01-01 (J2000).
// Values in this package are relative to the Unix epoch and are shifted by
// these constants on the wire.
const (
	DaysUnixToJ2000Epoch     int32 = 10957
	MicrosecUnixToJ2000Epoch int64 = 946684800 * 1000000
)

const (
	microsPerSecond = int64(1000000)
	microsPerMinute = 60 * microsPerSecond
	microsPerHour   = 60 * microsPerMinute
	microsPerDay    = 24 * microsPerHour
)

// Date is a calendar date stored as days since 1970-01-01.
type Date struct {
	days int32
}

var (
	DateInfinity         = Date{days: math.MaxInt32}
	DateNegativeInfinity = Date{days: math.MinInt32}
)

// NewDate returns the date that lies days after 1970-01-01.
func NewDate(days int32) Date { return Date{days: days} }

// DateOf returns the calendar date of t in t's location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	midnight := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return Date{days: int32(midnight.Unix() / 86400)}
}

// Days returns the number of days since 1970-01-01.
func (d Date) Days() int32 { return d.days }

// Time returns midnight UTC of the date.
func (d Date) Time() time.Time {
	return time.Unix(int64(d.days)*86400, 0).UTC()
}

func (d Date) String() string {
	switch d {
	case DateInfinity:
		return "infinity"
	case DateNegativeInfinity:
		return "-infinity"
	}
	return d.Time().Format("2006-01-02")
}

// Timestamp is a timestamp without time zone, in microseconds since
// 1970-01-01 00:00:00.
type Timestamp struct {
	micros int64
}

var (
	TimestampInfinity         = Timestamp{micros: math.MaxInt64}
	TimestampNegativeInfinity = Timestamp{micros: math.MinInt64}
)

func NewTimestamp(micros int64) Timestamp { return Timestamp{micros: micros} }

// TimestampOf keeps the wall clock reading of t and drops its location.
func TimestampOf(t time.Time) Timestamp {
	wall := time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), time.UTC)
	return Timestamp{micros: wall.UnixMicro()}
}

func (ts Timestamp) Micros() int64 { return ts.micros }

// Time returns the wall clock reading in UTC.
func (ts Timestamp) Time() time.Time { return time.UnixMicro(ts.micros).UTC() }

func (ts Timestamp) String() string {
	switch ts {
	case TimestampInfinity:
		return "infinity"
	case TimestampNegativeInfinity:
		return "-infinity"
	}
	return ts.Time().Format("2006-01-02 15:04:05.999999")
}

// TimestampTZ is an absolute instant in microseconds since the Unix epoch.
type TimestampTZ struct {
	micros int64
}

var (
	TimestampTZInfinity         = TimestampTZ{micros: math.MaxInt64}
	TimestampTZNegativeInfinity = TimestampTZ{micros: math.MinInt64}
)

func NewTimestampTZ(micros int64) TimestampTZ { return TimestampTZ{micros: micros} }

func TimestampTZOf(t time.Time) TimestampTZ { return TimestampTZ{micros: t.UnixMicro()} }

func (ts TimestampTZ) Micros() int64 { return ts.micros }

func (ts TimestampTZ) Time() time.Time { return time.UnixMicro(ts.micros).UTC() }

func (ts TimestampTZ) String() string {
	switch ts {
	case TimestampTZInfinity:
		return "infinity"
	case TimestampTZNegativeInfinity:
		return "-infinity"
	}
	return ts.Time().Format("2006-01-02 15:04:05.999999Z07:00")
}

// Time is a time of day in microseconds since midnight.
type Time struct {
	micros int64
}

func NewTime(micros int64) Time { return Time{micros: micros} }

func (t Time) Micros() int64 { return t.micros }

func (t Time) String() string { return formatClock(t.micros) }

// TimeTZ is a time of day with a UTC offset in seconds east of Greenwich.
type TimeTZ struct {
	micros int64
	offset int32
}

func NewTimeTZ(micros int64, offset int32) TimeTZ {
	return TimeTZ{micros: micros, offset: offset}
}

func (t TimeTZ) Micros() int64 { return t.micros }

func (t TimeTZ) Offset() int32 { return t.offset }

func (t TimeTZ) String() string {
	sign := '+'
	off := t.offset
	if off < 0 {
		sign = '-'
		off = -off
	}
	s := fmt.Sprintf("%s%c%02d:%02d", formatClock(t.micros), sign, off/3600, (off%3600)/60)
	if sec := off % 60; sec != 0 {
		s += fmt.Sprintf(":%02d", sec)
	}
	return s
}

// Interval keeps its three components apart: a month has no fixed number of
// days and a day has no fixed number of microseconds across DST changes.
type Interval struct {
	micros int64
	days   int32
	months int32
}

func NewInterval(micros int64, days, months int32) Interval {
	return Interval{micros: micros, days: days, months: months}
}

func (iv Interval) Micros() int64 { return iv.micros }
func (iv Interval) Days() int32   { return iv.days }
func (iv Interval) Months() int32 { return iv.months }

func (iv Interval) String() string {
	s := ""
	if iv.months != 0 {
		s += fmt.Sprintf("%d mon ", iv.months)
	}
	if iv.days != 0 {
		s += fmt.Sprintf("%d day ", iv.days)
	}
	us := iv.micros
	if us < 0 {
		s += "-"
		us = -us
	}
	return s + formatClock(us)
}

func formatClock(us int64) string {
	h := us / microsPerHour
	us -= h * microsPerHour
	m := us / microsPerMinute
	us -= m * microsPerMinute
	sec := us / microsPerSecond
	frac := us - sec*microsPerSecond
	if frac == 0 {
		return fmt.Sprintf("%02d:%02d:%02d", h, m, sec)
	}
	return fmt.Sprintf("%02d:%02d:%02d.%06d", h, m, sec, frac)
}
