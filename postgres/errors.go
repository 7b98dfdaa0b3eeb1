package postgres

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/oriys/pgcore/postgres/codec"
)

// TypeMismatchError is returned when a cell cannot be decoded into the
// requested Go type, or a parameter has no server type mapping.
type TypeMismatchError = codec.TypeMismatchError

// ErrNull is returned when a NULL cell is read into a non-nullable type.
var ErrNull = codec.ErrNull

// ConnectionError is a handshake, authentication or network failure. The
// connection is unusable afterwards and must be reconnected.
type ConnectionError struct {
	Err error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("connection error: %v", e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// CommandError is returned when the server rejected or failed a command. The
// connection stays usable.
type CommandError struct {
	SQL     string
	Code    string // SQLSTATE, empty when the failure did not come from the server
	Message string
	Detail  string
	Err     error
}

func (e *CommandError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("command failed: %s (SQLSTATE %s)", e.Message, e.Code)
	}
	return fmt.Sprintf("command failed: %s", e.Message)
}

func (e *CommandError) Unwrap() error { return e.Err }

// OutOfRangeError reports an invalid column or row index.
type OutOfRangeError struct {
	What  string // "column" or "row"
	Index int
	Count int
}

func (e *OutOfRangeError) Error() string {
	return fmt.Sprintf("%s index %d out of range [0,%d)", e.What, e.Index, e.Count)
}

// MisuseError reports a call made in a state that does not allow it, such as
// a commit without a matching begin.
type MisuseError struct {
	Op  string
	Msg string
}

func (e *MisuseError) Error() string {
	return fmt.Sprintf("%s: %s", e.Op, e.Msg)
}

func misuse(op, format string, args ...any) error {
	return &MisuseError{Op: op, Msg: fmt.Sprintf(format, args...)}
}

func newCommandError(sql string, err error) *CommandError {
	ce := &CommandError{SQL: sql, Message: err.Error(), Err: err}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		ce.Code = pgErr.Code
		ce.Message = pgErr.Message
		ce.Detail = pgErr.Detail
	}
	return ce
}
