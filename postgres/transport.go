package postgres

import (
	"context"

	"github.com/lib/pq/oid"
)

// Transport is the wire-level session a Conn drives. The default
// implementation wraps pgconn; tests substitute an in-memory one.
//
// Exec and ExecParams return once the command has been written. The returned
// ResultSource reads the server's answer.
type Transport interface {
	// Exec runs sql through the simple query protocol. It takes no
	// parameters, results come back in text format, and several
	// semicolon-separated statements yield several result sets.
	Exec(ctx context.Context, sql string) ResultSource

	// ExecParams runs a single statement through the extended protocol
	// with binary parameters and binary results.
	ExecParams(ctx context.Context, sql string, params *Params) ResultSource

	// CancelRequest asks the server to cancel the command in flight. It
	// uses a separate connection and may be called from any goroutine.
	CancelRequest(ctx context.Context) error

	Close(ctx context.Context) error
	IsClosed() bool

	// Socket returns the descriptor of the server connection, or -1.
	Socket() int
}

// Dialer opens a Transport from a connection string.
type Dialer func(ctx context.Context, connInfo string) (Transport, error)

// ResultSource yields the result sets of one command in server order.
type ResultSource interface {
	// NextResult reads the next complete result set. It returns nil, nil
	// once the command is exhausted.
	NextResult() (*RawResult, error)

	// Close discards whatever is left of the command.
	Close() error
}

// Field describes one result column.
type Field struct {
	Name   string
	OID    oid.Oid
	Format int16
}

// RawResult is one complete result set as read off the wire. Cells are nil
// for SQL NULL.
type RawResult struct {
	Fields       []Field
	Rows         [][][]byte
	CommandTag   string
	RowsAffected int64
}

// bufferedSource replays result sets that have already been read.
type bufferedSource struct {
	results []*RawResult
	err     error
}

// drain reads src to the end and closes it.
func drain(src ResultSource) *bufferedSource {
	b := &bufferedSource{}
	for {
		r, err := src.NextResult()
		if err != nil {
			b.err = err
			break
		}
		if r == nil {
			break
		}
		b.results = append(b.results, r)
	}
	if err := src.Close(); err != nil && b.err == nil {
		b.err = err
	}
	return b
}

func (b *bufferedSource) NextResult() (*RawResult, error) {
	if len(b.results) > 0 {
		r := b.results[0]
		b.results = b.results[1:]
		return r, nil
	}
	if err := b.err; err != nil {
		b.err = nil
		return nil, err
	}
	return nil, nil
}

func (b *bufferedSource) Close() error {
	b.results = nil
	b.err = nil
	return nil
}

// errSource is a command that failed before anything was sent.
type errSource struct{ err error }

func (s *errSource) NextResult() (*RawResult, error) {
	err := s.err
	s.err = nil
	return nil, err
}

func (s *errSource) Close() error { return nil }
