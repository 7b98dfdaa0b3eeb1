package postgres

import (
	"context"
	"net"
	"syscall"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq/oid"
)

// DialPgconn is the default Dialer. connInfo is handed to pgconn unmodified
// and may be a URL or a key=value string.
func DialPgconn(ctx context.Context, connInfo string) (Transport, error) {
	conn, err := pgconn.Connect(ctx, connInfo)
	if err != nil {
		return nil, err
	}
	return &pgconnTransport{conn: conn}, nil
}

type pgconnTransport struct {
	conn *pgconn.PgConn
}

var binaryResults = []int16{1}

func (t *pgconnTransport) Exec(ctx context.Context, sql string) ResultSource {
	return &multiSource{mrr: t.conn.Exec(ctx, sql)}
}

func (t *pgconnTransport) ExecParams(ctx context.Context, sql string, p *Params) ResultSource {
	return &singleSource{rr: t.conn.ExecParams(ctx, sql, p.Values, p.OIDs, p.Formats, binaryResults)}
}

func (t *pgconnTransport) CancelRequest(ctx context.Context) error {
	return t.conn.CancelRequest(ctx)
}

func (t *pgconnTransport) Close(ctx context.Context) error {
	return t.conn.Close(ctx)
}

func (t *pgconnTransport) IsClosed() bool {
	return t.conn.IsClosed()
}

func (t *pgconnTransport) Socket() int {
	nc := t.conn.Conn()
	if tc, ok := nc.(interface{ NetConn() net.Conn }); ok {
		nc = tc.NetConn()
	}
	sc, ok := nc.(syscall.Conn)
	if !ok {
		return -1
	}
	raw, err := sc.SyscallConn()
	if err != nil {
		return -1
	}
	fd := -1
	if err := raw.Control(func(s uintptr) { fd = int(s) }); err != nil {
		return -1
	}
	return fd
}

func rawFromPgconn(r *pgconn.Result) *RawResult {
	raw := &RawResult{
		Rows:         r.Rows,
		CommandTag:   r.CommandTag.String(),
		RowsAffected: r.CommandTag.RowsAffected(),
	}
	if len(r.FieldDescriptions) > 0 {
		raw.Fields = make([]Field, len(r.FieldDescriptions))
		for i, fd := range r.FieldDescriptions {
			raw.Fields[i] = Field{Name: fd.Name, OID: oid.Oid(fd.DataTypeOID), Format: fd.Format}
		}
	}
	return raw
}

// singleSource wraps the one result set of an extended protocol command.
type singleSource struct {
	rr   *pgconn.ResultReader
	read bool
}

func (s *singleSource) NextResult() (*RawResult, error) {
	if s.read {
		return nil, nil
	}
	s.read = true
	r := s.rr.Read()
	if r.Err != nil {
		return nil, r.Err
	}
	return rawFromPgconn(r), nil
}

func (s *singleSource) Close() error {
	if s.read {
		return nil
	}
	s.read = true
	_, err := s.rr.Close()
	return err
}

// multiSource walks the result sets of a simple protocol command.
type multiSource struct {
	mrr *pgconn.MultiResultReader
}

func (s *multiSource) NextResult() (*RawResult, error) {
	if !s.mrr.NextResult() {
		return nil, s.mrr.Close()
	}
	r := s.mrr.ResultReader().Read()
	if r.Err != nil {
		return nil, r.Err
	}
	return rawFromPgconn(r), nil
}

func (s *multiSource) Close() error {
	return s.mrr.Close()
}
