package postgres

import (
	"context"
	"io"
	"strings"
	"sync"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq/oid"
)

// sent is one command as the fake transport received it.
type sent struct {
	sql    string
	params int
	simple bool
}

// fakeTransport answers commands from canned results. Statements with
// parameters that have no canned answer are echoed back as a single row.
type fakeTransport struct {
	mu       sync.Mutex
	log      []sent
	results  map[string][]*RawResult
	errs     map[string]error
	lose     map[string]bool
	slow     map[string][]*RawResult
	closed   bool
	closes   int
	cancels  int
	connInfo string

	// When block is set every command waits until CancelRequest or ctx.
	block    chan struct{}
	started  chan struct{}
	stopOnce sync.Once
}

func newFake() *fakeTransport {
	return &fakeTransport{
		results: make(map[string][]*RawResult),
		errs:    make(map[string]error),
		lose:    make(map[string]bool),
		slow:    make(map[string][]*RawResult),
	}
}

func (f *fakeTransport) blocking() *fakeTransport {
	f.block = make(chan struct{})
	f.started = make(chan struct{})
	return f
}

func (f *fakeTransport) dialer() Dialer {
	return func(ctx context.Context, connInfo string) (Transport, error) {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.connInfo = connInfo
		f.closed = false
		return f, nil
	}
}

func failingDialer(err error) Dialer {
	return func(ctx context.Context, connInfo string) (Transport, error) {
		return nil, err
	}
}

var errBadRole = &pgconn.PgError{
	Severity: "FATAL",
	Code:     "28000",
	Message:  `role "invalid_user" does not exist`,
}

func (f *fakeTransport) Exec(ctx context.Context, sql string) ResultSource {
	return f.answer(ctx, sent{sql: sql, simple: true}, nil)
}

func (f *fakeTransport) ExecParams(ctx context.Context, sql string, p *Params) ResultSource {
	return f.answer(ctx, sent{sql: sql, params: p.Len()}, p)
}

func (f *fakeTransport) answer(ctx context.Context, s sent, p *Params) ResultSource {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.log = append(f.log, s)

	if rs, ok := f.slow[s.sql]; ok && f.block != nil {
		return &stagedSource{head: rs, tail: &blockingSource{f: f, ctx: ctx}}
	}
	if f.block != nil {
		return &blockingSource{f: f, ctx: ctx}
	}
	if f.lose[s.sql] {
		f.closed = true
		return &errSource{err: io.ErrUnexpectedEOF}
	}
	if err, ok := f.errs[s.sql]; ok {
		return &errSource{err: err}
	}
	if rs, ok := f.results[s.sql]; ok {
		return &bufferedSource{results: rs}
	}
	if p.Len() > 0 {
		echo := &RawResult{Rows: [][][]byte{p.Values}, CommandTag: "SELECT 1", RowsAffected: 1}
		for i := range p.Values {
			echo.Fields = append(echo.Fields, Field{Name: "?column?", OID: oid.Oid(p.OIDs[i]), Format: p.Formats[i]})
		}
		return &bufferedSource{results: []*RawResult{echo}}
	}
	tag := strings.ToUpper(strings.Fields(s.sql + " ")[0])
	return &bufferedSource{results: []*RawResult{{CommandTag: tag}}}
}

func (f *fakeTransport) CancelRequest(ctx context.Context) error {
	f.mu.Lock()
	f.cancels++
	f.mu.Unlock()
	if f.block != nil {
		f.stopOnce.Do(func() { close(f.block) })
	}
	return nil
}

func (f *fakeTransport) Close(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	f.closes++
	return nil
}

func (f *fakeTransport) IsClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

func (f *fakeTransport) Socket() int { return -1 }

func (f *fakeTransport) sentSQL() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.log))
	for i, s := range f.log {
		out[i] = s.sql
	}
	return out
}

func (f *fakeTransport) lastSent() sent {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.log) == 0 {
		return sent{}
	}
	return f.log[len(f.log)-1]
}

func (f *fakeTransport) cancelCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cancels
}

// blockingSource stands for a long-running command.
type blockingSource struct {
	f    *fakeTransport
	ctx  context.Context
	once sync.Once
	done bool
}

func (s *blockingSource) NextResult() (*RawResult, error) {
	if s.done {
		return nil, nil
	}
	s.done = true
	s.once.Do(func() { close(s.f.started) })
	select {
	case <-s.ctx.Done():
		return nil, s.ctx.Err()
	case <-s.f.block:
		return nil, &pgconn.PgError{Severity: "ERROR", Code: "57014", Message: "canceling statement due to user request"}
	}
}

func (s *blockingSource) Close() error { return nil }

// stagedSource returns its head result sets at once and then behaves like
// tail, standing for a multi-statement command whose last statement is slow.
type stagedSource struct {
	head []*RawResult
	tail ResultSource
}

func (s *stagedSource) NextResult() (*RawResult, error) {
	if len(s.head) > 0 {
		r := s.head[0]
		s.head = s.head[1:]
		return r, nil
	}
	return s.tail.NextResult()
}

func (s *stagedSource) Close() error { return s.tail.Close() }

// textResult builds a simple-protocol result set with one column.
func textResult(typ oid.Oid, vals ...string) *RawResult {
	r := &RawResult{
		Fields:     []Field{{Name: "col", OID: typ, Format: 0}},
		Rows:       [][][]byte{},
		CommandTag: "SELECT",
	}
	for _, v := range vals {
		r.Rows = append(r.Rows, [][]byte{[]byte(v)})
	}
	r.RowsAffected = int64(len(vals))
	return r
}
