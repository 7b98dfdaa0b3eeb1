package postgres

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/oriys/pgcore/internal/logging"
	"github.com/oriys/pgcore/internal/metrics"
	"github.com/oriys/pgcore/internal/observability"
	"go.opentelemetry.io/otel/trace"
)

// State represents the lifecycle state of a Conn
type State int32

const (
	StateUnconnected State = iota // constructed, never connected
	StateConnecting               // handshake in progress (async only)
	StateIdle                     // connected, no command in flight
	StateExecuting                // a command is in flight
	StateFailed                   // the session is lost and must be reconnected
	StateClosed                   // released by Close
)

func (s State) String() string {
	switch s {
	case StateUnconnected:
		return "unconnected"
	case StateConnecting:
		return "connecting"
	case StateIdle:
		return "idle"
	case StateExecuting:
		return "executing"
	case StateFailed:
		return "failed"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

const (
	modeSync  = "sync"
	modeAsync = "async"

	closeTimeout = 5 * time.Second
)

// Option configures a Conn
type Option func(*Conn)

// WithDialer replaces the pgconn dialer, mainly for tests.
func WithDialer(d Dialer) Option {
	return func(c *Conn) { c.dial = d }
}

// WithLogger sets the operational logger. The connection ID is added to it.
func WithLogger(l *slog.Logger) Option {
	return func(c *Conn) { c.logger = l }
}

// Conn is one session with a PostgreSQL server.
type Conn struct {
	id     string
	dial   Dialer
	logger *slog.Logger

	mu        sync.Mutex // guards transport, which Cancel reads from any goroutine
	transport Transport

	state     atomic.Int32
	executing atomic.Bool
	async     bool
	open      bool
	depth     int
	result    *Result
	lastErr   error

	// async only
	pump    *pump
	pending int
	cycle   *cycle
	cb      callbacks
}

// New creates an unconnected Conn.
func New(opts ...Option) *Conn {
	c := &Conn{
		id:     uuid.New().String(),
		dial:   DialPgconn,
		result: newResult(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = logging.Op()
	}
	c.logger = c.logger.With("conn_id", c.id)
	return c
}

// ID returns the connection's unique identifier.
func (c *Conn) ID() string { return c.id }

func (c *Conn) State() State { return State(c.state.Load()) }

func (c *Conn) setState(s State) { c.state.Store(int32(s)) }

// IsAsync reports whether the connection was opened with ConnectAsync.
func (c *Conn) IsAsync() bool { return c.async }

// Result returns the result of the last execution. The same Result is reused
// by every execution on the connection.
func (c *Conn) Result() *Result { return c.result }

// LastError returns the error of the last failed connect or execution, or nil
// if the last one succeeded.
func (c *Conn) LastError() error { return c.lastErr }

// Socket returns a descriptor an event loop can poll for readability. In
// async mode it becomes readable whenever ConsumeInput has work to do. In
// blocking mode it is the server socket. It returns -1 when unconnected.
func (c *Conn) Socket() int {
	if c.pump != nil {
		return c.pump.notify.fd()
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.transport == nil {
		return -1
	}
	return c.transport.Socket()
}

func (c *Conn) setTransport(t Transport) {
	c.mu.Lock()
	c.transport = t
	c.mu.Unlock()
}

func (c *Conn) mode() string {
	if c.async {
		return modeAsync
	}
	return modeSync
}

func (c *Conn) canConnect(op string) error {
	switch c.State() {
	case StateConnecting, StateIdle, StateExecuting:
		return misuse(op, "connection is already %s", c.State())
	}
	return nil
}

// Connect opens the session and blocks until the handshake completes. A
// failed or closed Conn may be connected again.
func (c *Conn) Connect(ctx context.Context, connInfo string) error {
	if err := c.canConnect("connect"); err != nil {
		return err
	}
	c.release()
	c.async = false
	c.lastErr = nil
	c.setState(StateConnecting)

	ctx, span := observability.StartClientSpan(ctx, "pgcore.connect",
		observability.AttrConnID.String(c.id),
		observability.AttrMode.String(modeSync),
	)
	defer span.End()

	start := time.Now()
	t, err := c.dial(ctx, connInfo)
	metrics.RecordConnect(modeSync, time.Since(start), err == nil)
	if err != nil {
		ce := &ConnectionError{Err: err}
		c.lastErr = ce
		c.setState(StateFailed)
		observability.SetSpanError(span, ce)
		c.logger.Warn("connect failed", "error", err)
		return ce
	}

	c.setTransport(t)
	c.open = true
	metrics.IncOpenConnections()
	c.setState(StateIdle)
	observability.SetSpanOK(span)
	c.logger.Debug("connected", "mode", modeSync, "duration_ms", time.Since(start).Milliseconds())
	return nil
}

// Execute runs sql with positional arguments bound to $1, $2, ... A single
// *Params argument is used as is.
//
// Statements without arguments go through the simple query protocol, so
// several semicolon-separated statements produce several result sets and
// cells arrive in text format. Statements with arguments go through the
// extended protocol with binary parameters and binary results.
//
// In blocking mode Execute returns once the first result set has been read;
// the rest of the command is read as the Result advances, so ctx keeps
// governing the command until its results are consumed or the next Execute.
//
// In async mode Execute only starts a cycle. It returns an error when no cycle
// can be started; every failure of the command itself, binding included, is
// delivered to the Error callback.
func (c *Conn) Execute(ctx context.Context, sql string, args ...any) error {
	if c.async {
		return c.executeAsync(ctx, sql, args)
	}
	if err := c.ready("execute"); err != nil {
		return err
	}
	c.result.clear()

	params, err := bindArgs(args)
	if err == nil {
		err = checkArity(sql, params)
	}
	if err != nil {
		c.lastErr = err
		return err
	}

	cyc := c.startCycle(ctx, sql, params.Len())
	c.setState(StateExecuting)
	// The command stays cancellable until its last result set is read,
	// which for multi-statement commands happens as the Result advances.
	c.executing.Store(true)
	err = c.result.assign(send(cyc.ctx, c.transport, sql, params), func() { c.executing.Store(false) })

	lost := err != nil && c.transport.IsClosed()
	err = c.classify(sql, err, lost)
	c.endCycle(cyc, err)
	return err
}

// Query executes sql and returns the Result. It is only available in
// blocking mode.
func (c *Conn) Query(ctx context.Context, sql string, args ...any) (*Result, error) {
	if c.async {
		return nil, misuse("query", "not available on an async connection")
	}
	if err := c.Execute(ctx, sql, args...); err != nil {
		return nil, err
	}
	return c.result, nil
}

// ready checks that a command may be started.
func (c *Conn) ready(op string) error {
	switch s := c.State(); s {
	case StateIdle:
		if c.pending > 0 {
			return misuse(op, "a command is already in progress")
		}
		return nil
	case StateConnecting:
		if c.async && c.pending == 0 {
			return nil
		}
		return misuse(op, "a command is already in progress")
	case StateExecuting:
		return misuse(op, "a command is already in progress")
	case StateFailed:
		if c.lastErr != nil {
			var ce *ConnectionError
			if errors.As(c.lastErr, &ce) {
				return ce
			}
		}
		return misuse(op, "connection failed, reconnect first")
	default:
		return misuse(op, "connection is %s", s)
	}
}

func send(ctx context.Context, t Transport, sql string, params *Params) ResultSource {
	if params.Len() == 0 {
		return t.Exec(ctx, sql)
	}
	return t.ExecParams(ctx, sql, params)
}

// classify turns a raw execution error into the public taxonomy and moves
// the state machine accordingly. lost reports whether the transport died.
func (c *Conn) classify(sql string, err error, lost bool) error {
	if err == nil {
		if c.State() != StateFailed {
			c.setState(StateIdle)
		}
		c.lastErr = nil
		return nil
	}

	var (
		misuseErr *MisuseError
		typeErr   *TypeMismatchError
	)
	switch {
	case lost:
		err = &ConnectionError{Err: err}
		c.setState(StateFailed)
		c.logger.Warn("connection lost", "error", err)
	case errors.As(err, &misuseErr), errors.As(err, &typeErr):
		if c.State() != StateFailed {
			c.setState(StateIdle)
		}
	default:
		err = newCommandError(sql, err)
		if c.State() != StateFailed {
			c.setState(StateIdle)
		}
	}
	c.lastErr = err
	return err
}

// cycle tracks one execution for logging, metrics and tracing.
type cycle struct {
	ctx     context.Context
	span    trace.Span
	sql     string
	params  int
	started time.Time
}

func (c *Conn) startCycle(ctx context.Context, sql string, params int) *cycle {
	ctx, span := observability.StartClientSpan(ctx, "pgcore.execute",
		observability.AttrConnID.String(c.id),
		observability.AttrMode.String(c.mode()),
		observability.AttrStatementHash.String(logging.HashStatement(sql)),
		observability.AttrParams.Int(params),
	)
	return &cycle{ctx: ctx, span: span, sql: sql, params: params, started: time.Now()}
}

func (c *Conn) endCycle(cyc *cycle, err error) {
	dur := time.Since(cyc.started)
	rows := c.result.Count()
	metrics.RecordExecution(c.mode(), dur, rows, err == nil)

	cyc.span.SetAttributes(observability.AttrRows.Int(rows))
	if err != nil {
		observability.SetSpanError(cyc.span, err)
	} else {
		observability.SetSpanOK(cyc.span)
	}
	cyc.span.End()

	if stmtLog := logging.Default(); stmtLog.Enabled() {
		entry := &logging.StatementLog{
			ConnID:        c.id,
			TraceID:       observability.TraceID(cyc.ctx),
			Mode:          c.mode(),
			StatementHash: logging.HashStatement(cyc.sql),
			Params:        cyc.params,
			DurationMs:    dur.Milliseconds(),
			Success:       err == nil,
			Rows:          rows,
		}
		if err != nil {
			entry.Error = err.Error()
		}
		stmtLog.Log(entry)
	}
	if err != nil {
		c.logger.Debug("execution failed", "error", err, "duration_ms", dur.Milliseconds())
	}
}

// Cancel asks the server to abandon the command in flight. It is a no-op when
// nothing is executing and may be called from any goroutine. The command
// still completes, usually with a query_canceled CommandError.
func (c *Conn) Cancel(ctx context.Context) error {
	if !c.executing.Load() {
		return nil
	}
	c.mu.Lock()
	t := c.transport
	c.mu.Unlock()
	if t == nil {
		return nil
	}
	metrics.RecordCancel()
	c.logger.Debug("cancel requested")
	if err := t.CancelRequest(ctx); err != nil {
		c.logger.Warn("cancel request failed", "error", err)
		return err
	}
	return nil
}

// Close releases the session. It is idempotent and safe in every state,
// including after a failed connect.
func (c *Conn) Close() error {
	if c.State() == StateClosed {
		return nil
	}
	err := c.release()
	c.setState(StateClosed)
	c.logger.Debug("closed")
	return err
}

// release drops the transport, the pump and every per-session counter.
func (c *Conn) release() error {
	c.result.clear()
	c.cb = callbacks{}
	c.cycle = nil
	c.pending = 0
	if c.depth > 0 {
		metrics.AbandonTransaction()
		c.depth = 0
	}

	var err error
	if c.pump != nil {
		err = c.pump.shutdown()
		c.pump = nil
	} else {
		c.mu.Lock()
		t := c.transport
		c.mu.Unlock()
		if t != nil {
			ctx, cancel := context.WithTimeout(context.Background(), closeTimeout)
			err = t.Close(ctx)
			cancel()
		}
	}
	c.setTransport(nil)

	if c.open {
		metrics.DecOpenConnections()
		c.open = false
	}
	return err
}
