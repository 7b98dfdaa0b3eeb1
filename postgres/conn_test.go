package postgres

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq/oid"
)

func TestStateString(t *testing.T) {
	tests := []struct {
		state State
		want  string
	}{
		{StateUnconnected, "unconnected"},
		{StateConnecting, "connecting"},
		{StateIdle, "idle"},
		{StateExecuting, "executing"},
		{StateFailed, "failed"},
		{StateClosed, "closed"},
		{State(99), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.state.String(); got != tt.want {
			t.Errorf("State(%d).String() = %q, want %q", tt.state, got, tt.want)
		}
	}
}

func TestConnectInvalidCredentials(t *testing.T) {
	c := New(WithDialer(failingDialer(errBadRole)))
	err := c.Connect(context.Background(), "postgresql://invalid_user@localhost")

	var ce *ConnectionError
	if !errors.As(err, &ce) {
		t.Fatalf("expected ConnectionError, got %v", err)
	}
	if !strings.Contains(err.Error(), "invalid_user") {
		t.Errorf("error should carry the server text: %v", err)
	}
	if c.State() != StateFailed {
		t.Errorf("State = %s, want failed", c.State())
	}
	if c.LastError() != err {
		t.Errorf("LastError = %v", c.LastError())
	}

	var me *MisuseError
	if err := c.Execute(context.Background(), "SELECT 1"); !errors.As(err, &ce) {
		t.Errorf("Execute on failed conn: %v", err)
	}

	if err := c.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}
	if err := c.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
	if c.State() != StateClosed {
		t.Errorf("State = %s, want closed", c.State())
	}
	if err := c.Execute(context.Background(), "SELECT 1"); !errors.As(err, &me) {
		t.Errorf("Execute on closed conn: %v", err)
	}
}

func TestCloseUnconnected(t *testing.T) {
	c := New()
	if err := c.Close(); err != nil {
		t.Fatal(err)
	}
	if c.Socket() != -1 {
		t.Error("closed conn should have no socket")
	}
}

func TestConnectCloseReconnect(t *testing.T) {
	f := newFake()
	c := New(WithDialer(f.dialer()))
	ctx := context.Background()

	if err := c.Connect(ctx, "postgresql://postgres@localhost"); err != nil {
		t.Fatal(err)
	}
	if f.connInfo != "postgresql://postgres@localhost" {
		t.Errorf("connection string altered: %q", f.connInfo)
	}
	var me *MisuseError
	if err := c.Connect(ctx, "postgresql://postgres@localhost"); !errors.As(err, &me) {
		t.Errorf("second Connect: %v", err)
	}
	if err := c.Close(); err != nil {
		t.Fatal(err)
	}
	if f.closes != 1 {
		t.Errorf("transport closed %d times", f.closes)
	}
	if err := c.Connect(ctx, "postgresql://postgres@localhost"); err != nil {
		t.Fatalf("reconnect: %v", err)
	}
	if c.State() != StateIdle || c.IsAsync() {
		t.Errorf("State = %s async=%v", c.State(), c.IsAsync())
	}
	c.Close()
}

func TestExecuteEchoesUTF8(t *testing.T) {
	f := newFake()
	c := connected(t, f)

	for _, s := range []string{"Günter", "メインページ"} {
		res, err := c.Query(context.Background(), "SELECT $1", s)
		if err != nil {
			t.Fatal(err)
		}
		got, err := Get[string](res, 0)
		if err != nil {
			t.Fatal(err)
		}
		if got != s {
			t.Errorf("got %q, want %q", got, s)
		}
	}
	if last := f.lastSent(); last.simple || last.params != 1 {
		t.Errorf("parameterized statement sent as %+v", last)
	}
}

func TestExecuteWithoutArgsUsesSimpleProtocol(t *testing.T) {
	f := newFake()
	c := connected(t, f)
	if err := c.Execute(context.Background(), "SET timezone TO 'UTC'"); err != nil {
		t.Fatal(err)
	}
	if last := f.lastSent(); !last.simple {
		t.Errorf("statement without arguments sent as %+v", last)
	}
	if c.Result().CommandTag() != "SET" {
		t.Errorf("CommandTag = %q", c.Result().CommandTag())
	}
}

func TestExecuteArityMismatch(t *testing.T) {
	f := newFake()
	c := connected(t, f)

	var me *MisuseError
	err := c.Execute(context.Background(), "SELECT $1, $2", 1)
	if !errors.As(err, &me) {
		t.Fatalf("expected MisuseError, got %v", err)
	}
	if len(f.sentSQL()) != 0 {
		t.Errorf("nothing should be sent, got %v", f.sentSQL())
	}
	if c.State() != StateIdle {
		t.Errorf("State = %s", c.State())
	}
}

func TestExecuteUnsupportedParam(t *testing.T) {
	f := newFake()
	c := connected(t, f)

	var tm *TypeMismatchError
	if err := c.Execute(context.Background(), "SELECT $1", map[string]int{}); !errors.As(err, &tm) {
		t.Fatalf("expected TypeMismatchError, got %v", err)
	}
	if len(f.sentSQL()) != 0 {
		t.Errorf("nothing should be sent, got %v", f.sentSQL())
	}
}

func TestCommandErrorKeepsConnection(t *testing.T) {
	f := newFake()
	f.errs["SELECT nope"] = &pgconn.PgError{Severity: "ERROR", Code: "42703", Message: `column "nope" does not exist`}
	c := connected(t, f)

	err := c.Execute(context.Background(), "SELECT nope")
	var cmd *CommandError
	if !errors.As(err, &cmd) {
		t.Fatalf("expected CommandError, got %v", err)
	}
	if cmd.Code != "42703" || cmd.SQL != "SELECT nope" {
		t.Errorf("CommandError = %+v", cmd)
	}
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		t.Error("CommandError should unwrap to the server error")
	}
	if c.Result().Status() != StatusFatalError {
		t.Errorf("Status = %s", c.Result().Status())
	}
	if c.State() != StateIdle {
		t.Errorf("State = %s, want idle", c.State())
	}

	if err := c.Execute(context.Background(), "SELECT $1", int64(1)); err != nil {
		t.Errorf("connection unusable after command error: %v", err)
	}
	if c.LastError() != nil {
		t.Errorf("LastError after success = %v", c.LastError())
	}
}

func TestLostTransportFailsConnection(t *testing.T) {
	f := newFake()
	f.lose["SELECT pg_terminate_backend(pg_backend_pid())"] = true
	c := connected(t, f)

	err := c.Execute(context.Background(), "SELECT pg_terminate_backend(pg_backend_pid())")
	var ce *ConnectionError
	if !errors.As(err, &ce) {
		t.Fatalf("expected ConnectionError, got %v", err)
	}
	if c.State() != StateFailed {
		t.Errorf("State = %s, want failed", c.State())
	}
	if err := c.Execute(context.Background(), "SELECT 1"); !errors.As(err, &ce) {
		t.Errorf("Execute after loss: %v", err)
	}
}

func TestCancelInFlight(t *testing.T) {
	f := newFake().blocking()
	c := connected(t, f)

	if err := c.Cancel(context.Background()); err != nil {
		t.Fatal(err)
	}
	if f.cancelCount() != 0 {
		t.Fatal("cancel while idle should not reach the server")
	}

	go func() {
		select {
		case <-f.started:
			c.Cancel(context.Background())
		case <-time.After(2 * time.Second):
		}
	}()

	err := c.Execute(context.Background(), "SELECT pg_sleep(60)")
	var cmd *CommandError
	if !errors.As(err, &cmd) || cmd.Code != "57014" {
		t.Fatalf("expected query_canceled, got %v", err)
	}
	if f.cancelCount() != 1 {
		t.Errorf("cancels = %d", f.cancelCount())
	}
	if c.State() != StateIdle {
		t.Errorf("State = %s", c.State())
	}
}

func TestQueryOnAsyncConn(t *testing.T) {
	f := newFake()
	c := New(WithDialer(f.dialer()))
	if err := c.ConnectAsync(context.Background(), "postgresql://postgres@localhost"); err != nil {
		t.Fatal(err)
	}
	defer c.Close()

	var me *MisuseError
	if _, err := c.Query(context.Background(), "SELECT 1"); !errors.As(err, &me) {
		t.Errorf("Query on async conn: %v", err)
	}
}

func TestConnIDsAreUnique(t *testing.T) {
	a, b := New(), New()
	if a.ID() == "" || a.ID() == b.ID() {
		t.Errorf("ids %q and %q", a.ID(), b.ID())
	}
}

func TestCancelWhileWalkingResultSets(t *testing.T) {
	const sql = "SELECT 1; SELECT 1; SELECT pg_sleep(60)"
	f := newFake().blocking()
	f.slow[sql] = []*RawResult{textResult(oid.T_int4, "1"), textResult(oid.T_int4, "1")}
	c := connected(t, f)

	res, err := c.Query(context.Background(), sql)
	if err != nil {
		t.Fatal(err)
	}

	moved := make(chan bool)
	go func() { moved <- res.NextResult() }()

	select {
	case <-f.started:
	case <-time.After(2 * time.Second):
		t.Fatal("last statement never started")
	}
	if err := c.Cancel(context.Background()); err != nil {
		t.Fatal(err)
	}
	if !<-moved {
		t.Fatal("NextResult = false, want the second result set")
	}
	if f.cancelCount() != 1 {
		t.Fatalf("cancels = %d, want 1", f.cancelCount())
	}

	var pgErr *pgconn.PgError
	if !errors.As(res.Err(), &pgErr) || pgErr.Code != "57014" {
		t.Errorf("Err = %v", res.Err())
	}

	// The command has ended, so a second cancel is a no-op.
	c.Cancel(context.Background())
	if f.cancelCount() != 1 {
		t.Errorf("cancels = %d after the command ended", f.cancelCount())
	}
}
