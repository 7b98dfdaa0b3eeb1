package postgres

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/oriys/pgcore/internal/metrics"
	"github.com/oriys/pgcore/internal/observability"
)

// callbacks are registered per cycle and cleared before they fire.
type callbacks struct {
	iter   func(*Result) bool
	once   bool
	done   func(count int)
	fail   func(err error)
	always func()
}

// Once registers a callback for the first row of the next cycle only.
func (c *Conn) Once(fn func(*Result) bool) *Conn {
	c.cb.iter, c.cb.once = fn, true
	return c
}

// Each registers a callback called for every row of the next cycle, across
// all of its result sets, until it returns false.
func (c *Conn) Each(fn func(*Result) bool) *Conn {
	c.cb.iter, c.cb.once = fn, false
	return c
}

// Done registers a callback called once when the next cycle succeeds, with
// the row count of its last result set.
func (c *Conn) Done(fn func(count int)) *Conn {
	c.cb.done = fn
	return c
}

// Error registers a callback called once when the next cycle fails.
func (c *Conn) Error(fn func(err error)) *Conn {
	c.cb.fail = fn
	return c
}

// Always registers a callback called last, whatever the outcome of the next
// cycle.
func (c *Conn) Always(fn func()) *Conn {
	c.cb.always = fn
	return c
}

// pump owns the transport of an async Conn. It runs jobs one at a time on its
// own goroutine and posts their outcome to a queue that ConsumeInput drains
// on the caller's goroutine.
type pump struct {
	jobs   chan func() any
	life   context.Context
	stop   context.CancelFunc
	done   chan struct{}
	notify *notifier
	unsent atomic.Int32

	mu     sync.Mutex
	events []any

	// pump goroutine only
	transport Transport
	dialErr   error
	closeErr  error
}

type connectedEvent struct {
	err error
	dur time.Duration
}

type finishedEvent struct {
	src  ResultSource
	lost bool
}

func newPump() (*pump, error) {
	n, err := newNotifier()
	if err != nil {
		return nil, err
	}
	life, stop := context.WithCancel(context.Background())
	p := &pump{
		jobs:   make(chan func() any, 4),
		life:   life,
		stop:   stop,
		done:   make(chan struct{}),
		notify: n,
	}
	go p.run()
	return p, nil
}

func (p *pump) run() {
	defer close(p.done)
	for job := range p.jobs {
		if p.life.Err() != nil {
			continue
		}
		ev := job()
		p.mu.Lock()
		p.events = append(p.events, ev)
		p.mu.Unlock()
		p.notify.signal()
	}
	if p.transport != nil {
		ctx, cancel := context.WithTimeout(context.Background(), closeTimeout)
		p.closeErr = p.transport.Close(ctx)
		cancel()
	}
}

func (p *pump) enqueue(job func() any) {
	p.unsent.Add(1)
	p.jobs <- job
}

func (p *pump) take() []any {
	p.mu.Lock()
	defer p.mu.Unlock()
	evs := p.events
	p.events = nil
	return evs
}

// bind derives a job context that also ends when the pump shuts down.
func (p *pump) bind(ctx context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(p.life, cancel)
	return ctx, func() {
		stop()
		cancel()
	}
}

// shutdown aborts the running job, waits for the goroutine and returns the
// transport close error.
func (p *pump) shutdown() error {
	p.stop()
	close(p.jobs)
	<-p.done
	p.notify.close()
	return p.closeErr
}

// ConnectAsync starts the handshake and returns immediately. The connection
// is ready once ConsumeInput has delivered the handshake outcome. A command
// may be executed right away; it is sent when the handshake completes and a
// failed handshake is reported through that command's Error callback. With no
// command queued, the handshake itself completes a cycle: Done(0) or Error,
// then Always.
func (c *Conn) ConnectAsync(ctx context.Context, connInfo string) error {
	if err := c.canConnect("connect"); err != nil {
		return err
	}
	c.release()
	c.async = true
	c.lastErr = nil

	p, err := newPump()
	if err != nil {
		ce := &ConnectionError{Err: err}
		c.lastErr = ce
		c.setState(StateFailed)
		return ce
	}
	c.pump = p
	c.setState(StateConnecting)

	p.enqueue(func() any {
		ctx, cancel := p.bind(ctx)
		defer cancel()
		ctx, span := observability.StartClientSpan(ctx, "pgcore.connect",
			observability.AttrConnID.String(c.id),
			observability.AttrMode.String(modeAsync),
		)
		defer span.End()

		start := time.Now()
		t, err := c.dial(ctx, connInfo)
		p.unsent.Add(-1)
		if err != nil {
			p.dialErr = err
			observability.SetSpanError(span, err)
		} else {
			p.transport = t
			c.setTransport(t)
			observability.SetSpanOK(span)
		}
		return connectedEvent{err: err, dur: time.Since(start)}
	})
	return nil
}

func (c *Conn) executeAsync(ctx context.Context, sql string, args []any) error {
	if err := c.ready("execute"); err != nil {
		return err
	}
	p := c.pump
	c.result.clear()
	c.pending++
	if c.State() == StateIdle {
		c.setState(StateExecuting)
	}

	params, err := bindArgs(args)
	if err == nil {
		err = checkArity(sql, params)
	}
	cyc := c.startCycle(ctx, sql, params.Len())
	c.cycle = cyc

	p.enqueue(func() any {
		if err != nil {
			p.unsent.Add(-1)
			return finishedEvent{src: &errSource{err: err}}
		}
		if p.transport == nil {
			p.unsent.Add(-1)
			return finishedEvent{src: &errSource{err: p.dialErr}, lost: true}
		}
		ctx, cancel := p.bind(cyc.ctx)
		defer cancel()

		c.executing.Store(true)
		src := send(ctx, p.transport, sql, params)
		p.unsent.Add(-1)
		buf := drain(src)
		c.executing.Store(false)
		return finishedEvent{src: buf, lost: buf.err != nil && p.transport.IsClosed()}
	})
	return nil
}

// ConsumeInput processes whatever the connection has received and fires the
// callbacks of completed cycles on the calling goroutine. It never blocks. It
// returns true while more input is expected, in which case the event loop
// calls it again once Socket is readable or Ready fires.
func (c *Conn) ConsumeInput() bool {
	p := c.pump
	if p == nil {
		return false
	}
	// Drain before taking so that a signal racing with take is never lost.
	p.notify.drain()
	for _, ev := range p.take() {
		if c.pump != p {
			// A callback closed or reconnected the connection.
			break
		}
		switch ev := ev.(type) {
		case connectedEvent:
			c.handleConnected(ev)
		case finishedEvent:
			c.handleFinished(ev)
		}
	}
	if c.pump == nil {
		return false
	}
	return c.State() == StateConnecting || c.pending > 0
}

// Flush reports whether output is still waiting to be written to the server.
// The writes themselves happen on the connection's goroutine, so Flush never
// blocks.
func (c *Conn) Flush() bool {
	if c.pump == nil {
		return false
	}
	return c.pump.unsent.Load() > 0
}

// Ready returns a channel that receives when ConsumeInput has work to do. It
// is nil in blocking mode.
func (c *Conn) Ready() <-chan struct{} {
	if c.pump == nil {
		return nil
	}
	return c.pump.notify.ready
}

func (c *Conn) handleConnected(ev connectedEvent) {
	metrics.RecordConnect(modeAsync, ev.dur, ev.err == nil)
	if ev.err != nil {
		ce := &ConnectionError{Err: ev.err}
		c.lastErr = ce
		c.setState(StateFailed)
		c.logger.Warn("connect failed", "error", ev.err)
		if c.pending == 0 {
			c.deliver(ce)
		}
		// Otherwise the queued command fails with the same cause.
		return
	}

	c.open = true
	metrics.IncOpenConnections()
	if c.pending > 0 {
		c.setState(StateExecuting)
	} else {
		c.setState(StateIdle)
	}
	c.logger.Debug("connected", "mode", modeAsync, "duration_ms", ev.dur.Milliseconds())
	if c.pending == 0 {
		c.deliver(nil)
	}
}

func (c *Conn) handleFinished(ev finishedEvent) {
	c.pending--
	cyc := c.cycle
	c.cycle = nil

	err := c.result.assign(ev.src, nil)
	if b, ok := ev.src.(*bufferedSource); ok && err == nil && b.err != nil {
		// A later statement of the command failed.
		err = b.err
	}
	err = c.classify(cyc.sql, err, ev.lost)
	c.endCycle(cyc, err)
	c.deliver(err)
}

// deliver fires the current callbacks for a finished cycle: the iterator over
// every row in server order, then Done or Error, then Always. The callbacks
// are detached first so they may start the next cycle.
func (c *Conn) deliver(err error) {
	cb := c.cb
	c.cb = callbacks{}
	if cb.always != nil {
		defer cb.always()
	}

	res := c.result
	if cb.iter != nil {
	walk:
		for {
			for res.Next() {
				if !cb.iter(res) || cb.once {
					break walk
				}
			}
			if !res.NextResult() {
				break
			}
		}
	}

	if err != nil {
		if cb.fail != nil {
			cb.fail(err)
		}
		return
	}
	for res.NextResult() {
	}
	if cb.done != nil {
		cb.done(res.Count())
	}
}
