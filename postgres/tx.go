package postgres

import (
	"context"

	"github.com/oriys/pgcore/internal/metrics"
	"github.com/oriys/pgcore/internal/observability"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Begin starts a transaction. Only the outermost call sends BEGIN; nested
// calls increase the depth so every caller can pair its own Commit.
//
// In blocking mode a failed BEGIN leaves the depth at 0. In async mode the
// outcome arrives through the cycle callbacks and the depth is already 1.
func (c *Conn) Begin(ctx context.Context) error {
	c.depth++
	emitted := c.depth == 1
	c.traceTx(ctx, "begin", emitted)
	if !emitted {
		metrics.RecordTransaction("begin", false)
		return nil
	}
	if err := c.Execute(ctx, "BEGIN"); err != nil {
		c.depth = 0
		return err
	}
	metrics.RecordTransaction("begin", true)
	return nil
}

// Commit closes one level of nesting. Only the outermost call sends COMMIT.
// When COMMIT cannot be sent the depth is left unchanged so the call can be
// retried.
func (c *Conn) Commit(ctx context.Context) error {
	if c.depth == 0 {
		return misuse("commit", "no transaction in progress")
	}
	if c.depth == 1 {
		if err := c.ready("commit"); err != nil {
			return err
		}
	}
	c.depth--
	emitted := c.depth == 0
	c.traceTx(ctx, "commit", emitted)
	metrics.RecordTransaction("commit", emitted)
	if !emitted {
		return nil
	}
	return c.Execute(ctx, "COMMIT")
}

// Rollback sends ROLLBACK at any depth and resets the depth to 0. Nested
// scopes cannot be rolled back on their own; the whole outermost
// transaction is discarded. When ROLLBACK cannot be sent the depth is left
// unchanged.
func (c *Conn) Rollback(ctx context.Context) error {
	if c.depth == 0 {
		return misuse("rollback", "no transaction in progress")
	}
	if err := c.ready("rollback"); err != nil {
		return err
	}
	c.traceTx(ctx, "rollback", true)
	c.depth = 0
	metrics.RecordTransaction("rollback", true)
	return c.Execute(ctx, "ROLLBACK")
}

// Depth returns the current transaction nesting level.
func (c *Conn) Depth() int { return c.depth }

func (c *Conn) traceTx(ctx context.Context, op string, emitted bool) {
	span := observability.SpanFromContext(ctx)
	if !span.IsRecording() {
		return
	}
	span.AddEvent("pgcore.tx."+op, trace.WithAttributes(
		observability.AttrTxDepth.Int(c.depth),
		attribute.Bool("emitted", emitted),
	))
}
