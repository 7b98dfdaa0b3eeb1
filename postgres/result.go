package postgres

import (
	"iter"

	"github.com/oriys/pgcore/postgres/codec"
)

// ExecStatus is the outcome of the current result set.
type ExecStatus int

const (
	StatusEmptyQuery ExecStatus = iota // nothing executed, or an empty command string
	StatusCommandOK                    // a command that returns no rows
	StatusTuplesOK                     // a command that returns rows, possibly zero
	StatusFatalError                   // the command failed
)

func (s ExecStatus) String() string {
	switch s {
	case StatusEmptyQuery:
		return "empty_query"
	case StatusCommandOK:
		return "command_ok"
	case StatusTuplesOK:
		return "tuples_ok"
	case StatusFatalError:
		return "fatal_error"
	default:
		return "unknown"
	}
}

// Cursor sentinels. A fresh result sits before the first row; a walked-out
// result sits at the end position, which equals Count.
const beforeFirst = -1

// Result is the outcome of the last command executed on a Conn. It is reused
// across executions; each Execute clears it before filling it again.
//
// Besides being iterated with Next, a Result reads the row under its cursor
// directly, so Get(res, 0) on a fresh result reads row 0.
//
// While holding the current result set the Result has already read the
// following one, if any, so IsLast never blocks.
type Result struct {
	src    ResultSource
	cur    *RawResult
	next   *RawResult
	err    error
	status ExecStatus
	pos    int
	gen    uint64 // bumped on every cursor move; rows from older generations are stale

	drained func() // called once the source has nothing more to send
}

func newResult() *Result {
	return &Result{pos: beforeFirst}
}

// clear releases the held result sets and the source behind them. Clearing
// an empty Result is a no-op.
func (r *Result) clear() {
	if r.src != nil {
		_ = r.src.Close()
	}
	r.finish()
	r.src = nil
	r.cur = nil
	r.next = nil
	r.err = nil
	r.status = StatusEmptyQuery
	r.pos = beforeFirst
	r.gen++
}

// assign takes ownership of src, reads its first result set and prefetches
// the second. The returned error is the first failure met while doing so.
// drained, if set, is called once src has been read to the end, which may
// be long after assign returns when the caller walks later result sets.
func (r *Result) assign(src ResultSource, drained func()) error {
	r.clear()
	r.src = src
	r.drained = drained

	cur, err := src.NextResult()
	if err != nil {
		r.err = err
		r.status = StatusFatalError
		r.finish()
		return err
	}
	r.setCurrent(cur)
	r.prefetch()
	return r.err
}

func (r *Result) setCurrent(cur *RawResult) {
	r.cur = cur
	r.pos = beforeFirst
	r.gen++
	switch {
	case cur == nil:
		r.status = StatusEmptyQuery
	case cur.Fields != nil:
		r.status = StatusTuplesOK
	default:
		r.status = StatusCommandOK
	}
}

func (r *Result) prefetch() {
	r.next = nil
	if r.cur == nil || r.err != nil {
		r.finish()
		return
	}
	r.next, r.err = r.src.NextResult()
	if r.next == nil || r.err != nil {
		r.finish()
	}
}

func (r *Result) finish() {
	if fn := r.drained; fn != nil {
		r.drained = nil
		fn()
	}
}

// IsLast reports whether the current result set is the last one of the
// command.
func (r *Result) IsLast() bool {
	return r.next == nil
}

// NextResult moves to the following result set of a multi-statement command.
func (r *Result) NextResult() bool {
	if r.next == nil {
		return false
	}
	r.setCurrent(r.next)
	r.prefetch()
	return true
}

// Err returns the failure that ended the command, if any.
func (r *Result) Err() error { return r.err }

func (r *Result) Status() ExecStatus { return r.status }

// Count returns the number of rows in the current result set.
func (r *Result) Count() int {
	if r.cur == nil {
		return 0
	}
	return len(r.cur.Rows)
}

// Columns describes the columns of the current result set.
func (r *Result) Columns() []Field {
	if r.cur == nil {
		return nil
	}
	return r.cur.Fields
}

func (r *Result) CommandTag() string {
	if r.cur == nil {
		return ""
	}
	return r.cur.CommandTag
}

func (r *Result) RowsAffected() int64 {
	if r.cur == nil {
		return 0
	}
	return r.cur.RowsAffected
}

// Next advances the cursor. It returns false once the rows of the current
// result set are exhausted; the cursor then stays at the end.
func (r *Result) Next() bool {
	n := r.Count()
	if r.pos >= n {
		return false
	}
	r.pos++
	r.gen++
	return r.pos < n
}

// Row returns a view of the row under the cursor. The view is valid until
// the cursor moves.
func (r *Result) Row() Row {
	return Row{res: r, idx: r.rowIndex(), gen: r.gen}
}

// Rows walks the remaining rows of the current result set.
func (r *Result) Rows() iter.Seq[Row] {
	return func(yield func(Row) bool) {
		for r.Next() {
			if !yield(r.Row()) {
				return
			}
		}
	}
}

func (r *Result) rowIndex() int {
	if r.pos == beforeFirst {
		return 0
	}
	return r.pos
}

func (r *Result) cell(col int) (Field, []byte, error) {
	return r.cellAt(r.rowIndex(), col)
}

func (r *Result) cellAt(row, col int) (Field, []byte, error) {
	if row >= r.Count() {
		return Field{}, nil, &OutOfRangeError{What: "row", Index: row, Count: r.Count()}
	}
	if col < 0 || col >= len(r.cur.Fields) {
		return Field{}, nil, &OutOfRangeError{What: "column", Index: col, Count: len(r.cur.Fields)}
	}
	return r.cur.Fields[col], r.cur.Rows[row][col], nil
}

// IsNull reports whether a column of the current row is NULL.
func (r *Result) IsNull(col int) (bool, error) {
	_, src, err := r.cell(col)
	return src == nil, err
}

// Value decodes a column of the current row into its natural Go type.
func (r *Result) Value(col int) (any, error) {
	return value(r, col)
}

// Row is a view of one row of a Result.
type Row struct {
	res *Result
	idx int
	gen uint64
}

func (row Row) cell(col int) (Field, []byte, error) {
	if row.res == nil || row.gen != row.res.gen {
		return Field{}, nil, misuse("row", "row is no longer current")
	}
	return row.res.cellAt(row.idx, col)
}

// Index returns the position of the row within its result set.
func (row Row) Index() int { return row.idx }

func (row Row) IsNull(col int) (bool, error) {
	_, src, err := row.cell(col)
	return src == nil, err
}

func (row Row) Value(col int) (any, error) {
	return value(row, col)
}

// Cells is implemented by Result and Row.
type Cells interface {
	cell(col int) (Field, []byte, error)
}

// Get decodes column col of a row, or of the current row of a Result.
func Get[T codec.Value](c Cells, col int) (T, error) {
	f, src, err := c.cell(col)
	if err != nil {
		var zero T
		return zero, err
	}
	return codec.Decode[T](f.OID, f.Format, src)
}

func value(c Cells, col int) (any, error) {
	f, src, err := c.cell(col)
	if err != nil {
		return nil, err
	}
	return codec.DecodeAny(f.OID, f.Format, src)
}
