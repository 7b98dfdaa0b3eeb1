// Package postgres is a client for a single PostgreSQL session: connect,
// execute SQL with bound parameters, read results row by row and nest
// transactions, either blocking or driven by an external event loop.
//
// # State machine
//
//	Unconnected ──Connect──► Idle ──Execute──► Executing ──► Idle
//	     │                    ▲                    │
//	     └──ConnectAsync──► Connecting              └──(transport lost)──► Failed
//
// Any state moves to Closed on Close. Failed and Closed connections may be
// connected again; Unconnected, Failed and Closed reject Execute.
//
// # Blocking and async mode
//
// Connect and Execute block until the server answers. ConnectAsync instead
// hands the transport to a goroutine owned by the Conn, and the caller's
// event loop drives the connection through three calls:
//
//   - Socket (or Ready) becomes readable when something completed;
//   - ConsumeInput delivers completed cycles and reports whether more input
//     is expected;
//   - Flush reports whether output is still pending.
//
// A cycle ends by firing, on the goroutine calling ConsumeInput, the row
// callback registered with Once or Each for every row in server order, then
// exactly one of Done or Error, then Always. Callbacks are detached before
// they fire, so a callback may register new ones and execute again.
//
// # Concurrency
//
// A Conn belongs to one goroutine. Cancel is the exception: it may be called
// from any goroutine and is a no-op when nothing is executing.
//
// # Invariants
//
//   - The Conn owns one Result, reused by every execution. It is cleared
//     before each new command, which releases the previous result sets.
//   - A Row obtained from a Result is stale once the cursor moves or the
//     Result is reused; reading it returns a MisuseError.
//   - Only the outermost Begin and Commit reach the server. Rollback always
//     reaches the server and resets the depth to 0.
//   - There are no retries. Every failure surfaces once, to the caller.
package postgres
