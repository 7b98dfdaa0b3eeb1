package logging

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
	"time"
)

// StatementLog is a single statement execution entry.
type StatementLog struct {
	Timestamp     time.Time `json:"timestamp"`
	ConnID        string    `json:"conn_id"`
	TraceID       string    `json:"trace_id,omitempty"`
	Mode          string    `json:"mode"`
	StatementHash string    `json:"statement_hash"`
	Params        int       `json:"params"`
	DurationMs    int64     `json:"duration_ms"`
	Success       bool      `json:"success"`
	Error         string    `json:"error,omitempty"`
	Rows          int       `json:"rows"`
}

// Logger handles statement logging. It is disabled until an output is set.
type Logger struct {
	mu      sync.Mutex
	file    *os.File
	console io.Writer
}

var defaultLogger = &Logger{}

// Default returns the default statement logger
func Default() *Logger {
	return defaultLogger
}

// SetOutput appends JSON lines to the file at path.
func (l *Logger) SetOutput(path string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file != nil {
		l.file.Close()
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	l.file = f
	return nil
}

// SetConsole sets the writer for human-readable lines; nil disables them.
func (l *Logger) SetConsole(w io.Writer) {
	l.mu.Lock()
	l.console = w
	l.mu.Unlock()
}

// Enabled reports whether any output is configured.
func (l *Logger) Enabled() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.file != nil || l.console != nil
}

// Log writes a statement log entry
func (l *Logger) Log(entry *StatementLog) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file == nil && l.console == nil {
		return
	}

	entry.Timestamp = time.Now()

	if l.console != nil {
		status := "✓"
		if !entry.Success {
			status = "✗"
		}
		fmt.Fprintf(l.console, "[stmt] %s %s %s %s %dms rows=%d\n",
			status, entry.ConnID, entry.Mode, entry.StatementHash, entry.DurationMs, entry.Rows)
		if entry.Error != "" {
			fmt.Fprintf(l.console, "[stmt]   error: %s\n", entry.Error)
		}
	}

	if l.file != nil {
		data, _ := json.Marshal(entry)
		l.file.Write(append(data, '\n'))
	}
}

// Close closes the log file
func (l *Logger) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file != nil {
		l.file.Close()
		l.file = nil
	}
}

// HashStatement returns a short stable fingerprint of a SQL string so that
// statement text, which may embed literals, never reaches the log.
func HashStatement(sql string) string {
	h := sha256.Sum256([]byte(sql))
	return hex.EncodeToString(h[:8])
}
