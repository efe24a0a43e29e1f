package journal

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// EventLog appends structured session events as JSON lines to one file per
// process, named by config.SessionLogFilename. Market snapshots, orders,
// fills, and session summaries all flow through Append, which writes
// synchronously and returns any write error to the caller; this log is an
// audit trail, not the source of truth for trading state.
type EventLog struct {
	mu   sync.Mutex
	file *os.File
	enc  *json.Encoder
}

// OpenEventLog creates (or appends to) dir/filename and returns a writer for
// it.
func OpenEventLog(dir, filename string) (*EventLog, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create session log dir: %w", err)
	}
	f, err := os.OpenFile(filepath.Join(dir, filename), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open session log: %w", err)
	}
	return &EventLog{file: f, enc: json.NewEncoder(f)}, nil
}

// Close closes the underlying file.
func (l *EventLog) Close() error {
	return l.file.Close()
}

// Event is one JSON-line entry: a kind tag, the UTC timestamp, and an
// arbitrary payload.
type Event struct {
	Kind string    `json:"kind"`
	At   time.Time `json:"at"`
	Data any       `json:"data"`
}

// Append writes one event as a JSON line. Errors are returned, not
// swallowed, so callers can decide whether a broken session log is fatal;
// by convention the session runner logs and continues rather than aborting
// a trading session over an audit-log write failure.
func (l *EventLog) Append(kind string, data any) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.enc.Encode(Event{Kind: kind, At: time.Now().UTC(), Data: data})
}
