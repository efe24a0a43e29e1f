package journal

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func TestEventLogAppendWritesJSONLines(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	l, err := OpenEventLog(dir, "session_test.jsonl")
	if err != nil {
		t.Fatalf("OpenEventLog: %v", err)
	}

	if err := l.Append("market_snapshot", map[string]string{"market_id": "m1"}); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := l.Append("fill", map[string]string{"order_id": "o1"}); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := l.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	f, err := os.Open(filepath.Join(dir, "session_test.jsonl"))
	if err != nil {
		t.Fatalf("open log: %v", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	var lines int
	for scanner.Scan() {
		var e Event
		if err := json.Unmarshal(scanner.Bytes(), &e); err != nil {
			t.Fatalf("unmarshal line %d: %v", lines, err)
		}
		if e.Kind == "" {
			t.Error("expected a non-empty kind")
		}
		lines++
	}
	if lines != 2 {
		t.Errorf("lines = %d, want 2", lines)
	}
}
