package logging

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefaultLogDirPathSuffix(t *testing.T) {
	path, err := DefaultLogDirPath()
	if err != nil {
		t.Fatalf("DefaultLogDirPath() error = %v", err)
	}
	if got, want := path, filepath.Join("tagdeck", "logs"); !strings.HasSuffix(got, want) {
		t.Fatalf("DefaultLogDirPath() = %q, want suffix %q", got, want)
	}
}

func TestFileSinkWritesJSONLAndRotates(t *testing.T) {
	tmp := t.TempDir()
	sink := &fileSink{
		dir:        tmp,
		sessionTag: "20260301-120000",
		maxBytes:   180,
	}
	if err := sink.rotateLocked(); err != nil {
		t.Fatalf("rotateLocked() error = %v", err)
	}

	event := Event{
		Time:    time.Unix(1700000000, 123456789),
		Level:   slog.LevelDebug,
		Message: "render pass complete",
		Fields: map[string]any{
			"count":  7,
			"status": "ok",
		},
	}

	for i := 0; i < 6; i++ {
		if err := sink.WriteEvent(event); err != nil {
			t.Fatalf("WriteEvent() error = %v", err)
		}
	}
	if err := sink.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	entries, err := os.ReadDir(tmp)
	if err != nil {
		t.Fatalf("ReadDir() error = %v", err)
	}
	if len(entries) < 2 {
		t.Fatalf("expected rotation to create multiple files, got %d", len(entries))
	}

	foundLine := false
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if !strings.HasSuffix(entry.Name(), ".jsonl") {
			t.Fatalf("unexpected log filename %q", entry.Name())
		}
		data, readErr := os.ReadFile(filepath.Join(tmp, entry.Name()))
		if readErr != nil {
			t.Fatalf("ReadFile(%q) error = %v", entry.Name(), readErr)
		}
		for _, line := range strings.Split(strings.TrimSpace(string(data)), "\n") {
			if strings.TrimSpace(line) == "" {
				continue
			}
			var decoded map[string]any
			if unmarshalErr := json.Unmarshal([]byte(line), &decoded); unmarshalErr != nil {
				t.Fatalf("log line is not JSON: %v", unmarshalErr)
			}
			if decoded["message"] == "render pass complete" {
				foundLine = true
			}
		}
	}
	if !foundLine {
		t.Fatalf("expected at least one written event in log files")
	}

	if err := sink.WriteEvent(event); err != os.ErrClosed {
		t.Fatalf("WriteEvent() after Close error = %v, want os.ErrClosed", err)
	}
}

func TestLoggerSubscribeFanOut(t *testing.T) {
	logger := New(false)
	logger.SetTerminalOutputEnabled(false)

	var got []Event
	unsubscribe := logger.Subscribe(func(event Event) {
		got = append(got, event)
	})

	logger.Info("one", Field("k", "v"))
	logger.Debug("hidden debug is not published")
	logger.Warn("two")
	unsubscribe()
	logger.Error("after unsubscribe")

	if len(got) != 2 {
		t.Fatalf("subscriber saw %d events, want 2", len(got))
	}
	if got[0].Message != "one" || got[0].Fields["k"] != "v" {
		t.Fatalf("first event = %#v", got[0])
	}
	if got[1].Message != "two" {
		t.Fatalf("second event = %#v", got[1])
	}
}
