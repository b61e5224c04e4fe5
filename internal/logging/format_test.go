package logging

import (
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"
)

func TestFormatEventLine_SortsFields(t *testing.T) {
	event := Event{
		Time:    time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC),
		Level:   slog.LevelInfo,
		Message: "library opened",
		Fields: map[string]any{
			"path":    "/libs/photos",
			"entries": 42,
			"elapsed": "120ms",
		},
	}
	line := FormatEventLine(event)
	if !strings.HasPrefix(line, "09:30:00 [INFO] library opened ") {
		t.Fatalf("FormatEventLine() = %q", line)
	}
	want := "elapsed=120ms entries=42 path=/libs/photos"
	if !strings.Contains(line, want) {
		t.Fatalf("FormatEventLine() = %q, want fields %q", line, want)
	}
}

func TestFormatFieldValue_Error(t *testing.T) {
	if got := formatFieldValue(errors.New("boom")); got != "boom" {
		t.Fatalf("formatFieldValue(error) = %q", got)
	}
	if got := formatFieldValue(nil); got != "<nil>" {
		t.Fatalf("formatFieldValue(nil) = %q", got)
	}
}

func TestTruncate(t *testing.T) {
	if got := Truncate("  \n "); got != "<empty>" {
		t.Fatalf("Truncate(blank) = %q", got)
	}
	long := strings.Repeat("x", clipLimit+10)
	if got := Truncate(long); len(got) != clipLimit+3 || !strings.HasSuffix(got, "...") {
		t.Fatalf("Truncate(long) length = %d", len(got))
	}
	if got := Truncate("line one\nline two"); got != "line one line two" {
		t.Fatalf("Truncate(multiline) = %q", got)
	}
}

func TestAppendWithLimit(t *testing.T) {
	got := AppendWithLimit("abcdef", "ghij", 5)
	if got != "fghij" {
		t.Fatalf("AppendWithLimit() = %q, want %q", got, "fghij")
	}
}
