package log

import (
	"fmt"
	"testing"
	"time"
)

func TestLogBufferWraps(t *testing.T) {
	b := NewLogBuffer(3)
	for i := 0; i < 5; i++ {
		b.AddEntry(LogEntry{Message: fmt.Sprintf("m%d", i)})
	}

	if b.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", b.Len())
	}

	got := b.GetEntries()
	want := []string{"m2", "m3", "m4"}
	for i, e := range got {
		if e.Message != want[i] {
			t.Errorf("entry %d = %q, want %q", i, e.Message, want[i])
		}
	}
}

func TestLogBufferPartial(t *testing.T) {
	b := NewLogBuffer(4)
	b.AddEntry(LogEntry{Message: "a"})
	b.AddEntry(LogEntry{Message: "b"})

	got := b.GetEntries()
	if len(got) != 2 || got[0].Message != "a" || got[1].Message != "b" {
		t.Errorf("GetEntries() = %+v, want [a b]", got)
	}
}

func TestLogExchangeRecordsError(t *testing.T) {
	before := GetExchangeLogBuffer().Len()
	LogExchange("10.0.0.5:5555", "/led1/on", "ERROR", 3*time.Millisecond, fmt.Errorf("broken pipe"))

	entries := GetExchangeLogBuffer().GetEntries()
	if len(entries) != before+1 {
		t.Fatalf("expected %d entries, got %d", before+1, len(entries))
	}
	last := entries[len(entries)-1]
	if last.Level != "error" {
		t.Errorf("Level = %q, want %q", last.Level, "error")
	}
	if last.Fields["error"] != "broken pipe" {
		t.Errorf("error field = %v, want %q", last.Fields["error"], "broken pipe")
	}
}
