package chat

import (
	"fmt"
	"testing"
)

func logMsg(text string) *Message {
	return &Message{
		Username:  "alice",
		Message:   text,
		Timestamp: "12:00:00",
		Kind:      KindUser,
	}
}

func TestLogAppendAndCount(t *testing.T) {
	l := NewLog()

	l.Append(logMsg("one"))
	l.Append(logMsg("two"))

	if l.Count() != 2 {
		t.Fatalf("expected 2 messages, got %d", l.Count())
	}
}

func TestLogSnapshotPreservesAppendOrder(t *testing.T) {
	l := NewLog()
	for i := 0; i < 10; i++ {
		l.Append(logMsg(fmt.Sprintf("msg-%d", i)))
	}

	snapshot := l.Snapshot()
	if len(snapshot) != 10 {
		t.Fatalf("expected 10 messages, got %d", len(snapshot))
	}
	for i, m := range snapshot {
		if m.Message != fmt.Sprintf("msg-%d", i) {
			t.Errorf("position %d: expected msg-%d, got %q", i, i, m.Message)
		}
	}
}

func TestLogSnapshotIsCopy(t *testing.T) {
	l := NewLog()
	l.Append(logMsg("one"))

	snapshot := l.Snapshot()
	snapshot[0] = logMsg("mutated")

	if l.Snapshot()[0].Message != "one" {
		t.Error("mutating a snapshot should not affect the log")
	}
}

func TestLogEmptySnapshot(t *testing.T) {
	l := NewLog()
	if len(l.Snapshot()) != 0 {
		t.Error("expected empty snapshot for new log")
	}
	if l.Count() != 0 {
		t.Error("expected zero count for new log")
	}
}
