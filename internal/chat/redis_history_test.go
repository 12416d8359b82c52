package chat

import (
	"fmt"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestRedisHistory(t *testing.T) *RedisHistory {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return NewRedisHistory(client)
}

func TestRedisHistoryAppendAndCount(t *testing.T) {
	h := newTestRedisHistory(t)

	h.Append(logMsg("hello"))
	h.Append(logMsg("world"))

	if h.Count() != 2 {
		t.Fatalf("expected 2 messages, got %d", h.Count())
	}
}

func TestRedisHistorySnapshotOrder(t *testing.T) {
	h := newTestRedisHistory(t)
	for i := 0; i < 5; i++ {
		h.Append(logMsg(fmt.Sprintf("msg-%d", i)))
	}

	snapshot := h.Snapshot()
	if len(snapshot) != 5 {
		t.Fatalf("expected 5 messages, got %d", len(snapshot))
	}
	for i, m := range snapshot {
		if m.Message != fmt.Sprintf("msg-%d", i) {
			t.Errorf("position %d: expected msg-%d, got %q", i, i, m.Message)
		}
	}
}

func TestRedisHistoryPreservesFields(t *testing.T) {
	h := newTestRedisHistory(t)

	h.Append(&Message{
		Username:  "System",
		Message:   "alice joined the chat",
		Timestamp: "09:30:00",
		Kind:      KindSystem,
	})

	snapshot := h.Snapshot()
	if len(snapshot) != 1 {
		t.Fatalf("expected 1 message, got %d", len(snapshot))
	}
	m := snapshot[0]
	if m.Username != "System" {
		t.Errorf("expected Username 'System', got %q", m.Username)
	}
	if m.Message != "alice joined the chat" {
		t.Errorf("expected join notice text, got %q", m.Message)
	}
	if m.Timestamp != "09:30:00" {
		t.Errorf("expected Timestamp '09:30:00', got %q", m.Timestamp)
	}
	if m.Kind != KindSystem {
		t.Errorf("expected Kind 'system', got %q", m.Kind)
	}
}

func TestRedisHistoryEmpty(t *testing.T) {
	h := newTestRedisHistory(t)

	if h.Count() != 0 {
		t.Errorf("expected 0 messages, got %d", h.Count())
	}
	if len(h.Snapshot()) != 0 {
		t.Error("expected empty snapshot")
	}
}

func TestRedisHistoryImplementsInterface(t *testing.T) {
	var _ History = newTestRedisHistory(t)
}
