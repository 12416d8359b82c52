package chat

import "sync"

// History is the contract the dispatcher appends through. Snapshot
// must preserve append order exactly: it is replayed verbatim to every
// new joiner.
type History interface {
	Append(msg *Message)
	Snapshot() []*Message
	Count() int
}

// Log is the in-memory history backend: append-only and unbounded for
// the lifetime of the process.
type Log struct {
	mu   sync.RWMutex
	msgs []*Message
}

// NewLog creates an empty in-memory history log.
func NewLog() *Log {
	return &Log{}
}

// Append adds a message to the end of the log.
func (l *Log) Append(msg *Message) {
	l.mu.Lock()
	l.msgs = append(l.msgs, msg)
	l.mu.Unlock()
}

// Snapshot returns a copy of the full history in append order.
func (l *Log) Snapshot() []*Message {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]*Message, len(l.msgs))
	copy(out, l.msgs)
	return out
}

// Count returns the number of appended messages.
func (l *Log) Count() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.msgs)
}
