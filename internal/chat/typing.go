package chat

import "time"

// TypingState marks a connection as currently composing a message.
type TypingState struct {
	Username  string
	StartedAt time.Time
}

// Typing maps connection IDs to typing state. An entry implies the
// same connection is present in Sessions. Like Sessions, it is
// serialized by the Dispatcher.
type Typing struct {
	byConn map[string]*TypingState
}

// NewTyping creates an empty typing registry.
func NewTyping() *Typing {
	return &Typing{byConn: make(map[string]*TypingState)}
}

// Set inserts or overwrites the typing state for connID.
func (t *Typing) Set(connID, username string) {
	t.byConn[connID] = &TypingState{Username: username, StartedAt: time.Now()}
}

// Clear removes the typing state for connID and returns its username.
// ok is false if the connection was not flagged as typing.
func (t *Typing) Clear(connID string) (string, bool) {
	state, ok := t.byConn[connID]
	if !ok {
		return "", false
	}
	delete(t.byConn, connID)
	return state.Username, true
}

// Stale returns the connection IDs whose typing state started before
// cutoff.
func (t *Typing) Stale(cutoff time.Time) []string {
	var conns []string
	for connID, state := range t.byConn {
		if state.StartedAt.Before(cutoff) {
			conns = append(conns, connID)
		}
	}
	return conns
}
