package chat

import "time"

// Session records the identity a connection announced on join.
type Session struct {
	Username string
	JoinedAt time.Time
}

// Sessions maps connection IDs to announced identities. It carries no
// lock of its own: the Dispatcher owns it and serializes every access.
type Sessions struct {
	byConn map[string]*Session
}

// NewSessions creates an empty session registry.
func NewSessions() *Sessions {
	return &Sessions{byConn: make(map[string]*Session)}
}

// Join inserts or overwrites the session for connID. Duplicate
// usernames across connections are permitted and not disambiguated.
func (s *Sessions) Join(connID, username string) {
	s.byConn[connID] = &Session{Username: username, JoinedAt: time.Now()}
}

// Leave removes the session for connID and returns its username.
// ok is false if the connection never joined.
func (s *Sessions) Leave(connID string) (string, bool) {
	sess, ok := s.byConn[connID]
	if !ok {
		return "", false
	}
	delete(s.byConn, connID)
	return sess.Username, true
}

// Get returns the username for connID without mutating the registry.
func (s *Sessions) Get(connID string) (string, bool) {
	sess, ok := s.byConn[connID]
	if !ok {
		return "", false
	}
	return sess.Username, true
}

// List returns the usernames of all joined connections. Order is
// unspecified; clients must not depend on it.
func (s *Sessions) List() []string {
	users := make([]string, 0, len(s.byConn))
	for _, sess := range s.byConn {
		users = append(users, sess.Username)
	}
	return users
}

// Count returns the number of joined connections.
func (s *Sessions) Count() int {
	return len(s.byConn)
}
