package chat

import (
	"context"
	"log"
	"sync"
	"time"
)

// Sender delivers outbound events to live connections. The transport
// layer implements it; delivery is best-effort.
type Sender interface {
	SendTo(connID, event string, payload any)
	Broadcast(event string, payload any)
	BroadcastExcept(connID, event string, payload any)
}

// Dispatcher binds transport events to the session registry, typing
// registry, and history log. It is the only mutator of all three: a
// single mutex serializes each event's mutations and broadcasts, so
// the order clients observe matches event order process-wide.
type Dispatcher struct {
	mu       sync.Mutex
	sessions *Sessions
	typing   *Typing
	history  History
	sender   Sender

	now func() time.Time
}

// NewDispatcher wires the dispatcher to its stores and outbound sender.
func NewDispatcher(sessions *Sessions, typing *Typing, history History, sender Sender) *Dispatcher {
	return &Dispatcher{
		sessions: sessions,
		typing:   typing,
		history:  history,
		sender:   sender,
		now:      time.Now,
	}
}

// Connect records a new transport connection. The connection has no
// registry footprint until it joins.
func (d *Dispatcher) Connect(connID string) {
	log.Printf("chat: client %s connected", connID)
}

// Join announces a username for the connection, replays the full
// history and current presence to the joiner, and broadcasts the join
// notice and updated presence to everyone. Joining again overwrites
// the previous username.
func (d *Dispatcher) Join(connID, username string) {
	if username == "" {
		log.Printf("chat: dropping join_chat from %s: missing username", connID)
		return
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	d.sessions.Join(connID, username)

	// The replay is taken before the join notice is appended, so the
	// joiner sees their own notice arrive as a live broadcast.
	d.sender.SendTo(connID, EventChatHistory, d.history.Snapshot())
	users := d.onlineUsersLocked()
	d.sender.SendTo(connID, EventOnlineUsers, users)

	notice := d.systemMessage(username + " joined the chat")
	d.history.Append(notice)
	d.sender.Broadcast(EventMessage, notice)
	d.sender.Broadcast(EventOnlineUsers, users)

	log.Printf("chat: %s joined (conn %s)", username, connID)
}

// SendMessage appends a user message and broadcasts it to everyone,
// sender included. Messages from connections that never joined are
// silently dropped. A pending typing flag is cleared first, and its
// stop notice always precedes the message broadcast.
func (d *Dispatcher) SendMessage(connID, text string) {
	if text == "" {
		log.Printf("chat: dropping send_message from %s: missing message", connID)
		return
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	username, ok := d.sessions.Get(connID)
	if !ok {
		return
	}

	if prev, cleared := d.typing.Clear(connID); cleared {
		d.sender.BroadcastExcept(connID, EventUserStoppedTyping, TypingNotification{Username: prev})
	}

	msg := &Message{
		Username:  username,
		Message:   text,
		Timestamp: d.now().Format(timestampFormat),
		Kind:      KindUser,
	}
	d.history.Append(msg)
	d.sender.Broadcast(EventMessage, msg)
}

// Typing updates the connection's typing flag and notifies everyone
// but the originator. Signals from connections that never joined are
// silently dropped. The stop notice is sent even when no typing entry
// existed.
func (d *Dispatcher) Typing(connID string, isTyping bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	username, ok := d.sessions.Get(connID)
	if !ok {
		return
	}

	if isTyping {
		d.typing.Set(connID, username)
		d.sender.BroadcastExcept(connID, EventUserTyping, TypingNotification{Username: username})
		return
	}

	d.typing.Clear(connID)
	d.sender.BroadcastExcept(connID, EventUserStoppedTyping, TypingNotification{Username: username})
}

// Disconnect removes the connection's session and typing state and
// announces the departure. Disconnecting a connection that never
// joined is a no-op: no append, no broadcast.
func (d *Dispatcher) Disconnect(connID string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	username, ok := d.sessions.Leave(connID)
	if !ok {
		return
	}

	if _, cleared := d.typing.Clear(connID); cleared {
		d.sender.Broadcast(EventUserStoppedTyping, TypingNotification{Username: username})
	}

	notice := d.systemMessage(username + " left the chat")
	d.history.Append(notice)
	d.sender.Broadcast(EventMessage, notice)
	d.sender.Broadcast(EventOnlineUsers, d.onlineUsersLocked())

	log.Printf("chat: %s disconnected (conn %s)", username, connID)
}

// OnlineUsers returns the current presence payload. Exposed read-only
// for the status route.
func (d *Dispatcher) OnlineUsers() OnlineUsersPayload {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.onlineUsersLocked()
}

// onlineUsersLocked must be called with d.mu held.
func (d *Dispatcher) onlineUsersLocked() OnlineUsersPayload {
	users := d.sessions.List()
	return OnlineUsersPayload{Users: users, Count: len(users)}
}

func (d *Dispatcher) systemMessage(text string) *Message {
	return &Message{
		Username:  systemUsername,
		Message:   text,
		Timestamp: d.now().Format(timestampFormat),
		Kind:      KindSystem,
	}
}

// StartTypingSweep clears typing flags older than ttl, announcing the
// stop to everyone. The wire protocol has no expiry of its own; this
// covers clients that vanish without a clean disconnect. Runs until
// ctx is cancelled.
func (d *Dispatcher) StartTypingSweep(ctx context.Context, ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(ttl / 2)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				d.sweepTyping(ttl)
			}
		}
	}()
}

func (d *Dispatcher) sweepTyping(ttl time.Duration) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, connID := range d.typing.Stale(d.now().Add(-ttl)) {
		if username, ok := d.typing.Clear(connID); ok {
			d.sender.Broadcast(EventUserStoppedTyping, TypingNotification{Username: username})
			log.Printf("chat: cleared stale typing flag for %s", username)
		}
	}
}
