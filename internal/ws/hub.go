package ws

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"nhooyr.io/websocket"
)

const (
	// sendBufferSize is the number of messages that can be queued per client.
	sendBufferSize = 16

	// writeTimeout is the max time to wait for a single write to complete.
	writeTimeout = 5 * time.Second

	// defaultMaxConns is the default maximum concurrent connections (0 = unlimited).
	defaultMaxConns = 0

	// defaultIdleTimeout is the default time after which an idle connection is reaped.
	defaultIdleTimeout = 0

	// idleCheckInterval is how often the idle reaper runs.
	idleCheckInterval = 30 * time.Second
)

// Client is one live websocket connection, identified by the opaque
// connection ID the dispatcher keys its registries on.
type Client struct {
	conn *websocket.Conn
	send chan []byte
	id   string
}

// ID returns the client's connection ID.
func (c *Client) ID() string {
	return c.id
}

// connEntry holds per-connection metadata alongside the cancel function.
type connEntry struct {
	client      *Client
	cancel      context.CancelFunc
	connectedAt time.Time
	lastActive  time.Time
}

// Envelope is the JSON frame exchanged with clients in both directions.
type Envelope struct {
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload"`
}

// Stats holds point-in-time connection statistics.
type Stats struct {
	Active          int
	MaxConns        int
	Rejected        int64
	DroppedMessages int64
	IdleReaped      int64
}

// Hub tracks every live connection keyed by connection ID and delivers
// outbound chat events to them. It provides lifecycle management
// including graceful shutdown, per-client buffered send channels,
// connection limits, and idle detection.
type Hub struct {
	mu       sync.Mutex
	conns    map[string]*connEntry
	closed   bool
	maxConns int
	idleTTL  time.Duration
	stopIdle context.CancelFunc

	// Atomic counters for stats.
	rejected        atomic.Int64
	droppedMessages atomic.Int64
	idleReaped      atomic.Int64
}

// HubOption configures a Hub.
type HubOption func(*Hub)

// WithMaxConns sets the maximum number of concurrent connections.
// When the limit is reached, new connections are rejected.
// A value of 0 means unlimited (default).
func WithMaxConns(n int) HubOption {
	return func(h *Hub) {
		h.maxConns = n
	}
}

// WithIdleTimeout sets how long a connection can be idle before
// it is automatically closed. A value of 0 disables idle reaping (default).
func WithIdleTimeout(d time.Duration) HubOption {
	return func(h *Hub) {
		h.idleTTL = d
	}
}

// NewHub creates a new connection hub with optional configuration.
func NewHub(opts ...HubOption) *Hub {
	h := &Hub{
		conns:    make(map[string]*connEntry),
		maxConns: defaultMaxConns,
		idleTTL:  defaultIdleTimeout,
	}
	for _, opt := range opts {
		opt(h)
	}
	if h.idleTTL > 0 {
		ctx, cancel := context.WithCancel(context.Background())
		h.stopIdle = cancel
		go h.idleReapLoop(ctx)
	}
	return h
}

// Add registers a client and starts its write pump. The returned
// context is cancelled when the client is removed or the hub shuts
// down. Callers should select on ctx.Done() in their read loop.
// Returns a cancelled context if the hub is closed or at capacity.
func (h *Hub) Add(c *Client) context.Context {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		c.conn.Close(websocket.StatusGoingAway, "server shutting down")
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		return ctx
	}

	if h.maxConns > 0 && len(h.conns) >= h.maxConns {
		h.rejected.Add(1)
		c.conn.Close(websocket.StatusTryAgainLater, "server at capacity")
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		return ctx
	}

	now := time.Now()
	c.send = make(chan []byte, sendBufferSize)
	ctx, cancel := context.WithCancel(context.Background())
	h.conns[c.id] = &connEntry{
		client:      c,
		cancel:      cancel,
		connectedAt: now,
		lastActive:  now,
	}

	go h.writePump(ctx, c)

	return ctx
}

// Remove stops a client's write pump and cleans it up.
func (h *Hub) Remove(c *Client) {
	h.mu.Lock()
	entry, ok := h.conns[c.id]
	if ok {
		delete(h.conns, c.id)
	}
	h.mu.Unlock()

	// The send channel is never closed: a concurrent broadcast may still
	// hold a reference to the client. Cancelling the context stops the
	// write pump and any leftover queued messages are garbage collected.
	if ok {
		entry.cancel()
	}
}

// SendTo queues an event for a single connection. Unknown connection
// IDs are ignored.
func (h *Hub) SendTo(connID, event string, payload any) {
	data, ok := h.encode(event, payload)
	if !ok {
		return
	}

	h.mu.Lock()
	entry := h.conns[connID]
	h.mu.Unlock()

	if entry != nil {
		h.trySend(entry.client, data)
	}
}

// Broadcast queues an event for every live connection.
func (h *Hub) Broadcast(event string, payload any) {
	h.fanOut(event, payload, "")
}

// BroadcastExcept queues an event for every live connection except the
// one identified by exclude.
func (h *Hub) BroadcastExcept(exclude, event string, payload any) {
	h.fanOut(event, payload, exclude)
}

func (h *Hub) fanOut(event string, payload any, exclude string) {
	data, ok := h.encode(event, payload)
	if !ok {
		return
	}

	h.mu.Lock()
	// Copy the targets so we can release the lock before sending.
	targets := make([]*Client, 0, len(h.conns))
	for id, entry := range h.conns {
		if id == exclude {
			continue
		}
		targets = append(targets, entry.client)
	}
	h.mu.Unlock()

	for _, c := range targets {
		h.trySend(c, data)
	}
}

// encode wraps the payload in an Envelope and marshals it.
func (h *Hub) encode(event string, payload any) ([]byte, bool) {
	data, err := json.Marshal(payload)
	if err != nil {
		log.Printf("ws: failed to marshal %s payload: %v", event, err)
		return nil, false
	}
	env, err := json.Marshal(Envelope{Event: event, Payload: data})
	if err != nil {
		log.Printf("ws: failed to marshal %s envelope: %v", event, err)
		return nil, false
	}
	return env, true
}

// trySend queues a message for delivery to the client. Returns false
// if the client's buffer is full (slow consumer).
func (h *Hub) trySend(c *Client, data []byte) bool {
	select {
	case c.send <- data:
		return true
	default:
		h.droppedMessages.Add(1)
		log.Printf("ws: send buffer full for conn %s, dropping message", c.id)
		return false
	}
}

// TouchActivity updates the last-active timestamp for a client.
// Call this when a client sends a message to prevent idle reaping.
func (h *Hub) TouchActivity(c *Client) {
	h.mu.Lock()
	if entry, ok := h.conns[c.id]; ok {
		entry.lastActive = time.Now()
	}
	h.mu.Unlock()
}

// Count returns the number of active connections.
func (h *Hub) Count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.conns)
}

// Stats returns point-in-time connection statistics.
func (h *Hub) Stats() Stats {
	h.mu.Lock()
	active := len(h.conns)
	maxConns := h.maxConns
	h.mu.Unlock()
	return Stats{
		Active:          active,
		MaxConns:        maxConns,
		Rejected:        h.rejected.Load(),
		DroppedMessages: h.droppedMessages.Load(),
		IdleReaped:      h.idleReaped.Load(),
	}
}

// Shutdown gracefully closes all connections. It cancels every write
// pump and closes each websocket with StatusGoingAway.
func (h *Hub) Shutdown() {
	h.mu.Lock()
	h.closed = true
	conns := make(map[string]*connEntry, len(h.conns))
	for id, entry := range h.conns {
		conns[id] = entry
	}
	h.conns = make(map[string]*connEntry)
	h.mu.Unlock()

	if h.stopIdle != nil {
		h.stopIdle()
	}

	for _, entry := range conns {
		entry.cancel()
		entry.client.conn.Close(websocket.StatusGoingAway, "server shutting down")
	}
}

// idleReapLoop periodically checks for and closes idle connections.
func (h *Hub) idleReapLoop(ctx context.Context) {
	ticker := time.NewTicker(idleCheckInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			h.reapIdle()
		}
	}
}

// reapIdle closes connections that have been idle longer than idleTTL.
func (h *Hub) reapIdle() {
	h.mu.Lock()
	now := time.Now()
	var stale []*connEntry
	for id, entry := range h.conns {
		if now.Sub(entry.lastActive) > h.idleTTL {
			stale = append(stale, entry)
			delete(h.conns, id)
		}
	}
	h.mu.Unlock()

	for _, entry := range stale {
		entry.cancel()
		entry.client.conn.Close(websocket.StatusPolicyViolation, "idle timeout")
		h.idleReaped.Add(1)
		log.Printf("ws: reaped idle connection %s", entry.client.id)
	}
}

// writePump drains the client's send channel, writing each message
// to the websocket connection. It exits when ctx is cancelled or the
// send channel is closed.
func (h *Hub) writePump(ctx context.Context, c *Client) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-c.send:
			if !ok {
				return
			}
			writeCtx, cancel := context.WithTimeout(ctx, writeTimeout)
			if err := c.conn.Write(writeCtx, websocket.MessageText, msg); err != nil {
				cancel()
				log.Printf("ws: write to conn %s failed: %v", c.id, err)
				return
			}
			cancel()
		}
	}
}
