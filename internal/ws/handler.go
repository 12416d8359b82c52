package ws

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"log"
	"net/http"

	"github.com/christopherjohns/officechat/internal/chat"
	"github.com/christopherjohns/officechat/internal/ratelimit"
	"nhooyr.io/websocket"
)

// JoinPayload is sent by the client to announce a username.
type JoinPayload struct {
	Username string `json:"username"`
}

// MessagePayload is sent by the client to post a message.
type MessagePayload struct {
	Message string `json:"message"`
}

// TypingPayload is sent by the client to flag typing state.
type TypingPayload struct {
	Typing bool `json:"typing"`
}

// ErrorPayload is sent to a client whose event was rejected.
type ErrorPayload struct {
	Message string `json:"message"`
}

// Handler upgrades HTTP requests to websockets and feeds inbound
// events to the dispatcher. Malformed frames are logged and dropped;
// the connection stays open.
type Handler struct {
	hub        *Hub
	dispatcher *chat.Dispatcher
	limiter    *ratelimit.Limiter
}

// NewHandler creates a websocket Handler. limiter may be nil to
// disable message rate limiting.
func NewHandler(hub *Hub, dispatcher *chat.Dispatcher, limiter *ratelimit.Limiter) *Handler {
	return &Handler{
		hub:        hub,
		dispatcher: dispatcher,
		limiter:    limiter,
	}
}

// ServeHTTP upgrades the HTTP connection to a websocket and runs the
// read loop for the client.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true, // Allow all origins in dev; tighten in production.
	})
	if err != nil {
		log.Printf("ws: accept error: %v", err)
		return
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	client := &Client{
		conn: conn,
		id:   generateConnID(),
	}

	connCtx := h.hub.Add(client)
	h.dispatcher.Connect(client.id)

	h.readLoop(r.Context(), connCtx, client)

	h.hub.Remove(client)
	h.dispatcher.Disconnect(client.id)
	if h.limiter != nil {
		h.limiter.Forget(client.id)
	}
}

// readLoop reads frames from the client until the connection closes
// or the hub cancels connCtx.
func (h *Handler) readLoop(ctx context.Context, connCtx context.Context, client *Client) {
	for {
		select {
		case <-connCtx.Done():
			return
		default:
		}

		_, data, err := client.conn.Read(ctx)
		if err != nil {
			// Normal close or context cancelled.
			return
		}

		// Mark activity so idle reaping doesn't close active connections.
		h.hub.TouchActivity(client)

		var env Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			log.Printf("ws: conn %s sent invalid JSON, dropping frame", client.id)
			continue
		}

		switch env.Event {
		case chat.EventJoinChat:
			var p JoinPayload
			if err := json.Unmarshal(env.Payload, &p); err != nil {
				log.Printf("ws: conn %s sent malformed join_chat payload, dropping", client.id)
				continue
			}
			h.dispatcher.Join(client.id, p.Username)

		case chat.EventSendMessage:
			if h.limiter != nil && !h.limiter.Allow(client.id) {
				h.hub.SendTo(client.id, "error", ErrorPayload{Message: "message rate limit exceeded"})
				continue
			}
			var p MessagePayload
			if err := json.Unmarshal(env.Payload, &p); err != nil {
				log.Printf("ws: conn %s sent malformed send_message payload, dropping", client.id)
				continue
			}
			h.dispatcher.SendMessage(client.id, p.Message)

		case chat.EventTyping:
			var p TypingPayload
			if err := json.Unmarshal(env.Payload, &p); err != nil {
				log.Printf("ws: conn %s sent malformed typing payload, dropping", client.id)
				continue
			}
			h.dispatcher.Typing(client.id, p.Typing)

		default:
			// Unknown events are ignored.
		}
	}
}

func generateConnID() string {
	b := make([]byte, 16)
	rand.Read(b)
	return hex.EncodeToString(b)
}
