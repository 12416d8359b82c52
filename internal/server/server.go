package server

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/christopherjohns/officechat/internal/chat"
	"github.com/christopherjohns/officechat/internal/config"
	"github.com/christopherjohns/officechat/internal/ratelimit"
	"github.com/christopherjohns/officechat/internal/ws"
	"github.com/redis/go-redis/v9"
)

// Server wires the chat dispatcher to its HTTP and websocket surface.
type Server struct {
	cfg        config.Config
	mux        *http.ServeMux
	httpSrv    *http.Server
	hub        *ws.Hub
	dispatcher *chat.Dispatcher
	history    chat.History
	sweepStop  context.CancelFunc
}

type options struct {
	cfg   config.Config
	redis redis.Cmdable
}

// Option configures a Server.
type Option func(*options)

// WithConfig supplies the full configuration. The addr argument to New
// still wins when non-empty.
func WithConfig(cfg config.Config) Option {
	return func(o *options) {
		o.cfg = cfg
	}
}

// WithRedis backs the chat history with Redis instead of process memory.
func WithRedis(client redis.Cmdable) Option {
	return func(o *options) {
		o.redis = client
	}
}

// New creates a new Server listening on addr.
func New(addr string, opts ...Option) *Server {
	o := options{cfg: config.Default()}
	for _, opt := range opts {
		opt(&o)
	}
	if addr != "" {
		o.cfg.ListenAddr = addr
	}

	var history chat.History = chat.NewLog()
	if o.redis != nil {
		history = chat.NewRedisHistory(o.redis)
	}

	var hubOpts []ws.HubOption
	if o.cfg.MaxConns > 0 {
		hubOpts = append(hubOpts, ws.WithMaxConns(o.cfg.MaxConns))
	}
	if o.cfg.IdleTimeout > 0 {
		hubOpts = append(hubOpts, ws.WithIdleTimeout(time.Duration(o.cfg.IdleTimeout)))
	}
	hub := ws.NewHub(hubOpts...)

	dispatcher := chat.NewDispatcher(chat.NewSessions(), chat.NewTyping(), history, hub)
	limiter := ratelimit.New(o.cfg.RateLimit.Max, time.Duration(o.cfg.RateLimit.Window))

	s := &Server{
		cfg:        o.cfg,
		mux:        http.NewServeMux(),
		hub:        hub,
		dispatcher: dispatcher,
		history:    history,
	}
	s.mux.Handle("GET /ws", ws.NewHandler(hub, dispatcher, limiter))
	s.mux.HandleFunc("GET /{$}", s.handleStatus)
	s.mux.HandleFunc("GET /health", s.handleHealth)

	// No read/write timeouts: websocket connections are long-lived.
	s.httpSrv = &http.Server{
		Addr:              o.cfg.ListenAddr,
		Handler:           s.mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Run starts the HTTP server and blocks until it stops. A clean
// Shutdown returns nil.
func (s *Server) Run() error {
	if ttl := time.Duration(s.cfg.TypingTimeout); ttl > 0 {
		ctx, cancel := context.WithCancel(context.Background())
		s.sweepStop = cancel
		s.dispatcher.StartTypingSweep(ctx, ttl)
	}

	log.Printf("server: listening on %s", s.cfg.ListenAddr)
	if err := s.httpSrv.ListenAndServe(); err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown drains HTTP connections, then closes every websocket.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.sweepStop != nil {
		s.sweepStop()
	}
	err := s.httpSrv.Shutdown(ctx)
	s.hub.Shutdown()
	return err
}

type statusResponse struct {
	Message        string   `json:"message"`
	Status         string   `json:"status"`
	ConnectedUsers int      `json:"connected_users"`
	TotalMessages  int      `json:"total_messages"`
	OnlineUsers    []string `json:"online_users"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	online := s.dispatcher.OnlineUsers()
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(statusResponse{
		Message:        "Office Chat Server API is running!",
		Status:         "active",
		ConnectedUsers: online.Count,
		TotalMessages:  s.history.Count(),
		OnlineUsers:    online.Users,
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"status":    "healthy",
		"timestamp": time.Now().Format(time.RFC3339),
	})
}
