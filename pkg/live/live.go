// Package live serves a running reactive store over HTTP. It exposes the
// current state for inspection, accepts writes, and streams flushed batch
// entries to websocket clients, which makes it the host-side consumer of
// the engine's deferred notification tier. The core itself stays free of
// any I/O; everything here attaches from the outside through public
// scheduler and store APIs.
package live

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/attune-dev/attune/pkg/reactive"
)

const tracerName = "attune/live"

// Update is one streamed batch entry.
type Update struct {
	Path  string `json:"path"`
	Value any    `json:"value"`
}

// Config configures a Server.
type Config struct {
	// Logger for connection lifecycle and faults. Default: slog.Default().
	Logger *slog.Logger

	// SendBuffer is the per-client outgoing frame buffer. A client that
	// cannot keep up is dropped. Default: 64.
	SendBuffer int

	// Tracer overrides the tracer used for update delivery spans.
	Tracer trace.Tracer
}

// Option configures the server.
type Option func(*Config)

// WithLogger sets the server logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Config) { c.Logger = logger }
}

// WithSendBuffer sets the per-client send buffer size.
func WithSendBuffer(n int) Option {
	return func(c *Config) { c.SendBuffer = n }
}

// WithTracer sets the tracer for update delivery spans.
func WithTracer(t trace.Tracer) Option {
	return func(c *Config) { c.Tracer = t }
}

// Server streams a store's batched updates and serves its state.
type Server struct {
	store  *reactive.Store
	logger *slog.Logger
	tracer trace.Tracer

	upgrader   websocket.Upgrader
	sendBuffer int

	mu      sync.Mutex
	clients map[*client]struct{}

	// detach removes the scheduler handler registered at construction.
	detach func()
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

// NewServer attaches to the store's runtime and begins receiving flushed
// batch entries. Call Close to detach.
func NewServer(store *reactive.Store, opts ...Option) *Server {
	cfg := Config{
		Logger:     slog.Default(),
		SendBuffer: 64,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.Tracer == nil {
		cfg.Tracer = otel.Tracer(tracerName)
	}

	s := &Server{
		store:      store,
		logger:     cfg.Logger,
		tracer:     cfg.Tracer,
		sendBuffer: cfg.SendBuffer,
		clients:    make(map[*client]struct{}),
	}
	s.detach = store.Runtime().Scheduler().OnUpdate(s.broadcast)
	return s
}

// Close detaches from the scheduler and disconnects all clients.
func (s *Server) Close() {
	s.detach()

	s.mu.Lock()
	for c := range s.clients {
		close(c.send)
	}
	s.clients = make(map[*client]struct{})
	s.mu.Unlock()
}

// Handler returns the HTTP surface:
//
//	GET  /state         full backing data as JSON
//	GET  /state/{path}  one value
//	PUT  /state/{path}  write one value (JSON body)
//	GET  /ws            websocket stream of flushed updates
//	GET  /metrics       Prometheus exposition
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Get("/state", s.handleState)
	r.Get("/state/{path}", s.handleGet)
	r.Put("/state/{path}", s.handleSet)
	r.Get("/ws", s.handleWS)
	r.Handle("/metrics", promhttp.Handler())
	return r
}

func (s *Server) handleState(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, s.store.Root())
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	path := chi.URLParam(r, "path")
	writeJSON(w, Update{Path: path, Value: s.store.Get(path)})
}

func (s *Server) handleSet(w http.ResponseWriter, r *http.Request) {
	path := chi.URLParam(r, "path")

	var value any
	if err := json.NewDecoder(r.Body).Decode(&value); err != nil {
		http.Error(w, "invalid JSON body", http.StatusBadRequest)
		return
	}
	s.store.Set(path, value)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("websocket upgrade failed", "error", err)
		return
	}

	c := &client{
		conn: conn,
		send: make(chan []byte, s.sendBuffer),
	}
	s.mu.Lock()
	s.clients[c] = struct{}{}
	s.mu.Unlock()
	s.logger.Info("live client connected", "remote", conn.RemoteAddr())

	go s.writePump(c)

	// Read loop only detects disconnect; clients do not send data.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
	s.drop(c)
}

// broadcast fans one flushed batch entry out to every connected client.
// Runs in-line with Scheduler.Flush; a slow client is dropped rather
// than allowed to stall delivery.
func (s *Server) broadcast(path string, value any) {
	_, span := s.tracer.Start(context.Background(), "live.update",
		trace.WithAttributes(attribute.String("attune.path", path)))
	defer span.End()

	msg, err := json.Marshal(Update{Path: path, Value: value})
	if err != nil {
		s.logger.Error("update marshal failed", "path", path, "error", err)
		return
	}

	// Sends and channel closes both happen under s.mu, so a concurrent
	// Close can never close a channel mid-send.
	s.mu.Lock()
	var slow []*client
	for c := range s.clients {
		select {
		case c.send <- msg:
		default:
			slow = append(slow, c)
		}
	}
	for _, c := range slow {
		delete(s.clients, c)
		close(c.send)
	}
	reached := len(s.clients)
	s.mu.Unlock()

	for _, c := range slow {
		s.logger.Warn("dropped slow live client", "remote", c.conn.RemoteAddr())
	}
	span.SetAttributes(attribute.Int("attune.clients", reached))
}

func (s *Server) writePump(c *client) {
	defer c.conn.Close()
	for msg := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			return
		}
	}
	// Channel closed: say goodbye cleanly.
	_ = c.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}

func (s *Server) drop(c *client) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, present := s.clients[c]; present {
		delete(s.clients, c)
		close(c.send)
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
