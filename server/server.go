// Package server bridges haptic telemetry and tunables to websocket clients.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/pthm-cable/touchfield/haptics"
)

// Message types.
const (
	TypeTelemetry = "telemetry"
	TypeParams    = "params"
	TypeError     = "error"
)

// Message is the envelope for every frame sent to clients.
type Message struct {
	Type      string             `json:"type"`
	Telemetry *haptics.Telemetry `json:"telemetry,omitempty"`
	Params    *haptics.Update    `json:"params,omitempty"`
	Error     string             `json:"error,omitempty"`
}

const writeTimeout = time.Second

// Server streams telemetry to websocket clients and applies the tunable
// updates they send.
type Server struct {
	params *haptics.Params
	source func() haptics.Telemetry
	period time.Duration
	logger *slog.Logger

	upgrader websocket.Upgrader

	clientsMu sync.RWMutex
	clients   map[*websocket.Conn]*sync.Mutex
}

// New creates a server. source returns the latest telemetry; period is the
// broadcast interval.
func New(params *haptics.Params, source func() haptics.Telemetry, period time.Duration, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if period <= 0 {
		period = time.Second / 30
	}
	return &Server{
		params: params,
		source: source,
		period: period,
		logger: logger,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		clients: make(map[*websocket.Conn]*sync.Mutex),
	}
}

// Handler returns the HTTP routes: /ws and /healthz.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.HandleFunc("/healthz", s.handleHealth)
	return mux
}

// ListenAndServe serves on addr and broadcasts until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s.Handler()}

	go s.Run(ctx)
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
		s.closeClients()
	}()

	s.logger.Info("websocket bridge listening", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Run broadcasts telemetry every period until ctx is cancelled.
func (s *Server) Run(ctx context.Context) {
	ticker := time.NewTicker(s.period)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Broadcast()
		}
	}
}

// Broadcast sends the latest telemetry to every client.
func (s *Server) Broadcast() {
	t := s.source()
	s.broadcast(Message{Type: TypeTelemetry, Telemetry: &t})
}

// Clients returns the number of connected clients.
func (s *Server) Clients() int {
	s.clientsMu.RLock()
	defer s.clientsMu.RUnlock()
	return len(s.clients)
}

func (s *Server) broadcast(msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		s.logger.Error("encoding broadcast", "error", err)
		return
	}

	s.clientsMu.RLock()
	var failed []*websocket.Conn
	for conn, mu := range s.clients {
		if err := writeMessage(conn, mu, data); err != nil {
			failed = append(failed, conn)
		}
	}
	s.clientsMu.RUnlock()

	for _, conn := range failed {
		s.removeClient(conn)
		conn.Close()
	}
}

func writeMessage(conn *websocket.Conn, mu *sync.Mutex, data []byte) error {
	mu.Lock()
	defer mu.Unlock()
	conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return conn.WriteMessage(websocket.TextMessage, data)
}

func (s *Server) send(conn *websocket.Conn, mu *sync.Mutex, msg Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return writeMessage(conn, mu, data)
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	mu := &sync.Mutex{}
	s.clientsMu.Lock()
	s.clients[conn] = mu
	s.clientsMu.Unlock()
	defer s.removeClient(conn)

	s.logger.Info("websocket client connected", "remote", r.RemoteAddr)

	// Current state first so the client can populate its controls.
	current := s.params.Current()
	if err := s.send(conn, mu, Message{Type: TypeParams, Params: &current}); err != nil {
		return
	}
	t := s.source()
	if err := s.send(conn, mu, Message{Type: TypeTelemetry, Telemetry: &t}); err != nil {
		return
	}

	for {
		var update haptics.Update
		if err := conn.ReadJSON(&update); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Warn("websocket read failed", "remote", r.RemoteAddr, "error", err)
			}
			return
		}

		if err := s.params.Apply(update); err != nil {
			s.logger.Info("rejected tunable update", "remote", r.RemoteAddr, "error", err)
			if err := s.send(conn, mu, Message{Type: TypeError, Error: err.Error()}); err != nil {
				return
			}
			continue
		}

		current := s.params.Current()
		s.broadcast(Message{Type: TypeParams, Params: &current})
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	t := s.source()
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"status":  "ok",
		"state":   t.State,
		"ticks":   t.Ticks,
		"clients": s.Clients(),
	})
}

func (s *Server) removeClient(conn *websocket.Conn) {
	s.clientsMu.Lock()
	delete(s.clients, conn)
	s.clientsMu.Unlock()
}

func (s *Server) closeClients() {
	s.clientsMu.Lock()
	defer s.clientsMu.Unlock()
	for conn := range s.clients {
		conn.Close()
		delete(s.clients, conn)
	}
}
