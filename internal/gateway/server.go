// Package gateway is the real-time fan-out surface: support agents connect
// over websocket and join rooms (ticket status, "notification", or a ticket
// id) to receive ticket and message state changes as they happen.
package gateway

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nextlevelbuilder/deskgate/internal/bus"
)

const writeTimeout = 10 * time.Second

// Server is the websocket hub. It implements bus.Publisher.
type Server struct {
	upgrader websocket.Upgrader

	mu      sync.RWMutex
	clients map[*client]struct{}

	httpServer *http.Server
}

type client struct {
	conn  *websocket.Conn
	rooms map[string]struct{}
	send  chan []byte
	mu    sync.RWMutex
}

// clientFrame is what a connected agent sends: room membership changes.
type clientFrame struct {
	Action string `json:"action"` // "join" or "leave"
	Room   string `json:"room"`
}

// wireEvent is the serialized broadcast frame.
type wireEvent struct {
	Name    string `json:"name"`
	Action  string `json:"action"`
	Payload any    `json:"payload,omitempty"`
}

// NewServer creates the hub.
func NewServer() *Server {
	return &Server{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		clients: make(map[*client]struct{}),
	}
}

// Start runs the HTTP listener serving the websocket endpoint. Blocks until
// Stop is called.
func (s *Server) Start(addr string) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWS)
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	slog.Info("gateway listening", "addr", addr)
	err := s.httpServer.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Stop shuts the HTTP listener down.
func (s *Server) Stop(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

// Broadcast delivers the event to every client subscribed to at least one of
// its rooms. Slow clients lose events rather than blocking the pipeline.
func (s *Server) Broadcast(ev bus.Event) {
	data, err := json.Marshal(wireEvent{Name: ev.Name, Action: ev.Action, Payload: ev.Payload})
	if err != nil {
		slog.Error("failed to marshal broadcast event", "event", ev.Name, "error", err)
		return
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	for c := range s.clients {
		if !c.inAnyRoom(ev.Rooms) {
			continue
		}
		select {
		case c.send <- data:
		default:
			slog.Warn("dropping event for slow gateway client")
		}
	}
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("websocket upgrade failed", "error", err)
		return
	}

	c := &client{
		conn:  conn,
		rooms: make(map[string]struct{}),
		send:  make(chan []byte, 64),
	}

	s.mu.Lock()
	s.clients[c] = struct{}{}
	s.mu.Unlock()

	go c.writeLoop()
	s.readLoop(c)
}

func (s *Server) readLoop(c *client) {
	defer func() {
		s.mu.Lock()
		delete(s.clients, c)
		s.mu.Unlock()
		close(c.send)
		c.conn.Close()
	}()

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		var frame clientFrame
		if err := json.Unmarshal(data, &frame); err != nil {
			slog.Debug("ignoring malformed client frame", "error", err)
			continue
		}
		switch frame.Action {
		case "join":
			c.join(frame.Room)
		case "leave":
			c.leave(frame.Room)
		}
	}
}

func (c *client) writeLoop() {
	for data := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
			return
		}
	}
}

func (c *client) join(room string) {
	if room == "" {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rooms[room] = struct{}{}
}

func (c *client) leave(room string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.rooms, room)
}

func (c *client) inAnyRoom(rooms []string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, r := range rooms {
		if _, ok := c.rooms[r]; ok {
			return true
		}
	}
	return false
}
