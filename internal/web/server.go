// Package web exposes the configuration and telemetry channels over HTTP
// and a websocket.
package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/guidoenr/reflectube/internal/config"
	"github.com/guidoenr/reflectube/internal/engine"
)

// Message types carried over the websocket. They mirror the host page
// message names.
const (
	TypeUpdateSettings = "UPDATE_SETTINGS"
	TypeGetFPS         = "GET_FPS"
	TypeTelemetry      = "TELEMETRY"
	TypeError          = "ERROR"
)

const (
	defaultInterval = 500 * time.Millisecond
	writeWait       = 10 * time.Second
	pongWait        = 60 * time.Second
	pingPeriod      = 54 * time.Second
)

// Engine is the slice of the engine the server drives.
type Engine interface {
	Apply(p config.Patch) error
	Config() config.Config
	Telemetry() engine.Telemetry
}

// Options configure a Server.
type Options struct {
	// SavePath is where POST /api/save writes the configuration.
	SavePath string
	// Interval is the telemetry push period.
	Interval time.Duration
	Logger   zerolog.Logger
}

// Server serves the configuration API and pushes telemetry to websocket
// clients.
type Server struct {
	engine   Engine
	opts     Options
	log      zerolog.Logger
	mux      *http.ServeMux
	upgrader websocket.Upgrader

	mu        sync.RWMutex
	clients   map[*websocketClient]bool
	broadcast chan []byte
}

// Message is the websocket envelope.
type Message struct {
	Type      string            `json:"type"`
	Payload   *config.Patch     `json:"payload,omitempty"`
	FPS       *float64          `json:"fps,omitempty"`
	Telemetry *engine.Telemetry `json:"telemetry,omitempty"`
	Error     string            `json:"error,omitempty"`
}

// StatusResponse is returned by GET /api/status.
type StatusResponse struct {
	Telemetry engine.Telemetry `json:"telemetry"`
	Config    config.Config    `json:"config"`
	Filter    string           `json:"filter"`
}

type websocketClient struct {
	conn   *websocket.Conn
	send   chan []byte
	server *Server
	once   sync.Once
}

// NewServer builds a server around eng.
func NewServer(eng Engine, opts Options) *Server {
	if opts.Interval <= 0 {
		opts.Interval = defaultInterval
	}
	if opts.SavePath == "" {
		opts.SavePath = config.DefaultPath()
	}
	s := &Server{
		engine:    eng,
		opts:      opts,
		log:       opts.Logger.With().Str("component", "web").Logger(),
		mux:       http.NewServeMux(),
		clients:   make(map[*websocketClient]bool),
		broadcast: make(chan []byte, 256),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
	s.mux.HandleFunc("/api/status", s.handleStatus)
	s.mux.HandleFunc("/api/fps", s.handleFPS)
	s.mux.HandleFunc("/api/update", s.handleUpdate)
	s.mux.HandleFunc("/api/save", s.handleSave)
	s.mux.HandleFunc("/api/preset", s.handlePreset)
	s.mux.HandleFunc("/api/presets", s.handlePresets)
	s.mux.HandleFunc("/api/modes", s.handleModes)
	s.mux.HandleFunc("/ws", s.handleWebSocket)
	return s
}

// Handler returns the HTTP routes.
func (s *Server) Handler() http.Handler { return s.mux }

// Start serves on port until ctx ends.
func (s *Server) Start(ctx context.Context, port int) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           s.mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go s.Run(ctx)
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	s.log.Info().Str("addr", srv.Addr).Msg("server starting")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Run drives the broadcast and telemetry loops until ctx ends.
func (s *Server) Run(ctx context.Context) {
	go s.broadcastLoop(ctx)
	ticker := time.NewTicker(s.opts.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			s.closeClients()
			return
		case <-ticker.C:
			s.PublishTelemetry()
		}
	}
}

// PublishTelemetry queues a telemetry snapshot for every client. A full
// queue drops the snapshot.
func (s *Server) PublishTelemetry() {
	tel := s.engine.Telemetry()
	data, err := json.Marshal(Message{Type: TypeTelemetry, Telemetry: &tel})
	if err != nil {
		return
	}
	select {
	case s.broadcast <- data:
	default:
	}
}

// Clients returns the number of connected websocket clients.
func (s *Server) Clients() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.clients)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	cfg := s.engine.Config()
	tel := s.engine.Telemetry()
	writeJSON(w, http.StatusOK, StatusResponse{
		Telemetry: tel,
		Config:    cfg,
		Filter:    cfg.Filter(tel.Hue),
	})
}

func (s *Server) handleFPS(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]float64{"fps": s.engine.Telemetry().FPS})
}

func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var patch config.Patch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := s.apply(patch); err != nil {
		http.Error(w, err.Error(), statusFor(err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handlePreset(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	patch, err := config.Preset(r.URL.Query().Get("name"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	if err := s.apply(patch); err != nil {
		http.Error(w, err.Error(), statusFor(err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleSave(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if err := config.Save(s.opts.SavePath, s.engine.Config()); err != nil {
		http.Error(w, fmt.Sprintf("failed to save config: %v", err), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "saved", "path": s.opts.SavePath})
}

func (s *Server) handlePresets(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, config.PresetNames())
}

func (s *Server) handleModes(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, config.ModeNames())
}

func (s *Server) apply(patch config.Patch) error {
	if err := s.engine.Apply(patch); err != nil {
		s.log.Warn().Err(err).Msg("update rejected")
		return err
	}
	s.log.Debug().Msg("settings updated")
	return nil
}

func statusFor(err error) int {
	if errors.Is(err, engine.ErrTornDown) {
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Debug().Err(err).Msg("websocket upgrade")
		return
	}

	client := &websocketClient{
		conn:   conn,
		send:   make(chan []byte, 256),
		server: s,
	}

	s.mu.Lock()
	s.clients[client] = true
	s.mu.Unlock()

	go client.writePump()
	go client.readPump()
}

func (s *Server) broadcastLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case message := <-s.broadcast:
			s.mu.Lock()
			for client := range s.clients {
				select {
				case client.send <- message:
				default:
					delete(s.clients, client)
					client.close()
				}
			}
			s.mu.Unlock()
		}
	}
}

func (s *Server) closeClients() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for client := range s.clients {
		delete(s.clients, client)
		client.close()
	}
}

// handleMessage answers one inbound websocket message.
func (s *Server) handleMessage(data []byte) Message {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return Message{Type: TypeError, Error: err.Error()}
	}
	switch msg.Type {
	case TypeUpdateSettings:
		if msg.Payload == nil {
			return Message{Type: TypeError, Error: "missing payload"}
		}
		if err := s.apply(*msg.Payload); err != nil {
			return Message{Type: TypeError, Error: err.Error()}
		}
		tel := s.engine.Telemetry()
		return Message{Type: TypeTelemetry, Telemetry: &tel}
	case TypeGetFPS:
		fps := s.engine.Telemetry().FPS
		return Message{Type: TypeGetFPS, FPS: &fps}
	}
	return Message{Type: TypeError, Error: fmt.Sprintf("unknown message type %q", msg.Type)}
}

func (c *websocketClient) close() {
	c.once.Do(func() { close(c.send) })
}

func (c *websocketClient) readPump() {
	defer func() {
		c.server.mu.Lock()
		if c.server.clients[c] {
			delete(c.server.clients, c)
			c.close()
		}
		c.server.mu.Unlock()
		c.conn.Close()
	}()

	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		reply, err := json.Marshal(c.server.handleMessage(data))
		if err != nil {
			continue
		}
		c.server.mu.RLock()
		live := c.server.clients[c]
		if live {
			select {
			case c.send <- reply:
			default:
			}
		}
		c.server.mu.RUnlock()
	}
}

func (c *websocketClient) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
