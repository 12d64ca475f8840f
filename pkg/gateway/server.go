// Package gateway exposes the memory engine to out-of-process collaborators
// over JSON-RPC 2.0, via single-shot HTTP POSTs and a persistent WebSocket.
package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/rs/zerolog"
	"github.com/zeroclaw-labs/zeroclaw-sub002/internal/observability"
	"github.com/zeroclaw-labs/zeroclaw-sub002/pkg/memory"
)

// Config holds server configuration
type Config struct {
	Host         string
	Port         int
	SharedSecret string
	Logger       zerolog.Logger
}

// Server serves the memory engine's operations over /rpc and /ws, plus
// /metrics and /healthz.
type Server struct {
	host           string
	port           int
	engine         *memory.Engine
	server         *http.Server
	upgrader       websocket.Upgrader
	clients        *ClientRegistry
	auth           *AuthHandler
	broadcaster    *EventBroadcaster
	methods        map[string]method
	logger         zerolog.Logger
	isShuttingDown bool
	shutdownMu     sync.RWMutex
	inFlightReqs   sync.WaitGroup
}

// NewServer creates a gateway server around engine.
func NewServer(engine *memory.Engine, cfg Config) (*Server, error) {
	if engine == nil {
		return nil, fmt.Errorf("memory engine is required")
	}
	if cfg.Port <= 0 {
		return nil, fmt.Errorf("invalid port: %d", cfg.Port)
	}
	if cfg.SharedSecret == "" {
		return nil, fmt.Errorf("shared secret is required")
	}

	clients := NewClientRegistry()

	s := &Server{
		host:        cfg.Host,
		port:        cfg.Port,
		engine:      engine,
		clients:     clients,
		auth:        NewAuthHandler(cfg.SharedSecret),
		broadcaster: NewEventBroadcaster(clients, cfg.Logger),
		methods:     make(map[string]method),
		logger:      cfg.Logger,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true // Auth happens at the message layer, not by origin
			},
		},
	}

	if err := s.registerBuiltinMethods(); err != nil {
		return nil, err
	}

	return s, nil
}

// Start starts serving. It returns once the listener goroutine is running.
func (s *Server) Start() error {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.HandleFunc("/rpc", s.handleRPC)
	mux.Handle("/metrics", observability.MetricsHandler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	s.server = &http.Server{
		Addr:    fmt.Sprintf("%s:%d", s.host, s.port),
		Handler: mux,
	}

	s.logger.Info().Str("addr", s.server.Addr).Msg("Starting gateway server")

	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error().Err(err).Msg("Gateway server error")
		}
	}()

	return nil
}

// Stop gracefully stops the server, waiting for in-flight requests.
func (s *Server) Stop() error {
	s.shutdownMu.Lock()
	s.isShuttingDown = true
	s.shutdownMu.Unlock()

	s.logger.Info().Msg("Shutting down gateway server")

	s.broadcaster.Broadcast("server.shutdown", map[string]interface{}{
		"message": "Server is shutting down",
	})

	done := make(chan struct{})
	go func() {
		s.inFlightReqs.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(30 * time.Second):
		s.logger.Warn().Msg("Shutdown timeout reached, forcing close")
	}

	for _, client := range s.clients.GetAll() {
		client.Conn.Close()
	}
	observability.SetGatewayConnections(0)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown server: %w", err)
	}

	s.logger.Info().Msg("Gateway server stopped")
	return nil
}

// broadcast notifies all authenticated WebSocket clients.
func (s *Server) broadcast(event string, data interface{}) {
	s.broadcaster.Broadcast(event, data)
}

// handleRPC handles single-shot HTTP JSON-RPC requests authenticated with a
// bearer token.
func (s *Server) handleRPC(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if !s.auth.VerifyBearer(r.Header.Get("Authorization")) {
		observability.RecordSecurityAudit(r.Context(), "rpc", r.RemoteAddr, "failure", nil)
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "failed to read request body", http.StatusBadRequest)
		return
	}

	req, parseErr := parseRequest(body)
	if parseErr != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(errorResponse("", ParseError, parseErr.Error()))
		return
	}

	s.inFlightReqs.Add(1)
	defer s.inFlightReqs.Done()

	resp := s.route(r.Context(), "http:"+r.RemoteAddr, req)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		s.logger.Error().Err(err).Msg("Failed to encode RPC response")
	}
}

// handleWebSocket upgrades the connection and hands it to a per-client loop.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	s.shutdownMu.RLock()
	if s.isShuttingDown {
		s.shutdownMu.RUnlock()
		http.Error(w, "Server is shutting down", http.StatusServiceUnavailable)
		return
	}
	s.shutdownMu.RUnlock()

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to upgrade connection")
		return
	}

	clientID, _ := gonanoid.New()
	client := &Client{
		ID:           clientID,
		Conn:         conn,
		ConnectedAt:  time.Now(),
		LastActivity: time.Now(),
		IPAddress:    r.RemoteAddr,
	}

	s.clients.Add(client)
	observability.SetGatewayConnections(s.clients.Count())

	s.logger.Info().
		Str("clientId", clientID).
		Str("ip", r.RemoteAddr).
		Msg("Client connected")

	go s.handleClient(client)
}

func (s *Server) handleClient(client *Client) {
	defer func() {
		client.Conn.Close()
		s.clients.Remove(client.ID)
		observability.SetGatewayConnections(s.clients.Count())
		s.logger.Info().Str("clientId", client.ID).Msg("Client disconnected")
	}()

	for {
		_, message, err := client.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				s.logger.Error().Err(err).Str("clientId", client.ID).Msg("WebSocket error")
			}
			return
		}

		s.clients.UpdateActivity(client.ID)

		if !s.handleMessage(client, message) {
			return
		}
	}
}

// handleMessage processes one client message, returning false when the
// connection should close.
func (s *Server) handleMessage(client *Client, message []byte) bool {
	if !client.Authenticated {
		return s.handleAuthMessage(client, message)
	}

	req, err := parseRequest(message)
	if err != nil {
		s.sendError(client, "", ParseError, err.Error())
		return true
	}

	s.inFlightReqs.Add(1)
	go func() {
		defer s.inFlightReqs.Done()

		response := s.route(context.Background(), "ws:"+client.ID, req)
		if err := client.writeJSON(response); err != nil {
			s.logger.Error().
				Err(err).
				Str("clientId", client.ID).
				Str("requestId", req.ID).
				Msg("Failed to send response")
		}
	}()
	return true
}

// handleAuthMessage expects the client's first message to be a token auth
// request. Three failures close the connection.
func (s *Server) handleAuthMessage(client *Client, message []byte) bool {
	var auth AuthRequest
	if err := json.Unmarshal(message, &auth); err != nil || auth.Method != "auth" {
		s.sendError(client, "", AuthenticationRequired, "Authentication required")
		return false
	}

	if !s.auth.VerifyToken(auth.Params.Token) {
		client.AuthAttempts++
		observability.RecordSecurityAudit(context.Background(), "ws-auth", client.IPAddress, "failure", nil)

		result := AuthResult{Event: "auth.failure", Message: "Invalid token"}
		if err := client.writeJSON(result); err != nil {
			return false
		}

		s.logger.Warn().Str("clientId", client.ID).Msg("Authentication failed")
		return client.AuthAttempts < 3
	}

	client.Authenticated = true
	observability.RecordSecurityAudit(context.Background(), "ws-auth", client.IPAddress, "success", nil)

	if err := client.writeJSON(AuthResult{Event: "auth.success", Success: true}); err != nil {
		return false
	}

	s.logger.Info().Str("clientId", client.ID).Msg("Client authenticated")
	return true
}

func (s *Server) sendError(client *Client, requestID string, code int, message string) {
	if err := client.writeJSON(errorResponse(requestID, code, message)); err != nil {
		s.logger.Error().
			Err(err).
			Str("clientId", client.ID).
			Msg("Failed to send error response")
	}
}

// parseRequest parses and validates a JSON-RPC 2.0 request envelope.
func parseRequest(data []byte) (*RPCRequest, error) {
	var req RPCRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}
	if req.JSONRPC != "2.0" {
		return nil, fmt.Errorf("unsupported JSON-RPC version: %q", req.JSONRPC)
	}
	if req.Method == "" {
		return nil, fmt.Errorf("method is required")
	}
	return &req, nil
}
