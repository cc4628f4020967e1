// Package api exposes the webhook ingestion endpoint and a read-only
// monitoring surface (recent signals, orders, tracked errors) over HTTP
// and WebSocket.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"github.com/atlas-desktop/trading-backend/internal/apperr"
	"github.com/atlas-desktop/trading-backend/internal/store"
	"github.com/atlas-desktop/trading-backend/internal/webhook"
	"github.com/atlas-desktop/trading-backend/pkg/types"
)

// Server is the HTTP/WebSocket API surface for webhook ingestion and
// monitoring.
type Server struct {
	mu         sync.RWMutex
	logger     *zap.Logger
	config     *types.ServerConfig
	router     *mux.Router
	httpServer *http.Server
	upgrader   websocket.Upgrader

	ingestor     *webhook.Ingestor
	biasIngestor *webhook.BiasIngestor
	db           *store.DB
	tracker      *apperr.Tracker

	clients map[string]*monitorClient
}

type monitorClient struct {
	conn *websocket.Conn
	send chan []byte
}

// NewServer wires the router and middleware, but does not start listening
// until Start is called.
func NewServer(logger *zap.Logger, config *types.ServerConfig, ingestor *webhook.Ingestor, biasIngestor *webhook.BiasIngestor, db *store.DB, tracker *apperr.Tracker) *Server {
	s := &Server{
		logger:       logger.Named("api"),
		config:       config,
		router:       mux.NewRouter(),
		ingestor:     ingestor,
		biasIngestor: biasIngestor,
		db:           db,
		tracker:      tracker,
		clients:      make(map[string]*monitorClient),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.HandleFunc("/api/v1/health", s.handleHealth).Methods("GET")
	s.router.HandleFunc("/api/v1/webhook/signal", s.handleWebhook).Methods("POST")
	s.router.HandleFunc("/api/v1/webhook/bias/mtf", s.handleBiasMTF).Methods("POST")
	s.router.HandleFunc("/api/v1/webhook/bias/gamma/{symbol}", s.handleBiasGamma).Methods("POST")

	s.router.HandleFunc("/api/v1/signals/recent", s.handleRecentSignals).Methods("GET")
	s.router.HandleFunc("/api/v1/orders/recent", s.handleRecentOrders).Methods("GET")
	s.router.HandleFunc("/api/v1/errors/recent", s.handleRecentErrors).Methods("GET")
	s.router.HandleFunc("/api/v1/audit/webhook/{signalId}", s.handleAuditTrail).Methods("GET")

	s.router.HandleFunc(s.config.WebSocketPath, s.handleMonitorSocket)
}

// Start begins listening. It blocks until Stop is called or the listener
// fails.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)

	handler := cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"*", "x-webhook-signature", "x-request-id"},
		AllowCredentials: true,
	}).Handler(s.router)

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}

	s.logger.Info("starting api server", zap.String("addr", addr))
	return s.httpServer.ListenAndServe()
}

// Stop gracefully shuts the server down, closing any live monitor sockets.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	for id, c := range s.clients {
		c.conn.Close()
		delete(s.clients, id)
	}
	s.mu.Unlock()

	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(r, 1<<20)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"status": webhook.OutcomeInvalidPayload, "errors": []string{"body too large or unreadable"}})
		return
	}

	requestID := r.Header.Get("x-request-id")
	if requestID == "" {
		requestID = types.NewID().String()
	}

	result := s.ingestor.Ingest(r.Context(), body, r.Header.Get("x-webhook-signature"), requestID)
	s.broadcast(result)

	switch result.Outcome {
	case webhook.OutcomeAccepted:
		writeJSON(w, http.StatusCreated, map[string]any{
			"status":             result.Outcome,
			"signal_id":          deref(result.SignalID),
			"processing_time_ms": result.ProcessingTimeMs,
		})
	case webhook.OutcomeDuplicate:
		writeJSON(w, http.StatusOK, map[string]any{"status": result.Outcome, "signal_id": deref(result.SignalID)})
	case webhook.OutcomeInvalidSignature:
		writeJSON(w, http.StatusUnauthorized, map[string]any{"status": result.Outcome})
	case webhook.OutcomeInvalidPayload:
		writeJSON(w, http.StatusBadRequest, map[string]any{"status": result.Outcome, "errors": result.Errors})
	default:
		writeJSON(w, http.StatusInternalServerError, map[string]any{"status": result.Outcome, "error": "internal error"})
	}
}

func (s *Server) handleBiasMTF(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(r, 1<<20)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"status": webhook.BiasOutcomeInvalidPayload, "errors": []string{"body too large or unreadable"}})
		return
	}

	result := s.biasIngestor.IngestMTF(r.Context(), body, r.Header.Get("x-webhook-signature"))
	s.writeBiasResult(w, result)
}

func (s *Server) handleBiasGamma(w http.ResponseWriter, r *http.Request) {
	symbol := mux.Vars(r)["symbol"]

	body, err := readBody(r, 1<<20)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"status": webhook.BiasOutcomeInvalidPayload, "errors": []string{"body too large or unreadable"}})
		return
	}

	result := s.biasIngestor.IngestGamma(r.Context(), symbol, body, r.Header.Get("x-webhook-signature"))
	s.writeBiasResult(w, result)
}

func (s *Server) writeBiasResult(w http.ResponseWriter, result webhook.BiasResult) {
	switch result.Outcome {
	case webhook.BiasOutcomeAccepted:
		writeJSON(w, http.StatusAccepted, map[string]any{"status": result.Outcome, "symbol": result.Symbol})
	case webhook.BiasOutcomeInvalidSignature:
		writeJSON(w, http.StatusUnauthorized, map[string]any{"status": result.Outcome})
	default:
		writeJSON(w, http.StatusBadRequest, map[string]any{"status": result.Outcome, "errors": result.Errors})
	}
}

func (s *Server) handleRecentSignals(w http.ResponseWriter, r *http.Request) {
	signals, err := s.db.Signals.Recent(r.Context(), 50)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, signals)
}

func (s *Server) handleRecentOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := s.db.Orders.Recent(r.Context(), 50)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, orders)
}

func (s *Server) handleRecentErrors(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.tracker.Recent(100))
}

func (s *Server) handleAuditTrail(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	signalID, err := parseUUID(vars["signalId"])
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid signal id"})
		return
	}
	signal, err := s.db.Signals.Get(r.Context(), signalID)
	if err != nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "signal not found"})
		return
	}
	writeJSON(w, http.StatusOK, signal)
}

func (s *Server) handleMonitorSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	client := &monitorClient{conn: conn, send: make(chan []byte, 32)}
	id := types.NewID().String()

	s.mu.Lock()
	if len(s.clients) >= s.config.MaxConnections {
		s.mu.Unlock()
		conn.Close()
		return
	}
	s.clients[id] = client
	s.mu.Unlock()

	go s.writePump(id, client)
}

func (s *Server) writePump(id string, client *monitorClient) {
	defer func() {
		s.mu.Lock()
		delete(s.clients, id)
		s.mu.Unlock()
		client.conn.Close()
	}()

	for msg := range client.send {
		client.conn.SetWriteDeadline(time.Now().Add(s.config.WriteTimeout))
		if err := client.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			return
		}
	}
}

func (s *Server) broadcast(result webhook.Result) {
	payload, err := json.Marshal(result)
	if err != nil {
		return
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, c := range s.clients {
		select {
		case c.send <- payload:
		default:
		}
	}
}

func readBody(r *http.Request, maxBytes int64) ([]byte, error) {
	limited := http.MaxBytesReader(nil, r.Body, maxBytes)
	buf := make([]byte, 0, 4096)
	chunk := make([]byte, 4096)
	for {
		n, err := limited.Read(chunk)
		buf = append(buf, chunk[:n]...)
		if err != nil {
			if err.Error() == "EOF" {
				break
			}
			return nil, err
		}
	}
	return buf, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
