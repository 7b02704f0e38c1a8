// Package server exposes the answer pipeline over HTTP: a JSON ask endpoint,
// a WebSocket chat channel, and read-only views of the audit trail and
// conversation history.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"

	"github.com/ziadkadry99/twinpilot/internal/compliance"
	"github.com/ziadkadry99/twinpilot/internal/pipeline"
	"github.com/ziadkadry99/twinpilot/internal/turn"
)

// Config holds server configuration.
type Config struct {
	Port      int
	PersonaID string
	AllowAll  bool // allow all CORS origins (dev mode)
}

// TurnRunner runs one conversational turn end to end.
type TurnRunner interface {
	Run(ctx context.Context, t turn.Turn) (*turn.Result, error)
}

// Server serves the twin over HTTP and WebSocket.
type Server struct {
	cfg        Config
	runner     TurnRunner
	audits     *compliance.Store
	convLog    *pipeline.ConversationStore
	router     chi.Router
	httpServer *http.Server
}

// New creates a server over the given pipeline and stores.
func New(cfg Config, runner TurnRunner, audits *compliance.Store, convLog *pipeline.ConversationStore) *Server {
	s := &Server{
		cfg:     cfg,
		runner:  runner,
		audits:  audits,
		convLog: convLog,
	}
	s.router = s.buildRouter()
	return s
}

func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	corsOpts := cors.Options{
		AllowedOrigins:   []string{"http://localhost:*", "http://127.0.0.1:*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}
	if s.cfg.AllowAll {
		corsOpts.AllowedOrigins = []string{"*"}
	}
	r.Use(cors.Handler(corsOpts))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/api", func(r chi.Router) {
		r.Post("/ask", s.handleAsk)
		r.Get("/audits", s.handleListAudits)
		r.Get("/audits/{turnID}", s.handleGetAudit)
		r.Get("/history", s.handleHistory)
	})

	r.Get("/ws/chat", s.handleWebSocket)

	return r
}

// Router returns the chi router, mainly for tests.
func (s *Server) Router() chi.Router { return s.router }

type askRequest struct {
	Utterance string          `json:"utterance"`
	PersonaID string          `json:"persona_id,omitempty"`
	Context   turn.ContextTag `json:"context,omitempty"`
	History   []turn.Message  `json:"history,omitempty"`
}

func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	var req askRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Utterance == "" {
		writeError(w, http.StatusBadRequest, "utterance is required")
		return
	}

	result, err := s.runner.Run(r.Context(), s.buildTurn(req))
	if err != nil {
		log.Printf("server: ask failed: %v", err)
		writeError(w, http.StatusInternalServerError, "turn processing failed")
		return
	}

	writeJSON(w, http.StatusOK, result)
}

func (s *Server) buildTurn(req askRequest) turn.Turn {
	personaID := req.PersonaID
	if personaID == "" {
		personaID = s.cfg.PersonaID
	}
	tag := req.Context
	if tag == "" {
		tag = turn.ContextPublic
	}
	return turn.Turn{
		ID:        uuid.New().String(),
		Utterance: req.Utterance,
		History:   req.History,
		PersonaID: personaID,
		Context:   tag,
	}
}

func (s *Server) handleListAudits(w http.ResponseWriter, r *http.Request) {
	personaID := r.URL.Query().Get("persona_id")
	if personaID == "" {
		personaID = s.cfg.PersonaID
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	records, err := s.audits.ListRecent(personaID, limit)
	if err != nil {
		log.Printf("server: listing audits: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to list audit records")
		return
	}
	if records == nil {
		records = []*compliance.Record{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"audits": records})
}

func (s *Server) handleGetAudit(w http.ResponseWriter, r *http.Request) {
	turnID := chi.URLParam(r, "turnID")
	record, err := s.audits.GetByTurn(turnID)
	if err != nil {
		log.Printf("server: fetching audit %s: %v", turnID, err)
		writeError(w, http.StatusInternalServerError, "failed to fetch audit record")
		return
	}
	if record == nil {
		writeError(w, http.StatusNotFound, "no audit record for turn")
		return
	}
	writeJSON(w, http.StatusOK, record)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	personaID := r.URL.Query().Get("persona_id")
	if personaID == "" {
		personaID = s.cfg.PersonaID
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	entries, err := s.convLog.History(personaID, limit)
	if err != nil {
		log.Printf("server: fetching history: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to fetch history")
		return
	}
	if entries == nil {
		entries = []pipeline.LogEntry{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"history": entries})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("server: encoding response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// Start begins listening on the configured port.
func (s *Server) Start() error {
	addr := fmt.Sprintf(":%d", s.cfg.Port)
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      120 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	log.Printf("twinpilot server listening on %s", addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer != nil {
		return s.httpServer.Shutdown(ctx)
	}
	return nil
}
