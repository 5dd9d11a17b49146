// Package httpapi exposes the persona engine over a JSON HTTP surface.
package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	personacore "github.com/sigmaris/persona-core-go"
)

// Server binds the engine's operations to HTTP handlers.
//
// Routes:
//
//	POST /turn                 — process one inbound message
//	POST /reflect              — on-demand reflection pipeline
//	GET  /persona/{session_id} — latest PersonaRecord or 404
//	POST /persona/{session_id} — append one PersonaRecord
//	GET  /growth/{session_id}  — flat growth-log entries
//	GET  /stats                — engine counters
type Server struct {
	engine *personacore.Engine
	log    *zap.Logger
}

// NewServer creates a server. A nil logger disables request logging.
func NewServer(engine *personacore.Engine, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{engine: engine, log: logger}
}

// Handler returns the routed HTTP handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /turn", s.handleTurn)
	mux.HandleFunc("POST /reflect", s.handleReflect)
	mux.HandleFunc("GET /persona/{session_id}", s.handleGetPersona)
	mux.HandleFunc("POST /persona/{session_id}", s.handleSavePersona)
	mux.HandleFunc("GET /growth/{session_id}", s.handleGrowthLog)
	mux.HandleFunc("GET /stats", s.handleStats)
	return s.withLogging(mux)
}

func (s *Server) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.log.Info("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Duration("took", time.Since(start)))
	})
}

type turnRequest struct {
	SessionID string `json:"session_id"`
	Text      string `json:"text"`
}

type reflectRequest struct {
	SessionID      string                       `json:"session_id"`
	GrowthLog      []personacore.GrowthLogEntry `json:"growth_log,omitempty"`
	RecentMessages []personacore.Exchange       `json:"recent_messages,omitempty"`
}

type errorEnvelope struct {
	Error string `json:"error"`
}

type ackEnvelope struct {
	OK bool   `json:"ok"`
	ID string `json:"id,omitempty"`
}

func (s *Server) handleTurn(w http.ResponseWriter, r *http.Request) {
	var req turnRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorEnvelope{Error: "malformed request body"})
		return
	}

	result, err := s.engine.Turn(r.Context(), req.SessionID, req.Text)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, personacore.ErrInvalidRequest) {
			status = http.StatusBadRequest
		}
		writeJSON(w, status, errorEnvelope{Error: err.Error()})
		return
	}
	if result.PersistError != "" {
		s.log.Warn("turn persisted with error",
			zap.String("session_id", req.SessionID),
			zap.String("persist_error", result.PersistError))
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleReflect(w http.ResponseWriter, r *http.Request) {
	var req reflectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorEnvelope{Error: "malformed request body"})
		return
	}

	result, err := s.engine.ReflectNow(r.Context(), req.SessionID, req.GrowthLog, req.RecentMessages)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, personacore.ErrInvalidRequest) {
			status = http.StatusBadRequest
		}
		writeJSON(w, status, errorEnvelope{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleGetPersona(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("session_id")
	rec, err := s.engine.Store().LoadLatest(r.Context(), sessionID)
	if err != nil {
		if errors.Is(err, personacore.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, errorEnvelope{Error: "no persona yet"})
			return
		}
		s.log.Error("load persona failed", zap.String("session_id", sessionID), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, errorEnvelope{Error: "load failed"})
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleSavePersona(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("session_id")

	var rec personacore.PersonaRecord
	if err := json.NewDecoder(r.Body).Decode(&rec); err != nil {
		writeJSON(w, http.StatusBadRequest, errorEnvelope{Error: "malformed request body"})
		return
	}
	rec.SessionID = sessionID
	rec.Traits = rec.Traits.Clamped()

	if err := s.engine.Store().Save(r.Context(), &rec); err != nil {
		s.log.Error("save persona failed", zap.String("session_id", sessionID), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, errorEnvelope{Error: "save failed"})
		return
	}
	writeJSON(w, http.StatusOK, ackEnvelope{OK: true, ID: rec.ID})
}

func (s *Server) handleGrowthLog(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("session_id")
	entries, err := s.engine.Store().GrowthLog(r.Context(), sessionID, 0)
	if err != nil {
		s.log.Error("load growth log failed", zap.String("session_id", sessionID), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, errorEnvelope{Error: "load failed"})
		return
	}
	if entries == nil {
		entries = []personacore.GrowthLogEntry{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"session_id": sessionID,
		"entries":    entries,
		"count":      len(entries),
	})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.engine.Stats())
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
