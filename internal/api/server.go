// Package api provides the HTTP API for observing a run.
// GET endpoints are public (read-only observation).
// POST endpoints require a bearer token (admin control plane).
// /api/v1/stream upgrades to a websocket carrying per-tick decision batches.
package api

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/talgya/depot-fleet/internal/config"
	"github.com/talgya/depot-fleet/internal/engine"
	"github.com/talgya/depot-fleet/internal/persistence"
	"github.com/talgya/depot-fleet/internal/world"
)

// Server serves the run state over HTTP.
type Server struct {
	Floor    *world.Floor
	Eng      *engine.Engine
	DB       *persistence.DB
	Hub      *Hub
	Cfg      config.Config
	RunID    string
	Port     int
	AdminKey string // Bearer token for POST endpoints. Empty = POST disabled.
}

// Start begins serving the HTTP API in a goroutine.
func (s *Server) Start() {
	mux := http.NewServeMux()

	// Public endpoints (GET, read-only).
	mux.HandleFunc("/api/v1/status", s.handleStatus)
	mux.HandleFunc("/api/v1/agents", s.handleAgents)
	mux.HandleFunc("/api/v1/items", s.handleItems)
	mux.HandleFunc("/api/v1/floor", s.handleFloor)
	mux.HandleFunc("/api/v1/events", s.handleEvents)
	mux.HandleFunc("/api/v1/decisions", s.handleDecisions)
	mux.HandleFunc("/api/v1/config", s.handleConfig)

	// Websocket decision stream.
	mux.HandleFunc("/api/v1/stream", s.Hub.handleStream)

	// Admin endpoints (POST, require bearer token).
	mux.HandleFunc("/api/v1/speed", s.adminOnly(s.handleSpeed))
	mux.HandleFunc("/api/v1/checkpoint", s.adminOnly(s.handleCheckpoint))

	addr := fmt.Sprintf(":%d", s.Port)
	slog.Info("HTTP API starting", "addr", addr, "admin_auth", s.AdminKey != "")

	go func() {
		if err := http.ListenAndServe(addr, mux); err != nil {
			slog.Error("HTTP server error", "error", err)
		}
	}()
}

func (s *Server) checkBearerToken(r *http.Request) bool {
	if s.AdminKey == "" {
		return false
	}
	auth := r.Header.Get("Authorization")
	return strings.TrimPrefix(auth, "Bearer ") == s.AdminKey
}

func (s *Server) adminOnly(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		if !s.checkBearerToken(r) {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next(w, r)
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	stats := s.Floor.Stats()
	writeJSON(w, map[string]any{
		"run_id":    s.RunID,
		"tick":      s.Eng.Tick,
		"speed":     s.Eng.Speed,
		"running":   s.Eng.Running,
		"delivered": stats.Delivered,
		"items":     stats.ItemsRemaining,
		"carrying":  stats.AgentsCarrying,
		"observers": s.Hub.ClientCount(),
	})
}

func (s *Server) handleAgents(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.Floor.Agents())
}

func (s *Server) handleItems(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.Floor.Items())
}

// handleFloor returns the static geometry: zones and obstacles.
func (s *Server) handleFloor(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]any{
		"zones":     s.Floor.Zones(),
		"obstacles": s.Floor.Obstacles(),
	})
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if q := r.URL.Query().Get("limit"); q != "" {
		if n, err := strconv.Atoi(q); err == nil && n > 0 && n <= 500 {
			limit = n
		}
	}

	// Buffered events first; fall back to persisted history.
	events := s.Floor.RecentEvents(limit)
	if len(events) == 0 && s.DB != nil {
		if persisted, err := s.DB.RecentEvents(s.RunID, limit); err == nil {
			events = persisted
		}
	}
	writeJSON(w, events)
}

// handleDecisions returns the most recently flushed decision batch.
func (s *Server) handleDecisions(w http.ResponseWriter, r *http.Request) {
	if s.DB == nil {
		writeJSON(w, []any{})
		return
	}
	rows, err := s.DB.RecentDecisions(s.RunID)
	if err != nil {
		http.Error(w, "query failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, rows)
}

// handleConfig echoes the active configuration, admin key redacted.
func (s *Server) handleConfig(w http.ResponseWriter, r *http.Request) {
	cfg := s.Cfg
	cfg.API.AdminKey = ""
	writeJSON(w, cfg)
}

func (s *Server) handleSpeed(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Speed float64 `json:"speed"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	if req.Speed < 0 || req.Speed > 100 {
		http.Error(w, "speed out of range", http.StatusBadRequest)
		return
	}
	s.Eng.Speed = req.Speed
	slog.Info("speed changed via API", "speed", req.Speed)
	writeJSON(w, map[string]any{"speed": req.Speed})
}

func (s *Server) handleCheckpoint(w http.ResponseWriter, r *http.Request) {
	if s.DB == nil {
		http.Error(w, "no database", http.StatusServiceUnavailable)
		return
	}
	cp := s.Floor.Snapshot()
	if err := s.DB.SaveCheckpoint(s.RunID, cp); err != nil {
		slog.Error("manual checkpoint failed", "error", err)
		http.Error(w, "checkpoint failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, map[string]any{"tick": cp.Tick})
}

func writeJSON(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}
