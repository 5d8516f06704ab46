// Package api provides the HTTP API for watching and driving a run.
// GET endpoints are public (read-only observation).
// POST endpoints require a bearer token (admin control plane).
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/talgya/digsim/internal/engine"
	"github.com/talgya/digsim/internal/ledger"
	"github.com/talgya/digsim/internal/persistence"
	"github.com/talgya/digsim/internal/progress"
	"github.com/talgya/digsim/internal/vehicle"
	"github.com/talgya/digsim/internal/world"
)

const (
	maxWSConns    = 4
	catchUpEvents = 50
	wsHeartbeat   = 15 * time.Second
	wsWriteWait   = 5 * time.Second
)

// Server serves the run over HTTP.
type Server struct {
	Sim      *engine.Simulation
	Eng      *engine.Engine
	DB       *persistence.DB // Optional
	Progress *progress.Local // Optional
	Port     int
	AdminKey string // Bearer token for POST endpoints. Empty = POST disabled.

	// RunID reports the persisted run. Optional.
	RunID func() string
	// Restart starts a new run. A nil config regenerates the current world.
	// When unset, the simulation is reset directly.
	Restart func(cfg *world.GenConfig) error

	upgrader websocket.Upgrader
	wsConns  atomic.Int32
	srv      *http.Server
}

// Handler builds the route table.
func (s *Server) Handler() http.Handler {
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 16 * 1024,
		CheckOrigin:     func(r *http.Request) bool { return true },
	}
	readLimiter := NewRateLimiter(120, time.Minute)

	mux := http.NewServeMux()

	// Public endpoints (GET, read-only).
	mux.HandleFunc("/api/v1/status", s.handleStatus)
	mux.HandleFunc("/api/v1/grid", s.handleGrid)
	mux.HandleFunc("/api/v1/events", s.handleEvents)
	mux.HandleFunc("/api/v1/runs", RateLimitMiddleware(readLimiter, s.handleRuns))
	mux.HandleFunc("/api/v1/ws", RateLimitMiddleware(readLimiter, s.handleWS))

	// Admin endpoints (POST, require bearer token). GET shows current values.
	mux.HandleFunc("/api/v1/input", s.adminOnly(s.handleInput))
	mux.HandleFunc("/api/v1/shop", s.adminOnly(s.handleShop))
	mux.HandleFunc("/api/v1/speed", s.adminOnly(s.handleSpeed))
	mux.HandleFunc("/api/v1/fuel", s.adminOnly(s.handleFuel))
	mux.HandleFunc("/api/v1/reset", s.adminOnly(s.handleReset))
	mux.HandleFunc("/api/v1/snapshot", s.adminOnly(s.handleSnapshot))

	return corsMiddleware(mux)
}

// Start begins serving the HTTP API in a goroutine.
func (s *Server) Start() {
	addr := fmt.Sprintf(":%d", s.Port)
	s.srv = &http.Server{Addr: addr, Handler: s.Handler()}
	slog.Info("HTTP API starting", "addr", addr, "admin_auth", s.AdminKey != "")

	go func() {
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("HTTP server error", "error", err)
		}
	}()
}

// Shutdown stops the server started by Start.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.srv == nil {
		return nil
	}
	return s.srv.Shutdown(ctx)
}

// corsMiddleware adds CORS headers for allowed frontend origins.
// Set CORS_ORIGINS env var to a comma-separated list of allowed origins.
// Localhost dev servers are always allowed.
func corsMiddleware(next http.Handler) http.Handler {
	allowedOrigins := map[string]bool{
		"http://localhost:5173": true,
		"http://localhost:3000": true,
	}
	if env := os.Getenv("CORS_ORIGINS"); env != "" {
		for _, origin := range strings.Split(env, ",") {
			if origin = strings.TrimSpace(origin); origin != "" {
				allowedOrigins[origin] = true
			}
		}
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if allowedOrigins[origin] {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// checkBearerToken returns true if the request has a valid admin bearer token.
func (s *Server) checkBearerToken(r *http.Request) bool {
	auth := r.Header.Get("Authorization")
	return strings.HasPrefix(auth, "Bearer ") && strings.TrimPrefix(auth, "Bearer ") == s.AdminKey
}

// adminOnly wraps a handler to require bearer token auth on POST requests.
// GET requests pass through.
func (s *Server) adminOnly(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			if s.AdminKey == "" {
				http.Error(w, "admin endpoints disabled (no DIGSIM_ADMIN_KEY set)", http.StatusForbidden)
				return
			}
			if !s.checkBearerToken(r) {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
		}
		next(w, r)
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	snap := s.Sim.Snapshot()
	status := map[string]any{
		"name":     "digsim",
		"sim_time": engine.SimTime(snap.Tick),
		"run":      snap,
	}
	if s.Eng != nil {
		status["speed"] = s.Eng.Speed()
		status["running"] = s.Eng.Running()
	}
	if s.Progress != nil {
		status["xp"] = s.Progress.XP()
		status["level"] = s.Progress.Level()
	}
	if s.RunID != nil {
		status["run_id"] = s.RunID()
	}
	writeJSON(w, status)
}

// handleGrid returns the grid as glyph rows. ?from= and ?to= select a row
// range; the vehicle is drawn as '@'.
func (s *Server) handleGrid(w http.ResponseWriter, r *http.Request) {
	rows := s.Sim.GridRows()
	from := queryInt(r, "from", 0, 0, len(rows))
	to := queryInt(r, "to", len(rows), from, len(rows))
	writeJSON(w, map[string]any{
		"from": from,
		"rows": rows[from:to],
	})
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 50, 1, 500)
	events := s.Sim.Events(0)

	// Optional category filter.
	if category := r.URL.Query().Get("category"); category != "" {
		var filtered []engine.Event
		for _, e := range events {
			if e.Category == category {
				filtered = append(filtered, e)
			}
		}
		events = filtered
	}

	start := 0
	if len(events) > limit {
		start = len(events) - limit
	}
	writeJSON(w, events[start:])
}

func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	if s.DB == nil {
		http.Error(w, "database not available", http.StatusServiceUnavailable)
		return
	}
	runs, err := s.DB.TopRuns(queryInt(r, "limit", 10, 1, 100))
	if err != nil {
		slog.Error("top runs query failed", "error", err)
		http.Error(w, "query failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, runs)
}

func (s *Server) handleInput(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodPost {
		var req struct {
			Direction string `json:"direction"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}
		d := vehicle.ParseDirection(req.Direction)
		if d == vehicle.None && req.Direction != "" && req.Direction != "none" {
			http.Error(w, "direction must be up, down, left, right or none", http.StatusBadRequest)
			return
		}
		s.Sim.SetHeld(d)
	}
	writeJSON(w, map[string]string{"held": s.Sim.Snapshot().Held})
}

// handleShop runs one shop action. GET returns the current price list.
func (s *Server) handleShop(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, s.Sim.Quote())
		return
	}

	var req struct {
		Action string `json:"action"` // refuel, repair, sell, upgrade, buy, use
		Target string `json:"target,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}

	var (
		err  error
		sold int
	)
	switch req.Action {
	case "refuel":
		err = s.Sim.Refuel()
	case "repair":
		err = s.Sim.RepairHull()
	case "sell":
		sold, err = s.Sim.SellOre()
	case "upgrade":
		err = s.Sim.Upgrade(req.Target)
	case "buy", "use":
		var item engine.ItemKind
		if item, err = engine.ParseItem(req.Target); err == nil {
			if req.Action == "buy" {
				err = s.Sim.BuyItem(item)
			} else {
				err = s.Sim.UseItem(item)
			}
		}
	default:
		http.Error(w, "unknown action (use: refuel, repair, sell, upgrade, buy, use)", http.StatusBadRequest)
		return
	}
	if err != nil {
		http.Error(w, err.Error(), shopStatus(err))
		return
	}

	slog.Info("shop action", "action", req.Action, "target", req.Target)
	snap := s.Sim.Snapshot()
	writeJSON(w, map[string]any{
		"action": req.Action,
		"sold":   sold,
		"cash":   snap.Cash,
		"levels": snap.Levels,
		"items":  snap.Items,
	})
}

// shopStatus maps shop errors to HTTP status codes.
func shopStatus(err error) int {
	switch {
	case errors.Is(err, ledger.ErrInsufficientFunds):
		return http.StatusPaymentRequired
	case errors.Is(err, engine.ErrNotAtSurface),
		errors.Is(err, ledger.ErrAlreadyMaxTier),
		errors.Is(err, engine.ErrNoItem),
		errors.Is(err, vehicle.ErrStructuralFailure):
		return http.StatusConflict
	default:
		return http.StatusBadRequest
	}
}

func (s *Server) handleSpeed(w http.ResponseWriter, r *http.Request) {
	if s.Eng == nil {
		http.Error(w, "engine not available", http.StatusServiceUnavailable)
		return
	}
	if r.Method == http.MethodPost {
		var req struct {
			Speed float64 `json:"speed"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}
		if req.Speed < 0 || req.Speed > 100 {
			http.Error(w, "speed must be 0-100", http.StatusBadRequest)
			return
		}
		s.Eng.SetSpeed(req.Speed)
		slog.Info("speed changed", "speed", req.Speed)
	}
	writeJSON(w, map[string]float64{"speed": s.Eng.Speed()})
}

// handleFuel pauses or resumes fuel consumption.
func (s *Server) handleFuel(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodPost {
		var req struct {
			Paused bool `json:"paused"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}
		if req.Paused {
			s.Sim.PauseFuel()
		} else {
			s.Sim.ResumeFuel()
		}
		slog.Info("fuel accounting changed", "paused", req.Paused)
	}
	snap := s.Sim.Snapshot()
	writeJSON(w, map[string]any{"paused": snap.FuelPaused, "fuel": snap.Fuel})
}

// handleReset starts over. An empty body regenerates the current world; a
// body with world fields generates a new one.
func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var cfg *world.GenConfig
	c := s.Sim.Tuning().World
	switch err := json.NewDecoder(r.Body).Decode(&c); {
	case errors.Is(err, io.EOF):
		// No body: regenerate the current world.
	case err != nil:
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	default:
		if err := c.Validate(); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		cfg = &c
	}

	var err error
	switch {
	case s.Restart != nil:
		err = s.Restart(cfg)
	case cfg != nil:
		err = s.Sim.ResetWith(*cfg)
	default:
		s.Sim.Reset()
	}
	if err != nil {
		slog.Error("reset failed", "error", err)
		http.Error(w, "reset failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, s.Sim.Snapshot())
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.DB == nil || s.RunID == nil {
		http.Error(w, "database not available", http.StatusServiceUnavailable)
		return
	}

	if err := s.DB.SaveRunState(s.RunID(), s.Sim); err != nil {
		slog.Error("snapshot save failed", "error", err)
		http.Error(w, "snapshot failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, map[string]any{
		"tick":    s.Sim.Tick(),
		"message": "snapshot saved",
	})
}

// handleWS streams events over a websocket: the most recent events as
// catch-up, then every new event as it happens.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	if current := s.wsConns.Add(1); current > maxWSConns {
		s.wsConns.Add(-1)
		http.Error(w, "too many stream connections", http.StatusServiceUnavailable)
		return
	}
	defer s.wsConns.Add(-1)

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	subID, ch := s.Sim.Subscribe()
	defer s.Sim.Unsubscribe(subID)
	slog.Info("stream client connected", "sub_id", subID)

	for _, e := range s.Sim.Events(catchUpEvents) {
		if err := writeWS(conn, e); err != nil {
			return
		}
	}

	// Reader goroutine: notices the client going away.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	heartbeat := time.NewTicker(wsHeartbeat)
	defer heartbeat.Stop()

	for {
		select {
		case e, ok := <-ch:
			if !ok {
				return
			}
			if err := writeWS(conn, e); err != nil {
				return
			}
		case <-heartbeat.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteWait)); err != nil {
				return
			}
		case <-closed:
			slog.Info("stream client disconnected", "sub_id", subID)
			return
		}
	}
}

func writeWS(conn *websocket.Conn, e engine.Event) error {
	_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	return conn.WriteJSON(e)
}

// queryInt reads an integer query parameter clamped to [lo, hi].
func queryInt(r *http.Request, key string, def, lo, hi int) int {
	n, err := strconv.Atoi(r.URL.Query().Get(key))
	if err != nil {
		return def
	}
	return max(lo, min(n, hi))
}

func writeJSON(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.Encode(data)
}
