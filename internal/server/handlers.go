package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/greenwave-ems/greenwave/internal/sim"
)

// ErrorResponse is the JSON body for error statuses.
type ErrorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// handleHealth handles GET /health with a store connectivity check.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := s.st.Ping(ctx); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status":    "error",
			"database":  "disconnected",
			"timestamp": time.Now().UTC(),
			"error":     err.Error(),
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"database":  "connected",
		"timestamp": time.Now().UTC(),
	})
}

// handleRoutes handles GET /api/routes?incident=KEY. Building the cards
// also applies the recommended route as the current selection.
func (s *Server) handleRoutes(w http.ResponseWriter, r *http.Request) {
	district := r.URL.Query().Get("incident")
	if district == "" {
		district = "city-center"
	}

	cards := s.ctrl.PlanRoutes(district, time.Now())
	writeJSON(w, http.StatusOK, map[string]any{
		"incident": district,
		"cards":    cards,
	})
}

// handleSelectRoute handles POST /api/routes/{routeID}/select.
func (s *Server) handleSelectRoute(w http.ResponseWriter, r *http.Request) {
	routeID := chi.URLParam(r, "routeID")
	if err := s.ctrl.SelectRoute(routeID); err != nil {
		writeJSON(w, http.StatusNotFound, ErrorResponse{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, s.ctrl.Telemetry())
}

// handleStartDrive handles POST /api/drive/start. Starting without a
// selected route is the one user-facing precondition failure.
func (s *Server) handleStartDrive(w http.ResponseWriter, r *http.Request) {
	driveID, err := s.ctrl.StartDrive()
	if err != nil {
		if errors.Is(err, sim.ErrNoRouteSelected) {
			writeJSON(w, http.StatusConflict, ErrorResponse{Error: err.Error()})
			return
		}
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"driveId": driveID})
}

// handleReset handles POST /api/drive/reset.
func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	s.ctrl.Reset()
	writeJSON(w, http.StatusOK, s.ctrl.Telemetry())
}

// handleTelemetry handles GET /api/telemetry.
func (s *Server) handleTelemetry(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.ctrl.Telemetry())
}

// handleSignals handles GET /api/signals.
func (s *Server) handleSignals(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.ctrl.Telemetry().Signals)
}

// handleEvents handles GET /api/events?limit=N, newest first.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	events := s.ctrl.Events()
	if limit := queryInt(r, "limit"); limit > 0 && limit < len(events) {
		events = events[:limit]
	}
	writeJSON(w, http.StatusOK, events)
}

// handleRecentDrives handles GET /api/drives?limit=N from the store.
func (s *Server) handleRecentDrives(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	drives, err := s.st.RecentDrives(ctx, queryInt(r, "limit"))
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: "failed to load drives"})
		return
	}
	writeJSON(w, http.StatusOK, drives)
}

// handleDriveEvents handles GET /api/drives/{driveID}/events.
func (s *Server) handleDriveEvents(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	events, err := s.st.DriveEvents(ctx, chi.URLParam(r, "driveID"), queryInt(r, "limit"))
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: "failed to load drive events"})
		return
	}
	writeJSON(w, http.StatusOK, events)
}

// handleDriveTrack handles GET /api/drives/{driveID}/track.
func (s *Server) handleDriveTrack(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	track, err := s.st.DriveTrack(ctx, chi.URLParam(r, "driveID"))
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: "failed to load drive track"})
		return
	}
	writeJSON(w, http.StatusOK, track)
}

func queryInt(r *http.Request, key string) int {
	if v := r.URL.Query().Get(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return 0
}
