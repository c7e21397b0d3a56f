// Package server exposes the simulation to the map UI over HTTP and
// WebSocket. It holds no simulation state of its own; everything goes
// through the controller and the store.
package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	"github.com/greenwave-ems/greenwave/internal/sim"
	"github.com/greenwave-ems/greenwave/internal/store"
)

// Server wires the controller, store and websocket hub into a router.
type Server struct {
	ctrl *sim.Controller
	st   store.Store
	hub  *Hub
}

// New creates a server.
func New(ctrl *sim.Controller, st store.Store, hub *Hub) *Server {
	return &Server{ctrl: ctrl, st: st, hub: hub}
}

// Router builds the chi router with CORS configured for the given UI
// origins.
func (s *Server) Router(allowedOrigins []string) http.Handler {
	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	}))

	r.Get("/health", s.handleHealth)

	r.Get("/api/routes", s.handleRoutes)
	r.Post("/api/routes/{routeID}/select", s.handleSelectRoute)

	r.Post("/api/drive/start", s.handleStartDrive)
	r.Post("/api/drive/reset", s.handleReset)

	r.Get("/api/telemetry", s.handleTelemetry)
	r.Get("/api/signals", s.handleSignals)
	r.Get("/api/events", s.handleEvents)

	r.Get("/api/drives", s.handleRecentDrives)
	r.Get("/api/drives/{driveID}/events", s.handleDriveEvents)
	r.Get("/api/drives/{driveID}/track", s.handleDriveTrack)

	r.Get("/ws/telemetry", s.hub.HandleWS)

	return r
}
