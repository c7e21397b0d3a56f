// Package catalog holds the static route and signal definitions and
// produces ranked route cards for an incident. Routes are fixed
// coordinate sequences between the hospital and the incident area;
// signals are fixed intersections equipped for preemption.
package catalog

import (
	"fmt"

	"github.com/greenwave-ems/greenwave/internal/geo"
	"github.com/greenwave-ems/greenwave/internal/traffic"
)

// Route is an immutable candidate route for a response drive.
type Route struct {
	ID        string        `json:"id"`
	Name      string        `json:"name"`
	Waypoints []geo.Point   `json:"waypoints"`
	Baseline  traffic.Level `json:"baselineTraffic"`
}

// Signal is a preemption-equipped traffic signal. Only static identity
// lives here; per-drive runtime state is owned by the simulator.
type Signal struct {
	ID       string    `json:"id"`
	Name     string    `json:"name"`
	Location geo.Point `json:"location"`
}

// routes are ordered hospital -> incident. All three share endpoints so
// ranking compares like for like.
var routes = []Route{
	{
		ID:   "shortest",
		Name: "Shortest (city center)",
		Waypoints: []geo.Point{
			{Lat: 41.3889, Lon: 2.1500},
			{Lat: 41.3925, Lon: 2.1558},
			{Lat: 41.3954, Lon: 2.1612},
			{Lat: 41.3994, Lon: 2.1680},
			{Lat: 41.4036, Lon: 2.1744},
		},
		Baseline: traffic.High,
	},
	{
		ID:   "balanced",
		Name: "Balanced (Gran Via)",
		Waypoints: []geo.Point{
			{Lat: 41.3889, Lon: 2.1500},
			{Lat: 41.3862, Lon: 2.1553},
			{Lat: 41.3890, Lon: 2.1625},
			{Lat: 41.3920, Lon: 2.1690},
			{Lat: 41.3975, Lon: 2.1722},
			{Lat: 41.4036, Lon: 2.1744},
		},
		Baseline: traffic.Medium,
	},
	{
		ID:   "perimeter",
		Name: "Perimeter (Diagonal)",
		Waypoints: []geo.Point{
			{Lat: 41.3889, Lon: 2.1500},
			{Lat: 41.3936, Lon: 2.1478},
			{Lat: 41.3970, Lon: 2.1540},
			{Lat: 41.3995, Lon: 2.1602},
			{Lat: 41.4013, Lon: 2.1661},
			{Lat: 41.4030, Lon: 2.1706},
			{Lat: 41.4036, Lon: 2.1744},
		},
		Baseline: traffic.Low,
	},
}

var signals = []Signal{
	{ID: "S1", Name: "Aragó / Pau Claris", Location: geo.Point{Lat: 41.3954, Lon: 2.1612}},
	{ID: "S2", Name: "València / Roger de Flor", Location: geo.Point{Lat: 41.3994, Lon: 2.1680}},
	{ID: "S3", Name: "Gran Via / Girona", Location: geo.Point{Lat: 41.3890, Lon: 2.1625}},
	{ID: "S4", Name: "Diagonal / Sicília", Location: geo.Point{Lat: 41.4013, Lon: 2.1661}},
}

// Routes returns all catalog routes.
func Routes() []Route {
	return routes
}

// RouteByID looks up a route by its ID.
func RouteByID(id string) (Route, error) {
	for _, r := range routes {
		if r.ID == id {
			return r, nil
		}
	}
	return Route{}, fmt.Errorf("unknown route %q", id)
}

// Signals returns all catalog signals.
func Signals() []Signal {
	return signals
}
