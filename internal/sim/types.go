package sim

import (
	"encoding/json"
	"time"

	"github.com/greenwave-ems/greenwave/internal/geo"
)

// SignalMode is the runtime mode of a traffic signal.
type SignalMode int

const (
	// ModeNormal is regular phased operation.
	ModeNormal SignalMode = iota
	// ModeOverride is the forced-green preemption state granted to the
	// approaching ambulance.
	ModeOverride
)

func (m SignalMode) String() string {
	if m == ModeOverride {
		return "Override"
	}
	return "Normal"
}

// MarshalJSON encodes the mode as its display string.
func (m SignalMode) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.String())
}

// UnmarshalJSON decodes a display string back into a mode. Anything but
// "Override" decodes as Normal.
func (m *SignalMode) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if s == "Override" {
		*m = ModeOverride
	} else {
		*m = ModeNormal
	}
	return nil
}

// Event is one timestamped line of the drive log.
type Event struct {
	At      time.Time `json:"at"`
	Message string    `json:"message"`
}

// SignalStatus is the externally visible state of one signal.
type SignalStatus struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	Location   geo.Point  `json:"location"`
	Mode       SignalMode `json:"mode"`
	Passed     bool       `json:"passed"`
	DistanceKm float64    `json:"distanceKm"`
}

// Telemetry is the per-tick snapshot the map UI renders from.
type Telemetry struct {
	DriveID            string         `json:"driveId,omitempty"`
	RouteID            string         `json:"routeId,omitempty"`
	Position           geo.Point      `json:"position"`
	BearingDeg         float64        `json:"bearingDeg"`
	WaypointIndex      int            `json:"waypointIndex"`
	Progress           float64        `json:"progress"`
	Running            bool           `json:"running"`
	NextSignalID       string         `json:"nextSignalId,omitempty"`
	NextSignalDistance string         `json:"nextSignalDistance"`
	AutoControl        bool           `json:"autoControl"`
	AdvanceDetection   bool           `json:"advanceDetection"`
	RouteHighlighted   bool           `json:"routeHighlighted"`
	Signals            []SignalStatus `json:"signals"`
	UpdatedAt          time.Time      `json:"updatedAt"`
}
