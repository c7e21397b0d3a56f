// Package store persists drive history: sessions, log events and sampled
// positions. The simulation never depends on it succeeding; callers log
// and continue on error.
package store

import (
	"context"
	"time"
)

// DriveRecord is one drive session row.
type DriveRecord struct {
	DriveID    string     `json:"driveId"`
	RouteID    string     `json:"routeId"`
	StartedAt  time.Time  `json:"startedAt"`
	FinishedAt *time.Time `json:"finishedAt,omitempty"`
}

// EventRecord is one persisted drive log line.
type EventRecord struct {
	DriveID    string    `json:"driveId"`
	RecordedAt time.Time `json:"recordedAt"`
	Message    string    `json:"message"`
}

// PositionRecord is one sampled ambulance position.
type PositionRecord struct {
	DriveID       string    `json:"driveId"`
	RecordedAt    time.Time `json:"recordedAt"`
	Latitude      float64   `json:"latitude"`
	Longitude     float64   `json:"longitude"`
	WaypointIndex int       `json:"waypointIndex"`
	Progress      float64   `json:"progress"`
	NextSignalID  string    `json:"nextSignalId,omitempty"`
}

// Store is the persistence interface. SQLite is the default backend;
// Postgres is available for shared deployments.
type Store interface {
	CreateDrive(ctx context.Context, d DriveRecord) error
	FinishDrive(ctx context.Context, driveID string, at time.Time) error
	AppendEvent(ctx context.Context, e EventRecord) error
	SavePosition(ctx context.Context, p PositionRecord) error

	DriveEvents(ctx context.Context, driveID string, limit int) ([]EventRecord, error)
	DriveTrack(ctx context.Context, driveID string) ([]PositionRecord, error)
	RecentDrives(ctx context.Context, limit int) ([]DriveRecord, error)

	Ping(ctx context.Context) error
	Close() error
}
