package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// pgSchemaSQL mirrors schema.sql with Postgres types.
const pgSchemaSQL = `
CREATE TABLE IF NOT EXISTS drives (
    drive_id        TEXT PRIMARY KEY,
    route_id        TEXT NOT NULL,
    started_at_utc  TIMESTAMPTZ NOT NULL,
    finished_at_utc TIMESTAMPTZ
);

CREATE TABLE IF NOT EXISTS drive_events (
    id              BIGSERIAL PRIMARY KEY,
    drive_id        TEXT NOT NULL,
    recorded_at_utc TIMESTAMPTZ NOT NULL,
    message         TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_drive_events_drive
    ON drive_events (drive_id, recorded_at_utc);

CREATE TABLE IF NOT EXISTS drive_positions (
    id              BIGSERIAL PRIMARY KEY,
    drive_id        TEXT NOT NULL,
    recorded_at_utc TIMESTAMPTZ NOT NULL,
    latitude        DOUBLE PRECISION NOT NULL,
    longitude       DOUBLE PRECISION NOT NULL,
    waypoint_index  INTEGER NOT NULL,
    progress        DOUBLE PRECISION NOT NULL,
    next_signal_id  TEXT
);

CREATE INDEX IF NOT EXISTS idx_drive_positions_drive
    ON drive_positions (drive_id, recorded_at_utc);
`

// Postgres is the shared-deployment drive-history backend.
type Postgres struct {
	pool *pgxpool.Pool
}

// OpenPostgres connects to the database at databaseURL and ensures the
// schema exists.
func OpenPostgres(databaseURL string) (*Postgres, error) {
	pool, err := pgxpool.New(context.Background(), databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(context.Background()); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if _, err := pool.Exec(context.Background(), pgSchemaSQL); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &Postgres{pool: pool}, nil
}

// Close releases the connection pool.
func (p *Postgres) Close() error {
	p.pool.Close()
	return nil
}

// Ping tests database connectivity.
func (p *Postgres) Ping(ctx context.Context) error {
	return p.pool.Ping(ctx)
}

// CreateDrive inserts a new drive session row.
func (p *Postgres) CreateDrive(ctx context.Context, d DriveRecord) error {
	_, err := p.pool.Exec(ctx,
		"INSERT INTO drives (drive_id, route_id, started_at_utc) VALUES ($1, $2, $3)",
		d.DriveID, d.RouteID, d.StartedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to create drive: %w", err)
	}
	return nil
}

// FinishDrive stamps a drive's completion time.
func (p *Postgres) FinishDrive(ctx context.Context, driveID string, at time.Time) error {
	_, err := p.pool.Exec(ctx,
		"UPDATE drives SET finished_at_utc = $1 WHERE drive_id = $2",
		at.UTC(), driveID,
	)
	if err != nil {
		return fmt.Errorf("failed to finish drive: %w", err)
	}
	return nil
}

// AppendEvent persists one drive log line.
func (p *Postgres) AppendEvent(ctx context.Context, e EventRecord) error {
	_, err := p.pool.Exec(ctx,
		"INSERT INTO drive_events (drive_id, recorded_at_utc, message) VALUES ($1, $2, $3)",
		e.DriveID, e.RecordedAt.UTC(), e.Message,
	)
	if err != nil {
		return fmt.Errorf("failed to append event: %w", err)
	}
	return nil
}

// SavePosition persists one sampled ambulance position.
func (p *Postgres) SavePosition(ctx context.Context, rec PositionRecord) error {
	var nextSignal *string
	if rec.NextSignalID != "" {
		nextSignal = &rec.NextSignalID
	}

	_, err := p.pool.Exec(ctx, `
		INSERT INTO drive_positions
			(drive_id, recorded_at_utc, latitude, longitude, waypoint_index, progress, next_signal_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		rec.DriveID, rec.RecordedAt.UTC(),
		rec.Latitude, rec.Longitude, rec.WaypointIndex, rec.Progress, nextSignal,
	)
	if err != nil {
		return fmt.Errorf("failed to save position: %w", err)
	}
	return nil
}

// DriveEvents returns persisted log lines for a drive, newest first.
func (p *Postgres) DriveEvents(ctx context.Context, driveID string, limit int) ([]EventRecord, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := p.pool.Query(ctx, `
		SELECT drive_id, recorded_at_utc, message
		FROM drive_events
		WHERE drive_id = $1
		ORDER BY id DESC
		LIMIT $2`,
		driveID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	var events []EventRecord
	for rows.Next() {
		var e EventRecord
		if err := rows.Scan(&e.DriveID, &e.RecordedAt, &e.Message); err != nil {
			return nil, fmt.Errorf("failed to scan event row: %w", err)
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

// DriveTrack returns the sampled positions of a drive in travel order.
func (p *Postgres) DriveTrack(ctx context.Context, driveID string) ([]PositionRecord, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT drive_id, recorded_at_utc, latitude, longitude, waypoint_index, progress, next_signal_id
		FROM drive_positions
		WHERE drive_id = $1
		ORDER BY id ASC`,
		driveID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query track: %w", err)
	}
	defer rows.Close()

	var track []PositionRecord
	for rows.Next() {
		var rec PositionRecord
		var nextSignal *string
		if err := rows.Scan(&rec.DriveID, &rec.RecordedAt, &rec.Latitude, &rec.Longitude, &rec.WaypointIndex, &rec.Progress, &nextSignal); err != nil {
			return nil, fmt.Errorf("failed to scan position row: %w", err)
		}
		if nextSignal != nil {
			rec.NextSignalID = *nextSignal
		}
		track = append(track, rec)
	}
	return track, rows.Err()
}

// RecentDrives returns the latest drive sessions, newest first.
func (p *Postgres) RecentDrives(ctx context.Context, limit int) ([]DriveRecord, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := p.pool.Query(ctx, `
		SELECT drive_id, route_id, started_at_utc, finished_at_utc
		FROM drives
		ORDER BY started_at_utc DESC
		LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query drives: %w", err)
	}
	defer rows.Close()

	var drives []DriveRecord
	for rows.Next() {
		var d DriveRecord
		var finished *time.Time
		if err := rows.Scan(&d.DriveID, &d.RouteID, &d.StartedAt, &finished); err != nil {
			return nil, fmt.Errorf("failed to scan drive row: %w", err)
		}
		d.FinishedAt = finished
		drives = append(drives, d)
	}
	return drives, rows.Err()
}
