package store

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"log"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// schemaSQL is embedded at compile time from schema.sql and is the single
// source of truth for the SQLite schema.
//
//go:embed schema.sql
var schemaSQL string

// SQLite is the default drive-history backend. SQLite only supports one
// writer at a time, so writes are serialized through a single connection
// and a mutex.
type SQLite struct {
	conn    *sql.DB
	writeMu sync.Mutex
}

// OpenSQLite opens (and creates if needed) the database at dbPath with
// WAL mode enabled and ensures the schema exists.
func OpenSQLite(dbPath string) (*SQLite, error) {
	dsn := dbPath + "?_journal=WAL&_fk=1&_busy_timeout=5000"
	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	conn.SetMaxOpenConns(1)
	conn.SetMaxIdleConns(1)
	conn.SetConnMaxLifetime(time.Hour)

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	pragmas := []string{
		"PRAGMA synchronous = NORMAL",
		"PRAGMA temp_store = MEMORY",
	}
	for _, pragma := range pragmas {
		if _, err := conn.Exec(pragma); err != nil {
			log.Printf("Warning: failed to set %s: %v", pragma, err)
		}
	}

	s := &SQLite{conn: conn}
	if err := s.ensureSchema(context.Background()); err != nil {
		conn.Close()
		return nil, err
	}

	log.Printf("Connected to SQLite database: %s", dbPath)
	return s, nil
}

func (s *SQLite) ensureSchema(ctx context.Context) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if _, err := s.conn.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (s *SQLite) Close() error {
	return s.conn.Close()
}

// Ping tests database connectivity.
func (s *SQLite) Ping(ctx context.Context) error {
	return s.conn.PingContext(ctx)
}

// CreateDrive inserts a new drive session row.
func (s *SQLite) CreateDrive(ctx context.Context, d DriveRecord) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	_, err := s.conn.ExecContext(ctx,
		"INSERT INTO drives (drive_id, route_id, started_at_utc) VALUES (?, ?, ?)",
		d.DriveID, d.RouteID, d.StartedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to create drive: %w", err)
	}
	return nil
}

// FinishDrive stamps a drive's completion time.
func (s *SQLite) FinishDrive(ctx context.Context, driveID string, at time.Time) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	_, err := s.conn.ExecContext(ctx,
		"UPDATE drives SET finished_at_utc = ? WHERE drive_id = ?",
		at.UTC().Format(time.RFC3339), driveID,
	)
	if err != nil {
		return fmt.Errorf("failed to finish drive: %w", err)
	}
	return nil
}

// AppendEvent persists one drive log line.
func (s *SQLite) AppendEvent(ctx context.Context, e EventRecord) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	_, err := s.conn.ExecContext(ctx,
		"INSERT INTO drive_events (drive_id, recorded_at_utc, message) VALUES (?, ?, ?)",
		e.DriveID, e.RecordedAt.UTC().Format(time.RFC3339), e.Message,
	)
	if err != nil {
		return fmt.Errorf("failed to append event: %w", err)
	}
	return nil
}

// SavePosition persists one sampled ambulance position.
func (s *SQLite) SavePosition(ctx context.Context, p PositionRecord) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	_, err := s.conn.ExecContext(ctx, `
		INSERT INTO drive_positions
			(drive_id, recorded_at_utc, latitude, longitude, waypoint_index, progress, next_signal_id)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		p.DriveID, p.RecordedAt.UTC().Format(time.RFC3339),
		p.Latitude, p.Longitude, p.WaypointIndex, p.Progress, nullable(p.NextSignalID),
	)
	if err != nil {
		return fmt.Errorf("failed to save position: %w", err)
	}
	return nil
}

// DriveEvents returns persisted log lines for a drive, newest first.
func (s *SQLite) DriveEvents(ctx context.Context, driveID string, limit int) ([]EventRecord, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := s.conn.QueryContext(ctx, `
		SELECT drive_id, recorded_at_utc, message
		FROM drive_events
		WHERE drive_id = ?
		ORDER BY id DESC
		LIMIT ?`,
		driveID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	var events []EventRecord
	for rows.Next() {
		var e EventRecord
		var ts string
		if err := rows.Scan(&e.DriveID, &ts, &e.Message); err != nil {
			return nil, fmt.Errorf("failed to scan event row: %w", err)
		}
		e.RecordedAt = parseRFC3339(ts)
		events = append(events, e)
	}
	return events, rows.Err()
}

// DriveTrack returns the sampled positions of a drive in travel order.
func (s *SQLite) DriveTrack(ctx context.Context, driveID string) ([]PositionRecord, error) {
	rows, err := s.conn.QueryContext(ctx, `
		SELECT drive_id, recorded_at_utc, latitude, longitude, waypoint_index, progress, next_signal_id
		FROM drive_positions
		WHERE drive_id = ?
		ORDER BY id ASC`,
		driveID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query track: %w", err)
	}
	defer rows.Close()

	var track []PositionRecord
	for rows.Next() {
		var p PositionRecord
		var ts string
		var nextSignal sql.NullString
		if err := rows.Scan(&p.DriveID, &ts, &p.Latitude, &p.Longitude, &p.WaypointIndex, &p.Progress, &nextSignal); err != nil {
			return nil, fmt.Errorf("failed to scan position row: %w", err)
		}
		p.RecordedAt = parseRFC3339(ts)
		p.NextSignalID = nextSignal.String
		track = append(track, p)
	}
	return track, rows.Err()
}

// RecentDrives returns the latest drive sessions, newest first.
func (s *SQLite) RecentDrives(ctx context.Context, limit int) ([]DriveRecord, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.conn.QueryContext(ctx, `
		SELECT drive_id, route_id, started_at_utc, finished_at_utc
		FROM drives
		ORDER BY started_at_utc DESC
		LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query drives: %w", err)
	}
	defer rows.Close()

	var drives []DriveRecord
	for rows.Next() {
		var d DriveRecord
		var started string
		var finished sql.NullString
		if err := rows.Scan(&d.DriveID, &d.RouteID, &started, &finished); err != nil {
			return nil, fmt.Errorf("failed to scan drive row: %w", err)
		}
		d.StartedAt = parseRFC3339(started)
		if finished.Valid {
			t := parseRFC3339(finished.String)
			d.FinishedAt = &t
		}
		drives = append(drives, d)
	}
	return drives, rows.Err()
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func parseRFC3339(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
