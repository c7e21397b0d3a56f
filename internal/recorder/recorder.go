// Package recorder bridges the simulation to persistence: it implements
// sim.Listener and writes drive lifecycle, log events and sampled
// positions to a store. Write failures are logged and swallowed so the
// simulation never stalls on storage.
package recorder

import (
	"context"
	"log"
	"sync/atomic"
	"time"

	"github.com/greenwave-ems/greenwave/internal/sim"
	"github.com/greenwave-ems/greenwave/internal/store"
)

const writeTimeout = 2 * time.Second

// Recorder persists simulation callbacks. Positions are sampled every
// stride-th update; events and lifecycle changes are always written.
type Recorder struct {
	store  store.Store
	stride int
	ticks  atomic.Int64
}

// New creates a recorder. A stride below 1 persists every position.
func New(st store.Store, stride int) *Recorder {
	if stride < 1 {
		stride = 1
	}
	return &Recorder{store: st, stride: stride}
}

// DriveStarted records a new drive session.
func (r *Recorder) DriveStarted(driveID, routeID string) {
	r.ticks.Store(0)
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()

	err := r.store.CreateDrive(ctx, store.DriveRecord{
		DriveID:   driveID,
		RouteID:   routeID,
		StartedAt: time.Now().UTC(),
	})
	if err != nil {
		log.Printf("Recorder: failed to create drive %s: %v", driveID, err)
	}
}

// DriveFinished stamps the session's completion time.
func (r *Recorder) DriveFinished(driveID string) {
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()

	if err := r.store.FinishDrive(ctx, driveID, time.Now().UTC()); err != nil {
		log.Printf("Recorder: failed to finish drive %s: %v", driveID, err)
	}
}

// EventAppended persists one drive log line. Events raised outside a
// drive session (route planning, selection) have no row to attach to
// and are skipped.
func (r *Recorder) EventAppended(driveID string, e sim.Event) {
	if driveID == "" {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()

	err := r.store.AppendEvent(ctx, store.EventRecord{
		DriveID:    driveID,
		RecordedAt: e.At,
		Message:    e.Message,
	})
	if err != nil {
		log.Printf("Recorder: failed to append event for drive %s: %v", driveID, err)
	}
}

// PositionUpdated samples and persists ambulance positions.
func (r *Recorder) PositionUpdated(t sim.Telemetry) {
	if t.DriveID == "" || !t.Running {
		return
	}
	if r.ticks.Add(1)%int64(r.stride) != 0 {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()

	err := r.store.SavePosition(ctx, store.PositionRecord{
		DriveID:       t.DriveID,
		RecordedAt:    t.UpdatedAt,
		Latitude:      t.Position.Lat,
		Longitude:     t.Position.Lon,
		WaypointIndex: t.WaypointIndex,
		Progress:      t.Progress,
		NextSignalID:  t.NextSignalID,
	})
	if err != nil {
		log.Printf("Recorder: failed to save position for drive %s: %v", t.DriveID, err)
	}
}

// SignalModeChanged is persisted through the event log, so nothing extra
// is written here.
func (r *Recorder) SignalModeChanged(string, sim.SignalMode) {}
