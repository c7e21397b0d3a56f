package sim

import (
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"
)

// recordingListener captures callbacks for assertions. Tests drive the
// controller synchronously, so no locking is needed.
type recordingListener struct {
	modeChanges []string // "S1:Override"
	events      []string
	started     []string
	finished    []string
	snapshots   []Telemetry
}

func (l *recordingListener) PositionUpdated(t Telemetry) {
	l.snapshots = append(l.snapshots, t)
}

func (l *recordingListener) SignalModeChanged(signalID string, mode SignalMode) {
	l.modeChanges = append(l.modeChanges, fmt.Sprintf("%s:%s", signalID, mode))
}

func (l *recordingListener) EventAppended(driveID string, e Event) {
	l.events = append(l.events, e.Message)
}

func (l *recordingListener) DriveStarted(driveID, routeID string) {
	l.started = append(l.started, driveID)
}

func (l *recordingListener) DriveFinished(driveID string) {
	l.finished = append(l.finished, driveID)
}

// modesFor returns the recorded mode transitions of one signal, in order.
func (l *recordingListener) modesFor(signalID string) []string {
	var out []string
	prefix := signalID + ":"
	for _, mc := range l.modeChanges {
		if strings.HasPrefix(mc, prefix) {
			out = append(out, strings.TrimPrefix(mc, prefix))
		}
	}
	return out
}

func (l *recordingListener) countEvents(substr string) int {
	n := 0
	for _, e := range l.events {
		if strings.Contains(e, substr) {
			n++
		}
	}
	return n
}

func runToCompletion(t *testing.T, c *Controller) {
	t.Helper()
	for i := 0; i < 500; i++ {
		if !c.Telemetry().Running {
			return
		}
		c.Tick(DefaultTickInterval)
	}
	t.Fatal("drive did not finish within 500 ticks")
}

func TestStartDriveRequiresRoute(t *testing.T) {
	c := New(nil)
	if _, err := c.StartDrive(); !errors.Is(err, ErrNoRouteSelected) {
		t.Fatalf("StartDrive without route = %v, expected ErrNoRouteSelected", err)
	}
}

func TestStartDriveIdempotentWhileRunning(t *testing.T) {
	c := New(nil)
	if err := c.SelectRoute("shortest"); err != nil {
		t.Fatalf("SelectRoute: %v", err)
	}
	first, err := c.StartDrive()
	if err != nil {
		t.Fatalf("StartDrive: %v", err)
	}
	second, err := c.StartDrive()
	if err != nil {
		t.Fatalf("second StartDrive: %v", err)
	}
	if first != second {
		t.Errorf("second StartDrive returned %q, expected running drive %q", second, first)
	}
}

func TestSelectRouteUnknown(t *testing.T) {
	c := New(nil)
	if err := c.SelectRoute("does-not-exist"); err == nil {
		t.Fatal("SelectRoute(does-not-exist) expected error")
	}
}

func TestPlanRoutesAppliesRecommendation(t *testing.T) {
	c := New(nil)
	// Off-peak so the prediction is deterministic in the test.
	cards := c.PlanRoutes("city-center", time.Date(2025, 6, 2, 12, 0, 0, 0, time.UTC))
	if len(cards) != 3 {
		t.Fatalf("expected 3 cards, got %d", len(cards))
	}
	if !cards[0].Recommended {
		t.Error("top card not marked recommended")
	}

	tel := c.Telemetry()
	if tel.RouteID != cards[0].Route.ID {
		t.Errorf("selected route %q, expected recommendation %q", tel.RouteID, cards[0].Route.ID)
	}
	if tel.Position != cards[0].Route.Waypoints[0] {
		t.Errorf("ambulance at %v, expected route start %v", tel.Position, cards[0].Route.Waypoints[0])
	}
	if tel.Running {
		t.Error("planning routes must not start a drive")
	}
}

func TestTickAdvancesProgress(t *testing.T) {
	c := New(nil)
	if err := c.SelectRoute("shortest"); err != nil {
		t.Fatalf("SelectRoute: %v", err)
	}
	if _, err := c.StartDrive(); err != nil {
		t.Fatalf("StartDrive: %v", err)
	}

	c.Tick(DefaultTickInterval)
	tel := c.Telemetry()

	expected := float64(DefaultTickInterval) / float64(DefaultSegmentTime)
	if tel.WaypointIndex != 0 {
		t.Errorf("waypoint index = %d after one tick, expected 0", tel.WaypointIndex)
	}
	if diff := tel.Progress - expected; diff < -1e-9 || diff > 1e-9 {
		t.Errorf("progress = %f after one tick, expected %f", tel.Progress, expected)
	}
	if tel.Position == c.route.Waypoints[0] {
		t.Error("position did not move off the first waypoint")
	}
}

func TestTickOversizedElapsedAdvancesOneWaypoint(t *testing.T) {
	c := New(nil)
	if err := c.SelectRoute("shortest"); err != nil {
		t.Fatalf("SelectRoute: %v", err)
	}
	if _, err := c.StartDrive(); err != nil {
		t.Fatalf("StartDrive: %v", err)
	}

	// A stalled ticker delivering several segments' worth of elapsed time
	// at once must not skip waypoints.
	c.Tick(10 * DefaultSegmentTime)
	tel := c.Telemetry()
	if tel.WaypointIndex != 1 {
		t.Errorf("waypoint index = %d after one oversized tick, expected 1", tel.WaypointIndex)
	}
	if tel.Progress != 0 {
		t.Errorf("progress = %f at the new waypoint, expected 0", tel.Progress)
	}
	if !tel.Running {
		t.Error("drive stopped mid-route")
	}
}

func TestSetSegmentTimeAppliesMidDrive(t *testing.T) {
	c := New(nil)
	if err := c.SelectRoute("shortest"); err != nil {
		t.Fatalf("SelectRoute: %v", err)
	}
	if _, err := c.StartDrive(); err != nil {
		t.Fatalf("StartDrive: %v", err)
	}

	c.Tick(DefaultTickInterval)
	first := c.Telemetry().Progress

	// Halving the segment time doubles the per-tick progress step, as
	// when the watched config is edited while a drive is running.
	c.SetSegmentTime(DefaultSegmentTime / 2)
	c.Tick(DefaultTickInterval)
	second := c.Telemetry().Progress - first

	if diff := second - 2*first; diff < -1e-9 || diff > 1e-9 {
		t.Errorf("progress step after retune = %f, expected %f", second, 2*first)
	}

	// Non-positive values are ignored.
	c.SetSegmentTime(0)
	before := c.Telemetry().Progress
	c.Tick(DefaultTickInterval)
	step := c.Telemetry().Progress - before
	if diff := step - 2*first; diff < -1e-9 || diff > 1e-9 {
		t.Errorf("progress step after SetSegmentTime(0) = %f, expected %f", step, 2*first)
	}
}

func TestTickNoOpWhenNotRunning(t *testing.T) {
	c := New(nil)
	if err := c.SelectRoute("shortest"); err != nil {
		t.Fatalf("SelectRoute: %v", err)
	}

	before := c.Telemetry()
	c.Tick(DefaultTickInterval)
	after := c.Telemetry()

	if after.Position != before.Position || after.WaypointIndex != before.WaypointIndex {
		t.Error("Tick moved the ambulance without a running drive")
	}
}

func TestDriveShortestSignalLifecycle(t *testing.T) {
	l := &recordingListener{}
	c := New(l)
	if err := c.SelectRoute("shortest"); err != nil {
		t.Fatalf("SelectRoute: %v", err)
	}
	driveID, err := c.StartDrive()
	if err != nil {
		t.Fatalf("StartDrive: %v", err)
	}

	runToCompletion(t, c)

	tel := c.Telemetry()
	if tel.Running {
		t.Fatal("drive still running")
	}
	last := len(c.route.Waypoints) - 1
	if tel.WaypointIndex != last {
		t.Errorf("finished at waypoint %d, expected %d", tel.WaypointIndex, last)
	}
	if tel.Position != c.route.Waypoints[last] {
		t.Errorf("finished at %v, expected final waypoint %v", tel.Position, c.route.Waypoints[last])
	}

	// S1 sits on the route, so it must go Normal -> Override -> Normal,
	// exactly once.
	if got := l.modesFor("S1"); len(got) != 2 || got[0] != "Override" || got[1] != "Normal" {
		t.Errorf("S1 mode transitions = %v, expected [Override Normal]", got)
	}
	if n := l.countEvents("Advance detection: S1"); n != 1 {
		t.Errorf("S1 advance detection fired %d times, expected 1", n)
	}

	status := signalStatus(t, tel, "S1")
	if !status.Passed {
		t.Error("S1 not marked passed after the drive")
	}
	if status.Mode != ModeNormal {
		t.Errorf("S1 mode = %s after the drive, expected Normal", status.Mode)
	}

	// S2 also sits on the route and follows the same lifecycle.
	if got := l.modesFor("S2"); len(got) != 2 || got[0] != "Override" || got[1] != "Normal" {
		t.Errorf("S2 mode transitions = %v, expected [Override Normal]", got)
	}

	// S3 is a Gran Via signal the shortest route never comes within
	// override range of: no mode changes, never passed.
	if got := l.modesFor("S3"); len(got) != 0 {
		t.Errorf("S3 mode transitions = %v, expected none", got)
	}
	if signalStatus(t, tel, "S3").Passed {
		t.Error("S3 marked passed without ever being crossed")
	}

	if len(l.started) != 1 || l.started[0] != driveID {
		t.Errorf("DriveStarted callbacks = %v, expected [%s]", l.started, driveID)
	}
	if len(l.finished) != 1 || l.finished[0] != driveID {
		t.Errorf("DriveFinished callbacks = %v, expected [%s]", l.finished, driveID)
	}
}

func TestPassedSignalNeverRefires(t *testing.T) {
	l := &recordingListener{}
	c := New(l)
	if err := c.SelectRoute("shortest"); err != nil {
		t.Fatalf("SelectRoute: %v", err)
	}
	if _, err := c.StartDrive(); err != nil {
		t.Fatalf("StartDrive: %v", err)
	}
	runToCompletion(t, c)

	transitions := len(l.modeChanges)
	advances := l.countEvents("Advance detection")

	// Extra ticks after completion must not change anything.
	for i := 0; i < 20; i++ {
		c.Tick(DefaultTickInterval)
	}
	if len(l.modeChanges) != transitions {
		t.Errorf("mode changes grew from %d to %d after completion", transitions, len(l.modeChanges))
	}
	if got := l.countEvents("Advance detection"); got != advances {
		t.Errorf("advance detections grew from %d to %d after completion", advances, got)
	}
}

func TestResetMidDrive(t *testing.T) {
	c := New(nil)
	if err := c.SelectRoute("shortest"); err != nil {
		t.Fatalf("SelectRoute: %v", err)
	}
	if _, err := c.StartDrive(); err != nil {
		t.Fatalf("StartDrive: %v", err)
	}

	// Deep enough to be past the first waypoint with signal state armed.
	for i := 0; i < 30; i++ {
		c.Tick(DefaultTickInterval)
	}
	before := c.Telemetry()
	if before.WaypointIndex == 0 && before.Progress == 0 {
		t.Fatal("drive did not move before reset")
	}

	c.Reset()
	after := c.Telemetry()

	if after.Running {
		t.Error("still running after reset")
	}
	if after.DriveID != "" {
		t.Errorf("drive ID %q survived reset", after.DriveID)
	}
	if after.WaypointIndex != before.WaypointIndex {
		t.Errorf("waypoint index changed on reset: %d -> %d", before.WaypointIndex, after.WaypointIndex)
	}
	if after.AutoControl || after.AdvanceDetection || after.RouteHighlighted {
		t.Error("indicators not returned to defaults on reset")
	}
	for _, s := range after.Signals {
		if s.Mode != ModeNormal || s.Passed {
			t.Errorf("signal %s runtime state survived reset: mode=%s passed=%v", s.ID, s.Mode, s.Passed)
		}
	}
	if events := c.Events(); len(events) != 0 {
		t.Errorf("event log has %d entries after reset, expected 0", len(events))
	}

	// Position updates stay frozen.
	for i := 0; i < 5; i++ {
		c.Tick(DefaultTickInterval)
	}
	frozen := c.Telemetry()
	if frozen.WaypointIndex != after.WaypointIndex || frozen.Position != after.Position {
		t.Error("position updated after reset")
	}

	// Route selection survives, so a new drive can start immediately.
	if _, err := c.StartDrive(); err != nil {
		t.Errorf("StartDrive after reset: %v", err)
	}
}

func TestEventsNewestFirst(t *testing.T) {
	c := New(nil)
	if err := c.SelectRoute("shortest"); err != nil {
		t.Fatalf("SelectRoute: %v", err)
	}
	if _, err := c.StartDrive(); err != nil {
		t.Fatalf("StartDrive: %v", err)
	}
	runToCompletion(t, c)

	events := c.Events()
	if len(events) < 2 {
		t.Fatalf("expected several events, got %d", len(events))
	}
	for i := 1; i < len(events); i++ {
		if events[i-1].At.Before(events[i].At) {
			t.Fatalf("events not newest-first at %d: %v before %v", i, events[i-1].At, events[i].At)
		}
	}
	if !strings.Contains(events[len(events)-1].Message, "Drive started") {
		t.Errorf("oldest event = %q, expected the drive start", events[len(events)-1].Message)
	}
}

func signalStatus(t *testing.T, tel Telemetry, id string) SignalStatus {
	t.Helper()
	for _, s := range tel.Signals {
		if s.ID == id {
			return s
		}
	}
	t.Fatalf("signal %s not in telemetry", id)
	return SignalStatus{}
}
