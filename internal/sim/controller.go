// Package sim owns all mutable simulation state: the drive session, the
// ambulance position and the per-signal preemption state machine. The
// controller is driven externally through Tick, so a real ticker and a
// test harness exercise exactly the same code path.
package sim

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/greenwave-ems/greenwave/internal/catalog"
	"github.com/greenwave-ems/greenwave/internal/geo"
)

const (
	// DefaultTickInterval is the recommended cadence for driving Tick.
	DefaultTickInterval = 200 * time.Millisecond
	// DefaultSegmentTime is the nominal time to traverse one route
	// segment at full speed.
	DefaultSegmentTime = 4200 * time.Millisecond

	// advanceDetectKm arms auto control when the next signal comes
	// within range.
	advanceDetectKm = 3.0
	// overrideStartKm forces the signal green.
	overrideStartKm = 0.40
	// recedeEpsilonKm of movement away from the closest approach counts
	// as having crossed the signal.
	recedeEpsilonKm = 0.03
	// fallbackFloorKm is the minimum distance at which the secondary
	// crossing rule may fire.
	fallbackFloorKm = 0.15
	// crossProgressMin is how far into the signal's own segment the
	// ambulance must be for the index-based crossing check.
	crossProgressMin = 0.60
)

// ErrNoRouteSelected is returned by StartDrive before a route was chosen.
var ErrNoRouteSelected = errors.New("no route selected: generate and pick a route first")

// signalState tracks one signal across a drive. minDistKm and lastDistKm
// start at +Inf so the crossing rules cannot fire before the signal has
// actually been observed inside override range.
type signalState struct {
	sig              catalog.Signal
	mode             SignalMode
	nearestIdx       int
	minDistKm        float64
	lastDistKm       float64
	advanceTriggered bool
	overrideActive   bool
	passed           bool
}

// Controller owns the simulation. All access goes through its methods;
// a single mutex serializes the tick loop against API calls.
type Controller struct {
	mu          sync.Mutex
	listener    Listener
	segmentTime time.Duration
	now         func() time.Time

	route       *catalog.Route
	signals     []*signalState
	driveID     string
	waypointIdx int
	progress    float64
	position    geo.Point
	bearing     float64
	running     bool

	autoControl      bool
	advanceDetection bool
	routeHighlighted bool

	events []Event
}

// notifications collects listener callbacks gathered under the lock so
// they can be delivered after it is released.
type notifications struct {
	driveID     string
	events      []Event
	modeChanges []struct {
		id   string
		mode SignalMode
	}
	started    bool
	startedID  string
	startedRt  string
	finished   bool
	finishedID string
}

// New creates a controller with the given listener. A nil listener is
// replaced by NopListener.
func New(listener Listener) *Controller {
	if listener == nil {
		listener = NopListener{}
	}
	return &Controller{
		listener:    listener,
		segmentTime: DefaultSegmentTime,
		now:         time.Now,
	}
}

// SetSegmentTime overrides the nominal full-segment traversal time.
// Non-positive values are ignored.
func (c *Controller) SetSegmentTime(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if d > 0 {
		c.segmentTime = d
	}
}

// PlanRoutes builds ranked route cards for the incident district and
// applies the recommended route as the current selection.
func (c *Controller) PlanRoutes(district string, now time.Time) []catalog.Card {
	cards := catalog.BuildCards(district, now)

	c.mu.Lock()
	n := &notifications{}
	if len(cards) > 0 {
		c.selectRouteLocked(cards[0].Route)
		c.appendEventLocked(n, fmt.Sprintf("Generated %d route options for %s, recommended %q (%s traffic, %.1f min)",
			len(cards), district, cards[0].Route.ID, cards[0].Traffic, cards[0].EstimatedMinutes))
	}
	tel := c.telemetryLocked()
	c.mu.Unlock()

	c.emit(n, &tel)
	return cards
}

// SelectRoute makes the given route the active one and parks the
// ambulance at its first waypoint. Any running drive is discarded.
func (c *Controller) SelectRoute(id string) error {
	r, err := catalog.RouteByID(id)
	if err != nil {
		return err
	}

	c.mu.Lock()
	n := &notifications{}
	c.selectRouteLocked(r)
	c.appendEventLocked(n, fmt.Sprintf("Route %q selected", r.ID))
	tel := c.telemetryLocked()
	c.mu.Unlock()

	c.emit(n, &tel)
	return nil
}

// selectRouteLocked resets the session onto route r. Caller holds c.mu.
func (c *Controller) selectRouteLocked(r catalog.Route) {
	c.route = &r
	c.driveID = ""
	c.running = false
	c.waypointIdx = 0
	c.progress = 0
	c.position = r.Waypoints[0]
	c.bearing = geo.Bearing(r.Waypoints[0], r.Waypoints[1])
	c.autoControl = false
	c.advanceDetection = false
	c.routeHighlighted = false
	c.rebuildSignalsLocked()
}

// rebuildSignalsLocked recomputes per-signal runtime state for the active
// route, sorted by nearest waypoint index so "next signal" scans are in
// travel order. Caller holds c.mu.
func (c *Controller) rebuildSignalsLocked() {
	sigs := catalog.Signals()
	c.signals = make([]*signalState, 0, len(sigs))
	for _, s := range sigs {
		c.signals = append(c.signals, &signalState{
			sig:        s,
			mode:       ModeNormal,
			nearestIdx: geo.NearestIndex(c.route.Waypoints, s.Location),
			minDistKm:  math.Inf(1),
			lastDistKm: math.Inf(1),
		})
	}
	sort.SliceStable(c.signals, func(i, j int) bool {
		return c.signals[i].nearestIdx < c.signals[j].nearestIdx
	})
}

// StartDrive begins a new drive on the selected route. Starting while a
// drive is already running is a no-op that returns the current drive ID.
func (c *Controller) StartDrive() (string, error) {
	c.mu.Lock()
	if c.route == nil {
		c.mu.Unlock()
		return "", ErrNoRouteSelected
	}
	if c.running {
		id := c.driveID
		c.mu.Unlock()
		return id, nil
	}

	n := &notifications{}
	c.driveID = uuid.New().String()
	c.waypointIdx = 0
	c.progress = 0
	c.position = c.route.Waypoints[0]
	c.bearing = geo.Bearing(c.route.Waypoints[0], c.route.Waypoints[1])
	c.autoControl = false
	c.advanceDetection = false
	c.routeHighlighted = false
	c.rebuildSignalsLocked()
	c.running = true

	n.started = true
	n.startedID = c.driveID
	n.startedRt = c.route.ID
	c.appendEventLocked(n, fmt.Sprintf("Drive started on route %q", c.route.ID))

	id := c.driveID
	tel := c.telemetryLocked()
	c.mu.Unlock()

	c.emit(n, &tel)
	return id, nil
}

// Reset stops the drive and returns every indicator to its default. The
// ambulance stays where it is (the waypoint index is frozen) and the
// route selection survives, but all per-signal runtime state and the
// event log are cleared.
func (c *Controller) Reset() {
	c.mu.Lock()
	c.running = false
	c.driveID = ""
	c.autoControl = false
	c.advanceDetection = false
	c.routeHighlighted = false
	c.events = nil
	if c.route != nil {
		c.rebuildSignalsLocked()
	}
	tel := c.telemetryLocked()
	c.mu.Unlock()

	c.emit(&notifications{}, &tel)
}

// Tick advances the simulation by the elapsed wall time. It is a no-op
// when no drive is running, so a permanently running ticker is safe.
func (c *Controller) Tick(elapsed time.Duration) {
	c.mu.Lock()
	if !c.running || c.route == nil {
		c.mu.Unlock()
		return
	}

	n := &notifications{}
	wps := c.route.Waypoints

	// Clamped so an oversized elapsed (a stalled ticker catching up)
	// advances at most one waypoint per call.
	c.progress = geo.Clamp(c.progress+float64(elapsed)/float64(c.segmentTime), 0, 1)
	if c.progress >= 1 {
		c.waypointIdx++
		c.progress = 0
	}

	if c.waypointIdx >= len(wps)-1 {
		c.waypointIdx = len(wps) - 1
		c.progress = 0
		c.position = wps[len(wps)-1]
		c.running = false
		n.finished = true
		n.finishedID = c.driveID
		c.appendEventLocked(n, "Ambulance arrived, drive complete")
	} else {
		c.position = geo.Interpolate(wps[c.waypointIdx], wps[c.waypointIdx+1], c.progress)
		c.bearing = geo.Bearing(wps[c.waypointIdx], wps[c.waypointIdx+1])
		c.evaluateSignalsLocked(n)
	}

	tel := c.telemetryLocked()
	c.mu.Unlock()

	c.emit(n, &tel)
}

// nextSignalLocked returns the nearest un-passed signal at or ahead of
// the current waypoint index, or the last un-passed one if every
// candidate is already behind. Caller holds c.mu.
func (c *Controller) nextSignalLocked() *signalState {
	var fallback *signalState
	for _, s := range c.signals {
		if s.passed {
			continue
		}
		fallback = s
		if s.nearestIdx >= c.waypointIdx {
			return s
		}
	}
	return fallback
}

// evaluateSignalsLocked runs the per-tick preemption state machine
// against the single next signal. Caller holds c.mu.
func (c *Controller) evaluateSignalsLocked(n *notifications) {
	s := c.nextSignalLocked()
	if s == nil {
		return
	}

	dist := geo.Distance(c.position, s.sig.Location)

	// 1. Advance detection, once per signal per drive.
	if !s.advanceTriggered && dist <= advanceDetectKm {
		s.advanceTriggered = true
		c.autoControl = true
		c.advanceDetection = true
		c.routeHighlighted = true
		c.appendEventLocked(n, fmt.Sprintf("Advance detection: %s (%s) %.2f km ahead, auto control engaged",
			s.sig.ID, s.sig.Name, dist))
	}

	// 2. Override start, once per signal per drive.
	if !s.overrideActive && dist <= overrideStartKm {
		s.overrideActive = true
		s.mode = ModeOverride
		n.modeChange(s.sig.ID, ModeOverride)
		c.appendEventLocked(n, fmt.Sprintf("Override: %s forced green, %.2f km out", s.sig.ID, dist))
	}

	// 3. Crossing detection, only while the override is held. The
	// primary rule is geometric (closest approach receding, or the
	// waypoint index moving past the signal); the secondary rule is a
	// looser catch-all on the last observation. Both are kept: some
	// route geometries only ever satisfy one of them.
	if s.overrideActive && !s.passed {
		crossed := s.minDistKm <= overrideStartKm &&
			(dist > s.minDistKm+recedeEpsilonKm ||
				c.waypointIdx > s.nearestIdx ||
				(c.waypointIdx == s.nearestIdx && c.progress >= crossProgressMin))

		if !crossed && s.lastDistKm <= overrideStartKm && dist > s.lastDistKm && dist >= fallbackFloorKm {
			crossed = true
		}

		if crossed {
			s.passed = true
			s.overrideActive = false
			s.mode = ModeNormal
			c.autoControl = false
			c.advanceDetection = false
			c.routeHighlighted = false
			n.modeChange(s.sig.ID, ModeNormal)
			c.appendEventLocked(n, fmt.Sprintf("Crossed %s, signal restored to normal", s.sig.ID))
		}
	}

	// Record this observation after evaluation so the rules above always
	// compare against earlier ticks.
	if dist < s.minDistKm {
		s.minDistKm = dist
	}
	s.lastDistKm = dist
}

// appendEventLocked prepends a log line (newest first). Caller holds c.mu.
func (c *Controller) appendEventLocked(n *notifications, msg string) {
	e := Event{At: c.now().UTC(), Message: msg}
	c.events = append([]Event{e}, c.events...)
	n.driveID = c.driveID
	n.events = append(n.events, e)
}

func (n *notifications) modeChange(id string, mode SignalMode) {
	n.modeChanges = append(n.modeChanges, struct {
		id   string
		mode SignalMode
	}{id, mode})
}

// emit delivers collected notifications outside the lock, in the order
// they occurred, finishing with the telemetry snapshot.
func (c *Controller) emit(n *notifications, tel *Telemetry) {
	if n.started {
		c.listener.DriveStarted(n.startedID, n.startedRt)
	}
	for _, e := range n.events {
		c.listener.EventAppended(n.driveID, e)
	}
	for _, mc := range n.modeChanges {
		c.listener.SignalModeChanged(mc.id, mc.mode)
	}
	if tel != nil {
		c.listener.PositionUpdated(*tel)
	}
	if n.finished {
		c.listener.DriveFinished(n.finishedID)
	}
}

// Telemetry returns the current snapshot.
func (c *Controller) Telemetry() Telemetry {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.telemetryLocked()
}

// telemetryLocked builds a snapshot. Caller holds c.mu.
func (c *Controller) telemetryLocked() Telemetry {
	tel := Telemetry{
		DriveID:            c.driveID,
		Position:           c.position,
		BearingDeg:         c.bearing,
		WaypointIndex:      c.waypointIdx,
		Progress:           c.progress,
		Running:            c.running,
		NextSignalDistance: "no signal ahead",
		AutoControl:        c.autoControl,
		AdvanceDetection:   c.advanceDetection,
		RouteHighlighted:   c.routeHighlighted,
		UpdatedAt:          c.now().UTC(),
	}
	if c.route != nil {
		tel.RouteID = c.route.ID
	}

	tel.Signals = make([]SignalStatus, 0, len(c.signals))
	for _, s := range c.signals {
		st := SignalStatus{
			ID:       s.sig.ID,
			Name:     s.sig.Name,
			Location: s.sig.Location,
			Mode:     s.mode,
			Passed:   s.passed,
		}
		if !math.IsInf(s.lastDistKm, 1) {
			st.DistanceKm = s.lastDistKm
		}
		tel.Signals = append(tel.Signals, st)
	}

	if next := c.nextSignalLocked(); next != nil {
		tel.NextSignalID = next.sig.ID
		tel.NextSignalDistance = fmt.Sprintf("%.2f km", geo.Distance(c.position, next.sig.Location))
	}

	return tel
}

// Events returns a copy of the drive log, newest first.
func (c *Controller) Events() []Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Event, len(c.events))
	copy(out, c.events)
	return out
}
