package sim

// Listener receives simulation callbacks. The rendering or persistence
// layer implements this; the controller never talks to a UI toolkit or a
// database directly. Callbacks are invoked from whichever goroutine drove
// the controller, after the controller's lock has been released.
type Listener interface {
	// PositionUpdated fires after every state change that moves the
	// ambulance or alters an indicator, with a full telemetry snapshot.
	PositionUpdated(t Telemetry)

	// SignalModeChanged fires when a signal flips between normal and
	// override.
	SignalModeChanged(signalID string, mode SignalMode)

	// EventAppended fires for every line added to the drive log.
	// driveID is empty for events raised outside a drive session
	// (route planning, selection).
	EventAppended(driveID string, e Event)

	// DriveStarted and DriveFinished bracket a drive session.
	DriveStarted(driveID, routeID string)
	DriveFinished(driveID string)
}

// NopListener ignores all callbacks.
type NopListener struct{}

func (NopListener) PositionUpdated(Telemetry)            {}
func (NopListener) SignalModeChanged(string, SignalMode) {}
func (NopListener) EventAppended(string, Event)          {}
func (NopListener) DriveStarted(string, string)          {}
func (NopListener) DriveFinished(string)                 {}

// MultiListener fans callbacks out to several listeners in order.
type MultiListener []Listener

func (m MultiListener) PositionUpdated(t Telemetry) {
	for _, l := range m {
		l.PositionUpdated(t)
	}
}

func (m MultiListener) SignalModeChanged(signalID string, mode SignalMode) {
	for _, l := range m {
		l.SignalModeChanged(signalID, mode)
	}
}

func (m MultiListener) EventAppended(driveID string, e Event) {
	for _, l := range m {
		l.EventAppended(driveID, e)
	}
}

func (m MultiListener) DriveStarted(driveID, routeID string) {
	for _, l := range m {
		l.DriveStarted(driveID, routeID)
	}
}

func (m MultiListener) DriveFinished(driveID string) {
	for _, l := range m {
		l.DriveFinished(driveID)
	}
}
