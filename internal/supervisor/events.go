package supervisor

import "time"

// EventType captures lifecycle notifications emitted by the supervisor.
type EventType string

const (
	EventTypeStarting  EventType = "starting"
	EventTypeStarted   EventType = "started"
	EventTypeSignalled EventType = "signalled"
	EventTypeWaiting   EventType = "waiting"
	EventTypeExited    EventType = "exited"
)

// Event represents a single lifecycle notification.
type Event struct {
	Timestamp time.Time
	Type      EventType
	Message   string
	PID       int
	ExitCode  int
	Err       error
}
