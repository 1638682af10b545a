package consistency

import "fmt"

// EventStatus is the lifecycle stage of one plan execution.
type EventStatus int

const (
	EventPending EventStatus = iota
	EventWorking
	EventComplete
	EventFailed
)

// Event reports progress of one plan through the run.
type Event struct {
	PlanKey string
	Status  EventStatus
	Message string
}

// Reporter emits progress events through a buffered channel.
type Reporter struct {
	ch chan Event
}

// NewReporter creates a Reporter with a buffered channel of size 64.
func NewReporter() *Reporter {
	return &Reporter{ch: make(chan Event, 64)}
}

// Emit sends an event in a non-blocking fashion. If the channel is full, the
// event is silently dropped.
func (r *Reporter) Emit(ev Event) {
	select {
	case r.ch <- ev:
	default:
	}
}

// Subscribe returns a read-only channel for consuming events.
func (r *Reporter) Subscribe() <-chan Event {
	return r.ch
}

// Close closes the event channel.
func (r *Reporter) Close() {
	close(r.ch)
}

// FormatEvent renders an event as a human-readable status line.
func FormatEvent(ev Event) string {
	switch ev.Status {
	case EventPending:
		return fmt.Sprintf("  ○ %s (pending)", ev.PlanKey)
	case EventWorking:
		return fmt.Sprintf("  ● %s...", ev.PlanKey)
	case EventComplete:
		return fmt.Sprintf("  ✓ %s complete", ev.PlanKey)
	case EventFailed:
		return fmt.Sprintf("  ✗ %s failed: %s", ev.PlanKey, ev.Message)
	default:
		return fmt.Sprintf("  ? %s (unknown status)", ev.PlanKey)
	}
}
