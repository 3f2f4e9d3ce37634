package internal

import (
	"sync"
	"time"

	"github.com/DevBiker/WorkflowsCore-sub000/namedvalues"
)

// Event is one entry in a workflow instance's bounded event log (§4.6):
// a timestamped record of an action execution or a lifecycle milestone,
// with its parameters already stringified for storage.
type Event struct {
	At     time.Time
	Kind   string // "action", "stateChanged", "completed", "canceled", "faulted"
	Name   string
	Params map[string]string
}

// EventLog is a fixed-capacity FIFO log: once full, appending an event
// drops the oldest one. Capacity 0 means unbounded.
type EventLog struct {
	mu       sync.Mutex
	capacity int
	events   []Event
	onEvent  []func(Event) bool // filter: return true to keep subscription
}

// NewEventLog creates a log bounded to capacity entries (0 = unbounded).
func NewEventLog(capacity int) *EventLog {
	return &EventLog{capacity: capacity}
}

// LogEvent appends e, evicting the oldest entry if the log is at capacity,
// and notifies subscribers registered via OnLogEvent.
func (l *EventLog) LogEvent(e Event) {
	l.mu.Lock()
	l.events = append(l.events, e)
	if l.capacity > 0 && len(l.events) > l.capacity {
		l.events = l.events[len(l.events)-l.capacity:]
	}
	subs := append([]func(Event) bool(nil), l.onEvent...)
	l.mu.Unlock()

	var keep []func(Event) bool
	for _, f := range subs {
		if f(e) {
			keep = append(keep, f)
		}
	}
	l.mu.Lock()
	l.onEvent = keep
	l.mu.Unlock()
}

// OnLogEvent registers f to be called with every future event. f returns
// whether it wants to keep receiving events.
func (l *EventLog) OnLogEvent(f func(Event) bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.onEvent = append(l.onEvent, f)
}

// Events returns a snapshot of the current log contents, oldest first.
func (l *EventLog) Events() []Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]Event(nil), l.events...)
}

// LogAction is a convenience for the common case of logging an executed
// action with its stringified parameters.
func (l *EventLog) LogAction(at time.Time, name string, values *namedvalues.Values) {
	l.LogEvent(Event{At: at, Kind: "action", Name: name, Params: namedvalues.Stringify(values)})
}
