package smoke

import (
	"sync"
	"time"
)

// EventKind is a milestone in a scenario.
type EventKind string

const (
	EventPortAllocated      EventKind = "port-allocated"
	EventSpawned            EventKind = "spawned"
	EventReady              EventKind = "ready"
	EventSignaled           EventKind = "signaled"
	EventExitedBeforeSignal EventKind = "exited-before-signal"
	EventExited             EventKind = "exited"
	EventCleanedUp          EventKind = "cleaned-up"
)

// Event is one recorded milestone.
type Event struct {
	Kind   EventKind
	At     time.Time
	Detail string
}

// Trace records scenario milestones in order. A nil *Trace discards
// everything, so stages can record unconditionally.
type Trace struct {
	events []Event
	mutex  sync.Mutex
}

// Record appends an event stamped with the current time.
func (t *Trace) Record(kind EventKind, detail string) {
	if t == nil {
		return
	}

	t.mutex.Lock()
	defer t.mutex.Unlock()

	t.events = append(t.events, Event{Kind: kind, At: time.Now(), Detail: detail})
}

// Events returns a copy of the recorded events.
func (t *Trace) Events() []Event {
	if t == nil {
		return nil
	}

	t.mutex.Lock()
	defer t.mutex.Unlock()

	return append([]Event(nil), t.events...)
}

// Find returns the position and the first event of the given kind, or -1
// if it was never recorded.
func (t *Trace) Find(kind EventKind) (int, Event) {
	for idx, event := range t.Events() {
		if event.Kind == kind {
			return idx, event
		}
	}
	return -1, Event{}
}
