package events

// EventCollector accumulates domain events inside value-typed aggregates.
// Every method returns a new collector so copies of an aggregate never share
// a backing array.
type EventCollector struct {
	events []DomainEvent
}

// Record returns a collector holding the existing events plus event.
func (c EventCollector) Record(event DomainEvent) EventCollector {
	next := make([]DomainEvent, len(c.events), len(c.events)+1)
	copy(next, c.events)
	return EventCollector{events: append(next, event)}
}

// Events returns a copy of the collected events.
func (c EventCollector) Events() []DomainEvent {
	if len(c.events) == 0 {
		return nil
	}
	out := make([]DomainEvent, len(c.events))
	copy(out, c.events)
	return out
}

// Len returns the number of collected events.
func (c EventCollector) Len() int {
	return len(c.events)
}
