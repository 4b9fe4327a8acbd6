package event

import "sync"

// Sink receives events in emission order.
type Sink interface {
	Publish(ev Event)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ev Event)

func (f SinkFunc) Publish(ev Event) { f(ev) }

// Fanout publishes to every sink in order.
type Fanout []Sink

func (f Fanout) Publish(ev Event) {
	for _, s := range f {
		s.Publish(ev)
	}
}

// Recorder keeps every published event. Safe for concurrent use.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *Recorder) Publish(ev Event) {
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
}

// Events returns a copy of what was recorded.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// OfType returns recorded events of one type.
func (r *Recorder) OfType(t Type) []Event {
	var out []Event
	for _, ev := range r.Events() {
		if ev.GetType() == t {
			out = append(out, ev)
		}
	}
	return out
}

// Channel forwards events to a buffered channel and drops them when the
// reader falls behind. Dropped is the number lost so far.
type Channel struct {
	C       chan Event
	mu      sync.Mutex
	dropped int
}

// NewChannel creates a channel sink with the given buffer.
func NewChannel(size int) *Channel {
	return &Channel{C: make(chan Event, size)}
}

func (c *Channel) Publish(ev Event) {
	select {
	case c.C <- ev:
	default:
		c.mu.Lock()
		c.dropped++
		c.mu.Unlock()
	}
}

// Dropped returns how many events were discarded.
func (c *Channel) Dropped() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dropped
}
