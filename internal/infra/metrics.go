package infra

import (
	"sync/atomic"
	"time"

	"poolbet/internal/event"
)

// Metrics provides lightweight observability without external dependencies.
// Uses atomic operations for thread-safety.
type Metrics struct {
	// Counters
	commandsApplied  atomic.Uint64
	commandsRejected atomic.Uint64
	betsPlaced       atomic.Uint64
	conditionsClosed atomic.Uint64
	eventsPublished  atomic.Uint64

	// Gauges
	betVolume       atomic.Int64
	poolResult      atomic.Int64 // sum of pool deltas of closed conditions
	feedSubscribers atomic.Int32

	// Latency tracking
	latencySumNs atomic.Int64
	latencyCount atomic.Uint64
}

// GlobalMetrics is the singleton metrics instance.
var GlobalMetrics = &Metrics{}

// RecordCommand records an applied command with its latency.
func (m *Metrics) RecordCommand(rejected bool, latency time.Duration) {
	if rejected {
		m.commandsRejected.Add(1)
	} else {
		m.commandsApplied.Add(1)
	}
	m.latencySumNs.Add(latency.Nanoseconds())
	m.latencyCount.Add(1)
}

// Publish counts pool events. Metrics is an event.Sink.
func (m *Metrics) Publish(ev event.Event) {
	m.eventsPublished.Add(1)
	switch e := ev.(type) {
	case *event.NewBetEvent:
		m.betsPlaced.Add(1)
		m.betVolume.Add(e.Amount)
	case *event.ConditionResolvedEvent:
		m.conditionsClosed.Add(1)
		m.poolResult.Add(e.PoolDelta)
	}
}

// IncrementSubscribers increments feed subscribers by 1.
func (m *Metrics) IncrementSubscribers() {
	m.feedSubscribers.Add(1)
}

// DecrementSubscribers decrements feed subscribers by 1.
func (m *Metrics) DecrementSubscribers() {
	m.feedSubscribers.Add(-1)
}

// MetricsSnapshot is a point-in-time view of all metrics.
type MetricsSnapshot struct {
	CommandsApplied  uint64
	CommandsRejected uint64
	BetsPlaced       uint64
	ConditionsClosed uint64
	EventsPublished  uint64
	BetVolume        int64
	PoolResult       int64
	FeedSubscribers  int32
	AvgLatencyNs     int64
	Timestamp        time.Time
}

// Snapshot returns current metrics as a snapshot.
func (m *Metrics) Snapshot() MetricsSnapshot {
	var avgLatency int64
	count := m.latencyCount.Load()
	if count > 0 {
		avgLatency = m.latencySumNs.Load() / int64(count)
	}

	return MetricsSnapshot{
		CommandsApplied:  m.commandsApplied.Load(),
		CommandsRejected: m.commandsRejected.Load(),
		BetsPlaced:       m.betsPlaced.Load(),
		ConditionsClosed: m.conditionsClosed.Load(),
		EventsPublished:  m.eventsPublished.Load(),
		BetVolume:        m.betVolume.Load(),
		PoolResult:       m.poolResult.Load(),
		FeedSubscribers:  m.feedSubscribers.Load(),
		AvgLatencyNs:     avgLatency,
		Timestamp:        time.Now(),
	}
}

// Reset clears all metrics (for testing).
func (m *Metrics) Reset() {
	m.commandsApplied.Store(0)
	m.commandsRejected.Store(0)
	m.betsPlaced.Store(0)
	m.conditionsClosed.Store(0)
	m.eventsPublished.Store(0)
	m.betVolume.Store(0)
	m.poolResult.Store(0)
	m.feedSubscribers.Store(0)
	m.latencySumNs.Store(0)
	m.latencyCount.Store(0)
}
