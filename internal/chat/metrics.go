package chat

import (
	"sync"
	"sync/atomic"
	"time"
)

// Metrics tracks routing and dispatch counters for the bot process.
// All methods are safe for concurrent use.
type Metrics struct {
	messagesRouted      atomic.Uint64
	responsesSent       atomic.Uint64
	responsesSuppressed atomic.Uint64
	safetyOverrides     atomic.Uint64
	errorFallbacks      atomic.Uint64
	threadsCreated      atomic.Uint64
	threadsReused       atomic.Uint64
	danglingThreadRefs  atomic.Uint64
	contextIDsMissing   atomic.Uint64

	errorsByCode map[ErrorCode]*atomic.Uint64
	errorsMu     sync.RWMutex

	decisionLatency *LatencyWindow

	startTime time.Time
}

// NewMetrics creates a Metrics instance.
func NewMetrics() *Metrics {
	return &Metrics{
		errorsByCode:    make(map[ErrorCode]*atomic.Uint64),
		decisionLatency: NewLatencyWindow(),
		startTime:       time.Now(),
	}
}

// RecordMessageRouted increments the routed-message counter.
func (m *Metrics) RecordMessageRouted() { m.messagesRouted.Add(1) }

// RecordResponseSent increments the sent-response counter.
func (m *Metrics) RecordResponseSent() { m.responsesSent.Add(1) }

// RecordResponseSuppressed increments the deliberate non-response counter.
func (m *Metrics) RecordResponseSuppressed() { m.responsesSuppressed.Add(1) }

// RecordSafetyOverride increments the mention-forced-response counter.
func (m *Metrics) RecordSafetyOverride() { m.safetyOverrides.Add(1) }

// RecordErrorFallback increments the routing-failure fallback counter.
func (m *Metrics) RecordErrorFallback() { m.errorFallbacks.Add(1) }

// RecordThreadCreated increments the new-thread counter.
func (m *Metrics) RecordThreadCreated() { m.threadsCreated.Add(1) }

// RecordThreadReused increments the existing-thread counter.
func (m *Metrics) RecordThreadReused() { m.threadsReused.Add(1) }

// RecordDanglingThreadRef counts decisions naming a nonexistent thread.
func (m *Metrics) RecordDanglingThreadRef() { m.danglingThreadRefs.Add(1) }

// RecordContextIDsMissing counts context message IDs that failed to resolve.
func (m *Metrics) RecordContextIDsMissing(n int) {
	if n > 0 {
		m.contextIDsMissing.Add(uint64(n))
	}
}

// RecordError increments the error counter for a specific code.
func (m *Metrics) RecordError(code ErrorCode) {
	m.errorsMu.Lock()
	counter, ok := m.errorsByCode[code]
	if !ok {
		counter = &atomic.Uint64{}
		m.errorsByCode[code] = counter
	}
	m.errorsMu.Unlock()

	counter.Add(1)
}

// RecordDecisionLatency records the round-trip time of a router decision.
func (m *Metrics) RecordDecisionLatency(d time.Duration) {
	m.decisionLatency.Record(d)
}

// Snapshot returns a point-in-time view of all counters.
func (m *Metrics) Snapshot() MetricsSnapshot {
	m.errorsMu.RLock()
	errs := make(map[ErrorCode]uint64, len(m.errorsByCode))
	for code, counter := range m.errorsByCode {
		errs[code] = counter.Load()
	}
	m.errorsMu.RUnlock()

	return MetricsSnapshot{
		MessagesRouted:      m.messagesRouted.Load(),
		ResponsesSent:       m.responsesSent.Load(),
		ResponsesSuppressed: m.responsesSuppressed.Load(),
		SafetyOverrides:     m.safetyOverrides.Load(),
		ErrorFallbacks:      m.errorFallbacks.Load(),
		ThreadsCreated:      m.threadsCreated.Load(),
		ThreadsReused:       m.threadsReused.Load(),
		DanglingThreadRefs:  m.danglingThreadRefs.Load(),
		ContextIDsMissing:   m.contextIDsMissing.Load(),
		ErrorsByCode:        errs,
		DecisionLatency:     m.decisionLatency.Snapshot(),
		Uptime:              time.Since(m.startTime),
	}
}

// MetricsSnapshot is a point-in-time view of routing metrics.
type MetricsSnapshot struct {
	MessagesRouted      uint64
	ResponsesSent       uint64
	ResponsesSuppressed uint64
	SafetyOverrides     uint64
	ErrorFallbacks      uint64
	ThreadsCreated      uint64
	ThreadsReused       uint64
	DanglingThreadRefs  uint64
	ContextIDsMissing   uint64
	ErrorsByCode        map[ErrorCode]uint64
	DecisionLatency     LatencySnapshot
	Uptime              time.Duration
}

// LatencyWindow keeps a ring of recent latency samples for percentile
// reporting.
type LatencyWindow struct {
	mu      sync.RWMutex
	samples []time.Duration
	head    int
	count   int
	max     int
}

// NewLatencyWindow creates a window holding the last 512 samples.
func NewLatencyWindow() *LatencyWindow {
	const maxSamples = 512
	return &LatencyWindow{
		samples: make([]time.Duration, maxSamples),
		max:     maxSamples,
	}
}

// Record adds a latency sample.
func (w *LatencyWindow) Record(d time.Duration) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.max == 0 {
		return
	}
	w.samples[w.head] = d
	w.head = (w.head + 1) % w.max
	if w.count < w.max {
		w.count++
	}
}

// Snapshot returns latency statistics over the retained samples.
func (w *LatencyWindow) Snapshot() LatencySnapshot {
	w.mu.RLock()
	defer w.mu.RUnlock()

	if w.count == 0 {
		return LatencySnapshot{}
	}

	sorted := make([]time.Duration, w.count)
	if w.count < w.max {
		copy(sorted, w.samples[:w.count])
	} else {
		for i := 0; i < w.count; i++ {
			sorted[i] = w.samples[(w.head+i)%w.max]
		}
	}

	// Insertion sort; the window is small.
	for i := 1; i < len(sorted); i++ {
		key := sorted[i]
		j := i - 1
		for j >= 0 && sorted[j] > key {
			sorted[j+1] = sorted[j]
			j--
		}
		sorted[j+1] = key
	}

	var sum time.Duration
	for _, d := range sorted {
		sum += d
	}

	return LatencySnapshot{
		Count: len(sorted),
		Min:   sorted[0],
		Max:   sorted[len(sorted)-1],
		Mean:  sum / time.Duration(len(sorted)),
		P50:   sorted[len(sorted)*50/100],
		P95:   sorted[len(sorted)*95/100],
	}
}

// LatencySnapshot summarizes a latency distribution.
type LatencySnapshot struct {
	Count int
	Min   time.Duration
	Max   time.Duration
	Mean  time.Duration
	P50   time.Duration
	P95   time.Duration
}
