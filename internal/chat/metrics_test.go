package chat

import (
	"sync"
	"testing"
	"time"
)

func TestMetricsCounters(t *testing.T) {
	m := NewMetrics()

	m.RecordMessageRouted()
	m.RecordMessageRouted()
	m.RecordResponseSent()
	m.RecordResponseSuppressed()
	m.RecordSafetyOverride()
	m.RecordErrorFallback()
	m.RecordThreadCreated()
	m.RecordThreadReused()
	m.RecordDanglingThreadRef()
	m.RecordContextIDsMissing(3)
	m.RecordContextIDsMissing(0)
	m.RecordError(ErrCodeUpstream)
	m.RecordError(ErrCodeUpstream)
	m.RecordError(ErrCodeConfig)

	snap := m.Snapshot()
	if snap.MessagesRouted != 2 {
		t.Errorf("MessagesRouted = %d", snap.MessagesRouted)
	}
	if snap.ResponsesSent != 1 || snap.ResponsesSuppressed != 1 {
		t.Errorf("responses = %d/%d", snap.ResponsesSent, snap.ResponsesSuppressed)
	}
	if snap.SafetyOverrides != 1 || snap.ErrorFallbacks != 1 {
		t.Errorf("overrides/fallbacks = %d/%d", snap.SafetyOverrides, snap.ErrorFallbacks)
	}
	if snap.ThreadsCreated != 1 || snap.ThreadsReused != 1 || snap.DanglingThreadRefs != 1 {
		t.Errorf("threads = %d/%d/%d", snap.ThreadsCreated, snap.ThreadsReused, snap.DanglingThreadRefs)
	}
	if snap.ContextIDsMissing != 3 {
		t.Errorf("ContextIDsMissing = %d", snap.ContextIDsMissing)
	}
	if snap.ErrorsByCode[ErrCodeUpstream] != 2 || snap.ErrorsByCode[ErrCodeConfig] != 1 {
		t.Errorf("ErrorsByCode = %v", snap.ErrorsByCode)
	}
}

func TestMetricsConcurrentAccess(t *testing.T) {
	m := NewMetrics()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				m.RecordMessageRouted()
				m.RecordError(ErrCodeUpstream)
				m.RecordDecisionLatency(time.Millisecond)
			}
		}()
	}
	wg.Wait()

	snap := m.Snapshot()
	if snap.MessagesRouted != 1000 {
		t.Errorf("MessagesRouted = %d, want 1000", snap.MessagesRouted)
	}
	if snap.ErrorsByCode[ErrCodeUpstream] != 1000 {
		t.Errorf("errors = %d, want 1000", snap.ErrorsByCode[ErrCodeUpstream])
	}
}

func TestLatencyWindowPercentiles(t *testing.T) {
	w := NewLatencyWindow()
	for i := 1; i <= 100; i++ {
		w.Record(time.Duration(i) * time.Millisecond)
	}

	snap := w.Snapshot()
	if snap.Count != 100 {
		t.Fatalf("Count = %d", snap.Count)
	}
	if snap.Min != time.Millisecond || snap.Max != 100*time.Millisecond {
		t.Errorf("min/max = %v/%v", snap.Min, snap.Max)
	}
	if snap.P50 < 45*time.Millisecond || snap.P50 > 55*time.Millisecond {
		t.Errorf("P50 = %v", snap.P50)
	}
	if snap.P95 < 90*time.Millisecond || snap.P95 > 100*time.Millisecond {
		t.Errorf("P95 = %v", snap.P95)
	}
}

func TestLatencyWindowWrapsRing(t *testing.T) {
	w := NewLatencyWindow()
	for i := 0; i < 600; i++ {
		w.Record(time.Duration(i) * time.Millisecond)
	}

	snap := w.Snapshot()
	if snap.Count != 512 {
		t.Errorf("Count = %d, want ring size", snap.Count)
	}
	// Oldest samples were overwritten.
	if snap.Min < 88*time.Millisecond {
		t.Errorf("Min = %v, want >= 88ms after wrap", snap.Min)
	}
}

func TestLatencyWindowEmpty(t *testing.T) {
	if snap := NewLatencyWindow().Snapshot(); snap.Count != 0 {
		t.Errorf("Count = %d, want 0", snap.Count)
	}
}
