package transport

import (
	"testing"
	"time"
)

func TestLatencyWindowPercentiles(t *testing.T) {
	w := newLatencyWindow(10)
	for i := 1; i <= 10; i++ {
		w.record(time.Duration(i) * time.Microsecond)
	}
	p50, p95, p99 := w.Percentiles()
	if p50 != 5*time.Microsecond {
		t.Fatalf("expected p50=5us, got %v", p50)
	}
	if p95 <= p50 || p99 < p95 {
		t.Fatalf("expected p50 <= p95 <= p99, got %v %v %v", p50, p95, p99)
	}
}

func TestMetricsSnapshotCounters(t *testing.T) {
	m := NewMetrics("tcp", "test-endpoint-snapshot")
	m.recordSend(64, 10*time.Microsecond)
	m.recordReceive(32)
	m.recordError(ErrorTimeout)

	snap := m.Snapshot()
	if snap.MessagesSent != 1 || snap.BytesSent != 64 {
		t.Fatalf("unexpected send counters: %+v", snap)
	}
	if snap.MessagesReceived != 1 || snap.BytesReceived != 32 {
		t.Fatalf("unexpected receive counters: %+v", snap)
	}
	if snap.Errors[ErrorTimeout] != 1 {
		t.Fatalf("expected 1 timeout error, got %+v", snap.Errors)
	}
}
