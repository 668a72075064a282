package transport

import (
	"sort"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// ErrorCategory labels the counters in §4.2's "errors by category" metric.
type ErrorCategory string

const (
	ErrorTimeout      ErrorCategory = "timeout"
	ErrorNetwork      ErrorCategory = "network"
	ErrorProtocol     ErrorCategory = "protocol"
	ErrorBackpressure ErrorCategory = "backpressure"
)

// globalMetrics are the process-wide prometheus collectors every
// transport.Conn registers against; a single histogram/counter family
// labeled by kind and endpoint is cheaper than one collector per
// connection. They are registered with the default prometheus registry;
// the relay's admin HTTP router does not serve them.
var globalMetrics = struct {
	once          sync.Once
	bytesSent     *prometheus.CounterVec
	bytesRecv     *prometheus.CounterVec
	messagesSent  *prometheus.CounterVec
	messagesRecv  *prometheus.CounterVec
	errors        *prometheus.CounterVec
	sendLatencyUs *prometheus.HistogramVec
}{}

func initMetrics() {
	globalMetrics.once.Do(func() {
		globalMetrics.bytesSent = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "torq_transport_bytes_sent_total",
			Help: "Total bytes sent per transport kind and endpoint.",
		}, []string{"kind", "endpoint"})
		globalMetrics.bytesRecv = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "torq_transport_bytes_received_total",
			Help: "Total bytes received per transport kind and endpoint.",
		}, []string{"kind", "endpoint"})
		globalMetrics.messagesSent = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "torq_transport_messages_sent_total",
			Help: "Total messages sent per transport kind and endpoint.",
		}, []string{"kind", "endpoint"})
		globalMetrics.messagesRecv = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "torq_transport_messages_received_total",
			Help: "Total messages received per transport kind and endpoint.",
		}, []string{"kind", "endpoint"})
		globalMetrics.errors = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "torq_transport_errors_total",
			Help: "Total transport errors by category.",
		}, []string{"kind", "endpoint", "category"})
		globalMetrics.sendLatencyUs = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "torq_transport_send_latency_microseconds",
			Help:    "send() latency in microseconds.",
			Buckets: []float64{5, 10, 20, 35, 50, 100, 250, 500, 1000, 5000},
		}, []string{"kind", "endpoint"})
		prometheus.MustRegister(
			globalMetrics.bytesSent, globalMetrics.bytesRecv,
			globalMetrics.messagesSent, globalMetrics.messagesRecv,
			globalMetrics.errors, globalMetrics.sendLatencyUs,
		)
	})
}

// latencyWindow is a fixed-size ring buffer of recent send latencies, used
// to extract P50/P95/P99 without the unbounded memory of keeping every
// sample (spec.md §4.2: "latency ring buffer (>=100 samples)").
type latencyWindow struct {
	mu      sync.Mutex
	samples []time.Duration
	next    int
	filled  bool
}

func newLatencyWindow(capacity int) *latencyWindow {
	return &latencyWindow{samples: make([]time.Duration, capacity)}
}

func (w *latencyWindow) record(d time.Duration) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.samples[w.next] = d
	w.next = (w.next + 1) % len(w.samples)
	if w.next == 0 {
		w.filled = true
	}
}

// Percentiles returns the P50/P95/P99 of the samples currently retained.
func (w *latencyWindow) Percentiles() (p50, p95, p99 time.Duration) {
	w.mu.Lock()
	defer w.mu.Unlock()
	n := w.next
	if w.filled {
		n = len(w.samples)
	}
	if n == 0 {
		return 0, 0, 0
	}
	sorted := make([]time.Duration, n)
	copy(sorted, w.samples[:n])
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	pick := func(pct float64) time.Duration {
		idx := int(pct * float64(n-1))
		return sorted[idx]
	}
	return pick(0.50), pick(0.95), pick(0.99)
}

// Metrics aggregates the counters and latency window for a single
// transport connection (spec.md §4.2).
type Metrics struct {
	kind, endpoint string
	latency        *latencyWindow

	mu               sync.Mutex
	messagesSent     uint64
	messagesReceived uint64
	bytesSent        uint64
	bytesReceived    uint64
	errorCounts      map[ErrorCategory]uint64
}

// NewMetrics constructs a Metrics instance registered against the process
// prometheus collectors, labeled by kind (e.g. "unix", "tcp", "udp") and
// endpoint (socket path or host:port).
func NewMetrics(kind, endpoint string) *Metrics {
	initMetrics()
	return &Metrics{
		kind:        kind,
		endpoint:    endpoint,
		latency:     newLatencyWindow(256),
		errorCounts: make(map[ErrorCategory]uint64),
	}
}

func (m *Metrics) recordSend(n int, d time.Duration) {
	m.mu.Lock()
	m.messagesSent++
	m.bytesSent += uint64(n)
	m.mu.Unlock()
	m.latency.record(d)
	globalMetrics.messagesSent.WithLabelValues(m.kind, m.endpoint).Inc()
	globalMetrics.bytesSent.WithLabelValues(m.kind, m.endpoint).Add(float64(n))
	globalMetrics.sendLatencyUs.WithLabelValues(m.kind, m.endpoint).Observe(float64(d.Microseconds()))
}

func (m *Metrics) recordReceive(n int) {
	m.mu.Lock()
	m.messagesReceived++
	m.bytesReceived += uint64(n)
	m.mu.Unlock()
	globalMetrics.messagesRecv.WithLabelValues(m.kind, m.endpoint).Inc()
	globalMetrics.bytesRecv.WithLabelValues(m.kind, m.endpoint).Add(float64(n))
}

func (m *Metrics) recordError(cat ErrorCategory) {
	m.mu.Lock()
	m.errorCounts[cat]++
	m.mu.Unlock()
	globalMetrics.errors.WithLabelValues(m.kind, m.endpoint, string(cat)).Inc()
}

// Snapshot is a point-in-time copy of a Metrics instance's counters, safe
// to hand to callers (e.g. the admin HTTP surface) without holding a lock.
type Snapshot struct {
	MessagesSent, MessagesReceived uint64
	BytesSent, BytesReceived       uint64
	Errors                         map[ErrorCategory]uint64
	P50, P95, P99                  time.Duration
}

func (m *Metrics) Snapshot() Snapshot {
	m.mu.Lock()
	errs := make(map[ErrorCategory]uint64, len(m.errorCounts))
	for k, v := range m.errorCounts {
		errs[k] = v
	}
	s := Snapshot{
		MessagesSent:     m.messagesSent,
		MessagesReceived: m.messagesReceived,
		BytesSent:        m.bytesSent,
		BytesReceived:    m.bytesReceived,
		Errors:           errs,
	}
	m.mu.Unlock()
	s.P50, s.P95, s.P99 = m.latency.Percentiles()
	return s
}
