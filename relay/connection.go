package relay

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/torqfin/messaging-core/transport"
)

// State is a connection's position in the per-connection lifecycle state
// machine (spec.md §4.3): Accepted -> Subscribed* -> (Healthy <-> Degraded)
// -> Disconnected.
type State int32

const (
	StateAccepted State = iota
	StateSubscribed
	StateHealthy
	StateDegraded
	StateDisconnected
)

func (s State) String() string {
	switch s {
	case StateAccepted:
		return "accepted"
	case StateSubscribed:
		return "subscribed"
	case StateHealthy:
		return "healthy"
	case StateDegraded:
		return "degraded"
	case StateDisconnected:
		return "disconnected"
	default:
		return "unknown"
	}
}

// Connection bundles a transport.Conn with the relay-level state needed to
// run its reader/writer tasks and expose per-identity stats (spec.md §4.3,
// §5): a bounded outbound queue, watermark-driven degraded tracking, and
// the consumer's server-assigned identity.
type Connection struct {
	ID    ConsumerID
	Conn  *transport.Conn
	state atomic.Int32

	outbound        chan []byte
	highWatermark   int
	lowWatermark    int
	degradedSince   atomic.Int64 // unix nanos, 0 when not degraded
	degradedTimeout time.Duration

	mu              sync.Mutex
	messagesSent    uint64
	messagesDropped uint64
	lastActivity    time.Time
}

// NewConnection wraps a just-accepted transport.Conn with an outbound
// queue of the given capacity (default 1024, spec.md §5) and watermarks for
// Degraded transitions.
func NewConnection(id ConsumerID, conn *transport.Conn, queueCapacity, highWatermark, lowWatermark int, degradedTimeout time.Duration) *Connection {
	if queueCapacity <= 0 {
		queueCapacity = 1024
	}
	c := &Connection{
		ID:              id,
		Conn:            conn,
		outbound:        make(chan []byte, queueCapacity),
		highWatermark:   highWatermark,
		lowWatermark:    lowWatermark,
		degradedTimeout: degradedTimeout,
		lastActivity:    time.Now(),
	}
	c.state.Store(int32(StateAccepted))
	return c
}

// State returns the connection's current lifecycle state.
func (c *Connection) State() State { return State(c.state.Load()) }

func (c *Connection) setState(s State) { c.state.Store(int32(s)) }

// MarkSubscribed transitions Accepted -> Subscribed on first subscription,
// and Subscribed -> Healthy once the reader/writer tasks are running.
func (c *Connection) MarkSubscribed() {
	if c.State() == StateAccepted {
		c.setState(StateSubscribed)
	}
	// Relay.Accept starts the writer task before the reader loop can call
	// this, so a Subscribed connection has its tasks running.
	if c.State() == StateSubscribed {
		c.MarkHealthy()
	}
}

// MarkHealthy transitions into Healthy, clearing any degraded tracking.
func (c *Connection) MarkHealthy() {
	c.setState(StateHealthy)
	c.degradedSince.Store(0)
}

// Enqueue attempts to place msg on the outbound queue. It returns false if
// the queue is full, in which case the caller applies the domain's
// BackpressurePolicy (spec.md §4.3 step 5).
func (c *Connection) Enqueue(msg []byte) bool {
	select {
	case c.outbound <- msg:
		c.checkWatermark()
		return true
	default:
		c.mu.Lock()
		c.messagesDropped++
		c.mu.Unlock()
		return false
	}
}

// checkWatermark transitions Healthy<->Degraded based on queue depth
// relative to the configured watermarks (spec.md §4.3).
func (c *Connection) checkWatermark() {
	depth := len(c.outbound)
	switch {
	case depth >= c.highWatermark && c.State() == StateHealthy:
		c.setState(StateDegraded)
		c.degradedSince.Store(time.Now().UnixNano())
	case depth <= c.lowWatermark && c.State() == StateDegraded:
		c.MarkHealthy()
	}
}

// DegradedTimedOut reports whether the connection has been continuously
// Degraded for longer than degradedTimeout, at which point Signal/Execution
// policy disconnects it (spec.md §4.3).
func (c *Connection) DegradedTimedOut() bool {
	since := c.degradedSince.Load()
	if since == 0 {
		return false
	}
	return time.Since(time.Unix(0, since)) > c.degradedTimeout
}

// WriterLoop drains the outbound queue and writes each message to the
// underlying transport, running as the connection's dedicated writer task
// (spec.md §5: "one inbound reader task and one outbound writer task").
// It returns when the outbound channel is closed or a send fails.
func (c *Connection) WriterLoop() {
	for msg := range c.outbound {
		if err := c.Conn.Send(msg); err != nil {
			c.setState(StateDisconnected)
			return
		}
		c.mu.Lock()
		c.messagesSent++
		c.lastActivity = time.Now()
		c.mu.Unlock()
	}
}

// Disconnect closes the underlying connection and stops the writer loop.
func (c *Connection) Disconnect() {
	c.setState(StateDisconnected)
	close(c.outbound)
	if c.Conn != nil {
		_ = c.Conn.Close()
	}
}

// Stats is a point-in-time snapshot of a connection's activity counters
// (spec.md §4.3: "messages sent, messages dropped, outbound queue depth,
// last activity").
type Stats struct {
	State           State
	MessagesSent    uint64
	MessagesDropped uint64
	QueueDepth      int
	LastActivity    time.Time
}

func (c *Connection) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Stats{
		State:           c.State(),
		MessagesSent:    c.messagesSent,
		MessagesDropped: c.messagesDropped,
		QueueDepth:      len(c.outbound),
		LastActivity:    c.lastActivity,
	}
}
