package transport

import (
	"bufio"
	"context"
	"encoding/binary"
	"io"
	"net"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// Kind identifies one of the three transport variants (spec.md §4.2).
type Kind string

const (
	KindUnix Kind = "unix"
	KindTCP  Kind = "tcp"
	KindUDP  Kind = "udp"
)

// LengthPrefixSize is the size of the transport-internal frame length
// prefix: a big-endian u32 ahead of every payload. This framing is
// distinct from, and wraps, the Protocol V2 message the payload carries
// (spec.md §4.2).
const LengthPrefixSize = 4

// DefaultStalenessWindow is how long a connection may sit idle before
// IsHealthy reports false (spec.md §4.2).
const DefaultStalenessWindow = 60 * time.Second

type connState int32

const (
	stateOpen connState = iota
	stateFailed
	stateClosed
)

// Conn is one transport connection: a framed reader/writer over a single
// net.Conn, with reusable buffers, metrics, and liveness tracking. One Conn
// equals one connection, matching spec.md §4.2 ("one transport instance
// equals one connection").
type Conn struct {
	kind           Kind
	endpoint       string
	netConn        net.Conn
	datagram       bool // true for UDP: one Read/Write call is one full message
	maxMessageSize int
	staleness      time.Duration
	metrics        *Metrics

	writeMu  sync.Mutex
	writeBuf []byte

	readMu sync.Mutex
	reader *bufio.Reader
	lenBuf [LengthPrefixSize]byte

	lastActivityUnixNano int64
	state                atomic.Int32
	connectedAt          time.Time
}

// Options configures a Conn beyond its kind/endpoint/net.Conn.
type Options struct {
	MaxMessageSize  int           // 0 -> DefaultMaxMessageSize (see codec package)
	StalenessWindow time.Duration // 0 -> DefaultStalenessWindow
}

// WrapConn adapts an already-established net.Conn (e.g. one obtained from
// net.Pipe in tests, or a custom listener) into a framed transport.Conn.
// Dial and Listener.Accept are the normal production entry points; this is
// the escape hatch for callers that already hold a net.Conn.
func WrapConn(kind Kind, endpoint string, nc net.Conn, datagram bool, opt Options) *Conn {
	return newConn(kind, endpoint, nc, datagram, opt)
}

func newConn(kind Kind, endpoint string, nc net.Conn, datagram bool, opt Options) *Conn {
	maxSize := opt.MaxMessageSize
	if maxSize == 0 {
		maxSize = 64 * 1024
	}
	staleness := opt.StalenessWindow
	if staleness == 0 {
		staleness = DefaultStalenessWindow
	}
	c := &Conn{
		kind:           kind,
		endpoint:       endpoint,
		netConn:        nc,
		datagram:       datagram,
		maxMessageSize: maxSize,
		staleness:      staleness,
		metrics:        NewMetrics(string(kind), endpoint),
		writeBuf:       make([]byte, LengthPrefixSize, LengthPrefixSize+4096),
		reader:         bufio.NewReaderSize(nc, 64*1024),
		connectedAt:    time.Now(),
	}
	c.touch()
	return c
}

func (c *Conn) touch() {
	atomic.StoreInt64(&c.lastActivityUnixNano, time.Now().UnixNano())
}

// Send writes one length-prefixed frame of payload in a single buffered
// write, reusing the connection's write buffer to avoid steady-state
// allocation (spec.md §4.2 hot-path contract).
func (c *Conn) Send(payload []byte) error {
	if connState(c.state.Load()) != stateOpen {
		return ErrClosed
	}
	if len(payload) > c.maxMessageSize {
		c.metrics.recordError(ErrorProtocol)
		return ErrMessageTooLarge
	}

	start := time.Now()
	c.writeMu.Lock()
	buf := c.writeBuf[:0]
	var lenField [LengthPrefixSize]byte
	binary.BigEndian.PutUint32(lenField[:], uint32(len(payload)))
	buf = append(buf, lenField[:]...)
	buf = append(buf, payload...)
	_, err := c.netConn.Write(buf)
	c.writeBuf = buf
	c.writeMu.Unlock()

	if err != nil {
		c.fail(err)
		return err
	}
	c.touch()
	c.metrics.recordSend(len(payload), time.Since(start))
	return nil
}

// Receive reads exactly one framed message, blocking until it arrives.
// The returned slice is freshly allocated for each message and owned by
// the caller; later calls to Receive do not overwrite it.
func (c *Conn) Receive() ([]byte, error) {
	if connState(c.state.Load()) != stateOpen {
		return nil, ErrClosed
	}
	c.readMu.Lock()
	defer c.readMu.Unlock()

	if c.datagram {
		return c.receiveDatagram()
	}

	if _, err := io.ReadFull(c.reader, c.lenBuf[:]); err != nil {
		c.fail(err)
		return nil, err
	}
	n := binary.BigEndian.Uint32(c.lenBuf[:])
	if int(n) > c.maxMessageSize {
		c.metrics.recordError(ErrorProtocol)
		return nil, ErrProtocol
	}
	payload := make([]byte, n)
	if _, err := io.ReadFull(c.reader, payload); err != nil {
		c.fail(err)
		return nil, err
	}
	c.touch()
	c.metrics.recordReceive(len(payload))
	return payload, nil
}

// receiveDatagram reads exactly one UDP datagram: a whole length-prefixed
// frame arrives (or fails to arrive) in a single Read, since UDP preserves
// message boundaries and there is no cross-datagram reassembly (spec.md
// §4.2). The declared length must exactly match what the datagram carried;
// a mismatch (truncated/coalesced datagram) is a protocol error, not a
// partial read to retry.
func (c *Conn) receiveDatagram() ([]byte, error) {
	buf := make([]byte, c.maxMessageSize+LengthPrefixSize)
	n, err := c.netConn.Read(buf)
	if err != nil {
		c.fail(err)
		return nil, err
	}
	if n < LengthPrefixSize {
		c.metrics.recordError(ErrorProtocol)
		return nil, ErrProtocol
	}
	declared := binary.BigEndian.Uint32(buf[:LengthPrefixSize])
	payload := buf[LengthPrefixSize:n]
	if int(declared) != len(payload) {
		c.metrics.recordError(ErrorProtocol)
		return nil, ErrProtocol
	}
	c.touch()
	c.metrics.recordReceive(len(payload))
	return payload, nil
}

// TryReceive is a non-blocking variant for cooperative single-threaded
// consumers: it applies a near-zero deadline and reports (nil, false, nil)
// if nothing was available rather than blocking (spec.md §4.2).
func (c *Conn) TryReceive() ([]byte, bool, error) {
	if dl, ok := c.netConn.(interface{ SetReadDeadline(time.Time) error }); ok {
		_ = dl.SetReadDeadline(time.Now().Add(time.Millisecond))
		defer dl.SetReadDeadline(time.Time{})
	}
	payload, err := c.Receive()
	if err != nil {
		if ne, ok := err.(net.Error); ok && ne.Timeout() {
			c.state.Store(int32(stateOpen))
			return nil, false, nil
		}
		return nil, false, err
	}
	return payload, true, nil
}

// IsHealthy reports whether the connection is open and has had activity
// within the configured staleness window (spec.md §4.2).
func (c *Conn) IsHealthy() bool {
	if connState(c.state.Load()) != stateOpen {
		return false
	}
	last := time.Unix(0, atomic.LoadInt64(&c.lastActivityUnixNano))
	return time.Since(last) <= c.staleness
}

// Close shuts the connection down cleanly; subsequent Send/Receive calls
// fail with ErrClosed.
func (c *Conn) Close() error {
	c.state.Store(int32(stateClosed))
	return c.netConn.Close()
}

func (c *Conn) fail(err error) {
	c.state.Store(int32(stateFailed))
	c.metrics.recordError(ErrorNetwork)
}

// Metrics returns the connection's metrics aggregator.
func (c *Conn) Metrics() *Metrics { return c.metrics }

// Endpoint returns the dialed address or listen path.
func (c *Conn) Endpoint() string { return c.endpoint }

// Kind returns the transport variant this Conn was created with.
func (c *Conn) Kind() Kind { return c.kind }

// Name returns a short human-readable identifier for this connection,
// derived from its endpoint: the base filename for a KindUnix socket path,
// or "kind://host:port" for TCP/UDP. Used in log fields and the relay's
// /debug/subscriptions output rather than a bare connection ID (spec.md
// §3, grounded on relay.rs's RelaySink naming).
func (c *Conn) Name() string {
	if c.kind == KindUnix {
		return filepath.Base(c.endpoint)
	}
	return string(c.kind) + "://" + strings.TrimPrefix(c.endpoint, "/")
}

// ConnectedAt returns when this Conn was established.
func (c *Conn) ConnectedAt() time.Time { return c.connectedAt }

// Uptime returns how long this Conn has been open.
func (c *Conn) Uptime() time.Duration { return time.Since(c.connectedAt) }

// ConnStats is a point-in-time snapshot of one Conn's identity and liveness
// (spec.md §3: connection uptime tracking). Named ConnStats rather than
// Stats since Pool already exports a Stats type for pool-level counters.
type ConnStats struct {
	Name        string
	Kind        Kind
	Endpoint    string
	ConnectedAt time.Time
	Uptime      time.Duration
	Healthy     bool
}

// Stats returns a snapshot of this Conn's identity and liveness, for log
// fields and admin/debug surfaces.
func (c *Conn) Stats() ConnStats {
	return ConnStats{
		Name:        c.Name(),
		Kind:        c.kind,
		Endpoint:    c.endpoint,
		ConnectedAt: c.connectedAt,
		Uptime:      time.Since(c.connectedAt),
		Healthy:     c.IsHealthy(),
	}
}

// Dial establishes an outbound connection of the given kind to addr.
// For KindUnix, addr is a filesystem socket path. Dial sets TCP_NODELAY on
// KindTCP connections per spec.md §4.2.
func Dial(ctx context.Context, kind Kind, addr string, opt Options) (*Conn, error) {
	var d net.Dialer
	switch kind {
	case KindUnix:
		nc, err := d.DialContext(ctx, "unix", addr)
		if err != nil {
			return nil, err
		}
		return newConn(kind, addr, nc, false, opt), nil
	case KindTCP:
		nc, err := d.DialContext(ctx, "tcp", addr)
		if err != nil {
			return nil, err
		}
		if tc, ok := nc.(*net.TCPConn); ok {
			_ = tc.SetNoDelay(true)
		}
		return newConn(kind, addr, nc, false, opt), nil
	case KindUDP:
		nc, err := d.DialContext(ctx, "udp", addr)
		if err != nil {
			return nil, err
		}
		return newConn(kind, addr, nc, true, opt), nil
	default:
		return nil, ErrProtocol
	}
}
