package transport

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrPoolExhausted is returned by Acquire when maxTotal connections are
// already outstanding (idle plus in-use) across all endpoints (spec.md
// §4.2: "configurable per-endpoint and total caps").
var ErrPoolExhausted = errors.New("transport: connection pool exhausted")

// idleConn pairs a pooled Conn with the time it was released, so the
// reaper can evict by pool idle duration independently of the connection's
// own IsHealthy staleness window.
type idleConn struct {
	conn       *Conn
	releasedAt time.Time
}

// Pool manages a bounded set of live Conn instances per (kind, endpoint),
// with an idle-timeout reaper closing connections that sit unused too
// long. Adapted from the teacher's ConnPool: Acquire/Release/Close/Stats
// plus a background reaper goroutine on a ticker.
type Pool struct {
	opt       Options
	mu        sync.Mutex
	conns     map[string][]idleConn
	maxIdle   int
	maxTotal  int // idle + in-use across every endpoint; 0 = unlimited (spec.md §4.2)
	inUse     int
	idleTTL   time.Duration
	closing   chan struct{}
	closeOnce sync.Once
}

// NewPool creates a connection pool. maxIdle caps idle connections kept per
// endpoint; maxTotal caps the combined idle+in-use connection count across
// every endpoint (0 = unlimited); idleTTL is how long a connection may sit
// released before the reaper closes it (spec.md §4.2: "configurable
// per-endpoint and total caps").
func NewPool(maxIdle, maxTotal int, idleTTL time.Duration, opt Options) *Pool {
	p := &Pool{
		opt:      opt,
		conns:    make(map[string][]idleConn),
		maxIdle:  maxIdle,
		maxTotal: maxTotal,
		idleTTL:  idleTTL,
		closing:  make(chan struct{}),
	}
	go p.reaper()
	return p
}

func key(kind Kind, endpoint string) string { return string(kind) + "://" + endpoint }

// totalLocked returns the current idle+in-use connection count across every
// endpoint. Callers must hold p.mu.
func (p *Pool) totalLocked() int {
	total := p.inUse
	for _, list := range p.conns {
		total += len(list)
	}
	return total
}

// Acquire returns a pooled Conn for (kind, endpoint) or dials a new one. It
// fails with ErrPoolExhausted if maxTotal connections are already
// outstanding.
func (p *Pool) Acquire(ctx context.Context, kind Kind, endpoint string) (*Conn, error) {
	k := key(kind, endpoint)
	p.mu.Lock()
	list := p.conns[k]
	n := len(list)
	if n > 0 {
		c := list[n-1].conn
		p.conns[k] = list[:n-1]
		if !c.IsHealthy() {
			p.mu.Unlock()
			_ = c.Close()
			return p.dialTracked(ctx, kind, endpoint)
		}
		p.inUse++
		p.mu.Unlock()
		return c, nil
	}
	if p.maxTotal > 0 && p.totalLocked() >= p.maxTotal {
		p.mu.Unlock()
		return nil, ErrPoolExhausted
	}
	p.mu.Unlock()
	return p.dialTracked(ctx, kind, endpoint)
}

// dialTracked dials a fresh connection, reserving and then confirming its
// in-use slot against maxTotal.
func (p *Pool) dialTracked(ctx context.Context, kind Kind, endpoint string) (*Conn, error) {
	p.mu.Lock()
	if p.maxTotal > 0 && p.totalLocked() >= p.maxTotal {
		p.mu.Unlock()
		return nil, ErrPoolExhausted
	}
	p.inUse++
	p.mu.Unlock()

	c, err := Dial(ctx, kind, endpoint, p.opt)
	if err != nil {
		p.mu.Lock()
		p.inUse--
		p.mu.Unlock()
		return nil, err
	}
	return c, nil
}

// Release returns conn to the pool for reuse, or closes it if the
// endpoint's idle slots are full or the connection is unhealthy.
func (p *Pool) Release(conn *Conn) {
	if conn == nil {
		return
	}
	p.mu.Lock()
	if p.inUse > 0 {
		p.inUse--
	}
	if !conn.IsHealthy() {
		p.mu.Unlock()
		_ = conn.Close()
		return
	}
	k := key(conn.Kind(), conn.Endpoint())
	if p.maxIdle > 0 && len(p.conns[k]) < p.maxIdle {
		p.conns[k] = append(p.conns[k], idleConn{conn: conn, releasedAt: time.Now()})
		p.mu.Unlock()
		return
	}
	p.mu.Unlock()
	_ = conn.Close()
}

// Close closes every pooled connection and stops the reaper. In-flight
// Acquire calls are unaffected; only idle connections sitting in the pool
// are closed.
func (p *Pool) Close() error {
	var firstErr error
	p.closeOnce.Do(func() {
		close(p.closing)
		p.mu.Lock()
		defer p.mu.Unlock()
		for _, list := range p.conns {
			for _, ic := range list {
				if err := ic.conn.Close(); err != nil && firstErr == nil {
					firstErr = err
				}
			}
		}
		p.conns = make(map[string][]idleConn)
	})
	return firstErr
}

// Stats reports the total number of idle and in-use pooled connections,
// the configured total capacity, and per-endpoint idle counts (spec.md
// §4.2: "pool exposes stats (in-use, idle, capacity)").
type Stats struct {
	Idle        int
	InUse       int
	Capacity    int // 0 means unlimited (no maxTotal configured)
	PerEndpoint map[string]int
}

func (p *Pool) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	s := Stats{InUse: p.inUse, Capacity: p.maxTotal, PerEndpoint: make(map[string]int, len(p.conns))}
	for k, list := range p.conns {
		s.Idle += len(list)
		s.PerEndpoint[k] = len(list)
	}
	return s
}

// reaper periodically drops connections that have sat idle in the pool
// longer than idleTTL, mirroring the teacher's ticker-driven cleanup loop.
func (p *Pool) reaper() {
	ticker := time.NewTicker(p.idleTTL / 2)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			cutoff := time.Now().Add(-p.idleTTL)
			p.mu.Lock()
			for k, list := range p.conns {
				i := 0
				for _, ic := range list {
					if ic.releasedAt.Before(cutoff) || !ic.conn.IsHealthy() {
						_ = ic.conn.Close()
						continue
					}
					list[i] = ic
					i++
				}
				p.conns[k] = list[:i]
			}
			p.mu.Unlock()
		case <-p.closing:
			return
		}
	}
}
