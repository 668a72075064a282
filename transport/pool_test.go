package transport

import (
	"context"
	"testing"
	"time"
)

func TestPoolAcquireReuse(t *testing.T) {
	ln, accepted := startEchoListener(t, KindTCP)
	defer ln.Close()
	defer func() {
		for len(accepted) > 0 {
			(<-accepted).Close()
		}
	}()

	pool := NewPool(2, 0, time.Second, Options{})
	defer pool.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	c1, err := pool.Acquire(ctx, KindTCP, ln.Endpoint())
	if err != nil {
		t.Fatalf("acquire1: %v", err)
	}
	<-accepted
	pool.Release(c1)
	if got := pool.Stats().Idle; got != 1 {
		t.Fatalf("expected 1 idle, got %d", got)
	}

	c2, err := pool.Acquire(ctx, KindTCP, ln.Endpoint())
	if err != nil {
		t.Fatalf("acquire2: %v", err)
	}
	if c1 != c2 {
		t.Fatalf("expected to reuse connection")
	}
	pool.Release(c2)
	if got := pool.Stats().Idle; got != 1 {
		t.Fatalf("expected 1 idle after reuse, got %d", got)
	}
}

func TestPoolReaper(t *testing.T) {
	ln, accepted := startEchoListener(t, KindTCP)
	defer ln.Close()
	defer func() {
		for len(accepted) > 0 {
			(<-accepted).Close()
		}
	}()

	idle := 60 * time.Millisecond
	pool := NewPool(2, 0, idle, Options{})
	defer pool.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	c, err := pool.Acquire(ctx, KindTCP, ln.Endpoint())
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	<-accepted
	pool.Release(c)
	if got := pool.Stats().Idle; got != 1 {
		t.Fatalf("expected 1 idle, got %d", got)
	}

	time.Sleep(3 * idle)
	if got := pool.Stats().Idle; got != 0 {
		t.Fatalf("expected reaper to close idle connections, got %d", got)
	}
}

func TestPoolTotalCapAndInUseStats(t *testing.T) {
	ln, accepted := startEchoListener(t, KindTCP)
	defer ln.Close()
	defer func() {
		for len(accepted) > 0 {
			(<-accepted).Close()
		}
	}()

	pool := NewPool(2, 1, time.Second, Options{})
	defer pool.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	c1, err := pool.Acquire(ctx, KindTCP, ln.Endpoint())
	if err != nil {
		t.Fatalf("acquire1: %v", err)
	}
	<-accepted
	if got := pool.Stats().InUse; got != 1 {
		t.Fatalf("expected 1 in-use, got %d", got)
	}

	if _, err := pool.Acquire(ctx, KindTCP, ln.Endpoint()); err != ErrPoolExhausted {
		t.Fatalf("expected ErrPoolExhausted with maxTotal=1, got %v", err)
	}

	pool.Release(c1)
	if got := pool.Stats().InUse; got != 0 {
		t.Fatalf("expected 0 in-use after release, got %d", got)
	}
	if got := pool.Stats().Capacity; got != 1 {
		t.Fatalf("expected capacity 1, got %d", got)
	}

	c2, err := pool.Acquire(ctx, KindTCP, ln.Endpoint())
	if err != nil {
		t.Fatalf("acquire2: %v", err)
	}
	pool.Release(c2)
}
