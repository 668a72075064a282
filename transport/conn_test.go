package transport

import (
	"context"
	"testing"
	"time"
)

func startEchoListener(t *testing.T, kind Kind) (*Listener, chan *Conn) {
	t.Helper()
	ln, err := Listen(kind, "127.0.0.1:0", Options{})
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	accepted := make(chan *Conn, 4)
	go func() {
		for {
			c, err := ln.Accept()
			if err != nil {
				return
			}
			accepted <- c
		}
	}()
	return ln, accepted
}

func TestTCPSendReceiveRoundTrip(t *testing.T) {
	ln, accepted := startEchoListener(t, KindTCP)
	defer ln.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	client, err := Dial(ctx, KindTCP, ln.Endpoint(), Options{})
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer client.Close()

	if err := client.Send([]byte("hello")); err != nil {
		t.Fatalf("send: %v", err)
	}

	server := <-accepted
	defer server.Close()
	got, err := server.Receive()
	if err != nil {
		t.Fatalf("receive: %v", err)
	}
	if string(got) != "hello" {
		t.Fatalf("expected %q, got %q", "hello", got)
	}
}

func TestSendRejectsOversizedMessage(t *testing.T) {
	ln, accepted := startEchoListener(t, KindTCP)
	defer ln.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	client, err := Dial(ctx, KindTCP, ln.Endpoint(), Options{MaxMessageSize: 8})
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer client.Close()
	defer func() { <-accepted }()

	if err := client.Send(make([]byte, 9)); err != ErrMessageTooLarge {
		t.Fatalf("expected ErrMessageTooLarge, got %v", err)
	}
}

func TestIsHealthyReflectsStaleness(t *testing.T) {
	ln, accepted := startEchoListener(t, KindTCP)
	defer ln.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	client, err := Dial(ctx, KindTCP, ln.Endpoint(), Options{StalenessWindow: 20 * time.Millisecond})
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer client.Close()
	defer func() { (<-accepted).Close() }()

	if !client.IsHealthy() {
		t.Fatalf("expected freshly dialed connection to be healthy")
	}
	time.Sleep(40 * time.Millisecond)
	if client.IsHealthy() {
		t.Fatalf("expected connection to be stale after exceeding staleness window")
	}
}

func TestCloseFailsSubsequentOperations(t *testing.T) {
	ln, accepted := startEchoListener(t, KindTCP)
	defer ln.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	client, err := Dial(ctx, KindTCP, ln.Endpoint(), Options{})
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer func() { (<-accepted).Close() }()

	if err := client.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := client.Send([]byte("x")); err != ErrClosed {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
}

func TestListenRejectsUDP(t *testing.T) {
	// KindUDP has no shared Listener abstraction: each UDP peer is dialed
	// as its own Conn (see Listen's doc comment).
	if _, err := Listen(KindUDP, "127.0.0.1:0", Options{}); err != ErrProtocol {
		t.Fatalf("expected ErrProtocol, got %v", err)
	}
}
