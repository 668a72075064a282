package relay

import "testing"

func TestSubscribeUnsubscribeNoOp(t *testing.T) {
	r := NewRegistry([]string{"md_polygon"}, false)
	if err := r.Subscribe(1, "md_polygon"); err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	if err := r.Subscribe(1, "md_polygon"); err != nil {
		t.Fatalf("expected re-subscribe to be a no-op, got error: %v", err)
	}
	if got := r.Subscribers("md_polygon"); len(got) != 1 {
		t.Fatalf("expected 1 subscriber, got %d", len(got))
	}

	r.Unsubscribe(1, "md_polygon")
	r.Unsubscribe(1, "md_polygon") // no-op, not subscribed
	if got := r.Subscribers("md_polygon"); len(got) != 0 {
		t.Fatalf("expected 0 subscribers after unsubscribe, got %d", len(got))
	}
}

func TestSubscribeUnknownTopicRejected(t *testing.T) {
	r := NewRegistry([]string{"known"}, false)
	if err := r.Subscribe(1, "unknown"); err == nil {
		t.Fatalf("expected error subscribing to unknown topic without auto_discover")
	}
}

func TestSubscribeAutoDiscover(t *testing.T) {
	r := NewRegistry(nil, true)
	if err := r.Subscribe(1, "anything"); err != nil {
		t.Fatalf("expected auto_discover to allow new topic, got %v", err)
	}
}

func TestDisconnectDropsAllSubscriptions(t *testing.T) {
	r := NewRegistry(nil, true)
	r.Subscribe(1, "a")
	r.Subscribe(1, "b")
	r.Disconnect(1)
	if len(r.Subscribers("a")) != 0 || len(r.Subscribers("b")) != 0 {
		t.Fatalf("expected disconnect to drop all subscriptions")
	}
}
