package relay

import (
	"testing"
	"time"

	"github.com/torqfin/messaging-core/codec"
	"github.com/torqfin/messaging-core/recovery"
	"github.com/torqfin/messaging-core/tlv"
	"github.com/torqfin/messaging-core/types"
)

func newTestConnection(id ConsumerID) *Connection {
	return NewConnection(id, nil, 16, 12, 4, time.Second)
}

func seqPtr(v uint64) *uint64 { return &v }

// S4 — fan-out isolation (spec.md §8.2).
func TestFanOutIsolation(t *testing.T) {
	registry := NewRegistry([]string{"md_polygon", "md_kraken"}, false)
	strategy := BySourceTopic{Table: map[types.SourceType]string{
		types.SourcePolygonCollector: "md_polygon",
		types.SourceKrakenCollector:  "md_kraken",
	}}
	r := New(types.DomainMarketData, registry, strategy, nil)

	producer := newTestConnection(1)
	c1 := newTestConnection(2)
	c2 := newTestConnection(3)
	c3 := newTestConnection(4)
	for _, c := range []*Connection{producer, c1, c2, c3} {
		r.connections[c.ID] = c
	}
	registry.Subscribe(c1.ID, "md_polygon")
	registry.Subscribe(c2.ID, "md_kraken")
	registry.Subscribe(c3.ID, "md_polygon")
	registry.Subscribe(c3.ID, "md_kraken")

	buf, err := codec.Build(codec.BuildInput{
		Domain:   types.DomainMarketData,
		Source:   types.SourcePolygonCollector,
		Sequence: seqPtr(1),
	}, nil, nil)
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	delivered := r.Ingest(producer, buf)
	if delivered != 2 {
		t.Fatalf("expected 2 deliveries, got %d", delivered)
	}
	if len(c1.outbound) != 1 {
		t.Fatalf("expected c1 to receive exactly one copy, got %d", len(c1.outbound))
	}
	if len(c3.outbound) != 1 {
		t.Fatalf("expected c3 to receive exactly one copy, got %d", len(c3.outbound))
	}
	if len(c2.outbound) != 0 {
		t.Fatalf("expected c2 to receive nothing, got %d", len(c2.outbound))
	}
	if len(producer.outbound) != 0 {
		t.Fatalf("expected producer (sender) to receive nothing, got %d", len(producer.outbound))
	}
}

func TestIngestDropsInvalidChecksumUnderEnforcingPolicy(t *testing.T) {
	registry := NewRegistry([]string{"sig"}, false)
	r := New(types.DomainSignal, registry, FixedTopic{Topic: "sig"}, nil)

	sender := newTestConnection(1)
	sub := newTestConnection(2)
	r.connections[sender.ID] = sender
	r.connections[sub.ID] = sub
	registry.Subscribe(sub.ID, "sig")

	buf, err := codec.Build(codec.BuildInput{
		Domain:   types.DomainSignal,
		Source:   types.SourceArbitrageStrategy,
		Sequence: seqPtr(1),
	}, nil, nil)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	buf[20] ^= 0xFF // tamper the timestamp: a field only the checksum covers

	delivered := r.Ingest(sender, buf)
	if delivered != 0 {
		t.Fatalf("expected tampered message to be dropped, got %d deliveries", delivered)
	}
	if r.DropCounts()[DroppedValidation] != 1 {
		t.Fatalf("expected one validation drop recorded")
	}
}

// S6 — backpressure (spec.md §8.2): a full queue under BackpressureDisconnect
// policy causes the relay to disconnect the slow consumer.
func TestBackpressureDisconnectsSlowConsumer(t *testing.T) {
	registry := NewRegistry([]string{"sig"}, false)
	r := New(types.DomainSignal, registry, FixedTopic{Topic: "sig"}, nil)
	r.QueueCapacity = 2

	sender := newTestConnection(1)
	slow := NewConnection(2, nil, 2, 2, 0, time.Second)
	r.connections[sender.ID] = sender
	r.connections[slow.ID] = slow
	registry.Subscribe(slow.ID, "sig")

	buf, err := codec.Build(codec.BuildInput{
		Domain:   types.DomainSignal,
		Source:   types.SourceArbitrageStrategy,
		Sequence: seqPtr(1),
	}, nil, nil)
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	// Fill the slow consumer's queue to capacity without draining it.
	r.Ingest(sender, buf)
	r.Ingest(sender, buf)
	// A third message finds the queue full; BackpressureDisconnect policy
	// (the Signal-domain default) drops the slow consumer.
	r.Ingest(sender, buf)

	if slow.State() != StateDisconnected {
		t.Fatalf("expected slow consumer to be disconnected, got state %v", slow.State())
	}
	if r.DropCounts()[DroppedBackpressure] != 1 {
		t.Fatalf("expected one backpressure drop recorded")
	}
}

func TestByInstrumentVenueTopicExtraction(t *testing.T) {
	strat := ByInstrumentVenueTopic{Table: map[types.VenueId]string{
		types.VenueEthereum: "md_ethereum",
	}}
	id := types.NewTokenID(types.VenueEthereum, [20]byte{1})
	var payload [8]byte
	key := id.ToCacheKey()
	for i := 0; i < 8; i++ {
		payload[i] = byte(key >> (8 * i))
	}
	msg := codec.Message{TLVs: []codec.TLVEntry{{Payload: payload[:]}}}
	topic, ok := strat.Extract(msg, nil)
	if !ok || topic != "md_ethereum" {
		t.Fatalf("expected md_ethereum, got (%q, %v)", topic, ok)
	}
}

func TestSubscriptionControlTLVUpdatesRegistryAndSkipsFanOut(t *testing.T) {
	registry := NewRegistry(nil, true)
	r := New(types.DomainSignal, registry, FixedTopic{Topic: "sig"}, nil)

	sender := newTestConnection(1)
	other := newTestConnection(2)
	r.connections[sender.ID] = sender
	r.connections[other.ID] = other
	registry.Subscribe(other.ID, "sig")

	buf, err := codec.Build(codec.BuildInput{
		Domain:   types.DomainSignal,
		Source:   types.SourceArbitrageStrategy,
		Sequence: seqPtr(1),
		TLVs: []codec.TLVInput{
			{Type: tlv.TypeSubscription, Payload: tlv.Subscription{Action: tlv.SubscriptionAdd, Topic: "md_polygon"}.Encode()},
		},
	}, nil, nil)
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	delivered := r.Ingest(sender, buf)
	if delivered != 0 {
		t.Fatalf("expected control message to skip fan-out, got %d deliveries", delivered)
	}
	if subs := registry.Subscribers("md_polygon"); len(subs) != 1 || subs[0] != sender.ID {
		t.Fatalf("expected sender subscribed to md_polygon, got %v", subs)
	}
	if other.State() != StateAccepted {
		t.Fatalf("unrelated connection should be untouched, got %v", other.State())
	}
}

func TestRecoveryRequestAnsweredFromLocalRetention(t *testing.T) {
	registry := NewRegistry([]string{"md"}, false)
	r := New(types.DomainMarketData, registry, FixedTopic{Topic: "md"}, nil)
	r.Recovery = recovery.NewProducer(100, nil)

	producer := newTestConnection(1)
	consumer := newTestConnection(2)
	r.connections[producer.ID] = producer
	r.connections[consumer.ID] = consumer

	for seq := uint64(1); seq <= 3; seq++ {
		buf, err := codec.Build(codec.BuildInput{
			Domain:   types.DomainMarketData,
			Source:   types.SourceBinanceCollector,
			Sequence: seqPtr(seq),
		}, nil, nil)
		if err != nil {
			t.Fatalf("build: %v", err)
		}
		r.Ingest(producer, buf)
	}

	req := tlv.RecoveryRequest{
		Source:       uint8(types.SourceBinanceCollector),
		Domain:       uint8(types.DomainMarketData),
		Kind:         tlv.RecoveryRetransmit,
		FromSequence: 1,
		ToSequence:   2,
	}
	reqBuf, err := codec.Build(codec.BuildInput{
		Domain:   types.DomainMarketData,
		Source:   types.SourceDashboardConsumer,
		Sequence: seqPtr(1),
		TLVs:     []codec.TLVInput{{Type: tlv.TypeRecoveryRequest, Payload: req.Encode()}},
	}, nil, nil)
	if err != nil {
		t.Fatalf("build recovery request: %v", err)
	}

	delivered := r.Ingest(consumer, reqBuf)
	if delivered != 0 {
		t.Fatalf("expected recovery request to skip ordinary fan-out, got %d deliveries", delivered)
	}
	if len(consumer.outbound) != 2 {
		t.Fatalf("expected 2 retransmitted messages enqueued to the requester, got %d", len(consumer.outbound))
	}
	if len(producer.outbound) != 0 {
		t.Fatalf("expected the producer connection to receive nothing, got %d", len(producer.outbound))
	}
}

func TestRecoveryRequestForwardedToOwningProducerWhenUnretained(t *testing.T) {
	registry := NewRegistry([]string{"md"}, false)
	r := New(types.DomainMarketData, registry, FixedTopic{Topic: "md"}, nil)
	r.Recovery = recovery.NewProducer(100, nil)

	producer := newTestConnection(1)
	consumer := newTestConnection(2)
	r.connections[producer.ID] = producer
	r.connections[consumer.ID] = consumer

	buf, err := codec.Build(codec.BuildInput{
		Domain:   types.DomainMarketData,
		Source:   types.SourceBinanceCollector,
		Sequence: seqPtr(100),
	}, nil, nil)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	r.Ingest(producer, buf)

	req := tlv.RecoveryRequest{
		Source:       uint8(types.SourceBinanceCollector),
		Domain:       uint8(types.DomainMarketData),
		Kind:         tlv.RecoveryRetransmit,
		FromSequence: 1,
		ToSequence:   50, // predates anything retained
	}
	reqBuf, err := codec.Build(codec.BuildInput{
		Domain:   types.DomainMarketData,
		Source:   types.SourceDashboardConsumer,
		Sequence: seqPtr(1),
		TLVs:     []codec.TLVInput{{Type: tlv.TypeRecoveryRequest, Payload: req.Encode()}},
	}, nil, nil)
	if err != nil {
		t.Fatalf("build recovery request: %v", err)
	}

	r.Ingest(consumer, reqBuf)
	if len(producer.outbound) != 1 {
		t.Fatalf("expected request forwarded to the owning producer connection, got %d messages", len(producer.outbound))
	}
	if len(consumer.outbound) != 0 {
		t.Fatalf("expected the requester to receive nothing until the producer answers, got %d", len(consumer.outbound))
	}
	if pending := r.PendingRecovery(); len(pending) != 1 {
		t.Fatalf("expected one pending recovery entry, got %d", len(pending))
	}
}
