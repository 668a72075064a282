package recovery

import (
	"testing"
	"time"

	"github.com/torqfin/messaging-core/tlv"
	"github.com/torqfin/messaging-core/types"
)

func TestSequencerMonotonic(t *testing.T) {
	s := NewSequencer()
	var prev uint64
	for i := 0; i < 100; i++ {
		next := s.Next(types.SourceBinanceCollector, types.DomainMarketData)
		if next <= prev {
			t.Fatalf("expected strictly increasing sequence, got %d after %d", next, prev)
		}
		prev = next
	}
}

func TestSequencerIndependentPerKey(t *testing.T) {
	s := NewSequencer()
	s.Next(types.SourceBinanceCollector, types.DomainMarketData)
	s.Next(types.SourceBinanceCollector, types.DomainMarketData)
	first := s.Next(types.SourceKrakenCollector, types.DomainMarketData)
	if first != 1 {
		t.Fatalf("expected independent counters per (source,domain), got %d", first)
	}
}

// S3 — sequence gap recovery (spec.md §8.2).
func TestGapDetectorS3(t *testing.T) {
	g := NewGapDetector(nil)
	src, dom := types.SourceBinanceCollector, types.DomainMarketData

	var lastReq *tlv.RecoveryRequest
	for _, seq := range []uint64{1, 2, 3, 5, 6, 9, 10} {
		req, accept := g.Observe(src, dom, seq)
		if !accept {
			t.Fatalf("expected seq %d to be accepted", seq)
		}
		if req != nil {
			lastReq = req
		}
	}
	if lastReq == nil {
		t.Fatalf("expected at least one recovery request")
	}
	if lastReq.FromSequence != 4 {
		t.Fatalf("expected the emitted request to start at 4, got %d", lastReq.FromSequence)
	}
	if lastReq.ToSequence != 4 {
		t.Fatalf("expected the only emitted request to end at 4, got %d", lastReq.ToSequence)
	}
	if p := g.pending[SourceDomainKey{src, dom}]; p == nil || p.from != 4 || p.to != 8 {
		t.Fatalf("expected the outstanding request to fold gaps 4,7,8 into [4,8], got %+v", p)
	}
}

func TestGapDetectorDuplicateDropped(t *testing.T) {
	g := NewGapDetector(nil)
	src, dom := types.SourceKrakenCollector, types.DomainMarketData
	g.Observe(src, dom, 1)
	g.Observe(src, dom, 2)
	if _, accept := g.Observe(src, dom, 2); accept {
		t.Fatalf("expected duplicate sequence to be rejected")
	}
	if _, accept := g.Observe(src, dom, 1); accept {
		t.Fatalf("expected stale sequence to be rejected")
	}
}

func TestGapDetectorLargeGapRequestsSnapshot(t *testing.T) {
	g := NewGapDetector(nil)
	src, dom := types.SourceCoinbaseCollector, types.DomainMarketData
	g.Observe(src, dom, 1)
	req, _ := g.Observe(src, dom, GapSmallThreshold+10)
	if req == nil || req.Kind != tlv.RecoverySnapshot {
		t.Fatalf("expected a snapshot request for a large gap, got %+v", req)
	}
}

func TestGapDetectorTimeoutReissuesOnce(t *testing.T) {
	now := time.Unix(1000, 0)
	g := NewGapDetector(func() time.Time { return now })
	src, dom := types.SourceBinanceCollector, types.DomainMarketData
	g.Observe(src, dom, 1)
	g.Observe(src, dom, 3)

	now = now.Add(RequestTimeout + time.Second)
	first := g.CheckTimeouts()
	if len(first) != 1 {
		t.Fatalf("expected one re-issued request, got %d", len(first))
	}

	now = now.Add(RequestTimeout + time.Second)
	second := g.CheckTimeouts()
	if len(second) != 0 {
		t.Fatalf("expected no further re-issues after the first, got %d", len(second))
	}
}

func TestRetentionRetransmit(t *testing.T) {
	ret := NewRetention(10)
	src, dom := types.SourceBinanceCollector, types.DomainMarketData
	for seq := uint64(1); seq <= 5; seq++ {
		ret.Retain(src, dom, seq, []byte{byte(seq)})
	}
	msgs := ret.Retransmit(src, dom, 2, 4)
	if len(msgs) != 3 {
		t.Fatalf("expected 3 retained messages, got %d", len(msgs))
	}
}

func TestRetentionEvictsOldestBeyondCapacity(t *testing.T) {
	ret := NewRetention(3)
	src, dom := types.SourceBinanceCollector, types.DomainMarketData
	for seq := uint64(1); seq <= 5; seq++ {
		ret.Retain(src, dom, seq, []byte{byte(seq)})
	}
	if _, ok := ret.Get(src, dom, 1); ok {
		t.Fatalf("expected sequence 1 to have been evicted")
	}
	if _, ok := ret.Get(src, dom, 5); !ok {
		t.Fatalf("expected sequence 5 to still be retained")
	}
}

func TestRespondDowngradesToSnapshotWhenGapExceedsRetention(t *testing.T) {
	ret := NewRetention(10)
	src, dom := types.SourceBinanceCollector, types.DomainMarketData
	for seq := uint64(1); seq <= 5; seq++ {
		ret.Retain(src, dom, seq, []byte{byte(seq)})
	}
	req := tlv.RecoveryRequest{
		Source:       uint8(src),
		Domain:       uint8(dom),
		Kind:         tlv.RecoveryRetransmit,
		FromSequence: 1,
		ToSequence:   20,
	}
	resp := Respond(ret, req, 5, func(types.SourceType, types.RelayDomain) []byte { return []byte("state") })
	if resp.Kind != tlv.RecoverySnapshot {
		t.Fatalf("expected downgrade to snapshot, got %v", resp.Kind)
	}
	if resp.Snapshot == nil || string(resp.Snapshot.State) != "state" {
		t.Fatalf("unexpected snapshot: %+v", resp.Snapshot)
	}
}

func TestRespondRetransmitWithinCapacity(t *testing.T) {
	ret := NewRetention(10)
	src, dom := types.SourceBinanceCollector, types.DomainMarketData
	for seq := uint64(1); seq <= 5; seq++ {
		ret.Retain(src, dom, seq, []byte{byte(seq)})
	}
	req := tlv.RecoveryRequest{
		Source:       uint8(src),
		Domain:       uint8(dom),
		Kind:         tlv.RecoveryRetransmit,
		FromSequence: 2,
		ToSequence:   4,
	}
	resp := Respond(ret, req, 5, nil)
	if resp.Kind != tlv.RecoveryRetransmit || len(resp.Messages) != 3 {
		t.Fatalf("unexpected response: %+v", resp)
	}
}

func TestProducerRetainAndRespond(t *testing.T) {
	p := NewProducer(10, nil)
	src, dom := types.SourceBinanceCollector, types.DomainMarketData
	for seq := uint64(1); seq <= 5; seq++ {
		p.Retain(src, dom, p.Next(src, dom), []byte{byte(seq)})
	}
	resp := p.Respond(tlv.RecoveryRequest{
		Source: uint8(src), Domain: uint8(dom),
		Kind: tlv.RecoveryRetransmit, FromSequence: 2, ToSequence: 4,
	}, p.CurrentSequence(src, dom))
	if resp.Kind != tlv.RecoveryRetransmit || len(resp.Messages) != 3 {
		t.Fatalf("unexpected response: %+v", resp)
	}
}

func TestConsumerObserveLogsOnGap(t *testing.T) {
	c := NewConsumer(nil, nil)
	src, dom := types.SourceKrakenCollector, types.DomainMarketData
	c.Observe(src, dom, 1)
	req, accept := c.Observe(src, dom, 3)
	if !accept || req == nil {
		t.Fatalf("expected a recovery request for the gap at seq 2")
	}
	c.Resolve(src, dom)
	if len(c.Gaps.pending) != 0 {
		t.Fatalf("expected Resolve to clear the outstanding request")
	}
}

func TestIsStaleHorizon(t *testing.T) {
	if IsStale(types.DomainSignal, 1000, 1000+uint64(DefaultSignalHorizon)-1, DefaultSignalHorizon) {
		t.Fatalf("expected message within horizon to not be stale")
	}
	if !IsStale(types.DomainSignal, 1000, 1000+uint64(DefaultSignalHorizon)+1, DefaultSignalHorizon) {
		t.Fatalf("expected message beyond horizon to be stale")
	}
}
