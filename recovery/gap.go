package recovery

import (
	"time"

	"github.com/torqfin/messaging-core/tlv"
	"github.com/torqfin/messaging-core/types"
)

// GapSmallThreshold is the maximum gap size a consumer asks the producer to
// retransmit incrementally; larger gaps are downgraded to a snapshot
// request (spec.md §4.4).
const GapSmallThreshold = 1000

// RequestTimeout is how long a consumer waits for a recovery response
// before re-issuing the request once (spec.md §5).
const RequestTimeout = 5 * time.Second

// pendingRequest tracks an in-flight recovery request for one
// (source, domain) pair, so later gaps accumulate into the next request
// instead of firing a second one (spec.md §4.4: "no more than one
// outstanding request... at a time").
type pendingRequest struct {
	kind     tlv.RecoveryRequestKind
	from, to uint64
	issuedAt time.Time
	reissued bool
}

// GapDetector tracks per-(source, domain) last-seen sequence numbers for a
// single consumer and decides when to emit a RecoveryRequest.
type GapDetector struct {
	lastSeq map[SourceDomainKey]uint64
	pending map[SourceDomainKey]*pendingRequest
	now     func() time.Time
}

// NewGapDetector constructs an empty GapDetector. now defaults to
// time.Now; tests may override it for deterministic timeout behavior.
func NewGapDetector(now func() time.Time) *GapDetector {
	if now == nil {
		now = time.Now
	}
	return &GapDetector{
		lastSeq: make(map[SourceDomainKey]uint64),
		pending: make(map[SourceDomainKey]*pendingRequest),
		now:     now,
	}
}

// Observe processes one incoming sequence number for (source, domain) and
// returns a RecoveryRequest to emit, if any, and whether the message itself
// should be accepted as in-order (dup/stale sequences are dropped per
// spec.md §4.4's duplicate-detection rule).
func (g *GapDetector) Observe(source types.SourceType, domain types.RelayDomain, seq uint64) (req *tlv.RecoveryRequest, accept bool) {
	k := SourceDomainKey{source, domain}
	last := g.lastSeq[k]

	if seq <= last {
		// DuplicateSequence: logged and dropped by the caller, never
		// surfaced as an error (spec.md §7).
		return nil, false
	}

	if seq == last+1 {
		g.lastSeq[k] = seq
		return nil, true
	}

	from, to := last+1, seq-1
	if p, ok := g.pending[k]; ok {
		// A request is already outstanding: fold this gap into it rather
		// than issuing a second one (spec.md §4.4).
		if from < p.from {
			p.from = from
		}
		if to > p.to {
			p.to = to
		}
		if p.to-p.from+1 > GapSmallThreshold {
			p.kind = tlv.RecoverySnapshot
		}
		g.lastSeq[k] = seq
		return nil, true
	}

	kind := tlv.RecoveryRetransmit
	if to-from+1 > GapSmallThreshold {
		kind = tlv.RecoverySnapshot
	}
	g.pending[k] = &pendingRequest{kind: kind, from: from, to: to, issuedAt: g.now()}
	g.lastSeq[k] = seq
	return &tlv.RecoveryRequest{
		Source:        uint8(source),
		Domain:        uint8(domain),
		Kind:          kind,
		FromSequence:  from,
		ToSequence:    to,
		RequestedAtNs: uint64(g.now().UnixNano()),
	}, true
}

// Resolve clears the outstanding request for (source, domain), called when
// a Snapshot or the tail of a retransmit run has been received.
func (g *GapDetector) Resolve(source types.SourceType, domain types.RelayDomain) {
	delete(g.pending, SourceDomainKey{source, domain})
}

// CheckTimeouts scans outstanding requests and returns those that have
// exceeded RequestTimeout and have not yet been re-issued; it marks them
// re-issued so a second timeout declares the producer unreachable rather
// than looping forever (spec.md §5).
func (g *GapDetector) CheckTimeouts() []struct {
	Key SourceDomainKey
	Req tlv.RecoveryRequest
} {
	var out []struct {
		Key SourceDomainKey
		Req tlv.RecoveryRequest
	}
	now := g.now()
	for k, p := range g.pending {
		if now.Sub(p.issuedAt) < RequestTimeout {
			continue
		}
		if p.reissued {
			delete(g.pending, k)
			continue
		}
		p.reissued = true
		p.issuedAt = now
		out = append(out, struct {
			Key SourceDomainKey
			Req tlv.RecoveryRequest
		}{
			Key: k,
			Req: tlv.RecoveryRequest{
				Source:        uint8(k.Source),
				Domain:        uint8(k.Domain),
				Kind:          p.kind,
				FromSequence:  p.from,
				ToSequence:    p.to,
				RequestedAtNs: uint64(now.UnixNano()),
			},
		})
	}
	return out
}
