package recovery

import (
	"github.com/torqfin/messaging-core/tlv"
	"github.com/torqfin/messaging-core/types"
)

// Response is what a producer sends back for a RecoveryRequest: either a
// run of retransmitted message bytes, or a snapshot when the gap can't be
// satisfied incrementally.
type Response struct {
	Kind     tlv.RecoveryRequestKind
	Messages [][]byte      // populated iff Kind == RecoveryRetransmit
	Snapshot *tlv.Snapshot // populated iff Kind == RecoverySnapshot
}

// SnapshotBuilder produces the domain-specific state summary for a
// (source, domain) pair; relays/producers supply this since the core has
// no opinion on what a snapshot payload contains (spec.md §4.4).
type SnapshotBuilder func(source types.SourceType, domain types.RelayDomain) []byte

// Respond answers a RecoveryRequest against a producer's retention window.
// A retransmit request spanning more than the retention size, or whose
// start sequence predates the oldest retained entry, is downgraded to a
// snapshot automatically (spec.md §4.4 replay limits).
func Respond(ret *Retention, req tlv.RecoveryRequest, currentSeq uint64, build SnapshotBuilder) Response {
	source := types.SourceType(req.Source)
	domain := types.RelayDomain(req.Domain)

	kind := req.Kind
	if kind == tlv.RecoveryRetransmit {
		oldest, ok := ret.OldestRetained(source, domain)
		span := req.ToSequence - req.FromSequence + 1
		if !ok || req.FromSequence < oldest || span > uint64(ret.size) {
			kind = tlv.RecoverySnapshot
		}
	}

	if kind == tlv.RecoverySnapshot {
		return Response{
			Kind: tlv.RecoverySnapshot,
			Snapshot: &tlv.Snapshot{
				Source:       req.Source,
				Domain:       req.Domain,
				AsOfSequence: currentSeq,
				State:        build(source, domain),
			},
		}
	}

	return Response{
		Kind:     tlv.RecoveryRetransmit,
		Messages: ret.Retransmit(source, domain, req.FromSequence, req.ToSequence),
	}
}
