package recovery

import (
	"github.com/sirupsen/logrus"

	"github.com/torqfin/messaging-core/tlv"
	"github.com/torqfin/messaging-core/types"
)

// Producer bundles the producer-side recovery state for one process: the
// Sequencer new outbound messages draw sequence numbers from, the Retention
// window retransmit/snapshot requests are answered from, and the logger
// both report through (spec.md §1.1, §4.4).
type Producer struct {
	Sequencer *Sequencer
	Retention *Retention
	log       *logrus.Logger
}

// NewProducer constructs a Producer with a fresh Sequencer and a Retention
// sized retentionSize (<=0 uses DefaultRetentionSize). log defaults to
// logrus.New() when nil, matching relay.New's nil-safe logger pattern.
func NewProducer(retentionSize int, log *logrus.Logger) *Producer {
	if log == nil {
		log = logrus.New()
	}
	return &Producer{
		Sequencer: NewSequencer(),
		Retention: NewRetention(retentionSize),
		log:       log,
	}
}

// Next assigns the next sequence number for (source, domain).
func (p *Producer) Next(source types.SourceType, domain types.RelayDomain) uint64 {
	seq := p.Sequencer.Next(source, domain)
	p.log.WithFields(logrus.Fields{"source": source, "domain": domain, "sequence": seq}).Debug("sequence assigned")
	return seq
}

// CurrentSequence returns the last sequence number issued for (source, domain).
func (p *Producer) CurrentSequence(source types.SourceType, domain types.RelayDomain) uint64 {
	return p.Sequencer.Current(source, domain)
}

// Retain records a built message's bytes under its sequence number, for
// later retransmission (spec.md §4.4). Call immediately after a successful
// codec.Build, or after ingesting a message the caller will need to replay.
func (p *Producer) Retain(source types.SourceType, domain types.RelayDomain, sequence uint64, message []byte) {
	p.Retention.Retain(source, domain, sequence, message)
}

// Respond answers a RecoveryRequest from this producer's retention window.
// It supplies no snapshot payload of its own: building domain state is the
// caller's responsibility since the core has no opinion on what a snapshot
// contains (spec.md §4.4). Callers that can build one should call the
// package-level Respond directly with their own SnapshotBuilder; Respond is
// the fast path for retransmit answers and for reporting that a gap has
// fallen outside the retention window.
func (p *Producer) Respond(req tlv.RecoveryRequest, currentSeq uint64) Response {
	resp := Respond(p.Retention, req, currentSeq, func(types.SourceType, types.RelayDomain) []byte { return nil })
	p.log.WithFields(logrus.Fields{
		"source": req.Source, "domain": req.Domain, "kind": resp.Kind,
		"from_sequence": req.FromSequence, "to_sequence": req.ToSequence,
	}).Info("recovery request answered")
	return resp
}
