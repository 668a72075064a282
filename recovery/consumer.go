package recovery

import (
	"time"

	"github.com/sirupsen/logrus"

	"github.com/torqfin/messaging-core/tlv"
	"github.com/torqfin/messaging-core/types"
)

// Consumer bundles the consumer-side recovery state for one process: gap
// detection across every (source, domain) stream it reads, and the logger
// gap/timeout events are reported through (spec.md §1.1, §4.4).
type Consumer struct {
	Gaps *GapDetector
	log  *logrus.Logger
}

// NewConsumer constructs a Consumer. now is forwarded to NewGapDetector
// (nil defaults to time.Now); log defaults to logrus.New() when nil.
func NewConsumer(now func() time.Time, log *logrus.Logger) *Consumer {
	if log == nil {
		log = logrus.New()
	}
	return &Consumer{Gaps: NewGapDetector(now), log: log}
}

// Observe processes one incoming sequence number for (source, domain),
// logging a warning whenever a gap opens a new recovery request.
func (c *Consumer) Observe(source types.SourceType, domain types.RelayDomain, seq uint64) (req *tlv.RecoveryRequest, accept bool) {
	req, accept = c.Gaps.Observe(source, domain, seq)
	if req != nil {
		c.log.WithFields(logrus.Fields{
			"source": source, "domain": domain, "kind": req.Kind,
			"from_sequence": req.FromSequence, "to_sequence": req.ToSequence,
		}).Warn("sequence gap detected, recovery requested")
	}
	return req, accept
}

// Resolve clears the outstanding request for (source, domain).
func (c *Consumer) Resolve(source types.SourceType, domain types.RelayDomain) {
	c.Gaps.Resolve(source, domain)
}

// CheckTimeouts scans for requests past RequestTimeout, logging each
// re-issue so an operator can see a stuck producer in the log stream
// instead of only in consumer-side metrics.
func (c *Consumer) CheckTimeouts() []struct {
	Key SourceDomainKey
	Req tlv.RecoveryRequest
} {
	out := c.Gaps.CheckTimeouts()
	for _, t := range out {
		c.log.WithFields(logrus.Fields{
			"source": t.Key.Source, "domain": t.Key.Domain,
			"from_sequence": t.Req.FromSequence, "to_sequence": t.Req.ToSequence,
		}).Warn("recovery request re-issued after timeout")
	}
	return out
}
