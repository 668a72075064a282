package recovery

import (
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/torqfin/messaging-core/types"
)

// DefaultRetentionSize is the default number of built messages a producer
// retains per (source, domain), answering retransmit requests without
// needing a persistent message log (spec.md §4.4).
const DefaultRetentionSize = 10_000

// Retention is the producer-side retained-message ring buffer: the last N
// built messages per (source, domain), keyed by sequence number. Backed by
// hashicorp/golang-lru so eviction of the oldest entry when the buffer is
// full is O(1) and the lookup by sequence on a retransmit request is O(1)
// too, without hand-rolling a fixed-size ring.
type Retention struct {
	size    int
	streams map[SourceDomainKey]*lru.Cache[uint64, []byte]
}

// NewRetention constructs a Retention that keeps up to size messages per
// (source, domain) stream. size <= 0 defaults to DefaultRetentionSize.
func NewRetention(size int) *Retention {
	if size <= 0 {
		size = DefaultRetentionSize
	}
	return &Retention{
		size:    size,
		streams: make(map[SourceDomainKey]*lru.Cache[uint64, []byte]),
	}
}

func (r *Retention) stream(k SourceDomainKey) *lru.Cache[uint64, []byte] {
	c, ok := r.streams[k]
	if !ok {
		c, _ = lru.New[uint64, []byte](r.size)
		r.streams[k] = c
	}
	return c
}

// Retain records a built message's bytes under its sequence number for
// (source, domain). Call this immediately after a successful codec.Build.
func (r *Retention) Retain(source types.SourceType, domain types.RelayDomain, sequence uint64, message []byte) {
	r.stream(SourceDomainKey{source, domain}).Add(sequence, message)
}

// Get returns the retained message bytes for (source, domain, sequence), if
// still held in the window. It peeks without refreshing recency, so reads
// never change which entry is evicted next: eviction stays oldest-first.
func (r *Retention) Get(source types.SourceType, domain types.RelayDomain, sequence uint64) ([]byte, bool) {
	c, ok := r.streams[SourceDomainKey{source, domain}]
	if !ok {
		return nil, false
	}
	return c.Peek(sequence)
}

// OldestRetained reports the smallest sequence number still held for
// (source, domain), and whether the stream has any retained entries at
// all. Requests for sequences older than this must be answered with a
// snapshot rather than a retransmit (spec.md §4.4).
func (r *Retention) OldestRetained(source types.SourceType, domain types.RelayDomain) (uint64, bool) {
	c, ok := r.streams[SourceDomainKey{source, domain}]
	if !ok || c.Len() == 0 {
		return 0, false
	}
	keys := c.Keys()
	oldest := keys[0]
	for _, k := range keys[1:] {
		if k < oldest {
			oldest = k
		}
	}
	return oldest, true
}

// Retransmit returns the retained messages for the inclusive [from, to]
// sequence range for (source, domain), in ascending sequence order. Missing
// sequences (evicted or never retained) are simply omitted — callers that
// need to detect a partial range should compare len(result) against
// to-from+1.
func (r *Retention) Retransmit(source types.SourceType, domain types.RelayDomain, from, to uint64) [][]byte {
	var out [][]byte
	for seq := from; seq <= to; seq++ {
		if msg, ok := r.Get(source, domain, seq); ok {
			out = append(out, msg)
		}
	}
	return out
}
