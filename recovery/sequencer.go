// Package recovery implements producer-side sequence assignment and
// message retention, and consumer-side gap detection with retransmit and
// snapshot request flows (spec.md §4.4).
package recovery

import (
	"sync"

	"github.com/torqfin/messaging-core/types"
)

// SourceDomainKey identifies one (source, domain) sequence stream.
type SourceDomainKey struct {
	Source types.SourceType
	Domain types.RelayDomain
}

// Sequencer assigns strictly increasing sequence numbers per
// (source, domain) pair (spec.md §3.7, §8.1 invariant 5). It satisfies
// codec.Sequencer. Durability of the counter across producer restarts is a
// producer concern (spec.md §4.4); LoadCounters seeds the in-memory state
// from whatever a producer persisted.
type Sequencer struct {
	mu       sync.Mutex
	counters map[SourceDomainKey]uint64
}

// NewSequencer constructs an empty Sequencer; sequences start at 1.
func NewSequencer() *Sequencer {
	return &Sequencer{counters: make(map[SourceDomainKey]uint64)}
}

// Next returns the next sequence number for (source, domain), strictly
// greater than every value previously returned for that pair.
func (s *Sequencer) Next(source types.SourceType, domain types.RelayDomain) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := SourceDomainKey{source, domain}
	s.counters[k]++
	return s.counters[k]
}

// Current returns the last sequence number issued for (source, domain),
// or 0 if none has been issued yet.
func (s *Sequencer) Current(source types.SourceType, domain types.RelayDomain) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.counters[SourceDomainKey{source, domain}]
}

// LoadCounters seeds the sequencer's in-memory state, e.g. from a
// producer's durable counter store on restart, so Next resumes strictly
// greater than the last emitted value (spec.md §4.4).
func (s *Sequencer) LoadCounters(seed map[SourceDomainKey]uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, v := range seed {
		s.counters[k] = v
	}
}
