package recovery

import "github.com/torqfin/messaging-core/types"

// IsStale reports whether a recovered message's timestamp exceeds the
// validity horizon for its domain, measured against nowNanos. Time-
// sensitive domains (Signal) attach a validity horizon so consumers
// discard recovered messages that arrived too late to act on even though
// the transport delivered them successfully (spec.md §4.4).
func IsStale(domain types.RelayDomain, messageTimestampNanos, nowNanos uint64, horizon types.TimestampNanos) bool {
	if horizon == 0 {
		return false
	}
	if nowNanos <= messageTimestampNanos {
		return false
	}
	age := nowNanos - messageTimestampNanos
	return age > uint64(horizon)
}

// DefaultSignalHorizon is the default staleness horizon applied to
// recovered Signal-domain messages: strategy signals older than this are
// no longer actionable (spec.md §4.4).
const DefaultSignalHorizon = types.TimestampNanos(2 * 1_000_000_000) // 2s
