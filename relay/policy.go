package relay

import (
	"github.com/torqfin/messaging-core/codec"
	"github.com/torqfin/messaging-core/types"
)

// BackpressurePolicy selects what happens when a subscriber's outbound
// queue is full (spec.md §4.3).
type BackpressurePolicy int

const (
	// BackpressureDrop discards the message for that one subscriber only.
	BackpressureDrop BackpressurePolicy = iota
	// BackpressureDisconnect disconnects the slow subscriber.
	BackpressureDisconnect
)

// ValidationPolicy is a domain's per-message validation contract (spec.md
// §4.3 canonical defaults table, §6.3 configuration surface).
type ValidationPolicy struct {
	Checksum          bool
	FullTLVValidation bool // type-in-domain check
	Audit             bool
	Strict            bool // additionally reject unknown source types and unknown TLV types
	MaxMessageSize    int
	Backpressure      BackpressurePolicy
}

// DefaultPolicy returns the canonical default policy for domain (spec.md
// §4.3 table): MarketData skips checksum/validation for throughput,
// Execution enforces full validation and audit logging.
func DefaultPolicy(domain types.RelayDomain) ValidationPolicy {
	switch domain {
	case types.DomainMarketData:
		return ValidationPolicy{
			Checksum:          false,
			FullTLVValidation: false,
			Audit:             false,
			MaxMessageSize:    codec.DefaultMaxMessageSize,
			Backpressure:      BackpressureDrop,
		}
	case types.DomainSignal:
		return ValidationPolicy{
			Checksum:          true,
			FullTLVValidation: false,
			Audit:             false,
			MaxMessageSize:    codec.DefaultMaxMessageSize,
			Backpressure:      BackpressureDisconnect,
		}
	case types.DomainExecution:
		return ValidationPolicy{
			Checksum:          true,
			FullTLVValidation: true,
			Audit:             true,
			MaxMessageSize:    codec.DefaultMaxMessageSize,
			Backpressure:      BackpressureDisconnect,
		}
	default:
		return ValidationPolicy{}
	}
}

// Validate parses and validates buf according to p, returning the decoded
// message. Checksum verification and TLV-domain-range checking are each
// applied only if the policy calls for them, so MarketData's hot path
// skips both (spec.md §4.3).
func Validate(buf []byte, domain types.RelayDomain, p ValidationPolicy) (codec.Message, error) {
	var msg codec.Message
	var err error
	if p.Checksum {
		msg, err = codec.Parse(buf)
	} else {
		msg, err = codec.ParseTrusted(buf)
	}
	if err != nil {
		return codec.Message{}, err
	}
	if msg.Header.RelayDomain != domain {
		return codec.Message{}, codec.ErrUnknownDomainOrType
	}
	if p.Strict && !msg.Header.Source.Valid() {
		return codec.Message{}, codec.ErrUnknownDomainOrType
	}
	if p.FullTLVValidation || p.Strict {
		if err := msg.ValidateDomain(); err != nil {
			return codec.Message{}, err
		}
	}
	return msg, nil
}
