package codec

import (
	"github.com/torqfin/messaging-core/tlv"
	"github.com/torqfin/messaging-core/types"
)

// TLVInput is one (type, payload) pair to include in a built message.
type TLVInput struct {
	Type    tlv.Type
	Payload []byte
}

// BuildInput gathers everything Build needs to construct a framed message
// (spec.md §4.1 build contract). Sequence and TimestampNanos are pointers
// so the zero value is distinguishable from "caller supplied 0"; Build
// assigns them via the supplied Clock/Sequencer when nil.
type BuildInput struct {
	Domain         types.RelayDomain
	Source         types.SourceType
	Flags          uint8
	Sequence       *uint64
	TimestampNanos *uint64
	TLVs           []TLVInput
	MaxMessageSize int // 0 means DefaultMaxMessageSize
}

// Clock supplies the current time for messages that don't pin their own
// timestamp; Sequencer supplies the next sequence number for a
// (source, domain) pair. Sequencer is satisfied by recovery.Sequencer and
// recovery.Producer; this module ships no production Clock, and tests use
// deterministic fakes for both (spec.md §8.1 invariant 4: deterministic
// build given identical inputs).
type Clock interface {
	NowNanos() uint64
}

type Sequencer interface {
	Next(source types.SourceType, domain types.RelayDomain) uint64
}

// Build constructs a complete framed message: header + concatenated TLV
// frames, with payload_size filled, sequence/timestamp assigned if absent,
// and the checksum computed last over the whole buffer with the checksum
// field zeroed (spec.md §4.1).
func Build(in BuildInput, seq Sequencer, clock Clock) ([]byte, error) {
	maxSize := in.MaxMessageSize
	if maxSize == 0 {
		maxSize = DefaultMaxMessageSize
	}

	payloadSize := 0
	for _, t := range in.TLVs {
		if size, fixed := tlv.ExpectedSize(t.Type); fixed && size != len(t.Payload) {
			return nil, ErrPayloadSizeMismatch
		}
		payloadSize += frameSize(len(t.Payload))
	}
	total := HeaderSize + payloadSize
	if total > maxSize {
		return nil, ErrMessageTooLarge
	}

	sequence := uint64(0)
	if in.Sequence != nil {
		sequence = *in.Sequence
	} else if seq != nil {
		sequence = seq.Next(in.Source, in.Domain)
	}
	ts := uint64(0)
	if in.TimestampNanos != nil {
		ts = *in.TimestampNanos
	} else if clock != nil {
		ts = clock.NowNanos()
	}

	h := Header{
		Magic:          Magic,
		RelayDomain:    in.Domain,
		Version:        Version,
		Source:         in.Source,
		Flags:          in.Flags,
		PayloadSize:    uint32(payloadSize),
		Sequence:       sequence,
		TimestampNanos: ts,
	}

	buf := make([]byte, HeaderSize, total)
	h.encode(buf)
	for _, t := range in.TLVs {
		buf = writeTLV(buf, t.Type, t.Payload)
	}
	h.Checksum = checksum(buf)
	h.encode(buf)
	return buf, nil
}

// Message is the fully decoded form of a parsed buffer: header plus TLV
// entries.
type Message struct {
	Header Header
	TLVs   []TLVEntry
}

// Parse validates the header (including checksum) and decodes the TLV
// payload in one call.
func Parse(buf []byte) (Message, error) {
	h, err := ParseHeader(buf)
	if err != nil {
		return Message{}, err
	}
	entries, err := ParseTLVs(buf[HeaderSize : HeaderSize+int(h.PayloadSize)])
	if err != nil {
		return Message{}, err
	}
	return Message{Header: h, TLVs: entries}, nil
}

// ParseTrusted is Parse without checksum verification, for internal paths
// that have already established trust in buf.
func ParseTrusted(buf []byte) (Message, error) {
	h, err := ParseHeaderTrusted(buf)
	if err != nil {
		return Message{}, err
	}
	entries, err := ParseTLVs(buf[HeaderSize : HeaderSize+int(h.PayloadSize)])
	if err != nil {
		return Message{}, err
	}
	return Message{Header: h, TLVs: entries}, nil
}

// ValidateDomain reports an error if any TLV entry's type falls outside
// m.Header.RelayDomain's range (spec.md §3.2, §8.1 invariant 8). Callers
// apply this only when the policy enables full TLV validation or strict
// mode; other policies (e.g. MarketData by default) skip it for throughput.
func (m Message) ValidateDomain() error {
	for _, e := range m.TLVs {
		if !e.Type.InDomain(m.Header.RelayDomain) {
			return ErrUnknownDomainOrType
		}
	}
	return nil
}
