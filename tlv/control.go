package tlv

import "encoding/binary"

// RecoveryRequestKind distinguishes the two recovery strategies a consumer
// can ask a producer for (spec.md §4.4): a bounded retransmit of the
// missing range, or a full state snapshot when the gap is too large to
// replay economically.
type RecoveryRequestKind uint8

const (
	RecoveryRetransmit RecoveryRequestKind = 0
	RecoverySnapshot   RecoveryRequestKind = 1
)

// RecoveryRequest is the fixed-size control TLV a consumer sends after
// detecting a sequence gap.
type RecoveryRequest struct {
	Source        uint8 // types.SourceType
	Domain        uint8 // types.RelayDomain
	Kind          RecoveryRequestKind
	_             [5]byte
	FromSequence  uint64
	ToSequence    uint64
	RequestedAtNs uint64
}

const RecoveryRequestSize = 32

func (r RecoveryRequest) Encode() []byte {
	buf := make([]byte, RecoveryRequestSize)
	buf[0] = r.Source
	buf[1] = r.Domain
	buf[2] = byte(r.Kind)
	binary.LittleEndian.PutUint64(buf[8:16], r.FromSequence)
	binary.LittleEndian.PutUint64(buf[16:24], r.ToSequence)
	binary.LittleEndian.PutUint64(buf[24:32], r.RequestedAtNs)
	return buf
}

func DecodeRecoveryRequest(b []byte) RecoveryRequest {
	return RecoveryRequest{
		Source:        b[0],
		Domain:        b[1],
		Kind:          RecoveryRequestKind(b[2]),
		FromSequence:  binary.LittleEndian.Uint64(b[8:16]),
		ToSequence:    binary.LittleEndian.Uint64(b[16:24]),
		RequestedAtNs: binary.LittleEndian.Uint64(b[24:32]),
	}
}

// Heartbeat is the fixed-size liveness/sequence-watermark beacon a producer
// emits periodically so idle consumers can detect gaps without waiting for
// the next data message (spec.md §4.4).
type Heartbeat struct {
	Source         uint8
	Domain         uint8
	_              [6]byte
	LastSequence   uint64
	TimestampNanos uint64
}

const HeartbeatSize = 24

func (h Heartbeat) Encode() []byte {
	buf := make([]byte, HeartbeatSize)
	buf[0] = h.Source
	buf[1] = h.Domain
	binary.LittleEndian.PutUint64(buf[8:16], h.LastSequence)
	binary.LittleEndian.PutUint64(buf[16:24], h.TimestampNanos)
	return buf
}

func DecodeHeartbeat(b []byte) Heartbeat {
	return Heartbeat{
		Source:         b[0],
		Domain:         b[1],
		LastSequence:   binary.LittleEndian.Uint64(b[8:16]),
		TimestampNanos: binary.LittleEndian.Uint64(b[16:24]),
	}
}

// SubscriptionAction distinguishes adding a topic subscription from
// dropping one.
type SubscriptionAction uint8

const (
	SubscriptionAdd  SubscriptionAction = 0
	SubscriptionDrop SubscriptionAction = 1
)

// Subscription is the variable-size control TLV a consumer sends to add or
// drop a topic subscription on its connection (spec.md §4.3 "Subscribe/
// unsubscribe protocol"). It carries no consumer_id: the relay attributes
// it to the connection it arrived on.
type Subscription struct {
	Action SubscriptionAction
	Topic  string
}

func (s Subscription) Encode() []byte {
	topic := []byte(s.Topic)
	buf := make([]byte, 1+len(topic))
	buf[0] = byte(s.Action)
	copy(buf[1:], topic)
	return buf
}

func DecodeSubscription(b []byte) (Subscription, error) {
	if len(b) < 1 {
		return Subscription{}, ErrTruncatedPayload
	}
	return Subscription{
		Action: SubscriptionAction(b[0]),
		Topic:  string(b[1:]),
	}, nil
}

// Snapshot is a variable-size full-state response to a RecoverySnapshot
// request. State is an opaque, producer-defined blob (e.g. a serialized
// PoolReserves or an order book); the core only frames it.
type Snapshot struct {
	Source         uint8
	Domain         uint8
	AsOfSequence   uint64
	TimestampNanos uint64
	State          []byte
}

func (s Snapshot) Encode() []byte {
	buf := make([]byte, 24+len(s.State))
	buf[0] = s.Source
	buf[1] = s.Domain
	binary.LittleEndian.PutUint64(buf[8:16], s.AsOfSequence)
	binary.LittleEndian.PutUint64(buf[16:24], s.TimestampNanos)
	copy(buf[24:], s.State)
	return buf
}

func DecodeSnapshot(b []byte) (Snapshot, error) {
	if len(b) < 24 {
		return Snapshot{}, ErrTruncatedPayload
	}
	return Snapshot{
		Source:         b[0],
		Domain:         b[1],
		AsOfSequence:   binary.LittleEndian.Uint64(b[8:16]),
		TimestampNanos: binary.LittleEndian.Uint64(b[16:24]),
		State:          append([]byte(nil), b[24:]...),
	}, nil
}
