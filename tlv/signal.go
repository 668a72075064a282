package tlv

import "encoding/binary"

// SignalIdentity announces a strategy/signal producer's identity on a
// Signal-domain connection (fixed-size, sent once after Subscribed).
type SignalIdentity struct {
	StrategyID     uint64
	InstanceID     uint32
	TimestampNanos uint64
}

const SignalIdentitySize = 20

func (s SignalIdentity) Encode() []byte {
	buf := make([]byte, SignalIdentitySize)
	binary.LittleEndian.PutUint64(buf[0:8], s.StrategyID)
	binary.LittleEndian.PutUint32(buf[8:12], s.InstanceID)
	binary.LittleEndian.PutUint64(buf[12:20], s.TimestampNanos)
	return buf
}

func DecodeSignalIdentity(b []byte) SignalIdentity {
	return SignalIdentity{
		StrategyID:     binary.LittleEndian.Uint64(b[0:8]),
		InstanceID:     binary.LittleEndian.Uint32(b[8:12]),
		TimestampNanos: binary.LittleEndian.Uint64(b[12:20]),
	}
}

// ArbitrageSignal carries a variable-length path of instruments a strategy
// believes is profitable to trade, plus the estimated edge.
type ArbitrageSignal struct {
	StrategyID     uint64
	EstimatedEdge  int64 // Price1e8
	TimestampNanos uint64
	Path           []uint64 // InstrumentId cache keys, in traversal order
}

func (a ArbitrageSignal) Encode() []byte {
	buf := make([]byte, 24+8*len(a.Path))
	binary.LittleEndian.PutUint64(buf[0:8], a.StrategyID)
	binary.LittleEndian.PutUint64(buf[8:16], uint64(a.EstimatedEdge))
	binary.LittleEndian.PutUint64(buf[16:24], a.TimestampNanos)
	off := 24
	for _, hop := range a.Path {
		binary.LittleEndian.PutUint64(buf[off:off+8], hop)
		off += 8
	}
	return buf
}

func DecodeArbitrageSignal(b []byte) (ArbitrageSignal, error) {
	if len(b) < 24 || (len(b)-24)%8 != 0 {
		return ArbitrageSignal{}, ErrTruncatedPayload
	}
	a := ArbitrageSignal{
		StrategyID:     binary.LittleEndian.Uint64(b[0:8]),
		EstimatedEdge:  int64(binary.LittleEndian.Uint64(b[8:16])),
		TimestampNanos: binary.LittleEndian.Uint64(b[16:24]),
	}
	a.Path = make([]uint64, (len(b)-24)/8)
	off := 24
	for i := range a.Path {
		a.Path[i] = binary.LittleEndian.Uint64(b[off : off+8])
		off += 8
	}
	return a, nil
}
