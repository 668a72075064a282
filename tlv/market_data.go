package tlv

import "encoding/binary"

// Trade is the fixed-size market data TLV payload for a single executed
// trade (spec.md §3.2 worked example: 40-byte payload, little-endian).
type Trade struct {
	InstrumentID   uint64
	Price          int64 // Price1e8
	Volume         uint64
	Side           uint8 // 0 = buy, 1 = sell
	_              [7]byte
	TimestampNanos uint64
}

const TradeSize = 40

// Encode serializes t into a freshly allocated 40-byte payload.
func (t Trade) Encode() []byte {
	buf := make([]byte, TradeSize)
	binary.LittleEndian.PutUint64(buf[0:8], t.InstrumentID)
	binary.LittleEndian.PutUint64(buf[8:16], uint64(t.Price))
	binary.LittleEndian.PutUint64(buf[16:24], t.Volume)
	buf[24] = t.Side
	binary.LittleEndian.PutUint64(buf[32:40], t.TimestampNanos)
	return buf
}

// DecodeTrade parses a Trade payload. The caller guarantees len(b) ==
// TradeSize; the codec layer enforces this via the size registry before
// handing the payload off.
func DecodeTrade(b []byte) Trade {
	return Trade{
		InstrumentID:   binary.LittleEndian.Uint64(b[0:8]),
		Price:          int64(binary.LittleEndian.Uint64(b[8:16])),
		Volume:         binary.LittleEndian.Uint64(b[16:24]),
		Side:           b[24],
		TimestampNanos: binary.LittleEndian.Uint64(b[32:40]),
	}
}

// Quote is the fixed-size top-of-book bid/ask TLV payload.
type Quote struct {
	InstrumentID   uint64
	BidPrice       int64
	AskPrice       int64
	BidSize        uint64
	AskSize        uint64
	TimestampNanos uint64
}

const QuoteSize = 48

func (q Quote) Encode() []byte {
	buf := make([]byte, QuoteSize)
	binary.LittleEndian.PutUint64(buf[0:8], q.InstrumentID)
	binary.LittleEndian.PutUint64(buf[8:16], uint64(q.BidPrice))
	binary.LittleEndian.PutUint64(buf[16:24], uint64(q.AskPrice))
	binary.LittleEndian.PutUint64(buf[24:32], q.BidSize)
	binary.LittleEndian.PutUint64(buf[32:40], q.AskSize)
	binary.LittleEndian.PutUint64(buf[40:48], q.TimestampNanos)
	return buf
}

func DecodeQuote(b []byte) Quote {
	return Quote{
		InstrumentID:   binary.LittleEndian.Uint64(b[0:8]),
		BidPrice:       int64(binary.LittleEndian.Uint64(b[8:16])),
		AskPrice:       int64(binary.LittleEndian.Uint64(b[16:24])),
		BidSize:        binary.LittleEndian.Uint64(b[24:32]),
		AskSize:        binary.LittleEndian.Uint64(b[32:40]),
		TimestampNanos: binary.LittleEndian.Uint64(b[40:48]),
	}
}

// PoolSwap is the fixed-size DEX swap event TLV payload. AmountIn/AmountOut
// are NativeAmount (untouched on-chain decimals); TokenIn/TokenOut carry
// the packed InstrumentId cache key of each side of the swap.
type PoolSwap struct {
	PoolID         uint64
	TokenIn        uint64
	TokenOut       uint64
	AmountIn       uint64
	AmountOut      uint64
	TimestampNanos uint64
}

const PoolSwapSize = 48

func (s PoolSwap) Encode() []byte {
	buf := make([]byte, PoolSwapSize)
	binary.LittleEndian.PutUint64(buf[0:8], s.PoolID)
	binary.LittleEndian.PutUint64(buf[8:16], s.TokenIn)
	binary.LittleEndian.PutUint64(buf[16:24], s.TokenOut)
	binary.LittleEndian.PutUint64(buf[24:32], s.AmountIn)
	binary.LittleEndian.PutUint64(buf[32:40], s.AmountOut)
	binary.LittleEndian.PutUint64(buf[40:48], s.TimestampNanos)
	return buf
}

func DecodePoolSwap(b []byte) PoolSwap {
	return PoolSwap{
		PoolID:         binary.LittleEndian.Uint64(b[0:8]),
		TokenIn:        binary.LittleEndian.Uint64(b[8:16]),
		TokenOut:       binary.LittleEndian.Uint64(b[16:24]),
		AmountIn:       binary.LittleEndian.Uint64(b[24:32]),
		AmountOut:      binary.LittleEndian.Uint64(b[32:40]),
		TimestampNanos: binary.LittleEndian.Uint64(b[40:48]),
	}
}

// GasPrice is the fixed-size chain gas price sample TLV payload.
type GasPrice struct {
	ChainID        uint64
	PriceWei       uint64
	TimestampNanos uint64
}

const GasPriceSize = 24

func (g GasPrice) Encode() []byte {
	buf := make([]byte, GasPriceSize)
	binary.LittleEndian.PutUint64(buf[0:8], g.ChainID)
	binary.LittleEndian.PutUint64(buf[8:16], g.PriceWei)
	binary.LittleEndian.PutUint64(buf[16:24], g.TimestampNanos)
	return buf
}

func DecodeGasPrice(b []byte) GasPrice {
	return GasPrice{
		ChainID:        binary.LittleEndian.Uint64(b[0:8]),
		PriceWei:       binary.LittleEndian.Uint64(b[8:16]),
		TimestampNanos: binary.LittleEndian.Uint64(b[16:24]),
	}
}

// L2Snapshot is a variable-size order book depth snapshot: a fixed header
// followed by repeated (price, size) level pairs. It requires the extended
// TLV format whenever LevelCount exceeds roughly 15 (payload > 255 bytes),
// which is the common case for anything deeper than top-of-book.
type L2Snapshot struct {
	InstrumentID   uint64
	TimestampNanos uint64
	Bids           []PriceLevel
	Asks           []PriceLevel
}

type PriceLevel struct {
	Price int64
	Size  uint64
}

func (s L2Snapshot) Encode() []byte {
	buf := make([]byte, 16+16*(len(s.Bids)+len(s.Asks))+4)
	binary.LittleEndian.PutUint64(buf[0:8], s.InstrumentID)
	binary.LittleEndian.PutUint64(buf[8:16], s.TimestampNanos)
	binary.LittleEndian.PutUint16(buf[16:18], uint16(len(s.Bids)))
	binary.LittleEndian.PutUint16(buf[18:20], uint16(len(s.Asks)))
	off := 20
	for _, lvl := range s.Bids {
		binary.LittleEndian.PutUint64(buf[off:off+8], uint64(lvl.Price))
		binary.LittleEndian.PutUint64(buf[off+8:off+16], lvl.Size)
		off += 16
	}
	for _, lvl := range s.Asks {
		binary.LittleEndian.PutUint64(buf[off:off+8], uint64(lvl.Price))
		binary.LittleEndian.PutUint64(buf[off+8:off+16], lvl.Size)
		off += 16
	}
	return buf[:off]
}

func DecodeL2Snapshot(b []byte) (L2Snapshot, error) {
	if len(b) < 20 {
		return L2Snapshot{}, ErrTruncatedPayload
	}
	s := L2Snapshot{
		InstrumentID:   binary.LittleEndian.Uint64(b[0:8]),
		TimestampNanos: binary.LittleEndian.Uint64(b[8:16]),
	}
	nBids := int(binary.LittleEndian.Uint16(b[16:18]))
	nAsks := int(binary.LittleEndian.Uint16(b[18:20]))
	off := 20
	need := off + 16*(nBids+nAsks)
	if len(b) < need {
		return L2Snapshot{}, ErrTruncatedPayload
	}
	s.Bids = make([]PriceLevel, nBids)
	for i := range s.Bids {
		s.Bids[i] = PriceLevel{
			Price: int64(binary.LittleEndian.Uint64(b[off : off+8])),
			Size:  binary.LittleEndian.Uint64(b[off+8 : off+16]),
		}
		off += 16
	}
	s.Asks = make([]PriceLevel, nAsks)
	for i := range s.Asks {
		s.Asks[i] = PriceLevel{
			Price: int64(binary.LittleEndian.Uint64(b[off : off+8])),
			Size:  binary.LittleEndian.Uint64(b[off+8 : off+16]),
		}
		off += 16
	}
	return s, nil
}
