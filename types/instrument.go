package types

import "hash/fnv"

// InstrumentId is the bijective identifier described in spec.md §3.3: a
// self-describing ID that packs a venue, an asset class, and an asset-local
// discriminator into a single 64-bit value with no registry lookup required
// to decode it.
//
// Bit layout of the packed u64 (ToCacheKey), little-endian field order from
// low bit to high bit:
//
//	bits  0..32  asset ID   (32 bits, venue-local)
//	bits 32..40  reserved   (8 bits, always zero)
//	bits 40..48  asset type (8 bits)
//	bits 48..64  venue      (16 bits)
type InstrumentId struct {
	Venue     VenueId
	AssetType AssetType
	Reserved  uint8
	AssetID   uint32
}

// ToCacheKey packs the identifier into its lossless u64 form.
func (id InstrumentId) ToCacheKey() uint64 {
	return uint64(id.AssetID) |
		uint64(id.Reserved)<<32 |
		uint64(id.AssetType)<<40 |
		uint64(id.Venue)<<48
}

// FromCacheKey unpacks a u64 produced by ToCacheKey. Round-tripping through
// these two functions is lossless (spec.md §8.1 invariant 3).
func FromCacheKey(key uint64) InstrumentId {
	return InstrumentId{
		AssetID:   uint32(key),
		Reserved:  uint8(key >> 32),
		AssetType: AssetType(key >> 40),
		Venue:     VenueId(key >> 48),
	}
}

// Valid reports whether the identifier's venue and asset type are both
// known closed-enumeration values (strict-mode rejection per spec.md §3.4).
func (id InstrumentId) Valid() bool {
	return id.Venue.Valid() && id.AssetType.Valid()
}

func fnv32(parts ...[]byte) uint32 {
	h := fnv.New32a()
	for _, p := range parts {
		h.Write(p)
	}
	return h.Sum32()
}

// NewCoinID deterministically constructs an identifier for a native coin or
// off-chain symbol (e.g. "BTC" on Binance). Identical (venue, symbol) pairs
// always produce the identical identifier.
func NewCoinID(venue VenueId, symbol string) InstrumentId {
	return InstrumentId{
		Venue:     venue,
		AssetType: AssetCoin,
		AssetID:   fnv32([]byte(symbol)),
	}
}

// NewTokenID deterministically constructs an identifier for an on-chain
// token from its contract address.
func NewTokenID(venue VenueId, tokenAddress [20]byte) InstrumentId {
	return InstrumentId{
		Venue:     venue,
		AssetType: AssetToken,
		AssetID:   fnv32(tokenAddress[:]),
	}
}

// NewStockID deterministically constructs an identifier for an exchange-
// listed equity.
func NewStockID(venue VenueId, ticker string) InstrumentId {
	return InstrumentId{
		Venue:     venue,
		AssetType: AssetStock,
		AssetID:   fnv32([]byte(ticker)),
	}
}

// NewPoolID constructs a symmetric pool identifier from two token
// identifiers: NewPoolID(v, a, b) == NewPoolID(v, b, a) for any ordering of
// a and b (spec.md §3.3 invariant, tested in §8.1 invariant 3). a and b must
// be on a venue compatible with v (same chain); NewPoolID panics if they are
// not, since pool construction is always a producer-side programming
// invariant, never a function of untrusted wire input.
func NewPoolID(v VenueId, a, b InstrumentId) InstrumentId {
	if !v.Compatible(a.Venue) || !v.Compatible(b.Venue) {
		panic("types: NewPoolID venue mismatch")
	}
	lo, hi := a.AssetID, b.AssetID
	if lo > hi {
		lo, hi = hi, lo
	}
	var buf [8]byte
	buf[0] = byte(lo)
	buf[1] = byte(lo >> 8)
	buf[2] = byte(lo >> 16)
	buf[3] = byte(lo >> 24)
	buf[4] = byte(hi)
	buf[5] = byte(hi >> 8)
	buf[6] = byte(hi >> 16)
	buf[7] = byte(hi >> 24)
	return InstrumentId{
		Venue:     v,
		AssetType: AssetPool,
		AssetID:   fnv32(buf[:]),
	}
}
