package codec

import (
	"github.com/torqfin/messaging-core/tlv"
)

// fixedSize is satisfied by the fixed-size TLV structs in package tlv that
// know how to encode themselves to their exact wire size (Trade, Quote,
// PoolSwap, ...). ExtractTLV uses it only to report the target size via a
// throwaway zero value before decoding with decode.
type fixedSize interface {
	Encode() []byte
}

// ExtractTLV copies payload into a T-shaped value iff present and
// len(payload) equals the encoded size of a zero T (spec.md §4.1
// extract_tlv<T>). decode performs the actual byte-to-struct conversion;
// callers pass one of the tlv.DecodeXxx functions.
func ExtractTLV[T fixedSize](p []byte, target tlv.Type, decode func([]byte) T) (T, bool) {
	var zero T
	payload, ok := FindTLV(p, target)
	if !ok {
		return zero, false
	}
	if len(payload) != len(zero.Encode()) {
		return zero, false
	}
	return decode(payload), true
}
