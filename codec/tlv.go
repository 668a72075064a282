package codec

import (
	"encoding/binary"

	"github.com/torqfin/messaging-core/tlv"
)

// TLVEntry is a single decoded TLV extension: its type number and the
// payload slice (sliced directly from the parsed buffer — no copy).
type TLVEntry struct {
	Type    tlv.Type
	Payload []byte
}

// frameSize returns the on-wire size of a TLV entry carrying a payload of
// length n: 2+n for standard format, 5+n for extended (spec.md §3.2, §8.1
// invariant 9: extended iff len > 255).
func frameSize(n int) int {
	if n > 255 {
		return 5 + n
	}
	return 2 + n
}

// writeTLV appends one TLV frame for (t, payload) to buf, returning the
// extended buffer slice.
func writeTLV(buf []byte, t tlv.Type, payload []byte) []byte {
	if len(payload) > 255 {
		buf = append(buf, byte(tlv.ExtendedMarker), 0x00, byte(t))
		var lenBuf [2]byte
		binary.LittleEndian.PutUint16(lenBuf[:], uint16(len(payload)))
		buf = append(buf, lenBuf[:]...)
		return append(buf, payload...)
	}
	buf = append(buf, byte(t), byte(len(payload)))
	return append(buf, payload...)
}

// ParseTLVs decodes a payload buffer into a sequence of TLVEntry values.
// Entries' Payload slices alias p; callers that retain them beyond the
// lifetime of p must copy.
func ParseTLVs(p []byte) ([]TLVEntry, error) {
	var entries []TLVEntry
	off := 0
	for off < len(p) {
		t, payload, consumed, err := readOneTLV(p, off)
		if err != nil {
			return nil, err
		}
		entries = append(entries, TLVEntry{Type: t, Payload: payload})
		off += consumed
	}
	return entries, nil
}

// readOneTLV decodes the single TLV frame starting at p[off:], returning
// its type, payload slice, and the number of bytes consumed.
func readOneTLV(p []byte, off int) (t tlv.Type, payload []byte, consumed int, err error) {
	if off+2 > len(p) {
		return 0, nil, 0, &TruncatedTLVError{Offset: off, Need: 2, Got: len(p) - off}
	}
	marker := tlv.Type(p[off])
	if marker != tlv.ExtendedMarker {
		length := int(p[off+1])
		need := 2 + length
		if off+need > len(p) {
			return 0, nil, 0, &TruncatedTLVError{Offset: off, Need: need, Got: len(p) - off, Type: uint8(marker)}
		}
		if size, fixed := tlv.ExpectedSize(marker); fixed && size != length {
			return 0, nil, 0, ErrPayloadSizeMismatch
		}
		return marker, p[off+2 : off+need], need, nil
	}

	if off+5 > len(p) {
		return 0, nil, 0, &TruncatedTLVError{Offset: off, Need: 5, Got: len(p) - off}
	}
	if p[off+1] != 0x00 {
		return 0, nil, 0, ErrInvalidExtendedTLV
	}
	actual := tlv.Type(p[off+2])
	length := int(binary.LittleEndian.Uint16(p[off+3 : off+5]))
	need := 5 + length
	if off+need > len(p) {
		return 0, nil, 0, &TruncatedTLVError{Offset: off, Need: need, Got: len(p) - off, Type: uint8(actual)}
	}
	if size, fixed := tlv.ExpectedSize(actual); fixed && size != length {
		return 0, nil, 0, ErrPayloadSizeMismatch
	}
	return actual, p[off+5 : off+need], need, nil
}

// FindTLV scans p for the first entry of type target without materializing
// the full entry list, for hot ingest paths that only need one TLV
// (spec.md §4.1 find_tlv). Returns nil, false if absent or on any framing
// error (callers needing full diagnostics should use ParseTLVs instead).
func FindTLV(p []byte, target tlv.Type) ([]byte, bool) {
	off := 0
	for off < len(p) {
		t, payload, consumed, err := readOneTLV(p, off)
		if err != nil {
			return nil, false
		}
		if t == target {
			return payload, true
		}
		off += consumed
	}
	return nil, false
}
