package codec

import (
	"hash/crc32"
)

// checksum computes CRC32 (IEEE) over buf with the checksum field (bytes
// [28:32)) treated as zero, per spec.md §3.1. It never leaves buf mutated
// once it returns: the common case on a real message is a non-zero
// checksum field (every parse of wire traffic), so rather than copying the
// whole buffer on every call, checksum zeroes those 4 bytes in place,
// hashes, and restores the original bytes before returning — no allocation
// in the steady state (spec.md §8.3 parse-throughput target, §9 no-
// allocation design note).
func checksum(buf []byte) uint32 {
	if len(buf) < HeaderSize {
		return 0
	}
	var saved [4]byte
	copy(saved[:], buf[28:32])
	buf[28], buf[29], buf[30], buf[31] = 0, 0, 0, 0
	sum := crc32.ChecksumIEEE(buf)
	copy(buf[28:32], saved[:])
	return sum
}
