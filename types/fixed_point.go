package types

// Fixed-point numeric representations (spec.md §3.5). Floating point is
// forbidden in every codec, relay, transport, and identifier path; callers
// that need a human-readable value convert at the edge (CLI/dashboard),
// never in the messaging core itself.

// PriceScale is the implicit scale of exchange prices and USD amounts: 8
// decimal places, i.e. a Price1e8 of 123_456_780_000 represents 1234.5678.
const PriceScale = 100_000_000

// Price1e8 is an exchange price or USD amount at 1e8 scale.
type Price1e8 int64

// NativeAmount is a DEX token amount expressed in the token's own on-chain
// decimals (e.g. 18 for WETH, 6 for USDC). The core never re-scales this
// value; the decimals figure travels alongside it out-of-band (typically in
// a pool-metadata TLV) so producers and consumers agree on interpretation
// without the core needing to know it.
type NativeAmount uint64

// TimestampNanos is nanoseconds since an agreed epoch (spec.md §3.1).
// Strictly increasing is not required by the core; recovery and staleness
// checks operate on differences, not absolute monotonicity.
type TimestampNanos uint64
