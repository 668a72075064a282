// Package tlv catalogs the Type-Length-Value extension types of Protocol V2
// (spec.md §3.2): the domain-partitioned type number ranges, the
// fixed/variable size registry the codec consults during build and parse,
// and a representative set of concrete wire structs. Like package types,
// this package performs no I/O — encoding/decoding of individual structs is
// plain byte-slice arithmetic, and the codec package owns framing.
package tlv

import "github.com/torqfin/messaging-core/types"

// Type is a TLV type number. Values 1-254 use the standard 2-byte-header
// format; 255 is reserved as the extended-format marker (spec.md §3.2) and
// is never itself a semantic payload type.
type Type uint8

const ExtendedMarker Type = 255

// MarketData domain: 1..19
const (
	TypeTrade Type = iota + 1
	TypeQuote
	TypeOrderBook
	TypePoolSwap
	TypePoolMint
	TypePoolBurn
	TypePoolTick
	TypePoolLiquidity
	TypeGasPrice
	TypeL2Snapshot
)

// Signal domain: 20..39
const (
	TypeSignalIdentity Type = iota + 20
	TypeArbitrageSignal
)

// Execution domain: 40..79
const (
	TypeOrderRequest Type = iota + 40
	TypeFill
	TypeOrderStatus
)

// Control types, valid in every relay domain: the 100..119 range plus
// TypeHeartbeat at 120.
const (
	TypeSnapshot        Type = 100
	TypeSubscription    Type = 101
	TypeRecoveryRequest Type = 110
	TypeHeartbeat       Type = 120 // kept apart from TypeRecoveryRequest to leave room for future retransmit sub-variants
)

// InDomain reports whether t falls in the TLV type range reserved for
// domain d, or is one of the always-allowed control types (spec.md §3.2,
// §8.1 invariant 8). Control types are valid for every domain since
// recovery and heartbeat traffic flows through all three relays.
func (t Type) InDomain(d types.RelayDomain) bool {
	if (t >= 100 && t <= 119) || t == TypeHeartbeat {
		return true
	}
	low, high := d.TLVRange()
	return uint8(t) >= low && uint8(t) <= high
}

// sizeKind records how the codec should validate a TLV type's payload
// length during build and parse.
type sizeKind struct {
	fixed    int  // expected size when variable is false
	variable bool // true means any length is accepted (capped by frame format)
}

// sizeRegistry is the fixed/variable size table the codec consults
// (spec.md §4.1 build contract: "fails with PayloadSizeMismatch if a
// declared fixed-size TLV receives a wrongly-sized payload"). Types absent
// from this table are treated as variable-size: the core forwards opaque
// bytes for TLV types it does not itself define, which is the expected
// steady state since most TLV types are defined by producers outside the
// core (spec.md §1).
var sizeRegistry = map[Type]sizeKind{
	TypeTrade:           {fixed: TradeSize},
	TypeQuote:           {fixed: QuoteSize},
	TypePoolSwap:        {fixed: PoolSwapSize},
	TypeGasPrice:        {fixed: GasPriceSize},
	TypeOrderBook:       {variable: true},
	TypePoolMint:        {variable: true},
	TypePoolBurn:        {variable: true},
	TypePoolTick:        {variable: true},
	TypePoolLiquidity:   {variable: true},
	TypeL2Snapshot:      {variable: true},
	TypeSignalIdentity:  {fixed: SignalIdentitySize},
	TypeArbitrageSignal: {variable: true},
	TypeOrderRequest:    {fixed: OrderRequestSize},
	TypeFill:            {fixed: FillSize},
	TypeOrderStatus:     {fixed: OrderStatusSize},
	TypeSnapshot:        {variable: true},
	TypeSubscription:    {variable: true},
	TypeRecoveryRequest: {fixed: RecoveryRequestSize},
	TypeHeartbeat:       {fixed: HeartbeatSize},
}

// ExpectedSize returns the fixed payload size for t and true if t is a
// known fixed-size type. Unknown or variable-size types return (0, false)
// and the codec performs no size validation on them.
func ExpectedSize(t Type) (size int, fixed bool) {
	k, ok := sizeRegistry[t]
	if !ok || k.variable {
		return 0, false
	}
	return k.fixed, true
}
