package tlv

import "encoding/binary"

// OrderRequest is a fixed-size new/cancel order instruction sent to an
// execution venue adapter.
type OrderRequest struct {
	ClientOrderID  uint64
	InstrumentID   uint64
	LimitPrice     int64 // Price1e8
	Quantity       uint64
	Side           uint8 // 0 = buy, 1 = sell
	OrderType      uint8 // 0 = limit, 1 = market, 2 = cancel
	_              [6]byte
	TimestampNanos uint64
}

const OrderRequestSize = 48

func (o OrderRequest) Encode() []byte {
	buf := make([]byte, OrderRequestSize)
	binary.LittleEndian.PutUint64(buf[0:8], o.ClientOrderID)
	binary.LittleEndian.PutUint64(buf[8:16], o.InstrumentID)
	binary.LittleEndian.PutUint64(buf[16:24], uint64(o.LimitPrice))
	binary.LittleEndian.PutUint64(buf[24:32], o.Quantity)
	buf[32] = o.Side
	buf[33] = o.OrderType
	binary.LittleEndian.PutUint64(buf[40:48], o.TimestampNanos)
	return buf
}

func DecodeOrderRequest(b []byte) OrderRequest {
	return OrderRequest{
		ClientOrderID:  binary.LittleEndian.Uint64(b[0:8]),
		InstrumentID:   binary.LittleEndian.Uint64(b[8:16]),
		LimitPrice:     int64(binary.LittleEndian.Uint64(b[16:24])),
		Quantity:       binary.LittleEndian.Uint64(b[24:32]),
		Side:           b[32],
		OrderType:      b[33],
		TimestampNanos: binary.LittleEndian.Uint64(b[40:48]),
	}
}

// Fill is a fixed-size execution report for a (partial or full) fill.
type Fill struct {
	ClientOrderID  uint64
	InstrumentID   uint64
	FillPrice      int64
	FillQuantity   uint64
	TimestampNanos uint64
}

const FillSize = 40

func (f Fill) Encode() []byte {
	buf := make([]byte, FillSize)
	binary.LittleEndian.PutUint64(buf[0:8], f.ClientOrderID)
	binary.LittleEndian.PutUint64(buf[8:16], f.InstrumentID)
	binary.LittleEndian.PutUint64(buf[16:24], uint64(f.FillPrice))
	binary.LittleEndian.PutUint64(buf[24:32], f.FillQuantity)
	binary.LittleEndian.PutUint64(buf[32:40], f.TimestampNanos)
	return buf
}

func DecodeFill(b []byte) Fill {
	return Fill{
		ClientOrderID:  binary.LittleEndian.Uint64(b[0:8]),
		InstrumentID:   binary.LittleEndian.Uint64(b[8:16]),
		FillPrice:      int64(binary.LittleEndian.Uint64(b[16:24])),
		FillQuantity:   binary.LittleEndian.Uint64(b[24:32]),
		TimestampNanos: binary.LittleEndian.Uint64(b[32:40]),
	}
}

// OrderStatus reports a lifecycle transition (new/acked/rejected/canceled)
// for a previously submitted order.
type OrderStatus struct {
	ClientOrderID  uint64
	Status         uint8 // 0 new, 1 acked, 2 rejected, 3 canceled, 4 filled
	_              [7]byte
	TimestampNanos uint64
}

const OrderStatusSize = 24

func (s OrderStatus) Encode() []byte {
	buf := make([]byte, OrderStatusSize)
	binary.LittleEndian.PutUint64(buf[0:8], s.ClientOrderID)
	buf[8] = s.Status
	binary.LittleEndian.PutUint64(buf[16:24], s.TimestampNanos)
	return buf
}

func DecodeOrderStatus(b []byte) OrderStatus {
	return OrderStatus{
		ClientOrderID:  binary.LittleEndian.Uint64(b[0:8]),
		Status:         b[8],
		TimestampNanos: binary.LittleEndian.Uint64(b[16:24]),
	}
}
