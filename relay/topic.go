package relay

import (
	"github.com/torqfin/messaging-core/codec"
	"github.com/torqfin/messaging-core/types"
)

// TopicStrategy derives the topic name for an incoming message. Extraction
// may fail (ok=false) when the needed field is absent; the caller falls
// back to a configured default topic or drops the message (spec.md §4.3).
type TopicStrategy interface {
	Extract(msg codec.Message, payload []byte) (topic string, ok bool)
}

// FixedTopic maps every message to a single configured topic.
type FixedTopic struct{ Topic string }

func (f FixedTopic) Extract(codec.Message, []byte) (string, bool) { return f.Topic, true }

// BySourceTopic derives the topic from header.Source via a small lookup
// table (spec.md §4.3 example: "source=PolygonCollector -> market_data_polygon").
type BySourceTopic struct {
	Table map[types.SourceType]string
}

func (b BySourceTopic) Extract(msg codec.Message, _ []byte) (string, bool) {
	t, ok := b.Table[msg.Header.Source]
	return t, ok
}

// ByInstrumentVenueTopic derives the topic from the venue encoded in the
// first TLV's leading 8-byte InstrumentId cache key (spec.md §4.3). Venues
// map to topic names via Table; a venue absent from Table fails extraction.
type ByInstrumentVenueTopic struct {
	Table map[types.VenueId]string
}

func (v ByInstrumentVenueTopic) Extract(msg codec.Message, _ []byte) (string, bool) {
	if len(msg.TLVs) == 0 {
		return "", false
	}
	payload := msg.TLVs[0].Payload
	if len(payload) < 8 {
		return "", false
	}
	var key uint64
	for i := 7; i >= 0; i-- {
		key = key<<8 | uint64(payload[i])
	}
	venue := types.FromCacheKey(key).Venue
	name, ok := v.Table[venue]
	return name, ok
}
